package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/saltbush/stockyard/internal/domain"
)

// RecordEventInput carries a caller's ledger entry. AnimalRef accepts an
// internal id, EID, or visual tag; MobID takes a mob id. Exactly one
// subject is required.
type RecordEventInput struct {
	Type       domain.EventType
	OccurredAt time.Time
	AnimalRef  string
	MobID      string
	Note       string
	RecordedBy string

	Movement      *domain.MovementPayload
	Treatment     *domain.TreatmentPayload
	Weigh         *domain.WeighPayload
	Death         *domain.DeathPayload
	Sale          *domain.SalePayload
	PregnancyTest *domain.PregnancyTestPayload
	Joining       *domain.JoiningPayload
	StatusChange  *domain.StatusChangePayload
}

// RecordEvent validates, appends, and projects one ledger event. The
// event and its registry effects are committed in one transaction, so a
// caller that observes the append also observes the derived state.
func (s *Service) RecordEvent(ctx context.Context, in RecordEventInput) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.Type == domain.EventBirth {
		return domain.Event{}, fmt.Errorf("%w: births are recorded through animal registration", domain.ErrInvalidEventType)
	}

	now := s.clock()
	occurred := in.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}
	view := newProjectionView()

	var animalID string
	if ref := strings.TrimSpace(in.AnimalRef); ref != "" {
		animal, err := s.resolveAnimal(ctx, ref)
		if err != nil {
			return domain.Event{}, fmt.Errorf("animal %s: %w", ref, err)
		}
		if animal.Status.Terminal() && in.Type != domain.EventNote {
			return domain.Event{}, fmt.Errorf("%w: animal %s is %s", domain.ErrInvalidTransition, animal.DisplayID(), animal.Status)
		}
		animalID = animal.ID
		view.animals[animal.ID] = animal
	}
	if mobID := strings.TrimSpace(in.MobID); mobID != "" {
		mob, err := s.repo.GetMob(ctx, mobID)
		if err != nil {
			return domain.Event{}, fmt.Errorf("mob %s: %w", mobID, err)
		}
		view.mobs[mob.ID] = mob
	}

	if in.Type == domain.EventMovement && in.Movement != nil {
		if err := s.loadMovementContext(ctx, in, animalID, view); err != nil {
			return domain.Event{}, err
		}
	}
	if in.Type == domain.EventTreatment && in.Treatment != nil {
		if err := s.freezeWithholding(ctx, in.Treatment, occurred); err != nil {
			return domain.Event{}, err
		}
	}
	if in.Type == domain.EventJoining && in.Joining != nil && in.Joining.SireMobID != "" {
		if _, err := s.repo.GetMob(ctx, in.Joining.SireMobID); err != nil {
			return domain.Event{}, fmt.Errorf("sire mob %s: %w", in.Joining.SireMobID, err)
		}
	}

	ev, err := domain.NewEvent(domain.EventInput{
		ID:            s.idGen(),
		Type:          in.Type,
		OccurredAt:    in.OccurredAt,
		AnimalID:      animalID,
		MobID:         strings.TrimSpace(in.MobID),
		Note:          in.Note,
		RecordedBy:    in.RecordedBy,
		Movement:      in.Movement,
		Treatment:     in.Treatment,
		Weigh:         in.Weigh,
		Death:         in.Death,
		Sale:          in.Sale,
		PregnancyTest: in.PregnancyTest,
		Joining:       in.Joining,
		StatusChange:  in.StatusChange,
	}, now)
	if err != nil {
		return domain.Event{}, err
	}

	delta, err := s.projectEvent(ctx, view, ev)
	if err != nil {
		return domain.Event{}, err
	}
	appended, err := s.repo.AppendEvent(ctx, ev, delta)
	if err != nil {
		return domain.Event{}, fmt.Errorf("append event: %w", err)
	}
	return appended, nil
}

// projectEvent computes the registry delta for a validated event. An
// event dated at or after the subject's newest entry folds directly on
// the loaded view. A back-dated entry sorts ahead of events already
// folded into the registry, so the cached derived fields can no longer
// be trusted; the subject's ledger is re-folded in occurrence order
// instead.
func (s *Service) projectEvent(ctx context.Context, view projectionView, ev domain.Event) (ProjectionDelta, error) {
	history, err := s.repo.ListEvents(ctx, EventFilter{AnimalID: ev.AnimalID, MobID: ev.MobID})
	if err != nil {
		return ProjectionDelta{}, fmt.Errorf("list events: %w", err)
	}
	backdated := false
	var maxSeq int64
	for _, prior := range history {
		if prior.Seq > maxSeq {
			maxSeq = prior.Seq
		}
		if prior.OccurredAt.After(ev.OccurredAt) {
			backdated = true
		}
	}
	if !backdated {
		return s.project(view, ev)
	}
	// Provisional sequence for sorting; the real one assigned at append
	// is larger and breaks occurrence-time ties the same way.
	ev.Seq = maxSeq + 1
	return s.refoldSubject(ctx, ev, history)
}

// refoldSubject replays the subject's full ledger, new event included,
// and returns the registry row the replay implies. Only tasks sourced
// from the new event are created; earlier appends already created the
// rest.
func (s *Service) refoldSubject(ctx context.Context, ev domain.Event, history []domain.Event) (ProjectionDelta, error) {
	history = append(history, ev)

	fold := newProjectionView()
	if ev.MobID != "" {
		mob, err := s.repo.GetMob(ctx, ev.MobID)
		if err != nil {
			return ProjectionDelta{}, fmt.Errorf("mob %s: %w", ev.MobID, err)
		}
		mob.PaddockID = ""
		fold.mobs[mob.ID] = mob
	} else {
		for _, h := range history {
			if h.Type != domain.EventMovement || h.Movement == nil || h.Movement.ToMobID == "" {
				continue
			}
			if _, ok := fold.mobs[h.Movement.ToMobID]; ok {
				continue
			}
			mob, err := s.repo.GetMob(ctx, h.Movement.ToMobID)
			if err != nil {
				return ProjectionDelta{}, fmt.Errorf("mob %s: %w", h.Movement.ToMobID, err)
			}
			fold.mobs[mob.ID] = mob
		}
	}

	tasks, err := s.foldEvents(fold, history)
	if err != nil {
		return ProjectionDelta{}, err
	}
	var delta ProjectionDelta
	for _, task := range tasks {
		if task.SourceEventID == ev.ID {
			delta.CreateTasks = append(delta.CreateTasks, task)
		}
	}
	if ev.MobID != "" {
		delta.UpdateMobs = append(delta.UpdateMobs, fold.mobs[ev.MobID])
		return delta, nil
	}

	animal := fold.animals[ev.AnimalID]
	// Descriptive edits live only in the registry; carry them across.
	stored, err := s.repo.GetAnimal(ctx, ev.AnimalID)
	if err != nil {
		return ProjectionDelta{}, fmt.Errorf("animal %s: %w", ev.AnimalID, err)
	}
	animal.VisualTag = stored.VisualTag
	animal.Breed = stored.Breed
	animal.Notes = stored.Notes
	animal.CreatedAt = stored.CreatedAt
	delta.UpsertAnimals = append(delta.UpsertAnimals, animal)
	return delta, nil
}

// loadMovementContext verifies movement references and fills derivable
// from-fields so the ledger entry is self-describing.
func (s *Service) loadMovementContext(ctx context.Context, in RecordEventInput, animalID string, view projectionView) error {
	m := in.Movement
	if animalID != "" {
		if m.ToMobID = strings.TrimSpace(m.ToMobID); m.ToMobID != "" {
			mob, err := s.repo.GetMob(ctx, m.ToMobID)
			if err != nil {
				return fmt.Errorf("mob %s: %w", m.ToMobID, err)
			}
			if mob.PaddockID == "" {
				return fmt.Errorf("%w: mob %s has no paddock", domain.ErrInvalidTransition, mob.Name)
			}
			view.mobs[mob.ID] = mob
			if m.FromMobID == "" {
				m.FromMobID = view.animals[animalID].MobID
			}
		}
		return nil
	}
	if m.ToPaddockID = strings.TrimSpace(m.ToPaddockID); m.ToPaddockID != "" {
		if _, err := s.repo.GetPaddock(ctx, m.ToPaddockID); err != nil {
			return fmt.Errorf("paddock %s: %w", m.ToPaddockID, err)
		}
		if m.FromPaddockID == "" {
			m.FromPaddockID = view.mobs[strings.TrimSpace(in.MobID)].PaddockID
		}
	}
	return nil
}

// freezeWithholding derives the treatment's withholding end dates from
// the product's current windows and writes them into the payload. Later
// edits to the product never move these dates.
func (s *Service) freezeWithholding(ctx context.Context, p *domain.TreatmentPayload, treatedAt time.Time) error {
	product, err := s.repo.GetProduct(ctx, strings.TrimSpace(p.ProductID))
	if err != nil {
		return fmt.Errorf("product %s: %w", p.ProductID, err)
	}
	p.ProductID = product.ID
	if p.Dose == "" {
		p.Dose = product.DefaultDose
	}
	if p.Route == "" {
		p.Route = product.DefaultRoute
	}
	window := domain.ComputeWHP(product, treatedAt)
	p.MeatWHPEnd = window.MeatEnd
	p.MilkWHPEnd = window.MilkEnd
	p.ESIEnd = window.ESIEnd
	return nil
}
