package app

import (
	"context"
	"sort"
	"time"

	"github.com/saltbush/stockyard/internal/domain"
)

// WHPHold is one treatment whose withholding window is still open.
type WHPHold struct {
	EventID   string
	ProductID string
	TreatedAt time.Time
	Window    domain.WHPWindow
}

// WHPStatus is an animal's withholding position as of a given date.
type WHPStatus struct {
	Animal domain.Animal
	Clear  bool
	// ClearDate is the date every open window has ended, nil when the
	// animal is already clear.
	ClearDate *time.Time
	Holds     []WHPHold
}

// AnimalWHPStatus computes an animal's withholding position from its
// treatment history. Clearance is conjunctive across meat, milk, and
// export windows.
func (s *Service) AnimalWHPStatus(ctx context.Context, ref string, asOf time.Time) (WHPStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	animal, err := s.resolveAnimal(ctx, ref)
	if err != nil {
		return WHPStatus{}, err
	}
	events, err := s.repo.ListEvents(ctx, EventFilter{
		AnimalID: animal.ID,
		Types:    []domain.EventType{domain.EventTreatment},
	})
	if err != nil {
		return WHPStatus{}, err
	}
	return whpStatus(animal, events, asOf), nil
}

// ListUnderWHP returns every animal still held by at least one
// withholding window as of the given date, ordered by clear date then
// display id.
func (s *Service) ListUnderWHP(ctx context.Context, asOf time.Time) ([]WHPStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listUnderWHP(ctx, asOf)
}

func (s *Service) listUnderWHP(ctx context.Context, asOf time.Time) ([]WHPStatus, error) {
	events, err := s.repo.ListEvents(ctx, EventFilter{Types: []domain.EventType{domain.EventTreatment}})
	if err != nil {
		return nil, err
	}
	byAnimal := make(map[string][]domain.Event)
	for _, ev := range events {
		if ev.AnimalID == "" {
			continue
		}
		byAnimal[ev.AnimalID] = append(byAnimal[ev.AnimalID], ev)
	}

	var held []WHPStatus
	for animalID, treatments := range byAnimal {
		animal, err := s.repo.GetAnimal(ctx, animalID)
		if err != nil {
			return nil, err
		}
		// Sold and dead animals are off the books; their old windows
		// are of no clearance interest.
		if animal.Status.Terminal() {
			continue
		}
		status := whpStatus(animal, treatments, asOf)
		if !status.Clear {
			held = append(held, status)
		}
	}
	sort.Slice(held, func(i, j int) bool {
		a, b := held[i], held[j]
		if !a.ClearDate.Equal(*b.ClearDate) {
			return a.ClearDate.Before(*b.ClearDate)
		}
		return a.Animal.DisplayID() < b.Animal.DisplayID()
	})
	return held, nil
}

func whpStatus(animal domain.Animal, treatments []domain.Event, asOf time.Time) WHPStatus {
	status := WHPStatus{Animal: animal, Clear: true}
	for _, ev := range treatments {
		if ev.Treatment == nil {
			continue
		}
		window := domain.WHPWindow{
			MeatEnd: ev.Treatment.MeatWHPEnd,
			MilkEnd: ev.Treatment.MilkWHPEnd,
			ESIEnd:  ev.Treatment.ESIEnd,
		}
		if window.ClearOn(asOf) {
			continue
		}
		status.Clear = false
		status.ClearDate = domain.LaterDate(status.ClearDate, window.LatestEnd())
		status.Holds = append(status.Holds, WHPHold{
			EventID:   ev.ID,
			ProductID: ev.Treatment.ProductID,
			TreatedAt: ev.OccurredAt,
			Window:    window,
		})
	}
	return status
}
