package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/saltbush/stockyard/internal/domain"
)

// replayResult is the registry state a full ledger fold produces.
type replayResult struct {
	animals []domain.Animal
	mobs    []domain.Mob
	tasks   []domain.Task
}

// replayLedger folds the whole ledger into a fresh registry. Mobs start
// from their reference rows with placement cleared; every derived field
// comes from events alone.
func (s *Service) replayLedger(ctx context.Context) (replayResult, error) {
	mobs, err := s.repo.ListMobs(ctx)
	if err != nil {
		return replayResult{}, err
	}
	view := newProjectionView()
	for _, mob := range mobs {
		mob.PaddockID = ""
		view.mobs[mob.ID] = mob
	}

	events, err := s.repo.ListEvents(ctx, EventFilter{})
	if err != nil {
		return replayResult{}, err
	}

	var result replayResult
	result.tasks, err = s.foldEvents(view, events)
	if err != nil {
		return replayResult{}, err
	}
	for _, animal := range view.animals {
		result.animals = append(result.animals, animal)
	}
	for _, mob := range view.mobs {
		result.mobs = append(result.mobs, mob)
	}
	sort.Slice(result.animals, func(i, j int) bool { return result.animals[i].ID < result.animals[j].ID })
	sort.Slice(result.mobs, func(i, j int) bool { return result.mobs[i].ID < result.mobs[j].ID })
	return result, nil
}

// VerifyConsistency replays the ledger and compares the result against
// the stored registry. It returns a description of each divergence; a
// non-empty result is wrapped in ErrConsistency.
func (s *Service) VerifyConsistency(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	replayed, err := s.replayLedger(ctx)
	if err != nil {
		return nil, err
	}
	diffs, err := s.diffRegistry(ctx, replayed)
	if err != nil {
		return nil, err
	}
	if len(diffs) > 0 {
		return diffs, fmt.Errorf("%w: %d divergences", ErrConsistency, len(diffs))
	}
	return nil, nil
}

// diffRegistry compares a replay against the stored registry and
// describes every divergence.
func (s *Service) diffRegistry(ctx context.Context, replayed replayResult) ([]string, error) {
	stored, err := s.repo.ListAnimals(ctx, AnimalFilter{})
	if err != nil {
		return nil, err
	}
	storedMobs, err := s.repo.ListMobs(ctx)
	if err != nil {
		return nil, err
	}

	var diffs []string
	storedByID := make(map[string]domain.Animal, len(stored))
	for _, a := range stored {
		storedByID[a.ID] = a
	}
	for _, want := range replayed.animals {
		got, ok := storedByID[want.ID]
		if !ok {
			diffs = append(diffs, fmt.Sprintf("animal %s: in ledger, missing from registry", want.DisplayID()))
			continue
		}
		delete(storedByID, want.ID)
		diffs = append(diffs, diffAnimal(got, want)...)
	}
	for _, got := range storedByID {
		diffs = append(diffs, fmt.Sprintf("animal %s: in registry, missing from ledger", got.DisplayID()))
	}

	replayedMobs := make(map[string]domain.Mob, len(replayed.mobs))
	for _, m := range replayed.mobs {
		replayedMobs[m.ID] = m
	}
	for _, got := range storedMobs {
		want, ok := replayedMobs[got.ID]
		if !ok {
			continue
		}
		if got.PaddockID != want.PaddockID {
			diffs = append(diffs, fmt.Sprintf("mob %s: paddock %q, ledger says %q", got.Name, got.PaddockID, want.PaddockID))
		}
	}

	sort.Strings(diffs)
	return diffs, nil
}

func diffAnimal(got, want domain.Animal) []string {
	var diffs []string
	id := want.DisplayID()
	if got.Status != want.Status {
		diffs = append(diffs, fmt.Sprintf("animal %s: status %q, ledger says %q", id, got.Status, want.Status))
	}
	if got.MobID != want.MobID {
		diffs = append(diffs, fmt.Sprintf("animal %s: mob %q, ledger says %q", id, got.MobID, want.MobID))
	}
	if !floatPtrEqual(got.LatestWeightKg, want.LatestWeightKg) {
		diffs = append(diffs, fmt.Sprintf("animal %s: latest weight diverges from ledger", id))
	}
	if !timePtrEqual(got.WHPClearDate, want.WHPClearDate) {
		diffs = append(diffs, fmt.Sprintf("animal %s: WHP clear date diverges from ledger", id))
	}
	return diffs
}

// RebuildRegistry replays the ledger and rewrites the derived registry
// state. Task completions are preserved for tasks the replay
// regenerates; everything else derived is replaced.
func (s *Service) RebuildRegistry(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebuildLocked(ctx)
}

func (s *Service) rebuildLocked(ctx context.Context) error {
	replayed, err := s.replayLedger(ctx)
	if err != nil {
		return err
	}

	// Descriptive fields edited after registration live only in the
	// registry; carry them across the rebuild.
	stored, err := s.repo.ListAnimals(ctx, AnimalFilter{})
	if err != nil {
		return err
	}
	storedByID := make(map[string]domain.Animal, len(stored))
	for _, a := range stored {
		storedByID[a.ID] = a
	}
	for i, animal := range replayed.animals {
		prev, ok := storedByID[animal.ID]
		if !ok {
			continue
		}
		replayed.animals[i].VisualTag = prev.VisualTag
		replayed.animals[i].Breed = prev.Breed
		replayed.animals[i].Notes = prev.Notes
	}

	for i, task := range replayed.tasks {
		existing, err := s.repo.GetTask(ctx, task.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return err
		}
		if existing.Status != domain.TaskOpen {
			replayed.tasks[i].Status = existing.Status
			replayed.tasks[i].UpdatedAt = existing.UpdatedAt
		}
	}

	if err := s.repo.ReplaceProjection(ctx, replayed.animals, replayed.mobs, replayed.tasks); err != nil {
		return fmt.Errorf("rebuild registry: %w", err)
	}
	return nil
}

func floatPtrEqual(a, b *float64) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

func timePtrEqual(a, b *time.Time) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || a.Equal(*b)
}
