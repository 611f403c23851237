package app

import (
	"fmt"

	"github.com/saltbush/stockyard/internal/domain"
)

// projectionView is the registry state a fold reads. The live append
// path loads just the rows an event touches; rebuild loads everything.
type projectionView struct {
	animals map[string]domain.Animal
	mobs    map[string]domain.Mob
}

func newProjectionView() projectionView {
	return projectionView{
		animals: make(map[string]domain.Animal),
		mobs:    make(map[string]domain.Mob),
	}
}

// project applies one event to the view and returns the registry changes
// it implies. It is the single source of truth for event semantics: the
// live write path persists its delta alongside the event, and rebuild
// folds the whole ledger through it. It mutates the view so consecutive
// events see each other's effects.
//
// Append-time rules (subject exists and is not terminal, destination mob
// has a paddock) are checked in RecordEvent, not here. The fold must
// accept every ledger the append path could have produced, including
// back-dated entries that sort ahead of the rows they were validated
// against.
func (s *Service) project(view projectionView, ev domain.Event) (ProjectionDelta, error) {
	var delta ProjectionDelta

	touch := func(a domain.Animal) {
		a.UpdatedAt = ev.RecordedAt
		view.animals[a.ID] = a
		delta.UpsertAnimals = append(delta.UpsertAnimals, a)
	}

	if ev.AnimalID == "" {
		switch ev.Type {
		case domain.EventTreatment, domain.EventWeigh, domain.EventDeath, domain.EventSale, domain.EventStatusChange:
			return ProjectionDelta{}, fmt.Errorf("%w: %s applies to an animal", domain.ErrInvalidSubject, ev.Type)
		}
	} else if ev.Type != domain.EventBirth {
		if _, ok := view.animals[ev.AnimalID]; !ok {
			return ProjectionDelta{}, fmt.Errorf("animal %s: %w", ev.AnimalID, ErrNotFound)
		}
	}

	switch ev.Type {
	case domain.EventBirth:
		animal, ok := view.animals[ev.AnimalID]
		if !ok {
			var err error
			animal, err = animalFromBirth(ev)
			if err != nil {
				return ProjectionDelta{}, err
			}
		}
		view.animals[animal.ID] = animal
		delta.UpsertAnimals = append(delta.UpsertAnimals, animal)

	case domain.EventMovement:
		if ev.MobID != "" {
			mob, ok := view.mobs[ev.MobID]
			if !ok {
				return ProjectionDelta{}, fmt.Errorf("mob %s: %w", ev.MobID, ErrNotFound)
			}
			mob.PaddockID = ev.Movement.ToPaddockID
			mob.UpdatedAt = ev.RecordedAt
			view.mobs[mob.ID] = mob
			delta.UpdateMobs = append(delta.UpdateMobs, mob)
			break
		}
		if _, ok := view.mobs[ev.Movement.ToMobID]; !ok {
			return ProjectionDelta{}, fmt.Errorf("mob %s: %w", ev.Movement.ToMobID, ErrNotFound)
		}
		animal := view.animals[ev.AnimalID]
		animal.MobID = ev.Movement.ToMobID
		touch(animal)

	case domain.EventTreatment:
		window := domain.WHPWindow{
			MeatEnd: ev.Treatment.MeatWHPEnd,
			MilkEnd: ev.Treatment.MilkWHPEnd,
			ESIEnd:  ev.Treatment.ESIEnd,
		}
		animal := view.animals[ev.AnimalID]
		animal.WHPClearDate = domain.LaterDate(animal.WHPClearDate, window.LatestEnd())
		touch(animal)
		if end := window.LatestEnd(); end != nil {
			task, err := domain.NewTask(
				taskID(ev.ID, "whp"),
				domain.TaskWHPClearance,
				fmt.Sprintf("WHP clears for %s", animal.DisplayID()),
				animal.ID, "", *end, ev.ID, ev.RecordedAt,
			)
			if err != nil {
				return ProjectionDelta{}, err
			}
			delta.CreateTasks = append(delta.CreateTasks, task)
		}

	case domain.EventWeigh:
		animal := view.animals[ev.AnimalID]
		w := ev.Weigh.WeightKg
		animal.LatestWeightKg = &w
		touch(animal)
		if s.reweighDays > 0 {
			task, err := domain.NewTask(
				taskID(ev.ID, "reweigh"),
				domain.TaskReweigh,
				fmt.Sprintf("Re-weigh %s", animal.DisplayID()),
				animal.ID, "", ev.OccurredAt.AddDate(0, 0, s.reweighDays), ev.ID, ev.RecordedAt,
			)
			if err != nil {
				return ProjectionDelta{}, err
			}
			delta.CreateTasks = append(delta.CreateTasks, task)
		}

	case domain.EventDeath:
		animal := view.animals[ev.AnimalID]
		animal.Status = domain.StatusDead
		touch(animal)

	case domain.EventSale:
		animal := view.animals[ev.AnimalID]
		animal.Status = domain.StatusSold
		touch(animal)

	case domain.EventStatusChange:
		animal := view.animals[ev.AnimalID]
		animal.Status = ev.StatusChange.Status
		touch(animal)

	case domain.EventPregnancyTest, domain.EventJoining, domain.EventNote:
		// Recorded for history; no registry projection.
	}

	return delta, nil
}

// foldEvents folds a slice of events into the view in occurrence order
// and returns the tasks the fold generates. Animals are seeded from
// their birth payloads before the fold proper, so an entry dated before
// its subject's registration still finds the animal.
func (s *Service) foldEvents(view projectionView, events []domain.Event) ([]domain.Task, error) {
	domain.SortEvents(events)
	for _, ev := range events {
		if ev.Type != domain.EventBirth {
			continue
		}
		if _, ok := view.animals[ev.AnimalID]; ok {
			continue
		}
		animal, err := animalFromBirth(ev)
		if err != nil {
			return nil, fmt.Errorf("replay event %s: %w", ev.ID, err)
		}
		view.animals[animal.ID] = animal
	}

	var tasks []domain.Task
	for _, ev := range events {
		delta, err := s.project(view, ev)
		if err != nil {
			return nil, fmt.Errorf("replay event %s: %w", ev.ID, err)
		}
		tasks = append(tasks, delta.CreateTasks...)
	}
	return tasks, nil
}

func animalFromBirth(ev domain.Event) (domain.Animal, error) {
	p := ev.Birth
	return domain.NewAnimal(domain.AnimalInput{
		ID:          ev.AnimalID,
		EID:         p.EID,
		VisualTag:   p.VisualTag,
		Species:     p.Species,
		Breed:       p.Breed,
		Sex:         p.Sex,
		DateOfBirth: p.DateOfBirth,
		MobID:       p.MobID,
		DamID:       p.DamID,
		SireID:      p.SireID,
	}, ev.RecordedAt)
}

// taskID derives a stable task id from its source event, so a rebuild
// regenerates identical tasks.
func taskID(eventID, suffix string) string {
	return eventID + ":" + suffix
}
