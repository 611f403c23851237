package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/saltbush/stockyard/internal/domain"
)

type fakeRepo struct {
	animals  map[string]domain.Animal
	mobs     map[string]domain.Mob
	paddocks map[string]domain.Paddock
	products map[string]domain.Product
	events   []domain.Event
	tasks    map[string]domain.Task
	nextSeq  int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		animals:  map[string]domain.Animal{},
		mobs:     map[string]domain.Mob{},
		paddocks: map[string]domain.Paddock{},
		products: map[string]domain.Product{},
		tasks:    map[string]domain.Task{},
	}
}

func (f *fakeRepo) CreateAnimal(_ context.Context, a domain.Animal) error {
	f.animals[a.ID] = a
	return nil
}

func (f *fakeRepo) UpdateAnimal(_ context.Context, a domain.Animal) error {
	if _, ok := f.animals[a.ID]; !ok {
		return ErrNotFound
	}
	f.animals[a.ID] = a
	return nil
}

func (f *fakeRepo) GetAnimal(_ context.Context, id string) (domain.Animal, error) {
	a, ok := f.animals[id]
	if !ok {
		return domain.Animal{}, ErrNotFound
	}
	return a, nil
}

func (f *fakeRepo) FindAnimal(_ context.Context, ref string) (domain.Animal, error) {
	for _, a := range f.animals {
		if a.EID == ref || a.VisualTag == ref {
			return a, nil
		}
	}
	return domain.Animal{}, ErrNotFound
}

func (f *fakeRepo) ListAnimals(_ context.Context, filter AnimalFilter) ([]domain.Animal, error) {
	out := make([]domain.Animal, 0, len(f.animals))
	for _, a := range f.animals {
		if filter.MobID != "" && a.MobID != filter.MobID {
			continue
		}
		if filter.Species != "" && a.Species != filter.Species {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, a.Status) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func containsStatus(statuses []domain.AnimalStatus, s domain.AnimalStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func (f *fakeRepo) CreateMob(_ context.Context, m domain.Mob) error {
	f.mobs[m.ID] = m
	return nil
}

func (f *fakeRepo) UpdateMob(_ context.Context, m domain.Mob) error {
	if _, ok := f.mobs[m.ID]; !ok {
		return ErrNotFound
	}
	f.mobs[m.ID] = m
	return nil
}

func (f *fakeRepo) GetMob(_ context.Context, id string) (domain.Mob, error) {
	m, ok := f.mobs[id]
	if !ok {
		return domain.Mob{}, ErrNotFound
	}
	return m, nil
}

func (f *fakeRepo) ListMobs(_ context.Context) ([]domain.Mob, error) {
	out := make([]domain.Mob, 0, len(f.mobs))
	for _, m := range f.mobs {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) CreatePaddock(_ context.Context, p domain.Paddock) error {
	f.paddocks[p.ID] = p
	return nil
}

func (f *fakeRepo) UpdatePaddock(_ context.Context, p domain.Paddock) error {
	if _, ok := f.paddocks[p.ID]; !ok {
		return ErrNotFound
	}
	f.paddocks[p.ID] = p
	return nil
}

func (f *fakeRepo) GetPaddock(_ context.Context, id string) (domain.Paddock, error) {
	p, ok := f.paddocks[id]
	if !ok {
		return domain.Paddock{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) ListPaddocks(_ context.Context) ([]domain.Paddock, error) {
	out := make([]domain.Paddock, 0, len(f.paddocks))
	for _, p := range f.paddocks {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) CreateProduct(_ context.Context, p domain.Product) error {
	f.products[p.ID] = p
	return nil
}

func (f *fakeRepo) UpdateProduct(_ context.Context, p domain.Product) error {
	if _, ok := f.products[p.ID]; !ok {
		return ErrNotFound
	}
	f.products[p.ID] = p
	return nil
}

func (f *fakeRepo) GetProduct(_ context.Context, id string) (domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return domain.Product{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) ListProducts(_ context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) AppendEvent(ctx context.Context, ev domain.Event, delta ProjectionDelta) (domain.Event, error) {
	f.nextSeq++
	ev.Seq = f.nextSeq
	f.events = append(f.events, ev)
	for _, a := range delta.UpsertAnimals {
		f.animals[a.ID] = a
	}
	for _, m := range delta.UpdateMobs {
		f.mobs[m.ID] = m
	}
	for _, t := range delta.CreateTasks {
		f.tasks[t.ID] = t
	}
	return ev, nil
}

func (f *fakeRepo) ImportEvents(_ context.Context, events []domain.Event) error {
	for _, ev := range events {
		f.nextSeq++
		ev.Seq = f.nextSeq
		f.events = append(f.events, ev)
	}
	return nil
}

func (f *fakeRepo) ListEvents(_ context.Context, filter EventFilter) ([]domain.Event, error) {
	var out []domain.Event
	for _, ev := range f.events {
		if filter.AnimalID != "" && ev.AnimalID != filter.AnimalID {
			continue
		}
		if filter.MobID != "" && ev.MobID != filter.MobID {
			continue
		}
		if len(filter.Types) > 0 && !containsType(filter.Types, ev.Type) {
			continue
		}
		if filter.From != nil && ev.OccurredAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && ev.OccurredAt.After(*filter.To) {
			continue
		}
		out = append(out, ev)
	}
	domain.SortEvents(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func containsType(types []domain.EventType, t domain.EventType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func (f *fakeRepo) CreateTask(_ context.Context, t domain.Task) error {
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeRepo) UpdateTask(_ context.Context, t domain.Task) error {
	if _, ok := f.tasks[t.ID]; !ok {
		return ErrNotFound
	}
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeRepo) GetTask(_ context.Context, id string) (domain.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return domain.Task{}, ErrNotFound
	}
	return t, nil
}

func (f *fakeRepo) ListTasks(_ context.Context, filter TaskFilter) ([]domain.Task, error) {
	var out []domain.Task
	for _, t := range f.tasks {
		if filter.AnimalID != "" && t.AnimalID != filter.AnimalID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsTaskStatus(filter.Statuses, t.Status) {
			continue
		}
		if filter.DueBefore != nil && t.DueAt.After(*filter.DueBefore) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func containsTaskStatus(statuses []domain.TaskStatus, s domain.TaskStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func (f *fakeRepo) ReplaceProjection(_ context.Context, animals []domain.Animal, mobs []domain.Mob, tasks []domain.Task) error {
	f.animals = map[string]domain.Animal{}
	for _, a := range animals {
		f.animals[a.ID] = a
	}
	for _, m := range mobs {
		f.mobs[m.ID] = m
	}
	f.tasks = map[string]domain.Task{}
	for _, t := range tasks {
		f.tasks[t.ID] = t
	}
	return nil
}

func (f *fakeRepo) Reset(_ context.Context) error {
	*f = *newFakeRepo()
	return nil
}

// newTestService wires a service with a deterministic clock and id
// sequence over a fake in-memory repository.
func newTestService(repo *fakeRepo) (*Service, *time.Time) {
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	current := &now
	n := 0
	idGen := func() string {
		n++
		return fmt.Sprintf("id-%03d", n)
	}
	svc := NewService(repo, idGen, func() time.Time { return *current }, ServiceConfig{})
	return svc, current
}
