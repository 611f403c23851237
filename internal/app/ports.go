package app

import (
	"context"
	"time"

	"github.com/saltbush/stockyard/internal/domain"
)

// EventFilter narrows a ledger query. Zero-value fields match everything.
type EventFilter struct {
	AnimalID string
	MobID    string
	Types    []domain.EventType
	From     *time.Time
	To       *time.Time
	Limit    int
}

// AnimalFilter narrows an animal registry query.
type AnimalFilter struct {
	Statuses []domain.AnimalStatus
	MobID    string
	Species  domain.Species
}

// TaskFilter narrows a task query.
type TaskFilter struct {
	Statuses  []domain.TaskStatus
	AnimalID  string
	DueBefore *time.Time
}

// ProjectionDelta carries the registry changes an event implies, so a
// store can persist the event and its projection in one transaction.
type ProjectionDelta struct {
	UpsertAnimals []domain.Animal
	UpdateMobs    []domain.Mob
	CreateTasks   []domain.Task
}

// Repository persists the registry, the event ledger, and tasks.
type Repository interface {
	CreateAnimal(context.Context, domain.Animal) error
	UpdateAnimal(context.Context, domain.Animal) error
	GetAnimal(context.Context, string) (domain.Animal, error)
	// FindAnimal resolves an EID or visual tag to an animal.
	FindAnimal(context.Context, string) (domain.Animal, error)
	ListAnimals(context.Context, AnimalFilter) ([]domain.Animal, error)

	CreateMob(context.Context, domain.Mob) error
	UpdateMob(context.Context, domain.Mob) error
	GetMob(context.Context, string) (domain.Mob, error)
	ListMobs(context.Context) ([]domain.Mob, error)

	CreatePaddock(context.Context, domain.Paddock) error
	UpdatePaddock(context.Context, domain.Paddock) error
	GetPaddock(context.Context, string) (domain.Paddock, error)
	ListPaddocks(context.Context) ([]domain.Paddock, error)

	CreateProduct(context.Context, domain.Product) error
	UpdateProduct(context.Context, domain.Product) error
	GetProduct(context.Context, string) (domain.Product, error)
	ListProducts(context.Context) ([]domain.Product, error)

	// AppendEvent persists the event and its projection delta in one
	// transaction and returns the event with its ledger sequence.
	AppendEvent(context.Context, domain.Event, ProjectionDelta) (domain.Event, error)
	// ImportEvents bulk-inserts events in slice order, reassigning
	// sequence numbers from one.
	ImportEvents(context.Context, []domain.Event) error
	ListEvents(context.Context, EventFilter) ([]domain.Event, error)

	CreateTask(context.Context, domain.Task) error
	UpdateTask(context.Context, domain.Task) error
	GetTask(context.Context, string) (domain.Task, error)
	ListTasks(context.Context, TaskFilter) ([]domain.Task, error)

	// ReplaceProjection rewrites the derived state (animals, mob
	// placements, open tasks) in one transaction, leaving the ledger
	// and reference entities untouched.
	ReplaceProjection(ctx context.Context, animals []domain.Animal, mobs []domain.Mob, tasks []domain.Task) error
	// Reset clears every table. Used when importing a snapshot.
	Reset(context.Context) error
}

// BackupStore is implemented by stores backed by a single database file
// that can be snapshotted with a plain copy. Both operations run under
// the service's exclusive lock, so no append is in flight.
type BackupStore interface {
	// Backup checkpoints pending writes and copies the database file to
	// the destination path.
	Backup(ctx context.Context, dst string) error
	// Restore replaces the live database file with the backup and
	// reopens the store.
	Restore(ctx context.Context, src string) error
}
