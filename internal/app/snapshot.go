package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/saltbush/stockyard/internal/domain"
)

// SnapshotVersion defines the snapshot format identifier.
const SnapshotVersion = "stockyard.snapshot.v1"

// Snapshot is a portable JSON export of the whole store: reference
// entities, the full ledger, the projected registry, and tasks.
type Snapshot struct {
	Version    string            `json:"version"`
	ExportedAt time.Time         `json:"exported_at"`
	Paddocks   []SnapshotPaddock `json:"paddocks,omitempty"`
	Products   []SnapshotProduct `json:"products,omitempty"`
	Mobs       []SnapshotMob     `json:"mobs,omitempty"`
	Animals    []SnapshotAnimal  `json:"animals,omitempty"`
	Events     []SnapshotEvent   `json:"events,omitempty"`
	Tasks      []SnapshotTask    `json:"tasks,omitempty"`
}

// SnapshotPaddock mirrors a paddock for export.
type SnapshotPaddock struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	AreaHa      float64   `json:"area_ha,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SnapshotProduct mirrors a treatment product for export.
type SnapshotProduct struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	ActiveNumber string                `json:"active_number,omitempty"`
	MeatWHPDays  int                   `json:"meat_whp_days,omitempty"`
	MilkWHPDays  int                   `json:"milk_whp_days,omitempty"`
	ESIDays      int                   `json:"esi_days,omitempty"`
	DefaultDose  string                `json:"default_dose,omitempty"`
	DefaultRoute domain.TreatmentRoute `json:"default_route,omitempty"`
	Notes        string                `json:"notes,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// SnapshotMob mirrors a mob for export.
type SnapshotMob struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Species     domain.Species `json:"species"`
	Description string         `json:"description,omitempty"`
	PaddockID   string         `json:"paddock_id,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// SnapshotAnimal mirrors a projected animal for export. Derived fields
// travel with the snapshot so descriptive edits survive a round trip.
type SnapshotAnimal struct {
	ID             string              `json:"id"`
	EID            string              `json:"eid,omitempty"`
	VisualTag      string              `json:"visual_tag,omitempty"`
	Species        domain.Species      `json:"species"`
	Breed          string              `json:"breed,omitempty"`
	Sex            domain.Sex          `json:"sex"`
	DateOfBirth    *time.Time          `json:"date_of_birth,omitempty"`
	Status         domain.AnimalStatus `json:"status"`
	MobID          string              `json:"mob_id,omitempty"`
	DamID          string              `json:"dam_id,omitempty"`
	SireID         string              `json:"sire_id,omitempty"`
	Notes          string              `json:"notes,omitempty"`
	LatestWeightKg *float64            `json:"latest_weight_kg,omitempty"`
	WHPClearDate   *time.Time          `json:"whp_clear_date,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// SnapshotEvent mirrors a ledger event for export. Sequence is kept so
// replay order survives even for same-timestamp events.
type SnapshotEvent struct {
	ID         string           `json:"id"`
	Seq        int64            `json:"seq"`
	Type       domain.EventType `json:"type"`
	OccurredAt time.Time        `json:"occurred_at"`
	RecordedAt time.Time        `json:"recorded_at"`
	AnimalID   string           `json:"animal_id,omitempty"`
	MobID      string           `json:"mob_id,omitempty"`
	Note       string           `json:"note,omitempty"`
	RecordedBy string           `json:"recorded_by,omitempty"`

	Movement      *domain.MovementPayload      `json:"movement,omitempty"`
	Treatment     *domain.TreatmentPayload     `json:"treatment,omitempty"`
	Weigh         *domain.WeighPayload         `json:"weigh,omitempty"`
	Death         *domain.DeathPayload         `json:"death,omitempty"`
	Sale          *domain.SalePayload          `json:"sale,omitempty"`
	Birth         *domain.BirthPayload         `json:"birth,omitempty"`
	PregnancyTest *domain.PregnancyTestPayload `json:"pregnancy_test,omitempty"`
	Joining       *domain.JoiningPayload       `json:"joining,omitempty"`
	StatusChange  *domain.StatusChangePayload  `json:"status_change,omitempty"`
}

// SnapshotTask mirrors a task for export.
type SnapshotTask struct {
	ID            string            `json:"id"`
	Kind          domain.TaskKind   `json:"kind"`
	Title         string            `json:"title"`
	AnimalID      string            `json:"animal_id,omitempty"`
	MobID         string            `json:"mob_id,omitempty"`
	DueAt         time.Time         `json:"due_at"`
	Status        domain.TaskStatus `json:"status"`
	SourceEventID string            `json:"source_event_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// ExportSnapshot serializes the whole store into a portable snapshot.
func (s *Service) ExportSnapshot(ctx context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{Version: SnapshotVersion, ExportedAt: s.clock().UTC()}

	paddocks, err := s.repo.ListPaddocks(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	for _, p := range paddocks {
		snap.Paddocks = append(snap.Paddocks, SnapshotPaddock(p))
	}
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	for _, p := range products {
		snap.Products = append(snap.Products, SnapshotProduct(p))
	}
	mobs, err := s.repo.ListMobs(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	for _, m := range mobs {
		snap.Mobs = append(snap.Mobs, SnapshotMob(m))
	}
	animals, err := s.repo.ListAnimals(ctx, AnimalFilter{})
	if err != nil {
		return Snapshot{}, err
	}
	for _, a := range animals {
		snap.Animals = append(snap.Animals, SnapshotAnimal(a))
	}
	events, err := s.repo.ListEvents(ctx, EventFilter{})
	if err != nil {
		return Snapshot{}, err
	}
	domain.SortEvents(events)
	for _, ev := range events {
		snap.Events = append(snap.Events, snapshotEventFromDomain(ev))
	}
	tasks, err := s.repo.ListTasks(ctx, TaskFilter{})
	if err != nil {
		return Snapshot{}, err
	}
	for _, t := range tasks {
		snap.Tasks = append(snap.Tasks, SnapshotTask(t))
	}

	snap.sort()
	return snap, nil
}

// ImportSnapshot replaces the whole store with the snapshot contents.
// The store is reset first; a failed import leaves it empty rather than
// mixed.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	for _, p := range snap.Paddocks {
		if err := s.repo.CreatePaddock(ctx, domain.Paddock(p)); err != nil {
			return fmt.Errorf("import paddock %s: %w", p.ID, err)
		}
	}
	for _, p := range snap.Products {
		if err := s.repo.CreateProduct(ctx, domain.Product(p)); err != nil {
			return fmt.Errorf("import product %s: %w", p.ID, err)
		}
	}
	for _, m := range snap.Mobs {
		if err := s.repo.CreateMob(ctx, domain.Mob(m)); err != nil {
			return fmt.Errorf("import mob %s: %w", m.ID, err)
		}
	}

	events := make([]domain.Event, 0, len(snap.Events))
	for _, ev := range snap.Events {
		events = append(events, domainEventFromSnapshot(ev))
	}
	domain.SortEvents(events)
	if err := s.repo.ImportEvents(ctx, events); err != nil {
		return fmt.Errorf("import ledger: %w", err)
	}

	for _, a := range snap.Animals {
		if err := s.repo.CreateAnimal(ctx, domain.Animal(a)); err != nil {
			return fmt.Errorf("import animal %s: %w", a.ID, err)
		}
	}
	for _, t := range snap.Tasks {
		if err := s.repo.CreateTask(ctx, domain.Task(t)); err != nil {
			return fmt.Errorf("import task %s: %w", t.ID, err)
		}
	}
	return nil
}

// Validate validates the snapshot before anything is written.
func (s *Snapshot) Validate() error {
	if s.Version != SnapshotVersion {
		return fmt.Errorf("%w: unsupported version %q", ErrInvalidSnapshot, s.Version)
	}
	seen := make(map[string]bool, len(s.Events))
	for _, ev := range s.Events {
		if ev.ID == "" {
			return fmt.Errorf("%w: event without id", ErrInvalidSnapshot)
		}
		if seen[ev.ID] {
			return fmt.Errorf("%w: duplicate event %s", ErrInvalidSnapshot, ev.ID)
		}
		seen[ev.ID] = true
		if !ev.Type.Valid() {
			return fmt.Errorf("%w: event %s has unknown type %q", ErrInvalidSnapshot, ev.ID, ev.Type)
		}
		if (ev.AnimalID == "") == (ev.MobID == "") {
			return fmt.Errorf("%w: event %s needs exactly one subject", ErrInvalidSnapshot, ev.ID)
		}
	}
	for _, a := range s.Animals {
		if a.ID == "" {
			return fmt.Errorf("%w: animal without id", ErrInvalidSnapshot)
		}
		if a.EID == "" && a.VisualTag == "" {
			return fmt.Errorf("%w: animal %s has no identity", ErrInvalidSnapshot, a.ID)
		}
	}
	return nil
}

// sort puts every section into a stable order so exports diff cleanly.
func (s *Snapshot) sort() {
	sort.Slice(s.Paddocks, func(i, j int) bool { return s.Paddocks[i].ID < s.Paddocks[j].ID })
	sort.Slice(s.Products, func(i, j int) bool { return s.Products[i].ID < s.Products[j].ID })
	sort.Slice(s.Mobs, func(i, j int) bool { return s.Mobs[i].ID < s.Mobs[j].ID })
	sort.Slice(s.Animals, func(i, j int) bool { return s.Animals[i].ID < s.Animals[j].ID })
	sort.Slice(s.Tasks, func(i, j int) bool { return s.Tasks[i].ID < s.Tasks[j].ID })
}

func snapshotEventFromDomain(ev domain.Event) SnapshotEvent {
	return SnapshotEvent{
		ID:            ev.ID,
		Seq:           ev.Seq,
		Type:          ev.Type,
		OccurredAt:    ev.OccurredAt,
		RecordedAt:    ev.RecordedAt,
		AnimalID:      ev.AnimalID,
		MobID:         ev.MobID,
		Note:          ev.Note,
		RecordedBy:    ev.RecordedBy,
		Movement:      ev.Movement,
		Treatment:     ev.Treatment,
		Weigh:         ev.Weigh,
		Death:         ev.Death,
		Sale:          ev.Sale,
		Birth:         ev.Birth,
		PregnancyTest: ev.PregnancyTest,
		Joining:       ev.Joining,
		StatusChange:  ev.StatusChange,
	}
}

func domainEventFromSnapshot(ev SnapshotEvent) domain.Event {
	return domain.Event{
		ID:            ev.ID,
		Seq:           ev.Seq,
		Type:          ev.Type,
		OccurredAt:    ev.OccurredAt,
		RecordedAt:    ev.RecordedAt,
		AnimalID:      ev.AnimalID,
		MobID:         ev.MobID,
		Note:          ev.Note,
		RecordedBy:    ev.RecordedBy,
		Movement:      ev.Movement,
		Treatment:     ev.Treatment,
		Weigh:         ev.Weigh,
		Death:         ev.Death,
		Sale:          ev.Sale,
		Birth:         ev.Birth,
		PregnancyTest: ev.PregnancyTest,
		Joining:       ev.Joining,
		StatusChange:  ev.StatusChange,
	}
}
