package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/saltbush/stockyard/internal/app"
	"github.com/saltbush/stockyard/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository persists the registry, ledger, and tasks in one SQLite
// file. The events table is append-only; its AUTOINCREMENT rowid is the
// ledger sequence.
type Repository struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database file at path.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	repo := &Repository{db: db, path: path}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens a throwaway store. Backup is unsupported.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return db, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS paddocks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			area_ha REAL NOT NULL DEFAULT 0,
			description TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			active_number TEXT NOT NULL DEFAULT '',
			meat_whp_days INTEGER NOT NULL DEFAULT 0,
			milk_whp_days INTEGER NOT NULL DEFAULT 0,
			esi_days INTEGER NOT NULL DEFAULT 0,
			default_dose TEXT NOT NULL DEFAULT '',
			default_route TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS mobs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			species TEXT NOT NULL DEFAULT 'cattle',
			description TEXT NOT NULL DEFAULT '',
			paddock_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS animals (
			id TEXT PRIMARY KEY,
			eid TEXT NOT NULL DEFAULT '',
			visual_tag TEXT NOT NULL DEFAULT '',
			species TEXT NOT NULL DEFAULT 'cattle',
			breed TEXT NOT NULL DEFAULT '',
			sex TEXT NOT NULL DEFAULT 'female',
			date_of_birth TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			mob_id TEXT NOT NULL DEFAULT '',
			dam_id TEXT NOT NULL DEFAULT '',
			sire_id TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			latest_weight_kg REAL,
			whp_clear_date TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_animals_eid ON animals(eid) WHERE eid != '';`,
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			event_type TEXT NOT NULL,
			occurred_at TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			animal_id TEXT NOT NULL DEFAULT '',
			mob_id TEXT NOT NULL DEFAULT '',
			note TEXT NOT NULL DEFAULT '',
			recorded_by TEXT NOT NULL DEFAULT '',
			payload_json TEXT NOT NULL DEFAULT '{}'
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_animal ON events(animal_id, occurred_at, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type, occurred_at, seq);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			animal_id TEXT NOT NULL DEFAULT '',
			mob_id TEXT NOT NULL DEFAULT '',
			due_at TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'open',
			source_event_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// CreateAnimal inserts an animal registry row.
func (r *Repository) CreateAnimal(ctx context.Context, a domain.Animal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO animals (id, eid, visual_tag, species, breed, sex, date_of_birth, status, mob_id, dam_id, sire_id, notes, latest_weight_kg, whp_clear_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, animalArgs(a)...)
	return err
}

// UpdateAnimal rewrites an animal registry row.
func (r *Repository) UpdateAnimal(ctx context.Context, a domain.Animal) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE animals
		SET eid = ?, visual_tag = ?, species = ?, breed = ?, sex = ?, date_of_birth = ?, status = ?, mob_id = ?, dam_id = ?, sire_id = ?, notes = ?, latest_weight_kg = ?, whp_clear_date = ?, updated_at = ?
		WHERE id = ?
	`, a.EID, a.VisualTag, string(a.Species), a.Breed, string(a.Sex), nullableTS(a.DateOfBirth), string(a.Status), a.MobID, a.DamID, a.SireID, a.Notes, nullableFloat(a.LatestWeightKg), nullableTS(a.WHPClearDate), ts(a.UpdatedAt), a.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetAnimal fetches an animal by internal id.
func (r *Repository) GetAnimal(ctx context.Context, id string) (domain.Animal, error) {
	row := r.db.QueryRowContext(ctx, selectAnimal+` WHERE id = ?`, id)
	return scanAnimal(row)
}

// FindAnimal resolves an EID or visual tag to an animal.
func (r *Repository) FindAnimal(ctx context.Context, ref string) (domain.Animal, error) {
	row := r.db.QueryRowContext(ctx, selectAnimal+` WHERE eid = ? OR visual_tag = ? ORDER BY created_at LIMIT 1`, ref, ref)
	return scanAnimal(row)
}

// ListAnimals lists animals matching the filter, ordered by id.
func (r *Repository) ListAnimals(ctx context.Context, filter app.AnimalFilter) ([]domain.Animal, error) {
	query := selectAnimal
	var (
		clauses []string
		args    []any
	)
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, `status IN (`+placeholders(len(filter.Statuses))+`)`)
		for _, s := range filter.Statuses {
			args = append(args, string(s))
		}
	}
	if filter.MobID != "" {
		clauses = append(clauses, `mob_id = ?`)
		args = append(args, filter.MobID)
	}
	if filter.Species != "" {
		clauses = append(clauses, `species = ?`)
		args = append(args, string(filter.Species))
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, ` AND `)
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Animal
	for rows.Next() {
		a, err := scanAnimal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateMob inserts a mob.
func (r *Repository) CreateMob(ctx context.Context, m domain.Mob) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mobs (id, name, species, description, paddock_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Name, string(m.Species), m.Description, m.PaddockID, ts(m.CreatedAt), ts(m.UpdatedAt))
	return err
}

// UpdateMob rewrites a mob.
func (r *Repository) UpdateMob(ctx context.Context, m domain.Mob) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE mobs SET name = ?, species = ?, description = ?, paddock_id = ?, updated_at = ? WHERE id = ?
	`, m.Name, string(m.Species), m.Description, m.PaddockID, ts(m.UpdatedAt), m.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetMob fetches a mob by id.
func (r *Repository) GetMob(ctx context.Context, id string) (domain.Mob, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, species, description, paddock_id, created_at, updated_at FROM mobs WHERE id = ?`, id)
	return scanMob(row)
}

// ListMobs lists all mobs ordered by id.
func (r *Repository) ListMobs(ctx context.Context) ([]domain.Mob, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, species, description, paddock_id, created_at, updated_at FROM mobs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Mob
	for rows.Next() {
		m, err := scanMob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreatePaddock inserts a paddock.
func (r *Repository) CreatePaddock(ctx context.Context, p domain.Paddock) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO paddocks (id, name, area_ha, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.AreaHa, p.Description, ts(p.CreatedAt), ts(p.UpdatedAt))
	return err
}

// UpdatePaddock rewrites a paddock.
func (r *Repository) UpdatePaddock(ctx context.Context, p domain.Paddock) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE paddocks SET name = ?, area_ha = ?, description = ?, updated_at = ? WHERE id = ?
	`, p.Name, p.AreaHa, p.Description, ts(p.UpdatedAt), p.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetPaddock fetches a paddock by id.
func (r *Repository) GetPaddock(ctx context.Context, id string) (domain.Paddock, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, area_ha, description, created_at, updated_at FROM paddocks WHERE id = ?`, id)
	return scanPaddock(row)
}

// ListPaddocks lists all paddocks ordered by id.
func (r *Repository) ListPaddocks(ctx context.Context) ([]domain.Paddock, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, area_ha, description, created_at, updated_at FROM paddocks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Paddock
	for rows.Next() {
		p, err := scanPaddock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateProduct inserts a product.
func (r *Repository) CreateProduct(ctx context.Context, p domain.Product) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, name, active_number, meat_whp_days, milk_whp_days, esi_days, default_dose, default_route, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.ActiveNumber, p.MeatWHPDays, p.MilkWHPDays, p.ESIDays, p.DefaultDose, string(p.DefaultRoute), p.Notes, ts(p.CreatedAt), ts(p.UpdatedAt))
	return err
}

// UpdateProduct rewrites a product.
func (r *Repository) UpdateProduct(ctx context.Context, p domain.Product) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products SET name = ?, active_number = ?, meat_whp_days = ?, milk_whp_days = ?, esi_days = ?, default_dose = ?, default_route = ?, notes = ?, updated_at = ? WHERE id = ?
	`, p.Name, p.ActiveNumber, p.MeatWHPDays, p.MilkWHPDays, p.ESIDays, p.DefaultDose, string(p.DefaultRoute), p.Notes, ts(p.UpdatedAt), p.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetProduct fetches a product by id.
func (r *Repository) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, active_number, meat_whp_days, milk_whp_days, esi_days, default_dose, default_route, notes, created_at, updated_at FROM products WHERE id = ?`, id)
	return scanProduct(row)
}

// ListProducts lists all products ordered by id.
func (r *Repository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, active_number, meat_whp_days, milk_whp_days, esi_days, default_dose, default_route, notes, created_at, updated_at FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AppendEvent inserts the event and applies its projection delta in one
// transaction. On any failure the ledger gains nothing.
func (r *Repository) AppendEvent(ctx context.Context, ev domain.Event, delta app.ProjectionDelta) (domain.Event, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Event{}, err
	}
	defer func() { _ = tx.Rollback() }()

	seq, err := insertEvent(ctx, tx, ev)
	if err != nil {
		return domain.Event{}, err
	}
	ev.Seq = seq

	for _, a := range delta.UpsertAnimals {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO animals (id, eid, visual_tag, species, breed, sex, date_of_birth, status, mob_id, dam_id, sire_id, notes, latest_weight_kg, whp_clear_date, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, animalArgs(a)...); err != nil {
			return domain.Event{}, fmt.Errorf("project animal %s: %w", a.ID, err)
		}
	}
	for _, m := range delta.UpdateMobs {
		if _, err := tx.ExecContext(ctx, `
			UPDATE mobs SET paddock_id = ?, updated_at = ? WHERE id = ?
		`, m.PaddockID, ts(m.UpdatedAt), m.ID); err != nil {
			return domain.Event{}, fmt.Errorf("project mob %s: %w", m.ID, err)
		}
	}
	for _, t := range delta.CreateTasks {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO tasks (id, kind, title, animal_id, mob_id, due_at, status, source_event_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, taskArgs(t)...); err != nil {
			return domain.Event{}, fmt.Errorf("project task %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Event{}, err
	}
	return ev, nil
}

// ImportEvents bulk-inserts events in slice order. Sequence numbers are
// reassigned by the autoincrement column.
func (r *Repository) ImportEvents(ctx context.Context, events []domain.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, ev := range events {
		if _, err := insertEvent(ctx, tx, ev); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insertEvent(ctx context.Context, tx *sql.Tx, ev domain.Event) (int64, error) {
	payloadJSON, err := json.Marshal(eventPayload{
		Movement:      ev.Movement,
		Treatment:     ev.Treatment,
		Weigh:         ev.Weigh,
		Death:         ev.Death,
		Sale:          ev.Sale,
		Birth:         ev.Birth,
		PregnancyTest: ev.PregnancyTest,
		Joining:       ev.Joining,
		StatusChange:  ev.StatusChange,
	})
	if err != nil {
		return 0, fmt.Errorf("encode payload: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO events (id, event_type, occurred_at, recorded_at, animal_id, mob_id, note, recorded_by, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, string(ev.Type), ts(ev.OccurredAt), ts(ev.RecordedAt), ev.AnimalID, ev.MobID, ev.Note, ev.RecordedBy, string(payloadJSON))
	if err != nil {
		return 0, fmt.Errorf("append event %s: %w", ev.ID, err)
	}
	return res.LastInsertId()
}

// ListEvents lists ledger events matching the filter in replay order.
func (r *Repository) ListEvents(ctx context.Context, filter app.EventFilter) ([]domain.Event, error) {
	query := `SELECT seq, id, event_type, occurred_at, recorded_at, animal_id, mob_id, note, recorded_by, payload_json FROM events`
	var (
		clauses []string
		args    []any
	)
	if filter.AnimalID != "" {
		clauses = append(clauses, `animal_id = ?`)
		args = append(args, filter.AnimalID)
	}
	if filter.MobID != "" {
		clauses = append(clauses, `mob_id = ?`)
		args = append(args, filter.MobID)
	}
	if len(filter.Types) > 0 {
		clauses = append(clauses, `event_type IN (`+placeholders(len(filter.Types))+`)`)
		for _, t := range filter.Types {
			args = append(args, string(t))
		}
	}
	if filter.From != nil {
		clauses = append(clauses, `occurred_at >= ?`)
		args = append(args, ts(*filter.From))
	}
	if filter.To != nil {
		clauses = append(clauses, `occurred_at <= ?`)
		args = append(args, ts(*filter.To))
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, ` AND `)
	}
	query += ` ORDER BY occurred_at, seq`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// CreateTask inserts a task.
func (r *Repository) CreateTask(ctx context.Context, t domain.Task) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (id, kind, title, animal_id, mob_id, due_at, status, source_event_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, taskArgs(t)...)
	return err
}

// UpdateTask rewrites a task.
func (r *Repository) UpdateTask(ctx context.Context, t domain.Task) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET kind = ?, title = ?, animal_id = ?, mob_id = ?, due_at = ?, status = ?, source_event_id = ?, updated_at = ? WHERE id = ?
	`, string(t.Kind), t.Title, t.AnimalID, t.MobID, ts(t.DueAt), string(t.Status), t.SourceEventID, ts(t.UpdatedAt), t.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetTask fetches a task by id.
func (r *Repository) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, kind, title, animal_id, mob_id, due_at, status, source_event_id, created_at, updated_at FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

// ListTasks lists tasks matching the filter ordered by due date then id.
func (r *Repository) ListTasks(ctx context.Context, filter app.TaskFilter) ([]domain.Task, error) {
	query := `SELECT id, kind, title, animal_id, mob_id, due_at, status, source_event_id, created_at, updated_at FROM tasks`
	var (
		clauses []string
		args    []any
	)
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, `status IN (`+placeholders(len(filter.Statuses))+`)`)
		for _, s := range filter.Statuses {
			args = append(args, string(s))
		}
	}
	if filter.AnimalID != "" {
		clauses = append(clauses, `animal_id = ?`)
		args = append(args, filter.AnimalID)
	}
	if filter.DueBefore != nil {
		clauses = append(clauses, `due_at <= ?`)
		args = append(args, ts(*filter.DueBefore))
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, ` AND `)
	}
	query += ` ORDER BY due_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ReplaceProjection rewrites every derived row in one transaction. The
// ledger and reference tables are untouched.
func (r *Repository) ReplaceProjection(ctx context.Context, animals []domain.Animal, mobs []domain.Mob, tasks []domain.Task) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM animals`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return err
	}
	for _, a := range animals {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO animals (id, eid, visual_tag, species, breed, sex, date_of_birth, status, mob_id, dam_id, sire_id, notes, latest_weight_kg, whp_clear_date, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, animalArgs(a)...); err != nil {
			return fmt.Errorf("replace animal %s: %w", a.ID, err)
		}
	}
	for _, m := range mobs {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO mobs (id, name, species, description, paddock_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, m.ID, m.Name, string(m.Species), m.Description, m.PaddockID, ts(m.CreatedAt), ts(m.UpdatedAt)); err != nil {
			return fmt.Errorf("replace mob %s: %w", m.ID, err)
		}
	}
	for _, t := range tasks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (id, kind, title, animal_id, mob_id, due_at, status, source_event_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, taskArgs(t)...); err != nil {
			return fmt.Errorf("replace task %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

// Reset clears every table.
func (r *Repository) Reset(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"events", "tasks", "animals", "mobs", "products", "paddocks"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	// sqlite_sequence only exists once an AUTOINCREMENT insert has run.
	if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = 'events'`); err != nil && !strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("reset ledger sequence: %w", err)
	}
	return tx.Commit()
}

// eventPayload is the stored JSON shape of an event's variant fields.
// At most one field is non-nil.
type eventPayload struct {
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

const selectAnimal = `SELECT id, eid, visual_tag, species, breed, sex, date_of_birth, status, mob_id, dam_id, sire_id, notes, latest_weight_kg, whp_clear_date, created_at, updated_at FROM animals`

func animalArgs(a domain.Animal) []any {
	return []any{
		a.ID, a.EID, a.VisualTag, string(a.Species), a.Breed, string(a.Sex),
		nullableTS(a.DateOfBirth), string(a.Status), a.MobID, a.DamID, a.SireID,
		a.Notes, nullableFloat(a.LatestWeightKg), nullableTS(a.WHPClearDate),
		ts(a.CreatedAt), ts(a.UpdatedAt),
	}
}

func taskArgs(t domain.Task) []any {
	return []any{
		t.ID, string(t.Kind), t.Title, t.AnimalID, t.MobID, ts(t.DueAt),
		string(t.Status), t.SourceEventID, ts(t.CreatedAt), ts(t.UpdatedAt),
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnimal(s scanner) (domain.Animal, error) {
	var (
		a          domain.Animal
		species    string
		sex        string
		status     string
		dobRaw     sql.NullString
		weightRaw  sql.NullFloat64
		whpRaw     sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&a.ID, &a.EID, &a.VisualTag, &species, &a.Breed, &sex, &dobRaw, &status, &a.MobID, &a.DamID, &a.SireID, &a.Notes, &weightRaw, &whpRaw, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Animal{}, app.ErrNotFound
		}
		return domain.Animal{}, err
	}
	a.Species = domain.Species(species)
	a.Sex = domain.Sex(sex)
	a.Status = domain.AnimalStatus(status)
	a.DateOfBirth = parseNullTS(dobRaw)
	if weightRaw.Valid {
		w := weightRaw.Float64
		a.LatestWeightKg = &w
	}
	a.WHPClearDate = parseNullTS(whpRaw)
	a.CreatedAt = parseTS(createdRaw)
	a.UpdatedAt = parseTS(updatedRaw)
	return a, nil
}

func scanMob(s scanner) (domain.Mob, error) {
	var (
		m          domain.Mob
		species    string
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&m.ID, &m.Name, &species, &m.Description, &m.PaddockID, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Mob{}, app.ErrNotFound
		}
		return domain.Mob{}, err
	}
	m.Species = domain.Species(species)
	m.CreatedAt = parseTS(createdRaw)
	m.UpdatedAt = parseTS(updatedRaw)
	return m, nil
}

func scanPaddock(s scanner) (domain.Paddock, error) {
	var (
		p          domain.Paddock
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&p.ID, &p.Name, &p.AreaHa, &p.Description, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Paddock{}, app.ErrNotFound
		}
		return domain.Paddock{}, err
	}
	p.CreatedAt = parseTS(createdRaw)
	p.UpdatedAt = parseTS(updatedRaw)
	return p, nil
}

func scanProduct(s scanner) (domain.Product, error) {
	var (
		p          domain.Product
		route      string
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&p.ID, &p.Name, &p.ActiveNumber, &p.MeatWHPDays, &p.MilkWHPDays, &p.ESIDays, &p.DefaultDose, &route, &p.Notes, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, app.ErrNotFound
		}
		return domain.Product{}, err
	}
	p.DefaultRoute = domain.TreatmentRoute(route)
	p.CreatedAt = parseTS(createdRaw)
	p.UpdatedAt = parseTS(updatedRaw)
	return p, nil
}

func scanEvent(s scanner) (domain.Event, error) {
	var (
		ev          domain.Event
		typeRaw     string
		occurredRaw string
		recordedRaw string
		payloadRaw  string
	)
	if err := s.Scan(&ev.Seq, &ev.ID, &typeRaw, &occurredRaw, &recordedRaw, &ev.AnimalID, &ev.MobID, &ev.Note, &ev.RecordedBy, &payloadRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Event{}, app.ErrNotFound
		}
		return domain.Event{}, err
	}
	ev.Type = domain.EventType(typeRaw)
	ev.OccurredAt = parseTS(occurredRaw)
	ev.RecordedAt = parseTS(recordedRaw)

	var payload eventPayload
	if err := json.Unmarshal([]byte(payloadRaw), &payload); err != nil {
		return domain.Event{}, fmt.Errorf("decode payload_json for %s: %w", ev.ID, err)
	}
	ev.Movement = payload.Movement
	ev.Treatment = payload.Treatment
	ev.Weigh = payload.Weigh
	ev.Death = payload.Death
	ev.Sale = payload.Sale
	ev.Birth = payload.Birth
	ev.PregnancyTest = payload.PregnancyTest
	ev.Joining = payload.Joining
	ev.StatusChange = payload.StatusChange
	return ev, nil
}

func scanTask(s scanner) (domain.Task, error) {
	var (
		t          domain.Task
		kind       string
		status     string
		dueRaw     string
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&t.ID, &kind, &t.Title, &t.AnimalID, &t.MobID, &dueRaw, &status, &t.SourceEventID, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, app.ErrNotFound
		}
		return domain.Task{}, err
	}
	t.Kind = domain.TaskKind(kind)
	t.Status = domain.TaskStatus(status)
	t.DueAt = parseTS(dueRaw)
	t.CreatedAt = parseTS(createdRaw)
	t.UpdatedAt = parseTS(updatedRaw)
	return t, nil
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// nullableTS handles nullable ts.
func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

// parseNullTS parses input into a normalized form.
func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	parsed := parseTS(v.String)
	return &parsed
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
