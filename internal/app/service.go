package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/saltbush/stockyard/internal/domain"
)

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	// ReweighIntervalDays controls when a weigh event schedules a
	// follow-up weigh task. Zero disables re-weigh tasks.
	ReweighIntervalDays int
}

// Service coordinates the registry, the event ledger, and everything
// derived from them. All writes go through the ledger; reads come from
// the projected registry. A single lock serializes writes so the ledger
// and registry never diverge mid-operation.
type Service struct {
	repo        Repository
	idGen       IDGenerator
	clock       Clock
	reweighDays int

	mu sync.RWMutex
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:        repo,
		idGen:       idGen,
		clock:       clock,
		reweighDays: cfg.ReweighIntervalDays,
	}
}

// RegisterAnimalInput carries the fields needed to bring an animal onto
// the books, whether born on the property or bought in.
type RegisterAnimalInput struct {
	EID         string
	VisualTag   string
	Species     domain.Species
	Breed       string
	Sex         domain.Sex
	DateOfBirth *time.Time
	MobID       string
	DamID       string
	SireID      string
	Notes       string
	RecordedBy  string
}

// RegisterAnimal creates an animal and appends its birth event in one
// transaction, so a ledger replay reproduces the registration.
func (s *Service) RegisterAnimal(ctx context.Context, in RegisterAnimalInput) (domain.Animal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if in.EID != "" {
		if _, err := s.repo.FindAnimal(ctx, strings.TrimSpace(in.EID)); err == nil {
			return domain.Animal{}, fmt.Errorf("%w: %s", domain.ErrDuplicateEID, in.EID)
		} else if !errors.Is(err, ErrNotFound) {
			return domain.Animal{}, err
		}
	}
	if in.MobID != "" {
		if _, err := s.repo.GetMob(ctx, strings.TrimSpace(in.MobID)); err != nil {
			return domain.Animal{}, fmt.Errorf("mob %s: %w", in.MobID, err)
		}
	}

	animal, err := domain.NewAnimal(domain.AnimalInput{
		ID:          s.idGen(),
		EID:         in.EID,
		VisualTag:   in.VisualTag,
		Species:     in.Species,
		Breed:       in.Breed,
		Sex:         in.Sex,
		DateOfBirth: in.DateOfBirth,
		MobID:       in.MobID,
		DamID:       in.DamID,
		SireID:      in.SireID,
		Notes:       in.Notes,
	}, now)
	if err != nil {
		return domain.Animal{}, err
	}

	occurred := now
	if animal.DateOfBirth != nil {
		occurred = *animal.DateOfBirth
	}
	ev, err := domain.NewEvent(domain.EventInput{
		ID:         s.idGen(),
		Type:       domain.EventBirth,
		OccurredAt: occurred,
		AnimalID:   animal.ID,
		RecordedBy: in.RecordedBy,
		Birth: &domain.BirthPayload{
			EID:         animal.EID,
			VisualTag:   animal.VisualTag,
			Species:     animal.Species,
			Breed:       animal.Breed,
			Sex:         animal.Sex,
			DateOfBirth: animal.DateOfBirth,
			DamID:       animal.DamID,
			SireID:      animal.SireID,
			MobID:       animal.MobID,
		},
	}, now)
	if err != nil {
		return domain.Animal{}, err
	}

	if _, err := s.repo.AppendEvent(ctx, ev, ProjectionDelta{UpsertAnimals: []domain.Animal{animal}}); err != nil {
		return domain.Animal{}, fmt.Errorf("register animal: %w", err)
	}
	return animal, nil
}

// UpdateAnimalDetails edits descriptive fields that are not projected
// from the ledger. Lifecycle state, mob, weight, and withholding are
// ledger-owned and cannot be edited here.
func (s *Service) UpdateAnimalDetails(ctx context.Context, id, visualTag, breed, notes string) (domain.Animal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	animal, err := s.repo.GetAnimal(ctx, id)
	if err != nil {
		return domain.Animal{}, err
	}
	if visualTag = strings.TrimSpace(visualTag); visualTag != "" {
		animal.VisualTag = visualTag
	}
	if breed = strings.TrimSpace(breed); breed != "" {
		animal.Breed = breed
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		animal.Notes = notes
	}
	if animal.EID == "" && animal.VisualTag == "" {
		return domain.Animal{}, domain.ErrMissingIdentity
	}
	animal.UpdatedAt = s.clock().UTC()
	if err := s.repo.UpdateAnimal(ctx, animal); err != nil {
		return domain.Animal{}, err
	}
	return animal, nil
}

// GetAnimal returns an animal by internal id.
func (s *Service) GetAnimal(ctx context.Context, id string) (domain.Animal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo.GetAnimal(ctx, id)
}

// ResolveAnimal resolves an internal id, EID, or visual tag to an animal.
func (s *Service) ResolveAnimal(ctx context.Context, ref string) (domain.Animal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveAnimal(ctx, ref)
}

func (s *Service) resolveAnimal(ctx context.Context, ref string) (domain.Animal, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Animal{}, domain.ErrInvalidID
	}
	animal, err := s.repo.GetAnimal(ctx, ref)
	if err == nil {
		return animal, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return domain.Animal{}, err
	}
	return s.repo.FindAnimal(ctx, ref)
}

// ListAnimals returns registry animals matching the filter.
func (s *Service) ListAnimals(ctx context.Context, filter AnimalFilter) ([]domain.Animal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo.ListAnimals(ctx, filter)
}

// CreateMob creates a mob and, when a paddock is given, appends the
// placement movement so the mob's paddock survives a ledger replay.
func (s *Service) CreateMob(ctx context.Context, name string, species domain.Species, description, paddockID string) (domain.Mob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	mob, err := domain.NewMob(s.idGen(), name, species, description, now)
	if err != nil {
		return domain.Mob{}, err
	}
	paddockID = strings.TrimSpace(paddockID)
	if paddockID == "" {
		if err := s.repo.CreateMob(ctx, mob); err != nil {
			return domain.Mob{}, err
		}
		return mob, nil
	}

	if _, err := s.repo.GetPaddock(ctx, paddockID); err != nil {
		return domain.Mob{}, fmt.Errorf("paddock %s: %w", paddockID, err)
	}
	if err := s.repo.CreateMob(ctx, mob); err != nil {
		return domain.Mob{}, err
	}
	ev, err := domain.NewEvent(domain.EventInput{
		ID:       s.idGen(),
		Type:     domain.EventMovement,
		MobID:    mob.ID,
		Movement: &domain.MovementPayload{ToPaddockID: paddockID, Reason: "initial placement"},
	}, now)
	if err != nil {
		return domain.Mob{}, err
	}
	mob.PaddockID = paddockID
	mob.UpdatedAt = now.UTC()
	if _, err := s.repo.AppendEvent(ctx, ev, ProjectionDelta{UpdateMobs: []domain.Mob{mob}}); err != nil {
		return domain.Mob{}, fmt.Errorf("place mob: %w", err)
	}
	return mob, nil
}

// UpdateMobDetails edits a mob's name and description. Placement is
// ledger-owned and changes only through movement events.
func (s *Service) UpdateMobDetails(ctx context.Context, id, name, description string) (domain.Mob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mob, err := s.repo.GetMob(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Mob{}, err
	}
	if name = strings.TrimSpace(name); name != "" {
		mob.Name = name
	}
	if description = strings.TrimSpace(description); description != "" {
		mob.Description = description
	}
	mob.UpdatedAt = s.clock().UTC()
	if err := s.repo.UpdateMob(ctx, mob); err != nil {
		return domain.Mob{}, err
	}
	return mob, nil
}

// GetMob returns a mob by id.
func (s *Service) GetMob(ctx context.Context, id string) (domain.Mob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo.GetMob(ctx, id)
}

// ListMobs returns all mobs.
func (s *Service) ListMobs(ctx context.Context) ([]domain.Mob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo.ListMobs(ctx)
}

// CreatePaddock creates a paddock.
func (s *Service) CreatePaddock(ctx context.Context, name string, areaHa float64, description string) (domain.Paddock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paddock, err := domain.NewPaddock(s.idGen(), name, areaHa, description, s.clock())
	if err != nil {
		return domain.Paddock{}, err
	}
	if err := s.repo.CreatePaddock(ctx, paddock); err != nil {
		return domain.Paddock{}, err
	}
	return paddock, nil
}

// UpdatePaddockDetails edits a paddock's descriptive fields. A nil area
// leaves the recorded area unchanged.
func (s *Service) UpdatePaddockDetails(ctx context.Context, id, name string, areaHa *float64, description string) (domain.Paddock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paddock, err := s.repo.GetPaddock(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Paddock{}, err
	}
	if name = strings.TrimSpace(name); name != "" {
		paddock.Name = name
	}
	if areaHa != nil {
		if *areaHa < 0 {
			return domain.Paddock{}, fmt.Errorf("%w: area must not be negative", domain.ErrInvalidPayload)
		}
		paddock.AreaHa = *areaHa
	}
	if description = strings.TrimSpace(description); description != "" {
		paddock.Description = description
	}
	paddock.UpdatedAt = s.clock().UTC()
	if err := s.repo.UpdatePaddock(ctx, paddock); err != nil {
		return domain.Paddock{}, err
	}
	return paddock, nil
}

// GetPaddock returns a paddock by id.
func (s *Service) GetPaddock(ctx context.Context, id string) (domain.Paddock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo.GetPaddock(ctx, id)
}

// ListPaddocks returns all paddocks.
func (s *Service) ListPaddocks(ctx context.Context) ([]domain.Paddock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo.ListPaddocks(ctx)
}

// CreateProduct registers a treatment product.
func (s *Service) CreateProduct(ctx context.Context, in domain.ProductInput) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(in.ID) == "" {
		in.ID = s.idGen()
	}
	product, err := domain.NewProduct(in, s.clock())
	if err != nil {
		return domain.Product{}, err
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// UpdateProduct edits a product. Withholding end dates already frozen
// into treatment events are unaffected.
func (s *Service) UpdateProduct(ctx context.Context, in domain.ProductInput) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.GetProduct(ctx, strings.TrimSpace(in.ID))
	if err != nil {
		return domain.Product{}, err
	}
	product, err := domain.NewProduct(in, s.clock())
	if err != nil {
		return domain.Product{}, err
	}
	product.CreatedAt = existing.CreatedAt
	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// GetProduct returns a product by id.
func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo.GetProduct(ctx, id)
}

// ListProducts returns all products.
func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo.ListProducts(ctx)
}

// QueryEvents returns ledger events matching the filter in replay order.
func (s *Service) QueryEvents(ctx context.Context, filter EventFilter) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo.ListEvents(ctx, filter)
}
