package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Species identifies the livestock species of an animal or mob.
type Species string

const (
	SpeciesCattle Species = "cattle"
	SpeciesSheep  Species = "sheep"
)

var validSpecies = []Species{SpeciesCattle, SpeciesSheep}

// Sex identifies the sex of an animal, including castrated classes.
type Sex string

const (
	SexFemale Sex = "female"
	SexMale   Sex = "male"
	SexSteer  Sex = "steer"
	SexWether Sex = "wether"
)

var validSexes = []Sex{SexFemale, SexMale, SexSteer, SexWether}

// AnimalStatus tracks an animal through its herd lifecycle.
type AnimalStatus string

const (
	StatusActive  AnimalStatus = "active"
	StatusSold    AnimalStatus = "sold"
	StatusDead    AnimalStatus = "dead"
	StatusMissing AnimalStatus = "missing"
)

// Terminal reports whether the status permits no further ledger events
// other than notes. Missing animals can still be found, so only Sold and
// Dead are terminal.
func (s AnimalStatus) Terminal() bool {
	return s == StatusSold || s == StatusDead
}

// Animal is a current-value registry record for one animal. Its mob,
// status, latest weight, and WHP clear date are projections of the event
// ledger; the ledger is authoritative.
type Animal struct {
	ID          string
	EID         string
	VisualTag   string
	Species     Species
	Breed       string
	Sex         Sex
	DateOfBirth *time.Time
	Status      AnimalStatus
	MobID       string
	DamID       string
	SireID      string
	Notes       string
	// LatestWeightKg mirrors the most recent weigh event.
	LatestWeightKg *float64
	// WHPClearDate is the latest withholding end date across all recorded
	// treatments, nil when the animal has never been under a WHP.
	WHPClearDate *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AnimalInput carries the fields needed to register a new animal.
type AnimalInput struct {
	ID          string
	EID         string
	VisualTag   string
	Species     Species
	Breed       string
	Sex         Sex
	DateOfBirth *time.Time
	MobID       string
	DamID       string
	SireID      string
	Notes       string
}

// NewAnimal validates input and returns an Active animal record.
func NewAnimal(in AnimalInput, now time.Time) (Animal, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.EID = strings.TrimSpace(in.EID)
	in.VisualTag = strings.TrimSpace(in.VisualTag)
	in.Breed = strings.TrimSpace(in.Breed)
	in.Notes = strings.TrimSpace(in.Notes)

	if in.ID == "" {
		return Animal{}, ErrInvalidID
	}
	if in.EID == "" && in.VisualTag == "" {
		return Animal{}, ErrMissingIdentity
	}
	if in.Species == "" {
		in.Species = SpeciesCattle
	}
	if !slices.Contains(validSpecies, in.Species) {
		return Animal{}, fmt.Errorf("%w: %q", ErrInvalidSpecies, in.Species)
	}
	if in.Sex == "" {
		in.Sex = SexFemale
	}
	if !slices.Contains(validSexes, in.Sex) {
		return Animal{}, fmt.Errorf("%w: %q", ErrInvalidSex, in.Sex)
	}

	return Animal{
		ID:          in.ID,
		EID:         in.EID,
		VisualTag:   in.VisualTag,
		Species:     in.Species,
		Breed:       in.Breed,
		Sex:         in.Sex,
		DateOfBirth: normalizeDatePtr(in.DateOfBirth),
		Status:      StatusActive,
		MobID:       strings.TrimSpace(in.MobID),
		DamID:       strings.TrimSpace(in.DamID),
		SireID:      strings.TrimSpace(in.SireID),
		Notes:       in.Notes,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// DisplayID returns the best identifier for reports and logs.
func (a Animal) DisplayID() string {
	if a.VisualTag != "" {
		return a.VisualTag
	}
	if a.EID != "" {
		return a.EID
	}
	return a.ID
}

// normalizeDatePtr truncates a nullable timestamp to a UTC day boundary.
func normalizeDatePtr(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	d := in.UTC().Truncate(24 * time.Hour)
	return &d
}
