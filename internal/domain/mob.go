package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Mob is a managed group of animals sharing a paddock and handling.
// Membership is recorded on each animal (an animal belongs to exactly one
// mob at a time); an animal's effective paddock is its mob's paddock.
type Mob struct {
	ID          string
	Name        string
	Species     Species
	Description string
	// PaddockID is the mob's current paddock, projected from movement
	// events. Empty until the mob is first placed.
	PaddockID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewMob validates input and returns a mob record with no paddock.
func NewMob(id, name string, species Species, description string, now time.Time) (Mob, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return Mob{}, ErrInvalidID
	}
	if name == "" {
		return Mob{}, ErrInvalidName
	}
	if species == "" {
		species = SpeciesCattle
	}
	if !slices.Contains(validSpecies, species) {
		return Mob{}, fmt.Errorf("%w: %q", ErrInvalidSpecies, species)
	}
	return Mob{
		ID:          id,
		Name:        name,
		Species:     species,
		Description: strings.TrimSpace(description),
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}
