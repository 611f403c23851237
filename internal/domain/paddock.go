package domain

import (
	"fmt"
	"strings"
	"time"
)

// Paddock is a named grazing area on the property.
type Paddock struct {
	ID          string
	Name        string
	AreaHa      float64
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewPaddock validates input and returns a paddock record.
func NewPaddock(id, name string, areaHa float64, description string, now time.Time) (Paddock, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return Paddock{}, ErrInvalidID
	}
	if name == "" {
		return Paddock{}, ErrInvalidName
	}
	if areaHa < 0 {
		return Paddock{}, fmt.Errorf("%w: area must not be negative", ErrInvalidPayload)
	}
	return Paddock{
		ID:          id,
		Name:        name,
		AreaHa:      areaHa,
		Description: strings.TrimSpace(description),
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}
