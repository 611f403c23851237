package domain

import (
	"fmt"
	"strings"
	"time"
)

// Product is a treatment product (drench, vaccine, antibiotic) with its
// regulatory withholding windows. A zero-day window means the channel has
// no withholding for this product.
type Product struct {
	ID           string
	Name         string
	ActiveNumber string
	// MeatWHPDays is the meat withholding period in whole days.
	MeatWHPDays int
	// MilkWHPDays is the milk withholding period in whole days.
	MilkWHPDays int
	// ESIDays is the export slaughter interval in whole days. The ESI is
	// never shorter than the meat WHP for a registered product.
	ESIDays       int
	DefaultDose   string
	DefaultRoute  TreatmentRoute
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProductInput carries the fields needed to register a product.
type ProductInput struct {
	ID           string
	Name         string
	ActiveNumber string
	MeatWHPDays  int
	MilkWHPDays  int
	ESIDays      int
	DefaultDose  string
	DefaultRoute TreatmentRoute
	Notes        string
}

// NewProduct validates input and returns a product record.
func NewProduct(in ProductInput, now time.Time) (Product, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	if in.ID == "" {
		return Product{}, ErrInvalidID
	}
	if in.Name == "" {
		return Product{}, ErrInvalidName
	}
	if in.MeatWHPDays < 0 || in.MilkWHPDays < 0 || in.ESIDays < 0 {
		return Product{}, fmt.Errorf("%w: withholding days must not be negative", ErrInvalidPayload)
	}
	if in.DefaultRoute != "" && !in.DefaultRoute.Valid() {
		return Product{}, fmt.Errorf("%w: route %q", ErrInvalidPayload, in.DefaultRoute)
	}
	return Product{
		ID:           in.ID,
		Name:         in.Name,
		ActiveNumber: strings.TrimSpace(in.ActiveNumber),
		MeatWHPDays:  in.MeatWHPDays,
		MilkWHPDays:  in.MilkWHPDays,
		ESIDays:      in.ESIDays,
		DefaultDose:  strings.TrimSpace(in.DefaultDose),
		DefaultRoute: in.DefaultRoute,
		Notes:        strings.TrimSpace(in.Notes),
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}, nil
}

// HasWithholding reports whether any channel carries a nonzero window.
func (p Product) HasWithholding() bool {
	return p.MeatWHPDays > 0 || p.MilkWHPDays > 0 || p.ESIDays > 0
}
