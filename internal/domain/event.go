package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// EventType discriminates ledger event variants.
type EventType string

const (
	EventMovement      EventType = "movement"
	EventTreatment     EventType = "treatment"
	EventWeigh         EventType = "weigh"
	EventDeath         EventType = "death"
	EventSale          EventType = "sale"
	EventBirth         EventType = "birth"
	EventPregnancyTest EventType = "pregnancy_test"
	EventJoining       EventType = "joining"
	EventStatusChange  EventType = "status_change"
	EventNote          EventType = "note"
)

var validEventTypes = []EventType{
	EventMovement, EventTreatment, EventWeigh, EventDeath, EventSale,
	EventBirth, EventPregnancyTest, EventJoining, EventStatusChange,
	EventNote,
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	return slices.Contains(validEventTypes, t)
}

// TreatmentRoute is the administration route of a treatment.
type TreatmentRoute string

const (
	RouteOral         TreatmentRoute = "oral"
	RouteInjection    TreatmentRoute = "injection"
	RoutePourOn       TreatmentRoute = "pour_on"
	RouteIntramammary TreatmentRoute = "intramammary"
	RouteTopical      TreatmentRoute = "topical"
)

var validRoutes = []TreatmentRoute{
	RouteOral, RouteInjection, RoutePourOn, RouteIntramammary, RouteTopical,
}

// Valid reports whether r is a known administration route.
func (r TreatmentRoute) Valid() bool {
	return slices.Contains(validRoutes, r)
}

// PregnancyResult is the outcome of a pregnancy test.
type PregnancyResult string

const (
	PregnancyPregnant PregnancyResult = "pregnant"
	PregnancyEmpty    PregnancyResult = "empty"
)

// Event is one immutable ledger entry. Exactly one of AnimalID and MobID
// is set; Seq is assigned by storage at append and, together with
// OccurredAt, fixes the total replay order.
type Event struct {
	ID         string
	Seq        int64
	Type       EventType
	OccurredAt time.Time
	RecordedAt time.Time
	AnimalID   string
	MobID      string
	Note       string
	RecordedBy string

	Movement      *MovementPayload
	Treatment     *TreatmentPayload
	Weigh         *WeighPayload
	Death         *DeathPayload
	Sale          *SalePayload
	Birth         *BirthPayload
	PregnancyTest *PregnancyTestPayload
	Joining       *JoiningPayload
	StatusChange  *StatusChangePayload
}

// MovementPayload moves an animal between mobs, or a mob between
// paddocks. For an animal-subject movement ToMobID names the destination
// mob; for a mob-subject movement ToPaddockID names the destination
// paddock.
type MovementPayload struct {
	FromPaddockID string `json:"from_paddock_id,omitempty"`
	ToPaddockID   string `json:"to_paddock_id,omitempty"`
	FromMobID     string `json:"from_mob_id,omitempty"`
	ToMobID       string `json:"to_mob_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
	// HeadCount records how many head moved on a mob-subject movement.
	HeadCount int `json:"head_count,omitempty"`
}

// TreatmentPayload records a chemical treatment. The withholding end
// dates are derived from the product's windows when the event is
// appended and frozen into the payload, so later product edits never
// rewrite history.
type TreatmentPayload struct {
	ProductID      string         `json:"product_id"`
	Dose           string         `json:"dose,omitempty"`
	BatchNumber    string         `json:"batch_number,omitempty"`
	Route          TreatmentRoute `json:"route,omitempty"`
	AdministeredBy string         `json:"administered_by,omitempty"`
	MeatWHPEnd     *time.Time     `json:"meat_whp_end,omitempty"`
	MilkWHPEnd     *time.Time     `json:"milk_whp_end,omitempty"`
	ESIEnd         *time.Time     `json:"esi_end,omitempty"`
}

// WeighPayload records a live weight, optionally with a condition score.
type WeighPayload struct {
	WeightKg       float64  `json:"weight_kg"`
	ConditionScore *float64 `json:"condition_score,omitempty"`
}

// DeathPayload records a death and carcass disposal.
type DeathPayload struct {
	Cause    string `json:"cause,omitempty"`
	Disposal string `json:"disposal,omitempty"`
}

// SalePayload records a sale off the property.
type SalePayload struct {
	PriceCents int64  `json:"price_cents,omitempty"`
	Buyer      string `json:"buyer,omitempty"`
}

// BirthPayload records a birth on the property. It carries the calf's or
// lamb's full registration so the animal registry can be rebuilt from
// the ledger alone.
type BirthPayload struct {
	EID         string     `json:"eid,omitempty"`
	VisualTag   string     `json:"visual_tag,omitempty"`
	Species     Species    `json:"species,omitempty"`
	Breed       string     `json:"breed,omitempty"`
	Sex         Sex        `json:"sex,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	DamID       string     `json:"dam_id,omitempty"`
	SireID      string     `json:"sire_id,omitempty"`
	MobID       string     `json:"mob_id,omitempty"`
}

// PregnancyTestPayload records a pregnancy test result.
type PregnancyTestPayload struct {
	Result PregnancyResult `json:"result"`
	Tester string          `json:"tester,omitempty"`
}

// JoiningPayload records a mob being joined with sires.
type JoiningPayload struct {
	SireMobID string `json:"sire_mob_id,omitempty"`
	SireIDs   string `json:"sire_ids,omitempty"`
}

// StatusChangePayload flips an animal between active and missing. Sold
// and dead are reached only through sale and death events.
type StatusChangePayload struct {
	Status AnimalStatus `json:"status"`
}

// EventInput carries the caller-supplied fields for a new ledger event.
// Seq and RecordedAt are assigned at append.
type EventInput struct {
	ID         string
	Type       EventType
	OccurredAt time.Time
	AnimalID   string
	MobID      string
	Note       string
	RecordedBy string

	Movement      *MovementPayload
	Treatment     *TreatmentPayload
	Weigh         *WeighPayload
	Death         *DeathPayload
	Sale          *SalePayload
	Birth         *BirthPayload
	PregnancyTest *PregnancyTestPayload
	Joining       *JoiningPayload
	StatusChange  *StatusChangePayload
}

// NewEvent validates input and returns an event ready to append. The
// future-dated check uses now; OccurredAt may be in the past but not
// ahead of the clock.
func NewEvent(in EventInput, now time.Time) (Event, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.AnimalID = strings.TrimSpace(in.AnimalID)
	in.MobID = strings.TrimSpace(in.MobID)
	if in.ID == "" {
		return Event{}, ErrInvalidID
	}
	if !in.Type.Valid() {
		return Event{}, fmt.Errorf("%w: %q", ErrInvalidEventType, in.Type)
	}
	if (in.AnimalID == "") == (in.MobID == "") {
		return Event{}, ErrInvalidSubject
	}
	if in.OccurredAt.IsZero() {
		in.OccurredAt = now
	}
	if in.OccurredAt.After(now) {
		return Event{}, fmt.Errorf("%w: occurred_at is in the future", ErrInvalidTimeRange)
	}

	ev := Event{
		ID:            in.ID,
		Type:          in.Type,
		OccurredAt:    in.OccurredAt.UTC(),
		RecordedAt:    now.UTC(),
		AnimalID:      in.AnimalID,
		MobID:         in.MobID,
		Note:          strings.TrimSpace(in.Note),
		RecordedBy:    strings.TrimSpace(in.RecordedBy),
		Movement:      in.Movement,
		Treatment:     in.Treatment,
		Weigh:         in.Weigh,
		Death:         in.Death,
		Sale:          in.Sale,
		Birth:         in.Birth,
		PregnancyTest: in.PregnancyTest,
		Joining:       in.Joining,
		StatusChange:  in.StatusChange,
	}
	if err := ev.validatePayload(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func (e Event) validatePayload() error {
	if got := e.payloadType(); got != e.Type {
		return fmt.Errorf("%w: %s event carries %s payload", ErrInvalidPayload, e.Type, got)
	}
	switch e.Type {
	case EventMovement:
		if e.AnimalID != "" && e.Movement.ToMobID == "" {
			return fmt.Errorf("%w: animal movement requires a destination mob", ErrInvalidPayload)
		}
		if e.MobID != "" && e.Movement.ToPaddockID == "" {
			return fmt.Errorf("%w: mob movement requires a destination paddock", ErrInvalidPayload)
		}
	case EventTreatment:
		if e.AnimalID == "" {
			return fmt.Errorf("%w: treatment applies to an animal", ErrInvalidSubject)
		}
		if e.Treatment.ProductID == "" {
			return fmt.Errorf("%w: treatment requires a product", ErrInvalidPayload)
		}
		if e.Treatment.Route != "" && !e.Treatment.Route.Valid() {
			return fmt.Errorf("%w: route %q", ErrInvalidPayload, e.Treatment.Route)
		}
	case EventWeigh:
		if e.AnimalID == "" {
			return fmt.Errorf("%w: weigh applies to an animal", ErrInvalidSubject)
		}
		if e.Weigh.WeightKg <= 0 {
			return ErrInvalidWeight
		}
	case EventDeath:
		if e.AnimalID == "" {
			return fmt.Errorf("%w: death applies to an animal", ErrInvalidSubject)
		}
	case EventSale:
		if e.AnimalID == "" {
			return fmt.Errorf("%w: sale applies to an animal", ErrInvalidSubject)
		}
	case EventBirth:
		if e.MobID != "" {
			return fmt.Errorf("%w: birth must name the newborn animal", ErrInvalidSubject)
		}
		if e.Birth.EID == "" && e.Birth.VisualTag == "" {
			return ErrMissingIdentity
		}
	case EventPregnancyTest:
		if r := e.PregnancyTest.Result; r != PregnancyPregnant && r != PregnancyEmpty {
			return fmt.Errorf("%w: pregnancy result %q", ErrInvalidPayload, r)
		}
	case EventJoining:
		if e.AnimalID != "" {
			return fmt.Errorf("%w: joining applies to a mob", ErrInvalidSubject)
		}
	case EventStatusChange:
		if e.AnimalID == "" {
			return fmt.Errorf("%w: status change applies to an animal", ErrInvalidSubject)
		}
		if s := e.StatusChange.Status; s != StatusActive && s != StatusMissing {
			return fmt.Errorf("%w: status %q", ErrInvalidPayload, s)
		}
	}
	return nil
}

// payloadType returns the type implied by the populated payload field, or
// an empty type when none or more than one is set. Note events carry no
// payload.
func (e Event) payloadType() EventType {
	var got EventType
	set := func(t EventType) {
		if got != "" {
			got = "multiple"
			return
		}
		got = t
	}
	if e.Movement != nil {
		set(EventMovement)
	}
	if e.Treatment != nil {
		set(EventTreatment)
	}
	if e.Weigh != nil {
		set(EventWeigh)
	}
	if e.Death != nil {
		set(EventDeath)
	}
	if e.Sale != nil {
		set(EventSale)
	}
	if e.Birth != nil {
		set(EventBirth)
	}
	if e.PregnancyTest != nil {
		set(EventPregnancyTest)
	}
	if e.Joining != nil {
		set(EventJoining)
	}
	if e.StatusChange != nil {
		set(EventStatusChange)
	}
	if got == "" {
		return EventNote
	}
	return got
}

// SortEvents orders events by occurrence time, breaking ties on ledger
// sequence. This is the canonical replay order.
func SortEvents(events []Event) {
	slices.SortStableFunc(events, func(a, b Event) int {
		if c := a.OccurredAt.Compare(b.OccurredAt); c != 0 {
			return c
		}
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
}
