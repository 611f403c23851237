package domain

import "errors"

// Validation errors reject an event or entity before anything is persisted.
var (
	ErrInvalidID         = errors.New("invalid id")
	ErrInvalidName       = errors.New("invalid name")
	ErrMissingIdentity   = errors.New("animal requires an EID or a visual tag")
	ErrDuplicateEID      = errors.New("duplicate EID")
	ErrInvalidEventType  = errors.New("invalid event type")
	ErrInvalidSubject    = errors.New("event requires exactly one subject")
	ErrInvalidPayload    = errors.New("invalid event payload")
	ErrInvalidSpecies    = errors.New("invalid species")
	ErrInvalidSex        = errors.New("invalid sex")
	ErrInvalidWeight     = errors.New("weight must be greater than zero")
	ErrInvalidTimeRange  = errors.New("invalid time range")
	ErrInvalidTaskStatus = errors.New("invalid task status")
)

// Business-rule violations on otherwise well-formed events.
var (
	// ErrInvalidTransition rejects events against terminal animals and
	// movements into a mob with no paddock assigned.
	ErrInvalidTransition = errors.New("invalid transition")
)
