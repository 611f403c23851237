package domain

import (
	"fmt"
	"strings"
	"time"
)

// TaskStatus tracks a generated task through its lifecycle.
type TaskStatus string

const (
	TaskOpen      TaskStatus = "open"
	TaskDone      TaskStatus = "done"
	TaskDismissed TaskStatus = "dismissed"
)

// TaskKind identifies what generated a task.
type TaskKind string

const (
	// TaskWHPClearance is generated by a treatment under withholding;
	// due on the clear date.
	TaskWHPClearance TaskKind = "whp_clearance"
	// TaskReweigh is generated by a weigh event; due after the
	// configured re-weigh interval.
	TaskReweigh TaskKind = "reweigh"
)

// Task is a follow-up action derived from the ledger. SourceEventID ties
// the task back to the event that generated it, so rebuilds regenerate
// the same tasks.
type Task struct {
	ID            string
	Kind          TaskKind
	Title         string
	AnimalID      string
	MobID         string
	DueAt         time.Time
	Status        TaskStatus
	SourceEventID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewTask validates input and returns an open task.
func NewTask(id string, kind TaskKind, title, animalID, mobID string, dueAt time.Time, sourceEventID string, now time.Time) (Task, error) {
	id = strings.TrimSpace(id)
	title = strings.TrimSpace(title)
	if id == "" {
		return Task{}, ErrInvalidID
	}
	if title == "" {
		return Task{}, ErrInvalidName
	}
	if kind != TaskWHPClearance && kind != TaskReweigh {
		return Task{}, fmt.Errorf("%w: task kind %q", ErrInvalidPayload, kind)
	}
	return Task{
		ID:            id,
		Kind:          kind,
		Title:         title,
		AnimalID:      strings.TrimSpace(animalID),
		MobID:         strings.TrimSpace(mobID),
		DueAt:         dueAt.UTC(),
		Status:        TaskOpen,
		SourceEventID: strings.TrimSpace(sourceEventID),
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
	}, nil
}

// Transition moves the task to a new status. Tasks only leave Open.
func (t Task) Transition(to TaskStatus, now time.Time) (Task, error) {
	switch to {
	case TaskDone, TaskDismissed:
	default:
		return Task{}, fmt.Errorf("%w: %q", ErrInvalidTaskStatus, to)
	}
	if t.Status != TaskOpen {
		return Task{}, fmt.Errorf("%w: task is %s", ErrInvalidTransition, t.Status)
	}
	t.Status = to
	t.UpdatedAt = now.UTC()
	return t, nil
}
