package domain

import (
	"fmt"
	"time"
)

// Priority classifies how soon a task needs attention.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Priorities lists all priorities in display order (most pressing first).
var Priorities = []Priority{PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow}

func (p Priority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// ParsePriority validates a priority string coming from API input.
func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !p.Valid() {
		return "", NewError(ErrCodeInvalid, fmt.Sprintf("invalid priority %q", s))
	}
	return p, nil
}

// Status is the task lifecycle state. Tasks only move open -> done.
type Status string

const (
	StatusOpen Status = "open"
	StatusDone Status = "done"
)

func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusDone
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", NewError(ErrCodeInvalid, fmt.Sprintf("invalid status %q", s))
	}
	return st, nil
}

// UrgencyWindow is the due-date horizon inside which a task is always urgent.
const UrgencyWindow = 24 * time.Hour

// Task is a single actionable item extracted from email, chat, or the API.
type Task struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Due       *time.Time `json:"due,omitempty"`
	Status    Status     `json:"status"`
	Source    string     `json:"source"`
	Priority  Priority   `json:"priority"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (t *Task) IsDone() bool {
	return t != nil && t.Status == StatusDone
}

// EffectivePriority applies the urgency override: any task due inside the
// urgency window is urgent regardless of its assigned priority.
func EffectivePriority(assigned Priority, due *time.Time, now time.Time) Priority {
	if due != nil && !due.After(now.Add(UrgencyWindow)) {
		return PriorityUrgent
	}
	if !assigned.Valid() {
		return PriorityNormal
	}
	return assigned
}
