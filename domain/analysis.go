package domain

import "time"

// TaskCandidate is one actionable item the analysis provider extracted from
// raw text. Candidates are transient; the reconciler decides what gets stored.
type TaskCandidate struct {
	Title    string     `json:"title"`
	Due      *time.Time `json:"due,omitempty"`
	Priority Priority   `json:"priority"`
}

// Analysis is the structured result of one text-analysis call.
type Analysis struct {
	Tasks    []TaskCandidate `json:"tasks"`
	Context  string          `json:"context"`
	Priority Priority        `json:"priority"`
}

// SafeAnalysis is the well-formed fallback returned whenever the provider
// response cannot be parsed. Callers always receive a usable result.
func SafeAnalysis() *Analysis {
	return &Analysis{Tasks: nil, Context: "", Priority: PriorityNormal}
}

// EventDraft is a calendar event extracted from free-form text. Start is nil
// when no date/time could be recovered, which callers must treat as "ask the
// user to rephrase" rather than an error.
type EventDraft struct {
	Title           string     `json:"title"`
	Start           *time.Time `json:"start,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	Description     string     `json:"description,omitempty"`
}

// MeetingEvent is the calendar push payload the webhook layer hands to the
// meeting context builder.
type MeetingEvent struct {
	ID        string     `json:"eventId"`
	Summary   string     `json:"summary"`
	Start     *time.Time `json:"start,omitempty"`
	Attendees []string   `json:"attendees"`
}
