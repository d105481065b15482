package transport

// TaskCreateRequest is the POST /tasks payload.
type TaskCreateRequest struct {
	Title    string `json:"title"`
	Due      string `json:"due,omitempty"`
	Priority string `json:"priority,omitempty"`
	Source   string `json:"source,omitempty"`
}

// TaskUpdateRequest is the PUT /tasks/{id} payload. Nil fields are left
// untouched; an explicit empty "due" clears the due date.
type TaskUpdateRequest struct {
	Title    *string `json:"title,omitempty"`
	Due      *string `json:"due,omitempty"`
	Status   *string `json:"status,omitempty"`
	Priority *string `json:"priority,omitempty"`
}

// CalendarEventRequest is the POST /calendar/events payload.
type CalendarEventRequest struct {
	Title           string `json:"title"`
	Start           string `json:"start"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Description     string `json:"description,omitempty"`
}

// RestoreRequest names the snapshot to replay.
type RestoreRequest struct {
	Name string `json:"name"`
}
