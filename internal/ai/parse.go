package ai

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/taskpilot/backend/domain"
)

// stripCodeFence removes a surrounding markdown code fence, with or without a
// language tag, from a model reply.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop the language tag line ("json", "JSON", or empty).
		first := strings.TrimSpace(s[:idx])
		if len(first) <= 10 && !strings.ContainsAny(first, "{}[]") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

type wireTask struct {
	Title    string `json:"title"`
	Due      string `json:"due"`
	Priority string `json:"priority"`
}

type wireAnalysis struct {
	Tasks    []wireTask `json:"tasks"`
	Context  string     `json:"context"`
	Priority string     `json:"priority"`
}

// parseAnalysis decodes a model reply into an Analysis. Any shape problem
// degrades to the safe empty analysis; a bad reply must never break the
// ingestion pipeline.
func parseAnalysis(raw string) *domain.Analysis {
	var wire wireAnalysis
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &wire); err != nil {
		return domain.SafeAnalysis()
	}

	analysis := &domain.Analysis{
		Context:  wire.Context,
		Priority: normalizePriority(wire.Priority),
	}
	for _, wt := range wire.Tasks {
		title := strings.TrimSpace(wt.Title)
		if title == "" {
			continue
		}
		analysis.Tasks = append(analysis.Tasks, domain.TaskCandidate{
			Title:    title,
			Due:      parseWhen(wt.Due),
			Priority: normalizePriority(wt.Priority),
		})
	}
	return analysis
}

type wireEvent struct {
	Title           string `json:"title"`
	Start           string `json:"start"`
	DurationMinutes int    `json:"duration_minutes"`
	Description     string `json:"description"`
}

func parseEventDraft(raw string) *domain.EventDraft {
	var wire wireEvent
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &wire); err != nil {
		return &domain.EventDraft{}
	}

	duration := wire.DurationMinutes
	if duration <= 0 {
		duration = 60
	}
	return &domain.EventDraft{
		Title:           strings.TrimSpace(wire.Title),
		Start:           parseWhen(wire.Start),
		DurationMinutes: duration,
		Description:     wire.Description,
	}
}

var whenFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseWhen parses the timestamp forms models actually emit. Unparseable or
// null-ish values come back nil.
func parseWhen(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
		return nil
	}
	for _, format := range whenFormats {
		if t, err := time.Parse(format, s); err == nil {
			return &t
		}
	}
	return nil
}

func normalizePriority(s string) domain.Priority {
	p, err := domain.ParsePriority(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return domain.PriorityNormal
	}
	return p
}
