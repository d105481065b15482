package domain

import (
	"testing"
	"time"
)

func TestEffectivePriority(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	in2h := now.Add(2 * time.Hour)
	in23h := now.Add(23 * time.Hour)
	in3d := now.Add(72 * time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name     string
		assigned Priority
		due      *time.Time
		want     Priority
	}{
		{"no due keeps assigned", PriorityHigh, nil, PriorityHigh},
		{"due far out keeps assigned", PriorityLow, &in3d, PriorityLow},
		{"due inside window overrides", PriorityLow, &in2h, PriorityUrgent},
		{"due at edge of window overrides", PriorityNormal, &in23h, PriorityUrgent},
		{"overdue overrides", PriorityLow, &past, PriorityUrgent},
		{"invalid assigned falls back to normal", Priority("critical"), &in3d, PriorityNormal},
		{"empty assigned falls back to normal", Priority(""), nil, PriorityNormal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EffectivePriority(tt.assigned, tt.due, now); got != tt.want {
				t.Errorf("EffectivePriority(%q, %v) = %q, want %q", tt.assigned, tt.due, got, tt.want)
			}
		})
	}
}

func TestParsePriority(t *testing.T) {
	for _, p := range Priorities {
		got, err := ParsePriority(string(p))
		if err != nil || got != p {
			t.Errorf("ParsePriority(%q) = %q, %v", p, got, err)
		}
	}
	if _, err := ParsePriority("URGENT"); err == nil {
		t.Error("ParsePriority should be case sensitive")
	}
	if _, err := ParsePriority(""); err == nil {
		t.Error("ParsePriority accepted empty string")
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"open", "done"} {
		if _, err := ParseStatus(s); err != nil {
			t.Errorf("ParseStatus(%q) returned %v", s, err)
		}
	}
	if _, err := ParseStatus("closed"); err == nil {
		t.Error("ParseStatus accepted unknown status")
	}
}

func TestIsDone(t *testing.T) {
	var nilTask *Task
	if nilTask.IsDone() {
		t.Error("nil task reported done")
	}
	if (&Task{Status: StatusOpen}).IsDone() {
		t.Error("open task reported done")
	}
	if !(&Task{Status: StatusDone}).IsDone() {
		t.Error("done task reported open")
	}
}
