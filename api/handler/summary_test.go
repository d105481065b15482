package handler

import (
	"context"
	"testing"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/taskpilot/backend/domain"
	"github.com/taskpilot/backend/repository"
	"github.com/taskpilot/backend/usecase/summary"
)

type digestTasks struct {
	repository.TaskRepository
}

func (digestTasks) OpenByPriority(ctx context.Context) (map[domain.Priority][]domain.Task, error) {
	return map[domain.Priority][]domain.Task{
		domain.PriorityUrgent: {{ID: 1, Title: "file taxes", Status: domain.StatusOpen, Priority: domain.PriorityUrgent}},
	}, nil
}

func (digestTasks) CompletedSince(ctx context.Context, since time.Time) (int, error) {
	return 0, nil
}

type recordingNotifier struct {
	sent []string
}

func (n *recordingNotifier) Notify(ctx context.Context, text string) error {
	n.sent = append(n.sent, text)
	return nil
}

func triggerHandler(token string) (*SummaryHandler, *recordingNotifier) {
	notifier := &recordingNotifier{}
	uc := summary.New(digestTasks{}, notifier, time.UTC, nil)
	return NewSummaryHandler(uc, token, nil, nil), notifier
}

func TestTriggerRejectsInvalidToken(t *testing.T) {
	tests := []struct {
		name string
		uri  string
	}{
		{"wrong token", "/api/v1/cron/daily-summary?token=guess"},
		{"missing token", "/api/v1/cron/daily-summary"},
		{"empty token", "/api/v1/cron/daily-summary?token="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, notifier := triggerHandler("cron-secret")
			ctx := requestCtx(tt.uri)

			h.Trigger(ctx)

			if ctx.Response.StatusCode() != fasthttp.StatusForbidden {
				t.Errorf("status = %d, want 403", ctx.Response.StatusCode())
			}
			if len(notifier.sent) != 0 {
				t.Errorf("digest sent %d times on a rejected trigger, want 0", len(notifier.sent))
			}
		})
	}
}

func TestTriggerRejectsWhenNoTokenConfigured(t *testing.T) {
	h, notifier := triggerHandler("")
	ctx := requestCtx("/api/v1/cron/daily-summary?token=")

	h.Trigger(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusForbidden {
		t.Errorf("status = %d, want 403", ctx.Response.StatusCode())
	}
	if len(notifier.sent) != 0 {
		t.Errorf("digest sent with an unset token, want 0 sends")
	}
}

func TestTriggerSendsDigestForValidToken(t *testing.T) {
	h, notifier := triggerHandler("cron-secret")
	ctx := requestCtx("/api/v1/cron/daily-summary?token=cron-secret")

	h.Trigger(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d, want 200", ctx.Response.StatusCode())
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("digest sent %d times, want 1", len(notifier.sent))
	}
}
