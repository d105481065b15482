package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/taskpilot/backend/domain"
)

type fakeTasks struct {
	byID    map[int64]*domain.Task
	grouped map[domain.Priority][]domain.Task
	created []*domain.Task
	marked  []int64
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{byID: make(map[int64]*domain.Task), grouped: make(map[domain.Priority][]domain.Task)}
}

func (f *fakeTasks) CreateTask(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	task.ID = int64(len(f.created) + 1)
	f.created = append(f.created, task)
	return task, nil
}

func (f *fakeTasks) MarkDone(ctx context.Context, id int64) (*domain.Task, error) {
	task, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if task.IsDone() {
		return task, domain.ErrTaskAlreadyDone
	}
	task.Status = domain.StatusDone
	f.marked = append(f.marked, id)
	return task, nil
}

func (f *fakeTasks) OpenByPriority(ctx context.Context) (map[domain.Priority][]domain.Task, error) {
	return f.grouped, nil
}

type fakeAnalyzer struct {
	analysis *domain.Analysis
	draft    *domain.EventDraft
}

func (f *fakeAnalyzer) AnalyzeText(ctx context.Context, text string) (*domain.Analysis, error) {
	if f.analysis == nil {
		return domain.SafeAnalysis(), nil
	}
	return f.analysis, nil
}

func (f *fakeAnalyzer) AnalyzeEvent(ctx context.Context, text string, now time.Time) (*domain.EventDraft, error) {
	if f.draft == nil {
		return &domain.EventDraft{}, nil
	}
	return f.draft, nil
}

type fakeCalendar struct {
	inserted []*domain.EventDraft
}

func (f *fakeCalendar) InsertEvent(ctx context.Context, draft *domain.EventDraft) (*domain.MeetingEvent, error) {
	f.inserted = append(f.inserted, draft)
	return &domain.MeetingEvent{ID: "evt-1", Summary: draft.Title, Start: draft.Start}, nil
}

type fakeSender struct {
	replies []string
}

func (f *fakeSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.replies = append(f.replies, text)
	return nil
}

type fakeDedup struct {
	seen map[string]bool
}

func (f *fakeDedup) Seen(ctx context.Context, key string) (bool, error) {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	was := f.seen[key]
	f.seen[key] = true
	return was, nil
}

func update(id int64, text string) []byte {
	payload, _ := json.Marshal(map[string]interface{}{
		"update_id": id,
		"message": map[string]interface{}{
			"from": map[string]interface{}{"id": 7},
			"chat": map[string]interface{}{"id": 99},
			"text": text,
		},
	})
	return payload
}

func newProcessor(tasks *fakeTasks, analyzer *fakeAnalyzer, calendar *fakeCalendar, sender *fakeSender) *Processor {
	return New(tasks, analyzer, calendar, sender, &fakeDedup{}, nil)
}

func lastReply(t *testing.T, sender *fakeSender) string {
	t.Helper()
	if len(sender.replies) == 0 {
		t.Fatal("no reply sent")
	}
	return sender.replies[len(sender.replies)-1]
}

func TestDoneOnMissingTaskMutatesNothing(t *testing.T) {
	tasks := newFakeTasks()
	sender := &fakeSender{}
	p := newProcessor(tasks, &fakeAnalyzer{}, &fakeCalendar{}, sender)

	if err := p.HandleUpdate(context.Background(), update(1, "/done 42")); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if len(tasks.marked) != 0 {
		t.Fatalf("missing id marked %v tasks done", tasks.marked)
	}
	if !strings.Contains(lastReply(t, sender), "not found") {
		t.Fatalf("reply = %q, want not-found message", lastReply(t, sender))
	}
}

func TestDoneIsIdempotent(t *testing.T) {
	tasks := newFakeTasks()
	tasks.byID[5] = &domain.Task{ID: 5, Title: "ship it", Status: domain.StatusDone}
	sender := &fakeSender{}
	p := newProcessor(tasks, &fakeAnalyzer{}, &fakeCalendar{}, sender)

	if err := p.HandleUpdate(context.Background(), update(1, "/done 5")); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if !strings.Contains(lastReply(t, sender), "already done") {
		t.Fatalf("reply = %q, want already-done message", lastReply(t, sender))
	}
}

func TestCalendarWithoutTimeAsksForClarification(t *testing.T) {
	calendar := &fakeCalendar{}
	sender := &fakeSender{}
	p := newProcessor(newFakeTasks(), &fakeAnalyzer{draft: &domain.EventDraft{Title: "lunch"}}, calendar, sender)

	if err := p.HandleUpdate(context.Background(), update(1, "/calendar lunch sometime")); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if len(calendar.inserted) != 0 {
		t.Fatal("no event should be created without a start time")
	}
	if !strings.Contains(lastReply(t, sender), "could not find a date") {
		t.Fatalf("reply = %q, want clarification", lastReply(t, sender))
	}
}

func TestCalendarCreatesEventWithStartTime(t *testing.T) {
	start := time.Date(2026, 9, 12, 15, 0, 0, 0, time.UTC)
	calendar := &fakeCalendar{}
	sender := &fakeSender{}
	p := newProcessor(newFakeTasks(), &fakeAnalyzer{draft: &domain.EventDraft{Title: "demo", Start: &start, DurationMinutes: 60}}, calendar, sender)

	if err := p.HandleUpdate(context.Background(), update(1, "/calendar demo saturday 3pm")); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if len(calendar.inserted) != 1 {
		t.Fatalf("inserted %d events, want 1", len(calendar.inserted))
	}
}

func TestAddFallsBackToPlainTask(t *testing.T) {
	tasks := newFakeTasks()
	sender := &fakeSender{}
	p := newProcessor(tasks, &fakeAnalyzer{}, &fakeCalendar{}, sender)

	if err := p.HandleUpdate(context.Background(), update(1, "/add water the plants")); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if len(tasks.created) != 1 {
		t.Fatalf("created %d tasks, want 1", len(tasks.created))
	}
	got := tasks.created[0]
	if got.Title != "water the plants" || got.Priority != domain.PriorityNormal {
		t.Fatalf("fallback task = %+v", got)
	}
	if got.Source != "telegram_user_7" {
		t.Fatalf("source = %q, want telegram_user_7", got.Source)
	}
}

func TestDuplicateUpdateIDIsDropped(t *testing.T) {
	tasks := newFakeTasks()
	sender := &fakeSender{}
	p := newProcessor(tasks, &fakeAnalyzer{}, &fakeCalendar{}, sender)

	payload := update(77, "/add same update twice")
	for i := 0; i < 2; i++ {
		if err := p.HandleUpdate(context.Background(), payload); err != nil {
			t.Fatalf("HandleUpdate #%d: %v", i+1, err)
		}
	}
	if len(tasks.created) != 1 {
		t.Fatalf("redelivered update created %d tasks, want 1", len(tasks.created))
	}
}

func TestUnknownCommandGetsHint(t *testing.T) {
	sender := &fakeSender{}
	p := newProcessor(newFakeTasks(), &fakeAnalyzer{}, &fakeCalendar{}, sender)

	if err := p.HandleUpdate(context.Background(), update(1, "/frobnicate")); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if !strings.Contains(lastReply(t, sender), "/help") {
		t.Fatalf("reply = %q, want help hint", lastReply(t, sender))
	}
}

func TestListGroupsAndEscapes(t *testing.T) {
	tasks := newFakeTasks()
	due := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	tasks.grouped[domain.PriorityUrgent] = []domain.Task{{ID: 1, Title: "fix *prod*", Due: &due, Source: "boss@x.com", Priority: domain.PriorityUrgent}}
	tasks.grouped[domain.PriorityLow] = []domain.Task{{ID: 2, Title: "tidy desk", Priority: domain.PriorityLow}}
	sender := &fakeSender{}
	p := newProcessor(tasks, &fakeAnalyzer{}, &fakeCalendar{}, sender)

	if err := p.HandleUpdate(context.Background(), update(1, "/list")); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	reply := lastReply(t, sender)
	if !strings.Contains(reply, "Open tasks: 2") {
		t.Fatalf("reply missing total:\n%s", reply)
	}
	if !strings.Contains(reply, `fix \*prod\*`) {
		t.Fatalf("reply title not escaped:\n%s", reply)
	}
	if strings.Index(reply, "URGENT") > strings.Index(reply, "LOW") {
		t.Fatalf("urgent group should precede low:\n%s", reply)
	}
	if !strings.Contains(reply, fmt.Sprintf("due %s", due.Format("02 Jan 15:04"))) {
		t.Fatalf("reply missing due annotation:\n%s", reply)
	}
}
