package reconcile

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/taskpilot/backend/domain"
)

type fakeAnalyzer struct {
	analysis *domain.Analysis
	err      error
}

func (f *fakeAnalyzer) AnalyzeText(ctx context.Context, text string) (*domain.Analysis, error) {
	if f.analysis == nil {
		return domain.SafeAnalysis(), f.err
	}
	return f.analysis, f.err
}

type fakeStore struct {
	open    map[string]*domain.Task
	created []*domain.Task
	nextID  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{open: make(map[string]*domain.Task)}
}

func storeKey(title, source string) string {
	return strings.ToLower(title) + "|" + source
}

func (f *fakeStore) CreateTask(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	f.nextID++
	task.ID = f.nextID
	f.created = append(f.created, task)
	f.open[storeKey(task.Title, task.Source)] = task
	return task, nil
}

func (f *fakeStore) FindOpenByTitle(ctx context.Context, title, source string) (*domain.Task, error) {
	if task, ok := f.open[storeKey(title, source)]; ok {
		return task, nil
	}
	return nil, domain.ErrTaskNotFound
}

func TestIngestCreatesTasks(t *testing.T) {
	store := newFakeStore()
	analyzer := &fakeAnalyzer{analysis: &domain.Analysis{
		Tasks: []domain.TaskCandidate{
			{Title: "Send  the\treport", Priority: domain.PriorityHigh},
			{Title: "\x00\x01  ", Priority: domain.PriorityLow},
		},
	}}

	created, err := New(analyzer, store, store, nil).Ingest(context.Background(), "email body", "Boss@Example.com")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("created %d tasks, want 1 (unusable title dropped)", len(created))
	}
	if created[0].Title != "Send the report" {
		t.Fatalf("title = %q, want sanitized %q", created[0].Title, "Send the report")
	}
	if created[0].Source != "boss@example.com" {
		t.Fatalf("source = %q, want lower-cased", created[0].Source)
	}
}

func TestIngestIsIdempotentForExactTitles(t *testing.T) {
	store := newFakeStore()
	analyzer := &fakeAnalyzer{analysis: &domain.Analysis{
		Tasks: []domain.TaskCandidate{{Title: "Review budget", Priority: domain.PriorityNormal}},
	}}
	r := New(analyzer, store, store, nil)

	for i := 0; i < 3; i++ {
		if _, err := r.Ingest(context.Background(), "same email", "boss@example.com"); err != nil {
			t.Fatalf("Ingest #%d: %v", i+1, err)
		}
	}
	if len(store.created) != 1 {
		t.Fatalf("created %d tasks across identical ingests, want 1", len(store.created))
	}
}

func TestIngestPartialTitleMatchIsNewTask(t *testing.T) {
	store := newFakeStore()
	store.open[storeKey("Review budget", "boss@example.com")] = &domain.Task{Title: "Review budget"}

	analyzer := &fakeAnalyzer{analysis: &domain.Analysis{
		Tasks: []domain.TaskCandidate{{Title: "Review budget for Q4", Priority: domain.PriorityNormal}},
	}}

	created, err := New(analyzer, store, store, nil).Ingest(context.Background(), "email", "boss@example.com")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("partial match should create a new task, created %d", len(created))
	}
}

func TestIngestUpgradesNearTermDueToUrgent(t *testing.T) {
	store := newFakeStore()
	soon := time.Now().Add(2 * time.Hour)
	later := time.Now().Add(72 * time.Hour)
	analyzer := &fakeAnalyzer{analysis: &domain.Analysis{
		Tasks: []domain.TaskCandidate{
			{Title: "Pay invoice", Due: &soon, Priority: domain.PriorityLow},
			{Title: "Plan offsite", Due: &later, Priority: domain.PriorityLow},
		},
	}}

	created, err := New(analyzer, store, store, nil).Ingest(context.Background(), "email", "billing@example.com")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created %d tasks, want 2", len(created))
	}
	if created[0].Priority != domain.PriorityUrgent {
		t.Fatalf("near-term due task priority = %q, want urgent", created[0].Priority)
	}
	if created[1].Priority != domain.PriorityLow {
		t.Fatalf("far due task priority = %q, want low", created[1].Priority)
	}
}

func TestIngestSafeOnAnalyzerFailure(t *testing.T) {
	store := newFakeStore()
	analyzer := &fakeAnalyzer{err: context.DeadlineExceeded}

	created, err := New(analyzer, store, store, nil).Ingest(context.Background(), "email", "a@b.c")
	if err != nil {
		t.Fatalf("Ingest should swallow degraded analysis, got %v", err)
	}
	if len(created) != 0 || len(store.created) != 0 {
		t.Fatalf("degraded analysis must not create tasks, created %d", len(store.created))
	}
}
