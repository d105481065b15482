package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/taskpilot/backend/domain"
	"github.com/taskpilot/backend/repository"
)

type fakeTaskRepo struct {
	repository.TaskRepository

	tasks  []domain.Task
	nextID int64
}

func (f *fakeTaskRepo) All(ctx context.Context) ([]domain.Task, error) {
	return f.tasks, nil
}

func (f *fakeTaskRepo) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	f.nextID++
	task.ID = f.nextID
	f.tasks = append(f.tasks, *task)
	return task, nil
}

func testBackup(t *testing.T, tasks *fakeTaskRepo, subs *fakeSubs) *Backup {
	t.Helper()
	return NewBackup(tasks, subs, BackupConfig{
		Directory:     t.TempDir(),
		RetentionDays: 7,
	}, nil)
}

func TestRunWritesVerifiedSnapshot(t *testing.T) {
	due := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	tasks := &fakeTaskRepo{tasks: []domain.Task{
		{ID: 1, Title: "ship release", Due: &due, Status: domain.StatusOpen, Priority: domain.PriorityHigh},
		{ID: 2, Title: "write notes", Status: domain.StatusDone, Priority: domain.PriorityNormal},
	}}
	subs := newFakeSubs()
	subs.byEmail["a@x.com"] = &domain.Subscription{Email: "a@x.com", ChannelID: "ch-1"}

	b := testBackup(t, tasks, subs)
	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	infos, err := b.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(infos))
	}

	snapshot, err := b.readSnapshot(infos[0].Name)
	if err != nil {
		t.Fatalf("readSnapshot: %v", err)
	}
	if len(snapshot.Tasks) != 2 || len(snapshot.Subscriptions) != 1 {
		t.Fatalf("snapshot = %d tasks, %d subscriptions", len(snapshot.Tasks), len(snapshot.Subscriptions))
	}
	if snapshot.Metadata.Tasks != 2 {
		t.Fatalf("metadata task count = %d, want 2", snapshot.Metadata.Tasks)
	}
}

func TestRetentionRemovesOldSnapshots(t *testing.T) {
	tasks := &fakeTaskRepo{}
	b := testBackup(t, tasks, newFakeSubs())

	stale := filepath.Join(b.cfg.Directory, "backup_20260101_000000.json.gz")
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatalf("write stale file: %v", err)
	}
	oldTime := time.Now().Add(-10 * 24 * time.Hour)
	if err := os.Chtimes(stale, oldTime, oldTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("stale snapshot should have been removed")
	}
	infos, err := b.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("got %d snapshots after retention, want 1 fresh", len(infos))
	}
}

func TestStats(t *testing.T) {
	b := testBackup(t, &fakeTaskRepo{}, newFakeSubs())

	stats, err := b.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Count != 0 {
		t.Fatalf("empty dir count = %d, want 0", stats.Count)
	}

	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	stats, err = b.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Count != 1 || stats.TotalBytes == 0 || stats.Newest == nil {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestRestoreReplaysSnapshot(t *testing.T) {
	source := &fakeTaskRepo{tasks: []domain.Task{
		{ID: 1, Title: "restore me", Status: domain.StatusOpen, Priority: domain.PriorityNormal},
	}}
	subs := newFakeSubs()
	subs.byEmail["a@x.com"] = &domain.Subscription{Email: "a@x.com"}

	b := testBackup(t, source, subs)
	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	infos, _ := b.List()

	target := &fakeTaskRepo{}
	targetSubs := newFakeSubs()
	restorer := NewBackup(target, targetSubs, b.cfg, nil)

	restored, err := restorer.Restore(context.Background(), infos[0].Name)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored != 1 || len(target.tasks) != 1 {
		t.Fatalf("restored %d tasks, store has %d, want 1", restored, len(target.tasks))
	}
	if _, ok := targetSubs.byEmail["a@x.com"]; !ok {
		t.Fatal("subscription not restored")
	}

	if _, err := restorer.Restore(context.Background(), "../evil.json.gz"); err == nil {
		t.Fatal("path traversal name should be rejected")
	}
}
