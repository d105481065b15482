package inbox

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "inbox.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestEnqueueGetBatchRemove(t *testing.T) {
	store := openTestStore(t)

	for i, kind := range []string{KindTelegram, KindGmail, KindCalendar} {
		err := store.Enqueue(Item{
			Kind:      kind,
			Payload:   json.RawMessage(`{"n":1}`),
			Timestamp: time.Date(2026, 8, 1, 12, 0, i, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("Enqueue %s: %v", kind, err)
		}
	}

	items, err := store.GetBatch(10)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	// Keys are time ordered, so drains see deliveries oldest first.
	if items[0].Kind != KindTelegram || items[2].Kind != KindCalendar {
		t.Fatalf("batch out of order: %s, %s, %s", items[0].Kind, items[1].Kind, items[2].Kind)
	}

	if err := store.Remove(items[0]); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	size, err := store.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 2 {
		t.Fatalf("size = %d after remove, want 2", size)
	}
}

func TestGetBatchHonorsLimit(t *testing.T) {
	store := openTestStore(t)

	for i := 0; i < 5; i++ {
		if err := store.Enqueue(Item{Kind: KindGmail, Payload: json.RawMessage(`{}`)}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	items, err := store.GetBatch(2)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
}

func TestRequeueBumpsRetriesAndMovesToBack(t *testing.T) {
	store := openTestStore(t)

	old := time.Now().Add(-time.Hour)
	if err := store.Enqueue(Item{ID: "first", Kind: KindTelegram, Timestamp: old}); err != nil {
		t.Fatalf("Enqueue first: %v", err)
	}
	if err := store.Enqueue(Item{ID: "second", Kind: KindTelegram, Timestamp: old.Add(time.Minute)}); err != nil {
		t.Fatalf("Enqueue second: %v", err)
	}

	items, err := store.GetBatch(10)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if err := store.Requeue(items[0]); err != nil {
		t.Fatalf("Requeue: %v", err)
	}

	items, err = store.GetBatch(10)
	if err != nil {
		t.Fatalf("GetBatch after requeue: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items after requeue, want 2", len(items))
	}
	if items[0].ID != "second" {
		t.Fatalf("head of queue = %s, want second", items[0].ID)
	}
	if items[1].ID != "first" || items[1].Retries != 1 {
		t.Fatalf("requeued item = %+v, want id=first retries=1", items[1])
	}
}

func TestCleanupDropsStaleItems(t *testing.T) {
	store := openTestStore(t)

	if err := store.Enqueue(Item{ID: "stale", Timestamp: time.Now().Add(-48 * time.Hour)}); err != nil {
		t.Fatalf("Enqueue stale: %v", err)
	}
	if err := store.Enqueue(Item{ID: "fresh", Timestamp: time.Now()}); err != nil {
		t.Fatalf("Enqueue fresh: %v", err)
	}

	if err := store.Cleanup(time.Now().Add(-24 * time.Hour)); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	items, err := store.GetBatch(10)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if len(items) != 1 || items[0].ID != "fresh" {
		t.Fatalf("cleanup kept wrong items: %+v", items)
	}
}
