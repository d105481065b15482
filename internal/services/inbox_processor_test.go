package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/taskpilot/backend/domain"
	"github.com/taskpilot/backend/internal/infrastructure/inbox"
)

type countingChat struct {
	payloads [][]byte
	err      error
}

func (c *countingChat) HandleUpdate(ctx context.Context, payload []byte) error {
	if c.err != nil {
		return c.err
	}
	c.payloads = append(c.payloads, payload)
	return nil
}

type countingMail struct {
	calls int
}

func (m *countingMail) ProcessNotification(ctx context.Context, payload []byte) error {
	m.calls++
	return nil
}

type countingMeetings struct {
	events []*domain.MeetingEvent
}

func (m *countingMeetings) ProcessNotification(ctx context.Context, event *domain.MeetingEvent) ([]domain.Task, error) {
	m.events = append(m.events, event)
	return nil, nil
}

func newTestProcessor(t *testing.T, chat UpdateHandler, maxRetries int) (*InboxProcessor, *inbox.Store) {
	t.Helper()
	store, err := inbox.Open(filepath.Join(t.TempDir(), "inbox.db"))
	if err != nil {
		t.Fatalf("inbox.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	p := NewInboxProcessor(store, chat, &countingMail{}, &countingMeetings{}, InboxConfig{
		BatchSize:  10,
		MaxRetries: maxRetries,
	}, nil)
	return p, store
}

func TestDrainDispatchesByKind(t *testing.T) {
	chat := &countingChat{}
	mail := &countingMail{}
	meetings := &countingMeetings{}

	store, err := inbox.Open(filepath.Join(t.TempDir(), "inbox.db"))
	if err != nil {
		t.Fatalf("inbox.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	p := NewInboxProcessor(store, chat, mail, meetings, InboxConfig{BatchSize: 10, MaxRetries: 3}, nil)

	if err := p.Enqueue(inbox.KindTelegram, []byte(`{"update_id":1}`)); err != nil {
		t.Fatalf("Enqueue telegram: %v", err)
	}
	if err := p.Enqueue(inbox.KindGmail, []byte(`{"message":{}}`)); err != nil {
		t.Fatalf("Enqueue gmail: %v", err)
	}
	if err := p.Enqueue(inbox.KindCalendar, []byte(`{"eventId":"e1","summary":"standup"}`)); err != nil {
		t.Fatalf("Enqueue calendar: %v", err)
	}

	if err := p.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	if len(chat.payloads) != 1 || mail.calls != 1 || len(meetings.events) != 1 {
		t.Fatalf("dispatch counts chat=%d mail=%d calendar=%d, want 1 each",
			len(chat.payloads), mail.calls, len(meetings.events))
	}
	if meetings.events[0].ID != "e1" {
		t.Fatalf("calendar event = %+v", meetings.events[0])
	}

	size, err := store.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 0 {
		t.Fatalf("inbox size after drain = %d, want 0", size)
	}
}

func TestDrainRequeuesFailuresUntilMaxRetries(t *testing.T) {
	chat := &countingChat{err: errors.New("handler down")}
	p, store := newTestProcessor(t, chat, 3)

	if err := p.Enqueue(inbox.KindTelegram, []byte(`{"update_id":1}`)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// Two failing drains keep the item; the third hits MaxRetries and drops it.
	for i := 0; i < 2; i++ {
		if err := p.Drain(context.Background()); err != nil {
			t.Fatalf("Drain #%d: %v", i+1, err)
		}
		size, _ := store.Size()
		if size != 1 {
			t.Fatalf("after drain #%d size = %d, want 1", i+1, size)
		}
	}

	if err := p.Drain(context.Background()); err != nil {
		t.Fatalf("final Drain: %v", err)
	}
	size, _ := store.Size()
	if size != 0 {
		t.Fatalf("item not dropped after max retries, size = %d", size)
	}
}
