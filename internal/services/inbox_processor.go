package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taskpilot/backend/domain"
	"github.com/taskpilot/backend/internal/infrastructure/inbox"
)

// UpdateHandler processes one chat webhook payload.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, payload []byte) error
}

// NotificationHandler processes one mail webhook payload.
type NotificationHandler interface {
	ProcessNotification(ctx context.Context, payload []byte) error
}

// MeetingHandler processes one calendar webhook payload.
type MeetingHandler interface {
	ProcessNotification(ctx context.Context, event *domain.MeetingEvent) ([]domain.Task, error)
}

// InboxConfig controls the drain cycle.
type InboxConfig struct {
	BatchSize  int
	MaxRetries int
}

// InboxProcessor drains the durable webhook inbox, dispatching each delivery
// by kind. Webhook handlers only enqueue and ack; this is where the real
// work happens, off the provider's latency budget.
type InboxProcessor struct {
	store    *inbox.Store
	chat     UpdateHandler
	mail     NotificationHandler
	meetings MeetingHandler
	cfg      InboxConfig
	logger   *zap.Logger
}

func NewInboxProcessor(
	store *inbox.Store,
	chat UpdateHandler,
	mail NotificationHandler,
	meetings MeetingHandler,
	cfg InboxConfig,
	logger *zap.Logger,
) *InboxProcessor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InboxProcessor{
		store:    store,
		chat:     chat,
		mail:     mail,
		meetings: meetings,
		cfg:      cfg,
		logger:   logger,
	}
}

// Enqueue persists an accepted delivery for the next drain cycle.
func (p *InboxProcessor) Enqueue(kind string, payload []byte) error {
	return p.store.Enqueue(inbox.Item{
		Kind:      kind,
		Payload:   json.RawMessage(payload),
		Timestamp: time.Now(),
	})
}

// Drain processes one batch. Failed deliveries go to the back of the queue
// until MaxRetries, then get dropped with an error log.
func (p *InboxProcessor) Drain(ctx context.Context) error {
	items, err := p.store.GetBatch(p.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := p.dispatch(ctx, item); err != nil {
			if item.Retries+1 >= p.cfg.MaxRetries {
				p.logger.Error("dropping webhook delivery after max retries",
					zap.String("id", item.ID),
					zap.String("kind", item.Kind),
					zap.Error(err),
				)
				if err := p.store.Remove(item); err != nil {
					p.logger.Warn("inbox remove failed", zap.Error(err))
				}
				continue
			}

			p.logger.Warn("webhook delivery failed, requeueing",
				zap.String("id", item.ID),
				zap.String("kind", item.Kind),
				zap.Int("retries", item.Retries+1),
				zap.Error(err),
			)
			if err := p.store.Requeue(item); err != nil {
				p.logger.Error("inbox requeue failed", zap.Error(err))
			}
			continue
		}

		if err := p.store.Remove(item); err != nil {
			p.logger.Warn("inbox remove failed", zap.Error(err))
		}
	}
	return nil
}

func (p *InboxProcessor) dispatch(ctx context.Context, item inbox.Item) error {
	switch item.Kind {
	case inbox.KindTelegram:
		return p.chat.HandleUpdate(ctx, item.Payload)
	case inbox.KindGmail:
		return p.mail.ProcessNotification(ctx, item.Payload)
	case inbox.KindCalendar:
		var event domain.MeetingEvent
		if err := json.Unmarshal(item.Payload, &event); err != nil {
			return domain.WrapError(domain.ErrCodeInvalid, "malformed calendar payload", err)
		}
		_, err := p.meetings.ProcessNotification(ctx, &event)
		return err
	default:
		return fmt.Errorf("unsupported delivery kind %q", item.Kind)
	}
}
