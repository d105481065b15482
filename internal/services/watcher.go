package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskpilot/backend/domain"
	"github.com/taskpilot/backend/internal/google"
	"github.com/taskpilot/backend/internal/retry"
	"github.com/taskpilot/backend/repository"
)

// MailProvider is the slice of the Gmail wrapper the watcher needs.
type MailProvider interface {
	Accounts() []string
	Watch(ctx context.Context, email string, now time.Time) (*domain.Subscription, error)
	Stop(ctx context.Context, email string) error
	HistorySince(ctx context.Context, email, historyID string) ([]string, string, error)
	GetMessage(ctx context.Context, email, messageID string) (*google.Message, error)
}

// Ingestor hands extracted text to the task reconciler.
type Ingestor interface {
	Ingest(ctx context.Context, text, source string) ([]domain.Task, error)
}

// Watcher keeps one live mail push channel per configured account and turns
// push notifications into reconciled tasks.
type Watcher struct {
	mail     MailProvider
	subs     repository.SubscriptionRepository
	ingestor Ingestor
	dedup    repository.DedupCache
	policy   *retry.Policy
	now      func() time.Time
	logger   *zap.Logger
}

func NewWatcher(
	mail MailProvider,
	subs repository.SubscriptionRepository,
	ingestor Ingestor,
	dedup repository.DedupCache,
	policy *retry.Policy,
	logger *zap.Logger,
) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = retry.NewPolicy(3, time.Second, logger)
	}
	return &Watcher{
		mail:     mail,
		subs:     subs,
		ingestor: ingestor,
		dedup:    dedup,
		policy:   policy,
		now:      time.Now,
		logger:   logger,
	}
}

// EnsureAll registers a watch for every configured account that lacks a live
// subscription. Accounts are isolated; one failure does not block the rest.
func (w *Watcher) EnsureAll(ctx context.Context) error {
	var failures int
	for _, email := range w.mail.Accounts() {
		existing, err := w.subs.GetByEmail(ctx, email)
		if err != nil && !errors.Is(err, domain.ErrSubscriptionNotFound) {
			w.logger.Error("subscription lookup failed", zap.String("email", email), zap.Error(err))
			failures++
			continue
		}
		if existing != nil && !existing.NeedsRenewal(w.now()) {
			continue
		}

		if err := w.register(ctx, email, existing); err != nil {
			w.logger.Error("mail watch registration failed", zap.String("email", email), zap.Error(err))
			failures++
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d account(s) failed watch registration", failures)
	}
	return nil
}

// RenewExpiring re-registers every channel expiring inside the lookahead
// window. Runs as the 2-hourly scheduler job.
func (w *Watcher) RenewExpiring(ctx context.Context) error {
	deadline := w.now().Add(domain.RenewalLookahead)
	expiring, err := w.subs.ListExpiring(ctx, deadline)
	if err != nil {
		return err
	}

	var failures int
	for i := range expiring {
		sub := expiring[i]
		if err := w.register(ctx, sub.Email, &sub); err != nil {
			w.logger.Error("mail watch renewal failed", zap.String("email", sub.Email), zap.Error(err))
			failures++
			continue
		}
		w.logger.Info("mail watch renewed", zap.String("email", sub.Email))
	}
	if failures > 0 {
		return fmt.Errorf("%d subscription(s) failed renewal", failures)
	}
	return nil
}

// register watches the account under the retry policy and upserts the single
// subscription row. An existing history cursor is preserved so renewal never
// skips the unprocessed delta.
func (w *Watcher) register(ctx context.Context, email string, existing *domain.Subscription) error {
	var sub *domain.Subscription
	err := w.policy.Do(ctx, "gmail_watch", func(ctx context.Context) error {
		var err error
		sub, err = w.mail.Watch(ctx, email, w.now())
		return err
	})
	if err != nil {
		return err
	}

	if existing != nil && existing.HistoryID != "" {
		sub.HistoryID = existing.HistoryID
	}
	return w.subs.Upsert(ctx, sub)
}

// pushEnvelope is the Pub/Sub wrapper around a mail push notification.
type pushEnvelope struct {
	Message struct {
		Data string `json:"data"`
	} `json:"message"`
}

type pushData struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// ProcessNotification handles one decoded mail webhook delivery: list the
// history delta since the stored cursor, fetch each new message, run the
// text through the reconciler, and advance the cursor.
func (w *Watcher) ProcessNotification(ctx context.Context, payload []byte) error {
	var envelope pushEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "malformed push envelope", err)
	}

	decoded, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "push data is not base64", err)
	}
	var data pushData
	if err := json.Unmarshal(decoded, &data); err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "malformed push data", err)
	}
	if data.EmailAddress == "" {
		return domain.NewError(domain.ErrCodeInvalid, "push data missing email address")
	}

	sub, err := w.subs.GetByEmail(ctx, data.EmailAddress)
	if err != nil {
		return err
	}

	messageIDs, latest, err := w.mail.HistorySince(ctx, sub.Email, sub.HistoryID)
	if err != nil {
		return err
	}

	for _, messageID := range messageIDs {
		if w.dedup != nil {
			seen, err := w.dedup.Seen(ctx, fmt.Sprintf("gmail:%s:%s", sub.Email, messageID))
			if err != nil {
				w.logger.Warn("mail dedup check failed", zap.Error(err))
			} else if seen {
				continue
			}
		}

		msg, err := w.mail.GetMessage(ctx, sub.Email, messageID)
		if err != nil {
			w.logger.Error("mail fetch failed",
				zap.String("email", sub.Email),
				zap.String("message_id", messageID),
				zap.Error(err),
			)
			continue
		}

		text := fmt.Sprintf("Subject: %s\n\n%s", msg.Subject, msg.Body)
		if _, err := w.ingestor.Ingest(ctx, text, senderAddress(msg.From)); err != nil {
			w.logger.Error("mail ingest failed",
				zap.String("message_id", messageID),
				zap.Error(err),
			)
		}
	}

	if latest != "" && latest != sub.HistoryID {
		sub.HistoryID = latest
		if err := w.subs.Upsert(ctx, sub); err != nil {
			return err
		}
	}
	return nil
}

// senderAddress reduces a From header to the bare address.
func senderAddress(from string) string {
	if addr, err := mail.ParseAddress(from); err == nil {
		return strings.ToLower(addr.Address)
	}
	return strings.ToLower(strings.TrimSpace(from))
}
