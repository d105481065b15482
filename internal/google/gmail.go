package google

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/taskpilot/backend/domain"
	"github.com/taskpilot/backend/internal/config"
)

// ChannelDuration is how long a mail push channel stays alive before the
// provider silently stops delivering.
const ChannelDuration = 24 * time.Hour

// Message is one fetched mail message reduced to what analysis needs.
type Message struct {
	ID      string
	From    string
	Subject string
	Body    string
}

// MailService wraps the Gmail API for every watched account.
type MailService struct {
	services map[string]*gmail.Service
	topic    string
	logger   *zap.Logger
}

// NewMailService builds one Gmail service per configured account.
func NewMailService(ctx context.Context, cfg config.MailConfig, logger *zap.Logger) (*MailService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	services := make(map[string]*gmail.Service, len(cfg.Accounts))
	for _, acct := range cfg.Accounts {
		ts, err := tokenSourceFromFile(ctx, acct.Credentials, gmail.GmailReadonlyScope)
		if err != nil {
			return nil, fmt.Errorf("gmail credentials for %s: %w", acct.Email, err)
		}
		srv, err := gmail.NewService(ctx, option.WithTokenSource(ts))
		if err != nil {
			return nil, fmt.Errorf("gmail service for %s: %w", acct.Email, err)
		}
		services[acct.Email] = srv
	}

	return &MailService{services: services, topic: cfg.TopicName, logger: logger}, nil
}

// Accounts lists the watched account emails.
func (s *MailService) Accounts() []string {
	emails := make([]string, 0, len(s.services))
	for email := range s.services {
		emails = append(emails, email)
	}
	return emails
}

func (s *MailService) service(email string) (*gmail.Service, error) {
	srv, ok := s.services[email]
	if !ok {
		return nil, domain.NewError(domain.ErrCodeNotFound, fmt.Sprintf("no mail account configured for %s", email))
	}
	return srv, nil
}

// NewChannelID derives a channel name unique per account and registration.
func NewChannelID(email string, now time.Time) string {
	mangled := strings.NewReplacer("@", "-", ".", "-").Replace(email)
	return fmt.Sprintf("gmail-%s-%d", mangled, now.Unix())
}

// Watch registers a push channel for the account's inbox and returns the
// subscription row to persist.
func (s *MailService) Watch(ctx context.Context, email string, now time.Time) (*domain.Subscription, error) {
	srv, err := s.service(email)
	if err != nil {
		return nil, err
	}

	resp, err := srv.Users.Watch(email, &gmail.WatchRequest{
		TopicName: s.topic,
		LabelIds:  []string{"INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail watch %s: %w", email, err)
	}

	expiration := now.Add(ChannelDuration)
	if resp.Expiration > 0 {
		expiration = time.UnixMilli(resp.Expiration)
	}

	sub := &domain.Subscription{
		Email:      email,
		ChannelID:  NewChannelID(email, now),
		HistoryID:  strconv.FormatUint(resp.HistoryId, 10),
		Expiration: expiration,
	}

	s.logger.Info("mail watch registered",
		zap.String("email", email),
		zap.String("channel_id", sub.ChannelID),
		zap.Time("expiration", sub.Expiration),
	)
	return sub, nil
}

// Stop tears down the account's push channel. Not finding one is fine.
func (s *MailService) Stop(ctx context.Context, email string) error {
	srv, err := s.service(email)
	if err != nil {
		return err
	}
	if err := srv.Users.Stop(email).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gmail stop %s: %w", email, err)
	}
	return nil
}

// HistorySince returns ids of messages added after the given history marker,
// along with the newest history id to store for the next delta.
func (s *MailService) HistorySince(ctx context.Context, email, historyID string) ([]string, string, error) {
	srv, err := s.service(email)
	if err != nil {
		return nil, "", err
	}

	start, err := strconv.ParseUint(historyID, 10, 64)
	if err != nil {
		return nil, "", domain.WrapError(domain.ErrCodeInvalid, "malformed history id", err)
	}

	var (
		messageIDs []string
		latest     = historyID
		pageToken  string
	)
	for {
		call := srv.Users.History.List(email).
			StartHistoryId(start).
			HistoryTypes("messageAdded").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, "", fmt.Errorf("gmail history %s: %w", email, err)
		}

		if resp.HistoryId > 0 {
			latest = strconv.FormatUint(resp.HistoryId, 10)
		}
		for _, h := range resp.History {
			for _, added := range h.MessagesAdded {
				if added.Message != nil {
					messageIDs = append(messageIDs, added.Message.Id)
				}
			}
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return messageIDs, latest, nil
}

// GetMessage fetches one message and flattens it for analysis.
func (s *MailService) GetMessage(ctx context.Context, email, messageID string) (*Message, error) {
	srv, err := s.service(email)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get(email, messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail message %s: %w", messageID, err)
	}

	out := &Message{ID: messageID}
	if msg.Payload != nil {
		for _, header := range msg.Payload.Headers {
			switch header.Name {
			case "Subject":
				out.Subject = header.Value
			case "From":
				out.From = header.Value
			}
		}
		out.Body = extractBody(msg.Payload)
	}
	if out.Body == "" {
		out.Body = msg.Snippet
	}
	return out, nil
}

// extractBody walks the MIME tree for the first text/plain part.
func extractBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}
	if payload.MimeType == "text/plain" && payload.Body != nil && payload.Body.Data != "" {
		data := payload.Body.Data
		if decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "=")); err == nil {
			return string(decoded)
		}
	}
	for _, part := range payload.Parts {
		if body := extractBody(part); body != "" {
			return body
		}
	}
	return ""
}
