package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/taskpilot/backend/internal/config"
	"github.com/taskpilot/backend/internal/metrics"
	"github.com/taskpilot/backend/internal/retry"
)

const defaultAPIBase = "https://api.telegram.org"

// Client sends bot messages through the Telegram HTTP API.
type Client struct {
	httpClient *http.Client
	apiBase    string
	token      string
	policy     *retry.Policy
	logger     *zap.Logger
}

// Option tweaks client construction, mostly for tests.
type Option func(*Client)

// WithAPIBase overrides the Telegram API host.
func WithAPIBase(base string) Option {
	return func(c *Client) { c.apiBase = base }
}

// NewClient builds a Client for the configured bot token.
func NewClient(cfg config.TelegramConfig, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	policy := retry.NewPolicy(3, time.Second, logger)
	policy.Classify = retryableStatus

	c := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiBase:    defaultAPIBase,
		token:      cfg.Token,
		policy:     policy,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is a non-OK response from the Telegram API.
type StatusError struct {
	Code        int
	Description string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("telegram api returned status %d: %s", e.Code, e.Description)
}

func retryableStatus(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return true
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage delivers markdown-formatted text to a chat. Callers are
// responsible for escaping user-supplied fragments with EscapeMarkdown.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.token)

	body, err := json.Marshal(sendMessageRequest{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "Markdown",
	})
	if err != nil {
		return err
	}

	started := time.Now()
	sendErr := c.policy.Do(ctx, "telegram_send", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}

		var parsed apiResponse
		if err := json.Unmarshal(data, &parsed); err == nil && parsed.Description != "" && !parsed.OK {
			return &StatusError{Code: resp.StatusCode, Description: parsed.Description}
		}
		if resp.StatusCode != http.StatusOK {
			return &StatusError{Code: resp.StatusCode}
		}
		return nil
	})
	metrics.ObserveExternal("telegram", time.Since(started).Seconds(), sendErr)
	return sendErr
}
