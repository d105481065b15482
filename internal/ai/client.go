package ai

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

	"github.com/taskpilot/backend/domain"
	"github.com/taskpilot/backend/internal/config"
	"github.com/taskpilot/backend/internal/metrics"
	"github.com/taskpilot/backend/internal/retry"
)

// Client talks to the Gemini generateContent REST endpoint. Calls run under
// the injected retry policy; server-side and rate-limit failures retry,
// other client errors do not.
type Client struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	policy     *retry.Policy
	logger     *zap.Logger
}

// NewClient builds a Client from configuration.
func NewClient(cfg config.AnalysisConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	policy := retry.NewPolicy(cfg.MaxAttempts, cfg.BaseDelay, logger)
	policy.Classify = retryableStatus

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    cfg.BaseURL,
		policy:     policy,
		logger:     logger,
	}
}

// StatusError is an HTTP failure from the analysis provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analysis provider returned status %d", e.Code)
}

func retryableStatus(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return true
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *Client) generate(ctx context.Context, op, prompt string) (string, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}

	started := time.Now()
	var text string
	err = c.policy.Do(ctx, op, func(ctx context.Context) error {
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
		if resp.StatusCode != http.StatusOK {
			return &StatusError{Code: resp.StatusCode, Body: string(data)}
		}

		var parsed generateResponse
		if err := json.Unmarshal(data, &parsed); err != nil {
			return retry.Permanent(err)
		}
		if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
			return retry.Permanent(errors.New("analysis response has no candidates"))
		}

		text = parsed.Candidates[0].Content.Parts[0].Text
		return nil
	})
	metrics.ObserveExternal("analysis", time.Since(started).Seconds(), err)
	if err != nil {
		return "", err
	}
	return text, nil
}

// AnalyzeText extracts actionable tasks from raw message or email text. The
// result is always usable: a malformed model reply or an exhausted retry
// budget degrades to the safe empty analysis, with the error returned
// alongside for logging.
func (c *Client) AnalyzeText(ctx context.Context, text string) (*domain.Analysis, error) {
	raw, err := c.generate(ctx, "analyze_text", taskPrompt(text))
	if err != nil {
		return domain.SafeAnalysis(), err
	}

	analysis := parseAnalysis(raw)
	if len(analysis.Tasks) == 0 && analysis.Context == "" {
		c.logger.Debug("analysis produced no tasks", zap.Int("input_len", len(text)))
	}
	return analysis, nil
}

// AnalyzeEvent turns free-form text into a calendar event draft. A draft with
// a nil Start means the model could not recover a date and the caller should
// ask for one.
func (c *Client) AnalyzeEvent(ctx context.Context, text string, now time.Time) (*domain.EventDraft, error) {
	raw, err := c.generate(ctx, "analyze_event", eventPrompt(text, now))
	if err != nil {
		return nil, err
	}
	return parseEventDraft(raw), nil
}
