package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Policy drives retries for outbound calls. Delays grow as BaseDelay*2^attempt
// with the first attempt running immediately.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Classify reports whether an error is worth retrying. Nil means every
	// error is retryable.
	Classify func(err error) bool
	Logger   *zap.Logger
}

// NewPolicy returns a Policy with sane bounds applied.
func NewPolicy(maxAttempts int, baseDelay time.Duration, logger *zap.Logger) *Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		Logger:      logger,
	}
}

// Error wraps the terminal failure of a retried operation.
type Error struct {
	Op       string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so Do stops immediately instead of retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err carries the Permanent marker.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Do runs fn up to MaxAttempts times, sleeping between attempts and honoring
// context cancellation during the waits. The returned error is always a
// *Error wrapping the last failure.
func (p *Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := p.BaseDelay << (attempt - 1)
			logger.Warn("retrying operation",
				zap.String("op", op),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return &Error{Op: op, Attempts: attempt, Err: ctx.Err()}
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) || (p.Classify != nil && !p.Classify(lastErr)) {
			return &Error{Op: op, Attempts: attempt + 1, Err: lastErr}
		}
		if ctx.Err() != nil {
			return &Error{Op: op, Attempts: attempt + 1, Err: lastErr}
		}
	}

	return &Error{Op: op, Attempts: attempts, Err: lastErr}
}
