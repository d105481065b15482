package usecase

import "context"

// Notifier pushes operator-facing messages to the configured chat. Sends are
// best effort; callers log failures and move on.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}
