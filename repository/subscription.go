package repository

import (
	"context"
	"time"

	"github.com/taskpilot/backend/domain"
)

type SubscriptionRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.Subscription, error)
	// Upsert inserts or replaces the single row for the subscription's email.
	Upsert(ctx context.Context, sub *domain.Subscription) error
	// ListExpiring returns subscriptions whose expiration falls at or before
	// the deadline.
	ListExpiring(ctx context.Context, deadline time.Time) ([]domain.Subscription, error)
	Delete(ctx context.Context, email string) error
	All(ctx context.Context) ([]domain.Subscription, error)
}
