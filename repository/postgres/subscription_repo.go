package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskpilot/backend/domain"
	"github.com/taskpilot/backend/repository"
)

const subscriptionColumns = "id, email, channel_id, history_id, expiration, created_at, updated_at"

type subscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepository returns a Postgres-backed SubscriptionRepository.
func NewSubscriptionRepository(pool *pgxpool.Pool) repository.SubscriptionRepository {
	return &subscriptionRepository{pool: pool}
}

func (r *subscriptionRepository) GetByEmail(ctx context.Context, email string) (*domain.Subscription, error) {
	const query = `
	SELECT id, email, channel_id, history_id, expiration, created_at, updated_at
	FROM mail_subscriptions
	WHERE email = $1
	`

	row := r.pool.QueryRow(ctx, query, email)
	return scanSubscription(row)
}

func (r *subscriptionRepository) Upsert(ctx context.Context, sub *domain.Subscription) error {
	if sub == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO mail_subscriptions (email, channel_id, history_id, expiration)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (email) DO UPDATE
	SET channel_id = EXCLUDED.channel_id,
		history_id = EXCLUDED.history_id,
		expiration = EXCLUDED.expiration,
		updated_at = NOW()
	RETURNING id, created_at, updated_at
	`

	return r.pool.QueryRow(ctx, query,
		sub.Email,
		sub.ChannelID,
		sub.HistoryID,
		sub.Expiration,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
}

func (r *subscriptionRepository) ListExpiring(ctx context.Context, deadline time.Time) ([]domain.Subscription, error) {
	const query = `
	SELECT id, email, channel_id, history_id, expiration, created_at, updated_at
	FROM mail_subscriptions
	WHERE expiration <= $1
	ORDER BY expiration
	`

	rows, err := r.pool.Query(ctx, query, deadline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

func (r *subscriptionRepository) Delete(ctx context.Context, email string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM mail_subscriptions WHERE email = $1`, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

func (r *subscriptionRepository) All(ctx context.Context) ([]domain.Subscription, error) {
	const query = `
	SELECT id, email, channel_id, history_id, expiration, created_at, updated_at
	FROM mail_subscriptions
	ORDER BY email
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

func scanSubscription(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Subscription, error) {
	var sub domain.Subscription
	if err := row.Scan(
		&sub.ID,
		&sub.Email,
		&sub.ChannelID,
		&sub.HistoryID,
		&sub.Expiration,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func collectSubscriptions(rows pgx.Rows) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}
