package domain

import "time"

// Subscription records a live mail push channel for one account. There is at
// most one row per account email; renewals update the row in place.
type Subscription struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	ChannelID  string    `json:"channel_id"`
	HistoryID  string    `json:"history_id"`
	Expiration time.Time `json:"expiration"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RenewalLookahead is how far ahead of expiry a channel counts as expiring.
// The provider stops delivering silently once a channel lapses, so renewal
// has to land before that.
const RenewalLookahead = 2 * time.Hour

// NeedsRenewal reports whether the channel expires within the lookahead
// window measured from now.
func (s *Subscription) NeedsRenewal(now time.Time) bool {
	if s == nil {
		return false
	}
	return !s.Expiration.After(now.Add(RenewalLookahead))
}
