package subscriptions

import "time"

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusExpired   = "expired"
)

// Subscription is one checkout attempt, keyed by the Stripe session id.
// Only a completed row grants entitlement; pending and expired rows are the
// audit trail of abandoned checkouts.
type Subscription struct {
	ID         int        `json:"id"`
	UserID     int        `json:"user_id"`
	SessionID  string     `json:"session_id"`
	Amount     int64      `json:"amount"`
	Currency   string     `json:"currency"`
	Status     string     `json:"status"`
	PaymentRef string     `json:"payment_ref"`
	ExpiresAt  *time.Time `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
