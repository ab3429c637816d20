package subscriptions

import (
	"log"
	"time"

	"c3exam-backend/entitlement"
)

// Ledger is the subscription row store.
type Ledger interface {
	Create(sub *Subscription) error
	BySessionID(sessionID string) (*Subscription, error)
	// MarkCompleted claims the session: it reports false when another
	// caller already completed it.
	MarkCompleted(id int, paymentRef string, expiresAt time.Time) (bool, error)
	MarkExpired(id int) error
	LatestCompleted(userID int) (*Subscription, error)
}

// UserView is the slice of the user the reconciler needs.
type UserView struct {
	ID        int
	Email     string
	IsPaid    bool
	ExpiresAt *time.Time
}

type Users interface {
	ByID(id int) (*UserView, error)
	GrantPaidUntil(id int, until time.Time) error
}

// RewardGranter settles the referral reward on the referee's first payment.
type RewardGranter interface {
	GrantFirstPaymentReward(refereeID int) error
}

// Reconciler applies webhook events to the ledger and the user's entitlement.
type Reconciler struct {
	ledger  Ledger
	users   Users
	rewards RewardGranter
	now     func() time.Time
	receipt func(to string, amountCents int64, currency string, expiresAt time.Time)
}

func NewReconciler(ledger Ledger, users Users, rewards RewardGranter, receipt func(string, int64, string, time.Time)) *Reconciler {
	return &Reconciler{
		ledger:  ledger,
		users:   users,
		rewards: rewards,
		now:     time.Now,
		receipt: receipt,
	}
}

// HandleCompleted settles a checkout.session.completed event. The session
// row's status is the idempotency token: the first completion wins, every
// replay is a no-op. The new expiry stacks the term on top of a still-valid
// expiry instead of resetting it.
func (r *Reconciler) HandleCompleted(sessionID, paymentRef string) error {
	sub, err := r.ledger.BySessionID(sessionID)
	if err != nil {
		return err
	}
	if sub == nil {
		log.Printf("[SUBS] completed event for unknown session %s, ignored", sessionID)
		return nil
	}
	if sub.Status == StatusCompleted {
		return nil
	}
	user, err := r.users.ByID(sub.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		log.Printf("[SUBS] session %s references missing user %d, ignored", sessionID, sub.UserID)
		return nil
	}

	now := r.now()
	wasEntitled := entitlement.Entitled(user.IsPaid, user.ExpiresAt, now)
	newExpiry := entitlement.Extend(user.ExpiresAt, now)

	// Claim the session before touching the user; the guarded status flip
	// makes sure a concurrent replay of the same event cannot extend twice.
	claimed, err := r.ledger.MarkCompleted(sub.ID, paymentRef, newExpiry)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}
	if err := r.users.GrantPaidUntil(sub.UserID, newExpiry); err != nil {
		return err
	}
	log.Printf("[SUBS] session %s completed: user %d paid until %s", sessionID, sub.UserID, newExpiry.Format(time.RFC3339))

	if !wasEntitled && r.rewards != nil {
		if err := r.rewards.GrantFirstPaymentReward(sub.UserID); err != nil {
			log.Printf("[SUBS] referral reward for user %d failed: %v", sub.UserID, err)
		}
	}
	if r.receipt != nil && user.Email != "" {
		go r.receipt(user.Email, sub.Amount, sub.Currency, newExpiry)
	}
	return nil
}

// HandleExpired marks an abandoned checkout. Entitlement is never touched:
// an expired session only means the user closed the payment page.
func (r *Reconciler) HandleExpired(sessionID string) error {
	sub, err := r.ledger.BySessionID(sessionID)
	if err != nil {
		return err
	}
	if sub == nil || sub.Status != StatusPending {
		return nil
	}
	return r.ledger.MarkExpired(sub.ID)
}
