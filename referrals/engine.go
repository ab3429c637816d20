package referrals

import (
	"errors"
	"log"
	"time"

	"c3exam-backend/entitlement"
)

const rewardDays = 5

var (
	ErrInvalidCode     = errors.New("invalid_code")
	ErrSelfReferral    = errors.New("self_referral")
	ErrAlreadyReferred = errors.New("already_referred")
)

// User is the slice of the account the engine works with.
type User struct {
	ID           int
	Email        string
	IsPaid       bool
	ExpiresAt    *time.Time
	ReferralCode *string
	ReferredBy   *int
}

// Reward is one pending or settled referral relationship. The two rewarded
// flags flip together exactly once, on the referee's first payment.
type Reward struct {
	ID         int
	ReferrerID int
	RefereeID  int
	Days       int
}

type Store interface {
	UserByID(id int) (*User, error)
	UserByCode(code string) (*User, error)
	SetReferralCode(userID int, code string) error
	SetReferredBy(userID, referrerID int) error
	CreateReward(referrerID, refereeID, days int) error
	// ConsumeReward atomically flips both rewarded flags for the referee's
	// pending reward and returns it, or (nil, nil) when there is nothing
	// left to consume.
	ConsumeReward(refereeID int) (*Reward, error)
	GrantPaidUntil(userID int, until time.Time) error
}

type Engine struct {
	store  Store
	now    func() time.Time
	notify func(email string, days int)
}

func NewEngine(store Store, notify func(email string, days int)) *Engine {
	return &Engine{store: store, now: time.Now, notify: notify}
}

// Code returns the user's referral code, generating one lazily on first
// request. Ten random attempts, then a deterministic fallback derived from
// the user id so the call can never fail to produce a code.
func (e *Engine) Code(userID int) (string, error) {
	u, err := e.store.UserByID(userID)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", ErrInvalidCode
	}
	if u.ReferralCode != nil && *u.ReferralCode != "" {
		return *u.ReferralCode, nil
	}
	for i := 0; i < 10; i++ {
		code, err := randomCode()
		if err != nil {
			break
		}
		taken, err := e.store.UserByCode(code)
		if err != nil {
			return "", err
		}
		if taken != nil {
			continue
		}
		if err := e.store.SetReferralCode(userID, code); err != nil {
			return "", err
		}
		return code, nil
	}
	code := fallbackCode(userID)
	if err := e.store.SetReferralCode(userID, code); err != nil {
		return "", err
	}
	return code, nil
}

// Validate resolves a code to its owner without binding anything.
func (e *Engine) Validate(code string) (*User, error) {
	owner, err := e.store.UserByCode(NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, ErrInvalidCode
	}
	return owner, nil
}

// Bind links the user to the code's owner and creates the pending reward.
// A user can be referred at most once, and never by themselves.
func (e *Engine) Bind(userID int, code string) error {
	owner, err := e.Validate(code)
	if err != nil {
		return err
	}
	if owner.ID == userID {
		return ErrSelfReferral
	}
	u, err := e.store.UserByID(userID)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrInvalidCode
	}
	if u.ReferredBy != nil {
		return ErrAlreadyReferred
	}
	if err := e.store.SetReferredBy(userID, owner.ID); err != nil {
		return err
	}
	return e.store.CreateReward(owner.ID, userID, rewardDays)
}

// GrantFirstPaymentReward settles the pending reward after the referee's
// first payment: consume the reward row first (the consumption is the
// exactly-once token), then credit the bonus days to both sides.
func (e *Engine) GrantFirstPaymentReward(refereeID int) error {
	rw, err := e.store.ConsumeReward(refereeID)
	if err != nil {
		return err
	}
	if rw == nil {
		return nil
	}
	for _, id := range []int{rw.ReferrerID, rw.RefereeID} {
		u, err := e.store.UserByID(id)
		if err != nil {
			return err
		}
		if u == nil {
			log.Printf("[REFERRALS] reward %d references missing user %d", rw.ID, id)
			continue
		}
		until := entitlement.ExtendDays(u.ExpiresAt, e.now(), rw.Days)
		if err := e.store.GrantPaidUntil(id, until); err != nil {
			return err
		}
		if e.notify != nil && u.Email != "" {
			go e.notify(u.Email, rw.Days)
		}
	}
	log.Printf("[REFERRALS] reward settled: referrer %d and referee %d each got %d days", rw.ReferrerID, rw.RefereeID, rw.Days)
	return nil
}
