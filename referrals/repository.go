package referrals

import (
	"database/sql"
	"time"
)

// Repository implements Store over MySQL.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository { return &Repository{db: db} }

const userColumns = "id, email, is_paid, subscription_expires_at, referral_code, referred_by"

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.IsPaid, &u.ExpiresAt, &u.ReferralCode, &u.ReferredBy)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) UserByID(id int) (*User, error) {
	return scanUser(r.db.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ? LIMIT 1", id))
}

func (r *Repository) UserByCode(code string) (*User, error) {
	return scanUser(r.db.QueryRow("SELECT "+userColumns+" FROM users WHERE referral_code = ? LIMIT 1", code))
}

// SetReferralCode writes the code only while the slot is still empty, so two
// racing requests for the same user cannot end up with different codes.
func (r *Repository) SetReferralCode(userID int, code string) error {
	_, err := r.db.Exec("UPDATE users SET referral_code = ?, updated_at = NOW() WHERE id = ? AND referral_code IS NULL", code, userID)
	return err
}

func (r *Repository) SetReferredBy(userID, referrerID int) error {
	_, err := r.db.Exec("UPDATE users SET referred_by = ?, updated_at = NOW() WHERE id = ? AND referred_by IS NULL", referrerID, userID)
	return err
}

func (r *Repository) CreateReward(referrerID, refereeID, days int) error {
	_, err := r.db.Exec(`INSERT INTO referral_rewards (referrer_id, referee_id, reward_days, referrer_rewarded, referee_rewarded, created_at, updated_at)
		VALUES (?,?,?,0,0,NOW(),NOW())`, referrerID, refereeID, days)
	return err
}

// ConsumeReward flips both rewarded flags in one UPDATE guarded on them
// still being unset. The affected-rows count is the exactly-once token:
// a second caller sees zero rows and gets (nil, nil).
func (r *Repository) ConsumeReward(refereeID int) (*Reward, error) {
	res, err := r.db.Exec(`UPDATE referral_rewards SET referrer_rewarded = 1, referee_rewarded = 1, updated_at = NOW()
		WHERE referee_id = ? AND referrer_rewarded = 0 AND referee_rewarded = 0`, refereeID)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	row := r.db.QueryRow("SELECT id, referrer_id, referee_id, reward_days FROM referral_rewards WHERE referee_id = ? LIMIT 1", refereeID)
	var rw Reward
	if err := row.Scan(&rw.ID, &rw.ReferrerID, &rw.RefereeID, &rw.Days); err != nil {
		return nil, err
	}
	return &rw, nil
}

func (r *Repository) GrantPaidUntil(userID int, until time.Time) error {
	_, err := r.db.Exec("UPDATE users SET is_paid = 1, subscription_expires_at = ?, updated_at = NOW() WHERE id = ?", until, userID)
	return err
}
