package subscriptions

import (
	"database/sql"
	"time"
)

// Repository implements Ledger over MySQL.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository { return &Repository{db: db} }

const subColumns = "id, user_id, session_id, amount, currency, status, payment_ref, expires_at, created_at, updated_at"

func scanSub(row *sql.Row) (*Subscription, error) {
	var s Subscription
	err := row.Scan(&s.ID, &s.UserID, &s.SessionID, &s.Amount, &s.Currency, &s.Status,
		&s.PaymentRef, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) Create(sub *Subscription) error {
	now := time.Now()
	res, err := r.db.Exec(`INSERT INTO subscriptions (user_id, session_id, amount, currency, status, payment_ref, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		sub.UserID, sub.SessionID, sub.Amount, sub.Currency, sub.Status, sub.PaymentRef, now, now)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		sub.ID = int(id)
	}
	sub.CreatedAt, sub.UpdatedAt = now, now
	return nil
}

func (r *Repository) BySessionID(sessionID string) (*Subscription, error) {
	return scanSub(r.db.QueryRow("SELECT "+subColumns+" FROM subscriptions WHERE session_id = ? LIMIT 1", sessionID))
}

// MarkCompleted is guarded on the status still being open; the affected-rows
// count tells the caller whether it won the claim.
func (r *Repository) MarkCompleted(id int, paymentRef string, expiresAt time.Time) (bool, error) {
	res, err := r.db.Exec(`UPDATE subscriptions SET status = ?, payment_ref = ?, expires_at = ?, updated_at = NOW()
		WHERE id = ? AND status <> ?`,
		StatusCompleted, paymentRef, expiresAt, id, StatusCompleted)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repository) MarkExpired(id int) error {
	_, err := r.db.Exec(`UPDATE subscriptions SET status = ?, updated_at = NOW() WHERE id = ?`, StatusExpired, id)
	return err
}

func (r *Repository) LatestCompleted(userID int) (*Subscription, error) {
	return scanSub(r.db.QueryRow("SELECT "+subColumns+" FROM subscriptions WHERE user_id = ? AND status = ? ORDER BY updated_at DESC LIMIT 1",
		userID, StatusCompleted))
}

// UserStore implements Users over the users table.
type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore { return &UserStore{db: db} }

func (s *UserStore) ByID(id int) (*UserView, error) {
	row := s.db.QueryRow("SELECT id, email, is_paid, subscription_expires_at FROM users WHERE id = ? LIMIT 1", id)
	var u UserView
	err := row.Scan(&u.ID, &u.Email, &u.IsPaid, &u.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) GrantPaidUntil(id int, until time.Time) error {
	_, err := s.db.Exec("UPDATE users SET is_paid = 1, subscription_expires_at = ?, updated_at = NOW() WHERE id = ?", until, id)
	return err
}
