package marketing

import (
	"database/sql"
	"log"
	"time"

	"c3exam-backend/email"
)

// Service sends the daily upgrade nudge to users without a valid membership.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Start runs a daily ticker that mails every non-entitled user.
func (s *Service) Start() {
	ticker := time.NewTicker(24 * time.Hour)
	go func() {
		for range ticker.C {
			if err := s.notifyFreeUsers(); err != nil {
				log.Printf("[MARKETING] error notifying free users: %v", err)
			}
		}
	}()
}

func (s *Service) notifyFreeUsers() error {
	rows, err := s.db.Query(`SELECT id, email FROM users
		WHERE is_paid = 0 OR subscription_expires_at IS NULL OR subscription_expires_at <= NOW()`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id int
		var mail string
		if err := rows.Scan(&id, &mail); err != nil {
			return err
		}
		if err := email.SendUpgradeSuggestion(mail); err != nil {
			log.Printf("[MARKETING] failed to mail %s: %v", mail, err)
			continue
		}
		log.Printf("[MARKETING] upgrade suggestion sent to user %d", id)
	}
	return rows.Err()
}
