package migrations

import (
	"database/sql"
	"fmt"
	"time"
)

type User struct {
	ID                    int        `db:"id"`
	Name                  string     `db:"name"`
	Email                 string     `db:"email"`
	Password              string     `db:"password"`
	Role                  string     `db:"role"`
	IsPaid                bool       `db:"is_paid"`
	SubscriptionExpiresAt *time.Time `db:"subscription_expires_at"`
	ReferralCode          *string    `db:"referral_code"`
	ReferredBy            *int       `db:"referred_by"`
	StripeCustomerID      string     `db:"stripe_customer_id"`
	CreatedAt             time.Time  `db:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at"`
}

var db *sql.DB

// Init sets the DB connection for migrations and queries
func Init(database *sql.DB) {
	db = database
}

// Migrate creates required tables if they do not exist
func Migrate() error {
	if db == nil {
		return fmt.Errorf("db is not initialized")
	}
	createUsers := `
	CREATE TABLE IF NOT EXISTS users (
		id INT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		email VARCHAR(191) NOT NULL UNIQUE,
		password VARCHAR(191) NOT NULL,
		role VARCHAR(50) NOT NULL DEFAULT 'user',
		is_paid TINYINT(1) NOT NULL DEFAULT 0,
		subscription_expires_at DATETIME NULL,
		referral_code VARCHAR(12) NULL UNIQUE,
		referred_by INT NULL,
		stripe_customer_id VARCHAR(64) NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`
	if _, err := db.Exec(createUsers); err != nil {
		return err
	}

	createQuestions := `
	CREATE TABLE IF NOT EXISTS questions (
		id INT AUTO_INCREMENT PRIMARY KEY,
		type ENUM('single','multiple','judge') NOT NULL DEFAULT 'single',
		content TEXT NOT NULL,
		options JSON NOT NULL,
		answer VARCHAR(8) NOT NULL,
		explanation TEXT,
		mnemonic TEXT NULL,
		category VARCHAR(100) NULL,
		image VARCHAR(255) NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`
	if _, err := db.Exec(createQuestions); err != nil {
		return err
	}

	createState := `
	CREATE TABLE IF NOT EXISTS user_question_state (
		id INT AUTO_INCREMENT PRIMARY KEY,
		user_id INT NOT NULL,
		question_id INT NOT NULL,
		wrong_count INT NOT NULL DEFAULT 0,
		correct_count INT NOT NULL DEFAULT 0,
		is_collected TINYINT(1) NOT NULL DEFAULT 0,
		is_recited TINYINT(1) NOT NULL DEFAULT 0,
		note TEXT NULL,
		last_answered_at DATETIME NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uniq_user_question (user_id, question_id),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (question_id) REFERENCES questions(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`
	if _, err := db.Exec(createState); err != nil {
		return err
	}

	createProgress := `
	CREATE TABLE IF NOT EXISTS user_progress (
		id INT AUTO_INCREMENT PRIMARY KEY,
		user_id INT NOT NULL,
		question_id INT NOT NULL,
		user_answer VARCHAR(32) NOT NULL DEFAULT '',
		is_correct TINYINT(1) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		KEY idx_user_created (user_id, created_at),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`
	if _, err := db.Exec(createProgress); err != nil {
		return err
	}

	createMockScores := `
	CREATE TABLE IF NOT EXISTS mock_exam_scores (
		id INT AUTO_INCREMENT PRIMARY KEY,
		user_id INT NOT NULL,
		score INT NOT NULL,
		total_questions INT NOT NULL,
		correct_count INT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`
	if _, err := db.Exec(createMockScores); err != nil {
		return err
	}

	createSubs := `
	CREATE TABLE IF NOT EXISTS subscriptions (
		id INT AUTO_INCREMENT PRIMARY KEY,
		user_id INT NOT NULL,
		session_id VARCHAR(255) NOT NULL UNIQUE,
		amount INT NOT NULL DEFAULT 0,
		currency VARCHAR(10) NOT NULL DEFAULT 'cny',
		status ENUM('pending','completed','expired') NOT NULL DEFAULT 'pending',
		payment_ref VARCHAR(255) NOT NULL DEFAULT '',
		expires_at DATETIME NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`
	if _, err := db.Exec(createSubs); err != nil {
		return err
	}

	createRewards := `
	CREATE TABLE IF NOT EXISTS referral_rewards (
		id INT AUTO_INCREMENT PRIMARY KEY,
		referrer_id INT NOT NULL,
		referee_id INT NOT NULL UNIQUE,
		reward_days INT NOT NULL,
		referrer_rewarded TINYINT(1) NOT NULL DEFAULT 0,
		referee_rewarded TINYINT(1) NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		FOREIGN KEY (referrer_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (referee_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`
	if _, err := db.Exec(createRewards); err != nil {
		return err
	}
	return nil
}

// SeedDefaultAdmin inserts the bootstrap admin account if it doesn't exist
func SeedDefaultAdmin() error {
	if db == nil {
		return fmt.Errorf("db is not initialized")
	}
	var count int
	if err := db.QueryRow("SELECT COUNT(1) FROM users WHERE role = 'super_admin'").Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		_, err := db.Exec(
			"INSERT INTO users (name, email, password, role) VALUES (?, ?, ?, ?)",
			"管理员", "admin@c3exam.local", "supersecret", "super_admin",
		)
		if err != nil {
			return err
		}
	}
	return nil
}

const userColumns = "id, name, email, password, role, is_paid, subscription_expires_at, referral_code, referred_by, IFNULL(stripe_customer_id,''), created_at, updated_at"

func scanUser(row *sql.Row) *User {
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Role, &u.IsPaid,
		&u.SubscriptionExpiresAt, &u.ReferralCode, &u.ReferredBy, &u.StripeCustomerID,
		&u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil
	}
	return &u
}

// GetUserByEmail retrieves a user from DB by email
func GetUserByEmail(email string) *User {
	if db == nil {
		return nil
	}
	return scanUser(db.QueryRow("SELECT "+userColumns+" FROM users WHERE email = ? LIMIT 1", email))
}

// GetUserByID retrieves a user by its ID
func GetUserByID(id int) *User {
	if db == nil {
		return nil
	}
	return scanUser(db.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ? LIMIT 1", id))
}

// CreateUser inserts a new user record
func CreateUser(name, email, password, role string) error {
	if db == nil {
		return fmt.Errorf("db is not initialized")
	}
	_, err := db.Exec(
		"INSERT INTO users (name, email, password, role) VALUES (?, ?, ?, ?)",
		name, email, password, role,
	)
	return err
}

// EmailExists checks if a user with the given email exists
func EmailExists(email string) (bool, error) {
	if db == nil {
		return false, fmt.Errorf("db is not initialized")
	}
	var count int
	if err := db.QueryRow("SELECT COUNT(1) FROM users WHERE email = ?", email).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateUserProfile updates the display name
func UpdateUserProfile(id int, name string) error {
	if db == nil {
		return fmt.Errorf("db is not initialized")
	}
	if name == "" {
		cur := GetUserByID(id)
		if cur == nil {
			return fmt.Errorf("user not found")
		}
		name = cur.Name
	}
	_, err := db.Exec("UPDATE users SET name = ?, updated_at = NOW() WHERE id = ?", name, id)
	return err
}

// UpdateUserPassword updates the password for the given user id
func UpdateUserPassword(id int, password string) error {
	if db == nil {
		return fmt.Errorf("db is not initialized")
	}
	_, err := db.Exec("UPDATE users SET password = ?, updated_at = NOW() WHERE id = ?", password, id)
	return err
}

// ClearPaidFlag lazily corrects a stale is_paid=1 with an expired timestamp.
func ClearPaidFlag(id int) error {
	if db == nil {
		return fmt.Errorf("db is not initialized")
	}
	_, err := db.Exec("UPDATE users SET is_paid = 0, updated_at = NOW() WHERE id = ?", id)
	return err
}
