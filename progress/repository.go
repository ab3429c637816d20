package progress

import (
	"database/sql"
	"time"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository { return &Repository{db: db} }

// RecordAnswer appends one ledger event and folds it into the state row.
// The ledger is the source of truth for per-day stats; the state row is a
// derived rolling summary.
func (r *Repository) RecordAnswer(userID, questionID int, userAnswer string, correct bool) (*AnswerResult, error) {
	now := time.Now()
	res, err := RecordAnswerState(r.db, userID, questionID, correct, now)
	if err != nil {
		return nil, err
	}
	_, err = r.db.Exec(`INSERT INTO user_progress (user_id, question_id, user_answer, is_correct, created_at) VALUES (?,?,?,?,?)`,
		userID, questionID, userAnswer, correct, now)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SetCollected upserts the collect flag, leaving every other field untouched.
func (r *Repository) SetCollected(userID, questionID int, collected bool) error {
	_, err := r.db.Exec(`INSERT INTO user_question_state (user_id, question_id, is_collected, updated_at) VALUES (?,?,?,NOW())
		ON DUPLICATE KEY UPDATE is_collected = VALUES(is_collected), updated_at = NOW()`,
		userID, questionID, collected)
	return err
}

// SetRecited upserts the recite flag, leaving every other field untouched.
func (r *Repository) SetRecited(userID, questionID int, recited bool) error {
	_, err := r.db.Exec(`INSERT INTO user_question_state (user_id, question_id, is_recited, updated_at) VALUES (?,?,?,NOW())
		ON DUPLICATE KEY UPDATE is_recited = VALUES(is_recited), updated_at = NOW()`,
		userID, questionID, recited)
	return err
}

// SetNote upserts the free-text note; nil clears it back to NULL.
func (r *Repository) SetNote(userID, questionID int, note *string) error {
	_, err := r.db.Exec(`INSERT INTO user_question_state (user_id, question_id, note, updated_at) VALUES (?,?,?,NOW())
		ON DUPLICATE KEY UPDATE note = VALUES(note), updated_at = NOW()`,
		userID, questionID, note)
	return err
}

// GetState returns the state row or (nil, nil) when untouched.
func (r *Repository) GetState(userID, questionID int) (*State, error) {
	return getState(r.db, userID, questionID)
}

// StateItem is a state row joined with the question it belongs to, for the
// wrong-question book and the collection views.
type StateItem struct {
	State
	Content  string  `json:"content"`
	Type     string  `json:"type"`
	Category *string `json:"category"`
}

func (r *Repository) listJoined(userID int, where string) ([]StateItem, error) {
	query := `SELECT s.` + stateColumns2 + `, q.content, q.type, q.category
		FROM user_question_state s JOIN questions q ON s.question_id = q.id
		WHERE s.user_id = ? AND ` + where + ` ORDER BY s.updated_at DESC`
	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]StateItem, 0)
	for rows.Next() {
		var it StateItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.QuestionID, &it.WrongCount, &it.CorrectCount,
			&it.IsCollected, &it.IsRecited, &it.Note, &it.LastAnsweredAt, &it.UpdatedAt,
			&it.Content, &it.Type, &it.Category); err != nil {
			return nil, err
		}
		list = append(list, it)
	}
	return list, rows.Err()
}

const stateColumns2 = "id, s.user_id, s.question_id, s.wrong_count, s.correct_count, s.is_collected, s.is_recited, s.note, s.last_answered_at, s.updated_at"

// ListWrong returns the current "needs review" set: questions whose wrong
// streak has not been cleared by a correct answer.
func (r *Repository) ListWrong(userID int) ([]StateItem, error) {
	return r.listJoined(userID, "s.wrong_count > 0")
}

// ListCollected returns the user's collection.
func (r *Repository) ListCollected(userID int) ([]StateItem, error) {
	return r.listJoined(userID, "s.is_collected = 1")
}

// DB exposes the underlying handle for callers that need to run the state
// aggregation inside their own transaction (mock exam batch).
func (r *Repository) DB() *sql.DB { return r.db }
