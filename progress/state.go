package progress

import (
	"database/sql"
	"time"
)

// Queryer is satisfied by both *sql.DB and *sql.Tx so the state aggregation
// can run standalone or inside the mock exam transaction.
type Queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// State is the per-(user, question) aggregate. It exists only after the
// first interaction; absence means "untouched".
type State struct {
	ID             int        `json:"id"`
	UserID         int        `json:"user_id"`
	QuestionID     int        `json:"question_id"`
	WrongCount     int        `json:"wrong_count"`
	CorrectCount   int        `json:"correct_count"`
	IsCollected    bool       `json:"is_collected"`
	IsRecited      bool       `json:"is_recited"`
	Note           *string    `json:"note"`
	LastAnsweredAt *time.Time `json:"last_answered_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type AnswerResult struct {
	Action string `json:"action"` // created | updated
	Old    *State `json:"old_state"`
	New    *State `json:"new_state"`
}

// applyAnswer folds one answer event into the counters. A correct answer
// clears the wrong streak: the wrong bucket reflects current mastery, not
// historical error count.
func applyAnswer(s *State, correct bool, now time.Time) {
	if correct {
		s.CorrectCount++
		s.WrongCount = 0
	} else {
		s.WrongCount++
	}
	s.LastAnsweredAt = &now
	s.UpdatedAt = now
}

const stateColumns = "id, user_id, question_id, wrong_count, correct_count, is_collected, is_recited, note, last_answered_at, updated_at"

func getState(q Queryer, userID, questionID int) (*State, error) {
	row := q.QueryRow("SELECT "+stateColumns+" FROM user_question_state WHERE user_id = ? AND question_id = ? LIMIT 1", userID, questionID)
	var s State
	err := row.Scan(&s.ID, &s.UserID, &s.QuestionID, &s.WrongCount, &s.CorrectCount,
		&s.IsCollected, &s.IsRecited, &s.Note, &s.LastAnsweredAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// RecordAnswerState applies the aggregation rule for one answered question:
// look up the state row, fold the event in, write back. Two concurrent
// submissions for the same pair race on this check-then-write (last writer
// wins on the counters); accepted for this domain, see the package tests.
func RecordAnswerState(q Queryer, userID, questionID int, correct bool, now time.Time) (*AnswerResult, error) {
	cur, err := getState(q, userID, questionID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		s := &State{UserID: userID, QuestionID: questionID}
		applyAnswer(s, correct, now)
		res, err := q.Exec(`INSERT INTO user_question_state (user_id, question_id, wrong_count, correct_count, last_answered_at, updated_at) VALUES (?,?,?,?,?,?)`,
			userID, questionID, s.WrongCount, s.CorrectCount, now, now)
		if err != nil {
			return nil, err
		}
		if id, err := res.LastInsertId(); err == nil {
			s.ID = int(id)
		}
		return &AnswerResult{Action: "created", New: s}, nil
	}
	old := *cur
	next := *cur
	applyAnswer(&next, correct, now)
	_, err = q.Exec(`UPDATE user_question_state SET wrong_count = ?, correct_count = ?, last_answered_at = ?, updated_at = ? WHERE id = ?`,
		next.WrongCount, next.CorrectCount, now, now, cur.ID)
	if err != nil {
		return nil, err
	}
	return &AnswerResult{Action: "updated", Old: &old, New: &next}, nil
}
