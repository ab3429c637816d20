package mockexam

import (
	"database/sql"
	"time"

	"c3exam-backend/progress"
)

// Answer is one paper item as submitted by the client. Selected is empty for
// questions the user left blank.
type Answer struct {
	QuestionID int    `json:"question_id"`
	Selected   string `json:"selected"`
	Correct    bool   `json:"correct"`
}

type Score struct {
	ID             int       `json:"id"`
	UserID         int       `json:"user_id"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	CorrectCount   int       `json:"correct_count"`
	CreatedAt      time.Time `json:"created_at"`
}

type Recorder struct {
	db *sql.DB
}

func NewRecorder(db *sql.DB) *Recorder { return &Recorder{db: db} }

// Record persists one finished mock exam in a single transaction: the score
// row plus the per-question state fold for every answered item. Unanswered
// items do not touch practice state. All-or-nothing.
func (r *Recorder) Record(userID, score, total, correctCount int, answers []Answer) (*Score, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.Exec(`INSERT INTO mock_exam_scores (user_id, score, total_questions, correct_count, created_at) VALUES (?,?,?,?,?)`,
		userID, score, total, correctCount, now)
	if err != nil {
		return nil, err
	}
	for _, a := range answers {
		if a.Selected == "" {
			continue
		}
		if _, err := progress.RecordAnswerState(tx, userID, a.QuestionID, a.Correct, now); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	rec := &Score{UserID: userID, Score: score, TotalQuestions: total, CorrectCount: correctCount, CreatedAt: now}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = int(id)
	}
	return rec, nil
}

// History returns the user's past exams, newest first.
func (r *Recorder) History(userID, limit int) ([]Score, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.db.Query(`SELECT id, user_id, score, total_questions, correct_count, created_at
		FROM mock_exam_scores WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]Score, 0)
	for rows.Next() {
		var s Score
		if err := rows.Scan(&s.ID, &s.UserID, &s.Score, &s.TotalQuestions, &s.CorrectCount, &s.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
