package questions

import (
	"database/sql"
	"encoding/json"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository { return &Repository{db: db} }

const questionColumns = "id, type, content, options, answer, IFNULL(explanation,''), mnemonic, category, image"

func scanQuestion(scan func(dest ...any) error) (*Question, error) {
	var q Question
	var rawOptions []byte
	if err := scan(&q.ID, &q.Type, &q.Content, &rawOptions, &q.Answer, &q.Explanation, &q.Mnemonic, &q.Category, &q.Image); err != nil {
		return nil, err
	}
	opts, err := ParseOptions(rawOptions)
	if err != nil {
		return nil, err
	}
	q.Options = opts
	return &q, nil
}

// GetByID returns the question or (nil, nil) when it does not exist.
func (r *Repository) GetByID(id int) (*Question, error) {
	row := r.db.QueryRow("SELECT "+questionColumns+" FROM questions WHERE id = ? LIMIT 1", id)
	q, err := scanQuestion(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return q, nil
}

// List returns a page of the catalog, optionally filtered by category and type.
func (r *Repository) List(category, qType string, limit, offset int) ([]Question, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := "SELECT " + questionColumns + " FROM questions WHERE (? = '' OR category = ?) AND (? = '' OR type = ?) ORDER BY id ASC LIMIT ? OFFSET ?"
	rows, err := r.db.Query(query, category, category, qType, qType, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]Question, 0)
	for rows.Next() {
		q, err := scanQuestion(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, *q)
	}
	return list, rows.Err()
}

// Count returns the live catalog size. This is the single source of truth
// for the dashboard total; no endpoint hardcodes it.
func (r *Repository) Count() (int, error) {
	var n int
	err := r.db.QueryRow("SELECT COUNT(*) FROM questions").Scan(&n)
	return n, err
}

// MarshalOptions serializes options for storage; the inverse of ParseOptions.
func MarshalOptions(opts []Option) ([]byte, error) {
	return json.Marshal(opts)
}
