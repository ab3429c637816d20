package categories

import (
	"database/sql"
)

// Category is a distinct question category with its catalog size.
type Category struct {
	Name          string `json:"name"`
	QuestionCount int    `json:"question_count"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository { return &Repository{db: db} }

// All returns the categories present in the question bank. Questions without
// a category are grouped under the empty name and skipped here.
func (r *Repository) All() ([]Category, error) {
	rows, err := r.db.Query(`SELECT category, COUNT(*) FROM questions WHERE category IS NOT NULL GROUP BY category ORDER BY category ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.Name, &c.QuestionCount); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}
