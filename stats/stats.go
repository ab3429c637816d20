package stats

import (
	"database/sql"
	"net/http"
	"sort"

	"c3exam-backend/login"

	"github.com/gin-gonic/gin"
)

var db *sql.DB

// Init sets the DB connection for stats queries
func Init(database *sql.DB) {
	db = database
}

func RegisterRoutes(r *gin.Engine) {
	r.GET("/stats/dashboard", login.RequireAuth(), getDashboard)
	paid := r.Group("/stats", login.RequireAuth(), login.RequirePaid("学习统计为会员功能，请先开通会员"))
	paid.GET("/categories", getCategoryStats)
	paid.GET("/daily", getDailyStats)
}

// DashboardStats is the top-of-app progress summary. Total is always the
// live question count, so newly imported questions immediately show up as
// unanswered instead of leaving the buckets inconsistent.
type DashboardStats struct {
	Total      int `json:"total"`
	Answered   int `json:"answered"`
	Unanswered int `json:"unanswered"`
	Correct    int `json:"correct"`
	Incorrect  int `json:"incorrect"`
	Collected  int `json:"collected"`
	Unrecited  int `json:"unrecited"`
}

func getDashboard(c *gin.Context) {
	user := login.CurrentUser(c)
	s := DashboardStats{}

	if err := db.QueryRow("SELECT COUNT(*) FROM questions").Scan(&s.Total); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var recited int
	err := db.QueryRow(`SELECT
			COUNT(CASE WHEN last_answered_at IS NOT NULL THEN 1 END),
			COUNT(CASE WHEN correct_count > 0 AND wrong_count = 0 THEN 1 END),
			COUNT(CASE WHEN wrong_count > 0 THEN 1 END),
			COUNT(CASE WHEN is_collected = 1 THEN 1 END),
			COUNT(CASE WHEN is_recited = 1 THEN 1 END)
		FROM user_question_state WHERE user_id = ?`, user.ID).
		Scan(&s.Answered, &s.Correct, &s.Incorrect, &s.Collected, &recited)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.Unanswered = s.Total - s.Answered
	s.Unrecited = s.Total - recited

	c.JSON(http.StatusOK, gin.H{"data": s})
}

type CategoryStats struct {
	Category  string `json:"category"`
	Total     int    `json:"total"`
	Answered  int    `json:"answered"`
	Correct   int    `json:"correct"`
	Incorrect int    `json:"incorrect"`
}

func getCategoryStats(c *gin.Context) {
	user := login.CurrentUser(c)
	rows, err := db.Query(`SELECT
			IFNULL(q.category, '未分类'),
			COUNT(q.id),
			COUNT(CASE WHEN s.last_answered_at IS NOT NULL THEN 1 END),
			COUNT(CASE WHEN s.correct_count > 0 AND s.wrong_count = 0 THEN 1 END),
			COUNT(CASE WHEN s.wrong_count > 0 THEN 1 END)
		FROM questions q
		LEFT JOIN user_question_state s ON s.question_id = q.id AND s.user_id = ?
		GROUP BY q.category
		ORDER BY q.category`, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer rows.Close()

	list := make([]CategoryStats, 0)
	for rows.Next() {
		var cs CategoryStats
		if err := rows.Scan(&cs.Category, &cs.Total, &cs.Answered, &cs.Correct, &cs.Incorrect); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		list = append(list, cs)
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

// DailyPoint merges two differently-clocked sources: answered/correct come
// from the append-only answer ledger (created_at), collected comes from the
// state rows (updated_at). A re-collect therefore moves the collected count
// to the newer day; the answer history never moves.
type DailyPoint struct {
	Date      string `json:"date"`
	Answered  int    `json:"answered"`
	Correct   int    `json:"correct"`
	Collected int    `json:"collected"`
}

type dailyAnswers struct {
	answered int
	correct  int
}

func mergeDaily(answers map[string]dailyAnswers, collected map[string]int) []DailyPoint {
	days := map[string]bool{}
	for d := range answers {
		days[d] = true
	}
	for d := range collected {
		days[d] = true
	}
	points := make([]DailyPoint, 0, len(days))
	for d := range days {
		points = append(points, DailyPoint{
			Date:      d,
			Answered:  answers[d].answered,
			Correct:   answers[d].correct,
			Collected: collected[d],
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points
}

func getDailyStats(c *gin.Context) {
	user := login.CurrentUser(c)

	answers := map[string]dailyAnswers{}
	rows, err := db.Query(`SELECT DATE_FORMAT(created_at, '%Y-%m-%d'), COUNT(*), SUM(is_correct)
		FROM user_progress WHERE user_id = ? GROUP BY 1`, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer rows.Close()
	for rows.Next() {
		var d string
		var a dailyAnswers
		if err := rows.Scan(&d, &a.answered, &a.correct); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		answers[d] = a
	}

	collected := map[string]int{}
	rows2, err := db.Query(`SELECT DATE_FORMAT(updated_at, '%Y-%m-%d'), COUNT(*)
		FROM user_question_state WHERE user_id = ? AND is_collected = 1 GROUP BY 1`, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer rows2.Close()
	for rows2.Next() {
		var d string
		var n int
		if err := rows2.Scan(&d, &n); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		collected[d] = n
	}

	c.JSON(http.StatusOK, gin.H{"data": mergeDaily(answers, collected)})
}
