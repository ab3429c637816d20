package stats

import (
	"log"
	"net/http"
	"strings"
	"time"

	"c3exam-backend/login"
	"c3exam-backend/migrations"

	"github.com/gin-gonic/gin"
)

// AdminStatsResponse represents the response structure for admin dashboard
type AdminStatsResponse struct {
	Users          UserStats            `json:"users"`
	Financial      FinancialStats       `json:"financial"`
	Activity       ActivityStats        `json:"activity"`
	RecentActivity []RecentActivityItem `json:"recent_activity"`
}

type UserStats struct {
	Total          int     `json:"total"`
	Paid           int     `json:"paid"`
	NewThisMonth   int     `json:"new_this_month"`
	ConversionRate float64 `json:"conversion_rate"`
}

type FinancialStats struct {
	TotalRevenue   float64 `json:"total_revenue"`
	MonthlyRevenue float64 `json:"monthly_revenue"`
	PaidSessions   int     `json:"paid_sessions"`
}

type ActivityStats struct {
	TotalAnswers   int `json:"total_answers"`
	TotalMockExams int `json:"total_mock_exams"`
	ActiveToday    int `json:"active_today"`
}

type RecentActivityItem struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	UserEmail   string    `json:"user_email"`
}

// RegisterAdminRoutes registers admin statistics endpoints
func RegisterAdminRoutes(r *gin.Engine) {
	r.GET("/admin/stats", requireSuperAdmin(), getAdminStats)
}

// requireSuperAdmin middleware verifies the user is a super_admin
func requireSuperAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "请先登录"})
			c.Abort()
			return
		}

		email, ok := login.GetEmailFromToken(token)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "登录已过期，请重新登录"})
			c.Abort()
			return
		}

		user := migrations.GetUserByEmail(email)
		if user == nil || user.Role != "super_admin" {
			c.JSON(http.StatusForbidden, gin.H{"error": "没有权限访问"})
			c.Abort()
			return
		}

		c.Next()
	}
}

func getAdminStats(c *gin.Context) {
	if db == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database not initialized"})
		return
	}

	log.Printf("[ADMIN_STATS] Fetching admin statistics")

	response := AdminStatsResponse{
		Users:          getUserStats(),
		Financial:      getFinancialStats(),
		Activity:       getActivityStats(),
		RecentActivity: getRecentActivity(10),
	}

	c.JSON(http.StatusOK, gin.H{"data": response})
}

func getUserStats() UserStats {
	stats := UserStats{}

	db.QueryRow("SELECT COUNT(*) FROM users").Scan(&stats.Total)

	db.QueryRow(`
		SELECT COUNT(*)
		FROM users
		WHERE is_paid = 1 AND subscription_expires_at > NOW()
	`).Scan(&stats.Paid)

	db.QueryRow(`
		SELECT COUNT(*)
		FROM users
		WHERE created_at >= DATE_FORMAT(NOW(), '%Y-%m-01')
	`).Scan(&stats.NewThisMonth)

	if stats.Total > 0 {
		stats.ConversionRate = (float64(stats.Paid) / float64(stats.Total)) * 100
	}

	log.Printf("[ADMIN_STATS] Users: total=%d paid=%d new_month=%d conversion=%.2f%%",
		stats.Total, stats.Paid, stats.NewThisMonth, stats.ConversionRate)

	return stats
}

func getFinancialStats() FinancialStats {
	stats := FinancialStats{}

	// Amounts are stored in cents; completed sessions are the revenue events.
	var totalCents, monthCents int64
	db.QueryRow(`
		SELECT IFNULL(SUM(amount), 0)
		FROM subscriptions
		WHERE status = 'completed'
	`).Scan(&totalCents)

	db.QueryRow(`
		SELECT IFNULL(SUM(amount), 0)
		FROM subscriptions
		WHERE status = 'completed'
		  AND updated_at >= DATE_FORMAT(NOW(), '%Y-%m-01')
	`).Scan(&monthCents)

	db.QueryRow(`
		SELECT COUNT(*)
		FROM subscriptions
		WHERE status = 'completed'
	`).Scan(&stats.PaidSessions)

	stats.TotalRevenue = float64(totalCents) / 100
	stats.MonthlyRevenue = float64(monthCents) / 100

	log.Printf("[ADMIN_STATS] Financial: total=%.2f monthly=%.2f sessions=%d",
		stats.TotalRevenue, stats.MonthlyRevenue, stats.PaidSessions)

	return stats
}

func getActivityStats() ActivityStats {
	stats := ActivityStats{}

	db.QueryRow("SELECT COUNT(*) FROM user_progress").Scan(&stats.TotalAnswers)
	db.QueryRow("SELECT COUNT(*) FROM mock_exam_scores").Scan(&stats.TotalMockExams)
	db.QueryRow(`
		SELECT COUNT(DISTINCT user_id)
		FROM user_progress
		WHERE created_at >= CURDATE()
	`).Scan(&stats.ActiveToday)

	log.Printf("[ADMIN_STATS] Activity: answers=%d mock_exams=%d active_today=%d",
		stats.TotalAnswers, stats.TotalMockExams, stats.ActiveToday)

	return stats
}

func getRecentActivity(limit int) []RecentActivityItem {
	rows, err := db.Query(`
		SELECT u.email, s.amount, s.updated_at
		FROM subscriptions s
		JOIN users u ON s.user_id = u.id
		WHERE s.status = 'completed'
		ORDER BY s.updated_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		log.Printf("[ADMIN_STATS] Error fetching recent activity: %v", err)
		return []RecentActivityItem{}
	}
	defer rows.Close()

	var activities []RecentActivityItem
	for rows.Next() {
		var activity RecentActivityItem
		var amountCents int64
		rows.Scan(&activity.UserEmail, &amountCents, &activity.Timestamp)

		activity.Type = "subscription"
		activity.Description = "用户 " + activity.UserEmail + " 完成了会员购买"

		activities = append(activities, activity)
	}

	log.Printf("[ADMIN_STATS] Recent activity: count=%d", len(activities))

	return activities
}
