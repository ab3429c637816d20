package profile

import (
	"log"
	"net/http"
	"time"

	"c3exam-backend/entitlement"
	"c3exam-backend/login"
	"c3exam-backend/migrations"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers profile endpoints
func RegisterRoutes(r *gin.Engine) {
	r.GET("/profile", login.RequireAuth(), getProfile)
	r.PUT("/profile", login.RequireAuth(), updateProfile)
}

func userToMap(u *migrations.User) gin.H {
	resp := gin.H{
		"id":         u.ID,
		"name":       u.Name,
		"email":      u.Email,
		"role":       u.Role,
		"is_paid":    entitlement.Entitled(u.IsPaid, u.SubscriptionExpiresAt, time.Now()),
		"created_at": u.CreatedAt,
	}
	if u.SubscriptionExpiresAt != nil {
		resp["subscription_expires_at"] = u.SubscriptionExpiresAt
	}
	if u.ReferralCode != nil {
		resp["referral_code"] = *u.ReferralCode
	}
	return resp
}

func getProfile(c *gin.Context) {
	user := login.CurrentUser(c)
	c.JSON(http.StatusOK, gin.H{"data": userToMap(user)})
}

type updateRequest struct {
	Name string `json:"name"`
}

func updateProfile(c *gin.Context) {
	user := login.CurrentUser(c)
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求数据"})
		return
	}
	if err := migrations.UpdateUserProfile(user.ID, req.Name); err != nil {
		log.Printf("[PROFILE] update failed userID=%d: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	updated := migrations.GetUserByID(user.ID)
	if updated == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "用户不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": userToMap(updated)})
}
