package referrals

import (
	"errors"
	"net/http"

	"c3exam-backend/login"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler { return &Handler{engine: engine} }

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	g := r.Group("/referrals", login.RequireAuth())
	g.GET("/code", h.code)
	g.GET("/validate/:code", h.validate)
	g.POST("/bind", h.bind)
}

func (h *Handler) code(c *gin.Context) {
	user := login.CurrentUser(c)
	code, err := h.engine.Code(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code})
}

func (h *Handler) validate(c *gin.Context) {
	owner, err := h.engine.Validate(c.Param("code"))
	if errors.Is(err, ErrInvalidCode) {
		c.JSON(http.StatusOK, gin.H{"valid": false})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "referrer_name": ownerName(owner)})
}

func ownerName(u *User) string {
	// The engine's user view carries the email only; mask it for display.
	if len(u.Email) > 3 {
		return u.Email[:3] + "***"
	}
	return "***"
}

type bindRequest struct {
	Code string `json:"code"`
}

func (h *Handler) bind(c *gin.Context) {
	user := login.CurrentUser(c)
	var req bindRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少邀请码", "code": "invalid_code"})
		return
	}
	err := h.engine.Bind(user.ID, req.Code)
	switch {
	case errors.Is(err, ErrInvalidCode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "邀请码不存在", "code": "invalid_code"})
	case errors.Is(err, ErrSelfReferral):
		c.JSON(http.StatusBadRequest, gin.H{"error": "不能使用自己的邀请码", "code": "self_referral"})
	case errors.Is(err, ErrAlreadyReferred):
		c.JSON(http.StatusBadRequest, gin.H{"error": "您已绑定过邀请码", "code": "already_referred"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
