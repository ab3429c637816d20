package subscriptions

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"c3exam-backend/entitlement"
	"c3exam-backend/login"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	stripe     *StripeService
	reconciler *Reconciler
	users      Users
	ledger     Ledger
}

func NewHandler(stripe *StripeService, reconciler *Reconciler, users Users, ledger Ledger) *Handler {
	return &Handler{stripe: stripe, reconciler: reconciler, users: users, ledger: ledger}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/checkout", login.RequireAuth(), h.checkout)
	r.GET("/subscription-status", login.RequireAuth(), h.status)
	r.POST("/stripe/webhook", h.webhook)
}

func (h *Handler) checkout(c *gin.Context) {
	user := login.CurrentUser(c)
	sessionID, url, err := h.stripe.CreateCheckout(user.ID)
	if err != nil {
		log.Printf("[SUBS] checkout failed for user %d: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建支付会话失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "url": url})
}

func (h *Handler) status(c *gin.Context) {
	user := login.CurrentUser(c)
	view, err := h.users.ByID(user.ID)
	if err != nil || view == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询失败"})
		return
	}
	entitled := entitlement.Entitled(view.IsPaid, view.ExpiresAt, time.Now())
	resp := gin.H{"is_paid": entitled}
	if view.ExpiresAt != nil {
		resp["expires_at"] = view.ExpiresAt
	}
	last, err := h.ledger.LatestCompleted(user.ID)
	if err != nil {
		log.Printf("[SUBS] latest payment lookup failed for user %d: %v", user.ID, err)
	} else if last != nil {
		resp["latest_payment"] = gin.H{
			"session_id": last.SessionID,
			"amount":     last.Amount,
			"currency":   last.Currency,
			"paid_at":    last.UpdatedAt,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// webhookEvent is the minimal shape read out of a verified payload.
type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID            string `json:"id"`
			PaymentIntent string `json:"payment_intent"`
		} `json:"object"`
	} `json:"data"`
}

func (h *Handler) webhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取请求失败"})
		return
	}
	if err := h.stripe.VerifyWebhook(payload, c.GetHeader("Stripe-Signature")); err != nil {
		log.Printf("[SUBS] webhook rejected: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "签名验证失败"})
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的事件数据"})
		return
	}
	switch event.Type {
	case "checkout.session.completed":
		err = h.reconciler.HandleCompleted(event.Data.Object.ID, event.Data.Object.PaymentIntent)
	case "checkout.session.expired":
		err = h.reconciler.HandleExpired(event.Data.Object.ID)
	default:
		c.String(http.StatusOK, "ignored")
		return
	}
	if err != nil {
		log.Printf("[SUBS] webhook %s for session %s failed: %v", event.Type, event.Data.Object.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "处理事件失败"})
		return
	}
	c.String(http.StatusOK, "ok")
}
