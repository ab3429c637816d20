package subscriptions

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"c3exam-backend/migrations"

	"github.com/gin-gonic/gin"
)

func TestStatus_reportsEntitlementAndLatestPayment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Now()
	future := now.Add(time.Hour)
	ledger := newFakeLedger(
		&Subscription{ID: 1, UserID: 7, SessionID: "cs_old", Status: StatusCompleted, Amount: 9900, Currency: "cny", UpdatedAt: now.Add(-time.Hour)},
		&Subscription{ID: 2, UserID: 7, SessionID: "cs_new", Status: StatusCompleted, Amount: 9900, Currency: "cny", UpdatedAt: now},
		&Subscription{ID: 3, UserID: 7, SessionID: "cs_open", Status: StatusPending, UpdatedAt: now.Add(time.Minute)},
	)
	users := &fakeUsers{users: map[int]*UserView{7: {ID: 7, IsPaid: true, ExpiresAt: &future}}}
	h := NewHandler(&StripeService{ledger: ledger}, NewReconciler(ledger, users, &fakeRewards{}, nil), users, ledger)

	r := gin.New()
	r.GET("/subscription-status", func(c *gin.Context) { c.Set("auth_user", &migrations.User{ID: 7}) }, h.status)

	req := httptest.NewRequest(http.MethodGet, "/subscription-status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		IsPaid        bool `json:"is_paid"`
		LatestPayment *struct {
			SessionID string `json:"session_id"`
			Amount    int64  `json:"amount"`
			Currency  string `json:"currency"`
		} `json:"latest_payment"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !body.IsPaid {
		t.Fatal("user with a future expiry must read as paid")
	}
	if body.LatestPayment == nil {
		t.Fatal("latest completed payment must be included")
	}
	if body.LatestPayment.SessionID != "cs_new" {
		t.Fatalf("expected the newest completed session, got %s", body.LatestPayment.SessionID)
	}
	if body.LatestPayment.Amount != 9900 || body.LatestPayment.Currency != "cny" {
		t.Fatalf("unexpected payment fields: %+v", body.LatestPayment)
	}
}

func TestStatus_noPaymentsYet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ledger := newFakeLedger()
	users := &fakeUsers{users: map[int]*UserView{7: {ID: 7}}}
	h := NewHandler(&StripeService{ledger: ledger}, NewReconciler(ledger, users, &fakeRewards{}, nil), users, ledger)

	r := gin.New()
	r.GET("/subscription-status", func(c *gin.Context) { c.Set("auth_user", &migrations.User{ID: 7}) }, h.status)

	req := httptest.NewRequest(http.MethodGet, "/subscription-status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if paid, _ := body["is_paid"].(bool); paid {
		t.Fatal("unpaid user must read as unpaid")
	}
	if _, ok := body["latest_payment"]; ok {
		t.Fatal("no completed session means no latest_payment field")
	}
}
