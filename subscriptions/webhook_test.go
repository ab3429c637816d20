package subscriptions

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v78"
)

const testWebhookSecret = "whsec_test_secret"

// signPayload builds a Stripe-Signature header the way Stripe's CLI does:
// v1 is HMAC-SHA256 over "<timestamp>.<payload>".
func signPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func completedPayload(sessionID string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_test",
		"object": "event",
		"api_version": %q,
		"type": "checkout.session.completed",
		"data": {"object": {"id": %q, "object": "checkout.session", "payment_intent": "pi_test"}}
	}`, stripe.APIVersion, sessionID))
}

func newWebhookRig(t *testing.T) (*gin.Engine, *fakeLedger, *fakeUsers) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ledger := newFakeLedger(&Subscription{ID: 1, UserID: 7, SessionID: "cs_1", Status: StatusPending})
	users := &fakeUsers{users: map[int]*UserView{7: {ID: 7}}}
	svc := &StripeService{ledger: ledger, webhookSecret: testWebhookSecret}
	rec := NewReconciler(ledger, users, &fakeRewards{}, nil)
	h := NewHandler(svc, rec, users, ledger)
	r := gin.New()
	r.POST("/stripe/webhook", h.webhook)
	return r, ledger, users
}

func postWebhook(r *gin.Engine, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/stripe/webhook", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", signature)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhook_validSignatureSettlesSession(t *testing.T) {
	r, ledger, users := newWebhookRig(t)
	payload := completedPayload("cs_1")

	w := postWebhook(r, payload, signPayload(payload, testWebhookSecret, time.Now()))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ledger.subs["cs_1"].Status != StatusCompleted {
		t.Fatalf("session must be completed, got %s", ledger.subs["cs_1"].Status)
	}
	if len(users.grants) != 1 {
		t.Fatalf("expected one entitlement grant, got %d", len(users.grants))
	}
}

func TestWebhook_badSignatureRejectedWithoutMutation(t *testing.T) {
	r, ledger, users := newWebhookRig(t)
	payload := completedPayload("cs_1")

	w := postWebhook(r, payload, signPayload(payload, "whsec_wrong", time.Now()))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if ledger.subs["cs_1"].Status != StatusPending {
		t.Fatalf("rejected webhook must not mutate the ledger")
	}
	if len(users.grants) != 0 {
		t.Fatalf("rejected webhook must not grant entitlement")
	}
}

func TestWebhook_missingSecretRejectsEverything(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ledger := newFakeLedger(&Subscription{ID: 1, UserID: 7, SessionID: "cs_1", Status: StatusPending})
	users := &fakeUsers{users: map[int]*UserView{7: {ID: 7}}}
	svc := &StripeService{ledger: ledger} // no webhook secret
	h := NewHandler(svc, NewReconciler(ledger, users, &fakeRewards{}, nil), users, ledger)
	r := gin.New()
	r.POST("/stripe/webhook", h.webhook)

	payload := completedPayload("cs_1")
	w := postWebhook(r, payload, signPayload(payload, testWebhookSecret, time.Now()))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("unverifiable deliveries must be rejected, got %d", w.Code)
	}
	if ledger.subs["cs_1"].Status != StatusPending {
		t.Fatalf("ledger must be untouched")
	}
}

func TestWebhook_unknownEventTypeIgnored(t *testing.T) {
	r, ledger, _ := newWebhookRig(t)
	payload := []byte(fmt.Sprintf(`{"id":"evt","object":"event","api_version":%q,"type":"invoice.paid","data":{"object":{"id":"in_1"}}}`, stripe.APIVersion))

	w := postWebhook(r, payload, signPayload(payload, testWebhookSecret, time.Now()))

	if w.Code != http.StatusOK {
		t.Fatalf("unknown event types are acknowledged, got %d", w.Code)
	}
	if ledger.subs["cs_1"].Status != StatusPending {
		t.Fatalf("unknown events must not mutate the ledger")
	}
}
