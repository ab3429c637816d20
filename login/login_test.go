package login

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"c3exam-backend/migrations"

	"github.com/gin-gonic/gin"
)

func TestTokenRoundTrip(t *testing.T) {
	token, _, err := signToken("u@example.com", time.Hour, false)
	if err != nil {
		t.Fatal(err)
	}
	email, ok := GetEmailFromToken(token)
	if !ok {
		t.Fatal("freshly signed token must validate")
	}
	if email != "u@example.com" {
		t.Fatalf("unexpected email %q", email)
	}
}

func TestTokenRejectsTampering(t *testing.T) {
	token, _, _ := signToken("u@example.com", time.Hour, false)
	if _, ok := GetEmailFromToken(token + "x"); ok {
		t.Fatal("tampered token must be rejected")
	}
	if _, ok := GetEmailFromToken("not-a-token"); ok {
		t.Fatal("garbage must be rejected")
	}
}

func TestTokenRejectsExpired(t *testing.T) {
	token, _, _ := signToken("u@example.com", -time.Minute, false)
	if _, ok := GetEmailFromToken(token); ok {
		t.Fatal("expired token must be rejected")
	}
}

func TestLogoutBlacklistsToken(t *testing.T) {
	token, _, _ := signToken("u@example.com", time.Hour, false)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/logout", LogoutHandler)
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("logout failed: %d", w.Code)
	}
	if _, ok := GetEmailFromToken(token); ok {
		t.Fatal("logged-out token must be rejected")
	}
}

func withResolver(t *testing.T, users map[string]*migrations.User) {
	t.Helper()
	prevResolver := userResolver
	prevClear := clearPaidFlag
	t.Cleanup(func() {
		userResolver = prevResolver
		clearPaidFlag = prevClear
	})
	RegisterUserResolver(func(email string) *migrations.User {
		u, ok := users[email]
		if !ok {
			return nil
		}
		cp := *u
		return &cp
	})
	clearPaidFlag = func(id int) error {
		for _, u := range users {
			if u.ID == id {
				u.IsPaid = false
			}
		}
		return nil
	}
}

func TestBlacklistConcurrentLogoutAndRead(t *testing.T) {
	tokens := make([]string, 20)
	for i := range tokens {
		token, _, _ := signToken(fmt.Sprintf("u%d@example.com", i), time.Hour, false)
		tokens[i] = token
	}

	var wg sync.WaitGroup
	for _, token := range tokens {
		wg.Add(2)
		go func(tok string) {
			defer wg.Done()
			blacklistAdd(tok, time.Now().Add(time.Hour).Unix())
		}(token)
		go func(tok string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				GetEmailFromToken(tok)
			}
		}(token)
	}
	wg.Wait()

	for _, token := range tokens {
		if _, ok := GetEmailFromToken(token); ok {
			t.Fatal("blacklisted token must be rejected")
		}
	}
}

func TestChangePassword(t *testing.T) {
	users := map[string]*migrations.User{
		"u@example.com": {ID: 9, Email: "u@example.com", Password: "old-secret"},
	}
	withResolver(t, users)

	var savedID int
	var savedPassword string
	prevUpdate := updatePassword
	t.Cleanup(func() { updatePassword = prevUpdate })
	updatePassword = func(id int, password string) error {
		savedID = id
		savedPassword = password
		return nil
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/change-password", RequireAuth(), ChangePasswordHandler)
	token, _, _ := signToken("u@example.com", time.Hour, false)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/change-password", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	if w := post(`{"old_password":"wrong","new_password":"next"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong current password must 401, got %d", w.Code)
	}
	if savedPassword != "" {
		t.Fatal("rejected change must not persist anything")
	}
	if w := post(`{"old_password":"old-secret","new_password":""}`); w.Code != http.StatusBadRequest {
		t.Fatalf("empty new password must 400, got %d", w.Code)
	}
	if w := post(`{"old_password":"old-secret","new_password":"next"}`); w.Code != http.StatusOK {
		t.Fatalf("valid change must 200, got %d: %s", w.Code, w.Body.String())
	}
	if savedID != 9 || savedPassword != "next" {
		t.Fatalf("password not persisted for the right user: id=%d password=%q", savedID, savedPassword)
	}
}

func TestRefreshEntitlement_correctsStalePaidFlag(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	users := map[string]*migrations.User{
		"stale@example.com": {ID: 1, Email: "stale@example.com", IsPaid: true, SubscriptionExpiresAt: &past},
	}
	withResolver(t, users)

	u := refreshEntitlement(userResolver("stale@example.com"))

	if u.IsPaid {
		t.Fatal("expired membership must read as unpaid")
	}
	if users["stale@example.com"].IsPaid {
		t.Fatal("the stale flag must be written back to the store")
	}
}

func TestRefreshEntitlement_keepsValidMembership(t *testing.T) {
	future := time.Now().Add(time.Hour)
	users := map[string]*migrations.User{
		"paid@example.com": {ID: 2, Email: "paid@example.com", IsPaid: true, SubscriptionExpiresAt: &future},
	}
	withResolver(t, users)

	u := refreshEntitlement(userResolver("paid@example.com"))

	if !u.IsPaid {
		t.Fatal("valid membership must stay paid")
	}
}

func protectedRig(t *testing.T, users map[string]*migrations.User) *gin.Engine {
	t.Helper()
	withResolver(t, users)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/free", RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": CurrentUser(c).ID})
	})
	r.GET("/premium", RequireAuth(), RequirePaid("会员功能"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func get(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	future := time.Now().Add(time.Hour)
	r := protectedRig(t, map[string]*migrations.User{
		"u@example.com": {ID: 1, Email: "u@example.com", IsPaid: true, SubscriptionExpiresAt: &future},
	})

	if w := get(r, "/free", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token must 401, got %d", w.Code)
	}
	if w := get(r, "/free", "bogus"); w.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token must 401, got %d", w.Code)
	}

	unknown, _, _ := signToken("ghost@example.com", time.Hour, false)
	if w := get(r, "/free", unknown); w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user must 401, got %d", w.Code)
	}

	token, _, _ := signToken("u@example.com", time.Hour, false)
	if w := get(r, "/free", token); w.Code != http.StatusOK {
		t.Fatalf("valid session must pass, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRequirePaid_blocksExpiredMembership(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	r := protectedRig(t, map[string]*migrations.User{
		"expired@example.com": {ID: 3, Email: "expired@example.com", IsPaid: true, SubscriptionExpiresAt: &past},
	})

	token, _, _ := signToken("expired@example.com", time.Hour, false)
	if w := get(r, "/premium", token); w.Code != http.StatusForbidden {
		t.Fatalf("expired membership must 403, got %d", w.Code)
	}
	if w := get(r, "/free", token); w.Code != http.StatusOK {
		t.Fatalf("expired membership still passes free routes, got %d", w.Code)
	}
}

func TestRequirePaid_allowsActiveMembership(t *testing.T) {
	future := time.Now().Add(time.Hour)
	r := protectedRig(t, map[string]*migrations.User{
		"paid@example.com": {ID: 4, Email: "paid@example.com", IsPaid: true, SubscriptionExpiresAt: &future},
	})

	token, _, _ := signToken("paid@example.com", time.Hour, false)
	if w := get(r, "/premium", token); w.Code != http.StatusOK {
		t.Fatalf("active membership must pass, got %d", w.Code)
	}
}
