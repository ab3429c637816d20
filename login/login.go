package login

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	mailer "c3exam-backend/email"
	"c3exam-backend/entitlement"
	"c3exam-backend/migrations"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

// blacklist for manual logout (tokens -> expiry). Not persisted; acceptable
// for MVP. Guarded by blacklistMu: logout writes while every request reads.
var (
	blacklist   = map[string]int64{}
	blacklistMu sync.Mutex
)

func blacklistAdd(token string, exp int64) {
	blacklistMu.Lock()
	blacklist[token] = exp
	blacklistMu.Unlock()
}

func blacklisted(token string) bool {
	blacklistMu.Lock()
	exp, ok := blacklist[token]
	blacklistMu.Unlock()
	return ok && exp >= time.Now().Unix()
}

// tokenPayload minimal JWT-like payload
type tokenPayload struct {
	Email string `json:"email"`
	Exp   int64  `json:"exp"`
	Rem   bool   `json:"rem"` // remember flag
	Jti   string `json:"jti"` // unique id
}

func sessionDuration(remember bool) time.Duration {
	defHours := 12
	if v := os.Getenv("SESSION_DEFAULT_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			defHours = n
		}
	}
	remDays := 30
	if v := os.Getenv("SESSION_REMEMBER_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			remDays = n
		}
	}
	if remember {
		return time.Hour * 24 * time.Duration(remDays)
	}
	return time.Hour * time.Duration(defHours)
}

func sessionSecret() []byte {
	s := os.Getenv("SESSION_SECRET")
	if s == "" {
		s = "dev-insecure-secret"
	}
	return []byte(s)
}

func signToken(email string, dur time.Duration, remember bool) (string, int64, error) {
	exp := time.Now().Add(dur).Unix()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payloadBytes, _ := json.Marshal(tokenPayload{Email: email, Exp: exp, Rem: remember, Jti: uuid.NewString()})
	payload := base64.RawURLEncoding.EncodeToString(payloadBytes)
	mac := hmac.New(sha256.New, sessionSecret())
	mac.Write([]byte(header + "." + payload))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return header + "." + payload + "." + sig, exp, nil
}

func parseToken(token string) (tokenPayload, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return tokenPayload{}, false
	}
	unsigned := parts[0] + "." + parts[1]
	mac := hmac.New(sha256.New, sessionSecret())
	mac.Write([]byte(unsigned))
	expected := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(parts[2])) {
		return tokenPayload{}, false
	}
	pb, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return tokenPayload{}, false
	}
	var tp tokenPayload
	if err := json.Unmarshal(pb, &tp); err != nil {
		return tokenPayload{}, false
	}
	if tp.Exp < time.Now().Unix() {
		return tokenPayload{}, false
	}
	if blacklisted(token) {
		return tokenPayload{}, false
	}
	return tp, true
}

// GetEmailFromToken validates signature + expiry and returns email
func GetEmailFromToken(token string) (string, bool) {
	tp, ok := parseToken(token)
	if !ok {
		return "", false
	}
	return tp.Email, true
}

// --- User resolver / entitlement correction --- //
// Indirection kept so tests can run without a live DB.

var userResolver = func(email string) *migrations.User { return migrations.GetUserByEmail(email) }
var clearPaidFlag = func(id int) error { return migrations.ClearPaidFlag(id) }
var updatePassword = func(id int, password string) error { return migrations.UpdateUserPassword(id, password) }

// RegisterUserResolver allows tests (or main) to provide a resolver.
func RegisterUserResolver(fn func(email string) *migrations.User) { userResolver = fn }

// refreshEntitlement applies the lazy expiry correction: a stored is_paid=1
// whose expiry has passed is flipped back to 0 on read. Downstream feature
// gates rely on the corrected value.
func refreshEntitlement(u *migrations.User) *migrations.User {
	if u == nil {
		return nil
	}
	if u.IsPaid && !entitlement.Entitled(u.IsPaid, u.SubscriptionExpiresAt, time.Now()) {
		if err := clearPaidFlag(u.ID); err != nil {
			log.Printf("[LOGIN] clear stale paid flag failed for userID=%d: %v", u.ID, err)
		}
		u.IsPaid = false
	}
	return u
}

const userKey = "auth_user"

// RequireAuth resolves the bearer token into a user and stores it in the
// gin context. Responds 401 when the session is absent or invalid.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "请先登录"})
			c.Abort()
			return
		}
		email, ok := GetEmailFromToken(token)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "登录已过期，请重新登录"})
			c.Abort()
			return
		}
		user := refreshEntitlement(userResolver(email))
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "用户不存在"})
			c.Abort()
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// RequirePaid gates premium endpoints. Must run after RequireAuth.
// Responds 403 with a feature-specific message for non-entitled users.
func RequirePaid(message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "请先登录"})
			c.Abort()
			return
		}
		if !entitlement.Entitled(user.IsPaid, user.SubscriptionExpiresAt, time.Now()) {
			log.Printf("[LOGIN][paywall] userID=%d denied: %s", user.ID, message)
			c.JSON(http.StatusForbidden, gin.H{"error": message})
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user resolved by RequireAuth, or nil.
func CurrentUser(c *gin.Context) *migrations.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*migrations.User)
	return u
}

// RegisterRoutes registers the auth endpoints.
func RegisterRoutes(r *gin.Engine) {
	r.POST("/register", RegisterHandler)
	r.POST("/login", Handler)
	r.POST("/logout", LogoutHandler)
	r.GET("/session", SessionHandler)
	r.POST("/change-password", RequireAuth(), ChangePasswordHandler)
}

func userResponse(u *migrations.User) gin.H {
	res := gin.H{
		"id":                      u.ID,
		"name":                    u.Name,
		"email":                   u.Email,
		"is_paid":                 u.IsPaid,
		"subscription_expires_at": nil,
		"referred":                u.ReferredBy != nil,
		"created_at":              u.CreatedAt.Format(time.RFC3339),
		"updated_at":              u.UpdatedAt.Format(time.RFC3339),
	}
	if u.SubscriptionExpiresAt != nil {
		res["subscription_expires_at"] = u.SubscriptionExpiresAt.Format(time.RFC3339)
	}
	if u.ReferralCode != nil {
		res["referral_code"] = *u.ReferralCode
	}
	return res
}

func Handler(c *gin.Context) {
	var creds Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求数据"})
		return
	}

	creds.Email = strings.TrimSpace(strings.ToLower(creds.Email))
	creds.Password = strings.TrimSpace(creds.Password)

	user := refreshEntitlement(userResolver(creds.Email))
	if user != nil && user.Password == creds.Password {
		dur := sessionDuration(creds.Remember)
		token, exp, _ := signToken(user.Email, dur, creds.Remember)
		c.JSON(http.StatusOK, gin.H{"token": token, "user": userResponse(user), "expires_at": exp, "remember": creds.Remember})
	} else {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "邮箱或密码错误"})
	}
}

func SessionHandler(c *gin.Context) {
	auth := c.GetHeader("Authorization")
	token := strings.TrimPrefix(auth, "Bearer ")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "请先登录"})
		return
	}
	tp, ok := parseToken(token)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "登录已过期，请重新登录"})
		return
	}
	user := refreshEntitlement(userResolver(tp.Email))
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "用户不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": userResponse(user)})
}

// LogoutHandler invalidates the token
func LogoutHandler(c *gin.Context) {
	auth := c.GetHeader("Authorization")
	token := strings.TrimPrefix(auth, "Bearer ")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少令牌"})
		return
	}
	// Add to blacklist until its natural expiry (best effort)
	if tp, ok := parseToken(token); ok {
		blacklistAdd(token, tp.Exp)
	}
	c.JSON(http.StatusOK, gin.H{"message": "已退出登录"})
}

type ChangePasswordPayload struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePasswordHandler updates the password after re-checking the current
// one. Runs behind RequireAuth.
func ChangePasswordHandler(c *gin.Context) {
	user := CurrentUser(c)
	var p ChangePasswordPayload
	if err := c.ShouldBindJSON(&p); err != nil || p.NewPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求数据"})
		return
	}
	if user.Password != p.OldPassword {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "原密码错误"})
		return
	}
	if err := updatePassword(user.ID, p.NewPassword); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "密码更新失败"})
		return
	}
	go func(to string) {
		if err := mailer.SendPasswordChanged(to); err != nil {
			log.Printf("send password change email failed for %s: %v", to, err)
		}
	}(user.Email)
	c.JSON(http.StatusOK, gin.H{"message": "密码已更新"})
}

type RegisterPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func RegisterHandler(c *gin.Context) {
	var p RegisterPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求数据"})
		return
	}
	p.Email = strings.TrimSpace(strings.ToLower(p.Email))
	if p.Email == "" || p.Password == "" || p.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少必填字段"})
		return
	}
	if exists, err := migrations.EmailExists(p.Email); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "注册失败，请稍后重试"})
		return
	} else if exists {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "该邮箱已注册"})
		return
	}
	if err := migrations.CreateUser(p.Name, p.Email, p.Password, "user"); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "注册失败，请稍后重试"})
		return
	}
	go func(to string) {
		if err := mailer.SendWelcome(to); err != nil {
			log.Printf("send welcome email failed for %s: %v", to, err)
		}
	}(p.Email)
	c.Status(http.StatusCreated)
}
