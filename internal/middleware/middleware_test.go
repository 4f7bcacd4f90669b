package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hazemshokry/train-tracking-app/internal/logger"
	"github.com/hazemshokry/train-tracking-app/internal/metrics"
)

const secret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": UserID(c), "admin": IsAdmin(c)})
	})
	return r
}

func do(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sign(t *testing.T, uid int64, role string, ttl time.Duration) string {
	t.Helper()
	tok, err := SignToken(secret, uid, role, ttl)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	return tok
}

func TestAuth(t *testing.T) {
	r := newEngine(Auth(secret))

	cases := []struct {
		name  string
		token string
		want  int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage", "not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", func() string { tok, _ := SignToken("other", 7, "", time.Hour); return tok }(), http.StatusUnauthorized},
		{"expired", sign(t, 7, "", -time.Minute), http.StatusUnauthorized},
		{"no user", sign(t, 0, "", time.Hour), http.StatusUnauthorized},
		{"valid", sign(t, 7, "", time.Hour), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := do(r, tc.token); w.Code != tc.want {
				t.Fatalf("status: got %d, want %d (%s)", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestParseTokenRejectsUnsigned(t *testing.T) {
	// {"alg":"none"} . {"uid":7}
	if _, err := ParseToken(secret, "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJ1aWQiOjd9."); err == nil {
		t.Fatalf("ParseToken accepted an unsigned token")
	}
}

func TestRequireAdmin(t *testing.T) {
	r := newEngine(Auth(secret), RequireAdmin())

	if w := do(r, sign(t, 7, "", time.Hour)); w.Code != http.StatusForbidden {
		t.Fatalf("user: got %d, want 403", w.Code)
	}
	w := do(r, sign(t, 1, RoleAdmin, time.Hour))
	if w.Code != http.StatusOK {
		t.Fatalf("admin: got %d, want 200", w.Code)
	}
	if body := w.Body.String(); body != `{"admin":true,"uid":1}` {
		t.Fatalf("body: got %s", body)
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatalf("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatalf("third request inside the window should be limited")
	}
	if !rl.Allow("b") {
		t.Fatalf("callers are limited independently")
	}
	now = now.Add(61 * time.Second)
	if !rl.Allow("a") {
		t.Fatalf("request after the window should pass")
	}
}

func TestRateLimitKeysByUser(t *testing.T) {
	r := newEngine(Auth(secret), RateLimit(1, time.Minute))
	alice, bob := sign(t, 1, "", time.Hour), sign(t, 2, "", time.Hour)

	if w := do(r, alice); w.Code != http.StatusOK {
		t.Fatalf("alice first: got %d", w.Code)
	}
	if w := do(r, alice); w.Code != http.StatusTooManyRequests {
		t.Fatalf("alice second: got %d, want 429", w.Code)
	}
	// same client IP, different user
	if w := do(r, bob); w.Code != http.StatusOK {
		t.Fatalf("bob first: got %d", w.Code)
	}
}

func TestLoggerRecordsRouteTemplate(t *testing.T) {
	m := metrics.NewCollector()
	r := gin.New()
	r.Use(Logger(logger.Nop(), m))
	r.GET("/reports/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, path := range []string{"/reports/1", "/reports/2", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/reports/:id", "404")); got != 2 {
		t.Fatalf("templated route count: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Fatalf("unmatched count: got %v, want 1", got)
	}
}
