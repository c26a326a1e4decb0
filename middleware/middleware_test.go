package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/mmonsif/aeroconnect/auth"
	"github.com/mmonsif/aeroconnect/db"
	"github.com/mmonsif/aeroconnect/models"
	"github.com/mmonsif/aeroconnect/session"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	auth.BcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

func setup(t *testing.T, username string) (*auth.JWTManager, *session.Manager, *session.Session) {
	t.Helper()
	store := db.NewMemoryStore()
	if err := db.Seed(context.Background(), store, "Passw0rd1"); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	mgr := session.NewManager(store, db.NewMemoryBlobStore(), nil, session.Options{})
	t.Cleanup(mgr.Shutdown)

	user, err := session.Authenticate(context.Background(), store, username, "Passw0rd1")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	sess, err := mgr.Start(context.Background(), user)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return auth.NewJWTManager("test-secret", time.Minute, time.Hour), mgr, sess
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetSessionFromContext(r.Context()); !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func do(h http.Handler, path, token string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestAuthMiddleware(t *testing.T) {
	jwtManager, mgr, sess := setup(t, "ofathy")
	h := AuthMiddleware(jwtManager, mgr)(okHandler())

	access, _ := jwtManager.GenerateToken(sess.User(), sess.ID)
	refresh, _ := jwtManager.GenerateRefreshToken(sess.User(), sess.ID)
	stale, _ := jwtManager.GenerateToken(sess.User(), "no-such-session")

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"garbage", "not-a-jwt", http.StatusUnauthorized},
		{"refresh token", refresh, http.StatusUnauthorized},
		{"unknown session", stale, http.StatusUnauthorized},
		{"valid", access, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := do(h, "/api/tasks", tt.token); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}

	mgr.End(sess.ID)
	if got := do(h, "/api/tasks", access); got != http.StatusUnauthorized {
		t.Errorf("after logout status = %d", got)
	}
}

func TestWebsocketQueryToken(t *testing.T) {
	jwtManager, mgr, sess := setup(t, "ofathy")
	h := AuthMiddleware(jwtManager, mgr)(okHandler())
	access, _ := jwtManager.GenerateToken(sess.User(), sess.ID)

	req := httptest.NewRequest(http.MethodGet, "/api/ws?token="+access, nil)
	req.Header.Set("Upgrade", "websocket")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPasswordChangeGate(t *testing.T) {
	jwtManager, mgr, sess := setup(t, "admin")
	admin := sess
	if err := admin.ResetPassword(context.Background(), "user-admin", "Temp0rary1"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	access, _ := jwtManager.GenerateToken(admin.User(), admin.ID)

	h := Chain(okHandler(), AuthMiddleware(jwtManager, mgr), PasswordChangeGate("/api/password", "/api/logout"))
	if got := do(h, "/api/tasks", access); got != http.StatusForbidden {
		t.Errorf("gated route status = %d", got)
	}
	if got := do(h, "/api/password", access); got != http.StatusOK {
		t.Errorf("exempt route status = %d", got)
	}
}

func TestRequireRole(t *testing.T) {
	jwtManager, mgr, sess := setup(t, "ofathy")
	access, _ := jwtManager.GenerateToken(sess.User(), sess.ID)

	h := Chain(okHandler(), AuthMiddleware(jwtManager, mgr), RequireRole(models.RoleAdmin))
	if got := do(h, "/api/users/create", access); got != http.StatusForbidden {
		t.Errorf("staff on admin route = %d", got)
	}
	h = Chain(okHandler(), AuthMiddleware(jwtManager, mgr), RequireRole(models.RoleStaff, models.RoleAdmin))
	if got := do(h, "/api/users/create", access); got != http.StatusOK {
		t.Errorf("allowed role = %d", got)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes[i] = rec.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("other client limited: %d", rec.Code)
	}

	if n := rl.Cleanup(-time.Second); n != 2 {
		t.Fatalf("Cleanup removed %d limiters, want 2", n)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if got := clientIP(req); got != "192.0.2.1" {
		t.Errorf("clientIP = %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.5" {
		t.Errorf("forwarded clientIP = %q", got)
	}
}
