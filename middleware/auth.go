package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mmonsif/aeroconnect/auth"
	"github.com/mmonsif/aeroconnect/models"
	"github.com/mmonsif/aeroconnect/session"
)

type contextKey string

const (
	SessionContextKey contextKey = "session"
	ClaimsContextKey  contextKey = "claims"
)

// AuthMiddleware validates JWT tokens and injects the caller's live session into context
func AuthMiddleware(jwtManager *auth.JWTManager, sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := tokenFromRequest(r)
			if err != nil {
				writeError(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			claims, err := jwtManager.ValidateToken(token, auth.AccessToken)
			if err != nil {
				writeError(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			// The token is only good while its session is alive
			sess, ok := sessions.Get(claims.SessionID)
			if !ok || sess.User().ID != claims.UserID {
				writeError(w, "Session expired", http.StatusUnauthorized)
				return
			}
			if sess.User().Status != models.UserActive {
				sessions.End(sess.ID)
				writeError(w, "Account is inactive", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, sess)
			ctx = context.WithValue(ctx, ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tokenFromRequest reads the bearer token, falling back to the "token" query
// parameter for websocket upgrades, which cannot carry headers from browsers.
func tokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		return auth.ExtractToken(header)
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, nil
		}
	}
	return auth.ExtractToken("")
}

// GetSessionFromContext retrieves the session from the request context
func GetSessionFromContext(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(SessionContextKey).(*session.Session)
	return sess, ok
}

// GetUserFromContext retrieves the current user from the request context
func GetUserFromContext(ctx context.Context) (models.User, bool) {
	sess, ok := GetSessionFromContext(ctx)
	if !ok {
		return models.User{}, false
	}
	return sess.User(), true
}

func GetClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*auth.Claims)
	return claims, ok
}

// PasswordChangeGate blocks every route but the exempt ones while the user
// must change their password.
func PasswordChangeGate(exempt ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(exempt))
	for _, p := range exempt {
		allowed[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUserFromContext(r.Context())
			if ok && user.MustChangePassword && !allowed[r.URL.Path] {
				writeError(w, "Password change required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole middleware checks if the user has the required role
func RequireRole(allowedRoles ...models.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUserFromContext(r.Context())
			if !ok {
				writeError(w, "User not found in context", http.StatusUnauthorized)
				return
			}

			hasRole := false
			for _, role := range allowedRoles {
				if user.Role == role {
					hasRole = true
					break
				}
			}

			if !hasRole {
				writeError(w, "Insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Chain applies middlewares so that the first one listed runs first.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
