package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/mmonsif/aeroconnect/auth"
	"github.com/mmonsif/aeroconnect/db"
	"github.com/mmonsif/aeroconnect/middleware"
	"github.com/mmonsif/aeroconnect/models"
	"github.com/mmonsif/aeroconnect/session"
)

type AuthHandler struct {
	store      db.Store
	sessions   *session.Manager
	jwtManager *auth.JWTManager
}

func NewAuthHandler(store db.Store, sessions *session.Manager, jwtManager *auth.JWTManager) *AuthHandler {
	return &AuthHandler{
		store:      store,
		sessions:   sessions,
		jwtManager: jwtManager,
	}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token              string      `json:"token"`
	RefreshToken       string      `json:"refresh_token"`
	User               models.User `json:"user"`
	MustChangePassword bool        `json:"must_change_password"`
}

// Login authenticates the user and opens their session
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	// Validate input
	if req.Username == "" || req.Password == "" {
		writeError(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	user, err := session.Authenticate(r.Context(), h.store, req.Username, req.Password)
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		log.Printf("Login failed for user %s: invalid credentials", req.Username)
		writeError(w, "Invalid username or password", http.StatusUnauthorized)
		return
	case errors.Is(err, session.ErrInactive):
		log.Printf("Login refused for inactive user %s", req.Username)
		writeError(w, "Account is inactive", http.StatusForbidden)
		return
	case err != nil:
		fail(w, "log in", err)
		return
	}

	sess, err := h.sessions.Start(r.Context(), user)
	if err != nil {
		fail(w, "start session", err)
		return
	}

	token, err := h.jwtManager.GenerateToken(user, sess.ID)
	if err != nil {
		h.sessions.End(sess.ID)
		log.Printf("Failed to generate token for user %s: %v", req.Username, err)
		writeError(w, "Failed to generate authentication token", http.StatusInternalServerError)
		return
	}

	refreshToken, err := h.jwtManager.GenerateRefreshToken(user, sess.ID)
	if err != nil {
		h.sessions.End(sess.ID)
		log.Printf("Failed to generate refresh token for user %s: %v", req.Username, err)
		writeError(w, "Failed to generate refresh token", http.StatusInternalServerError)
		return
	}

	log.Printf("✅ User logged in: %s (role: %s)", user.Username, user.Role)

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:              token,
		RefreshToken:       refreshToken,
		User:               user,
		MustChangePassword: user.MustChangePassword,
	})
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RefreshTokenResponse struct {
	Token string `json:"token"`
}

// RefreshToken issues a new access token while the session is still alive
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req RefreshTokenRequest
	if !decode(w, r, &req) {
		return
	}

	claims, err := h.jwtManager.ValidateToken(req.RefreshToken, auth.RefreshToken)
	if err != nil {
		writeError(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		return
	}

	sess, ok := h.sessions.Get(claims.SessionID)
	if !ok || sess.User().ID != claims.UserID {
		writeError(w, "Session expired", http.StatusUnauthorized)
		return
	}

	token, err := h.jwtManager.GenerateToken(sess.User(), sess.ID)
	if err != nil {
		log.Printf("Failed to generate token for user %s: %v", sess.User().Username, err)
		writeError(w, "Failed to generate authentication token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, RefreshTokenResponse{
		Token: token,
	})
}

// Logout ends the caller's session and cancels its change feed
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	h.sessions.End(sess.ID)
	log.Printf("✅ User logged out: %s", sess.User().Username)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword updates the caller's password and lifts the forced-change gate
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}

	if err := sess.ChangePassword(r.Context(), req.CurrentPassword, req.NewPassword); err != nil {
		fail(w, "change password", err)
		return
	}

	log.Printf("✅ Password changed for %s", sess.User().Username)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed"})
}

// Me returns the caller's profile
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
