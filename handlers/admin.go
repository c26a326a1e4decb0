package handlers

import (
	"log"
	"net/http"

	"github.com/mmonsif/aeroconnect/models"
	"github.com/mmonsif/aeroconnect/session"
)

type AdminHandler struct {
	sessions *session.Manager
}

func NewAdminHandler(sessions *session.Manager) *AdminHandler {
	return &AdminHandler{
		sessions: sessions,
	}
}

// --- User Management ---

type UpdateUserRequest struct {
	ID string `json:"id"`
	session.UserInput
}

type UserStatusRequest struct {
	ID     string            `json:"id"`
	Status models.UserStatus `json:"status"`
}

type ResetPasswordRequest struct {
	ID          string `json:"id"`
	NewPassword string `json:"new_password"`
}

type AssignManagerRequest struct {
	ID        string `json:"id"`
	ManagerID string `json:"manager_id"`
}

// GetUsers returns all users
func (h *AdminHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Users())
}

// CreateUser creates a new user
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req session.UserInput
	if !decode(w, r, &req) {
		return
	}

	// Validate input
	if req.Username == "" || req.Password == "" {
		writeError(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	user, err := sess.CreateUser(r.Context(), req)
	if err != nil {
		fail(w, "create user", err)
		return
	}

	log.Printf("✅ User created: %s (role: %s) by %s", user.Username, user.Role, sess.User().Username)
	writeJSON(w, http.StatusCreated, user)
}

// UpdateUser updates an existing user
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := sess.UpdateUser(r.Context(), req.ID, req.UserInput)
	if err != nil {
		fail(w, "update user", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// SetStatus activates or deactivates a user. Deactivated users lose their sessions at once.
func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req UserStatusRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := sess.SetUserStatus(r.Context(), req.ID, req.Status)
	if err != nil {
		fail(w, "update user status", err)
		return
	}
	if user.Status != models.UserActive {
		h.sessions.EndUser(user.ID)
	}

	log.Printf("✅ User %s set to %s by %s", user.Username, user.Status, sess.User().Username)
	writeJSON(w, http.StatusOK, user)
}

// ResetPassword sets a temporary password the user must change at next login
func (h *AdminHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}

	if err := sess.ResetPassword(r.Context(), req.ID, req.NewPassword); err != nil {
		fail(w, "reset password", err)
		return
	}

	log.Printf("🔐 Password reset for user %s by %s", req.ID, sess.User().Username)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password reset successfully"})
}

func (h *AdminHandler) AssignManager(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req AssignManagerRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := sess.AssignManager(r.Context(), req.ID, req.ManagerID)
	if err != nil {
		fail(w, "assign manager", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ManagerCandidates lists the users eligible to manage ?id=
func (h *AdminHandler) ManagerCandidates(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	users, err := sess.ManagerCandidates(r.URL.Query().Get("id"))
	if err != nil {
		fail(w, "list manager candidates", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// DeleteUser deletes a user and ends their sessions
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req IDRequest
	if !decode(w, r, &req) {
		return
	}

	if err := sess.DeleteUser(r.Context(), req.ID); err != nil {
		fail(w, "delete user", err)
		return
	}
	h.sessions.EndUser(req.ID)

	log.Printf("✅ User %s deleted by %s", req.ID, sess.User().Username)
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

// --- Audit ---

func (h *AdminHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	logs, err := sess.AuditLogs(r.Context())
	if err != nil {
		fail(w, "retrieve audit logs", err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
