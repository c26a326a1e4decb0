package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mmonsif/aeroconnect/auth"
	"github.com/mmonsif/aeroconnect/db"
	"github.com/mmonsif/aeroconnect/middleware"
	"github.com/mmonsif/aeroconnect/models"
	"github.com/mmonsif/aeroconnect/session"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// NewRouter registers every API route. Global middleware (CORS, rate
// limiting) is applied by the caller.
func NewRouter(store db.Store, sessions *session.Manager, jwtManager *auth.JWTManager, allowedOrigins []string) *http.ServeMux {
	authHandler := NewAuthHandler(store, sessions, jwtManager)
	taskHandler := NewTaskHandler()
	safetyHandler := NewSafetyHandler()
	leaveHandler := NewLeaveHandler()
	messageHandler := NewMessageHandler()
	forumHandler := NewForumHandler()
	documentHandler := NewDocumentHandler()
	notificationHandler := NewNotificationHandler(allowedOrigins)
	adminHandler := NewAdminHandler(sessions)

	mux := http.NewServeMux()

	// Public routes (no authentication required)
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/api/login", authHandler.Login)
	mux.HandleFunc("/api/refresh", authHandler.RefreshToken)

	// Protected routes; until the password is changed only these three are reachable
	authenticated := func(h http.HandlerFunc, extra ...func(http.Handler) http.Handler) http.Handler {
		mws := append([]func(http.Handler) http.Handler{
			middleware.AuthMiddleware(jwtManager, sessions),
			middleware.PasswordChangeGate("/api/password", "/api/logout", "/api/me"),
		}, extra...)
		return middleware.Chain(h, mws...)
	}

	mux.Handle("/api/logout", authenticated(authHandler.Logout))
	mux.Handle("/api/password", authenticated(authHandler.ChangePassword))
	mux.Handle("/api/me", authenticated(authHandler.Me))
	mux.Handle("/api/ws", authenticated(notificationHandler.Stream))

	// Tasks
	mux.Handle("/api/tasks", authenticated(taskHandler.ListTasks))
	mux.Handle("/api/tasks/create", authenticated(taskHandler.CreateTask))
	mux.Handle("/api/tasks/update", authenticated(taskHandler.UpdateTask))
	mux.Handle("/api/tasks/status", authenticated(taskHandler.SetStatus))
	mux.Handle("/api/tasks/delete", authenticated(taskHandler.DeleteTask))
	mux.Handle("/api/tasks/briefing", authenticated(taskHandler.Briefing))

	// Safety
	mux.Handle("/api/safety", authenticated(safetyHandler.ListReports))
	mux.Handle("/api/safety/create", authenticated(safetyHandler.SubmitReport))
	mux.Handle("/api/safety/analyze", authenticated(safetyHandler.AnalyzeReport))
	mux.Handle("/api/safety/translate", authenticated(safetyHandler.TranslateReport))
	mux.Handle("/api/safety/status", authenticated(safetyHandler.SetStatus))
	mux.Handle("/api/safety/export", authenticated(safetyHandler.ExportReports))

	// Leave
	mux.Handle("/api/leave", authenticated(leaveHandler.ListLeave))
	mux.Handle("/api/leave/create", authenticated(leaveHandler.SubmitLeave))
	mux.Handle("/api/leave/decide", authenticated(leaveHandler.Decide))
	mux.Handle("/api/leave/accept", authenticated(leaveHandler.Accept))
	mux.Handle("/api/leave/withdraw", authenticated(leaveHandler.Withdraw))

	// Messages
	mux.Handle("/api/messages", authenticated(messageHandler.ListMessages))
	mux.Handle("/api/messages/contacts", authenticated(messageHandler.Contacts))
	mux.Handle("/api/messages/send", authenticated(messageHandler.Send))
	mux.Handle("/api/messages/broadcast", authenticated(messageHandler.Broadcast))
	mux.Handle("/api/messages/read", authenticated(messageHandler.MarkRead))
	mux.Handle("/api/messages/summary", authenticated(messageHandler.Summarize))

	// Forum
	mux.Handle("/api/forum", authenticated(forumHandler.ListPosts))
	mux.Handle("/api/forum/create", authenticated(forumHandler.CreatePost))
	mux.Handle("/api/forum/reply", authenticated(forumHandler.Reply))
	mux.Handle("/api/forum/delete", authenticated(forumHandler.DeletePost))

	// Documents
	mux.Handle("/api/documents", authenticated(documentHandler.ListDocuments))
	mux.Handle("/api/documents/upload", authenticated(documentHandler.Upload))
	mux.Handle("/api/documents/delete", authenticated(documentHandler.Delete))

	// Notifications
	mux.Handle("/api/notifications", authenticated(notificationHandler.ListNotifications))
	mux.Handle("/api/notifications/read", authenticated(notificationHandler.MarkRead))
	mux.Handle("/api/notifications/dismiss", authenticated(notificationHandler.Dismiss))
	mux.Handle("/api/notifications/toast/dismiss", authenticated(notificationHandler.DismissToast))

	// Admin endpoints (admin only)
	adminOnly := middleware.RequireRole(models.RoleAdmin)
	mux.Handle("/api/users", authenticated(adminHandler.GetUsers, adminOnly))
	mux.Handle("/api/users/create", authenticated(adminHandler.CreateUser, adminOnly))
	mux.Handle("/api/users/update", authenticated(adminHandler.UpdateUser, adminOnly))
	mux.Handle("/api/users/status", authenticated(adminHandler.SetStatus, adminOnly))
	mux.Handle("/api/users/reset-password", authenticated(adminHandler.ResetPassword, adminOnly))
	mux.Handle("/api/users/manager", authenticated(adminHandler.AssignManager, adminOnly))
	mux.Handle("/api/users/manager-candidates", authenticated(adminHandler.ManagerCandidates, adminOnly))
	mux.Handle("/api/users/delete", authenticated(adminHandler.DeleteUser, adminOnly))
	mux.Handle("/api/audit-logs", authenticated(adminHandler.AuditLogs, adminOnly))

	return mux
}

// Health check endpoint
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":%d,"version":"%s"}`, time.Now().Unix(), Version)
}
