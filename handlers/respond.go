package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/mmonsif/aeroconnect/analysis"
	"github.com/mmonsif/aeroconnect/auth"
	"github.com/mmonsif/aeroconnect/db"
	"github.com/mmonsif/aeroconnect/middleware"
	"github.com/mmonsif/aeroconnect/session"
	"github.com/mmonsif/aeroconnect/visibility"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// IDRequest addresses a single record.
type IDRequest struct {
	ID string `json:"id"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("❌ Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, visibility.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, session.ErrNotFound), errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, visibility.ErrInvalidTransition), errors.Is(err, db.ErrConstraint):
		return http.StatusConflict
	case errors.Is(err, visibility.ErrInvalidDates),
		errors.Is(err, visibility.ErrInvalidManager),
		errors.Is(err, session.ErrInvalid),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidPassword),
		errors.Is(err, db.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrUnavailable),
		errors.Is(err, db.ErrNotConfigured),
		errors.Is(err, analysis.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail reports err to the caller. Server-side failures are logged and hidden.
func fail(w http.ResponseWriter, action string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("❌ Failed to %s: %v", action, err)
		writeError(w, "Failed to "+action, status)
		return
	}
	if status == http.StatusServiceUnavailable {
		log.Printf("⚠️  Could not %s: %v", action, err)
	}
	writeError(w, err.Error(), status)
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// currentSession returns the caller's session, writing 401 when there is none.
func currentSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return nil, false
	}
	return sess, true
}
