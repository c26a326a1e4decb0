package handlers

import (
	"log"
	"net/http"

	"github.com/mmonsif/aeroconnect/models"
	"github.com/mmonsif/aeroconnect/session"
	"github.com/mmonsif/aeroconnect/visibility"
)

type LeaveHandler struct{}

func NewLeaveHandler() *LeaveHandler {
	return &LeaveHandler{}
}

// DecideLeaveRequest is a manager's decision on a pending request.
type DecideLeaveRequest struct {
	ID string `json:"id"`
	visibility.LeaveDecision
}

type LeaveActionResponse struct {
	Request *models.LeaveRequest `json:"request,omitempty"`
	Removed bool                 `json:"removed"`
}

func (h *LeaveHandler) ListLeave(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.LeaveRequests())
}

func (h *LeaveHandler) SubmitLeave(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req session.LeaveInput
	if !decode(w, r, &req) {
		return
	}

	leave, err := sess.SubmitLeave(r.Context(), req)
	if err != nil {
		fail(w, "submit leave request", err)
		return
	}

	log.Printf("✅ Leave request %s submitted by %s", leave.ID, sess.User().Username)
	writeJSON(w, http.StatusCreated, leave)
}

// Decide approves, rejects or counter-offers a request
func (h *LeaveHandler) Decide(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req DecideLeaveRequest
	if !decode(w, r, &req) {
		return
	}

	switch req.Action {
	case visibility.LeaveApprove, visibility.LeaveReject, visibility.LeaveSuggest:
	default:
		writeError(w, "Action must be approve, reject or suggest", http.StatusBadRequest)
		return
	}
	h.act(w, r, req.ID, req.LeaveDecision)
}

// Accept takes up a manager's counter-offer
func (h *LeaveHandler) Accept(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req IDRequest
	if !decode(w, r, &req) {
		return
	}
	h.act(w, r, req.ID, visibility.LeaveDecision{Action: visibility.LeaveAccept})
}

// Withdraw removes the caller's own open request
func (h *LeaveHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req IDRequest
	if !decode(w, r, &req) {
		return
	}
	h.act(w, r, req.ID, visibility.LeaveDecision{Action: visibility.LeaveWithdraw})
}

func (h *LeaveHandler) act(w http.ResponseWriter, r *http.Request, id string, d visibility.LeaveDecision) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	leave, removed, err := sess.ActOnLeave(r.Context(), id, d)
	if err != nil {
		fail(w, string(d.Action)+" leave request", err)
		return
	}

	log.Printf("✅ Leave request %s: %s by %s", id, d.Action, sess.User().Username)
	if removed {
		writeJSON(w, http.StatusOK, LeaveActionResponse{Removed: true})
		return
	}
	writeJSON(w, http.StatusOK, LeaveActionResponse{Request: &leave})
}
