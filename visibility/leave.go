package visibility

import (
	"fmt"
	"time"

	"github.com/mmonsif/aeroconnect/models"
)

// LeaveAction is a step in the leave workflow.
type LeaveAction string

const (
	LeaveApprove  LeaveAction = "approve"
	LeaveReject   LeaveAction = "reject"
	LeaveSuggest  LeaveAction = "suggest"
	LeaveAccept   LeaveAction = "accept"
	LeaveWithdraw LeaveAction = "withdraw"
)

// LeaveDecision carries an action and, for suggest, the counter-offer.
type LeaveDecision struct {
	Action             LeaveAction `json:"action"`
	Suggestion         string      `json:"suggestion,omitempty"`
	SuggestedStartDate string      `json:"suggested_start_date,omitempty"`
	SuggestedEndDate   string      `json:"suggested_end_date,omitempty"`
}

// NextLeave applies decision to req. When remove is true the request is
// withdrawn and must be hard-deleted rather than updated.
//
//	pending         --approve--> approved
//	pending         --reject---> rejected
//	pending         --suggest--> suggestion_sent
//	suggestion_sent --accept---> approved (dates := suggested, suggestion cleared)
//	suggestion_sent --reject---> rejected
//	pending, suggestion_sent --withdraw--> removed
func NextLeave(req models.LeaveRequest, d LeaveDecision) (next models.LeaveRequest, remove bool, err error) {
	if req.Status.Terminal() {
		return req, false, fmt.Errorf("%s request cannot %s: %w", req.Status, d.Action, ErrInvalidTransition)
	}

	next = req
	switch d.Action {
	case LeaveApprove:
		if req.Status != models.LeavePending {
			break
		}
		next.Status = models.LeaveApproved
		return next, false, nil

	case LeaveReject:
		next.Status = models.LeaveRejected
		return next, false, nil

	case LeaveSuggest:
		if req.Status != models.LeavePending {
			break
		}
		if err := ValidateDates(d.SuggestedStartDate, d.SuggestedEndDate); err != nil {
			return req, false, err
		}
		next.Status = models.LeaveSuggestionSent
		next.Suggestion = d.Suggestion
		next.SuggestedStartDate = d.SuggestedStartDate
		next.SuggestedEndDate = d.SuggestedEndDate
		return next, false, nil

	case LeaveAccept:
		if req.Status != models.LeaveSuggestionSent {
			break
		}
		next.Status = models.LeaveApproved
		next.StartDate = req.SuggestedStartDate
		next.EndDate = req.SuggestedEndDate
		next.Suggestion = ""
		next.SuggestedStartDate = ""
		next.SuggestedEndDate = ""
		return next, false, nil

	case LeaveWithdraw:
		return req, true, nil
	}

	return req, false, fmt.Errorf("%s request cannot %s: %w", req.Status, d.Action, ErrInvalidTransition)
}

// AuthorizeLeave checks who may take an action: the owner accepts and
// withdraws, a manager who can see the request decides.
func (e *Engine) AuthorizeLeave(req models.LeaveRequest, action LeaveAction) error {
	switch action {
	case LeaveAccept, LeaveWithdraw:
		if e.IsLeaveOwner(req) {
			return nil
		}
	case LeaveApprove, LeaveReject, LeaveSuggest:
		if e.CanDecideLeave(req) {
			return nil
		}
	}
	return ErrForbidden
}

// ValidateDates checks a YYYY-MM-DD range with start not after end.
func ValidateDates(start, end string) error {
	s, err := time.Parse(models.DateLayout, start)
	if err != nil {
		return fmt.Errorf("invalid start date %q: %w", start, ErrInvalidDates)
	}
	e, err := time.Parse(models.DateLayout, end)
	if err != nil {
		return fmt.Errorf("invalid end date %q: %w", end, ErrInvalidDates)
	}
	if e.Before(s) {
		return fmt.Errorf("end date %s before start date %s: %w", end, start, ErrInvalidDates)
	}
	return nil
}
