package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmonsif/aeroconnect/db"
	"github.com/mmonsif/aeroconnect/models"
	"github.com/mmonsif/aeroconnect/visibility"
)

type LeaveInput struct {
	Type      models.LeaveType `json:"type"`
	StartDate string           `json:"start_date"`
	EndDate   string           `json:"end_date"`
	Reason    string           `json:"reason"`
}

// LeaveRequests returns the requests the session may see, newest first.
func (s *Session) LeaveRequests() []models.LeaveRequest {
	rows := s.mirror.Rows(models.TableLeaveRequests)
	reqs := make([]models.LeaveRequest, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, db.DecodeLeaveRequest(r))
	}
	return s.Engine().FilterLeave(reqs)
}

func (s *Session) SubmitLeave(ctx context.Context, in LeaveInput) (models.LeaveRequest, error) {
	user, _ := s.actor()
	if user.StaffID == "" {
		return models.LeaveRequest{}, fmt.Errorf("account has no staff id: %w", ErrInvalid)
	}
	if !in.Type.Valid() {
		return models.LeaveRequest{}, fmt.Errorf("unknown leave type %q: %w", in.Type, ErrInvalid)
	}
	if err := visibility.ValidateDates(in.StartDate, in.EndDate); err != nil {
		return models.LeaveRequest{}, err
	}

	req := models.LeaveRequest{
		ID:        uuid.NewString(),
		StaffID:   user.StaffID,
		StaffName: user.Name,
		Type:      in.Type,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Status:    models.LeavePending,
		Reason:    in.Reason,
		CreatedAt: time.Now().UTC(),
	}
	row, err := s.write(ctx, models.TableLeaveRequests, db.Mutation{Op: models.OpInsert, Payload: db.LeaveRequestRow(req)})
	if err != nil {
		return models.LeaveRequest{}, err
	}
	return db.DecodeLeaveRequest(row), nil
}

// ActOnLeave moves a request through the leave workflow. removed is true when
// the request was withdrawn and hard-deleted.
func (s *Session) ActOnLeave(ctx context.Context, id string, d visibility.LeaveDecision) (req models.LeaveRequest, removed bool, err error) {
	user, engine := s.actor()
	row, ok := s.mirror.Get(models.TableLeaveRequests, id)
	if !ok {
		return models.LeaveRequest{}, false, fmt.Errorf("leave request %s: %w", id, ErrNotFound)
	}
	current := db.DecodeLeaveRequest(row)

	if err := engine.AuthorizeLeave(current, d.Action); err != nil {
		return current, false, err
	}
	next, remove, err := visibility.NextLeave(current, d)
	if err != nil {
		return current, false, err
	}

	if remove {
		if _, err := s.write(ctx, models.TableLeaveRequests, db.Mutation{Op: models.OpDelete, ID: id}); err != nil {
			return current, false, err
		}
		return current, true, nil
	}

	full := db.LeaveRequestRow(next)
	fields := models.Row{"updated_by": user.ID}
	for _, k := range []string{"status", "start_date", "end_date", "suggestion", "suggested_start_date", "suggested_end_date"} {
		fields[k] = full[k]
	}
	if _, err := s.write(ctx, models.TableLeaveRequests, db.Mutation{Op: models.OpUpdate, ID: id, Payload: fields}); err != nil {
		return current, false, err
	}
	return next, false, nil
}
