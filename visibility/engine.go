// Package visibility decides which records a session may see or act upon and
// whether an incoming change should notify it.
package visibility

import (
	"errors"

	"github.com/mmonsif/aeroconnect/models"
)

var (
	// ErrForbidden is returned for actions the session's role does not permit.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition is returned when a leave request cannot move as asked.
	ErrInvalidTransition = errors.New("invalid leave transition")
	ErrInvalidDates      = errors.New("invalid leave dates")
	ErrInvalidManager    = errors.New("invalid manager assignment")
)

// Directory resolves denormalized user references. It is the only way the
// engine maps an assignee name or a staff id back to a user.
type Directory interface {
	UserByID(id string) (models.User, bool)
	UserByName(name string) (models.User, bool)
	UserByStaffID(staffID string) (models.User, bool)
}

// Engine evaluates visibility and permissions for one user.
type Engine struct {
	user models.User
	dir  Directory
}

func New(user models.User, dir Directory) *Engine {
	return &Engine{user: user, dir: dir}
}

func (e *Engine) User() models.User {
	return e.user
}

func (e *Engine) isAdmin() bool {
	return e.user.Role == models.RoleAdmin
}

// --- Tasks ---

// CanViewTask: admin, department managers, or the assignee.
func (e *Engine) CanViewTask(t models.Task) bool {
	if e.isAdmin() {
		return true
	}
	if e.user.Role.IsManagerTier() && t.Department == e.user.Department {
		return true
	}
	return t.AssignedTo == e.user.Name
}

// CanCreateTask: every role above staff.
func (e *Engine) CanCreateTask() bool {
	return e.user.Role != models.RoleStaff && e.user.Role.Valid()
}

// CanEditTask covers edit, reassign and delete.
func (e *Engine) CanEditTask(t models.Task) bool {
	if e.isAdmin() {
		return true
	}
	return e.user.Role.IsManagerTier() && t.Department == e.user.Department
}

// CanSetTaskStatus lets the assignee work the task as well as anyone who may edit it.
func (e *Engine) CanSetTaskStatus(t models.Task) bool {
	return t.AssignedTo == e.user.Name || e.CanEditTask(t)
}

// CanAssignTo reports whether a task in department may be assigned to assignee.
// Managers stay within their department; admins assign anywhere.
func (e *Engine) CanAssignTo(department, assignee string) bool {
	if e.isAdmin() {
		return true
	}
	if !e.user.Role.IsManagerTier() || department != e.user.Department {
		return false
	}
	if assignee == "" || assignee == e.user.Name {
		return true
	}
	u, ok := e.dir.UserByName(assignee)
	return ok && u.Department == e.user.Department
}

func (e *Engine) FilterTasks(tasks []models.Task) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if e.CanViewTask(t) {
			out = append(out, t)
		}
	}
	return out
}

// --- Safety reports ---

// CanViewReport is true for every role; RedactReport hides anonymous reporters.
func (e *Engine) CanViewReport(models.SafetyReport) bool {
	return true
}

// CanProgressReport: admin, manager, safety_manager.
func (e *Engine) CanProgressReport() bool {
	switch e.user.Role {
	case models.RoleAdmin, models.RoleManager, models.RoleSafetyManager:
		return true
	}
	return false
}

// RedactReport resolves the reporter name for identified reports and
// guarantees anonymous reports carry no identity.
func (e *Engine) RedactReport(r models.SafetyReport) models.SafetyReport {
	if r.IsAnonymous() || r.ReporterID == "" {
		r.ReporterID = models.AnonymousReporter
		r.ReporterName = ""
		return r
	}
	if u, ok := e.dir.UserByID(r.ReporterID); ok {
		r.ReporterName = u.Name
	}
	return r
}

func (e *Engine) FilterReports(reports []models.SafetyReport) []models.SafetyReport {
	out := make([]models.SafetyReport, 0, len(reports))
	for _, r := range reports {
		if e.CanViewReport(r) {
			out = append(out, e.RedactReport(r))
		}
	}
	return out
}

// --- Leave requests ---

// IsLeaveOwner reports whether the request belongs to the session user.
func (e *Engine) IsLeaveOwner(l models.LeaveRequest) bool {
	return l.StaffID != "" && l.StaffID == e.user.StaffID
}

// CanViewLeave: admin sees all; managers see their department and their
// direct reports; everyone sees their own.
func (e *Engine) CanViewLeave(l models.LeaveRequest) bool {
	if e.isAdmin() || e.IsLeaveOwner(l) {
		return true
	}
	if !e.user.Role.IsManagerTier() {
		return false
	}
	owner, ok := e.dir.UserByStaffID(l.StaffID)
	if !ok {
		return false
	}
	return owner.Department == e.user.Department || owner.ManagerID == e.user.ID
}

// CanDecideLeave covers approve, reject and suggest. Nobody decides their own request.
func (e *Engine) CanDecideLeave(l models.LeaveRequest) bool {
	if e.IsLeaveOwner(l) {
		return false
	}
	if e.isAdmin() {
		return true
	}
	return e.user.Role.IsManagerTier() && e.CanViewLeave(l)
}

func (e *Engine) FilterLeave(reqs []models.LeaveRequest) []models.LeaveRequest {
	out := make([]models.LeaveRequest, 0, len(reqs))
	for _, l := range reqs {
		if e.CanViewLeave(l) {
			out = append(out, l)
		}
	}
	return out
}

// --- Messages ---

func (e *Engine) CanViewMessage(m models.ChatMessage) bool {
	return m.SenderID == e.user.ID || m.RecipientID == e.user.ID || m.IsBroadcast()
}

// CanBroadcast: admins, safety managers and managers. Supervisors cannot.
func (e *Engine) CanBroadcast() bool {
	switch e.user.Role {
	case models.RoleAdmin, models.RoleSafetyManager, models.RoleManager:
		return true
	}
	return false
}

func (e *Engine) FilterMessages(msgs []models.ChatMessage) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if e.CanViewMessage(m) {
			out = append(out, m)
		}
	}
	return out
}

// --- Forum and documents ---

// CanModerate covers deleting forum posts and documents.
func (e *Engine) CanModerate() bool {
	return e.user.Role == models.RoleAdmin || e.user.Role == models.RoleManager
}

// --- Users ---

func (e *Engine) CanAdministerUsers() bool {
	return e.isAdmin()
}

// CheckManagerAssignment validates setting target's manager to managerID.
// An empty managerID clears the assignment.
func (e *Engine) CheckManagerAssignment(target models.User, managerID string) error {
	if !e.CanAdministerUsers() {
		return ErrForbidden
	}
	if managerID == "" {
		return nil
	}
	if managerID == target.ID {
		return ErrInvalidManager
	}
	manager, ok := e.dir.UserByID(managerID)
	if !ok || manager.Role == models.RoleStaff || manager.ID == models.BroadcastID {
		return ErrInvalidManager
	}
	return nil
}

// ManagerCandidates lists users eligible to manage target.
func (e *Engine) ManagerCandidates(target models.User, users []models.User) []models.User {
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if u.ID == target.ID || u.ID == models.BroadcastID || u.Role == models.RoleStaff {
			continue
		}
		out = append(out, u)
	}
	return out
}
