package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmonsif/aeroconnect/auth"
	"github.com/mmonsif/aeroconnect/db"
	"github.com/mmonsif/aeroconnect/models"
	"github.com/mmonsif/aeroconnect/visibility"
)

// UserInput carries the admin-editable fields of a user.
type UserInput struct {
	Name       string          `json:"name"`
	Username   string          `json:"username"`
	Password   string          `json:"password,omitempty"`
	Role       models.UserRole `json:"role"`
	StaffID    string          `json:"staff_id"`
	Department string          `json:"department"`
	ManagerID  string          `json:"manager_id,omitempty"`
}

// Users lists every real account. The broadcast placeholder is hidden.
func (s *Session) Users() []models.User {
	rows := s.mirror.Rows(models.TableUsers)
	users := make([]models.User, 0, len(rows))
	for _, r := range rows {
		if r.ID() == models.BroadcastID {
			continue
		}
		users = append(users, db.DecodeUser(r))
	}
	return users
}

// Contacts lists active users the session can message.
func (s *Session) Contacts() []models.User {
	me := s.User().ID
	var out []models.User
	for _, u := range s.Users() {
		if u.ID != me && u.Status == models.UserActive {
			out = append(out, u)
		}
	}
	return out
}

// ManagerCandidates lists users eligible to manage the given user.
func (s *Session) ManagerCandidates(userID string) ([]models.User, error) {
	target, err := s.userByID(userID)
	if err != nil {
		return nil, err
	}
	return s.Engine().ManagerCandidates(target, s.Users()), nil
}

func (s *Session) userByID(id string) (models.User, error) {
	u, ok := s.dir.UserByID(id)
	if !ok || id == models.BroadcastID {
		return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u, nil
}

func (s *Session) requireAdmin() error {
	if !s.Engine().CanAdministerUsers() {
		return visibility.ErrForbidden
	}
	return nil
}

// CreateUser adds an account that must change its password on first login.
func (s *Session) CreateUser(ctx context.Context, in UserInput) (models.User, error) {
	if err := s.requireAdmin(); err != nil {
		return models.User{}, err
	}
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	if in.Username == "" || in.Name == "" {
		return models.User{}, fmt.Errorf("name and username are required: %w", ErrInvalid)
	}
	if !in.Role.Valid() {
		return models.User{}, fmt.Errorf("unknown role %q: %w", in.Role, ErrInvalid)
	}
	if _, taken := s.dir.find("username", in.Username); taken {
		return models.User{}, fmt.Errorf("username %s is taken: %w", in.Username, db.ErrConstraint)
	}

	user := models.User{
		ID:                 uuid.NewString(),
		Name:               in.Name,
		Username:           in.Username,
		Role:               in.Role,
		StaffID:            in.StaffID,
		Department:         in.Department,
		Status:             models.UserActive,
		MustChangePassword: true,
		ManagerID:          in.ManagerID,
		CreatedAt:          time.Now().UTC(),
	}
	if user.Department == "" {
		user.Department = db.DefaultDepartment
	}
	if err := s.Engine().CheckManagerAssignment(user, in.ManagerID); err != nil {
		return models.User{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.User{}, err
	}
	user.PasswordHash = hash

	if _, err := s.write(ctx, models.TableUsers, db.Mutation{Op: models.OpInsert, Payload: db.UserRow(user)}); err != nil {
		return models.User{}, err
	}
	s.audit(ctx, "CREATE_USER", fmt.Sprintf("Created user %s with role %s", user.Username, user.Role))
	return user, nil
}

// UpdateUser edits profile fields. Empty fields are left unchanged.
func (s *Session) UpdateUser(ctx context.Context, id string, in UserInput) (models.User, error) {
	if err := s.requireAdmin(); err != nil {
		return models.User{}, err
	}
	user, err := s.userByID(id)
	if err != nil {
		return models.User{}, err
	}

	fields := models.Row{}
	if in.Name != "" {
		user.Name = in.Name
		fields["name"] = in.Name
	}
	if in.Role != "" {
		if !in.Role.Valid() {
			return models.User{}, fmt.Errorf("unknown role %q: %w", in.Role, ErrInvalid)
		}
		user.Role = in.Role
		fields["role"] = string(in.Role)
	}
	if in.StaffID != "" {
		user.StaffID = in.StaffID
		fields["staff_id"] = in.StaffID
	}
	if in.Department != "" {
		user.Department = in.Department
		fields["department"] = in.Department
	}
	if len(fields) == 0 {
		return user, nil
	}

	if err := s.patchOptimistic(ctx, models.TableUsers, id, fields); err != nil {
		return models.User{}, err
	}
	s.audit(ctx, "UPDATE_USER", fmt.Sprintf("Updated user %s", user.Username))
	return user, nil
}

func (s *Session) SetUserStatus(ctx context.Context, id string, status models.UserStatus) (models.User, error) {
	if err := s.requireAdmin(); err != nil {
		return models.User{}, err
	}
	if !status.Valid() {
		return models.User{}, fmt.Errorf("unknown status %q: %w", status, ErrInvalid)
	}
	if id == s.User().ID && status != models.UserActive {
		return models.User{}, fmt.Errorf("cannot deactivate your own account: %w", ErrInvalid)
	}
	user, err := s.userByID(id)
	if err != nil {
		return models.User{}, err
	}

	if err := s.patchOptimistic(ctx, models.TableUsers, id, models.Row{"status": string(status)}); err != nil {
		return models.User{}, err
	}
	user.Status = status
	s.audit(ctx, "SET_USER_STATUS", fmt.Sprintf("Set %s to %s", user.Username, status))
	return user, nil
}

// ResetPassword sets a temporary password the user must change at next login.
func (s *Session) ResetPassword(ctx context.Context, id, password string) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	user, err := s.userByID(id)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	if _, err := s.write(ctx, models.TableUsers, db.Mutation{
		Op:      models.OpUpdate,
		ID:      id,
		Payload: models.Row{"password_hash": hash, "must_change_password": true},
	}); err != nil {
		return err
	}
	s.audit(ctx, "RESET_PASSWORD", fmt.Sprintf("Reset password for %s", user.Username))
	return nil
}

// AssignManager sets or, with an empty managerID, clears a user's manager.
func (s *Session) AssignManager(ctx context.Context, id, managerID string) (models.User, error) {
	user, err := s.userByID(id)
	if err != nil {
		return models.User{}, err
	}
	if err := s.Engine().CheckManagerAssignment(user, managerID); err != nil {
		return models.User{}, err
	}

	var value interface{}
	if managerID != "" {
		value = managerID
	}
	if err := s.patchOptimistic(ctx, models.TableUsers, id, models.Row{"manager_id": value}); err != nil {
		return models.User{}, err
	}
	user.ManagerID = managerID
	s.audit(ctx, "ASSIGN_MANAGER", fmt.Sprintf("Set manager of %s to %q", user.Username, managerID))
	return user, nil
}

func (s *Session) DeleteUser(ctx context.Context, id string) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	if id == s.User().ID {
		return fmt.Errorf("cannot delete your own account: %w", ErrInvalid)
	}
	user, err := s.userByID(id)
	if err != nil {
		return err
	}
	if err := s.removeOptimistic(ctx, models.TableUsers, id); err != nil {
		return err
	}
	s.audit(ctx, "DELETE_USER", fmt.Sprintf("Deleted user %s", user.Username))
	return nil
}

// ChangePassword replaces the session user's own password and lifts the
// forced-change flag.
func (s *Session) ChangePassword(ctx context.Context, current, next string) error {
	me := s.User()
	row, ok := s.mirror.Get(models.TableUsers, me.ID)
	if !ok {
		return fmt.Errorf("user %s: %w", me.ID, ErrNotFound)
	}
	if err := auth.CheckPassword(current, row.String("password_hash")); err != nil {
		return err
	}
	if current == next {
		return fmt.Errorf("new password must differ from the current one: %w", auth.ErrWeakPassword)
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}

	fields := models.Row{"password_hash": hash, "must_change_password": false}
	if err := s.patchOptimistic(ctx, models.TableUsers, me.ID, fields); err != nil {
		return err
	}

	s.mu.Lock()
	s.user.PasswordHash = hash
	s.user.MustChangePassword = false
	s.engine = visibility.New(s.user, s.dir)
	s.mu.Unlock()
	return nil
}
