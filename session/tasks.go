package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmonsif/aeroconnect/db"
	"github.com/mmonsif/aeroconnect/models"
	"github.com/mmonsif/aeroconnect/visibility"
)

// TaskInput carries the editable fields of a task.
type TaskInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	AssignedTo  string          `json:"assigned_to"`
	Priority    models.Priority `json:"priority"`
	Location    string          `json:"location"`
	Department  string          `json:"department"`
}

// Tasks returns the tasks visible to the session, newest first.
func (s *Session) Tasks() []models.Task {
	rows := s.mirror.Rows(models.TableTasks)
	tasks := make([]models.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, db.DecodeTask(r))
	}
	return s.Engine().FilterTasks(tasks)
}

func (s *Session) task(id string) (models.Task, error) {
	row, ok := s.mirror.Get(models.TableTasks, id)
	if !ok {
		return models.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return db.DecodeTask(row), nil
}

// assignee normalizes an assignee name for permission checks.
func assignee(name string) string {
	if name == db.DefaultAssignee {
		return ""
	}
	return name
}

func (s *Session) CreateTask(ctx context.Context, in TaskInput) (models.Task, error) {
	user, engine := s.actor()
	if !engine.CanCreateTask() {
		return models.Task{}, visibility.ErrForbidden
	}

	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return models.Task{}, fmt.Errorf("title is required: %w", ErrInvalid)
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !in.Priority.Valid() {
		return models.Task{}, fmt.Errorf("unknown priority %q: %w", in.Priority, ErrInvalid)
	}
	if in.Department == "" {
		in.Department = user.Department
	}
	if in.AssignedTo == "" {
		in.AssignedTo = db.DefaultAssignee
	}
	if in.Location == "" {
		in.Location = db.DefaultLocation
	}
	if !engine.CanAssignTo(in.Department, assignee(in.AssignedTo)) {
		return models.Task{}, visibility.ErrForbidden
	}

	task := models.Task{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		AssignedTo:  in.AssignedTo,
		Status:      models.TaskPending,
		Priority:    in.Priority,
		Location:    in.Location,
		Department:  in.Department,
		CreatedBy:   user.ID,
		CreatedAt:   time.Now().UTC(),
	}
	row, err := s.write(ctx, models.TableTasks, db.Mutation{Op: models.OpInsert, Payload: db.TaskRow(task)})
	if err != nil {
		return models.Task{}, err
	}
	return db.DecodeTask(row), nil
}

// UpdateTask edits and possibly reassigns a task.
func (s *Session) UpdateTask(ctx context.Context, id string, in TaskInput) (models.Task, error) {
	user, engine := s.actor()
	current, err := s.task(id)
	if err != nil {
		return models.Task{}, err
	}
	if !engine.CanEditTask(current) {
		return models.Task{}, visibility.ErrForbidden
	}

	next := current
	if t := strings.TrimSpace(in.Title); t != "" {
		next.Title = t
	}
	if in.Description != "" {
		next.Description = in.Description
	}
	if in.AssignedTo != "" {
		next.AssignedTo = in.AssignedTo
	}
	if in.Priority != "" {
		if !in.Priority.Valid() {
			return models.Task{}, fmt.Errorf("unknown priority %q: %w", in.Priority, ErrInvalid)
		}
		next.Priority = in.Priority
	}
	if in.Location != "" {
		next.Location = in.Location
	}
	if in.Department != "" {
		next.Department = in.Department
	}
	if (next.AssignedTo != current.AssignedTo || next.Department != current.Department) &&
		!engine.CanAssignTo(next.Department, assignee(next.AssignedTo)) {
		return models.Task{}, visibility.ErrForbidden
	}

	fields := models.Row{
		"title":       next.Title,
		"description": next.Description,
		"assigned_to": next.AssignedTo,
		"priority":    string(next.Priority),
		"location":    next.Location,
		"department":  next.Department,
		"updated_by":  user.ID,
	}
	if err := s.patchOptimistic(ctx, models.TableTasks, id, fields); err != nil {
		return models.Task{}, err
	}
	next.UpdatedBy = user.ID
	return next, nil
}

// SetTaskStatus is applied to the mirror immediately and rolled back if the store refuses it.
func (s *Session) SetTaskStatus(ctx context.Context, id string, status models.TaskStatus) (models.Task, error) {
	user, engine := s.actor()
	if !status.Valid() {
		return models.Task{}, fmt.Errorf("unknown task status %q: %w", status, ErrInvalid)
	}
	current, err := s.task(id)
	if err != nil {
		return models.Task{}, err
	}
	if !engine.CanSetTaskStatus(current) {
		return models.Task{}, visibility.ErrForbidden
	}

	fields := models.Row{"status": string(status), "updated_by": user.ID}
	if err := s.patchOptimistic(ctx, models.TableTasks, id, fields); err != nil {
		return current, err
	}
	current.Status = status
	current.UpdatedBy = user.ID
	return current, nil
}

func (s *Session) DeleteTask(ctx context.Context, id string) error {
	_, engine := s.actor()
	current, err := s.task(id)
	if err != nil {
		return err
	}
	if !engine.CanEditTask(current) {
		return visibility.ErrForbidden
	}
	return s.removeOptimistic(ctx, models.TableTasks, id)
}

// ShiftBriefing asks the analyzer to summarize the session's open tasks.
func (s *Session) ShiftBriefing(ctx context.Context) (string, error) {
	var open []models.Task
	for _, t := range s.Tasks() {
		if t.Status != models.TaskCompleted {
			open = append(open, t)
		}
	}
	if len(open) == 0 {
		return "No open tasks for this shift.", nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.AITimeout)
	defer cancel()
	return s.analyzer.Briefing(ctx, open)
}
