package handlers

import (
	"log"
	"net/http"

	"github.com/mmonsif/aeroconnect/models"
	"github.com/mmonsif/aeroconnect/session"
)

type TaskHandler struct{}

func NewTaskHandler() *TaskHandler {
	return &TaskHandler{}
}

// UpdateTaskRequest carries the task id next to its editable fields.
type UpdateTaskRequest struct {
	ID string `json:"id"`
	session.TaskInput
}

type TaskStatusRequest struct {
	ID     string            `json:"id"`
	Status models.TaskStatus `json:"status"`
}

// ListTasks returns the tasks visible to the caller
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Tasks())
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req session.TaskInput
	if !decode(w, r, &req) {
		return
	}

	task, err := sess.CreateTask(r.Context(), req)
	if err != nil {
		fail(w, "create task", err)
		return
	}

	log.Printf("✅ Task created by %s: %s", sess.User().Username, task.Title)
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if !decode(w, r, &req) {
		return
	}

	task, err := sess.UpdateTask(r.Context(), req.ID, req.TaskInput)
	if err != nil {
		fail(w, "update task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// SetStatus moves a task through its lifecycle
func (h *TaskHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req TaskStatusRequest
	if !decode(w, r, &req) {
		return
	}

	task, err := sess.SetTaskStatus(r.Context(), req.ID, req.Status)
	if err != nil {
		fail(w, "update task status", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
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

	if err := sess.DeleteTask(r.Context(), req.ID); err != nil {
		fail(w, "delete task", err)
		return
	}

	log.Printf("✅ Task %s deleted by %s", req.ID, sess.User().Username)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted"})
}

// Briefing summarizes the caller's open tasks for the shift
func (h *TaskHandler) Briefing(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	briefing, err := sess.ShiftBriefing(r.Context())
	if err != nil {
		fail(w, "generate briefing", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"briefing": briefing})
}
