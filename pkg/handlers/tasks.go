package handlers

import (
	"errors"
	"io"
	"net/http"

	"collab-tracker-backend/pkg/config"
	"collab-tracker-backend/pkg/models"
	"collab-tracker-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// TaskHandler 任务行处理器
type TaskHandler struct {
	base
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(cfg *config.Config, svc *Services) *TaskHandler {
	return &TaskHandler{base{config: cfg, svc: svc}}
}

// ListTasks GET /api/projects/{projectID}/tasks
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	tasks, err := h.svc.Tasks.List(r.Context(), actor, chi.URLParam(r, "projectID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// CreateTask POST /api/projects/{projectID}/tasks
//
// An empty body creates a blank row.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req struct {
		Data models.TaskData `json:"data"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(w, r, err)
		return
	}

	task, err := h.svc.Tasks.Create(r.Context(), actor, chi.URLParam(r, "projectID"), req.Data)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{"task": task})
}

// GetTask GET /api/tasks/{taskID}
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	task, err := h.svc.Tasks.Get(r.Context(), actor, chi.URLParam(r, "taskID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"task": task})
}

// UpdateCell PATCH /api/tasks/{taskID}/cells/{columnID}
//
// Body {value, version}. version 0 or absent writes against the current row.
func (h *TaskHandler) UpdateCell(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req struct {
		Value   interface{} `json:"value"`
		Version int64       `json:"version"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	task, err := h.svc.Tasks.UpdateCell(r.Context(), actor, chi.URLParam(r, "taskID"), chi.URLParam(r, "columnID"), req.Value, req.Version)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"task": task})
}

// DeleteTask DELETE /api/tasks/{taskID}
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	taskID := chi.URLParam(r, "taskID")
	if err := h.svc.Tasks.Delete(r.Context(), actor, taskID); err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"id":      taskID,
		"deleted": true,
	})
}
