package handlers

import (
	"net/http"

	"collab-tracker-backend/pkg/config"
	"collab-tracker-backend/pkg/models"
	"collab-tracker-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// ColumnHandler 列定义处理器
type ColumnHandler struct {
	base
}

// NewColumnHandler 创建列定义处理器
func NewColumnHandler(cfg *config.Config, svc *Services) *ColumnHandler {
	return &ColumnHandler{base{config: cfg, svc: svc}}
}

// ListColumns GET /api/projects/{projectID}/columns[?visible=true]
func (h *ColumnHandler) ListColumns(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	visibleOnly := r.URL.Query().Get("visible") == "true"
	cols, err := h.svc.Columns.Columns(r.Context(), actor, chi.URLParam(r, "projectID"), visibleOnly)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"columns": cols,
		"count":   len(cols),
	})
}

// AddColumn POST /api/projects/{projectID}/columns
func (h *ColumnHandler) AddColumn(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req struct {
		ID      string            `json:"id"`
		Name    string            `json:"name"`
		Type    models.ColumnType `json:"type"`
		Visible *bool             `json:"visible"`
		Options []string          `json:"options"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 未指定时默认可见
	visible := true
	if req.Visible != nil {
		visible = *req.Visible
	}

	col, err := h.svc.Columns.AddColumn(r.Context(), actor, chi.URLParam(r, "projectID"), models.Column{
		ID:      req.ID,
		Name:    req.Name,
		Type:    req.Type,
		Visible: visible,
		Options: req.Options,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{"column": col})
}

// UpdateColumn PATCH /api/projects/{projectID}/columns/{columnID}
func (h *ColumnHandler) UpdateColumn(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var patch models.ColumnPatch
	if err := utils.ParseJSONBody(r, &patch); err != nil {
		h.badRequest(w, r, err)
		return
	}

	col, err := h.svc.Columns.UpdateColumn(r.Context(), actor, chi.URLParam(r, "projectID"), chi.URLParam(r, "columnID"), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"column": col})
}
