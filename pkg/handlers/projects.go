package handlers

import (
	"net/http"

	"collab-tracker-backend/pkg/config"
	"collab-tracker-backend/pkg/models"
	"collab-tracker-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// ProjectHandler 项目处理器
type ProjectHandler struct {
	base
}

// NewProjectHandler 创建项目处理器
func NewProjectHandler(cfg *config.Config, svc *Services) *ProjectHandler {
	return &ProjectHandler{base{config: cfg, svc: svc}}
}

// ListProjects GET /api/projects
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	projects, err := h.svc.Projects.ListMine(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"projects": projects,
		"count":    len(projects),
	})
}

// CreateProject POST /api/projects
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req struct {
		Name        string `json:"nom"`
		Description string `json:"description"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	project, err := h.svc.Projects.Create(r.Context(), actor, req.Name, req.Description)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{"project": project})
}

// GetProject GET /api/projects/{projectID}
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	project, err := h.svc.Projects.Get(r.Context(), actor, chi.URLParam(r, "projectID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"project": project})
}

// UpdateProject PUT /api/projects/{projectID}
func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var patch models.ProjectPatch
	if err := utils.ParseJSONBody(r, &patch); err != nil {
		h.badRequest(w, r, err)
		return
	}

	project, err := h.svc.Projects.Update(r.Context(), actor, chi.URLParam(r, "projectID"), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"project": project})
}
