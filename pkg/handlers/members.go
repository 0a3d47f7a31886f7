package handlers

import (
	"net/http"

	"collab-tracker-backend/pkg/config"
	"collab-tracker-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// MemberHandler 项目成员处理器
type MemberHandler struct {
	base
}

// NewMemberHandler 创建成员处理器
func NewMemberHandler(cfg *config.Config, svc *Services) *MemberHandler {
	return &MemberHandler{base{config: cfg, svc: svc}}
}

// ListMembers GET /api/projects/{projectID}/members
func (h *MemberHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	members, err := h.svc.Members.List(r.Context(), actor, chi.URLParam(r, "projectID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"members": members,
		"count":   len(members),
	})
}

// AddMember POST /api/projects/{projectID}/members
func (h *MemberHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	member, err := h.svc.Members.Add(r.Context(), actor, chi.URLParam(r, "projectID"), req.UserID, parseRole(req.Role))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{"member": member})
}

// RemoveMember DELETE /api/projects/{projectID}/members/{userID}
func (h *MemberHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	projectID := chi.URLParam(r, "projectID")
	userID := chi.URLParam(r, "userID")
	if err := h.svc.Members.Remove(r.Context(), actor, projectID, userID); err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"project_id": projectID,
		"user_id":    userID,
		"removed":    true,
	})
}

// UpdateRole PUT /api/members/{membershipID}/role
func (h *MemberHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	member, err := h.svc.Members.UpdateRole(r.Context(), actor, chi.URLParam(r, "membershipID"), parseRole(req.Role))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"member": member})
}
