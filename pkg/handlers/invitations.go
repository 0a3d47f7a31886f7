package handlers

import (
	"net/http"
	"strings"

	"collab-tracker-backend/pkg/config"
	"collab-tracker-backend/pkg/models"
	"collab-tracker-backend/pkg/services"
	"collab-tracker-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// InvitationHandler 邀请处理器
type InvitationHandler struct {
	base
}

// NewInvitationHandler 创建邀请处理器
func NewInvitationHandler(cfg *config.Config, svc *Services) *InvitationHandler {
	return &InvitationHandler{base{config: cfg, svc: svc}}
}

// invitationView 附带可分享链接的邀请
type invitationView struct {
	models.Invitation
	InviteURL string `json:"invite_url,omitempty"`
}

func (h *InvitationHandler) withURL(inv models.Invitation) invitationView {
	v := invitationView{Invitation: inv}
	if inv.Token != "" {
		v.InviteURL = services.InviteURL(h.config.BaseURL, inv.Token)
	}
	return v
}

func (h *InvitationHandler) withURLs(invs []models.Invitation) []invitationView {
	out := make([]invitationView, 0, len(invs))
	for _, inv := range invs {
		out = append(out, h.withURL(inv))
	}
	return out
}

// SendInvitation POST /api/projects/{projectID}/invitations
func (h *InvitationHandler) SendInvitation(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	inv, err := h.svc.Invitations.Send(r.Context(), actor, chi.URLParam(r, "projectID"), req.Email, parseRole(req.Role))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{"invitation": h.withURL(*inv)})
}

// ListProjectInvitations GET /api/projects/{projectID}/invitations
func (h *InvitationHandler) ListProjectInvitations(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	invs, err := h.svc.Invitations.ListForProject(r.Context(), actor, chi.URLParam(r, "projectID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"invitations": h.withURLs(invs),
		"count":       len(invs),
	})
}

// ListMyInvitations GET /api/invitations/my
func (h *InvitationHandler) ListMyInvitations(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	invs, err := h.svc.Invitations.ListMine(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"invitations": h.withURLs(invs),
		"count":       len(invs),
	})
}

// AcceptInvitation POST /api/invitations/accept
func (h *InvitationHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	member, err := h.svc.Invitations.Accept(r.Context(), actor, strings.TrimSpace(req.Token))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"member": member})
}

// CancelInvitation POST /api/invitations/{invitationID}/cancel
func (h *InvitationHandler) CancelInvitation(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	inv, err := h.svc.Invitations.Cancel(r.Context(), actor, chi.URLParam(r, "invitationID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"invitation": inv})
}

// PreviewInvitation GET /api/invite/{token} （公开）
func (h *InvitationHandler) PreviewInvitation(w http.ResponseWriter, r *http.Request) {
	preview, err := h.svc.Invitations.Preview(r.Context(), strings.TrimSpace(chi.URLParam(r, "token")))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"invitation": preview})
}
