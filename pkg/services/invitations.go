package services

import (
	"context"
	"net/url"
	"strings"
	"time"

	"collab-tracker-backend/pkg/apperrors"
	"collab-tracker-backend/pkg/database"
	"collab-tracker-backend/pkg/events"
	"collab-tracker-backend/pkg/metrics"
	"collab-tracker-backend/pkg/models"
	"collab-tracker-backend/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultInvitationTTL is how long an invitation stays redeemable.
const DefaultInvitationTTL = 7 * 24 * time.Hour

// InvitationService runs the invitation lifecycle. Expiry is never stored:
// a pending invitation past expires_at is reported as expired by every read
// and refused by Accept, but stays pending in the store.
type InvitationService struct {
	base
	ttl      time.Duration
	newToken func() (string, error)
}

func NewInvitationService(store database.DatabaseInterface, ttl time.Duration, opts ...Option) *InvitationService {
	if ttl <= 0 {
		ttl = DefaultInvitationTTL
	}
	return &InvitationService{
		base: newBase(store, opts),
		ttl:  ttl,
		newToken: func() (string, error) {
			return utils.GenerateURLToken(utils.InvitationTokenBytes)
		},
	}
}

// InviteURL builds the redemption link for token.
func InviteURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/invite/" + url.PathEscape(token)
}

func validateInvitee(email string, role models.Role) (string, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return "", apperrors.New(apperrors.KindValidation, apperrors.CodeEmailRequired, "email is required")
	}
	if !strings.Contains(email, "@") {
		return "", apperrors.Newf(apperrors.KindValidation, apperrors.CodeEmailInvalid, "invalid email %q", email).
			WithMetadata("email", email)
	}
	if role == models.RoleOwner {
		return "", apperrors.New(apperrors.KindValidation, apperrors.CodeCannotInviteOwner, "cannot invite as owner")
	}
	if !role.Valid() {
		return "", apperrors.Newf(apperrors.KindValidation, apperrors.CodeInvalidRole, "unknown role %q", role).
			WithMetadata("role", string(role))
	}
	return email, nil
}

// Send creates a pending invitation for email. A token collision is reported
// as a conflict; retrying draws a new token.
func (s *InvitationService) Send(ctx context.Context, actor models.Actor, projectID, email string, role models.Role) (*models.Invitation, error) {
	email, err := validateInvitee(email, role)
	if err != nil {
		return nil, err
	}
	project, _, err := s.authorize(ctx, actor, projectID, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if err := s.rejectOwnerEmail(ctx, project, email); err != nil {
		return nil, err
	}

	token, err := s.newToken()
	if err != nil {
		return nil, apperrors.Store("generate invitation token", err)
	}
	now := s.now()
	inv := &models.Invitation{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Email:     email,
		Role:      role,
		Token:     token,
		Status:    models.InvitationPending,
		InvitedBy: actor.UserID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.CreateInvitation(ctx, inv); err != nil {
		return nil, apperrors.Store("create invitation", err)
	}

	metrics.IncrementInvitationEvent("created")
	s.log.Info("invitation sent",
		zap.String("invitation_id", inv.ID),
		zap.String("project_id", projectID),
		zap.String("role", string(role)),
		zap.String("by", actor.UserID),
	)
	s.publish(ctx, events.Event{
		Type:      events.InvitationCreated,
		ProjectID: projectID,
		ActorID:   actor.UserID,
		Attributes: map[string]string{
			"invitation_id": inv.ID,
			"email":         inv.Email,
			"role":          string(inv.Role),
			"token":         inv.Token,
			"expires_at":    inv.ExpiresAt.Format(time.RFC3339),
		},
	})
	return inv, nil
}

// Accept redeems token for actor. Unknown and already consumed tokens are
// indistinguishable. The membership insert and the status change commit
// together; if a membership already exists from an earlier partial success
// the invitation is closed and that membership returned.
func (s *InvitationService) Accept(ctx context.Context, actor models.Actor, token string) (*models.Membership, error) {
	if actor.UserID == "" {
		return nil, apperrors.New(apperrors.KindAuthorization, apperrors.CodeUnauthenticated, "no acting user")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.New(apperrors.KindValidation, apperrors.CodeTokenRequired, "token is required")
	}

	inv, err := s.store.GetPendingInvitationByToken(ctx, token)
	if err != nil {
		return nil, apperrors.Store("get invitation", err)
	}
	now := s.now()
	if inv.Expired(now) {
		metrics.IncrementInvitationEvent("expired")
		return nil, apperrors.Newf(apperrors.KindExpired, apperrors.CodeInvitationExpired,
			"invitation %s expired at %s", inv.ID, inv.ExpiresAt.Format(time.RFC3339))
	}
	if actor.NormalizedEmail() != inv.Email {
		metrics.IncrementInvitationEvent("mismatch")
		return nil, apperrors.Newf(apperrors.KindIdentityMismatch, apperrors.CodeInvitationEmailMismatch,
			"invitation %s is addressed to another email", inv.ID)
	}

	project, err := s.store.GetProject(ctx, inv.ProjectID)
	if err != nil {
		return nil, apperrors.Store("get project", err)
	}
	if project.OwnerID == actor.UserID {
		return nil, apperrors.Newf(apperrors.KindConflict, apperrors.CodeMembershipExists,
			"user owns project %s", project.ID)
	}
	s.rememberUser(ctx, actor)

	m := &models.Membership{
		ID:        uuid.New().String(),
		ProjectID: inv.ProjectID,
		UserID:    actor.UserID,
		Role:      inv.Role,
		AddedAt:   now,
	}
	err = s.store.RedeemInvitation(ctx, inv, m)
	if apperrors.HasCode(err, apperrors.CodeMembershipExists) {
		return s.closeRedeemed(ctx, actor, inv)
	}
	if err != nil {
		return nil, apperrors.Store("redeem invitation", err)
	}

	s.accepted(ctx, actor, inv)
	return m, nil
}

// rejectOwnerEmail refuses to invite the project owner to their own project.
// An email with no known user cannot belong to the owner.
func (s *InvitationService) rejectOwnerEmail(ctx context.Context, project *models.Project, email string) error {
	u, err := s.store.GetUserByEmail(ctx, email)
	if apperrors.KindOf(err) == apperrors.KindNotFound {
		return nil
	}
	if err != nil {
		return apperrors.Store("get user", err)
	}
	if u.ID == project.OwnerID {
		return apperrors.Newf(apperrors.KindConflict, apperrors.CodeMembershipExists,
			"%s owns project %s", email, project.ID)
	}
	return nil
}

// rememberUser records the accepting identity so member listings can show
// its email. A failed write is logged and does not block the join.
func (s *InvitationService) rememberUser(ctx context.Context, actor models.Actor) {
	u := &models.User{ID: actor.UserID, Email: actor.NormalizedEmail()}
	if err := s.store.UpsertUser(ctx, u); err != nil {
		s.log.Warn("could not record user reference",
			zap.String("user_id", actor.UserID),
			zap.Error(err),
		)
	}
}

// closeRedeemed finishes an accept whose membership already exists.
func (s *InvitationService) closeRedeemed(ctx context.Context, actor models.Actor, inv *models.Invitation) (*models.Membership, error) {
	existing, err := s.store.GetMember(ctx, inv.ProjectID, actor.UserID)
	if err != nil {
		return nil, apperrors.Store("get member", err)
	}
	changed, err := s.store.TransitionInvitation(ctx, inv.ID, models.InvitationPending, models.InvitationAccepted)
	if err != nil {
		return nil, apperrors.Store("accept invitation", err)
	}
	if !changed {
		// Someone else closed it in between; behave as if it never was pending.
		return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeInvitationNotFound, "pending invitation not found")
	}
	inv.Status = models.InvitationAccepted
	s.log.Info("invitation closed against existing membership",
		zap.String("invitation_id", inv.ID),
		zap.String("membership_id", existing.ID),
	)
	s.accepted(ctx, actor, inv)
	return existing, nil
}

func (s *InvitationService) accepted(ctx context.Context, actor models.Actor, inv *models.Invitation) {
	metrics.IncrementInvitationEvent("accepted")
	s.log.Info("invitation accepted",
		zap.String("invitation_id", inv.ID),
		zap.String("project_id", inv.ProjectID),
		zap.String("user_id", actor.UserID),
	)
	s.publish(ctx, events.Event{
		Type:      events.InvitationAccepted,
		ProjectID: inv.ProjectID,
		ActorID:   actor.UserID,
		Attributes: map[string]string{
			"invitation_id": inv.ID,
			"role":          string(inv.Role),
		},
	})
}

// Cancel moves a pending invitation to cancelled. Cancelling a terminal
// invitation succeeds without changing it.
func (s *InvitationService) Cancel(ctx context.Context, actor models.Actor, invitationID string) (*models.Invitation, error) {
	inv, err := s.store.GetInvitationByID(ctx, invitationID)
	if err != nil {
		return nil, apperrors.Store("get invitation", err)
	}
	if _, _, err := s.authorize(ctx, actor, inv.ProjectID, models.RoleAdmin); err != nil {
		return nil, err
	}
	// Expired counts as terminal even though it is never stored.
	if inv.EffectiveStatus(s.now()).Terminal() {
		return s.view(inv), nil
	}

	changed, err := s.store.TransitionInvitation(ctx, inv.ID, models.InvitationPending, models.InvitationCancelled)
	if err != nil {
		return nil, apperrors.Store("cancel invitation", err)
	}
	if !changed {
		// Closed concurrently; report the stored outcome.
		current, err := s.store.GetInvitationByID(ctx, inv.ID)
		if err != nil {
			return nil, apperrors.Store("get invitation", err)
		}
		return s.view(current), nil
	}

	inv.Status = models.InvitationCancelled
	metrics.IncrementInvitationEvent("cancelled")
	s.log.Info("invitation cancelled",
		zap.String("invitation_id", inv.ID),
		zap.String("project_id", inv.ProjectID),
		zap.String("by", actor.UserID),
	)
	s.publish(ctx, events.Event{
		Type:       events.InvitationCancelled,
		ProjectID:  inv.ProjectID,
		ActorID:    actor.UserID,
		Attributes: map[string]string{"invitation_id": inv.ID},
	})
	return s.view(inv), nil
}

// view reports the effective status of inv.
func (s *InvitationService) view(inv *models.Invitation) *models.Invitation {
	out := *inv
	out.Status = inv.EffectiveStatus(s.now())
	return &out
}

// ListForProject returns the project's invitations, newest first. Tokens are
// only shown to managers.
func (s *InvitationService) ListForProject(ctx context.Context, actor models.Actor, projectID string) ([]models.Invitation, error) {
	_, role, err := s.authorize(ctx, actor, projectID, models.RoleObserver)
	if err != nil {
		return nil, err
	}
	invs, err := s.store.ListInvitationsByProject(ctx, projectID)
	if err != nil {
		return nil, apperrors.Store("list invitations", err)
	}
	now := s.now()
	for i := range invs {
		invs[i].Status = invs[i].EffectiveStatus(now)
		if !role.CanManage() {
			invs[i].Token = ""
		}
	}
	return invs, nil
}

// ListMine returns the invitations addressed to actor's email, newest first.
func (s *InvitationService) ListMine(ctx context.Context, actor models.Actor) ([]models.Invitation, error) {
	email := actor.NormalizedEmail()
	if actor.UserID == "" || email == "" {
		return nil, apperrors.New(apperrors.KindAuthorization, apperrors.CodeUnauthenticated, "no acting user")
	}
	invs, err := s.store.ListInvitationsByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.Store("list invitations", err)
	}
	now := s.now()
	for i := range invs {
		invs[i].Status = invs[i].EffectiveStatus(now)
	}
	return invs, nil
}

// Preview describes a pending invitation to an unauthenticated visitor of
// its link. Neither the token nor the invitee email is returned.
func (s *InvitationService) Preview(ctx context.Context, token string) (*models.InvitationPreview, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.New(apperrors.KindValidation, apperrors.CodeTokenRequired, "token is required")
	}
	inv, err := s.store.GetPendingInvitationByToken(ctx, token)
	if err != nil {
		return nil, apperrors.Store("get invitation", err)
	}
	project, err := s.store.GetProject(ctx, inv.ProjectID)
	if err != nil {
		return nil, apperrors.Store("get project", err)
	}
	return &models.InvitationPreview{
		ProjectID:   project.ID,
		ProjectName: project.Name,
		Role:        inv.Role,
		Status:      inv.EffectiveStatus(s.now()),
		ExpiresAt:   inv.ExpiresAt,
	}, nil
}
