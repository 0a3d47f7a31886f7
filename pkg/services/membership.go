package services

import (
	"context"

	"collab-tracker-backend/pkg/apperrors"
	"collab-tracker-backend/pkg/database"
	"collab-tracker-backend/pkg/events"
	"collab-tracker-backend/pkg/models"

	"go.uber.org/zap"
)

// MembershipService manages who belongs to a project and with which role.
type MembershipService struct {
	base
}

func NewMembershipService(store database.DatabaseInterface, opts ...Option) *MembershipService {
	return &MembershipService{base: newBase(store, opts)}
}

// RoleOf returns userID's role in projectID, or a not-found error when the
// user is neither owner nor member.
func (s *MembershipService) RoleOf(ctx context.Context, projectID, userID string) (models.Role, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return "", apperrors.Store("get project", err)
	}
	role, err := s.roleOf(ctx, project, userID)
	if err != nil {
		return "", apperrors.Store("resolve role", err)
	}
	return role, nil
}

// checkGrant verifies that a manager holding actorRole may hand out role.
func checkGrant(actorRole, role models.Role) error {
	if !role.Valid() {
		return apperrors.Newf(apperrors.KindValidation, apperrors.CodeInvalidRole, "unknown role %q", role).
			WithMetadata("role", string(role))
	}
	if role == models.RoleOwner && actorRole != models.RoleOwner {
		return apperrors.New(apperrors.KindAuthorization, apperrors.CodeInsufficientRole, "only an owner may grant owner").
			WithMetadata("role", actorRole.Label())
	}
	return nil
}

// Add grants userID a role in the project. Fails with a conflict when the
// user is already a member.
func (s *MembershipService) Add(ctx context.Context, actor models.Actor, projectID, userID string, role models.Role) (*models.Membership, error) {
	project, actorRole, err := s.authorize(ctx, actor, projectID, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, apperrors.New(apperrors.KindValidation, apperrors.CodeInvalidInput, "user id is required")
	}
	if err := checkGrant(actorRole, role); err != nil {
		return nil, err
	}
	if userID == project.OwnerID {
		return nil, apperrors.New(apperrors.KindConflict, apperrors.CodeMembershipExists, "user owns the project")
	}
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return nil, apperrors.Store("get user", err)
	}
	m := &models.Membership{ProjectID: projectID, UserID: userID, Role: role, AddedAt: s.now()}
	if err := s.store.AddMember(ctx, m); err != nil {
		return nil, apperrors.Store("add member", err)
	}
	s.log.Info("member added",
		zap.String("project_id", projectID),
		zap.String("user_id", userID),
		zap.String("role", string(role)),
		zap.String("by", actor.UserID),
	)
	return m, nil
}

// Remove deletes userID's membership. Managers may remove anyone below
// owner; any member may remove themself. Removing a non-member succeeds.
func (s *MembershipService) Remove(ctx context.Context, actor models.Actor, projectID, userID string) error {
	if actor.UserID == "" {
		return apperrors.New(apperrors.KindAuthorization, apperrors.CodeUnauthenticated, "no acting user")
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return apperrors.Store("get project", err)
	}
	if userID == project.OwnerID {
		return apperrors.New(apperrors.KindAuthorization, apperrors.CodeOwnerProtected, "the project owner cannot be removed")
	}

	if userID != actor.UserID {
		_, actorRole, err := s.authorize(ctx, actor, projectID, models.RoleAdmin)
		if err != nil {
			return err
		}
		target, err := s.store.GetMember(ctx, projectID, userID)
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return nil
		}
		if err != nil {
			return apperrors.Store("get member", err)
		}
		if target.Role == models.RoleOwner && actorRole != models.RoleOwner {
			return apperrors.New(apperrors.KindAuthorization, apperrors.CodeOwnerProtected, "only an owner may remove an owner")
		}
	}

	if err := s.store.RemoveMember(ctx, projectID, userID); err != nil {
		return apperrors.Store("remove member", err)
	}
	s.log.Info("member removed",
		zap.String("project_id", projectID),
		zap.String("user_id", userID),
		zap.String("by", actor.UserID),
	)
	s.publish(ctx, events.Event{
		Type:       events.MemberRemoved,
		ProjectID:  projectID,
		ActorID:    actor.UserID,
		Attributes: map[string]string{"user_id": userID},
	})
	return nil
}

// UpdateRole overwrites the role of a membership. Only owners may grant or
// revoke owner.
func (s *MembershipService) UpdateRole(ctx context.Context, actor models.Actor, membershipID string, role models.Role) (*models.Membership, error) {
	m, err := s.store.GetMemberByID(ctx, membershipID)
	if err != nil {
		return nil, apperrors.Store("get member", err)
	}
	_, actorRole, err := s.authorize(ctx, actor, m.ProjectID, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if err := checkGrant(actorRole, role); err != nil {
		return nil, err
	}
	if m.Role == models.RoleOwner && actorRole != models.RoleOwner {
		return nil, apperrors.New(apperrors.KindAuthorization, apperrors.CodeOwnerProtected, "only an owner may revoke owner")
	}
	updated, err := s.store.UpdateMemberRole(ctx, membershipID, role)
	if err != nil {
		return nil, apperrors.Store("update member role", err)
	}
	s.log.Info("member role updated",
		zap.String("membership_id", membershipID),
		zap.String("from", string(m.Role)),
		zap.String("to", string(role)),
		zap.String("by", actor.UserID),
	)
	return updated, nil
}

// List returns the project's memberships ordered by join date. The implicit
// owner is not part of the list.
func (s *MembershipService) List(ctx context.Context, actor models.Actor, projectID string) ([]models.Membership, error) {
	if _, _, err := s.authorize(ctx, actor, projectID, models.RoleObserver); err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, projectID)
	if err != nil {
		return nil, apperrors.Store("list members", err)
	}
	return members, nil
}
