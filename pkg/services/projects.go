package services

import (
	"context"
	"strings"

	"collab-tracker-backend/pkg/apperrors"
	"collab-tracker-backend/pkg/database"
	"collab-tracker-backend/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProjectView is a project together with the caller's role in it.
type ProjectView struct {
	models.Project
	Role models.Role `json:"role"`
}

// ProjectService manages projects. The creator becomes the implicit owner.
type ProjectService struct {
	base
}

func NewProjectService(store database.DatabaseInterface, opts ...Option) *ProjectService {
	return &ProjectService{base: newBase(store, opts)}
}

// Create creates a project owned by actor with the default status.
func (s *ProjectService) Create(ctx context.Context, actor models.Actor, name, description string) (*models.Project, error) {
	if actor.UserID == "" {
		return nil, apperrors.New(apperrors.KindAuthorization, apperrors.CodeUnauthenticated, "no acting user")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.New(apperrors.KindValidation, apperrors.CodeProjectNameRequired, "project name is required")
	}
	now := s.now()
	p := &models.Project{
		ID:          uuid.New().String(),
		Name:        name,
		Description: strings.TrimSpace(description),
		Status:      models.DefaultProjectStatus,
		OwnerID:     actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, apperrors.Store("create project", err)
	}
	s.log.Info("project created", zap.String("project_id", p.ID), zap.String("owner_id", actor.UserID))
	return p, nil
}

// Get returns a project the actor can read.
func (s *ProjectService) Get(ctx context.Context, actor models.Actor, projectID string) (*ProjectView, error) {
	p, role, err := s.authorize(ctx, actor, projectID, models.RoleObserver)
	if err != nil {
		return nil, err
	}
	return &ProjectView{Project: *p, Role: role}, nil
}

// ListMine returns the projects actor owns or belongs to, newest first.
func (s *ProjectService) ListMine(ctx context.Context, actor models.Actor) ([]ProjectView, error) {
	if actor.UserID == "" {
		return nil, apperrors.New(apperrors.KindAuthorization, apperrors.CodeUnauthenticated, "no acting user")
	}
	projects, err := s.store.ListProjectsForUser(ctx, actor.UserID)
	if err != nil {
		return nil, apperrors.Store("list projects", err)
	}
	out := make([]ProjectView, 0, len(projects))
	for i := range projects {
		role, err := s.roleOf(ctx, &projects[i], actor.UserID)
		if err != nil {
			// Membership removed between the two reads.
			if apperrors.KindOf(err) == apperrors.KindNotFound {
				continue
			}
			return nil, apperrors.Store("resolve role", err)
		}
		out = append(out, ProjectView{Project: projects[i], Role: role})
	}
	return out, nil
}

// Update applies patch. Owners and admins only.
func (s *ProjectService) Update(ctx context.Context, actor models.Actor, projectID string, patch models.ProjectPatch) (*models.Project, error) {
	p, _, err := s.authorize(ctx, actor, projectID, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, apperrors.New(apperrors.KindValidation, apperrors.CodeProjectNameRequired, "project name is required")
	}
	patch.Apply(p)
	p.Name = strings.TrimSpace(p.Name)
	p.UpdatedAt = s.now()
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, apperrors.Store("update project", err)
	}
	return p, nil
}
