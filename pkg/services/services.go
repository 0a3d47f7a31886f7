// Package services holds the collaboration core: invitations, memberships,
// the column schema registry and the task store. Every operation receives
// the acting identity explicitly and checks its project role before writing.
package services

import (
	"context"
	"time"

	"collab-tracker-backend/pkg/apperrors"
	"collab-tracker-backend/pkg/database"
	"collab-tracker-backend/pkg/events"
	"collab-tracker-backend/pkg/logger"
	"collab-tracker-backend/pkg/metrics"
	"collab-tracker-backend/pkg/models"

	"go.uber.org/zap"
)

// Option customizes a service.
type Option func(*base)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// WithLogger sets the logger used for state transitions.
func WithLogger(l *zap.Logger) Option {
	return func(b *base) { b.log = l }
}

// WithPublisher sets the domain event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(b *base) { b.events = p }
}

// base carries the dependencies every service shares.
type base struct {
	store  database.DatabaseInterface
	now    func() time.Time
	log    *zap.Logger
	events events.Publisher
}

func newBase(store database.DatabaseInterface, opts []Option) base {
	b := base{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		log:    logger.L(),
		events: events.Noop{},
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// publish sends an event. Failures are logged and counted, never returned.
func (b *base) publish(ctx context.Context, ev events.Event) {
	ev.OccurredAt = b.now()
	if err := b.events.Publish(ctx, ev); err != nil {
		metrics.IncrementEventPublishFailure(ev.Type)
		b.log.Warn("event publish failed",
			zap.String("type", ev.Type),
			zap.String("project_id", ev.ProjectID),
			zap.Error(err),
		)
	}
}

// roleOf resolves userID's role in project. The project owner is implicit and
// has no membership row.
func (b *base) roleOf(ctx context.Context, project *models.Project, userID string) (models.Role, error) {
	if project.OwnerID == userID {
		return models.RoleOwner, nil
	}
	m, err := b.store.GetMember(ctx, project.ID, userID)
	if err != nil {
		return "", err
	}
	return m.Role, nil
}

// authorize loads the project and checks that actor holds at least min.
func (b *base) authorize(ctx context.Context, actor models.Actor, projectID string, min models.Role) (*models.Project, models.Role, error) {
	if actor.UserID == "" {
		return nil, "", apperrors.New(apperrors.KindAuthorization, apperrors.CodeUnauthenticated, "no acting user")
	}
	project, err := b.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, "", apperrors.Store("get project", err)
	}
	role, err := b.roleOf(ctx, project, actor.UserID)
	if apperrors.HasCode(err, apperrors.CodeMembershipNotFound) {
		return nil, "", apperrors.Newf(apperrors.KindAuthorization, apperrors.CodeNotProjectMember,
			"user %s is not a member of project %s", actor.UserID, projectID)
	}
	if err != nil {
		return nil, "", apperrors.Store("resolve role", err)
	}
	if !role.AtLeast(min) {
		return nil, "", apperrors.Newf(apperrors.KindAuthorization, apperrors.CodeInsufficientRole,
			"role %s of user %s is below %s", role, actor.UserID, min).
			WithMetadata("role", role.Label())
	}
	return project, role, nil
}
