package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"collab-tracker-backend/pkg/apperrors"
	"collab-tracker-backend/pkg/database"
	"collab-tracker-backend/pkg/events"
	"collab-tracker-backend/pkg/models"
)

var (
	u1 = models.Actor{UserID: "u1", Email: "u1@example.com"}
	u2 = models.Actor{UserID: "u2", Email: "u2@example.com"}
	u3 = models.Actor{UserID: "u3", Email: "u3@example.com"}
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type testEnv struct {
	store       *database.LocalDatabase
	clock       *testClock
	events      *events.Recorder
	projects    *ProjectService
	members     *MembershipService
	invitations *InvitationService
	appConfig   *AppConfigService
	columns     *ColumnRegistry
	tasks       *TaskService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, database.NewMemoryDatabase())
}

func newTestEnvWithStore(t *testing.T, store *database.LocalDatabase) *testEnv {
	t.Helper()
	return buildEnv(t, store, store)
}

// buildEnv wires every service on db; local is the underlying memory store
// used for direct assertions.
func buildEnv(t *testing.T, db database.DatabaseInterface, local *database.LocalDatabase) *testEnv {
	t.Helper()
	clock := &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	rec := &events.Recorder{}
	opts := []Option{WithClock(clock.Now), WithPublisher(rec)}

	appConfig := NewAppConfigService(db, models.DefaultAppConfig(), opts...)
	columns := NewColumnRegistry(db, appConfig, opts...)
	env := &testEnv{
		store:       local,
		clock:       clock,
		events:      rec,
		projects:    NewProjectService(db, opts...),
		members:     NewMembershipService(db, opts...),
		invitations: NewInvitationService(db, DefaultInvitationTTL, opts...),
		appConfig:   appConfig,
		columns:     columns,
		tasks:       NewTaskService(db, columns, opts...),
	}
	for _, a := range []models.Actor{u1, u2, u3} {
		if err := local.UpsertUser(context.Background(), &models.User{ID: a.UserID, Email: a.Email}); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	return env
}

// project creates a project owned by u1.
func (e *testEnv) project(t *testing.T) *models.Project {
	t.Helper()
	p, err := e.projects.Create(context.Background(), u1, "Courrier 2024", "")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

// join makes actor a member of project with role.
func (e *testEnv) join(t *testing.T, projectID string, actor models.Actor, role models.Role) *models.Membership {
	t.Helper()
	m, err := e.members.Add(context.Background(), u1, projectID, actor.UserID, role)
	if err != nil {
		t.Fatalf("add member %s: %v", actor.UserID, err)
	}
	return m
}

func assertKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := apperrors.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}

func assertCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	if !apperrors.HasCode(err, code) {
		t.Fatalf("expected code %s, got %v", code, err)
	}
}

// flakyStore fails chosen operations with a transport error.
type flakyStore struct {
	*database.LocalDatabase
	failRedeem bool
}

var errConnReset = errors.New("read: connection reset by peer")

func (s *flakyStore) RedeemInvitation(ctx context.Context, inv *models.Invitation, m *models.Membership) error {
	if s.failRedeem {
		return errConnReset
	}
	return s.LocalDatabase.RedeemInvitation(ctx, inv, m)
}
