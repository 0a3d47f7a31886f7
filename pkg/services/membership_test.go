package services

import (
	"context"
	"testing"

	"collab-tracker-backend/pkg/apperrors"
	"collab-tracker-backend/pkg/events"
	"collab-tracker-backend/pkg/models"
)

func TestAddDuplicateMembershipConflicts(t *testing.T) {
	env := newTestEnv(t)
	p := env.project(t)
	env.join(t, p.ID, u2, models.RoleMember)

	_, err := env.members.Add(context.Background(), u1, p.ID, u2.UserID, models.RoleAdmin)
	assertKind(t, err, apperrors.KindConflict)
	assertCode(t, err, apperrors.CodeMembershipExists)
}

func TestOnlyOwnerGrantsOwner(t *testing.T) {
	env := newTestEnv(t)
	p := env.project(t)
	env.join(t, p.ID, u2, models.RoleAdmin)
	ctx := context.Background()

	_, err := env.members.Add(ctx, u2, p.ID, u3.UserID, models.RoleOwner)
	assertKind(t, err, apperrors.KindAuthorization)

	m, err := env.members.Add(ctx, u2, p.ID, u3.UserID, models.RoleMember)
	if err != nil {
		t.Fatalf("admin Add member: %v", err)
	}
	_, err = env.members.UpdateRole(ctx, u2, m.ID, models.RoleOwner)
	assertKind(t, err, apperrors.KindAuthorization)

	updated, err := env.members.UpdateRole(ctx, u1, m.ID, models.RoleOwner)
	if err != nil {
		t.Fatalf("owner UpdateRole: %v", err)
	}
	if updated.Role != models.RoleOwner {
		t.Errorf("role = %s, want owner", updated.Role)
	}

	// An admin cannot demote a co-owner either.
	_, err = env.members.UpdateRole(ctx, u2, m.ID, models.RoleObserver)
	assertCode(t, err, apperrors.CodeOwnerProtected)
}

func TestUpdateRoleUnknownMembership(t *testing.T) {
	env := newTestEnv(t)
	env.project(t)
	_, err := env.members.UpdateRole(context.Background(), u1, "missing", models.RoleMember)
	assertKind(t, err, apperrors.KindNotFound)
}

func TestRemoveRules(t *testing.T) {
	env := newTestEnv(t)
	p := env.project(t)
	env.join(t, p.ID, u2, models.RoleMember)
	env.join(t, p.ID, u3, models.RoleObserver)
	ctx := context.Background()

	// A plain member cannot remove someone else.
	err := env.members.Remove(ctx, u2, p.ID, u3.UserID)
	assertKind(t, err, apperrors.KindAuthorization)

	// Nobody removes the project owner.
	err = env.members.Remove(ctx, u1, p.ID, u1.UserID)
	assertCode(t, err, apperrors.CodeOwnerProtected)

	// Leaving is always allowed, and idempotent.
	if err := env.members.Remove(ctx, u3, p.ID, u3.UserID); err != nil {
		t.Fatalf("self remove: %v", err)
	}
	if err := env.members.Remove(ctx, u3, p.ID, u3.UserID); err != nil {
		t.Fatalf("second self remove: %v", err)
	}

	if err := env.members.Remove(ctx, u1, p.ID, u2.UserID); err != nil {
		t.Fatalf("owner remove: %v", err)
	}
	if err := env.members.Remove(ctx, u1, p.ID, u2.UserID); err != nil {
		t.Fatalf("removing a non-member must succeed: %v", err)
	}

	members, err := env.members.List(ctx, u1, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 0 {
		t.Errorf("members = %+v, want none", members)
	}

	removed := 0
	for _, ev := range env.events.Events() {
		if ev.Type == events.MemberRemoved {
			removed++
		}
	}
	if removed == 0 {
		t.Error("expected member.removed events")
	}
}

func TestRoleOf(t *testing.T) {
	env := newTestEnv(t)
	p := env.project(t)
	env.join(t, p.ID, u2, models.RoleAdmin)
	ctx := context.Background()

	tests := []struct {
		user string
		want models.Role
		kind apperrors.Kind
	}{
		{u1.UserID, models.RoleOwner, ""},
		{u2.UserID, models.RoleAdmin, ""},
		{u3.UserID, "", apperrors.KindNotFound},
	}
	for _, tt := range tests {
		got, err := env.members.RoleOf(ctx, p.ID, tt.user)
		if tt.kind != "" {
			assertKind(t, err, tt.kind)
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("RoleOf(%s) = %s, %v; want %s", tt.user, got, err, tt.want)
		}
	}
}

func TestListMembersOrderedByJoinDate(t *testing.T) {
	env := newTestEnv(t)
	p := env.project(t)
	env.join(t, p.ID, u3, models.RoleObserver)
	env.clock.Advance(1)
	env.join(t, p.ID, u2, models.RoleMember)

	members, err := env.members.List(context.Background(), u3, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 || members[0].UserID != u3.UserID || members[1].UserID != u2.UserID {
		t.Fatalf("unexpected order: %+v", members)
	}
	if members[1].User == nil || members[1].User.Email != u2.Email {
		t.Errorf("member user not joined: %+v", members[1].User)
	}
}

func TestAddUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	p := env.project(t)

	_, err := env.members.Add(context.Background(), u1, p.ID, "ghost", models.RoleMember)
	assertKind(t, err, apperrors.KindNotFound)
	assertCode(t, err, apperrors.CodeUserNotFound)
}
