package database

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"collab-tracker-backend/pkg/apperrors"
	"collab-tracker-backend/pkg/models"
)

func pendingInvitation(projectID, email, token string) *models.Invitation {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return &models.Invitation{
		ProjectID: projectID,
		Email:     email,
		Role:      models.RoleMember,
		Token:     token,
		Status:    models.InvitationPending,
		CreatedAt: now,
		ExpiresAt: now.Add(7 * 24 * time.Hour),
	}
}

func TestLocalMembershipUniqueness(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDatabase()

	if err := db.AddMember(ctx, &models.Membership{ProjectID: "p1", UserID: "u2", Role: models.RoleMember}); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	err := db.AddMember(ctx, &models.Membership{ProjectID: "p1", UserID: "u2", Role: models.RoleAdmin})
	if !apperrors.HasCode(err, apperrors.CodeMembershipExists) {
		t.Fatalf("duplicate AddMember err = %v", err)
	}
	// 同一用户加入其他项目不冲突
	if err := db.AddMember(ctx, &models.Membership{ProjectID: "p2", UserID: "u2", Role: models.RoleMember}); err != nil {
		t.Fatalf("AddMember other project: %v", err)
	}
}

func TestLocalInvitationTokenUniqueness(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDatabase()

	if err := db.CreateInvitation(ctx, pendingInvitation("p1", "a@example.com", "tok")); err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}
	err := db.CreateInvitation(ctx, pendingInvitation("p2", "b@example.com", "tok"))
	if !apperrors.HasCode(err, apperrors.CodeTokenCollision) {
		t.Fatalf("duplicate token err = %v", err)
	}
}

func TestLocalRedeemInvitation(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDatabase()
	inv := pendingInvitation("p1", "u2@example.com", "tok")
	if err := db.CreateInvitation(ctx, inv); err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}

	m := &models.Membership{ProjectID: "p1", UserID: "u2", Role: inv.Role}
	if err := db.RedeemInvitation(ctx, inv, m); err != nil {
		t.Fatalf("RedeemInvitation: %v", err)
	}
	if m.ID == "" || inv.Status != models.InvitationAccepted {
		t.Fatalf("membership = %+v, invitation status = %s", m, inv.Status)
	}
	if _, err := db.GetPendingInvitationByToken(ctx, "tok"); apperrors.KindOf(err) != apperrors.KindNotFound {
		t.Fatalf("token still redeemable: %v", err)
	}

	// 第二次兑换不写入任何数据
	again := &models.Membership{ProjectID: "p1", UserID: "u9", Role: inv.Role}
	if err := db.RedeemInvitation(ctx, inv, again); apperrors.KindOf(err) != apperrors.KindNotFound {
		t.Fatalf("second redeem err = %v", err)
	}
	if _, err := db.GetMember(ctx, "p1", "u9"); apperrors.KindOf(err) != apperrors.KindNotFound {
		t.Fatalf("second redeem wrote a membership: %v", err)
	}
}

func TestLocalRedeemKeepsPendingOnExistingMembership(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDatabase()
	inv := pendingInvitation("p1", "u2@example.com", "tok")
	if err := db.CreateInvitation(ctx, inv); err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}
	if err := db.AddMember(ctx, &models.Membership{ProjectID: "p1", UserID: "u2", Role: models.RoleObserver}); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	err := db.RedeemInvitation(ctx, inv, &models.Membership{ProjectID: "p1", UserID: "u2", Role: inv.Role})
	if !apperrors.HasCode(err, apperrors.CodeMembershipExists) {
		t.Fatalf("err = %v", err)
	}
	stored, err := db.GetInvitationByID(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvitationByID: %v", err)
	}
	if stored.Status != models.InvitationPending {
		t.Fatalf("status = %s, want pending", stored.Status)
	}
}

func TestLocalTransitionInvitation(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDatabase()
	inv := pendingInvitation("p1", "u2@example.com", "tok")
	if err := db.CreateInvitation(ctx, inv); err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}

	changed, err := db.TransitionInvitation(ctx, inv.ID, models.InvitationPending, models.InvitationCancelled)
	if err != nil || !changed {
		t.Fatalf("first transition changed=%v err=%v", changed, err)
	}
	changed, err = db.TransitionInvitation(ctx, inv.ID, models.InvitationPending, models.InvitationCancelled)
	if err != nil || changed {
		t.Fatalf("second transition changed=%v err=%v", changed, err)
	}
	if _, err := db.TransitionInvitation(ctx, "missing", models.InvitationPending, models.InvitationCancelled); apperrors.KindOf(err) != apperrors.KindNotFound {
		t.Fatalf("unknown id err = %v", err)
	}
}

func TestLocalTaskVersioning(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDatabase()
	task := &models.Task{ProjectID: "p1", Data: models.TaskData{"subject": ""}, CreatedBy: "u1"}
	if err := db.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.Version != 1 {
		t.Fatalf("version = %d, want 1", task.Version)
	}

	now := time.Now().UTC()
	updated, err := db.UpdateTaskData(ctx, task.ID, models.TaskData{"subject": "A"}, 1, now)
	if err != nil {
		t.Fatalf("UpdateTaskData: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("version = %d, want 2", updated.Version)
	}
	_, err = db.UpdateTaskData(ctx, task.ID, models.TaskData{"subject": "B"}, 1, now)
	if !apperrors.HasCode(err, apperrors.CodeTaskVersionConflict) {
		t.Fatalf("stale write err = %v", err)
	}
}

func TestLocalColumnSchemaVersioning(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDatabase()

	schema := &models.ColumnSchema{ProjectID: "p1", Columns: models.DefaultColumns()}
	if err := db.SaveColumnSchema(ctx, schema, 0); err != nil {
		t.Fatalf("SaveColumnSchema: %v", err)
	}
	if schema.Version != 1 {
		t.Fatalf("version = %d", schema.Version)
	}
	err := db.SaveColumnSchema(ctx, &models.ColumnSchema{ProjectID: "p1", Columns: models.DefaultColumns()}, 0)
	if !apperrors.HasCode(err, apperrors.CodeSchemaVersionConflict) {
		t.Fatalf("second create err = %v", err)
	}

	// 返回的副本不影响存储
	got, err := db.GetColumnSchema(ctx, "p1")
	if err != nil {
		t.Fatalf("GetColumnSchema: %v", err)
	}
	got.Columns[0].Name = "changed"
	again, _ := db.GetColumnSchema(ctx, "p1")
	if again.Columns[0].Name == "changed" {
		t.Fatal("GetColumnSchema returned shared storage")
	}
}

func TestLocalDatabasePersistsState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db, err := NewLocalDatabase(dir)
	if err != nil {
		t.Fatalf("NewLocalDatabase: %v", err)
	}
	if err := db.SetAppConfig(ctx, "app_name", json.RawMessage(`"Suivi"`)); err != nil {
		t.Fatalf("SetAppConfig: %v", err)
	}
	if err := db.AddMember(ctx, &models.Membership{ProjectID: "p1", UserID: "u2", Role: models.RoleMember}); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewLocalDatabase(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	cfg, err := reopened.ListAppConfig(ctx)
	if err != nil || string(cfg["app_name"]) != `"Suivi"` {
		t.Fatalf("app config = %v err=%v", cfg, err)
	}
	if _, err := reopened.GetMember(ctx, "p1", "u2"); err != nil {
		t.Fatalf("membership lost: %v", err)
	}
}

func TestLocalFailedWriteRollsBack(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data")

	db, err := NewLocalDatabase(dir)
	if err != nil {
		t.Fatalf("NewLocalDatabase: %v", err)
	}
	inv := pendingInvitation("p1", "u2@example.com", "tok")
	if err := db.CreateInvitation(ctx, inv); err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}

	// 用普通文件替换数据目录，后续写入全部失败
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dir, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := &models.Membership{ProjectID: "p1", UserID: "u2", Role: inv.Role}
	if err := db.RedeemInvitation(ctx, inv, m); err == nil {
		t.Fatal("RedeemInvitation succeeded with an unwritable data directory")
	}
	if inv.Status != models.InvitationPending {
		t.Fatalf("caller copy status = %s, want pending", inv.Status)
	}
	if _, err := db.GetPendingInvitationByToken(ctx, "tok"); err != nil {
		t.Fatalf("invitation no longer pending after failed redeem: %v", err)
	}
	if _, err := db.GetMember(ctx, "p1", "u2"); apperrors.KindOf(err) != apperrors.KindNotFound {
		t.Fatalf("failed redeem left a membership: %v", err)
	}

	if err := db.SetAppConfig(ctx, "app_name", json.RawMessage(`"X"`)); err == nil {
		t.Fatal("SetAppConfig succeeded with an unwritable data directory")
	}
	cfg, _ := db.ListAppConfig(ctx)
	if _, ok := cfg["app_name"]; ok {
		t.Fatal("failed SetAppConfig is visible")
	}
}
