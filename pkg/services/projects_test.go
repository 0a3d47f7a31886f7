package services

import (
	"context"
	"testing"

	"collab-tracker-backend/pkg/apperrors"
	"collab-tracker-backend/pkg/models"
)

func TestCreateProject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.projects.Create(ctx, u1, "   ", "")
	assertKind(t, err, apperrors.KindValidation)
	assertCode(t, err, apperrors.CodeProjectNameRequired)

	_, err = env.projects.Create(ctx, models.Actor{}, "P", "")
	assertKind(t, err, apperrors.KindAuthorization)

	p, err := env.projects.Create(ctx, u1, " Courrier ", "arrivées")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Courrier" || p.Status != models.DefaultProjectStatus || p.OwnerID != u1.UserID {
		t.Errorf("unexpected project %+v", p)
	}
}

func TestListMineIncludesMemberships(t *testing.T) {
	env := newTestEnv(t)
	p := env.project(t)
	env.join(t, p.ID, u2, models.RoleMember)
	ctx := context.Background()

	mine, err := env.projects.ListMine(ctx, u2)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 || mine[0].ID != p.ID || mine[0].Role != models.RoleMember {
		t.Fatalf("ListMine = %+v", mine)
	}

	none, err := env.projects.ListMine(ctx, u3)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("u3 sees %d projects", len(none))
	}
}

func TestUpdateProject(t *testing.T) {
	env := newTestEnv(t)
	p := env.project(t)
	env.join(t, p.ID, u2, models.RoleMember)
	ctx := context.Background()

	status := "Terminé"
	budget := 1500.0
	_, err := env.projects.Update(ctx, u2, p.ID, models.ProjectPatch{Status: &status})
	assertKind(t, err, apperrors.KindAuthorization)

	updated, err := env.projects.Update(ctx, u1, p.ID, models.ProjectPatch{Status: &status, Budget: &budget})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != status || updated.Budget == nil || *updated.Budget != budget || updated.Name != p.Name {
		t.Errorf("unexpected project %+v", updated)
	}

	empty := ""
	_, err = env.projects.Update(ctx, u1, p.ID, models.ProjectPatch{Name: &empty})
	assertKind(t, err, apperrors.KindValidation)

	_, err = env.projects.Get(ctx, u1, "missing")
	assertKind(t, err, apperrors.KindNotFound)
}

func TestAppConfigLoad(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cfg := env.appConfig.Load(ctx)
	if cfg.AppName != "Tableau de Bord FEG" || len(cfg.DefaultColumns) != 11 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}

	if err := env.store.SetAppConfig(ctx, KeyAppName, []byte(`"Suivi Courrier"`)); err != nil {
		t.Fatal(err)
	}
	if err := env.store.SetAppConfig(ctx, KeyLogoURL, []byte(`{not json`)); err != nil {
		t.Fatal(err)
	}
	cfg = env.appConfig.Load(ctx)
	if cfg.AppName != "Suivi Courrier" {
		t.Errorf("app_name = %q", cfg.AppName)
	}
	if cfg.LogoURL != "/images/logo-feg.png" {
		t.Errorf("bad value should fall back, got %q", cfg.LogoURL)
	}
}
