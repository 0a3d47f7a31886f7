package utils

import (
	"testing"
	"time"

	"collab-tracker-backend/pkg/models"

	"github.com/golang-jwt/jwt/v5"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret")
	tok, exp, err := svc.GenerateAccessToken("u1", "u1@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if exp <= time.Now().Unix() {
		t.Errorf("expiry %d is not in the future", exp)
	}
	actor, err := svc.ValidateAccessToken(tok)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if actor.UserID != "u1" || actor.Email != "u1@example.com" {
		t.Errorf("actor = %+v", actor)
	}
}

func TestValidateAccessTokenRejects(t *testing.T) {
	svc := NewJWTService("test-secret")
	sign := func(c *models.TokenClaims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
		if err != nil {
			t.Fatal(err)
		}
		return s
	}
	now := time.Now()
	valid := func() *models.TokenClaims {
		return &models.TokenClaims{UserID: "u1", Email: "u1@example.com", Type: "access", Exp: now.Add(time.Hour).Unix(), Iat: now.Unix()}
	}

	refresh := valid()
	refresh.Type = "refresh"
	expired := valid()
	expired.Exp = now.Add(-time.Hour).Unix()
	noEmail := valid()
	noEmail.Email = ""

	tests := map[string]string{
		"wrong secret": sign(valid(), "other"),
		"refresh type": sign(refresh, "test-secret"),
		"expired":      sign(expired, "test-secret"),
		"no email":     sign(noEmail, "test-secret"),
		"garbage":      "not-a-jwt",
	}
	for name, tok := range tests {
		if _, err := svc.ValidateAccessToken(tok); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestGenerateURLToken(t *testing.T) {
	tok, err := GenerateURLToken(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(tok) != 43 {
		t.Errorf("len = %d, want 43", len(tok))
	}
}
