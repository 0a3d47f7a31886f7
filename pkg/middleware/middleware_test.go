package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"collab-tracker-backend/pkg/config"
	"collab-tracker-backend/pkg/models"
	"collab-tracker-backend/pkg/ratelimit"
	"collab-tracker-backend/pkg/utils"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/api/projects/", "/api/projects"},
		{"/api/projects", "/api/projects"},
		{"/", "/"},
		{"/api/invite/abc ", "/api/invite/abc"},
	}
	for _, tt := range tests {
		var got string
		h := Normalize()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.URL.Path
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.URL.Path = tt.in
		h.ServeHTTP(httptest.NewRecorder(), req)
		if got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{Environment: "test"}
	jwtService := utils.NewJWTService("mw-secret")
	token, _, err := jwtService.GenerateAccessToken("u1", "u1@example.com")
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	var seen models.Actor
	h := AuthMiddleware(cfg, jwtService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := RequireActor(r.Context())
		if err != nil {
			t.Errorf("RequireActor: %v", err)
		}
		seen = actor
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"no bearer prefix", token, http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
		})
	}
	if seen.UserID != "u1" || seen.Email != "u1@example.com" {
		t.Fatalf("actor = %+v", seen)
	}
}

func TestRequireActorWithoutAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := RequireActor(req.Context()); err == nil {
		t.Fatal("expected error without actor")
	}
	ctx := WithActor(req.Context(), models.Actor{UserID: "u2", Email: "u2@example.com"})
	if actor, ok := GetActorFromContext(ctx); !ok || actor.UserID != "u2" {
		t.Fatalf("actor = %+v ok=%v", actor, ok)
	}
}

func TestRateLimitByIP(t *testing.T) {
	h := RateLimitByIP(ratelimit.NewMemoryLimiter(1, time.Minute), "test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send("10.0.0.1:1111"); code != http.StatusNoContent {
		t.Fatalf("first = %d", code)
	}
	if code := send("10.0.0.1:2222"); code != http.StatusTooManyRequests {
		t.Fatalf("second from same ip = %d", code)
	}
	if code := send("10.0.0.2:1111"); code != http.StatusNoContent {
		t.Fatalf("other ip = %d", code)
	}
}

func TestContentTypeJSON(t *testing.T) {
	h := ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`))
	req.Header.Set("Content-Type", "text/plain")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("empty body status = %d", rr.Code)
	}
}
