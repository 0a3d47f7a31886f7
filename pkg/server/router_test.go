package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"collab-tracker-backend/pkg/config"
	"collab-tracker-backend/pkg/database"
	"collab-tracker-backend/pkg/events"
	"collab-tracker-backend/pkg/models"
	"collab-tracker-backend/pkg/ratelimit"
	"collab-tracker-backend/pkg/utils"

	"go.uber.org/zap"
)

const testSecret = "router-test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *utils.APIError `json:"error"`
}

type testServer struct {
	handler http.Handler
	db      *database.LocalDatabase
	events  *events.Recorder
	jwt     *utils.JWTService
}

func newTestServer(t *testing.T, limiter ratelimit.Limiter) *testServer {
	t.Helper()
	return newTestServerWithPublisher(t, limiter, &events.Recorder{})
}

func newTestServerWithPublisher(t *testing.T, limiter ratelimit.Limiter, pub events.Publisher) *testServer {
	t.Helper()
	cfg := &config.Config{
		Environment:    "test",
		JWTSecret:      testSecret,
		BaseURL:        "https://tracker.example.com",
		InvitationTTL:  7 * 24 * time.Hour,
		UseLocalDB:     true,
		AllowedOrigins: []string{"*"},
	}
	db := database.NewMemoryDatabase()
	for _, u := range []models.User{
		{ID: "u1", Email: "u1@example.com"},
		{ID: "u2", Email: "u2@example.com"},
		{ID: "u3", Email: "u3@example.com"},
	} {
		u := u
		if err := db.UpsertUser(context.Background(), &u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	rec, _ := pub.(*events.Recorder)
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	h := NewRouter(cfg, Deps{
		DB:        db,
		Publisher: pub,
		Limiter:   limiter,
		AppConfig: models.DefaultAppConfig(),
		Logger:    zap.NewNop(),
	})
	return &testServer{handler: h, db: db, events: rec, jwt: utils.NewJWTService(testSecret)}
}

func (s *testServer) do(t *testing.T, method, path, userID string, body interface{}, header http.Header) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	var req *http.Request
	if reader != nil {
		req = httptest.NewRequest(method, path, reader)
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if userID != "" {
		token, _, err := s.jwt.GenerateAccessToken(userID, userID+"@example.com")
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	var env envelope
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, rr.Body.String())
		}
	}
	return rr, env
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data: %v (%s)", err, env.Data)
	}
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, env envelope, status int, code string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("status = %d, want %d (%s)", rr.Code, status, rr.Body.String())
	}
	if env.Success || env.Error == nil || env.Error.Code != code {
		t.Fatalf("error = %+v, want code %s", env.Error, code)
	}
}

func (s *testServer) createProject(t *testing.T, owner, name string) string {
	t.Helper()
	rr, env := s.do(t, http.MethodPost, "/api/projects", owner, map[string]string{"nom": name}, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create project: %d %s", rr.Code, rr.Body.String())
	}
	var out struct {
		Project models.Project `json:"project"`
	}
	decodeData(t, env, &out)
	return out.Project.ID
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, nil)
	rr, env := s.do(t, http.MethodGet, "/", "", nil, nil)
	if rr.Code != http.StatusOK || !env.Success {
		t.Fatalf("health: %d %s", rr.Code, rr.Body.String())
	}
	var out map[string]interface{}
	decodeData(t, env, &out)
	if out["database"] != "local" || out["db_status"] != "healthy" {
		t.Fatalf("health payload = %v", out)
	}
	if out["mq_status"] != "disabled" {
		t.Fatalf("mq_status = %v, want disabled", out["mq_status"])
	}
}

// brokerDown 模拟断开的消息队列连接
type brokerDown struct{ events.Noop }

func (brokerDown) IsConnected() bool { return false }

func TestHealthCheckReportsBrokerDown(t *testing.T) {
	s := newTestServerWithPublisher(t, nil, brokerDown{})
	rr, env := s.do(t, http.MethodGet, "/", "", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("health: %d %s", rr.Code, rr.Body.String())
	}
	var out map[string]interface{}
	decodeData(t, env, &out)
	if out["mq_status"] != "disconnected" {
		t.Fatalf("mq_status = %v, want disconnected", out["mq_status"])
	}
}

func TestAuthenticationRequired(t *testing.T) {
	s := newTestServer(t, nil)

	rr, env := s.do(t, http.MethodGet, "/api/projects", "", nil, nil)
	expectError(t, rr, env, http.StatusUnauthorized, "UNAUTHENTICATED")

	rr, env = s.do(t, http.MethodGet, "/api/projects", "", nil, http.Header{"Authorization": {"Bearer not-a-jwt"}})
	expectError(t, rr, env, http.StatusUnauthorized, "UNAUTHENTICATED")
}

func TestPublicAppConfig(t *testing.T) {
	s := newTestServer(t, nil)
	rr, env := s.do(t, http.MethodGet, "/api/config", "", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("config: %d", rr.Code)
	}
	var out struct {
		Config models.AppConfig `json:"config"`
	}
	decodeData(t, env, &out)
	if out.Config.OrganizationShort != "FEG" || len(out.Config.DefaultColumns) != 11 {
		t.Fatalf("config = %+v", out.Config)
	}
}

func TestInvitationFlowOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	projectID := s.createProject(t, "u1", "Alpha")

	rr, env := s.do(t, http.MethodPost, "/api/projects/"+projectID+"/invitations", "u1",
		map[string]string{"email": " U2@Example.com ", "role": "Membre"}, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("send: %d %s", rr.Code, rr.Body.String())
	}
	var sent struct {
		Invitation struct {
			models.Invitation
			InviteURL string `json:"invite_url"`
		} `json:"invitation"`
	}
	decodeData(t, env, &sent)
	inv := sent.Invitation
	if inv.Email != "u2@example.com" || inv.Role != models.RoleMember || inv.Token == "" {
		t.Fatalf("invitation = %+v", inv.Invitation)
	}
	if inv.InviteURL != "https://tracker.example.com/invite/"+inv.Token {
		t.Fatalf("invite_url = %q", inv.InviteURL)
	}

	// 公开预览不暴露邮箱和令牌
	rr, env = s.do(t, http.MethodGet, "/api/invite/"+inv.Token, "", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("preview: %d %s", rr.Code, rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), "u2@example.com") || strings.Contains(rr.Body.String(), inv.Token) {
		t.Fatalf("preview leaks invitation details: %s", rr.Body.String())
	}
	var preview struct {
		Invitation models.InvitationPreview `json:"invitation"`
	}
	decodeData(t, env, &preview)
	if preview.Invitation.ProjectName != "Alpha" || preview.Invitation.Status != models.InvitationPending {
		t.Fatalf("preview = %+v", preview.Invitation)
	}

	rr, env = s.do(t, http.MethodPost, "/api/invitations/accept", "u3", map[string]string{"token": inv.Token}, nil)
	expectError(t, rr, env, http.StatusForbidden, "INVITATION_EMAIL_MISMATCH")

	rr, env = s.do(t, http.MethodPost, "/api/invitations/accept", "u2", map[string]string{"token": inv.Token}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("accept: %d %s", rr.Code, rr.Body.String())
	}
	var accepted struct {
		Member models.Membership `json:"member"`
	}
	decodeData(t, env, &accepted)
	if accepted.Member.UserID != "u2" || accepted.Member.Role != models.RoleMember {
		t.Fatalf("member = %+v", accepted.Member)
	}

	// 令牌只能使用一次
	rr, env = s.do(t, http.MethodPost, "/api/invitations/accept", "u2", map[string]string{"token": inv.Token}, nil)
	expectError(t, rr, env, http.StatusNotFound, "INVITATION_NOT_FOUND")

	rr, env = s.do(t, http.MethodGet, "/api/projects", "u2", nil, nil)
	var listed struct {
		Count int `json:"count"`
	}
	decodeData(t, env, &listed)
	if rr.Code != http.StatusOK || listed.Count != 1 {
		t.Fatalf("u2 projects: %d count=%d", rr.Code, listed.Count)
	}

	rr, env = s.do(t, http.MethodGet, "/api/projects/"+projectID+"/members", "u2", nil, nil)
	var members struct {
		Members []models.Membership `json:"members"`
	}
	decodeData(t, env, &members)
	if rr.Code != http.StatusOK || len(members.Members) != 1 || members.Members[0].UserID != "u2" {
		t.Fatalf("members: %d %s", rr.Code, rr.Body.String())
	}

	var types []string
	for _, ev := range s.events.Events() {
		types = append(types, ev.Type)
	}
	if strings.Join(types, ",") != events.InvitationCreated+","+events.InvitationAccepted {
		t.Fatalf("events = %v", types)
	}
}

func TestSendInvitationRejectsOwnerRole(t *testing.T) {
	s := newTestServer(t, nil)
	projectID := s.createProject(t, "u1", "Alpha")

	rr, env := s.do(t, http.MethodPost, "/api/projects/"+projectID+"/invitations", "u1",
		map[string]string{"email": "u2@example.com", "role": "owner"}, nil)
	expectError(t, rr, env, http.StatusBadRequest, "CANNOT_INVITE_OWNER")

	rr, env = s.do(t, http.MethodPost, "/api/projects/"+projectID+"/invitations", "u1",
		map[string]string{"email": "u2@example.com", "role": "superuser"}, nil)
	expectError(t, rr, env, http.StatusBadRequest, "INVALID_ROLE")
}

func TestTaskCellVersionConflictOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	projectID := s.createProject(t, "u1", "Alpha")

	rr, env := s.do(t, http.MethodPost, "/api/projects/"+projectID+"/tasks", "u1", nil, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create task: %d %s", rr.Code, rr.Body.String())
	}
	var created struct {
		Task models.Task `json:"task"`
	}
	decodeData(t, env, &created)
	if created.Task.Version != 1 || len(created.Task.Data) != 11 {
		t.Fatalf("task = %+v", created.Task)
	}

	cellPath := "/api/tasks/" + created.Task.ID + "/cells/subject"
	rr, env = s.do(t, http.MethodPatch, cellPath, "u1", map[string]interface{}{"value": "Budget 2024", "version": 1}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rr.Code, rr.Body.String())
	}
	var updated struct {
		Task models.Task `json:"task"`
	}
	decodeData(t, env, &updated)
	if updated.Task.Version != 2 || updated.Task.Data["subject"] != "Budget 2024" {
		t.Fatalf("updated = %+v", updated.Task)
	}

	rr, env = s.do(t, http.MethodPatch, cellPath, "u1", map[string]interface{}{"value": "stale", "version": 1}, nil)
	expectError(t, rr, env, http.StatusConflict, "TASK_VERSION_CONFLICT")

	rr, env = s.do(t, http.MethodPatch, "/api/tasks/"+created.Task.ID+"/cells/deadline", "u1",
		map[string]interface{}{"value": "next week", "version": 2}, nil)
	expectError(t, rr, env, http.StatusBadRequest, "INVALID_CELL_VALUE")

	rr, env = s.do(t, http.MethodGet, "/api/tasks/"+created.Task.ID, "u3", nil, nil)
	expectError(t, rr, env, http.StatusForbidden, "NOT_PROJECT_MEMBER")
}

func TestColumnsOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	projectID := s.createProject(t, "u1", "Alpha")

	rr, env := s.do(t, http.MethodPost, "/api/projects/"+projectID+"/columns", "u1",
		map[string]interface{}{"id": "priority", "name": "Priorité", "type": "select", "options": []string{"haute", "basse"}}, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add column: %d %s", rr.Code, rr.Body.String())
	}
	var added struct {
		Column models.Column `json:"column"`
	}
	decodeData(t, env, &added)
	if !added.Column.Visible || added.Column.Position != 11 {
		t.Fatalf("column = %+v", added.Column)
	}

	rr, env = s.do(t, http.MethodPatch, "/api/projects/"+projectID+"/columns/priority", "u1",
		map[string]interface{}{"visible": false}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("update column: %d %s", rr.Code, rr.Body.String())
	}

	rr, env = s.do(t, http.MethodGet, "/api/projects/"+projectID+"/columns?visible=true", "u1", nil, nil)
	var listed struct {
		Count int `json:"count"`
	}
	decodeData(t, env, &listed)
	if rr.Code != http.StatusOK || listed.Count != 11 {
		t.Fatalf("visible columns: %d count=%d", rr.Code, listed.Count)
	}
}

func TestErrorMessagesFollowAcceptLanguage(t *testing.T) {
	s := newTestServer(t, nil)

	rr, env := s.do(t, http.MethodPost, "/api/projects", "u1", map[string]string{"nom": " "}, http.Header{"Accept-Language": {"en-US,en;q=0.9"}})
	expectError(t, rr, env, http.StatusBadRequest, "PROJECT_NAME_REQUIRED")
	if rr.Header().Get("Content-Language") != "en" || env.Error.Message != "A project name is required." {
		t.Fatalf("en message = %q (%s)", env.Error.Message, rr.Header().Get("Content-Language"))
	}

	rr, env = s.do(t, http.MethodPost, "/api/projects", "u1", map[string]string{"nom": " "}, nil)
	expectError(t, rr, env, http.StatusBadRequest, "PROJECT_NAME_REQUIRED")
	if rr.Header().Get("Content-Language") != "fr" || env.Error.Message != "Le nom du projet est obligatoire." {
		t.Fatalf("fr message = %q", env.Error.Message)
	}
}

func TestInvitePreviewIsRateLimited(t *testing.T) {
	s := newTestServer(t, ratelimit.NewMemoryLimiter(2, time.Minute))

	for i := 0; i < 2; i++ {
		rr, env := s.do(t, http.MethodGet, "/api/invite/unknown-token", "", nil, nil)
		expectError(t, rr, env, http.StatusNotFound, "INVITATION_NOT_FOUND")
	}
	rr, env := s.do(t, http.MethodGet, "/api/invite/unknown-token", "", nil, nil)
	expectError(t, rr, env, http.StatusTooManyRequests, "RATE_LIMITED")
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
}

func TestUnknownRouteAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	rr, env := s.do(t, http.MethodGet, "/api/nope", "u1", nil, nil)
	expectError(t, rr, env, http.StatusNotFound, "NOT_FOUND")

	rr, _ = s.do(t, http.MethodGet, "/metrics", "", nil, nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "http_request_duration_seconds") {
		t.Fatalf("metrics: %d", rr.Code)
	}
}
