package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"collab-tracker-backend/pkg/apperrors"
	"collab-tracker-backend/pkg/models"

	"github.com/google/uuid"
)

const localStateFile = "state.json"

// localState is the whole dataset of a LocalDatabase. Seq records insertion
// order so that equal timestamps still sort deterministically.
type localState struct {
	Users       map[string]models.User         `json:"users"`
	Projects    map[string]models.Project      `json:"projects"`
	Members     map[string]models.Membership   `json:"members"`
	Invitations map[string]models.Invitation   `json:"invitations"`
	Tasks       map[string]models.Task         `json:"tasks"`
	Schemas     map[string]models.ColumnSchema `json:"schemas"`
	AppConfig   map[string]json.RawMessage     `json:"app_config"`
	Seq         map[string]int64               `json:"seq"`
	NextSeq     int64                          `json:"next_seq"`
}

func newLocalState() localState {
	return localState{
		Users:       map[string]models.User{},
		Projects:    map[string]models.Project{},
		Members:     map[string]models.Membership{},
		Invitations: map[string]models.Invitation{},
		Tasks:       map[string]models.Task{},
		Schemas:     map[string]models.ColumnSchema{},
		AppConfig:   map[string]json.RawMessage{},
		Seq:         map[string]int64{},
	}
}

// LocalDatabase 本地数据库实现
//
// Everything lives in memory behind one mutex, which gives the same
// uniqueness and atomicity guarantees as the Postgres constraints. When a
// data directory is configured the state is written to a JSON file after
// every mutation and reloaded on start.
type LocalDatabase struct {
	dataDir string
	mu      sync.RWMutex
	state   localState
	// saved is the last state written to disk; a failed write restores it.
	saved []byte
}

// NewMemoryDatabase returns a LocalDatabase that never touches the disk.
func NewMemoryDatabase() *LocalDatabase {
	return &LocalDatabase{state: newLocalState()}
}

// NewLocalDatabase 创建本地数据库实例
func NewLocalDatabase(dataDir string) (*LocalDatabase, error) {
	db := NewMemoryDatabase()
	if dataDir == "" {
		return db, nil
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	db.dataDir = dataDir

	raw, err := os.ReadFile(filepath.Join(dataDir, localStateFile))
	if os.IsNotExist(err) {
		db.saved, err = json.Marshal(db.state)
		if err != nil {
			return nil, fmt.Errorf("encode local state: %w", err)
		}
		return db, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read local state: %w", err)
	}
	st := newLocalState()
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode local state: %w", err)
	}
	db.state = st
	db.saved = raw
	return db, nil
}

// persist writes the state file. Callers hold the write lock. A failed
// write rolls the in-memory state back to the last saved copy so callers
// never observe a change they were told failed.
func (db *LocalDatabase) persist() error {
	if db.dataDir == "" {
		return nil
	}
	raw, err := json.Marshal(db.state)
	if err != nil {
		db.rollback()
		return fmt.Errorf("encode local state: %w", err)
	}
	if err := writeStateFile(db.dataDir, raw); err != nil {
		db.rollback()
		return err
	}
	db.saved = raw
	return nil
}

func (db *LocalDatabase) rollback() {
	st := newLocalState()
	if err := json.Unmarshal(db.saved, &st); err != nil {
		return
	}
	db.state = st
}

func writeStateFile(dir string, raw []byte) error {
	tmp := filepath.Join(dir, localStateFile+".tmp")
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write local state: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, localStateFile)); err != nil {
		return fmt.Errorf("write local state: %w", err)
	}
	return nil
}

func (db *LocalDatabase) nextSeq(id string) {
	db.state.NextSeq++
	db.state.Seq[id] = db.state.NextSeq
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

// ==== users ====

func (db *LocalDatabase) UpsertUser(ctx context.Context, user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	user.ID = newID(user.ID)
	user.Email = models.NormalizeEmail(user.Email)
	if prev, ok := db.state.Users[user.ID]; ok {
		user.CreatedAt = prev.CreatedAt
		if user.FullName == "" {
			user.FullName = prev.FullName
		}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	db.state.Users[user.ID] = *user
	return db.persist()
}

func (db *LocalDatabase) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	u, ok := db.state.Users[id]
	if !ok {
		return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeUserNotFound, "user not found")
	}
	return &u, nil
}

func (db *LocalDatabase) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	email = models.NormalizeEmail(email)
	for _, u := range db.state.Users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeUserNotFound, "user not found")
}

// ==== projects ====

func (db *LocalDatabase) CreateProject(ctx context.Context, p *models.Project) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	p.ID = newID(p.ID)
	if _, exists := db.state.Projects[p.ID]; exists {
		return apperrors.New(apperrors.KindConflict, apperrors.CodeDuplicate, "project already exists")
	}
	db.state.Projects[p.ID] = *p
	db.nextSeq(p.ID)
	return db.persist()
}

func (db *LocalDatabase) GetProject(ctx context.Context, id string) (*models.Project, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	p, ok := db.state.Projects[id]
	if !ok {
		return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeProjectNotFound, "project not found")
	}
	return &p, nil
}

func (db *LocalDatabase) UpdateProject(ctx context.Context, p *models.Project) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.state.Projects[p.ID]; !ok {
		return apperrors.New(apperrors.KindNotFound, apperrors.CodeProjectNotFound, "project not found")
	}
	db.state.Projects[p.ID] = *p
	return db.persist()
}

func (db *LocalDatabase) ListProjectsForUser(ctx context.Context, userID string) ([]models.Project, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	memberOf := map[string]bool{}
	for _, m := range db.state.Members {
		if m.UserID == userID {
			memberOf[m.ProjectID] = true
		}
	}
	var out []models.Project
	for _, p := range db.state.Projects {
		if p.OwnerID == userID || memberOf[p.ID] {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return db.newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

// newerFirst orders by timestamp descending, then by insertion descending.
func (db *LocalDatabase) newerFirst(a, b time.Time, aID, bID string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return db.state.Seq[aID] > db.state.Seq[bID]
}

// ==== memberships ====

func (db *LocalDatabase) findMember(projectID, userID string) (models.Membership, bool) {
	for _, m := range db.state.Members {
		if m.ProjectID == projectID && m.UserID == userID {
			return m, true
		}
	}
	return models.Membership{}, false
}

func (db *LocalDatabase) insertMember(m *models.Membership) error {
	if _, exists := db.findMember(m.ProjectID, m.UserID); exists {
		return apperrors.New(apperrors.KindConflict, apperrors.CodeMembershipExists, "membership already exists")
	}
	m.ID = newID(m.ID)
	if m.AddedAt.IsZero() {
		m.AddedAt = time.Now().UTC()
	}
	stored := *m
	stored.User = nil
	db.state.Members[m.ID] = stored
	db.nextSeq(m.ID)
	return nil
}

func (db *LocalDatabase) AddMember(ctx context.Context, m *models.Membership) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.insertMember(m); err != nil {
		return err
	}
	return db.persist()
}

func (db *LocalDatabase) withUser(m models.Membership) models.Membership {
	if u, ok := db.state.Users[m.UserID]; ok {
		m.User = &u
	}
	return m
}

func (db *LocalDatabase) GetMember(ctx context.Context, projectID, userID string) (*models.Membership, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	m, ok := db.findMember(projectID, userID)
	if !ok {
		return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeMembershipNotFound, "membership not found")
	}
	m = db.withUser(m)
	return &m, nil
}

func (db *LocalDatabase) GetMemberByID(ctx context.Context, id string) (*models.Membership, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	m, ok := db.state.Members[id]
	if !ok {
		return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeMembershipNotFound, "membership not found")
	}
	m = db.withUser(m)
	return &m, nil
}

func (db *LocalDatabase) ListMembers(ctx context.Context, projectID string) ([]models.Membership, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var out []models.Membership
	for _, m := range db.state.Members {
		if m.ProjectID == projectID {
			out = append(out, db.withUser(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.Before(out[j].AddedAt)
		}
		return db.state.Seq[out[i].ID] < db.state.Seq[out[j].ID]
	})
	return out, nil
}

func (db *LocalDatabase) UpdateMemberRole(ctx context.Context, id string, role models.Role) (*models.Membership, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	m, ok := db.state.Members[id]
	if !ok {
		return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeMembershipNotFound, "membership not found")
	}
	m.Role = role
	db.state.Members[id] = m
	if err := db.persist(); err != nil {
		return nil, err
	}
	m = db.withUser(m)
	return &m, nil
}

func (db *LocalDatabase) RemoveMember(ctx context.Context, projectID, userID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	m, ok := db.findMember(projectID, userID)
	if !ok {
		return nil
	}
	delete(db.state.Members, m.ID)
	delete(db.state.Seq, m.ID)
	return db.persist()
}

// ==== invitations ====

func (db *LocalDatabase) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, existing := range db.state.Invitations {
		if existing.Token == inv.Token {
			return apperrors.New(apperrors.KindConflict, apperrors.CodeTokenCollision, "invitation token already in use")
		}
	}
	inv.ID = newID(inv.ID)
	db.state.Invitations[inv.ID] = *inv
	db.nextSeq(inv.ID)
	return db.persist()
}

func (db *LocalDatabase) GetInvitationByID(ctx context.Context, id string) (*models.Invitation, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	inv, ok := db.state.Invitations[id]
	if !ok {
		return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeInvitationNotFound, "invitation not found")
	}
	return &inv, nil
}

func (db *LocalDatabase) GetPendingInvitationByToken(ctx context.Context, token string) (*models.Invitation, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, inv := range db.state.Invitations {
		if inv.Token == token && inv.Status == models.InvitationPending {
			inv := inv
			return &inv, nil
		}
	}
	return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeInvitationNotFound, "pending invitation not found")
}

func (db *LocalDatabase) listInvitations(keep func(models.Invitation) bool) []models.Invitation {
	var out []models.Invitation
	for _, inv := range db.state.Invitations {
		if keep(inv) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return db.newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out
}

func (db *LocalDatabase) ListInvitationsByProject(ctx context.Context, projectID string) ([]models.Invitation, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.listInvitations(func(inv models.Invitation) bool { return inv.ProjectID == projectID }), nil
}

func (db *LocalDatabase) ListInvitationsByEmail(ctx context.Context, email string) ([]models.Invitation, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	email = models.NormalizeEmail(email)
	return db.listInvitations(func(inv models.Invitation) bool { return inv.Email == email }), nil
}

func (db *LocalDatabase) TransitionInvitation(ctx context.Context, id string, from, to models.InvitationStatus) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	inv, ok := db.state.Invitations[id]
	if !ok {
		return false, apperrors.New(apperrors.KindNotFound, apperrors.CodeInvitationNotFound, "invitation not found")
	}
	if inv.Status != from {
		return false, nil
	}
	inv.Status = to
	db.state.Invitations[id] = inv
	return true, db.persist()
}

func (db *LocalDatabase) RedeemInvitation(ctx context.Context, inv *models.Invitation, m *models.Membership) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	stored, ok := db.state.Invitations[inv.ID]
	if !ok || stored.Status != models.InvitationPending {
		return apperrors.New(apperrors.KindNotFound, apperrors.CodeInvitationNotFound, "pending invitation not found")
	}
	if err := db.insertMember(m); err != nil {
		return err
	}
	stored.Status = models.InvitationAccepted
	db.state.Invitations[inv.ID] = stored
	if err := db.persist(); err != nil {
		return err
	}
	inv.Status = models.InvitationAccepted
	return nil
}

// ==== tasks ====

func (db *LocalDatabase) CreateTask(ctx context.Context, t *models.Task) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	t.ID = newID(t.ID)
	if t.Version == 0 {
		t.Version = 1
	}
	stored := *t
	stored.Data = t.Data.Clone()
	db.state.Tasks[t.ID] = stored
	db.nextSeq(t.ID)
	return db.persist()
}

func (db *LocalDatabase) GetTask(ctx context.Context, id string) (*models.Task, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	t, ok := db.state.Tasks[id]
	if !ok {
		return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeTaskNotFound, "task not found")
	}
	t.Data = t.Data.Clone()
	return &t, nil
}

func (db *LocalDatabase) ListTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var out []models.Task
	for _, t := range db.state.Tasks {
		if t.ProjectID == projectID {
			t.Data = t.Data.Clone()
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return db.newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (db *LocalDatabase) UpdateTaskData(ctx context.Context, id string, data models.TaskData, expectedVersion int64, now time.Time) (*models.Task, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	t, ok := db.state.Tasks[id]
	if !ok {
		return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeTaskNotFound, "task not found")
	}
	if t.Version != expectedVersion {
		return nil, apperrors.Newf(apperrors.KindConflict, apperrors.CodeTaskVersionConflict,
			"task %s is at version %d, expected %d", id, t.Version, expectedVersion)
	}
	t.Data = data.Clone()
	t.Version++
	t.UpdatedAt = now
	db.state.Tasks[id] = t
	if err := db.persist(); err != nil {
		return nil, err
	}
	t.Data = t.Data.Clone()
	return &t, nil
}

func (db *LocalDatabase) DeleteTask(ctx context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.state.Tasks[id]; !ok {
		return apperrors.New(apperrors.KindNotFound, apperrors.CodeTaskNotFound, "task not found")
	}
	delete(db.state.Tasks, id)
	delete(db.state.Seq, id)
	return db.persist()
}

// ==== column schemas ====

func (db *LocalDatabase) GetColumnSchema(ctx context.Context, projectID string) (*models.ColumnSchema, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	s, ok := db.state.Schemas[projectID]
	if !ok {
		return nil, apperrors.New(apperrors.KindNotFound, apperrors.CodeColumnNotFound, "no column schema for project")
	}
	s.Columns = models.CloneColumns(s.Columns)
	return &s, nil
}

func (db *LocalDatabase) SaveColumnSchema(ctx context.Context, schema *models.ColumnSchema, expectedVersion int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	current := db.state.Schemas[schema.ProjectID].Version
	if current != expectedVersion {
		return apperrors.Newf(apperrors.KindConflict, apperrors.CodeSchemaVersionConflict,
			"column schema of %s is at version %d, expected %d", schema.ProjectID, current, expectedVersion)
	}
	schema.Version = expectedVersion + 1
	stored := *schema
	stored.Columns = models.CloneColumns(schema.Columns)
	db.state.Schemas[schema.ProjectID] = stored
	return db.persist()
}

// ==== app config ====

func (db *LocalDatabase) ListAppConfig(ctx context.Context) (map[string]json.RawMessage, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(db.state.AppConfig))
	for k, v := range db.state.AppConfig {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out, nil
}

func (db *LocalDatabase) SetAppConfig(ctx context.Context, key string, value json.RawMessage) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.state.AppConfig[key] = append(json.RawMessage(nil), value...)
	return db.persist()
}

func (db *LocalDatabase) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

func (db *LocalDatabase) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.persist()
}
