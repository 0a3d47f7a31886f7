package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"collab-tracker-backend/pkg/apperrors"
	"collab-tracker-backend/pkg/logger"
	"collab-tracker-backend/pkg/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultQueryTimeout = 5 * time.Second

// PostgreSQL constraint names from schema.sql, used to classify unique violations.
const (
	constraintInvitationToken = "invitations_token_key"
	constraintMemberPair      = "project_members_project_user_key"
)

// PostgresDatabase PostgreSQL数据库实现
type PostgresDatabase struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// NewPostgresDatabase 创建PostgreSQL数据库实例
func NewPostgresDatabase(dsn string, queryTimeout time.Duration) (*PostgresDatabase, error) {
	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)
	strategies := []string{
		addConnectionParams(dsn, "connect_timeout=10"),
		dsn, // 最后尝试原始DSN
	}

	log := logger.L()
	var lastErr error
	for i, strategy := range strategies {
		log.Debug("trying postgres connection strategy", zap.Int("strategy", i+1))

		conn, err := sql.Open("postgres", strategy)
		if err != nil {
			lastErr = err
			log.Warn("postgres open failed", zap.Int("strategy", i+1), zap.Error(err))
			continue
		}

		// 设置连接池参数
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(2)
		conn.SetConnMaxLifetime(5 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = conn.PingContext(ctx)
		cancel()
		if err != nil {
			lastErr = err
			log.Warn("postgres ping failed", zap.Int("strategy", i+1), zap.Error(err))
			conn.Close()
			continue
		}

		log.Info("postgres connection established", zap.Int("strategy", i+1))
		return OpenPostgres(conn, queryTimeout), nil
	}
	return nil, fmt.Errorf("connect to postgres with all strategies: %w", lastErr)
}

// OpenPostgres wraps an already opened *sql.DB.
func OpenPostgres(conn *sql.DB, queryTimeout time.Duration) *PostgresDatabase {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	return &PostgresDatabase{db: conn, queryTimeout: queryTimeout}
}

// DB exposes the underlying pool for migrations.
func (db *PostgresDatabase) DB() *sql.DB {
	return db.db
}

// addConnectionParams 添加连接参数到DSN
func addConnectionParams(dsn, params string) string {
	if params == "" || !strings.Contains(dsn, "://") {
		return dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + params
}

// bounded applies the per-query timeout on top of the caller's context.
func (db *PostgresDatabase) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, db.queryTimeout)
}

// mapError turns driver errors into the domain taxonomy.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		switch pqErr.Constraint {
		case constraintInvitationToken:
			return apperrors.Wrap(apperrors.KindConflict, apperrors.CodeTokenCollision, op, err)
		case constraintMemberPair:
			return apperrors.Wrap(apperrors.KindConflict, apperrors.CodeMembershipExists, op, err)
		default:
			return apperrors.Wrap(apperrors.KindConflict, apperrors.CodeDuplicate, op, err)
		}
	}
	return apperrors.Store(op, err)
}

func notFound(code apperrors.Code, what string) error {
	return apperrors.New(apperrors.KindNotFound, code, what+" not found")
}

// ==== users ====

func (db *PostgresDatabase) UpsertUser(ctx context.Context, user *models.User) error {
	ctx, cancel := db.bounded(ctx)
	defer cancel()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Email = models.NormalizeEmail(user.Email)
	err := db.db.QueryRowContext(ctx, `
        INSERT INTO users (id, email, full_name, created_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (id) DO UPDATE SET
            email = EXCLUDED.email,
            full_name = COALESCE(NULLIF(EXCLUDED.full_name, ''), users.full_name)
        RETURNING created_at, full_name
    `, user.ID, user.Email, user.FullName).Scan(&user.CreatedAt, &user.FullName)
	return mapError("upsert user", err)
}

func (db *PostgresDatabase) getUser(ctx context.Context, where string, arg string) (*models.User, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()
	var u models.User
	err := db.db.QueryRowContext(ctx,
		`SELECT id, email, full_name, created_at FROM users WHERE `+where+` = $1`, arg).
		Scan(&u.ID, &u.Email, &u.FullName, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, notFound(apperrors.CodeUserNotFound, "user")
	}
	if err != nil {
		return nil, mapError("get user", err)
	}
	return &u, nil
}

func (db *PostgresDatabase) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return db.getUser(ctx, "id", id)
}

func (db *PostgresDatabase) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.getUser(ctx, "email", models.NormalizeEmail(email))
}

// ==== projects ====

const projectColumns = `id, nom, description, statut, date_debut, date_fin, budget, owner_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project
	var start, end sql.NullTime
	var budget sql.NullFloat64
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Status, &start, &end, &budget, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if start.Valid {
		p.StartDate = &start.Time
	}
	if end.Valid {
		p.EndDate = &end.Time
	}
	if budget.Valid {
		p.Budget = &budget.Float64
	}
	return &p, nil
}

func (db *PostgresDatabase) CreateProject(ctx context.Context, p *models.Project) error {
	ctx, cancel := db.bounded(ctx)
	defer cancel()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := db.db.ExecContext(ctx, `
        INSERT INTO projects (`+projectColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `, p.ID, p.Name, p.Description, p.Status, p.StartDate, p.EndDate, p.Budget, p.OwnerID, p.CreatedAt, p.UpdatedAt)
	return mapError("create project", err)
}

func (db *PostgresDatabase) GetProject(ctx context.Context, id string) (*models.Project, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()
	p, err := scanProject(db.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, notFound(apperrors.CodeProjectNotFound, "project")
	}
	if err != nil {
		return nil, mapError("get project", err)
	}
	return p, nil
}

func (db *PostgresDatabase) UpdateProject(ctx context.Context, p *models.Project) error {
	ctx, cancel := db.bounded(ctx)
	defer cancel()
	res, err := db.db.ExecContext(ctx, `
        UPDATE projects SET nom=$1, description=$2, statut=$3, date_debut=$4, date_fin=$5, budget=$6, updated_at=$7
        WHERE id=$8
    `, p.Name, p.Description, p.Status, p.StartDate, p.EndDate, p.Budget, p.UpdatedAt, p.ID)
	if err != nil {
		return mapError("update project", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(apperrors.CodeProjectNotFound, "project")
	}
	return nil
}

func (db *PostgresDatabase) ListProjectsForUser(ctx context.Context, userID string) ([]models.Project, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()
	rows, err := db.db.QueryContext(ctx, `
        SELECT `+projectColumns+` FROM projects p
        WHERE p.owner_id = $1
           OR EXISTS (SELECT 1 FROM project_members m WHERE m.project_id = p.id AND m.user_id = $1)
        ORDER BY p.created_at DESC
    `, userID)
	if err != nil {
		return nil, mapError("list projects", err)
	}
	defer rows.Close()
	var out []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, mapError("scan project", err)
		}
		out = append(out, *p)
	}
	return out, mapError("list projects", rows.Err())
}

// ==== memberships ====

const memberSelect = `
    SELECT m.id, m.project_id, m.user_id, m.role, m.added_at, u.id, u.email, u.full_name
    FROM project_members m
    LEFT JOIN users u ON u.id = m.user_id
`

func scanMember(row rowScanner) (*models.Membership, error) {
	var m models.Membership
	var role string
	var uid, email, name sql.NullString
	if err := row.Scan(&m.ID, &m.ProjectID, &m.UserID, &role, &m.AddedAt, &uid, &email, &name); err != nil {
		return nil, err
	}
	m.Role = models.Role(role)
	if uid.Valid {
		m.User = &models.User{ID: uid.String, Email: email.String, FullName: name.String}
	}
	return &m, nil
}

func (db *PostgresDatabase) insertMember(ctx context.Context, q execer, m *models.Membership) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.AddedAt.IsZero() {
		m.AddedAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, `
        INSERT INTO project_members (id, project_id, user_id, role, added_at)
        VALUES ($1, $2, $3, $4, $5)
    `, m.ID, m.ProjectID, m.UserID, string(m.Role), m.AddedAt)
	return mapError("add member", err)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (db *PostgresDatabase) AddMember(ctx context.Context, m *models.Membership) error {
	ctx, cancel := db.bounded(ctx)
	defer cancel()
	return db.insertMember(ctx, db.db, m)
}

func (db *PostgresDatabase) GetMember(ctx context.Context, projectID, userID string) (*models.Membership, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()
	m, err := scanMember(db.db.QueryRowContext(ctx, memberSelect+` WHERE m.project_id = $1 AND m.user_id = $2`, projectID, userID))
	if err == sql.ErrNoRows {
		return nil, notFound(apperrors.CodeMembershipNotFound, "membership")
	}
	if err != nil {
		return nil, mapError("get member", err)
	}
	return m, nil
}

func (db *PostgresDatabase) GetMemberByID(ctx context.Context, id string) (*models.Membership, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()
	m, err := scanMember(db.db.QueryRowContext(ctx, memberSelect+` WHERE m.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, notFound(apperrors.CodeMembershipNotFound, "membership")
	}
	if err != nil {
		return nil, mapError("get member", err)
	}
	return m, nil
}

func (db *PostgresDatabase) ListMembers(ctx context.Context, projectID string) ([]models.Membership, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()
	rows, err := db.db.QueryContext(ctx, memberSelect+` WHERE m.project_id = $1 ORDER BY m.added_at ASC`, projectID)
	if err != nil {
		return nil, mapError("list members", err)
	}
	defer rows.Close()
	var out []models.Membership
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, mapError("scan member", err)
		}
		out = append(out, *m)
	}
	return out, mapError("list members", rows.Err())
}

func (db *PostgresDatabase) UpdateMemberRole(ctx context.Context, id string, role models.Role) (*models.Membership, error) {
	bctx, cancel := db.bounded(ctx)
	defer cancel()
	res, err := db.db.ExecContext(bctx, `UPDATE project_members SET role = $1 WHERE id = $2`, string(role), id)
	if err != nil {
		return nil, mapError("update member role", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, notFound(apperrors.CodeMembershipNotFound, "membership")
	}
	return db.GetMemberByID(ctx, id)
}

func (db *PostgresDatabase) RemoveMember(ctx context.Context, projectID, userID string) error {
	ctx, cancel := db.bounded(ctx)
	defer cancel()
	_, err := db.db.ExecContext(ctx, `DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	return mapError("remove member", err)
}

// ==== invitations ====

const invitationColumns = `id, project_id, email, role, token, status, invited_by, created_at, expires_at`

func scanInvitation(row rowScanner) (*models.Invitation, error) {
	var inv models.Invitation
	var role, status string
	if err := row.Scan(&inv.ID, &inv.ProjectID, &inv.Email, &role, &inv.Token, &status, &inv.InvitedBy, &inv.CreatedAt, &inv.ExpiresAt); err != nil {
		return nil, err
	}
	inv.Role = models.Role(role)
	inv.Status = models.InvitationStatus(status)
	return &inv, nil
}

func (db *PostgresDatabase) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	ctx, cancel := db.bounded(ctx)
	defer cancel()
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	_, err := db.db.ExecContext(ctx, `
        INSERT INTO invitations (`+invitationColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, inv.ID, inv.ProjectID, inv.Email, string(inv.Role), inv.Token, string(inv.Status), inv.InvitedBy, inv.CreatedAt, inv.ExpiresAt)
	return mapError("create invitation", err)
}

func (db *PostgresDatabase) GetInvitationByID(ctx context.Context, id string) (*models.Invitation, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()
	inv, err := scanInvitation(db.db.QueryRowContext(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, notFound(apperrors.CodeInvitationNotFound, "invitation")
	}
	if err != nil {
		return nil, mapError("get invitation", err)
	}
	return inv, nil
}

func (db *PostgresDatabase) GetPendingInvitationByToken(ctx context.Context, token string) (*models.Invitation, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()
	inv, err := scanInvitation(db.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE token = $1 AND status = 'pending'`, token))
	if err == sql.ErrNoRows {
		return nil, notFound(apperrors.CodeInvitationNotFound, "pending invitation")
	}
	if err != nil {
		return nil, mapError("get invitation by token", err)
	}
	return inv, nil
}

func (db *PostgresDatabase) listInvitations(ctx context.Context, where string, arg string) ([]models.Invitation, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()
	rows, err := db.db.QueryContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE `+where+` = $1 ORDER BY created_at DESC`, arg)
	if err != nil {
		return nil, mapError("list invitations", err)
	}
	defer rows.Close()
	var out []models.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, mapError("scan invitation", err)
		}
		out = append(out, *inv)
	}
	return out, mapError("list invitations", rows.Err())
}

func (db *PostgresDatabase) ListInvitationsByProject(ctx context.Context, projectID string) ([]models.Invitation, error) {
	return db.listInvitations(ctx, "project_id", projectID)
}

func (db *PostgresDatabase) ListInvitationsByEmail(ctx context.Context, email string) ([]models.Invitation, error) {
	return db.listInvitations(ctx, "email", models.NormalizeEmail(email))
}

func (db *PostgresDatabase) TransitionInvitation(ctx context.Context, id string, from, to models.InvitationStatus) (bool, error) {
	bctx, cancel := db.bounded(ctx)
	defer cancel()
	res, err := db.db.ExecContext(bctx, `UPDATE invitations SET status = $1 WHERE id = $2 AND status = $3`, string(to), id, string(from))
	if err != nil {
		return false, mapError("transition invitation", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}
	// Distinguish "wrong status" from "no such invitation".
	if _, err := db.GetInvitationByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (db *PostgresDatabase) RedeemInvitation(ctx context.Context, inv *models.Invitation, m *models.Membership) (err error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError("begin redeem", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = db.insertMember(ctx, tx, m); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE invitations SET status = 'accepted' WHERE id = $1 AND status = 'pending'`, inv.ID)
	if err != nil {
		return mapError("accept invitation", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = notFound(apperrors.CodeInvitationNotFound, "pending invitation")
		return err
	}
	if err = tx.Commit(); err != nil {
		return mapError("commit redeem", err)
	}
	inv.Status = models.InvitationAccepted
	return nil
}

// ==== tasks ====

const taskColumns = `id, project_id, data, created_by, version, created_at, updated_at`

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var raw []byte
	if err := row.Scan(&t.ID, &t.ProjectID, &raw, &t.CreatedBy, &t.Version, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Data = models.TaskData{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &t.Data); err != nil {
			return nil, fmt.Errorf("decode task data: %w", err)
		}
	}
	return &t, nil
}

func (db *PostgresDatabase) CreateTask(ctx context.Context, t *models.Task) error {
	ctx, cancel := db.bounded(ctx)
	defer cancel()
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Version == 0 {
		t.Version = 1
	}
	data, err := json.Marshal(t.Data)
	if err != nil {
		return apperrors.Wrap(apperrors.KindValidation, apperrors.CodeInvalidCellValue, "encode task data", err)
	}
	_, err = db.db.ExecContext(ctx, `
        INSERT INTO tasks (`+taskColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, t.ID, t.ProjectID, data, t.CreatedBy, t.Version, t.CreatedAt, t.UpdatedAt)
	return mapError("create task", err)
}

func (db *PostgresDatabase) GetTask(ctx context.Context, id string) (*models.Task, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()
	t, err := scanTask(db.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, notFound(apperrors.CodeTaskNotFound, "task")
	}
	if err != nil {
		return nil, mapError("get task", err)
	}
	return t, nil
}

func (db *PostgresDatabase) ListTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()
	rows, err := db.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE project_id = $1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, mapError("list tasks", err)
	}
	defer rows.Close()
	var out []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, mapError("scan task", err)
		}
		out = append(out, *t)
	}
	return out, mapError("list tasks", rows.Err())
}

func (db *PostgresDatabase) UpdateTaskData(ctx context.Context, id string, data models.TaskData, expectedVersion int64, now time.Time) (*models.Task, error) {
	bctx, cancel := db.bounded(ctx)
	defer cancel()
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, apperrors.CodeInvalidCellValue, "encode task data", err)
	}
	t, err := scanTask(db.db.QueryRowContext(bctx, `
        UPDATE tasks SET data = $1, version = version + 1, updated_at = $2
        WHERE id = $3 AND version = $4
        RETURNING `+taskColumns, raw, now, id, expectedVersion))
	if err == nil {
		return t, nil
	}
	if err != sql.ErrNoRows {
		return nil, mapError("update task", err)
	}
	current, getErr := db.GetTask(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, apperrors.Newf(apperrors.KindConflict, apperrors.CodeTaskVersionConflict,
		"task %s is at version %d, expected %d", id, current.Version, expectedVersion)
}

func (db *PostgresDatabase) DeleteTask(ctx context.Context, id string) error {
	ctx, cancel := db.bounded(ctx)
	defer cancel()
	res, err := db.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return mapError("delete task", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(apperrors.CodeTaskNotFound, "task")
	}
	return nil
}

// ==== column schemas ====

func (db *PostgresDatabase) GetColumnSchema(ctx context.Context, projectID string) (*models.ColumnSchema, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()
	var raw []byte
	s := models.ColumnSchema{ProjectID: projectID}
	err := db.db.QueryRowContext(ctx, `SELECT columns, version FROM project_columns WHERE project_id = $1`, projectID).
		Scan(&raw, &s.Version)
	if err == sql.ErrNoRows {
		return nil, notFound(apperrors.CodeColumnNotFound, "column schema")
	}
	if err != nil {
		return nil, mapError("get column schema", err)
	}
	if err := json.Unmarshal(raw, &s.Columns); err != nil {
		return nil, apperrors.Store("decode column schema", err)
	}
	return &s, nil
}

func (db *PostgresDatabase) SaveColumnSchema(ctx context.Context, schema *models.ColumnSchema, expectedVersion int64) error {
	ctx, cancel := db.bounded(ctx)
	defer cancel()
	raw, err := json.Marshal(schema.Columns)
	if err != nil {
		return apperrors.Store("encode column schema", err)
	}
	var res sql.Result
	if expectedVersion == 0 {
		res, err = db.db.ExecContext(ctx, `
            INSERT INTO project_columns (project_id, columns, version, updated_at)
            VALUES ($1, $2, 1, NOW())
            ON CONFLICT (project_id) DO NOTHING
        `, schema.ProjectID, raw)
	} else {
		res, err = db.db.ExecContext(ctx, `
            UPDATE project_columns SET columns = $1, version = version + 1, updated_at = NOW()
            WHERE project_id = $2 AND version = $3
        `, raw, schema.ProjectID, expectedVersion)
	}
	if err != nil {
		return mapError("save column schema", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.Newf(apperrors.KindConflict, apperrors.CodeSchemaVersionConflict,
			"column schema of %s changed since version %d", schema.ProjectID, expectedVersion)
	}
	schema.Version = expectedVersion + 1
	return nil
}

// ==== app config ====

func (db *PostgresDatabase) ListAppConfig(ctx context.Context) (map[string]json.RawMessage, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()
	rows, err := db.db.QueryContext(ctx, `SELECT key, value FROM app_config`)
	if err != nil {
		return nil, mapError("list app config", err)
	}
	defer rows.Close()
	out := map[string]json.RawMessage{}
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, mapError("scan app config", err)
		}
		out[key] = json.RawMessage(value)
	}
	return out, mapError("list app config", rows.Err())
}

func (db *PostgresDatabase) SetAppConfig(ctx context.Context, key string, value json.RawMessage) error {
	ctx, cancel := db.bounded(ctx)
	defer cancel()
	_, err := db.db.ExecContext(ctx, `
        INSERT INTO app_config (key, value) VALUES ($1, $2)
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
    `, key, []byte(value))
	return mapError("set app config", err)
}

func (db *PostgresDatabase) HealthCheck(ctx context.Context) error {
	ctx, cancel := db.bounded(ctx)
	defer cancel()
	return db.db.PingContext(ctx)
}

func (db *PostgresDatabase) Close() error {
	return db.db.Close()
}
