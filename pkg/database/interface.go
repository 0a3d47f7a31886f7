package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"collab-tracker-backend/pkg/models"
)

// DatabaseInterface 定义数据库访问接口
//
// Implementations must enforce two uniqueness rules at the store level:
// invitation tokens and (project_id, user_id) memberships. Violations are
// reported as apperrors conflicts, missing rows as apperrors not-found.
type DatabaseInterface interface {
	// Users (read-mostly reference data owned by the identity provider)
	UpsertUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// Projects
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error
	ListProjectsForUser(ctx context.Context, userID string) ([]models.Project, error)

	// Memberships
	AddMember(ctx context.Context, m *models.Membership) error
	GetMember(ctx context.Context, projectID, userID string) (*models.Membership, error)
	GetMemberByID(ctx context.Context, id string) (*models.Membership, error)
	ListMembers(ctx context.Context, projectID string) ([]models.Membership, error)
	UpdateMemberRole(ctx context.Context, id string, role models.Role) (*models.Membership, error)
	// RemoveMember deletes the membership; removing a non-member is not an error.
	RemoveMember(ctx context.Context, projectID, userID string) error

	// Invitations
	CreateInvitation(ctx context.Context, inv *models.Invitation) error
	GetInvitationByID(ctx context.Context, id string) (*models.Invitation, error)
	GetPendingInvitationByToken(ctx context.Context, token string) (*models.Invitation, error)
	ListInvitationsByProject(ctx context.Context, projectID string) ([]models.Invitation, error)
	ListInvitationsByEmail(ctx context.Context, email string) ([]models.Invitation, error)
	// TransitionInvitation moves an invitation from one status to another and
	// reports whether a row changed.
	TransitionInvitation(ctx context.Context, id string, from, to models.InvitationStatus) (bool, error)
	// RedeemInvitation inserts m and marks inv accepted in one transaction.
	// Nothing is written when either step fails.
	RedeemInvitation(ctx context.Context, inv *models.Invitation, m *models.Membership) error

	// Tasks
	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context, projectID string) ([]models.Task, error)
	// UpdateTaskData replaces the whole data map when the stored version
	// equals expectedVersion, bumping the version.
	UpdateTaskData(ctx context.Context, id string, data models.TaskData, expectedVersion int64, now time.Time) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) error

	// Column schemas
	GetColumnSchema(ctx context.Context, projectID string) (*models.ColumnSchema, error)
	// SaveColumnSchema writes schema when the stored version equals
	// expectedVersion (0 = no schema stored yet) and sets schema.Version.
	SaveColumnSchema(ctx context.Context, schema *models.ColumnSchema, expectedVersion int64) error

	// App config
	ListAppConfig(ctx context.Context) (map[string]json.RawMessage, error)
	SetAppConfig(ctx context.Context, key string, value json.RawMessage) error

	// 健康检查
	HealthCheck(ctx context.Context) error

	// 关闭连接
	Close() error
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	UseLocalDB   bool
	LocalDataDir string
	PostgresDSN  string
	QueryTimeout time.Duration
	Debug        bool
}

// NewDatabase 根据配置选择数据库实现
func NewDatabase(config DatabaseConfig) (DatabaseInterface, error) {
	if config.PostgresDSN != "" && !config.UseLocalDB {
		db, err := NewPostgresDatabase(config.PostgresDSN, config.QueryTimeout)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	if config.UseLocalDB {
		db, err := NewLocalDatabase(config.LocalDataDir)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	return nil, fmt.Errorf("no valid database configuration found: set POSTGRES_DSN or USE_LOCAL_DB=true")
}
