package handlers

import (
	"net/http"
	"strings"

	"collab-tracker-backend/pkg/config"
	"collab-tracker-backend/pkg/database"
	"collab-tracker-backend/pkg/middleware"
	"collab-tracker-backend/pkg/models"
	"collab-tracker-backend/pkg/services"
	"collab-tracker-backend/pkg/utils"
)

// Services 聚合处理器依赖的领域服务
type Services struct {
	Projects    *services.ProjectService
	Members     *services.MembershipService
	Invitations *services.InvitationService
	Columns     *services.ColumnRegistry
	Tasks       *services.TaskService
	AppConfig   *services.AppConfigService
}

// NewServices wires every service onto one store with shared options.
func NewServices(cfg *config.Config, db database.DatabaseInterface, defaults models.AppConfig, opts ...services.Option) *Services {
	appConfig := services.NewAppConfigService(db, defaults, opts...)
	columns := services.NewColumnRegistry(db, appConfig, opts...)
	return &Services{
		Projects:    services.NewProjectService(db, opts...),
		Members:     services.NewMembershipService(db, opts...),
		Invitations: services.NewInvitationService(db, cfg.InvitationTTL, opts...),
		Columns:     columns,
		Tasks:       services.NewTaskService(db, columns, opts...),
		AppConfig:   appConfig,
	}
}

// base 处理器共享字段
type base struct {
	config *config.Config
	svc    *Services
}

func (b base) fail(w http.ResponseWriter, r *http.Request, err error) {
	utils.WriteAppError(w, r, err, b.config.Debug)
}

func (b base) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	utils.WriteBadRequestError(w, r, err, b.config.Debug)
}

// actor 取出已认证用户，未认证时写入401并返回false
func (b base) actor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, err := middleware.RequireActor(r.Context())
	if err != nil {
		b.fail(w, r, err)
		return models.Actor{}, false
	}
	return actor, true
}

// parseRole keeps unknown input as-is so the service reports INVALID_ROLE.
func parseRole(s string) models.Role {
	if role, ok := models.ParseRole(s); ok {
		return role
	}
	return models.Role(strings.TrimSpace(s))
}
