package handlers

import (
	"net/http"
	"time"

	"collab-tracker-backend/pkg/config"
	"collab-tracker-backend/pkg/database"
	"collab-tracker-backend/pkg/events"
	"collab-tracker-backend/pkg/utils"
)

// SystemHandler 健康检查与应用配置
type SystemHandler struct {
	base
	db        database.DatabaseInterface
	publisher events.Publisher
}

// NewSystemHandler 创建系统处理器
func NewSystemHandler(cfg *config.Config, svc *Services, db database.DatabaseInterface, publisher events.Publisher) *SystemHandler {
	return &SystemHandler{base: base{config: cfg, svc: svc}, db: db, publisher: publisher}
}

// HealthCheck GET /
func (h *SystemHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	// 测试数据库连接
	dbStatus := "healthy"
	if err := h.db.HealthCheck(r.Context()); err != nil {
		dbStatus = "unhealthy"
		if h.config.Debug {
			dbStatus += ": " + err.Error()
		}
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"service":     "collab-tracker-backend",
		"version":     "1.0.0",
		"environment": h.config.Environment,
		"database":    h.databaseType(),
		"db_status":   dbStatus,
		"mq_status":   h.brokerStatus(),
		"timestamp":   time.Now().Unix(),
		"status":      "healthy",
	})
}

// brokerStatus 消息队列连接状态；未配置 broker 时为 disabled
func (h *SystemHandler) brokerStatus() string {
	c, ok := h.publisher.(interface{ IsConnected() bool })
	if !ok {
		return "disabled"
	}
	if c.IsConnected() {
		return "connected"
	}
	return "disconnected"
}

// databaseType 获取数据库类型
func (h *SystemHandler) databaseType() string {
	if h.config.PostgresDSN != "" && !h.config.UseLocalDB {
		return "postgresql"
	}
	return "local"
}

// GetAppConfig GET /api/config （公开）
func (h *SystemHandler) GetAppConfig(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"config": h.svc.AppConfig.Load(r.Context()),
	})
}
