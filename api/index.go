package handler

import (
	"net/http"
	"sync"

	"collab-tracker-backend/pkg/config"
	"collab-tracker-backend/pkg/events"
	"collab-tracker-backend/pkg/logger"
	"collab-tracker-backend/pkg/models"
	"collab-tracker-backend/pkg/ratelimit"
	"collab-tracker-backend/pkg/server"
	"collab-tracker-backend/pkg/utils"

	"go.uber.org/zap"
)

// 跨调用复用的进程级依赖（Vercel 会复用热实例）
var (
	initOnce  sync.Once
	publisher events.Publisher
	limiter   ratelimit.Limiter
	appConfig models.AppConfig
)

func initProcess(cfg *config.Config) {
	initOnce.Do(func() {
		// 失败时保留 Nop logger
		_, _ = logger.New(cfg.Environment, cfg.Debug)
		log := logger.L()
		publisher = server.NewPublisher(cfg, log)
		limiter = server.NewLimiter(cfg, log)
		appConfig = server.LoadAppConfigDefaults(cfg, log)
	})
}

// Handler 是Vercel函数的入口点
// 这个函数实现了"单体路由模式"，将所有API端点集中在一个Chi路由器中管理
func Handler(w http.ResponseWriter, r *http.Request) {
	// 加载配置
	cfg, err := config.GetCached()
	if err != nil {
		utils.WriteErrorResponseWithCode(w, http.StatusInternalServerError, "CONFIG_ERROR",
			"Configuration error: "+err.Error(), "")
		return
	}

	// 验证配置
	if err := cfg.Validate(); err != nil {
		utils.WriteErrorResponseWithCode(w, http.StatusInternalServerError, "CONFIG_ERROR",
			"Configuration error: "+err.Error(), "")
		return
	}

	initProcess(cfg)

	// 获取池化的数据库连接，连接由连接池管理，无需手动关闭
	db, err := server.OpenDatabase(r.Context(), cfg, logger.L())
	if err != nil {
		logger.L().Error("database unavailable", zap.Error(err))
		utils.WriteErrorResponseWithCode(w, http.StatusServiceUnavailable, "STORE_FAILURE",
			"Database unavailable", "")
		return
	}

	router := server.NewRouter(cfg, server.Deps{
		DB:        db,
		Publisher: publisher,
		Limiter:   limiter,
		AppConfig: appConfig,
		Logger:    logger.L(),
	})

	// 将请求传递给Chi路由器处理
	router.ServeHTTP(w, r)
}
