package server

import (
	"fmt"
	"net/http"
	"time"

	"collab-tracker-backend/pkg/config"
	"collab-tracker-backend/pkg/database"
	"collab-tracker-backend/pkg/handlers"
	customMiddleware "collab-tracker-backend/pkg/middleware"
	"collab-tracker-backend/pkg/services"
	"collab-tracker-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodyBytes 请求体上限
const maxBodyBytes = 1 << 20

// NewRouter 构建单体路由：所有API端点集中在一个Chi路由器中
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	router := chi.NewRouter()

	setupMiddleware(router, cfg, deps)
	setupRoutes(router, cfg, deps)

	return router
}

// setupMiddleware 设置全局中间件
func setupMiddleware(router *chi.Mux, cfg *config.Config, deps Deps) {
	// 基础中间件
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.RequestLogger(deps.Logger))
	router.Use(customMiddleware.Recovery(cfg))

	// CORS中间件
	router.Use(customMiddleware.CORS(cfg))

	// 超时中间件（Vercel函数有时间限制）
	router.Use(middleware.Timeout(25 * time.Second)) // 留5秒缓冲

	// 压缩中间件
	router.Use(middleware.Compress(5))

	// 开发环境额外中间件
	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

// setupRoutes 设置所有API路由
func setupRoutes(router *chi.Mux, cfg *config.Config, deps Deps) {
	svc := handlers.NewServices(cfg, deps.DB, deps.AppConfig,
		services.WithLogger(deps.Logger),
		services.WithPublisher(deps.Publisher),
	)
	jwtService := utils.NewJWTService(cfg.JWTSecret)

	systemHandler := handlers.NewSystemHandler(cfg, svc, deps.DB, deps.Publisher)
	projectHandler := handlers.NewProjectHandler(cfg, svc)
	memberHandler := handlers.NewMemberHandler(cfg, svc)
	invitationHandler := handlers.NewInvitationHandler(cfg, svc)
	columnHandler := handlers.NewColumnHandler(cfg, svc)
	taskHandler := handlers.NewTaskHandler(cfg, svc)

	// 健康检查端点
	router.Get("/", systemHandler.HealthCheck)
	router.Handle("/metrics", promhttp.Handler())

	// 数据库连接池状态端点（调试用）
	if cfg.IsDevelopment() {
		router.Get("/debug/db-pool", func(w http.ResponseWriter, r *http.Request) {
			utils.WriteSuccessResponse(w, database.GetConnectionStats())
		})
	}

	// API路由组
	router.Route("/api", func(r chi.Router) {
		r.Use(customMiddleware.MaxBodySize(maxBodyBytes))
		r.Use(customMiddleware.ContentTypeJSON)

		// 公开路由（不需要认证）
		r.Get("/config", systemHandler.GetAppConfig)
		r.With(customMiddleware.RateLimitByIP(deps.Limiter, "invite_preview")).
			Get("/invite/{token}", invitationHandler.PreviewInvitation)

		// 需要认证的路由
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.AuthMiddleware(cfg, jwtService))

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", projectHandler.ListProjects)
				r.Post("/", projectHandler.CreateProject)

				r.Route("/{projectID}", func(r chi.Router) {
					r.Get("/", projectHandler.GetProject)
					r.Put("/", projectHandler.UpdateProject)

					r.Get("/members", memberHandler.ListMembers)
					r.Post("/members", memberHandler.AddMember)
					r.Delete("/members/{userID}", memberHandler.RemoveMember)

					r.Get("/invitations", invitationHandler.ListProjectInvitations)
					r.Post("/invitations", invitationHandler.SendInvitation)

					r.Get("/columns", columnHandler.ListColumns)
					r.Post("/columns", columnHandler.AddColumn)
					r.Patch("/columns/{columnID}", columnHandler.UpdateColumn)

					r.Get("/tasks", taskHandler.ListTasks)
					r.Post("/tasks", taskHandler.CreateTask)
				})
			})

			r.Put("/members/{membershipID}/role", memberHandler.UpdateRole)

			// Invitations
			r.Route("/invitations", func(r chi.Router) {
				r.Get("/my", invitationHandler.ListMyInvitations)
				r.With(customMiddleware.RateLimitByIP(deps.Limiter, "invite_accept")).
					Post("/accept", invitationHandler.AcceptInvitation)
				r.Post("/{invitationID}/cancel", invitationHandler.CancelInvitation)
			})

			r.Route("/tasks/{taskID}", func(r chi.Router) {
				r.Get("/", taskHandler.GetTask)
				r.Delete("/", taskHandler.DeleteTask)
				r.Patch("/cells/{columnID}", taskHandler.UpdateCell)
			})
		})
	})

	// 404处理
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusNotFound, "NOT_FOUND",
			fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path), "")
	})

	// 405处理
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), "")
	})
}
