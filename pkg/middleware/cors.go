package middleware

import (
	"net/http"

	"collab-tracker-backend/pkg/config"

	"github.com/go-chi/cors"
)

// CORS 创建CORS中间件
func CORS(cfg *config.Config) func(http.Handler) http.Handler {
	corsOptions := cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
			http.MethodPatch,
		},
		AllowedHeaders: []string{
			"Accept",
			"Accept-Language",
			"Authorization",
			"Content-Type",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"Content-Language",
			"X-Request-Id",
		},
		MaxAge: 300, // 5分钟
	}

	// 当AllowedOrigins为*时，不能设置AllowCredentials为true
	wildcard := len(cfg.AllowedOrigins) == 0 || cfg.AllowedOrigins[0] == "*"
	if wildcard || cfg.IsDevelopment() {
		corsOptions.AllowedOrigins = []string{"*"}
		corsOptions.AllowCredentials = false
	} else {
		corsOptions.AllowCredentials = true
	}

	return cors.Handler(corsOptions)
}
