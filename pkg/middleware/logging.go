package middleware

import (
	"net/http"
	"strconv"
	"time"

	"collab-tracker-backend/pkg/logger"
	"collab-tracker-backend/pkg/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RequestLogger 请求日志 + 延迟指标中间件
func RequestLogger(l *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// 创建响应写入器包装器来捕获状态码
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			// Route pattern keeps the metric cardinality bounded.
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			metrics.RecordHTTPRequestDuration(r.Method, route, strconv.Itoa(status), duration)

			// 获取用户信息（如果有）
			user := "anonymous"
			if actor, ok := GetActorFromContext(r.Context()); ok {
				user = actor.UserID
			}

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Duration("duration", duration),
				zap.Int("bytes", ww.BytesWritten()),
				zap.String("user", user),
				zap.String("ip", r.RemoteAddr),
			}
			log := logger.WithRequest(r.Context(), l)
			switch {
			case status >= 500:
				log.Error("request", fields...)
			case status >= 400:
				log.Warn("request", fields...)
			default:
				log.Info("request", fields...)
			}
		})
	}
}
