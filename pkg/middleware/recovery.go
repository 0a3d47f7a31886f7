package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"collab-tracker-backend/pkg/config"
	"collab-tracker-backend/pkg/logger"
	"collab-tracker-backend/pkg/utils"

	"go.uber.org/zap"
)

// Recovery 恢复中间件，处理panic并返回友好的错误信息
func Recovery(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				stack := debug.Stack()
				logger.WithRequest(r.Context(), logger.L()).Error("panic recovered",
					zap.Any("panic", rec),
					zap.ByteString("stack", stack),
				)

				if cfg.IsDevelopment() {
					// 开发环境：显示详细错误信息
					utils.WriteErrorResponseWithCode(w, http.StatusInternalServerError,
						"INTERNAL_SERVER_ERROR",
						fmt.Sprintf("Internal server error: %v", rec),
						string(stack))
					return
				}
				// 生产环境：隐藏详细错误信息
				utils.WriteErrorResponseWithCode(w, http.StatusInternalServerError,
					"INTERNAL_SERVER_ERROR", "Internal server error occurred", "")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
