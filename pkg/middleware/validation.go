package middleware

import (
	"net"
	"net/http"
	"strings"

	"collab-tracker-backend/pkg/metrics"
	"collab-tracker-backend/pkg/ratelimit"
	"collab-tracker-backend/pkg/utils"
)

// ContentTypeJSON 验证请求Content-Type为application/json
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 只对带请求体的POST、PUT、PATCH请求验证Content-Type
		if (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) && r.ContentLength != 0 {
			contentType := r.Header.Get("Content-Type")
			if !strings.HasPrefix(strings.ToLower(contentType), "application/json") {
				utils.WriteErrorResponseWithCode(w, http.StatusUnsupportedMediaType,
					"UNSUPPORTED_MEDIA_TYPE", "Content-Type must be application/json", "")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// MaxBodySize 限制请求体大小
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP 按客户端IP限流
//
// route names the budget; each route+IP pair gets its own window.
func RateLimitByIP(limiter ratelimit.Limiter, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(r.Context(), route+":"+clientIP(r)) {
				metrics.IncrementRateLimited(route)
				w.Header().Set("Retry-After", "60")
				utils.WriteErrorResponseWithCode(w, http.StatusTooManyRequests,
					"RATE_LIMITED", "Too many requests", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP 获取客户端IP地址（RealIP 中间件已处理代理头）
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
