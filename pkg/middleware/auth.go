package middleware

import (
	"context"
	"net/http"
	"strings"

	"collab-tracker-backend/pkg/apperrors"
	"collab-tracker-backend/pkg/config"
	"collab-tracker-backend/pkg/logger"
	"collab-tracker-backend/pkg/models"
	"collab-tracker-backend/pkg/utils"

	"go.uber.org/zap"
)

// ContextKey 用于在context中存储用户信息的键
type ContextKey string

const (
	ActorContextKey ContextKey = "actor"
)

// TokenVerifier turns a bearer token into the acting identity.
type TokenVerifier interface {
	ValidateAccessToken(token string) (models.Actor, error)
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader || strings.TrimSpace(tokenString) == "" {
		return "", false
	}
	return strings.TrimSpace(tokenString), true
}

// AuthMiddleware JWT认证中间件
func AuthMiddleware(cfg *config.Config, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			unauthenticated := apperrors.New(apperrors.KindAuthorization, apperrors.CodeUnauthenticated, "authentication required")

			tokenString, ok := bearerToken(r)
			if !ok {
				utils.WriteAppError(w, r, unauthenticated, cfg.Debug)
				return
			}

			actor, err := verifier.ValidateAccessToken(tokenString)
			if err != nil {
				logger.WithRequest(r.Context(), logger.L()).Debug("token rejected", zap.Error(err))
				utils.WriteAppError(w, r, unauthenticated, cfg.Debug)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// WithActor stores actor in ctx.
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, ActorContextKey, actor)
}

// GetActorFromContext 从context中获取操作者
func GetActorFromContext(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(ActorContextKey).(models.Actor)
	return actor, ok && actor.UserID != ""
}

// RequireActor 要求用户必须已认证的辅助函数
func RequireActor(ctx context.Context) (models.Actor, error) {
	actor, ok := GetActorFromContext(ctx)
	if !ok {
		return models.Actor{}, apperrors.New(apperrors.KindAuthorization, apperrors.CodeUnauthenticated, "user not authenticated")
	}
	return actor, nil
}
