package logger

import (
	"context"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Log is the process-wide logger. It is a no-op until New is called so that
// packages and tests can log unconditionally.
var Log = zap.NewNop()

// New builds the logger for the given environment and installs it as Log.
func New(environment string, debug bool) (*zap.Logger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if environment == "production" && !debug {
		l, err = zap.NewProduction()
	} else {
		l, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}
	Log = l
	return l, nil
}

// L returns the current process-wide logger.
func L() *zap.Logger {
	return Log
}

// WithRequest 从 context 中提取 request_id 并添加到 logger
func WithRequest(ctx context.Context, l *zap.Logger) *zap.Logger {
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		return l.With(zap.String("request_id", reqID))
	}
	return l
}
