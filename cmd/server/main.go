package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collab-tracker-backend/pkg/config"
	"collab-tracker-backend/pkg/logger"
	"collab-tracker-backend/pkg/server"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Environment, cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := server.OpenDatabase(ctx, cfg, log)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	publisher := server.NewPublisher(cfg, log)
	defer publisher.Close()

	router := server.NewRouter(cfg, server.Deps{
		DB:        db,
		Publisher: publisher,
		Limiter:   server.NewLimiter(cfg, log),
		AppConfig: server.LoadAppConfigDefaults(cfg, log),
		Logger:    log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}
