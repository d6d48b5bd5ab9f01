// Command basenotes-server starts the note service HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dravek/basenotes/internal/config"
	"github.com/dravek/basenotes/internal/limiter"
	"github.com/dravek/basenotes/internal/migrate"
	"github.com/dravek/basenotes/internal/repository/postgres"
	"github.com/dravek/basenotes/internal/server/httpapi"
	"github.com/dravek/basenotes/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, and serves the API until
// interrupted.
func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Server.Addr),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.Database.DSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	// DB pool
	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("pgxpool.New", zap.Error(err))
	}
	defer pool.Close()

	// Repositories
	db := &postgres.DB{Pool: pool}
	userRepo := postgres.NewUserRepo(db)
	noteRepo := postgres.NewNoteRepo(db)
	versionRepo := postgres.NewVersionRepo(db)
	tokenRepo := postgres.NewTokenRepo(db)

	lim := limiter.NewPG(pool, cfg.RateLimit.Window, cfg.RateLimit.MaxFails, cfg.RateLimit.BlockFor)

	// Services
	authSvc := service.NewAuthService(userRepo, []byte(cfg.Auth.JWTKey), cfg.Auth.AccessTTL, lim)
	noteSvc := service.NewNoteService(noteRepo, versionRepo, cfg.Notes.DefaultPageSize, cfg.Notes.MaxPageSize, cfg.Notes.HistoryLimit)
	tokenSvc := service.NewTokenService(tokenRepo, userRepo, []byte(cfg.Auth.Pepper))

	handler := httpapi.NewRouter(logger, []byte(cfg.Auth.JWTKey), authSvc, noteSvc, tokenSvc)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
