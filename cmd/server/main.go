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

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-attempt-service/internal/cache"
	"github.com/SAP-F-2025/exam-attempt-service/internal/config"
	"github.com/SAP-F-2025/exam-attempt-service/internal/events"
	"github.com/SAP-F-2025/exam-attempt-service/internal/handlers"
	"github.com/SAP-F-2025/exam-attempt-service/internal/middleware"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories/memory"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/exam-attempt-service/internal/services"
	"github.com/SAP-F-2025/exam-attempt-service/internal/utils"
	"github.com/SAP-F-2025/exam-attempt-service/internal/validator"
	"github.com/SAP-F-2025/exam-attempt-service/pkg"
	"github.com/SAP-F-2025/exam-attempt-service/pkg/monitoring"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Environment, cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		logger.LogError(err, "Server stopped with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger utils.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(cfg, logger)
	if err != nil {
		return err
	}

	content, closeCache, err := openContentCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	publisher, err := cfg.Events.CreateEventPublisher(logger.Slog())
	if err != nil {
		logger.LogError(err, "Failed to create event publisher, falling back to mock")
		publisher = events.NewMockEventPublisher(logger.Slog())
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.LogError(err, "Failed to close event publisher")
		}
	}()

	authenticator, err := middleware.NewAuthenticator(cfg.Auth)
	if err != nil {
		return err
	}

	monitoring.Init()

	svc := services.NewServices(services.Dependencies{
		Repo:      repo,
		Content:   content,
		Publisher: publisher,
		Logger:    logger.Slog(),
		Validator: validator.New(),
		Exam:      cfg.Exam,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	handlers.NewHandlerManager(
		svc,
		content,
		authenticator,
		middleware.NewRateLimiter(cfg.Limits.SubmitPerMinute, cfg.Limits.SubmitBurst),
		logger,
	).SetupRoutes(router)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "port", cfg.Port, "storage", cfg.StorageDriver, "auth", cfg.Auth.Mode)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openRepository(cfg *config.Config, logger utils.Logger) (repositories.Repository, error) {
	switch cfg.StorageDriver {
	case "postgres":
		db, err := pkg.InitDatabase(cfg)
		if err != nil {
			return nil, err
		}
		return postgres.NewRepository(db), nil
	case "memory":
		repo := memory.New()
		if cfg.FixturesFile != "" {
			f, err := os.Open(cfg.FixturesFile)
			if err != nil {
				return nil, fmt.Errorf("failed to open fixtures: %w", err)
			}
			defer f.Close()
			n, err := repo.LoadFixtures(f)
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded exam fixtures", "file", cfg.FixturesFile, "exams", n)
		}
		logger.Warn("Using in-memory storage, data is lost on restart")
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func openContentCache(ctx context.Context, cfg *config.Config, logger utils.Logger) (*cache.ContentCache, func(), error) {
	if !cfg.Cache.Enabled {
		return cache.NewContentCache(nil, cfg.Cache.TTL, logger.Slog()), func() {}, nil
	}

	client, err := pkg.NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	backend := cache.NewRedisCache(client, logger.Slog())
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.LogError(err, "Failed to close redis client")
		}
	}
	return cache.NewContentCache(backend, cfg.Cache.TTL, logger.Slog()), closeFn, nil
}
