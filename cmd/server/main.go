package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/proctorhq/proctor-backend/internal/config"
	"github.com/proctorhq/proctor-backend/internal/database"
	"github.com/proctorhq/proctor-backend/internal/feed"
	"github.com/proctorhq/proctor-backend/internal/handler"
	"github.com/proctorhq/proctor-backend/internal/logger"
	"github.com/proctorhq/proctor-backend/internal/repository"
	"github.com/proctorhq/proctor-backend/internal/router"
	"github.com/proctorhq/proctor-backend/internal/service"
	"github.com/proctorhq/proctor-backend/internal/validator"
	"github.com/proctorhq/proctor-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ProctorHQ Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	sessionRepo := repository.NewSessionRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	monitoringRepo := repository.NewMonitoringRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)

	// ─── Initialize Change Feed ────────────────────────────────────────
	pub := feed.NewPublisher(rdb, log)
	sub := feed.NewSubscriber(rdb, log)

	// ─── Initialize Services ──────────────────────────────────────────
	var authenticator service.Authenticator = service.NewDBAuthenticator(profileRepo)
	if cfg.DemoAuth {
		log.Warn().Msg("DEMO_AUTH enabled, using fixed demo credentials")
		authenticator = service.NewDemoAuthenticator()
	}

	authService := service.NewAuthService(cfg, rdb, authenticator)
	submissionService := service.NewSubmissionService(sessionRepo, answerRepo, rdb, pub, log)
	violationService := service.NewViolationService(sessionRepo, rdb, pub, cfg.WarningThreshold, log)
	gradingService := service.NewGradingService(answerRepo, questionRepo, pub, log)
	dashboardService := service.NewDashboardService(sessionRepo, answerRepo, monitoringRepo)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:      handler.NewAuthHandler(authService, log),
		Student:   handler.NewStudentHandler(submissionService, violationService, log),
		Faculty:   handler.NewFacultyHandler(gradingService, violationService, submissionService, dashboardService, authService, log),
		Dashboard: handler.NewDashboardHandler(sub, dashboardService, profileRepo, cfg.WarningThreshold, log),
		WS:        handler.NewWSHandler(submissionService, violationService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	answerWorker := worker.NewAnswerWorker(answerRepo, rdb, pub, log)
	monitoringWorker := worker.NewMonitoringWorker(monitoringRepo, rdb, log)

	go answerWorker.Start(workerCtx)
	go monitoringWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
