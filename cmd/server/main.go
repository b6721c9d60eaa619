// Code Tutor - interactive coding tutor server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"codetutor/internal/api"
	"codetutor/internal/config"
	"codetutor/internal/lesson"
	"codetutor/internal/middleware"
	"codetutor/internal/reasoning"
	"codetutor/internal/sandbox"
	"codetutor/internal/session"
	"codetutor/internal/transcript"
	"codetutor/internal/tutor"
	"codetutor/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	lessons, err := lesson.LoadDir(cfg.LessonsDir)
	if err != nil {
		slog.Error("Failed to load lessons", "error", err, "dir", cfg.LessonsDir)
		os.Exit(1)
	}
	slog.Info("Lessons loaded", "count", len(lessons.All()), "dir", cfg.LessonsDir)

	runner, err := sandbox.NewDockerRunner(cfg.SandboxImage, cfg.ExecTimeout)
	if err != nil {
		slog.Error("Failed to initialize sandbox runner", "error", err)
		os.Exit(1)
	}

	var ai reasoning.Client
	if cfg.ReasoningEnabled() {
		ai = reasoning.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.ReasoningModel, cfg.ReasoningTimeout)
		slog.Info("Reasoning service enabled", "model", cfg.ReasoningModel)
	} else {
		slog.Info("Reasoning service disabled (ANTHROPIC_API_KEY not set), using offline tutoring")
	}

	transcripts, err := transcript.NewLogger(transcript.Config{
		Enabled:   cfg.Transcript.Enabled,
		Dir:       cfg.Transcript.Dir,
		QueueSize: cfg.Transcript.QueueSize,
	})
	if err != nil {
		slog.Error("Failed to initialize transcript logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := transcripts.Close(); closeErr != nil {
			slog.Error("Failed to close transcript logger", "error", closeErr)
		}
	}()

	store := session.NewStore()
	tut := tutor.New(store, lessons, runner, ai, transcripts, cfg.ExecTimeout)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	api.NewHandler(tut, lessons, runner, store, ai, cfg.ExecTimeout).RegisterRoutes(r)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout so long executions and streams survive
		IdleTimeout:  120 * time.Second,
	}

	// Start the session eviction worker.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session.StartEvictionWorker(ctx, store, cfg.SessionTTL, func(id uuid.UUID) {
		slog.Info("Session evicted", "session_id", id)
	})
	slog.Info("Eviction worker started", "session_ttl", cfg.SessionTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
