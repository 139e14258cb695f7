// Bousai manual wizard server.
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
	"github.com/joho/godotenv"

	"github.com/kuri-sun/bous-ai/internal/agentic"
	"github.com/kuri-sun/bous-ai/internal/api"
	"github.com/kuri-sun/bous-ai/internal/config"
	"github.com/kuri-sun/bous-ai/internal/generate"
	"github.com/kuri-sun/bous-ai/internal/llm"
	"github.com/kuri-sun/bous-ai/internal/middleware"
	"github.com/kuri-sun/bous-ai/internal/ocr"
	"github.com/kuri-sun/bous-ai/internal/places"
	"github.com/kuri-sun/bous-ai/internal/render"
	"github.com/kuri-sun/bous-ai/internal/search"
	"github.com/kuri-sun/bous-ai/internal/storage"
	"github.com/kuri-sun/bous-ai/internal/store"
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
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	objects, err := storage.NewGCS(context.Background())
	if err != nil {
		slog.Error("Failed to initialize object store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := objects.Close(); closeErr != nil {
			slog.Error("Failed to close object store", "error", closeErr)
		}
	}()

	// Initialize services.
	gemini := llm.NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.IllustrationModel)
	extractor := ocr.NewVision(objects, cfg.GCSBucket, cfg.OCROutputPrefix)
	searcher := search.NewGoogle(cfg.GoogleAPIKey, cfg.GoogleSearchCX, cfg.GCSBucket, objects, extractor)
	placesClient := places.NewClient(cfg.GoogleAPIKey)
	renderer := render.NewChromium()
	pipeline := generate.NewPipeline(gemini, gemini, renderer, objects, cfg.GCSBucket)
	turns := agentic.NewTurnGenerator(gemini)
	agenticService := agentic.NewService(repo, searcher, turns, pipeline)

	// Initialize handlers.
	handler := api.NewHandler(repo, agenticService, pipeline, gemini, placesClient, objects, extractor, cfg)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(corsOrigins(cfg)))

	handler.RegisterRoutes(r)

	// Create server. PDF generation can take a while, so the write timeout
	// stays generous.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

func corsOrigins(cfg *config.Config) []string {
	if cfg.FrontendURL != "" {
		return []string{cfg.FrontendURL}
	}
	return []string{"*"}
}
