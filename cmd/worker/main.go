package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/passaenem/passa-enem-api/internal/ai"
	"github.com/passaenem/passa-enem-api/internal/config"
	"github.com/passaenem/passa-enem-api/internal/grading"
	"github.com/passaenem/passa-enem-api/internal/pdf"
	"github.com/passaenem/passa-enem-api/internal/worker"
	"github.com/passaenem/passa-enem-api/pkg/database"
	"github.com/passaenem/passa-enem-api/pkg/kafka"
)

func main() {
	// Load .env when present; real deployments set the environment directly
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize database clients
	db, err := database.NewClients(cfg.Database.URL, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		slog.Error("Failed to initialize database clients", "error", err)
		os.Exit(1)
	}
	defer db.DB.Close()
	slog.Info("✅ Connected to databases")

	// Initialize Kafka consumer
	consumer, err := kafka.NewConsumer(cfg.Kafka.Broker, cfg.Kafka.Group)
	if err != nil {
		slog.Error("Failed to create Kafka consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()
	slog.Info("✅ Connected to Kafka")

	// Build the grading pipeline
	grader, err := ai.NewOpenAIGrader(cfg.AI.OpenAIAPIKey, cfg.AI.GradingModel, "")
	if err != nil {
		slog.Error("Failed to initialize essay grader", "error", err)
		os.Exit(1)
	}
	extractor := pdf.NewAPIExtractor(cfg.PDF.BaseURL, cfg.PDF.APIKey)
	tracker := grading.NewTracker(grading.TrackerConfig{
		MaxRetries: cfg.Kafka.RetryMax,
	})
	handler := grading.NewHandler(grader, extractor, tracker)

	// Create and start worker
	w := worker.NewWorker(cfg, db, consumer, handler)

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		slog.Error("Worker error", "error", err)
		os.Exit(1)
	}
}
