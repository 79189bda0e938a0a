package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/passaenem/passa-enem-api/internal/api"
	"github.com/passaenem/passa-enem-api/internal/config"
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

	if err := db.CreateTables(); err != nil {
		slog.Error("Failed to create tables", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producer
	producer, err := kafka.NewProducer(cfg.Kafka.Broker, cfg.Kafka.RetryMax, cfg.Kafka.RetryBackoff)
	if err != nil {
		slog.Error("Failed to create Kafka producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()
	slog.Info("✅ Connected to Kafka")

	// Create and start server
	server, err := api.NewServer(cfg, db, producer)
	if err != nil {
		slog.Error("Failed to initialize server", "error", err)
		os.Exit(1)
	}
	if err := server.Start(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}
