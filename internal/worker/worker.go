package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"

	"github.com/passaenem/passa-enem-api/internal/config"
	"github.com/passaenem/passa-enem-api/internal/grading"
	"github.com/passaenem/passa-enem-api/internal/models"
	"github.com/passaenem/passa-enem-api/pkg/database"
)

// Worker consumes grading jobs from Kafka and scores essays. Each message
// carries only the essay ID; the full payload is handed over through Redis.
type Worker struct {
	cfg      *config.Config
	db       *database.Clients
	consumer sarama.ConsumerGroup
	handler  *grading.Handler
	ready    chan bool
}

func NewWorker(cfg *config.Config, db *database.Clients, consumer sarama.ConsumerGroup, handler *grading.Handler) *Worker {
	slog.Info("Initializing new Worker")
	return &Worker{
		cfg:      cfg,
		db:       db,
		consumer: consumer,
		handler:  handler,
		ready:    make(chan bool),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	topics := []string{w.cfg.Kafka.Topic}
	slog.Info("Starting worker", "topics", topics)

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start error logging for consumer errors
	go func() {
		for err := range w.consumer.Errors() {
			slog.Error("Kafka consumer error received", "error", err)
		}
	}()

	// Start consuming messages
	go func() {
		for {
			if err := w.consumer.Consume(ctx, topics, w); err != nil {
				slog.Error("Error from consumer.Consume", "error", err)
			}
			if ctx.Err() != nil {
				slog.Info("Context error detected, exiting consumer loop", "error", ctx.Err())
				return
			}
			// Reset the ready channel after a new session is created
			w.ready = make(chan bool)
		}
	}()

	<-w.ready // Wait till the consumer has been set up
	slog.Info("Worker setup complete; consumer ready")

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("Context cancelled; shutting down worker")
	}

	slog.Info("Worker shutting down gracefully")
	return nil
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (w *Worker) Setup(sarama.ConsumerGroupSession) error {
	slog.Info("Consumer group session setup complete")
	close(w.ready)
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (w *Worker) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim must start a consumer loop of ConsumerGroupClaim's Messages().
func (w *Worker) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		slog.Info("Message received from Kafka", "offset", message.Offset, "partition", message.Partition)
		if err := w.processEssay(message); err != nil {
			slog.Error("Failed to process grading job", "error", err)
		}
		session.MarkMessage(message, "")
	}
	return nil
}

func (w *Worker) processEssay(msg *sarama.ConsumerMessage) error {
	var job models.GradingJob
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		return fmt.Errorf("failed to parse grading job: %w", err)
	}
	if job.EssayID == "" {
		return errors.New("grading job has no essay id")
	}

	ctx := context.Background()
	statusKey := fmt.Sprintf("essay:%s", job.EssayID)

	// Retrieve the full payload from Redis
	payloadKey := fmt.Sprintf("essay:%s:payload", job.EssayID)
	payloadBytes, err := w.db.Redis.Get(ctx, payloadKey).Bytes()
	if err != nil {
		w.markFailed(ctx, job.EssayID, statusKey)
		return fmt.Errorf("failed to get essay payload: %w", err)
	}

	// Mark the essay as being graded
	if _, err := w.db.DB.Exec("UPDATE essays SET status = $1 WHERE id = $2", models.StatusGrading, job.EssayID); err != nil {
		slog.Error("Failed to update essay status to grading in DB", "essay_id", job.EssayID, "error", err)
	}
	if err := w.db.Redis.Set(ctx, statusKey, models.StatusGrading, 0).Err(); err != nil {
		slog.Error("Failed to update Redis status to grading", "essay_id", job.EssayID, "error", err)
	}

	// The handler retries internally
	grade, err := w.handler.Grade(ctx, payloadBytes)
	if err != nil {
		slog.Error("Essay grading ultimately failed", "essay_id", job.EssayID, "error", err)
		w.markFailed(ctx, job.EssayID, statusKey)
		return err
	}

	if _, err := w.db.DB.Exec(
		"UPDATE essays SET status = $1, score = $2, feedback = $3, graded_at = $4 WHERE id = $5",
		models.StatusCompleted, grade.Score, grade.Feedback, time.Now().UTC(), job.EssayID,
	); err != nil {
		slog.Error("Failed to store essay grade in DB", "essay_id", job.EssayID, "error", err)
		return err
	}

	if err := w.db.Redis.Set(ctx, statusKey, models.StatusCompleted, 0).Err(); err != nil {
		slog.Error("Failed to update Redis status to completed", "essay_id", job.EssayID, "error", err)
	}

	slog.Info("Essay graded", "essay_id", job.EssayID, "score", grade.Score)
	return nil
}

func (w *Worker) markFailed(ctx context.Context, essayID, statusKey string) {
	if _, err := w.db.DB.Exec("UPDATE essays SET status = $1 WHERE id = $2", models.StatusFailed, essayID); err != nil {
		slog.Error("Failed to update essay status to failed in DB", "essay_id", essayID, "error", err)
	}
	if err := w.db.Redis.Set(ctx, statusKey, models.StatusFailed, 0).Err(); err != nil {
		slog.Error("Failed to update Redis status to failed", "essay_id", essayID, "error", err)
	}
}
