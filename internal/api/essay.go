package api

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/passaenem/passa-enem-api/internal/models"
)

// handleSubmitEssay accepts an essay as plain text or as a PDF (URL or
// base64), stores it, and queues an asynchronous grading job.
func (s *Server) handleSubmitEssay(c *fiber.Ctx) error {
	ctx := c.Context()

	var req struct {
		Theme     string `json:"theme"`
		Content   string `json:"content"`
		PDFSource string `json:"pdfSource"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Theme == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Theme is required",
		})
	}
	if req.Content == "" && req.PDFSource == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Either content or pdfSource is required",
		})
	}

	userID, ok := s.currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	// Store the PDF when the essay came as a document
	var pdfPath string
	if req.PDFSource != "" {
		var err error
		if strings.HasPrefix(req.PDFSource, "http://") || strings.HasPrefix(req.PDFSource, "https://") {
			pdfPath, err = s.uploads.StoreFromURL(ctx, req.PDFSource)
		} else {
			pdfData, decErr := base64.StdEncoding.DecodeString(req.PDFSource)
			if decErr != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid base64-encoded PDF data",
				})
			}
			pdfPath, err = s.uploads.StoreFromBytes(ctx, pdfData)
		}
		if err != nil {
			slog.Error("Failed to store essay PDF", "error", err, "user_id", userID)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to store essay PDF",
			})
		}
	}

	essay := models.Essay{
		ID:        uuid.NewString(),
		UserID:    userID,
		Theme:     req.Theme,
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.DB.Exec(
		`INSERT INTO essays (id, user_id, theme, status, created_at) VALUES ($1, $2, $3, $4, $5)`,
		essay.ID, essay.UserID, essay.Theme, essay.Status, essay.CreatedAt,
	)
	if err != nil {
		slog.Error("Failed to insert essay", "error", err, "user_id", userID)
		if pdfPath != "" {
			_ = s.uploads.Delete(ctx, pdfPath)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create essay",
		})
	}

	// Hand the full payload to the worker through Redis
	payload := models.GradeEssayPayload{
		EssayID: essay.ID,
		UserID:  userID,
		Theme:   req.Theme,
		Content: req.Content,
		PDFPath: pdfPath,
	}
	payloadBytes, _ := json.Marshal(payload)
	payloadKey := fmt.Sprintf("essay:%s:payload", essay.ID)
	if err := s.db.Redis.Set(ctx, payloadKey, payloadBytes, s.cfg.Uploads.TTL).Err(); err != nil {
		slog.Error("Failed to store essay payload", "error", err, "essay_id", essay.ID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to queue essay",
		})
	}

	statusKey := fmt.Sprintf("essay:%s", essay.ID)
	if err := s.db.Redis.Set(ctx, statusKey, models.StatusPending, 0).Err(); err != nil {
		slog.Error("Failed to set essay status", "error", err, "essay_id", essay.ID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to set essay status",
		})
	}

	// Send to Kafka
	jobBytes, _ := json.Marshal(models.GradingJob{EssayID: essay.ID})
	msg := &sarama.ProducerMessage{
		Topic: s.cfg.Kafka.Topic,
		Value: sarama.StringEncoder(jobBytes),
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		slog.Error("Failed to queue grading job", "error", err, "essay_id", essay.ID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to queue grading job",
		})
	}

	return c.JSON(fiber.Map{
		"essay": essay,
	})
}

// handleGetEssay returns an essay with its live grading status.
func (s *Server) handleGetEssay(c *fiber.Ctx) error {
	essayID := c.Params("id")

	callerID, ok := s.currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	var essay models.Essay
	err := s.db.DB.Get(&essay, "SELECT * FROM essays WHERE id = $1", essayID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Essay not found",
			})
		}
		slog.Error("Failed to fetch essay", "error", err, "essay_id", essayID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch essay",
		})
	}

	if essay.UserID != callerID && !s.isAdmin(callerID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Cannot access another user's essay",
		})
	}

	// Update status from Redis
	statusKey := fmt.Sprintf("essay:%s", essay.ID)
	if redisStatus, err := s.db.Redis.Get(c.Context(), statusKey).Result(); err == nil {
		essay.Status = redisStatus
	}

	return c.JSON(fiber.Map{"essay": essay})
}
