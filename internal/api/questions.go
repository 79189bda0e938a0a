package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/passaenem/passa-enem-api/internal/ai"
	"github.com/passaenem/passa-enem-api/internal/ledger"
)

// handleGenerateQuestions spends one credit and returns AI-generated practice
// questions for a subject.
func (s *Server) handleGenerateQuestions(c *fiber.Ctx) error {
	var req struct {
		Subject string `json:"subject"`
		Count   int    `json:"count"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Subject == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Subject is required",
		})
	}
	if req.Count <= 0 {
		req.Count = s.cfg.AI.QuestionCount
	}

	userID, ok := s.currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	remaining, err := s.ledger.ConsumeCredit(userID)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"error": "Out of credits",
			})
		}
		if errors.Is(err, ledger.ErrProfileNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Profile not found",
			})
		}
		slog.Error("Failed to consume credit", "error", err, "user_id", userID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to consume credit",
		})
	}

	questions, err := s.gen.GenerateQuestions(c.Context(), req.Subject, req.Count)
	if err != nil {
		slog.Error("Question generation failed", "error", err, "user_id", userID, "subject", req.Subject)
		if errors.Is(err, ai.ErrParse) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "AI response could not be parsed",
			})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Question generation failed",
		})
	}

	return c.JSON(fiber.Map{
		"questions":        questions,
		"remainingCredits": remaining,
	})
}

// handleEssayTheme returns an AI-generated essay theme with supporting text.
func (s *Server) handleEssayTheme(c *fiber.Ctx) error {
	theme, err := s.gen.GenerateEssayTheme(c.Context())
	if err != nil {
		slog.Error("Essay theme generation failed", "error", err)
		if errors.Is(err, ai.ErrParse) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "AI response could not be parsed",
			})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Essay theme generation failed",
		})
	}

	return c.JSON(theme)
}
