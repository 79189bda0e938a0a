package api

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/passaenem/passa-enem-api/internal/ledger"
	"github.com/passaenem/passa-enem-api/internal/models"
)

// handleAdminCredits applies a signed credit adjustment to a user's balance.
// Positive amounts grant, negative amounts consume; the result never goes
// below zero.
func (s *Server) handleAdminCredits(c *fiber.Ctx) error {
	var req struct {
		TargetUserID string `json:"targetUserId"`
		Amount       *int   `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.TargetUserID == "" || req.Amount == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "targetUserId and amount are required",
		})
	}

	newCredits, err := s.ledger.AdjustCredits(req.TargetUserID, *req.Amount)
	if err != nil {
		if errors.Is(err, ledger.ErrProfileNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Profile not found",
			})
		}
		slog.Error("Failed to adjust credits", "error", err, "user_id", req.TargetUserID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update credits",
		})
	}

	slog.Info("Credits adjusted", "user_id", req.TargetUserID, "amount", *req.Amount, "new_credits", newCredits)

	return c.JSON(fiber.Map{
		"success":    true,
		"newCredits": newCredits,
	})
}

// handleGrantPro activates the pro plan for a user for the given number of
// days. Re-granting re-anchors the expiry; it does not stack.
func (s *Server) handleGrantPro(c *fiber.Ctx) error {
	var req struct {
		UserID string `json:"userId"`
		Days   *int   `json:"days"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.UserID == "" || req.Days == nil || *req.Days <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "userId and a positive days value are required",
		})
	}

	expiresAt, err := s.ledger.GrantPro(req.UserID, *req.Days)
	if err != nil {
		if errors.Is(err, ledger.ErrProfileNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Profile not found",
			})
		}
		slog.Error("Failed to grant pro plan", "error", err, "user_id", req.UserID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to grant pro plan",
		})
	}

	slog.Info("Pro plan granted", "user_id", req.UserID, "days", *req.Days, "expires_at", expiresAt)

	return c.JSON(fiber.Map{
		"success":   true,
		"newPlan":   models.PlanPro,
		"expiresAt": expiresAt.Format(time.RFC3339),
	})
}

// handleRevokePro downgrades a user back to the free plan.
func (s *Server) handleRevokePro(c *fiber.Ctx) error {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "userId is required",
		})
	}

	if err := s.ledger.RevokePro(req.UserID); err != nil {
		if errors.Is(err, ledger.ErrProfileNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Profile not found",
			})
		}
		slog.Error("Failed to revoke pro plan", "error", err, "user_id", req.UserID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to revoke pro plan",
		})
	}

	slog.Info("Pro plan revoked", "user_id", req.UserID)

	return c.JSON(fiber.Map{
		"success": true,
		"newPlan": models.PlanFree,
	})
}
