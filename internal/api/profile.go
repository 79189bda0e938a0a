package api

import (
	"database/sql"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/passaenem/passa-enem-api/internal/ledger"
	"github.com/passaenem/passa-enem-api/internal/models"
)

// handleCreateProfile creates the entitlement profile when a user registers.
// New profiles start on the free plan with the free credit ceiling.
func (s *Server) handleCreateProfile(c *fiber.Ctx) error {
	var req models.NewProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "User ID is required",
		})
	}

	slog.Info("Creating profile for user", "user_id", req.UserID)

	// Check if profile already exists
	var count int
	err := s.db.DB.Get(&count, "SELECT COUNT(*) FROM profiles WHERE id = $1", req.UserID)
	if err != nil {
		slog.Error("Failed to check for existing profile", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check for existing profile",
		})
	}

	if count > 0 {
		slog.Info("Profile already exists for user", "user_id", req.UserID)
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Profile already exists for this user",
		})
	}

	_, err = s.db.DB.Exec(
		`INSERT INTO profiles (id, plan_type, credits) VALUES ($1, $2, $3)`,
		req.UserID, models.PlanFree, s.cfg.Plans.FreeCredits,
	)
	if err != nil {
		slog.Error("Failed to create profile", "error", err, "user_id", req.UserID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create profile",
		})
	}

	// Fetch the complete profile with the database defaults applied
	var profile models.Profile
	err = s.db.DB.Get(&profile, "SELECT * FROM profiles WHERE id = $1", req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			slog.Error("Profile not found after creation", "user_id", req.UserID)
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Profile not found after creation",
			})
		}
		slog.Error("Failed to fetch created profile", "error", err, "user_id", req.UserID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch created profile",
		})
	}

	slog.Info("Profile created successfully", "user_id", req.UserID)

	return c.Status(fiber.StatusCreated).JSON(models.NewProfileResponse{
		Profile: profile,
		Success: true,
	})
}

// handleGetProfile returns a profile; users can only read their own unless
// they are the administrator.
func (s *Server) handleGetProfile(c *fiber.Ctx) error {
	profileID := c.Params("id")

	callerID, ok := s.currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}
	if callerID != profileID && !s.isAdmin(callerID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Cannot access another user's profile",
		})
	}

	profile, err := s.ledger.GetProfile(profileID)
	if err != nil {
		if errors.Is(err, ledger.ErrProfileNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Profile not found",
			})
		}
		slog.Error("Failed to fetch profile", "error", err, "user_id", profileID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch profile",
		})
	}

	return c.JSON(fiber.Map{"profile": profile})
}
