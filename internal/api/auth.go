package api

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/passaenem/passa-enem-api/internal/pkg/supabase"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"type"`
	UserID    string `json:"user_id"`
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	// Validate required fields
	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email and password are required",
		})
	}

	slog.Info("Authentication attempt", "email", req.Email)

	// Validate credentials with Supabase
	userID, err := s.auth.ValidateCredentials(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, supabase.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid credentials",
			})
		}

		slog.Error("Authentication error", "error", err)

		errorMessage := "Authentication service error"
		if s.cfg.Server.Environment != "production" {
			// In non-production environments, include error details
			errorMessage = fmt.Sprintf("Authentication error: %v", err)
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": errorMessage,
		})
	}

	// Generate JWT token
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"email": req.Email,
		"exp":   time.Now().Add(s.cfg.JWT.Expiration).Unix(),
		"iat":   time.Now().Unix(),
	})

	tokenString, err := token.SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	slog.Info("User successfully authenticated", "email", req.Email, "user_id", userID)

	return c.JSON(LoginResponse{
		Token:     tokenString,
		TokenType: "Bearer",
		UserID:    userID,
	})
}
