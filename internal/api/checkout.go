package api

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/passaenem/passa-enem-api/internal/ledger"
	"github.com/passaenem/passa-enem-api/internal/models"
	"github.com/passaenem/passa-enem-api/internal/payment"
)

// handleCheckoutSync confirms a payment with the provider and activates the
// pro plan. The payment's external reference must match the user being
// activated, and a payment ID is only ever processed once.
func (s *Server) handleCheckoutSync(c *fiber.Ctx) error {
	var req struct {
		PaymentID string `json:"paymentId"`
		UserID    string `json:"userId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.PaymentID == "" || req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "paymentId and userId are required",
		})
	}

	callerID, ok := s.currentUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}
	if callerID != req.UserID && !s.isAdmin(callerID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Cannot sync another user's payment",
		})
	}

	p, err := s.payments.GetPayment(c.Context(), req.PaymentID)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Payment not found",
			})
		}
		slog.Error("Payment provider lookup failed", "error", err, "payment_id", req.PaymentID)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Payment provider unavailable",
		})
	}

	// The payment must have been created for this user
	if p.ExternalReference != req.UserID {
		slog.Warn("Payment reference mismatch", "payment_id", req.PaymentID, "user_id", req.UserID, "external_reference", p.ExternalReference)
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Payment does not belong to this user",
		})
	}

	if !p.Approved() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("Payment is not approved (status: %s)", p.Status),
		})
	}

	// A payment activates a plan exactly once
	var record models.PaymentRecord
	err = s.db.DB.Get(&record, "SELECT * FROM payments WHERE id = $1", req.PaymentID)
	if err == nil {
		slog.Info("Payment already processed", "payment_id", record.ID, "processed_at", record.ProcessedAt)
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Payment already processed",
		})
	}
	if !errors.Is(err, sql.ErrNoRows) {
		slog.Error("Failed to check payment record", "error", err, "payment_id", req.PaymentID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check payment record",
		})
	}

	expiresAt, err := s.ledger.GrantPro(req.UserID, s.cfg.Plans.ProDurationDays)
	if err != nil {
		if errors.Is(err, ledger.ErrProfileNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Profile not found",
			})
		}
		slog.Error("Failed to activate pro plan", "error", err, "user_id", req.UserID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to activate pro plan",
		})
	}

	// The plan is already active at this point; a failed record insert is
	// logged and the next sync of the same payment re-inserts it.
	_, err = s.db.DB.Exec(
		`INSERT INTO payments (id, user_id, status) VALUES ($1, $2, $3)`,
		req.PaymentID, req.UserID, p.Status,
	)
	if err != nil {
		slog.Error("Failed to record payment", "error", err, "payment_id", req.PaymentID)
	}

	slog.Info("Pro plan activated from payment", "user_id", req.UserID, "payment_id", req.PaymentID, "expires_at", expiresAt)

	return c.JSON(fiber.Map{
		"success": true,
		"message": fmt.Sprintf("Pro plan activated until %s", expiresAt.Format("2006-01-02")),
	})
}
