package api

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// handleExpirePlans downgrades every pro profile whose expiry has passed.
// Rows that fail to update are reported and left for the next sweep.
func (s *Server) handleExpirePlans(c *fiber.Ctx) error {
	result, err := s.ledger.ExpirePlans(time.Now().UTC())
	if err != nil {
		slog.Error("Expiry sweep failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to scan expired plans",
		})
	}

	slog.Info("Expiry sweep completed", "downgraded", len(result.Updated), "failed", len(result.Failed))

	return c.JSON(fiber.Map{
		"success": true,
		"message": fmt.Sprintf("Downgraded %d expired plans", len(result.Updated)),
		"users":   result.Updated,
		"failed":  result.Failed,
	})
}

// handleRenewCredits resets stale balances to the plan ceiling. Unused
// credits do not roll over.
func (s *Server) handleRenewCredits(c *fiber.Ctx) error {
	result, err := s.ledger.RenewCredits(time.Now().UTC(), s.cfg.Plans.RenewalInterval)
	if err != nil {
		slog.Error("Renewal sweep failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to scan renewal candidates",
		})
	}

	slog.Info("Renewal sweep completed", "renewed", len(result.Updated), "failed", len(result.Failed))

	return c.JSON(fiber.Map{
		"success":       true,
		"message":       fmt.Sprintf("Renewed credits for %d profiles", len(result.Updated)),
		"renewed_count": len(result.Updated),
		"failed":        result.Failed,
	})
}
