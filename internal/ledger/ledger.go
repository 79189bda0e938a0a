package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/passaenem/passa-enem-api/internal/models"
)

var (
	ErrProfileNotFound     = errors.New("profile not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// Ledger applies the entitlement operations to profiles: credit adjustments,
// plan activation/revocation, and the two periodic sweeps. All writes are
// single statements; the sweeps deliberately issue one independent write per
// row with no rollback across rows.
type Ledger struct {
	db          *sqlx.DB
	freeCredits int
	proCredits  int
}

func New(db *sqlx.DB, freeCredits, proCredits int) *Ledger {
	return &Ledger{
		db:          db,
		freeCredits: freeCredits,
		proCredits:  proCredits,
	}
}

// SweepResult reports which rows a sweep touched and which writes failed.
// Failed rows are left as-is; the next sweep picks them up again.
type SweepResult struct {
	Updated []string `json:"updated"`
	Failed  []string `json:"failed"`
}

// CeilingFor returns the renewal credit ceiling for a plan tier.
func (l *Ledger) CeilingFor(planType string) int {
	if planType == models.PlanPro {
		return l.proCredits
	}
	return l.freeCredits
}

// AdjustCredits applies a signed delta to a user's balance and returns the new
// balance. The clamp at zero happens inside the UPDATE expression, so the
// operation is atomic and the balance can never go negative however large a
// negative delta is.
func (l *Ledger) AdjustCredits(userID string, delta int) (int, error) {
	var newCredits int
	err := l.db.Get(&newCredits,
		`UPDATE profiles SET credits = GREATEST(0, credits + $1) WHERE id = $2 RETURNING credits`,
		delta, userID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrProfileNotFound
		}
		return 0, fmt.Errorf("failed to adjust credits: %w", err)
	}
	return newCredits, nil
}

// ConsumeCredit spends one credit, failing when the balance is already zero.
// The balance check and decrement are one conditional UPDATE.
func (l *Ledger) ConsumeCredit(userID string) (int, error) {
	var remaining int
	err := l.db.Get(&remaining,
		`UPDATE profiles SET credits = credits - 1 WHERE id = $1 AND credits > 0 RETURNING credits`,
		userID,
	)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to consume credit: %w", err)
	}

	// No row matched: either the profile is missing or the balance is zero.
	var exists bool
	if err := l.db.Get(&exists, `SELECT EXISTS(SELECT 1 FROM profiles WHERE id = $1)`, userID); err != nil {
		return 0, fmt.Errorf("failed to check profile: %w", err)
	}
	if !exists {
		return 0, ErrProfileNotFound
	}
	return 0, ErrInsufficientCredits
}

// GrantPro activates the pro plan until now+days. Re-granting re-anchors the
// expiry at the new date; durations do not stack. plan_started_at is preserved
// when the user is already pro.
func (l *Ledger) GrantPro(userID string, days int) (time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.AddDate(0, 0, days)

	res, err := l.db.Exec(
		`UPDATE profiles
		 SET plan_type = $1,
		     plan_expires_at = $2,
		     plan_started_at = CASE WHEN plan_type = $1 THEN plan_started_at ELSE $3 END
		 WHERE id = $4`,
		models.PlanPro, expiresAt, now, userID,
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to grant pro plan: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return time.Time{}, ErrProfileNotFound
	}
	return expiresAt, nil
}

// RevokePro downgrades the user to the free plan and clears the plan window.
// Revoking an already-free user is a no-op in effect.
func (l *Ledger) RevokePro(userID string) error {
	res, err := l.db.Exec(
		`UPDATE profiles SET plan_type = $1, plan_expires_at = NULL, plan_started_at = NULL WHERE id = $2`,
		models.PlanFree, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke pro plan: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// ExpirePlans downgrades every pro profile whose expiry has passed. Each
// downgrade is an independent write; failures are collected and logged, never
// retried or rolled back.
func (l *Ledger) ExpirePlans(now time.Time) (SweepResult, error) {
	var ids []string
	err := l.db.Select(&ids,
		`SELECT id FROM profiles WHERE plan_type = $1 AND plan_expires_at < $2`,
		models.PlanPro, now,
	)
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to scan expired plans: %w", err)
	}

	result := SweepResult{Updated: []string{}, Failed: []string{}}
	for _, id := range ids {
		_, err := l.db.Exec(
			`UPDATE profiles SET plan_type = $1, plan_expires_at = NULL, plan_started_at = NULL WHERE id = $2`,
			models.PlanFree, id,
		)
		if err != nil {
			slog.Error("Failed to expire plan", "user_id", id, "error", err)
			result.Failed = append(result.Failed, id)
			continue
		}
		result.Updated = append(result.Updated, id)
	}
	return result, nil
}

// renewalCandidate is one row of the renewal scan.
type renewalCandidate struct {
	ID       string `db:"id"`
	PlanType string `db:"plan_type"`
}

// RenewCredits resets the balance of every profile whose last renewal is
// older than the interval (or that was never renewed) to its plan ceiling.
// Unused credits do not roll over; the balance is overwritten.
func (l *Ledger) RenewCredits(now time.Time, interval time.Duration) (SweepResult, error) {
	cutoff := now.Add(-interval)

	var candidates []renewalCandidate
	err := l.db.Select(&candidates,
		`SELECT id, plan_type FROM profiles WHERE last_reset IS NULL OR last_reset < $1`,
		cutoff,
	)
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to scan renewal candidates: %w", err)
	}

	result := SweepResult{Updated: []string{}, Failed: []string{}}
	for _, c := range candidates {
		_, err := l.db.Exec(
			`UPDATE profiles SET credits = $1, last_reset = $2 WHERE id = $3`,
			l.CeilingFor(c.PlanType), now, c.ID,
		)
		if err != nil {
			slog.Error("Failed to renew credits", "user_id", c.ID, "error", err)
			result.Failed = append(result.Failed, c.ID)
			continue
		}
		result.Updated = append(result.Updated, c.ID)
	}
	return result, nil
}

// GetProfile fetches a single profile.
func (l *Ledger) GetProfile(userID string) (models.Profile, error) {
	var p models.Profile
	err := l.db.Get(&p, `SELECT * FROM profiles WHERE id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Profile{}, ErrProfileNotFound
		}
		return models.Profile{}, fmt.Errorf("failed to fetch profile: %w", err)
	}
	return p, nil
}
