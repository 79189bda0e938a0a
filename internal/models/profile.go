package models

import (
	"time"
)

// Plan tiers. The tier determines the credit ceiling applied at renewal.
const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// Profile represents a user's entitlement record. It is created once at
// registration and mutated only through the ledger operations.
type Profile struct {
	ID            string     `json:"id" db:"id"` // UUID that matches auth.users.id
	PlanType      string     `json:"plan_type" db:"plan_type"`
	Credits       int        `json:"credits" db:"credits"`
	LastReset     *time.Time `json:"last_reset" db:"last_reset"` // nil means never renewed
	PlanStartedAt *time.Time `json:"plan_started_at" db:"plan_started_at"`
	PlanExpiresAt *time.Time `json:"plan_expires_at" db:"plan_expires_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// NewProfileRequest is the request structure for creating a new profile
type NewProfileRequest struct {
	UserID string `json:"user_id"` // The user ID from Supabase auth
}

// NewProfileResponse is the response structure when a profile is created
type NewProfileResponse struct {
	Profile Profile `json:"profile"`
	Success bool    `json:"success"`
}
