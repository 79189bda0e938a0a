package models

import "time"

// PaymentRecord marks a provider payment as processed so a retried checkout
// sync cannot activate the same plan twice.
type PaymentRecord struct {
	ID          string    `json:"id" db:"id"` // provider payment id
	UserID      string    `json:"user_id" db:"user_id"`
	Status      string    `json:"status" db:"status"`
	ProcessedAt time.Time `json:"processed_at" db:"processed_at"`
}
