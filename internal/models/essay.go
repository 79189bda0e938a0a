package models

import "time"

// Essay lifecycle statuses as stored in Postgres. Redis may hold a fresher
// value while the worker is running.
const (
	StatusPending   = "pending"
	StatusGrading   = "grading"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Essay is a submitted essay and, once graded, its result.
type Essay struct {
	ID        string     `json:"id" db:"id"`
	UserID    string     `json:"user_id" db:"user_id"`
	Theme     string     `json:"theme" db:"theme"`
	Status    string     `json:"status" db:"status"`
	Score     *int       `json:"score" db:"score"`
	Feedback  *string    `json:"feedback" db:"feedback"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	GradedAt  *time.Time `json:"graded_at" db:"graded_at"`
}

// GradeEssayPayload is the full job payload handed to the worker via Redis.
// Exactly one of Content or PDFPath is set.
type GradeEssayPayload struct {
	EssayID string `json:"essay_id"`
	UserID  string `json:"user_id"`
	Theme   string `json:"theme"`
	Content string `json:"content,omitempty"`
	PDFPath string `json:"pdf_path,omitempty"`
}

// GradingJob is the lightweight message published to Kafka; the payload
// itself travels through Redis.
type GradingJob struct {
	EssayID string `json:"essay_id"`
}

// GradeResult is what the grading model returns for an essay.
type GradeResult struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}
