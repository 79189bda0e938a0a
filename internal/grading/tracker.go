package grading

import (
	"log/slog"
	"sync"
	"time"
)

// EssayStatus represents the current status of an essay grading job
type EssayStatus string

const (
	// StatusQueued indicates the essay was accepted and is waiting for a grader
	StatusQueued EssayStatus = "queued"
	// StatusExtracting indicates text is being extracted from the uploaded PDF
	StatusExtracting EssayStatus = "extracting"
	// StatusGrading indicates the grading model is scoring the essay
	StatusGrading EssayStatus = "grading"
	// StatusGraded indicates grading finished successfully
	StatusGraded EssayStatus = "graded"
	// StatusFailed indicates grading failed
	StatusFailed EssayStatus = "failed"
	// StatusRetrying indicates a failed step is being retried
	StatusRetrying EssayStatus = "retrying"
)

// GradingMetrics tracks aggregate numbers about essay grading
type GradingMetrics struct {
	TotalCount           int   `json:"totalCount"`
	SuccessCount         int   `json:"successCount"`
	FailureCount         int   `json:"failureCount"`
	RetryCount           int   `json:"retryCount"`
	AverageGradingTimeMs int64 `json:"averageGradingTimeMs"`
	TotalGradingTimeMs   int64 `json:"totalGradingTimeMs"`
}

// StatusUpdate represents a change in an essay's grading status
type StatusUpdate struct {
	EssayID    string      `json:"essayID"`
	Status     EssayStatus `json:"status"`
	Error      string      `json:"error,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	RetryCount int         `json:"retryCount,omitempty"`
}

// TrackerConfig holds configuration for the grading tracker
type TrackerConfig struct {
	// MaxRetries is the maximum number of retries for a failed grading attempt
	MaxRetries int
	// WebhookURL is the endpoint to notify when grading completes or fails
	WebhookURL string
	// WebhookEnabled determines whether to send webhook notifications
	WebhookEnabled bool
}

// DefaultTrackerConfig returns a default configuration
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		MaxRetries:     3,
		WebhookEnabled: false,
	}
}

// Tracker records the live status of every grading job in the worker and
// reports terminal transitions to the configured webhook.
type Tracker struct {
	statuses      map[string]StatusUpdate
	webhookClient WebhookClient
	metrics       GradingMetrics
	config        TrackerConfig
	started       map[string]time.Time
	mutex         sync.RWMutex
}

// NewTracker creates a new Tracker
func NewTracker(config TrackerConfig) *Tracker {
	var webhookClient WebhookClient
	if config.WebhookEnabled {
		webhookClient = &HTTPWebhookClient{}
	} else {
		webhookClient = &noopWebhookClient{}
	}

	return &Tracker{
		statuses:      make(map[string]StatusUpdate),
		webhookClient: webhookClient,
		config:        config,
		started:       make(map[string]time.Time),
	}
}

// noopWebhookClient is used when webhooks are disabled
type noopWebhookClient struct{}

func (c *noopWebhookClient) Send(url string, data interface{}) error {
	return nil
}

// UpdateStatus records a status transition for an essay.
func (t *Tracker) UpdateStatus(essayID string, status EssayStatus, err error) {
	t.mutex.Lock()

	update := StatusUpdate{
		EssayID:   essayID,
		Status:    status,
		Timestamp: time.Now(),
	}
	if err != nil {
		update.Error = err.Error()
	}

	prev, exists := t.statuses[essayID]
	if status == StatusRetrying && exists {
		update.RetryCount = prev.RetryCount + 1
	} else if exists {
		update.RetryCount = prev.RetryCount
	}

	if status == StatusQueued {
		t.started[essayID] = update.Timestamp
	}

	t.statuses[essayID] = update
	t.updateMetrics(update)

	webhookURL := ""
	if t.config.WebhookEnabled && (status == StatusGraded || status == StatusFailed) {
		webhookURL = t.config.WebhookURL
	}
	t.mutex.Unlock()

	// Webhook delivery happens outside the lock; a slow endpoint must not
	// block status updates.
	if webhookURL != "" {
		if werr := t.webhookClient.Send(webhookURL, update); werr != nil {
			// Delivery failures are non-fatal
			slog.Warn("Webhook notification failed", "essay_id", essayID, "error", werr)
		}
	}
}

// GetStatus returns the last recorded status for an essay.
func (t *Tracker) GetStatus(essayID string) (StatusUpdate, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	update, ok := t.statuses[essayID]
	return update, ok
}

// Metrics returns a snapshot of the aggregate grading metrics.
func (t *Tracker) Metrics() GradingMetrics {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.metrics
}

// updateMetrics must be called with the lock held.
func (t *Tracker) updateMetrics(update StatusUpdate) {
	switch update.Status {
	case StatusQueued:
		t.metrics.TotalCount++
	case StatusRetrying:
		t.metrics.RetryCount++
	case StatusGraded:
		t.metrics.SuccessCount++
		if start, ok := t.started[update.EssayID]; ok {
			elapsed := update.Timestamp.Sub(start).Milliseconds()
			t.metrics.TotalGradingTimeMs += elapsed
			if t.metrics.SuccessCount > 0 {
				t.metrics.AverageGradingTimeMs = t.metrics.TotalGradingTimeMs / int64(t.metrics.SuccessCount)
			}
			delete(t.started, update.EssayID)
		}
	case StatusFailed:
		t.metrics.FailureCount++
	}
}
