package grading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/passaenem/passa-enem-api/internal/ai"
	"github.com/passaenem/passa-enem-api/internal/models"
	"github.com/passaenem/passa-enem-api/internal/pdf"
)

// Handler runs one grading job end to end: optional PDF text extraction, then
// scoring by the grading model, with bounded retries tracked per essay.
type Handler struct {
	grader    ai.Grader
	extractor pdf.Extractor
	tracker   *Tracker
}

func NewHandler(grader ai.Grader, extractor pdf.Extractor, tracker *Tracker) *Handler {
	return &Handler{
		grader:    grader,
		extractor: extractor,
		tracker:   tracker,
	}
}

// Grade processes a grading payload and returns the essay's score.
func (h *Handler) Grade(ctx context.Context, payload []byte) (models.GradeResult, error) {
	var p models.GradeEssayPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return models.GradeResult{}, fmt.Errorf("failed to unmarshal grading payload: %w", err)
	}
	if p.EssayID == "" {
		return models.GradeResult{}, errors.New("essay_id is required")
	}
	if p.Content == "" && p.PDFPath == "" {
		return models.GradeResult{}, errors.New("essay has neither content nor a stored PDF")
	}

	h.tracker.UpdateStatus(p.EssayID, StatusQueued, nil)

	var finalErr error
	maxAttempts := h.tracker.config.MaxRetries + 1 // +1 for the initial attempt
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			h.tracker.UpdateStatus(p.EssayID, StatusRetrying, nil)
			time.Sleep(100 * time.Millisecond)
		}

		text := p.Content
		if text == "" {
			h.tracker.UpdateStatus(p.EssayID, StatusExtracting, nil)
			extracted, err := h.extractor.ExtractText(ctx, p.PDFPath)
			if err != nil {
				finalErr = fmt.Errorf("text extraction error: %w", err)
				h.tracker.UpdateStatus(p.EssayID, StatusFailed, finalErr)
				continue
			}
			text = extracted
		}

		h.tracker.UpdateStatus(p.EssayID, StatusGrading, nil)
		grade, err := h.grader.GradeEssay(ctx, p.Theme, text)
		if err != nil {
			finalErr = fmt.Errorf("grading error: %w", err)
			h.tracker.UpdateStatus(p.EssayID, StatusFailed, finalErr)
			continue
		}

		h.tracker.UpdateStatus(p.EssayID, StatusGraded, nil)
		return grade, nil
	}

	return models.GradeResult{}, finalErr
}
