package grading

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/passaenem/passa-enem-api/internal/models"
)

type stubGrader struct {
	grade    models.GradeResult
	failures int // number of calls that fail before succeeding
	calls    int
}

func (s *stubGrader) GradeEssay(ctx context.Context, theme, text string) (models.GradeResult, error) {
	s.calls++
	if s.calls <= s.failures {
		return models.GradeResult{}, errors.New("model overloaded")
	}
	return s.grade, nil
}

type stubExtractor struct {
	text string
	err  error
}

func (s *stubExtractor) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	return s.text, s.err
}

func marshalPayload(t *testing.T, p models.GradeEssayPayload) []byte {
	b, err := json.Marshal(p)
	assert.NoError(t, err)
	return b
}

func TestGradeWithContent(t *testing.T) {
	grader := &stubGrader{grade: models.GradeResult{Score: 880, Feedback: "Muito bom."}}
	handler := NewHandler(grader, &stubExtractor{}, NewTracker(DefaultTrackerConfig()))

	payload := marshalPayload(t, models.GradeEssayPayload{
		EssayID: "essay-1",
		UserID:  "user-1",
		Theme:   "Mobilidade urbana",
		Content: "Texto da redação...",
	})

	grade, err := handler.Grade(context.Background(), payload)
	assert.NoError(t, err)
	assert.Equal(t, 880, grade.Score)
	assert.Equal(t, 1, grader.calls)
}

func TestGradeWithPDFExtraction(t *testing.T) {
	grader := &stubGrader{grade: models.GradeResult{Score: 640}}
	extractor := &stubExtractor{text: "texto extraído do PDF"}
	tracker := NewTracker(DefaultTrackerConfig())
	handler := NewHandler(grader, extractor, tracker)

	payload := marshalPayload(t, models.GradeEssayPayload{
		EssayID: "essay-2",
		Theme:   "Evasão escolar",
		PDFPath: "/tmp/essay-2.pdf",
	})

	grade, err := handler.Grade(context.Background(), payload)
	assert.NoError(t, err)
	assert.Equal(t, 640, grade.Score)

	status, ok := tracker.GetStatus("essay-2")
	assert.True(t, ok)
	assert.Equal(t, StatusGraded, status.Status)
}

func TestGradeRetriesThenSucceeds(t *testing.T) {
	grader := &stubGrader{grade: models.GradeResult{Score: 700}, failures: 2}
	tracker := NewTracker(TrackerConfig{MaxRetries: 3})
	handler := NewHandler(grader, &stubExtractor{}, tracker)

	payload := marshalPayload(t, models.GradeEssayPayload{
		EssayID: "essay-3",
		Theme:   "Tema",
		Content: "Texto",
	})

	grade, err := handler.Grade(context.Background(), payload)
	assert.NoError(t, err)
	assert.Equal(t, 700, grade.Score)
	assert.Equal(t, 3, grader.calls)
	assert.Equal(t, 2, tracker.Metrics().RetryCount)
}

func TestGradeExhaustsRetries(t *testing.T) {
	grader := &stubGrader{failures: 10}
	tracker := NewTracker(TrackerConfig{MaxRetries: 1})
	handler := NewHandler(grader, &stubExtractor{}, tracker)

	payload := marshalPayload(t, models.GradeEssayPayload{
		EssayID: "essay-4",
		Theme:   "Tema",
		Content: "Texto",
	})

	_, err := handler.Grade(context.Background(), payload)
	assert.Error(t, err)
	assert.Equal(t, 2, grader.calls) // initial attempt + 1 retry

	status, _ := tracker.GetStatus("essay-4")
	assert.Equal(t, StatusFailed, status.Status)
}

func TestGradeRejectsEmptyPayload(t *testing.T) {
	handler := NewHandler(&stubGrader{}, &stubExtractor{}, NewTracker(DefaultTrackerConfig()))

	_, err := handler.Grade(context.Background(), marshalPayload(t, models.GradeEssayPayload{
		EssayID: "essay-5",
	}))
	assert.Error(t, err)

	_, err = handler.Grade(context.Background(), marshalPayload(t, models.GradeEssayPayload{
		Content: "texto sem id",
	}))
	assert.Error(t, err)
}
