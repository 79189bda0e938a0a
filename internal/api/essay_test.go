package api

import (
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/IBM/sarama"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/passaenem/passa-enem-api/internal/models"
)

func TestSubmitEssayWithContent(t *testing.T) {
	s, mock, mr, producer := setupTestServer(t)

	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT INTO essays (id, user_id, theme, status, created_at) VALUES ($1, $2, $3, $4, $5)`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	var published models.GradingJob
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		return json.Unmarshal(val, &published)
	})

	req := authedRequest(t, http.MethodPost, "/api/essay/submit",
		`{"theme":"Os desafios da mobilidade urbana","content":"A mobilidade urbana no Brasil..."}`, testUserID)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	essayID := gjson.GetBytes(body, "essay.id").String()
	require.NotEmpty(t, essayID)
	assert.Equal(t, models.StatusPending, gjson.GetBytes(body, "essay.status").String())
	assert.Equal(t, testUserID, gjson.GetBytes(body, "essay.user_id").String())

	// The worker's payload and status key were written to Redis
	payloadRaw, err := mr.Get("essay:" + essayID + ":payload")
	require.NoError(t, err)
	var payload models.GradeEssayPayload
	require.NoError(t, json.Unmarshal([]byte(payloadRaw), &payload))
	assert.Equal(t, essayID, payload.EssayID)
	assert.Equal(t, "A mobilidade urbana no Brasil...", payload.Content)
	assert.Empty(t, payload.PDFPath)

	status, err := mr.Get("essay:" + essayID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, status)

	// The Kafka job carries only the essay ID
	assert.Equal(t, essayID, published.EssayID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitEssayValidation(t *testing.T) {
	s, _, _, _ := setupTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing theme", `{"content":"texto"}`},
		{"missing content and pdf", `{"theme":"tema"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := authedRequest(t, http.MethodPost, "/api/essay/submit", tt.body, testUserID)
			resp, err := s.app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestSubmitEssayRejectsBadBase64(t *testing.T) {
	s, _, _, _ := setupTestServer(t)

	req := authedRequest(t, http.MethodPost, "/api/essay/submit",
		`{"theme":"tema","pdfSource":"%%%not-base64%%%"}`, testUserID)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSubmitEssayKafkaFailure(t *testing.T) {
	s, mock, _, producer := setupTestServer(t)

	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT INTO essays (id, user_id, theme, status, created_at) VALUES ($1, $2, $3, $4, $5)`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	req := authedRequest(t, http.MethodPost, "/api/essay/submit",
		`{"theme":"tema","content":"texto"}`, testUserID)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestGetEssayUsesRedisStatus(t *testing.T) {
	s, mock, mr, _ := setupTestServer(t)

	created := time.Now().UTC().Add(-time.Minute)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM essays WHERE id = $1`)).
		WithArgs("essay-1").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "user_id", "theme", "status", "score", "feedback", "created_at", "graded_at"}).
			AddRow("essay-1", testUserID, "tema", models.StatusPending, nil, nil, created, nil))

	// Redis already knows the worker picked it up
	require.NoError(t, mr.Set("essay:essay-1", models.StatusGrading))

	req := authedRequest(t, http.MethodGet, "/api/essay/essay-1", "", testUserID)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, models.StatusGrading, gjson.GetBytes(body, "essay.status").String())
}

func TestGetEssayForbiddenForOtherUsers(t *testing.T) {
	s, mock, _, _ := setupTestServer(t)

	created := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM essays WHERE id = $1`)).
		WithArgs("essay-1").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "user_id", "theme", "status", "score", "feedback", "created_at", "graded_at"}).
			AddRow("essay-1", "someone-else", "tema", models.StatusCompleted, 800, "Bom texto.", created, created))

	req := authedRequest(t, http.MethodGet, "/api/essay/essay-1", "", testUserID)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestGetEssayAdminCanReadAny(t *testing.T) {
	s, mock, _, _ := setupTestServer(t)

	created := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM essays WHERE id = $1`)).
		WithArgs("essay-1").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "user_id", "theme", "status", "score", "feedback", "created_at", "graded_at"}).
			AddRow("essay-1", testUserID, "tema", models.StatusCompleted, 920, "Excelente.", created, created))

	req := authedRequest(t, http.MethodGet, "/api/essay/essay-1", "", testAdminID)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, int64(920), gjson.GetBytes(body, "essay.score").Int())
}

func TestGetEssayNotFound(t *testing.T) {
	s, mock, _, _ := setupTestServer(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM essays WHERE id = $1`)).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "user_id", "theme", "status", "score", "feedback", "created_at", "graded_at"}))

	req := authedRequest(t, http.MethodGet, "/api/essay/ghost", "", testUserID)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
