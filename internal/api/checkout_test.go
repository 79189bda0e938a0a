package api

import (
	"io"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/passaenem/passa-enem-api/internal/payment"
)

func TestCheckoutSyncActivatesPro(t *testing.T) {
	s, mock, _, _ := setupTestServer(t)
	s.payments = &stubPayments{payment: payment.Payment{
		ID:                "pay-1",
		Status:            payment.StatusApproved,
		ExternalReference: testUserID,
		TransactionAmount: 29.90,
	}}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM payments WHERE id = $1`)).
		WithArgs("pay-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "status", "processed_at"}))
	mock.ExpectExec(`UPDATE profiles\s+SET plan_type = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO payments (id, user_id, status) VALUES ($1, $2, $3)`)).
		WithArgs("pay-1", testUserID, payment.StatusApproved).
		WillReturnResult(sqlmock.NewResult(1, 1))

	req := authedRequest(t, http.MethodPost, "/api/checkout/sync",
		`{"paymentId":"pay-1","userId":"`+testUserID+`"}`, testUserID)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.True(t, gjson.GetBytes(body, "success").Bool())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutSyncRejectsForeignPayment(t *testing.T) {
	s, mock, _, _ := setupTestServer(t)
	// The payment was created for a different user
	s.payments = &stubPayments{payment: payment.Payment{
		ID:                "pay-1",
		Status:            payment.StatusApproved,
		ExternalReference: "someone-else",
	}}

	req := authedRequest(t, http.MethodPost, "/api/checkout/sync",
		`{"paymentId":"pay-1","userId":"`+testUserID+`"}`, testUserID)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// No plan activation happened
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutSyncRejectsUnapprovedPayment(t *testing.T) {
	s, mock, _, _ := setupTestServer(t)
	s.payments = &stubPayments{payment: payment.Payment{
		ID:                "pay-1",
		Status:            "pending",
		ExternalReference: testUserID,
	}}

	req := authedRequest(t, http.MethodPost, "/api/checkout/sync",
		`{"paymentId":"pay-1","userId":"`+testUserID+`"}`, testUserID)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutSyncIdempotent(t *testing.T) {
	s, mock, _, _ := setupTestServer(t)
	s.payments = &stubPayments{payment: payment.Payment{
		ID:                "pay-1",
		Status:            payment.StatusApproved,
		ExternalReference: testUserID,
	}}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM payments WHERE id = $1`)).
		WithArgs("pay-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "status", "processed_at"}).
			AddRow("pay-1", testUserID, payment.StatusApproved, time.Now().UTC()))

	req := authedRequest(t, http.MethodPost, "/api/checkout/sync",
		`{"paymentId":"pay-1","userId":"`+testUserID+`"}`, testUserID)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "Payment already processed", gjson.GetBytes(body, "message").String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutSyncPaymentNotFound(t *testing.T) {
	s, _, _, _ := setupTestServer(t)
	s.payments = &stubPayments{err: payment.ErrPaymentNotFound}

	req := authedRequest(t, http.MethodPost, "/api/checkout/sync",
		`{"paymentId":"pay-404","userId":"`+testUserID+`"}`, testUserID)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestCheckoutSyncRejectsOtherUsersSync(t *testing.T) {
	s, _, _, _ := setupTestServer(t)
	payments := &stubPayments{}
	s.payments = payments

	req := authedRequest(t, http.MethodPost, "/api/checkout/sync",
		`{"paymentId":"pay-1","userId":"someone-else"}`, testUserID)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Zero(t, payments.calls)
}

func TestCheckoutSyncValidation(t *testing.T) {
	s, _, _, _ := setupTestServer(t)

	req := authedRequest(t, http.MethodPost, "/api/checkout/sync",
		`{"paymentId":""}`, testUserID)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
