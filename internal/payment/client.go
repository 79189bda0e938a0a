package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

var ErrPaymentNotFound = errors.New("payment not found")

// Statuses the provider reports that release a plan activation.
const (
	StatusApproved   = "approved"
	StatusAuthorized = "authorized"
)

// Payment is the slice of the provider's payment object the checkout flow
// cares about.
type Payment struct {
	ID                string
	Status            string
	ExternalReference string
	TransactionAmount float64
}

// Approved reports whether the payment status releases a plan activation.
func (p *Payment) Approved() bool {
	return p.Status == StatusApproved || p.Status == StatusAuthorized
}

// Client looks up payments at the provider by their identifier.
type Client interface {
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
}

// MercadoPagoClient implements Client against the Mercado Pago REST API.
type MercadoPagoClient struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

func NewMercadoPagoClient(baseURL, accessToken string) *MercadoPagoClient {
	return &MercadoPagoClient{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// GetPayment fetches a payment by ID. The provider returns the numeric id and
// a large object; only the gating fields are extracted.
func (c *MercadoPagoClient) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	url := fmt.Sprintf("%s/v1/payments/%s", c.baseURL, paymentID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrPaymentNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("payment provider returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid JSON from payment provider")
	}

	data := gjson.ParseBytes(body)
	return &Payment{
		ID:                data.Get("id").String(),
		Status:            data.Get("status").String(),
		ExternalReference: data.Get("external_reference").String(),
		TransactionAmount: data.Get("transaction_amount").Float(),
	}, nil
}
