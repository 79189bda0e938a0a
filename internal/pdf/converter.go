package pdf

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/tidwall/gjson"
)

// Extractor turns a stored essay PDF into plain text.
type Extractor interface {
	ExtractText(ctx context.Context, pdfPath string) (string, error)
}

// APIExtractor implements Extractor against a hosted PDF-to-text API that
// accepts base64 file content and returns `{"text": "..."}`.
type APIExtractor struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewAPIExtractor(baseURL, apiKey string) *APIExtractor {
	return &APIExtractor{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type convertRequest struct {
	File string `json:"file"`
}

func (e *APIExtractor) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	content, err := os.ReadFile(pdfPath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	reqBody, err := json.Marshal(convertRequest{
		File: base64.StdEncoding.EncodeToString(content),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := e.baseURL + "/pdf/convert/to/text"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call conversion API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("conversion API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read conversion response: %w", err)
	}

	text := gjson.GetBytes(body, "text")
	if !text.Exists() {
		return "", fmt.Errorf("conversion response missing text field")
	}
	return text.String(), nil
}
