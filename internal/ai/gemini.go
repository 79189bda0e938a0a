package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/passaenem/passa-enem-api/internal/models"
)

// Generator produces practice questions and essay themes.
type Generator interface {
	GenerateQuestions(ctx context.Context, subject string, count int) ([]models.Question, error)
	GenerateEssayTheme(ctx context.Context) (models.EssayTheme, error)
}

// HTTPGeminiClient implements Generator against the Gemini REST API.
type HTTPGeminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// GeminiRequest represents a request to the Gemini API
type GeminiRequest struct {
	Contents []GeminiContent `json:"contents"`
}

// GeminiContent represents the content part of a Gemini request
type GeminiContent struct {
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart represents a part of the content in a Gemini request
type GeminiPart struct {
	Text string `json:"text"`
}

// GeminiResponse represents a response from the Gemini API
type GeminiResponse struct {
	Candidates []GeminiCandidate `json:"candidates"`
}

// GeminiCandidate represents a candidate response from Gemini
type GeminiCandidate struct {
	Content struct {
		Parts []GeminiPart `json:"parts"`
	} `json:"content"`
}

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// NewGeminiClient creates a Gemini client for the given API key and model.
func NewGeminiClient(apiKey, model string) (*HTTPGeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is not set")
	}
	return &HTTPGeminiClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultGeminiBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// generate sends a prompt to Gemini and returns the first candidate's text.
func (c *HTTPGeminiClient) generate(ctx context.Context, prompt string) (string, error) {
	reqBody := GeminiRequest{
		Contents: []GeminiContent{
			{Parts: []GeminiPart{{Text: prompt}}},
		},
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var geminiResp GeminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no response generated")
	}

	return geminiResp.Candidates[0].Content.Parts[0].Text, nil
}

// GenerateQuestions asks the model for count practice questions on a subject.
func (c *HTTPGeminiClient) GenerateQuestions(ctx context.Context, subject string, count int) ([]models.Question, error) {
	prompt := fmt.Sprintf(`
Você é um professor preparando alunos para o ENEM. Gere %d questões discursivas
de %s no estilo da prova, cada uma com sua resposta modelo.

Responda APENAS com um objeto JSON válido no formato:
{"answers": [{"q": "enunciado da questão", "a": "resposta modelo"}]}

Não inclua explicações nem formatação markdown.
`, count, subject)

	raw, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return ParseAnswers(raw)
}

// GenerateEssayTheme asks the model for an essay theme with supporting text.
func (c *HTTPGeminiClient) GenerateEssayTheme(ctx context.Context) (models.EssayTheme, error) {
	prompt := `
Você é a banca do ENEM. Proponha um tema de redação dissertativo-argumentativa
sobre um problema social brasileiro atual, acompanhado de um texto de apoio
curto (2 a 3 parágrafos).

Responda APENAS com um objeto JSON válido no formato:
{"theme": "tema da redação", "support_text": "texto de apoio"}

Não inclua explicações nem formatação markdown.
`

	raw, err := c.generate(ctx, prompt)
	if err != nil {
		return models.EssayTheme{}, err
	}
	return ParseEssayTheme(raw)
}
