package ai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/passaenem/passa-enem-api/internal/models"
)

// Grader scores a submitted essay against its theme.
type Grader interface {
	GradeEssay(ctx context.Context, theme, text string) (models.GradeResult, error)
}

// OpenAIGrader implements Grader on top of the OpenAI chat completion API.
type OpenAIGrader struct {
	client *openai.Client
	model  string
}

// NewOpenAIGrader creates a grader. baseURL overrides the API endpoint and is
// used by tests.
func NewOpenAIGrader(apiKey, model, baseURL string) (*OpenAIGrader, error) {
	if apiKey == "" {
		return nil, errors.New("openai API key is not set")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAIGrader{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

const graderSystemPrompt = `Você é um corretor oficial de redações do ENEM. Avalie a redação
segundo as cinco competências da matriz de correção e atribua uma nota de 0 a 1000.

Responda APENAS com um objeto JSON válido no formato:
{"score": 840, "feedback": "comentário detalhado sobre a redação"}

Não inclua explicações fora do JSON nem formatação markdown.`

// GradeEssay sends the essay to the grading model and parses the score.
func (g *OpenAIGrader) GradeEssay(ctx context.Context, theme, text string) (models.GradeResult, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: graderSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("TEMA:\n%s\n\nREDAÇÃO:\n%s", theme, text)},
		},
	})
	if err != nil {
		return models.GradeResult{}, fmt.Errorf("grading request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return models.GradeResult{}, errors.New("no response generated")
	}

	return ParseGrade(resp.Choices[0].Message.Content)
}
