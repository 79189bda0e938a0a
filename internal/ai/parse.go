package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/passaenem/passa-enem-api/internal/models"
)

// ErrParse signals that the model output was not valid JSON in the expected
// shape after cleanup.
var ErrParse = errors.New("response is not valid JSON in the expected shape")

// ExtractJSON cleans raw model output into a JSON document: markdown code
// fences are stripped and the outermost {...} span is taken, since models
// routinely wrap the payload in prose or fences despite instructions.
func ExtractJSON(raw string) ([]byte, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object found", ErrParse)
	}

	span := []byte(clean[start : end+1])
	if !gjson.ValidBytes(span) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrParse)
	}
	return span, nil
}

// ParseEssayTheme validates and decodes a `{theme, support_text}` payload.
func ParseEssayTheme(raw string) (models.EssayTheme, error) {
	span, err := ExtractJSON(raw)
	if err != nil {
		return models.EssayTheme{}, err
	}

	data := gjson.ParseBytes(span)
	if !data.Get("theme").Exists() || data.Get("theme").String() == "" {
		return models.EssayTheme{}, fmt.Errorf("%w: missing theme", ErrParse)
	}
	if !data.Get("support_text").Exists() {
		return models.EssayTheme{}, fmt.Errorf("%w: missing support_text", ErrParse)
	}

	var theme models.EssayTheme
	if err := json.Unmarshal(span, &theme); err != nil {
		return models.EssayTheme{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return theme, nil
}

// ParseAnswers validates and decodes an `{answers: [{q, a}]}` payload.
func ParseAnswers(raw string) ([]models.Question, error) {
	span, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	answers := gjson.GetBytes(span, "answers")
	if !answers.IsArray() {
		return nil, fmt.Errorf("%w: answers must be an array", ErrParse)
	}
	for _, item := range answers.Array() {
		if !item.Get("q").Exists() || !item.Get("a").Exists() {
			return nil, fmt.Errorf("%w: answer entry missing q or a", ErrParse)
		}
	}

	var payload struct {
		Answers []models.Question `json:"answers"`
	}
	if err := json.Unmarshal(span, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return payload.Answers, nil
}

// ParseGrade validates and decodes a `{score, feedback}` payload. Scores are
// on the 0-1000 exam scale.
func ParseGrade(raw string) (models.GradeResult, error) {
	span, err := ExtractJSON(raw)
	if err != nil {
		return models.GradeResult{}, err
	}

	data := gjson.ParseBytes(span)
	score := data.Get("score")
	if !score.Exists() || score.Type != gjson.Number {
		return models.GradeResult{}, fmt.Errorf("%w: missing numeric score", ErrParse)
	}
	if score.Int() < 0 || score.Int() > 1000 {
		return models.GradeResult{}, fmt.Errorf("%w: score out of range", ErrParse)
	}

	var grade models.GradeResult
	if err := json.Unmarshal(span, &grade); err != nil {
		return models.GradeResult{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return grade, nil
}
