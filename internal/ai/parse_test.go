package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
		wantErr  bool
	}{
		{
			name:     "plain JSON passes through",
			raw:      `{"theme":"x"}`,
			expected: `{"theme":"x"}`,
		},
		{
			name:     "json code fence stripped",
			raw:      "```json\n{\"theme\":\"x\"}\n```",
			expected: `{"theme":"x"}`,
		},
		{
			name:     "bare code fence stripped",
			raw:      "```\n{\"theme\":\"x\"}\n```",
			expected: `{"theme":"x"}`,
		},
		{
			name:     "surrounding prose trimmed to outermost braces",
			raw:      "Here is the result:\n{\"a\":{\"b\":1}}\nHope this helps!",
			expected: `{"a":{"b":1}}`,
		},
		{
			name:    "no object at all",
			raw:     "sorry, I cannot help with that",
			wantErr: true,
		},
		{
			name:    "invalid JSON inside braces",
			raw:     `{"theme": oops}`,
			wantErr: true,
		},
		{
			name:    "empty input",
			raw:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrParse)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestParseEssayTheme(t *testing.T) {
	theme, err := ParseEssayTheme("```json\n{\"theme\":\"Evasão escolar\",\"support_text\":\"Texto de apoio.\"}\n```")
	assert.NoError(t, err)
	assert.Equal(t, "Evasão escolar", theme.Theme)
	assert.Equal(t, "Texto de apoio.", theme.SupportText)
}

func TestParseEssayThemeMissingFields(t *testing.T) {
	_, err := ParseEssayTheme(`{"theme":"Evasão escolar"}`)
	assert.ErrorIs(t, err, ErrParse)

	_, err = ParseEssayTheme(`{"support_text":"sem tema"}`)
	assert.ErrorIs(t, err, ErrParse)
}

func TestParseAnswers(t *testing.T) {
	raw := `{"answers":[{"q":"Pergunta 1","a":"Resposta 1"},{"q":"Pergunta 2","a":"Resposta 2"}]}`

	answers, err := ParseAnswers(raw)
	assert.NoError(t, err)
	assert.Len(t, answers, 2)
	assert.Equal(t, "Pergunta 1", answers[0].Q)
	assert.Equal(t, "Resposta 2", answers[1].A)
}

func TestParseAnswersBadShape(t *testing.T) {
	_, err := ParseAnswers(`{"answers":"not an array"}`)
	assert.ErrorIs(t, err, ErrParse)

	_, err = ParseAnswers(`{"answers":[{"q":"sem resposta"}]}`)
	assert.ErrorIs(t, err, ErrParse)
}

func TestParseGrade(t *testing.T) {
	grade, err := ParseGrade("```json\n{\"score\": 840, \"feedback\": \"Boa argumentação.\"}\n```")
	assert.NoError(t, err)
	assert.Equal(t, 840, grade.Score)
	assert.Equal(t, "Boa argumentação.", grade.Feedback)
}

func TestParseGradeInvalid(t *testing.T) {
	_, err := ParseGrade(`{"feedback":"sem nota"}`)
	assert.ErrorIs(t, err, ErrParse)

	_, err = ParseGrade(`{"score":"oitocentos"}`)
	assert.ErrorIs(t, err, ErrParse)

	_, err = ParseGrade(`{"score": 1500}`)
	assert.ErrorIs(t, err, ErrParse)
}
