package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFamilyFor(t *testing.T) {
	tests := []struct {
		model string
		want  Family
	}{
		{"gemini-1.5-pro", FamilyGemini},
		{"GEMINI-2.0-FLASH", FamilyGemini},
		{"tunedModels/my-finetune", FamilyGemini},
		{"claude-3-opus", FamilyAnthropic},
		{"Claude-3-5-Sonnet", FamilyAnthropic},
		{"gpt-4o", FamilyOpenAI},
		{"llama3-70b", FamilyOpenAI},
		{"mistral-large", FamilyOpenAI},
		{"", FamilyOpenAI},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, FamilyFor(tt.model))
		})
	}
}

func TestConstructorsRequireCredential(t *testing.T) {
	opts := backendOptions{modelName: "claude-3-opus"}

	_, err := newAnthropic(opts)
	require.Error(t, err)

	opts.modelName = "gpt-4o"
	_, err = newOpenAI(opts)
	require.Error(t, err)
}

func TestRateLimitDenialMapsToUnavailable(t *testing.T) {
	denied := errors.New("window exhausted")
	err := acquire(func() error { return denied })
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	var genErr *GenerationError
	assert.False(t, errors.As(err, &genErr),
		"rate-limit denial must stay distinguishable from generation failure")
}

func TestGenerationErrorWrapping(t *testing.T) {
	cause := errors.New("status 500")
	err := generationErr("openai", cause)

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "openai", genErr.Provider)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestValidateRejectsEmptyPrompt(t *testing.T) {
	assert.Error(t, validate(Request{}))
	assert.NoError(t, validate(Request{Prompt: "hello"}))
}
