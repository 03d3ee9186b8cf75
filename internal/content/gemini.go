package content

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// LLMModel adapts any langchaingo model to TextModel.
type LLMModel struct {
	llm  llms.Model
	opts []llms.CallOption
}

// NewLLMModel wraps an already configured langchaingo model.
func NewLLMModel(llm llms.Model, opts ...llms.CallOption) *LLMModel {
	return &LLMModel{llm: llm, opts: opts}
}

// NewGeminiModel builds a Gemini-backed model through langchaingo's googleai provider.
func NewGeminiModel(ctx context.Context, apiKey, modelName string) (*LLMModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(modelName),
		googleai.WithDefaultMaxTokens(1024),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini model: %w", err)
	}

	return NewLLMModel(llm, llms.WithTemperature(0.9)), nil
}

func (m *LLMModel) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := llms.GenerateFromSinglePrompt(ctx, m.llm, prompt, m.opts...)
	if err != nil {
		return "", fmt.Errorf("LLM call failed: %w", err)
	}
	return text, nil
}
