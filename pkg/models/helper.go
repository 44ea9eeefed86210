package models

import (
	"context"
	"fmt"
)

// NewOracle selects a completion oracle by provider name.
func NewOracle(ctx context.Context, provider string, model string) (Oracle, error) {
	switch provider {
	case "openai":
		return NewOpenAIOracle(model)
	case "gemini", "google":
		return NewGeminiOracle(ctx, model)
	case "ollama":
		return NewOllamaOracle(model)
	case "anthropic", "claude":
		return NewAnthropicOracle(model), nil
	case "dummy":
		return NewDummyOracle(), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}
