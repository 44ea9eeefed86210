package models

import (
	"context"
	"errors"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel matches the model the bridge was originally tuned
// against.
const DefaultOpenAIModel = "o3-mini"

type OpenAIOracle struct {
	Client *openai.Client
	Model  string
}

// NewOpenAIOracle constructs an oracle backed by the OpenAI chat API. It
// reads OPENAI_API_KEY (OPENAI_KEY as fallback) and honours OPENAI_API_BASE
// for gateways and proxies. A missing key is an error because every
// completion would fail anyway.
func NewOpenAIOracle(model string) (*OpenAIOracle, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("no OPENAI_API_KEY found in environment (or .env)")
	}

	config := openai.DefaultConfig(apiKey)
	if base := os.Getenv("OPENAI_API_BASE"); base != "" {
		config.BaseURL = base
	}

	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIOracle{Client: openai.NewClientWithConfig(config), Model: model}, nil
}

func (o *OpenAIOracle) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	resp, err := o.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

var _ Oracle = (*OpenAIOracle)(nil)
