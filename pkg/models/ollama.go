package models

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// OllamaOracle implements the Oracle interface against a local Ollama server,
// useful for running the bridge without hosted credentials.
type OllamaOracle struct {
	Client *ollama.Client
	Model  string
}

func NewOllamaOracle(model string) (*OllamaOracle, error) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST %q: %w", host, err)
	}

	httpClient := &http.Client{
		Timeout: 60 * time.Second,
	}

	c := ollama.NewClient(u, httpClient)
	return &OllamaOracle{Client: c, Model: model}, nil
}

func (o *OllamaOracle) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	var text strings.Builder

	req := &ollama.GenerateRequest{
		Model:  o.Model,
		System: systemPrompt,
		Prompt: userMessage,
	}

	if err := o.Client.Generate(ctx, req, func(gr ollama.GenerateResponse) error {
		if gr.Response != "" {
			text.WriteString(gr.Response)
		}
		return nil
	}); err != nil {
		return "", err
	}

	return text.String(), nil
}

var _ Oracle = (*OllamaOracle)(nil)
