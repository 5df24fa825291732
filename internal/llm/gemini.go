package llm

import (
	"context"
	"strings"

	genai "google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client bound
// to a single API key. Retries and credential failover are applied by
// Failover, not here.
type GeminiClient struct {
	cli   *genai.Client
	model string
	label string
}

// NewGeminiClient builds a client for one credential. label shows up in
// logs instead of the key itself.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  strings.TrimSpace(apiKey),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiClient{cli: cli, model: model, label: keyLabel(apiKey)}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model + ":" + g.label }
func (g *GeminiClient) Close() error { return nil }

func (g *GeminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		nil,
	)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text), nil
}

// keyLabel renders the last four characters of a credential for logging.
func keyLabel(key string) string {
	key = strings.TrimSpace(key)
	if len(key) <= 4 {
		return "????"
	}
	return "..." + key[len(key)-4:]
}
