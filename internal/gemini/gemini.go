package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/deusflow/ainews/internal/news"
	"github.com/deusflow/ainews/internal/synopsis"
)

const DefaultModel = "gemini-1.5-flash"

// generateFunc sends one prompt and returns the raw text answer.
type generateFunc func(ctx context.Context, prompt string) (string, error)

// Client produces item synopses with Gemini. It implements news.Synopsizer.
type Client struct {
	client   *genai.Client
	generate generateFunc
}

func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}

	gm := client.GenerativeModel(model)
	gm.SetTemperature(synopsis.Temperature)
	gm.SetMaxOutputTokens(synopsis.MaxTokens)

	return &Client{
		client: client,
		generate: func(ctx context.Context, prompt string) (string, error) {
			resp, err := gm.GenerateContent(ctx, genai.Text(prompt))
			if err != nil {
				return "", fmt.Errorf("failed to generate content: %w", err)
			}
			return responseText(resp), nil
		},
	}, nil
}

func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Synopsize asks Gemini for a 2-3 sentence summary of item.
func (c *Client) Synopsize(ctx context.Context, item *news.Item) (string, error) {
	raw, err := c.generate(ctx, synopsis.BuildPrompt(item))
	if err != nil {
		return "", err
	}
	return synopsis.Clean(raw)
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}
