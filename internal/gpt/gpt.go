// Package gpt produces item synopses with the OpenAI chat API.
package gpt

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/deusflow/ainews/internal/news"
	"github.com/deusflow/ainews/internal/synopsis"
)

const DefaultModel = openai.GPT3Dot5Turbo

// Client implements news.Synopsizer.
type Client struct {
	api   *openai.Client
	model string
}

func NewClient(apiKey, model string) *Client {
	return NewClientWithConfig(openai.DefaultConfig(apiKey), model)
}

// NewClientWithConfig allows a custom base URL or HTTP client.
func NewClientWithConfig(cfg openai.ClientConfig, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{api: openai.NewClientWithConfig(cfg), model: model}
}

func (c *Client) Synopsize(ctx context.Context, item *news.Item) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: synopsis.BuildPrompt(item),
			},
		},
		MaxTokens:   synopsis.MaxTokens,
		Temperature: synopsis.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}
	return synopsis.Clean(resp.Choices[0].Message.Content)
}
