package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"github.com/deusflow/ainews/internal/news"
	"github.com/deusflow/ainews/internal/synopsis"
)

func fakeClient(answer string, err error, seen *string) *Client {
	return &Client{generate: func(_ context.Context, prompt string) (string, error) {
		if seen != nil {
			*seen = prompt
		}
		return answer, err
	}}
}

func TestSynopsizeCleansAnswer(t *testing.T) {
	var prompt string
	c := fakeClient("Summary: DeepMind released a model.\nNote: generated text", nil, &prompt)

	got, err := c.Synopsize(context.Background(), &news.Item{Title: "DeepMind model", Summary: "details"})
	if err != nil {
		t.Fatalf("Synopsize: %v", err)
	}
	if got != "DeepMind released a model." {
		t.Errorf("Synopsize() = %q", got)
	}
	if !strings.Contains(prompt, "Title: DeepMind model") {
		t.Errorf("prompt = %q", prompt)
	}
}

func TestSynopsizeErrors(t *testing.T) {
	boom := errors.New("quota")
	if _, err := fakeClient("", boom, nil).Synopsize(context.Background(), &news.Item{}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want quota error", err)
	}
	if _, err := fakeClient("  ", nil, nil).Synopsize(context.Background(), &news.Item{}); !errors.Is(err, synopsis.ErrEmpty) {
		t.Errorf("err = %v, want ErrEmpty", err)
	}
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Hello "), genai.Text("world")}},
		}},
	}
	if got := responseText(resp); got != "Hello world" {
		t.Errorf("responseText() = %q", got)
	}
	if got := responseText(&genai.GenerateContentResponse{}); got != "" {
		t.Errorf("empty response text = %q", got)
	}
	if got := responseText(nil); got != "" {
		t.Errorf("nil response text = %q", got)
	}
}

func TestClientSatisfiesSynopsizer(t *testing.T) {
	var _ news.Synopsizer = (*Client)(nil)
}
