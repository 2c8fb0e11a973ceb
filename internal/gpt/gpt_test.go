package gpt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"

	"github.com/deusflow/ainews/internal/news"
	"github.com/deusflow/ainews/internal/synopsis"
)

func chatServer(t *testing.T, status int, answer string, got *openai.ChatCompletionRequest) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got != nil {
			_ = json.NewDecoder(r.Body).Decode(got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": answer}}},
		})
	}))
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return NewClientWithConfig(cfg, "")
}

func TestSynopsizeSendsPrompt(t *testing.T) {
	var req openai.ChatCompletionRequest
	c := chatServer(t, http.StatusOK, "  Anthropic raised new funding.  ", &req)

	got, err := c.Synopsize(context.Background(), &news.Item{Title: "Anthropic funding", Summary: "Big round."})
	if err != nil {
		t.Fatalf("Synopsize: %v", err)
	}
	if got != "Anthropic raised new funding." {
		t.Errorf("Synopsize() = %q", got)
	}
	if req.Model != DefaultModel {
		t.Errorf("model = %q", req.Model)
	}
	if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, "Title: Anthropic funding") {
		t.Errorf("messages = %+v", req.Messages)
	}
	if req.MaxTokens != synopsis.MaxTokens {
		t.Errorf("max tokens = %d", req.MaxTokens)
	}
}

func TestSynopsizeEmptyAnswer(t *testing.T) {
	c := chatServer(t, http.StatusOK, "\n  \n", nil)
	if _, err := c.Synopsize(context.Background(), &news.Item{Title: "t"}); !errors.Is(err, synopsis.ErrEmpty) {
		t.Errorf("err = %v, want ErrEmpty", err)
	}
}

func TestSynopsizeAPIError(t *testing.T) {
	c := chatServer(t, http.StatusTooManyRequests, "", nil)
	_, err := c.Synopsize(context.Background(), &news.Item{Title: "t"})
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) || apiErr.HTTPStatusCode != http.StatusTooManyRequests {
		t.Errorf("err = %v, want wrapped 429 APIError", err)
	}
}
