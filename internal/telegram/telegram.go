package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/deusflow/ainews/internal/digest"
	"github.com/deusflow/ainews/internal/retry"
)

const (
	defaultBaseURL = "https://api.telegram.org"

	// MaxMessageRunes is the Bot API limit for one text message.
	MaxMessageRunes = 4096
)

// Notifier delivers digests to a Telegram chat or channel.
type Notifier struct {
	Token   string
	ChatID  string
	BaseURL string
	Client  *http.Client
	Retry   retry.RetryConfig
	Logger  *slog.Logger
}

func New(token, chatID string) *Notifier {
	return &Notifier{
		Token:   token,
		ChatID:  chatID,
		BaseURL: defaultBaseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
		Retry:   retry.RetryConfig{MaxAttempts: 3, Delay: 2 * time.Second, Backoff: true},
		Logger:  slog.Default().With("component", "telegram"),
	}
}

func (n *Notifier) Name() string { return "telegram" }

// Notify sends the digest as one HTML message, dropping trailing items
// when the message would exceed the API limit.
func (n *Notifier) Notify(ctx context.Context, d digest.Digest) error {
	text := Render(d, MaxMessageRunes)

	attempt := 0
	err := retry.WithRetry(ctx, n.Retry, func() error {
		attempt++
		err := n.sendMessageOnce(ctx, text)
		if err != nil {
			n.Logger.Warn("error send to Telegram", "attempt", attempt, "error", err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	n.Logger.Info("message sent to Telegram", "digest", d.ID, "attempt", attempt)
	return nil
}

// Ping checks the bot token with getMe.
func (n *Notifier) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.endpoint("getMe"), nil)
	if err != nil {
		return err
	}
	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	defer resp.Body.Close()
	return checkResponse(resp)
}

func (n *Notifier) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", strings.TrimRight(n.BaseURL, "/"), n.Token, method)
}

// sendMessageOnce does one try to send message
func (n *Notifier) sendMessageOnce(ctx context.Context, text string) error {
	payload := map[string]interface{}{
		"chat_id":                  n.ChatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return retry.Permanent(fmt.Errorf("error make JSON: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("error HTTP request: %w", err)
	}
	defer resp.Body.Close()

	return checkResponse(resp)
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	var ar apiResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &ar)

	err := fmt.Errorf("telegram API error: status %d: %s", resp.StatusCode, ar.Description)
	// Bad token, chat or markup will not fix itself.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return retry.Permanent(err)
	}
	return err
}

// Render formats d as Telegram HTML of at most limit runes.
func Render(d digest.Digest, limit int) string {
	var b strings.Builder
	esc := html.EscapeString

	switch {
	case d.Kind == digest.KindError:
		fmt.Fprintf(&b, "<b>%s</b>\n\n%s", esc(d.Subject()), esc(d.Error))
		return truncateRunes(b.String(), limit)
	case d.Empty():
		fmt.Fprintf(&b, "<b>%s</b>\n\n%s", esc(d.Subject()), digest.EmptyMessage)
		return b.String()
	}

	fmt.Fprintf(&b, "<b>%s</b>\n", esc(d.Subject()))
	footer := fmt.Sprintf("\n📊 Average score %.1f/10 · %d sources", d.AverageScore(), d.SourceCount())

	for i, it := range d.Items {
		block := fmt.Sprintf("\n%s <b>%d. <a href=\"%s\">%s</a></b>\n<i>%s · %.1f/10</i>\n%s\n",
			digest.ScoreMark(it.Score), i+1, esc(it.URL), esc(it.Title),
			esc(it.Source), it.Score, esc(digest.Blurb(it)))

		rest := len(d.Items) - i - 1
		more := ""
		if rest > 0 {
			more = fmt.Sprintf("\n…and %d more", rest)
		}
		if utf8.RuneCountInString(b.String()+block+more+footer) > limit {
			fmt.Fprintf(&b, "\n…and %d more", len(d.Items)-i)
			break
		}
		b.WriteString(block)
	}
	b.WriteString(footer)
	return b.String()
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
