// Package storage remembers which items were already delivered so later
// runs do not repeat them.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/deusflow/ainews/internal/news"
)

// SentItem is one delivered item.
type SentItem struct {
	Hash   string    `json:"hash"`
	Title  string    `json:"title"`
	URL    string    `json:"url"`
	Source string    `json:"source"`
	Score  float64   `json:"score"`
	SentAt time.Time `json:"sent_at"`
}

// History is the sent-items log. Seen is best-effort: lookup errors are
// logged and read as "not seen".
type History interface {
	Seen(ctx context.Context, url string) bool
	MarkSent(ctx context.Context, item *news.Item) error
	Recent(ctx context.Context, limit int) ([]SentItem, error)
	Close() error
}

// Options configures Open.
type Options struct {
	FilePath    string
	DatabaseURL string
	RedisURL    string
	TTL         time.Duration
}

// Open returns the history for backend: none, file, postgres or redis.
func Open(ctx context.Context, backend string, opts Options) (History, error) {
	switch backend {
	case "", "none":
		return NopHistory{}, nil
	case "file":
		fc := NewFileCache(opts.FilePath, opts.TTL)
		if err := fc.Load(); err != nil {
			return nil, err
		}
		return fc, nil
	case "postgres":
		return NewPostgresCache(ctx, opts.DatabaseURL, opts.TTL)
	case "redis":
		return NewRedisCache(ctx, opts.RedisURL, opts.TTL)
	default:
		return nil, fmt.Errorf("unknown history backend %q", backend)
	}
}

// HashURL returns a stable key for a link: scheme, "www.", fragment,
// tracking parameters and trailing slashes do not matter.
func HashURL(link string) string {
	h := sha256.Sum256([]byte(normalizeURL(link)))
	return hex.EncodeToString(h[:])[:16]
}

func normalizeURL(link string) string {
	link = strings.TrimSpace(link)
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return strings.ToLower(link)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	q := u.Query()
	for key := range q {
		if strings.HasPrefix(strings.ToLower(key), "utm_") {
			q.Del(key)
		}
	}
	out := host + strings.TrimRight(u.EscapedPath(), "/")
	if enc := q.Encode(); enc != "" {
		out += "?" + enc
	}
	return out
}

func newSentItem(item *news.Item, now time.Time) SentItem {
	return SentItem{
		Hash:   HashURL(item.URL),
		Title:  item.Title,
		URL:    item.URL,
		Source: item.Source,
		Score:  item.Score,
		SentAt: now,
	}
}

// NopHistory remembers nothing.
type NopHistory struct{}

func (NopHistory) Seen(context.Context, string) bool               { return false }
func (NopHistory) MarkSent(context.Context, *news.Item) error      { return nil }
func (NopHistory) Recent(context.Context, int) ([]SentItem, error) { return nil, nil }
func (NopHistory) Close() error                                    { return nil }
