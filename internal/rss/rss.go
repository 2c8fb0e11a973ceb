package rss

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/deusflow/ainews/internal/news"
	"github.com/deusflow/ainews/internal/retry"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; ainews/1.0; +https://github.com/deusflow/ainews)"

// ErrAllFeedsFailed is returned when not a single feed could be read.
var ErrAllFeedsFailed = errors.New("rss: all feeds failed")

// Feed is one named source. The name becomes Item.Source.
type Feed struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// FeedsConfig is YAML config structure
// feeds:
//   - name: Wired
//     url: https://...
type FeedsConfig struct {
	Feeds []Feed `yaml:"feeds"`
}

// LoadFeeds reads the feed list from a YAML file.
func LoadFeeds(path string) ([]Feed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg FeedsConfig
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for i, feed := range cfg.Feeds {
		if strings.TrimSpace(feed.URL) == "" {
			return nil, fmt.Errorf("feed #%d (%q) has no url", i+1, feed.Name)
		}
		if strings.TrimSpace(feed.Name) == "" {
			cfg.Feeds[i].Name = feed.URL
		}
	}
	return cfg.Feeds, nil
}

// Fetcher downloads feeds and turns their entries into news items.
type Fetcher struct {
	Client      *http.Client
	ItemLimit   int           // entries taken per feed, 0 = all
	MaxAge      time.Duration // older entries are dropped, 0 = keep all
	Concurrency int
	Retry       retry.RetryConfig
	UserAgent   string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewFetcher returns a Fetcher with the collector defaults: 20 entries per
// feed, 24h window.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{
		Client:      client,
		ItemLimit:   20,
		MaxAge:      24 * time.Hour,
		Concurrency: 4,
		Retry:       retry.RetryConfig{MaxAttempts: 2, Delay: time.Second},
		UserAgent:   defaultUserAgent,
		Now:         time.Now,
		Logger:      slog.Default().With("component", "rss"),
	}
}

// Fetch parses every feed concurrently. Failing feeds are logged and
// skipped; the result keeps feed order. An error is returned only when
// all feeds fail.
func (f *Fetcher) Fetch(ctx context.Context, feeds []Feed) ([]*news.Item, error) {
	if len(feeds) == 0 {
		return nil, nil
	}

	perFeed := make([][]*news.Item, len(feeds))
	var (
		mu     sync.Mutex
		failed int
	)

	g, gctx := errgroup.WithContext(ctx)
	if f.Concurrency > 0 {
		g.SetLimit(f.Concurrency)
	}
	for i, feed := range feeds {
		g.Go(func() error {
			items, err := f.fetchOne(gctx, feed)
			if err != nil {
				f.logger().Warn("error parsing feed", "feed", feed.Name, "url", feed.URL, "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			perFeed[i] = items
			f.logger().Info("loaded feed", "feed", feed.Name, "items", len(items))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []*news.Item
	for _, items := range perFeed {
		all = append(all, items...)
	}
	f.logger().Info("processed feeds", "ok", len(feeds)-failed, "total", len(feeds), "items", len(all))

	if failed == len(feeds) {
		return nil, ErrAllFeedsFailed
	}
	return all, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, feed Feed) ([]*news.Item, error) {
	parser := gofeed.NewParser()
	parser.Client = f.Client
	if f.UserAgent != "" {
		parser.UserAgent = f.UserAgent
	}

	var parsed *gofeed.Feed
	err := retry.WithRetry(ctx, f.Retry, func() error {
		var err error
		parsed, err = parser.ParseURLWithContext(feed.URL, ctx)
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	now := f.now()
	entries := parsed.Items
	if f.ItemLimit > 0 && len(entries) > f.ItemLimit {
		entries = entries[:f.ItemLimit]
	}

	items := make([]*news.Item, 0, len(entries))
	for _, entry := range entries {
		if entry == nil || strings.TrimSpace(entry.Title) == "" {
			continue
		}
		published := now
		switch {
		case entry.PublishedParsed != nil:
			published = *entry.PublishedParsed
		case entry.UpdatedParsed != nil:
			published = *entry.UpdatedParsed
		}
		if f.MaxAge > 0 && now.Sub(published) > f.MaxAge {
			continue
		}

		summary := entry.Description
		if summary == "" {
			summary = entry.Content
		}
		items = append(items, &news.Item{
			Title:       strings.TrimSpace(entry.Title),
			URL:         strings.TrimSpace(entry.Link),
			Summary:     StripHTML(summary),
			Source:      feed.Name,
			PublishedAt: published,
		})
	}
	return items, nil
}

// StripHTML returns the text content of an HTML fragment with whitespace
// collapsed.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func (f *Fetcher) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}
