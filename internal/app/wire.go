package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/deusflow/ainews/internal/config"
	"github.com/deusflow/ainews/internal/email"
	"github.com/deusflow/ainews/internal/eventbus"
	"github.com/deusflow/ainews/internal/gemini"
	"github.com/deusflow/ainews/internal/gpt"
	"github.com/deusflow/ainews/internal/logger"
	"github.com/deusflow/ainews/internal/metrics"
	"github.com/deusflow/ainews/internal/news"
	"github.com/deusflow/ainews/internal/profile"
	"github.com/deusflow/ainews/internal/ratelimit"
	"github.com/deusflow/ainews/internal/retry"
	"github.com/deusflow/ainews/internal/rss"
	"github.com/deusflow/ainews/internal/scraper"
	"github.com/deusflow/ainews/internal/storage"
	"github.com/deusflow/ainews/internal/telegram"
)

// FeedSource reads a fixed list of feeds.
type FeedSource struct {
	Fetcher *rss.Fetcher
	Feeds   []rss.Feed
}

func (s FeedSource) Fetch(ctx context.Context) ([]*news.Item, error) {
	return s.Fetcher.Fetch(ctx, s.Feeds)
}

func (s FeedSource) FetchSample(ctx context.Context) ([]*news.Item, error) {
	if len(s.Feeds) == 0 {
		return nil, errors.New("no feeds configured")
	}
	return s.Fetcher.Fetch(ctx, s.Feeds[:1])
}

// FromConfig builds the application and all of its collaborators.
func FromConfig(ctx context.Context, cfg *config.Config) (*App, error) {
	prof := profile.Default()
	if cfg.ProfilePath != "" {
		p, err := profile.Load(cfg.ProfilePath)
		if err != nil {
			return nil, fmt.Errorf("load profile: %w", err)
		}
		prof = p
	}

	feeds, err := rss.LoadFeeds(cfg.FeedsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load feeds: %w", err)
	}

	client := &http.Client{Timeout: cfg.RequestTimeout}
	rc := retry.RetryConfig{MaxAttempts: cfg.RetryAttempts, Delay: cfg.RetryDelay, Backoff: true}

	fetcher := rss.NewFetcher(client)
	fetcher.ItemLimit = cfg.FeedItemLimit
	fetcher.MaxAge = cfg.NewsMaxAge
	fetcher.Retry = rc

	extractor := scraper.NewExtractor(client)
	extractor.Concurrency = cfg.ScrapeConcurrency
	extractor.MaxPerSource = cfg.ScrapeMaxPerSource

	synopsizer, closer, err := newSynopsizer(ctx, cfg, metrics.Global)
	if err != nil {
		return nil, err
	}
	var closers []io.Closer
	if closer != nil {
		closers = append(closers, closer)
	}

	similarity := news.Jaccard
	if cfg.DedupeSimilarity == config.SimilarityOverlap {
		similarity = news.Overlap
	}

	pipeline := news.NewPipeline(news.PipelineDeps{
		Profile: prof,
		Deduper: &news.TitleDeduper{
			Threshold:  prof.DuplicateThreshold,
			Similarity: similarity,
			Logger:     logger.For("dedupe"),
		},
		Enricher:        extractor,
		Synopsizer:      synopsizer,
		SynopsisTimeout: cfg.SynopsisTimeout,
		Logger:          logger.For("pipeline"),
	})

	history, err := storage.Open(ctx, cfg.HistoryBackend, storage.Options{
		FilePath:    cfg.CacheFilePath,
		DatabaseURL: cfg.DatabaseURL,
		RedisURL:    cfg.RedisURL,
		TTL:         cfg.HistoryTTL,
	})
	if err != nil {
		closeAll(closers)
		return nil, fmt.Errorf("open history: %w", err)
	}

	notifiers, err := newNotifiers(cfg, rc)
	if err != nil {
		closeAll(closers)
		_ = history.Close()
		return nil, err
	}

	a, err := New(Deps{
		Source:    FeedSource{Fetcher: fetcher, Feeds: feeds},
		Pipeline:  pipeline,
		History:   history,
		Notifiers: notifiers,
		Metrics:   metrics.Global,
		MaxItems:  cfg.MaxNewsItems,
		Logger:    logger.For("app"),
		Closers:   closers,
	})
	if err != nil {
		closeNotifiers(notifiers)
		closeAll(closers)
		_ = history.Close()
		return nil, err
	}
	return a, nil
}

// newSynopsizer returns the configured generator behind the daily request
// budget, and the client to release when one holds a connection. The
// budget usage is reported through m.
func newSynopsizer(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (news.Synopsizer, io.Closer, error) {
	var (
		client news.Synopsizer
		closer io.Closer
	)
	switch cfg.SynopsisProvider {
	case config.ProviderGemini:
		c, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, err
		}
		client, closer = c, c
	case config.ProviderOpenAI:
		client = gpt.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	default:
		return news.NoopSynopsizer{}, nil, nil
	}

	limiter := ratelimit.NewAIRateLimiter(map[string]int{
		cfg.SynopsisProvider: cfg.MaxSynopsisRequests,
	}, cfg.MaxSynopsisRequests)
	m.SetAIUsage(limiter.GetStats)
	return limiter.Limit(cfg.SynopsisProvider, client), closer, nil
}

func newNotifiers(cfg *config.Config, rc retry.RetryConfig) ([]Notifier, error) {
	var out []Notifier
	for _, name := range cfg.Notifiers {
		switch name {
		case config.NotifierStdout:
			out = append(out, StdoutNotifier{})
		case config.NotifierTelegram:
			t := telegram.New(cfg.TelegramToken, cfg.TelegramChatID)
			t.Retry = rc
			out = append(out, t)
		case config.NotifierEmail:
			out = append(out, email.New(email.Config{
				Server:    cfg.SMTPServer,
				Port:      cfg.SMTPPort,
				Sender:    cfg.EmailSender,
				Password:  cfg.EmailPassword,
				Recipient: cfg.EmailRecipient,
			}, rc))
		case config.NotifierNATS:
			bus, err := eventbus.NewNATSBus(eventbus.NATSConfig{URL: cfg.NATSURL, Subject: cfg.NATSSubject})
			if err != nil {
				closeNotifiers(out)
				return nil, err
			}
			out = append(out, bus)
		default:
			closeNotifiers(out)
			return nil, fmt.Errorf("unknown notifier %q", name)
		}
	}
	return out, nil
}

func closeNotifiers(notifiers []Notifier) {
	for _, n := range notifiers {
		if c, ok := n.(io.Closer); ok {
			_ = c.Close()
		}
	}
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}
