package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/deusflow/ainews/internal/config"
	"github.com/deusflow/ainews/internal/email"
	"github.com/deusflow/ainews/internal/metrics"
	"github.com/deusflow/ainews/internal/news"
	"github.com/deusflow/ainews/internal/retry"
	"github.com/deusflow/ainews/internal/telegram"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	feeds := filepath.Join(t.TempDir(), "feeds.yaml")
	if err := os.WriteFile(feeds, []byte("feeds:\n  - name: Test\n    url: http://127.0.0.1:1/feed\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FEEDS_CONFIG_PATH", feeds)
	t.Setenv("NOTIFIERS", "stdout")
	t.Setenv("HISTORY_BACKEND", "none")
	t.Setenv("SYNOPSIS_PROVIDER", "none")
	return config.FromEnv()
}

func TestFromConfig(t *testing.T) {
	cfg := testConfig(t)
	a, err := FromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}
	defer a.Close()

	src, ok := a.source.(FeedSource)
	if !ok || len(src.Feeds) != 1 || src.Feeds[0].Name != "Test" {
		t.Fatalf("source = %#v", a.source)
	}
	if src.Fetcher.ItemLimit != cfg.FeedItemLimit || src.Fetcher.MaxAge != cfg.NewsMaxAge {
		t.Errorf("fetcher limits not taken from config")
	}
	if len(a.notifiers) != 1 || a.notifiers[0].Name() != "stdout" {
		t.Errorf("notifiers = %v", a.notifiers)
	}
}

func TestFromConfigMissingFeeds(t *testing.T) {
	cfg := testConfig(t)
	cfg.FeedsConfigPath = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := FromConfig(context.Background(), cfg); err == nil {
		t.Error("FromConfig() should fail without a feeds file")
	}
}

func TestNewNotifiers(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notifiers = []string{"stdout", "telegram", "email"}
	cfg.TelegramToken = "token"
	cfg.TelegramChatID = "42"
	rc := retry.RetryConfig{MaxAttempts: 5, Delay: time.Second}

	got, err := newNotifiers(cfg, rc)
	if err != nil {
		t.Fatalf("newNotifiers() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d notifiers, want 3", len(got))
	}
	if _, ok := got[1].(*telegram.Notifier); !ok {
		t.Errorf("second notifier is %T", got[1])
	}
	if tg := got[1].(*telegram.Notifier); tg.Retry.MaxAttempts != 5 {
		t.Errorf("telegram retry attempts = %d, want 5", tg.Retry.MaxAttempts)
	}
	if _, ok := got[2].(*email.Notifier); !ok {
		t.Errorf("third notifier is %T", got[2])
	}

	cfg.Notifiers = []string{"pigeon"}
	if _, err := newNotifiers(cfg, rc); err == nil {
		t.Error("newNotifiers() should reject unknown names")
	}
}

func TestNewSynopsizerNone(t *testing.T) {
	cfg := testConfig(t)
	m := metrics.New()
	s, closer, err := newSynopsizer(context.Background(), cfg, m)
	if err != nil {
		t.Fatalf("newSynopsizer() error = %v", err)
	}
	if closer != nil {
		t.Error("no closer expected without a provider")
	}
	if _, ok := s.(news.NoopSynopsizer); !ok {
		t.Errorf("synopsizer is %T, want NoopSynopsizer", s)
	}
	if _, ok := m.GetStats()["ai_usage"]; ok {
		t.Error("ai_usage reported without a provider")
	}
}

func TestNewSynopsizerReportsBudget(t *testing.T) {
	cfg := testConfig(t)
	cfg.SynopsisProvider = config.ProviderOpenAI
	cfg.OpenAIAPIKey = "sk-test"
	cfg.MaxSynopsisRequests = 2
	m := metrics.New()

	if _, _, err := newSynopsizer(context.Background(), cfg, m); err != nil {
		t.Fatalf("newSynopsizer() error = %v", err)
	}
	usage, ok := m.GetStats()["ai_usage"].(map[string]interface{})
	if !ok {
		t.Fatalf("ai_usage missing from stats: %v", m.GetStats())
	}
	if usage["openai_limit"] != 2 || usage["openai_used"] != 0 {
		t.Errorf("ai_usage = %v", usage)
	}
}

func TestFeedSourceSampleWithoutFeeds(t *testing.T) {
	if _, err := (FeedSource{}).FetchSample(context.Background()); err == nil {
		t.Error("FetchSample() should fail without feeds")
	}
}
