package app

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/deusflow/ainews/internal/digest"
	"github.com/deusflow/ainews/internal/metrics"
	"github.com/deusflow/ainews/internal/news"
	"github.com/deusflow/ainews/internal/storage"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	items []*news.Item
	err   error
}

func (s *fakeSource) Fetch(context.Context) ([]*news.Item, error) {
	return s.items, s.err
}

func (s *fakeSource) FetchSample(context.Context) ([]*news.Item, error) {
	return s.items, s.err
}

type fakeNotifier struct {
	name    string
	err     error
	pingErr error
	sent    []digest.Digest
	closed  bool
}

func (n *fakeNotifier) Name() string { return n.name }

func (n *fakeNotifier) Notify(_ context.Context, d digest.Digest) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, d)
	return nil
}

func (n *fakeNotifier) Ping(context.Context) error { return n.pingErr }

func (n *fakeNotifier) Close() error {
	n.closed = true
	return nil
}

func batch() []*news.Item {
	return []*news.Item{
		{
			Title:       "OpenAI releases new GPT model",
			URL:         "https://techcrunch.com/openai-gpt",
			Summary:     "A new language model from OpenAI.",
			Source:      "TechCrunch AI",
			PublishedAt: fixedNow.Add(-2 * time.Hour),
		},
		{
			Title:       "Robotics lab unveils machine learning breakthrough",
			URL:         "https://wired.com/robotics-ml",
			Summary:     "Researchers show a new neural network for robots.",
			Source:      "Wired",
			PublishedAt: fixedNow.Add(-5 * time.Hour),
		},
		{
			Title:       "Local bakery wins award",
			URL:         "https://example.com/bakery",
			Summary:     "Best bread in town.",
			Source:      "Wired",
			PublishedAt: fixedNow.Add(-1 * time.Hour),
		},
	}
}

func newTestApp(t *testing.T, src Source, h storage.History, notifiers ...Notifier) (*App, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	a, err := New(Deps{
		Source:    src,
		Pipeline:  news.NewPipeline(news.PipelineDeps{Now: func() time.Time { return fixedNow }}),
		History:   h,
		Notifiers: notifiers,
		Metrics:   m,
		MaxItems:  10,
		Now:       func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a, m
}

func titles(items []*news.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Title)
	}
	return out
}

func TestNewValidates(t *testing.T) {
	n := &fakeNotifier{name: "fake"}
	if _, err := New(Deps{Notifiers: []Notifier{n}}); err == nil {
		t.Error("New() without source should fail")
	}
	if _, err := New(Deps{Source: &fakeSource{}}); err == nil {
		t.Error("New() without notifiers should fail")
	}
	_, err := New(Deps{Source: &fakeSource{}, Notifiers: []Notifier{n}, MaxItems: -1})
	if !errors.Is(err, news.ErrNegativeLimit) {
		t.Errorf("New() error = %v, want ErrNegativeLimit", err)
	}
}

func TestRunOnceDeliversRankedDigest(t *testing.T) {
	n := &fakeNotifier{name: "fake"}
	a, m := newTestApp(t, &fakeSource{items: batch()}, nil, n)

	d, err := a.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if d.Kind != digest.KindDaily {
		t.Errorf("Kind = %q, want daily", d.Kind)
	}
	want := []string{
		"OpenAI releases new GPT model",
		"Robotics lab unveils machine learning breakthrough",
	}
	sortStrings := cmpopts.SortSlices(func(a, b string) bool { return a < b })
	if diff := cmp.Diff(want, titles(d.Items), sortStrings); diff != "" {
		t.Errorf("digest items mismatch (-want +got):\n%s", diff)
	}
	if len(n.sent) != 1 || n.sent[0].ID != d.ID {
		t.Fatalf("notifier got %d digests, want the returned one", len(n.sent))
	}
	for _, it := range d.Items {
		if it.ShortSummary == "" {
			t.Errorf("%q has no short summary", it.Title)
		}
	}

	stats := m.GetStats()
	if stats["items_fetched"] != int64(3) || stats["items_relevant"] != int64(2) {
		t.Errorf("fetched/relevant = %v/%v, want 3/2", stats["items_fetched"], stats["items_relevant"])
	}
	if stats["digests_sent"] != int64(1) || !m.Healthy() {
		t.Errorf("digests_sent = %v healthy = %v", stats["digests_sent"], m.Healthy())
	}
}

func TestRunOnceSendsEmptyDigest(t *testing.T) {
	n := &fakeNotifier{name: "fake"}
	a, _ := newTestApp(t, &fakeSource{}, nil, n)

	d, err := a.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if !d.Empty() || len(n.sent) != 1 {
		t.Fatalf("want one empty digest delivered, got empty=%v sent=%d", d.Empty(), len(n.sent))
	}
	if !strings.Contains(d.Subject(), "No News Today") {
		t.Errorf("Subject() = %q", d.Subject())
	}
}

func TestRunOnceFetchFailureSendsErrorDigest(t *testing.T) {
	n := &fakeNotifier{name: "fake"}
	cause := errors.New("all feeds down")
	a, m := newTestApp(t, &fakeSource{err: cause}, nil, n)

	d, err := a.RunOnce(context.Background())
	if !errors.Is(err, cause) {
		t.Fatalf("RunOnce() error = %v, want %v", err, cause)
	}
	if d.Kind != digest.KindError || len(n.sent) != 1 || n.sent[0].Kind != digest.KindError {
		t.Fatalf("want error digest delivered, got kind=%q sent=%d", d.Kind, len(n.sent))
	}
	if !strings.Contains(d.Error, "all feeds down") {
		t.Errorf("Error = %q", d.Error)
	}
	if m.Healthy() {
		t.Error("metrics should be unhealthy after a failed run")
	}
}

func TestRunOnceSkipsAlreadySentAndRemembers(t *testing.T) {
	h := storage.NewFileCache(filepath.Join(t.TempDir(), "sent.json"), 48*time.Hour)
	n := &fakeNotifier{name: "fake"}
	src := &fakeSource{items: batch()}
	a, m := newTestApp(t, src, h, n)
	ctx := context.Background()

	if _, err := a.RunOnce(ctx); err != nil {
		t.Fatalf("first RunOnce() error = %v", err)
	}
	if !h.Seen(ctx, "https://techcrunch.com/openai-gpt") {
		t.Fatal("delivered item was not recorded")
	}
	if h.Seen(ctx, "https://example.com/bakery") {
		t.Error("filtered item should not be recorded")
	}

	src.items = batch()
	d, err := a.RunOnce(ctx)
	if err != nil {
		t.Fatalf("second RunOnce() error = %v", err)
	}
	if !d.Empty() {
		t.Errorf("second run items = %v, want none", titles(d.Items))
	}
	if got := m.GetStats()["already_sent"]; got != int64(2) {
		t.Errorf("already_sent = %v, want 2", got)
	}

	recent, err := a.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("Recent() returned %d items, want 2", len(recent))
	}
}

func TestRunOnceNothingDeliveredNothingRemembered(t *testing.T) {
	h := storage.NewFileCache(filepath.Join(t.TempDir(), "sent.json"), 0)
	bad := &fakeNotifier{name: "bad", err: errors.New("down")}
	a, m := newTestApp(t, &fakeSource{items: batch()}, h, bad)

	_, err := a.RunOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "bad: down") {
		t.Fatalf("RunOnce() error = %v, want notifier failure", err)
	}
	if h.Seen(context.Background(), "https://techcrunch.com/openai-gpt") {
		t.Error("undelivered items must not be recorded")
	}
	if got := m.GetStats()["notify_failures"]; got != int64(1) {
		t.Errorf("notify_failures = %v, want 1", got)
	}
}

func TestRunOncePartialDelivery(t *testing.T) {
	h := storage.NewFileCache(filepath.Join(t.TempDir(), "sent.json"), 0)
	good := &fakeNotifier{name: "good"}
	bad := &fakeNotifier{name: "bad", err: errors.New("down")}
	a, _ := newTestApp(t, &fakeSource{items: batch()}, h, bad, good)

	if _, err := a.RunOnce(context.Background()); err == nil {
		t.Fatal("RunOnce() should report the failing notifier")
	}
	if len(good.sent) != 1 {
		t.Errorf("good notifier got %d digests, want 1", len(good.sent))
	}
	if !h.Seen(context.Background(), "https://techcrunch.com/openai-gpt") {
		t.Error("items delivered by at least one notifier should be recorded")
	}
}

func TestSendTest(t *testing.T) {
	var buf bytes.Buffer
	n := &fakeNotifier{name: "fake"}
	a, _ := newTestApp(t, &fakeSource{}, nil, n, StdoutNotifier{W: &buf})

	if err := a.SendTest(context.Background()); err != nil {
		t.Fatalf("SendTest() error = %v", err)
	}
	if len(n.sent) != 1 || n.sent[0].Kind != digest.KindTest {
		t.Fatalf("want one test digest, got %d", len(n.sent))
	}
	if !strings.HasPrefix(buf.String(), "[TEST] ") {
		t.Errorf("stdout output = %q, want [TEST] subject first", buf.String())
	}
}

func TestCheck(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		a, _ := newTestApp(t, &fakeSource{items: batch()}, nil, &fakeNotifier{name: "fake"})
		if err := a.Check(context.Background()); err != nil {
			t.Errorf("Check() error = %v", err)
		}
	})
	t.Run("ping failure", func(t *testing.T) {
		n := &fakeNotifier{name: "fake", pingErr: errors.New("bad token")}
		a, _ := newTestApp(t, &fakeSource{items: batch()}, nil, n)
		err := a.Check(context.Background())
		if err == nil || !strings.Contains(err.Error(), "fake connection test failed") {
			t.Errorf("Check() error = %v", err)
		}
	})
	t.Run("fetch failure", func(t *testing.T) {
		a, _ := newTestApp(t, &fakeSource{err: errors.New("timeout")}, nil, &fakeNotifier{name: "fake"})
		if err := a.Check(context.Background()); err == nil {
			t.Error("Check() should fail when the sample feed fails")
		}
	})
	t.Run("empty feed", func(t *testing.T) {
		a, _ := newTestApp(t, &fakeSource{}, nil, &fakeNotifier{name: "fake"})
		if err := a.Check(context.Background()); err != nil {
			t.Errorf("Check() error = %v, want nil for an empty feed", err)
		}
	})
}

func TestCloseReleasesNotifiers(t *testing.T) {
	n := &fakeNotifier{name: "fake"}
	a, _ := newTestApp(t, &fakeSource{}, nil, n)
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !n.closed {
		t.Error("notifier was not closed")
	}
}
