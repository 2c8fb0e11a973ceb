// Package app runs the daily digest: fetch, drop already-sent items, rank,
// deliver, remember.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/deusflow/ainews/internal/digest"
	"github.com/deusflow/ainews/internal/metrics"
	"github.com/deusflow/ainews/internal/news"
	"github.com/deusflow/ainews/internal/storage"
)

// Notifier delivers a digest to one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, d digest.Digest) error
}

// Pinger is implemented by notifiers that can verify their configuration
// without sending anything.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Source supplies the raw batch for a run.
type Source interface {
	Fetch(ctx context.Context) ([]*news.Item, error)
	// FetchSample reads a single feed for health checks.
	FetchSample(ctx context.Context) ([]*news.Item, error)
}

type Deps struct {
	Source    Source
	Pipeline  *news.Pipeline
	History   storage.History
	Notifiers []Notifier
	Metrics   *metrics.Metrics
	MaxItems  int
	Now       func() time.Time
	Logger    *slog.Logger
	// Closers are released by Close after the history and notifiers.
	Closers []io.Closer
}

type App struct {
	source    Source
	pipeline  *news.Pipeline
	history   storage.History
	notifiers []Notifier
	metrics   *metrics.Metrics
	maxItems  int
	now       func() time.Time
	logger    *slog.Logger
	closers   []io.Closer
}

func New(d Deps) (*App, error) {
	if d.Source == nil {
		return nil, errors.New("app: source is required")
	}
	if len(d.Notifiers) == 0 {
		return nil, errors.New("app: at least one notifier is required")
	}
	if d.MaxItems < 0 {
		return nil, news.ErrNegativeLimit
	}

	a := &App{
		source:    d.Source,
		pipeline:  d.Pipeline,
		history:   d.History,
		notifiers: d.Notifiers,
		metrics:   d.Metrics,
		maxItems:  d.MaxItems,
		now:       d.Now,
		logger:    d.Logger,
		closers:   d.Closers,
	}
	if a.logger == nil {
		a.logger = slog.Default().With("component", "app")
	}
	if a.pipeline == nil {
		a.pipeline = news.NewPipeline(news.PipelineDeps{Logger: a.logger})
	}
	if a.history == nil {
		a.history = storage.NopHistory{}
	}
	if a.metrics == nil {
		a.metrics = metrics.Global
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a, nil
}

// RunOnce performs one full run and returns the delivered digest. An empty
// ranking is still delivered. When fetching or ranking fails, an error
// digest is sent instead and the cause returned.
func (a *App) RunOnce(ctx context.Context) (digest.Digest, error) {
	start := time.Now()
	a.logger.Info("starting daily AI news summary")

	items, err := a.source.Fetch(ctx)
	if err != nil {
		return a.fail(ctx, fmt.Errorf("collect news: %w", err))
	}
	a.logger.Info("collected articles", "count", len(items))

	fresh, alreadySent := a.dropSent(ctx, items)

	res, err := a.pipeline.Run(ctx, fresh, a.maxItems)
	if err != nil {
		return a.fail(ctx, fmt.Errorf("rank news: %w", err))
	}
	if len(res.Items) == 0 {
		a.logger.Warn("no articles selected, sending empty summary")
	}

	d := digest.New(digest.KindDaily, res.Items, res.Stats, a.now())
	delivered, err := a.notifyAll(ctx, d)
	if delivered > 0 {
		a.markSent(ctx, res.Items)
	}

	a.metrics.RecordRun(metrics.RunCounts{
		Fetched:     len(items),
		Relevant:    res.Stats.Relevant,
		Duplicates:  res.Stats.Relevant - res.Stats.Unique,
		AlreadySent: alreadySent,
		Synopses:    res.Stats.Selected - res.Stats.SynopsisFallbacks,
		Fallbacks:   res.Stats.SynopsisFallbacks,
	})
	a.metrics.RecordProcessingTime(time.Since(start))

	if err != nil {
		a.metrics.SetError(err.Error())
		return d, err
	}
	a.metrics.SetLastRun()
	a.logger.Info("daily summary completed",
		"articles", len(d.Items),
		"avg_score", fmt.Sprintf("%.1f", d.AverageScore()),
		"sources", d.SourceCount(),
		"duration", time.Since(start).Round(time.Millisecond))
	return d, nil
}

// SendTest delivers the sample digest to every notifier.
func (a *App) SendTest(ctx context.Context) error {
	_, err := a.notifyAll(ctx, digest.Sample(a.now()))
	if err != nil {
		return err
	}
	a.logger.Info("test digest sent")
	return nil
}

// Check verifies notifier configuration, reads one feed and ranks a few of
// its items. The first failing step stops the check.
func (a *App) Check(ctx context.Context) error {
	for _, n := range a.notifiers {
		p, ok := n.(Pinger)
		if !ok {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s connection test failed: %w", n.Name(), err)
		}
		a.logger.Info("notifier connection test passed", "notifier", n.Name())
	}

	items, err := a.source.FetchSample(ctx)
	if err != nil {
		return fmt.Errorf("news collection test failed: %w", err)
	}
	if len(items) == 0 {
		a.logger.Warn("news collection test found no articles (might be normal)")
		return nil
	}
	a.logger.Info("news collection test passed", "articles", len(items))

	if len(items) > 3 {
		items = items[:3]
	}
	res, err := a.pipeline.Run(ctx, items, 3)
	if err != nil {
		return fmt.Errorf("news processing test failed: %w", err)
	}
	a.logger.Info("news processing test passed", "processed", len(res.Items))
	return nil
}

// Recent lists recently delivered items.
func (a *App) Recent(ctx context.Context, limit int) ([]storage.SentItem, error) {
	return a.history.Recent(ctx, limit)
}

// Close releases the history and any notifier holding a connection.
func (a *App) Close() error {
	errs := []error{a.history.Close()}
	for _, n := range a.notifiers {
		if c, ok := n.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func (a *App) fail(ctx context.Context, cause error) (digest.Digest, error) {
	a.logger.Error("error in daily summary process", "error", cause)
	a.metrics.SetError(cause.Error())

	d := digest.NewError(cause, a.now())
	if _, err := a.notifyAll(ctx, d); err != nil {
		a.logger.Error("failed to send error notification", "error", err)
	}
	return d, cause
}

// notifyAll sends d to every notifier and reports how many succeeded.
func (a *App) notifyAll(ctx context.Context, d digest.Digest) (int, error) {
	var (
		delivered int
		errs      []error
	)
	for _, n := range a.notifiers {
		if err := n.Notify(ctx, d); err != nil {
			a.metrics.IncrementNotifyFailures()
			a.logger.Error("failed to deliver digest", "notifier", n.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		delivered++
		a.metrics.IncrementDigestsSent()
	}
	return delivered, errors.Join(errs...)
}
