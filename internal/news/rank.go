package news

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// ErrNegativeLimit is returned when a caller asks for fewer than zero items.
var ErrNegativeLimit = errors.New("news: max count must not be negative")

// ErrNoSynopsis is returned by synopsizers that cannot produce a synopsis.
var ErrNoSynopsis = errors.New("news: synopsis unavailable")

const (
	DefaultSynopsisTimeout  = 15 * time.Second
	DefaultSynopsisMaxRunes = 200
)

// Synopsizer produces a condensed synopsis of an item. Implementations
// should honour ctx; the selector stops waiting when it expires.
type Synopsizer interface {
	Synopsize(ctx context.Context, item *Item) (string, error)
}

// SynopsizerFunc adapts a function to Synopsizer.
type SynopsizerFunc func(ctx context.Context, item *Item) (string, error)

func (f SynopsizerFunc) Synopsize(ctx context.Context, item *Item) (string, error) {
	return f(ctx, item)
}

// NoopSynopsizer never produces a synopsis, so every selected item gets
// the truncated summary.
type NoopSynopsizer struct{}

func (NoopSynopsizer) Synopsize(context.Context, *Item) (string, error) {
	return "", ErrNoSynopsis
}

// Selector sorts scored items, keeps the top N and attaches synopses.
type Selector struct {
	synopsizer Synopsizer
	timeout    time.Duration
	maxRunes   int
	logger     *slog.Logger
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithSynopsizer sets the synopsis generator. nil keeps the no-op default.
func WithSynopsizer(s Synopsizer) SelectorOption {
	return func(sel *Selector) {
		if s != nil {
			sel.synopsizer = s
		}
	}
}

// WithSynopsisTimeout bounds every synopsis call.
func WithSynopsisTimeout(d time.Duration) SelectorOption {
	return func(sel *Selector) {
		if d > 0 {
			sel.timeout = d
		}
	}
}

// WithSynopsisLength sets the fallback truncation length in runes.
func WithSynopsisLength(n int) SelectorOption {
	return func(sel *Selector) {
		if n > 0 {
			sel.maxRunes = n
		}
	}
}

// WithLogger sets the selector logger.
func WithLogger(l *slog.Logger) SelectorOption {
	return func(sel *Selector) {
		if l != nil {
			sel.logger = l
		}
	}
}

// NewSelector builds a selector; without options it never calls out.
func NewSelector(opts ...SelectorOption) *Selector {
	s := &Selector{
		synopsizer: NoopSynopsizer{},
		timeout:    DefaultSynopsisTimeout,
		maxRunes:   DefaultSynopsisMaxRunes,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelectTop returns at most maxCount scored items ordered by score,
// highest first. Equal scores keep their input order.
func (s *Selector) SelectTop(ctx context.Context, items []*Item, maxCount int) ([]*Item, error) {
	top, _, err := s.selectTop(ctx, items, maxCount)
	return top, err
}

func (s *Selector) selectTop(ctx context.Context, items []*Item, maxCount int) ([]*Item, int, error) {
	if maxCount < 0 {
		return nil, 0, ErrNegativeLimit
	}

	ranked := make([]*Item, 0, len(items))
	for _, it := range items {
		if !it.Scored() {
			s.logger.Debug("unscored item skipped", "title", titleOf(it))
			continue
		}
		ranked = append(ranked, it)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if len(ranked) > maxCount {
		ranked = ranked[:maxCount]
	}

	fallbacks := 0
	for _, it := range ranked {
		text, err := s.synopsis(ctx, it)
		text = strings.TrimSpace(text)
		if err != nil || text == "" {
			if err != nil && !errors.Is(err, ErrNoSynopsis) {
				s.logger.Warn("synopsis failed, using truncated summary", "title", it.Title, "error", err)
			}
			it.ShortSummary = TruncateSummary(it.Summary, s.maxRunes)
			fallbacks++
			continue
		}
		it.ShortSummary = text
	}
	return ranked, fallbacks, nil
}

// synopsis runs one bounded call. The synopsizer gets a copy of the item
// so a call that outlives the timeout cannot observe later writes.
func (s *Selector) synopsis(ctx context.Context, item *Item) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	snapshot := *item
	done := make(chan result, 1)
	go func() {
		text, err := s.synopsizer.Synopsize(ctx, &snapshot)
		done <- result{text: text, err: err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func titleOf(it *Item) string {
	if it == nil {
		return ""
	}
	return it.Title
}
