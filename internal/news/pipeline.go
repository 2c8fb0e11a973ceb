package news

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/deusflow/ainews/internal/profile"
)

// Enricher adds page content to items. It is best-effort: failures leave
// items unchanged and are not reported.
type Enricher interface {
	Enrich(ctx context.Context, items []*Item)
}

// Stats counts items at every stage of one run.
type Stats struct {
	Input             int
	Relevant          int
	Unique            int
	Selected          int
	SynopsisFallbacks int
	Duration          time.Duration
}

// Result is the outcome of one pipeline run.
type Result struct {
	Items []*Item
	Stats Stats
}

// PipelineDeps wires the optional collaborators into a Pipeline.
type PipelineDeps struct {
	Profile         *profile.Profile
	Deduper         Deduper
	Enricher        Enricher
	Synopsizer      Synopsizer
	SynopsisTimeout time.Duration
	Now             func() time.Time
	Logger          *slog.Logger
}

// Pipeline chains filter, dedupe, enrichment, scoring and selection.
type Pipeline struct {
	filter   *KeywordFilter
	deduper  Deduper
	enricher Enricher
	scorer   *Scorer
	selector *Selector
	logger   *slog.Logger
}

// NewPipeline builds a pipeline; a nil Profile selects profile.Default().
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := deps.Profile
	if p == nil {
		p = profile.Default()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	deduper := deps.Deduper
	if deduper == nil {
		deduper = &TitleDeduper{Threshold: p.DuplicateThreshold, Similarity: Jaccard, Logger: logger}
	}

	scorer := NewScorer(p)
	if deps.Now != nil {
		scorer.Now = deps.Now
	}

	return &Pipeline{
		filter:   NewKeywordFilter(p.FilterKeywords),
		deduper:  deduper,
		enricher: deps.Enricher,
		scorer:   scorer,
		selector: NewSelector(
			WithSynopsizer(deps.Synopsizer),
			WithSynopsisTimeout(deps.SynopsisTimeout),
			WithSynopsisLength(p.SynopsisMaxRunes),
			WithLogger(logger),
		),
		logger: logger,
	}
}

// Run processes one batch and returns at most maxCount ranked items. An
// empty batch yields an empty result, not an error.
func (p *Pipeline) Run(ctx context.Context, items []*Item, maxCount int) (Result, error) {
	if maxCount < 0 {
		return Result{}, ErrNegativeLimit
	}
	start := time.Now()
	stats := Stats{Input: len(items)}

	relevant := p.filter.Apply(items)
	stats.Relevant = len(relevant)

	unique := p.deduper.Dedupe(relevant)
	stats.Unique = len(unique)
	p.logger.Info("filtered batch", "input", stats.Input, "relevant", stats.Relevant, "unique", stats.Unique)

	if len(unique) == 0 {
		stats.Duration = time.Since(start)
		return Result{Items: []*Item{}, Stats: stats}, nil
	}

	if p.enricher != nil {
		p.enricher.Enrich(ctx, unique)
	}

	if err := p.scorer.ScoreAll(ctx, unique); err != nil {
		return Result{}, fmt.Errorf("score items: %w", err)
	}

	top, fallbacks, err := p.selector.selectTop(ctx, unique, maxCount)
	if err != nil {
		return Result{}, fmt.Errorf("select top items: %w", err)
	}
	stats.Selected = len(top)
	stats.SynopsisFallbacks = fallbacks
	stats.Duration = time.Since(start)

	for i, it := range top {
		p.logger.Debug("ranked item", "rank", i+1, "score", it.Score, "source", it.Source, "title", it.Title)
	}
	return Result{Items: top, Stats: stats}, nil
}
