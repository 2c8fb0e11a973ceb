package news

import (
	"context"
	"runtime"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/deusflow/ainews/internal/profile"
)

const (
	maxSubScore = 10.0
	minSubScore = 0.0

	coreKeywordPoints = 2
	highValuePoints   = 1
	titleKeywordBonus = 2
	questionMarkBonus = 1
	digitInTitleBonus = 1
)

// Scorer computes the four sub-scores and their weighted sum. It is a pure
// function of the item and Now.
type Scorer struct {
	profile   *profile.Profile
	core      vocabulary
	highValue vocabulary
	attention vocabulary

	// Now is the clock; tests pin it.
	Now func() time.Time
}

// NewScorer builds a scorer for the given profile.
func NewScorer(p *profile.Profile) *Scorer {
	return &Scorer{
		profile:   p,
		core:      newVocabulary(p.CoreKeywords),
		highValue: newVocabulary(p.HighValueKeywords),
		attention: newVocabulary(p.AttentionWords),
		Now:       time.Now,
	}
}

func clamp(v float64) float64 {
	return max(minSubScore, min(maxSubScore, v))
}

// recencyScore buckets elapsed hours coarsely so that feed polling jitter
// does not reorder items published minutes apart.
func recencyScore(hours float64) float64 {
	switch {
	case hours <= 2:
		return 10
	case hours <= 6:
		return 8
	case hours <= 12:
		return 6
	case hours <= 24:
		return 4
	default:
		return 2
	}
}

func (s *Scorer) recency(published, now time.Time) float64 {
	if published.IsZero() {
		return clamp(recencyScore(0))
	}
	hours := now.Sub(published).Hours()
	if hours < 0 {
		hours = 0
	}
	return clamp(recencyScore(hours))
}

func (s *Scorer) sourceQuality(source string) float64 {
	return clamp(s.profile.SourceRank(source))
}

func (s *Scorer) topicRelevance(title, summary, content string) float64 {
	lowTitle := strings.ToLower(title)
	text := lowTitle + " " + strings.ToLower(summary) + " " + strings.ToLower(content)

	score := coreKeywordPoints*s.core.count(text) + highValuePoints*s.highValue.count(text)
	if s.core.containsAny(lowTitle) {
		score += titleKeywordBonus
	}
	return clamp(float64(score))
}

func (s *Scorer) engagement(title, summary string) float64 {
	text := strings.ToLower(title + " " + summary)
	score := s.attention.count(text)
	if strings.Contains(title, "?") {
		score += questionMarkBonus
	}
	if strings.IndexFunc(title, unicode.IsDigit) >= 0 {
		score += digitInTitleBonus
	}
	return clamp(float64(score))
}

// Score fills item.Breakdown, item.Score and item.ShortSummary and returns
// the weighted score.
func (s *Scorer) Score(item *Item) float64 {
	if item == nil {
		return 0
	}
	now := s.Now()
	w := s.profile.Weights

	breakdown := map[Factor]float64{
		FactorRecency:        s.recency(item.PublishedAt, now),
		FactorSourceQuality:  s.sourceQuality(item.Source),
		FactorTopicRelevance: s.topicRelevance(item.Title, item.Summary, item.ExtractedContent),
		FactorEngagement:     s.engagement(item.Title, item.Summary),
	}
	total := breakdown[FactorRecency]*w.Recency +
		breakdown[FactorSourceQuality]*w.SourceQuality +
		breakdown[FactorTopicRelevance]*w.TopicRelevance +
		breakdown[FactorEngagement]*w.Engagement

	item.Breakdown = breakdown
	item.Score = total
	item.ShortSummary = TruncateSummary(item.Summary, s.profile.SynopsisMaxRunes)
	return total
}

// ScoreAll scores every item concurrently. Each item is touched by exactly
// one goroutine.
func (s *Scorer) ScoreAll(ctx context.Context, items []*Item) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, it := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.Score(it)
			return nil
		})
	}
	return g.Wait()
}
