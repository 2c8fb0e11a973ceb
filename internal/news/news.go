// Package news implements the ranking and deduplication pipeline: keyword
// filtering, title-similarity deduplication, four-factor scoring and top-N
// selection with optional synopses.
package news

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxExtractedRunes bounds Item.ExtractedContent.
const MaxExtractedRunes = 1000

// Factor names one sub-score of the relevance model.
type Factor string

const (
	FactorRecency        Factor = "recency"
	FactorSourceQuality  Factor = "sourceQuality"
	FactorTopicRelevance Factor = "topicRelevance"
	FactorEngagement     Factor = "engagement"
)

// AllFactors lists every factor in breakdown order.
var AllFactors = []Factor{FactorRecency, FactorSourceQuality, FactorTopicRelevance, FactorEngagement}

// Item is a single news entry flowing through one pipeline run.
type Item struct {
	Title            string
	URL              string
	Summary          string
	ExtractedContent string
	Source           string
	PublishedAt      time.Time

	// Filled by the scorer.
	Score        float64
	Breakdown    map[Factor]float64
	ShortSummary string
}

// Scored reports whether the scorer has processed the item.
func (i *Item) Scored() bool {
	return i != nil && i.Breakdown != nil
}

// SetExtractedContent stores page content, truncated to MaxExtractedRunes.
func (i *Item) SetExtractedContent(content string) {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) > MaxExtractedRunes {
		content = string([]rune(content)[:MaxExtractedRunes])
	}
	i.ExtractedContent = content
}

// TruncateSummary cuts s to at most maxRunes runes and appends "..." when
// anything was removed.
func TruncateSummary(s string, maxRunes int) string {
	s = strings.TrimSpace(s)
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	cut := strings.TrimSpace(string([]rune(s)[:maxRunes]))
	return cut + "..."
}
