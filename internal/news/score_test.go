package news

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/deusflow/ainews/internal/profile"
)

var fixedNow = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

func fixedScorer(p *profile.Profile) *Scorer {
	s := NewScorer(p)
	s.Now = func() time.Time { return fixedNow }
	return s
}

func TestScoreBreakthroughFromTopSource(t *testing.T) {
	t.Parallel()

	item := &Item{
		Title:       "AI breakthrough: new model announced",
		URL:         "https://www.technologyreview.com/ai-breakthrough",
		Source:      "MIT Technology Review",
		PublishedAt: fixedNow.Add(-1 * time.Hour),
	}
	score := fixedScorer(profile.Default()).Score(item)

	b := item.Breakdown
	if b[FactorRecency] != 10 {
		t.Errorf("recency = %v, want 10", b[FactorRecency])
	}
	if b[FactorSourceQuality] != 10 {
		t.Errorf("sourceQuality = %v, want 10", b[FactorSourceQuality])
	}
	if b[FactorTopicRelevance] < 8 {
		t.Errorf("topicRelevance = %v, want >= 8", b[FactorTopicRelevance])
	}
	if b[FactorEngagement] < 2 {
		t.Errorf("engagement = %v, want >= 2", b[FactorEngagement])
	}
	if score < 8.0 {
		t.Errorf("score = %v, want >= 8.0", score)
	}
	if item.Score != score {
		t.Errorf("item.Score = %v, returned %v", item.Score, score)
	}
}

func TestScoreIsIdempotent(t *testing.T) {
	t.Parallel()

	s := fixedScorer(profile.Default())
	item := &Item{
		Title:       "Is GPT-5 the first AGI? 3 experts weigh in",
		Summary:     "Researchers discuss the latest large language model release.",
		Source:      "Wired",
		PublishedAt: fixedNow.Add(-5 * time.Hour),
	}
	first := s.Score(item)
	firstBreakdown := item.Breakdown
	second := s.Score(item)

	if first != second {
		t.Errorf("scores differ: %v vs %v", first, second)
	}
	if diff := cmp.Diff(firstBreakdown, item.Breakdown); diff != "" {
		t.Errorf("breakdown changed (-first +second):\n%s", diff)
	}
}

func TestRecencyBuckets(t *testing.T) {
	t.Parallel()

	s := fixedScorer(profile.Default())
	cases := []struct {
		published time.Time
		want      float64
	}{
		{fixedNow, 10},
		{fixedNow.Add(-2 * time.Hour), 10},
		{fixedNow.Add(-2*time.Hour - time.Minute), 8},
		{fixedNow.Add(-6 * time.Hour), 8},
		{fixedNow.Add(-12 * time.Hour), 6},
		{fixedNow.Add(-24 * time.Hour), 4},
		{fixedNow.Add(-25 * time.Hour), 2},
		{fixedNow.Add(3 * time.Hour), 10},
		{time.Time{}, 10},
	}
	for _, tc := range cases {
		if got := s.recency(tc.published, fixedNow); got != tc.want {
			t.Errorf("recency(%v) = %v, want %v", fixedNow.Sub(tc.published), got, tc.want)
		}
	}
}

func TestSourceQualityDefaultsForUnknownSource(t *testing.T) {
	t.Parallel()

	s := fixedScorer(profile.Default())
	if got := s.sourceQuality("Random Substack"); got != 5 {
		t.Errorf("sourceQuality = %v, want 5", got)
	}
	if got := s.sourceQuality(""); got != 5 {
		t.Errorf("sourceQuality(empty) = %v, want 5", got)
	}
}

func TestEngagementBonuses(t *testing.T) {
	t.Parallel()

	s := fixedScorer(profile.Default())
	if got := s.engagement("Why do chips matter?", ""); got != 1 {
		t.Errorf("question bonus: got %v, want 1", got)
	}
	if got := s.engagement("Top 5 chips", ""); got != 1 {
		t.Errorf("digit bonus: got %v, want 1", got)
	}
	if got := s.engagement("Plain headline", "nothing here"); got != 0 {
		t.Errorf("no indicators: got %v, want 0", got)
	}
}

func TestEngagementMatchesInflectedVerbs(t *testing.T) {
	t.Parallel()

	s := fixedScorer(profile.Default())
	if got := s.engagement("Chipmaker unveils accelerator", "Startup launches agents"); got != 2 {
		t.Errorf("inflected verbs: got %v, want 2", got)
	}
	if got := s.engagement("Chipmaker unveiled accelerator", "Launch event planned"); got != 0 {
		t.Errorf("other verb forms: got %v, want 0", got)
	}
}

func TestSubScoresAreClamped(t *testing.T) {
	t.Parallel()

	p := profile.Default()
	p.SourceRanks["Overhyped"] = 42

	s := fixedScorer(p)
	flood := strings.Repeat(strings.Join(p.CoreKeywords, " ")+" "+strings.Join(p.AttentionWords, " ")+" 42? ", 100)
	items := []*Item{
		{},
		{Title: flood, Summary: flood, ExtractedContent: flood, Source: "Overhyped", PublishedAt: fixedNow.Add(-1000 * time.Hour)},
		{Title: "   ", Source: "", PublishedAt: fixedNow.Add(time.Hour)},
	}
	for _, it := range items {
		score := s.Score(it)
		for _, f := range AllFactors {
			v, ok := it.Breakdown[f]
			if !ok {
				t.Fatalf("breakdown missing %s", f)
			}
			if v < 0 || v > 10 {
				t.Errorf("%s = %v outside [0,10]", f, v)
			}
		}
		if score < 0 || score > 10 {
			t.Errorf("score %v outside [0,10]", score)
		}
	}
	if got := items[1].Breakdown[FactorSourceQuality]; got != 10 {
		t.Errorf("source rank 42 clamped to %v, want 10", got)
	}
	if got := items[1].Breakdown[FactorTopicRelevance]; got != 10 {
		t.Errorf("topic flood clamped to %v, want 10", got)
	}
}

func TestScoreFillsShortSummary(t *testing.T) {
	t.Parallel()

	item := &Item{Title: "AI", Summary: strings.Repeat("x", 250)}
	fixedScorer(profile.Default()).Score(item)
	if want := strings.Repeat("x", 200) + "..."; item.ShortSummary != want {
		t.Errorf("ShortSummary has %d chars, want %d", len(item.ShortSummary), len(want))
	}
}
