// Package profile holds the versioned scoring configuration: keyword
// vocabularies, source ranks and factor weights.
package profile

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned by Validate for inconsistent profiles.
var ErrInvalid = errors.New("invalid scoring profile")

// Weights combine the four sub-scores into one relevance score.
type Weights struct {
	Recency        float64 `yaml:"recency"`
	SourceQuality  float64 `yaml:"sourceQuality"`
	TopicRelevance float64 `yaml:"topicRelevance"`
	Engagement     float64 `yaml:"engagement"`
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Recency + w.SourceQuality + w.TopicRelevance + w.Engagement
}

// Profile is the data the filter, deduplicator and scorer are driven by.
type Profile struct {
	Version string `yaml:"version"`

	// FilterKeywords decide whether an item is on topic at all.
	FilterKeywords []string `yaml:"filterKeywords"`
	// CoreKeywords are worth 2 points each and trigger the title bonus.
	CoreKeywords []string `yaml:"coreKeywords"`
	// HighValueKeywords are worth 1 point each.
	HighValueKeywords []string `yaml:"highValueKeywords"`
	// AttentionWords feed the engagement score.
	AttentionWords []string `yaml:"attentionWords"`

	SourceRanks       map[string]float64 `yaml:"sourceRanks"`
	DefaultSourceRank float64            `yaml:"defaultSourceRank"`

	Weights Weights `yaml:"weights"`

	DuplicateThreshold float64 `yaml:"duplicateThreshold"`
	SynopsisMaxRunes   int     `yaml:"synopsisMaxRunes"`
}

// DefaultVersion identifies the built-in profile.
const DefaultVersion = "ai-v1"

// Default returns the built-in AI news profile.
func Default() *Profile {
	return &Profile{
		Version: DefaultVersion,
		FilterKeywords: []string{
			"artificial intelligence", "ai", "machine learning", "ml", "deep learning",
			"neural network", "chatgpt", "openai", "anthropic", "claude", "gpt",
			"llm", "large language model", "automation", "robotics", "computer vision",
			"natural language processing", "nlp", "generative ai", "ai model",
		},
		CoreKeywords: []string{
			"artificial intelligence", "ai", "machine learning", "ml", "deep learning",
			"neural network", "llm", "gpt", "chatbot", "automation", "model",
		},
		HighValueKeywords: []string{
			"breakthrough", "announce", "release", "launch", "funding",
			"acquisition", "research", "development", "innovation", "new model",
			"chatgpt", "openai", "anthropic", "google ai", "microsoft ai",
			"nvidia", "deepmind", "tesla", "autonomous", "robotics",
		},
		AttentionWords: []string{
			"new", "latest", "breakthrough", "first", "major", "significant",
			"revolutionary", "game-changing", "unprecedented", "announces",
			"launches", "releases", "unveils", "reveals", "discovers",
		},
		SourceRanks: map[string]float64{
			"MIT Technology Review": 10,
			"TechCrunch AI":         9,
			"IEEE Spectrum":         9,
			"Ars Technica":          8,
			"The Verge":             8,
			"Wired":                 8,
			"VentureBeat AI":        7,
			"AI News":               6,
		},
		DefaultSourceRank: 5,
		Weights: Weights{
			Recency:        0.3,
			SourceQuality:  0.2,
			TopicRelevance: 0.3,
			Engagement:     0.2,
		},
		DuplicateThreshold: 0.7,
		SynopsisMaxRunes:   200,
	}
}

// Load reads a YAML profile from path on top of the defaults. Fields that
// are absent in the file keep their default values; sourceRanks entries
// are merged into the default table.
func Load(path string) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a YAML profile on top of the defaults and validates it.
func Parse(raw []byte) (*Profile, error) {
	p := Default()
	if err := yaml.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the invariants the scorer relies on.
func (p *Profile) Validate() error {
	if p.Version == "" {
		return fmt.Errorf("%w: version is required", ErrInvalid)
	}
	if sum := p.Weights.Sum(); math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("%w: weights sum to %.4f, want 1", ErrInvalid, sum)
	}
	for _, w := range []float64{p.Weights.Recency, p.Weights.SourceQuality, p.Weights.TopicRelevance, p.Weights.Engagement} {
		if w < 0 {
			return fmt.Errorf("%w: negative weight %.4f", ErrInvalid, w)
		}
	}
	if p.DefaultSourceRank < 0 || p.DefaultSourceRank > 10 {
		return fmt.Errorf("%w: default source rank %.1f outside [0,10]", ErrInvalid, p.DefaultSourceRank)
	}
	for name, rank := range p.SourceRanks {
		if rank < 0 || rank > 10 {
			return fmt.Errorf("%w: rank %.1f for %q outside [0,10]", ErrInvalid, rank, name)
		}
	}
	if p.DuplicateThreshold <= 0 || p.DuplicateThreshold > 1 {
		return fmt.Errorf("%w: duplicate threshold %.2f outside (0,1]", ErrInvalid, p.DuplicateThreshold)
	}
	if p.SynopsisMaxRunes <= 0 {
		return fmt.Errorf("%w: synopsisMaxRunes must be positive", ErrInvalid)
	}
	return nil
}

// SourceRank returns the configured rank for source, or the default.
func (p *Profile) SourceRank(source string) float64 {
	if rank, ok := p.SourceRanks[source]; ok {
		return rank
	}
	return p.DefaultSourceRank
}
