package news

import (
	"log/slog"
	"strings"
)

// DefaultDuplicateThreshold is the similarity above which two titles are
// treated as the same story.
const DefaultDuplicateThreshold = 0.7

// Deduper drops near-duplicate items, keeping the first representative of
// each cluster in input order.
type Deduper interface {
	Dedupe(items []*Item) []*Item
}

// WordSet is the set of lowercase whitespace-delimited words of a title.
type WordSet map[string]struct{}

// TitleWords tokenises a title into a WordSet.
func TitleWords(title string) WordSet {
	words := strings.Fields(strings.ToLower(title))
	set := make(WordSet, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func intersection(a, b WordSet) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}

// Similarity scores two word sets in [0,1].
type Similarity func(a, b WordSet) float64

// Jaccard is |a∩b| / |a∪b|; an empty union scores 0.
func Jaccard(a, b WordSet) float64 {
	inter := intersection(a, b)
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Overlap is the overlap coefficient |a∩b| / min(|a|,|b|). It is more
// lenient than Jaccard towards a headline that only adds words.
func Overlap(a, b WordSet) float64 {
	smaller := min(len(a), len(b))
	if smaller == 0 {
		return 0
	}
	return float64(intersection(a, b)) / float64(smaller)
}

// TitleDeduper compares each title against every previously accepted one.
// Rejected titles are never compared against, so clusters do not chain
// transitively through them.
//
// The scan is O(n²) in accepted titles, which is fine for the tens of
// items a run sees. Larger batches need a bucketed or min-hash Deduper.
type TitleDeduper struct {
	Threshold  float64
	Similarity Similarity
	Logger     *slog.Logger
}

// NewTitleDeduper returns a Jaccard deduper with the given threshold.
func NewTitleDeduper(threshold float64) *TitleDeduper {
	return &TitleDeduper{Threshold: threshold, Similarity: Jaccard}
}

// Dedupe implements Deduper.
func (d *TitleDeduper) Dedupe(items []*Item) []*Item {
	sim := d.Similarity
	if sim == nil {
		sim = Jaccard
	}
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}

	type accepted struct {
		title string
		words WordSet
	}
	var seen []accepted
	out := make([]*Item, 0, len(items))

	for _, it := range items {
		if it == nil {
			continue
		}
		words := TitleWords(it.Title)
		duplicate := false
		for _, s := range seen {
			if score := sim(words, s.words); score > d.Threshold {
				log.Debug("duplicate title dropped", "title", it.Title, "matches", s.title, "similarity", score)
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		seen = append(seen, accepted{title: it.Title, words: words})
		out = append(out, it)
	}
	return out
}
