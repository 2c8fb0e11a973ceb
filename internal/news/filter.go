package news

import "strings"

// vocabulary is a lowercased, de-duplicated keyword list.
type vocabulary []string

func newVocabulary(words []string) vocabulary {
	seen := make(map[string]struct{}, len(words))
	v := make(vocabulary, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		v = append(v, w)
	}
	return v
}

// containsAny expects lowered text.
func (v vocabulary) containsAny(text string) bool {
	for _, k := range v {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// count returns how many distinct keywords occur in lowered text.
func (v vocabulary) count(text string) int {
	n := 0
	for _, k := range v {
		if strings.Contains(text, k) {
			n++
		}
	}
	return n
}

// KeywordFilter classifies items as on-topic by plain case-insensitive
// substring matching. "ai" therefore also matches "said"; the scorer
// weighs how strong the match is.
type KeywordFilter struct {
	keywords vocabulary
}

// NewKeywordFilter builds a filter over the given vocabulary.
func NewKeywordFilter(keywords []string) *KeywordFilter {
	return &KeywordFilter{keywords: newVocabulary(keywords)}
}

// IsRelevant reports whether any keyword occurs in title or content.
func (f *KeywordFilter) IsRelevant(title, content string) bool {
	if len(f.keywords) == 0 {
		return false
	}
	text := strings.TrimSpace(title + " " + content)
	if text == "" {
		return false
	}
	return f.keywords.containsAny(strings.ToLower(text))
}

// Apply returns the relevant items in input order.
func (f *KeywordFilter) Apply(items []*Item) []*Item {
	out := make([]*Item, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		if f.IsRelevant(it.Title, it.Summary+" "+it.ExtractedContent) {
			out = append(out, it)
		}
	}
	return out
}
