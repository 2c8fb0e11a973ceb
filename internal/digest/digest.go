// Package digest turns a ranked batch into the message every notifier sends.
package digest

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deusflow/ainews/internal/news"
)

// EmptyMessage is the body of a digest with no items.
const EmptyMessage = "No AI news found today."

type Kind string

const (
	KindDaily Kind = "daily"
	KindTest  Kind = "test"
	KindError Kind = "error"
)

const dateLayout = "January 02, 2006"

// Digest is one delivery: the ranked items of a run, a test sample or an
// error report.
type Digest struct {
	ID        string
	Kind      Kind
	CreatedAt time.Time
	Items     []*news.Item
	Stats     news.Stats
	Error     string
}

// New builds a digest of ranked items.
func New(kind Kind, items []*news.Item, stats news.Stats, now time.Time) Digest {
	return Digest{
		ID:        uuid.NewString(),
		Kind:      kind,
		CreatedAt: now,
		Items:     items,
		Stats:     stats,
	}
}

// NewError builds the report sent when a run fails.
func NewError(err error, now time.Time) Digest {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Digest{
		ID:        uuid.NewString(),
		Kind:      KindError,
		CreatedAt: now,
		Error:     msg,
	}
}

// Sample is the digest sent by test-notify.
func Sample(now time.Time) Digest {
	item := &news.Item{
		Title:        "Test AI News Article",
		URL:          "https://example.com",
		Summary:      "This is a test article to verify that your AI news digest delivery is working correctly.",
		Source:       "Test Source",
		PublishedAt:  now,
		Score:        8.5,
		ShortSummary: "This is a test digest to confirm your AI news summary system is properly configured and working.",
		Breakdown:    map[news.Factor]float64{},
	}
	return New(KindTest, []*news.Item{item}, news.Stats{Selected: 1}, now)
}

func (d Digest) Empty() bool { return len(d.Items) == 0 }

func (d Digest) Subject() string {
	date := d.CreatedAt.Format(dateLayout)
	switch {
	case d.Kind == KindError:
		return "🚨 AI News Summary Error - " + date
	case d.Empty():
		return "🤖 AI Tech News Summary - " + date + " - No News Today"
	case d.Kind == KindTest:
		return fmt.Sprintf("[TEST] 🤖 Top %d AI Tech News - %s", len(d.Items), date)
	default:
		return fmt.Sprintf("🤖 Top %d AI Tech News - %s", len(d.Items), date)
	}
}

// AverageScore is the mean score of the items, 0 when empty.
func (d Digest) AverageScore() float64 {
	if d.Empty() {
		return 0
	}
	var sum float64
	for _, it := range d.Items {
		sum += it.Score
	}
	return sum / float64(len(d.Items))
}

// SourceCount is the number of distinct sources among the items.
func (d Digest) SourceCount() int {
	seen := make(map[string]struct{}, len(d.Items))
	for _, it := range d.Items {
		seen[it.Source] = struct{}{}
	}
	return len(seen)
}

// ScoreMark grades a score for display.
func ScoreMark(score float64) string {
	switch {
	case score > 8:
		return "🌟"
	case score > 6:
		return "⭐"
	default:
		return "✨"
	}
}

// Blurb is the text shown under an item's title.
func Blurb(it *news.Item) string {
	if it.ShortSummary != "" {
		return it.ShortSummary
	}
	return news.TruncateSummary(it.Summary, news.DefaultSynopsisMaxRunes)
}

// Text renders the plain-text body.
func (d Digest) Text() string {
	var b strings.Builder
	date := d.CreatedAt.Format(dateLayout)

	if d.Kind == KindError {
		fmt.Fprintf(&b, "🚨 AI News Summary Error\n\n")
		fmt.Fprintf(&b, "An error occurred while generating your daily AI news summary:\n\n")
		fmt.Fprintf(&b, "Error: %s\nTime: %s\n\n", d.Error, d.CreatedAt.Format("2006-01-02 15:04:05"))
		b.WriteString("Please check the application logs for more details.\n")
		return b.String()
	}

	if d.Empty() {
		fmt.Fprintf(&b, "🤖 AI Tech News Summary\n📅 %s\n\n%s\n", date, EmptyMessage)
		return b.String()
	}

	fmt.Fprintf(&b, "🤖 Top %d AI Tech News - %s\n\n", len(d.Items), date)
	for i, it := range d.Items {
		fmt.Fprintf(&b, "📰 %d. %s\n", i+1, it.Title)
		fmt.Fprintf(&b, "🏢 Source: %s | %s Score: %.1f/10 | 📅 Published: %s\n\n",
			it.Source, ScoreMark(it.Score), it.Score, it.PublishedAt.Format("15:04, January 02"))
		fmt.Fprintf(&b, "%s\n\n", Blurb(it))
		fmt.Fprintf(&b, "🔗 Read more: %s\n\n", it.URL)
		b.WriteString(strings.Repeat("=", 50))
		b.WriteString("\n\n")
	}

	b.WriteString("📊 Summary Statistics:\n")
	fmt.Fprintf(&b, "• Total articles: %d\n", len(d.Items))
	fmt.Fprintf(&b, "• Average relevance score: %.1f/10\n", d.AverageScore())
	fmt.Fprintf(&b, "• Sources covered: %d\n", d.SourceCount())
	return b.String()
}

//go:embed digest.html.tmpl
var htmlSource string

var htmlTemplate = template.Must(template.New("digest").Funcs(template.FuncMap{
	"inc":   func(i int) int { return i + 1 },
	"mark":  ScoreMark,
	"blurb": Blurb,
	"score": func(f float64) string { return fmt.Sprintf("%.1f", f) },
	"when":  func(t time.Time) string { return t.Format("15:04, January 02") },
}).Parse(htmlSource))

// HTML renders the email body.
func (d Digest) HTML() (string, error) {
	data := struct {
		Digest
		Subject      string
		Date         string
		EmptyMessage string
		Average      string
		Sources      int
	}{
		Digest:       d,
		Subject:      d.Subject(),
		Date:         d.CreatedAt.Format("Monday, January 02, 2006"),
		EmptyMessage: EmptyMessage,
		Average:      fmt.Sprintf("%.1f", d.AverageScore()),
		Sources:      d.SourceCount(),
	}

	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render digest html: %w", err)
	}
	return buf.String(), nil
}
