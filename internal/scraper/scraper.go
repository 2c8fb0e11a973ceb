// Package scraper pulls readable article text from news pages.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/deusflow/ainews/internal/news"
)

// ErrNoContent means the page was fetched but no article text was found.
var ErrNoContent = errors.New("scraper: no article content")

const (
	minParagraphLen = 20
	minContentLen   = 100
	maxBodyBytes    = 4 << 20

	// Feeds without a description get a summary cut from the article.
	backfillSummaryRunes = 300
)

// siteSelectors maps a host suffix to the paragraph selectors tried first.
var siteSelectors = map[string][]string{
	"technologyreview.com": {".gutenberg-content p", ".contentBody__wrapper p", "article p"},
	"techcrunch.com":       {".wp-block-post-content p", ".article-content p", "article p"},
	"arstechnica.com":      {".post-content p", ".article-content p", "article p"},
	"theverge.com":         {".duet--article--article-body-component p", "article p"},
	"wired.com":            {".body__inner-container p", "article p"},
	"venturebeat.com":      {".article-content p", "article p"},
	"spectrum.ieee.org":    {".body-description p", ".widget__body p", "article p"},

	"artificialintelligence-news.com": {".entry-content p", "article p"},
}

var genericSelectors = []string{
	"article p",
	".article p",
	".article-content p",
	".post-content p",
	".entry-content p",
	"main p",
	"#content p",
	"p",
}

// Lines containing these are page furniture rather than article text.
var junkIndicators = []string{
	"cookie", "subscribe", "newsletter", "sign up", "sign in",
	"advertisement", "all rights reserved", "privacy policy",
	"share this", "follow us", "read more:", "related:",
}

// Extractor downloads pages and extracts their main text.
type Extractor struct {
	Client       *http.Client
	UserAgent    string
	Concurrency  int
	MaxPerSource int // items enriched per source, 0 = all
	Logger       *slog.Logger
}

// NewExtractor returns an Extractor with the collector defaults: five
// items per source, four pages in flight.
func NewExtractor(client *http.Client) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Extractor{
		Client:       client,
		UserAgent:    "Mozilla/5.0 (compatible; ainews/1.0)",
		Concurrency:  4,
		MaxPerSource: 5,
		Logger:       slog.Default().With("component", "scraper"),
	}
}

// Extract returns the cleaned article text of the page at rawURL.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if e.UserAgent != "" {
		req.Header.Set("User-Agent", e.UserAgent)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error loading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("error parsing HTML: %w", err)
	}

	content := extractContent(doc, hostOf(rawURL))
	if len(content) < minContentLen {
		return "", ErrNoContent
	}
	return content, nil
}

// Enrich fills ExtractedContent for at most MaxPerSource items of each
// source. Failures are logged and leave the item as it was.
func (e *Extractor) Enrich(ctx context.Context, items []*news.Item) {
	targets := e.pick(items)
	if len(targets) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	if e.Concurrency > 0 {
		g.SetLimit(e.Concurrency)
	}
	for _, it := range targets {
		g.Go(func() error {
			content, err := e.Extract(gctx, it.URL)
			if err != nil {
				e.logger().Debug("can't get content", "url", it.URL, "error", err)
				return nil
			}
			it.SetExtractedContent(content)
			if strings.TrimSpace(it.Summary) == "" {
				it.Summary = news.TruncateSummary(content, backfillSummaryRunes)
			}
			e.logger().Debug("got content", "url", it.URL, "chars", len(it.ExtractedContent))
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Extractor) pick(items []*news.Item) []*news.Item {
	perSource := make(map[string]int)
	var out []*news.Item
	for _, it := range items {
		if it == nil || it.URL == "" {
			continue
		}
		if e.MaxPerSource > 0 && perSource[it.Source] >= e.MaxPerSource {
			continue
		}
		perSource[it.Source]++
		out = append(out, it)
	}
	return out
}

func (e *Extractor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// selectorsFor returns site selectors for host followed by the generic ones.
func selectorsFor(host string) []string {
	for suffix, selectors := range siteSelectors {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return append(append([]string{}, selectors...), genericSelectors...)
		}
	}
	return genericSelectors
}

func extractContent(doc *goquery.Document, host string) string {
	doc.Find("script, style, noscript, nav, footer, aside, form").Remove()

	for _, selector := range selectorsFor(host) {
		var paragraphs []string
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			text := strings.Join(strings.Fields(s.Text()), " ")
			if len(text) > minParagraphLen && !isJunk(text) {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) >= 2 {
			return strings.Join(paragraphs, "\n\n")
		}
	}
	return ""
}

func isJunk(line string) bool {
	lower := strings.ToLower(line)
	for _, indicator := range junkIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}
