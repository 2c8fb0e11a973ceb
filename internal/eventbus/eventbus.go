// Package eventbus publishes digests as JSON events on a NATS subject.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/deusflow/ainews/internal/digest"
	"github.com/deusflow/ainews/internal/news"
)

const (
	eventSource    = "ainews"
	defaultSubject = "ainews.digest"
	flushTimeout   = 10 * time.Second
)

// DigestEvent is the envelope published for every digest.
type DigestEvent struct {
	EventID   string      `json:"event_id"`
	Source    string      `json:"source"`
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Subject   string      `json:"subject"`
	Items     []EventItem `json:"items"`
	Stats     EventStats  `json:"stats"`
	Error     string      `json:"error,omitempty"`
}

type EventItem struct {
	Title       string             `json:"title"`
	URL         string             `json:"url"`
	Source      string             `json:"source"`
	Score       float64            `json:"score"`
	Synopsis    string             `json:"synopsis"`
	PublishedAt time.Time          `json:"published_at"`
	Breakdown   map[string]float64 `json:"breakdown,omitempty"`
}

type EventStats struct {
	Input             int `json:"input"`
	Relevant          int `json:"relevant"`
	Unique            int `json:"unique"`
	Selected          int `json:"selected"`
	SynopsisFallbacks int `json:"synopsis_fallbacks"`
}

// NewDigestEvent converts d into its wire form.
func NewDigestEvent(d digest.Digest) DigestEvent {
	evt := DigestEvent{
		EventID:   d.ID,
		Source:    eventSource,
		Type:      "digest." + string(d.Kind),
		Timestamp: d.CreatedAt.UTC(),
		Subject:   d.Subject(),
		Items:     make([]EventItem, 0, len(d.Items)),
		Stats: EventStats{
			Input:             d.Stats.Input,
			Relevant:          d.Stats.Relevant,
			Unique:            d.Stats.Unique,
			Selected:          d.Stats.Selected,
			SynopsisFallbacks: d.Stats.SynopsisFallbacks,
		},
		Error: d.Error,
	}
	for _, it := range d.Items {
		evt.Items = append(evt.Items, EventItem{
			Title:       it.Title,
			URL:         it.URL,
			Source:      it.Source,
			Score:       it.Score,
			Synopsis:    digest.Blurb(it),
			PublishedAt: it.PublishedAt.UTC(),
			Breakdown:   breakdown(it),
		})
	}
	return evt
}

func breakdown(it *news.Item) map[string]float64 {
	if len(it.Breakdown) == 0 {
		return nil
	}
	out := make(map[string]float64, len(it.Breakdown))
	for f, v := range it.Breakdown {
		out[string(f)] = v
	}
	return out
}

// MinimalValidate checks required fields.
func (e *DigestEvent) MinimalValidate() bool {
	return e.EventID != "" && e.Source != "" && e.Type != "" && !e.Timestamp.IsZero()
}

// publisher is the part of *nats.Conn the notifier needs.
type publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// NATSBus publishes digest events on a NATS core subject.
type NATSBus struct {
	conn    publisher
	closer  func()
	subject string
}

type NATSConfig struct {
	URL     string
	Subject string
}

func NewNATSBus(cfg NATSConfig) (*NATSBus, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url,
		nats.Name("ainews-digest"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return newBus(nc, nc.Close, cfg.Subject), nil
}

func newBus(conn publisher, closer func(), subject string) *NATSBus {
	if subject == "" {
		subject = defaultSubject
	}
	return &NATSBus{conn: conn, closer: closer, subject: subject}
}

func (b *NATSBus) Name() string { return "nats" }

// Notify publishes d and waits for the server to acknowledge the flush.
func (b *NATSBus) Notify(ctx context.Context, d digest.Digest) error {
	evt := NewDigestEvent(d)
	if !evt.MinimalValidate() {
		return fmt.Errorf("invalid event: missing required fields")
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if err := b.conn.Publish(b.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", b.subject, err)
	}
	return b.flush(ctx)
}

// Ping round-trips to the server.
func (b *NATSBus) Ping(ctx context.Context) error {
	return b.flush(ctx)
}

// flush waits for the server; nats requires a deadline on the context.
func (b *NATSBus) flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	return b.conn.FlushWithContext(ctx)
}

func (b *NATSBus) Close() error {
	if b.closer != nil {
		b.closer()
	}
	return nil
}
