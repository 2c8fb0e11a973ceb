package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	ItemsFetched       int64
	ItemsRelevant      int64
	DuplicatesFiltered int64
	AlreadySent        int64
	SynopsesGenerated  int64
	SynopsisFallbacks  int64
	DigestsSent        int64
	NotifyFailures     int64

	// Timings
	LastProcessingTime    time.Duration
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration
	ProcessingCount       int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool

	// aiUsage reports the synopsis request budget, when one is configured.
	aiUsage func() map[string]interface{}
}

var Global = New()

func New() *Metrics {
	return &Metrics{IsHealthy: true}
}

// RunCounts is what one pipeline run contributes to the counters.
type RunCounts struct {
	Fetched     int
	Relevant    int
	Duplicates  int
	AlreadySent int
	Synopses    int
	Fallbacks   int
}

func (m *Metrics) RecordRun(c RunCounts) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ItemsFetched += int64(c.Fetched)
	m.ItemsRelevant += int64(c.Relevant)
	m.DuplicatesFiltered += int64(c.Duplicates)
	m.AlreadySent += int64(c.AlreadySent)
	m.SynopsesGenerated += int64(c.Synopses)
	m.SynopsisFallbacks += int64(c.Fallbacks)
}

func (m *Metrics) IncrementDigestsSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DigestsSent++
}

func (m *Metrics) IncrementNotifyFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NotifyFailures++
}

func (m *Metrics) RecordProcessingTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastProcessingTime = duration
	m.TotalProcessingTime += duration
	m.ProcessingCount++
	m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.ProcessingCount)
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

// SetAIUsage registers the source of the "ai_usage" entry in GetStats.
func (m *Metrics) SetAIUsage(fn func() map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aiUsage = fn
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := map[string]interface{}{
		"items_fetched":              m.ItemsFetched,
		"items_relevant":             m.ItemsRelevant,
		"duplicates_filtered":        m.DuplicatesFiltered,
		"already_sent":               m.AlreadySent,
		"synopses_generated":         m.SynopsesGenerated,
		"synopsis_fallbacks":         m.SynopsisFallbacks,
		"digests_sent":               m.DigestsSent,
		"notify_failures":            m.NotifyFailures,
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"average_processing_time_ms": m.AverageProcessingTime.Milliseconds(),
		"last_run_time":              m.LastRunTime.Format(time.RFC3339),
		"last_error_time":            m.LastErrorTime.Format(time.RFC3339),
		"last_error":                 m.LastError,
		"is_healthy":                 m.IsHealthy,
	}
	if m.aiUsage != nil {
		stats["ai_usage"] = m.aiUsage()
	}
	return stats
}
