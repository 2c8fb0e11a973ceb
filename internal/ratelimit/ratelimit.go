// Package ratelimit keeps a daily request budget per AI provider.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/deusflow/ainews/internal/news"
)

// ErrBudgetExhausted is returned once a provider (or the shared total) has
// used its budget for the current window. It wraps news.ErrNoSynopsis so the
// selector falls back quietly.
var ErrBudgetExhausted = fmt.Errorf("%w: request budget exhausted", news.ErrNoSynopsis)

const resetWindow = 24 * time.Hour

// AIRateLimiter counts requests per provider and resets daily. A limit of
// 0 means unlimited.
type AIRateLimiter struct {
	mu        sync.Mutex
	used      map[string]int
	limits    map[string]int
	total     int
	maxTotal  int
	resetTime time.Time
	now       func() time.Time
	logger    *slog.Logger
}

// NewAIRateLimiter creates a limiter with per-provider limits and a shared
// total.
func NewAIRateLimiter(limits map[string]int, maxTotal int) *AIRateLimiter {
	rl := &AIRateLimiter{
		used:     make(map[string]int),
		limits:   make(map[string]int, len(limits)),
		maxTotal: maxTotal,
		now:      time.Now,
		logger:   slog.Default().With("component", "ratelimit"),
	}
	for name, limit := range limits {
		rl.limits[name] = limit
	}
	rl.resetTime = rl.now().Add(resetWindow)
	return rl
}

// Use consumes one request from provider's budget.
func (rl *AIRateLimiter) Use(provider string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.checkReset()
	if err := rl.exceeded(provider); err != nil {
		rl.logger.Warn("AI request budget reached", "provider", provider,
			"used", rl.used[provider], "limit", rl.limits[provider])
		return err
	}

	rl.used[provider]++
	rl.total++
	rl.logger.Debug("AI usage", "provider", provider,
		"used", rl.used[provider], "limit", rl.limits[provider],
		"total", rl.total, "total_limit", rl.maxTotal)
	return nil
}

func (rl *AIRateLimiter) exceeded(provider string) error {
	if limit := rl.limits[provider]; limit > 0 && rl.used[provider] >= limit {
		return fmt.Errorf("%s: %w", provider, ErrBudgetExhausted)
	}
	if rl.maxTotal > 0 && rl.total >= rl.maxTotal {
		return fmt.Errorf("total: %w", ErrBudgetExhausted)
	}
	return nil
}

// Limit wraps s so every call first consumes budget for provider.
func (rl *AIRateLimiter) Limit(provider string, s news.Synopsizer) news.Synopsizer {
	return news.SynopsizerFunc(func(ctx context.Context, item *news.Item) (string, error) {
		if err := rl.Use(provider); err != nil {
			return "", err
		}
		return s.Synopsize(ctx, item)
	})
}

// GetStats returns current usage per provider.
func (rl *AIRateLimiter) GetStats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	stats := map[string]interface{}{
		"total_used":  rl.total,
		"total_limit": rl.maxTotal,
		"reset_time":  rl.resetTime.Format(time.RFC3339),
	}
	for name, limit := range rl.limits {
		stats[name+"_used"] = rl.used[name]
		stats[name+"_limit"] = limit
	}
	return stats
}

// checkReset clears the counters once the window has passed. Caller holds mu.
func (rl *AIRateLimiter) checkReset() {
	if rl.now().After(rl.resetTime) {
		rl.logger.Info("resetting AI request budget", "total_used", rl.total)
		clear(rl.used)
		rl.total = 0
		rl.resetTime = rl.now().Add(resetWindow)
	}
}
