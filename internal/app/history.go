package app

import (
	"context"

	"github.com/deusflow/ainews/internal/news"
)

// dropSent removes items whose URL the history has already delivered.
func (a *App) dropSent(ctx context.Context, items []*news.Item) ([]*news.Item, int) {
	fresh := make([]*news.Item, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		if it.URL != "" && a.history.Seen(ctx, it.URL) {
			a.logger.Debug("skipping already sent item", "title", it.Title, "url", it.URL)
			continue
		}
		fresh = append(fresh, it)
	}
	if skipped := len(items) - len(fresh); skipped > 0 {
		a.logger.Info("dropped already sent items", "count", skipped)
	}
	return fresh, len(items) - len(fresh)
}

// markSent records delivered items. Failures are logged: the digest is
// already out.
func (a *App) markSent(ctx context.Context, items []*news.Item) {
	for _, it := range items {
		if it.URL == "" {
			continue
		}
		if err := a.history.MarkSent(ctx, it); err != nil {
			a.logger.Warn("failed to record sent item", "url", it.URL, "error", err)
		}
	}
}
