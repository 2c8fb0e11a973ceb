package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/deusflow/ainews/internal/news"
)

// FileCache keeps sent items in a JSON file.
type FileCache struct {
	filePath string
	ttl      time.Duration
	items    map[string]SentItem
	mu       sync.RWMutex
	now      func() time.Time
}

func NewFileCache(filePath string, ttl time.Duration) *FileCache {
	return &FileCache{
		filePath: filePath,
		ttl:      ttl,
		items:    make(map[string]SentItem),
		now:      time.Now,
	}
}

// Load reads the cache file, dropping expired entries. A missing file is an
// empty cache.
func (fc *FileCache) Load() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	data, err := os.ReadFile(fc.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cache file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var items []SentItem
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("failed to unmarshal cache: %w", err)
	}

	for _, item := range items {
		if fc.live(item) {
			fc.items[item.Hash] = item
		}
	}
	return nil
}

// Save writes the cache atomically.
func (fc *FileCache) Save() error {
	fc.mu.RLock()
	items := make([]SentItem, 0, len(fc.items))
	for _, item := range fc.items {
		items = append(items, item)
	}
	fc.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].SentAt.After(items[j].SentAt) })

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fc.filePath), ".sent-*.json")
	if err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return os.Rename(tmp.Name(), fc.filePath)
}

func (fc *FileCache) Seen(_ context.Context, url string) bool {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	item, ok := fc.items[HashURL(url)]
	return ok && fc.live(item)
}

// MarkSent records item and persists the file.
func (fc *FileCache) MarkSent(_ context.Context, item *news.Item) error {
	fc.mu.Lock()
	sent := newSentItem(item, fc.now())
	fc.items[sent.Hash] = sent
	fc.mu.Unlock()

	return fc.Save()
}

func (fc *FileCache) Recent(_ context.Context, limit int) ([]SentItem, error) {
	fc.mu.RLock()
	var items []SentItem
	for _, item := range fc.items {
		if fc.live(item) {
			items = append(items, item)
		}
	}
	fc.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].SentAt.After(items[j].SentAt) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Cleanup removes expired items from memory
func (fc *FileCache) Cleanup() {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	for hash, item := range fc.items {
		if !fc.live(item) {
			delete(fc.items, hash)
		}
	}
}

func (fc *FileCache) Close() error {
	fc.Cleanup()
	return fc.Save()
}

// live reports whether item is within the TTL. A zero TTL never expires.
func (fc *FileCache) live(item SentItem) bool {
	return fc.ttl <= 0 || item.SentAt.After(fc.now().Add(-fc.ttl))
}
