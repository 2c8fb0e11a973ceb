package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/deusflow/ainews/internal/news"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sent_news (
	id SERIAL PRIMARY KEY,
	hash VARCHAR(64) UNIQUE NOT NULL,
	title TEXT NOT NULL,
	link TEXT NOT NULL,
	source VARCHAR(100),
	score DOUBLE PRECISION NOT NULL DEFAULT 0,
	sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_sent_news_sent_at ON sent_news(sent_at);
`

const cleanupTimeout = 10 * time.Second

// PostgresCache keeps sent items in PostgreSQL.
type PostgresCache struct {
	db     *sql.DB
	ttl    time.Duration
	logger *slog.Logger
}

func NewPostgresCache(ctx context.Context, connectionString string, ttl time.Duration) (*PostgresCache, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	pc := &PostgresCache{db: db, ttl: ttl, logger: slog.Default().With("component", "storage")}
	pc.logger.Info("PostgreSQL history connected")
	return pc, nil
}

func (pc *PostgresCache) cutoff() time.Time {
	if pc.ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(-pc.ttl)
}

func (pc *PostgresCache) Seen(ctx context.Context, url string) bool {
	var count int
	err := pc.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sent_news WHERE hash = $1 AND sent_at > $2`,
		HashURL(url), pc.cutoff(),
	).Scan(&count)
	if err != nil {
		pc.logger.Warn("error checking sent history", "url", url, "error", err)
		return false
	}
	return count > 0
}

// MarkSent upserts the item so a resend refreshes sent_at.
func (pc *PostgresCache) MarkSent(ctx context.Context, item *news.Item) error {
	sent := newSentItem(item, time.Now())
	_, err := pc.db.ExecContext(ctx, `
		INSERT INTO sent_news (hash, title, link, source, score, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (hash) DO UPDATE SET sent_at = EXCLUDED.sent_at, score = EXCLUDED.score
	`, sent.Hash, sent.Title, sent.URL, sent.Source, sent.Score, sent.SentAt)
	if err != nil {
		return fmt.Errorf("failed to mark as sent: %w", err)
	}
	return nil
}

func (pc *PostgresCache) Recent(ctx context.Context, limit int) ([]SentItem, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := pc.db.QueryContext(ctx, `
		SELECT hash, title, link, COALESCE(source, ''), score, sent_at
		FROM sent_news
		WHERE sent_at > $1
		ORDER BY sent_at DESC
		LIMIT $2
	`, pc.cutoff(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []SentItem
	for rows.Next() {
		var item SentItem
		if err := rows.Scan(&item.Hash, &item.Title, &item.URL, &item.Source, &item.Score, &item.SentAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Cleanup removes expired items from database
func (pc *PostgresCache) Cleanup(ctx context.Context) error {
	if pc.ttl <= 0 {
		return nil
	}
	result, err := pc.db.ExecContext(ctx, `DELETE FROM sent_news WHERE sent_at < $1`, pc.cutoff())
	if err != nil {
		return fmt.Errorf("failed to cleanup: %w", err)
	}

	if rows, _ := result.RowsAffected(); rows > 0 {
		pc.logger.Info("cleaned up old history rows", "rows", rows)
	}
	return nil
}

// Close drops expired rows, like FileCache does on close, and releases the
// connection pool.
func (pc *PostgresCache) Close() error {
	if pc.db == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := pc.Cleanup(ctx); err != nil {
		pc.logger.Warn("history cleanup failed", "error", err)
	}
	return pc.db.Close()
}
