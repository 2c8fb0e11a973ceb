package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deusflow/ainews/internal/news"
)

// Runs against a real database when TEST_DATABASE_URL is set.
func TestPostgresCacheIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	pc, err := NewPostgresCache(ctx, dsn, time.Hour)
	if err != nil {
		t.Fatalf("NewPostgresCache: %v", err)
	}
	defer pc.Close()

	url := "https://example.com/pg-" + time.Now().Format("150405.000000")
	item := &news.Item{Title: "Postgres history check", URL: url, Source: "Test", Score: 6.5}

	if pc.Seen(ctx, url) {
		t.Fatal("fresh URL reported as seen")
	}
	if err := pc.MarkSent(ctx, item); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	if err := pc.MarkSent(ctx, item); err != nil {
		t.Fatalf("second MarkSent should upsert: %v", err)
	}
	if !pc.Seen(ctx, url) {
		t.Error("URL not seen after MarkSent")
	}

	recent, err := pc.Recent(ctx, 50)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, r := range recent {
		if r.URL == url {
			found = true
		}
	}
	if !found {
		t.Error("Recent() does not include the new row")
	}
	if err := pc.Cleanup(ctx); err != nil {
		t.Errorf("Cleanup: %v", err)
	}
}

// recordingDriver is a database/sql driver that records executed
// statements, enough to check what PostgresCache sends without a server.
type recordingDriver struct {
	mu    sync.Mutex
	execs []string
}

func (d *recordingDriver) Open(string) (driver.Conn, error) { return &recordingConn{d: d}, nil }

func (d *recordingDriver) statements() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.execs...)
}

type recordingConn struct{ d *recordingDriver }

func (c *recordingConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}
func (c *recordingConn) Close() error              { return nil }
func (c *recordingConn) Begin() (driver.Tx, error) { return nil, errors.New("tx not supported") }

func (c *recordingConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	c.d.mu.Lock()
	c.d.execs = append(c.d.execs, strings.TrimSpace(query))
	c.d.mu.Unlock()
	return driver.RowsAffected(1), nil
}

var (
	recorder     = &recordingDriver{}
	registerOnce sync.Once
)

func openRecording(t *testing.T) *sql.DB {
	t.Helper()
	registerOnce.Do(func() { sql.Register("ainews-recording", recorder) })
	recorder.mu.Lock()
	recorder.execs = nil
	recorder.mu.Unlock()
	db, err := sql.Open("ainews-recording", "")
	if err != nil {
		t.Fatal(err)
	}
	return db
}

func TestPostgresCloseDeletesExpiredRows(t *testing.T) {
	pc := &PostgresCache{db: openRecording(t), ttl: 48 * time.Hour, logger: slog.Default()}
	if err := pc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	execs := recorder.statements()
	if len(execs) != 1 || !strings.HasPrefix(execs[0], "DELETE FROM sent_news") {
		t.Errorf("statements on close = %q, want the expiry delete", execs)
	}
}

func TestPostgresCloseWithoutTTLKeepsRows(t *testing.T) {
	pc := &PostgresCache{db: openRecording(t), logger: slog.Default()}
	if err := pc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if execs := recorder.statements(); len(execs) != 0 {
		t.Errorf("statements on close = %q, want none", execs)
	}
}
