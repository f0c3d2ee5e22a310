package translation

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const memorySchema = `
CREATE TABLE IF NOT EXISTS translations (
	key TEXT PRIMARY KEY,
	backend TEXT NOT NULL,
	model TEXT NOT NULL,
	source_lang TEXT NOT NULL,
	target_lang TEXT NOT NULL,
	quality TEXT NOT NULL,
	source_text TEXT NOT NULL,
	translated_text TEXT NOT NULL,
	created_at TEXT NOT NULL
)`

// Memory is a SQLite-backed translation cache shared by every backend
// instance of a process.
type Memory struct {
	db   *sql.DB
	path string
}

// MemoryKey identifies one cached translation.
type MemoryKey struct {
	Backend string
	Model   string
	Call    CallParams
	Text    string
}

func (k MemoryKey) digest() string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		k.Backend, k.Model, k.Call.SourceLang, k.Call.TargetLang, k.Call.Quality, k.Text,
	}, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// OpenMemory opens or creates the cache database at path.
func OpenMemory(path string) (*Memory, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(memorySchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init translation memory schema: %w", err)
	}
	return &Memory{db: db, path: path}, nil
}

// Path returns the database file path.
func (m *Memory) Path() string {
	if m == nil {
		return ""
	}
	return m.path
}

// Close closes the database.
func (m *Memory) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

// Lookup returns the cached translation for key.
func (m *Memory) Lookup(ctx context.Context, key MemoryKey) (string, bool, error) {
	var text string
	err := retryOnBusy(ctx, func() error {
		return m.db.QueryRowContext(ctx,
			`SELECT translated_text FROM translations WHERE key = ?`, key.digest()).Scan(&text)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup translation: %w", err)
	}
	return text, true, nil
}

// Store records a translation, replacing any previous value for key.
func (m *Memory) Store(ctx context.Context, key MemoryKey, translated string) error {
	err := retryOnBusy(ctx, func() error {
		_, err := m.db.ExecContext(ctx, `INSERT INTO translations
			(key, backend, model, source_lang, target_lang, quality, source_text, translated_text, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET translated_text = excluded.translated_text, created_at = excluded.created_at`,
			key.digest(), key.Backend, key.Model, key.Call.SourceLang, key.Call.TargetLang, key.Call.Quality,
			key.Text, translated, time.Now().UTC().Format(time.RFC3339))
		return err
	})
	if err != nil {
		return fmt.Errorf("store translation: %w", err)
	}
	return nil
}

// Count returns the number of cached translations.
func (m *Memory) Count(ctx context.Context) (int, error) {
	var n int
	err := retryOnBusy(ctx, func() error {
		return m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM translations`).Scan(&n)
	})
	return n, err
}

// Wrap returns a Backend that consults the memory before delegating.
// Cache read and write failures are reported to onError and never fail the
// translation. onHit and onError may be nil.
func (m *Memory) Wrap(inner Backend, build BuildParams, onHit func(), onError func(error)) Backend {
	return &cachedBackend{inner: inner, memory: m, model: build.Model, onHit: onHit, onError: onError}
}

type cachedBackend struct {
	inner   Backend
	memory  *Memory
	model   string
	onHit   func()
	onError func(error)
}

func (c *cachedBackend) Name() string { return c.inner.Name() }

func (c *cachedBackend) Translate(ctx context.Context, text string, call CallParams) (Result, error) {
	key := MemoryKey{Backend: c.inner.Name(), Model: c.model, Call: call, Text: strings.TrimSpace(text)}
	if key.Text == "" {
		return c.inner.Translate(ctx, text, call)
	}
	cached, ok, err := c.memory.Lookup(ctx, key)
	if err != nil {
		c.report(err)
	}
	if ok {
		if c.onHit != nil {
			c.onHit()
		}
		return Result{TranslatedText: cached, Backend: c.inner.Name()}, nil
	}
	res, err := c.inner.Translate(ctx, text, call)
	if err != nil {
		return res, err
	}
	if err := c.memory.Store(ctx, key, res.TranslatedText); err != nil {
		c.report(err)
	}
	return res, nil
}

func (c *cachedBackend) report(err error) {
	if c.onError != nil {
		c.onError(err)
	}
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil || !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
