// Package cache provides the durable SQLite translation cache.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bryan-buckman/babelfeed/internal/model"
	_ "modernc.org/sqlite"
)

// ErrUnavailable wraps storage failures. Callers degrade to
// always-translate instead of aborting the run.
var ErrUnavailable = errors.New("translation cache unavailable")

// Store defines the cache operations the pipeline needs. DB implements
// it against SQLite; NopStore implements the degraded no-cache mode.
type Store interface {
	// Lookup returns the entry for (fingerprint, targetLang), or nil
	// when absent. Pure local read, never blocks on network.
	Lookup(fingerprint, targetLang string) (*model.CacheEntry, error)

	// Upsert atomically commits a translation. A matching content hash
	// makes the call a no-op; a differing hash replaces the stale entry.
	Upsert(entry *model.CacheEntry) error

	Close() error
}

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
}

// Open opens or creates the cache database at the given path. Any
// failure is reported as ErrUnavailable so the caller can degrade.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create cache dir: %v", ErrUnavailable, err)
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open db: %v", ErrUnavailable, err)
	}
	// Single writer: concurrent workers share one serialized connection.
	conn.SetMaxOpenConns(1)
	// Enable WAL mode for better concurrency.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: set wal mode: %v", ErrUnavailable, err)
	}
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: migrate: %v", ErrUnavailable, err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS translations (
		fingerprint      TEXT NOT NULL,
		target_lang      TEXT NOT NULL,
		translated_title TEXT NOT NULL DEFAULT '',
		translated_text  TEXT NOT NULL,
		content_hash     TEXT NOT NULL,
		translator       TEXT NOT NULL DEFAULT '',
		source_len       INTEGER NOT NULL DEFAULT 0,
		created_at       DATETIME NOT NULL,
		PRIMARY KEY (fingerprint, target_lang)
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Lookup returns the cached translation for (fingerprint, targetLang),
// or nil when absent.
func (db *DB) Lookup(fingerprint, targetLang string) (*model.CacheEntry, error) {
	row := db.conn.QueryRow(`
		SELECT fingerprint, target_lang, translated_title, translated_text,
		       content_hash, translator, source_len, created_at
		FROM translations WHERE fingerprint = ? AND target_lang = ?`,
		fingerprint, targetLang)

	var e model.CacheEntry
	var createdAt sql.NullTime
	err := row.Scan(&e.Fingerprint, &e.TargetLang, &e.TranslatedTitle, &e.TranslatedText,
		&e.ContentHash, &e.Translator, &e.SourceLen, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lookup: %v", ErrUnavailable, err)
	}
	if createdAt.Valid {
		e.CreatedAt = createdAt.Time
	}
	return &e, nil
}

// Upsert commits a translation in a single transaction. If an entry
// exists with the same content hash the call is idempotent; a different
// hash means the article changed upstream and the entry is replaced.
func (db *DB) Upsert(entry *model.CacheEntry) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrUnavailable, err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRow(
		"SELECT content_hash FROM translations WHERE fingerprint = ? AND target_lang = ?",
		entry.Fingerprint, entry.TargetLang).Scan(&existing)
	if err == nil && existing == entry.ContentHash {
		return tx.Commit()
	}
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("%w: upsert check: %v", ErrUnavailable, err)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = tx.Exec(`
		INSERT INTO translations
			(fingerprint, target_lang, translated_title, translated_text,
			 content_hash, translator, source_len, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint, target_lang) DO UPDATE SET
			translated_title = excluded.translated_title,
			translated_text = excluded.translated_text,
			content_hash = excluded.content_hash,
			translator = excluded.translator,
			source_len = excluded.source_len,
			created_at = excluded.created_at`,
		entry.Fingerprint, entry.TargetLang, entry.TranslatedTitle, entry.TranslatedText,
		entry.ContentHash, entry.Translator, entry.SourceLen, createdAt)
	if err != nil {
		return fmt.Errorf("%w: upsert: %v", ErrUnavailable, err)
	}
	return tx.Commit()
}

// NopStore is the degraded no-cache mode: every lookup misses and every
// upsert is discarded.
type NopStore struct{}

func (NopStore) Lookup(fingerprint, targetLang string) (*model.CacheEntry, error) {
	return nil, nil
}

func (NopStore) Upsert(entry *model.CacheEntry) error { return nil }

func (NopStore) Close() error { return nil }
