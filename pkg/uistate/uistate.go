// Package uistate persists the small per-operator bits of dashboard state
// that should survive a restart: the active view, breadcrumb trail, and page
// size. It also keeps a local audit tail of bulk operations.
package uistate

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// ErrClosed indicates the underlying database connection is unavailable.
var ErrClosed = errors.New("uistate: closed")

// Keys the state store accepts. Anything else is rejected so stray callers
// cannot turn the table into a junk drawer.
const (
	KeyView        = "view"
	KeyBreadcrumbs = "breadcrumbs"
	KeyPageSize    = "page_size"
)

var allowedKeys = map[string]bool{
	KeyView:        true,
	KeyBreadcrumbs: true,
	KeyPageSize:    true,
}

// Store wraps the SQLite file backing UI state.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the state database at path. ":memory:"
// gives an ephemeral store for tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("create state directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}

	// Single operator, low write volume; WAL still keeps readers unblocked.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	return s.db.Close()
}

// Set upserts a state value. Empty value deletes the row.
func (s *Store) Set(key, value string) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	key = strings.TrimSpace(key)
	if !allowedKeys[key] {
		return fmt.Errorf("uistate: unknown key %q", key)
	}
	if strings.TrimSpace(value) == "" {
		_, err := s.db.Exec(`DELETE FROM ui_state WHERE key = ?`, key)
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO ui_state (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// Get loads one state value; missing keys return "".
func (s *Store) Get(key string) (string, error) {
	if s == nil || s.db == nil {
		return "", ErrClosed
	}
	var value string
	err := s.db.QueryRow(`SELECT value FROM ui_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetView persists the active dashboard view.
func (s *Store) SetView(view string) error { return s.Set(KeyView, view) }

// View returns the persisted view, or "" when none is stored.
func (s *Store) View() (string, error) { return s.Get(KeyView) }

// SetBreadcrumbs persists the navigation trail as JSON.
func (s *Store) SetBreadcrumbs(trail []string) error {
	if len(trail) == 0 {
		return s.Set(KeyBreadcrumbs, "")
	}
	data, err := json.Marshal(trail)
	if err != nil {
		return err
	}
	return s.Set(KeyBreadcrumbs, string(data))
}

// Breadcrumbs returns the persisted trail; nil when none is stored.
func (s *Store) Breadcrumbs() ([]string, error) {
	raw, err := s.Get(KeyBreadcrumbs)
	if err != nil || raw == "" {
		return nil, err
	}
	var trail []string
	if err := json.Unmarshal([]byte(raw), &trail); err != nil {
		return nil, fmt.Errorf("decode breadcrumbs: %w", err)
	}
	return trail, nil
}

// SetPageSize persists the operator's preferred page size.
func (s *Store) SetPageSize(size int) error {
	if size <= 0 {
		return s.Set(KeyPageSize, "")
	}
	return s.Set(KeyPageSize, strconv.Itoa(size))
}

// PageSize returns the persisted page size, or 0 when none is stored.
func (s *Store) PageSize() (int, error) {
	raw, err := s.Get(KeyPageSize)
	if err != nil || raw == "" {
		return 0, err
	}
	size, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("decode page size: %w", err)
	}
	return size, nil
}

// BulkAuditEntry is one recorded bulk operation.
type BulkAuditEntry struct {
	ID        int64     `json:"id"`
	Actor     string    `json:"actor"`
	Kind      string    `json:"kind"`
	Entity    string    `json:"entity"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Payload   string    `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordBulkAudit stores one bulk operation outcome for later review.
func (s *Store) RecordBulkAudit(actor, kind, entity string, succeeded, failed int, payload any) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	data := ""
	if payload != nil {
		if buf, err := json.Marshal(payload); err == nil {
			data = string(buf)
		}
	}
	_, err := s.db.Exec(`
		INSERT INTO bulk_audit (actor, kind, entity, succeeded, failed, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, strings.TrimSpace(actor), kind, entity, succeeded, failed, data, time.Now().UTC())
	return err
}

// RecentBulkAudits returns the newest entries, most recent first.
func (s *Store) RecentBulkAudits(limit int) ([]BulkAuditEntry, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, actor, kind, entity, succeeded, failed, payload, created_at
		FROM bulk_audit
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []BulkAuditEntry
	for rows.Next() {
		var e BulkAuditEntry
		if err := rows.Scan(&e.ID, &e.Actor, &e.Kind, &e.Entity, &e.Succeeded, &e.Failed, &e.Payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
