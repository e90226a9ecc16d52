// Package store persists the YAPI session cookie and the generation
// history in a local SQLite file.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Entry statuses.
const (
	StatusWritten = "written"
	StatusSkipped = "skipped"
	StatusPlanned = "planned"
	StatusPrinted = "printed"
	StatusFailed  = "failed"
)

// Entry is one endpoint result of a generate run.
type Entry struct {
	RunID       string
	InterfaceID int64
	Path        string
	File        string
	Status      string
	Error       string
	CreatedAt   time.Time
}

// SQLite implements yapi.SessionStore and the history log.
type SQLite struct {
	db  *sql.DB
	sb  squirrel.StatementBuilderType
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// One connection serializes writers from concurrent generate workers.
	db.SetMaxOpenConns(1)
	s := newWithDB(db)
	if err := s.Init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func newWithDB(db *sql.DB) *SQLite {
	return &SQLite{
		db:  db,
		sb:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Init creates the tables if they do not exist.
func (s *SQLite) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		return fmt.Errorf("store: init: %w", err)
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			server TEXT PRIMARY KEY,
			cookie TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			started_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			interface_id INTEGER NOT NULL,
			path TEXT NOT NULL,
			file TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_entries_created ON entries(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: init: %w", err)
		}
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// LoadCookie returns the saved session cookie for server, or "".
func (s *SQLite) LoadCookie(ctx context.Context, server string) (string, error) {
	query, args, err := s.sb.Select("cookie").From("sessions").Where(squirrel.Eq{"server": server}).ToSql()
	if err != nil {
		return "", err
	}
	var cookie string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&cookie)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: load cookie: %w", err)
	}
	return cookie, nil
}

// SaveCookie stores cookie for server, replacing any previous value.
func (s *SQLite) SaveCookie(ctx context.Context, server, cookie string) error {
	query, args, err := s.sb.Insert("sessions").
		Columns("server", "cookie", "updated_at").
		Values(server, cookie, s.now().UnixMilli()).
		Suffix("ON CONFLICT(server) DO UPDATE SET cookie = excluded.cookie, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("store: save cookie: %w", err)
	}
	return nil
}

// RecordRun starts a history run and returns its id.
func (s *SQLite) RecordRun(ctx context.Context, source string) (string, error) {
	id := uuid.NewString()
	query, args, err := s.sb.Insert("runs").
		Columns("id", "source", "started_at").
		Values(id, source, s.now().UnixMilli()).
		ToSql()
	if err != nil {
		return "", err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("store: record run: %w", err)
	}
	return id, nil
}

// RecordEntry appends one endpoint result. A zero CreatedAt is set to now.
func (s *SQLite) RecordEntry(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	query, args, err := s.sb.Insert("entries").
		Columns("run_id", "interface_id", "path", "file", "status", "error", "created_at").
		Values(e.RunID, e.InterfaceID, e.Path, e.File, e.Status, e.Error, e.CreatedAt.UnixMilli()).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("store: record entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *SQLite) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	query, args, err := s.sb.
		Select("run_id", "interface_id", "path", "file", "status", "error", "created_at").
		From("entries").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.RunID, &e.InterfaceID, &e.Path, &e.File, &e.Status, &e.Error, &created); err != nil {
			return nil, fmt.Errorf("store: recent: %w", err)
		}
		e.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	return out, nil
}
