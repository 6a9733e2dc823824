// ABOUTME: SQLite implementation of the AuditStore using modernc.org/sqlite
// ABOUTME: Provides call-record persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the AuditStore interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS call_audit (
			id TEXT PRIMARY KEY,
			request_id TEXT NOT NULL,
			tool TEXT NOT NULL,
			service TEXT NOT NULL DEFAULT '',
			method TEXT NOT NULL DEFAULT '',
			ok INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_call_audit_created_at ON call_audit(created_at);
		CREATE INDEX IF NOT EXISTS idx_call_audit_tool ON call_audit(tool);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// RecordCall stores one audited tool invocation.
func (s *SQLiteStore) RecordCall(ctx context.Context, rec *CallRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO call_audit (id, request_id, tool, service, method, ok, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.RequestID,
		rec.Tool,
		rec.Service,
		rec.Method,
		boolToInt(rec.OK),
		rec.Error,
		rec.DurationMS,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting call record: %w", err)
	}

	s.logger.Debug("recorded call",
		"id", rec.ID,
		"tool", rec.Tool,
		"service", rec.Service,
		"method", rec.Method,
		"ok", rec.OK,
	)
	return nil
}

// ListCalls returns the most recent call records, newest first.
func (s *SQLiteStore) ListCalls(ctx context.Context, limit int) ([]*CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, request_id, tool, service, method, ok, error, duration_ms, created_at
		FROM call_audit
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying call records: %w", err)
	}
	defer rows.Close()

	var records []*CallRecord
	for rows.Next() {
		rec := &CallRecord{}
		var ok int
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.Tool, &rec.Service, &rec.Method, &ok, &rec.Error, &rec.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning call record: %w", err)
		}
		rec.OK = ok != 0
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
		}
		rec.CreatedAt = t
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
