package eventstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens or creates the database at dbPath. ":memory:" gives
// a private in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, ferrors.HistoryError("could not create run history directory").
				WithCause(err).WithContext("path", dbPath).Build()
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, ferrors.HistoryError("could not open run history database").
			WithCause(err).WithContext("path", dbPath).Build()
	}
	// An in-memory database lives in one connection.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, ferrors.HistoryError("failed to initialize run history schema").
			WithCause(err).WithContext("path", dbPath).Build()
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS run_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		state TEXT NOT NULL,
		repository TEXT,
		detail TEXT,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_run_id ON run_records(run_id);
	CREATE INDEX IF NOT EXISTS idx_timestamp ON run_records(timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Append(ctx context.Context, rec RunRecord) error {
	if rec.RunID == "" {
		return ferrors.ValidationError("run id is required").Build()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO run_records (run_id, state, repository, detail, timestamp) VALUES (?, ?, ?, ?, ?)",
		rec.RunID, rec.State, rec.Repository, rec.Detail, rec.Timestamp.UnixMilli(),
	)
	if err != nil {
		return ferrors.HistoryError("failed to append run record").
			WithCause(err).WithContext("run_id", rec.RunID).Build()
	}
	return nil
}

const selectColumns = "SELECT id, run_id, state, repository, detail, timestamp FROM run_records"

func (s *SQLiteStore) ByRun(ctx context.Context, runID string) ([]RunRecord, error) {
	return s.query(ctx, selectColumns+" WHERE run_id = ? ORDER BY id", runID)
}

func (s *SQLiteStore) Range(ctx context.Context, start, end time.Time) ([]RunRecord, error) {
	return s.query(ctx, selectColumns+" WHERE timestamp >= ? AND timestamp <= ? ORDER BY id",
		start.UnixMilli(), end.UnixMilli())
}

func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.query(ctx, selectColumns+" ORDER BY id DESC LIMIT ?", limit)
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, ferrors.HistoryError("failed to query run records").WithCause(err).Build()
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var repo, detail sql.NullString
		var ts int64
		if err := rows.Scan(&r.ID, &r.RunID, &r.State, &repo, &detail, &ts); err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		r.Repository = repo.String
		r.Detail = detail.String
		r.Timestamp = time.UnixMilli(ts)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
