package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver
)

// SQLStore persists runs to a single table as JSON payloads, one row per
// run. The same implementation serves the embedded sqlite file and a shared
// Postgres server; only the placeholder dialect differs.
type SQLStore struct {
	db       *sql.DB
	postgres bool
}

const sqlSchema = `CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	payload BLOB NOT NULL
)`

// Postgres has no BLOB type; BYTEA takes its place.
const pgSchema = `CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	payload BYTEA NOT NULL
)`

// OpenSQLite opens (creating if needed) an embedded sqlite run catalog.
func OpenSQLite(path string) (*SQLStore, error) {
	if path == "" {
		path = "prismview.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(sqlSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// OpenPostgres opens a Postgres-backed run catalog using the provided DSN.
func OpenPostgres(dsn string) (*SQLStore, error) {
	if dsn == "" {
		dsn = "postgres://localhost/prismview?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, pgSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	return &SQLStore{db: db, postgres: true}, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) Save(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("run id required")
	}
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	query := `INSERT INTO runs (id, started_at, payload) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET started_at = excluded.started_at, payload = excluded.payload`
	if s.postgres {
		query = `INSERT INTO runs (id, started_at, payload) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET started_at = excluded.started_at, payload = excluded.payload`
	}
	if _, err := s.db.ExecContext(ctx, query, run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano), payload); err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (Run, bool, error) {
	query := `SELECT payload FROM runs WHERE id = ?`
	if s.postgres {
		query = `SELECT payload FROM runs WHERE id = $1`
	}
	var payload []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, fmt.Errorf("get run %s: %w", id, err)
	}
	var run Run
	if err := json.Unmarshal(payload, &run); err != nil {
		return Run{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *SQLStore) List(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM runs ORDER BY started_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Run
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		var run Run
		if err := json.Unmarshal(payload, &run); err != nil {
			return nil, fmt.Errorf("decode run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *SQLStore) Close() error { return s.db.Close() }
