/*
Package sqlite provides a SQLite-backed implementation of store.Store.

PURPOSE:
  Persists rate-table bundle versions and completed audit runs. In production
  the same schema works on PostgreSQL with minor dialect changes.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on either table
  - A bundle correction is a new version
  - A re-audit is a new run

KEY TABLES:
  rate_bundles: One row per bundle version, authored JSON in config_json
  audit_runs:   One row per audit, request and result JSON plus summary columns

INDEXES:
  - idx_rate_bundles_year: LatestBundle lookups
  - idx_audit_runs_created: Run listing (newest first)
  - idx_audit_runs_bundle: Runs audited against a given bundle version

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite is opened in WAL mode so
  readers don't block while a run is being written.

USAGE:
  st, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - store/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/slimmugnai-oss/garrison-ledger-sub009/store"
)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ store.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if strings.Contains(dbPath, ":memory:") {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	st := &Store{db: db}
	if err := st.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return st, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rate_bundles (
		version TEXT PRIMARY KEY,
		effective_year INTEGER NOT NULL,
		config_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		seq INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rate_bundles_year
		ON rate_bundles(effective_year, seq DESC);

	CREATE TABLE IF NOT EXISTS audit_runs (
		id TEXT PRIMARY KEY,
		bundle_version TEXT NOT NULL,
		grade TEXT NOT NULL,
		period TEXT NOT NULL,
		green INTEGER NOT NULL DEFAULT 0,
		yellow INTEGER NOT NULL DEFAULT 0,
		red INTEGER NOT NULL DEFAULT 0,
		net_delta_cents INTEGER NOT NULL DEFAULT 0,
		request_json TEXT NOT NULL,
		result_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		seq INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_runs_created
		ON audit_runs(created_at DESC, seq DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_runs_bundle
		ON audit_runs(bundle_version);
	CREATE INDEX IF NOT EXISTS idx_audit_runs_period
		ON audit_runs(period);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// BUNDLES (store.BundleStore)
// =============================================================================

// SaveBundle stores a new bundle version.
func (s *Store) SaveBundle(ctx context.Context, rec store.BundleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO rate_bundles (version, effective_year, config_json, created_at, seq)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM rate_bundles))
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.Version,
		rec.EffectiveYear,
		string(rec.ConfigJSON),
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return store.ErrDuplicateVersion
		}
		return fmt.Errorf("failed to save bundle %s: %w", rec.Version, err)
	}
	return nil
}

// GetBundle returns one bundle version.
func (s *Store) GetBundle(ctx context.Context, version string) (store.BundleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT version, effective_year, config_json, created_at
		FROM rate_bundles WHERE version = ?
	`, version)
	return scanBundle(row)
}

// LatestBundle returns the most recently saved bundle for a year (any year
// when year <= 0).
func (s *Store) LatestBundle(ctx context.Context, year int) (store.BundleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var row *sql.Row
	if year <= 0 {
		row = s.db.QueryRowContext(ctx, `
			SELECT version, effective_year, config_json, created_at
			FROM rate_bundles ORDER BY seq DESC LIMIT 1
		`)
	} else {
		row = s.db.QueryRowContext(ctx, `
			SELECT version, effective_year, config_json, created_at
			FROM rate_bundles WHERE effective_year = ? ORDER BY seq DESC LIMIT 1
		`, year)
	}
	return scanBundle(row)
}

// ListBundles returns every bundle version, newest first.
func (s *Store) ListBundles(ctx context.Context) ([]store.BundleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT version, effective_year, config_json, created_at
		FROM rate_bundles ORDER BY seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bundles: %w", err)
	}
	defer rows.Close()

	var out []store.BundleRecord
	for rows.Next() {
		rec, err := scanBundle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBundle(row scanner) (store.BundleRecord, error) {
	var (
		rec       store.BundleRecord
		config    string
		createdAt string
	)
	if err := row.Scan(&rec.Version, &rec.EffectiveYear, &config, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.BundleRecord{}, store.ErrNotFound
		}
		return store.BundleRecord{}, fmt.Errorf("failed to scan bundle: %w", err)
	}
	rec.ConfigJSON = []byte(config)
	rec.CreatedAt = parseTime(createdAt)
	return rec, nil
}

// =============================================================================
// RUNS (store.RunStore)
// =============================================================================

// SaveRun stores a completed audit.
func (s *Store) SaveRun(ctx context.Context, rec store.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_runs
		(id, bundle_version, grade, period, green, yellow, red, net_delta_cents,
		 request_json, result_json, created_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM audit_runs))
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.BundleVersion,
		rec.Grade,
		rec.Period,
		rec.Green,
		rec.Yellow,
		rec.Red,
		rec.NetDelta,
		string(rec.RequestJSON),
		string(rec.ResultJSON),
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return store.ErrDuplicateRun
		}
		return fmt.Errorf("failed to save run %s: %w", rec.ID, err)
	}
	return nil
}

const runColumns = `id, bundle_version, grade, period, green, yellow, red, net_delta_cents,
		       request_json, result_json, created_at`

// GetRun returns one audit run.
func (s *Store) GetRun(ctx context.Context, id string) (store.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM audit_runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, filter store.RunFilter) ([]store.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if filter.BundleVersion != "" {
		where = append(where, "bundle_version = ?")
		args = append(args, filter.BundleVersion)
	}
	if filter.Period != "" {
		where = append(where, "period = ?")
		args = append(args, filter.Period)
	}
	if filter.OnlyRed {
		where = append(where, "red > 0")
	}

	query := `SELECT ` + runColumns + ` FROM audit_runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, seq DESC LIMIT ?"
	args = append(args, filter.EffectiveLimit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []store.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRun(row scanner) (store.RunRecord, error) {
	var (
		rec       store.RunRecord
		request   string
		result    string
		createdAt string
	)
	err := row.Scan(&rec.ID, &rec.BundleVersion, &rec.Grade, &rec.Period,
		&rec.Green, &rec.Yellow, &rec.Red, &rec.NetDelta,
		&request, &result, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.RunRecord{}, store.ErrNotFound
		}
		return store.RunRecord{}, fmt.Errorf("failed to scan run: %w", err)
	}
	rec.RequestJSON = []byte(request)
	rec.ResultJSON = []byte(result)
	rec.CreatedAt = parseTime(createdAt)
	return rec, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// Fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
