/*
Package store defines persistence for rate-table bundles and audit runs.

PURPOSE:
  The audit engine is pure: it takes a request and a bundle and returns a
  result. Everything durable lives behind the interfaces here so the HTTP
  layer can run against SQLite in production and memory in tests.

KEY INTERFACES:
  BundleStore: Versioned rate-table bundles (authored JSON)
  RunStore:    Completed audit runs (request + result JSON)
  Store:       Both, plus Close

APPEND-ONLY CONTRACT:
  Bundles and runs are never updated or deleted. A corrected rate table is
  published under a new version; an old run keeps pointing at the bundle
  version it was audited against, so it can always be re-run.

IMPLEMENTATIONS:
  - store/sqlite: SQLite (mattn/go-sqlite3)
  - store/memory: In-memory for tests and the CLI

SEE ALSO:
  - factory/bundle.go: Produces the ConfigJSON stored in BundleRecord
  - api/handlers.go: The only writer
*/
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a bundle version or run ID does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateVersion is returned when a bundle version is saved twice.
	ErrDuplicateVersion = errors.New("bundle version already exists")

	// ErrDuplicateRun is returned when a run ID is saved twice.
	ErrDuplicateRun = errors.New("audit run already exists")
)

// =============================================================================
// RECORDS
// =============================================================================

// BundleRecord is a stored rate-table bundle.
type BundleRecord struct {
	Version       string
	EffectiveYear int
	ConfigJSON    []byte // factory.BundleJSON, JSON-encoded
	CreatedAt     time.Time
}

// RunRecord is a completed audit. The summary columns are denormalized from
// ResultJSON so runs can be listed without decoding every result.
type RunRecord struct {
	ID            string
	BundleVersion string
	Grade         string
	Period        string
	Green         int
	Yellow        int
	Red           int
	NetDelta      int64
	RequestJSON   []byte
	ResultJSON    []byte
	CreatedAt     time.Time
}

// RunFilter narrows ListRuns. Zero values mean "any".
type RunFilter struct {
	BundleVersion string
	Period        string
	OnlyRed       bool
	Limit         int
}

// DefaultRunLimit caps ListRuns when the filter has no limit.
const DefaultRunLimit = 100

// EffectiveLimit returns the limit ListRuns should apply.
func (f RunFilter) EffectiveLimit() int {
	if f.Limit <= 0 || f.Limit > 1000 {
		return DefaultRunLimit
	}
	return f.Limit
}

// Matches reports whether r passes the filter.
func (f RunFilter) Matches(r RunRecord) bool {
	if f.BundleVersion != "" && r.BundleVersion != f.BundleVersion {
		return false
	}
	if f.Period != "" && r.Period != f.Period {
		return false
	}
	if f.OnlyRed && r.Red == 0 {
		return false
	}
	return true
}

// =============================================================================
// INTERFACES
// =============================================================================

// BundleStore persists rate-table bundles by version.
type BundleStore interface {
	// SaveBundle stores a new version. Returns ErrDuplicateVersion if the
	// version exists.
	SaveBundle(ctx context.Context, rec BundleRecord) error

	// GetBundle returns one version or ErrNotFound.
	GetBundle(ctx context.Context, version string) (BundleRecord, error)

	// LatestBundle returns the most recently saved bundle for an effective
	// year. year <= 0 means any year.
	LatestBundle(ctx context.Context, year int) (BundleRecord, error)

	// ListBundles returns all versions, newest first.
	ListBundles(ctx context.Context) ([]BundleRecord, error)
}

// RunStore persists audit runs.
type RunStore interface {
	SaveRun(ctx context.Context, rec RunRecord) error
	GetRun(ctx context.Context, id string) (RunRecord, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error)
}

// Store is everything the service persists.
type Store interface {
	BundleStore
	RunStore
	Close() error
}
