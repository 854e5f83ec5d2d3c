// Package memory provides an in-memory store.Store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/slimmugnai-oss/garrison-ledger-sub009/store"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	bundles map[string]store.BundleRecord
	order   []string // bundle versions in save order
	runs    []store.RunRecord
	runByID map[string]int
}

var _ store.Store = (*Memory)(nil)

func New() *Memory {
	return &Memory{
		bundles: make(map[string]store.BundleRecord),
		runByID: make(map[string]int),
	}
}

func (m *Memory) Close() error { return nil }

// SaveBundle adds a bundle version. Append-only.
func (m *Memory) SaveBundle(_ context.Context, rec store.BundleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bundles[rec.Version]; ok {
		return store.ErrDuplicateVersion
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.ConfigJSON = clone(rec.ConfigJSON)
	m.bundles[rec.Version] = rec
	m.order = append(m.order, rec.Version)
	return nil
}

func (m *Memory) GetBundle(_ context.Context, version string) (store.BundleRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.bundles[version]
	if !ok {
		return store.BundleRecord{}, store.ErrNotFound
	}
	rec.ConfigJSON = clone(rec.ConfigJSON)
	return rec, nil
}

func (m *Memory) LatestBundle(_ context.Context, year int) (store.BundleRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.order) - 1; i >= 0; i-- {
		rec := m.bundles[m.order[i]]
		if year <= 0 || rec.EffectiveYear == year {
			rec.ConfigJSON = clone(rec.ConfigJSON)
			return rec, nil
		}
	}
	return store.BundleRecord{}, store.ErrNotFound
}

func (m *Memory) ListBundles(_ context.Context) ([]store.BundleRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]store.BundleRecord, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, m.bundles[m.order[i]])
	}
	return out, nil
}

// =============================================================================
// RUNS
// =============================================================================

func (m *Memory) SaveRun(_ context.Context, rec store.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runByID[rec.ID]; ok {
		return store.ErrDuplicateRun
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.RequestJSON = clone(rec.RequestJSON)
	rec.ResultJSON = clone(rec.ResultJSON)
	m.runByID[rec.ID] = len(m.runs)
	m.runs = append(m.runs, rec)
	return nil
}

func (m *Memory) GetRun(_ context.Context, id string) (store.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.runByID[id]
	if !ok {
		return store.RunRecord{}, store.ErrNotFound
	}
	return m.runs[i], nil
}

func (m *Memory) ListRuns(_ context.Context, filter store.RunFilter) ([]store.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []store.RunRecord
	for i := len(m.runs) - 1; i >= 0; i-- {
		if filter.Matches(m.runs[i]) {
			out = append(out, m.runs[i])
		}
	}
	// Newest first; later saves win ties.
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit := filter.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
