package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/slimmugnai-oss/garrison-ledger-sub009/audit"
	"github.com/slimmugnai-oss/garrison-ledger-sub009/factory"
	"github.com/slimmugnai-oss/garrison-ledger-sub009/ratetable"
	"github.com/slimmugnai-oss/garrison-ledger-sub009/store"
)

// =============================================================================
// BUNDLE CACHE
// =============================================================================

// LoadBundles replaces the cache with every bundle in the store and returns
// how many were loaded. Bundles that no longer validate are skipped.
func (h *Handler) LoadBundles(ctx context.Context) (int, error) {
	recs, err := h.Store.ListBundles(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list bundles: %w", err)
	}

	bundles := make(map[string]*ratetable.Bundle, len(recs))
	latest := make(map[int]string)
	for _, rec := range recs { // newest first
		b, err := h.Factory.ParseBundle(rec.ConfigJSON)
		if err != nil {
			log.Printf("[api] skipping stored bundle %s: %v", rec.Version, err)
			continue
		}
		bundles[b.Version] = b
		if _, ok := latest[b.EffectiveYear]; !ok {
			latest[b.EffectiveYear] = b.Version
		}
	}

	h.mu.Lock()
	h.bundles = bundles
	h.latest = latest
	h.mu.Unlock()
	return len(bundles), nil
}

// bundleFor returns the pinned version, or the newest bundle for year.
func (h *Handler) bundleFor(ctx context.Context, version string, year int) (*ratetable.Bundle, error) {
	if version != "" {
		h.mu.RLock()
		b, ok := h.bundles[version]
		h.mu.RUnlock()
		if ok {
			return b, nil
		}
		rec, err := h.Store.GetBundle(ctx, version)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: version %q", audit.ErrBundleNotFound, version)
		}
		if err != nil {
			return nil, err
		}
		return h.cacheRecord(rec, false)
	}

	h.mu.RLock()
	b, ok := h.bundles[h.latest[year]]
	h.mu.RUnlock()
	if ok {
		return b, nil
	}
	rec, err := h.Store.LatestBundle(ctx, year)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: no rate table for %d", audit.ErrBundleNotFound, year)
	}
	if err != nil {
		return nil, err
	}
	return h.cacheRecord(rec, true)
}

// cacheRecord parses and caches a stored bundle. newest marks it as the
// latest for its year.
func (h *Handler) cacheRecord(rec store.BundleRecord, newest bool) (*ratetable.Bundle, error) {
	b, err := h.Factory.ParseBundle(rec.ConfigJSON)
	if err != nil {
		return nil, fmt.Errorf("stored bundle %s is invalid: %w", rec.Version, err)
	}
	h.mu.Lock()
	h.bundles[b.Version] = b
	if newest {
		h.latest[b.EffectiveYear] = b.Version
	}
	h.mu.Unlock()
	return b, nil
}

// SaveBundle publishes a validated bundle and makes it the latest for its
// year.
func (h *Handler) SaveBundle(ctx context.Context, b *ratetable.Bundle) error {
	config, err := json.Marshal(h.Factory.ToJSON(b))
	if err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}
	err = h.Store.SaveBundle(ctx, store.BundleRecord{
		Version:       b.Version,
		EffectiveYear: b.EffectiveYear,
		ConfigJSON:    config,
		CreatedAt:     h.now().UTC(),
	})
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.bundles[b.Version] = b
	h.latest[b.EffectiveYear] = b.Version
	h.mu.Unlock()
	return nil
}

// SeedSample stores the embedded sample bundle unless it is already there.
func (h *Handler) SeedSample(ctx context.Context) error {
	b, err := h.Factory.LoadSample()
	if err != nil {
		return err
	}
	return h.seed(ctx, b)
}

// SeedFile stores a bundle file (JSON or YAML by extension) unless its
// version is already there.
func (h *Handler) SeedFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	b, err := h.Factory.Parse(data, factory.DetectFormat(path))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return h.seed(ctx, b)
}

func (h *Handler) seed(ctx context.Context, b *ratetable.Bundle) error {
	err := h.SaveBundle(ctx, b)
	if errors.Is(err, store.ErrDuplicateVersion) {
		log.Printf("[api] bundle %s already stored", b.Version)
		return nil
	}
	if err == nil {
		log.Printf("[api] seeded bundle %s (effective %d)", b.Version, b.EffectiveYear)
	}
	return err
}

// =============================================================================
// RATE TABLE ENDPOINTS
// =============================================================================

// ListRateTables lists stored bundle versions, newest first.
func (h *Handler) ListRateTables(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Store.ListBundles(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list rate tables", err)
		return
	}

	dtos := make([]BundleSummaryDTO, 0, len(recs))
	for _, rec := range recs {
		dtos = append(dtos, BundleSummaryDTO{
			Version:       rec.Version,
			EffectiveYear: rec.EffectiveYear,
			CreatedAt:     rec.CreatedAt.UTC().Format(timeFormat),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRateTable publishes a bundle. The body is JSON unless ?format=yaml
// or a YAML content type says otherwise.
func (h *Handler) CreateRateTable(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body", err)
		return
	}

	hint := r.URL.Query().Get("format")
	if hint == "" {
		hint = r.Header.Get("Content-Type")
	}
	b, err := h.Factory.Parse(data, factory.DetectFormat(hint))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid rate table", Code: "INVALID_BUNDLE", Details: err.Error()})
		return
	}

	if err := h.SaveBundle(r.Context(), b); err != nil {
		if errors.Is(err, store.ErrDuplicateVersion) {
			writeError(w, http.StatusConflict, fmt.Sprintf("rate table %s already exists", b.Version), nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to save rate table", err)
		return
	}

	log.Printf("[api] published rate table %s (effective %d)", b.Version, b.EffectiveYear)
	writeJSON(w, http.StatusCreated, BundleSummaryDTO{
		Version:       b.Version,
		EffectiveYear: b.EffectiveYear,
		CreatedAt:     h.now().UTC().Format(timeFormat),
	})
}

// GetRateTable returns one bundle in authored form.
func (h *Handler) GetRateTable(w http.ResponseWriter, r *http.Request) {
	version := chi.URLParam(r, "version")

	rec, err := h.Store.GetBundle(r.Context(), version)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "rate table not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load rate table", err)
		return
	}

	hint := r.URL.Query().Get("format")
	if hint == "" {
		hint = r.Header.Get("Accept")
	}
	if !strings.Contains(strings.ToLower(hint), "yaml") {
		writeRawJSON(w, http.StatusOK, rec.ConfigJSON)
		return
	}

	b, err := h.Factory.ParseBundle(rec.ConfigJSON)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stored rate table is invalid", err)
		return
	}
	out, err := h.Factory.Marshal(b, factory.FormatYAML)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode rate table", err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}
