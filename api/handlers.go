/*
handlers.go - HTTP API handlers for the pay statement audit service

PURPOSE:
  Exposes the audit engine via REST API. Handles HTTP request/response,
  JSON serialization, bundle selection and run persistence, and delegates
  the audit itself to audit.Engine.

ENDPOINTS:
  Audits:
    POST   /api/audits                 Audit one statement, store the run
    POST   /api/audits/batch           Audit up to 100 statements concurrently
    GET    /api/audits                 List stored runs (?period=&bundle_version=&red=true&limit=)
    GET    /api/audits/{id}            Stored audit result

  Rate tables (ratetables.go):
    GET    /api/rate-tables            List bundle versions
    POST   /api/rate-tables            Publish a bundle (JSON or YAML body)
    GET    /api/rate-tables/{version}  Bundle in authored form (?format=yaml)

  Vocabulary:
    GET    /api/codes                  Canonical codes and the alias table
    POST   /api/normalize              Map raw codes to canonical codes
    GET    /api/flag-codes             Flag catalog

  Scenarios (scenarios.go):
    GET    /api/scenarios              List demo audits
    POST   /api/scenarios/{id}/run     Run a demo audit

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Bundle versions and audit runs
  - Factory: Authored bundle to ratetable.Bundle conversion
  - Engine: The audit pipeline (pure, safe for concurrent use)
  - Cached bundles by version and latest version per year

REQUEST FLOW:
  1. Parse HTTP request
  2. Convert the DTO (period parsing)
  3. Pick the bundle (pinned version or latest for the period's year)
  4. Run the engine
  5. Persist the run, serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid statement or bundle (details list every problem)
  - 404: Unknown run, bundle version, or no bundle for the year
  - 409: Bundle version already published
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - ratetables.go: Bundle cache and rate-table endpoints
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/slimmugnai-oss/garrison-ledger-sub009/audit"
	"github.com/slimmugnai-oss/garrison-ledger-sub009/factory"
	"github.com/slimmugnai-oss/garrison-ledger-sub009/metrics"
	"github.com/slimmugnai-oss/garrison-ledger-sub009/ratetable"
	"github.com/slimmugnai-oss/garrison-ledger-sub009/store"
)

const (
	tracerName = "github.com/slimmugnai-oss/garrison-ledger-sub009/api"

	maxBodyBytes = 1 << 20
	maxBatchSize = 100
	batchWorkers = 8
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   store.Store
	Factory *factory.BundleFactory
	Engine  *audit.Engine
	Metrics *metrics.Metrics

	// Cached bundles; see ratetables.go
	mu      sync.RWMutex
	bundles map[string]*ratetable.Bundle
	latest  map[int]string // effective year -> newest version

	newID func() string
	now   func() time.Time
}

// NewHandler creates a new handler with the given store. m may be nil.
func NewHandler(st store.Store, m *metrics.Metrics) *Handler {
	return &Handler{
		Store:   st,
		Factory: factory.NewBundleFactory(),
		Engine:  audit.NewEngine(),
		Metrics: m,
		bundles: make(map[string]*ratetable.Bundle),
		latest:  make(map[int]string),
		newID:   uuid.NewString,
		now:     time.Now,
	}
}

// =============================================================================
// AUDIT ENDPOINTS
// =============================================================================

// CreateAudit audits one statement and stores the run.
func (h *Handler) CreateAudit(w http.ResponseWriter, r *http.Request) {
	var req AuditRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	resp, err := h.runAudit(r.Context(), req)
	if err != nil {
		status, body := errorResponse(err)
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// BatchAudit audits several statements concurrently. A failing statement
// does not fail the batch; its item carries the error instead.
func (h *Handler) BatchAudit(w http.ResponseWriter, r *http.Request) {
	var req BatchAuditRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}
	if len(req.Audits) == 0 {
		writeError(w, http.StatusBadRequest, "audits is empty", nil)
		return
	}
	if len(req.Audits) > maxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d audits per batch", maxBatchSize), nil)
		return
	}

	items := make([]BatchItem, len(req.Audits))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(batchWorkers)
	for i, in := range req.Audits {
		i, in := i, in
		items[i].Index = i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			resp, err := h.runAudit(ctx, in)
			if err != nil {
				_, body := errorResponse(err)
				items[i].Error = &body
				return nil
			}
			items[i].Result = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "batch canceled", err)
		return
	}

	out := BatchAuditResponse{Results: items}
	for _, it := range items {
		if it.Error != nil {
			out.Failed++
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// ListAudits lists stored runs, newest first.
func (h *Handler) ListAudits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		BundleVersion: q.Get("bundle_version"),
		Period:        q.Get("period"),
		OnlyRed:       q.Get("red") == "true",
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		filter.Limit = n
	}

	runs, err := h.Store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list audits", err)
		return
	}

	dtos := make([]RunSummaryDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toRunSummaryDTO(run))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAudit returns a stored audit result as it was first returned.
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.Store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "audit not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load audit", err)
		return
	}
	writeRawJSON(w, http.StatusOK, run.ResultJSON)
}

// runAudit is the shared path for single, batch and scenario audits.
func (h *Handler) runAudit(ctx context.Context, in AuditRequest) (*AuditResponse, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "audit.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("audit.grade", in.Profile.Grade),
		attribute.String("audit.period", in.Profile.Period),
		attribute.Int("audit.lines", len(in.Lines)),
	)

	fail := func(outcome string, err error) (*AuditResponse, error) {
		h.Metrics.ObserveAudit(outcome, len(in.Lines), 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}

	req, err := in.toRequest()
	if err != nil {
		return fail("invalid", err)
	}
	bundle, err := h.bundleFor(ctx, in.BundleVersion, req.Profile.Period.Year)
	if err != nil {
		return fail("no_bundle", err)
	}

	start := time.Now()
	res, err := h.Engine.Run(req, bundle)
	elapsed := time.Since(start)
	if err != nil {
		if audit.IsClientError(err) {
			return fail("invalid", err)
		}
		return fail("error", err)
	}

	id, at := h.newID(), h.now()
	resp := toAuditResponse(id, at, res, h.Engine.Normalizer().Version())

	if err := h.saveRun(ctx, in, resp, res); err != nil {
		return fail("error", err)
	}

	counts := res.Counts()
	h.Metrics.ObserveAudit("ok", len(in.Lines), elapsed)
	for _, f := range res.Flags {
		h.Metrics.IncrementFlag(string(f.Severity), f.Code.String())
	}
	span.SetAttributes(
		attribute.String("audit.id", id),
		attribute.String("audit.bundle_version", res.BundleVersion),
		attribute.Int("audit.red", counts[audit.SeverityRed]),
		attribute.Int("audit.yellow", counts[audit.SeverityYellow]),
	)
	return &resp, nil
}

func (h *Handler) saveRun(ctx context.Context, in AuditRequest, resp AuditResponse, res *audit.Result) error {
	reqJSON, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	resJSON, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	counts := res.Counts()
	createdAt, _ := time.Parse(timeFormat, resp.CreatedAt)
	err = h.Store.SaveRun(ctx, store.RunRecord{
		ID:            resp.ID,
		BundleVersion: res.BundleVersion,
		Grade:         string(res.Profile.Grade),
		Period:        res.Profile.Period.String(),
		Green:         counts[audit.SeverityGreen],
		Yellow:        counts[audit.SeverityYellow],
		Red:           counts[audit.SeverityRed],
		NetDelta:      int64(res.Summary.NetDelta),
		RequestJSON:   reqJSON,
		ResultJSON:    resJSON,
		CreatedAt:     createdAt,
	})
	if err != nil {
		return fmt.Errorf("failed to save audit run: %w", err)
	}
	return nil
}

// =============================================================================
// VOCABULARY ENDPOINTS
// =============================================================================

// ListCodes returns the canonical codes and the active alias table.
func (h *Handler) ListCodes(w http.ResponseWriter, r *http.Request) {
	n := h.Engine.Normalizer()
	infos := audit.Codes()

	resp := CodesResponse{
		AliasTableVersion: n.Version(),
		Codes:             make([]CodeDTO, 0, len(infos)),
		Aliases:           n.Aliases(),
	}
	for _, info := range infos {
		resp.Codes = append(resp.Codes, CodeDTO{
			Code:     string(info.Code),
			Name:     info.Name,
			Category: string(info.Category),
			Section:  string(info.Section),
			Check:    string(info.Check),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Normalize maps raw codes (and raw lines) to canonical codes.
func (h *Handler) Normalize(w http.ResponseWriter, r *http.Request) {
	var req NormalizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	n := h.Engine.Normalizer()
	resp := NormalizeResponse{AliasTableVersion: n.Version(), Results: []NormalizedDTO{}}
	for _, raw := range req.Codes {
		code := n.Normalize(raw)
		resp.Results = append(resp.Results, NormalizedDTO{Raw: raw, Key: audit.Key(raw), Code: string(code), Known: code != audit.CodeUnknown})
	}
	for _, line := range req.Lines {
		code := n.NormalizeLine(line.RawCode, line.Description)
		resp.Results = append(resp.Results, NormalizedDTO{Raw: line.RawCode, Key: audit.Key(line.RawCode), Code: string(code), Known: code != audit.CodeUnknown})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListFlagCodes returns the flag catalog.
func (h *Handler) ListFlagCodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, FlagCodesResponse{Version: audit.FlagCatalogVersion, Codes: audit.FlagCatalog()})
}

// Healthz reports liveness and how many bundles are cached.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	n := len(h.bundles)
	h.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "bundles": n})
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[api] failed to write response: %v", err)
	}
}

func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// errorResponse maps engine and lookup errors to a status and body.
func errorResponse(err error) (int, ErrorResponse) {
	var inErr *audit.InputError
	switch {
	case errors.As(err, &inErr):
		return http.StatusBadRequest, ErrorResponse{Error: "invalid audit request", Code: "INVALID_INPUT", Details: inErr.Problems}
	case audit.IsNotFound(err):
		return http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "BUNDLE_NOT_FOUND"}
	case audit.IsClientError(err):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_INPUT"}
	default:
		log.Printf("[api] audit failed: %v", err)
		return http.StatusInternalServerError, ErrorResponse{Error: "internal error", Details: err.Error()}
	}
}
