/*
scenarios.go - Demo audits for testing and demonstrations

PURPOSE:

	Provides pre-built statements that exercise the audit engine end to end
	against the embedded sample rate table. Each scenario is an E-5 with six
	years of service stationed at Fort Bragg (ZIP 28310) with dependents,
	auditing the March 2025 statement; they differ in what the statement
	says.

AVAILABLE SCENARIOS:

	all-correct:        Every line matches; all green
	allowance-mismatch: BAH overpaid by $300 and the net no longer adds up
	capped-tax-base:    Social Security withheld after the wage base was reached
	code-variant:       Same statement as all-correct, spelled differently
	missing-location:   Duty station not in the housing table

USAGE VIA API:

	GET  /api/scenarios
	POST /api/scenarios/allowance-mismatch/run

ADDING NEW SCENARIOS:
 1. Add a scenario to the 'scenarios' slice with ID, name, description
 2. Give it a build function returning the AuditRequest

NOTE:

	Running a scenario stores an audit run like any other audit.

SEE ALSO:
  - handlers.go: runAudit
  - ratetable/tables/sample_2025.json: Figures the statements are built from
*/
package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/slimmugnai-oss/garrison-ledger-sub009/audit"
	"github.com/slimmugnai-oss/garrison-ledger-sub009/ratetable"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	build func() AuditRequest
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "all-correct",
			Name:        "All Correct",
			Description: "E-5 at Fort Bragg, every line matches the 2025 tables",
		},
		build: func() AuditRequest { return sampleStatement() },
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "allowance-mismatch",
			Name:        "Allowance Mismatch",
			Description: "BAH $300 above the table rate with the net left as printed; red allowance and net flags",
		},
		build: func() AuditRequest {
			req := sampleStatement()
			req.Lines[1].Amount += 30000
			return req
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "capped-tax-base",
			Name:        "Capped Tax Base",
			Description: "Wage base reached earlier in the year but Social Security still withheld; yellow FICA flag",
		},
		build: func() AuditRequest {
			req := sampleStatement()
			req.Profile.YTDSocialSecurityWagesCents = 17_700_000
			return req
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "code-variant",
			Name:        "Code Variants",
			Description: "The all-correct statement with legacy and abbreviated line codes",
		},
		build: func() AuditRequest {
			req := sampleStatement()
			for i, raw := range []string{"BASE PAY", "BAH W/DEP", "bas", "FITW", "SITW", "OASDI", "FICA-Medicare", "sgli", "AFRH"} {
				req.Lines[i].RawCode = raw
			}
			return req
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "missing-location",
			Name:        "Missing Location",
			Description: "Duty station not in the housing table; BAH cannot be verified",
		},
		build: func() AuditRequest {
			req := sampleStatement()
			req.Profile.DutyLocation = "99999"
			return req
		},
	},
}

// sampleStatement is a correct March 2025 statement for an E-5 over 6 with
// dependents at Fort Bragg, $500,000 SGLI, North Carolina withholding.
func sampleStatement() AuditRequest {
	return AuditRequest{
		BundleVersion: ratetable.SampleVersion,
		Profile: ProfileDTO{
			Grade:             "E-5",
			YearsOfService:    6,
			DutyLocation:      "28310",
			HasDependents:     true,
			State:             "NC",
			Period:            "2025-03",
			SGLICoverageCents: 50_000_000,
		},
		Lines: []audit.RawLine{
			{RawCode: "BASEPAY", Description: "Base pay", Amount: 352290, Section: audit.SectionAllowance},
			{RawCode: "BAH", Description: "BAH with dependents", Amount: 168700, Section: audit.SectionAllowance},
			{RawCode: "BAS", Description: "Subsistence", Amount: 46577, Section: audit.SectionAllowance},
			{RawCode: "FED_TAX", Description: "Federal withholding", Amount: 77504, Section: audit.SectionTax},
			{RawCode: "STATE_TAX", Description: "NC withholding", Amount: 14972, Section: audit.SectionTax},
			{RawCode: "FICA_SS", Description: "Social Security", Amount: 21842, Section: audit.SectionTax},
			{RawCode: "FICA_MED", Description: "Medicare", Amount: 5108, Section: audit.SectionTax},
			{RawCode: "SGLI", Description: "SGLI $500,000", Amount: 3100, Section: audit.SectionDeduction},
			{RawCode: "AFRH", Description: "Retirement home", Amount: 50, Section: audit.SectionDeduction},
		},
		ReportedNetCents: 444991,
	}
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// =============================================================================
// SCENARIO ENDPOINTS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	out := make([]ScenarioDTO, 0, len(scenarios))
	for _, s := range scenarios {
		out = append(out, s.ScenarioDTO)
	}
	writeJSON(w, http.StatusOK, out)
}

// RunScenario audits a scenario statement. The sample bundle is stored
// first if it is missing.
func (h *Handler) RunScenario(w http.ResponseWriter, r *http.Request) {
	s, ok := findScenario(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "scenario not found", nil)
		return
	}

	ctx := r.Context()
	if _, err := h.bundleFor(ctx, ratetable.SampleVersion, 0); errors.Is(err, audit.ErrBundleNotFound) {
		if err := h.SeedSample(ctx); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load sample rate table", err)
			return
		}
	}

	resp, err := h.runAudit(ctx, s.build())
	if err != nil {
		status, body := errorResponse(err)
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}
