/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. The audit package has
  no JSON opinions apart from flags and raw lines; this file owns the wire
  contract so it can evolve without touching the engine.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Every amount is integer cents in a field ending in _cents. Rates are
  decimal strings; *_pct fields are percentage points.

TYPES:
  Audit:      AuditRequest, AuditResponse, OutcomeDTO, SummaryDTO
  Batch:      BatchAuditRequest, BatchAuditResponse
  Runs:       RunSummaryDTO
  RateTables: BundleSummaryDTO
  Codes:      NormalizeRequest, NormalizeResponse, CodeDTO
  Scenarios:  ScenarioDTO

SEE ALSO:
  - handlers.go: Uses these types
  - audit/flags.go: Flag JSON shape
*/
package api

import (
	"time"

	"github.com/slimmugnai-oss/garrison-ledger-sub009/audit"
	"github.com/slimmugnai-oss/garrison-ledger-sub009/ratetable"
	"github.com/slimmugnai-oss/garrison-ledger-sub009/store"
)

// =============================================================================
// AUDIT REQUEST
// =============================================================================

// ProfileDTO is the member profile as submitted.
type ProfileDTO struct {
	Grade                       string   `json:"grade"`
	YearsOfService              int      `json:"years_of_service"`
	DutyLocation                string   `json:"duty_location"`
	HasDependents               bool     `json:"has_dependents"`
	State                       string   `json:"state"`
	SpecialPays                 []string `json:"special_pays,omitempty"`
	Period                      string   `json:"period"` // YYYY-MM
	YTDSocialSecurityWagesCents int64    `json:"ytd_social_security_wages_cents,omitempty"`
	CombatZone                  bool     `json:"combat_zone,omitempty"`
	SGLICoverageCents           int64    `json:"sgli_coverage_cents,omitempty"`
}

// AuditRequest is one statement to audit. BundleVersion pins a rate table;
// empty means the latest bundle for the period's year.
type AuditRequest struct {
	BundleVersion    string          `json:"bundle_version,omitempty"`
	Profile          ProfileDTO      `json:"profile"`
	Lines            []audit.RawLine `json:"lines"`
	ReportedNetCents int64           `json:"reported_net_cents"`
}

// BatchAuditRequest audits several statements in one call.
type BatchAuditRequest struct {
	Audits []AuditRequest `json:"audits"`
}

// toRequest converts the wire form. Only the period needs parsing here;
// everything else is validated by the engine.
func (r AuditRequest) toRequest() (audit.Request, error) {
	period, err := audit.ParsePayPeriod(r.Profile.Period)
	if err != nil {
		return audit.Request{}, &audit.InputError{Problems: []audit.FieldError{
			{Line: -1, Field: "profile.period", Reason: err.Error()},
		}}
	}

	pays := make([]ratetable.SpecialPay, 0, len(r.Profile.SpecialPays))
	for _, sp := range r.Profile.SpecialPays {
		pays = append(pays, ratetable.SpecialPay(sp))
	}

	return audit.Request{
		Profile: audit.Profile{
			Grade:                  ratetable.Grade(r.Profile.Grade),
			YearsOfService:         r.Profile.YearsOfService,
			DutyLocation:           r.Profile.DutyLocation,
			HasDependents:          r.Profile.HasDependents,
			State:                  r.Profile.State,
			SpecialPays:            pays,
			Period:                 period,
			YTDSocialSecurityWages: audit.Cents(r.Profile.YTDSocialSecurityWagesCents),
			CombatZone:             r.Profile.CombatZone,
			SGLICoverage:           audit.Cents(r.Profile.SGLICoverageCents),
		},
		Lines:       r.Lines,
		ReportedNet: audit.Cents(r.ReportedNetCents),
	}, nil
}

// =============================================================================
// AUDIT RESPONSE
// =============================================================================

// AuditResponse is a completed audit.
type AuditResponse struct {
	ID                 string                `json:"id,omitempty"`
	CreatedAt          string                `json:"created_at"`
	BundleVersion      string                `json:"bundle_version"`
	AliasTableVersion  string                `json:"alias_table_version"`
	FlagCatalogVersion string                `json:"flag_catalog_version"`
	Profile            ProfileDTO            `json:"profile"`
	Counts             map[string]int        `json:"counts"`
	Flags              []audit.Flag          `json:"flags"`
	Outcomes           []OutcomeDTO          `json:"outcomes"`
	Expected           []EntryDTO            `json:"expected"`
	TaxableBases       map[string]int64      `json:"taxable_bases_cents"`
	NotApplicable      []audit.NotApplicable `json:"not_applicable,omitempty"`
	Summary            SummaryDTO            `json:"summary"`
}

// EntryDTO is one expected-snapshot entry.
type EntryDTO struct {
	Code        string  `json:"code"`
	AmountCents int64   `json:"amount_cents"`
	Source      string  `json:"source,omitempty"`
	Citation    string  `json:"citation,omitempty"`
	Confidence  float64 `json:"confidence"`
	Note        string  `json:"note,omitempty"`
	Incomplete  bool    `json:"incomplete,omitempty"`
	BasisCents  *int64  `json:"basis_cents,omitempty"`
	Rate        string  `json:"rate,omitempty"`
}

// OutcomeDTO is the comparison of one code.
type OutcomeDTO struct {
	Key           string   `json:"key"`
	Code          string   `json:"code"`
	Name          string   `json:"name"`
	Category      string   `json:"category"`
	Check         string   `json:"check"`
	ExpectedCents *int64   `json:"expected_cents"`
	ActualCents   *int64   `json:"actual_cents"`
	DeltaCents    int64    `json:"delta_cents"`
	ActualRatePct string   `json:"actual_rate_pct,omitempty"`
	RangePct      []string `json:"range_pct,omitempty"`
	Severity      string   `json:"severity"`
	FlagCode      string   `json:"flag_code"`
	Lines         []int    `json:"lines,omitempty"`
	RawCodes      []string `json:"raw_codes,omitempty"`
	Confidence    float64  `json:"confidence,omitempty"`
}

// SummaryDTO is the math proof.
type SummaryDTO struct {
	SectionTotals       map[string]int64  `json:"section_totals_cents"`
	AllowancesCents     int64             `json:"allowances_cents"`
	TaxesCents          int64             `json:"taxes_cents"`
	DeductionsCents     int64             `json:"deductions_cents"`
	ComputedNetCents    int64             `json:"computed_net_cents"`
	ReportedNetCents    int64             `json:"reported_net_cents"`
	NetDeltaCents       int64             `json:"net_delta_cents"`
	ExpectedNetCents    int64             `json:"expected_net_cents"`
	ExpectedNetComplete bool              `json:"expected_net_complete"`
	Proof               []audit.ProofStep `json:"proof"`
}

// BatchItem is one entry of a batch response. Exactly one of Result and
// Error is set.
type BatchItem struct {
	Index  int            `json:"index"`
	Result *AuditResponse `json:"result,omitempty"`
	Error  *ErrorResponse `json:"error,omitempty"`
}

// BatchAuditResponse preserves request order.
type BatchAuditResponse struct {
	Results []BatchItem `json:"results"`
	Failed  int         `json:"failed"`
}

// =============================================================================
// LISTINGS
// =============================================================================

// RunSummaryDTO is one stored audit run.
type RunSummaryDTO struct {
	ID            string `json:"id"`
	CreatedAt     string `json:"created_at"`
	BundleVersion string `json:"bundle_version"`
	Grade         string `json:"grade"`
	Period        string `json:"period"`
	Green         int    `json:"green"`
	Yellow        int    `json:"yellow"`
	Red           int    `json:"red"`
	NetDeltaCents int64  `json:"net_delta_cents"`
}

// BundleSummaryDTO is one stored rate-table version.
type BundleSummaryDTO struct {
	Version       string `json:"version"`
	EffectiveYear int    `json:"effective_year"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// NormalizeRequest asks for canonical codes. Codes are looked up alone;
// lines fall back to their description.
type NormalizeRequest struct {
	Codes []string        `json:"codes,omitempty"`
	Lines []audit.RawLine `json:"lines,omitempty"`
}

// NormalizedDTO is one lookup result.
type NormalizedDTO struct {
	Raw   string `json:"raw"`
	Key   string `json:"key"`
	Code  string `json:"code"`
	Known bool   `json:"known"`
}

type NormalizeResponse struct {
	AliasTableVersion string          `json:"alias_table_version"`
	Results           []NormalizedDTO `json:"results"`
}

// CodeDTO is one canonical code.
type CodeDTO struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Section  string `json:"section"`
	Check    string `json:"check"`
}

type CodesResponse struct {
	AliasTableVersion string        `json:"alias_table_version"`
	Codes             []CodeDTO     `json:"codes"`
	Aliases           []audit.Alias `json:"aliases"`
}

type FlagCodesResponse struct {
	Version string               `json:"version"`
	Codes   []audit.FlagCodeInfo `json:"codes"`
}

// ScenarioDTO describes a demo audit.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

const timeFormat = time.RFC3339

func toProfileDTO(p audit.Profile) ProfileDTO {
	pays := make([]string, 0, len(p.SpecialPays))
	for _, sp := range p.SpecialPays {
		pays = append(pays, string(sp))
	}
	return ProfileDTO{
		Grade:                       string(p.Grade),
		YearsOfService:              p.YearsOfService,
		DutyLocation:                p.DutyLocation,
		HasDependents:               p.HasDependents,
		State:                       p.State,
		SpecialPays:                 pays,
		Period:                      p.Period.String(),
		YTDSocialSecurityWagesCents: int64(p.YTDSocialSecurityWages),
		CombatZone:                  p.CombatZone,
		SGLICoverageCents:           int64(p.SGLICoverage),
	}
}

// Evaluate audits in against bundle without storing anything. The
// response carries no ID; the time is the evaluation time.
func Evaluate(e *audit.Engine, in AuditRequest, bundle *ratetable.Bundle) (AuditResponse, error) {
	req, err := in.toRequest()
	if err != nil {
		return AuditResponse{}, err
	}
	res, err := e.Run(req, bundle)
	if err != nil {
		return AuditResponse{}, err
	}
	return toAuditResponse("", time.Now(), res, e.Normalizer().Version()), nil
}

func toAuditResponse(id string, at time.Time, res *audit.Result, aliasVersion string) AuditResponse {
	counts := make(map[string]int)
	for sev, n := range res.Counts() {
		counts[string(sev)] = n
	}

	resp := AuditResponse{
		ID:                 id,
		CreatedAt:          at.UTC().Format(timeFormat),
		BundleVersion:      res.BundleVersion,
		AliasTableVersion:  aliasVersion,
		FlagCatalogVersion: audit.FlagCatalogVersion,
		Profile:            toProfileDTO(res.Profile),
		Counts:             counts,
		Flags:              res.Flags,
		Outcomes:           make([]OutcomeDTO, 0, len(res.Outcomes)),
		Expected:           make([]EntryDTO, 0, len(res.Snapshot.Entries)),
		TaxableBases:       make(map[string]int64, len(res.Snapshot.TaxableBases)),
		NotApplicable:      res.Snapshot.NotApplicable,
		Summary:            toSummaryDTO(res.Summary),
	}
	if resp.Flags == nil {
		resp.Flags = []audit.Flag{}
	}
	for _, o := range res.Outcomes {
		resp.Outcomes = append(resp.Outcomes, toOutcomeDTO(o))
	}
	for _, code := range res.Snapshot.Codes() {
		resp.Expected = append(resp.Expected, toEntryDTO(res.Snapshot.Entries[code]))
	}
	for k, v := range res.Snapshot.TaxableBases {
		resp.TaxableBases[k] = int64(v)
	}
	return resp
}

func toEntryDTO(e audit.Entry) EntryDTO {
	dto := EntryDTO{
		Code:        string(e.Code),
		AmountCents: int64(e.Amount),
		Source:      e.Source,
		Citation:    e.Citation,
		Confidence:  e.Confidence,
		Note:        e.Note,
		Incomplete:  e.Incomplete,
	}
	if e.HasBasis {
		basis := int64(e.Basis)
		dto.BasisCents = &basis
		dto.Rate = e.Rate.String()
	}
	return dto
}

func toOutcomeDTO(o audit.Outcome) OutcomeDTO {
	dto := OutcomeDTO{
		Key:        o.Key,
		Code:       string(o.Code),
		Name:       o.Name,
		Category:   string(o.Category),
		Check:      string(o.Check),
		DeltaCents: int64(o.Delta),
		Severity:   string(o.Severity),
		FlagCode:   o.Flag.String(),
		Lines:      o.LineIndexes,
		RawCodes:   o.RawCodes,
		Confidence: o.Confidence,
	}
	if o.HasExpected {
		v := int64(o.Expected)
		dto.ExpectedCents = &v
	}
	if o.HasActual {
		v := int64(o.Actual)
		dto.ActualCents = &v
	}
	if o.Check == audit.CheckPercent && o.HasActual && o.Basis > 0 {
		dto.ActualRatePct = o.ActualRate.String()
		dto.RangePct = []string{o.MinRate.String(), o.MaxRate.String()}
	}
	return dto
}

func toSummaryDTO(s audit.AuditSummary) SummaryDTO {
	totals := make(map[string]int64, len(s.SectionTotals))
	for sec, c := range s.SectionTotals {
		totals[string(sec)] = int64(c)
	}
	return SummaryDTO{
		SectionTotals:       totals,
		AllowancesCents:     int64(s.Allowances),
		TaxesCents:          int64(s.Taxes),
		DeductionsCents:     int64(s.Deductions),
		ComputedNetCents:    int64(s.ComputedNet),
		ReportedNetCents:    int64(s.ReportedNet),
		NetDeltaCents:       int64(s.NetDelta),
		ExpectedNetCents:    int64(s.ExpectedNet),
		ExpectedNetComplete: s.ExpectedNetComplete,
		Proof:               s.Proof,
	}
}

func toRunSummaryDTO(r store.RunRecord) RunSummaryDTO {
	return RunSummaryDTO{
		ID:            r.ID,
		CreatedAt:     r.CreatedAt.UTC().Format(timeFormat),
		BundleVersion: r.BundleVersion,
		Grade:         r.Grade,
		Period:        r.Period,
		Green:         r.Green,
		Yellow:        r.Yellow,
		Red:           r.Red,
		NetDeltaCents: r.NetDelta,
	}
}
