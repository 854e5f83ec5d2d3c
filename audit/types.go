/*
Package audit verifies a monthly military pay statement against published
rate tables.

PURPOSE:
  Given a member's profile and a rate-table bundle, the engine computes what
  every line of the statement should be, matches that against the lines the
  member actually received, and explains each difference as a flag. It then
  proves the statement's arithmetic: allowances minus taxes minus deductions
  must equal the net pay that was reported.

PIPELINE (engine.go):
  1. Validate + Normalize   raw lines -> canonical LineItems (or InputError)
  2. Resolve                profile + bundle -> ResolvedRates
  3. BuildSnapshot          ResolvedRates -> ExpectedSnapshot + taxable bases
  4. Compare                snapshot x actual lines -> []Outcome
  5. GenerateFlags          []Outcome -> ordered []Flag
  6. Reconcile              actual lines + reported net -> AuditSummary + net flag

DESIGN PRINCIPLES:
  1. Purity: every stage is a function of its arguments. No I/O, no clock.
  2. No silent zeros: a rate that cannot be resolved is marked incomplete,
     never replaced by 0.
  3. Nothing dropped: every actual line lands in exactly one Outcome.
  4. Table-driven output: flag text comes from one table keyed by FlagCode.

SEE ALSO:
  - ratetable/: The reference tables read by the resolver
  - factory/: Loads bundles from JSON or YAML
  - api/: HTTP service that persists and serves audit results
*/
package audit

import (
	"strings"

	"github.com/slimmugnai-oss/garrison-ledger-sub009/ratetable"
)

// Cents is a signed amount in minor currency units.
type Cents = ratetable.Cents

// =============================================================================
// SECTIONS
// =============================================================================

// Section is the statement section a line item was printed in.
type Section string

const (
	SectionAllowance  Section = "ALLOWANCE"
	SectionTax        Section = "TAX"
	SectionDeduction  Section = "DEDUCTION"
	SectionAllotment  Section = "ALLOTMENT"
	SectionDebt       Section = "DEBT"
	SectionAdjustment Section = "ADJUSTMENT"
)

// Sections lists every section in statement order.
func Sections() []Section {
	return []Section{SectionAllowance, SectionTax, SectionDeduction, SectionAllotment, SectionDebt, SectionAdjustment}
}

// ParseSection accepts any casing of a section tag.
func ParseSection(s string) (Section, bool) {
	sec := Section(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Sections() {
		if sec == known {
			return sec, true
		}
	}
	return "", false
}

// =============================================================================
// SEVERITY
// =============================================================================

type Severity string

const (
	SeverityGreen  Severity = "green"
	SeverityYellow Severity = "yellow"
	SeverityRed    Severity = "red"
)

// rank orders severities for display: red first.
func (s Severity) rank() int {
	switch s {
	case SeverityRed:
		return 0
	case SeverityYellow:
		return 1
	default:
		return 2
	}
}

// =============================================================================
// LINE ITEMS
// =============================================================================

// RawLine is a line exactly as the member entered it. Untrusted.
type RawLine struct {
	RawCode     string  `json:"raw_code"`
	Description string  `json:"description"`
	Amount      Cents   `json:"amount_cents"`
	Section     Section `json:"section"`
}

// LineItem is a validated line with its canonical code.
type LineItem struct {
	Code        Code
	RawCode     string
	Description string
	Amount      Cents
	Section     Section
	Index       int // position in the submitted list
}

// =============================================================================
// PROFILE
// =============================================================================

// Profile is the member context an audit is computed for. Immutable once built.
type Profile struct {
	Grade          ratetable.Grade
	YearsOfService int
	DutyLocation   string // station code or MHA
	HasDependents  bool
	State          string // destination state/territory for withholding
	SpecialPays    []ratetable.SpecialPay
	Period         PayPeriod

	// Year-to-date Social Security wages before this period. Used to find the
	// remaining room under the FICA wage base.
	YTDSocialSecurityWages Cents

	// Combat zone tax exclusion applies to this period.
	CombatZone bool

	// SGLI coverage elected. Zero means not declared; SGLI is then not verified.
	SGLICoverage Cents
}

// =============================================================================
// REQUEST / RESULT
// =============================================================================

// Request is everything the engine consumes from the host service, apart from
// the bundle.
type Request struct {
	Profile     Profile
	Lines       []RawLine
	ReportedNet Cents
}

// Result is the engine's complete output.
type Result struct {
	BundleVersion string
	Profile       Profile
	Snapshot      ExpectedSnapshot
	Lines         []LineItem
	Outcomes      []Outcome
	Flags         []Flag
	Summary       AuditSummary
}

// Counts tallies flags by severity.
func (r *Result) Counts() map[Severity]int {
	counts := map[Severity]int{SeverityGreen: 0, SeverityYellow: 0, SeverityRed: 0}
	for _, f := range r.Flags {
		counts[f.Severity]++
	}
	return counts
}
