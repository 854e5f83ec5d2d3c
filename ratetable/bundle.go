/*
Package ratetable holds the published reference tables used to audit a pay
statement.

PURPOSE:
  A Bundle is a versioned, point-in-time snapshot of every official table the
  audit engine reads: base pay, housing, subsistence, special pays, fixed
  deductions, tax constants and the tolerance bands that go with them. The
  engine never mutates a Bundle, so one loaded Bundle can serve any number of
  concurrent audits.

KEY CONCEPTS:
  - Cents: signed integer minor units; all money in tables is stored this way
  - Brackets: base pay columns are "over N years of service"
  - MHA: housing market area; duty locations resolve to an MHA before lookup
  - Fallback: tables report (value, false) instead of a zero when data is missing

LOOKUPS NEVER GUESS:
  Every lookup returns an ok flag. A missing housing rate is not the same as a
  zero housing rate, so callers must check ok before using the value.

SEE ALSO:
  - grade.go: Grade parsing and categories
  - tolerance.go: Exact and percentage tolerance bands
  - factory/bundle.go: JSON/YAML to Bundle conversion
  - audit/resolve.go: The resolver that reads these tables
*/
package ratetable

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is an amount of money in minor currency units.
type Cents int64

// Dollars renders the amount as a decimal dollar value.
func (c Cents) Dollars() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// Abs returns the absolute value.
func (c Cents) Abs() Cents {
	if c < 0 {
		return -c
	}
	return c
}

// ApplyRate multiplies an amount by a rate and rounds half away from zero to
// whole cents.
func (c Cents) ApplyRate(rate decimal.Decimal) Cents {
	return Cents(decimal.NewFromInt(int64(c)).Mul(rate).Round(0).IntPart())
}

// =============================================================================
// BUNDLE
// =============================================================================

// Bundle is an immutable set of rate tables for one effective year.
type Bundle struct {
	Version       string
	EffectiveYear int

	BasePay     BasePayTable
	Housing     HousingTable
	Subsistence SubsistenceTable
	SpecialPays map[SpecialPay]SpecialPayDef
	Deductions  DeductionTable
	Taxes       TaxTable
	Tolerances  Tolerances
}

// =============================================================================
// BASE PAY
// =============================================================================

// PayBracket is one "over N years" column of the base pay table.
type PayBracket struct {
	OverYears int
	Monthly   Cents
}

type BasePayTable struct {
	Source string
	Grades map[Grade][]PayBracket // brackets sorted ascending by OverYears
}

// BasePayLookup is the result of a base pay lookup.
type BasePayLookup struct {
	Monthly   Cents
	OverYears int  // bracket actually used
	Clamped   bool // service years fell below the grade's first bracket
}

// Lookup finds the highest bracket not exceeding years. When years is below
// the first bracket defined for the grade (E-9 starts at 10 years, for
// example) the first bracket is used and Clamped is set.
func (t BasePayTable) Lookup(g Grade, years int) (BasePayLookup, bool) {
	brackets := t.Grades[g]
	if len(brackets) == 0 {
		return BasePayLookup{}, false
	}

	idx := sort.Search(len(brackets), func(i int) bool {
		return brackets[i].OverYears > years
	}) - 1

	if idx < 0 {
		return BasePayLookup{Monthly: brackets[0].Monthly, OverYears: brackets[0].OverYears, Clamped: true}, true
	}
	return BasePayLookup{Monthly: brackets[idx].Monthly, OverYears: brackets[idx].OverYears}, true
}

// =============================================================================
// HOUSING
// =============================================================================

// HousingRate is the monthly allowance for one grade in one MHA.
type HousingRate struct {
	WithDependents    Cents
	WithoutDependents Cents
}

type HousingTable struct {
	Source   string
	Stations map[string]string                 // duty location code -> MHA
	Rates    map[string]map[Grade]HousingRate // MHA -> grade -> rate
}

// MHA resolves a duty location code. Codes that are already MHA identifiers
// resolve to themselves.
func (t HousingTable) MHA(location string) (string, bool) {
	key := strings.ToUpper(strings.TrimSpace(location))
	if key == "" {
		return "", false
	}
	if mha, ok := t.Stations[key]; ok {
		return mha, true
	}
	if _, ok := t.Rates[key]; ok {
		return key, true
	}
	return "", false
}

// Lookup returns the housing rate for an MHA, grade and dependency status.
func (t HousingTable) Lookup(mha string, g Grade, withDependents bool) (Cents, bool) {
	grades, ok := t.Rates[mha]
	if !ok {
		return 0, false
	}
	rate, ok := grades[g]
	if !ok {
		return 0, false
	}
	if withDependents {
		return rate.WithDependents, true
	}
	return rate.WithoutDependents, true
}

// =============================================================================
// SUBSISTENCE
// =============================================================================

type SubsistenceRate struct {
	Enlisted Cents
	Officer  Cents
}

type SubsistenceTable struct {
	Source string
	Years  map[int]SubsistenceRate
}

func (t SubsistenceTable) Lookup(year int, g Grade) (Cents, bool) {
	rate, ok := t.Years[year]
	if !ok {
		return 0, false
	}
	if g.IsOfficer() {
		return rate.Officer, true
	}
	return rate.Enlisted, true
}

// =============================================================================
// SPECIAL PAYS
// =============================================================================

// SpecialPay is a profile flag such as "hostile_fire" or "foreign_language".
type SpecialPay string

type SpecialPayDef struct {
	Flag     SpecialPay
	Code     string // canonical line-item code
	Name     string
	Monthly  Cents
	Eligible []GradeCategory
	Taxable  bool
	Citation string
}

// EligibleFor reports whether a grade category may draw this pay. An empty
// eligibility list means every category.
func (d SpecialPayDef) EligibleFor(c GradeCategory) bool {
	if len(d.Eligible) == 0 {
		return true
	}
	for _, e := range d.Eligible {
		if e == c {
			return true
		}
	}
	return false
}

// SpecialPay looks up a catalog entry.
func (b *Bundle) SpecialPay(flag SpecialPay) (SpecialPayDef, bool) {
	def, ok := b.SpecialPays[flag]
	return def, ok
}

// =============================================================================
// DEDUCTIONS
// =============================================================================

type DeductionTable struct {
	Source          string
	AFRHMonthly     Cents           // enlisted and warrant only
	SGLIPerThousand decimal.Decimal // monthly premium per $1,000 of coverage
	TSGLIMonthly    Cents
}

// SGLIPremium is the monthly premium for a coverage amount, TSGLI included.
func (t DeductionTable) SGLIPremium(coverage Cents) Cents {
	thousands := decimal.NewFromInt(int64(coverage)).Div(decimal.NewFromInt(100_000))
	premium := thousands.Mul(t.SGLIPerThousand).Mul(decimal.NewFromInt(100)).Round(0)
	return Cents(premium.IntPart()) + t.TSGLIMonthly
}

// =============================================================================
// TAXES
// =============================================================================

// StateTax describes withholding for one state or territory. Either Rate is
// set, or MinRate/MaxRate describe a bracketed range.
type StateTax struct {
	Rate           decimal.Decimal
	MinRate        decimal.Decimal
	MaxRate        decimal.Decimal
	IsRange        bool
	MilitaryExempt bool
}

// Bounds returns the lowest and highest plausible effective rate.
func (s StateTax) Bounds() (decimal.Decimal, decimal.Decimal) {
	switch {
	case s.MilitaryExempt:
		return decimal.Zero, decimal.Zero
	case s.IsRange:
		return s.MinRate, s.MaxRate
	default:
		return s.Rate, s.Rate
	}
}

// Expected is the single rate used to compute expected cents: the flat rate,
// or the midpoint of a range.
func (s StateTax) Expected() decimal.Decimal {
	lo, hi := s.Bounds()
	return lo.Add(hi).Div(decimal.NewFromInt(2))
}

type FICA struct {
	Rate     decimal.Decimal
	WageBase Cents // annual cap
}

type TaxTable struct {
	Source              string
	FederalSupplemental map[int]decimal.Decimal
	States              map[string]StateTax
	StateFallbackRate   decimal.Decimal
	SocialSecurity      FICA
	MedicareRate        decimal.Decimal
}

// Federal returns the flat supplemental withholding rate for a year.
func (t TaxTable) Federal(year int) (decimal.Decimal, bool) {
	r, ok := t.FederalSupplemental[year]
	return r, ok
}

// State looks up a state or territory by postal code.
func (t TaxTable) State(code string) (StateTax, bool) {
	s, ok := t.States[strings.ToUpper(strings.TrimSpace(code))]
	return s, ok
}
