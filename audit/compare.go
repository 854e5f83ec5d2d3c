/*
compare.go - Expected vs actual comparison

PURPOSE:
  Visits every key in expected ∪ actual exactly once and classifies it.

ALGORITHM:
  1. Group actual lines by canonical code, summing duplicates. Unknown codes
     are grouped by their folded raw text so distinct unknowns stay distinct.
  2. For each key, delta = actual - expected, with the missing side tagged.
  3. Pick the tolerance policy:
       incomplete expected   -> RATE_UNAVAILABLE (yellow)
       authoritative cents   -> exact check (green within tolerance, else red)
       rate with a basis     -> percent check (green / yellow / red bands)
       no expectation        -> by catalog kind (unexpected, unverified, debt)
  4. Exact beats percent when both could apply.

SEE ALSO:
  - flags.go: Turns each Outcome into a Flag
*/
package audit

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Side names the side of a comparison that had no value.
type Side string

const (
	SideNone     Side = ""
	SideExpected Side = "expected"
	SideActual   Side = "actual"
)

// Outcome is the comparison result for one key. Ephemeral: consumed by the
// flag generator.
type Outcome struct {
	Key      string
	Code     Code
	Name     string
	Category Category
	Check    CheckKind

	Expected    Cents
	Actual      Cents
	HasExpected bool
	HasActual   bool
	Missing     Side
	Delta       Cents

	// Percent checks.
	Basis        Cents
	ActualRate   decimal.Decimal // percentage points
	ExpectedRate decimal.Decimal
	MinRate      decimal.Decimal
	MaxRate      decimal.Decimal

	Severity Severity
	Flag     FlagCode

	LineIndexes []int
	RawCodes    []string
	Citation    string
	Confidence  float64
	Note        string
}

type actualGroup struct {
	key     string
	code    Code
	amount  Cents
	indexes []int
	raws    []string
}

// Compare matches normalized actual lines against the snapshot.
func Compare(s ExpectedSnapshot, lines []LineItem) []Outcome {
	groups := make(map[string]*actualGroup)
	for _, li := range lines {
		key := lineKey(li)
		g, ok := groups[key]
		if !ok {
			g = &actualGroup{key: key, code: li.Code}
			groups[key] = g
		}
		g.amount += li.Amount
		g.indexes = append(g.indexes, li.Index)
		g.raws = append(g.raws, li.RawCode)
	}

	keys := make([]string, 0, len(s.Entries)+len(groups))
	seen := make(map[string]bool)
	for code := range s.Entries {
		keys = append(keys, string(code))
		seen[string(code)] = true
	}
	for key := range groups {
		if !seen[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	outcomes := make([]Outcome, 0, len(keys))
	for _, key := range keys {
		entry, hasEntry := s.Entries[Code(key)]
		g := groups[key]

		o := Outcome{Key: key}
		if hasEntry {
			o.Code = entry.Code
			o.HasExpected = !entry.Incomplete
			o.Expected = entry.Amount
			o.Citation = entry.Citation
			o.Confidence = entry.Confidence
			o.Note = entry.Note
		}
		if g != nil {
			o.Code = g.code
			o.HasActual = true
			o.Actual = g.amount
			o.LineIndexes = g.indexes
			o.RawCodes = g.raws
		}
		info := o.Code.Info()
		o.Name = info.Name
		o.Category = info.Category
		o.Delta = o.Actual - o.Expected
		switch {
		case !o.HasExpected && o.HasActual:
			o.Missing = SideExpected
		case o.HasExpected && !o.HasActual:
			o.Missing = SideActual
		}

		var ep *Entry
		if hasEntry {
			ep = &entry
		}
		classify(&o, ep, info, s)
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func lineKey(li LineItem) string {
	if li.Code != CodeUnknown {
		return string(li.Code)
	}
	label := Key(li.RawCode)
	if label == "" {
		label = Key(li.Description)
	}
	return string(CodeUnknown) + ":" + label
}

func classify(o *Outcome, e *Entry, info CodeInfo, s ExpectedSnapshot) {
	switch {
	case o.Code == CodeUnknown:
		o.Check = CheckNone
		o.Category = CategoryOther
		o.set(SeverityYellow, FlagUnrecognizedCode)
	case e != nil && e.Incomplete:
		o.Check = CheckNone
		o.Category = CategoryDataQuality
		o.Delta = 0
		o.set(SeverityYellow, FlagRateUnavailable)
	case e != nil && e.Authoritative:
		o.Check = CheckExact
		exactCheck(o, s.Tolerances.Exact())
	case e != nil && e.HasBasis:
		o.Check = CheckPercent
		percentCheck(o, e, info, s)
	default:
		o.Check = CheckNone
		noExpectation(o, info)
	}
}

// =============================================================================
// EXACT CHECK
// =============================================================================

// exactCheck is inclusive on the green side: a delta of exactly the tolerance
// is green.
func exactCheck(o *Outcome, tolerance Cents) {
	green := o.Delta.Abs() <= tolerance
	deduction := o.Category == CategoryDeduction
	switch {
	case green && deduction:
		o.set(SeverityGreen, FlagDeductionVerified)
	case green:
		o.set(SeverityGreen, FlagAllowanceVerified)
	case deduction:
		o.set(SeverityRed, FlagDeductionMismatch)
	case !o.HasActual:
		o.set(SeverityRed, FlagAllowanceMissing)
	default:
		o.set(SeverityRed, FlagAllowanceMismatch)
	}
}

// =============================================================================
// PERCENT CHECK
// =============================================================================

var hundred = decimal.NewFromInt(100)

func percentCheck(o *Outcome, e *Entry, info CodeInfo, s ExpectedSnapshot) {
	tol := s.Tolerances
	band := tol.Band(info.Tax)

	o.Basis = e.Basis
	o.ExpectedRate = e.Rate.Mul(hundred)
	o.MinRate = e.MinRate.Mul(hundred)
	o.MaxRate = e.MaxRate.Mul(hundred)

	if !o.HasActual {
		if o.Expected <= tol.Exact() {
			o.set(SeverityGreen, FlagTaxInRange)
			return
		}
		o.set(SeverityYellow, FlagTaxMissing)
		return
	}

	if e.Basis == 0 {
		switch {
		case o.Actual == 0:
			o.set(SeverityGreen, FlagTaxInRange)
		case o.Code == CodeFICA && s.WageBaseExhausted:
			o.Note = "year-to-date wages already exceed the Social Security wage base"
			o.set(SeverityYellow, FlagTaxOutOfRange)
		default:
			o.set(SeverityRed, FlagTaxImplausible)
		}
		return
	}

	o.ActualRate = decimal.NewFromInt(int64(o.Actual)).Mul(hundred).DivRound(decimal.NewFromInt(int64(e.Basis)), 6)

	// One cent either side of the bounds is rounding, not a rate difference.
	loCents := e.Basis.ApplyRate(e.MinRate) - 1
	hiCents := e.Basis.ApplyRate(e.MaxRate) + 1
	dist := rateDistance(o.ActualRate, o.MinRate, o.MaxRate)
	if dist.LessThanOrEqual(band.GreenPP) || (o.Actual >= loCents && o.Actual <= hiCents) {
		o.set(SeverityGreen, FlagTaxInRange)
		return
	}

	if o.Code == CodeFICA && s.FICACapped {
		uncapped := s.TaxableBases[BaseFICAUncapped].ApplyRate(e.Rate)
		if (o.Actual - uncapped).Abs() <= tol.Exact() {
			o.Note = fmt.Sprintf("withholding matches the full base of %s; only %s remained under the wage base",
				s.TaxableBases[BaseFICAUncapped].Dollars().StringFixed(2), e.Basis.Dollars().StringFixed(2))
			o.set(SeverityYellow, FlagTaxOutOfRange)
			return
		}
	}

	if band.YellowPP.IsZero() || dist.LessThanOrEqual(band.YellowPP) {
		o.set(SeverityYellow, FlagTaxOutOfRange)
		return
	}
	o.set(SeverityRed, FlagTaxImplausible)
}

// rateDistance is how far a rate lies outside [lo, hi]; zero inside.
func rateDistance(rate, lo, hi decimal.Decimal) decimal.Decimal {
	switch {
	case rate.LessThan(lo):
		return lo.Sub(rate)
	case rate.GreaterThan(hi):
		return rate.Sub(hi)
	default:
		return decimal.Zero
	}
}

// =============================================================================
// NO EXPECTATION
// =============================================================================

func noExpectation(o *Outcome, info CodeInfo) {
	switch {
	case info.Check == CheckNone && o.Code == CodeDebt:
		o.set(SeverityYellow, FlagDebtPresent)
	case info.Check == CheckNone:
		o.set(SeverityGreen, FlagUnverifiedLine)
	case info.Optional:
		o.Note = "not verified: the inputs needed to compute it were not provided"
		o.set(SeverityGreen, FlagUnverifiedLine)
	case info.Category == CategoryAllowance:
		o.set(SeverityRed, FlagAllowanceUnexpected)
	case info.Category == CategoryDeduction:
		o.set(SeverityRed, FlagDeductionMismatch)
	default:
		o.Category = CategoryDataQuality
		o.set(SeverityYellow, FlagRateUnavailable)
	}
}

func (o *Outcome) set(sev Severity, flag FlagCode) {
	o.Severity = sev
	o.Flag = flag
}
