/*
resolve.go - Rate table resolver

PURPOSE:
  Reads every rate an audit needs from a Bundle. Each sub-lookup is
  independent and reports what it found, where it found it, and how sure it
  is. Nothing here coerces a missing value into zero: an unresolvable rate is
  returned with Available=false and a note saying why.

CONFIDENCE:
  1.0   direct table hit
  0.85  state withholding taken from the midpoint of a bracketed range
  0.7   service years below the grade's first bracket, clamped
  0.6   destination state unknown, bundle fallback average used

SEE ALSO:
  - ratetable/bundle.go: The tables themselves
  - snapshot.go: Turns ResolvedRates into expected amounts
*/
package audit

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/slimmugnai-oss/garrison-ledger-sub009/ratetable"
)

const (
	confidenceExact    = 1.0
	confidenceRange    = 0.85
	confidenceClamped  = 0.7
	confidenceFallback = 0.6
)

// ResolvedRate is one resolved cents amount (pay, allowance or deduction).
type ResolvedRate struct {
	Code       Code
	Amount     Cents
	Available  bool
	Taxable    bool
	Source     string
	Citation   string
	Confidence float64
	Note       string
}

// ResolvedTax is one resolved withholding rate. Min and Max bound the
// plausible effective rate; Rate is the single rate used to compute cents.
type ResolvedTax struct {
	Category   ratetable.TaxCategory
	Rate       decimal.Decimal
	Min        decimal.Decimal
	Max        decimal.Decimal
	Available  bool
	Fallback   bool
	Source     string
	Citation   string
	Confidence float64
	Note       string
}

// NotApplicable records a special-pay flag that produced no entry.
type NotApplicable struct {
	Flag   ratetable.SpecialPay `json:"flag"`
	Reason string               `json:"reason"`
}

// ResolvedRates is everything the snapshot builder needs.
type ResolvedRates struct {
	Profile       Profile
	BundleVersion string

	Pay           []ResolvedRate // base pay, allowances, special pays
	Deductions    []ResolvedRate
	NotApplicable []NotApplicable

	Taxes    map[ratetable.TaxCategory]ResolvedTax
	WageBase Cents

	// CombatZoneCap is the monthly exclusion limit for officers; zero with
	// CombatZoneCapOK=false when the base pay table cannot supply it.
	CombatZoneCap   Cents
	CombatZoneCapOK bool

	Tolerances ratetable.Tolerances
}

// Resolve looks up every rate for a validated profile. The effective period
// comes from the profile; the wall clock is never consulted.
func Resolve(p Profile, b *ratetable.Bundle) ResolvedRates {
	r := ResolvedRates{
		Profile:       p,
		BundleVersion: b.Version,
		Taxes:         make(map[ratetable.TaxCategory]ResolvedTax, 4),
		Tolerances:    b.Tolerances,
	}

	r.Pay = append(r.Pay, resolveBasePay(p, b), resolveHousing(p, b), resolveSubsistence(p, b))
	pays, skipped := resolveSpecialPays(p, b)
	r.Pay = append(r.Pay, pays...)
	r.NotApplicable = skipped
	r.Deductions = resolveDeductions(p, b)

	r.Taxes[ratetable.TaxFederal] = resolveFederal(p, b)
	r.Taxes[ratetable.TaxState] = resolveState(p, b)
	fica, medicare := resolveFICA(b)
	r.Taxes[ratetable.TaxFICA] = fica
	r.Taxes[ratetable.TaxMedicare] = medicare
	r.WageBase = b.Taxes.SocialSecurity.WageBase

	if p.CombatZone && p.Grade.Category() == ratetable.CategoryOfficer {
		r.CombatZoneCap, r.CombatZoneCapOK = combatZoneCap(b)
	}
	return r
}

// =============================================================================
// PAY AND ALLOWANCES
// =============================================================================

func resolveBasePay(p Profile, b *ratetable.Bundle) ResolvedRate {
	out := ResolvedRate{Code: CodeBasePay, Taxable: true, Source: "base_pay", Citation: b.BasePay.Source}
	hit, ok := b.BasePay.Lookup(p.Grade, p.YearsOfService)
	if !ok {
		out.Note = fmt.Sprintf("no base pay table for grade %s", p.Grade)
		return out
	}
	out.Amount = hit.Monthly
	out.Available = true
	out.Confidence = confidenceExact
	if hit.Clamped {
		out.Confidence = confidenceClamped
		out.Note = fmt.Sprintf("%d years of service is below the first %s bracket; used over %d", p.YearsOfService, p.Grade, hit.OverYears)
	}
	return out
}

func resolveHousing(p Profile, b *ratetable.Bundle) ResolvedRate {
	out := ResolvedRate{Code: CodeBAH, Source: "housing", Citation: b.Housing.Source}
	mha, ok := b.Housing.MHA(p.DutyLocation)
	if !ok {
		out.Note = fmt.Sprintf("duty location %q does not resolve to a housing area", p.DutyLocation)
		return out
	}
	amount, ok := b.Housing.Lookup(mha, p.Grade, p.HasDependents)
	if !ok {
		out.Note = fmt.Sprintf("no housing rate for %s in %s", p.Grade, mha)
		return out
	}
	out.Amount = amount
	out.Available = true
	out.Confidence = confidenceExact
	out.Note = "MHA " + mha
	return out
}

func resolveSubsistence(p Profile, b *ratetable.Bundle) ResolvedRate {
	out := ResolvedRate{Code: CodeBAS, Source: "subsistence", Citation: b.Subsistence.Source}
	amount, ok := b.Subsistence.Lookup(p.Period.Year, p.Grade)
	if !ok {
		out.Note = fmt.Sprintf("no subsistence rate for %d", p.Period.Year)
		return out
	}
	out.Amount = amount
	out.Available = true
	out.Confidence = confidenceExact
	return out
}

// resolveSpecialPays resolves each flag on its own. A flag the catalog does
// not carry, or that the grade cannot draw, is not applicable rather than an
// error.
func resolveSpecialPays(p Profile, b *ratetable.Bundle) ([]ResolvedRate, []NotApplicable) {
	flags := append([]ratetable.SpecialPay(nil), p.SpecialPays...)
	sort.Slice(flags, func(i, j int) bool { return flags[i] < flags[j] })

	var pays []ResolvedRate
	var skipped []NotApplicable
	for _, flag := range flags {
		def, ok := b.SpecialPay(flag)
		if !ok {
			skipped = append(skipped, NotApplicable{Flag: flag, Reason: "not in special pay catalog"})
			continue
		}
		if !def.EligibleFor(p.Grade.Category()) {
			skipped = append(skipped, NotApplicable{Flag: flag, Reason: fmt.Sprintf("%s not payable to %s grades", def.Name, p.Grade.Category())})
			continue
		}
		pays = append(pays, ResolvedRate{
			Code:       Code(def.Code),
			Amount:     def.Monthly,
			Available:  true,
			Taxable:    def.Taxable,
			Source:     "special_pays",
			Citation:   def.Citation,
			Confidence: confidenceExact,
		})
	}
	return pays, skipped
}

// =============================================================================
// DEDUCTIONS
// =============================================================================

func resolveDeductions(p Profile, b *ratetable.Bundle) []ResolvedRate {
	var out []ResolvedRate
	if p.Grade.Category() != ratetable.CategoryOfficer {
		afrh := ResolvedRate{Code: CodeAFRH, Source: "deductions", Citation: b.Deductions.Source}
		if b.Deductions.AFRHMonthly > 0 {
			afrh.Amount = b.Deductions.AFRHMonthly
			afrh.Available = true
			afrh.Confidence = confidenceExact
		} else {
			afrh.Note = "bundle has no AFRH rate"
		}
		out = append(out, afrh)
	}
	if p.SGLICoverage > 0 {
		sgli := ResolvedRate{Code: CodeSGLI, Source: "deductions", Citation: b.Deductions.Source}
		if b.Deductions.SGLIPerThousand.IsPositive() {
			sgli.Amount = b.Deductions.SGLIPremium(p.SGLICoverage)
			sgli.Available = true
			sgli.Confidence = confidenceExact
		} else {
			sgli.Note = "bundle has no SGLI premium rate"
		}
		out = append(out, sgli)
	}
	return out
}

// =============================================================================
// TAXES
// =============================================================================

func resolveFederal(p Profile, b *ratetable.Bundle) ResolvedTax {
	out := ResolvedTax{Category: ratetable.TaxFederal, Source: "taxes.federal_supplemental", Citation: b.Taxes.Source}
	rate, ok := b.Taxes.Federal(p.Period.Year)
	if !ok {
		out.Note = fmt.Sprintf("no federal supplemental rate for %d", p.Period.Year)
		return out
	}
	// Actual withholding depends on the member's W-4, so anything from zero up
	// to the flat supplemental rate is plausible.
	out.Rate, out.Min, out.Max = rate, decimal.Zero, rate
	out.Available = true
	out.Confidence = confidenceExact
	return out
}

func resolveState(p Profile, b *ratetable.Bundle) ResolvedTax {
	out := ResolvedTax{Category: ratetable.TaxState, Source: "taxes.states", Citation: b.Taxes.Source}
	st, ok := b.Taxes.State(p.State)
	if !ok {
		fallback := b.Taxes.StateFallbackRate
		if !fallback.IsPositive() {
			out.Note = fmt.Sprintf("state %q unknown and bundle has no fallback rate", p.State)
			return out
		}
		out.Rate, out.Min, out.Max = fallback, decimal.Zero, fallback.Mul(decimal.NewFromInt(2))
		out.Available = true
		out.Fallback = true
		out.Source = "taxes.state_fallback_rate"
		out.Confidence = confidenceFallback
		out.Note = fmt.Sprintf("state %q not in table; used fallback average %s%%", p.State, fallback.Shift(2).String())
		return out
	}

	lo, hi := st.Bounds()
	out.Rate, out.Min, out.Max = st.Expected(), lo, hi
	out.Available = true
	out.Confidence = confidenceExact
	switch {
	case st.MilitaryExempt:
		out.Note = fmt.Sprintf("%s exempts military pay", p.State)
	case st.IsRange:
		out.Confidence = confidenceRange
		out.Note = fmt.Sprintf("%s brackets %s%%-%s%%; expected uses the midpoint", p.State, lo.Shift(2).String(), hi.Shift(2).String())
	}
	return out
}

func resolveFICA(b *ratetable.Bundle) (ResolvedTax, ResolvedTax) {
	ss := ResolvedTax{Category: ratetable.TaxFICA, Source: "taxes.fica", Citation: b.Taxes.Source}
	if rate := b.Taxes.SocialSecurity.Rate; rate.IsPositive() && b.Taxes.SocialSecurity.WageBase > 0 {
		ss.Rate, ss.Min, ss.Max = rate, rate, rate
		ss.Available = true
		ss.Confidence = confidenceExact
	} else {
		ss.Note = "bundle has no FICA rate or wage base"
	}

	med := ResolvedTax{Category: ratetable.TaxMedicare, Source: "taxes.medicare", Citation: b.Taxes.Source}
	if rate := b.Taxes.MedicareRate; rate.IsPositive() {
		med.Rate, med.Min, med.Max = rate, rate, rate
		med.Available = true
		med.Confidence = confidenceExact
	} else {
		med.Note = "bundle has no Medicare rate"
	}
	return ss, med
}

// combatZoneCap is the officer exclusion limit: the highest enlisted base pay
// plus hostile fire pay.
func combatZoneCap(b *ratetable.Bundle) (Cents, bool) {
	brackets := b.BasePay.Grades["E-9"]
	if len(brackets) == 0 {
		return 0, false
	}
	limit := brackets[len(brackets)-1].Monthly
	if hfp, ok := b.SpecialPay("hostile_fire"); ok {
		limit += hfp.Monthly
	}
	return limit, true
}
