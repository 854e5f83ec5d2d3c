package audit

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/slimmugnai-oss/garrison-ledger-sub009/ratetable"
)

// BaseFICAUncapped is the taxable-base key for FICA wages before the wage-base
// cap is applied.
const BaseFICAUncapped = "FICA_UNCAPPED"

// =============================================================================
// EXPECTED SNAPSHOT
// =============================================================================

// Entry is one expected line. Incomplete entries carry no amount and must not
// be compared as if they were zero.
type Entry struct {
	Code       Code
	Amount     Cents
	Source     string
	Citation   string
	Confidence float64
	Note       string
	Incomplete bool

	// Authoritative entries are table values checked exactly in cents.
	Authoritative bool

	// Percent-checked entries only.
	HasBasis bool
	Basis    Cents
	Rate     decimal.Decimal
	MinRate  decimal.Decimal
	MaxRate  decimal.Decimal
}

// ExpectedSnapshot is the engine's view of what the statement should say.
type ExpectedSnapshot struct {
	BundleVersion string
	Entries       map[Code]Entry

	// TaxableBases holds FEDERAL, STATE, FICA, MEDICARE and FICA_UNCAPPED.
	// A key is absent when its base could not be computed.
	TaxableBases map[string]Cents

	Incomplete bool
	Missing    []Code

	// FICA wage-base state for the period.
	FICACapped        bool
	WageBaseExhausted bool

	NotApplicable []NotApplicable
	Tolerances    ratetable.Tolerances
}

// Codes returns entry codes in sorted order.
func (s ExpectedSnapshot) Codes() []Code {
	out := make([]Code, 0, len(s.Entries))
	for c := range s.Entries {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// BuildSnapshot assembles one entry per resolved code and computes the
// taxable bases that withholding is checked against.
func BuildSnapshot(r ResolvedRates) ExpectedSnapshot {
	s := ExpectedSnapshot{
		BundleVersion: r.BundleVersion,
		Entries:       make(map[Code]Entry),
		TaxableBases:  make(map[string]Cents),
		NotApplicable: r.NotApplicable,
		Tolerances:    r.Tolerances,
	}

	for _, rate := range append(append([]ResolvedRate(nil), r.Pay...), r.Deductions...) {
		s.addRate(rate)
	}

	bases, baseNote, baseConfidence, ok := taxableBases(r)
	if ok && r.Taxes[ratetable.TaxFICA].Available {
		s.FICACapped = bases[string(ratetable.TaxFICA)] < bases[BaseFICAUncapped]
		s.WageBaseExhausted = bases[string(ratetable.TaxFICA)] == 0 && bases[BaseFICAUncapped] > 0
	}
	if ok {
		for k, v := range bases {
			s.TaxableBases[k] = v
		}
	}

	for _, cat := range ratetable.TaxCategories() {
		tax := r.Taxes[cat]
		e := Entry{
			Code:       TaxCode(cat),
			Source:     tax.Source,
			Citation:   tax.Citation,
			Confidence: minConfidence(tax.Confidence, baseConfidence),
			Note:       tax.Note,
		}
		basis, haveBasis := bases[string(cat)]
		switch {
		case !tax.Available:
			e.Incomplete = true
		case !ok || !haveBasis:
			e.Incomplete = true
			e.Note = baseNote
		default:
			e.HasBasis = true
			e.Basis = basis
			e.Rate, e.MinRate, e.MaxRate = tax.Rate, tax.Min, tax.Max
			e.Amount = basis.ApplyRate(tax.Rate)
		}
		s.put(e)
	}
	return s
}

func (s *ExpectedSnapshot) addRate(rate ResolvedRate) {
	e := Entry{
		Code:          rate.Code,
		Amount:        rate.Amount,
		Source:        rate.Source,
		Citation:      rate.Citation,
		Confidence:    rate.Confidence,
		Note:          rate.Note,
		Incomplete:    !rate.Available,
		Authoritative: true,
	}
	if e.Incomplete {
		e.Amount = 0
	}
	if prev, ok := s.Entries[e.Code]; ok {
		// Two catalog flags paying under one code.
		e.Amount += prev.Amount
		e.Incomplete = e.Incomplete || prev.Incomplete
		e.Confidence = minConfidence(e.Confidence, prev.Confidence)
	}
	s.put(e)
}

func (s *ExpectedSnapshot) put(e Entry) {
	if e.Incomplete {
		s.Incomplete = true
		s.Missing = appendUnique(s.Missing, e.Code)
	}
	s.Entries[e.Code] = e
}

// taxableBases computes the withholding bases. Housing and subsistence are
// excluded by rule: they never enter the sum, whatever their amount.
func taxableBases(r ResolvedRates) (map[string]Cents, string, float64, bool) {
	var gross Cents
	confidence := confidenceExact
	for _, rate := range r.Pay {
		if !rate.Taxable {
			continue
		}
		if !rate.Available {
			return nil, fmt.Sprintf("taxable base unavailable: %s unresolved", rate.Code), 0, false
		}
		gross += rate.Amount
		confidence = minConfidence(confidence, rate.Confidence)
	}

	withholdingBase := gross
	note := ""
	p := r.Profile
	if p.CombatZone {
		switch {
		case p.Grade.Category() != ratetable.CategoryOfficer:
			withholdingBase = 0
		case r.CombatZoneCapOK:
			withholdingBase = gross - minCents(gross, r.CombatZoneCap)
		default:
			note = "combat zone exclusion cap unavailable"
		}
	}

	room := r.WageBase - p.YTDSocialSecurityWages
	if room < 0 {
		room = 0
	}

	bases := map[string]Cents{
		string(ratetable.TaxFICA):     minCents(gross, room),
		string(ratetable.TaxMedicare): gross,
		BaseFICAUncapped:              gross,
	}
	if note == "" {
		bases[string(ratetable.TaxFederal)] = withholdingBase
		bases[string(ratetable.TaxState)] = withholdingBase
	}
	return bases, note, confidence, true
}

func minCents(a, b Cents) Cents {
	if a < b {
		return a
	}
	return b
}

func minConfidence(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func appendUnique(list []Code, c Code) []Code {
	for _, x := range list {
		if x == c {
			return list
		}
	}
	return append(list, c)
}
