/*
Package factory converts authored rate-table bundles into ratetable.Bundle.

PURPOSE:
  Rate tables are published once a year and corrected occasionally. They are
  data, not code: a bundle is authored as JSON or YAML, validated here, and
  stored by version. The audit engine only ever sees the validated
  ratetable.Bundle.

SCHEMA (JSON shown, YAML uses the same keys):
  {
    "version": "2025.1",
    "effective_year": 2025,
    "base_pay": {"source": "...", "grades": {"E-5": [{"over_years": 0, "monthly_cents": 280110}]}},
    "housing": {"source": "...", "stations": {"28310": "NC182"},
                "rates": {"NC182": {"E-5": {"with_dependents": 168700, "without_dependents": 131600}}}},
    "subsistence": {"source": "...", "years": {"2025": {"enlisted_cents": 46577, "officer_cents": 32078}}},
    "special_pays": [{"flag": "hostile_fire", "code": "HFP", "monthly_cents": 22500, "taxable": true}],
    "deductions": {"afrh_monthly_cents": 50, "sgli_per_thousand": "0.06", "tsgli_monthly_cents": 100},
    "taxes": {"federal_supplemental": {"2025": "0.22"}, "states": {"NC": {"rate": "0.0425"}},
              "state_fallback_rate": "0.045", "fica": {"rate": "0.062", "wage_base_cents": 17610000},
              "medicare": {"rate": "0.0145"}},
    "tolerances": {"exact_cents": 100, "tax_bands": {"FICA": {"green_pp": "0.05", "yellow_pp": "0.5"}}}
  }

  Rates may be written as strings or numbers; strings are preferred because
  they survive every JSON tool without float rounding.

USAGE:
  f := factory.NewBundleFactory()
  bundle, err := f.ParseBundle(data)          // JSON
  bundle, err := f.ParseBundleYAML(data)      // YAML
  bundle, err := f.Parse(data, factory.FormatYAML)
  bj := f.ToJSON(bundle)                      // for storage

SEE ALSO:
  - ratetable/bundle.go: Target types
  - ratetable/tables/: Embedded sample bundle in this format
*/
package factory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/slimmugnai-oss/garrison-ledger-sub009/audit"
	"github.com/slimmugnai-oss/garrison-ledger-sub009/ratetable"
)

// ErrInvalidBundle wraps every validation failure.
var ErrInvalidBundle = errors.New("invalid rate table bundle")

// =============================================================================
// SCHEMA TYPES
// =============================================================================

// BundleJSON is the authored representation of a bundle.
type BundleJSON struct {
	Version       string           `json:"version" yaml:"version"`
	EffectiveYear int              `json:"effective_year" yaml:"effective_year"`
	BasePay       BasePayJSON      `json:"base_pay" yaml:"base_pay"`
	Housing       HousingJSON      `json:"housing" yaml:"housing"`
	Subsistence   SubsistenceJSON  `json:"subsistence" yaml:"subsistence"`
	SpecialPays   []SpecialPayJSON `json:"special_pays" yaml:"special_pays"`
	Deductions    DeductionsJSON   `json:"deductions" yaml:"deductions"`
	Taxes         TaxesJSON        `json:"taxes" yaml:"taxes"`
	Tolerances    TolerancesJSON   `json:"tolerances" yaml:"tolerances"`
}

type BracketJSON struct {
	OverYears    int   `json:"over_years" yaml:"over_years"`
	MonthlyCents int64 `json:"monthly_cents" yaml:"monthly_cents"`
}

type BasePayJSON struct {
	Source string                   `json:"source" yaml:"source"`
	Grades map[string][]BracketJSON `json:"grades" yaml:"grades"`
}

type HousingRateJSON struct {
	WithDependents    int64 `json:"with_dependents" yaml:"with_dependents"`
	WithoutDependents int64 `json:"without_dependents" yaml:"without_dependents"`
}

type HousingJSON struct {
	Source   string                                `json:"source" yaml:"source"`
	Stations map[string]string                     `json:"stations" yaml:"stations"`
	Rates    map[string]map[string]HousingRateJSON `json:"rates" yaml:"rates"`
}

type SubsistenceRateJSON struct {
	EnlistedCents int64 `json:"enlisted_cents" yaml:"enlisted_cents"`
	OfficerCents  int64 `json:"officer_cents" yaml:"officer_cents"`
}

type SubsistenceJSON struct {
	Source string                         `json:"source" yaml:"source"`
	Years  map[string]SubsistenceRateJSON `json:"years" yaml:"years"`
}

type SpecialPayJSON struct {
	Flag         string   `json:"flag" yaml:"flag"`
	Code         string   `json:"code" yaml:"code"`
	Name         string   `json:"name" yaml:"name"`
	MonthlyCents int64    `json:"monthly_cents" yaml:"monthly_cents"`
	Eligible     []string `json:"eligible,omitempty" yaml:"eligible,omitempty"`
	Taxable      bool     `json:"taxable" yaml:"taxable"`
	Citation     string   `json:"citation,omitempty" yaml:"citation,omitempty"`
}

type DeductionsJSON struct {
	Source          string `json:"source,omitempty" yaml:"source,omitempty"`
	AFRHMonthly     int64  `json:"afrh_monthly_cents" yaml:"afrh_monthly_cents"`
	SGLIPerThousand Rate   `json:"sgli_per_thousand" yaml:"sgli_per_thousand"`
	TSGLIMonthly    int64  `json:"tsgli_monthly_cents" yaml:"tsgli_monthly_cents"`
}

type StateTaxJSON struct {
	Rate           Rate `json:"rate,omitempty" yaml:"rate,omitempty"`
	MinRate        Rate `json:"min_rate,omitempty" yaml:"min_rate,omitempty"`
	MaxRate        Rate `json:"max_rate,omitempty" yaml:"max_rate,omitempty"`
	MilitaryExempt bool `json:"military_exempt,omitempty" yaml:"military_exempt,omitempty"`
}

type FICAJSON struct {
	Rate          Rate  `json:"rate" yaml:"rate"`
	WageBaseCents int64 `json:"wage_base_cents" yaml:"wage_base_cents"`
}

type MedicareJSON struct {
	Rate Rate `json:"rate" yaml:"rate"`
}

type TaxesJSON struct {
	Source              string                  `json:"source,omitempty" yaml:"source,omitempty"`
	FederalSupplemental map[string]Rate         `json:"federal_supplemental" yaml:"federal_supplemental"`
	States              map[string]StateTaxJSON `json:"states" yaml:"states"`
	StateFallbackRate   Rate                    `json:"state_fallback_rate" yaml:"state_fallback_rate"`
	FICA                FICAJSON                `json:"fica" yaml:"fica"`
	Medicare            MedicareJSON            `json:"medicare" yaml:"medicare"`
}

type RateBandJSON struct {
	GreenPP  Rate `json:"green_pp" yaml:"green_pp"`
	YellowPP Rate `json:"yellow_pp,omitempty" yaml:"yellow_pp,omitempty"`
}

type TolerancesJSON struct {
	ExactCents int64                   `json:"exact_cents" yaml:"exact_cents"`
	TaxBands   map[string]RateBandJSON `json:"tax_bands" yaml:"tax_bands"`
}

// Rate is a decimal written as a string or a bare number.
type Rate string

func (r *Rate) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*r = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = Rate(s)
		return nil
	}
	*r = Rate(b)
	return nil
}

func (r Rate) parse() (decimal.Decimal, error) {
	s := strings.TrimSpace(string(r))
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func rateOf(d decimal.Decimal) Rate {
	return Rate(d.String())
}

// =============================================================================
// BUNDLE FACTORY
// =============================================================================

// Format is a bundle serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// BundleFactory converts authored bundles to ratetable.Bundle.
type BundleFactory struct{}

func NewBundleFactory() *BundleFactory {
	return &BundleFactory{}
}

// ParseBundle parses a JSON bundle.
func (f *BundleFactory) ParseBundle(data []byte) (*ratetable.Bundle, error) {
	return f.Parse(data, FormatJSON)
}

// ParseBundleYAML parses a YAML bundle.
func (f *BundleFactory) ParseBundleYAML(data []byte) (*ratetable.Bundle, error) {
	return f.Parse(data, FormatYAML)
}

// Parse decodes and validates a bundle in the given format.
func (f *BundleFactory) Parse(data []byte, format Format) (*ratetable.Bundle, error) {
	var bj BundleJSON
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &bj); err != nil {
			return nil, fmt.Errorf("failed to parse bundle YAML: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&bj); err != nil {
			return nil, fmt.Errorf("failed to parse bundle JSON: %w", err)
		}
	}
	return f.FromJSON(bj)
}

// DetectFormat guesses a format from a content type or file name.
func DetectFormat(hint string) Format {
	h := strings.ToLower(hint)
	if strings.Contains(h, "yaml") || strings.HasSuffix(h, ".yml") {
		return FormatYAML
	}
	return FormatJSON
}

// LoadSample parses the embedded sample bundle.
func (f *BundleFactory) LoadSample() (*ratetable.Bundle, error) {
	return f.ParseBundle(ratetable.Sample2025JSON())
}

// FromJSON validates bj and builds the bundle. Every problem is reported,
// joined under ErrInvalidBundle.
func (f *BundleFactory) FromJSON(bj BundleJSON) (*ratetable.Bundle, error) {
	v := &validator{}

	b := &ratetable.Bundle{
		Version:       strings.TrimSpace(bj.Version),
		EffectiveYear: bj.EffectiveYear,
	}
	if b.Version == "" {
		v.fail("version is required")
	}
	if b.EffectiveYear <= 0 {
		v.fail("effective_year must be positive")
	}

	b.BasePay = parseBasePay(bj.BasePay, v)
	b.Housing = parseHousing(bj.Housing, v)
	b.Subsistence = parseSubsistence(bj.Subsistence, v)
	b.SpecialPays = parseSpecialPays(bj.SpecialPays, v)
	b.Deductions = parseDeductions(bj.Deductions, v)
	b.Taxes = parseTaxes(bj.Taxes, v)
	b.Tolerances = parseTolerances(bj.Tolerances, v)

	if err := v.err(); err != nil {
		return nil, err
	}
	return b, nil
}

// ToJSON converts a bundle back to its authored form.
func (f *BundleFactory) ToJSON(b *ratetable.Bundle) BundleJSON {
	bj := BundleJSON{
		Version:       b.Version,
		EffectiveYear: b.EffectiveYear,
		BasePay:       BasePayJSON{Source: b.BasePay.Source, Grades: map[string][]BracketJSON{}},
		Housing: HousingJSON{
			Source:   b.Housing.Source,
			Stations: map[string]string{},
			Rates:    map[string]map[string]HousingRateJSON{},
		},
		Subsistence: SubsistenceJSON{Source: b.Subsistence.Source, Years: map[string]SubsistenceRateJSON{}},
		Deductions: DeductionsJSON{
			Source:          b.Deductions.Source,
			AFRHMonthly:     int64(b.Deductions.AFRHMonthly),
			SGLIPerThousand: rateOf(b.Deductions.SGLIPerThousand),
			TSGLIMonthly:    int64(b.Deductions.TSGLIMonthly),
		},
		Taxes: TaxesJSON{
			Source:              b.Taxes.Source,
			FederalSupplemental: map[string]Rate{},
			States:              map[string]StateTaxJSON{},
			StateFallbackRate:   rateOf(b.Taxes.StateFallbackRate),
			FICA:                FICAJSON{Rate: rateOf(b.Taxes.SocialSecurity.Rate), WageBaseCents: int64(b.Taxes.SocialSecurity.WageBase)},
			Medicare:            MedicareJSON{Rate: rateOf(b.Taxes.MedicareRate)},
		},
		Tolerances: TolerancesJSON{ExactCents: int64(b.Tolerances.ExactCents), TaxBands: map[string]RateBandJSON{}},
	}

	for g, brackets := range b.BasePay.Grades {
		for _, br := range brackets {
			bj.BasePay.Grades[string(g)] = append(bj.BasePay.Grades[string(g)], BracketJSON{OverYears: br.OverYears, MonthlyCents: int64(br.Monthly)})
		}
	}
	for station, mha := range b.Housing.Stations {
		bj.Housing.Stations[station] = mha
	}
	for mha, grades := range b.Housing.Rates {
		bj.Housing.Rates[mha] = map[string]HousingRateJSON{}
		for g, r := range grades {
			bj.Housing.Rates[mha][string(g)] = HousingRateJSON{WithDependents: int64(r.WithDependents), WithoutDependents: int64(r.WithoutDependents)}
		}
	}
	for year, r := range b.Subsistence.Years {
		bj.Subsistence.Years[strconv.Itoa(year)] = SubsistenceRateJSON{EnlistedCents: int64(r.Enlisted), OfficerCents: int64(r.Officer)}
	}

	flags := make([]string, 0, len(b.SpecialPays))
	for flag := range b.SpecialPays {
		flags = append(flags, string(flag))
	}
	sort.Strings(flags)
	for _, flag := range flags {
		def := b.SpecialPays[ratetable.SpecialPay(flag)]
		sp := SpecialPayJSON{
			Flag:         string(def.Flag),
			Code:         def.Code,
			Name:         def.Name,
			MonthlyCents: int64(def.Monthly),
			Taxable:      def.Taxable,
			Citation:     def.Citation,
		}
		for _, c := range def.Eligible {
			sp.Eligible = append(sp.Eligible, string(c))
		}
		bj.SpecialPays = append(bj.SpecialPays, sp)
	}

	for year, r := range b.Taxes.FederalSupplemental {
		bj.Taxes.FederalSupplemental[strconv.Itoa(year)] = rateOf(r)
	}
	for code, st := range b.Taxes.States {
		sj := StateTaxJSON{MilitaryExempt: st.MilitaryExempt}
		switch {
		case st.IsRange:
			sj.MinRate, sj.MaxRate = rateOf(st.MinRate), rateOf(st.MaxRate)
		case !st.MilitaryExempt:
			sj.Rate = rateOf(st.Rate)
		}
		bj.Taxes.States[code] = sj
	}
	for cat, band := range b.Tolerances.TaxBands {
		bj.Tolerances.TaxBands[string(cat)] = RateBandJSON{GreenPP: rateOf(band.GreenPP), YellowPP: rateOf(band.YellowPP)}
	}
	return bj
}

// Marshal serializes a bundle in the given format.
func (f *BundleFactory) Marshal(b *ratetable.Bundle, format Format) ([]byte, error) {
	bj := f.ToJSON(b)
	if format == FormatYAML {
		return yaml.Marshal(bj)
	}
	return json.MarshalIndent(bj, "", "  ")
}

// =============================================================================
// SECTION PARSERS
// =============================================================================

func parseBasePay(in BasePayJSON, v *validator) ratetable.BasePayTable {
	out := ratetable.BasePayTable{Source: in.Source, Grades: make(map[ratetable.Grade][]ratetable.PayBracket, len(in.Grades))}
	if len(in.Grades) == 0 {
		v.fail("base_pay.grades is empty")
	}
	for _, raw := range sortedKeys(in.Grades) {
		brackets := in.Grades[raw]
		g, ok := v.grade("base_pay.grades", raw)
		if !ok {
			continue
		}
		if len(brackets) == 0 {
			v.fail("base_pay.grades.%s has no brackets", raw)
			continue
		}
		list := make([]ratetable.PayBracket, 0, len(brackets))
		for _, br := range brackets {
			if br.OverYears < 0 || br.MonthlyCents <= 0 {
				v.fail("base_pay.grades.%s: bracket over %d must have non-negative years and positive pay", raw, br.OverYears)
				continue
			}
			list = append(list, ratetable.PayBracket{OverYears: br.OverYears, Monthly: ratetable.Cents(br.MonthlyCents)})
		}
		sort.Slice(list, func(i, j int) bool { return list[i].OverYears < list[j].OverYears })
		for i := 1; i < len(list); i++ {
			if list[i].OverYears == list[i-1].OverYears {
				v.fail("base_pay.grades.%s: duplicate bracket over %d", raw, list[i].OverYears)
			}
		}
		out.Grades[g] = list
	}
	return out
}

func parseHousing(in HousingJSON, v *validator) ratetable.HousingTable {
	out := ratetable.HousingTable{
		Source:   in.Source,
		Stations: make(map[string]string, len(in.Stations)),
		Rates:    make(map[string]map[ratetable.Grade]ratetable.HousingRate, len(in.Rates)),
	}
	for _, mha := range sortedKeys(in.Rates) {
		grades := in.Rates[mha]
		key := strings.ToUpper(strings.TrimSpace(mha))
		rates := make(map[ratetable.Grade]ratetable.HousingRate, len(grades))
		for _, raw := range sortedKeys(grades) {
			r := grades[raw]
			g, ok := v.grade("housing.rates."+key, raw)
			if !ok {
				continue
			}
			if r.WithDependents < 0 || r.WithoutDependents < 0 {
				v.fail("housing.rates.%s.%s: negative rate", key, raw)
				continue
			}
			rates[g] = ratetable.HousingRate{WithDependents: ratetable.Cents(r.WithDependents), WithoutDependents: ratetable.Cents(r.WithoutDependents)}
		}
		out.Rates[key] = rates
	}
	for _, station := range sortedKeys(in.Stations) {
		mha := in.Stations[station]
		key := strings.ToUpper(strings.TrimSpace(mha))
		if _, ok := out.Rates[key]; !ok {
			v.fail("housing.stations.%s points at unknown MHA %q", station, mha)
			continue
		}
		out.Stations[strings.ToUpper(strings.TrimSpace(station))] = key
	}
	return out
}

func parseSubsistence(in SubsistenceJSON, v *validator) ratetable.SubsistenceTable {
	out := ratetable.SubsistenceTable{Source: in.Source, Years: make(map[int]ratetable.SubsistenceRate, len(in.Years))}
	for _, raw := range sortedKeys(in.Years) {
		r := in.Years[raw]
		year, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			v.fail("subsistence.years: %q is not a year", raw)
			continue
		}
		if r.EnlistedCents <= 0 || r.OfficerCents <= 0 {
			v.fail("subsistence.years.%d: rates must be positive", year)
			continue
		}
		out.Years[year] = ratetable.SubsistenceRate{Enlisted: ratetable.Cents(r.EnlistedCents), Officer: ratetable.Cents(r.OfficerCents)}
	}
	return out
}

func parseSpecialPays(in []SpecialPayJSON, v *validator) map[ratetable.SpecialPay]ratetable.SpecialPayDef {
	out := make(map[ratetable.SpecialPay]ratetable.SpecialPayDef, len(in))
	for i, sp := range in {
		flag := ratetable.SpecialPay(strings.ToLower(strings.TrimSpace(sp.Flag)))
		if flag == "" {
			v.fail("special_pays[%d]: flag is required", i)
			continue
		}
		if _, dup := out[flag]; dup {
			v.fail("special_pays[%d]: duplicate flag %q", i, flag)
			continue
		}
		code := audit.Code(strings.ToUpper(strings.TrimSpace(sp.Code)))
		info, ok := audit.LookupCode(code)
		if !ok || info.Category != audit.CategoryAllowance {
			v.fail("special_pays[%d]: code %q is not a known pay code", i, sp.Code)
			continue
		}
		if sp.MonthlyCents <= 0 {
			v.fail("special_pays[%d]: monthly_cents must be positive", i)
			continue
		}
		def := ratetable.SpecialPayDef{
			Flag:     flag,
			Code:     string(code),
			Name:     sp.Name,
			Monthly:  ratetable.Cents(sp.MonthlyCents),
			Taxable:  sp.Taxable,
			Citation: sp.Citation,
		}
		if def.Name == "" {
			def.Name = info.Name
		}
		for _, e := range sp.Eligible {
			c := ratetable.GradeCategory(strings.ToLower(strings.TrimSpace(e)))
			switch c {
			case ratetable.CategoryEnlisted, ratetable.CategoryWarrant, ratetable.CategoryOfficer:
				def.Eligible = append(def.Eligible, c)
			default:
				v.fail("special_pays[%d]: unknown grade category %q", i, e)
			}
		}
		out[flag] = def
	}
	return out
}

func parseDeductions(in DeductionsJSON, v *validator) ratetable.DeductionTable {
	out := ratetable.DeductionTable{
		Source:       in.Source,
		AFRHMonthly:  ratetable.Cents(in.AFRHMonthly),
		TSGLIMonthly: ratetable.Cents(in.TSGLIMonthly),
	}
	if in.AFRHMonthly < 0 || in.TSGLIMonthly < 0 {
		v.fail("deductions: amounts must not be negative")
	}
	out.SGLIPerThousand = v.rate("deductions.sgli_per_thousand", in.SGLIPerThousand, false)
	return out
}

func parseTaxes(in TaxesJSON, v *validator) ratetable.TaxTable {
	out := ratetable.TaxTable{
		Source:              in.Source,
		FederalSupplemental: make(map[int]decimal.Decimal, len(in.FederalSupplemental)),
		States:              make(map[string]ratetable.StateTax, len(in.States)),
	}
	for _, raw := range sortedKeys(in.FederalSupplemental) {
		r := in.FederalSupplemental[raw]
		year, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			v.fail("taxes.federal_supplemental: %q is not a year", raw)
			continue
		}
		out.FederalSupplemental[year] = v.rate("taxes.federal_supplemental."+raw, r, true)
	}
	for _, raw := range sortedKeys(in.States) {
		st := in.States[raw]
		code := strings.ToUpper(strings.TrimSpace(raw))
		field := "taxes.states." + code
		tax := ratetable.StateTax{MilitaryExempt: st.MilitaryExempt}
		switch {
		case st.MilitaryExempt:
		case st.MinRate != "" || st.MaxRate != "":
			tax.IsRange = true
			tax.MinRate = v.rate(field+".min_rate", st.MinRate, true)
			tax.MaxRate = v.rate(field+".max_rate", st.MaxRate, true)
			if tax.MinRate.GreaterThan(tax.MaxRate) {
				v.fail("%s: min_rate exceeds max_rate", field)
			}
		default:
			tax.Rate = v.rate(field+".rate", st.Rate, true)
		}
		out.States[code] = tax
	}
	out.StateFallbackRate = v.rate("taxes.state_fallback_rate", in.StateFallbackRate, true)
	out.SocialSecurity = ratetable.FICA{
		Rate:     v.rate("taxes.fica.rate", in.FICA.Rate, true),
		WageBase: ratetable.Cents(in.FICA.WageBaseCents),
	}
	if in.FICA.WageBaseCents < 0 {
		v.fail("taxes.fica.wage_base_cents must not be negative")
	}
	out.MedicareRate = v.rate("taxes.medicare.rate", in.Medicare.Rate, true)
	return out
}

func parseTolerances(in TolerancesJSON, v *validator) ratetable.Tolerances {
	out := ratetable.Tolerances{
		ExactCents: ratetable.Cents(in.ExactCents),
		TaxBands:   make(map[ratetable.TaxCategory]ratetable.RateBand, len(in.TaxBands)),
	}
	if in.ExactCents < 0 {
		v.fail("tolerances.exact_cents must not be negative")
	}
	known := make(map[ratetable.TaxCategory]bool)
	for _, c := range ratetable.TaxCategories() {
		known[c] = true
	}
	for _, raw := range sortedKeys(in.TaxBands) {
		band := in.TaxBands[raw]
		cat := ratetable.TaxCategory(strings.ToUpper(strings.TrimSpace(raw)))
		if !known[cat] {
			v.fail("tolerances.tax_bands: unknown tax category %q", raw)
			continue
		}
		field := "tolerances.tax_bands." + string(cat)
		rb := ratetable.RateBand{
			GreenPP:  v.rate(field+".green_pp", band.GreenPP, false),
			YellowPP: v.rate(field+".yellow_pp", band.YellowPP, false),
		}
		if !rb.YellowPP.IsZero() && rb.YellowPP.LessThan(rb.GreenPP) {
			v.fail("%s: yellow_pp must not be below green_pp", field)
		}
		out.TaxBands[cat] = rb
	}
	return out
}

// =============================================================================
// VALIDATION HELPERS
// =============================================================================

type validator struct {
	problems []error
}

func (v *validator) fail(format string, args ...any) {
	v.problems = append(v.problems, fmt.Errorf(format, args...))
}

func (v *validator) err() error {
	if len(v.problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidBundle, errors.Join(v.problems...))
}

// sortedKeys keeps problem order stable across runs.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (v *validator) grade(field, raw string) (ratetable.Grade, bool) {
	g, err := ratetable.ParseGrade(raw)
	if err != nil {
		v.fail("%s: %v", field, err)
		return "", false
	}
	return g, true
}

// rate parses a decimal. Fractions (tax rates) must lie in [0, 1).
func (v *validator) rate(field string, r Rate, fraction bool) decimal.Decimal {
	d, err := r.parse()
	if err != nil {
		v.fail("%s: %q is not a number", field, string(r))
		return decimal.Zero
	}
	if d.IsNegative() {
		v.fail("%s must not be negative", field)
	}
	if fraction && d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		v.fail("%s: %s is not a fraction; write 22%% as 0.22", field, d.String())
	}
	return d
}
