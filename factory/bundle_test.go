package factory

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slimmugnai-oss/garrison-ledger-sub009/ratetable"
)

const miniYAML = `
version: "2025.1-mini"
effective_year: 2025
base_pay:
  source: mini table
  grades:
    e5:
      - {over_years: 6, monthly_cents: 352290}
      - {over_years: 0, monthly_cents: 280110}
housing:
  stations:
    "28310": nc182
  rates:
    NC182:
      E-5: {with_dependents: 168700, without_dependents: 131600}
subsistence:
  years:
    "2025": {enlisted_cents: 46577, officer_cents: 32078}
special_pays:
  - {flag: Hostile_Fire, code: hfp, monthly_cents: 22500, taxable: true}
taxes:
  federal_supplemental:
    "2025": "0.22"
  states:
    nc: {rate: "0.0425"}
    ca: {min_rate: "0.01", max_rate: "0.123"}
  state_fallback_rate: "0.045"
  fica: {rate: "0.062", wage_base_cents: 17610000}
  medicare: {rate: "0.0145"}
tolerances:
  exact_cents: 100
  tax_bands:
    state: {green_pp: "0.05", yellow_pp: "3"}
`

func TestLoadSample(t *testing.T) {
	b, err := NewBundleFactory().LoadSample()
	require.NoError(t, err)

	assert.Equal(t, ratetable.SampleVersion, b.Version)
	assert.Equal(t, 2025, b.EffectiveYear)

	got, ok := b.BasePay.Lookup(ratetable.MustParseGrade("E-5"), 6)
	require.True(t, ok)
	assert.Equal(t, ratetable.Cents(352290), got.Monthly)

	mha, ok := b.Housing.MHA("28310")
	require.True(t, ok)
	assert.Equal(t, "NC182", mha)

	fed, ok := b.Taxes.Federal(2025)
	require.True(t, ok)
	assert.True(t, fed.Equal(decimal.RequireFromString("0.22")))
}

func TestParseBundleYAML_NormalizesKeys(t *testing.T) {
	// GIVEN: a hand-written YAML bundle with loose casing
	f := NewBundleFactory()

	// WHEN: it is parsed
	b, err := f.ParseBundleYAML([]byte(miniYAML))
	require.NoError(t, err)

	// THEN: grades, stations, flags and states are canonical
	e5 := ratetable.MustParseGrade("E-5")
	brackets := b.BasePay.Grades[e5]
	require.Len(t, brackets, 2)
	assert.Equal(t, 0, brackets[0].OverYears, "brackets are sorted")

	mha, ok := b.Housing.MHA("28310")
	require.True(t, ok)
	assert.Equal(t, "NC182", mha)

	hfp, ok := b.SpecialPay("hostile_fire")
	require.True(t, ok)
	assert.Equal(t, "HFP", hfp.Code)
	assert.NotEmpty(t, hfp.Name, "name defaults from the code catalog")

	ca, ok := b.Taxes.States["CA"]
	require.True(t, ok)
	assert.True(t, ca.IsRange)
	assert.Contains(t, b.Taxes.States, "NC")

	band := b.Tolerances.Band(ratetable.TaxState)
	assert.True(t, band.YellowPP.Equal(decimal.NewFromInt(3)))
}

func TestParse_AcceptsNumericRates(t *testing.T) {
	bj := NewBundleFactory().ToJSON(mustSample(t))
	data, err := json.Marshal(bj)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	raw["taxes"].(map[string]any)["state_fallback_rate"] = 0.05
	data, err = json.Marshal(raw)
	require.NoError(t, err)

	b, err := NewBundleFactory().ParseBundle(data)
	require.NoError(t, err)
	assert.True(t, b.Taxes.StateFallbackRate.Equal(decimal.RequireFromString("0.05")))
}

func TestParse_RejectsUnknownJSONFields(t *testing.T) {
	_, err := NewBundleFactory().ParseBundle([]byte(`{"version":"x","effective_year":2025,"bah":{}}`))
	assert.Error(t, err)
}

func TestFromJSON_ReportsEveryProblem(t *testing.T) {
	// GIVEN: a bundle broken in several independent ways
	bj := NewBundleFactory().ToJSON(mustSample(t))
	bj.Version = " "
	bj.Housing.Stations["99999"] = "NOWHERE"
	bj.Taxes.FederalSupplemental["2025"] = "22"
	bj.Taxes.States["CA"] = StateTaxJSON{MinRate: "0.2", MaxRate: "0.1"}
	bj.SpecialPays = append(bj.SpecialPays, SpecialPayJSON{Flag: "flight", Code: "ACIP", MonthlyCents: 100})
	bj.Tolerances.TaxBands["PAYROLL"] = RateBandJSON{GreenPP: "0.05"}
	bj.Tolerances.TaxBands["FICA"] = RateBandJSON{GreenPP: "1", YellowPP: "0.5"}

	// WHEN: it is converted
	_, err := NewBundleFactory().FromJSON(bj)

	// THEN: one error wraps all of them
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidBundle))
	msg := err.Error()
	for _, want := range []string{
		"version is required",
		"unknown MHA",
		"not a fraction",
		"min_rate exceeds max_rate",
		"not a known pay code",
		"unknown tax category",
		"yellow_pp must not be below green_pp",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestFromJSON_ProblemOrderIsStable(t *testing.T) {
	// GIVEN: many broken map entries across several sections
	bj := NewBundleFactory().ToJSON(mustSample(t))
	for _, station := range []string{"S09", "S03", "S07", "S01", "S05"} {
		bj.Housing.Stations[station] = "NOWHERE"
	}
	bj.Subsistence.Years["later"] = bj.Subsistence.Years["2025"]
	bj.Subsistence.Years["soon"] = bj.Subsistence.Years["2025"]
	bj.Tolerances.TaxBands["PAYROLL"] = RateBandJSON{GreenPP: "0.05"}
	bj.Tolerances.TaxBands["EXCISE"] = RateBandJSON{GreenPP: "0.05"}

	// WHEN: it is converted repeatedly
	_, first := NewBundleFactory().FromJSON(bj)
	require.Error(t, first)
	for i := 0; i < 20; i++ {
		_, err := NewBundleFactory().FromJSON(bj)
		require.Error(t, err)

		// THEN: the message is identical every time
		require.Equal(t, first.Error(), err.Error())
	}

	// AND: problems within a section follow key order
	msg := first.Error()
	for _, pair := range [][2]string{
		{"housing.stations.S01", "housing.stations.S03"},
		{"housing.stations.S07", "housing.stations.S09"},
		{`"later"`, `"soon"`},
		{`"EXCISE"`, `"PAYROLL"`},
	} {
		assert.Less(t, strings.Index(msg, pair[0]), strings.Index(msg, pair[1]), pair)
	}
}

func TestFromJSON_RejectsDuplicateBrackets(t *testing.T) {
	bj := NewBundleFactory().ToJSON(mustSample(t))
	bj.BasePay.Grades["E-1"] = []BracketJSON{{OverYears: 0, MonthlyCents: 1}, {OverYears: 0, MonthlyCents: 2}}

	_, err := NewBundleFactory().FromJSON(bj)
	require.ErrorIs(t, err, ErrInvalidBundle)
	assert.Contains(t, err.Error(), "duplicate bracket")
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := NewBundleFactory()
	b := mustSample(t)

	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			data, err := f.Marshal(b, format)
			require.NoError(t, err)

			back, err := f.Parse(data, format)
			require.NoError(t, err)
			assert.Equal(t, f.ToJSON(b), f.ToJSON(back))
		})
	}
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("application/x-yaml"))
	assert.Equal(t, FormatYAML, DetectFormat("tables-2025.yml"))
	assert.Equal(t, FormatJSON, DetectFormat("application/json"))
	assert.Equal(t, FormatJSON, DetectFormat(""))
}

func mustSample(t *testing.T) *ratetable.Bundle {
	t.Helper()
	b, err := NewBundleFactory().LoadSample()
	require.NoError(t, err)
	return b
}
