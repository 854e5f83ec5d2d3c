package audit_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slimmugnai-oss/garrison-ledger-sub009/audit"
	"github.com/slimmugnai-oss/garrison-ledger-sub009/ratetable"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// stateSnapshot expects 4% state withholding on a $10,000 base.
func stateSnapshot(band ratetable.RateBand) audit.ExpectedSnapshot {
	return audit.ExpectedSnapshot{
		Entries: map[audit.Code]audit.Entry{
			audit.CodeStateTax: {
				Code:       audit.CodeStateTax,
				Amount:     40000,
				Confidence: 1,
				HasBasis:   true,
				Basis:      1_000_000,
				Rate:       d("0.04"),
				MinRate:    d("0.04"),
				MaxRate:    d("0.04"),
			},
		},
		TaxableBases: map[string]audit.Cents{"STATE": 1_000_000},
		Tolerances: ratetable.Tolerances{
			TaxBands: map[ratetable.TaxCategory]ratetable.RateBand{ratetable.TaxState: band},
		},
	}
}

func stateLine(amount audit.Cents) []audit.LineItem {
	return []audit.LineItem{{Code: audit.CodeStateTax, RawCode: "SITW", Amount: amount, Section: audit.SectionTax}}
}

func TestPercentCheck_Bands(t *testing.T) {
	band := ratetable.RateBand{GreenPP: d("0.05"), YellowPP: d("1")}
	cases := []struct {
		name   string
		actual audit.Cents
		sev    audit.Severity
		flag   audit.FlagCode
	}{
		{"exact", 40000, audit.SeverityGreen, audit.FlagTaxInRange},
		{"green boundary above", 40500, audit.SeverityGreen, audit.FlagTaxInRange},
		{"green boundary below", 39500, audit.SeverityGreen, audit.FlagTaxInRange},
		{"just outside green", 40600, audit.SeverityYellow, audit.FlagTaxOutOfRange},
		{"yellow boundary", 50000, audit.SeverityYellow, audit.FlagTaxOutOfRange},
		{"implausible", 50100, audit.SeverityRed, audit.FlagTaxImplausible},
		{"zero withheld", 0, audit.SeverityRed, audit.FlagTaxImplausible},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := audit.Compare(stateSnapshot(band), stateLine(tc.actual))
			require.Len(t, out, 1)
			assert.Equal(t, tc.sev, out[0].Severity)
			assert.Equal(t, tc.flag, out[0].Flag)
			assert.Equal(t, audit.CheckPercent, out[0].Check)
			assert.Equal(t, tc.actual-40000, out[0].Delta)
		})
	}
}

func TestPercentCheck_NoYellowBoundMeansNeverRed(t *testing.T) {
	out := audit.Compare(stateSnapshot(ratetable.RateBand{}), stateLine(90000))
	require.Len(t, out, 1)
	assert.Equal(t, audit.SeverityYellow, out[0].Severity)
	assert.True(t, out[0].ActualRate.Equal(d("9")))
}

func TestPercentCheck_RangeUsesBounds(t *testing.T) {
	s := stateSnapshot(ratetable.RateBand{GreenPP: d("0.05"), YellowPP: d("3")})
	e := s.Entries[audit.CodeStateTax]
	e.MinRate, e.MaxRate, e.Rate = d("0.01"), d("0.123"), d("0.0665")
	e.Amount = 66500
	s.Entries[audit.CodeStateTax] = e

	out := audit.Compare(s, stateLine(20000))
	require.Len(t, out, 1)
	assert.Equal(t, audit.SeverityGreen, out[0].Severity, "2%% sits inside the 1%%-12.3%% range")
}

func TestExactCheck_BeatsPercent(t *testing.T) {
	// An entry that is authoritative and also carries a basis is checked in cents.
	s := stateSnapshot(ratetable.RateBand{})
	e := s.Entries[audit.CodeStateTax]
	e.Authoritative = true
	s.Entries[audit.CodeStateTax] = e

	out := audit.Compare(s, stateLine(40101))
	require.Len(t, out, 1)
	assert.Equal(t, audit.CheckExact, out[0].Check)
	assert.Equal(t, audit.SeverityRed, out[0].Severity)
}

func TestCompare_MissingSideIsTagged(t *testing.T) {
	s := audit.ExpectedSnapshot{Entries: map[audit.Code]audit.Entry{
		audit.CodeBAS: {Code: audit.CodeBAS, Amount: 46577, Authoritative: true, Confidence: 1},
	}}
	lines := []audit.LineItem{{Code: audit.CodeTSP, RawCode: "TSP", Amount: 100, Section: audit.SectionDeduction, Index: 0}}

	out := audit.Compare(s, lines)
	require.Len(t, out, 2)

	assert.Equal(t, "BAS", out[0].Key)
	assert.Equal(t, audit.SideActual, out[0].Missing)
	assert.Equal(t, audit.Cents(-46577), out[0].Delta)

	assert.Equal(t, "TSP", out[1].Key)
	assert.Equal(t, audit.SideExpected, out[1].Missing)
	assert.Equal(t, []int{0}, out[1].LineIndexes)
}
