package ratetable_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slimmugnai-oss/garrison-ledger-sub009/ratetable"
)

func TestParseGrade_LooseSpellings(t *testing.T) {
	cases := map[string]ratetable.Grade{
		"E-5":  "E-5",
		"e5":   "E-5",
		"E05":  "E-5",
		" e 5": "E-5",
		"O3E":  "O-3E",
		"o-1e": "O-1E",
		"CW2":  "W-2",
		"O-10": "O-10",
	}
	for in, want := range cases {
		got, err := ratetable.ParseGrade(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseGrade_Rejects(t *testing.T) {
	for _, in := range []string{"", "E", "E-10", "W-6", "X-1", "O-4E", "E-0", "E-five"} {
		_, err := ratetable.ParseGrade(in)
		assert.Error(t, err, in)
	}
}

func TestGrade_Category(t *testing.T) {
	assert.Equal(t, ratetable.CategoryEnlisted, ratetable.Grade("E-7").Category())
	assert.Equal(t, ratetable.CategoryWarrant, ratetable.Grade("W-2").Category())
	assert.Equal(t, ratetable.CategoryOfficer, ratetable.Grade("O-1E").Category())
	assert.True(t, ratetable.Grade("W-1").IsOfficer(), "warrant officers draw officer BAS")
	assert.False(t, ratetable.Grade("E-9").IsOfficer())
}

func TestBasePayTable_Lookup(t *testing.T) {
	table := ratetable.BasePayTable{Grades: map[ratetable.Grade][]ratetable.PayBracket{
		"E-5": {{OverYears: 0, Monthly: 280110}, {OverYears: 2, Monthly: 299760}, {OverYears: 6, Monthly: 352290}},
		"E-9": {{OverYears: 10, Monthly: 621330}, {OverYears: 12, Monthly: 635400}},
	}}

	got, ok := table.Lookup("E-5", 5)
	require.True(t, ok)
	assert.Equal(t, ratetable.Cents(299760), got.Monthly)
	assert.Equal(t, 2, got.OverYears)
	assert.False(t, got.Clamped)

	got, ok = table.Lookup("E-5", 40)
	require.True(t, ok)
	assert.Equal(t, ratetable.Cents(352290), got.Monthly, "last bracket covers everything above it")

	got, ok = table.Lookup("E-9", 4)
	require.True(t, ok)
	assert.True(t, got.Clamped, "below the first defined bracket clamps up")
	assert.Equal(t, 10, got.OverYears)

	_, ok = table.Lookup("O-3", 4)
	assert.False(t, ok)
}

func TestHousingTable_MissingIsNotZero(t *testing.T) {
	table := ratetable.HousingTable{
		Stations: map[string]string{"28310": "NC182"},
		Rates: map[string]map[ratetable.Grade]ratetable.HousingRate{
			"NC182": {"E-5": {WithDependents: 168700, WithoutDependents: 131600}},
		},
	}

	mha, ok := table.MHA(" 28310 ")
	require.True(t, ok)
	assert.Equal(t, "NC182", mha)

	mha, ok = table.MHA("nc182")
	require.True(t, ok, "an MHA code resolves to itself")

	rate, ok := table.Lookup(mha, "E-5", true)
	require.True(t, ok)
	assert.Equal(t, ratetable.Cents(168700), rate)

	_, ok = table.MHA("99999")
	assert.False(t, ok)
	_, ok = table.Lookup("NC182", "O-6", false)
	assert.False(t, ok)
}

func TestCents_ApplyRate_RoundsHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, ratetable.Cents(7), ratetable.Cents(100).ApplyRate(decimal.RequireFromString("0.065")))
	assert.Equal(t, ratetable.Cents(21842), ratetable.Cents(352290).ApplyRate(decimal.RequireFromString("0.062")))
	assert.Equal(t, "3522.9", ratetable.Cents(352290).Dollars().String())
}

func TestDeductionTable_SGLIPremium(t *testing.T) {
	table := ratetable.DeductionTable{SGLIPerThousand: decimal.RequireFromString("0.06"), TSGLIMonthly: 100}
	assert.Equal(t, ratetable.Cents(3100), table.SGLIPremium(50_000_000), "$500k coverage: $30 + $1 TSGLI")
}

func TestStateTax_RangeMidpoint(t *testing.T) {
	ca := ratetable.StateTax{IsRange: true, MinRate: decimal.RequireFromString("0.01"), MaxRate: decimal.RequireFromString("0.123")}
	assert.True(t, ca.Expected().Equal(decimal.RequireFromString("0.0665")))

	oh := ratetable.StateTax{MilitaryExempt: true, Rate: decimal.RequireFromString("0.03")}
	lo, hi := oh.Bounds()
	assert.True(t, lo.IsZero())
	assert.True(t, hi.IsZero())
}

func TestTolerances_Defaults(t *testing.T) {
	var tol ratetable.Tolerances
	assert.Equal(t, ratetable.DefaultExactCents, tol.Exact())
	band := tol.Band(ratetable.TaxFICA)
	assert.True(t, band.GreenPP.Equal(ratetable.DefaultGreenPP))
	assert.True(t, band.YellowPP.IsZero())
}
