package audit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emittable lists every (flag code, severity) pair the comparator, the flag
// generator and the reconciler can produce. Keep in sync with compare.go.
var emittable = map[FlagCode][]Severity{
	FlagAllowanceVerified:   {SeverityGreen},
	FlagAllowanceMismatch:   {SeverityRed},
	FlagAllowanceMissing:    {SeverityRed},
	FlagAllowanceUnexpected: {SeverityRed},
	FlagTaxInRange:          {SeverityGreen},
	FlagTaxOutOfRange:       {SeverityYellow},
	FlagTaxImplausible:      {SeverityRed},
	FlagTaxMissing:          {SeverityYellow},
	FlagDeductionVerified:   {SeverityGreen},
	FlagDeductionMismatch:   {SeverityRed},
	FlagUnverifiedLine:      {SeverityGreen},
	FlagDebtPresent:         {SeverityYellow},
	FlagUnrecognizedCode:    {SeverityYellow},
	FlagRateUnavailable:     {SeverityYellow},
	FlagRateEstimated:       {SeverityYellow},
	FlagNetVerified:         {SeverityGreen},
	FlagNetMismatch:         {SeverityRed},
}

func TestFlagTemplates_Exhaustive(t *testing.T) {
	names := make(map[string]bool)
	for c := FlagCode(0); c < flagCodeCount; c++ {
		tmpl := flagTemplates[c]
		require.NotEmpty(t, tmpl.name, "flag code %d has no template row", int(c))
		assert.False(t, names[tmpl.name], "duplicate flag name %s", tmpl.name)
		names[tmpl.name] = true

		sevs, ok := emittable[c]
		require.True(t, ok, "%s missing from emittable", tmpl.name)
		for _, sev := range sevs {
			text, ok := tmpl.text[sev]
			assert.True(t, ok, "%s has no %s text", tmpl.name, sev)
			assert.NotEmpty(t, text.message, "%s/%s", tmpl.name, sev)
			if sev == SeverityRed {
				assert.NotEmpty(t, text.suggestion, "red flags must say what to do: %s", tmpl.name)
			}
		}
	}
	assert.Len(t, emittable, int(flagCodeCount))
}

func TestFlagCode_TextRoundTrip(t *testing.T) {
	for c := FlagCode(0); c < flagCodeCount; c++ {
		b, err := c.MarshalText()
		require.NoError(t, err)

		var back FlagCode
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, c, back)
	}

	_, err := ParseFlagCode("NOT_A_FLAG")
	assert.Error(t, err)
	_, err = flagCodeCount.MarshalText()
	assert.Error(t, err)
}

func TestFlag_JSONUsesNullForOptionalFields(t *testing.T) {
	f := render(FlagAllowanceVerified, SeverityGreen, Outcome{Code: CodeBAS, Name: "BAS", Category: CategoryAllowance, Actual: 46577, Expected: 46577})

	b, err := json.Marshal(f)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "ALLOWANCE_VERIFIED", raw["flag_code"])
	assert.Equal(t, "green", raw["severity"])
	assert.Nil(t, raw["suggestion"])
	assert.Nil(t, raw["delta_cents"])
	assert.Nil(t, raw["citation"])
	assert.Equal(t, "BAS of $465.77 matches the expected $465.77.", raw["message"])

	var back Flag
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, f, back)
}

func TestRender_DeltaAndTemplateCategory(t *testing.T) {
	o := Outcome{Key: "NET", Name: "Net pay", Category: CategoryNet, Expected: 10000, Actual: 9000, Delta: -1000}
	f := render(FlagNetMismatch, SeverityRed, o)

	require.NotNil(t, f.Delta)
	assert.Equal(t, Cents(-1000), *f.Delta)
	assert.Equal(t, CategoryNet, f.Category)
	assert.Contains(t, f.Message, "-$10.00")
	assert.NotEmpty(t, f.Suggestion)
}

func TestFlagCatalog_ListsEveryCode(t *testing.T) {
	cat := FlagCatalog()
	require.Len(t, cat, int(flagCodeCount))
	assert.Equal(t, "ALLOWANCE_VERIFIED", cat[0].Code)
	assert.Equal(t, "NET_MATH_MISMATCH", cat[len(cat)-1].Code)
	for _, info := range cat {
		assert.NotEmpty(t, info.Severities, info.Code)
	}
}
