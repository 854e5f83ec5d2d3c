package audit_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slimmugnai-oss/garrison-ledger-sub009/audit"
	"github.com/slimmugnai-oss/garrison-ledger-sub009/factory"
	"github.com/slimmugnai-oss/garrison-ledger-sub009/ratetable"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// Expected figures for an E-5 over 6, with dependents, Fort Bragg, NC, March
// 2025, $500k SGLI, against the embedded sample bundle.
const (
	e5BasePay  audit.Cents = 352290
	e5BAH      audit.Cents = 168700
	e5BAS      audit.Cents = 46577
	e5Federal  audit.Cents = 77504 // 22% of base pay
	e5State    audit.Cents = 14972 // 4.25%
	e5FICA     audit.Cents = 21842 // 6.2%
	e5Medicare audit.Cents = 5108  // 1.45%
	e5AFRH     audit.Cents = 50
	e5SGLI     audit.Cents = 3100
	e5Net      audit.Cents = 444991
)

func sampleBundle(t *testing.T) *ratetable.Bundle {
	t.Helper()
	b, err := factory.NewBundleFactory().LoadSample()
	require.NoError(t, err)
	return b
}

func e5Profile() audit.Profile {
	return audit.Profile{
		Grade:          "E-5",
		YearsOfService: 6,
		DutyLocation:   "28310",
		HasDependents:  true,
		State:          "NC",
		Period:         audit.NewPayPeriod(2025, time.March),
		SGLICoverage:   50_000_000,
	}
}

func e5Lines() []audit.RawLine {
	return []audit.RawLine{
		{RawCode: "BASEPAY", Description: "BASE PAY", Amount: e5BasePay, Section: audit.SectionAllowance},
		{RawCode: "BAH", Description: "BAH W/DEP", Amount: e5BAH, Section: audit.SectionAllowance},
		{RawCode: "BAS", Description: "BAS", Amount: e5BAS, Section: audit.SectionAllowance},
		{RawCode: "FED_TAX", Description: "FEDERAL TAXES", Amount: e5Federal, Section: audit.SectionTax},
		{RawCode: "STATE_TAX", Description: "STATE TAXES", Amount: e5State, Section: audit.SectionTax},
		{RawCode: "FICA_SS", Description: "FICA-SOC SECURITY", Amount: e5FICA, Section: audit.SectionTax},
		{RawCode: "FICA_MED", Description: "FICA-MEDICARE", Amount: e5Medicare, Section: audit.SectionTax},
		{RawCode: "AFRH", Description: "AFRH", Amount: e5AFRH, Section: audit.SectionDeduction},
		{RawCode: "SGLI", Description: "SGLI", Amount: e5SGLI, Section: audit.SectionDeduction},
	}
}

func e5Request() audit.Request {
	return audit.Request{Profile: e5Profile(), Lines: e5Lines(), ReportedNet: e5Net}
}

func run(t *testing.T, req audit.Request) *audit.Result {
	t.Helper()
	res, err := audit.NewEngine().Run(req, sampleBundle(t))
	require.NoError(t, err)
	return res
}

func flagsFor(res *audit.Result, code audit.Code) []audit.Flag {
	var out []audit.Flag
	for _, f := range res.Flags {
		if f.LineCode == code {
			out = append(out, f)
		}
	}
	return out
}

func flagsWith(res *audit.Result, sev audit.Severity) []audit.Flag {
	var out []audit.Flag
	for _, f := range res.Flags {
		if f.Severity == sev {
			out = append(out, f)
		}
	}
	return out
}

func setLine(lines []audit.RawLine, code string, amount audit.Cents) []audit.RawLine {
	for i := range lines {
		if lines[i].RawCode == code {
			lines[i].Amount = amount
		}
	}
	return lines
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenario_AllCorrect(t *testing.T) {
	// GIVEN: an E-5 whose statement matches the tables exactly
	// WHEN: audited
	res := run(t, e5Request())

	// THEN: every flag is green and the net balances
	for _, f := range res.Flags {
		assert.Equal(t, audit.SeverityGreen, f.Severity, "%s %s: %s", f.Code, f.LineCode, f.Message)
	}
	assert.Equal(t, audit.Cents(0), res.Summary.NetDelta)
	assert.Equal(t, e5Net, res.Summary.ComputedNet)
	assert.Equal(t, e5Net, res.Summary.ExpectedNet)
	assert.True(t, res.Summary.ExpectedNetComplete)
	assert.Len(t, res.Outcomes, 9)
	assert.Len(t, res.Flags, 10, "one flag per outcome plus the net flag")

	last := res.Flags[len(res.Flags)-1]
	assert.Equal(t, audit.FlagNetVerified, last.Code)
}

func TestScenario_AllCorrect_SnapshotAmounts(t *testing.T) {
	res := run(t, e5Request())
	s := res.Snapshot

	want := map[audit.Code]audit.Cents{
		audit.CodeBasePay:    e5BasePay,
		audit.CodeBAH:        e5BAH,
		audit.CodeBAS:        e5BAS,
		audit.CodeFederalTax: e5Federal,
		audit.CodeStateTax:   e5State,
		audit.CodeFICA:       e5FICA,
		audit.CodeMedicare:   e5Medicare,
		audit.CodeAFRH:       e5AFRH,
		audit.CodeSGLI:       e5SGLI,
	}
	require.Len(t, s.Entries, len(want))
	for code, amount := range want {
		assert.Equal(t, amount, s.Entries[code].Amount, code)
	}

	// Housing and subsistence are excluded from every base by rule.
	assert.Equal(t, e5BasePay, s.TaxableBases["FEDERAL"])
	assert.Equal(t, e5BasePay, s.TaxableBases["STATE"])
	assert.Equal(t, e5BasePay, s.TaxableBases["FICA"])
	assert.Equal(t, e5BasePay, s.TaxableBases["MEDICARE"])
	assert.False(t, s.Incomplete)
	assert.False(t, s.FICACapped)
}

func TestScenario_AllowanceMismatch(t *testing.T) {
	// GIVEN: housing paid $300 above the table, net as the member reported it
	req := e5Request()
	req.Lines = setLine(req.Lines, "BAH", e5BAH+30000)

	// WHEN: audited
	res := run(t, req)

	// THEN: one red allowance flag, one red net flag, taxes still green
	red := flagsWith(res, audit.SeverityRed)
	require.Len(t, red, 2)

	assert.Equal(t, audit.FlagAllowanceMismatch, red[0].Code)
	assert.Equal(t, audit.CodeBAH, red[0].LineCode)
	require.NotNil(t, red[0].Delta)
	assert.Equal(t, audit.Cents(30000), *red[0].Delta)

	assert.Equal(t, audit.FlagNetMismatch, red[1].Code)
	assert.Equal(t, audit.Cents(-30000), res.Summary.NetDelta)

	for _, code := range []audit.Code{audit.CodeFederalTax, audit.CodeStateTax, audit.CodeFICA, audit.CodeMedicare} {
		fs := flagsFor(res, code)
		require.Len(t, fs, 1, code)
		assert.Equal(t, audit.SeverityGreen, fs[0].Severity, code)
		assert.Equal(t, audit.FlagTaxInRange, fs[0].Code, code)
	}
}

func TestScenario_CappedTaxBase_Exhausted(t *testing.T) {
	// GIVEN: year-to-date wages already past the Social Security wage base,
	// and withholding that ignored the cap
	req := e5Request()
	req.Profile.YTDSocialSecurityWages = 17_700_000

	// WHEN: audited
	res := run(t, req)

	// THEN: the FICA base is zero and the withholding is flagged yellow
	assert.Equal(t, audit.Cents(0), res.Snapshot.TaxableBases["FICA"])
	assert.Equal(t, e5BasePay, res.Snapshot.TaxableBases[audit.BaseFICAUncapped])
	assert.True(t, res.Snapshot.WageBaseExhausted)

	fs := flagsFor(res, audit.CodeFICA)
	require.Len(t, fs, 1)
	assert.Equal(t, audit.SeverityYellow, fs[0].Severity)
	assert.Equal(t, audit.FlagTaxOutOfRange, fs[0].Code)

	// Medicare has no cap
	med := flagsFor(res, audit.CodeMedicare)
	require.Len(t, med, 1)
	assert.Equal(t, audit.SeverityGreen, med[0].Severity)
}

func TestScenario_CappedTaxBase_PartialRoom(t *testing.T) {
	// GIVEN: only $1,000 of room left under the wage base
	req := e5Request()
	req.Profile.YTDSocialSecurityWages = 17_610_000 - 100_000

	res := run(t, req)

	// THEN: expected FICA is computed on the remaining room
	assert.Equal(t, audit.Cents(100_000), res.Snapshot.TaxableBases["FICA"])
	assert.Equal(t, audit.Cents(6200), res.Snapshot.Entries[audit.CodeFICA].Amount)
	assert.True(t, res.Snapshot.FICACapped)

	// AND: withholding on the full base is out of range, not implausible
	fs := flagsFor(res, audit.CodeFICA)
	require.Len(t, fs, 1)
	assert.Equal(t, audit.FlagTaxOutOfRange, fs[0].Code)
	assert.Equal(t, audit.SeverityYellow, fs[0].Severity)
	assert.Contains(t, fs[0].Message, "wage base")

	// AND: withholding on the capped base is green
	req.Lines = setLine(req.Lines, "FICA_SS", 6200)
	req.ReportedNet = e5Net + (e5FICA - 6200)
	res = run(t, req)
	fs = flagsFor(res, audit.CodeFICA)
	require.Len(t, fs, 1)
	assert.Equal(t, audit.SeverityGreen, fs[0].Severity)
}

func TestScenario_CodeVariant(t *testing.T) {
	// GIVEN: the same statement with alias spellings of the tax codes
	standard := run(t, e5Request())

	req := e5Request()
	for i := range req.Lines {
		switch req.Lines[i].RawCode {
		case "FED_TAX":
			req.Lines[i].RawCode = "FITW"
		case "FICA_SS":
			req.Lines[i].RawCode = "oasdi"
		case "FICA_MED":
			req.Lines[i].RawCode = "FICA-Medicare"
		case "STATE_TAX":
			req.Lines[i].RawCode = "sitw"
		}
	}

	// WHEN: audited
	variant := run(t, req)

	// THEN: flags are identical
	assert.Equal(t, standard.Flags, variant.Flags)
	assert.Equal(t, standard.Summary, variant.Summary)
}

func TestScenario_MissingLocation(t *testing.T) {
	// GIVEN: a duty location the bundle does not know
	req := e5Request()
	req.Profile.DutyLocation = "99999"

	// WHEN: audited
	res := run(t, req)

	// THEN: housing degrades to a data-quality flag, never a zero
	entry := res.Snapshot.Entries[audit.CodeBAH]
	assert.True(t, entry.Incomplete)
	assert.True(t, res.Snapshot.Incomplete)
	assert.Contains(t, res.Snapshot.Missing, audit.CodeBAH)

	fs := flagsFor(res, audit.CodeBAH)
	require.Len(t, fs, 1)
	assert.Equal(t, audit.FlagRateUnavailable, fs[0].Code)
	assert.Equal(t, audit.SeverityYellow, fs[0].Severity)
	assert.Equal(t, audit.CategoryDataQuality, fs[0].Category)
	assert.Contains(t, fs[0].Message, "99999")

	// AND: the rest of the audit still completes
	assert.Empty(t, flagsWith(res, audit.SeverityRed))
	assert.False(t, res.Summary.ExpectedNetComplete)
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestRun_Deterministic(t *testing.T) {
	req := e5Request()
	req.Lines = append(req.Lines,
		audit.RawLine{RawCode: "ZZTOP", Amount: 1000, Section: audit.SectionDeduction},
		audit.RawLine{RawCode: "TSP", Amount: 17600, Section: audit.SectionDeduction},
		audit.RawLine{RawCode: "DEBT", Amount: 2500, Section: audit.SectionDebt},
	)
	req.Profile.State = "CA"

	first := run(t, req)
	for i := 0; i < 5; i++ {
		again := run(t, req)
		a, err := json.Marshal(first.Flags)
		require.NoError(t, err)
		b, err := json.Marshal(again.Flags)
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b))
		assert.Equal(t, first.Summary, again.Summary)
	}
}

func TestCompare_EveryLineInExactlyOneOutcome(t *testing.T) {
	// GIVEN: duplicates, unknowns, unmodeled codes and a line with no expectation
	req := e5Request()
	req.Lines = append(req.Lines,
		audit.RawLine{RawCode: "BAH", Amount: 100, Section: audit.SectionAllowance},
		audit.RawLine{RawCode: "MYSTERY", Amount: 500, Section: audit.SectionDeduction},
		audit.RawLine{RawCode: "mystery", Amount: 500, Section: audit.SectionDeduction},
		audit.RawLine{RawCode: "OTHER THING", Amount: 700, Section: audit.SectionDeduction},
		audit.RawLine{RawCode: "TSP", Amount: 17600, Section: audit.SectionDeduction},
		audit.RawLine{RawCode: "HFP", Amount: 22500, Section: audit.SectionAllowance},
	)

	res := run(t, req)

	seen := make(map[int]int)
	keys := make(map[string]int)
	for _, o := range res.Outcomes {
		keys[o.Key]++
		for _, idx := range o.LineIndexes {
			seen[idx]++
		}
	}
	for i := range req.Lines {
		assert.Equal(t, 1, seen[i], "line %d", i)
	}
	for code := range res.Snapshot.Entries {
		assert.Equal(t, 1, keys[string(code)], code)
	}
	for k, n := range keys {
		assert.Equal(t, 1, n, k)
	}

	// duplicate BAH lines are summed
	for _, o := range res.Outcomes {
		if o.Code == audit.CodeBAH {
			assert.Equal(t, e5BAH+100, o.Actual)
			assert.Len(t, o.LineIndexes, 2)
		}
	}
	// two spellings of one unknown share an outcome; a different unknown does not
	assert.Equal(t, 1, keys["UNKNOWN:MYSTERY"])
	assert.Equal(t, 1, keys["UNKNOWN:OTHER THING"])
}

func TestExactCheck_BoundaryIsGreen(t *testing.T) {
	req := e5Request()
	req.Lines = setLine(req.Lines, "BAH", e5BAH+100)
	req.ReportedNet = e5Net + 100
	fs := flagsFor(run(t, req), audit.CodeBAH)
	require.Len(t, fs, 1)
	assert.Equal(t, audit.SeverityGreen, fs[0].Severity, "exactly the tolerance is green")

	req = e5Request()
	req.Lines = setLine(req.Lines, "BAH", e5BAH-101)
	req.ReportedNet = e5Net - 101
	fs = flagsFor(run(t, req), audit.CodeBAH)
	require.Len(t, fs, 1)
	assert.Equal(t, audit.SeverityRed, fs[0].Severity)
	assert.Equal(t, audit.FlagAllowanceMismatch, fs[0].Code)
}

func TestReconcile_NetToleranceBoundary(t *testing.T) {
	netFlag := func(res *audit.Result) audit.Flag {
		t.Helper()
		for _, f := range res.Flags {
			if f.Category == audit.CategoryNet {
				return f
			}
		}
		t.Fatal("no net flag")
		return audit.Flag{}
	}

	for _, off := range []audit.Cents{100, -100} {
		// GIVEN: a reported net exactly one tolerance away from the computed net
		req := e5Request()
		req.ReportedNet = e5Net + off

		// WHEN: audited
		f := netFlag(run(t, req))

		// THEN: the boundary is green
		assert.Equal(t, audit.FlagNetVerified, f.Code, "delta %d", off)
		assert.Equal(t, audit.SeverityGreen, f.Severity, "delta %d", off)
	}

	for _, off := range []audit.Cents{101, -101} {
		req := e5Request()
		req.ReportedNet = e5Net + off

		res := run(t, req)
		f := netFlag(res)

		assert.Equal(t, audit.FlagNetMismatch, f.Code, "delta %d", off)
		assert.Equal(t, audit.SeverityRed, f.Severity, "delta %d", off)
		require.NotNil(t, f.Delta)
		assert.Equal(t, off, *f.Delta)
		assert.Equal(t, off, res.Summary.NetDelta)
	}
}

func TestReconcile_NetIdentityHolds(t *testing.T) {
	req := e5Request()
	req.Lines = append(req.Lines,
		audit.RawLine{RawCode: "ADJ", Amount: -4500, Section: audit.SectionAdjustment},
		audit.RawLine{RawCode: "ALLOT", Amount: 20000, Section: audit.SectionAllotment},
		audit.RawLine{RawCode: "DEBT", Amount: 2500, Section: audit.SectionDebt},
	)
	req.ReportedNet = 1

	res := run(t, req)
	s := res.Summary

	var allowances, taxes, deductions audit.Cents
	for _, l := range req.Lines {
		switch l.Section {
		case audit.SectionAllowance, audit.SectionAdjustment:
			allowances += l.Amount
		case audit.SectionTax:
			taxes += l.Amount
		default:
			deductions += l.Amount
		}
	}
	assert.Equal(t, allowances-taxes-deductions, s.ComputedNet)
	assert.Equal(t, s.Allowances-s.Taxes-s.Deductions, s.ComputedNet)
	assert.Equal(t, s.ReportedNet-s.ComputedNet, s.NetDelta)
	assert.Equal(t, s.NetDelta, s.Proof[len(s.Proof)-1].Running)
}

// =============================================================================
// FLAG BEHAVIOUR
// =============================================================================

func TestFlags_UnrecognizedDebtAndUnverified(t *testing.T) {
	req := e5Request()
	req.Lines = append(req.Lines,
		audit.RawLine{RawCode: "QX-77", Description: "something odd", Amount: 1234, Section: audit.SectionDeduction},
		audit.RawLine{RawCode: "DEBT", Amount: 2500, Section: audit.SectionDebt},
		audit.RawLine{RawCode: "TSP ROTH", Amount: 17600, Section: audit.SectionDeduction},
	)
	req.ReportedNet = e5Net - 1234 - 2500 - 17600

	res := run(t, req)

	unknown := flagsFor(res, audit.CodeUnknown)
	require.Len(t, unknown, 1)
	assert.Equal(t, audit.SeverityYellow, unknown[0].Severity)
	assert.Equal(t, audit.FlagUnrecognizedCode, unknown[0].Code)
	assert.Contains(t, unknown[0].Message, `"QX-77"`)

	debt := flagsFor(res, audit.CodeDebt)
	require.Len(t, debt, 1)
	assert.Equal(t, audit.FlagDebtPresent, debt[0].Code)
	assert.Equal(t, audit.SeverityYellow, debt[0].Severity)

	tsp := flagsFor(res, audit.CodeTSP)
	require.Len(t, tsp, 1)
	assert.Equal(t, audit.FlagUnverifiedLine, tsp[0].Code)
	assert.Equal(t, audit.SeverityGreen, tsp[0].Severity)
}

func TestFlags_SortedBySeverityThenCategory(t *testing.T) {
	req := e5Request()
	req.Lines = setLine(req.Lines, "BAS", 0)
	req.Lines = append(req.Lines, audit.RawLine{RawCode: "WHAT", Amount: 5, Section: audit.SectionDeduction})

	res := run(t, req)

	rank := map[audit.Severity]int{audit.SeverityRed: 0, audit.SeverityYellow: 1, audit.SeverityGreen: 2}
	for i := 1; i < len(res.Flags); i++ {
		assert.LessOrEqual(t, rank[res.Flags[i-1].Severity], rank[res.Flags[i].Severity])
	}
	assert.Equal(t, audit.SeverityRed, res.Flags[0].Severity)
}

func TestFlags_MissingAllowance(t *testing.T) {
	req := e5Request()
	req.Lines = req.Lines[1:] // drop base pay
	req.ReportedNet = e5Net - e5BasePay

	fs := flagsFor(run(t, req), audit.CodeBasePay)
	require.Len(t, fs, 1)
	assert.Equal(t, audit.FlagAllowanceMissing, fs[0].Code)
	assert.Equal(t, audit.SeverityRed, fs[0].Severity)
	require.NotNil(t, fs[0].Delta)
	assert.Equal(t, -e5BasePay, *fs[0].Delta)
}

func TestFlags_SpecialPayNotApplicable(t *testing.T) {
	// GIVEN: an officer claiming an enlisted-only special pay
	req := e5Request()
	req.Profile.Grade = "O-3"
	req.Profile.SpecialPays = []ratetable.SpecialPay{"special_duty", "hostile_fire"}

	res := run(t, req)

	// THEN: SDAP is not applicable, HFP is expected
	require.Len(t, res.Snapshot.NotApplicable, 1)
	assert.Equal(t, ratetable.SpecialPay("special_duty"), res.Snapshot.NotApplicable[0].Flag)
	_, ok := res.Snapshot.Entries[audit.CodeSDAP]
	assert.False(t, ok)
	assert.Equal(t, audit.Cents(22500), res.Snapshot.Entries[audit.CodeHFP].Amount)

	// AND: officers pay no AFRH
	_, ok = res.Snapshot.Entries[audit.CodeAFRH]
	assert.False(t, ok)
	afrh := flagsFor(res, audit.CodeAFRH)
	require.Len(t, afrh, 1)
	assert.Equal(t, audit.FlagDeductionMismatch, afrh[0].Code)
}

func TestFlags_SpecialPayPaidWithoutEntitlement(t *testing.T) {
	req := e5Request()
	req.Lines = append(req.Lines, audit.RawLine{RawCode: "Imminent Danger Pay", Amount: 22500, Section: audit.SectionAllowance})
	req.ReportedNet = e5Net + 22500

	fs := flagsFor(run(t, req), audit.CodeHFP)
	require.Len(t, fs, 1)
	assert.Equal(t, audit.FlagAllowanceUnexpected, fs[0].Code)
	assert.Equal(t, audit.SeverityRed, fs[0].Severity)
}

func TestFlags_ClampedServiceIsEstimated(t *testing.T) {
	// GIVEN: an E-9 below the first E-9 bracket
	req := e5Request()
	req.Profile.Grade = "E-9"
	req.Profile.YearsOfService = 4

	res := run(t, req)

	entry := res.Snapshot.Entries[audit.CodeBasePay]
	assert.Less(t, entry.Confidence, 1.0)
	assert.Equal(t, audit.Cents(621330), entry.Amount)

	var estimated []audit.Flag
	for _, f := range res.Flags {
		if f.Code == audit.FlagRateEstimated {
			estimated = append(estimated, f)
		}
	}
	require.NotEmpty(t, estimated)
	assert.Equal(t, audit.SeverityYellow, estimated[0].Severity)
}

func TestFlags_UnknownStateUsesFallback(t *testing.T) {
	req := e5Request()
	req.Profile.State = "ZZ"

	res := run(t, req)
	entry := res.Snapshot.Entries[audit.CodeStateTax]
	assert.InDelta(t, 0.6, entry.Confidence, 0.0001)
	assert.Contains(t, entry.Note, "fallback")
	assert.False(t, entry.Incomplete)
}

func TestFlags_ExhaustedCapWithoutFICALineIsGreen(t *testing.T) {
	req := e5Request()
	req.Profile.YTDSocialSecurityWages = 20_000_000
	var lines []audit.RawLine
	for _, l := range req.Lines {
		if l.RawCode != "FICA_SS" {
			lines = append(lines, l)
		}
	}
	req.Lines = lines
	req.ReportedNet = e5Net + e5FICA

	res := run(t, req)
	fs := flagsFor(res, audit.CodeFICA)
	require.Len(t, fs, 1)
	assert.Equal(t, audit.SeverityGreen, fs[0].Severity)
	assert.Empty(t, flagsWith(res, audit.SeverityRed))
}

func TestFlags_CombatZoneExcludesEnlistedPay(t *testing.T) {
	req := e5Request()
	req.Profile.CombatZone = true
	req.Lines = setLine(req.Lines, "FED_TAX", 0)
	req.Lines = setLine(req.Lines, "STATE_TAX", 0)
	req.ReportedNet = e5Net + e5Federal + e5State

	res := run(t, req)
	assert.Equal(t, audit.Cents(0), res.Snapshot.TaxableBases["FEDERAL"])
	assert.Equal(t, e5BasePay, res.Snapshot.TaxableBases["FICA"], "FICA is still owed in a combat zone")
	assert.Empty(t, flagsWith(res, audit.SeverityRed))
	assert.Empty(t, flagsWith(res, audit.SeverityYellow))
}

// =============================================================================
// ERRORS
// =============================================================================

func TestRun_InvalidInputIsOneError(t *testing.T) {
	req := e5Request()
	req.Profile.Grade = "E-12"
	req.Profile.Period = audit.NewPayPeriod(2025, 13)
	req.Lines = append(req.Lines,
		audit.RawLine{RawCode: "BAH", Amount: -5, Section: audit.SectionAllowance},
		audit.RawLine{RawCode: "BAH", Amount: 5, Section: "BONUS"},
	)

	res, err := audit.NewEngine().Run(req, sampleBundle(t))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, audit.ErrInvalidInput))
	assert.True(t, audit.IsClientError(err))

	var inputErr *audit.InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Len(t, inputErr.Problems, 4)
}

func TestRun_KnownCodeInWrongSectionRejected(t *testing.T) {
	// GIVEN: federal withholding filed under ALLOWANCE
	req := e5Request()
	req.Lines = append(req.Lines, audit.RawLine{RawCode: "FITW", Amount: 500, Section: audit.SectionAllowance})
	idx := len(req.Lines) - 1

	// WHEN: audited
	res, err := audit.NewEngine().Run(req, sampleBundle(t))

	// THEN: it is an input problem on that line, not a flag
	require.ErrorIs(t, err, audit.ErrInvalidInput)
	assert.Nil(t, res)
	var inputErr *audit.InputError
	require.True(t, errors.As(err, &inputErr))
	require.Len(t, inputErr.Problems, 1)
	assert.Equal(t, idx, inputErr.Problems[0].Line)
	assert.Equal(t, "section", inputErr.Problems[0].Field)
	assert.Contains(t, inputErr.Problems[0].Reason, "FED_TAX belongs in TAX")

	// AND: unrecognized codes may sit in any section
	req.Lines[idx] = audit.RawLine{RawCode: "MISC CREDIT", Amount: 500, Section: audit.SectionAllowance}
	req.ReportedNet = e5Net + 500
	run(t, req)
}

func TestRun_NegativeAdjustmentAllowed(t *testing.T) {
	req := e5Request()
	req.Lines = append(req.Lines, audit.RawLine{RawCode: "ADJ", Amount: -1000, Section: audit.SectionAdjustment})
	req.ReportedNet = e5Net - 1000

	res := run(t, req)
	assert.Equal(t, audit.Cents(0), res.Summary.NetDelta)
}

func TestRun_RequiresBundle(t *testing.T) {
	_, err := audit.NewEngine().Run(e5Request(), nil)
	assert.ErrorIs(t, err, audit.ErrBundleRequired)
}

func TestRun_LooseGradeIsNormalized(t *testing.T) {
	req := e5Request()
	req.Profile.Grade = "e5"
	res := run(t, req)
	assert.Equal(t, ratetable.Grade("E-5"), res.Profile.Grade)
}
