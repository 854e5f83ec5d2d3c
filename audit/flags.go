/*
flags.go - Flag generation

PURPOSE:
  Turns comparison outcomes into user-facing flags. All wording lives in one
  table, flagTemplates, indexed by FlagCode. The table is a fixed-size array
  over the whole enumeration: a new FlagCode without a row leaves an empty
  slot, and flags_test.go rejects empty slots and (code, severity) pairs the
  comparator can emit without text.

FLAG CODES ARE A PUBLIC CONTRACT:
  Names are stable strings. Adding a code is safe; renaming, removing or
  changing the meaning of one is a breaking change for stored results.

ORDERING:
  Stable sort by severity (red, yellow, green), then category, then canonical
  code, then flag code, then key.
*/
package audit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FlagCode is the closed enumeration of flag codes.
type FlagCode int

const (
	FlagAllowanceVerified FlagCode = iota
	FlagAllowanceMismatch
	FlagAllowanceMissing
	FlagAllowanceUnexpected
	FlagTaxInRange
	FlagTaxOutOfRange
	FlagTaxImplausible
	FlagTaxMissing
	FlagDeductionVerified
	FlagDeductionMismatch
	FlagUnverifiedLine
	FlagDebtPresent
	FlagUnrecognizedCode
	FlagRateUnavailable
	FlagRateEstimated
	FlagNetVerified
	FlagNetMismatch

	flagCodeCount
)

// FlagCatalogVersion identifies the set of flag codes below.
const FlagCatalogVersion = "v1"

// Flag is the engine's externally visible unit of output.
type Flag struct {
	Severity   Severity
	Code       FlagCode
	Category   Category
	LineCode   Code
	Key        string
	Message    string
	Suggestion string
	Delta      *Cents
	Citation   string
}

// =============================================================================
// TEMPLATE TABLE
// =============================================================================

type flagText struct {
	message    string
	suggestion string
}

type flagTemplate struct {
	name      string
	category  Category // empty: take the outcome's category
	citation  string   // used when the outcome carries none
	showDelta bool
	text      map[Severity]flagText
}

// Placeholders: {name} {code} {raw} {expected} {actual} {delta} {rate}
// {range} {expected_rate} {basis} {note}
var flagTemplates = [flagCodeCount]flagTemplate{
	FlagAllowanceVerified: {
		name: "ALLOWANCE_VERIFIED",
		text: map[Severity]flagText{
			SeverityGreen: {message: "{name} of {actual} matches the expected {expected}."},
		},
	},
	FlagAllowanceMismatch: {
		name:      "ALLOWANCE_MISMATCH",
		showDelta: true,
		text: map[Severity]flagText{
			SeverityRed: {
				message:    "{name} is {actual} but the rate table says {expected} ({delta}).",
				suggestion: "Ask your finance office to review {name}. Bring this statement and the rate table citation.",
			},
		},
	},
	FlagAllowanceMissing: {
		name:      "ALLOWANCE_MISSING",
		showDelta: true,
		text: map[Severity]flagText{
			SeverityRed: {
				message:    "{name} of {expected} was expected but does not appear on the statement.",
				suggestion: "Confirm your entitlement to {name} with your finance office; it may need to be started.",
			},
		},
	},
	FlagAllowanceUnexpected: {
		name:      "ALLOWANCE_UNEXPECTED",
		showDelta: true,
		text: map[Severity]flagText{
			SeverityRed: {
				message:    "{name} of {actual} was paid but your profile does not entitle you to it.",
				suggestion: "Check whether your profile is missing a special pay, or expect a future debt for this amount.",
			},
		},
	},
	FlagTaxInRange: {
		name: "TAX_PCT_IN_RANGE",
		text: map[Severity]flagText{
			SeverityGreen: {message: "{name} of {actual} is {rate} of {basis}, within the expected {range}."},
		},
	},
	FlagTaxOutOfRange: {
		name:      "TAX_PCT_OUT_OF_RANGE",
		showDelta: true,
		text: map[Severity]flagText{
			SeverityYellow: {
				message:    "{name} of {actual} is {rate} of {basis}, outside the expected {range}. {note}",
				suggestion: "Review your withholding elections; if they are unchanged, ask finance to confirm the taxable base.",
			},
		},
	},
	FlagTaxImplausible: {
		name:      "TAX_PCT_IMPLAUSIBLE",
		showDelta: true,
		text: map[Severity]flagText{
			SeverityRed: {
				message:    "{name} of {actual} is {rate} of {basis}, far outside the expected {range}.",
				suggestion: "This withholding is not explained by any normal election. Contact your finance office.",
			},
		},
	},
	FlagTaxMissing: {
		name:      "TAX_MISSING",
		showDelta: true,
		text: map[Severity]flagText{
			SeverityYellow: {
				message:    "No {name} was withheld; about {expected} was expected.",
				suggestion: "If you did not claim an exemption, you may owe this amount when you file.",
			},
		},
	},
	FlagDeductionVerified: {
		name: "DEDUCTION_VERIFIED",
		text: map[Severity]flagText{
			SeverityGreen: {message: "{name} of {actual} matches the expected {expected}."},
		},
	},
	FlagDeductionMismatch: {
		name:      "DEDUCTION_MISMATCH",
		showDelta: true,
		text: map[Severity]flagText{
			SeverityRed: {
				message:    "{name} is {actual} but {expected} was expected ({delta}).",
				suggestion: "Verify your {name} election; a wrong deduction usually means a records error.",
			},
		},
	},
	FlagUnverifiedLine: {
		name: "UNVERIFIED_LINE",
		text: map[Severity]flagText{
			SeverityGreen: {message: "{name} of {actual} was recorded but not verified. {note}"},
		},
	},
	FlagDebtPresent: {
		name:     "DEBT_PRESENT",
		citation: "DoD FMR Vol. 16",
		text: map[Severity]flagText{
			SeverityYellow: {
				message:    "A debt collection of {actual} was taken this period.",
				suggestion: "Request the debt notification letter and confirm the balance and repayment schedule.",
			},
		},
	},
	FlagUnrecognizedCode: {
		name: "UNRECOGNIZED_CODE",
		text: map[Severity]flagText{
			SeverityYellow: {
				message:    "Line {raw} ({actual}) does not match any known pay, tax or deduction code.",
				suggestion: "Check the spelling against your statement, or ask finance what this entry is.",
			},
		},
	},
	FlagRateUnavailable: {
		name:     "RATE_UNAVAILABLE",
		category: CategoryDataQuality,
		text: map[Severity]flagText{
			SeverityYellow: {
				message:    "{name} could not be verified: {note}",
				suggestion: "Check the duty location and grade in your profile. This is a data gap, not a pay error.",
			},
		},
	},
	FlagRateEstimated: {
		name:     "RATE_ESTIMATED",
		category: CategoryDataQuality,
		text: map[Severity]flagText{
			SeverityYellow: {message: "{name} was checked against an estimated rate. {note}"},
		},
	},
	FlagNetVerified: {
		name:     "NET_MATH_VERIFIED",
		category: CategoryNet,
		text: map[Severity]flagText{
			SeverityGreen: {message: "Net pay of {actual} equals allowances minus taxes minus deductions."},
		},
	},
	FlagNetMismatch: {
		name:      "NET_MATH_MISMATCH",
		category:  CategoryNet,
		showDelta: true,
		text: map[Severity]flagText{
			SeverityRed: {
				message:    "Reported net pay of {actual} does not equal the computed {expected} ({delta}).",
				suggestion: "Recheck the amounts you entered; if they match the statement, the statement itself does not add up.",
			},
		},
	},
}

// =============================================================================
// FLAG CODE NAMES
// =============================================================================

func (c FlagCode) String() string {
	if c < 0 || c >= flagCodeCount {
		return fmt.Sprintf("FlagCode(%d)", int(c))
	}
	return flagTemplates[c].name
}

// ParseFlagCode reverses String.
func ParseFlagCode(s string) (FlagCode, error) {
	for c := FlagCode(0); c < flagCodeCount; c++ {
		if flagTemplates[c].name == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown flag code %q", s)
}

func (c FlagCode) MarshalText() ([]byte, error) {
	if c < 0 || c >= flagCodeCount {
		return nil, fmt.Errorf("flag code %d out of range", int(c))
	}
	return []byte(c.String()), nil
}

func (c *FlagCode) UnmarshalText(b []byte) error {
	parsed, err := ParseFlagCode(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

var (
	_ json.Marshaler   = Flag{}
	_ json.Unmarshaler = (*Flag)(nil)
)

type flagJSON struct {
	Severity   Severity `json:"severity"`
	FlagCode   FlagCode `json:"flag_code"`
	Category   Category `json:"category"`
	LineCode   Code     `json:"line_code,omitempty"`
	Key        string   `json:"key,omitempty"`
	Message    string   `json:"message"`
	Suggestion *string  `json:"suggestion"`
	Delta      *Cents   `json:"delta_cents"`
	Citation   *string  `json:"citation"`
}

// MarshalJSON renders optional fields as null.
func (f Flag) MarshalJSON() ([]byte, error) {
	out := flagJSON{
		Severity: f.Severity,
		FlagCode: f.Code,
		Category: f.Category,
		LineCode: f.LineCode,
		Key:      f.Key,
		Message:  f.Message,
		Delta:    f.Delta,
	}
	if f.Suggestion != "" {
		s := f.Suggestion
		out.Suggestion = &s
	}
	if f.Citation != "" {
		c := f.Citation
		out.Citation = &c
	}
	return json.Marshal(out)
}

func (f *Flag) UnmarshalJSON(b []byte) error {
	var in flagJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*f = Flag{
		Severity: in.Severity,
		Code:     in.FlagCode,
		Category: in.Category,
		LineCode: in.LineCode,
		Key:      in.Key,
		Message:  in.Message,
		Delta:    in.Delta,
	}
	if in.Suggestion != nil {
		f.Suggestion = *in.Suggestion
	}
	if in.Citation != nil {
		f.Citation = *in.Citation
	}
	return nil
}

// FlagCodeInfo describes one code for publishing.
type FlagCodeInfo struct {
	Code       string     `json:"code"`
	Category   Category   `json:"category,omitempty"`
	Severities []Severity `json:"severities"`
}

// FlagCatalog lists every flag code and the severities it can carry.
func FlagCatalog() []FlagCodeInfo {
	out := make([]FlagCodeInfo, 0, flagCodeCount)
	for c := FlagCode(0); c < flagCodeCount; c++ {
		t := flagTemplates[c]
		info := FlagCodeInfo{Code: t.name, Category: t.category}
		for _, sev := range []Severity{SeverityRed, SeverityYellow, SeverityGreen} {
			if _, ok := t.text[sev]; ok {
				info.Severities = append(info.Severities, sev)
			}
		}
		out = append(out, info)
	}
	return out
}

// =============================================================================
// GENERATION
// =============================================================================

// GenerateFlags emits one flag per outcome, plus RATE_ESTIMATED for every
// outcome checked against a reduced-confidence rate. Output is sorted.
func GenerateFlags(outcomes []Outcome) []Flag {
	flags := make([]Flag, 0, len(outcomes)+2)
	for _, o := range outcomes {
		flags = append(flags, render(o.Flag, o.Severity, o))
		if o.HasExpected && o.Confidence > 0 && o.Confidence < confidenceExact {
			est := o
			est.Category = CategoryDataQuality
			flags = append(flags, render(FlagRateEstimated, SeverityYellow, est))
		}
	}
	SortFlags(flags)
	return flags
}

// SortFlags orders flags in place.
func SortFlags(flags []Flag) {
	sort.SliceStable(flags, func(i, j int) bool {
		a, b := flags[i], flags[j]
		if a.Severity != b.Severity {
			return a.Severity.rank() < b.Severity.rank()
		}
		if a.Category != b.Category {
			return categoryOrder[a.Category] < categoryOrder[b.Category]
		}
		if a.LineCode != b.LineCode {
			return a.LineCode < b.LineCode
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Key < b.Key
	})
}

// render fills a template. A missing (code, severity) row is a programming
// error caught by tests; it still renders rather than panicking.
func render(code FlagCode, sev Severity, o Outcome) Flag {
	t := flagTemplates[code]
	text, ok := t.text[sev]
	if !ok {
		text = flagText{message: t.name + ": {name}"}
	}

	f := Flag{
		Severity: sev,
		Code:     code,
		Category: o.Category,
		LineCode: o.Code,
		Key:      o.Key,
		Citation: o.Citation,
	}
	if t.category != "" {
		f.Category = t.category
	}
	if f.Citation == "" {
		f.Citation = t.citation
	}
	if t.showDelta {
		d := o.Delta
		f.Delta = &d
	}

	r := strings.NewReplacer(
		"{name}", o.Name,
		"{code}", string(o.Code),
		"{raw}", quoteRaw(o.RawCodes),
		"{expected}", money(o.Expected),
		"{actual}", money(o.Actual),
		"{delta}", signedMoney(o.Delta),
		"{rate}", pct(o.ActualRate.StringFixed(2)),
		"{expected_rate}", pct(o.ExpectedRate.StringFixed(2)),
		"{range}", rateRange(o),
		"{basis}", money(o.Basis),
		"{note}", o.Note,
	)
	f.Message = strings.TrimSpace(r.Replace(text.message))
	f.Suggestion = r.Replace(text.suggestion)
	return f
}

func money(c Cents) string {
	return "$" + c.Dollars().StringFixed(2)
}

func signedMoney(c Cents) string {
	if c >= 0 {
		return "+" + money(c)
	}
	return "-" + money(-c)
}

func pct(s string) string {
	return s + "%"
}

func rateRange(o Outcome) string {
	if o.MinRate.Equal(o.MaxRate) {
		return pct(o.ExpectedRate.StringFixed(2))
	}
	return pct(o.MinRate.StringFixed(2)) + "-" + pct(o.MaxRate.StringFixed(2))
}

func quoteRaw(raws []string) string {
	if len(raws) == 0 {
		return `""`
	}
	return fmt.Sprintf("%q", raws[0])
}
