package audit

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// =============================================================================
// ALIAS TABLE
// =============================================================================

// AliasTableVersion identifies DefaultAliases. Bump it whenever an alias is
// added, removed or retargeted.
const AliasTableVersion = "2025.1"

// DefaultAliases maps historical and variant spellings, already in key form,
// to canonical codes.
func DefaultAliases() map[string]Code {
	return map[string]Code{
		"BASE PAY":         CodeBasePay,
		"BASIC PAY":        CodeBasePay,
		"BP":               CodeBasePay,
		"BASE":             CodeBasePay,
		"MONTHLY BASE PAY": CodeBasePay,

		"BASIC ALLOWANCE FOR HOUSING": CodeBAH,
		"BAH W DEP":                   CodeBAH,
		"BAH WITH DEP":                CodeBAH,
		"BAH WO DEP":                  CodeBAH,
		"BAH W O DEP":                 CodeBAH,
		"BAH WITHOUT DEP":             CodeBAH,
		"BAQ":                         CodeBAH,
		"VHA":                         CodeBAH,
		"HOUSING":                     CodeBAH,
		"HOUSING ALLOWANCE":           CodeBAH,

		"BASIC ALLOWANCE FOR SUBSISTENCE": CodeBAS,
		"SUBSISTENCE":                     CodeBAS,
		"BAS ENL":                         CodeBAS,
		"BAS ENLISTED":                    CodeBAS,
		"BAS OFF":                         CodeBAS,
		"BAS OFFICER":                     CodeBAS,

		"HOSTILE FIRE PAY":    CodeHFP,
		"IMMINENT DANGER PAY": CodeHFP,
		"IDP":                 CodeHFP,
		"HFP IDP":             CodeHFP,
		"IDP HFP":             CodeHFP,

		"FOREIGN LANGUAGE PROFICIENCY PAY":   CodeFLPP,
		"FOREIGN LANGUAGE PROFICIENCY BONUS": CodeFLPP,
		"FLPB":                               CodeFLPP,
		"FOREIGN LANGUAGE":                   CodeFLPP,

		"HARDSHIP DUTY PAY": CodeHDP,
		"HARDSHIP":          CodeHDP,
		"HDP L":             CodeHDP,
		"HDP M":             CodeHDP,

		"SPECIAL DUTY ASSIGNMENT PAY": CodeSDAP,
		"SPECIAL DUTY PAY":            CodeSDAP,
		"SDA":                         CodeSDAP,

		"FITW":                CodeFederalTax,
		"FWT":                 CodeFederalTax,
		"FED TAX":             CodeFederalTax,
		"FED WH":              CodeFederalTax,
		"FEDERAL TAX":         CodeFederalTax,
		"FEDERAL INCOME TAX":  CodeFederalTax,
		"FEDERAL WITHHOLDING": CodeFederalTax,
		"TAXES FED":           CodeFederalTax,

		"SITW":              CodeStateTax,
		"SWT":               CodeStateTax,
		"ST TAX":            CodeStateTax,
		"STATE INCOME TAX":  CodeStateTax,
		"STATE WITHHOLDING": CodeStateTax,
		"TAXES STATE":       CodeStateTax,

		"FICA":              CodeFICA,
		"FICA SS":           CodeFICA,
		"FICA OASDI":        CodeFICA,
		"FICA SOC SEC":      CodeFICA,
		"FICA SOC SECURITY": CodeFICA,
		"OASDI":             CodeFICA,
		"SOC SEC":           CodeFICA,
		"SOCIAL SECURITY":   CodeFICA,
		"SS":                CodeFICA,

		"MEDICARE":      CodeMedicare,
		"FICA MEDICARE": CodeMedicare,
		"FICA MED":      CodeMedicare,
		"MEDI":          CodeMedicare,

		"SERVICEMEMBERS GROUP LIFE INSURANCE": CodeSGLI,
		"SGLI TSGLI":                          CodeSGLI,
		"SGLI INS":                            CodeSGLI,
		"LIFE INS":                            CodeSGLI,

		"ARMED FORCES RETIREMENT HOME": CodeAFRH,
		"AFRH DED":                     CodeAFRH,
		"SOLDIERS HOME":                CodeAFRH,
		"USSAH":                        CodeAFRH,

		"THRIFT SAVINGS PLAN": CodeTSP,
		"TSP TRAD":            CodeTSP,
		"TSP TRADITIONAL":     CodeTSP,
		"TSP ROTH":            CodeTSP,
		"ROTH TSP":            CodeTSP,

		"TRICARE DENTAL": CodeDental,
		"TDP":            CodeDental,
		"FAM DENTAL":     CodeDental,

		"ALLOT":                   CodeAllotment,
		"ALLOTMENTS":              CodeAllotment,
		"DISCRETIONARY ALLOTMENT": CodeAllotment,

		"DEBTS":              CodeDebt,
		"INDEBTEDNESS":       CodeDebt,
		"DEBT COLLECTION":    CodeDebt,
		"DEBT REPAY":         CodeDebt,
		"OVERPAYMENT RECOUP": CodeDebt,

		"ADJ":                     CodeAdjustment,
		"PAY ADJUSTMENT":          CodeAdjustment,
		"PRIOR PERIOD ADJUSTMENT": CodeAdjustment,
		"BACK PAY":                CodeAdjustment,
		"RETRO":                   CodeAdjustment,
	}
}

// =============================================================================
// NORMALIZER
// =============================================================================

// Normalizer maps raw statement text to canonical codes. It is immutable once
// built and safe for concurrent use.
type Normalizer struct {
	version   string
	canonical map[string]Code
	aliases   map[string]Code
}

// NewNormalizer builds a normalizer from an alias table. Alias keys are folded
// to key form; every target must be a canonical code.
func NewNormalizer(version string, aliases map[string]Code) (*Normalizer, error) {
	n := &Normalizer{
		version:   version,
		canonical: make(map[string]Code, len(catalog)),
		aliases:   make(map[string]Code, len(aliases)),
	}
	for code := range catalog {
		n.canonical[Key(string(code))] = code
	}
	for raw, code := range aliases {
		if !code.Known() {
			return nil, fmt.Errorf("alias %q targets unknown code %q", raw, code)
		}
		k := Key(raw)
		if k == "" {
			return nil, fmt.Errorf("alias %q is empty after folding", raw)
		}
		if prev, ok := n.aliases[k]; ok && prev != code {
			return nil, fmt.Errorf("alias %q maps to both %s and %s", k, prev, code)
		}
		n.aliases[k] = code
	}
	return n, nil
}

var defaultNormalizer = mustDefaultNormalizer()

func mustDefaultNormalizer() *Normalizer {
	n, err := NewNormalizer(AliasTableVersion, DefaultAliases())
	if err != nil {
		panic(err)
	}
	return n
}

// DefaultNormalizer returns the normalizer for the built-in alias table.
func DefaultNormalizer() *Normalizer {
	return defaultNormalizer
}

// Normalize maps raw text with the built-in alias table.
func Normalize(raw string) Code {
	return defaultNormalizer.Normalize(raw)
}

func (n *Normalizer) Version() string {
	return n.version
}

// Normalize applies, in order: exact canonical match, alias match, and the
// unknown sentinel.
func (n *Normalizer) Normalize(raw string) Code {
	k := Key(raw)
	if k == "" {
		return CodeUnknown
	}
	if code, ok := n.canonical[k]; ok {
		return code
	}
	if code, ok := n.aliases[k]; ok {
		return code
	}
	return CodeUnknown
}

// NormalizeLine tries the raw code and then the description.
func (n *Normalizer) NormalizeLine(rawCode, description string) Code {
	if code := n.Normalize(rawCode); code != CodeUnknown {
		return code
	}
	return n.Normalize(description)
}

// Aliases returns the alias table in key order, for publishing.
func (n *Normalizer) Aliases() []Alias {
	out := make([]Alias, 0, len(n.aliases))
	for k, code := range n.aliases {
		out = append(out, Alias{Spelling: k, Code: code})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Spelling < out[j].Spelling })
	return out
}

type Alias struct {
	Spelling string `json:"spelling"`
	Code     Code   `json:"code"`
}

// Key folds raw text to lookup form: upper case, every run of characters that
// are not letters or digits becomes one space, trimmed.
func Key(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	pendingSpace := false
	for _, r := range strings.ToUpper(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}
