/*
codes.go - Canonical line-item vocabulary

PURPOSE:
  Every pay statement line is reduced to one canonical Code. The catalog here
  says, for each code, what category it belongs to and how the comparator is
  allowed to check it. The catalog is a fixed table: it is never registered
  into at runtime, so an audit's behaviour depends only on this file and the
  alias table version.

CHECK KINDS:
  CheckExact    pay-table-derived amount; compared in cents
  CheckPercent  withholding; compared as an effective rate of a taxable base
  CheckNone     recognized but not modeled (TSP, allotments, debts)

SEE ALSO:
  - normalize.go: Raw text -> Code
  - compare.go: Uses CheckKind to pick a tolerance policy
*/
package audit

import (
	"sort"

	"github.com/slimmugnai-oss/garrison-ledger-sub009/ratetable"
)

// Code is a canonical line-item code.
type Code string

const (
	CodeBasePay Code = "BASEPAY"
	CodeBAH     Code = "BAH"
	CodeBAS     Code = "BAS"
	CodeHFP     Code = "HFP"
	CodeFLPP    Code = "FLPP"
	CodeHDP     Code = "HDP"
	CodeSDAP    Code = "SDAP"

	CodeFederalTax Code = "FED_TAX"
	CodeStateTax   Code = "STATE_TAX"
	CodeFICA       Code = "FICA_SS"
	CodeMedicare   Code = "FICA_MED"

	CodeSGLI Code = "SGLI"
	CodeAFRH Code = "AFRH"

	CodeTSP        Code = "TSP"
	CodeDental     Code = "DENTAL"
	CodeAllotment  Code = "ALLOTMENT"
	CodeDebt       Code = "DEBT"
	CodeAdjustment Code = "ADJUSTMENT"

	// CodeUnknown is the sentinel for text that matched nothing. It is carried
	// through to a flag, never dropped.
	CodeUnknown Code = "UNKNOWN"
)

// Category groups flags for display and ordering.
type Category string

const (
	CategoryAllowance   Category = "allowance"
	CategoryTax         Category = "tax"
	CategoryDeduction   Category = "deduction"
	CategoryOther       Category = "other"
	CategoryDataQuality Category = "data_quality"
	CategoryNet         Category = "net"
)

var categoryOrder = map[Category]int{
	CategoryAllowance:   0,
	CategoryTax:         1,
	CategoryDeduction:   2,
	CategoryOther:       3,
	CategoryDataQuality: 4,
	CategoryNet:         5,
}

// CheckKind is the tolerance policy applied to a code.
type CheckKind string

const (
	CheckExact   CheckKind = "exact"
	CheckPercent CheckKind = "percent"
	CheckNone    CheckKind = "none"
)

// CodeInfo describes one canonical code.
type CodeInfo struct {
	Code     Code
	Name     string
	Category Category
	Check    CheckKind
	Tax      ratetable.TaxCategory // set for CheckPercent codes

	// Section is where the code must appear on a statement.
	Section Section

	// Optional codes are verified only when the profile declares the inputs
	// needed to compute them (SGLI without a declared coverage amount).
	Optional bool
}

var catalog = map[Code]CodeInfo{
	CodeBasePay: {Code: CodeBasePay, Name: "Base pay", Category: CategoryAllowance, Section: SectionAllowance, Check: CheckExact},
	CodeBAH:     {Code: CodeBAH, Name: "Basic allowance for housing", Category: CategoryAllowance, Section: SectionAllowance, Check: CheckExact},
	CodeBAS:     {Code: CodeBAS, Name: "Basic allowance for subsistence", Category: CategoryAllowance, Section: SectionAllowance, Check: CheckExact},
	CodeHFP:     {Code: CodeHFP, Name: "Hostile fire / imminent danger pay", Category: CategoryAllowance, Section: SectionAllowance, Check: CheckExact},
	CodeFLPP:    {Code: CodeFLPP, Name: "Foreign language proficiency pay", Category: CategoryAllowance, Section: SectionAllowance, Check: CheckExact},
	CodeHDP:     {Code: CodeHDP, Name: "Hardship duty pay", Category: CategoryAllowance, Section: SectionAllowance, Check: CheckExact},
	CodeSDAP:    {Code: CodeSDAP, Name: "Special duty assignment pay", Category: CategoryAllowance, Section: SectionAllowance, Check: CheckExact},

	CodeFederalTax: {Code: CodeFederalTax, Name: "Federal income tax withholding", Category: CategoryTax, Section: SectionTax, Check: CheckPercent, Tax: ratetable.TaxFederal},
	CodeStateTax:   {Code: CodeStateTax, Name: "State income tax withholding", Category: CategoryTax, Section: SectionTax, Check: CheckPercent, Tax: ratetable.TaxState},
	CodeFICA:       {Code: CodeFICA, Name: "FICA social security", Category: CategoryTax, Section: SectionTax, Check: CheckPercent, Tax: ratetable.TaxFICA},
	CodeMedicare:   {Code: CodeMedicare, Name: "FICA medicare", Category: CategoryTax, Section: SectionTax, Check: CheckPercent, Tax: ratetable.TaxMedicare},

	CodeSGLI: {Code: CodeSGLI, Name: "SGLI premium", Category: CategoryDeduction, Section: SectionDeduction, Check: CheckExact, Optional: true},
	CodeAFRH: {Code: CodeAFRH, Name: "Armed Forces Retirement Home", Category: CategoryDeduction, Section: SectionDeduction, Check: CheckExact},

	CodeTSP:        {Code: CodeTSP, Name: "Thrift Savings Plan", Category: CategoryDeduction, Section: SectionDeduction, Check: CheckNone},
	CodeDental:     {Code: CodeDental, Name: "Dental premium", Category: CategoryDeduction, Section: SectionDeduction, Check: CheckNone},
	CodeAllotment:  {Code: CodeAllotment, Name: "Allotment", Category: CategoryOther, Section: SectionAllotment, Check: CheckNone},
	CodeDebt:       {Code: CodeDebt, Name: "Debt repayment", Category: CategoryOther, Section: SectionDebt, Check: CheckNone},
	CodeAdjustment: {Code: CodeAdjustment, Name: "Pay adjustment", Category: CategoryOther, Section: SectionAdjustment, Check: CheckNone},
}

// LookupCode returns the catalog entry for a canonical code.
func LookupCode(c Code) (CodeInfo, bool) {
	info, ok := catalog[c]
	return info, ok
}

// Info returns the catalog entry, or an "other" entry for unknown codes.
func (c Code) Info() CodeInfo {
	if info, ok := catalog[c]; ok {
		return info
	}
	return CodeInfo{Code: c, Name: "Unrecognized line", Category: CategoryOther, Check: CheckNone}
}

// Known reports whether the code is in the canonical vocabulary.
func (c Code) Known() bool {
	_, ok := catalog[c]
	return ok
}

// Codes lists the canonical vocabulary in sorted order.
func Codes() []CodeInfo {
	out := make([]CodeInfo, 0, len(catalog))
	for _, info := range catalog {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// TaxCode maps a tax category back to its withholding code.
func TaxCode(c ratetable.TaxCategory) Code {
	switch c {
	case ratetable.TaxFederal:
		return CodeFederalTax
	case ratetable.TaxState:
		return CodeStateTax
	case ratetable.TaxFICA:
		return CodeFICA
	default:
		return CodeMedicare
	}
}
