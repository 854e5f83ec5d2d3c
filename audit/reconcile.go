package audit

// =============================================================================
// RECONCILIATION / MATH PROOF
// =============================================================================

// ProofStep is one line of the gross-to-net proof.
type ProofStep struct {
	Label   string `json:"label"`
	Amount  Cents  `json:"amount_cents"`
	Running Cents  `json:"running_cents"`
}

// AuditSummary is derived last and never mutated.
type AuditSummary struct {
	SectionTotals map[Section]Cents

	Allowances Cents // ALLOWANCE + ADJUSTMENT (signed)
	Taxes      Cents // TAX
	Deductions Cents // DEDUCTION + ALLOTMENT + DEBT

	ComputedNet Cents
	ReportedNet Cents
	NetDelta    Cents // reported - computed

	// ExpectedNet is what net pay would be if every verified line matched the
	// snapshot. Unverified lines count at their actual amount.
	ExpectedNet         Cents
	ExpectedNetComplete bool

	Proof []ProofStep
}

// Reconcile sums the actual lines by section and checks the reported net.
// The returned flag is always produced, in addition to any category flags.
func Reconcile(s ExpectedSnapshot, lines []LineItem, reportedNet Cents) (AuditSummary, Flag) {
	sum := AuditSummary{
		SectionTotals: make(map[Section]Cents, len(Sections())),
		ReportedNet:   reportedNet,
	}
	for _, sec := range Sections() {
		sum.SectionTotals[sec] = 0
	}
	for _, li := range lines {
		sum.SectionTotals[li.Section] += li.Amount
	}

	sum.Allowances = sum.SectionTotals[SectionAllowance] + sum.SectionTotals[SectionAdjustment]
	sum.Taxes = sum.SectionTotals[SectionTax]
	sum.Deductions = sum.SectionTotals[SectionDeduction] + sum.SectionTotals[SectionAllotment] + sum.SectionTotals[SectionDebt]
	sum.ComputedNet = sum.Allowances - sum.Taxes - sum.Deductions
	sum.NetDelta = reportedNet - sum.ComputedNet

	running := sum.SectionTotals[SectionAllowance]
	sum.Proof = append(sum.Proof, ProofStep{Label: "Allowances", Amount: running, Running: running})
	for _, step := range []struct {
		label string
		sign  Cents
		sec   Section
	}{
		{"Adjustments", 1, SectionAdjustment},
		{"Taxes", -1, SectionTax},
		{"Deductions", -1, SectionDeduction},
		{"Allotments", -1, SectionAllotment},
		{"Debts", -1, SectionDebt},
	} {
		amount := step.sign * sum.SectionTotals[step.sec]
		running += amount
		sum.Proof = append(sum.Proof, ProofStep{Label: step.label, Amount: amount, Running: running})
	}
	sum.Proof = append(sum.Proof, ProofStep{Label: "Reported net", Amount: reportedNet, Running: sum.NetDelta})

	sum.ExpectedNet, sum.ExpectedNetComplete = expectedNet(s, lines)

	o := Outcome{
		Key:      "NET",
		Name:     "Net pay",
		Category: CategoryNet,
		Expected: sum.ComputedNet,
		Actual:   reportedNet,
		Delta:    sum.NetDelta,
	}
	if sum.NetDelta.Abs() <= s.Tolerances.Exact() {
		return sum, render(FlagNetVerified, SeverityGreen, o)
	}
	return sum, render(FlagNetMismatch, SeverityRed, o)
}

func expectedNet(s ExpectedSnapshot, lines []LineItem) (Cents, bool) {
	var net Cents
	complete := true
	for _, code := range s.Codes() {
		e := s.Entries[code]
		if e.Incomplete {
			complete = false
			continue
		}
		switch code.Info().Category {
		case CategoryAllowance:
			net += e.Amount
		default:
			net -= e.Amount
		}
	}
	for _, li := range lines {
		if e, modeled := s.Entries[li.Code]; modeled && !e.Incomplete {
			continue
		}
		switch li.Section {
		case SectionAllowance, SectionAdjustment:
			net += li.Amount
		default:
			net -= li.Amount
		}
	}
	return net, complete
}
