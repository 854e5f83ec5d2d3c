package audit

import (
	"fmt"
	"strings"

	"github.com/slimmugnai-oss/garrison-ledger-sub009/ratetable"
)

// Validate checks a request and normalizes its lines. Every problem found is
// reported in one *InputError; nothing invalid reaches the pipeline.
func (n *Normalizer) Validate(req Request) (Profile, []LineItem, error) {
	var problems []FieldError
	fail := func(line int, field, format string, args ...any) {
		problems = append(problems, FieldError{Line: line, Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	profile := req.Profile
	grade, err := ratetable.ParseGrade(string(profile.Grade))
	if err != nil {
		fail(-1, "grade", "%v", err)
	}
	profile.Grade = grade

	if profile.YearsOfService < 0 {
		fail(-1, "years_of_service", "must not be negative, got %d", profile.YearsOfService)
	}
	if !profile.Period.Valid() {
		fail(-1, "period", "month must be 1-12 and year positive, got %d-%d", profile.Period.Year, int(profile.Period.Month))
	}
	if profile.YTDSocialSecurityWages < 0 {
		fail(-1, "ytd_social_security_wages", "must not be negative")
	}
	if profile.SGLICoverage < 0 {
		fail(-1, "sgli_coverage", "must not be negative")
	}
	profile.DutyLocation = strings.ToUpper(strings.TrimSpace(profile.DutyLocation))
	profile.State = strings.ToUpper(strings.TrimSpace(profile.State))
	profile.SpecialPays = dedupeSpecialPays(profile.SpecialPays)

	items := make([]LineItem, 0, len(req.Lines))
	for i, raw := range req.Lines {
		section, ok := ParseSection(string(raw.Section))
		if !ok {
			fail(i, "section", "unknown section %q", raw.Section)
			continue
		}
		if raw.Amount < 0 && section != SectionAdjustment {
			fail(i, "amount_cents", "negative amount %d only allowed in ADJUSTMENT", raw.Amount)
			continue
		}
		if strings.TrimSpace(raw.RawCode) == "" && strings.TrimSpace(raw.Description) == "" {
			fail(i, "raw_code", "code or description required")
			continue
		}
		code := n.NormalizeLine(raw.RawCode, raw.Description)
		if info, ok := LookupCode(code); ok && info.Section != section {
			fail(i, "section", "%s belongs in %s, not %s", code, info.Section, section)
			continue
		}
		items = append(items, LineItem{
			Code:        code,
			RawCode:     raw.RawCode,
			Description: raw.Description,
			Amount:      raw.Amount,
			Section:     section,
			Index:       i,
		})
	}

	if len(problems) > 0 {
		return Profile{}, nil, &InputError{Problems: problems}
	}
	return profile, items, nil
}

func dedupeSpecialPays(in []ratetable.SpecialPay) []ratetable.SpecialPay {
	seen := make(map[ratetable.SpecialPay]bool, len(in))
	out := make([]ratetable.SpecialPay, 0, len(in))
	for _, sp := range in {
		sp = ratetable.SpecialPay(strings.ToLower(strings.TrimSpace(string(sp))))
		if sp == "" || seen[sp] {
			continue
		}
		seen[sp] = true
		out = append(out, sp)
	}
	return out
}
