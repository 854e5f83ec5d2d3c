package ratetable

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// GRADE - Normalized pay grade
// =============================================================================

// Grade is a normalized pay grade such as "E-5", "W-2", "O-3" or "O-1E".
type Grade string

// GradeCategory groups grades for tables that only distinguish enlisted from
// officer (subsistence) or that restrict eligibility (special pays).
type GradeCategory string

const (
	CategoryEnlisted GradeCategory = "enlisted"
	CategoryWarrant  GradeCategory = "warrant"
	CategoryOfficer  GradeCategory = "officer"
)

var gradeLimits = map[byte]int{
	'E': 9,
	'W': 5,
	'O': 10,
}

// ParseGrade accepts loose spellings ("e5", "E05", "E 5", "O3E", "CW2") and
// returns the canonical form. Prior-enlisted officer grades only exist for O-1
// through O-3.
func ParseGrade(s string) (Grade, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	raw = strings.NewReplacer("-", "", " ", "", "_", "").Replace(raw)
	raw = strings.TrimPrefix(raw, "C") // CW2 -> W2
	if len(raw) < 2 {
		return "", fmt.Errorf("invalid grade %q", s)
	}

	prefix := raw[0]
	limit, ok := gradeLimits[prefix]
	if !ok {
		return "", fmt.Errorf("invalid grade %q: unknown prefix", s)
	}

	digits := raw[1:]
	priorEnlisted := false
	if prefix == 'O' && strings.HasSuffix(digits, "E") {
		priorEnlisted = true
		digits = strings.TrimSuffix(digits, "E")
	}

	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 || n > limit {
		return "", fmt.Errorf("invalid grade %q: level out of range", s)
	}
	if priorEnlisted && n > 3 {
		return "", fmt.Errorf("invalid grade %q: prior-enlisted grades stop at O-3E", s)
	}

	g := fmt.Sprintf("%c-%d", prefix, n)
	if priorEnlisted {
		g += "E"
	}
	return Grade(g), nil
}

// MustParseGrade is ParseGrade for literals in tests and presets.
func MustParseGrade(s string) Grade {
	g, err := ParseGrade(s)
	if err != nil {
		panic(err)
	}
	return g
}

// Category returns the grade's category. Unparsed grades report enlisted.
func (g Grade) Category() GradeCategory {
	if len(g) == 0 {
		return CategoryEnlisted
	}
	switch g[0] {
	case 'W':
		return CategoryWarrant
	case 'O':
		return CategoryOfficer
	default:
		return CategoryEnlisted
	}
}

// IsOfficer reports whether the grade draws officer subsistence (warrant
// officers are paid officer BAS).
func (g Grade) IsOfficer() bool {
	c := g.Category()
	return c == CategoryOfficer || c == CategoryWarrant
}

func (g Grade) String() string { return string(g) }
