package audit

import (
	"fmt"
	"time"
)

// =============================================================================
// PAY PERIOD
// =============================================================================

// PayPeriod is the month a statement covers. Resolution uses it instead of the
// wall clock, so audits of past statements reproduce exactly.
type PayPeriod struct {
	Year  int
	Month time.Month
}

func NewPayPeriod(year int, month time.Month) PayPeriod {
	return PayPeriod{Year: year, Month: month}
}

// Valid reports whether the period names a real month.
func (p PayPeriod) Valid() bool {
	return p.Year > 0 && p.Month >= time.January && p.Month <= time.December
}

func (p PayPeriod) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// ParsePayPeriod reads "YYYY-MM".
func ParsePayPeriod(s string) (PayPeriod, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return PayPeriod{}, fmt.Errorf("invalid pay period %q (use YYYY-MM): %w", s, err)
	}
	return PayPeriod{Year: t.Year(), Month: t.Month()}, nil
}
