package dashboard

import (
	"fmt"
	"time"
)

// Month filters a view to one calendar month. The zero Month means all
// transactions.
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth accepts YYYY-MM; an empty string is the zero Month.
func ParseMonth(s string) (Month, error) {
	if s == "" {
		return Month{}, nil
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("month must be YYYY-MM: %q", s)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

func (m Month) IsZero() bool {
	return m == Month{}
}

func (m Month) String() string {
	if m.IsZero() {
		return "all"
	}
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}
