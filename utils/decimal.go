package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a user-entered currency amount.
// Accepts thousands separators and a leading currency label:
// - "20,000"
// - "USD 20,000"
// - "$ -20,000.50"
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s != "" {
		s = strings.ReplaceAll(s, ",", "")
		s = strings.TrimPrefix(strings.TrimPrefix(s, "USD"), "usd")
		s = strings.TrimPrefix(s, "$")
		s = strings.TrimSpace(s)
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}
	var b strings.Builder
	b.Grow(len(s) + 1)
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if clean == "" {
		return decimal.Zero, fmt.Errorf("invalid amount")
	}
	if neg {
		clean = "-" + clean
	}
	return decimal.NewFromString(clean)
}
