package money

import (
	"strings"
)

// Format renders an amount with dot thousands separators and a comma before
// the cents, e.g. 1234.5 -> "1.234,50 ₺".
func Format(m Money, symbol string) string {
	fixed := m.String()
	negative := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	parts := strings.SplitN(fixed, ".", 2)
	integerPart, decimalPart := parts[0], "00"
	if len(parts) == 2 {
		decimalPart = parts[1]
	}

	var groups []string
	for i := len(integerPart); i > 0; i -= 3 {
		start := i - 3
		if start < 0 {
			start = 0
		}
		groups = append([]string{integerPart[start:i]}, groups...)
	}

	out := strings.Join(groups, ".") + "," + decimalPart
	if negative {
		out = "-" + out
	}
	if symbol != "" {
		out += " " + symbol
	}
	return out
}
