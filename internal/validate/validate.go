package validate

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	reEmail    = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reID       = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	reCurrency = regexp.MustCompile(`^[A-Za-z]{3}$`)
)

// Email trims, lower-cases and checks an address. RFC 5321 caps an address at 254 octets.
func Email(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) == 0 || len(s) > 254 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// ID validates a simple resource identifier (product ids).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

// VariantID parses a positive catalog variant id.
func VariantID(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Title validates a displayable variant title.
func Title(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 100 {
		return "", false
	}
	return s, true
}

// MaxLineQty bounds a single cart line.
const MaxLineQty = 1000

// LineQty accepts a requested quantity as is, or refuses it when out of range.
func LineQty(n int) (int, bool) {
	if n < 1 || n > MaxLineQty {
		return 0, false
	}
	return n, true
}

// Currency checks the shape of an ISO 4217 code. Support is decided by the currency package.
func Currency(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	return s, reCurrency.MatchString(s)
}

// Amount parses a non-negative price with at most 1e9 units.
func Amount(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1_000_000_000)) {
		return decimal.Zero, false
	}
	return d, true
}
