// Package money converts between major-unit decimal amounts and the integer
// minor units the ledger stores, and canonicalizes user-typed amount strings.
package money

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/govalues/decimal"
	gomoney "github.com/govalues/money"

	"fintrack/internal/errs"
	"fintrack/internal/ledger"
)

// minorPerMajor holds the implied decimal scale per currency: DKK is stored
// in øre, VND has no subdivision.
var minorPerMajor = map[ledger.Currency]int64{
	ledger.CurrencyDKK: 100,
	ledger.CurrencyVND: 1,
}

// Scale returns the number of implied decimal places for a currency.
func Scale(c ledger.Currency) int {
	if minorPerMajor[c] == 100 {
		return 2
	}
	return 0
}

// NormalizeAmount converts locale-formatted input ("." thousands separator,
// "," decimal separator) into a canonical decimal string. Empty input yields
// the empty string; garbage passes through and fails at ToMinor, not here.
func NormalizeAmount(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsSpace(r) || r == '.' {
			continue
		}
		b.WriteRune(r)
	}
	cleaned := b.String()
	if cleaned == "" {
		return ""
	}
	parts := strings.Split(cleaned, ",")
	if len(parts) == 1 {
		return parts[0]
	}
	intPart := parts[0]
	if intPart == "" {
		intPart = "0"
	}
	return intPart + "." + strings.Join(parts[1:], "")
}

// ToMinor parses a canonical decimal string into integer minor units for the
// currency, rounding half away from zero at the minor-unit boundary. Signs
// and malformed input are rejected with ErrInvalidAmount; callers enforce
// positivity separately so zero fees stay representable.
func ToMinor(major string, c ledger.Currency) (int64, error) {
	s := strings.TrimSpace(major)
	if s == "" {
		return 0, errs.ErrInvalidAmount
	}
	if s[0] == '+' || s[0] == '-' {
		return 0, errs.ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, errs.ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if r < '0' || r > '9' {
			return 0, errs.ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if r < '0' || r > '9' {
			return 0, errs.ErrInvalidAmount
		}
	}

	per, ok := minorPerMajor[c]
	if !ok {
		return 0, errs.ErrInvalid
	}
	var whole int64
	for _, r := range intPart {
		d := int64(r - '0')
		if whole > ((1<<63-1)-d)/10 {
			return 0, errs.ErrInvalidAmount
		}
		whole = whole*10 + d
	}
	if whole > (1<<63-1)/per {
		return 0, errs.ErrInvalidAmount
	}
	minor := whole * per

	// Fold fractional digits up to the currency scale, then round half away
	// from zero on the first digit past it.
	scale := Scale(c)
	var frac int64
	for i := 0; i < scale && i < len(fracPart); i++ {
		frac = frac*10 + int64(fracPart[i]-'0')
	}
	for i := len(fracPart); i < scale; i++ {
		frac *= 10
	}
	if len(fracPart) > scale && fracPart[scale] >= '5' {
		frac++
	}
	return minor + frac, nil
}

// ToMajor renders minor units as a canonical major-unit decimal string, the
// inverse of ToMinor: ToMinor(ToMajor(m, c), c) == m for every integer m >= 0.
func ToMajor(minor int64, c ledger.Currency) string {
	per := minorPerMajor[c]
	if per == 1 {
		return strconv.FormatInt(minor, 10)
	}
	whole := minor / per
	frac := minor % per
	if frac < 0 {
		frac = -frac
	}
	sign := ""
	if minor < 0 && whole == 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s%d.%02d", sign, whole, frac)
}

// Display renders minor units as a currency-tagged string (e.g. "DKK 48.00")
// for human-facing payloads.
func Display(minor int64, c ledger.Currency) string {
	a, err := gomoney.NewAmountFromMinorUnits(string(c), minor)
	if err != nil {
		return string(c) + " " + ToMajor(minor, c)
	}
	return a.String()
}

// EffectiveRate computes the VND-per-DKK rate of an exchange from its stored
// minor-unit amounts, as a decimal string: toAmountVnd(major) divided by
// fromAmountDkk(major).
func EffectiveRate(fromAmountDkk, toAmountVnd int64) (string, error) {
	from, err := decimal.New(fromAmountDkk, Scale(ledger.CurrencyDKK))
	if err != nil {
		return "", err
	}
	to, err := decimal.New(toAmountVnd, Scale(ledger.CurrencyVND))
	if err != nil {
		return "", err
	}
	rate, err := to.Quo(from)
	if err != nil {
		return "", err
	}
	return rate.String(), nil
}
