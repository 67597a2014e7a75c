package ledger

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// creditRepaymentCategory is the diacritic-folded form of the category users
// assign to credit-card bill repayments ("Tín dụng"). The match is a fuzzy
// string comparison rather than a structured flag; see the open questions in
// DESIGN.md before changing it.
const creditRepaymentCategory = "tin dung"

// foldDiacritics strips combining marks after NFD decomposition, so
// "Tín dụng" and "Tin dung" compare equal.
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeCategory lowercases, trims and diacritic-folds a category label
// for comparison purposes.
func NormalizeCategory(category *string) string {
	if category == nil {
		return ""
	}
	s := strings.ToLower(strings.TrimSpace(*category))
	if s == "" {
		return ""
	}
	folded, _, err := transform.String(foldDiacritics, s)
	if err != nil {
		return s
	}
	return folded
}

// ExpenseAffectsWallet reports whether an expense with the given payment
// method debits the wallet. Credit-card purchases do not; the wallet is only
// touched when the bill is later repaid.
func ExpenseAffectsWallet(pm *PaymentMethod) bool {
	return pm == nil || *pm != PaymentCreditCard
}

// IsCreditCardRepayment reports whether an expense is a credit-card bill
// repayment: a wallet-affecting expense categorized as "tin dung". Such rows
// move the wallet balance but are excluded from expense totals and
// breakdowns, since the original card purchase already counted as spending.
func IsCreditCardRepayment(category *string, pm *PaymentMethod) bool {
	return ExpenseAffectsWallet(pm) && NormalizeCategory(category) == creditRepaymentCategory
}
