package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Currency enumerates the two wallet currencies tracked by the system.
type Currency string

const (
	// CurrencyDKK uses two implied decimal places (øre).
	CurrencyDKK Currency = "DKK"
	// CurrencyVND has no minor subdivision; minor units equal major units.
	CurrencyVND Currency = "VND"
)

// Currencies lists every supported currency in canonical order.
var Currencies = []Currency{CurrencyDKK, CurrencyVND}

// ParseCurrency validates a raw currency code.
func ParseCurrency(s string) (Currency, bool) {
	switch Currency(s) {
	case CurrencyDKK:
		return CurrencyDKK, true
	case CurrencyVND:
		return CurrencyVND, true
	}
	return "", false
}

// TransactionType classifies a ledger transaction.
type TransactionType string

const (
	TypeIncome  TransactionType = "INCOME"
	TypeExpense TransactionType = "EXPENSE"
)

// ParseTransactionType validates a raw transaction type.
func ParseTransactionType(s string) (TransactionType, bool) {
	switch TransactionType(s) {
	case TypeIncome:
		return TypeIncome, true
	case TypeExpense:
		return TypeExpense, true
	}
	return "", false
}

// PaymentMethod describes how an expense was funded. It is only meaningful
// on expense transactions.
type PaymentMethod string

const (
	PaymentCash       PaymentMethod = "CASH"
	PaymentCreditCard PaymentMethod = "CREDIT_CARD"
)

// ParsePaymentMethod validates a raw payment method.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(s) {
	case PaymentCash:
		return PaymentCash, true
	case PaymentCreditCard:
		return PaymentCreditCard, true
	}
	return "", false
}

// Wallet is the single running account for one currency. Exactly one wallet
// exists per currency system-wide; wallets are created lazily on first access
// and never deleted. Balances are partitioned per user via ledger rows.
type Wallet struct {
	ID        uuid.UUID
	Name      string
	Currency  Currency
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WalletName returns the display name used when a wallet is lazily created.
func WalletName(c Currency) string {
	switch c {
	case CurrencyDKK:
		return "Ví DKK"
	case CurrencyVND:
		return "Ví VND"
	}
	return string(c)
}

// Transaction is one income or expense row, owned by exactly one user and
// attached to the wallet of its currency. Amount is stored in minor units.
type Transaction struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	WalletID      uuid.UUID
	Type          TransactionType
	Currency      Currency
	AmountMinor   int64
	Category      *string
	Note          *string
	PaymentMethod *PaymentMethod
	CreatedAt     time.Time
}

// AffectsWallet reports whether the transaction moves the wallet balance.
// Credit-card expenses are tracked for reporting only; the cash outflow is
// deferred, so they never debit the wallet.
func (t Transaction) AffectsWallet() bool {
	if t.Type != TypeExpense {
		return true
	}
	return ExpenseAffectsWallet(t.PaymentMethod)
}

// Exchange records a DKK to VND conversion: a DKK debit, a VND credit and an
// optional fee attributed to the fee currency. EffectiveRate is the quotient
// of the major-unit amounts (VND per DKK), always recomputed from the stored
// amounts, never supplied by the caller.
type Exchange struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	FromWalletID  uuid.UUID
	ToWalletID    uuid.UUID
	FromAmountDkk int64
	ToAmountVnd   int64
	EffectiveRate string
	FeeAmount     *int64
	FeeCurrency   *Currency
	Provider      *string
	CreatedAt     time.Time
}

// FeeIn returns the fee amount attributed to the given currency. Exchanges
// recorded without an explicit fee currency treat the fee as DKK.
func (e Exchange) FeeIn(c Currency) int64 {
	if e.FeeAmount == nil {
		return 0
	}
	cur := CurrencyDKK
	if e.FeeCurrency != nil {
		cur = *e.FeeCurrency
	}
	if cur != c {
		return 0
	}
	return *e.FeeAmount
}

// DkkOutflow is the total DKK debited by the exchange: the converted leg plus
// any DKK-denominated fee. This is what dashboards count as expense.
func (e Exchange) DkkOutflow() int64 {
	return e.FromAmountDkk + e.FeeIn(CurrencyDKK)
}

// Balances holds per-currency running totals in minor units. Balances are
// lifetime sums over the full history, never windowed and never reset.
type Balances map[Currency]int64

// NewBalances returns a zeroed balance map covering every currency.
func NewBalances() Balances {
	b := make(Balances, len(Currencies))
	for _, c := range Currencies {
		b[c] = 0
	}
	return b
}

// Apply folds a single transaction into the balances.
func (b Balances) Apply(t Transaction) {
	if !t.AffectsWallet() {
		return
	}
	switch t.Type {
	case TypeIncome:
		b[t.Currency] += t.AmountMinor
	case TypeExpense:
		b[t.Currency] -= t.AmountMinor
	}
}

// ApplyExchange folds a single exchange into the balances.
func (b Balances) ApplyExchange(e Exchange) {
	b[CurrencyDKK] -= e.FromAmountDkk
	b[CurrencyVND] += e.ToAmountVnd
	b[CurrencyDKK] -= e.FeeIn(CurrencyDKK)
	b[CurrencyVND] -= e.FeeIn(CurrencyVND)
}
