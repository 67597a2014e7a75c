// Package wallet implements the ledger's balance engine and mutation guard:
// balances are folded from the full transaction/exchange history, and every
// balance-decreasing mutation is checked for solvency inside one store
// transaction so concurrent writers cannot both spend the same funds.
package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/errs"
	"fintrack/internal/ledger"
	"fintrack/internal/money"
)

// reader is the read surface shared by the plain repository and the
// transactional view: everything the balance fold needs.
type reader interface {
	// EnsureWallets lazily creates the per-currency wallets and returns
	// them keyed by currency. Idempotent.
	EnsureWallets(ctx context.Context) (map[ledger.Currency]ledger.Wallet, error)
	TransactionsByUser(ctx context.Context, userID uuid.UUID) ([]ledger.Transaction, error)
	ExchangesByUser(ctx context.Context, userID uuid.UUID) ([]ledger.Exchange, error)
}

// ListQuery narrows a raw history listing.
type ListQuery struct {
	Type     *ledger.TransactionType
	Currency *ledger.Currency
	Start    *time.Time
	End      *time.Time
}

// Repo defines the read operations needed by the service.
type Repo interface {
	reader
	TransactionByID(ctx context.Context, userID, id uuid.UUID) (ledger.Transaction, error)
	ExchangeByID(ctx context.Context, userID, id uuid.UUID) (ledger.Exchange, error)
	// ListTransactions returns the user's transactions newest first,
	// narrowed by the query.
	ListTransactions(ctx context.Context, userID uuid.UUID, q ListQuery) ([]ledger.Transaction, error)
	// ListExchanges returns the user's exchanges newest first, narrowed by
	// the query's time bounds.
	ListExchanges(ctx context.Context, userID uuid.UUID, q ListQuery) ([]ledger.Exchange, error)
}

// Tx is a per-user store transaction. The solvency read and the subsequent
// write happen through the same Tx, and the store serializes Txs per user,
// so a passed check cannot be invalidated by a concurrent mutation before
// Commit.
type Tx interface {
	reader
	TransactionByID(ctx context.Context, userID, id uuid.UUID) (ledger.Transaction, error)
	ExchangeByID(ctx context.Context, userID, id uuid.UUID) (ledger.Exchange, error)
	CreateTransaction(ctx context.Context, t ledger.Transaction) error
	UpdateTransaction(ctx context.Context, t ledger.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id uuid.UUID) error
	CreateExchange(ctx context.Context, e ledger.Exchange) error
	UpdateExchange(ctx context.Context, e ledger.Exchange) error
	DeleteExchange(ctx context.Context, userID, id uuid.UUID) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxBeginner opens per-user transactions.
type TxBeginner interface {
	BeginUserTx(ctx context.Context, userID uuid.UUID) (Tx, error)
}

// CreateTransactionInput carries a new transaction in caller units. Amounts
// arrive as canonical major-unit decimal strings.
type CreateTransactionInput struct {
	UserID        uuid.UUID
	Type          ledger.TransactionType
	Currency      ledger.Currency
	AmountMajor   string
	Category      *string
	Note          *string
	PaymentMethod *ledger.PaymentMethod
	CreatedAt     *time.Time
}

// UpdateTransactionInput replaces the mutable fields of a transaction. Nil
// optional fields clear the stored value; the amount is always required.
type UpdateTransactionInput struct {
	AmountMajor   string
	Currency      *ledger.Currency
	Category      *string
	Note          *string
	PaymentMethod *ledger.PaymentMethod
}

// CreateExchangeInput carries a new DKK to VND exchange in caller units.
type CreateExchangeInput struct {
	UserID        uuid.UUID
	FromAmountDkk string
	ToAmountVnd   string
	FeeAmount     *string
	FeeCurrency   *ledger.Currency
	Provider      *string
}

// UpdateExchangeInput replaces an exchange's amounts. An updated fee is
// always DKK-denominated; an empty fee clears it.
type UpdateExchangeInput struct {
	FromAmountDkk string
	ToAmountVnd   string
	FeeAmount     *string
}

// Service exposes balance reads and guarded ledger mutations.
type Service interface {
	Balances(ctx context.Context, userID uuid.UUID) (ledger.Balances, error)
	CreateTransaction(ctx context.Context, in CreateTransactionInput) (ledger.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, id uuid.UUID, in UpdateTransactionInput) (ledger.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id uuid.UUID) error
	CreateExchange(ctx context.Context, in CreateExchangeInput) (ledger.Exchange, error)
	UpdateExchange(ctx context.Context, userID, id uuid.UUID, in UpdateExchangeInput) (ledger.Exchange, error)
	DeleteExchange(ctx context.Context, userID, id uuid.UUID) error
	ListTransactions(ctx context.Context, userID uuid.UUID, q ListQuery) ([]ledger.Transaction, error)
	ListExchanges(ctx context.Context, userID uuid.UUID, q ListQuery) ([]ledger.Exchange, error)
}

type service struct {
	repo Repo
	txs  TxBeginner
	now  func() time.Time
}

// New constructs the wallet service.
func New(repo Repo, txs TxBeginner) Service {
	return &service{repo: repo, txs: txs, now: time.Now}
}

// balancesIn folds the user's full history read through r.
func balancesIn(ctx context.Context, r reader, userID uuid.UUID) (ledger.Balances, error) {
	if _, err := r.EnsureWallets(ctx); err != nil {
		return nil, err
	}
	txns, err := r.TransactionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	exs, err := r.ExchangesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	b := ledger.NewBalances()
	for _, t := range txns {
		b.Apply(t)
	}
	for _, e := range exs {
		b.ApplyExchange(e)
	}
	return b, nil
}

func (s *service) Balances(ctx context.Context, userID uuid.UUID) (ledger.Balances, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	return balancesIn(ctx, s.repo, userID)
}

func (s *service) CreateTransaction(ctx context.Context, in CreateTransactionInput) (ledger.Transaction, error) {
	if in.UserID == uuid.Nil {
		return ledger.Transaction{}, errs.ErrInvalid
	}
	if _, ok := ledger.ParseTransactionType(string(in.Type)); !ok {
		return ledger.Transaction{}, errs.ErrInvalid
	}
	if _, ok := ledger.ParseCurrency(string(in.Currency)); !ok {
		return ledger.Transaction{}, errs.ErrInvalid
	}
	if in.PaymentMethod != nil {
		if _, ok := ledger.ParsePaymentMethod(string(*in.PaymentMethod)); !ok || in.Type != ledger.TypeExpense {
			return ledger.Transaction{}, errs.ErrInvalid
		}
	}
	minor, err := money.ToMinor(in.AmountMajor, in.Currency)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if minor <= 0 {
		return ledger.Transaction{}, errs.ErrInvalidAmount
	}
	createdAt := s.now().UTC()
	if in.CreatedAt != nil {
		createdAt = in.CreatedAt.UTC()
	}

	tx, err := s.txs.BeginUserTx(ctx, in.UserID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	wallets, err := tx.EnsureWallets(ctx)
	if err != nil {
		return ledger.Transaction{}, err
	}
	w, ok := wallets[in.Currency]
	if !ok {
		return ledger.Transaction{}, errs.ErrWalletMissing
	}

	txn := ledger.Transaction{
		ID:            uuid.New(),
		UserID:        in.UserID,
		WalletID:      w.ID,
		Type:          in.Type,
		Currency:      in.Currency,
		AmountMinor:   minor,
		Category:      in.Category,
		Note:          in.Note,
		PaymentMethod: in.PaymentMethod,
		CreatedAt:     createdAt,
	}

	if txn.Type == ledger.TypeExpense && txn.AffectsWallet() {
		bal, err := balancesIn(ctx, tx, in.UserID)
		if err != nil {
			return ledger.Transaction{}, err
		}
		if bal[in.Currency] < minor {
			return ledger.Transaction{}, errs.ErrInsufficientBalance
		}
	}

	if err := tx.CreateTransaction(ctx, txn); err != nil {
		return ledger.Transaction{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.Transaction{}, err
	}
	return txn, nil
}

func (s *service) UpdateTransaction(ctx context.Context, userID, id uuid.UUID, in UpdateTransactionInput) (ledger.Transaction, error) {
	if userID == uuid.Nil || id == uuid.Nil {
		return ledger.Transaction{}, errs.ErrInvalid
	}
	if in.Currency != nil {
		if _, ok := ledger.ParseCurrency(string(*in.Currency)); !ok {
			return ledger.Transaction{}, errs.ErrInvalid
		}
	}

	tx, err := s.txs.BeginUserTx(ctx, userID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	orig, err := tx.TransactionByID(ctx, userID, id)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if in.PaymentMethod != nil {
		if _, ok := ledger.ParsePaymentMethod(string(*in.PaymentMethod)); !ok || orig.Type != ledger.TypeExpense {
			return ledger.Transaction{}, errs.ErrInvalid
		}
	}

	nextCurrency := orig.Currency
	if in.Currency != nil {
		nextCurrency = *in.Currency
	}
	minor, err := money.ToMinor(in.AmountMajor, nextCurrency)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if minor <= 0 {
		return ledger.Transaction{}, errs.ErrInvalidAmount
	}

	wallets, err := tx.EnsureWallets(ctx)
	if err != nil {
		return ledger.Transaction{}, err
	}
	w, ok := wallets[nextCurrency]
	if !ok {
		return ledger.Transaction{}, errs.ErrWalletMissing
	}

	next := orig
	next.WalletID = w.ID
	next.Currency = nextCurrency
	next.AmountMinor = minor
	next.Category = in.Category
	next.Note = in.Note
	next.PaymentMethod = in.PaymentMethod

	if next.Type == ledger.TypeExpense && next.AffectsWallet() {
		bal, err := balancesIn(ctx, tx, userID)
		if err != nil {
			return ledger.Transaction{}, err
		}
		// Add the amount being replaced back to the pool before testing the
		// new amount, so an unchanged edit always passes. A currency switch
		// checks the target currency's balance without the add-back.
		available := bal[nextCurrency]
		if nextCurrency == orig.Currency && orig.AffectsWallet() {
			available += orig.AmountMinor
		}
		if available < minor {
			return ledger.Transaction{}, errs.ErrInsufficientBalance
		}
	}

	if err := tx.UpdateTransaction(ctx, next); err != nil {
		return ledger.Transaction{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.Transaction{}, err
	}
	return next, nil
}

func (s *service) DeleteTransaction(ctx context.Context, userID, id uuid.UUID) error {
	if userID == uuid.Nil || id == uuid.Nil {
		return errs.ErrInvalid
	}
	tx, err := s.txs.BeginUserTx(ctx, userID)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := tx.DeleteTransaction(ctx, userID, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *service) CreateExchange(ctx context.Context, in CreateExchangeInput) (ledger.Exchange, error) {
	if in.UserID == uuid.Nil {
		return ledger.Exchange{}, errs.ErrInvalid
	}
	fromMinor, err := money.ToMinor(in.FromAmountDkk, ledger.CurrencyDKK)
	if err != nil {
		return ledger.Exchange{}, err
	}
	toMinor, err := money.ToMinor(in.ToAmountVnd, ledger.CurrencyVND)
	if err != nil {
		return ledger.Exchange{}, err
	}
	if fromMinor <= 0 || toMinor <= 0 {
		return ledger.Exchange{}, errs.ErrInvalidAmount
	}

	feeCurrency := in.FeeCurrency
	var feeMinor *int64
	if in.FeeAmount != nil && *in.FeeAmount != "" {
		cur := ledger.CurrencyDKK
		if feeCurrency != nil {
			if _, ok := ledger.ParseCurrency(string(*feeCurrency)); !ok {
				return ledger.Exchange{}, errs.ErrInvalid
			}
			cur = *feeCurrency
		}
		m, err := money.ToMinor(*in.FeeAmount, cur)
		if err != nil {
			return ledger.Exchange{}, err
		}
		feeMinor = &m
	}

	rate, err := money.EffectiveRate(fromMinor, toMinor)
	if err != nil {
		return ledger.Exchange{}, errs.ErrInvalidAmount
	}

	tx, err := s.txs.BeginUserTx(ctx, in.UserID)
	if err != nil {
		return ledger.Exchange{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	wallets, err := tx.EnsureWallets(ctx)
	if err != nil {
		return ledger.Exchange{}, err
	}
	fromWallet, okFrom := wallets[ledger.CurrencyDKK]
	toWallet, okTo := wallets[ledger.CurrencyVND]
	if !okFrom || !okTo {
		return ledger.Exchange{}, errs.ErrWalletMissing
	}

	ex := ledger.Exchange{
		ID:            uuid.New(),
		UserID:        in.UserID,
		FromWalletID:  fromWallet.ID,
		ToWalletID:    toWallet.ID,
		FromAmountDkk: fromMinor,
		ToAmountVnd:   toMinor,
		EffectiveRate: rate,
		FeeAmount:     feeMinor,
		FeeCurrency:   feeCurrency,
		Provider:      in.Provider,
		CreatedAt:     s.now().UTC(),
	}

	bal, err := balancesIn(ctx, tx, in.UserID)
	if err != nil {
		return ledger.Exchange{}, err
	}
	if bal[ledger.CurrencyDKK] < ex.FromAmountDkk+ex.FeeIn(ledger.CurrencyDKK) {
		return ledger.Exchange{}, errs.ErrInsufficientBalance
	}
	if fee := ex.FeeIn(ledger.CurrencyVND); fee > 0 && bal[ledger.CurrencyVND] < fee {
		return ledger.Exchange{}, errs.ErrInsufficientBalance
	}

	if err := tx.CreateExchange(ctx, ex); err != nil {
		return ledger.Exchange{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.Exchange{}, err
	}
	return ex, nil
}

func (s *service) UpdateExchange(ctx context.Context, userID, id uuid.UUID, in UpdateExchangeInput) (ledger.Exchange, error) {
	if userID == uuid.Nil || id == uuid.Nil {
		return ledger.Exchange{}, errs.ErrInvalid
	}
	fromMinor, err := money.ToMinor(in.FromAmountDkk, ledger.CurrencyDKK)
	if err != nil {
		return ledger.Exchange{}, err
	}
	toMinor, err := money.ToMinor(in.ToAmountVnd, ledger.CurrencyVND)
	if err != nil {
		return ledger.Exchange{}, err
	}
	if fromMinor <= 0 || toMinor <= 0 {
		return ledger.Exchange{}, errs.ErrInvalidAmount
	}
	var feeMinor int64
	if in.FeeAmount != nil && *in.FeeAmount != "" {
		feeMinor, err = money.ToMinor(*in.FeeAmount, ledger.CurrencyDKK)
		if err != nil {
			return ledger.Exchange{}, err
		}
	}

	rate, err := money.EffectiveRate(fromMinor, toMinor)
	if err != nil {
		return ledger.Exchange{}, errs.ErrInvalidAmount
	}

	tx, err := s.txs.BeginUserTx(ctx, userID)
	if err != nil {
		return ledger.Exchange{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	orig, err := tx.ExchangeByID(ctx, userID, id)
	if err != nil {
		return ledger.Exchange{}, err
	}

	bal, err := balancesIn(ctx, tx, userID)
	if err != nil {
		return ledger.Exchange{}, err
	}
	// Both the original DKK leg and its DKK fee return to the pool before
	// testing the replacement amounts.
	available := bal[ledger.CurrencyDKK] + orig.FromAmountDkk + orig.FeeIn(ledger.CurrencyDKK)
	if available < fromMinor+feeMinor {
		return ledger.Exchange{}, errs.ErrInsufficientBalance
	}

	next := orig
	next.FromAmountDkk = fromMinor
	next.ToAmountVnd = toMinor
	next.EffectiveRate = rate
	if feeMinor > 0 {
		cur := ledger.CurrencyDKK
		next.FeeAmount = &feeMinor
		next.FeeCurrency = &cur
	} else {
		next.FeeAmount = nil
		next.FeeCurrency = nil
	}

	if err := tx.UpdateExchange(ctx, next); err != nil {
		return ledger.Exchange{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.Exchange{}, err
	}
	return next, nil
}

func (s *service) DeleteExchange(ctx context.Context, userID, id uuid.UUID) error {
	if userID == uuid.Nil || id == uuid.Nil {
		return errs.ErrInvalid
	}
	tx, err := s.txs.BeginUserTx(ctx, userID)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := tx.DeleteExchange(ctx, userID, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *service) ListTransactions(ctx context.Context, userID uuid.UUID, q ListQuery) ([]ledger.Transaction, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	return s.repo.ListTransactions(ctx, userID, q)
}

func (s *service) ListExchanges(ctx context.Context, userID uuid.UUID, q ListQuery) ([]ledger.Exchange, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	return s.repo.ListExchanges(ctx, userID, q)
}
