// Package backup implements the admin snapshot and restore path. It is the
// one write path that bypasses per-user solvency checks: restored data is
// trusted to be a consistent ledger image.
package backup

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/errs"
	"fintrack/internal/ledger"
	"fintrack/internal/money"
)

// Store is the system-wide surface the backup service needs. Reads cross all
// users; RestoreTx runs with exclusive access so no user mutation can
// interleave with a restore.
type Store interface {
	AllWallets(ctx context.Context) ([]ledger.Wallet, error)
	AllTransactions(ctx context.Context) ([]ledger.Transaction, error)
	AllExchanges(ctx context.Context) ([]ledger.Exchange, error)
	BeginRestore(ctx context.Context) (RestoreTx, error)
}

// RestoreTx is an exclusive store transaction for bulk restore.
type RestoreTx interface {
	EnsureWallets(ctx context.Context) (map[ledger.Currency]ledger.Wallet, error)
	DeleteAllTransactions(ctx context.Context) error
	DeleteAllExchanges(ctx context.Context) error
	CreateTransaction(ctx context.Context, t ledger.Transaction) error
	CreateExchange(ctx context.Context, e ledger.Exchange) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Mode selects how a restore treats existing ledger rows.
type Mode string

const (
	ModeReplace Mode = "replace"
	ModeAppend  Mode = "append"
)

// ParseMode validates a restore mode string.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeReplace, ModeAppend:
		return Mode(s), true
	}
	return "", false
}

const (
	// backupVersion tags the snapshot schema.
	backupVersion = 1
	backupScope   = "ledger"
)

// WalletRow is a wallet in the snapshot payload.
type WalletRow struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Currency string    `json:"currency"`
}

// TransactionRow is a transaction in the snapshot payload.
type TransactionRow struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	WalletID      uuid.UUID `json:"wallet_id"`
	Type          string    `json:"type"`
	Currency      string    `json:"currency"`
	AmountMinor   int64     `json:"amount_minor"`
	Category      *string   `json:"category,omitempty"`
	Note          *string   `json:"note,omitempty"`
	PaymentMethod *string   `json:"payment_method,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ExchangeRow is an exchange in the snapshot payload.
type ExchangeRow struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	FromAmountDkk int64     `json:"from_amount_dkk"`
	ToAmountVnd   int64     `json:"to_amount_vnd"`
	EffectiveRate string    `json:"effective_rate"`
	FeeAmount     *int64    `json:"fee_amount,omitempty"`
	FeeCurrency   *string   `json:"fee_currency,omitempty"`
	Provider      *string   `json:"provider,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Counts summarizes a snapshot's row counts.
type Counts struct {
	Wallets      int `json:"wallets"`
	Transactions int `json:"transactions"`
	Exchanges    int `json:"exchanges"`
}

// Backup is the full snapshot payload.
type Backup struct {
	Version      int              `json:"version"`
	Scope        string           `json:"scope"`
	ExportedAt   time.Time        `json:"exported_at"`
	Counts       Counts           `json:"counts"`
	Wallets      []WalletRow      `json:"wallets"`
	Transactions []TransactionRow `json:"transactions"`
	Exchanges    []ExchangeRow    `json:"exchanges"`
}

// Service exposes snapshot and restore.
type Service interface {
	Snapshot(ctx context.Context) (Backup, error)
	Restore(ctx context.Context, b Backup, mode Mode) (Counts, error)
}

type service struct {
	store Store
	now   func() time.Time
}

// New constructs the backup service.
func New(store Store) Service {
	return &service{store: store, now: time.Now}
}

func (s *service) Snapshot(ctx context.Context) (Backup, error) {
	var (
		wallets []ledger.Wallet
		txns    []ledger.Transaction
		exs     []ledger.Exchange
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		wallets, err = s.store.AllWallets(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		txns, err = s.store.AllTransactions(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		exs, err = s.store.AllExchanges(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Backup{}, err
	}

	b := Backup{
		Version:      backupVersion,
		Scope:        backupScope,
		ExportedAt:   s.now().UTC(),
		Wallets:      make([]WalletRow, 0, len(wallets)),
		Transactions: make([]TransactionRow, 0, len(txns)),
		Exchanges:    make([]ExchangeRow, 0, len(exs)),
	}
	for _, w := range wallets {
		b.Wallets = append(b.Wallets, WalletRow{ID: w.ID, Name: w.Name, Currency: string(w.Currency)})
	}
	for _, t := range txns {
		row := TransactionRow{
			ID:          t.ID,
			UserID:      t.UserID,
			WalletID:    t.WalletID,
			Type:        string(t.Type),
			Currency:    string(t.Currency),
			AmountMinor: t.AmountMinor,
			Category:    t.Category,
			Note:        t.Note,
			CreatedAt:   t.CreatedAt,
		}
		if t.PaymentMethod != nil {
			pm := string(*t.PaymentMethod)
			row.PaymentMethod = &pm
		}
		b.Transactions = append(b.Transactions, row)
	}
	for _, e := range exs {
		row := ExchangeRow{
			ID:            e.ID,
			UserID:        e.UserID,
			FromAmountDkk: e.FromAmountDkk,
			ToAmountVnd:   e.ToAmountVnd,
			EffectiveRate: e.EffectiveRate,
			FeeAmount:     e.FeeAmount,
			Provider:      e.Provider,
			CreatedAt:     e.CreatedAt,
		}
		if e.FeeCurrency != nil {
			fc := string(*e.FeeCurrency)
			row.FeeCurrency = &fc
		}
		b.Exchanges = append(b.Exchanges, row)
	}
	b.Counts = Counts{Wallets: len(b.Wallets), Transactions: len(b.Transactions), Exchanges: len(b.Exchanges)}
	return b, nil
}

// Restore loads a snapshot into the store. Wallet identity is reconciled by
// currency code, never by the snapshot's wallet ids, so snapshots move
// cleanly between environments. Replace wipes all ledger rows first and
// keeps snapshot row ids; append inserts alongside existing rows under
// fresh ids.
func (s *service) Restore(ctx context.Context, b Backup, mode Mode) (Counts, error) {
	if mode != ModeReplace && mode != ModeAppend {
		return Counts{}, errs.ErrInvalid
	}
	txns, exs, err := validateRows(b)
	if err != nil {
		return Counts{}, err
	}

	tx, err := s.store.BeginRestore(ctx)
	if err != nil {
		return Counts{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	wallets, err := tx.EnsureWallets(ctx)
	if err != nil {
		return Counts{}, err
	}
	dkk, okDkk := wallets[ledger.CurrencyDKK]
	vnd, okVnd := wallets[ledger.CurrencyVND]
	if !okDkk || !okVnd {
		return Counts{}, errs.ErrWalletMissing
	}

	if mode == ModeReplace {
		if err := tx.DeleteAllExchanges(ctx); err != nil {
			return Counts{}, err
		}
		if err := tx.DeleteAllTransactions(ctx); err != nil {
			return Counts{}, err
		}
	}

	for _, t := range txns {
		w, ok := wallets[t.Currency]
		if !ok {
			return Counts{}, errs.ErrWalletMissing
		}
		t.WalletID = w.ID
		if mode == ModeAppend {
			t.ID = uuid.New()
		}
		if err := tx.CreateTransaction(ctx, t); err != nil {
			return Counts{}, err
		}
	}
	for _, e := range exs {
		e.FromWalletID = dkk.ID
		e.ToWalletID = vnd.ID
		if mode == ModeAppend {
			e.ID = uuid.New()
		}
		if err := tx.CreateExchange(ctx, e); err != nil {
			return Counts{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Counts{}, err
	}
	return Counts{Wallets: len(wallets), Transactions: len(txns), Exchanges: len(exs)}, nil
}

// validateRows rejects a snapshot before any store access when any row is
// malformed; a restore never partially applies.
func validateRows(b Backup) ([]ledger.Transaction, []ledger.Exchange, error) {
	txns := make([]ledger.Transaction, 0, len(b.Transactions))
	for _, row := range b.Transactions {
		typ, okType := ledger.ParseTransactionType(row.Type)
		cur, okCur := ledger.ParseCurrency(row.Currency)
		if !okType || !okCur || row.UserID == uuid.Nil || row.AmountMinor <= 0 {
			return nil, nil, errs.ErrUnprocessable
		}
		t := ledger.Transaction{
			ID:          row.ID,
			UserID:      row.UserID,
			Type:        typ,
			Currency:    cur,
			AmountMinor: row.AmountMinor,
			Category:    row.Category,
			Note:        row.Note,
			CreatedAt:   row.CreatedAt.UTC(),
		}
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		if row.PaymentMethod != nil {
			pm, ok := ledger.ParsePaymentMethod(*row.PaymentMethod)
			if !ok || typ != ledger.TypeExpense {
				return nil, nil, errs.ErrUnprocessable
			}
			t.PaymentMethod = &pm
		}
		txns = append(txns, t)
	}

	exs := make([]ledger.Exchange, 0, len(b.Exchanges))
	for _, row := range b.Exchanges {
		if row.UserID == uuid.Nil || row.FromAmountDkk <= 0 || row.ToAmountVnd <= 0 {
			return nil, nil, errs.ErrUnprocessable
		}
		rate, err := money.EffectiveRate(row.FromAmountDkk, row.ToAmountVnd)
		if err != nil {
			return nil, nil, errs.ErrUnprocessable
		}
		e := ledger.Exchange{
			ID:            row.ID,
			UserID:        row.UserID,
			FromAmountDkk: row.FromAmountDkk,
			ToAmountVnd:   row.ToAmountVnd,
			EffectiveRate: rate,
			Provider:      row.Provider,
			CreatedAt:     row.CreatedAt.UTC(),
		}
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if row.FeeAmount != nil {
			if *row.FeeAmount < 0 {
				return nil, nil, errs.ErrUnprocessable
			}
			fee := *row.FeeAmount
			e.FeeAmount = &fee
			fc := ledger.CurrencyDKK
			if row.FeeCurrency != nil {
				c, ok := ledger.ParseCurrency(*row.FeeCurrency)
				if !ok {
					return nil, nil, errs.ErrUnprocessable
				}
				fc = c
			}
			e.FeeCurrency = &fc
		}
		exs = append(exs, e)
	}
	return txns, exs, nil
}
