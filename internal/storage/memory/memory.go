// Package memory provides a simple in-memory implementation used for
// development and tests. It keeps code paths easy to follow while allowing
// us to plug in a real DB later.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/errs"
	"fintrack/internal/ledger"
	"fintrack/internal/service/backup"
	"fintrack/internal/service/wallet"
)

// Store is an in-memory implementation of the repository surfaces used by
// the services. It is guarded by an RWMutex for concurrent reads/writes;
// transactions hold the write lock from begin to commit, which serializes
// guarded mutations across all users and gives restore exclusive access.
type Store struct {
	mu      sync.RWMutex
	wallets map[ledger.Currency]ledger.Wallet
	txns    map[uuid.UUID]ledger.Transaction
	exs     map[uuid.UUID]ledger.Exchange
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		wallets: make(map[ledger.Currency]ledger.Wallet),
		txns:    make(map[uuid.UUID]ledger.Transaction),
		exs:     make(map[uuid.UUID]ledger.Exchange),
	}
}

// Seed helpers for local dev/tests.
func (s *Store) SeedTransaction(t ledger.Transaction) {
	s.mu.Lock()
	s.txns[t.ID] = t
	s.mu.Unlock()
}

func (s *Store) SeedExchange(e ledger.Exchange) {
	s.mu.Lock()
	s.exs[e.ID] = e
	s.mu.Unlock()
}

func (s *Store) Reset() {
	s.mu.Lock()
	s.wallets = map[ledger.Currency]ledger.Wallet{}
	s.txns = map[uuid.UUID]ledger.Transaction{}
	s.exs = map[uuid.UUID]ledger.Exchange{}
	s.mu.Unlock()
}

// Ready implements the readiness probe; the memory store is always ready.
func (s *Store) Ready(context.Context) error { return nil }

func (s *Store) ensureWalletsLocked() map[ledger.Currency]ledger.Wallet {
	for _, c := range []ledger.Currency{ledger.CurrencyDKK, ledger.CurrencyVND} {
		if _, ok := s.wallets[c]; !ok {
			now := time.Now().UTC()
			s.wallets[c] = ledger.Wallet{
				ID:        uuid.New(),
				Name:      ledger.WalletName(c),
				Currency:  c,
				CreatedAt: now,
				UpdatedAt: now,
			}
		}
	}
	out := make(map[ledger.Currency]ledger.Wallet, len(s.wallets))
	for c, w := range s.wallets {
		out[c] = w
	}
	return out
}

func (s *Store) transactionsByUserLocked(userID uuid.UUID) []ledger.Transaction {
	out := make([]ledger.Transaction, 0)
	for _, t := range s.txns {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sortTransactionsAsc(out)
	return out
}

func (s *Store) exchangesByUserLocked(userID uuid.UUID) []ledger.Exchange {
	out := make([]ledger.Exchange, 0)
	for _, e := range s.exs {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sortExchangesAsc(out)
	return out
}

func sortTransactionsAsc(ts []ledger.Transaction) {
	sort.Slice(ts, func(i, j int) bool {
		if !ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].CreatedAt.Before(ts[j].CreatedAt)
		}
		return ts[i].ID.String() < ts[j].ID.String()
	})
}

func sortExchangesAsc(es []ledger.Exchange) {
	sort.Slice(es, func(i, j int) bool {
		if !es[i].CreatedAt.Equal(es[j].CreatedAt) {
			return es[i].CreatedAt.Before(es[j].CreatedAt)
		}
		return es[i].ID.String() < es[j].ID.String()
	})
}

// EnsureWallets implements wallet.Repo.
func (s *Store) EnsureWallets(context.Context) (map[ledger.Currency]ledger.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureWalletsLocked(), nil
}

// TransactionsByUser implements wallet.Repo and dashboard.Repo.
func (s *Store) TransactionsByUser(_ context.Context, userID uuid.UUID) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transactionsByUserLocked(userID), nil
}

// ExchangesByUser implements wallet.Repo and dashboard.Repo.
func (s *Store) ExchangesByUser(_ context.Context, userID uuid.UUID) ([]ledger.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exchangesByUserLocked(userID), nil
}

// TransactionByID implements wallet.Repo. A foreign user's row reads as not
// found.
func (s *Store) TransactionByID(_ context.Context, userID, id uuid.UUID) (ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.txns[id]
	if !ok || t.UserID != userID {
		return ledger.Transaction{}, errs.ErrNotFound
	}
	return t, nil
}

// ExchangeByID implements wallet.Repo.
func (s *Store) ExchangeByID(_ context.Context, userID, id uuid.UUID) (ledger.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.exs[id]
	if !ok || e.UserID != userID {
		return ledger.Exchange{}, errs.ErrNotFound
	}
	return e, nil
}

func matchTransaction(t ledger.Transaction, q wallet.ListQuery) bool {
	if q.Type != nil && t.Type != *q.Type {
		return false
	}
	if q.Currency != nil && t.Currency != *q.Currency {
		return false
	}
	return matchTime(t.CreatedAt, q)
}

func matchTime(at time.Time, q wallet.ListQuery) bool {
	if q.Start != nil && at.Before(*q.Start) {
		return false
	}
	if q.End != nil && at.After(*q.End) {
		return false
	}
	return true
}

// ListTransactions implements wallet.Repo: newest first, narrowed by q.
func (s *Store) ListTransactions(_ context.Context, userID uuid.UUID, q wallet.ListQuery) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.transactionsByUserLocked(userID)
	out := make([]ledger.Transaction, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if matchTransaction(all[i], q) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// ListExchanges implements wallet.Repo: newest first, narrowed by time
// bounds.
func (s *Store) ListExchanges(_ context.Context, userID uuid.UUID, q wallet.ListQuery) ([]ledger.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.exchangesByUserLocked(userID)
	out := make([]ledger.Exchange, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if matchTime(all[i].CreatedAt, q) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// AllWallets implements backup.Store, ordered by currency.
func (s *Store) AllWallets(context.Context) ([]ledger.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Wallet, 0, len(s.wallets))
	for _, w := range s.wallets {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

// AllTransactions implements backup.Store, ordered by creation time.
func (s *Store) AllTransactions(context.Context) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Transaction, 0, len(s.txns))
	for _, t := range s.txns {
		out = append(out, t)
	}
	sortTransactionsAsc(out)
	return out, nil
}

// AllExchanges implements backup.Store, ordered by creation time.
func (s *Store) AllExchanges(context.Context) ([]ledger.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Exchange, 0, len(s.exs))
	for _, e := range s.exs {
		out = append(out, e)
	}
	sortExchangesAsc(out)
	return out, nil
}

// tx is a store transaction. It holds the write lock for its whole
// lifetime and keeps a copy of the maps for rollback, so a failed solvency
// check or handler error leaves the store untouched.
type tx struct {
	s        *Store
	userID   uuid.UUID
	done     bool
	undoWals map[ledger.Currency]ledger.Wallet
	undoTxns map[uuid.UUID]ledger.Transaction
	undoExs  map[uuid.UUID]ledger.Exchange
}

func (s *Store) begin(userID uuid.UUID) *tx {
	s.mu.Lock()
	t := &tx{
		s:        s,
		userID:   userID,
		undoWals: make(map[ledger.Currency]ledger.Wallet, len(s.wallets)),
		undoTxns: make(map[uuid.UUID]ledger.Transaction, len(s.txns)),
		undoExs:  make(map[uuid.UUID]ledger.Exchange, len(s.exs)),
	}
	for k, v := range s.wallets {
		t.undoWals[k] = v
	}
	for k, v := range s.txns {
		t.undoTxns[k] = v
	}
	for k, v := range s.exs {
		t.undoExs[k] = v
	}
	return t
}

// BeginUserTx implements wallet.TxBeginner.
func (s *Store) BeginUserTx(_ context.Context, userID uuid.UUID) (wallet.Tx, error) {
	return s.begin(userID), nil
}

// BeginRestore implements backup.Store. The write lock makes the restore
// exclusive against every user transaction.
func (s *Store) BeginRestore(context.Context) (backup.RestoreTx, error) {
	return s.begin(uuid.Nil), nil
}

func (t *tx) Commit(context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.mu.Unlock()
	return nil
}

func (t *tx) Rollback(context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.wallets = t.undoWals
	t.s.txns = t.undoTxns
	t.s.exs = t.undoExs
	t.s.mu.Unlock()
	return nil
}

func (t *tx) EnsureWallets(context.Context) (map[ledger.Currency]ledger.Wallet, error) {
	return t.s.ensureWalletsLocked(), nil
}

func (t *tx) TransactionsByUser(_ context.Context, userID uuid.UUID) ([]ledger.Transaction, error) {
	return t.s.transactionsByUserLocked(userID), nil
}

func (t *tx) ExchangesByUser(_ context.Context, userID uuid.UUID) ([]ledger.Exchange, error) {
	return t.s.exchangesByUserLocked(userID), nil
}

func (t *tx) TransactionByID(_ context.Context, userID, id uuid.UUID) (ledger.Transaction, error) {
	row, ok := t.s.txns[id]
	if !ok || row.UserID != userID {
		return ledger.Transaction{}, errs.ErrNotFound
	}
	return row, nil
}

func (t *tx) ExchangeByID(_ context.Context, userID, id uuid.UUID) (ledger.Exchange, error) {
	row, ok := t.s.exs[id]
	if !ok || row.UserID != userID {
		return ledger.Exchange{}, errs.ErrNotFound
	}
	return row, nil
}

func (t *tx) CreateTransaction(_ context.Context, row ledger.Transaction) error {
	t.s.txns[row.ID] = row
	return nil
}

func (t *tx) UpdateTransaction(_ context.Context, row ledger.Transaction) error {
	prev, ok := t.s.txns[row.ID]
	if !ok || prev.UserID != row.UserID {
		return errs.ErrNotFound
	}
	t.s.txns[row.ID] = row
	return nil
}

func (t *tx) DeleteTransaction(_ context.Context, userID, id uuid.UUID) error {
	prev, ok := t.s.txns[id]
	if !ok || prev.UserID != userID {
		return errs.ErrNotFound
	}
	delete(t.s.txns, id)
	return nil
}

func (t *tx) CreateExchange(_ context.Context, row ledger.Exchange) error {
	t.s.exs[row.ID] = row
	return nil
}

func (t *tx) UpdateExchange(_ context.Context, row ledger.Exchange) error {
	prev, ok := t.s.exs[row.ID]
	if !ok || prev.UserID != row.UserID {
		return errs.ErrNotFound
	}
	t.s.exs[row.ID] = row
	return nil
}

func (t *tx) DeleteExchange(_ context.Context, userID, id uuid.UUID) error {
	prev, ok := t.s.exs[id]
	if !ok || prev.UserID != userID {
		return errs.ErrNotFound
	}
	delete(t.s.exs, id)
	return nil
}

func (t *tx) DeleteAllTransactions(context.Context) error {
	t.s.txns = map[uuid.UUID]ledger.Transaction{}
	return nil
}

func (t *tx) DeleteAllExchanges(context.Context) error {
	t.s.exs = map[uuid.UUID]ledger.Exchange{}
	return nil
}
