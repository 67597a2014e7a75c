// Package postgres provides a pgx-backed storage implementation that
// satisfies the repository and transaction interfaces used by the services.
//
// It is intentionally small and explicit. Migrations that create the
// expected schema are embedded next to this package. Guarded mutations run
// as real SQL transactions holding per-user advisory locks, so two
// concurrent expense submissions for one user serialize and a bulk restore
// excludes every user mutation.
package postgres

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fintrack/internal/errs"
	"fintrack/internal/ledger"
	"fintrack/internal/service/backup"
	"fintrack/internal/service/wallet"
)

// restoreLockKey is the advisory lock namespace shared by all guarded
// mutations (shared mode) and the restore path (exclusive mode).
const restoreLockKey = int64(7_201_101)

// Store holds a pgx connection pool and implements the read/write
// interfaces used across the service layer. All methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// querier abstracts pool vs transaction so row mapping is written once.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// userLockKey derives the advisory lock key for one user's mutations.
func userLockKey(userID uuid.UUID) int64 {
	h := fnv.New64a()
	_, _ = h.Write(userID[:])
	return int64(h.Sum64())
}

// --- Wallets ---

func ensureWallets(ctx context.Context, q querier) (map[ledger.Currency]ledger.Wallet, error) {
	now := time.Now().UTC()
	for _, c := range []ledger.Currency{ledger.CurrencyDKK, ledger.CurrencyVND} {
		if _, err := q.Exec(ctx, `
			insert into wallets (id, name, currency, created_at, updated_at)
			values ($1, $2, $3, $4, $4)
			on conflict (currency) do nothing
		`, uuid.New(), ledger.WalletName(c), string(c), now); err != nil {
			return nil, err
		}
	}
	rows, err := q.Query(ctx, `select id, name, currency, created_at, updated_at from wallets`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[ledger.Currency]ledger.Wallet, 2)
	for rows.Next() {
		var w ledger.Wallet
		var cur string
		if err := rows.Scan(&w.ID, &w.Name, &cur, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		w.Currency = ledger.Currency(cur)
		out[w.Currency] = w
	}
	return out, rows.Err()
}

// EnsureWallets implements wallet.Repo.
func (s *Store) EnsureWallets(ctx context.Context) (map[ledger.Currency]ledger.Wallet, error) {
	return ensureWallets(ctx, s.pool)
}

// AllWallets implements backup.Store, ordered by currency.
func (s *Store) AllWallets(ctx context.Context) ([]ledger.Wallet, error) {
	rows, err := s.pool.Query(ctx, `
		select id, name, currency, created_at, updated_at
		from wallets
		order by currency asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Wallet, 0, 2)
	for rows.Next() {
		var w ledger.Wallet
		var cur string
		if err := rows.Scan(&w.ID, &w.Name, &cur, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		w.Currency = ledger.Currency(cur)
		out = append(out, w)
	}
	return out, rows.Err()
}

// --- Transaction rows ---

const transactionColumns = `id, user_id, wallet_id, type, currency, amount_minor, category, note, payment_method, created_at`

func scanTransaction(row pgx.Row) (ledger.Transaction, error) {
	var t ledger.Transaction
	var typ, cur string
	var pm *string
	if err := row.Scan(&t.ID, &t.UserID, &t.WalletID, &typ, &cur, &t.AmountMinor, &t.Category, &t.Note, &pm, &t.CreatedAt); err != nil {
		return ledger.Transaction{}, err
	}
	t.Type = ledger.TransactionType(typ)
	t.Currency = ledger.Currency(cur)
	if pm != nil {
		m := ledger.PaymentMethod(*pm)
		t.PaymentMethod = &m
	}
	return t, nil
}

func queryTransactions(ctx context.Context, q querier, sql string, args ...any) ([]ledger.Transaction, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func transactionsByUser(ctx context.Context, q querier, userID uuid.UUID) ([]ledger.Transaction, error) {
	return queryTransactions(ctx, q, `
		select `+transactionColumns+`
		from transactions
		where user_id = $1
		order by created_at asc, id asc
	`, userID)
}

func transactionByID(ctx context.Context, q querier, userID, id uuid.UUID) (ledger.Transaction, error) {
	t, err := scanTransaction(q.QueryRow(ctx, `
		select `+transactionColumns+`
		from transactions
		where id = $1 and user_id = $2
	`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Transaction{}, errs.ErrNotFound
	}
	return t, err
}

func insertTransaction(ctx context.Context, q querier, t ledger.Transaction) error {
	var pm *string
	if t.PaymentMethod != nil {
		v := string(*t.PaymentMethod)
		pm = &v
	}
	_, err := q.Exec(ctx, `
		insert into transactions (`+transactionColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, t.ID, t.UserID, t.WalletID, string(t.Type), string(t.Currency), t.AmountMinor, t.Category, t.Note, pm, t.CreatedAt)
	return err
}

// TransactionsByUser implements wallet.Repo and dashboard.Repo.
func (s *Store) TransactionsByUser(ctx context.Context, userID uuid.UUID) ([]ledger.Transaction, error) {
	return transactionsByUser(ctx, s.pool, userID)
}

// TransactionByID implements wallet.Repo. A foreign user's row reads as not
// found.
func (s *Store) TransactionByID(ctx context.Context, userID, id uuid.UUID) (ledger.Transaction, error) {
	return transactionByID(ctx, s.pool, userID, id)
}

// ListTransactions implements wallet.Repo: newest first, narrowed by q.
func (s *Store) ListTransactions(ctx context.Context, userID uuid.UUID, q wallet.ListQuery) ([]ledger.Transaction, error) {
	sql := `select ` + transactionColumns + ` from transactions where user_id = $1`
	args := []any{userID}
	if q.Type != nil {
		args = append(args, string(*q.Type))
		sql += ` and type = $` + strconv.Itoa(len(args))
	}
	if q.Currency != nil {
		args = append(args, string(*q.Currency))
		sql += ` and currency = $` + strconv.Itoa(len(args))
	}
	if q.Start != nil {
		args = append(args, *q.Start)
		sql += ` and created_at >= $` + strconv.Itoa(len(args))
	}
	if q.End != nil {
		args = append(args, *q.End)
		sql += ` and created_at <= $` + strconv.Itoa(len(args))
	}
	sql += ` order by created_at desc, id desc`
	return queryTransactions(ctx, s.pool, sql, args...)
}

// AllTransactions implements backup.Store, ordered by creation time.
func (s *Store) AllTransactions(ctx context.Context) ([]ledger.Transaction, error) {
	return queryTransactions(ctx, s.pool, `
		select `+transactionColumns+`
		from transactions
		order by created_at asc, id asc
	`)
}

// --- Exchange rows ---

const exchangeColumns = `id, user_id, from_wallet_id, to_wallet_id, from_amount_dkk, to_amount_vnd, effective_rate, fee_amount, fee_currency, provider, created_at`

func scanExchange(row pgx.Row) (ledger.Exchange, error) {
	var e ledger.Exchange
	var feeCur *string
	if err := row.Scan(&e.ID, &e.UserID, &e.FromWalletID, &e.ToWalletID, &e.FromAmountDkk, &e.ToAmountVnd, &e.EffectiveRate, &e.FeeAmount, &feeCur, &e.Provider, &e.CreatedAt); err != nil {
		return ledger.Exchange{}, err
	}
	if feeCur != nil {
		c := ledger.Currency(*feeCur)
		e.FeeCurrency = &c
	}
	return e, nil
}

func queryExchanges(ctx context.Context, q querier, sql string, args ...any) ([]ledger.Exchange, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Exchange, 0)
	for rows.Next() {
		e, err := scanExchange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func exchangesByUser(ctx context.Context, q querier, userID uuid.UUID) ([]ledger.Exchange, error) {
	return queryExchanges(ctx, q, `
		select `+exchangeColumns+`
		from exchanges
		where user_id = $1
		order by created_at asc, id asc
	`, userID)
}

func exchangeByID(ctx context.Context, q querier, userID, id uuid.UUID) (ledger.Exchange, error) {
	e, err := scanExchange(q.QueryRow(ctx, `
		select `+exchangeColumns+`
		from exchanges
		where id = $1 and user_id = $2
	`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Exchange{}, errs.ErrNotFound
	}
	return e, err
}

func insertExchange(ctx context.Context, q querier, e ledger.Exchange) error {
	var feeCur *string
	if e.FeeCurrency != nil {
		v := string(*e.FeeCurrency)
		feeCur = &v
	}
	_, err := q.Exec(ctx, `
		insert into exchanges (`+exchangeColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, e.ID, e.UserID, e.FromWalletID, e.ToWalletID, e.FromAmountDkk, e.ToAmountVnd, e.EffectiveRate, e.FeeAmount, feeCur, e.Provider, e.CreatedAt)
	return err
}

// ExchangesByUser implements wallet.Repo and dashboard.Repo.
func (s *Store) ExchangesByUser(ctx context.Context, userID uuid.UUID) ([]ledger.Exchange, error) {
	return exchangesByUser(ctx, s.pool, userID)
}

// ExchangeByID implements wallet.Repo.
func (s *Store) ExchangeByID(ctx context.Context, userID, id uuid.UUID) (ledger.Exchange, error) {
	return exchangeByID(ctx, s.pool, userID, id)
}

// ListExchanges implements wallet.Repo: newest first, narrowed by time
// bounds.
func (s *Store) ListExchanges(ctx context.Context, userID uuid.UUID, q wallet.ListQuery) ([]ledger.Exchange, error) {
	sql := `select ` + exchangeColumns + ` from exchanges where user_id = $1`
	args := []any{userID}
	if q.Start != nil {
		args = append(args, *q.Start)
		sql += ` and created_at >= $` + strconv.Itoa(len(args))
	}
	if q.End != nil {
		args = append(args, *q.End)
		sql += ` and created_at <= $` + strconv.Itoa(len(args))
	}
	sql += ` order by created_at desc, id desc`
	return queryExchanges(ctx, s.pool, sql, args...)
}

// AllExchanges implements backup.Store, ordered by creation time.
func (s *Store) AllExchanges(ctx context.Context) ([]ledger.Exchange, error) {
	return queryExchanges(ctx, s.pool, `
		select `+exchangeColumns+`
		from exchanges
		order by created_at asc, id asc
	`)
}

// --- Transactions ---

// Tx wraps a pgx.Tx holding the advisory locks for a guarded mutation.
type Tx struct {
	tx pgx.Tx
}

// BeginUserTx implements wallet.TxBeginner. The shared restore lock lets
// user mutations run concurrently with each other while excluding restore;
// the per-user lock serializes mutations for one user.
func (s *Store) BeginUserTx(ctx context.Context, userID uuid.UUID) (wallet.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `select pg_advisory_xact_lock_shared($1)`, restoreLockKey); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	if _, err := tx.Exec(ctx, `select pg_advisory_xact_lock($1)`, userLockKey(userID)); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// BeginRestore implements backup.Store with the exclusive restore lock.
func (s *Store) BeginRestore(ctx context.Context) (backup.RestoreTx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `select pg_advisory_xact_lock($1)`, restoreLockKey); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

func (t *Tx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *Tx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

func (t *Tx) EnsureWallets(ctx context.Context) (map[ledger.Currency]ledger.Wallet, error) {
	return ensureWallets(ctx, t.tx)
}

func (t *Tx) TransactionsByUser(ctx context.Context, userID uuid.UUID) ([]ledger.Transaction, error) {
	return transactionsByUser(ctx, t.tx, userID)
}

func (t *Tx) ExchangesByUser(ctx context.Context, userID uuid.UUID) ([]ledger.Exchange, error) {
	return exchangesByUser(ctx, t.tx, userID)
}

func (t *Tx) TransactionByID(ctx context.Context, userID, id uuid.UUID) (ledger.Transaction, error) {
	return transactionByID(ctx, t.tx, userID, id)
}

func (t *Tx) ExchangeByID(ctx context.Context, userID, id uuid.UUID) (ledger.Exchange, error) {
	return exchangeByID(ctx, t.tx, userID, id)
}

func (t *Tx) CreateTransaction(ctx context.Context, row ledger.Transaction) error {
	return insertTransaction(ctx, t.tx, row)
}

func (t *Tx) UpdateTransaction(ctx context.Context, row ledger.Transaction) error {
	var pm *string
	if row.PaymentMethod != nil {
		v := string(*row.PaymentMethod)
		pm = &v
	}
	ct, err := t.tx.Exec(ctx, `
		update transactions
		set wallet_id=$1, currency=$2, amount_minor=$3, category=$4, note=$5, payment_method=$6
		where id=$7 and user_id=$8
	`, row.WalletID, string(row.Currency), row.AmountMinor, row.Category, row.Note, pm, row.ID, row.UserID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (t *Tx) DeleteTransaction(ctx context.Context, userID, id uuid.UUID) error {
	ct, err := t.tx.Exec(ctx, `delete from transactions where id=$1 and user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (t *Tx) CreateExchange(ctx context.Context, row ledger.Exchange) error {
	return insertExchange(ctx, t.tx, row)
}

func (t *Tx) UpdateExchange(ctx context.Context, row ledger.Exchange) error {
	var feeCur *string
	if row.FeeCurrency != nil {
		v := string(*row.FeeCurrency)
		feeCur = &v
	}
	ct, err := t.tx.Exec(ctx, `
		update exchanges
		set from_amount_dkk=$1, to_amount_vnd=$2, effective_rate=$3, fee_amount=$4, fee_currency=$5
		where id=$6 and user_id=$7
	`, row.FromAmountDkk, row.ToAmountVnd, row.EffectiveRate, row.FeeAmount, feeCur, row.ID, row.UserID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (t *Tx) DeleteExchange(ctx context.Context, userID, id uuid.UUID) error {
	ct, err := t.tx.Exec(ctx, `delete from exchanges where id=$1 and user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (t *Tx) DeleteAllTransactions(ctx context.Context) error {
	_, err := t.tx.Exec(ctx, `delete from transactions`)
	return err
}

func (t *Tx) DeleteAllExchanges(ctx context.Context) error {
	_, err := t.tx.Exec(ctx, `delete from exchanges`)
	return err
}

