package backup_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/errs"
	"fintrack/internal/ledger"
	"fintrack/internal/service/backup"
	"fintrack/internal/service/wallet"
	"fintrack/internal/storage/memory"
)

func seedStore(t *testing.T) (*memory.Store, uuid.UUID) {
	t.Helper()
	store := memory.New()
	userID := uuid.New()
	wallets, err := store.EnsureWallets(context.Background())
	if err != nil {
		t.Fatalf("ensure wallets: %v", err)
	}
	store.SeedTransaction(ledger.Transaction{
		ID: uuid.New(), UserID: userID, WalletID: wallets[ledger.CurrencyDKK].ID,
		Type: ledger.TypeIncome, Currency: ledger.CurrencyDKK, AmountMinor: 10000,
		CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	})
	fee := int64(200)
	store.SeedExchange(ledger.Exchange{
		ID: uuid.New(), UserID: userID,
		FromWalletID: wallets[ledger.CurrencyDKK].ID, ToWalletID: wallets[ledger.CurrencyVND].ID,
		FromAmountDkk: 5000, ToAmountVnd: 150000, EffectiveRate: "3000", FeeAmount: &fee,
		CreatedAt: time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC),
	})
	return store, userID
}

func TestSnapshotShape(t *testing.T) {
	store, _ := seedStore(t)
	svc := backup.New(store)
	b, err := svc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if b.Version != 1 || b.Scope != "ledger" {
		t.Errorf("metadata: version=%d scope=%q", b.Version, b.Scope)
	}
	if b.ExportedAt.IsZero() {
		t.Error("exported_at not set")
	}
	if b.Counts.Wallets != 2 || b.Counts.Transactions != 1 || b.Counts.Exchanges != 1 {
		t.Errorf("counts: %+v", b.Counts)
	}
	if len(b.Wallets) != 2 || b.Wallets[0].Currency != "DKK" {
		t.Errorf("wallets not ordered by currency: %+v", b.Wallets)
	}
}

func TestRestoreReplaceReKeysWallets(t *testing.T) {
	source, userID := seedStore(t)
	b, err := backup.New(source).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	// A fresh target mints its own wallet rows; restore must bind rows to
	// them by currency, not by the snapshot's wallet ids.
	target := memory.New()
	otherUser := uuid.New()
	wallets, _ := target.EnsureWallets(context.Background())
	target.SeedTransaction(ledger.Transaction{
		ID: uuid.New(), UserID: otherUser, WalletID: wallets[ledger.CurrencyDKK].ID,
		Type: ledger.TypeIncome, Currency: ledger.CurrencyDKK, AmountMinor: 777,
		CreatedAt: time.Now().UTC(),
	})

	counts, err := backup.New(target).Restore(context.Background(), b, backup.ModeReplace)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if counts.Transactions != 1 || counts.Exchanges != 1 {
		t.Errorf("restore counts: %+v", counts)
	}

	// Replace wiped the pre-existing row for every user.
	if rows, _ := target.TransactionsByUser(context.Background(), otherUser); len(rows) != 0 {
		t.Errorf("pre-existing rows survived replace: %d", len(rows))
	}
	rows, _ := target.TransactionsByUser(context.Background(), userID)
	if len(rows) != 1 {
		t.Fatalf("restored rows = %d, want 1", len(rows))
	}
	targetWallets, _ := target.EnsureWallets(context.Background())
	if rows[0].WalletID != targetWallets[ledger.CurrencyDKK].ID {
		t.Errorf("transaction not re-keyed to the target DKK wallet")
	}

	// Balances replay cleanly after restore.
	svc := wallet.New(target, target)
	bals, err := svc.Balances(context.Background(), userID)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if bals[ledger.CurrencyDKK] != 10000-5000-200 {
		t.Errorf("DKK after restore = %d, want 4800", bals[ledger.CurrencyDKK])
	}
	if bals[ledger.CurrencyVND] != 150000 {
		t.Errorf("VND after restore = %d, want 150000", bals[ledger.CurrencyVND])
	}
}

func TestRestoreAppendKeepsExistingRows(t *testing.T) {
	source, userID := seedStore(t)
	b, err := backup.New(source).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	// The target already holds a row for the same user.
	target := memory.New()
	wallets, _ := target.EnsureWallets(context.Background())
	existing := ledger.Transaction{
		ID: uuid.New(), UserID: userID, WalletID: wallets[ledger.CurrencyDKK].ID,
		Type: ledger.TypeIncome, Currency: ledger.CurrencyDKK, AmountMinor: 500,
		CreatedAt: time.Now().UTC(),
	}
	target.SeedTransaction(existing)

	if _, err := backup.New(target).Restore(context.Background(), b, backup.ModeAppend); err != nil {
		t.Fatalf("append restore: %v", err)
	}
	rows, _ := target.TransactionsByUser(context.Background(), userID)
	if len(rows) != 2 {
		t.Fatalf("user rows after append = %d, want 2", len(rows))
	}
	// The pre-existing row survives under its id; the appended row gets a
	// fresh one.
	var keptExisting, freshID bool
	for _, r := range rows {
		if r.ID == existing.ID {
			keptExisting = true
		}
		if r.AmountMinor == 10000 && r.ID != b.Transactions[0].ID {
			freshID = true
		}
	}
	if !keptExisting {
		t.Error("append removed the pre-existing row")
	}
	if !freshID {
		t.Error("appended row kept the snapshot id")
	}
	exs, _ := target.ExchangesByUser(context.Background(), userID)
	if len(exs) != 1 {
		t.Errorf("exchanges after append = %d, want 1", len(exs))
	}
}

func TestRestoreValidatesRows(t *testing.T) {
	target := memory.New()
	svc := backup.New(target)

	bad := backup.Backup{
		Transactions: []backup.TransactionRow{{
			ID: uuid.New(), UserID: uuid.New(), Type: "TRANSFER", Currency: "DKK",
			AmountMinor: 100, CreatedAt: time.Now().UTC(),
		}},
	}
	if _, err := svc.Restore(context.Background(), bad, backup.ModeReplace); !errors.Is(err, errs.ErrUnprocessable) {
		t.Fatalf("bad type: got %v, want ErrUnprocessable", err)
	}

	bad = backup.Backup{
		Exchanges: []backup.ExchangeRow{{
			ID: uuid.New(), UserID: uuid.New(), FromAmountDkk: 0, ToAmountVnd: 100,
			CreatedAt: time.Now().UTC(),
		}},
	}
	if _, err := svc.Restore(context.Background(), bad, backup.ModeReplace); !errors.Is(err, errs.ErrUnprocessable) {
		t.Fatalf("zero leg: got %v, want ErrUnprocessable", err)
	}

	if _, err := svc.Restore(context.Background(), backup.Backup{}, backup.Mode("merge")); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("unknown mode: got %v, want ErrInvalid", err)
	}

	// Nothing was written by the failed restores.
	all, _ := target.AllTransactions(context.Background())
	if len(all) != 0 {
		t.Errorf("failed restore wrote %d rows", len(all))
	}
}

func TestRestoreRecomputesEffectiveRate(t *testing.T) {
	target := memory.New()
	userID := uuid.New()
	b := backup.Backup{
		Exchanges: []backup.ExchangeRow{{
			ID: uuid.New(), UserID: userID, FromAmountDkk: 5000, ToAmountVnd: 150000,
			EffectiveRate: "999999", CreatedAt: time.Now().UTC(),
		}},
	}
	if _, err := backup.New(target).Restore(context.Background(), b, backup.ModeReplace); err != nil {
		t.Fatalf("restore: %v", err)
	}
	exs, _ := target.ExchangesByUser(context.Background(), userID)
	if len(exs) != 1 {
		t.Fatalf("exchanges = %d", len(exs))
	}
	if exs[0].EffectiveRate != "3000" {
		t.Errorf("rate = %q, want recomputed %q", exs[0].EffectiveRate, "3000")
	}
}
