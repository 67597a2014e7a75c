package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"fintrack/internal/httpapi"
	"fintrack/internal/ledger"
	"fintrack/internal/money"
	"fintrack/internal/storage/memory"
	pgstore "fintrack/internal/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Local .env is optional; real deployments set env directly.
	_ = godotenv.Load()

	// Logger (slog to stdout). Level via LOG_LEVEL; format via LOG_FORMAT (json|text, default json)
	logger := buildLoggerFromEnv()
	slog.SetDefault(logger)

	var srvMux http.Handler
	var closeFn func()

	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		// Use Postgres store when DATABASE_URL is provided
		if err := pgstore.RunMigrations(dsn); err != nil {
			logger.Error("migrations failed", "err", err)
			os.Exit(1)
		}
		pg, err := pgstore.Open(ctx, dsn)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		closeFn = func() { pg.Close() }
		srvMux = httpapi.New(pg, logger).Handler()
		logger.Info("storage backend: postgres")
	} else {
		// Default to in-memory store with a small dev seed
		store := memory.New()
		if devSeedEnabled() {
			userID := seedDev(store)
			logger.Info("DEV seed (memory)", "user_id", userID.String())
			printDevSeedBanner(userID)
		}
		srvMux = httpapi.New(store, logger).Handler()
		logger.Info("storage backend: memory")
	}

	srv := &http.Server{
		Addr:              listenAddr(),
		Handler:           srvMux,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("wallet service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
	if closeFn != nil {
		closeFn()
	}
}

func listenAddr() string {
	if addr := strings.TrimSpace(os.Getenv("ADDR")); addr != "" {
		return addr
	}
	return ":8080"
}

func devSeedEnabled() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEV_SEED"))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// seedDev puts a little history into the memory store so the dashboard and
// balances have something to show.
func seedDev(store *memory.Store) uuid.UUID {
	userID := uuid.New()
	wallets, _ := store.EnsureWallets(context.Background())
	now := time.Now().UTC()
	salary := "Lương"
	groceries := "Ăn uống"
	store.SeedTransaction(ledger.Transaction{
		ID: uuid.New(), UserID: userID, WalletID: wallets[ledger.CurrencyDKK].ID,
		Type: ledger.TypeIncome, Currency: ledger.CurrencyDKK,
		AmountMinor: 2_500_000, Category: &salary, CreatedAt: now.AddDate(0, 0, -20),
	})
	store.SeedTransaction(ledger.Transaction{
		ID: uuid.New(), UserID: userID, WalletID: wallets[ledger.CurrencyDKK].ID,
		Type: ledger.TypeExpense, Currency: ledger.CurrencyDKK,
		AmountMinor: 45_000, Category: &groceries, CreatedAt: now.AddDate(0, 0, -3),
	})
	return userID
}

// printDevSeedBanner prints the seeded user id for easy copy/paste.
func printDevSeedBanner(userID uuid.UUID) {
	fmt.Println("==================== DEV SEED ====================")
	fmt.Printf("user_id: %s\n", userID.String())
	fmt.Printf("balance: %s\n", money.Display(2_500_000-45_000, ledger.CurrencyDKK))
	fmt.Println("==================================================")
}

// parseLogLevel maps env values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
	switch s {
	case "DEBUG", "debug":
		return slog.LevelDebug
	case "WARN", "WARNING", "warn", "warning":
		return slog.LevelWarn
	case "ERROR", "ERR", "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLoggerFromEnv() *slog.Logger {
	level := parseLogLevel(os.Getenv("LOG_LEVEL"))
	format := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT")))
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	// default to JSON
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
