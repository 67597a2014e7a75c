package httpapi

import (
	"time"

	"github.com/google/uuid"

	"fintrack/internal/ledger"
	"fintrack/internal/money"
)

type postTransactionRequest struct {
	UserID        uuid.UUID  `json:"user_id"`
	Type          string     `json:"type"`
	Currency      string     `json:"currency"`
	Amount        string     `json:"amount"`
	Category      *string    `json:"category,omitempty"`
	Note          *string    `json:"note,omitempty"`
	PaymentMethod *string    `json:"payment_method,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
}

type patchTransactionRequest struct {
	UserID        uuid.UUID `json:"user_id"`
	Amount        string    `json:"amount"`
	Currency      *string   `json:"currency,omitempty"`
	Category      *string   `json:"category,omitempty"`
	Note          *string   `json:"note,omitempty"`
	PaymentMethod *string   `json:"payment_method,omitempty"`
}

type transactionResponse struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	WalletID      uuid.UUID `json:"wallet_id"`
	Type          string    `json:"type"`
	Currency      string    `json:"currency"`
	AmountMinor   int64     `json:"amount_minor"`
	Amount        string    `json:"amount"`
	Category      *string   `json:"category,omitempty"`
	Note          *string   `json:"note,omitempty"`
	PaymentMethod *string   `json:"payment_method,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toTransactionResponse(t ledger.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:          t.ID,
		UserID:      t.UserID,
		WalletID:    t.WalletID,
		Type:        string(t.Type),
		Currency:    string(t.Currency),
		AmountMinor: t.AmountMinor,
		Amount:      money.ToMajor(t.AmountMinor, t.Currency),
		Category:    t.Category,
		Note:        t.Note,
		CreatedAt:   t.CreatedAt,
	}
	if t.PaymentMethod != nil {
		pm := string(*t.PaymentMethod)
		resp.PaymentMethod = &pm
	}
	return resp
}

type postExchangeRequest struct {
	UserID        uuid.UUID `json:"user_id"`
	FromAmountDkk string    `json:"from_amount_dkk"`
	ToAmountVnd   string    `json:"to_amount_vnd"`
	FeeAmount     *string   `json:"fee_amount,omitempty"`
	FeeCurrency   *string   `json:"fee_currency,omitempty"`
	Provider      *string   `json:"provider,omitempty"`
}

type patchExchangeRequest struct {
	UserID        uuid.UUID `json:"user_id"`
	FromAmountDkk string    `json:"from_amount_dkk"`
	ToAmountVnd   string    `json:"to_amount_vnd"`
	FeeAmount     *string   `json:"fee_amount,omitempty"`
}

type exchangeResponse struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	FromWalletID  uuid.UUID `json:"from_wallet_id"`
	ToWalletID    uuid.UUID `json:"to_wallet_id"`
	FromAmountDkk int64     `json:"from_amount_dkk"`
	FromAmount    string    `json:"from_amount"`
	ToAmountVnd   int64     `json:"to_amount_vnd"`
	ToAmount      string    `json:"to_amount"`
	EffectiveRate string    `json:"effective_rate"`
	FeeAmount     *int64    `json:"fee_amount,omitempty"`
	FeeCurrency   *string   `json:"fee_currency,omitempty"`
	Provider      *string   `json:"provider,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toExchangeResponse(e ledger.Exchange) exchangeResponse {
	resp := exchangeResponse{
		ID:            e.ID,
		UserID:        e.UserID,
		FromWalletID:  e.FromWalletID,
		ToWalletID:    e.ToWalletID,
		FromAmountDkk: e.FromAmountDkk,
		FromAmount:    money.ToMajor(e.FromAmountDkk, ledger.CurrencyDKK),
		ToAmountVnd:   e.ToAmountVnd,
		ToAmount:      money.ToMajor(e.ToAmountVnd, ledger.CurrencyVND),
		EffectiveRate: e.EffectiveRate,
		FeeAmount:     e.FeeAmount,
		Provider:      e.Provider,
		CreatedAt:     e.CreatedAt,
	}
	if e.FeeCurrency != nil {
		fc := string(*e.FeeCurrency)
		resp.FeeCurrency = &fc
	}
	return resp
}

type balanceEntry struct {
	AmountMinor int64  `json:"amount_minor"`
	Amount      string `json:"amount"`
}

type balancesResponse struct {
	Balances map[string]balanceEntry `json:"balances"`
}

func toBalancesResponse(b ledger.Balances) balancesResponse {
	out := balancesResponse{Balances: make(map[string]balanceEntry, len(b))}
	for c, minor := range b {
		out.Balances[string(c)] = balanceEntry{
			AmountMinor: minor,
			Amount:      money.ToMajor(minor, c),
		}
	}
	return out
}

type listTransactionsResponse struct {
	Items []transactionResponse `json:"items"`
}

type listExchangesResponse struct {
	Items []exchangeResponse `json:"items"`
}

type restoreResponse struct {
	Mode         string `json:"mode"`
	Wallets      int    `json:"wallets"`
	Transactions int    `json:"transactions"`
	Exchanges    int    `json:"exchanges"`
}
