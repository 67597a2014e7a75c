package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"fintrack/internal/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type txnResp struct {
	ID            string  `json:"id"`
	UserID        string  `json:"user_id"`
	Type          string  `json:"type"`
	Currency      string  `json:"currency"`
	AmountMinor   int64   `json:"amount_minor"`
	Amount        string  `json:"amount"`
	Category      *string `json:"category"`
	PaymentMethod *string `json:"payment_method"`
}

type exResp struct {
	ID            string `json:"id"`
	FromAmountDkk int64  `json:"from_amount_dkk"`
	ToAmountVnd   int64  `json:"to_amount_vnd"`
	EffectiveRate string `json:"effective_rate"`
	FeeAmount     *int64 `json:"fee_amount"`
}

type balResp struct {
	Balances map[string]struct {
		AmountMinor int64  `json:"amount_minor"`
		Amount      string `json:"amount"`
	} `json:"balances"`
}

type errResp struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func setup(t *testing.T) (*memory.Store, http.Handler, uuid.UUID) {
	t.Helper()
	store := memory.New()
	h := New(store, testLogger()).Handler()
	return store, h, uuid.New()
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v: %s", err, rec.Body.String())
	}
	return v
}

func TestPostTransaction_ValidAndInvalid(t *testing.T) {
	_, h, userID := setup(t)

	rec := do(t, h, http.MethodPost, "/v1/transactions", map[string]any{
		"user_id":  userID.String(),
		"type":     "INCOME",
		"currency": "DKK",
		"amount":   "1.250,50",
		"category": "Lương",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	tr := decode[txnResp](t, rec)
	if tr.AmountMinor != 125050 || tr.Amount != "1250.50" {
		t.Fatalf("unexpected amounts: %+v", tr)
	}

	// unknown type
	rec = do(t, h, http.MethodPost, "/v1/transactions", map[string]any{
		"user_id": userID.String(), "type": "TRANSFER", "currency": "DKK", "amount": "10",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	// zero amount gets its own error code
	rec = do(t, h, http.MethodPost, "/v1/transactions", map[string]any{
		"user_id": userID.String(), "type": "INCOME", "currency": "DKK", "amount": "0",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if er := decode[errResp](t, rec); er.Code != "invalid_amount" {
		t.Fatalf("expected invalid_amount code, got %+v", er)
	}

	// payment method only makes sense on expenses
	rec = do(t, h, http.MethodPost, "/v1/transactions", map[string]any{
		"user_id": userID.String(), "type": "INCOME", "currency": "DKK",
		"amount": "10", "payment_method": "CASH",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestExpenseSolvency(t *testing.T) {
	_, h, userID := setup(t)

	rec := do(t, h, http.MethodPost, "/v1/transactions", map[string]any{
		"user_id": userID.String(), "type": "INCOME", "currency": "DKK", "amount": "100",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed income: %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodPost, "/v1/transactions", map[string]any{
		"user_id": userID.String(), "type": "EXPENSE", "currency": "DKK",
		"amount": "100.01", "payment_method": "CASH",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	if er := decode[errResp](t, rec); er.Code != "insufficient_balance" {
		t.Fatalf("expected insufficient_balance, got %+v", er)
	}

	// a card purchase is tracked but never debits the wallet
	rec = do(t, h, http.MethodPost, "/v1/transactions", map[string]any{
		"user_id": userID.String(), "type": "EXPENSE", "currency": "DKK",
		"amount": "500", "payment_method": "CREDIT_CARD",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("credit card expense: %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/v1/balances?user_id="+userID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("balances: %d", rec.Code)
	}
	bal := decode[balResp](t, rec)
	if got := bal.Balances["DKK"].AmountMinor; got != 10000 {
		t.Fatalf("DKK balance = %d, want 10000", got)
	}
	if bal.Balances["VND"].Amount != "0" {
		t.Fatalf("VND balance = %q, want 0", bal.Balances["VND"].Amount)
	}
}

func TestPatchAndDeleteTransaction(t *testing.T) {
	_, h, userID := setup(t)

	rec := do(t, h, http.MethodPost, "/v1/transactions", map[string]any{
		"user_id": userID.String(), "type": "INCOME", "currency": "DKK",
		"amount": "100", "category": "Lương",
	})
	tr := decode[txnResp](t, rec)

	rec = do(t, h, http.MethodPatch, "/v1/transactions/"+tr.ID, map[string]any{
		"user_id": userID.String(), "amount": "80", "note": "corrected",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: %d: %s", rec.Code, rec.Body.String())
	}
	updated := decode[txnResp](t, rec)
	if updated.AmountMinor != 8000 {
		t.Fatalf("amount after patch = %d, want 8000", updated.AmountMinor)
	}
	// omitted optional fields are cleared, not preserved
	if updated.Category != nil {
		t.Fatalf("category should be cleared, got %v", *updated.Category)
	}

	rec = do(t, h, http.MethodDelete, "/v1/transactions/"+tr.ID+"?user_id="+userID.String(), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodDelete, "/v1/transactions/"+tr.ID+"?user_id="+userID.String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: %d", rec.Code)
	}
}

func TestListTransactionsFilters(t *testing.T) {
	_, h, userID := setup(t)

	for _, body := range []map[string]any{
		{"user_id": userID.String(), "type": "INCOME", "currency": "DKK", "amount": "100"},
		{"user_id": userID.String(), "type": "EXPENSE", "currency": "DKK", "amount": "30", "payment_method": "CASH"},
		{"user_id": userID.String(), "type": "INCOME", "currency": "VND", "amount": "50000"},
	} {
		if rec := do(t, h, http.MethodPost, "/v1/transactions", body); rec.Code != http.StatusCreated {
			t.Fatalf("seed: %d: %s", rec.Code, rec.Body.String())
		}
	}

	rec := do(t, h, http.MethodGet, "/v1/transactions?user_id="+userID.String()+"&type=INCOME&currency=DKK", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d: %s", rec.Code, rec.Body.String())
	}
	list := decode[struct {
		Items []txnResp `json:"items"`
	}](t, rec)
	if len(list.Items) != 1 || list.Items[0].AmountMinor != 10000 {
		t.Fatalf("unexpected items: %+v", list.Items)
	}

	rec = do(t, h, http.MethodGet, "/v1/transactions?user_id="+userID.String()+"&type=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad filter: %d", rec.Code)
	}
}

func TestExchangeFlow(t *testing.T) {
	_, h, userID := setup(t)

	if rec := do(t, h, http.MethodPost, "/v1/transactions", map[string]any{
		"user_id": userID.String(), "type": "INCOME", "currency": "DKK", "amount": "100",
	}); rec.Code != http.StatusCreated {
		t.Fatalf("seed income: %d", rec.Code)
	}

	rec := do(t, h, http.MethodPost, "/v1/exchanges", map[string]any{
		"user_id":         userID.String(),
		"from_amount_dkk": "50",
		"to_amount_vnd":   "150000",
		"fee_amount":      "2",
		"fee_currency":    "DKK",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("post exchange: %d: %s", rec.Code, rec.Body.String())
	}
	ex := decode[exResp](t, rec)
	if ex.EffectiveRate != "3000" {
		t.Fatalf("effective_rate = %q, want 3000", ex.EffectiveRate)
	}
	if ex.FeeAmount == nil || *ex.FeeAmount != 200 {
		t.Fatalf("fee_amount = %v, want 200", ex.FeeAmount)
	}

	rec = do(t, h, http.MethodGet, "/v1/balances?user_id="+userID.String(), nil)
	bal := decode[balResp](t, rec)
	if bal.Balances["DKK"].AmountMinor != 4800 || bal.Balances["VND"].AmountMinor != 150000 {
		t.Fatalf("balances after exchange: %+v", bal.Balances)
	}

	// converting more than the remaining DKK fails
	rec = do(t, h, http.MethodPost, "/v1/exchanges", map[string]any{
		"user_id": userID.String(), "from_amount_dkk": "48.01", "to_amount_vnd": "144000",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodPatch, "/v1/exchanges/"+ex.ID, map[string]any{
		"user_id": userID.String(), "from_amount_dkk": "40", "to_amount_vnd": "120000",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch exchange: %d: %s", rec.Code, rec.Body.String())
	}
	patched := decode[exResp](t, rec)
	if patched.FromAmountDkk != 4000 || patched.FeeAmount != nil {
		t.Fatalf("patched exchange: %+v", patched)
	}

	rec = do(t, h, http.MethodDelete, "/v1/exchanges/"+ex.ID+"?user_id="+userID.String(), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete exchange: %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/v1/balances?user_id="+userID.String(), nil)
	bal = decode[balResp](t, rec)
	if bal.Balances["DKK"].AmountMinor != 10000 || bal.Balances["VND"].AmountMinor != 0 {
		t.Fatalf("balances after delete: %+v", bal.Balances)
	}
}

func TestDashboardEndpoint(t *testing.T) {
	_, h, userID := setup(t)

	for _, body := range []map[string]any{
		{"user_id": userID.String(), "type": "INCOME", "currency": "DKK", "amount": "100"},
		{"user_id": userID.String(), "type": "EXPENSE", "currency": "DKK", "amount": "30", "category": "Ăn uống", "payment_method": "CASH"},
	} {
		if rec := do(t, h, http.MethodPost, "/v1/transactions", body); rec.Code != http.StatusCreated {
			t.Fatalf("seed: %d", rec.Code)
		}
	}

	rec := do(t, h, http.MethodGet, "/v1/dashboard?user_id="+userID.String()+"&filter=month", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard: %d: %s", rec.Code, rec.Body.String())
	}
	snap := decode[struct {
		Filter string `json:"filter"`
		Totals struct {
			Income  int64 `json:"income"`
			Expense int64 `json:"expense"`
			Net     int64 `json:"net"`
		} `json:"totals"`
		Breakdown []struct {
			Label  string `json:"label"`
			Amount int64  `json:"amount"`
		} `json:"breakdown"`
	}](t, rec)
	if snap.Filter != "month" {
		t.Fatalf("filter = %q", snap.Filter)
	}
	if snap.Totals.Income != 10000 || snap.Totals.Expense != 3000 || snap.Totals.Net != 7000 {
		t.Fatalf("totals: %+v", snap.Totals)
	}
	if len(snap.Breakdown) != 1 || snap.Breakdown[0].Label != "Ăn uống" {
		t.Fatalf("breakdown: %+v", snap.Breakdown)
	}

	rec = do(t, h, http.MethodGet, "/v1/dashboard?user_id="+userID.String()+"&expense_currency=EUR", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad currency: %d", rec.Code)
	}
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	_, h, userID := setup(t)

	for _, body := range []map[string]any{
		{"user_id": userID.String(), "type": "INCOME", "currency": "DKK", "amount": "100"},
		{"user_id": userID.String(), "type": "EXPENSE", "currency": "DKK", "amount": "25", "payment_method": "CASH"},
	} {
		if rec := do(t, h, http.MethodPost, "/v1/transactions", body); rec.Code != http.StatusCreated {
			t.Fatalf("seed: %d", rec.Code)
		}
	}

	rec := do(t, h, http.MethodGet, "/v1/admin/backup", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("backup: %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode backup: %v", err)
	}

	// restore into a fresh deployment
	_, h2, _ := setup(t)
	rec = do(t, h2, http.MethodPost, "/v1/admin/restore?mode=replace", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("restore: %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[struct {
		Mode         string `json:"mode"`
		Transactions int    `json:"transactions"`
	}](t, rec)
	if res.Mode != "replace" || res.Transactions != 2 {
		t.Fatalf("restore response: %+v", res)
	}

	rec = do(t, h2, http.MethodGet, "/v1/balances?user_id="+userID.String(), nil)
	bal := decode[balResp](t, rec)
	if bal.Balances["DKK"].AmountMinor != 7500 {
		t.Fatalf("DKK after restore = %d, want 7500", bal.Balances["DKK"].AmountMinor)
	}

	rec = do(t, h2, http.MethodPost, "/v1/admin/restore?mode=merge", payload)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad mode: %d", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	_, h, _ := setup(t)
	if rec := do(t, h, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/readyz", nil); rec.Code != http.StatusOK {
		t.Fatalf("readyz: %d", rec.Code)
	}
}
