package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fintrack/internal/ledger"
	"fintrack/internal/money"
	"fintrack/internal/service/wallet"
	"fintrack/internal/window"
)

// parseUserID reads and validates the user_id query parameter.
func parseUserID(q url.Values) (uuid.UUID, bool) {
	raw := q.Get("user_id")
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func parsePathID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// parseBound reads a list bound as either YYYY-MM-DD in the caller's zone
// or RFC3339.
func parseBound(raw string, loc *time.Location, endOfDay bool) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	if t, ok := window.ParseDateInput(raw, loc, endOfDay); ok {
		u := t.UTC()
		return &u, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		u := t.UTC()
		return &u, true
	}
	return nil, false
}

func parseListQuery(q url.Values) (wallet.ListQuery, bool) {
	var out wallet.ListQuery
	if raw := q.Get("type"); raw != "" {
		t, ok := ledger.ParseTransactionType(raw)
		if !ok {
			return out, false
		}
		out.Type = &t
	}
	if raw := q.Get("currency"); raw != "" {
		c, ok := ledger.ParseCurrency(raw)
		if !ok {
			return out, false
		}
		out.Currency = &c
	}
	loc := window.ResolveZone(q.Get("tz"))
	start, ok := parseBound(q.Get("from"), loc, false)
	if !ok {
		return out, false
	}
	end, ok := parseBound(q.Get("to"), loc, true)
	if !ok {
		return out, false
	}
	out.Start = start
	out.End = end
	return out, true
}

func parsePaymentMethod(raw *string) (*ledger.PaymentMethod, bool) {
	if raw == nil {
		return nil, true
	}
	pm, ok := ledger.ParsePaymentMethod(*raw)
	if !ok {
		return nil, false
	}
	return &pm, true
}

func (s *Server) postTransaction(w http.ResponseWriter, r *http.Request) {
	var req postTransactionRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.UserID == uuid.Nil {
		badRequest(w, "user_id is required")
		return
	}
	pm, ok := parsePaymentMethod(req.PaymentMethod)
	if !ok {
		badRequest(w, "invalid payment_method")
		return
	}
	txn, err := s.walletSvc.CreateTransaction(r.Context(), wallet.CreateTransactionInput{
		UserID:        req.UserID,
		Type:          ledger.TransactionType(req.Type),
		Currency:      ledger.Currency(req.Currency),
		AmountMajor:   money.NormalizeAmount(req.Amount),
		Category:      req.Category,
		Note:          req.Note,
		PaymentMethod: pm,
		CreatedAt:     req.CreatedAt,
	})
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toTransactionResponse(txn))
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, ok := parseUserID(q)
	if !ok {
		badRequest(w, "user_id is required")
		return
	}
	lq, ok := parseListQuery(q)
	if !ok {
		badRequest(w, "invalid filter parameters")
		return
	}
	items, err := s.walletSvc.ListTransactions(r.Context(), userID, lq)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	resp := listTransactionsResponse{Items: make([]transactionResponse, 0, len(items))}
	for _, t := range items {
		resp.Items = append(resp.Items, toTransactionResponse(t))
	}
	toJSON(w, http.StatusOK, resp)
}

func (s *Server) patchTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	var req patchTransactionRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.UserID == uuid.Nil {
		badRequest(w, "user_id is required")
		return
	}
	pm, ok := parsePaymentMethod(req.PaymentMethod)
	if !ok {
		badRequest(w, "invalid payment_method")
		return
	}
	in := wallet.UpdateTransactionInput{
		AmountMajor:   money.NormalizeAmount(req.Amount),
		Category:      req.Category,
		Note:          req.Note,
		PaymentMethod: pm,
	}
	if req.Currency != nil {
		c := ledger.Currency(*req.Currency)
		in.Currency = &c
	}
	txn, err := s.walletSvc.UpdateTransaction(r.Context(), req.UserID, id, in)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toTransactionResponse(txn))
}

func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	userID, ok := parseUserID(r.URL.Query())
	if !ok {
		badRequest(w, "user_id is required")
		return
	}
	if err := s.walletSvc.DeleteTransaction(r.Context(), userID, id); err != nil {
		s.writeDomainErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getBalances(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(r.URL.Query())
	if !ok {
		badRequest(w, "user_id is required")
		return
	}
	balances, err := s.walletSvc.Balances(r.Context(), userID)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toBalancesResponse(balances))
}
