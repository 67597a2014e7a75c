package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"fintrack/internal/ledger"
	"fintrack/internal/money"
	"fintrack/internal/service/wallet"
)

func normalizeOptionalAmount(raw *string) *string {
	if raw == nil {
		return nil
	}
	v := money.NormalizeAmount(*raw)
	return &v
}

func (s *Server) postExchange(w http.ResponseWriter, r *http.Request) {
	var req postExchangeRequest
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
	in := wallet.CreateExchangeInput{
		UserID:        req.UserID,
		FromAmountDkk: money.NormalizeAmount(req.FromAmountDkk),
		ToAmountVnd:   money.NormalizeAmount(req.ToAmountVnd),
		FeeAmount:     normalizeOptionalAmount(req.FeeAmount),
		Provider:      req.Provider,
	}
	if req.FeeCurrency != nil {
		c, ok := ledger.ParseCurrency(*req.FeeCurrency)
		if !ok {
			badRequest(w, "invalid fee_currency")
			return
		}
		in.FeeCurrency = &c
	}
	ex, err := s.walletSvc.CreateExchange(r.Context(), in)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toExchangeResponse(ex))
}

func (s *Server) listExchanges(w http.ResponseWriter, r *http.Request) {
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
	items, err := s.walletSvc.ListExchanges(r.Context(), userID, lq)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	resp := listExchangesResponse{Items: make([]exchangeResponse, 0, len(items))}
	for _, e := range items {
		resp.Items = append(resp.Items, toExchangeResponse(e))
	}
	toJSON(w, http.StatusOK, resp)
}

func (s *Server) patchExchange(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(r)
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	var req patchExchangeRequest
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
	ex, err := s.walletSvc.UpdateExchange(r.Context(), req.UserID, id, wallet.UpdateExchangeInput{
		FromAmountDkk: money.NormalizeAmount(req.FromAmountDkk),
		ToAmountVnd:   money.NormalizeAmount(req.ToAmountVnd),
		FeeAmount:     normalizeOptionalAmount(req.FeeAmount),
	})
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toExchangeResponse(ex))
}

func (s *Server) deleteExchange(w http.ResponseWriter, r *http.Request) {
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
	if err := s.walletSvc.DeleteExchange(r.Context(), userID, id); err != nil {
		s.writeDomainErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
