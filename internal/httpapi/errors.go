package httpapi

import (
	"errors"
	"net/http"

	"fintrack/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, "") }
func notFound(w http.ResponseWriter)               { writeErr(w, http.StatusNotFound, "not_found", "not_found") }
func unprocessable(w http.ResponseWriter, msg, code string) {
	writeErr(w, http.StatusUnprocessableEntity, msg, code)
}
func internalErr(w http.ResponseWriter) {
	writeErr(w, http.StatusInternalServerError, "internal error", "")
}

// writeDomainErr maps service errors onto HTTP statuses.
func (s *Server) writeDomainErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		notFound(w)
	case errors.Is(err, errs.ErrInvalidAmount):
		writeErr(w, http.StatusBadRequest, "amount must be a positive number", "invalid_amount")
	case errors.Is(err, errs.ErrInvalid):
		badRequest(w, err.Error())
	case errors.Is(err, errs.ErrInsufficientBalance):
		unprocessable(w, "insufficient balance", "insufficient_balance")
	case errors.Is(err, errs.ErrUnprocessable):
		unprocessable(w, err.Error(), "validation_error")
	default:
		s.log.Error("request failed", "err", err)
		internalErr(w)
	}
}
