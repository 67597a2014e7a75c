package httpapi

import (
	"net/http"

	"fintrack/internal/service/dashboard"
)

func (s *Server) getDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, ok := parseUserID(q)
	if !ok {
		badRequest(w, "user_id is required")
		return
	}
	snap, err := s.dashSvc.Compute(r.Context(), userID, dashboard.Query{
		Filter:          q.Get("filter"),
		From:            q.Get("from"),
		To:              q.Get("to"),
		ExpenseCurrency: q.Get("expense_currency"),
		TimeZone:        q.Get("tz"),
	})
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, snap)
}
