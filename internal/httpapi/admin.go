package httpapi

import (
	"encoding/json"
	"net/http"

	"fintrack/internal/service/backup"
)

func (s *Server) getBackup(w http.ResponseWriter, r *http.Request) {
	b, err := s.backupSvc.Snapshot(r.Context())
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, b)
}

func (s *Server) postRestore(w http.ResponseWriter, r *http.Request) {
	mode, ok := backup.ParseMode(r.URL.Query().Get("mode"))
	if !ok {
		badRequest(w, "mode must be replace or append")
		return
	}
	var b backup.Backup
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	counts, err := s.backupSvc.Restore(r.Context(), b, mode)
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, restoreResponse{
		Mode:         string(mode),
		Wallets:      counts.Wallets,
		Transactions: counts.Transactions,
		Exchanges:    counts.Exchanges,
	})
}
