package http

import "net/http"

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]any{"accounts": s.dataset.Accounts()})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.dataset.Account(id); !ok {
		ErrorResponse(http.StatusNotFound, "Account not found").Write(w, r)
		return
	}
	balance, ok := s.dataset.Balance(id)
	if !ok {
		ErrorResponse(http.StatusNotFound, "Balance not found").Write(w, r)
		return
	}
	writeJSON(w, r, balance)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.dataset.Account(id); !ok {
		ErrorResponse(http.StatusNotFound, "Account not found").Write(w, r)
		return
	}
	limit, err := ParseLimit(r)
	if err != nil {
		ErrorResponse(http.StatusBadRequest, err.Error()).Write(w, r)
		return
	}
	txs, ok := s.dataset.Transactions(id, limit)
	if !ok {
		ErrorResponse(http.StatusNotFound, "Transactions not found").Write(w, r)
		return
	}
	writeJSON(w, r, txs)
}
