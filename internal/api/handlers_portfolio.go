package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handleGetPortfolio handles GET /api/portfolio/:walletAddress - valued
// holdings for a wallet. An unseen wallet is created and seeded with demo
// balances on first sight.
func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	walletAddress := vars["walletAddress"]

	if walletAddress == "" {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Wallet address required", nil)
		return
	}

	view, err := s.ledger.GetPortfolio(r.Context(), walletAddress)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// handleListTransactions handles GET /api/transactions/:walletAddress -
// transaction history, newest first. Unlike the portfolio endpoint an
// unseen wallet is a 404.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	walletAddress := vars["walletAddress"]

	if walletAddress == "" {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Wallet address required", nil)
		return
	}

	records, err := s.ledger.ListTransactions(r.Context(), walletAddress)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"walletAddress": walletAddress,
		"transactions":  records,
	})
}
