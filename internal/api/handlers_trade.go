package api

import (
	"net/http"

	"github.com/defi-dashboard/internal/simulator"
	"github.com/defi-dashboard/internal/types"
)

// handleSwap handles POST /api/swap - admit a simulated token swap.
// Settlement is asynchronous; the response reports the pending transaction.
func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromTokenID   string `json:"fromTokenId"`
		ToTokenID     string `json:"toTokenId"`
		FromAmount    string `json:"fromAmount"`
		WalletAddress string `json:"walletAddress"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body", nil)
		return
	}

	result, err := s.trades.SubmitSwap(r.Context(), &simulator.SwapInput{
		FromTokenID:   req.FromTokenID,
		ToTokenID:     req.ToTokenID,
		FromAmount:    req.FromAmount,
		WalletAddress: req.WalletAddress,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// handleTrade handles POST /api/trade - admit a simulated spot buy or sell
// at a caller-supplied price.
func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TokenID       string `json:"tokenId"`
		BaseTokenID   string `json:"baseTokenId"`
		Amount        string `json:"amount"`
		Price         string `json:"price"`
		Type          string `json:"type"`
		WalletAddress string `json:"walletAddress"`
	}

	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body", nil)
		return
	}

	result, err := s.trades.SubmitTrade(r.Context(), &simulator.TradeInput{
		TokenID:       req.TokenID,
		BaseTokenID:   req.BaseTokenID,
		Amount:        req.Amount,
		Price:         req.Price,
		Kind:          types.TransactionKind(req.Type),
		WalletAddress: req.WalletAddress,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}
