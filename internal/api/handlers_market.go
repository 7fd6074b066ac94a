package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	apperrors "github.com/defi-dashboard/internal/errors"
	"github.com/defi-dashboard/internal/feed"
)

// respondUpstreamError maps feed client failures: upstream backpressure is
// passed through as 429, everything else is a bad gateway.
func respondUpstreamError(w http.ResponseWriter, err error) {
	if feed.IsRateLimited(err) {
		respondServiceError(w, apperrors.NewUpstreamRateLimitedError(err))
		return
	}
	respondServiceError(w, apperrors.NewUpstreamError(err))
}

// handleListTokens handles GET /api/tokens - the registered token catalog.
func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.ledger.ListTokens(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tokens": tokens,
	})
}

// handleListPrices handles GET /api/prices - one quote per registered token,
// live when possible, stored or zero-valued otherwise.
func (s *Server) handleListPrices(w http.ResponseWriter, r *http.Request) {
	quotes, err := s.ledger.ListPrices(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"prices": quotes,
	})
}

// handleGasPrice handles GET /api/gas-price - simulated network gas price.
func (s *Server) handleGasPrice(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.ledger.GasPrice())
}

// Upstream passthroughs. The feed client's throttle and circuit breaker
// apply; a 429 from upstream surfaces to the client unchanged.

// handleTrending handles GET /api/trending.
func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	payload, err := s.market.Trending(r.Context())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondRaw(w, http.StatusOK, payload)
}

// handleGlobalMarket handles GET /api/market/global.
func (s *Server) handleGlobalMarket(w http.ResponseWriter, r *http.Request) {
	payload, err := s.market.GlobalMarket(r.Context())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondRaw(w, http.StatusOK, payload)
}

// handleCoinDetail handles GET /api/coins/:id.
func (s *Server) handleCoinDetail(w http.ResponseWriter, r *http.Request) {
	coinID := mux.Vars(r)["id"]
	if coinID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Coin ID required", nil)
		return
	}

	payload, err := s.market.CoinDetail(r.Context(), coinID)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondRaw(w, http.StatusOK, payload)
}

// handleCoinChart handles GET /api/coins/:id/chart?days=N.
func (s *Server) handleCoinChart(w http.ResponseWriter, r *http.Request) {
	coinID := mux.Vars(r)["id"]
	if coinID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Coin ID required", nil)
		return
	}

	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			respondError(w, http.StatusBadRequest, "INVALID_INPUT", "days must be an integer between 1 and 365", nil)
			return
		}
		days = parsed
	}

	payload, err := s.market.MarketChart(r.Context(), coinID, days)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondRaw(w, http.StatusOK, payload)
}
