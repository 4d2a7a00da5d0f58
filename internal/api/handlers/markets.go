package handlers

import (
	"net/http"

	"github.com/baharkarakas/prediction-backend/internal/api/httpx"
	"github.com/baharkarakas/prediction-backend/internal/cache"
	repo "github.com/baharkarakas/prediction-backend/internal/repository"
	"github.com/baharkarakas/prediction-backend/internal/services"
	"github.com/go-chi/chi/v5"
)

type MarketsHandler struct {
	Store       repo.Store
	CommitmentSvc *services.CommitmentService
	Cache       *cache.MarketCache // optional, advisory only
}

func NewMarketsHandler(store repo.Store, c *services.CommitmentService, mc *cache.MarketCache) *MarketsHandler {
	return &MarketsHandler{Store: store, CommitmentSvc: c, Cache: mc}
}

// Get handles GET /markets/{id}. Reads go through the advisory cache when one
// is configured; balance-bearing paths never do.
func (h *MarketsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if h.Cache != nil {
		if m, ok := h.Cache.Get(r.Context(), id); ok {
			httpx.WriteJSON(w, http.StatusOK, m)
			return
		}
	}

	m, err := h.Store.Markets().Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if h.Cache != nil {
		h.Cache.Set(r.Context(), m)
	}
	httpx.WriteJSON(w, http.StatusOK, m)
}

// Commitments handles GET /markets/{id}/commitments.
func (h *MarketsHandler) Commitments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	out, err := h.CommitmentSvc.GetPredictionCommitments(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
