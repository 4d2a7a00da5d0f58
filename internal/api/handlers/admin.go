package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/baharkarakas/prediction-backend/internal/api/httpx"
	"github.com/baharkarakas/prediction-backend/internal/middleware"
	"github.com/baharkarakas/prediction-backend/internal/models"
	"github.com/baharkarakas/prediction-backend/internal/services"
	"github.com/go-chi/chi/v5"
)

type AdminHandler struct {
	Resolutions *services.ResolutionService
}

func NewAdminHandler(rs *services.ResolutionService) *AdminHandler {
	return &AdminHandler{Resolutions: rs}
}

type resolveRequest struct {
	WinningOptionID      string            `json:"winningOptionId"`
	Evidence             []models.Evidence `json:"evidence"`
	CreatorFeePercentage float64           `json:"creatorFeePercentage,omitempty"`
}

// Resolve handles POST /admin/markets/{id}/resolve.
func (h *AdminHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "id")
	adminID, _ := middleware.UserID(r.Context())

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}

	result, err := h.Resolutions.ResolveMarket(r.Context(), services.ResolveRequest{
		MarketID:        marketID,
		WinningOptionID: req.WinningOptionID,
		Evidence:        req.Evidence,
		AdminID:         adminID,
		CreatorFeePct:   req.CreatorFeePercentage,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// Cancel handles POST /admin/markets/{id}/cancel.
func (h *AdminHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "id")
	adminID, _ := middleware.UserID(r.Context())

	var req reasonRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	results, err := h.Resolutions.CancelMarket(r.Context(), marketID, adminID, req.Reason)
	if err != nil {
		// Per-item refund outcomes are still useful on partial failure.
		if results != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "TRANSACTION_FAILED", err.Error(), results)
			return
		}
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "refunds": results})
}

// RollbackResolution handles POST /admin/markets/{id}/resolution/rollback.
func (h *AdminHandler) RollbackResolution(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "id")
	adminID, _ := middleware.UserID(r.Context())

	var req reasonRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := h.Resolutions.RollbackResolution(r.Context(), marketID, adminID, req.Reason); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// PayoutPreview handles GET /admin/markets/{id}/payout-preview.
func (h *AdminHandler) PayoutPreview(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "id")
	winningOptionID := r.URL.Query().Get("winning_option_id")
	if winningOptionID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "winning_option_id required", nil)
		return
	}
	fee := 0.0
	if v := r.URL.Query().Get("creator_fee"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "creator_fee must be a number", nil)
			return
		}
		fee = f
	}

	preview, err := h.Resolutions.PreviewPayout(r.Context(), marketID, winningOptionID, fee)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, preview)
}
