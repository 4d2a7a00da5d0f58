package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/baharkarakas/prediction-backend/internal/api/httpx"
	"github.com/baharkarakas/prediction-backend/internal/api/validate"
	"github.com/baharkarakas/prediction-backend/internal/models"
	"github.com/baharkarakas/prediction-backend/internal/services"
)

type TokensHandler struct {
	Balances    *services.BalanceService
	Commitments *services.CommitmentService
}

func NewTokensHandler(b *services.BalanceService, c *services.CommitmentService) *TokensHandler {
	return &TokensHandler{Balances: b, Commitments: c}
}

type commitRequest struct {
	PredictionID   string `json:"predictionId"`
	TokensToCommit int64  `json:"tokensToCommit"`
	Position       string `json:"position"`
	UserID         string `json:"userId"`
}

type commitResponse struct {
	Success        bool                        `json:"success"`
	Commitment     models.PredictionCommitment `json:"commitment"`
	UpdatedBalance models.UserBalance          `json:"updatedBalance"`
}

// Commit handles POST /tokens/commit.
func (h *TokensHandler) Commit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}

	var errs validate.Errs
	for _, check := range []*validate.ErrField{
		validate.Required("predictionId", req.PredictionID),
		validate.Required("position", req.Position),
		validate.Required("userId", req.UserID),
		validate.MinInt("tokensToCommit", req.TokensToCommit, 1),
	} {
		if check != nil {
			errs = append(errs, *check)
		}
	}
	if len(errs) > 0 {
		httpx.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", errs.Error(), errs)
		return
	}

	commitment, balance, err := h.Commitments.CreateCommitment(r.Context(), req.UserID, req.PredictionID, req.Position, req.TokensToCommit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, commitResponse{
		Success:        true,
		Commitment:     commitment,
		UpdatedBalance: balance,
	})
}

type purchaseRequest struct {
	UserID string `json:"userId"`
	Amount int64  `json:"amount"`
}

// Purchase handles POST /tokens/purchase: the credit entry point of the ledger.
func (h *TokensHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.Amount <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "userId and positive amount required", nil)
		return
	}
	balance, err := h.Balances.UpdateBalance(r.Context(), services.UpdateRequest{
		UserID: req.UserID,
		Amount: req.Amount,
		Type:   models.TxnPurchase,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "balance": balance})
}

// Balance handles GET /tokens/balance?user_id=.
func (h *TokensHandler) Balance(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("user_id")
	if uid == "" {
		httpx.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "user_id required", nil)
		return
	}
	b, err := h.Balances.GetBalance(r.Context(), uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

// Transactions handles GET /tokens/transactions?user_id=&limit=&offset=.
func (h *TokensHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("user_id")
	if uid == "" {
		httpx.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "user_id required", nil)
		return
	}
	limit, offset := 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	txs, err := h.Balances.ListTransactions(r.Context(), uid, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, txs)
}

// UserCommitments handles GET /commitments?user_id=.
func (h *TokensHandler) UserCommitments(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("user_id")
	if uid == "" {
		httpx.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "user_id required", nil)
		return
	}
	out, err := h.Commitments.GetUserCommitments(r.Context(), uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
