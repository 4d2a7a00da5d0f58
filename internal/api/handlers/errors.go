package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/baharkarakas/prediction-backend/internal/api/httpx"
	repo "github.com/baharkarakas/prediction-backend/internal/repository"
	"github.com/baharkarakas/prediction-backend/internal/services"
)

// writeServiceError maps the ledger taxonomy onto HTTP statuses and
// machine-readable codes. Store-level error text is logged, never sent to the
// client.
func writeServiceError(w http.ResponseWriter, err error) {
	var insufficient *services.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		httpx.WriteError(w, http.StatusBadRequest, "INSUFFICIENT_BALANCE", "insufficient available balance", map[string]any{
			"availableTokens": insufficient.Available,
			"requiredTokens":  insufficient.Required,
		})
		return
	}
	var inactive *services.MarketInactiveError
	if errors.As(err, &inactive) {
		httpx.WriteError(w, http.StatusBadRequest, "MARKET_INACTIVE", "market is not accepting commitments", map[string]any{
			"status": inactive.Status,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrInsufficientBalance):
		httpx.WriteError(w, http.StatusBadRequest, "INSUFFICIENT_BALANCE", "insufficient available balance", nil)
	case errors.Is(err, services.ErrMarketInactive):
		httpx.WriteError(w, http.StatusBadRequest, "MARKET_INACTIVE", "market is not accepting commitments", nil)
	case errors.Is(err, services.ErrMarketNotFound), errors.Is(err, repo.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "MARKET_NOT_FOUND", "market not found", nil)
	case errors.Is(err, services.ErrAlreadyResolved):
		httpx.WriteError(w, http.StatusConflict, "ALREADY_RESOLVED", "market already resolved", nil)
	case errors.Is(err, services.ErrUnauthorized):
		httpx.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "admin privileges required", nil)
	case errors.Is(err, services.ErrInvalidEvidence):
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_EVIDENCE", err.Error(), nil)
	case errors.Is(err, services.ErrInvalidWinningOption):
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_WINNING_OPTION", "winning option does not belong to market", nil)
	case errors.Is(err, services.ErrInvalidOption):
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_OPTION", "option does not belong to market", nil)
	case errors.Is(err, services.ErrInvalidCreatorFee):
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_CREATOR_FEE", "creator fee percentage must be between 1% and 5%", nil)
	case errors.Is(err, services.ErrInvalidAmount):
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_AMOUNT", "amount must be positive", nil)
	case errors.Is(err, services.ErrNothingToRollback):
		httpx.WriteError(w, http.StatusNotFound, "NOTHING_TO_ROLLBACK", "no commitment or transaction to roll back", nil)
	case errors.Is(err, services.ErrRollbackIneligible):
		httpx.WriteError(w, http.StatusBadRequest, "ROLLBACK_INELIGIBLE", err.Error(), nil)
	case errors.Is(err, services.ErrTransactionFailed):
		slog.Error("transaction failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "TRANSACTION_FAILED", "operation could not be completed", nil)
	default:
		slog.Error("unhandled error", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error", nil)
	}
}
