package services

import (
	"errors"
	"fmt"

	"github.com/baharkarakas/prediction-backend/internal/models"
)

// Ledger error taxonomy. Validation errors are always detected before any
// atomic write; ErrTransactionFailed is the only one that may follow a store
// abort, and the store guarantees no partial write is observable behind it.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrMarketInactive      = errors.New("market is not active")
	ErrMarketNotFound      = errors.New("market not found")
	ErrAlreadyResolved     = errors.New("market already resolved")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidEvidence     = errors.New("invalid evidence")
	ErrInvalidWinningOption = errors.New("invalid winning option")
	ErrInvalidOption       = errors.New("option does not belong to market")
	ErrInvalidCreatorFee   = errors.New("creator fee percentage out of range")
	ErrTransactionFailed   = errors.New("transaction failed")
	ErrNothingToRollback   = errors.New("nothing to rollback")
	ErrRollbackIneligible  = errors.New("commitment not eligible for rollback")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

// InsufficientBalanceError carries the numbers the commit endpoint returns.
type InsufficientBalanceError struct {
	Available int64
	Required  int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: have %d available, need %d", e.Available, e.Required)
}

func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

// MarketInactiveError reports the market's actual status.
type MarketInactiveError struct {
	Status models.MarketStatus
}

func (e *MarketInactiveError) Error() string {
	return fmt.Sprintf("market is not active: status %s", e.Status)
}

func (e *MarketInactiveError) Is(target error) bool { return target == ErrMarketInactive }
