package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/baharkarakas/prediction-backend/internal/models"
	repo "github.com/baharkarakas/prediction-backend/internal/repository"
	"github.com/google/uuid"
)

// BalanceService is the single write path for user balances. Every mutation
// runs inside one store transaction that reads the balance, validates the
// precondition against that read, writes the new balance through the version
// fence, and appends the TokenTransaction audit record.
type BalanceService struct {
	store repo.Store
}

func NewBalanceService(store repo.Store) *BalanceService { return &BalanceService{store: store} }

// UpdateRequest describes one atomic balance delta. Amount is non-negative;
// Type fixes the direction. ReleaseCommitted is only meaningful for payout
// updates: the winner's stake moved out of the committed bucket.
type UpdateRequest struct {
	UserID           string
	Amount           int64
	Type             models.TransactionType
	RelatedID        string
	Metadata         map[string]any
	ReleaseCommitted int64
}

// GetBalance returns the user's balance, lazily creating a zero record on
// first access.
func (s *BalanceService) GetBalance(ctx context.Context, userID string) (models.UserBalance, error) {
	b, err := s.store.Balances().Get(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		zero := models.NewZeroBalance(userID)
		if err := s.store.Balances().Create(ctx, zero); err != nil {
			return models.UserBalance{}, err
		}
		return s.store.Balances().Get(ctx, userID)
	}
	return b, err
}

// UpdateBalance applies one delta in its own transaction.
func (s *BalanceService) UpdateBalance(ctx context.Context, req UpdateRequest) (models.UserBalance, error) {
	var out models.UserBalance
	err := s.store.WithTx(ctx, func(tx repo.Store) error {
		var err error
		out, err = s.Apply(ctx, tx, req)
		return err
	})
	return out, err
}

// Apply performs the delta against the given transactional scope. Callers
// needing multi-user atomicity (resolution payouts) invoke it repeatedly
// inside one outer WithTx.
func (s *BalanceService) Apply(ctx context.Context, tx repo.Store, req UpdateRequest) (models.UserBalance, error) {
	if req.Amount < 0 || (req.Amount == 0 && req.Type != models.TxnPayout) {
		return models.UserBalance{}, ErrInvalidAmount
	}

	b, err := loadOrInit(ctx, tx, req.UserID)
	if err != nil {
		return models.UserBalance{}, err
	}
	before := b.AvailableTokens

	switch req.Type {
	case models.TxnPurchase:
		b.AvailableTokens += req.Amount
		b.TotalEarned += req.Amount

	case models.TxnCommit:
		if b.AvailableTokens < req.Amount {
			return models.UserBalance{}, &InsufficientBalanceError{Available: b.AvailableTokens, Required: req.Amount}
		}
		b.AvailableTokens -= req.Amount
		b.CommittedTokens += req.Amount
		b.TotalSpent += req.Amount

	case models.TxnRefund:
		if b.CommittedTokens < req.Amount {
			return models.UserBalance{}, fmt.Errorf("refund %d exceeds committed %d for user %s",
				req.Amount, b.CommittedTokens, req.UserID)
		}
		b.CommittedTokens -= req.Amount
		b.AvailableTokens += req.Amount

	case models.TxnPayout:
		if req.ReleaseCommitted > 0 {
			if b.CommittedTokens < req.ReleaseCommitted {
				return models.UserBalance{}, fmt.Errorf("payout release %d exceeds committed %d for user %s",
					req.ReleaseCommitted, b.CommittedTokens, req.UserID)
			}
			b.CommittedTokens -= req.ReleaseCommitted
		}
		b.AvailableTokens += req.Amount
		if profit := req.Amount - req.ReleaseCommitted; profit > 0 {
			b.TotalEarned += profit
		}

	default:
		return models.UserBalance{}, fmt.Errorf("unsupported transaction type %q", req.Type)
	}

	updated, err := tx.Balances().Update(ctx, b)
	if err != nil {
		return models.UserBalance{}, err
	}

	if err := appendTransaction(ctx, tx, req, before, updated.AvailableTokens); err != nil {
		return models.UserBalance{}, err
	}
	return updated, nil
}

// ReversePayout undoes a winner payout during a resolution rollback: the
// payout leaves the available bucket and the stake returns to committed. The
// compensation is recorded as a rollback marker.
func (s *BalanceService) ReversePayout(ctx context.Context, tx repo.Store, userID string, payout, stake int64, relatedID string) error {
	b, err := loadOrInit(ctx, tx, userID)
	if err != nil {
		return err
	}
	if b.AvailableTokens < payout {
		return fmt.Errorf("cannot reverse payout of %d: user %s has only %d available", payout, userID, b.AvailableTokens)
	}
	before := b.AvailableTokens
	b.AvailableTokens -= payout
	b.CommittedTokens += stake
	if profit := payout - stake; profit > 0 {
		b.TotalEarned -= profit
	}
	updated, err := tx.Balances().Update(ctx, b)
	if err != nil {
		return err
	}
	return appendTransaction(ctx, tx, UpdateRequest{
		UserID:    userID,
		Amount:    payout,
		Type:      models.TxnRollbackMarker,
		RelatedID: relatedID,
		Metadata:  map[string]any{"reason": "resolution_rollback", "stake": stake},
	}, before, updated.AvailableTokens)
}

// ForfeitCommitted removes a losing stake from the committed bucket at
// resolution time. The lost commitment record is the audit trail; no new
// transaction is appended (the stake was recorded by the original commit).
func (s *BalanceService) ForfeitCommitted(ctx context.Context, tx repo.Store, userID string, stake int64) error {
	b, err := loadOrInit(ctx, tx, userID)
	if err != nil {
		return err
	}
	if b.CommittedTokens < stake {
		return fmt.Errorf("forfeit %d exceeds committed %d for user %s", stake, b.CommittedTokens, userID)
	}
	b.CommittedTokens -= stake
	_, err = tx.Balances().Update(ctx, b)
	return err
}

// RestoreCommitted reverses ForfeitCommitted during a resolution rollback.
func (s *BalanceService) RestoreCommitted(ctx context.Context, tx repo.Store, userID string, stake int64) error {
	b, err := loadOrInit(ctx, tx, userID)
	if err != nil {
		return err
	}
	b.CommittedTokens += stake
	_, err = tx.Balances().Update(ctx, b)
	return err
}

func loadOrInit(ctx context.Context, tx repo.Store, userID string) (models.UserBalance, error) {
	b, err := tx.Balances().Get(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		zero := models.NewZeroBalance(userID)
		if err := tx.Balances().Create(ctx, zero); err != nil {
			return models.UserBalance{}, err
		}
		return tx.Balances().Get(ctx, userID)
	}
	return b, err
}

func appendTransaction(ctx context.Context, tx repo.Store, req UpdateRequest, before, after int64) error {
	t := models.TokenTransaction{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		Type:          req.Type,
		Amount:        req.Amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Metadata:      req.Metadata,
		Status:        models.TxnCompleted,
		CreatedAt:     time.Now(),
	}
	if req.RelatedID != "" {
		t.RelatedID = &req.RelatedID
	}
	return tx.Transactions().Create(ctx, t)
}

// ListTransactions pages a user's audit trail, newest first.
func (s *BalanceService) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]models.TokenTransaction, error) {
	return s.store.Transactions().ListByUser(ctx, userID, limit, offset)
}
