package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/baharkarakas/prediction-backend/internal/metrics"
	"github.com/baharkarakas/prediction-backend/internal/models"
	repo "github.com/baharkarakas/prediction-backend/internal/repository"
	"github.com/baharkarakas/prediction-backend/internal/worker"
)

// Rollback eligibility window for user-initiated rollbacks.
const rollbackWindow = 24 * time.Hour

const (
	RollbackTypeManual       = "manual"
	RollbackTypeCancellation = "cancellation"
	RollbackTypeCompensation = "compensation"
)

// RollbackService compensates commitments: the committed stake returns to the
// available bucket, the original transaction is marked rolled_back, and the
// commitment becomes refunded. Each rollback is individually atomic.
type RollbackService struct {
	store    repo.Store
	balances *BalanceService
	pool     *worker.Pool
}

func NewRollbackService(store repo.Store, balances *BalanceService, pool *worker.Pool) *RollbackService {
	return &RollbackService{store: store, balances: balances, pool: pool}
}

type RollbackRequest struct {
	UserID        string
	CommitmentID  string
	TransactionID string
	Reason        string
	RollbackType  string
}

type RollbackResult struct {
	CommitmentID string `json:"commitment_id"`
	UserID       string `json:"user_id"`
	Amount       int64  `json:"amount"`
	Status       string `json:"status"` // compensated | failed | skipped
	Error        string `json:"error,omitempty"`
}

// CanRollback reports rollback eligibility and, when ineligible, the reason.
func (s *RollbackService) CanRollback(c models.PredictionCommitment) (bool, string) {
	if c.Status != models.CommitmentActive {
		return false, fmt.Sprintf("commitment status is %s, only active commitments can be rolled back", c.Status)
	}
	if time.Since(c.CommittedAt) > rollbackWindow {
		return false, "commitment is older than the 24h rollback window"
	}
	return true, ""
}

// RollbackCommitment compensates one commitment. The target is resolved from
// the commitment id or, failing that, from the originating transaction.
func (s *RollbackService) RollbackCommitment(ctx context.Context, req RollbackRequest) (RollbackResult, error) {
	commitment, txn, err := s.resolveTarget(ctx, req)
	if err != nil {
		return RollbackResult{}, err
	}

	var amount int64
	var userID string
	if commitment != nil {
		amount = commitment.TokensCommitted
		userID = commitment.UserID
	} else {
		amount = txn.Amount
		if amount < 0 {
			amount = -amount
		}
		userID = txn.UserID
	}
	if req.UserID != "" && req.UserID != userID {
		return RollbackResult{}, fmt.Errorf("%w: commitment belongs to another user", ErrNothingToRollback)
	}

	if commitment != nil {
		// Cancellation and compensation rollbacks bypass the age window: a
		// cancelled market must refund stakes however old they are.
		eligible, reason := s.CanRollback(*commitment)
		if !eligible {
			if commitment.Status != models.CommitmentActive || req.RollbackType == RollbackTypeManual || req.RollbackType == "" {
				return RollbackResult{}, fmt.Errorf("%w: %s", ErrRollbackIneligible, reason)
			}
		}
	}

	err = s.store.WithTx(ctx, func(tx repo.Store) error {
		relatedID := req.TransactionID
		if commitment != nil {
			relatedID = commitment.ID
		}
		if _, err := s.balances.Apply(ctx, tx, UpdateRequest{
			UserID:    userID,
			Amount:    amount,
			Type:      models.TxnRefund,
			RelatedID: relatedID,
			Metadata:  map[string]any{"reason": req.Reason, "rollback_type": req.RollbackType},
		}); err != nil {
			return err
		}

		if original := s.findOriginal(ctx, tx, commitment, txn); original != nil {
			if err := tx.Transactions().UpdateStatus(ctx, original.ID, models.TxnRolledBack); err != nil {
				return err
			}
		}

		if commitment != nil {
			if err := tx.Commitments().UpdateStatus(ctx, commitment.ID, models.CommitmentRefunded); err != nil {
				return err
			}
			if err := tx.Markets().ApplyRollback(ctx, commitment.PredictionID, commitment.OptionID, amount); err != nil {
				// A deleted market must not strand the user's refund.
				if !errors.Is(err, repo.ErrNotFound) {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return RollbackResult{}, fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}

	rollbackType := req.RollbackType
	if rollbackType == "" {
		rollbackType = RollbackTypeManual
	}
	metrics.RollbacksTotal.WithLabelValues(rollbackType).Inc()

	result := RollbackResult{UserID: userID, Amount: amount, Status: "compensated"}
	if commitment != nil {
		result.CommitmentID = commitment.ID
	}
	return result, nil
}

// resolveTarget finds the commitment and/or originating transaction named by
// the request. Both absent means ErrNothingToRollback.
func (s *RollbackService) resolveTarget(ctx context.Context, req RollbackRequest) (*models.PredictionCommitment, *models.TokenTransaction, error) {
	var commitment *models.PredictionCommitment
	var txn *models.TokenTransaction

	if req.CommitmentID != "" {
		c, err := s.store.Commitments().GetByID(ctx, req.CommitmentID)
		if err == nil {
			commitment = &c
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, nil, err
		}
	}
	if req.TransactionID != "" {
		t, err := s.store.Transactions().GetByID(ctx, req.TransactionID)
		if err == nil {
			txn = &t
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, nil, err
		}
	}
	if commitment == nil && txn == nil {
		return nil, nil, ErrNothingToRollback
	}
	if txn != nil && txn.Status == models.TxnRolledBack {
		return nil, nil, fmt.Errorf("%w: transaction already rolled back", ErrNothingToRollback)
	}
	return commitment, txn, nil
}

// findOriginal locates the commit transaction to flip to rolled_back.
func (s *RollbackService) findOriginal(ctx context.Context, tx repo.Store, commitment *models.PredictionCommitment, txn *models.TokenTransaction) *models.TokenTransaction {
	if txn != nil {
		return txn
	}
	if commitment == nil {
		return nil
	}
	related, err := tx.Transactions().ListByRelated(ctx, commitment.ID)
	if err != nil {
		return nil
	}
	for i := range related {
		if related[i].Type == models.TxnCommit && related[i].Status == models.TxnCompleted {
			return &related[i]
		}
	}
	return nil
}

// RollbackMultiple compensates every active commitment of a market. Each item
// is independently atomic and failures are reported per item; the batch never
// aborts as a whole. The worker pool drives the fan-out.
func (s *RollbackService) RollbackMultiple(ctx context.Context, predictionID, reason string) ([]RollbackResult, error) {
	commitments, err := s.store.Commitments().ListActiveByPrediction(ctx, predictionID)
	if err != nil {
		return nil, err
	}

	results := make([]RollbackResult, len(commitments))
	var wg sync.WaitGroup
	for i, c := range commitments {
		i, c := i, c
		wg.Add(1)
		s.pool.Submit(func() {
			defer wg.Done()
			res, err := s.RollbackCommitment(ctx, RollbackRequest{
				UserID:       c.UserID,
				CommitmentID: c.ID,
				Reason:       reason,
				RollbackType: RollbackTypeCancellation,
			})
			if err != nil {
				results[i] = RollbackResult{
					CommitmentID: c.ID,
					UserID:       c.UserID,
					Amount:       c.TokensCommitted,
					Status:       "failed",
					Error:        err.Error(),
				}
				return
			}
			results[i] = res
		})
	}
	wg.Wait()
	return results, nil
}
