package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/baharkarakas/prediction-backend/internal/metrics"
	"github.com/baharkarakas/prediction-backend/internal/models"
	repo "github.com/baharkarakas/prediction-backend/internal/repository"
	"github.com/google/uuid"
)

// CommitmentService validates and creates prediction commitments. The balance
// debit, the commitment record, and the market aggregate bump land in one
// store transaction; a failed transaction triggers a best-effort compensation
// pass before the error is surfaced.
type CommitmentService struct {
	store    repo.Store
	balances *BalanceService
	rollback *RollbackService
}

func NewCommitmentService(store repo.Store, balances *BalanceService, rollback *RollbackService) *CommitmentService {
	return &CommitmentService{store: store, balances: balances, rollback: rollback}
}

// CreateCommitment stakes tokens on one option of an active market.
func (s *CommitmentService) CreateCommitment(ctx context.Context, userID, predictionID, optionID string, tokens int64) (models.PredictionCommitment, models.UserBalance, error) {
	if tokens <= 0 {
		return models.PredictionCommitment{}, models.UserBalance{}, ErrInvalidAmount
	}

	market, err := s.store.Markets().Get(ctx, predictionID)
	if errors.Is(err, repo.ErrNotFound) {
		return models.PredictionCommitment{}, models.UserBalance{}, ErrMarketNotFound
	}
	if err != nil {
		return models.PredictionCommitment{}, models.UserBalance{}, err
	}
	if market.Status != models.MarketActive {
		return models.PredictionCommitment{}, models.UserBalance{}, &MarketInactiveError{Status: market.Status}
	}
	option, ok := market.Option(optionID)
	if !ok {
		return models.PredictionCommitment{}, models.UserBalance{}, ErrInvalidOption
	}

	// Fast-path balance check. The authoritative check re-runs inside the
	// transaction; this one only rejects the obvious case without a tx.
	bal, err := s.balances.GetBalance(ctx, userID)
	if err != nil {
		return models.PredictionCommitment{}, models.UserBalance{}, err
	}
	if bal.AvailableTokens < tokens {
		return models.PredictionCommitment{}, models.UserBalance{},
			&InsufficientBalanceError{Available: bal.AvailableTokens, Required: tokens}
	}

	commitment := models.PredictionCommitment{
		ID:              uuid.NewString(),
		UserID:          userID,
		PredictionID:    predictionID,
		OptionID:        optionID,
		TokensCommitted: tokens,
		Odds:            estimateOdds(market, option, tokens),
		Status:          models.CommitmentActive,
		CommittedAt:     time.Now(),
	}
	commitment.PotentialWinning = int64(math.Floor(float64(tokens) * commitment.Odds))

	var updated models.UserBalance
	err = s.store.WithTx(ctx, func(tx repo.Store) error {
		// Re-check under the transaction: a resolve or cancel landing after
		// the pre-check must surface as MarketInactive here, not as a stake
		// stranded on a settled market. Retried closures re-read too.
		m, err := tx.Markets().Get(ctx, predictionID)
		if err != nil {
			return err
		}
		if m.Status != models.MarketActive {
			return &MarketInactiveError{Status: m.Status}
		}
		if _, ok := m.Option(optionID); !ok {
			return ErrInvalidOption
		}

		alreadyOnOption, err := tx.Commitments().HasOptionCommitment(ctx, userID, predictionID, optionID)
		if err != nil {
			return err
		}
		updated, err = s.balances.Apply(ctx, tx, UpdateRequest{
			UserID:    userID,
			Amount:    tokens,
			Type:      models.TxnCommit,
			RelatedID: commitment.ID,
			Metadata:  map[string]any{"prediction_id": predictionID, "option_id": optionID},
		})
		if err != nil {
			return err
		}
		if err := tx.Commitments().Create(ctx, commitment); err != nil {
			return err
		}
		return tx.Markets().ApplyCommit(ctx, predictionID, optionID, tokens, !alreadyOnOption)
	})
	if err != nil {
		// Taxonomy errors are clean rejections detected before any write in
		// the unit; only infrastructure failures take the compensation path.
		if isLedgerError(err) {
			return models.PredictionCommitment{}, models.UserBalance{}, err
		}
		s.compensate(ctx, commitment, err)
		return models.PredictionCommitment{}, models.UserBalance{},
			fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}

	metrics.CommitmentsTotal.Inc()
	return commitment, updated, nil
}

// compensate is the saga step after a failed commit transaction: attempt a
// rollback of anything the aborted unit might have left behind, and record the
// attempt so partial-failure states stay observable. With a transactional
// store the rollback normally finds nothing.
func (s *CommitmentService) compensate(ctx context.Context, c models.PredictionCommitment, cause error) {
	slog.Warn("commit transaction failed, compensating",
		"commitment_id", c.ID, "user_id", c.UserID, "err", cause)

	res, err := s.rollback.RollbackCommitment(ctx, RollbackRequest{
		UserID:       c.UserID,
		CommitmentID: c.ID,
		Reason:       "commit transaction failed",
		RollbackType: RollbackTypeCompensation,
	})
	switch {
	case errors.Is(err, ErrNothingToRollback):
		// Expected: the aborted transaction left no trace.
	case err != nil:
		slog.Error("compensation failed", "commitment_id", c.ID, "err", err)
	default:
		slog.Info("compensation applied", "commitment_id", c.ID, "amount", res.Amount)
	}

	id := c.ID
	_ = s.store.AuditLogs().Create(ctx, models.AuditLog{
		EntityType: "commitment",
		EntityID:   &id,
		Action:     "compensation_attempted",
		Details:    map[string]any{"cause": cause.Error()},
	})
}

// estimateOdds quotes pool-odds as if this stake were already in the pool.
func estimateOdds(m models.Market, o models.MarketOption, tokens int64) float64 {
	pool := m.TotalTokensStaked + tokens
	side := o.TotalTokens + tokens
	if side == 0 {
		return 1
	}
	return float64(pool) / float64(side)
}

// GetUserCommitments lists a user's commitments, newest first. Re-querying
// re-executes the read.
func (s *CommitmentService) GetUserCommitments(ctx context.Context, userID string) ([]models.PredictionCommitment, error) {
	return s.store.Commitments().ListByUser(ctx, userID)
}

// GetPredictionCommitments lists a market's commitments, newest first.
func (s *CommitmentService) GetPredictionCommitments(ctx context.Context, predictionID string) ([]models.PredictionCommitment, error) {
	return s.store.Commitments().ListByPrediction(ctx, predictionID)
}
