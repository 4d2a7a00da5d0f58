package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/baharkarakas/prediction-backend/internal/metrics"
	"github.com/baharkarakas/prediction-backend/internal/models"
	repo "github.com/baharkarakas/prediction-backend/internal/repository"
	"github.com/google/uuid"
)

// AdminChecker is the external admin-privilege collaborator gating resolution,
// cancellation and resolution rollback.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// StoreAdminChecker answers admin checks from the users collection.
type StoreAdminChecker struct{ Store repo.Store }

func (c StoreAdminChecker) IsAdmin(ctx context.Context, userID string) (bool, error) {
	u, err := c.Store.Users().GetByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsAdmin(), nil
}

// DefaultCreatorFee applies when a resolution request leaves the fee unset.
const DefaultCreatorFee = 0.02

// ResolutionService sequences admin authorization, evidence validation, payout
// calculation, and the all-or-nothing settlement write.
type ResolutionService struct {
	store    repo.Store
	balances *BalanceService
	rollback *RollbackService
	admins   AdminChecker
}

func NewResolutionService(store repo.Store, balances *BalanceService, rollback *RollbackService, admins AdminChecker) *ResolutionService {
	return &ResolutionService{store: store, balances: balances, rollback: rollback, admins: admins}
}

type ResolveRequest struct {
	MarketID        string
	WinningOptionID string
	Evidence        []models.Evidence
	AdminID         string
	CreatorFeePct   float64 // 0 means DefaultCreatorFee
}

type ResolveResult struct {
	Success      bool   `json:"success"`
	ResolutionID string `json:"resolution_id"`
}

// ResolveMarket settles a market. The resolution record, the market status
// flip, every winner payout and every loser forfeit commit in one transaction;
// a failure anywhere leaves nothing applied.
func (s *ResolutionService) ResolveMarket(ctx context.Context, req ResolveRequest) (ResolveResult, error) {
	if err := s.authorize(ctx, req.AdminID); err != nil {
		return ResolveResult{}, err
	}
	if err := validateEvidence(req.Evidence); err != nil {
		return ResolveResult{}, err
	}
	feePct := req.CreatorFeePct
	if feePct == 0 {
		feePct = DefaultCreatorFee
	}

	market, err := s.loadResolvable(ctx, req.MarketID)
	if err != nil {
		return ResolveResult{}, err
	}

	resolutionID := uuid.NewString()
	var totalPaid int64
	err = s.store.WithTx(ctx, func(tx repo.Store) error {
		// Re-check under the transaction: a concurrent resolve must surface
		// as AlreadyResolved, not a double payout.
		market, err = tx.Markets().Get(ctx, req.MarketID)
		if err != nil {
			return err
		}
		if market.Status == models.MarketResolved {
			return ErrAlreadyResolved
		}

		commitments, err := tx.Commitments().ListActiveByPrediction(ctx, req.MarketID)
		if err != nil {
			return err
		}
		preview, err := GeneratePayoutPreview(market, commitments, req.WinningOptionID, feePct)
		if err != nil {
			return err
		}

		for _, w := range preview.Payouts {
			if _, err := s.balances.Apply(ctx, tx, UpdateRequest{
				UserID:           w.UserID,
				Amount:           w.PayoutAmount,
				Type:             models.TxnPayout,
				RelatedID:        w.CommitmentID,
				ReleaseCommitted: w.Stake,
				Metadata:         map[string]any{"market_id": req.MarketID, "resolution_id": resolutionID},
			}); err != nil {
				return err
			}
			if err := tx.Commitments().UpdateStatus(ctx, w.CommitmentID, models.CommitmentWon); err != nil {
				return err
			}
		}

		for _, c := range commitments {
			if c.OptionID == req.WinningOptionID {
				continue
			}
			if err := s.balances.ForfeitCommitted(ctx, tx, c.UserID, c.TokensCommitted); err != nil {
				return err
			}
			if err := tx.Commitments().UpdateStatus(ctx, c.ID, models.CommitmentLost); err != nil {
				return err
			}
		}

		if preview.CreatorFee > 0 {
			if _, err := s.balances.Apply(ctx, tx, UpdateRequest{
				UserID:    market.CreatedBy,
				Amount:    preview.CreatorFee,
				Type:      models.TxnPayout,
				RelatedID: req.MarketID,
				Metadata:  map[string]any{"kind": "creator_fee", "resolution_id": resolutionID},
			}); err != nil {
				return err
			}
		}

		resolution := models.MarketResolution{
			ID:               resolutionID,
			MarketID:         req.MarketID,
			WinningOptionID:  req.WinningOptionID,
			Evidence:         req.Evidence,
			ResolvedBy:       req.AdminID,
			ResolvedAt:       time.Now(),
			WinnerCount:      int64(preview.WinnerCount),
			TotalPayout:      preview.TotalPayout(),
			CreatorFeeAmount: preview.CreatorFee,
			HouseFeeAmount:   preview.HouseFee,
			Status:           models.ResolutionCompleted,
		}
		if err := tx.Resolutions().Create(ctx, resolution); err != nil {
			return err
		}
		if err := tx.Markets().SetWinner(ctx, req.MarketID, req.WinningOptionID); err != nil {
			return err
		}
		if err := tx.Markets().UpdateStatus(ctx, req.MarketID, models.MarketResolved); err != nil {
			return err
		}

		totalPaid = resolution.TotalPayout
		return nil
	})
	if err != nil {
		if isLedgerError(err) {
			return ResolveResult{}, err
		}
		metrics.TxFailed.Inc()
		return ResolveResult{}, fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}

	// Counters only move once the transaction has committed; a retried
	// closure must not double-count.
	metrics.ResolutionsTotal.Inc()
	metrics.PayoutTokensTotal.Add(float64(totalPaid))
	s.audit(ctx, req.MarketID, "market_resolved", map[string]any{
		"resolution_id": resolutionID, "winning_option": req.WinningOptionID, "admin_id": req.AdminID,
	})
	slog.Info("market resolved", "market_id", req.MarketID, "resolution_id", resolutionID, "admin_id", req.AdminID)
	return ResolveResult{Success: true, ResolutionID: resolutionID}, nil
}

// PreviewPayout computes the settlement plan without mutating anything.
func (s *ResolutionService) PreviewPayout(ctx context.Context, marketID, winningOptionID string, creatorFeePct float64) (PayoutPreview, error) {
	market, err := s.store.Markets().Get(ctx, marketID)
	if errors.Is(err, repo.ErrNotFound) {
		return PayoutPreview{}, ErrMarketNotFound
	}
	if err != nil {
		return PayoutPreview{}, err
	}
	commitments, err := s.store.Commitments().ListActiveByPrediction(ctx, marketID)
	if err != nil {
		return PayoutPreview{}, err
	}
	if creatorFeePct == 0 {
		creatorFeePct = DefaultCreatorFee
	}
	return GeneratePayoutPreview(market, commitments, winningOptionID, creatorFeePct)
}

// CancelMarket refunds every active commitment (per-item atomic, partial
// failure reported per item) and then marks the market cancelled. The market
// is only cancelled if every refund succeeded.
func (s *ResolutionService) CancelMarket(ctx context.Context, marketID, adminID, reason string) ([]RollbackResult, error) {
	if err := s.authorize(ctx, adminID); err != nil {
		return nil, err
	}
	market, err := s.store.Markets().Get(ctx, marketID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrMarketNotFound
	}
	if err != nil {
		return nil, err
	}
	if market.Status == models.MarketResolved {
		return nil, ErrAlreadyResolved
	}

	results, err := s.rollback.RollbackMultiple(ctx, marketID, reason)
	if err != nil {
		return nil, err
	}
	failed := 0
	for _, r := range results {
		if r.Status == "failed" {
			failed++
		}
	}
	if failed > 0 {
		slog.Warn("market cancellation left unrefunded commitments",
			"market_id", marketID, "failed", failed, "total", len(results))
		return results, fmt.Errorf("%w: %d of %d refunds failed", ErrTransactionFailed, failed, len(results))
	}

	if err := s.store.Markets().UpdateStatus(ctx, marketID, models.MarketCancelled); err != nil {
		return results, err
	}
	s.audit(ctx, marketID, "market_cancelled", map[string]any{"admin_id": adminID, "reason": reason, "refunds": len(results)})
	return results, nil
}

// RollbackResolution is the dispute path: winner payouts are reversed, loser
// forfeits restored, commitments return to active, and the market goes back to
// pending_resolution, all in one transaction.
func (s *ResolutionService) RollbackResolution(ctx context.Context, marketID, adminID, reason string) error {
	if err := s.authorize(ctx, adminID); err != nil {
		return err
	}
	resolution, err := s.store.Resolutions().GetByMarket(ctx, marketID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNothingToRollback
	}
	if err != nil {
		return err
	}
	if resolution.Status != models.ResolutionCompleted {
		return fmt.Errorf("%w: resolution status is %s", ErrNothingToRollback, resolution.Status)
	}

	err = s.store.WithTx(ctx, func(tx repo.Store) error {
		commitments, err := tx.Commitments().ListByPrediction(ctx, marketID)
		if err != nil {
			return err
		}
		for _, c := range commitments {
			switch c.Status {
			case models.CommitmentWon:
				payout, err := findPayout(ctx, tx, c.ID)
				if err != nil {
					return err
				}
				if err := s.balances.ReversePayout(ctx, tx, c.UserID, payout.Amount, c.TokensCommitted, c.ID); err != nil {
					return err
				}
				if err := tx.Transactions().UpdateStatus(ctx, payout.ID, models.TxnRolledBack); err != nil {
					return err
				}
			case models.CommitmentLost:
				if err := s.balances.RestoreCommitted(ctx, tx, c.UserID, c.TokensCommitted); err != nil {
					return err
				}
			default:
				continue
			}
			if err := tx.Commitments().UpdateStatus(ctx, c.ID, models.CommitmentActive); err != nil {
				return err
			}
		}

		if resolution.CreatorFeeAmount > 0 {
			market, err := tx.Markets().Get(ctx, marketID)
			if err != nil {
				return err
			}
			if err := s.balances.ReversePayout(ctx, tx, market.CreatedBy, resolution.CreatorFeeAmount, 0, marketID); err != nil {
				return err
			}
		}

		if err := tx.Resolutions().UpdateStatus(ctx, resolution.ID, models.ResolutionCancelled); err != nil {
			return err
		}
		if err := tx.Markets().SetWinner(ctx, marketID, ""); err != nil {
			return err
		}
		return tx.Markets().UpdateStatus(ctx, marketID, models.MarketPendingResolution)
	})
	if err != nil {
		if isLedgerError(err) {
			return err
		}
		metrics.TxFailed.Inc()
		return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}

	s.audit(ctx, marketID, "resolution_rolled_back", map[string]any{"admin_id": adminID, "reason": reason, "resolution_id": resolution.ID})
	return nil
}

func (s *ResolutionService) authorize(ctx context.Context, adminID string) error {
	if adminID == "" {
		return ErrUnauthorized
	}
	ok, err := s.admins.IsAdmin(ctx, adminID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

func (s *ResolutionService) audit(ctx context.Context, marketID, action string, details map[string]any) {
	id := marketID
	_ = s.store.AuditLogs().Create(ctx, models.AuditLog{
		EntityType: "market",
		EntityID:   &id,
		Action:     action,
		Details:    details,
	})
}

func validateEvidence(items []models.Evidence) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: at least one evidence item required", ErrInvalidEvidence)
	}
	for i, e := range items {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("%w: item %d: %w", ErrInvalidEvidence, i, err)
		}
	}
	return nil
}

// loadResolvable fetches the market and rejects terminal or unstarted states.
func (s *ResolutionService) loadResolvable(ctx context.Context, marketID string) (models.Market, error) {
	market, err := s.store.Markets().Get(ctx, marketID)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Market{}, ErrMarketNotFound
	}
	if err != nil {
		return models.Market{}, err
	}
	switch market.Status {
	case models.MarketResolved:
		return models.Market{}, ErrAlreadyResolved
	case models.MarketDraft, models.MarketCancelled:
		return models.Market{}, &MarketInactiveError{Status: market.Status}
	}
	return market, nil
}

func findPayout(ctx context.Context, tx repo.Store, commitmentID string) (models.TokenTransaction, error) {
	related, err := tx.Transactions().ListByRelated(ctx, commitmentID)
	if err != nil {
		return models.TokenTransaction{}, err
	}
	for _, t := range related {
		if t.Type == models.TxnPayout && t.Status == models.TxnCompleted {
			return t, nil
		}
	}
	return models.TokenTransaction{}, fmt.Errorf("no payout transaction for commitment %s", commitmentID)
}

// isLedgerError reports whether err already belongs to the public taxonomy and
// should pass through without a TransactionFailed wrapper.
func isLedgerError(err error) bool {
	for _, target := range []error{
		ErrInsufficientBalance, ErrMarketInactive, ErrMarketNotFound, ErrAlreadyResolved,
		ErrUnauthorized, ErrInvalidEvidence, ErrInvalidWinningOption, ErrInvalidOption,
		ErrInvalidCreatorFee, ErrNothingToRollback, ErrRollbackIneligible, ErrInvalidAmount,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
