package services

import (
	"fmt"

	"github.com/baharkarakas/prediction-backend/internal/models"
	"github.com/shopspring/decimal"
)

// House keeps 5% of every resolved pool; the creator fee is a per-market
// parameter within [1%, 5%].
const HouseFeePercentage = 0.05

const (
	MinCreatorFee = 0.01
	MaxCreatorFee = 0.05
)

// WinnerPayout is one winner's share of the winner pool.
type WinnerPayout struct {
	CommitmentID string  `json:"commitment_id"`
	UserID       string  `json:"user_id"`
	Stake        int64   `json:"stake"`
	PayoutAmount int64   `json:"payout_amount"`
	Profit       int64   `json:"profit"`
	WinShare     float64 `json:"win_share"`
}

// CreatorPayout is the market creator's fee slice.
type CreatorPayout struct {
	UserID        string  `json:"user_id"`
	FeeAmount     int64   `json:"fee_amount"`
	FeePercentage float64 `json:"fee_percentage"` // percent, e.g. 2 for 2%
}

// PayoutPreview is the full deterministic settlement plan for one market.
type PayoutPreview struct {
	MarketID           string         `json:"market_id"`
	WinningOptionID    string         `json:"winning_option_id"`
	TotalPool          int64          `json:"total_pool"`
	HouseFee           int64          `json:"house_fee"`
	CreatorFee         int64          `json:"creator_fee"`
	WinnerPool         int64          `json:"winner_pool"`
	TotalWinningTokens int64          `json:"total_winning_tokens"`
	WinnerCount        int            `json:"winner_count"`
	Payouts            []WinnerPayout `json:"payouts"`
	CreatorPayout      CreatorPayout  `json:"creator_payout"`
}

// GeneratePayoutPreview computes the settlement for a market snapshot. It is a
// pure function: same snapshot and parameters, same numeric output.
//
// All fee and payout math floors to whole tokens. House and creator fees are
// floored independently off the total pool; each winner gets
// floor(winnerPool * stake / totalWinningTokens). Flooring only ever leaves
// dust with the house, it can never mint tokens.
func GeneratePayoutPreview(market models.Market, commitments []models.PredictionCommitment, winningOptionID string, creatorFeePct float64) (PayoutPreview, error) {
	if _, ok := market.Option(winningOptionID); !ok {
		return PayoutPreview{}, fmt.Errorf("%w: %q", ErrInvalidWinningOption, winningOptionID)
	}
	if creatorFeePct < MinCreatorFee || creatorFeePct > MaxCreatorFee {
		return PayoutPreview{}, fmt.Errorf("%w: %v not in [%v, %v]",
			ErrInvalidCreatorFee, creatorFeePct, MinCreatorFee, MaxCreatorFee)
	}

	preview := PayoutPreview{
		MarketID:        market.ID,
		WinningOptionID: winningOptionID,
		Payouts:         []WinnerPayout{},
	}

	var totalPool, totalWinningTokens int64
	var winners []models.PredictionCommitment
	for _, c := range commitments {
		if c.Status != models.CommitmentActive {
			continue
		}
		totalPool += c.TokensCommitted
		if c.OptionID == winningOptionID {
			winners = append(winners, c)
			totalWinningTokens += c.TokensCommitted
		}
	}

	preview.TotalPool = totalPool
	preview.TotalWinningTokens = totalWinningTokens
	preview.WinnerCount = len(winners)
	preview.CreatorPayout = CreatorPayout{
		UserID:        market.CreatedBy,
		FeePercentage: creatorFeePct * 100,
	}
	if totalPool == 0 {
		return preview, nil
	}

	pool := decimal.NewFromInt(totalPool)
	preview.HouseFee = pool.Mul(decimal.NewFromFloat(HouseFeePercentage)).Floor().IntPart()
	preview.CreatorFee = pool.Mul(decimal.NewFromFloat(creatorFeePct)).Floor().IntPart()
	preview.WinnerPool = totalPool - preview.HouseFee - preview.CreatorFee
	preview.CreatorPayout.FeeAmount = preview.CreatorFee

	// No winning-side stake: the winner pool stays undistributed with the
	// house. Guard the division, not an error.
	if totalWinningTokens == 0 {
		return preview, nil
	}

	winnerPool := decimal.NewFromInt(preview.WinnerPool)
	winningTokens := decimal.NewFromInt(totalWinningTokens)
	for _, w := range winners {
		stake := decimal.NewFromInt(w.TokensCommitted)
		// QuoRem with precision 0 is exact integer division; Div would round
		// the last digit instead of flooring.
		quotient, _ := winnerPool.Mul(stake).QuoRem(winningTokens, 0)
		payout := quotient.IntPart()
		share, _ := stake.Div(winningTokens).Float64()
		preview.Payouts = append(preview.Payouts, WinnerPayout{
			CommitmentID: w.ID,
			UserID:       w.UserID,
			Stake:        w.TokensCommitted,
			PayoutAmount: payout,
			Profit:       payout - w.TokensCommitted,
			WinShare:     share,
		})
	}
	return preview, nil
}

// TotalPayout sums the individual winner payouts.
func (p PayoutPreview) TotalPayout() int64 {
	var total int64
	for _, w := range p.Payouts {
		total += w.PayoutAmount
	}
	return total
}
