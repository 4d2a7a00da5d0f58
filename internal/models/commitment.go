package models

import "time"

type CommitmentStatus string

const (
	CommitmentActive   CommitmentStatus = "active"
	CommitmentWon      CommitmentStatus = "won"
	CommitmentLost     CommitmentStatus = "lost"
	CommitmentRefunded CommitmentStatus = "refunded"
)

// PredictionCommitment is a user's stake on one option of a market. Exactly one
// committed-balance delta corresponds to each active commitment; the record is
// never deleted, only moved to won/lost/refunded.
type PredictionCommitment struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	PredictionID     string           `json:"prediction_id"`
	OptionID         string           `json:"option_id"`
	TokensCommitted  int64            `json:"tokens_committed"`
	Odds             float64          `json:"odds"`
	PotentialWinning int64            `json:"potential_winning"`
	Status           CommitmentStatus `json:"status"`
	CommittedAt      time.Time        `json:"committed_at"`
}
