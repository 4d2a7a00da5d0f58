package models

import "time"

type MarketStatus string

const (
	MarketDraft             MarketStatus = "draft"
	MarketActive            MarketStatus = "active"
	MarketPendingResolution MarketStatus = "pending_resolution"
	MarketResolving         MarketStatus = "resolving"
	MarketResolved          MarketStatus = "resolved"
	MarketCancelled         MarketStatus = "cancelled"
)

// MarketOption is one outcome users can stake on. TotalTokens and
// ParticipantCount are cached aggregates over the option's active commitments.
type MarketOption struct {
	ID               string `json:"id"`
	Label            string `json:"label"`
	TotalTokens      int64  `json:"total_tokens"`
	ParticipantCount int64  `json:"participant_count"`
	IsWinner         bool   `json:"is_winner"`
}

// Market carries cached aggregates (TotalParticipants, TotalTokensStaked)
// derivable from active commitments; the ledger keeps both views consistent at
// commit and resolution time.
type Market struct {
	ID                string         `json:"id"`
	Title             string         `json:"title"`
	Category          string         `json:"category,omitempty"`
	Status            MarketStatus   `json:"status"`
	CreatedBy         string         `json:"created_by"`
	Options           []MarketOption `json:"options"`
	TotalParticipants int64          `json:"total_participants"`
	TotalTokensStaked int64          `json:"total_tokens_staked"`
	CreatedAt         time.Time      `json:"created_at"`
	ResolvedAt        *time.Time     `json:"resolved_at,omitempty"`
}

// Option returns the option with the given id, if present.
func (m Market) Option(optionID string) (MarketOption, bool) {
	for _, o := range m.Options {
		if o.ID == optionID {
			return o, true
		}
	}
	return MarketOption{}, false
}
