package models

import "time"

// UserBalance is the single per-user token account. Available tokens can be
// freely committed or spent; committed tokens are locked against unresolved
// markets. Version is the optimistic-concurrency fence: every write bumps it.
type UserBalance struct {
	UserID          string    `json:"user_id"`
	AvailableTokens int64     `json:"available_tokens"`
	CommittedTokens int64     `json:"committed_tokens"`
	TotalEarned     int64     `json:"total_earned"`
	TotalSpent      int64     `json:"total_spent"`
	LastUpdated     time.Time `json:"last_updated"`
	Version         int64     `json:"version"`
}

// Total returns available + committed tokens.
func (b UserBalance) Total() int64 { return b.AvailableTokens + b.CommittedTokens }

// NewZeroBalance is the lazily-created default for a first-seen user.
func NewZeroBalance(userID string) UserBalance {
	return UserBalance{UserID: userID, LastUpdated: time.Now(), Version: 1}
}
