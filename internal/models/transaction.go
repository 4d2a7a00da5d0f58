package models

import "time"

type TransactionType string

const (
	TxnPurchase TransactionType = "purchase"
	TxnCommit   TransactionType = "commit"
	TxnRefund   TransactionType = "refund"
	TxnPayout   TransactionType = "payout"
	// TxnRollbackMarker records a compensation that could not be tied to a
	// surviving commitment (audit trail only, no balance effect of its own).
	TxnRollbackMarker TransactionType = "rollback_marker"
)

type TransactionStatus string

const (
	TxnCompleted  TransactionStatus = "completed"
	TxnRolledBack TransactionStatus = "rolled_back"
)

// TokenTransaction is the immutable audit record appended on every balance
// mutation. Amount is always non-negative; the type fixes the sign convention.
// Only Status may change afterwards, and only to rolled_back.
type TokenTransaction struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	Type          TransactionType   `json:"type"`
	Amount        int64             `json:"amount"`
	BalanceBefore int64             `json:"balance_before"`
	BalanceAfter  int64             `json:"balance_after"`
	RelatedID     *string           `json:"related_id,omitempty"`
	Metadata      map[string]any    `json:"metadata,omitempty"`
	Status        TransactionStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
}

// IsCredit reports whether the type adds to the user's total holdings.
func (t TransactionType) IsCredit() bool {
	return t == TxnPurchase || t == TxnPayout
}
