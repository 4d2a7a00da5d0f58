package models

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

type ResolutionStatus string

const (
	ResolutionCompleted ResolutionStatus = "completed"
	ResolutionDisputed  ResolutionStatus = "disputed"
	ResolutionCancelled ResolutionStatus = "cancelled"
)

type EvidenceType string

const (
	EvidenceURL         EvidenceType = "url"
	EvidenceDescription EvidenceType = "description"
	EvidenceScreenshot  EvidenceType = "screenshot"
)

// Evidence is one item backing an admin's resolution decision.
type Evidence struct {
	Type    EvidenceType `json:"type"`
	Content string       `json:"content"`
}

// Validate checks the type is known, content is non-empty, and url-type
// content parses as an absolute URL.
func (e Evidence) Validate() error {
	if strings.TrimSpace(e.Content) == "" {
		return errors.New("evidence content required")
	}
	switch e.Type {
	case EvidenceURL:
		u, err := url.Parse(e.Content)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("evidence url is not a valid URL")
		}
	case EvidenceDescription, EvidenceScreenshot:
	default:
		return errors.New("unknown evidence type: " + string(e.Type))
	}
	return nil
}

// MarketResolution is written once per resolved market. Immutable afterwards
// except for the dispute/rollback path flipping Status.
type MarketResolution struct {
	ID               string           `json:"id"`
	MarketID         string           `json:"market_id"`
	WinningOptionID  string           `json:"winning_option_id"`
	Evidence         []Evidence       `json:"evidence"`
	ResolvedBy       string           `json:"resolved_by"`
	ResolvedAt       time.Time        `json:"resolved_at"`
	WinnerCount      int64            `json:"winner_count"`
	TotalPayout      int64            `json:"total_payout"`
	CreatorFeeAmount int64            `json:"creator_fee_amount"`
	HouseFeeAmount   int64            `json:"house_fee_amount"`
	Status           ResolutionStatus `json:"status"`
}
