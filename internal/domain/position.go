package domain

import "time"

// Position represents the bot's holding in a single token.
type Position struct {
	ID             int64          `json:"id"`
	AssetID        string         `json:"tokenAddress"` // Token mint address
	Symbol         string         `json:"symbol"`
	Name           string         `json:"name"`
	EntryPrice     float64        `json:"entryPrice"`     // Average cost in SOL per token
	AmountTokens   float64        `json:"amountTokens"`   // UI units
	AmountSolSpent float64        `json:"amountSolSpent"` // Total SOL spent acquiring the tokens
	CurrentPrice   float64        `json:"currentPrice"`   // Last valuation in SOL per token
	PnLPercent     float64        `json:"pnlPercent"`     // Unrealized while open, frozen on close
	Status         PositionStatus `json:"status"`
	EntryReason    string         `json:"entryReason"`
	ExitReason     CloseReason    `json:"exitReason,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	ClosedAt       time.Time      `json:"closedAt"` // zero while open
}

// IsOpen checks if the position status is open.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// Age returns how long the position has been held at the given instant.
func (p *Position) Age(now time.Time) time.Duration {
	return now.Sub(p.CreatedAt)
}

// PositionClose carries everything needed to close an open position.
type PositionClose struct {
	AssetID    string
	ExitPrice  float64
	PnLPercent float64
	ExitReason CloseReason
	ClosedAt   time.Time
}
