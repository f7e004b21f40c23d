package domain

import "time"

// Trade represents a single swap attempt recorded in the ledger.
// Rows are append-only: only Status (from pending) and TxRef change after insert.
type Trade struct {
	ID           int64       `json:"id"`
	AttemptID    string      `json:"attemptId"` // Correlation id shared by logs of the same attempt
	AssetID      string      `json:"tokenAddress"`
	Symbol       string      `json:"symbol"`
	Name         string      `json:"name"`
	Side         OrderSide   `json:"action"`
	AmountSol    float64     `json:"amountSol"`    // SOL spent (buy) or received (sell)
	AmountTokens float64     `json:"amountTokens"` // Tokens received (buy) or sold (sell)
	Price        float64     `json:"pricePerToken"`
	TxRef        string      `json:"txSignature,omitempty"` // empty until submitted
	Status       TradeStatus `json:"status"`
	Reason       string      `json:"reason"` // Entry/exit reason or failure cause
	CreatedAt    time.Time   `json:"createdAt"`
}
