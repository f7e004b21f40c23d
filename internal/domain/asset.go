package domain

import "time"

// AssetEvent is a new-token notification received from the launch feed.
type AssetEvent struct {
	AssetID      string
	Signature    string
	Symbol       string
	Name         string
	Creator      string
	LiquiditySol float64 // SOL in the bonding curve at launch, 0 if unknown
	MarketCapSol float64
	Source       string
	ReceivedAt   time.Time
}

// AssetInfo is the best-effort market data for a token.
type AssetInfo struct {
	AssetID      string
	Symbol       string
	Name         string
	LiquidityUSD float64
	LiquiditySol float64
	PriceUSD     float64
	PairAddress  string
	DexID        string
}

// Candidate is the merged view of a token handed to the risk scorer.
type Candidate struct {
	AssetID        string  `json:"tokenAddress"`
	Symbol         string  `json:"symbol"`
	Name           string  `json:"name"`
	LiquiditySol   float64 `json:"liquiditySol"`
	IsHoneypot     *bool   `json:"isHoneypot"` // nil when unknown
	MintDisabled   bool    `json:"mintDisabled"`
	FreezeDisabled bool    `json:"freezeDisabled"`
	Source         string  `json:"source"`
}

// EvaluationCode classifies the outcome of a risk evaluation.
type EvaluationCode string

const (
	CodePassed       EvaluationCode = "passed"
	CodeBlacklisted  EvaluationCode = "blacklisted"
	CodeOpenPosition EvaluationCode = "open_position"
	CodeHoneypot     EvaluationCode = "honeypot"
	CodeLiquidity    EvaluationCode = "insufficient_liquidity"
	CodeLowScore     EvaluationCode = "low_score"
	CodeLookupFailed EvaluationCode = "lookup_failed"
)

// Check is one scored safety signal.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Evaluation is the risk scorer verdict for a candidate.
type Evaluation struct {
	Pass   bool           `json:"pass"`
	Code   EvaluationCode `json:"code"`
	Reason string         `json:"reason,omitempty"`
	Score  int            `json:"score"`
	Checks []Check        `json:"checks"`
}

// ShouldBlacklist reports whether the failure is permanent for this token.
func (e *Evaluation) ShouldBlacklist() bool {
	return !e.Pass && (e.Code == CodeHoneypot || e.Code == CodeBlacklisted)
}
