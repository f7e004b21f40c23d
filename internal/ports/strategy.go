package ports

import (
	"time"

	"solSniperBot/internal/domain"
)

// Valuation is a point-in-time estimate of an open position.
type Valuation struct {
	TokenBalance float64
	Price        float64 // SOL per token, 0 when unknown
	PriceKnown   bool
	At           time.Time
}

// ExitStrategy decides whether an open position should be closed.
type ExitStrategy interface {
	// ShouldClosePosition evaluates exit rules in priority order and returns the first match.
	ShouldClosePosition(position *domain.Position, valuation Valuation) (bool, domain.CloseReason)
}
