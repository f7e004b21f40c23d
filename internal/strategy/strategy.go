package strategy

import (
	"context"
	"fmt"
	"time"

	"solSniperBot/internal/domain"
	"solSniperBot/internal/ports"
)

// Config holds the exit thresholds.
type Config struct {
	StopLossPercent   float64       // e.g., 50 closes at half the entry price
	TakeProfitPercent float64       // e.g., 100 closes at double the entry price
	MaxHold           time.Duration // e.g., 60m
}

// Strategy implements the rule-based exit logic for open positions.
type Strategy struct {
	cfg    Config
	logger ports.Logger
	now    func() time.Time
}

var _ ports.ExitStrategy = (*Strategy)(nil)

// New creates a new Strategy instance.
func New(cfg Config, logger ports.Logger) (*Strategy, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	if cfg.StopLossPercent <= 0 || cfg.StopLossPercent > 100 {
		return nil, fmt.Errorf("stop loss percent must be in (0, 100], got %.2f", cfg.StopLossPercent)
	}
	if cfg.TakeProfitPercent <= 0 {
		return nil, fmt.Errorf("take profit percent must be positive, got %.2f", cfg.TakeProfitPercent)
	}
	if cfg.MaxHold <= 0 {
		return nil, fmt.Errorf("max hold duration must be positive")
	}
	return &Strategy{cfg: cfg, logger: logger, now: time.Now}, nil
}

// ShouldClosePosition applies the exit rules in priority order, first match wins:
// empty balance, max hold exceeded, stop loss, take profit.
// Price rules are skipped when the valuation has no price.
func (s *Strategy) ShouldClosePosition(position *domain.Position, valuation ports.Valuation) (bool, domain.CloseReason) {
	if position == nil || !position.IsOpen() {
		return false, ""
	}

	if valuation.TokenBalance <= 0 {
		return true, domain.CloseReasonBalanceZero
	}

	at := valuation.At
	if at.IsZero() {
		at = s.now()
	}
	if position.Age(at) > s.cfg.MaxHold {
		return true, domain.CloseReasonTimeout
	}

	if !valuation.PriceKnown || position.EntryPrice <= 0 {
		return false, ""
	}

	change := PnLPercent(position.EntryPrice, valuation.Price)
	if -change >= s.cfg.StopLossPercent {
		s.logger.Debug(context.Background(), "Stop loss threshold reached", map[string]interface{}{
			"asset":  position.AssetID,
			"change": change,
		})
		return true, domain.CloseReasonStopLoss
	}
	if change >= s.cfg.TakeProfitPercent {
		s.logger.Debug(context.Background(), "Take profit threshold reached", map[string]interface{}{
			"asset":  position.AssetID,
			"change": change,
		})
		return true, domain.CloseReasonTakeProfit
	}
	return false, ""
}

// PnLPercent returns the percent change from entry to current.
func PnLPercent(entry, current float64) float64 {
	if entry <= 0 {
		return 0
	}
	return (current - entry) / entry * 100
}
