package ports

import (
	"context"

	"solSniperBot/internal/domain"
)

// TradeRepository stores swap attempts. Rows are append-only.
type TradeRepository interface {
	// InsertTrade saves a new trade attempt and returns its assigned ID.
	InsertTrade(ctx context.Context, trade *domain.Trade) (int64, error)
	// SetTradeTxRef records the transaction signature of a pending trade.
	SetTradeTxRef(ctx context.Context, id int64, txRef string) error
	// FailTrade moves a pending trade to failed with the causing message.
	FailTrade(ctx context.Context, id int64, reason string) error
	// RecentTrades retrieves the most recent trades, newest first.
	RecentTrades(ctx context.Context, limit int) ([]*domain.Trade, error)
	// PendingTrades retrieves trades still pending, oldest first.
	PendingTrades(ctx context.Context) ([]*domain.Trade, error)
}

// PositionRepository reads positions and records valuation marks.
type PositionRepository interface {
	// FindOpenByAsset retrieves the open position for a token.
	// Returns nil, nil if no open position is found.
	FindOpenByAsset(ctx context.Context, assetID string) (*domain.Position, error)
	// ListOpen retrieves all open positions, oldest first.
	ListOpen(ctx context.Context) ([]*domain.Position, error)
	// ListAll retrieves positions of any status, newest first.
	ListAll(ctx context.Context, limit int) ([]*domain.Position, error)
	// CountOpen counts open positions.
	CountOpen(ctx context.Context) (int, error)
	// UpdateValuation stores the latest price and unrealized PnL of an open position.
	UpdateValuation(ctx context.Context, assetID string, price, pnlPercent float64) error
}

// StatsRepository accumulates per-day statistics.
type StatsRepository interface {
	// AddDailyStat adds delta onto the row for date, creating it if needed.
	AddDailyStat(ctx context.Context, date string, delta domain.DailyStatDelta) error
	// GetDailyStat returns the row for date, or a zero row if none exists.
	GetDailyStat(ctx context.Context, date string) (*domain.DailyStat, error)
	// RecentDailyStats returns up to days rows, newest first.
	RecentDailyStats(ctx context.Context, days int) ([]*domain.DailyStat, error)
}

// BlacklistRepository stores permanently rejected tokens.
type BlacklistRepository interface {
	// IsBlacklisted reports whether the token was blacklisted.
	IsBlacklisted(ctx context.Context, assetID string) (bool, error)
	// AddToBlacklist records the token. Existing entries are left untouched.
	AddToBlacklist(ctx context.Context, assetID, reason string) error
}

// Ledger is the full persistence surface used by the execution pipeline.
// The Confirm/Close methods apply all of their writes atomically.
type Ledger interface {
	TradeRepository
	PositionRepository
	StatsRepository
	BlacklistRepository

	// ConfirmBuy marks the pending trade confirmed, upserts the open position
	// (accumulating spend and tokens) and adds the stats delta for date.
	ConfirmBuy(ctx context.Context, tradeID int64, position *domain.Position, date string, delta domain.DailyStatDelta) error
	// ConfirmSell marks the pending trade confirmed, closes the open position
	// and adds the stats delta for date.
	ConfirmSell(ctx context.Context, tradeID int64, closing domain.PositionClose, date string, delta domain.DailyStatDelta) error
	// CloseEmptyPosition closes an open position without a trade and adds the stats delta.
	CloseEmptyPosition(ctx context.Context, closing domain.PositionClose, date string, delta domain.DailyStatDelta) error
}
