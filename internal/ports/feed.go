package ports

import (
	"context"

	"solSniperBot/internal/domain"
)

// EventHandler receives launch events. It must not block for long.
type EventHandler func(ctx context.Context, event *domain.AssetEvent)

// AssetFeed streams new-asset events from a push source.
type AssetFeed interface {
	// Run connects, subscribes and delivers events until ctx is done or the
	// reconnect budget is exhausted, in which case it returns ErrFeedExhausted.
	Run(ctx context.Context, handler EventHandler) error
	// Connected reports whether a live connection is currently established.
	Connected() bool
}
