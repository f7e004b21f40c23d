package ports

import (
	"context"
	"encoding/json"

	"solSniperBot/internal/domain"
)

// QuoteRequest asks for a swap of Amount (UI units of InputAsset) into OutputAsset.
type QuoteRequest struct {
	InputAsset  string
	OutputAsset string
	Amount      float64
	SlippageBps int
}

// Quote is a route estimate returned by the swap router.
// Amounts are in UI units; Raw is the router payload needed to build the swap.
type Quote struct {
	InputAsset     string
	OutputAsset    string
	InAmount       float64
	OutAmount      float64
	PriceImpactPct float64
	SlippageBps    int
	Route          string
	Raw            json.RawMessage
}

// QuoteService provides swap quotes between two assets.
type QuoteService interface {
	// Quote returns a route estimate. The price may move before execution.
	Quote(ctx context.Context, req QuoteRequest) (*Quote, error)
}

// SwapExecutor turns a quote into a signed, submitted and confirmed transaction.
type SwapExecutor interface {
	// Submit builds, signs and sends the swap for the quote, returning the transaction reference.
	Submit(ctx context.Context, quote *Quote) (string, error)
	// Confirm blocks until the transaction is confirmed, fails, or ctx expires.
	Confirm(ctx context.Context, txRef string) error
}

// Wallet exposes the balances of the trading keypair.
type Wallet interface {
	// PublicKey returns the base58 address of the wallet.
	PublicKey() string
	// Balance returns the native SOL balance.
	Balance(ctx context.Context) (float64, error)
	// TokenBalance returns the UI-unit balance held for a token mint, 0 if no account exists.
	TokenBalance(ctx context.Context, assetID string) (float64, error)
}

// MarketData provides best-effort token market information.
type MarketData interface {
	// Info returns liquidity and naming data for a token. Callers must tolerate failures.
	Info(ctx context.Context, assetID string) (*domain.AssetInfo, error)
}

// PriceOracle provides reference prices from a centralized exchange.
type PriceOracle interface {
	// GetTickerPrice retrieves the last traded price for a symbol (e.g., "SOLUSDT").
	GetTickerPrice(ctx context.Context, symbol string) (float64, error)
}
