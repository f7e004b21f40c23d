package domain

// OrderSide represents the side of a swap (BUY spends SOL, SELL receives SOL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// TradeStatus represents the lifecycle status of a trade attempt.
type TradeStatus string

const (
	TradePending   TradeStatus = "pending"
	TradeConfirmed TradeStatus = "confirmed"
	TradeFailed    TradeStatus = "failed"
)

// PositionStatus represents the status of a token position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
)

// CloseReason indicates why a position was closed.
type CloseReason string

const (
	CloseReasonBalanceZero CloseReason = "balance zero"
	CloseReasonTimeout     CloseReason = "timeout"
	CloseReasonStopLoss    CloseReason = "stop loss"
	CloseReasonTakeProfit  CloseReason = "take profit"
	CloseReasonManual      CloseReason = "manual"
)

// Well-known Solana constants.
const (
	SOLMint        = "So11111111111111111111111111111111111111112"
	SOLDecimals    = 9
	LamportsPerSOL = 1_000_000_000
	DateLayout     = "2006-01-02"
	MaxSafetyScore = 4
	SourcePumpFun  = "pumpfun"
	SourceManual   = "manual"
)
