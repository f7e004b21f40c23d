package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"solSniperBot/internal/domain"
	"solSniperBot/internal/ports"
	"solSniperBot/internal/risk"
)

// Admission is the risk gate consulted before buys and fed realized PnL after sells.
// Reserve holds a slot for an admitted buy until release is called.
type Admission interface {
	Reserve(ctx context.Context) (risk.Decision, func())
	RecordLoss(ctx context.Context, amount float64)
	RecordWin(ctx context.Context, amount float64)
}

// PipelineConfig holds execution parameters.
type PipelineConfig struct {
	TradeAmountSol  float64
	SlippageBps     int
	ExternalTimeout time.Duration // quote, submit and balance calls
	ConfirmTimeout  time.Duration
}

// Pipeline executes buys and sells: quote, submit, confirm, then ledger update.
// It is the only writer of trades and positions.
type Pipeline struct {
	cfg       PipelineConfig
	logger    ports.Logger
	admission Admission
	quotes    ports.QuoteService
	swaps     ports.SwapExecutor
	wallet    ports.Wallet
	ledger    ports.Ledger
	locks     *KeyedMutex
	now       func() time.Time
	newID     func() string
}

// NewPipeline creates an execution pipeline.
func NewPipeline(
	cfg PipelineConfig,
	logger ports.Logger,
	admission Admission,
	quotes ports.QuoteService,
	swaps ports.SwapExecutor,
	wallet ports.Wallet,
	ledger ports.Ledger,
) (*Pipeline, error) {
	if logger == nil || admission == nil || quotes == nil || swaps == nil || wallet == nil || ledger == nil {
		return nil, fmt.Errorf("missing required dependencies for Pipeline")
	}
	if cfg.TradeAmountSol <= 0 {
		return nil, fmt.Errorf("configuration TradeAmountSol must be positive")
	}
	if cfg.SlippageBps <= 0 {
		return nil, fmt.Errorf("configuration SlippageBps must be positive")
	}
	if cfg.ExternalTimeout <= 0 {
		cfg.ExternalTimeout = 15 * time.Second
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 60 * time.Second
	}
	return &Pipeline{
		cfg:       cfg,
		logger:    logger,
		admission: admission,
		quotes:    quotes,
		swaps:     swaps,
		wallet:    wallet,
		ledger:    ledger,
		locks:     NewKeyedMutex(),
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

// Buy spends the configured trade amount on req.AssetID.
func (p *Pipeline) Buy(ctx context.Context, req domain.BuyRequest) *domain.ExecutionResult {
	const op = "Pipeline.Buy"
	res := p.newResult(req.AssetID, domain.Buy)
	fields := map[string]interface{}{"attemptID": res.AttemptID, "asset": req.AssetID, "symbol": req.Symbol}

	unlock := p.locks.Lock(req.AssetID)
	defer unlock()

	// 1. Admission gate, slot held until the position row exists or the attempt fails
	admitCtx, cancel := context.WithTimeout(ctx, p.cfg.ExternalTimeout)
	decision, release := p.admission.Reserve(admitCtx)
	cancel()
	defer release()
	if !decision.Allowed {
		res.Denied = true
		res.Reason = decision.Reason
		p.logger.Info(ctx, op+": admission denied", withField(fields, "reason", decision.Reason))
		return res
	}

	// 2. Quote SOL -> token
	quote, err := p.quote(ctx, domain.SOLMint, req.AssetID, p.cfg.TradeAmountSol)
	if err != nil {
		p.recordFailedAttempt(ctx, &domain.Trade{
			AttemptID: res.AttemptID, AssetID: req.AssetID, Symbol: req.Symbol, Name: req.Name,
			Side: domain.Buy, AmountSol: p.cfg.TradeAmountSol,
		}, err)
		p.logger.Error(ctx, err, op+": quote failed", fields)
		return res.Fail(domain.StateRequested, err)
	}
	res.State = domain.StateQuoted
	res.AmountSol = p.cfg.TradeAmountSol
	res.AmountTokens = quote.OutAmount
	res.Price = p.cfg.TradeAmountSol / quote.OutAmount

	// 3. Pending row before anything touches the chain
	trade := &domain.Trade{
		AttemptID:    res.AttemptID,
		AssetID:      req.AssetID,
		Symbol:       req.Symbol,
		Name:         req.Name,
		Side:         domain.Buy,
		AmountSol:    p.cfg.TradeAmountSol,
		AmountTokens: quote.OutAmount,
		Price:        res.Price,
		Status:       domain.TradePending,
		Reason:       req.Reason,
		CreatedAt:    p.now().UTC(),
	}
	tradeID, err := p.ledger.InsertTrade(ctx, trade)
	if err != nil {
		p.logger.Error(ctx, err, op+": failed to record pending trade, aborting before submit", fields)
		p.recordFailedAttempt(ctx, trade, err)
		return res.Fail(domain.StateQuoted, err)
	}
	res.TradeID = tradeID

	// 4. Submit + confirm
	if err := p.execute(ctx, tradeID, quote, res); err != nil {
		p.logger.Error(ctx, err, op+": swap failed", withField(fields, "txRef", res.TxRef))
		return res
	}

	// 5. Confirmed: trade, position and stats in one transaction
	pos := &domain.Position{
		AssetID:        req.AssetID,
		Symbol:         req.Symbol,
		Name:           req.Name,
		EntryPrice:     res.Price,
		AmountTokens:   quote.OutAmount,
		AmountSolSpent: p.cfg.TradeAmountSol,
		EntryReason:    req.Reason,
		CreatedAt:      p.now().UTC(),
	}
	delta := domain.DailyStatDelta{Trades: 1, VolumeSol: p.cfg.TradeAmountSol}
	if err := p.ledger.ConfirmBuy(context.WithoutCancel(ctx), tradeID, pos, p.today(), delta); err != nil {
		p.logger.Error(ctx, err, op+": swap confirmed but ledger update failed; trade left pending, reconcile by txRef", withField(fields, "txRef", res.TxRef))
		res.Error = err.Error()
		return res
	}

	res.Success = true
	p.logger.Info(ctx, op+": buy confirmed", withFields(fields, map[string]interface{}{
		"txRef":     res.TxRef,
		"amountSol": res.AmountSol,
		"tokens":    res.AmountTokens,
		"price":     res.Price,
	}))
	return res
}

// Sell liquidates the full token balance of the open position for assetID.
func (p *Pipeline) Sell(ctx context.Context, assetID string, reason domain.CloseReason) *domain.ExecutionResult {
	const op = "Pipeline.Sell"
	res := p.newResult(assetID, domain.Sell)
	res.Reason = string(reason)
	fields := map[string]interface{}{"attemptID": res.AttemptID, "asset": assetID, "reason": reason}

	unlock := p.locks.Lock(assetID)
	defer unlock()

	// 1. Integrity: must hold an open position
	pos, err := p.ledger.FindOpenByAsset(ctx, assetID)
	if err != nil {
		p.logger.Error(ctx, err, op+": position lookup failed", fields)
		return res.Fail(domain.StateRequested, err)
	}
	if pos == nil {
		p.logger.Warn(ctx, op+": no open position", fields)
		return res.Fail(domain.StateRequested, ports.ErrNoOpenPosition)
	}

	failedSell := func(cause error, tokens float64) {
		p.recordFailedAttempt(ctx, &domain.Trade{
			AttemptID: res.AttemptID, AssetID: assetID, Symbol: pos.Symbol, Name: pos.Name,
			Side: domain.Sell, AmountTokens: tokens,
		}, cause)
	}

	balance, err := p.tokenBalance(ctx, assetID)
	if err != nil {
		failedSell(err, 0)
		p.logger.Error(ctx, err, op+": token balance lookup failed", fields)
		return res.Fail(domain.StateRequested, err)
	}

	// 2. Nothing left to sell: total loss, no swap
	if balance <= 0 {
		return p.closeEmpty(ctx, pos, reason, res)
	}

	// 3. Quote the full balance token -> SOL
	quote, err := p.quote(ctx, assetID, domain.SOLMint, balance)
	if err != nil {
		failedSell(err, balance)
		p.logger.Error(ctx, err, op+": quote failed", fields)
		return res.Fail(domain.StateRequested, err)
	}
	res.State = domain.StateQuoted
	received := quote.OutAmount
	res.AmountSol = received
	res.AmountTokens = balance
	res.Price = received / balance

	trade := &domain.Trade{
		AttemptID:    res.AttemptID,
		AssetID:      assetID,
		Symbol:       pos.Symbol,
		Name:         pos.Name,
		Side:         domain.Sell,
		AmountSol:    received,
		AmountTokens: balance,
		Price:        res.Price,
		Status:       domain.TradePending,
		Reason:       string(reason),
		CreatedAt:    p.now().UTC(),
	}
	tradeID, err := p.ledger.InsertTrade(ctx, trade)
	if err != nil {
		p.logger.Error(ctx, err, op+": failed to record pending trade, aborting before submit", fields)
		p.recordFailedAttempt(ctx, trade, err)
		return res.Fail(domain.StateQuoted, err)
	}
	res.TradeID = tradeID

	if err := p.execute(ctx, tradeID, quote, res); err != nil {
		p.logger.Error(ctx, err, op+": swap failed, position stays open", withField(fields, "txRef", res.TxRef))
		return res
	}

	// 4. Realize PnL
	pnl := received - pos.AmountSolSpent
	pnlPercent := 0.0
	if pos.AmountSolSpent > 0 {
		pnlPercent = pnl / pos.AmountSolSpent * 100
	}
	res.PnLSol = pnl
	res.PnLPercent = pnlPercent

	delta := domain.DailyStatDelta{Trades: 1, PnLSol: pnl, VolumeSol: received}
	if pnl > 0 {
		delta.Wins = 1
	} else {
		delta.Losses = 1
	}
	closing := domain.PositionClose{
		AssetID:    assetID,
		ExitPrice:  res.Price,
		PnLPercent: pnlPercent,
		ExitReason: reason,
		ClosedAt:   p.now().UTC(),
	}
	if err := p.ledger.ConfirmSell(context.WithoutCancel(ctx), tradeID, closing, p.today(), delta); err != nil {
		p.logger.Error(ctx, err, op+": swap confirmed but ledger update failed; trade left pending, reconcile by txRef", withField(fields, "txRef", res.TxRef))
		res.Error = err.Error()
		return res
	}

	if pnl < 0 {
		p.admission.RecordLoss(ctx, -pnl)
	} else {
		p.admission.RecordWin(ctx, pnl)
	}

	res.Success = true
	p.logger.Info(ctx, op+": sell confirmed", withFields(fields, map[string]interface{}{
		"txRef":      res.TxRef,
		"received":   received,
		"pnlSol":     pnl,
		"pnlPercent": pnlPercent,
	}))
	return res
}

// MarkPrice records a valuation for an open position.
func (p *Pipeline) MarkPrice(ctx context.Context, assetID string, price, pnlPercent float64) error {
	unlock := p.locks.Lock(assetID)
	defer unlock()
	return p.ledger.UpdateValuation(ctx, assetID, price, pnlPercent)
}

// ReportPending logs every trade left pending by an earlier run. A pending
// row with a tx ref may have landed on-chain and needs a manual check
// against the wallet; one without was never submitted.
func (p *Pipeline) ReportPending(ctx context.Context) (int, error) {
	const op = "Pipeline.ReportPending"
	pending, err := p.ledger.PendingTrades(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	for _, t := range pending {
		fields := map[string]interface{}{
			"tradeID":   t.ID,
			"attemptID": t.AttemptID,
			"asset":     t.AssetID,
			"side":      t.Side,
			"amountSol": t.AmountSol,
			"createdAt": t.CreatedAt,
		}
		if t.TxRef == "" {
			p.logger.Warn(ctx, op+": pending trade was never submitted", fields)
			continue
		}
		p.logger.Error(ctx, ports.ErrInvalidState, op+": pending trade has a tx ref, reconcile against the wallet", withField(fields, "txRef", t.TxRef))
	}
	return len(pending), nil
}

// closeEmpty closes a position whose token balance is gone as a total loss.
func (p *Pipeline) closeEmpty(ctx context.Context, pos *domain.Position, reason domain.CloseReason, res *domain.ExecutionResult) *domain.ExecutionResult {
	const op = "Pipeline.closeEmpty"
	closing := domain.PositionClose{
		AssetID:    pos.AssetID,
		ExitPrice:  0,
		PnLPercent: -100,
		ExitReason: reason,
		ClosedAt:   p.now().UTC(),
	}
	delta := domain.DailyStatDelta{Losses: 1, PnLSol: -pos.AmountSolSpent}
	if err := p.ledger.CloseEmptyPosition(ctx, closing, p.today(), delta); err != nil {
		p.logger.Error(ctx, err, op+": failed to close empty position", map[string]interface{}{"asset": pos.AssetID})
		return res.Fail(domain.StateRequested, err)
	}
	p.admission.RecordLoss(ctx, pos.AmountSolSpent)

	res.Success = true
	res.State = domain.StateConfirmed
	res.PnLSol = -pos.AmountSolSpent
	res.PnLPercent = -100
	p.logger.Warn(ctx, op+": token balance is zero, position closed as total loss", map[string]interface{}{
		"asset":     pos.AssetID,
		"attemptID": res.AttemptID,
		"lostSol":   pos.AmountSolSpent,
	})
	return res
}

// execute submits and confirms the quote, failing the pending trade on error.
// It advances res through SUBMITTED to CONFIRMED, or FAILED.
func (p *Pipeline) execute(ctx context.Context, tradeID int64, quote *ports.Quote, res *domain.ExecutionResult) error {
	submitCtx, cancel := context.WithTimeout(ctx, p.cfg.ExternalTimeout)
	txRef, err := p.swaps.Submit(submitCtx, quote)
	cancel()
	if err != nil {
		err = fmt.Errorf("submit: %w", err)
		p.failTrade(ctx, tradeID, err)
		res.Fail(domain.StateQuoted, err)
		return err
	}
	res.State = domain.StateSubmitted
	res.TxRef = txRef
	if err := p.ledger.SetTradeTxRef(ctx, tradeID, txRef); err != nil {
		p.logger.Warn(ctx, "Pipeline.execute: failed to store tx ref", map[string]interface{}{"tradeID": tradeID, "txRef": txRef, "error": err.Error()})
	}

	confirmCtx, cancel := context.WithTimeout(ctx, p.cfg.ConfirmTimeout)
	err = p.swaps.Confirm(confirmCtx, txRef)
	cancel()
	if err != nil {
		err = fmt.Errorf("confirm %s: %w", txRef, err)
		p.failTrade(ctx, tradeID, err)
		res.Fail(domain.StateSubmitted, err)
		return err
	}
	res.State = domain.StateConfirmed
	return nil
}

func (p *Pipeline) quote(ctx context.Context, input, output string, amount float64) (*ports.Quote, error) {
	qctx, cancel := context.WithTimeout(ctx, p.cfg.ExternalTimeout)
	defer cancel()
	q, err := p.quotes.Quote(qctx, ports.QuoteRequest{
		InputAsset:  input,
		OutputAsset: output,
		Amount:      amount,
		SlippageBps: p.cfg.SlippageBps,
	})
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}
	if q == nil || q.OutAmount <= 0 {
		return nil, fmt.Errorf("quote: empty output amount: %w", ports.ErrNoRoute)
	}
	return q, nil
}

func (p *Pipeline) tokenBalance(ctx context.Context, assetID string) (float64, error) {
	bctx, cancel := context.WithTimeout(ctx, p.cfg.ExternalTimeout)
	defer cancel()
	bal, err := p.wallet.TokenBalance(bctx, assetID)
	if err != nil {
		return 0, fmt.Errorf("token balance: %w: %w", ports.ErrBalanceUnavailable, err)
	}
	return bal, nil
}

func (p *Pipeline) failTrade(ctx context.Context, tradeID int64, cause error) {
	if err := p.ledger.FailTrade(context.WithoutCancel(ctx), tradeID, cause.Error()); err != nil {
		p.logger.Error(ctx, err, "Pipeline.failTrade: failed to mark trade failed", map[string]interface{}{"tradeID": tradeID})
	}
}

// recordFailedAttempt inserts an attempt that failed before a pending row existed.
func (p *Pipeline) recordFailedAttempt(ctx context.Context, trade *domain.Trade, cause error) {
	trade.Status = domain.TradeFailed
	trade.Reason = cause.Error()
	trade.CreatedAt = p.now().UTC()
	if _, err := p.ledger.InsertTrade(context.WithoutCancel(ctx), trade); err != nil {
		p.logger.Error(ctx, err, "Pipeline.recordFailedAttempt: failed to record failed trade", map[string]interface{}{"asset": trade.AssetID})
	}
}

func (p *Pipeline) newResult(assetID string, side domain.OrderSide) *domain.ExecutionResult {
	return &domain.ExecutionResult{
		AttemptID: p.newID(),
		AssetID:   assetID,
		Side:      side,
		State:     domain.StateRequested,
	}
}

func (p *Pipeline) today() string {
	return p.now().UTC().Format(domain.DateLayout)
}

func withField(fields map[string]interface{}, k string, v interface{}) map[string]interface{} {
	return withFields(fields, map[string]interface{}{k: v})
}

func withFields(base, extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
