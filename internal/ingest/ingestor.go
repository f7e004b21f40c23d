package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"solSniperBot/internal/domain"
	"solSniperBot/internal/ports"
)

// Scorer evaluates a candidate token.
type Scorer interface {
	Evaluate(ctx context.Context, c *domain.Candidate) *domain.Evaluation
}

// Buyer executes buy requests.
type Buyer interface {
	Buy(ctx context.Context, req domain.BuyRequest) *domain.ExecutionResult
}

// Blacklister records permanently rejected tokens.
type Blacklister interface {
	AddToBlacklist(ctx context.Context, assetID, reason string) error
}

// Config holds ingestion parameters.
type Config struct {
	Cooldown      time.Duration // minimum spacing between buy attempts
	Workers       int64         // concurrent event handlers
	DedupCapacity int
	EnrichTimeout time.Duration
}

// Outcome is what happened to a single event.
type Outcome string

const (
	OutcomeInvalid   Outcome = "invalid"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
	OutcomeCooldown  Outcome = "cooldown"
	OutcomeBought    Outcome = "bought"
	OutcomeBuyFailed Outcome = "buy_failed"
)

// Status is a snapshot of ingestion activity.
type Status struct {
	Running        bool      `json:"isRunning"`
	FeedConnected  bool      `json:"wsConnected"`
	Processed      int64     `json:"processedTokens"`
	Dropped        int64     `json:"droppedEvents"`
	SeenSize       int       `json:"seenSize"`
	LastBuyAttempt time.Time `json:"lastBuyAttempt"`
}

// Ingestor turns launch events into scored buy attempts.
type Ingestor struct {
	cfg       Config
	feed      ports.AssetFeed
	market    ports.MarketData
	scorer    Scorer
	buyer     Buyer
	blacklist Blacklister
	logger    ports.Logger

	seen *SeenSet
	sem  *semaphore.Weighted
	wg   sync.WaitGroup

	mu             sync.Mutex
	lastBuyAttempt time.Time

	running   atomic.Bool
	processed atomic.Int64
	dropped   atomic.Int64
	now       func() time.Time
}

// New creates an Ingestor. market may be nil, in which case candidates carry
// only what the feed reported.
func New(cfg Config, feed ports.AssetFeed, market ports.MarketData, scorer Scorer, buyer Buyer, blacklist Blacklister, logger ports.Logger) (*Ingestor, error) {
	if feed == nil || scorer == nil || buyer == nil || blacklist == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Ingestor")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 16
	}
	if cfg.DedupCapacity <= 0 {
		cfg.DedupCapacity = 1000
	}
	if cfg.EnrichTimeout <= 0 {
		cfg.EnrichTimeout = 10 * time.Second
	}
	return &Ingestor{
		cfg:       cfg,
		feed:      feed,
		market:    market,
		scorer:    scorer,
		buyer:     buyer,
		blacklist: blacklist,
		logger:    logger,
		seen:      NewSeenSet(cfg.DedupCapacity),
		sem:       semaphore.NewWeighted(cfg.Workers),
		now:       time.Now,
	}, nil
}

// Run consumes the feed until ctx is cancelled or the feed gives up.
// It waits for in-flight handlers before returning.
func (i *Ingestor) Run(ctx context.Context) error {
	const op = "Ingestor.Run"
	if !i.running.CompareAndSwap(false, true) {
		return fmt.Errorf("%s: %w: already running", op, ports.ErrInvalidState)
	}
	defer i.running.Store(false)

	i.logger.Info(ctx, op+": starting token ingestion")
	err := i.feed.Run(ctx, i.Dispatch)
	i.wg.Wait()

	if err != nil && ctx.Err() == nil {
		i.logger.Error(ctx, err, op+": feed stopped, ingestion halted")
		return err
	}
	i.logger.Info(ctx, op+": token ingestion stopped")
	return nil
}

// Dispatch hands the event to a bounded worker and returns immediately.
// Events are dropped when every worker is busy.
func (i *Ingestor) Dispatch(ctx context.Context, event *domain.AssetEvent) {
	if !i.sem.TryAcquire(1) {
		i.dropped.Add(1)
		i.logger.Warn(ctx, "Ingestor.Dispatch: all workers busy, dropping event", map[string]interface{}{"asset": assetOf(event)})
		return
	}
	i.wg.Add(1)
	// Handlers outlive a feed stop so that in-flight buys can finish.
	hctx := context.WithoutCancel(ctx)
	go func() {
		defer i.wg.Done()
		defer i.sem.Release(1)
		i.Handle(hctx, event)
	}()
}

// Wait blocks until all dispatched handlers have returned.
func (i *Ingestor) Wait() {
	i.wg.Wait()
}

// Handle processes a single event synchronously.
func (i *Ingestor) Handle(ctx context.Context, event *domain.AssetEvent) Outcome {
	const op = "Ingestor.Handle"
	if event == nil || event.AssetID == "" {
		return OutcomeInvalid
	}
	if !i.seen.MarkIfNew(event.AssetID) {
		return OutcomeDuplicate
	}
	i.processed.Add(1)

	fields := map[string]interface{}{"asset": event.AssetID, "symbol": event.Symbol}
	i.logger.Info(ctx, op+": new token detected", fields)

	candidate := i.Enrich(ctx, event)
	eval := i.scorer.Evaluate(ctx, candidate)
	if !eval.Pass {
		i.logger.Info(ctx, op+": candidate rejected", merge(fields, map[string]interface{}{"code": eval.Code, "reason": eval.Reason}))
		if eval.ShouldBlacklist() {
			if err := i.blacklist.AddToBlacklist(ctx, event.AssetID, eval.Reason); err != nil {
				i.logger.Error(ctx, err, op+": failed to blacklist token", fields)
			}
		}
		return OutcomeRejected
	}

	if wait, ok := i.tryStampCooldown(); !ok {
		i.logger.Info(ctx, op+": buy cooldown active, dropping candidate", merge(fields, map[string]interface{}{"wait": wait.Round(time.Second).String()}))
		return OutcomeCooldown
	}

	res := i.buyer.Buy(ctx, domain.BuyRequest{
		AssetID: event.AssetID,
		Symbol:  candidate.Symbol,
		Name:    candidate.Name,
		Reason:  fmt.Sprintf("new token launch - score %d/%d", eval.Score, domain.MaxSafetyScore),
	})
	if !res.Success {
		i.logger.Warn(ctx, op+": buy failed", merge(fields, map[string]interface{}{"state": res.FailedAt, "reason": res.Reason, "error": res.Error}))
		return OutcomeBuyFailed
	}
	i.logger.Info(ctx, op+": bought token", merge(fields, map[string]interface{}{"txRef": res.TxRef, "amountSol": res.AmountSol}))
	return OutcomeBought
}

// Enrich builds a scoring candidate from the event and best-effort market data.
// Launch feed tokens are bonding-curve mints with both authorities disabled,
// and their bonding-curve SOL takes precedence as the liquidity estimate.
func (i *Ingestor) Enrich(ctx context.Context, event *domain.AssetEvent) *domain.Candidate {
	c := &domain.Candidate{
		AssetID: event.AssetID,
		Symbol:  event.Symbol,
		Name:    event.Name,
		Source:  event.Source,
	}

	if i.market != nil {
		ictx, cancel := context.WithTimeout(ctx, i.cfg.EnrichTimeout)
		info, err := i.market.Info(ictx, event.AssetID)
		cancel()
		if err != nil {
			i.logger.Debug(ctx, "Ingestor.Enrich: market data unavailable", map[string]interface{}{"asset": event.AssetID, "error": err.Error()})
		} else if info != nil {
			c.LiquiditySol = info.LiquiditySol
			if c.Symbol == "" {
				c.Symbol = info.Symbol
			}
			if c.Name == "" {
				c.Name = info.Name
			}
		}
	}

	if event.Source == domain.SourcePumpFun {
		c.MintDisabled = true
		c.FreezeDisabled = true
		if event.LiquiditySol > 0 {
			c.LiquiditySol = event.LiquiditySol
		}
	}
	return c
}

// tryStampCooldown claims the buy slot if the cooldown has elapsed since the
// last attempt. Otherwise it returns the remaining wait.
func (i *Ingestor) tryStampCooldown() (time.Duration, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	now := i.now()
	if !i.lastBuyAttempt.IsZero() {
		if elapsed := now.Sub(i.lastBuyAttempt); elapsed < i.cfg.Cooldown {
			return i.cfg.Cooldown - elapsed, false
		}
	}
	i.lastBuyAttempt = now
	return 0, true
}

// Status returns a snapshot of ingestion activity.
func (i *Ingestor) Status() Status {
	i.mu.Lock()
	last := i.lastBuyAttempt
	i.mu.Unlock()
	return Status{
		Running:        i.running.Load(),
		FeedConnected:  i.feed.Connected(),
		Processed:      i.processed.Load(),
		Dropped:        i.dropped.Load(),
		SeenSize:       i.seen.Len(),
		LastBuyAttempt: last,
	}
}

// Running reports whether Run is active.
func (i *Ingestor) Running() bool {
	return i.running.Load()
}

func assetOf(event *domain.AssetEvent) string {
	if event == nil {
		return ""
	}
	return event.AssetID
}

func merge(base, extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
