package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"solSniperBot/internal/domain"
	"solSniperBot/internal/ports"
	"solSniperBot/internal/strategy"
)

// Seller closes positions and records valuations through the execution pipeline.
type Seller interface {
	Sell(ctx context.Context, assetID string, reason domain.CloseReason) *domain.ExecutionResult
	MarkPrice(ctx context.Context, assetID string, price, pnlPercent float64) error
}

// PositionLister lists open positions.
type PositionLister interface {
	ListOpen(ctx context.Context) ([]*domain.Position, error)
}

// Config holds exit monitor parameters.
type Config struct {
	Interval       time.Duration
	ProbeAmountSol float64 // SOL quoted per valuation
	SlippageBps    int
	Timeout        time.Duration // per external call
	Workers        int           // positions evaluated concurrently
	CronLogger     cron.Logger
}

// CycleReport summarizes one evaluation pass.
type CycleReport struct {
	Checked int `json:"checked"`
	Closed  int `json:"closed"`
	Failed  int `json:"failed"`
}

// Status is a snapshot of the exit monitor.
type Status struct {
	Running    bool        `json:"running"`
	Interval   string      `json:"interval"`
	LastRun    time.Time   `json:"lastRun"`
	LastReport CycleReport `json:"lastReport"`
}

// ExitMonitor periodically values open positions and sells the ones whose
// exit rules fire. It never writes positions itself.
type ExitMonitor struct {
	cfg       Config
	positions PositionLister
	quotes    ports.QuoteService
	wallet    ports.Wallet
	rules     ports.ExitStrategy
	seller    Seller
	logger    ports.Logger
	now       func() time.Time

	mu         sync.Mutex
	cron       *cron.Cron
	lastRun    time.Time
	lastReport CycleReport
}

// New creates an ExitMonitor.
func New(cfg Config, positions PositionLister, quotes ports.QuoteService, wallet ports.Wallet, rules ports.ExitStrategy, seller Seller, logger ports.Logger) (*ExitMonitor, error) {
	if positions == nil || quotes == nil || wallet == nil || rules == nil || seller == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for ExitMonitor")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("monitor interval must be positive")
	}
	if cfg.ProbeAmountSol <= 0 {
		return nil, fmt.Errorf("probe amount must be positive")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.CronLogger == nil {
		cfg.CronLogger = cron.DiscardLogger
	}
	return &ExitMonitor{
		cfg:       cfg,
		positions: positions,
		quotes:    quotes,
		wallet:    wallet,
		rules:     rules,
		seller:    seller,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Start schedules CheckPositions every interval. Overlapping runs are skipped.
func (m *ExitMonitor) Start(ctx context.Context) error {
	const op = "ExitMonitor.Start"
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cron != nil {
		return nil
	}

	c := cron.New(
		cron.WithChain(cron.SkipIfStillRunning(m.cfg.CronLogger)),
		cron.WithLogger(m.cfg.CronLogger),
	)
	if _, err := c.AddFunc("@every "+m.cfg.Interval.String(), func() {
		if _, err := m.CheckPositions(ctx); err != nil {
			m.logger.Error(ctx, err, "ExitMonitor: position check failed")
		}
	}); err != nil {
		return fmt.Errorf("%s: failed to schedule position checks: %w", op, err)
	}
	c.Start()
	m.cron = c

	m.logger.Info(ctx, op+": exit monitor started", map[string]interface{}{"interval": m.cfg.Interval.String()})
	return nil
}

// Stop unschedules the checks and waits for a running cycle to finish.
func (m *ExitMonitor) Stop() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	m.logger.Info(context.Background(), "ExitMonitor.Stop: exit monitor stopped")
}

// Running reports whether checks are scheduled.
func (m *ExitMonitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cron != nil
}

// Status returns a snapshot of the monitor.
func (m *ExitMonitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Running:    m.cron != nil,
		Interval:   m.cfg.Interval.String(),
		LastRun:    m.lastRun,
		LastReport: m.lastReport,
	}
}

// CheckPositions evaluates every open position once. A failure on one
// position is logged and does not stop the others.
func (m *ExitMonitor) CheckPositions(ctx context.Context) (CycleReport, error) {
	const op = "ExitMonitor.CheckPositions"

	open, err := m.positions.ListOpen(ctx)
	if err != nil {
		return CycleReport{}, fmt.Errorf("%s: failed to list open positions: %w", op, err)
	}

	var checked, closed, failed atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(m.cfg.Workers)
	for _, pos := range open {
		g.Go(func() error {
			sold, err := m.checkPosition(ctx, pos)
			checked.Add(1)
			if err != nil {
				failed.Add(1)
				m.logger.Error(ctx, err, op+": position check failed", map[string]interface{}{"asset": pos.AssetID})
				return nil
			}
			if sold {
				closed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report := CycleReport{Checked: int(checked.Load()), Closed: int(closed.Load()), Failed: int(failed.Load())}
	m.mu.Lock()
	m.lastRun = m.now()
	m.lastReport = report
	m.mu.Unlock()

	if report.Checked > 0 {
		m.logger.Debug(ctx, op+": cycle complete", map[string]interface{}{
			"checked": report.Checked,
			"closed":  report.Closed,
			"failed":  report.Failed,
		})
	}
	return report, nil
}

func (m *ExitMonitor) checkPosition(ctx context.Context, pos *domain.Position) (bool, error) {
	valuation, err := m.Value(ctx, pos)
	if err != nil {
		return false, err
	}

	if valuation.PriceKnown {
		pnl := strategy.PnLPercent(pos.EntryPrice, valuation.Price)
		if err := m.seller.MarkPrice(ctx, pos.AssetID, valuation.Price, pnl); err != nil {
			m.logger.Warn(ctx, "ExitMonitor: failed to record valuation", map[string]interface{}{"asset": pos.AssetID, "error": err.Error()})
		}
	}

	shouldClose, reason := m.rules.ShouldClosePosition(pos, valuation)
	if !shouldClose {
		return false, nil
	}

	m.logger.Info(ctx, "ExitMonitor: exit rule triggered", map[string]interface{}{
		"asset":  pos.AssetID,
		"symbol": pos.Symbol,
		"reason": reason,
		"price":  valuation.Price,
	})
	res := m.seller.Sell(ctx, pos.AssetID, reason)
	if !res.Success {
		return false, fmt.Errorf("sell %s (%s) failed at %s: %s", pos.AssetID, reason, res.FailedAt, res.Error)
	}
	return true, nil
}

// Value reads the token balance and prices the position with a small SOL
// probe quote. A balance failure is an error; a quote failure only leaves
// the price unknown.
func (m *ExitMonitor) Value(ctx context.Context, pos *domain.Position) (ports.Valuation, error) {
	v := ports.Valuation{At: m.now()}

	bctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	balance, err := m.wallet.TokenBalance(bctx, pos.AssetID)
	cancel()
	if err != nil {
		return v, fmt.Errorf("token balance for %s: %w", pos.AssetID, err)
	}
	v.TokenBalance = balance
	if balance <= 0 {
		return v, nil
	}

	qctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	quote, err := m.quotes.Quote(qctx, ports.QuoteRequest{
		InputAsset:  domain.SOLMint,
		OutputAsset: pos.AssetID,
		Amount:      m.cfg.ProbeAmountSol,
		SlippageBps: m.cfg.SlippageBps,
	})
	cancel()
	if err != nil {
		m.logger.Debug(ctx, "ExitMonitor: probe quote failed", map[string]interface{}{"asset": pos.AssetID, "error": err.Error()})
		return v, nil
	}
	if quote.OutAmount > 0 {
		v.Price = m.cfg.ProbeAmountSol / quote.OutAmount
		v.PriceKnown = true
	}
	return v, nil
}
