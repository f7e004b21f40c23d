package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"solSniperBot/internal/domain"
	"solSniperBot/internal/ingest"
	"solSniperBot/internal/monitor"
	"solSniperBot/internal/ports"
	"solSniperBot/internal/risk"
	"solSniperBot/internal/strategy/analytics"
)

const (
	dashboardTrades = 20
	dashboardDays   = 7
)

// Service is a long-running component started alongside the agent, such as
// the operator API server.
type Service interface {
	Run(ctx context.Context) error
}

// BudgetReporter exposes the daily risk budget.
type BudgetReporter interface {
	Status() risk.BudgetStatus
}

// AgentConfig holds the settings the agent reports and acts on.
type AgentConfig struct {
	TradeAmountSol    float64
	MaxPositions      int
	StopLossPercent   float64
	TakeProfitPercent float64
	AutoStartFeed     bool
}

// Agent orchestrates the launch feed, the exit monitor and operator actions
// around a single execution pipeline.
type Agent struct {
	cfg      AgentConfig
	logger   ports.Logger
	wallet   ports.Wallet
	ledger   ports.Ledger
	pipeline *Pipeline
	ingestor *ingest.Ingestor
	scorer   ingest.Scorer
	exits    *monitor.ExitMonitor
	budget   BudgetReporter
	now      func() time.Time

	mu         sync.Mutex
	baseCtx    context.Context
	feedCancel context.CancelFunc
	feedDone   chan struct{}
}

// NewAgent creates a new agent instance.
func NewAgent(
	cfg AgentConfig,
	logger ports.Logger,
	wallet ports.Wallet,
	ledger ports.Ledger,
	pipeline *Pipeline,
	ingestor *ingest.Ingestor,
	scorer ingest.Scorer,
	exits *monitor.ExitMonitor,
	budget BudgetReporter,
) (*Agent, error) {
	if logger == nil || wallet == nil || ledger == nil || pipeline == nil || ingestor == nil || scorer == nil || exits == nil || budget == nil {
		return nil, fmt.Errorf("missing required dependencies for Agent")
	}
	if cfg.TradeAmountSol <= 0 {
		return nil, fmt.Errorf("configuration TradeAmountSol must be positive")
	}
	return &Agent{
		cfg:      cfg,
		logger:   logger,
		wallet:   wallet,
		ledger:   ledger,
		pipeline: pipeline,
		ingestor: ingestor,
		scorer:   scorer,
		exits:    exits,
		budget:   budget,
		now:      time.Now,
		baseCtx:  context.Background(),
	}, nil
}

// Start runs the exit monitor, the launch feed (when AutoStartFeed is set)
// and the given services until ctx is cancelled, a shutdown signal arrives
// or a service fails.
func (a *Agent) Start(ctx context.Context, services ...Service) error {
	a.logger.Info(ctx, "Starting agent...", map[string]interface{}{"wallet": a.wallet.PublicKey()})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			a.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	a.mu.Lock()
	a.baseCtx = ctx
	a.mu.Unlock()

	// 1. Trades a previous run left unresolved
	if n, err := a.pipeline.ReportPending(ctx); err != nil {
		a.logger.Error(ctx, err, "Agent.Start: pending trade scan failed")
	} else if n > 0 {
		a.logger.Warn(ctx, "Agent.Start: ledger has pending trades", map[string]interface{}{"count": n})
	}

	// 2. Exit monitor
	if err := a.exits.Start(ctx); err != nil {
		return fmt.Errorf("failed to start exit monitor: %w", err)
	}

	// 3. Launch feed
	if a.cfg.AutoStartFeed {
		if err := a.StartFeed(ctx); err != nil {
			a.exits.Stop()
			return fmt.Errorf("failed to start launch feed: %w", err)
		}
	} else {
		a.logger.Info(ctx, "Launch feed not started (AUTO_START_FEED=false)")
	}

	// 4. Background services
	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range services {
		g.Go(func() error { return svc.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err := g.Wait()
	cancel()

	a.logger.Info(ctx, "Shutting down agent...")
	a.StopFeed()
	a.exits.Stop()
	a.ingestor.Wait()
	a.logger.Info(ctx, "Agent stopped.")

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// StartFeed begins consuming the launch feed in the background. It is a
// no-op if the feed is already running.
func (a *Agent) StartFeed(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.feedCancel != nil {
		return nil
	}

	fctx, cancel := context.WithCancel(a.baseCtx)
	done := make(chan struct{})
	a.feedCancel = cancel
	a.feedDone = done

	go func() {
		defer close(done)
		err := a.ingestor.Run(fctx)
		if err != nil {
			a.logger.Error(fctx, err, "Agent: launch feed stopped with error")
		}
		a.mu.Lock()
		if a.feedDone == done {
			a.feedCancel = nil
			a.feedDone = nil
		}
		a.mu.Unlock()
		cancel()
	}()

	a.logger.Info(ctx, "Agent: launch feed started")
	return nil
}

// StopFeed stops the launch feed and waits for it to disconnect. Buys already
// in flight keep running to completion.
func (a *Agent) StopFeed() {
	a.mu.Lock()
	cancel, done := a.feedCancel, a.feedDone
	a.feedCancel, a.feedDone = nil, nil
	a.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	a.logger.Info(context.Background(), "Agent: launch feed stopped")
}

// FeedRunning reports whether the launch feed is being consumed.
func (a *Agent) FeedRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.feedCancel != nil
}

// StartExits schedules the exit monitor.
func (a *Agent) StartExits(ctx context.Context) error {
	a.mu.Lock()
	base := a.baseCtx
	a.mu.Unlock()
	return a.exits.Start(base)
}

// StopExits unschedules the exit monitor.
func (a *Agent) StopExits() {
	a.exits.Stop()
}

// EvaluationReport is the enriched candidate together with its verdict.
type EvaluationReport struct {
	Candidate  *domain.Candidate  `json:"tokenData"`
	Evaluation *domain.Evaluation `json:"evaluation"`
}

// Evaluate enriches and scores a token without trading it.
func (a *Agent) Evaluate(ctx context.Context, assetID string) *EvaluationReport {
	candidate := a.ingestor.Enrich(ctx, &domain.AssetEvent{
		AssetID:    assetID,
		Source:     domain.SourceManual,
		ReceivedAt: a.now(),
	})
	return &EvaluationReport{Candidate: candidate, Evaluation: a.scorer.Evaluate(ctx, candidate)}
}

// ManualBuyResult reports a manual buy. Result is nil when the token failed evaluation.
type ManualBuyResult struct {
	EvaluationReport
	Result *domain.ExecutionResult `json:"result,omitempty"`
}

// ManualBuy evaluates a token and buys it if it passes. The launch feed
// cooldown does not apply. Once the buy starts it is bounded only by the
// pipeline timeouts, not by ctx.
func (a *Agent) ManualBuy(ctx context.Context, assetID string) *ManualBuyResult {
	report := a.Evaluate(ctx, assetID)
	out := &ManualBuyResult{EvaluationReport: *report}
	if !report.Evaluation.Pass {
		a.logger.Info(ctx, "Agent.ManualBuy: token failed evaluation", map[string]interface{}{
			"asset":  assetID,
			"code":   report.Evaluation.Code,
			"reason": report.Evaluation.Reason,
		})
		return out
	}
	out.Result = a.pipeline.Buy(context.WithoutCancel(ctx), domain.BuyRequest{
		AssetID: assetID,
		Symbol:  report.Candidate.Symbol,
		Name:    report.Candidate.Name,
		Reason:  fmt.Sprintf("manual buy - score %d/%d", report.Evaluation.Score, domain.MaxSafetyScore),
	})
	return out
}

// Sell closes the open position for a token. A sent swap is always
// confirmed and recorded even if ctx is cancelled.
func (a *Agent) Sell(ctx context.Context, assetID string) *domain.ExecutionResult {
	return a.pipeline.Sell(context.WithoutCancel(ctx), assetID, domain.CloseReasonManual)
}

// SellAll sells every open position one after the other. Cancelling ctx
// stops before the next sell; a sell already started runs to completion.
func (a *Agent) SellAll(ctx context.Context) ([]*domain.ExecutionResult, error) {
	open, err := a.ledger.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open positions: %w", err)
	}
	results := make([]*domain.ExecutionResult, 0, len(open))
	for _, pos := range open {
		if ctx.Err() != nil {
			break
		}
		results = append(results, a.Sell(ctx, pos.AssetID))
	}
	return results, nil
}

// WalletStatus is the trading wallet as shown on the dashboard.
type WalletStatus struct {
	Address      string  `json:"address"`
	Balance      float64 `json:"balance"`
	BalanceError string  `json:"balanceError,omitempty"`
}

// DashboardConfig echoes the trading parameters.
type DashboardConfig struct {
	TradeAmountSol    float64 `json:"tradeAmountSol"`
	MaxPositions      int     `json:"maxPositions"`
	StopLossPercent   float64 `json:"stopLossPercent"`
	TakeProfitPercent float64 `json:"takeProfitPercent"`
}

// Dashboard is a point-in-time snapshot of the agent.
type Dashboard struct {
	Wallet       WalletStatus        `json:"wallet"`
	Risk         risk.BudgetStatus   `json:"risk"`
	Monitor      ingest.Status       `json:"monitor"`
	Exits        monitor.Status      `json:"exits"`
	Positions    []*domain.Position  `json:"positions"`
	RecentTrades []*domain.Trade     `json:"recentTrades"`
	Stats        []*domain.DailyStat `json:"stats"`
	Today        *domain.DailyStat   `json:"today"`
	Config       DashboardConfig     `json:"config"`
	UpdatedAt    time.Time           `json:"lastUpdate"`
}

// Status assembles the dashboard snapshot. A wallet balance failure is
// reported in the snapshot rather than failing it.
func (a *Agent) Status(ctx context.Context) (*Dashboard, error) {
	d := &Dashboard{
		Wallet:  WalletStatus{Address: a.wallet.PublicKey()},
		Risk:    a.budget.Status(),
		Monitor: a.ingestor.Status(),
		Exits:   a.exits.Status(),
		Config: DashboardConfig{
			TradeAmountSol:    a.cfg.TradeAmountSol,
			MaxPositions:      a.cfg.MaxPositions,
			StopLossPercent:   a.cfg.StopLossPercent,
			TakeProfitPercent: a.cfg.TakeProfitPercent,
		},
		UpdatedAt: a.now(),
	}

	balance, err := a.wallet.Balance(ctx)
	if err != nil {
		d.Wallet.BalanceError = err.Error()
	} else {
		d.Wallet.Balance = balance
	}

	if d.Positions, err = a.ledger.ListOpen(ctx); err != nil {
		return nil, fmt.Errorf("failed to list open positions: %w", err)
	}
	if d.RecentTrades, err = a.ledger.RecentTrades(ctx, dashboardTrades); err != nil {
		return nil, fmt.Errorf("failed to load recent trades: %w", err)
	}
	if d.Stats, err = a.ledger.RecentDailyStats(ctx, dashboardDays); err != nil {
		return nil, fmt.Errorf("failed to load daily stats: %w", err)
	}
	if d.Today, err = a.ledger.GetDailyStat(ctx, a.now().UTC().Format(domain.DateLayout)); err != nil {
		return nil, fmt.Errorf("failed to load today's stats: %w", err)
	}
	return d, nil
}

// RecentTrades returns the newest trades first.
func (a *Agent) RecentTrades(ctx context.Context, limit int) ([]*domain.Trade, error) {
	return a.ledger.RecentTrades(ctx, limit)
}

// Positions returns positions of any status, newest first.
func (a *Agent) Positions(ctx context.Context, limit int) ([]*domain.Position, error) {
	return a.ledger.ListAll(ctx, limit)
}

// StatsReport is the daily stats history with its performance summary.
type StatsReport struct {
	Days    []*domain.DailyStat           `json:"days"`
	Summary *analytics.PerformanceMetrics `json:"summary"`
}

// Stats returns up to days daily rows, newest first, with a summary.
func (a *Agent) Stats(ctx context.Context, days int) (*StatsReport, error) {
	rows, err := a.ledger.RecentDailyStats(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily stats: %w", err)
	}
	return &StatsReport{Days: rows, Summary: analytics.AnalyzePerformance(rows)}, nil
}
