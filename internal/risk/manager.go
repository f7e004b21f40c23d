package risk

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"solSniperBot/internal/domain"
	"solSniperBot/internal/ports"
)

// DefaultFeeBuffer is the multiple of the trade size the wallet must hold to cover fees.
const DefaultFeeBuffer = 1.10

// AdmissionConfig holds the limits checked before every buy.
type AdmissionConfig struct {
	MaxDailyLossSol float64
	TradeAmountSol  float64
	MaxPositions    int
	FeeBuffer       float64 // defaults to DefaultFeeBuffer
}

// BalanceReader is the part of the wallet the controller needs.
type BalanceReader interface {
	Balance(ctx context.Context) (float64, error)
}

// PositionCounter is the part of the ledger the controller needs.
type PositionCounter interface {
	CountOpen(ctx context.Context) (int, error)
}

// Decision is the result of an admission check. A denial is not an error.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// BudgetStatus is a snapshot of the daily loss budget.
type BudgetStatus struct {
	DailyLoss     float64 `json:"dailyLoss"`
	MaxDailyLoss  float64 `json:"maxDailyLoss"`
	RemainingRisk float64 `json:"remainingRisk"`
	ResetDate     string  `json:"resetDate"`
}

// RiskBudget accumulates realized losses for the current UTC day.
// It lives only in memory and starts from zero on every process start.
type RiskBudget struct {
	mu        sync.Mutex
	dailyLoss float64
	resetDate string
	now       func() time.Time
}

// NewRiskBudget creates an empty budget using now as its clock.
func NewRiskBudget(now func() time.Time) *RiskBudget {
	if now == nil {
		now = time.Now
	}
	return &RiskBudget{now: now, resetDate: now().UTC().Format(domain.DateLayout)}
}

// rollover zeroes the accumulator when the date has changed. Caller holds mu.
func (b *RiskBudget) rollover() {
	today := b.now().UTC().Format(domain.DateLayout)
	if today != b.resetDate {
		b.dailyLoss = 0
		b.resetDate = today
	}
}

// Loss returns today's accumulated loss.
func (b *RiskBudget) Loss() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	return b.dailyLoss
}

// Add accumulates amount into today's loss and returns the new total.
func (b *RiskBudget) Add(amount float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	b.dailyLoss += amount
	return b.dailyLoss
}

func (b *RiskBudget) snapshot() (float64, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	return b.dailyLoss, b.resetDate
}

// AdmissionController gates every prospective buy against the risk budget,
// the wallet balance and the open position cap. Admitted buys hold a slot
// until they release it, so buys of different assets cannot overrun the cap
// while they are still confirming.
type AdmissionController struct {
	config    AdmissionConfig
	budget    *RiskBudget
	wallet    BalanceReader
	positions PositionCounter
	logger    ports.Logger

	mu       sync.Mutex // serializes admission; guards inFlight
	inFlight int
}

// NewAdmissionController creates a controller owning budget.
func NewAdmissionController(config AdmissionConfig, budget *RiskBudget, wallet BalanceReader, positions PositionCounter, logger ports.Logger) (*AdmissionController, error) {
	if budget == nil || wallet == nil || positions == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for AdmissionController")
	}
	if config.FeeBuffer <= 0 {
		config.FeeBuffer = DefaultFeeBuffer
	}
	return &AdmissionController{
		config:    config,
		budget:    budget,
		wallet:    wallet,
		positions: positions,
		logger:    logger,
	}, nil
}

// CanTrade runs the checks in order and stops at the first denial.
// Lookup failures deny. It reserves nothing.
func (a *AdmissionController) CanTrade(ctx context.Context) Decision {
	decision, release := a.Reserve(ctx)
	release()
	return decision
}

// Reserve runs the admission checks and, when allowed, holds one position
// slot and one trade's worth of balance until release is called. Slots held
// by other buys count against the cap and the balance. release is never nil
// and is safe to call more than once.
func (a *AdmissionController) Reserve(ctx context.Context) (Decision, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	decision := a.check(ctx, a.inFlight)
	if !decision.Allowed {
		return decision, func() {}
	}
	a.inFlight++
	var once sync.Once
	return decision, func() {
		once.Do(func() {
			a.mu.Lock()
			a.inFlight--
			a.mu.Unlock()
		})
	}
}

// InFlight returns the number of admitted buys that have not been released.
func (a *AdmissionController) InFlight() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inFlight
}

// check evaluates the limits with reserved buys already counted. Caller holds mu.
func (a *AdmissionController) check(ctx context.Context, reserved int) Decision {
	const op = "AdmissionController.CanTrade"

	if loss := a.budget.Loss(); loss >= a.config.MaxDailyLossSol {
		return a.deny(ctx, op, fmt.Sprintf("daily loss limit reached (%.4f/%.4f SOL)", loss, a.config.MaxDailyLossSol))
	}

	balance, err := a.wallet.Balance(ctx)
	if err != nil {
		a.logger.Error(ctx, err, op+": balance lookup failed")
		return a.deny(ctx, op, fmt.Sprintf("balance unavailable: %v", err))
	}
	required := a.config.TradeAmountSol * a.config.FeeBuffer * float64(reserved+1)
	if balance < required {
		return a.deny(ctx, op, fmt.Sprintf("insufficient balance (%.4f < %.4f SOL)", balance, required))
	}

	open, err := a.positions.CountOpen(ctx)
	if err != nil {
		a.logger.Error(ctx, err, op+": open position count failed")
		return a.deny(ctx, op, fmt.Sprintf("position count unavailable: %v", err))
	}
	if open+reserved >= a.config.MaxPositions {
		return a.deny(ctx, op, fmt.Sprintf("max positions reached (%d open, %d pending, max %d)", open, reserved, a.config.MaxPositions))
	}

	return Decision{Allowed: true}
}

func (a *AdmissionController) deny(ctx context.Context, op, reason string) Decision {
	a.logger.Info(ctx, op+": trade denied", map[string]interface{}{"reason": reason})
	return Decision{Allowed: false, Reason: reason}
}

// RecordLoss adds a realized loss to today's budget.
func (a *AdmissionController) RecordLoss(ctx context.Context, amount float64) {
	total := a.budget.Add(math.Abs(amount))
	a.logger.Info(ctx, "AdmissionController.RecordLoss: loss recorded", map[string]interface{}{
		"loss":      math.Abs(amount),
		"dailyLoss": total,
		"maxLoss":   a.config.MaxDailyLossSol,
	})
}

// RecordWin logs a realized gain. Gains never replenish the loss budget.
func (a *AdmissionController) RecordWin(ctx context.Context, amount float64) {
	a.logger.Info(ctx, "AdmissionController.RecordWin: win recorded", map[string]interface{}{"profit": amount})
}

// Status returns the current budget snapshot.
func (a *AdmissionController) Status() BudgetStatus {
	loss, date := a.budget.snapshot()
	return BudgetStatus{
		DailyLoss:     loss,
		MaxDailyLoss:  a.config.MaxDailyLossSol,
		RemainingRisk: math.Max(0, a.config.MaxDailyLossSol-loss),
		ResetDate:     date,
	}
}
