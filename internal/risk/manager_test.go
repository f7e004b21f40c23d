package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type mockWallet struct {
	balance float64
	err     error
	calls   int
}

func (m *mockWallet) Balance(ctx context.Context) (float64, error) {
	m.calls++
	return m.balance, m.err
}

type mockCounter struct {
	open  int
	err   error
	calls int
}

func (m *mockCounter) CountOpen(ctx context.Context) (int, error) {
	m.calls++
	return m.open, m.err
}

// fakeClock is a settable clock for budget rollover tests.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newController(t *testing.T, wallet *mockWallet, counter *mockCounter, clock *fakeClock) *AdmissionController {
	t.Helper()
	ac, err := NewAdmissionController(AdmissionConfig{
		MaxDailyLossSol: 0.3,
		TradeAmountSol:  0.04,
		MaxPositions:    2,
	}, NewRiskBudget(clock.Now), wallet, counter, &mockLogger{})
	require.NoError(t, err)
	return ac
}

func TestAdmissionController_CanTrade(t *testing.T) {
	tests := []struct {
		name          string
		priorLoss     float64
		balance       float64
		balanceErr    error
		open          int
		wantAllowed   bool
		wantReason    string
		wantWallet    int
		wantCountCall int
	}{
		{name: "all checks pass", balance: 1, open: 0, wantAllowed: true, wantWallet: 1, wantCountCall: 1},
		{name: "daily loss reached short-circuits", priorLoss: 0.3, balance: 1, wantReason: "daily loss limit", wantWallet: 0, wantCountCall: 0},
		{name: "balance below fee buffer", balance: 0.0439, wantReason: "insufficient balance", wantWallet: 1, wantCountCall: 0},
		{name: "balance exactly at fee buffer", balance: 0.044 + 1e-12, open: 1, wantAllowed: true, wantWallet: 1, wantCountCall: 1},
		{name: "balance lookup error denies", balanceErr: errors.New("rpc down"), wantReason: "balance unavailable", wantWallet: 1, wantCountCall: 0},
		{name: "position cap reached", balance: 1, open: 2, wantReason: "max positions reached", wantWallet: 1, wantCountCall: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wallet := &mockWallet{balance: tt.balance, err: tt.balanceErr}
			counter := &mockCounter{open: tt.open}
			ac := newController(t, wallet, counter, &fakeClock{t: time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)})
			if tt.priorLoss > 0 {
				ac.RecordLoss(context.Background(), tt.priorLoss)
			}

			d := ac.CanTrade(context.Background())
			assert.Equal(t, tt.wantAllowed, d.Allowed)
			if tt.wantReason != "" {
				assert.Contains(t, d.Reason, tt.wantReason)
			}
			assert.Equal(t, tt.wantWallet, wallet.calls)
			assert.Equal(t, tt.wantCountCall, counter.calls)
		})
	}
}

func TestAdmissionController_LossWinAsymmetry(t *testing.T) {
	ac := newController(t, &mockWallet{balance: 1}, &mockCounter{}, &fakeClock{t: time.Now()})
	ctx := context.Background()

	ac.RecordLoss(ctx, 0.1)
	ac.RecordLoss(ctx, 0.05)
	assert.InDelta(t, 0.15, ac.Status().DailyLoss, 1e-12)

	ac.RecordWin(ctx, 0.2)
	assert.InDelta(t, 0.15, ac.Status().DailyLoss, 1e-12)
	assert.InDelta(t, 0.15, ac.Status().RemainingRisk, 1e-12)

	// Negative PnL values are recorded by magnitude.
	ac.RecordLoss(ctx, -0.05)
	assert.InDelta(t, 0.2, ac.Status().DailyLoss, 1e-12)
}

func TestRiskBudget_LazyDailyReset(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 16, 23, 59, 0, 0, time.UTC)}
	ac := newController(t, &mockWallet{balance: 1}, &mockCounter{}, clock)
	ctx := context.Background()

	ac.RecordLoss(ctx, 0.3)
	assert.False(t, ac.CanTrade(ctx).Allowed)

	clock.t = clock.t.Add(2 * time.Minute)
	assert.True(t, ac.CanTrade(ctx).Allowed)
	status := ac.Status()
	assert.Equal(t, 0.0, status.DailyLoss)
	assert.Equal(t, "2026-10-17", status.ResetDate)

	// A loss recorded before any check on a new day lands in the new day.
	clock.t = clock.t.Add(24 * time.Hour)
	ac.RecordLoss(ctx, 0.1)
	assert.InDelta(t, 0.1, ac.Status().DailyLoss, 1e-12)
}

func TestNewAdmissionController_RequiresDependencies(t *testing.T) {
	_, err := NewAdmissionController(AdmissionConfig{}, nil, &mockWallet{}, &mockCounter{}, &mockLogger{})
	assert.Error(t, err)
}

func TestAdmissionController_ReserveHoldsSlots(t *testing.T) {
	counter := &mockCounter{open: 0}
	ac := newController(t, &mockWallet{balance: 1}, counter, &fakeClock{t: time.Now()})
	ctx := context.Background()

	first, releaseFirst := ac.Reserve(ctx)
	require.True(t, first.Allowed)
	second, releaseSecond := ac.Reserve(ctx)
	require.True(t, second.Allowed)
	assert.Equal(t, 2, ac.InFlight())

	// Nothing is open in the ledger yet, but both slots are taken.
	third, releaseThird := ac.Reserve(ctx)
	assert.False(t, third.Allowed)
	assert.Contains(t, third.Reason, "max positions reached")
	releaseThird()
	assert.Equal(t, 2, ac.InFlight())

	releaseFirst()
	releaseFirst()
	assert.Equal(t, 1, ac.InFlight())
	assert.True(t, ac.CanTrade(ctx).Allowed)
	assert.Equal(t, 1, ac.InFlight(), "CanTrade reserves nothing")

	releaseSecond()
	assert.Zero(t, ac.InFlight())
}

func TestAdmissionController_ReserveCountsPendingSpend(t *testing.T) {
	// 0.05 SOL covers one 0.04 trade with fee buffer (0.044) but not two (0.088).
	ac := newController(t, &mockWallet{balance: 0.05}, &mockCounter{}, &fakeClock{t: time.Now()})
	ctx := context.Background()

	d, release := ac.Reserve(ctx)
	require.True(t, d.Allowed)
	defer release()

	d2, _ := ac.Reserve(ctx)
	assert.False(t, d2.Allowed)
	assert.Contains(t, d2.Reason, "insufficient balance")
}
