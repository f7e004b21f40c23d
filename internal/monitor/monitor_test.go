package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"solSniperBot/internal/domain"
	"solSniperBot/internal/ports"
	"solSniperBot/internal/strategy"

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

type mockPositions struct {
	mu        sync.Mutex
	positions []*domain.Position
	err       error
	calls     int
}

func (m *mockPositions) ListOpen(ctx context.Context) ([]*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.positions, m.err
}

func (m *mockPositions) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockQuotes prices a probe at tokensPerProbe[asset] tokens.
type mockQuotes struct {
	tokensPerProbe map[string]float64
	err            map[string]error
}

func (m *mockQuotes) Quote(ctx context.Context, req ports.QuoteRequest) (*ports.Quote, error) {
	if err := m.err[req.OutputAsset]; err != nil {
		return nil, err
	}
	return &ports.Quote{InputAsset: req.InputAsset, OutputAsset: req.OutputAsset, InAmount: req.Amount, OutAmount: m.tokensPerProbe[req.OutputAsset]}, nil
}

type mockWallet struct {
	balances map[string]float64
	errs     map[string]error
}

func (m *mockWallet) PublicKey() string                            { return "wallet" }
func (m *mockWallet) Balance(ctx context.Context) (float64, error) { return 1, nil }
func (m *mockWallet) TokenBalance(ctx context.Context, assetID string) (float64, error) {
	if err := m.errs[assetID]; err != nil {
		return 0, err
	}
	return m.balances[assetID], nil
}

type sellCall struct {
	asset  string
	reason domain.CloseReason
}

type mockSeller struct {
	mu      sync.Mutex
	sells   []sellCall
	marks   map[string]float64
	failFor map[string]bool
}

func (m *mockSeller) Sell(ctx context.Context, assetID string, reason domain.CloseReason) *domain.ExecutionResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sells = append(m.sells, sellCall{asset: assetID, reason: reason})
	if m.failFor[assetID] {
		return &domain.ExecutionResult{AssetID: assetID, State: domain.StateFailed, FailedAt: domain.StateQuoted, Error: "no route"}
	}
	return &domain.ExecutionResult{AssetID: assetID, Success: true, State: domain.StateConfirmed}
}

func (m *mockSeller) MarkPrice(ctx context.Context, assetID string, price, pnlPercent float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.marks == nil {
		m.marks = map[string]float64{}
	}
	m.marks[assetID] = pnlPercent
	return nil
}

func (m *mockSeller) reasonFor(asset string) domain.CloseReason {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sells {
		if s.asset == asset {
			return s.reason
		}
	}
	return ""
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func position(asset string, entry float64, age time.Duration) *domain.Position {
	return &domain.Position{AssetID: asset, EntryPrice: entry, AmountSolSpent: 0.04, Status: domain.StatusOpen, CreatedAt: testNow.Add(-age)}
}

func newTestMonitor(t *testing.T, positions *mockPositions, quotes *mockQuotes, wallet *mockWallet, seller *mockSeller) *ExitMonitor {
	t.Helper()
	rules, err := strategy.New(strategy.Config{StopLossPercent: 50, TakeProfitPercent: 100, MaxHold: time.Hour}, &mockLogger{})
	require.NoError(t, err)
	m, err := New(Config{Interval: time.Second, ProbeAmountSol: 0.001, SlippageBps: 500, Timeout: time.Second}, positions, quotes, wallet, rules, seller, &mockLogger{})
	require.NoError(t, err)
	m.now = func() time.Time { return testNow }
	return m
}

func TestExitMonitor_CheckPositions(t *testing.T) {
	// Entry price 0.00001 SOL/token means a 0.001 SOL probe buys 100 tokens.
	positions := &mockPositions{positions: []*domain.Position{
		position("Hold", 0.00001, time.Minute),
		position("Empty", 0.00001, time.Minute),
		position("Old", 0.00001, 2*time.Hour),
		position("Dump", 0.00001, time.Minute),
		position("Moon", 0.00001, time.Minute),
		position("OldNoQuote", 0.00001, 2*time.Hour),
		position("RPCDown", 0.00001, time.Minute),
	}}
	quotes := &mockQuotes{
		tokensPerProbe: map[string]float64{"Hold": 100, "Old": 100, "Dump": 400, "Moon": 25, "RPCDown": 100},
		err:            map[string]error{"OldNoQuote": ports.ErrNoRoute},
	}
	wallet := &mockWallet{
		balances: map[string]float64{"Hold": 10, "Old": 10, "Dump": 10, "Moon": 10, "OldNoQuote": 10},
		errs:     map[string]error{"RPCDown": errors.New("rpc unavailable")},
	}
	seller := &mockSeller{}
	m := newTestMonitor(t, positions, quotes, wallet, seller)

	report, err := m.CheckPositions(context.Background())

	require.NoError(t, err)
	assert.Equal(t, CycleReport{Checked: 7, Closed: 5, Failed: 1}, report)
	assert.Equal(t, domain.CloseReason(""), seller.reasonFor("Hold"))
	assert.Equal(t, domain.CloseReasonBalanceZero, seller.reasonFor("Empty"))
	assert.Equal(t, domain.CloseReasonTimeout, seller.reasonFor("Old"))
	assert.Equal(t, domain.CloseReasonStopLoss, seller.reasonFor("Dump"))
	assert.Equal(t, domain.CloseReasonTakeProfit, seller.reasonFor("Moon"))
	assert.Equal(t, domain.CloseReasonTimeout, seller.reasonFor("OldNoQuote"))
	assert.Equal(t, domain.CloseReason(""), seller.reasonFor("RPCDown"))

	assert.InDelta(t, 0, seller.marks["Hold"], 1e-6)
	assert.InDelta(t, -75, seller.marks["Dump"], 1e-6)
	assert.InDelta(t, 300, seller.marks["Moon"], 1e-6)
	_, marked := seller.marks["OldNoQuote"]
	assert.False(t, marked, "no valuation without a price")

	st := m.Status()
	assert.Equal(t, testNow, st.LastRun)
	assert.Equal(t, report, st.LastReport)
}

func TestExitMonitor_FailedSellIsCounted(t *testing.T) {
	positions := &mockPositions{positions: []*domain.Position{position("Dump", 0.00001, time.Minute)}}
	quotes := &mockQuotes{tokensPerProbe: map[string]float64{"Dump": 400}}
	wallet := &mockWallet{balances: map[string]float64{"Dump": 10}}
	seller := &mockSeller{failFor: map[string]bool{"Dump": true}}
	m := newTestMonitor(t, positions, quotes, wallet, seller)

	report, err := m.CheckPositions(context.Background())

	require.NoError(t, err)
	assert.Equal(t, CycleReport{Checked: 1, Closed: 0, Failed: 1}, report)
}

func TestExitMonitor_ListFailure(t *testing.T) {
	m := newTestMonitor(t, &mockPositions{err: errors.New("db locked")}, &mockQuotes{}, &mockWallet{}, &mockSeller{})

	_, err := m.CheckPositions(context.Background())

	assert.Error(t, err)
}

func TestExitMonitor_StartStop(t *testing.T) {
	positions := &mockPositions{}
	m := newTestMonitor(t, positions, &mockQuotes{}, &mockWallet{}, &mockSeller{})
	ctx := context.Background()

	assert.False(t, m.Running())
	require.NoError(t, m.Start(ctx))
	require.NoError(t, m.Start(ctx), "second start is a no-op")
	assert.True(t, m.Running())
	assert.True(t, m.Status().Running)

	require.Eventually(t, func() bool { return positions.callCount() > 0 }, 3*time.Second, 50*time.Millisecond)

	m.Stop()
	assert.False(t, m.Running())
	m.Stop()
}

func TestNew_Validation(t *testing.T) {
	rules, err := strategy.New(strategy.Config{StopLossPercent: 50, TakeProfitPercent: 100, MaxHold: time.Hour}, &mockLogger{})
	require.NoError(t, err)

	_, err = New(Config{Interval: 0, ProbeAmountSol: 0.001}, &mockPositions{}, &mockQuotes{}, &mockWallet{}, rules, &mockSeller{}, &mockLogger{})
	assert.Error(t, err)
	_, err = New(Config{Interval: time.Second}, &mockPositions{}, &mockQuotes{}, &mockWallet{}, rules, &mockSeller{}, &mockLogger{})
	assert.Error(t, err)
	_, err = New(Config{Interval: time.Second, ProbeAmountSol: 0.001}, nil, &mockQuotes{}, &mockWallet{}, rules, &mockSeller{}, &mockLogger{})
	assert.Error(t, err)
}
