package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"solSniperBot/internal/domain"
	"solSniperBot/internal/ports"

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

type mockFeed struct {
	events []*domain.AssetEvent
	err    error
}

func (m *mockFeed) Run(ctx context.Context, handler ports.EventHandler) error {
	for _, ev := range m.events {
		handler(ctx, ev)
	}
	return m.err
}

func (m *mockFeed) Connected() bool { return false }

type mockMarket struct {
	info *domain.AssetInfo
	err  error
}

func (m *mockMarket) Info(ctx context.Context, assetID string) (*domain.AssetInfo, error) {
	return m.info, m.err
}

// mockScorer records candidates and returns a fixed evaluation.
type mockScorer struct {
	mu         sync.Mutex
	eval       domain.Evaluation
	candidates []*domain.Candidate
}

func (m *mockScorer) Evaluate(ctx context.Context, c *domain.Candidate) *domain.Evaluation {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates = append(m.candidates, c)
	e := m.eval
	return &e
}

type mockBuyer struct {
	mu       sync.Mutex
	requests []domain.BuyRequest
	success  bool
	block    chan struct{}
}

func (m *mockBuyer) Buy(ctx context.Context, req domain.BuyRequest) *domain.ExecutionResult {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return &domain.ExecutionResult{AssetID: req.AssetID, Success: m.success, State: domain.StateConfirmed}
}

func (m *mockBuyer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

type mockBlacklist struct {
	mu      sync.Mutex
	entries map[string]string
}

func (m *mockBlacklist) AddToBlacklist(ctx context.Context, assetID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = map[string]string{}
	}
	m.entries[assetID] = reason
	return nil
}

var passing = domain.Evaluation{Pass: true, Code: domain.CodePassed, Score: 3}

func newTestIngestor(t *testing.T, cfg Config, feed *mockFeed, market ports.MarketData, scorer *mockScorer, buyer *mockBuyer, bl *mockBlacklist) *Ingestor {
	t.Helper()
	ing, err := New(cfg, feed, market, scorer, buyer, bl, &mockLogger{})
	require.NoError(t, err)
	return ing
}

func pumpEvent(asset string) *domain.AssetEvent {
	return &domain.AssetEvent{AssetID: asset, Symbol: "PMP", Name: "Pump", LiquiditySol: 30, Source: domain.SourcePumpFun}
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Config{}, nil, nil, &mockScorer{}, &mockBuyer{}, &mockBlacklist{}, &mockLogger{})
	assert.Error(t, err)

	ing, err := New(Config{}, &mockFeed{}, nil, &mockScorer{}, &mockBuyer{}, &mockBlacklist{}, &mockLogger{})
	require.NoError(t, err)
	assert.Equal(t, int64(16), ing.cfg.Workers)
	assert.Equal(t, 1000, ing.cfg.DedupCapacity)
}

func TestIngestor_Handle(t *testing.T) {
	tests := []struct {
		name          string
		eval          domain.Evaluation
		buyOK         bool
		want          Outcome
		wantBuys      int
		wantBlacklist bool
	}{
		{name: "passing candidate is bought", eval: passing, buyOK: true, want: OutcomeBought, wantBuys: 1},
		{name: "failed buy is reported", eval: passing, buyOK: false, want: OutcomeBuyFailed, wantBuys: 1},
		{name: "honeypot is blacklisted", eval: domain.Evaluation{Code: domain.CodeHoneypot, Reason: "honeypot detected"}, want: OutcomeRejected, wantBlacklist: true},
		{name: "low liquidity is not blacklisted", eval: domain.Evaluation{Code: domain.CodeLiquidity, Reason: "insufficient liquidity"}, want: OutcomeRejected},
		{name: "open position is not blacklisted", eval: domain.Evaluation{Code: domain.CodeOpenPosition, Reason: "position already open"}, want: OutcomeRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer := &mockScorer{eval: tt.eval}
			buyer := &mockBuyer{success: tt.buyOK}
			bl := &mockBlacklist{}
			ing := newTestIngestor(t, Config{Cooldown: time.Minute}, &mockFeed{}, nil, scorer, buyer, bl)

			got := ing.Handle(context.Background(), pumpEvent("MintA"))

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantBuys, buyer.count())
			_, listed := bl.entries["MintA"]
			assert.Equal(t, tt.wantBlacklist, listed)
			if tt.wantBuys > 0 {
				assert.Equal(t, "new token launch - score 3/4", buyer.requests[0].Reason)
			}
		})
	}
}

func TestIngestor_Handle_SkipsDuplicatesAndInvalid(t *testing.T) {
	scorer := &mockScorer{eval: domain.Evaluation{Code: domain.CodeLowScore}}
	ing := newTestIngestor(t, Config{}, &mockFeed{}, nil, scorer, &mockBuyer{}, &mockBlacklist{})
	ctx := context.Background()

	assert.Equal(t, OutcomeInvalid, ing.Handle(ctx, nil))
	assert.Equal(t, OutcomeInvalid, ing.Handle(ctx, &domain.AssetEvent{}))
	assert.Equal(t, OutcomeRejected, ing.Handle(ctx, pumpEvent("MintA")))
	assert.Equal(t, OutcomeDuplicate, ing.Handle(ctx, pumpEvent("MintA")))
	assert.Len(t, scorer.candidates, 1)
	assert.Equal(t, int64(1), ing.Status().Processed)
}

func TestIngestor_Cooldown(t *testing.T) {
	buyer := &mockBuyer{success: false}
	ing := newTestIngestor(t, Config{Cooldown: 2 * time.Minute}, &mockFeed{}, nil, &mockScorer{eval: passing}, buyer, &mockBlacklist{})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ing.now = func() time.Time { return now }
	ctx := context.Background()

	// The window starts at the attempt, even a failed one.
	assert.Equal(t, OutcomeBuyFailed, ing.Handle(ctx, pumpEvent("MintA")))

	now = now.Add(time.Minute)
	assert.Equal(t, OutcomeCooldown, ing.Handle(ctx, pumpEvent("MintB")))

	// Dropped candidates are not retried.
	now = now.Add(2 * time.Minute)
	assert.Equal(t, OutcomeDuplicate, ing.Handle(ctx, pumpEvent("MintB")))
	assert.Equal(t, OutcomeBuyFailed, ing.Handle(ctx, pumpEvent("MintC")))
	assert.Equal(t, 2, buyer.count())
}

func TestIngestor_Enrich(t *testing.T) {
	tests := []struct {
		name       string
		market     ports.MarketData
		event      *domain.AssetEvent
		wantLiq    float64
		wantSymbol string
		wantAuth   bool
	}{
		{
			name:       "pump event keeps bonding curve liquidity",
			market:     &mockMarket{info: &domain.AssetInfo{LiquiditySol: 12, Symbol: "DEX"}},
			event:      pumpEvent("MintA"),
			wantLiq:    30,
			wantSymbol: "PMP",
			wantAuth:   true,
		},
		{
			name:       "market data fills gaps",
			market:     &mockMarket{info: &domain.AssetInfo{LiquiditySol: 12, Symbol: "DEX", Name: "Dex Token"}},
			event:      &domain.AssetEvent{AssetID: "MintB", Source: domain.SourceManual},
			wantLiq:    12,
			wantSymbol: "DEX",
		},
		{
			name:     "market failure is tolerated",
			market:   &mockMarket{err: errors.New("timeout")},
			event:    &domain.AssetEvent{AssetID: "MintC", Source: domain.SourcePumpFun},
			wantAuth: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing := newTestIngestor(t, Config{}, &mockFeed{}, tt.market, &mockScorer{}, &mockBuyer{}, &mockBlacklist{})

			c := ing.Enrich(context.Background(), tt.event)

			assert.Equal(t, tt.event.AssetID, c.AssetID)
			assert.Equal(t, tt.wantLiq, c.LiquiditySol)
			assert.Equal(t, tt.wantSymbol, c.Symbol)
			assert.Equal(t, tt.wantAuth, c.MintDisabled)
			assert.Equal(t, tt.wantAuth, c.FreezeDisabled)
			assert.Nil(t, c.IsHoneypot)
		})
	}
}

func TestIngestor_DispatchDropsWhenSaturated(t *testing.T) {
	release := make(chan struct{})
	buyer := &mockBuyer{success: true, block: release}
	ing := newTestIngestor(t, Config{Workers: 1}, &mockFeed{}, nil, &mockScorer{eval: passing}, buyer, &mockBlacklist{})
	ctx := context.Background()

	ing.Dispatch(ctx, pumpEvent("MintA"))
	// Wait until the only worker is inside Buy.
	require.Eventually(t, func() bool { return ing.Status().Processed == 1 }, time.Second, 5*time.Millisecond)

	ing.Dispatch(ctx, pumpEvent("MintB"))
	assert.Equal(t, int64(1), ing.Status().Dropped)

	close(release)
	ing.Wait()
	assert.Equal(t, 1, buyer.count())
	assert.False(t, ing.seen.Contains("MintB"), "dropped events are not marked seen")
}

func TestIngestor_Run(t *testing.T) {
	events := make([]*domain.AssetEvent, 0, 5)
	for n := 0; n < 5; n++ {
		events = append(events, pumpEvent(fmt.Sprintf("Mint%d", n)))
	}
	events = append(events, pumpEvent("Mint0"))

	feed := &mockFeed{events: events, err: ports.ErrFeedExhausted}
	scorer := &mockScorer{eval: domain.Evaluation{Code: domain.CodeLowScore}}
	ing := newTestIngestor(t, Config{}, feed, nil, scorer, &mockBuyer{}, &mockBlacklist{})

	err := ing.Run(context.Background())

	assert.ErrorIs(t, err, ports.ErrFeedExhausted)
	assert.False(t, ing.Running())
	assert.Equal(t, int64(5), ing.Status().Processed)
	assert.Equal(t, 5, ing.Status().SeenSize)
}

func TestIngestor_RunRejectsSecondStart(t *testing.T) {
	block := make(chan struct{})
	var started atomic.Bool
	feed := &blockingFeed{block: block, started: &started}
	ing, err := New(Config{}, feed, nil, &mockScorer{}, &mockBuyer{}, &mockBlacklist{}, &mockLogger{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ing.Run(ctx) }()
	require.Eventually(t, started.Load, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, ing.Run(ctx), ports.ErrInvalidState)

	cancel()
	close(block)
	assert.NoError(t, <-done)
}

type blockingFeed struct {
	block   chan struct{}
	started *atomic.Bool
}

func (b *blockingFeed) Run(ctx context.Context, handler ports.EventHandler) error {
	b.started.Store(true)
	<-b.block
	return ctx.Err()
}

func (b *blockingFeed) Connected() bool { return true }
