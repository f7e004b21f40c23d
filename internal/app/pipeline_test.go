package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"solSniperBot/internal/adapters/sqlite"
	"solSniperBot/internal/domain"
	"solSniperBot/internal/ports"
	"solSniperBot/internal/risk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAsset = "Mint1111111111111111111111111111111111111111"

type pipelineFixture struct {
	pipeline  *Pipeline
	repo      *sqlite.Repository
	admission *risk.AdmissionController
	quotes    *mockQuotes
	swaps     *mockSwaps
	wallet    *mockWallet
}

func newPipelineFixture(t *testing.T, tradeAmount float64, maxPositions int) *pipelineFixture {
	t.Helper()
	repo := setupTestDB(t)
	logger := &mockLogger{}
	wallet := &mockWallet{balance: 10}
	quotes := &mockQuotes{buyOut: 1000, sellOut: tradeAmount}
	swaps := &mockSwaps{}

	admission, err := risk.NewAdmissionController(risk.AdmissionConfig{
		MaxDailyLossSol: 0.5,
		TradeAmountSol:  tradeAmount,
		MaxPositions:    maxPositions,
	}, risk.NewRiskBudget(time.Now), wallet, repo, logger)
	require.NoError(t, err)

	p, err := NewPipeline(PipelineConfig{
		TradeAmountSol:  tradeAmount,
		SlippageBps:     1500,
		ExternalTimeout: time.Second,
		ConfirmTimeout:  time.Second,
	}, logger, admission, quotes, swaps, wallet, repo)
	require.NoError(t, err)

	return &pipelineFixture{pipeline: p, repo: repo, admission: admission, quotes: quotes, swaps: swaps, wallet: wallet}
}

func buyReq(asset string) domain.BuyRequest {
	return domain.BuyRequest{AssetID: asset, Symbol: "TST", Name: "Test", Reason: "score 4/4"}
}

func TestNewPipeline_Validation(t *testing.T) {
	repo := setupTestDB(t)
	wallet := &mockWallet{}
	admission, err := risk.NewAdmissionController(risk.AdmissionConfig{MaxDailyLossSol: 1, TradeAmountSol: 1, MaxPositions: 1},
		risk.NewRiskBudget(time.Now), wallet, repo, &mockLogger{})
	require.NoError(t, err)

	_, err = NewPipeline(PipelineConfig{TradeAmountSol: 0.1, SlippageBps: 100}, &mockLogger{}, admission, nil, &mockSwaps{}, wallet, repo)
	assert.Error(t, err)

	_, err = NewPipeline(PipelineConfig{TradeAmountSol: 0, SlippageBps: 100}, &mockLogger{}, admission, &mockQuotes{}, &mockSwaps{}, wallet, repo)
	assert.Error(t, err)

	p, err := NewPipeline(PipelineConfig{TradeAmountSol: 0.1, SlippageBps: 100}, &mockLogger{}, admission, &mockQuotes{}, &mockSwaps{}, wallet, repo)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, p.cfg.ExternalTimeout)
	assert.Equal(t, 60*time.Second, p.cfg.ConfirmTimeout)
}

func TestPipeline_Buy_Confirmed(t *testing.T) {
	f := newPipelineFixture(t, 0.1, 3)
	ctx := context.Background()

	res := f.pipeline.Buy(ctx, buyReq(testAsset))

	require.True(t, res.Success, res.Error)
	assert.Equal(t, domain.StateConfirmed, res.State)
	assert.Equal(t, "sig-1", res.TxRef)
	assert.NotEmpty(t, res.AttemptID)
	assert.InDelta(t, 0.0001, res.Price, 1e-12)

	pos, err := f.repo.FindOpenByAsset(ctx, testAsset)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.InDelta(t, 0.1, pos.AmountSolSpent, 1e-9)
	assert.InDelta(t, 1000, pos.AmountTokens, 1e-9)
	assert.Equal(t, "score 4/4", pos.EntryReason)

	trades, err := f.repo.RecentTrades(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.TradeConfirmed, trades[0].Status)
	assert.Equal(t, "sig-1", trades[0].TxRef)
	assert.Equal(t, res.AttemptID, trades[0].AttemptID)

	stat, err := f.repo.GetDailyStat(ctx, time.Now().UTC().Format(domain.DateLayout))
	require.NoError(t, err)
	assert.Equal(t, 1, stat.TradesCount)
	assert.InDelta(t, 0.1, stat.VolumeSol, 1e-9)

	require.Len(t, f.quotes.calls, 1)
	assert.Equal(t, domain.SOLMint, f.quotes.calls[0].InputAsset)
	assert.Equal(t, testAsset, f.quotes.calls[0].OutputAsset)
	assert.Equal(t, 1500, f.quotes.calls[0].SlippageBps)
}

func TestPipeline_Buy_AdmissionDeniedWritesNothing(t *testing.T) {
	f := newPipelineFixture(t, 0.1, 3)
	f.wallet.balance = 0.05
	ctx := context.Background()

	res := f.pipeline.Buy(ctx, buyReq(testAsset))

	assert.False(t, res.Success)
	assert.True(t, res.Denied)
	assert.Equal(t, domain.StateRequested, res.State)
	assert.Contains(t, res.Reason, "insufficient balance")
	assert.Empty(t, f.quotes.calls)
	assert.Zero(t, f.swaps.submitCalls)

	trades, err := f.repo.RecentTrades(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestPipeline_Buy_Failures(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(f *pipelineFixture)
		wantFailedAt domain.ExecState
		wantSubmits  int
		wantTxRef    string
	}{
		{
			name:         "quote error records failed attempt",
			setup:        func(f *pipelineFixture) { f.quotes.err = ports.ErrQuoteFailed },
			wantFailedAt: domain.StateRequested,
		},
		{
			name:         "zero output is treated as no route",
			setup:        func(f *pipelineFixture) { f.quotes.buyOut = 0 },
			wantFailedAt: domain.StateRequested,
		},
		{
			name:         "submit error fails the pending trade",
			setup:        func(f *pipelineFixture) { f.swaps.submitErr = ports.ErrSwapFailed },
			wantFailedAt: domain.StateQuoted,
			wantSubmits:  1,
		},
		{
			name:         "confirm error fails the pending trade after submit",
			setup:        func(f *pipelineFixture) { f.swaps.confirmErr = ports.ErrConfirmFailed },
			wantFailedAt: domain.StateSubmitted,
			wantSubmits:  1,
			wantTxRef:    "sig-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(t, 0.1, 3)
			tt.setup(f)
			ctx := context.Background()

			res := f.pipeline.Buy(ctx, buyReq(testAsset))

			assert.False(t, res.Success)
			assert.False(t, res.Denied)
			assert.Equal(t, domain.StateFailed, res.State)
			assert.Equal(t, tt.wantFailedAt, res.FailedAt)
			assert.NotEmpty(t, res.Error)
			assert.Equal(t, tt.wantSubmits, f.swaps.submitCalls)

			trades, err := f.repo.RecentTrades(ctx, 10)
			require.NoError(t, err)
			require.Len(t, trades, 1)
			assert.Equal(t, domain.TradeFailed, trades[0].Status)
			assert.Equal(t, tt.wantTxRef, trades[0].TxRef)
			assert.NotEmpty(t, trades[0].Reason)

			pos, err := f.repo.FindOpenByAsset(ctx, testAsset)
			require.NoError(t, err)
			assert.Nil(t, pos)
		})
	}
}

func TestPipeline_Buy_MergesIntoOpenPosition(t *testing.T) {
	f := newPipelineFixture(t, 0.1, 3)
	ctx := context.Background()

	require.True(t, f.pipeline.Buy(ctx, buyReq(testAsset)).Success)
	f.pipeline.cfg.TradeAmountSol = 0.2
	f.quotes.buyOut = 1000
	require.True(t, f.pipeline.Buy(ctx, buyReq(testAsset)).Success)

	open, err := f.repo.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.InDelta(t, 0.3, open[0].AmountSolSpent, 1e-9)
	assert.InDelta(t, 2000, open[0].AmountTokens, 1e-9)
	assert.InDelta(t, 0.00015, open[0].EntryPrice, 1e-12)
}

func TestPipeline_SingleSlotLifecycle(t *testing.T) {
	f := newPipelineFixture(t, 0.1, 1)
	ctx := context.Background()

	require.True(t, f.pipeline.Buy(ctx, buyReq("MintA")).Success)

	res := f.pipeline.Buy(ctx, buyReq("MintB"))
	assert.True(t, res.Denied)
	assert.Contains(t, res.Reason, "max positions reached")

	f.wallet.setTokens("MintA", 1000)
	require.True(t, f.pipeline.Sell(ctx, "MintA", domain.CloseReasonTakeProfit).Success)

	res = f.pipeline.Buy(ctx, buyReq("MintC"))
	assert.True(t, res.Success, res.Reason)
}

func TestPipeline_ConcurrentBuysRespectPositionCap(t *testing.T) {
	f := newPipelineFixture(t, 0.1, 1)
	f.pipeline.cfg.ConfirmTimeout = 5 * time.Second
	gate := make(chan struct{})
	f.swaps.confirmGate = gate
	ctx := context.Background()

	results := make(chan *domain.ExecutionResult, 3)
	for _, asset := range []string{"MintA", "MintB", "MintC"} {
		go func(asset string) { results <- f.pipeline.Buy(ctx, buyReq(asset)) }(asset)
	}

	// The first admitted buy holds the only slot while it confirms.
	for i := 0; i < 2; i++ {
		select {
		case res := <-results:
			assert.True(t, res.Denied)
			assert.Contains(t, res.Reason, "max positions reached")
		case <-time.After(3 * time.Second):
			t.Fatal("buys of other assets were not denied while one was confirming")
		}
	}
	close(gate)

	select {
	case res := <-results:
		assert.True(t, res.Success, res.Error)
	case <-time.After(3 * time.Second):
		t.Fatal("admitted buy did not finish")
	}

	open, err := f.repo.CountOpen(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, open)
	assert.Equal(t, 1, f.swaps.submitCalls)
	assert.Zero(t, f.admission.InFlight())
}

func TestPipeline_Buy_FailedAttemptReleasesSlot(t *testing.T) {
	f := newPipelineFixture(t, 0.1, 1)
	f.swaps.confirmErr = ports.ErrTimeout
	ctx := context.Background()

	res := f.pipeline.Buy(ctx, buyReq("MintA"))
	require.False(t, res.Success)
	assert.Zero(t, f.admission.InFlight())

	f.swaps.confirmErr = nil
	res = f.pipeline.Buy(ctx, buyReq("MintB"))
	assert.True(t, res.Success, res.Error)
}

func TestPipeline_Buy_AdmissionLookupIsBounded(t *testing.T) {
	f := newPipelineFixture(t, 0.1, 3)
	f.pipeline.cfg.ExternalTimeout = 50 * time.Millisecond
	f.wallet.stall = true

	start := time.Now()
	res := f.pipeline.Buy(context.Background(), buyReq(testAsset))

	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, res.Denied)
	assert.Contains(t, res.Reason, "balance unavailable")
	assert.Empty(t, f.quotes.calls)
	assert.Zero(t, f.admission.InFlight())
}

func TestPipeline_SameAssetBuysSerialize(t *testing.T) {
	f := newPipelineFixture(t, 0.1, 5)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.pipeline.Buy(ctx, buyReq(testAsset))
		}()
	}
	wg.Wait()

	open, err := f.repo.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.InDelta(t, 0.4, open[0].AmountSolSpent, 1e-9)
}

func TestPipeline_Sell_RealizesPnL(t *testing.T) {
	tests := []struct {
		name       string
		received   float64
		wantPnL    float64
		wantPct    float64
		wantWins   int
		wantLosses int
		wantBudget float64
	}{
		{name: "profit", received: 0.15, wantPnL: 0.05, wantPct: 50, wantWins: 1},
		{name: "loss", received: 0.08, wantPnL: -0.02, wantPct: -20, wantLosses: 1, wantBudget: 0.02},
		{name: "break even counts as loss", received: 0.1, wantPnL: 0, wantPct: 0, wantLosses: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(t, 0.1, 3)
			ctx := context.Background()
			require.True(t, f.pipeline.Buy(ctx, buyReq(testAsset)).Success)

			f.wallet.setTokens(testAsset, 1000)
			f.quotes.sellOut = tt.received
			res := f.pipeline.Sell(ctx, testAsset, domain.CloseReasonTakeProfit)

			require.True(t, res.Success, res.Error)
			assert.Equal(t, domain.StateConfirmed, res.State)
			assert.InDelta(t, tt.wantPnL, res.PnLSol, 1e-9)
			assert.InDelta(t, tt.wantPct, res.PnLPercent, 1e-6)

			pos, err := f.repo.FindOpenByAsset(ctx, testAsset)
			require.NoError(t, err)
			assert.Nil(t, pos)

			all, err := f.repo.ListAll(ctx, 10)
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, domain.StatusClosed, all[0].Status)
			assert.Equal(t, domain.CloseReasonTakeProfit, all[0].ExitReason)
			assert.InDelta(t, tt.wantPct, all[0].PnLPercent, 1e-6)

			stat, err := f.repo.GetDailyStat(ctx, time.Now().UTC().Format(domain.DateLayout))
			require.NoError(t, err)
			assert.Equal(t, 2, stat.TradesCount)
			assert.Equal(t, tt.wantWins, stat.Wins)
			assert.Equal(t, tt.wantLosses, stat.Losses)
			assert.InDelta(t, tt.wantPnL, stat.TotalPnLSol, 1e-9)

			assert.InDelta(t, tt.wantBudget, f.admission.Status().DailyLoss, 1e-9)

			last := f.quotes.calls[len(f.quotes.calls)-1]
			assert.Equal(t, testAsset, last.InputAsset)
			assert.Equal(t, domain.SOLMint, last.OutputAsset)
			assert.InDelta(t, 1000, last.Amount, 1e-9)
		})
	}
}

func TestPipeline_Sell_ZeroBalanceClosesAsTotalLoss(t *testing.T) {
	f := newPipelineFixture(t, 0.1, 3)
	ctx := context.Background()
	require.True(t, f.pipeline.Buy(ctx, buyReq(testAsset)).Success)
	submitsAfterBuy := f.swaps.submitCalls

	res := f.pipeline.Sell(ctx, testAsset, domain.CloseReasonTimeout)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, -100.0, res.PnLPercent)
	assert.InDelta(t, -0.1, res.PnLSol, 1e-9)
	assert.Equal(t, submitsAfterBuy, f.swaps.submitCalls, "no swap for an empty balance")

	all, err := f.repo.ListAll(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.StatusClosed, all[0].Status)
	assert.Equal(t, -100.0, all[0].PnLPercent)

	stat, err := f.repo.GetDailyStat(ctx, time.Now().UTC().Format(domain.DateLayout))
	require.NoError(t, err)
	assert.Equal(t, 1, stat.Losses)
	assert.InDelta(t, -0.1, stat.TotalPnLSol, 1e-9)
	assert.InDelta(t, 0.1, f.admission.Status().DailyLoss, 1e-9)
}

func TestPipeline_Sell_WithoutPositionWritesNothing(t *testing.T) {
	f := newPipelineFixture(t, 0.1, 3)
	ctx := context.Background()

	res := f.pipeline.Sell(ctx, testAsset, domain.CloseReasonManual)

	assert.False(t, res.Success)
	assert.Equal(t, domain.StateFailed, res.State)
	assert.Contains(t, res.Error, ports.ErrNoOpenPosition.Error())
	assert.Empty(t, f.quotes.calls)

	trades, err := f.repo.RecentTrades(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestPipeline_Sell_FailuresKeepPositionOpen(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *pipelineFixture)
	}{
		{name: "balance lookup error", setup: func(f *pipelineFixture) { f.wallet.tokenErr = errRPC }},
		{name: "quote error", setup: func(f *pipelineFixture) { f.quotes.err = ports.ErrNoRoute }},
		{name: "submit error", setup: func(f *pipelineFixture) { f.swaps.submitErr = ports.ErrSwapFailed }},
		{name: "confirm error", setup: func(f *pipelineFixture) { f.swaps.confirmErr = ports.ErrConfirmFailed }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(t, 0.1, 3)
			ctx := context.Background()
			require.True(t, f.pipeline.Buy(ctx, buyReq(testAsset)).Success)
			f.wallet.setTokens(testAsset, 1000)
			tt.setup(f)

			res := f.pipeline.Sell(ctx, testAsset, domain.CloseReasonStopLoss)

			assert.False(t, res.Success)
			assert.Equal(t, domain.StateFailed, res.State)

			pos, err := f.repo.FindOpenByAsset(ctx, testAsset)
			require.NoError(t, err)
			require.NotNil(t, pos, "position must stay open")

			trades, err := f.repo.RecentTrades(ctx, 10)
			require.NoError(t, err)
			require.Len(t, trades, 2)
			assert.Equal(t, domain.Sell, trades[0].Side)
			assert.Equal(t, domain.TradeFailed, trades[0].Status)
			assert.Zero(t, f.admission.Status().DailyLoss)
		})
	}
}

func TestPipeline_MarkPrice(t *testing.T) {
	f := newPipelineFixture(t, 0.1, 3)
	ctx := context.Background()
	require.True(t, f.pipeline.Buy(ctx, buyReq(testAsset)).Success)

	require.NoError(t, f.pipeline.MarkPrice(ctx, testAsset, 0.0002, 100))

	pos, err := f.repo.FindOpenByAsset(ctx, testAsset)
	require.NoError(t, err)
	assert.InDelta(t, 0.0002, pos.CurrentPrice, 1e-12)
	assert.InDelta(t, 100, pos.PnLPercent, 1e-9)
}

func TestPipeline_ReportPending(t *testing.T) {
	f := newPipelineFixture(t, 0.1, 3)
	ctx := context.Background()
	logger := f.pipeline.logger.(*mockLogger)

	n, err := f.pipeline.ReportPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// A buy that was sent but whose ledger update never landed.
	sent, err := f.repo.InsertTrade(ctx, &domain.Trade{AssetID: "MintSent", Side: domain.Buy, AmountSol: 0.1, Status: domain.TradePending, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	require.NoError(t, f.repo.SetTradeTxRef(ctx, sent, "sig-sent"))
	_, err = f.repo.InsertTrade(ctx, &domain.Trade{AssetID: "MintUnsent", Side: domain.Buy, AmountSol: 0.1, Status: domain.TradePending, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	require.True(t, f.pipeline.Buy(ctx, buyReq(testAsset)).Success)

	n, err = f.pipeline.ReportPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	logger.mu.Lock()
	defer logger.mu.Unlock()
	require.Len(t, logger.errors, 1, "only the submitted trade needs reconciliation")
	assert.Contains(t, logger.errors[0], "reconcile")
}
