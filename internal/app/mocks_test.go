package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"solSniperBot/internal/adapters/sqlite"
	"solSniperBot/internal/domain"
	"solSniperBot/internal/ports"

	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

// mockQuotes answers buys with buyOut tokens and sells with sellOut SOL.
type mockQuotes struct {
	mu      sync.Mutex
	buyOut  float64
	sellOut float64
	err     error
	calls   []ports.QuoteRequest
}

func (m *mockQuotes) Quote(ctx context.Context, req ports.QuoteRequest) (*ports.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	if m.err != nil {
		return nil, m.err
	}
	out := m.buyOut
	if req.OutputAsset == domain.SOLMint {
		out = m.sellOut
	}
	return &ports.Quote{
		InputAsset:  req.InputAsset,
		OutputAsset: req.OutputAsset,
		InAmount:    req.Amount,
		OutAmount:   out,
		SlippageBps: req.SlippageBps,
	}, nil
}

type mockSwaps struct {
	mu           sync.Mutex
	submitErr    error
	confirmErr   error
	submitCalls  int
	confirmCalls int
	// confirmGate, when set, holds Confirm until it is closed or ctx is done.
	confirmGate chan struct{}
	confirming  chan struct{}
}

func (m *mockSwaps) Submit(ctx context.Context, q *ports.Quote) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitCalls++
	if m.submitErr != nil {
		return "", m.submitErr
	}
	return fmt.Sprintf("sig-%d", m.submitCalls), nil
}

func (m *mockSwaps) Confirm(ctx context.Context, txRef string) error {
	m.mu.Lock()
	m.confirmCalls++
	gate, confirming, err := m.confirmGate, m.confirming, m.confirmErr
	m.mu.Unlock()
	if gate != nil {
		if confirming != nil {
			confirming <- struct{}{}
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ports.ErrTimeout, ctx.Err())
		}
	}
	return err
}

type mockWallet struct {
	mu       sync.Mutex
	balance  float64
	tokens   map[string]float64
	tokenErr error
	stall    bool // Balance blocks until ctx is done
}

func (m *mockWallet) PublicKey() string { return "wallet-pubkey" }

func (m *mockWallet) Balance(ctx context.Context) (float64, error) {
	m.mu.Lock()
	stall, balance := m.stall, m.balance
	m.mu.Unlock()
	if stall {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return balance, nil
}

func (m *mockWallet) TokenBalance(ctx context.Context, assetID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokenErr != nil {
		return 0, m.tokenErr
	}
	return m.tokens[assetID], nil
}

func (m *mockWallet) setTokens(assetID string, amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = map[string]float64{}
	}
	m.tokens[assetID] = amount
}

var errRPC = errors.New("rpc unavailable")

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) *sqlite.Repository {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "sniper-app-test-*")
	require.NoError(t, err)

	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: filepath.Join(tmpDir, "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	})
	return repo
}
