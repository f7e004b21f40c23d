package solanarpc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	"solSniperBot/internal/ports"
)

// SwapBuilder returns the unsigned base64 swap transaction for a quote.
type SwapBuilder interface {
	SwapTransaction(ctx context.Context, quote *ports.Quote, userPublicKey string) (string, error)
}

// ExecutorConfig holds configuration for the swap executor.
type ExecutorConfig struct {
	PollInterval time.Duration
	MaxRetries   uint // resend attempts left to the RPC node
}

// Executor signs router-built swaps with the wallet key, sends them and
// waits for confirmation.
type Executor struct {
	rpc     *rpc.Client
	wallet  *Wallet
	builder SwapBuilder
	logger  ports.Logger

	pollInterval time.Duration
	maxRetries   uint
}

var _ ports.SwapExecutor = (*Executor)(nil)

// NewExecutor creates a swap executor on the wallet's RPC connection.
func NewExecutor(cfg ExecutorConfig, wallet *Wallet, builder SwapBuilder, logger ports.Logger) (*Executor, error) {
	if wallet == nil || builder == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Executor")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &Executor{
		rpc:          wallet.RPC(),
		wallet:       wallet,
		builder:      builder,
		logger:       logger,
		pollInterval: cfg.PollInterval,
		maxRetries:   cfg.MaxRetries,
	}, nil
}

// Submit builds the swap for quote, signs it and sends it without preflight.
func (e *Executor) Submit(ctx context.Context, quote *ports.Quote) (string, error) {
	const op = "Executor.Submit"

	encoded, err := e.builder.SwapTransaction(ctx, quote, e.wallet.PublicKey())
	if err != nil {
		return "", fmt.Errorf("%s: build swap: %w", op, err)
	}
	tx, err := solana.TransactionFromBase64(encoded)
	if err != nil {
		return "", fmt.Errorf("%s: %w: decode transaction: %v", op, ports.ErrSwapFailed, err)
	}
	if err := e.wallet.SignTransaction(tx); err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, ports.ErrSwapFailed, err)
	}

	retries := e.maxRetries
	sig, err := e.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight: true,
		MaxRetries:    &retries,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, handleError(err))
	}

	e.logger.Info(ctx, op+": transaction sent", map[string]interface{}{
		"signature": sig.String(),
		"input":     quote.InputAsset,
		"output":    quote.OutputAsset,
	})
	return sig.String(), nil
}

// Confirm polls the signature status until it reaches confirmed commitment,
// reports an on-chain error, or ctx expires.
func (e *Executor) Confirm(ctx context.Context, txRef string) error {
	const op = "Executor.Confirm"

	sig, err := solana.SignatureFromBase58(txRef)
	if err != nil {
		return fmt.Errorf("%s: %w: bad signature %q: %v", op, ports.ErrInvalidRequest, txRef, err)
	}

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w: %s not confirmed: %v", op, ports.ErrTimeout, txRef, ctx.Err())
		case <-ticker.C:
		}

		statuses, err := e.rpc.GetSignatureStatuses(ctx, false, sig)
		if err != nil {
			e.logger.Debug(ctx, op+": status lookup failed, retrying", map[string]interface{}{
				"signature": txRef,
				"error":     err.Error(),
			})
			continue
		}
		if statuses == nil || len(statuses.Value) == 0 || statuses.Value[0] == nil {
			continue
		}

		st := statuses.Value[0]
		if st.Err != nil {
			return fmt.Errorf("%s: %w: %s: %v", op, ports.ErrConfirmFailed, txRef, st.Err)
		}
		if st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed || st.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
			e.logger.Debug(ctx, op+": transaction confirmed", map[string]interface{}{
				"signature": txRef,
				"slot":      st.Slot,
			})
			return nil
		}
	}
}

// handleError maps a JSON-RPC failure to a ports error.
func handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ports.ErrTimeout, err)
	}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		if strings.Contains(strings.ToLower(rpcErr.Message), "insufficient") {
			return fmt.Errorf("%w: %w: %s", ports.ErrSwapFailed, ports.ErrInsufficientFunds, rpcErr.Message)
		}
		return fmt.Errorf("%w: rpc code %d: %s", ports.ErrSwapFailed, rpcErr.Code, rpcErr.Message)
	}
	return fmt.Errorf("%w: %v", ports.ErrServiceUnavailable, err)
}
