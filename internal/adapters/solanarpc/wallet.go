package solanarpc

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"solSniperBot/internal/domain"
	"solSniperBot/internal/ports"
)

// DefaultRPCURL is the public mainnet endpoint.
const DefaultRPCURL = rpc.MainNetBeta_RPC

// WalletConfig holds configuration for the wallet adapter.
type WalletConfig struct {
	RPCURL     string
	PrivateKey string // base58, 64 bytes
	Logger     ports.Logger
}

// Wallet implements ports.Wallet for a local keypair and signs transactions.
type Wallet struct {
	rpc    *rpc.Client
	key    solana.PrivateKey
	pub    solana.PublicKey
	logger ports.Logger

	mu       sync.RWMutex
	decimals map[string]uint8
}

var _ ports.Wallet = (*Wallet)(nil)

// ParsePrivateKey decodes a base58 secret key and checks its length.
func ParsePrivateKey(encoded string) (solana.PrivateKey, error) {
	raw, err := base58.Decode(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(raw) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(raw))
	}
	return solana.PrivateKey(raw), nil
}

// NewWallet creates a wallet bound to an RPC endpoint.
func NewWallet(cfg WalletConfig) (*Wallet, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Solana wallet")
	}
	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("%w: PRIVATE_KEY is not set", ports.ErrConfigurationError)
	}
	key, err := ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrConfigurationError, err)
	}
	endpoint := cfg.RPCURL
	if endpoint == "" {
		endpoint = DefaultRPCURL
	}
	return &Wallet{
		rpc:      rpc.New(endpoint),
		key:      key,
		pub:      key.PublicKey(),
		logger:   cfg.Logger,
		decimals: map[string]uint8{domain.SOLMint: domain.SOLDecimals},
	}, nil
}

// PublicKey returns the wallet address.
func (w *Wallet) PublicKey() string {
	return w.pub.String()
}

// Balance returns the native SOL balance at confirmed commitment.
func (w *Wallet) Balance(ctx context.Context) (float64, error) {
	res, err := w.rpc.GetBalance(ctx, w.pub, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w: %v", ports.ErrServiceUnavailable, err)
	}
	return decimal.NewFromInt(int64(res.Value)).Shift(-domain.SOLDecimals).InexactFloat64(), nil
}

// TokenBalance sums every token account the wallet holds for mint.
// No accounts means a zero balance.
func (w *Wallet) TokenBalance(ctx context.Context, assetID string) (float64, error) {
	mint, err := solana.PublicKeyFromBase58(assetID)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid mint %q: %v", ports.ErrInvalidRequest, assetID, err)
	}

	accounts, err := w.rpc.GetTokenAccountsByOwner(ctx, w.pub,
		&rpc.GetTokenAccountsConfig{Mint: mint.ToPointer()},
		&rpc.GetTokenAccountsOpts{Commitment: rpc.CommitmentConfirmed, Encoding: solana.EncodingBase64},
	)
	if err != nil {
		return 0, fmt.Errorf("get token accounts for %s: %w: %v", assetID, ports.ErrServiceUnavailable, err)
	}
	if accounts == nil || len(accounts.Value) == 0 {
		return 0, nil
	}

	total := decimal.Zero
	for _, acct := range accounts.Value {
		bal, err := w.rpc.GetTokenAccountBalance(ctx, acct.Pubkey, rpc.CommitmentConfirmed)
		if err != nil {
			return 0, fmt.Errorf("get token account balance %s: %w: %v", acct.Pubkey, ports.ErrServiceUnavailable, err)
		}
		if bal == nil || bal.Value == nil {
			continue
		}
		amount, err := decimal.NewFromString(bal.Value.Amount)
		if err != nil {
			return 0, fmt.Errorf("parse token amount %q: %w", bal.Value.Amount, err)
		}
		w.storeDecimals(assetID, bal.Value.Decimals)
		total = total.Add(amount.Shift(-int32(bal.Value.Decimals)))
	}
	return total.InexactFloat64(), nil
}

// Holding is a non-zero token balance held by the wallet.
type Holding struct {
	Mint   string
	Amount float64
}

// splAccountMinLen covers mint (0..32), owner (32..64) and amount (64..72).
const splAccountMinLen = 72

// Holdings lists every SPL token the wallet holds a non-zero balance of,
// summed per mint.
func (w *Wallet) Holdings(ctx context.Context) ([]Holding, error) {
	accounts, err := w.rpc.GetTokenAccountsByOwner(ctx, w.pub,
		&rpc.GetTokenAccountsConfig{ProgramId: solana.TokenProgramID.ToPointer()},
		&rpc.GetTokenAccountsOpts{Commitment: rpc.CommitmentConfirmed, Encoding: solana.EncodingBase64},
	)
	if err != nil {
		return nil, fmt.Errorf("get token accounts: %w: %v", ports.ErrServiceUnavailable, err)
	}
	if accounts == nil {
		return nil, nil
	}

	raw := make(map[string]uint64)
	var order []string
	for _, acct := range accounts.Value {
		if acct == nil || acct.Account == nil || acct.Account.Data == nil {
			continue
		}
		data := acct.Account.Data.GetBinary()
		if len(data) < splAccountMinLen {
			w.logger.Debug(ctx, "Wallet.Holdings: skipping short token account", map[string]interface{}{"account": acct.Pubkey.String(), "len": len(data)})
			continue
		}
		amount := binary.LittleEndian.Uint64(data[64:72])
		if amount == 0 {
			continue
		}
		mint := solana.PublicKeyFromBytes(data[0:32]).String()
		if _, seen := raw[mint]; !seen {
			order = append(order, mint)
		}
		raw[mint] += amount
	}

	holdings := make([]Holding, 0, len(order))
	for _, mint := range order {
		d, err := w.Decimals(ctx, mint)
		if err != nil {
			return nil, err
		}
		amount := decimal.NewFromBigInt(new(big.Int).SetUint64(raw[mint]), -int32(d))
		holdings = append(holdings, Holding{Mint: mint, Amount: amount.InexactFloat64()})
	}
	return holdings, nil
}

// Decimals returns the decimals of mint, cached after the first lookup.
func (w *Wallet) Decimals(ctx context.Context, mint string) (uint8, error) {
	w.mu.RLock()
	d, ok := w.decimals[mint]
	w.mu.RUnlock()
	if ok {
		return d, nil
	}

	pk, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid mint %q: %v", ports.ErrInvalidRequest, mint, err)
	}
	supply, err := w.rpc.GetTokenSupply(ctx, pk, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("get token supply for %s: %w: %v", mint, ports.ErrServiceUnavailable, err)
	}
	if supply == nil || supply.Value == nil {
		return 0, fmt.Errorf("get token supply for %s: %w", mint, ports.ErrNotFound)
	}
	w.storeDecimals(mint, supply.Value.Decimals)
	return supply.Value.Decimals, nil
}

func (w *Wallet) storeDecimals(mint string, d uint8) {
	w.mu.Lock()
	w.decimals[mint] = d
	w.mu.Unlock()
}

// SignTransaction signs tx with the wallet key.
func (w *Wallet) SignTransaction(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.pub) {
			return &w.key
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	return nil
}

// RPC exposes the underlying client for the executor.
func (w *Wallet) RPC() *rpc.Client {
	return w.rpc
}
