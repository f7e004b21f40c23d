package dexscreener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"solSniperBot/internal/domain"
	"solSniperBot/internal/ports"
)

// DefaultBaseURL is the public DexScreener API.
const DefaultBaseURL = "https://api.dexscreener.com/latest/dex"

// Config holds client parameters.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	SolPriceSymbol string        // e.g. SOLUSDT
	SolPriceTTL    time.Duration // how long a SOL/USD price is reused
	FallbackSolUSD float64       // used when the oracle is unavailable
}

// Client implements ports.MarketData on top of the DexScreener token endpoint.
// Pair liquidity is quoted in USD and converted to SOL with the oracle price.
type Client struct {
	cfg    Config
	http   *http.Client
	oracle ports.PriceOracle
	logger ports.Logger
	now    func() time.Time

	mu       sync.Mutex
	solUSD   float64
	solUSDAt time.Time
}

var _ ports.MarketData = (*Client)(nil)

// NewClient creates a DexScreener client. oracle may be nil, in which case
// FallbackSolUSD is always used.
func NewClient(cfg Config, oracle ports.PriceOracle, logger ports.Logger) (*Client, error) {
	if logger == nil {
		return nil, fmt.Errorf("missing required dependencies for DexScreener client")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.SolPriceSymbol == "" {
		cfg.SolPriceSymbol = "SOLUSDT"
	}
	if cfg.SolPriceTTL <= 0 {
		cfg.SolPriceTTL = time.Minute
	}
	if cfg.FallbackSolUSD <= 0 {
		cfg.FallbackSolUSD = 200
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		oracle: oracle,
		logger: logger,
		now:    time.Now,
	}, nil
}

type tokenResponse struct {
	Pairs []pair `json:"pairs"`
}

type pair struct {
	ChainID     string `json:"chainId"`
	DexID       string `json:"dexId"`
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD  string `json:"priceUsd"`
	Liquidity *struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
}

// Info returns the deepest Solana pair for the token.
func (c *Client) Info(ctx context.Context, assetID string) (*domain.AssetInfo, error) {
	const op = "DexScreenerClient.Info"
	if assetID == "" {
		return nil, fmt.Errorf("%s: %w: empty token address", op, ports.ErrInvalidRequest)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/tokens/"+url.PathEscape(assetID), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w: %v", op, ports.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%s: %w: %v", op, ports.ErrServiceUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%s: %w", op, ports.ErrRateLimited)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%s: %w: http %d", op, ports.ErrServiceUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s: %w: http %d", op, ports.ErrInvalidRequest, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}
	best := bestPair(tr.Pairs)
	if best == nil {
		return nil, fmt.Errorf("%s: %w: no pairs for %s", op, ports.ErrNotFound, assetID)
	}

	info := &domain.AssetInfo{
		AssetID:     assetID,
		Symbol:      best.BaseToken.Symbol,
		Name:        best.BaseToken.Name,
		PairAddress: best.PairAddress,
		DexID:       best.DexID,
	}
	if p, err := decimal.NewFromString(best.PriceUSD); err == nil {
		info.PriceUSD = p.InexactFloat64()
	}
	if best.Liquidity != nil && best.Liquidity.USD > 0 {
		info.LiquidityUSD = best.Liquidity.USD
		solUSD := c.SolUSD(ctx)
		info.LiquiditySol = decimal.NewFromFloat(best.Liquidity.USD).
			Div(decimal.NewFromFloat(solUSD)).
			Round(6).
			InexactFloat64()
	}
	return info, nil
}

// bestPair picks the Solana pair with the most USD liquidity. Pairs without a
// chain tag are considered too.
func bestPair(pairs []pair) *pair {
	var best *pair
	for i := range pairs {
		p := &pairs[i]
		if p.ChainID != "" && p.ChainID != "solana" {
			continue
		}
		if best == nil || liquidity(p) > liquidity(best) {
			best = p
		}
	}
	return best
}

func liquidity(p *pair) float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.USD
}

// SolUSD returns the SOL/USD reference price, cached for SolPriceTTL.
// Oracle failures fall back to the last known price, then to FallbackSolUSD.
func (c *Client) SolUSD(ctx context.Context) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.solUSD > 0 && now.Sub(c.solUSDAt) < c.cfg.SolPriceTTL {
		return c.solUSD
	}
	if c.oracle == nil {
		return c.cfg.FallbackSolUSD
	}

	price, err := c.oracle.GetTickerPrice(ctx, c.cfg.SolPriceSymbol)
	if err != nil || price <= 0 {
		fallback := c.cfg.FallbackSolUSD
		if c.solUSD > 0 {
			fallback = c.solUSD
		}
		fields := map[string]interface{}{"symbol": c.cfg.SolPriceSymbol, "fallback": fallback}
		if err != nil {
			fields["error"] = err.Error()
		}
		c.logger.Warn(ctx, "DexScreenerClient.SolUSD: reference price unavailable, using fallback", fields)
		return fallback
	}

	c.solUSD = price
	c.solUSDAt = now
	return price
}
