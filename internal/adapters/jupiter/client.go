package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"solSniperBot/internal/ports"
)

// DefaultBaseURL is the public v6 swap API.
const DefaultBaseURL = "https://quote-api.jup.ag/v6"

const maxBodyBytes = 4 << 20

// DecimalsResolver returns the decimals of a token mint.
type DecimalsResolver interface {
	Decimals(ctx context.Context, mint string) (uint8, error)
}

// Config holds client parameters.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the Jupiter quote and swap endpoints.
type Client struct {
	baseURL  string
	http     *http.Client
	decimals DecimalsResolver
	logger   ports.Logger
}

var _ ports.QuoteService = (*Client)(nil)

// NewClient creates a Jupiter client.
func NewClient(cfg Config, decimals DecimalsResolver, logger ports.Logger) (*Client, error) {
	if decimals == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Jupiter client")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:  base,
		http:     &http.Client{Timeout: timeout},
		decimals: decimals,
		logger:   logger,
	}, nil
}

type quoteResponse struct {
	InputMint      string `json:"inputMint"`
	InAmount       string `json:"inAmount"`
	OutputMint     string `json:"outputMint"`
	OutAmount      string `json:"outAmount"`
	SlippageBps    int    `json:"slippageBps"`
	PriceImpactPct string `json:"priceImpactPct"`
	RoutePlan      []struct {
		SwapInfo struct {
			Label string `json:"label"`
		} `json:"swapInfo"`
	} `json:"routePlan"`
}

type errorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

// Quote returns a route for req. Amounts cross the wire in base units and
// are converted with the mint decimals on both sides.
func (c *Client) Quote(ctx context.Context, req ports.QuoteRequest) (*ports.Quote, error) {
	const op = "JupiterClient.Quote"
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%s: %w: amount must be positive", op, ports.ErrInvalidRequest)
	}

	inDecimals, err := c.decimals.Decimals(ctx, req.InputAsset)
	if err != nil {
		return nil, fmt.Errorf("%s: input decimals: %w", op, err)
	}
	outDecimals, err := c.decimals.Decimals(ctx, req.OutputAsset)
	if err != nil {
		return nil, fmt.Errorf("%s: output decimals: %w", op, err)
	}

	baseAmount := ToBaseUnits(req.Amount, inDecimals)
	if baseAmount == "0" {
		return nil, fmt.Errorf("%s: %w: amount below one base unit", op, ports.ErrInvalidRequest)
	}

	q := url.Values{}
	q.Set("inputMint", req.InputAsset)
	q.Set("outputMint", req.OutputAsset)
	q.Set("amount", baseAmount)
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))

	body, err := c.do(ctx, http.MethodGet, c.baseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var qr quoteResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return nil, fmt.Errorf("%s: %w: decode response: %v", op, ports.ErrQuoteFailed, err)
	}
	out, err := FromBaseUnits(qr.OutAmount, outDecimals)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: bad outAmount %q", op, ports.ErrQuoteFailed, qr.OutAmount)
	}
	in, err := FromBaseUnits(qr.InAmount, inDecimals)
	if err != nil {
		in = req.Amount
	}
	impact, _ := strconv.ParseFloat(qr.PriceImpactPct, 64)

	labels := make([]string, 0, len(qr.RoutePlan))
	for _, step := range qr.RoutePlan {
		labels = append(labels, step.SwapInfo.Label)
	}

	c.logger.Debug(ctx, op+": quote received", map[string]interface{}{
		"input":       req.InputAsset,
		"output":      req.OutputAsset,
		"inAmount":    in,
		"outAmount":   out,
		"priceImpact": impact,
	})

	return &ports.Quote{
		InputAsset:     req.InputAsset,
		OutputAsset:    req.OutputAsset,
		InAmount:       in,
		OutAmount:      out,
		PriceImpactPct: impact,
		SlippageBps:    req.SlippageBps,
		Route:          strings.Join(labels, " > "),
		Raw:            json.RawMessage(body),
	}, nil
}

type swapRequest struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports string          `json:"prioritizationFeeLamports"`
}

type swapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// SwapTransaction asks Jupiter to build the unsigned swap transaction for a
// quote and returns it base64 encoded.
func (c *Client) SwapTransaction(ctx context.Context, quote *ports.Quote, userPublicKey string) (string, error) {
	const op = "JupiterClient.SwapTransaction"
	if quote == nil || len(quote.Raw) == 0 {
		return "", fmt.Errorf("%s: %w: quote has no route payload", op, ports.ErrInvalidRequest)
	}

	payload, err := json.Marshal(swapRequest{
		QuoteResponse:             quote.Raw,
		UserPublicKey:             userPublicKey,
		WrapAndUnwrapSol:          true,
		DynamicComputeUnitLimit:   true,
		PrioritizationFeeLamports: "auto",
	})
	if err != nil {
		return "", fmt.Errorf("%s: encode request: %w", op, err)
	}

	body, err := c.do(ctx, http.MethodPost, c.baseURL+"/swap", payload)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	var sr swapResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("%s: %w: decode response: %v", op, ports.ErrSwapFailed, err)
	}
	if sr.SwapTransaction == "" {
		return "", fmt.Errorf("%s: %w: empty swap transaction", op, ports.ErrSwapFailed)
	}
	return sr.SwapTransaction, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ports.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ports.ErrServiceUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, handleError(resp.StatusCode, body)
	}
	return body, nil
}

// handleError maps a Jupiter error response to a ports error.
func handleError(status int, body []byte) error {
	var er errorResponse
	_ = json.Unmarshal(body, &er)
	msg := er.Error
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}

	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ports.ErrRateLimited, msg)
	case er.ErrorCode == "COULD_NOT_FIND_ANY_ROUTE" || er.ErrorCode == "TOKEN_NOT_TRADABLE" ||
		strings.Contains(strings.ToLower(msg), "no route"):
		return fmt.Errorf("%w: %s", ports.ErrNoRoute, msg)
	case status >= 500:
		return fmt.Errorf("%w: http %d: %s", ports.ErrServiceUnavailable, status, msg)
	case status == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ports.ErrInvalidRequest, msg)
	default:
		return fmt.Errorf("%w: http %d: %s", ports.ErrQuoteFailed, status, msg)
	}
}

// ToBaseUnits converts a UI amount to an integer string of base units,
// truncating any remainder.
func ToBaseUnits(amount float64, decimals uint8) string {
	return decimal.NewFromFloat(amount).Shift(int32(decimals)).Truncate(0).String()
}

// FromBaseUnits converts an integer string of base units to a UI amount.
func FromBaseUnits(raw string, decimals uint8) (float64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, err
	}
	return d.Shift(-int32(decimals)).InexactFloat64(), nil
}
