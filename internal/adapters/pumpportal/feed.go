package pumpportal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"

	"solSniperBot/internal/domain"
	"solSniperBot/internal/ports"
)

const (
	// DefaultURL is the public PumpPortal data stream.
	DefaultURL = "wss://pumpportal.fun/api/data"

	subscribeNewToken = "subscribeNewToken"
)

// Config holds feed connection parameters.
type Config struct {
	URL                  string
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int // consecutive failed reconnects before giving up
	HandshakeTimeout     time.Duration
	WriteTimeout         time.Duration
}

// Feed streams pump.fun token creations from PumpPortal.
type Feed struct {
	cfg    Config
	logger ports.Logger
	now    func() time.Time

	connected atomic.Bool
	received  atomic.Int64
}

var _ ports.AssetFeed = (*Feed)(nil)

// New creates a PumpPortal feed.
func New(cfg Config, logger ports.Logger) (*Feed, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for PumpPortal feed")
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 5
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Feed{cfg: cfg, logger: logger, now: time.Now}, nil
}

// Connected reports whether a subscribed connection is live.
func (f *Feed) Connected() bool {
	return f.connected.Load()
}

// Received returns the number of launch events delivered so far.
func (f *Feed) Received() int64 {
	return f.received.Load()
}

// Run connects, subscribes and delivers launch events to handler until ctx is
// done. A dropped connection is retried every ReconnectDelay; after
// MaxReconnectAttempts consecutive failures Run returns ErrFeedExhausted.
// A successful subscription resets the attempt count.
func (f *Feed) Run(ctx context.Context, handler ports.EventHandler) error {
	const op = "PumpPortalFeed.Run"
	if handler == nil {
		return fmt.Errorf("%s: %w: nil handler", op, ports.ErrInvalidRequest)
	}

	first := true
	for {
		tries := uint(f.cfg.MaxReconnectAttempts)
		if first {
			tries++
		} else if !sleepCtx(ctx, f.cfg.ReconnectDelay) {
			return nil
		}
		first = false

		conn, err := backoff.Retry(ctx, func() (*websocket.Conn, error) {
			return f.connect(ctx)
		},
			backoff.WithBackOff(backoff.NewConstantBackOff(f.cfg.ReconnectDelay)),
			backoff.WithMaxTries(tries),
			backoff.WithNotify(func(err error, next time.Duration) {
				f.logger.Warn(ctx, op+": connection failed, retrying", map[string]interface{}{
					"error": err.Error(),
					"retry": next.String(),
				})
			}),
		)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			f.logger.Error(ctx, err, op+": giving up on feed", map[string]interface{}{"attempts": tries})
			return fmt.Errorf("%s: %w: %v", op, ports.ErrFeedExhausted, err)
		}

		err = f.read(ctx, conn, handler)
		if ctx.Err() != nil {
			return nil
		}
		f.logger.Warn(ctx, op+": connection lost, reconnecting", map[string]interface{}{
			"error": errString(err),
			"delay": f.cfg.ReconnectDelay.String(),
		})
	}
}

// connect dials the stream and sends the token-creation subscription.
func (f *Feed) connect(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: f.cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	_ = conn.SetWriteDeadline(f.now().Add(f.cfg.WriteTimeout))
	if err := conn.WriteJSON(map[string]string{"method": subscribeNewToken}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("write subscribe: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Time{})

	f.logger.Info(ctx, "PumpPortalFeed: connected and subscribed to new tokens", map[string]interface{}{"url": f.cfg.URL})
	return conn, nil
}

// read pumps messages until the connection fails or ctx is done.
func (f *Feed) read(ctx context.Context, conn *websocket.Conn, handler ports.EventHandler) error {
	f.connected.Store(true)

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		f.connected.Store(false)
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		event, ok := f.parse(data)
		if !ok {
			continue
		}
		f.received.Add(1)
		handler(ctx, event)
	}
}

// launchMessage is a PumpPortal token creation notification.
type launchMessage struct {
	Signature          string  `json:"signature"`
	Mint               string  `json:"mint"`
	TraderPublicKey    string  `json:"traderPublicKey"`
	TxType             string  `json:"txType"`
	Name               string  `json:"name"`
	Symbol             string  `json:"symbol"`
	VSolInBondingCurve float64 `json:"vSolInBondingCurve"`
	MarketCapSol       float64 `json:"marketCapSol"`
}

// parse turns a frame into an event. Subscription acks, malformed frames and
// messages without mint and signature are skipped.
func (f *Feed) parse(data []byte) (*domain.AssetEvent, bool) {
	var msg launchMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		f.logger.Debug(context.Background(), "PumpPortalFeed: ignoring malformed message", map[string]interface{}{"error": err.Error()})
		return nil, false
	}
	if msg.Mint == "" || msg.Signature == "" {
		return nil, false
	}
	return &domain.AssetEvent{
		AssetID:      msg.Mint,
		Signature:    msg.Signature,
		Symbol:       msg.Symbol,
		Name:         msg.Name,
		Creator:      msg.TraderPublicKey,
		LiquiditySol: msg.VSolInBondingCurve,
		MarketCapSol: msg.MarketCapSol,
		Source:       domain.SourcePumpFun,
		ReceivedAt:   f.now(),
	}, true
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
