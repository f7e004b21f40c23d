package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"solSniperBot/internal/app"
	"solSniperBot/internal/domain"
	"solSniperBot/internal/ports"
)

const (
	defaultTradesLimit    = 100
	defaultPositionsLimit = 500
	defaultStatsDays      = 30
)

// Operator is the agent surface exposed over HTTP.
type Operator interface {
	Status(ctx context.Context) (*app.Dashboard, error)
	RecentTrades(ctx context.Context, limit int) ([]*domain.Trade, error)
	Positions(ctx context.Context, limit int) ([]*domain.Position, error)
	Stats(ctx context.Context, days int) (*app.StatsReport, error)
	Evaluate(ctx context.Context, assetID string) *app.EvaluationReport
	ManualBuy(ctx context.Context, assetID string) *app.ManualBuyResult
	Sell(ctx context.Context, assetID string) *domain.ExecutionResult
	StartFeed(ctx context.Context) error
	StopFeed()
	FeedRunning() bool
	StartExits(ctx context.Context) error
	StopExits()
}

var _ Operator = (*app.Agent)(nil)

// Handler serves the operator API.
type Handler struct {
	Operator Operator
	Logger   ports.Logger
	now      func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(op Operator, logger ports.Logger) *Handler {
	return &Handler{Operator: op, Logger: logger, now: time.Now}
}

type tokenRequest struct {
	TokenAddress string `json:"tokenAddress"`
}

// Register mounts the routes under /api.
func (h *Handler) Register(r *gin.Engine) {
	group := r.Group("/api")
	group.GET("/health", h.health)
	group.GET("/dashboard", h.dashboard)
	group.GET("/trades", h.listTrades)
	group.GET("/positions", h.listPositions)
	group.GET("/stats", h.stats)

	group.POST("/evaluate", h.evaluate)
	group.POST("/buy", h.buy)
	group.POST("/sell", h.sell)

	group.POST("/monitor/start", h.startFeed)
	group.POST("/monitor/stop", h.stopFeed)
	group.POST("/exits/start", h.startExits)
	group.POST("/exits/stop", h.stopExits)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": h.now().UTC().Format(time.RFC3339)})
}

func (h *Handler) dashboard(c *gin.Context) {
	d, err := h.Operator.Status(c.Request.Context())
	if err != nil {
		h.Logger.Error(c.Request.Context(), err, "API: dashboard failed")
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, d, nil)
}

func (h *Handler) listTrades(c *gin.Context) {
	limit := intQuery(c, "limit", defaultTradesLimit)
	trades, err := h.Operator.RecentTrades(c.Request.Context(), limit)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, trades, map[string]any{"limit": limit, "count": len(trades)})
}

func (h *Handler) listPositions(c *gin.Context) {
	limit := intQuery(c, "limit", defaultPositionsLimit)
	positions, err := h.Operator.Positions(c.Request.Context(), limit)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, positions, map[string]any{"limit": limit, "count": len(positions)})
}

func (h *Handler) stats(c *gin.Context) {
	days := intQuery(c, "days", defaultStatsDays)
	report, err := h.Operator.Stats(c.Request.Context(), days)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, report, map[string]any{"days": days})
}

func (h *Handler) evaluate(c *gin.Context) {
	asset, ok := tokenAddress(c)
	if !ok {
		return
	}
	Ok(c, h.Operator.Evaluate(c.Request.Context(), asset), nil)
}

func (h *Handler) buy(c *gin.Context) {
	asset, ok := tokenAddress(c)
	if !ok {
		return
	}
	h.Logger.Info(c.Request.Context(), "API: manual buy requested", map[string]interface{}{"asset": asset})
	Ok(c, h.Operator.ManualBuy(c.Request.Context(), asset), nil)
}

func (h *Handler) sell(c *gin.Context) {
	asset, ok := tokenAddress(c)
	if !ok {
		return
	}
	h.Logger.Info(c.Request.Context(), "API: manual sell requested", map[string]interface{}{"asset": asset})
	Ok(c, h.Operator.Sell(c.Request.Context(), asset), nil)
}

func (h *Handler) startFeed(c *gin.Context) {
	if err := h.Operator.StartFeed(c.Request.Context()); err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"status": "started"}, nil)
}

func (h *Handler) stopFeed(c *gin.Context) {
	h.Operator.StopFeed()
	Ok(c, gin.H{"status": "stopped"}, nil)
}

func (h *Handler) startExits(c *gin.Context) {
	if err := h.Operator.StartExits(c.Request.Context()); err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"status": "started"}, nil)
}

func (h *Handler) stopExits(c *gin.Context) {
	h.Operator.StopExits()
	Ok(c, gin.H{"status": "stopped"}, nil)
}

// tokenAddress binds the request body and writes a 400 when the address is missing.
func tokenAddress(c *gin.Context) (string, bool) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.TokenAddress) == "" {
		Error(c, http.StatusBadRequest, "tokenAddress required", nil)
		return "", false
	}
	return strings.TrimSpace(req.TokenAddress), true
}
