package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"solSniperBot/internal/ports"
)

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int
	Debug           bool
	ShutdownTimeout time.Duration
}

// Server runs the operator API until its context is cancelled.
type Server struct {
	cfg    ServerConfig
	srv    *http.Server
	logger ports.Logger
}

// NewEngine builds the gin engine with recovery, CORS and request logging.
func NewEngine(h *Handler, logger ports.Logger, debug bool) *gin.Engine {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(requestLogger(logger))
	h.Register(engine)
	return engine
}

// NewServer creates the API server for the given handler.
func NewServer(cfg ServerConfig, h *Handler, logger ports.Logger) (*Server, error) {
	if h == nil || h.Operator == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for API server")
	}
	if h.Logger == nil {
		h.Logger = logger
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	return &Server{
		cfg: cfg,
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           NewEngine(h, logger, cfg.Debug),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}, nil
}

// Handler exposes the routed engine.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	const op = "APIServer.Run"
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, op+": operator API listening", map[string]interface{}{"addr": s.srv.Addr})
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, op+": graceful shutdown failed", map[string]interface{}{"error": err.Error()})
		return nil
	}
	s.logger.Info(ctx, op+": operator API stopped")
	return nil
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestLogger(logger ports.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn(c.Request.Context(), "API: request failed", fields)
			return
		}
		logger.Debug(c.Request.Context(), "API: request served", fields)
	}
}
