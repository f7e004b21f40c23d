package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"time"

	"solSniperBot/config"
	"solSniperBot/internal/adapters/binanceclient"
	"solSniperBot/internal/adapters/dexscreener"
	"solSniperBot/internal/adapters/jupiter"
	"solSniperBot/internal/adapters/logger"
	"solSniperBot/internal/adapters/pumpportal"
	"solSniperBot/internal/adapters/solanarpc"
	"solSniperBot/internal/adapters/sqlite"
	"solSniperBot/internal/api"
	"solSniperBot/internal/app"
	"solSniperBot/internal/ingest"
	"solSniperBot/internal/monitor"
	"solSniperBot/internal/risk"
	"solSniperBot/internal/strategy"
)

func main() {
	ctx := context.Background()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}
	if err := cfg.RequireSigner(); err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	// 2. Initialize Logger
	appLogger, flush, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer flush()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()
	appLogger.Info(ctx, "Database repository initialized", map[string]interface{}{"path": cfg.DBPath})

	// 4. Initialize Wallet and Swap Execution (Solana RPC + Jupiter)
	wallet, err := solanarpc.NewWallet(solanarpc.WalletConfig{
		RPCURL:     cfg.RPCURL,
		PrivateKey: cfg.PrivateKey,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize wallet")
		log.Fatalf("FATAL: Failed to initialize wallet: %v", err)
	}
	jup, err := jupiter.NewClient(jupiter.Config{
		BaseURL: cfg.JupiterAPIURL,
		Timeout: cfg.ExternalTimeout,
	}, wallet, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Jupiter client")
		log.Fatalf("FATAL: Failed to initialize Jupiter client: %v", err)
	}
	executor, err := solanarpc.NewExecutor(solanarpc.ExecutorConfig{}, wallet, jup, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize swap executor")
		log.Fatalf("FATAL: Failed to initialize swap executor: %v", err)
	}
	appLogger.Info(ctx, "Wallet and swap execution initialized", map[string]interface{}{"wallet": wallet.PublicKey()})

	// 5. Initialize Market Data (DexScreener + Binance SOL price)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		UseTestnet: cfg.BinanceTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := binanceClient.Ping(pingCtx); err != nil {
		appLogger.Warn(ctx, "Binance unreachable, SOL price will fall back", map[string]interface{}{"fallbackSolUsd": cfg.FallbackSolUSD})
	}
	cancel()
	market, err := dexscreener.NewClient(dexscreener.Config{
		BaseURL:        cfg.DexScreenerAPIURL,
		Timeout:        cfg.ExternalTimeout,
		SolPriceSymbol: cfg.SolPriceSymbol,
		FallbackSolUSD: cfg.FallbackSolUSD,
	}, binanceClient, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize DexScreener client")
		log.Fatalf("FATAL: Failed to initialize DexScreener client: %v", err)
	}

	// 6. Initialize Launch Feed (PumpPortal)
	feed, err := pumpportal.New(pumpportal.Config{
		URL:                  cfg.FeedWSURL,
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	}, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize launch feed")
		log.Fatalf("FATAL: Failed to initialize launch feed: %v", err)
	}

	// 7. Initialize Risk Controls
	budget := risk.NewRiskBudget(time.Now)
	admission, err := risk.NewAdmissionController(risk.AdmissionConfig{
		MaxDailyLossSol: cfg.MaxDailyLossSol,
		TradeAmountSol:  cfg.TradeAmountSol,
		MaxPositions:    cfg.MaxPositions,
	}, budget, wallet, repo, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize admission controller")
		log.Fatalf("FATAL: Failed to initialize admission controller: %v", err)
	}
	scorer, err := risk.NewScorer(risk.ScorerConfig{
		MinLiquiditySol: cfg.MinLiquiditySol,
		MinScore:        cfg.MinSafetyScore,
	}, repo, repo, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize risk scorer")
		log.Fatalf("FATAL: Failed to initialize risk scorer: %v", err)
	}

	// 8. Initialize Execution Pipeline, Ingestion and Exit Monitor
	pipeline, err := app.NewPipeline(app.PipelineConfig{
		TradeAmountSol:  cfg.TradeAmountSol,
		SlippageBps:     cfg.MaxSlippageBps,
		ExternalTimeout: cfg.ExternalTimeout,
		ConfirmTimeout:  cfg.ConfirmTimeout,
	}, appLogger, admission, jup, executor, wallet, repo)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize execution pipeline")
		log.Fatalf("FATAL: Failed to initialize execution pipeline: %v", err)
	}
	ingestor, err := ingest.New(ingest.Config{
		Cooldown:      cfg.BuyCooldown,
		Workers:       int64(cfg.IngestWorkers),
		DedupCapacity: cfg.DedupCapacity,
		EnrichTimeout: cfg.ExternalTimeout,
	}, feed, market, scorer, pipeline, repo, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize ingestor")
		log.Fatalf("FATAL: Failed to initialize ingestor: %v", err)
	}
	rules, err := strategy.New(strategy.Config{
		StopLossPercent:   cfg.StopLossPercent,
		TakeProfitPercent: cfg.TakeProfitPercent,
		MaxHold:           cfg.MaxHold,
	}, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize exit strategy")
		log.Fatalf("FATAL: Failed to initialize exit strategy: %v", err)
	}
	exits, err := monitor.New(monitor.Config{
		Interval:       cfg.MonitorInterval,
		ProbeAmountSol: cfg.ProbeAmountSol,
		SlippageBps:    cfg.MaxSlippageBps,
		Timeout:        cfg.ExternalTimeout,
		CronLogger:     logger.NewCronLogger(appLogger),
	}, repo, jup, wallet, rules, pipeline, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize exit monitor")
		log.Fatalf("FATAL: Failed to initialize exit monitor: %v", err)
	}

	// 9. Initialize Agent and Operator API
	agent, err := app.NewAgent(app.AgentConfig{
		TradeAmountSol:    cfg.TradeAmountSol,
		MaxPositions:      cfg.MaxPositions,
		StopLossPercent:   cfg.StopLossPercent,
		TakeProfitPercent: cfg.TakeProfitPercent,
		AutoStartFeed:     cfg.AutoStartFeed,
	}, appLogger, wallet, repo, pipeline, ingestor, scorer, exits, admission)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize agent")
		log.Fatalf("FATAL: Failed to initialize agent: %v", err)
	}
	server, err := api.NewServer(api.ServerConfig{Port: cfg.Port}, api.NewHandler(agent, appLogger), appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize operator API")
		log.Fatalf("FATAL: Failed to initialize operator API: %v", err)
	}

	balanceCtx, cancel := context.WithTimeout(ctx, cfg.ExternalTimeout)
	balance, err := wallet.Balance(balanceCtx)
	cancel()
	switch {
	case err != nil:
		appLogger.Warn(ctx, "Could not read wallet balance at startup", map[string]interface{}{"error": err.Error()})
	case balance < cfg.TradeAmountSol:
		appLogger.Warn(ctx, "Wallet balance below trade size, buys will be denied until funded", map[string]interface{}{
			"balance":     balance,
			"tradeAmount": cfg.TradeAmountSol,
			"wallet":      wallet.PublicKey(),
		})
	default:
		appLogger.Info(ctx, "Wallet funded", map[string]interface{}{"balance": balance})
	}

	// 10. Start the Agent
	if err := agent.Start(ctx, server); err != nil {
		appLogger.Error(ctx, err, "Agent exited with error")
		flush()
		log.Fatalf("FATAL: Agent exited with error: %v", err)
	}

	appLogger.Info(ctx, "Application finished gracefully.")
}
