package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solSniperBot/config"
	"solSniperBot/internal/adapters/jupiter"
	"solSniperBot/internal/adapters/logger"
	"solSniperBot/internal/adapters/solanarpc"
	"solSniperBot/internal/adapters/sqlite"
	"solSniperBot/internal/app"
	"solSniperBot/internal/domain"
	"solSniperBot/internal/risk"
)

// sellall closes every open position at market through the normal sell path.
func main() {
	asset := flag.String("token", "", "sell only this token mint instead of every open position")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Initialize Repository, Wallet and Swap Execution
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer repo.Close()

	wallet, err := solanarpc.NewWallet(solanarpc.WalletConfig{RPCURL: cfg.RPCURL, PrivateKey: cfg.PrivateKey, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize wallet: %v", err)
	}
	jup, err := jupiter.NewClient(jupiter.Config{BaseURL: cfg.JupiterAPIURL, Timeout: cfg.ExternalTimeout}, wallet, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Jupiter client: %v", err)
	}
	executor, err := solanarpc.NewExecutor(solanarpc.ExecutorConfig{}, wallet, jup, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize swap executor: %v", err)
	}

	// 4. Initialize Pipeline
	admission, err := risk.NewAdmissionController(risk.AdmissionConfig{
		MaxDailyLossSol: cfg.MaxDailyLossSol,
		TradeAmountSol:  cfg.TradeAmountSol,
		MaxPositions:    cfg.MaxPositions,
	}, risk.NewRiskBudget(time.Now), wallet, repo, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize admission controller: %v", err)
	}
	pipeline, err := app.NewPipeline(app.PipelineConfig{
		TradeAmountSol:  cfg.TradeAmountSol,
		SlippageBps:     cfg.MaxSlippageBps,
		ExternalTimeout: cfg.ExternalTimeout,
		ConfirmTimeout:  cfg.ConfirmTimeout,
	}, appLogger, admission, jup, executor, wallet, repo)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize execution pipeline: %v", err)
	}

	// 5. Sell
	var results []*domain.ExecutionResult
	if *asset != "" {
		results = append(results, pipeline.Sell(ctx, *asset, domain.CloseReasonManual))
	} else {
		open, err := repo.ListOpen(ctx)
		if err != nil {
			log.Fatalf("FATAL: Failed to list open positions: %v", err)
		}
		if len(open) == 0 {
			fmt.Println("No open positions.")
			return
		}
		fmt.Printf("Selling %d open position(s)...\n", len(open))
		for _, pos := range open {
			if ctx.Err() != nil {
				break
			}
			results = append(results, pipeline.Sell(ctx, pos.AssetID, domain.CloseReasonManual))
		}
	}

	failed := 0
	for _, res := range results {
		if res.Success {
			fmt.Printf("SOLD   %s  %.6f SOL  pnl %+.2f%%  tx %s\n", res.AssetID, res.AmountSol, res.PnLPercent, res.TxRef)
			continue
		}
		failed++
		fmt.Printf("FAILED %s  at %s: %s\n", res.AssetID, res.FailedAt, res.Error)
	}
	if failed > 0 {
		flush()
		os.Exit(1)
	}
}
