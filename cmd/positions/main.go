package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"solSniperBot/config"
	"solSniperBot/internal/adapters/jupiter"
	"solSniperBot/internal/adapters/logger"
	"solSniperBot/internal/adapters/solanarpc"
	"solSniperBot/internal/adapters/sqlite"
	"solSniperBot/internal/app"
	"solSniperBot/internal/domain"
	"solSniperBot/internal/monitor"
	"solSniperBot/internal/risk"
	"solSniperBot/internal/strategy"
)

// positions prints the wallet balance and every open position with a live
// valuation and the exit rule it would trigger. Nothing is sold.
func main() {
	all := flag.Bool("all", false, "also list every non-zero token held by the wallet")
	offline := flag.Bool("offline", false, "skip live valuation and only read the ledger")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger, flush, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer flush()
	ctx := context.Background()

	// 3. Initialize Repository
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer repo.Close()

	open, err := repo.ListOpen(ctx)
	if err != nil {
		log.Fatalf("FATAL: Failed to list open positions: %v", err)
	}

	if *offline {
		printLedger(open)
		return
	}
	if err := cfg.RequireSigner(); err != nil {
		log.Fatalf("FATAL: %v (use -offline to read the ledger only)", err)
	}

	// 4. Initialize Wallet, Quotes and Exit Rules
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
	rules, err := strategy.New(strategy.Config{
		StopLossPercent:   cfg.StopLossPercent,
		TakeProfitPercent: cfg.TakeProfitPercent,
		MaxHold:           cfg.MaxHold,
	}, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize exit strategy: %v", err)
	}
	exits, err := monitor.New(monitor.Config{
		Interval:       cfg.MonitorInterval,
		ProbeAmountSol: cfg.ProbeAmountSol,
		SlippageBps:    cfg.MaxSlippageBps,
		Timeout:        cfg.ExternalTimeout,
	}, repo, jup, wallet, rules, pipeline, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize exit monitor: %v", err)
	}

	// 5. Report
	balance, err := wallet.Balance(ctx)
	if err != nil {
		fmt.Printf("Wallet %s  balance unavailable: %v\n", wallet.PublicKey(), err)
	} else {
		fmt.Printf("Wallet %s  balance %.4f SOL\n", wallet.PublicKey(), balance)
	}
	fmt.Printf("Open positions: %d\n\n", len(open))

	if len(open) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TOKEN\tSPENT SOL\tENTRY\tPRICE\tPNL%\tHELD\tEXIT")
		for _, pos := range open {
			v, err := exits.Value(ctx, pos)
			if err != nil {
				fmt.Fprintf(w, "%s\t%.4f\t%.10f\t?\t?\t%s\terror: %v\n", label(pos), pos.AmountSolSpent, pos.EntryPrice, held(pos), err)
				continue
			}
			price, pnl := "?", "?"
			if v.PriceKnown {
				price = fmt.Sprintf("%.10f", v.Price)
				pnl = fmt.Sprintf("%+.2f", strategy.PnLPercent(pos.EntryPrice, v.Price))
			}
			exit := "-"
			if should, reason := rules.ShouldClosePosition(pos, v); should {
				exit = string(reason)
			}
			fmt.Fprintf(w, "%s\t%.4f\t%.10f\t%s\t%s\t%s\t%s\n", label(pos), pos.AmountSolSpent, pos.EntryPrice, price, pnl, held(pos), exit)
		}
		_ = w.Flush()
	}

	if *all {
		holdings, err := wallet.Holdings(ctx)
		if err != nil {
			log.Fatalf("FATAL: Failed to list token holdings: %v", err)
		}
		fmt.Printf("\nToken holdings: %d\n", len(holdings))
		for _, h := range holdings {
			fmt.Printf("  %s  %s\n", h.Mint, fmt.Sprint(h.Amount))
		}
	}
}

func printLedger(open []*domain.Position) {
	fmt.Printf("Open positions: %d\n", len(open))
	for _, p := range open {
		fmt.Printf("- %s: %.4f SOL, created: %s\n", label(p), p.AmountSolSpent, p.CreatedAt.Format(time.RFC3339))
	}
}

func label(p *domain.Position) string {
	if p.Symbol != "" {
		return p.Symbol
	}
	if len(p.AssetID) > 8 {
		return p.AssetID[:8]
	}
	return p.AssetID
}

func held(p *domain.Position) string {
	return p.Age(time.Now()).Truncate(time.Second).String()
}
