package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"solSniperBot/config"
	"solSniperBot/internal/adapters/logger"
	"solSniperBot/internal/adapters/sqlite"
	"solSniperBot/internal/utils"
)

// export dumps the trade or position ledger as CSV.
func main() {
	what := flag.String("what", "trades", "trades or positions")
	limit := flag.Int("limit", 1000, "maximum rows, newest first")
	out := flag.String("out", "", "output file (default stdout)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger, flush, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer flush()
	ctx := context.Background()

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer repo.Close()

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := utils.CreateFile(*out)
		if err != nil {
			log.Fatalf("FATAL: Failed to create %s: %v", *out, err)
		}
		defer f.Close()
		w = f
	}

	var rows int
	switch *what {
	case "trades":
		trades, err := repo.RecentTrades(ctx, *limit)
		if err != nil {
			log.Fatalf("FATAL: Failed to load trades: %v", err)
		}
		err = utils.WriteTradesCSV(w, trades)
		rows = len(trades)
		if err != nil {
			log.Fatalf("FATAL: Failed to write CSV: %v", err)
		}
	case "positions":
		positions, err := repo.ListAll(ctx, *limit)
		if err != nil {
			log.Fatalf("FATAL: Failed to load positions: %v", err)
		}
		err = utils.WritePositionsCSV(w, positions)
		rows = len(positions)
		if err != nil {
			log.Fatalf("FATAL: Failed to write CSV: %v", err)
		}
	default:
		log.Fatalf("FATAL: unknown -what %q (trades or positions)", *what)
	}

	if *out != "" {
		appLogger.Info(ctx, "Saved to", map[string]interface{}{"filename": *out, "rows": rows})
		fmt.Fprintf(os.Stderr, "wrote %d %s to %s\n", rows, *what, *out)
	}
}
