package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"solSniperBot/internal/domain"
)

var (
	tradeHeader    = []string{"id", "created_at", "token_address", "symbol", "action", "amount_sol", "amount_tokens", "price_per_token", "status", "tx_signature", "reason"}
	positionHeader = []string{"id", "created_at", "closed_at", "token_address", "symbol", "status", "entry_price", "amount_tokens", "amount_sol_spent", "current_price", "pnl_percent", "entry_reason", "exit_reason"}
)

// WriteTradesCSV writes trades with a header row.
func WriteTradesCSV(w io.Writer, trades []*domain.Trade) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(tradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		if err := writer.Write([]string{
			strconv.FormatInt(t.ID, 10),
			formatTime(t.CreatedAt),
			t.AssetID,
			t.Symbol,
			string(t.Side),
			formatFloat(t.AmountSol),
			formatFloat(t.AmountTokens),
			formatFloat(t.Price),
			string(t.Status),
			t.TxRef,
			t.Reason,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WritePositionsCSV writes positions with a header row. Open positions have
// an empty closed_at.
func WritePositionsCSV(w io.Writer, positions []*domain.Position) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(positionHeader); err != nil {
		return err
	}
	for _, p := range positions {
		if err := writer.Write([]string{
			strconv.FormatInt(p.ID, 10),
			formatTime(p.CreatedAt),
			formatTime(p.ClosedAt),
			p.AssetID,
			p.Symbol,
			string(p.Status),
			formatFloat(p.EntryPrice),
			formatFloat(p.AmountTokens),
			formatFloat(p.AmountSolSpent),
			formatFloat(p.CurrentPrice),
			strconv.FormatFloat(p.PnLPercent, 'f', 2, 64),
			p.EntryReason,
			string(p.ExitReason),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// CreateFile creates filename and its parent directories.
func CreateFile(filename string) (*os.File, error) {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return os.Create(filename)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
