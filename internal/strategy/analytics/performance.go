package analytics

import (
	"sort"
	"time"

	"solSniperBot/internal/domain"
)

// PerformanceMetrics summarizes realized results over a range of days.
type PerformanceMetrics struct {
	Days          int     `json:"days"`
	TotalTrades   int     `json:"totalTrades"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinRate       float64 `json:"winRate"` // wins / (wins + losses), 0..1
	TotalPnLSol   float64 `json:"totalPnlSol"`
	TotalVolume   float64 `json:"totalVolumeSol"`
	AverageDayPnL float64 `json:"averageDayPnlSol"`
	BestDay       *DayPnL `json:"bestDay,omitempty"`
	WorstDay      *DayPnL `json:"worstDay,omitempty"`

	// MaxDrawdownSol is the largest peak-to-trough fall of cumulative PnL.
	MaxDrawdownSol float64       `json:"maxDrawdownSol"`
	EquityCurve    []EquityPoint `json:"equityCurve"`
}

// DayPnL is the realized PnL of a single day.
type DayPnL struct {
	Date   string  `json:"date"`
	PnLSol float64 `json:"pnlSol"`
}

// EquityPoint represents a point on the cumulative PnL curve
type EquityPoint struct {
	Date     time.Time `json:"date"`
	Value    float64   `json:"value"`
	Drawdown float64   `json:"drawdown"`
}

// AnalyzePerformance calculates metrics from daily stats rows in any order.
func AnalyzePerformance(stats []*domain.DailyStat) *PerformanceMetrics {
	metrics := &PerformanceMetrics{
		EquityCurve: make([]EquityPoint, 0, len(stats)),
	}
	if len(stats) == 0 {
		return metrics
	}

	// Oldest first
	days := make([]*domain.DailyStat, 0, len(stats))
	for _, s := range stats {
		if s != nil {
			days = append(days, s)
		}
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].Date < days[j].Date
	})

	var cumulative, peak float64
	for _, day := range days {
		metrics.Days++
		metrics.TotalTrades += day.TradesCount
		metrics.Wins += day.Wins
		metrics.Losses += day.Losses
		metrics.TotalPnLSol += day.TotalPnLSol
		metrics.TotalVolume += day.VolumeSol

		if metrics.BestDay == nil || day.TotalPnLSol > metrics.BestDay.PnLSol {
			metrics.BestDay = &DayPnL{Date: day.Date, PnLSol: day.TotalPnLSol}
		}
		if metrics.WorstDay == nil || day.TotalPnLSol < metrics.WorstDay.PnLSol {
			metrics.WorstDay = &DayPnL{Date: day.Date, PnLSol: day.TotalPnLSol}
		}

		// Update drawdown tracking
		cumulative += day.TotalPnLSol
		if cumulative > peak {
			peak = cumulative
		}
		drawdown := peak - cumulative
		if drawdown > metrics.MaxDrawdownSol {
			metrics.MaxDrawdownSol = drawdown
		}

		date, _ := time.Parse(domain.DateLayout, day.Date)
		metrics.EquityCurve = append(metrics.EquityCurve, EquityPoint{
			Date:     date,
			Value:    cumulative,
			Drawdown: drawdown,
		})
	}

	if closed := metrics.Wins + metrics.Losses; closed > 0 {
		metrics.WinRate = float64(metrics.Wins) / float64(closed)
	}
	if metrics.Days > 0 {
		metrics.AverageDayPnL = metrics.TotalPnLSol / float64(metrics.Days)
	}
	return metrics
}
