package domain

// DailyStat aggregates ledger activity for one UTC calendar day.
type DailyStat struct {
	Date        string  `json:"date"` // YYYY-MM-DD
	TradesCount int     `json:"tradesCount"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	TotalPnLSol float64 `json:"totalPnlSol"`
	VolumeSol   float64 `json:"volumeSol"`
}

// DailyStatDelta is added onto the day's row; fields are increments, never totals.
type DailyStatDelta struct {
	Trades    int
	Wins      int
	Losses    int
	PnLSol    float64
	VolumeSol float64
}
