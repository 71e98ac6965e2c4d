package domain

// AccountStats is the aggregated view exposed to the dashboard and
// notification layers.
type AccountStats struct {
	Instrument    string  `json:"instrument"`
	Balance       float64 `json:"balance"`
	DrawdownPct   float64 `json:"drawdown_pct"`
	Blocked       bool    `json:"blocked"`
	TotalTrades   int     `json:"total_trades"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinRate       float64 `json:"win_rate"`
	NetProfit     float64 `json:"net_profit"`
	OpenPositions int     `json:"open_positions"`
}
