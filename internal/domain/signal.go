package domain

import "time"

type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
	DirectionNone Direction = "NONE"
)

// Potential is the signed pressure score computed for one reference price.
// Positive totals push towards SELL, negative towards BUY.
type Potential struct {
	LevelComponent float64 `json:"level_component"`
	TrendComponent float64 `json:"trend_component"`
	RSIComponent   float64 `json:"rsi_component"`
	Total          float64 `json:"total"`
}

// Indicators is the snapshot of indicator values backing one evaluation.
type Indicators struct {
	ATR         float64 `json:"atr"`
	AvgATR      float64 `json:"avg_atr"`
	RSI         float64 `json:"rsi"`
	EMA         float64 `json:"ema"`
	ADX         float64 `json:"adx"`
	VolumeRatio float64 `json:"volume_ratio"`
}

// Signal is the outcome of one evaluation cycle. It is created once and
// never mutated; a NONE direction carries the reason in Reason.
type Signal struct {
	Instrument string     `json:"instrument"`
	Direction  Direction  `json:"direction"`
	Confidence float64    `json:"confidence"`
	EntryPrice float64    `json:"entry_price"`
	StopLoss   float64    `json:"stop_loss"`
	TakeProfit float64    `json:"take_profit"`
	Size       float64    `json:"size"`
	Potential  Potential  `json:"potential"`
	Indicators Indicators `json:"indicators"`
	Reason     string     `json:"reason,omitempty"`
	Time       time.Time  `json:"time"`
}

// Actionable reports whether the signal requests an order.
func (s *Signal) Actionable() bool {
	return s.Direction == DirectionBuy || s.Direction == DirectionSell
}
