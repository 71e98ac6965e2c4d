package domain

import "time"

type TradeStatus string

const (
	StatusPending   TradeStatus = "PENDING"
	StatusOpen      TradeStatus = "OPEN"
	StatusClosed    TradeStatus = "CLOSED"
	StatusCancelled TradeStatus = "CANCELLED"
)

// Terminal reports whether the status cannot transition any further.
func (s TradeStatus) Terminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

// Trade is a virtual position tracked by the ledger. It snapshots the
// originating signal at creation time.
type Trade struct {
	ID             int64       `json:"id"`
	Instrument     string      `json:"instrument"`
	Direction      Direction   `json:"direction"`
	EntryPrice     float64     `json:"entry_price"`
	ExitPrice      float64     `json:"exit_price"`
	Size           float64     `json:"size"`
	StopLoss       float64     `json:"stop_loss"`
	TakeProfit     float64     `json:"take_profit"`
	Status         TradeStatus `json:"status"`
	ProfitLoss     float64     `json:"profit_loss"`
	Commission     float64     `json:"commission"`
	Confidence     float64     `json:"confidence"`
	PotentialTotal float64     `json:"potential_total"`
	OpenedAt       time.Time   `json:"opened_at"`
	ClosedAt       time.Time   `json:"closed_at"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Account is the virtual balance sheet for one instrument. Created on
// first reference, never destroyed.
type Account struct {
	Instrument     string    `json:"instrument"`
	InitialBalance float64   `json:"initial_balance"`
	CurrentBalance float64   `json:"current_balance"`
	MaxBalance     float64   `json:"max_balance"`
	DrawdownPct    float64   `json:"drawdown_pct"`
	Blocked        bool      `json:"blocked"`
	UpdatedAt      time.Time `json:"updated_at"`
}

const (
	EventOpened = "OPENED"
	EventClosed = "CLOSED"
)

// TradeEvent reports a state change produced by a ledger tick.
type TradeEvent struct {
	Action     string  `json:"action"`
	TradeID    int64   `json:"trade_id"`
	Instrument string  `json:"instrument"`
	Price      float64 `json:"price"`
	Profit     float64 `json:"profit,omitempty"`
}
