package domain

import "context"

type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// MarketData supplies candle series and current prices. Implementations
// issue bounded, cancellable calls; the engine itself never blocks on I/O.
type MarketData interface {
	GetCandles(ctx context.Context, instrument, interval string, limit int) ([]Candle, error)
	GetCurrentPrice(ctx context.Context, instrument string) (float64, error)
	OnPriceUpdate(callback func(instrument string, price float64))
	Subscribe(instruments []string) error
}

// AccountRepository defines storage operations for virtual accounts.
type AccountRepository interface {
	SaveAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, instrument string) (*Account, error)
	ListAccounts(ctx context.Context) ([]*Account, error)
}

// TradeRepository defines storage operations for virtual trades.
type TradeRepository interface {
	InsertTrade(ctx context.Context, trade *Trade) error
	UpdateTrade(ctx context.Context, trade *Trade) error
	ListTrades(ctx context.Context, instrument string, limit int) ([]*Trade, error)
	ListActiveTrades(ctx context.Context) ([]*Trade, error)
}

// SignalStateRepository persists the last emitted direction per
// instrument and strategy mode for change detection.
type SignalStateRepository interface {
	SaveSignalState(ctx context.Context, instrument, mode string, direction Direction) error
	GetSignalState(ctx context.Context, instrument, mode string) (Direction, error)
}

// EventLogger appends structured engine events for audit.
type EventLogger interface {
	AppendLog(ctx context.Context, event, instrument, message string, data map[string]any) error
}

// StrategyConfigStore resolves the per-instrument strategy configuration,
// falling back to documented defaults when an instrument has no override.
type StrategyConfigStore interface {
	LoadStrategyConfig(instrument string) (*StrategyConfig, error)
}
