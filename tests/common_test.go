package tests

import (
	"context"
	"sync"

	"github.com/vitos/trade_signal_engine/internal/domain"
)

// MockMarketData serves a fixed candle series and a settable price.
type MockMarketData struct {
	mu      sync.Mutex
	Candles []domain.Candle
	Price   float64
}

func (m *MockMarketData) SetPrice(price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Price = price
}

func (m *MockMarketData) GetCandles(ctx context.Context, instrument, interval string, limit int) ([]domain.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Candles, nil
}

func (m *MockMarketData) GetCurrentPrice(ctx context.Context, instrument string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Price, nil
}

func (m *MockMarketData) OnPriceUpdate(callback func(instrument string, price float64)) {
}

func (m *MockMarketData) Subscribe(instruments []string) error {
	return nil
}
