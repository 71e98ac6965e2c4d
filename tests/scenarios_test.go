package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vitos/trade_signal_engine/internal/config"
	"github.com/vitos/trade_signal_engine/internal/domain"
	"github.com/vitos/trade_signal_engine/internal/infrastructure/storage"
	"github.com/vitos/trade_signal_engine/internal/usecase"
)

// TestScenarioHelper wraps common setup for scenario tests.
type TestScenarioHelper struct {
	t          *testing.T
	store      *storage.SQLiteStore
	engine     *usecase.Engine
	ledger     *usecase.LedgerService
	market     *MockMarketData
	ctx        context.Context
	instrument string
}

func NewTestScenarioHelper(t *testing.T) *TestScenarioHelper {
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	strategy := domain.DefaultStrategyConfig()
	strategy.TimeFilter = false

	log := zap.NewNop()
	market := &MockMarketData{}
	signals := usecase.NewSignalService(config.NewStrategyStore(strategy), log)
	ledger := usecase.NewLedgerService(usecase.DefaultLedgerConfig(), store, store, store, log)
	tracker := usecase.NewSignalTracker(store, log)
	engine := usecase.NewEngine(market, signals, ledger, tracker, log, usecase.EngineOptions{
		Interval: "5",
		Lookback: 200,
		Mode:     "test",
	})

	return &TestScenarioHelper{
		t:          t,
		store:      store,
		engine:     engine,
		ledger:     ledger,
		market:     market,
		ctx:        context.Background(),
		instrument: "BTCUSDT",
	}
}

// SetupBuyMarket loads a downtrending series with a fresh support spike
// just below the floor, the shape that produces a BUY.
func (h *TestScenarioHelper) SetupBuyMarket() {
	start := time.Now().Add(-200 * 5 * time.Minute).Unix()
	candles := make([]domain.Candle, 200)
	for i := range candles {
		var c float64
		if i < 180 {
			c = 120 - 20*float64(i)/180
		} else {
			c = 100
		}
		candles[i] = domain.Candle{
			Time:   start + int64(i)*300,
			Open:   c,
			High:   c + 0.5,
			Low:    c - 0.5,
			Close:  c,
			Volume: 100,
		}
	}
	candles[185].Low = 98.0
	h.market.Candles = candles
	h.market.SetPrice(99.9)
}

func TestScenarioBuyRoundTripTakeProfit(t *testing.T) {
	h := NewTestScenarioHelper(t)
	h.SetupBuyMarket()

	sig, err := h.engine.EvaluateInstrument(h.ctx, h.instrument)
	require.NoError(t, err)
	require.Equal(t, domain.DirectionBuy, sig.Direction, "reason: %s", sig.Reason)

	// The evaluation placed a pending trade.
	active, err := h.store.ListActiveTrades(h.ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	trade := active[0]
	assert.Equal(t, domain.StatusPending, trade.Status)

	// Price dips to the limit: the trade opens.
	events := h.engine.Tick(h.ctx, map[string]float64{h.instrument: trade.EntryPrice})
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventOpened, events[0].Action)

	// Price runs to the target: the trade closes in profit.
	events = h.engine.Tick(h.ctx, map[string]float64{h.instrument: trade.TakeProfit})
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventClosed, events[0].Action)
	assert.Greater(t, events[0].Profit, 0.0)

	balance := h.ledger.AccountBalance(h.ctx, h.instrument)
	assert.Greater(t, balance, 100000.0)

	stats, err := h.ledger.Stats(h.ctx, h.instrument)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalTrades)
	assert.Equal(t, 1, stats.Wins)
	assert.Equal(t, 0, stats.OpenPositions)
}

func TestScenarioBuyStoppedOut(t *testing.T) {
	h := NewTestScenarioHelper(t)
	h.SetupBuyMarket()

	sig, err := h.engine.EvaluateInstrument(h.ctx, h.instrument)
	require.NoError(t, err)
	require.Equal(t, domain.DirectionBuy, sig.Direction, "reason: %s", sig.Reason)

	active, err := h.store.ListActiveTrades(h.ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	trade := active[0]

	h.engine.Tick(h.ctx, map[string]float64{h.instrument: trade.EntryPrice})
	events := h.engine.Tick(h.ctx, map[string]float64{h.instrument: trade.StopLoss})
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventClosed, events[0].Action)
	assert.Less(t, events[0].Profit, 0.0)

	balance := h.ledger.AccountBalance(h.ctx, h.instrument)
	assert.Less(t, balance, 100000.0)
}

func TestScenarioSingleActiveTrade(t *testing.T) {
	h := NewTestScenarioHelper(t)
	h.SetupBuyMarket()

	// Two evaluations in a row: the second must not stack a trade.
	_, err := h.engine.EvaluateInstrument(h.ctx, h.instrument)
	require.NoError(t, err)
	_, err = h.engine.EvaluateInstrument(h.ctx, h.instrument)
	require.NoError(t, err)

	active, err := h.store.ListActiveTrades(h.ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestScenarioCommissionCharged(t *testing.T) {
	h := NewTestScenarioHelper(t)

	sig := &domain.Signal{
		Instrument: h.instrument,
		Direction:  domain.DirectionBuy,
		EntryPrice: 100,
		StopLoss:   97,
		TakeProfit: 106,
		Size:       1,
	}
	trade, err := h.ledger.PlaceOrder(h.ctx, sig)
	require.NoError(t, err)
	require.NotNil(t, trade)

	h.ledger.Tick(h.ctx, map[string]float64{h.instrument: 100})
	events := h.ledger.Tick(h.ctx, map[string]float64{h.instrument: 106})
	require.Len(t, events, 1)

	// Round trip commission: 100 * 1 * 0.0005 * 2 = 0.10.
	trades, err := h.store.ListTrades(h.ctx, h.instrument, 1)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.InDelta(t, 0.10, trades[0].Commission, 1e-9)
	assert.InDelta(t, 5.90, trades[0].ProfitLoss, 1e-9)
}

func TestScenarioDrawdownCircuitBreaker(t *testing.T) {
	h := NewTestScenarioHelper(t)

	// A single oversized loss takes the balance below the 25% threshold.
	sig := &domain.Signal{
		Instrument: h.instrument,
		Direction:  domain.DirectionBuy,
		EntryPrice: 1000,
		StopLoss:   700,
		TakeProfit: 2000,
		Size:       100,
	}
	trade, err := h.ledger.PlaceOrder(h.ctx, sig)
	require.NoError(t, err)
	require.NotNil(t, trade)

	h.ledger.Tick(h.ctx, map[string]float64{h.instrument: 1000})
	h.ledger.Tick(h.ctx, map[string]float64{h.instrument: 700})

	stats, err := h.ledger.Stats(h.ctx, h.instrument)
	require.NoError(t, err)
	assert.True(t, stats.Blocked)
	assert.GreaterOrEqual(t, stats.DrawdownPct, 25.0)

	// New orders are rejected while blocked, without an error.
	rejected, err := h.ledger.PlaceOrder(h.ctx, &domain.Signal{
		Instrument: h.instrument,
		Direction:  domain.DirectionBuy,
		EntryPrice: 100,
		StopLoss:   97,
		TakeProfit: 106,
		Size:       1,
	})
	require.NoError(t, err)
	assert.Nil(t, rejected)

	// Reset restores trading.
	require.NoError(t, h.ledger.ResetAccount(h.ctx, h.instrument))
	restored, err := h.ledger.PlaceOrder(h.ctx, &domain.Signal{
		Instrument: h.instrument,
		Direction:  domain.DirectionBuy,
		EntryPrice: 100,
		StopLoss:   97,
		TakeProfit: 106,
		Size:       1,
	})
	require.NoError(t, err)
	assert.NotNil(t, restored)

	balance := h.ledger.AccountBalance(h.ctx, h.instrument)
	assert.InDelta(t, 100000.0, balance, 1e-9)
}

func TestScenarioStatePersistsAcrossRestart(t *testing.T) {
	h := NewTestScenarioHelper(t)
	h.SetupBuyMarket()

	_, err := h.engine.EvaluateInstrument(h.ctx, h.instrument)
	require.NoError(t, err)

	active, err := h.store.ListActiveTrades(h.ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	// A new ledger over the same store resumes the pending trade.
	ledger := usecase.NewLedgerService(usecase.DefaultLedgerConfig(), h.store, h.store, h.store, zap.NewNop())
	require.NoError(t, ledger.Restore(h.ctx))

	rejected, err := ledger.PlaceOrder(h.ctx, &domain.Signal{
		Instrument: h.instrument,
		Direction:  domain.DirectionBuy,
		EntryPrice: 100,
		StopLoss:   97,
		TakeProfit: 106,
		Size:       1,
	})
	require.NoError(t, err)
	assert.Nil(t, rejected, "restored ledger must honor the persisted active trade")
}
