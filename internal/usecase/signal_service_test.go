package usecase_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/trade_signal_engine/internal/domain"
	"github.com/vitos/trade_signal_engine/internal/usecase"
)

type stubConfigs struct {
	cfg *domain.StrategyConfig
}

func (s stubConfigs) LoadStrategyConfig(string) (*domain.StrategyConfig, error) {
	cfg := *s.cfg
	return &cfg, nil
}

func newSignalService(cfg *domain.StrategyConfig) *usecase.SignalService {
	return usecase.NewSignalService(stubConfigs{cfg: cfg}, zap.NewNop())
}

// decliningSeries builds a 200 bar downtrend that settles on a floor,
// with one deep support spike near the end. It reliably produces an
// oversold RSI and a strong support just below the final price.
func decliningSeries() []domain.Candle {
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
	return candles
}

// choppySeries oscillates tightly around 100 with no dominant extremes.
func choppySeries() []domain.Candle {
	start := time.Now().Add(-200 * 5 * time.Minute).Unix()
	candles := make([]domain.Candle, 200)
	for i := range candles {
		c := 99.8
		if i%2 == 0 {
			c = 100.2
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
	return candles
}

func testStrategyConfig() *domain.StrategyConfig {
	cfg := domain.DefaultStrategyConfig()
	// The time filter depends on the wall clock; keep it out of these tests.
	cfg.TimeFilter = false
	return cfg
}

func TestGenerateSignalInsufficientData(t *testing.T) {
	svc := newSignalService(testStrategyConfig())

	sig, err := svc.GenerateSignal(context.Background(), "BTCUSDT", decliningSeries()[:10], 100, 100000)
	if err != nil {
		t.Fatalf("GenerateSignal() error: %v", err)
	}
	if sig.Direction != domain.DirectionNone {
		t.Errorf("direction = %v, want NONE", sig.Direction)
	}
	if !strings.Contains(sig.Reason, "insufficient data") {
		t.Errorf("reason = %q, want insufficient data", sig.Reason)
	}
}

func TestGenerateSignalBuySetup(t *testing.T) {
	cfg := testStrategyConfig()
	svc := newSignalService(cfg)

	price := 99.9
	sig, err := svc.GenerateSignal(context.Background(), "BTCUSDT", decliningSeries(), price, 100000)
	if err != nil {
		t.Fatalf("GenerateSignal() error: %v", err)
	}
	if sig.Direction != domain.DirectionBuy {
		t.Fatalf("direction = %v (reason %q), want BUY", sig.Direction, sig.Reason)
	}
	if sig.Potential.LevelComponent >= 0 {
		t.Errorf("level component = %f, want negative", sig.Potential.LevelComponent)
	}
	if sig.Indicators.RSI >= cfg.BuyRSIThreshold {
		t.Errorf("RSI = %f, want below %f", sig.Indicators.RSI, cfg.BuyRSIThreshold)
	}

	// Limit mode rests on the bid, below the quoted price.
	if sig.EntryPrice >= price {
		t.Errorf("entry = %f, want below price %f", sig.EntryPrice, price)
	}
	if sig.StopLoss >= sig.EntryPrice || sig.TakeProfit <= sig.EntryPrice {
		t.Errorf("stops = (%f, %f) around entry %f", sig.StopLoss, sig.TakeProfit, sig.EntryPrice)
	}
	if sig.Confidence <= 0 || sig.Confidence > 1 {
		t.Errorf("confidence = %f, want within (0, 1]", sig.Confidence)
	}
	if sig.Size < cfg.MinSize || sig.Size > cfg.MaxSize {
		t.Errorf("size = %f, want within [%f, %f]", sig.Size, cfg.MinSize, cfg.MaxSize)
	}
}

func TestGenerateSignalBreakoutEntry(t *testing.T) {
	cfg := testStrategyConfig()
	cfg.Mode = domain.ModeBreakout
	svc := newSignalService(cfg)

	price := 99.9
	sig, err := svc.GenerateSignal(context.Background(), "BTCUSDT", decliningSeries(), price, 100000)
	if err != nil {
		t.Fatalf("GenerateSignal() error: %v", err)
	}
	if sig.Direction != domain.DirectionBuy {
		t.Fatalf("direction = %v (reason %q), want BUY", sig.Direction, sig.Reason)
	}
	if sig.EntryPrice <= price {
		t.Errorf("breakout entry = %f, want above price %f", sig.EntryPrice, price)
	}
}

func TestGenerateSignalNoEdge(t *testing.T) {
	svc := newSignalService(testStrategyConfig())

	sig, err := svc.GenerateSignal(context.Background(), "BTCUSDT", choppySeries(), 100, 100000)
	if err != nil {
		t.Fatalf("GenerateSignal() error: %v", err)
	}
	if sig.Direction != domain.DirectionNone {
		t.Errorf("direction = %v, want NONE", sig.Direction)
	}
	if sig.Reason == "" {
		t.Error("NONE signal carries no reason")
	}
}

func TestGenerateSignalVolatilityFilter(t *testing.T) {
	cfg := testStrategyConfig()
	cfg.MaxATRMultiplier = 0.0001 // any volatility trips the filter
	svc := newSignalService(cfg)

	sig, err := svc.GenerateSignal(context.Background(), "BTCUSDT", decliningSeries(), 99.9, 100000)
	if err != nil {
		t.Fatalf("GenerateSignal() error: %v", err)
	}
	if sig.Direction != domain.DirectionNone {
		t.Errorf("direction = %v, want NONE", sig.Direction)
	}
	if !strings.Contains(sig.Reason, "volatility") {
		t.Errorf("reason = %q, want volatility filter", sig.Reason)
	}
}

func TestGenerateSignalDeterministic(t *testing.T) {
	svc := newSignalService(testStrategyConfig())
	candles := decliningSeries()

	a, err := svc.GenerateSignal(context.Background(), "BTCUSDT", candles, 99.9, 100000)
	if err != nil {
		t.Fatalf("GenerateSignal() error: %v", err)
	}
	b, err := svc.GenerateSignal(context.Background(), "BTCUSDT", candles, 99.9, 100000)
	if err != nil {
		t.Fatalf("GenerateSignal() error: %v", err)
	}

	if a.Direction != b.Direction || !floatEquals(a.EntryPrice, b.EntryPrice) ||
		!floatEquals(a.Potential.Total, b.Potential.Total) {
		t.Errorf("repeated evaluation diverged: %+v vs %+v", a, b)
	}
}

func TestLevelsCachedBetweenEvaluations(t *testing.T) {
	svc := newSignalService(testStrategyConfig())
	candles := decliningSeries()

	if _, err := svc.GenerateSignal(context.Background(), "BTCUSDT", candles, 99.9, 100000); err != nil {
		t.Fatalf("GenerateSignal() error: %v", err)
	}
	first := svc.Levels("BTCUSDT")
	if len(first) == 0 {
		t.Fatal("no levels cached after evaluation")
	}

	// A second evaluation within the rebuild interval reuses the cache
	// even when the candles change.
	if _, err := svc.GenerateSignal(context.Background(), "BTCUSDT", choppySeries(), 100, 100000); err != nil {
		t.Fatalf("GenerateSignal() error: %v", err)
	}
	second := svc.Levels("BTCUSDT")
	if len(second) != len(first) {
		t.Errorf("cached levels changed within the rebuild interval: %d vs %d", len(second), len(first))
	}

	// An explicit rebuild drops the cache.
	svc.RebuildLevels("BTCUSDT")
	if got := svc.Levels("BTCUSDT"); len(got) != 0 {
		t.Errorf("levels after rebuild request = %d, want 0", len(got))
	}
}
