package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/vitos/trade_signal_engine/internal/config"
	"github.com/vitos/trade_signal_engine/internal/infrastructure/exchange"
	"github.com/vitos/trade_signal_engine/internal/infrastructure/logger"
	"github.com/vitos/trade_signal_engine/internal/usecase"
)

// check_signal evaluates one instrument once and prints the signal as
// JSON. It keeps no state: no database, no order placement.
func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	instrument := flag.String("symbol", "", "instrument to evaluate, e.g. BTCUSDT")
	flag.Parse()

	if *instrument == "" {
		fmt.Println("Usage: check_signal -symbol BTCUSDT [-config config/config.yaml]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger("error")
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	strategies, err := cfg.StrategyStore()
	if err != nil {
		fmt.Printf("Failed to build strategy store: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	adapter := exchange.NewBybitAdapter(cfg.Exchange.RESTEndpoint, cfg.Exchange.WSEndpoint, log)

	candles, err := adapter.GetCandles(ctx, *instrument, cfg.Interval, cfg.Lookback)
	if err != nil {
		fmt.Printf("Failed to fetch candles: %v\n", err)
		os.Exit(1)
	}
	price, err := adapter.GetCurrentPrice(ctx, *instrument)
	if err != nil {
		fmt.Printf("Failed to fetch price: %v\n", err)
		os.Exit(1)
	}

	signals := usecase.NewSignalService(strategies, log)
	sig, err := signals.GenerateSignal(ctx, *instrument, candles, price, cfg.Ledger.InitialBalance)
	if err != nil {
		fmt.Printf("Failed to generate signal: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(sig, "", "  ")
	if err != nil {
		fmt.Printf("Failed to encode signal: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
