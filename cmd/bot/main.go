package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vitos/trade_signal_engine/internal/config"
	"github.com/vitos/trade_signal_engine/internal/infrastructure/exchange"
	"github.com/vitos/trade_signal_engine/internal/infrastructure/logger"
	"github.com/vitos/trade_signal_engine/internal/infrastructure/storage"
	"github.com/vitos/trade_signal_engine/internal/usecase"
	"github.com/vitos/trade_signal_engine/internal/web"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewFileLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 4. Init Exchange (Bybit)
	adapter := exchange.NewBybitAdapter(cfg.Exchange.RESTEndpoint, cfg.Exchange.WSEndpoint, log)

	// 5. Init Services
	strategies, err := cfg.StrategyStore()
	if err != nil {
		log.Fatal("Failed to build strategy store", zap.Error(err))
	}
	signals := usecase.NewSignalService(strategies, log)
	ledger := usecase.NewLedgerService(usecase.LedgerConfig{
		InitialBalance: cfg.Ledger.InitialBalance,
		MaxDrawdownPct: cfg.Ledger.MaxDrawdownPct,
		CommissionRate: cfg.Ledger.CommissionRate,
		PointValue:     cfg.Ledger.PointValue,
	}, store, store, store, log)
	tracker := usecase.NewSignalTracker(store, log)
	engine := usecase.NewEngine(adapter, signals, ledger, tracker, log, usecase.EngineOptions{
		Interval: cfg.Interval,
		Lookback: cfg.Lookback,
		Mode:     cfg.Mode,
	})

	if err := ledger.Restore(context.Background()); err != nil {
		log.Fatal("Failed to restore ledger", zap.Error(err))
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// 6. Live prices drive the ledger between evaluations
	adapter.OnPriceUpdate(func(instrument string, price float64) {
		engine.Tick(context.Background(), map[string]float64{instrument: price})
	})
	if err := adapter.Subscribe(cfg.Instruments); err != nil {
		log.Error("Failed to subscribe to price stream", zap.Error(err))
	}

	// 7. Scheduled evaluation and maintenance
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Schedule.Evaluate, func() {
		engine.EvaluateAll(context.Background(), cfg.Instruments)
	}); err != nil {
		log.Fatal("Failed to schedule evaluation", zap.Error(err))
	}
	if _, err := scheduler.AddFunc(cfg.Schedule.Maintenance, func() {
		ledger.RecomputeDrawdowns(context.Background())
	}); err != nil {
		log.Fatal("Failed to schedule maintenance", zap.Error(err))
	}
	scheduler.Start()

	// 8. Web Server
	server := web.NewServer(cfg.Server.Port, engine, store, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// 9. Wait for Shutdown
	<-stop

	log.Info("Shutting down...")
	scheduler.Stop()
	server.Shutdown(context.Background())
}
