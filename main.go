package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"

	"cryptoDipBot/config"
	"cryptoDipBot/internal/adapters/binanceclient"
	"cryptoDipBot/internal/adapters/sqlite"
	"cryptoDipBot/internal/adapters/zerologger"
	"cryptoDipBot/internal/alerting"
	"cryptoDipBot/internal/collector"
	"cryptoDipBot/internal/engine"
	"cryptoDipBot/internal/ledger"
	"cryptoDipBot/internal/server"
	"cryptoDipBot/internal/strategy"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := zerologger.New(os.Stderr, cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()

	// 4. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	// 5. Initialize Strategy
	strat, err := strategy.New(cfg.StrategyParams(), appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trading strategy")
		log.Fatalf("FATAL: Failed to initialize trading strategy: %v", err)
	}

	// 6. Initialize Position Ledger
	book, err := ledger.New(repo, repo, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize position ledger")
		log.Fatalf("FATAL: Failed to initialize position ledger: %v", err)
	}

	// 7. Initialize Alert Governor
	governor, err := alerting.New(alerting.Config{
		PositiveThresholdPct: cfg.AlertPositivePct,
		NegativeThresholdPct: cfg.AlertNegativePct,
		Cooldown:             cfg.AlertCooldown,
	}, repo, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize alert governor")
		log.Fatalf("FATAL: Failed to initialize alert governor: %v", err)
	}

	// 8. Initialize Market Data Collector
	coll, err := collector.New(collector.Config{
		EMAFastPeriod:   cfg.EMAFastPeriod,
		EMASlowPeriod:   cfg.EMASlowPeriod,
		MACDSignal:      cfg.MACDSignal,
		ATRPeriod:       cfg.ATRPeriod,
		IndicatorWindow: cfg.IndicatorWindow,
		FXPairs:         cfg.FXPairs,
		CallTimeout:     cfg.CallTimeout,
	}, binanceClient, repo, repo, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize market data collector")
		log.Fatalf("FATAL: Failed to initialize market data collector: %v", err)
	}

	// 9. Initialize Evaluation Engine
	eng, err := engine.New(engine.Config{
		Interval:      cfg.TickInterval,
		FXInterval:    cfg.FXInterval,
		CallTimeout:   cfg.CallTimeout,
		FXBase:        cfg.FXBase,
		FXQuote:       cfg.FXQuote,
		DefaultFXRate: cfg.DefaultFXRate,
	}, engine.Deps{
		Logger:      appLogger,
		Strategy:    strat,
		Ledger:      book,
		Governor:    governor,
		Collector:   coll,
		Market:      binanceClient,
		Executor:    binanceClient,
		Samples:     repo,
		PairConfigs: repo,
		FXRates:     repo,
		TradeLogs:   repo,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize evaluation engine")
		log.Fatalf("FATAL: Failed to initialize evaluation engine: %v", err)
	}

	// 10. Initialize HTTP API
	srv, err := server.New(server.Config{
		Addr:          cfg.APIAddr,
		AllowedQuotes: cfg.AllowedQuotes,
	}, server.Deps{
		Logger:      appLogger,
		Engine:      eng,
		Strategy:    strat,
		TradeLogs:   repo,
		Alerts:      repo,
		Samples:     repo,
		PairConfigs: repo,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize HTTP API")
		log.Fatalf("FATAL: Failed to initialize HTTP API: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	autotrade := cfg.AutoTrade
	eng.Start(cfg.Pairs, &autotrade)

	go func() {
		if err := eng.Run(ctx); err != nil {
			appLogger.Error(ctx, err, "Engine loop exited with error")
			stop()
		}
	}()

	if err := srv.Run(ctx); err != nil {
		appLogger.Error(ctx, err, "HTTP API exited with error")
		log.Fatalf("FATAL: HTTP API exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
