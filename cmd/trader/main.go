package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"binance-signal-bot-go/internal/binance"
	"binance-signal-bot-go/internal/config"
	"binance-signal-bot-go/internal/database"
	"binance-signal-bot-go/internal/logger"
	"binance-signal-bot-go/internal/marketdata"
	"binance-signal-bot-go/internal/secrets"
	"binance-signal-bot-go/internal/trader"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded", zap.Bool("simulation", cfg.Bot.Simulation))

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	decrypt, err := secrets.NewDecrypter(cfg.Security.EncryptionKey)
	if err != nil {
		log.Fatal("Invalid credential encryption key", zap.Error(err))
	}
	if cfg.Security.EncryptionKey == "" {
		log.Warn("No encryption key configured, credentials are read as plain text")
	}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// The execution mode is chosen once for the whole run.
	var (
		source   marketdata.Source
		executor trader.Executor
	)
	if cfg.Bot.Simulation {
		log.Warn("Simulation mode enabled. No real order will be placed.")
		source = marketdata.NewSimulated()
		executor = trader.NewSimulatedExecutor(decimal.NewFromFloat(cfg.Bot.FeeRate))
	} else {
		restClient := binance.NewRestClient(&cfg.Binance, log)
		if _, err := restClient.GetServerTime(ctx); err != nil {
			log.Fatal("Failed to connect to Binance API", zap.Error(err))
		}
		log.Info("Successfully connected to Binance API.")
		source = marketdata.NewLive(restClient, cfg.Bot.MinCandles, log)
		executor = trader.NewLiveExecutor(restClient, cfg.Binance.Timeout, log)
	}

	metrics := trader.NewMetrics()
	tradeEngine, err := trader.NewEngine(log, cfg.Bot, database.NewStore(db), source, executor, decrypt, metrics)
	if err != nil {
		log.Fatal("Failed to create trading engine", zap.Error(err))
	}

	apiServer := trader.NewAPIServer(tradeEngine, cfg.Server.Port, log)
	apiServer.Start()

	tradeEngine.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop API server", zap.Error(err))
	}

	log.Info("Bot has been shut down.")
}
