package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	httpdelivery "rangebot-backend/internal/delivery/http"
	wsdelivery "rangebot-backend/internal/delivery/websocket"
	"rangebot-backend/internal/domain"
	"rangebot-backend/internal/infrastructure/binance"
	"rangebot-backend/internal/infrastructure/db"
	"rangebot-backend/internal/infrastructure/fcm"
	"rangebot-backend/internal/infrastructure/paper"
	"rangebot-backend/internal/repository"
	"rangebot-backend/internal/usecase"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v (using system environment)", err)
	}

	setupLogging()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutdown signal received, stopping...")
		cancel()
	}()

	cfg := loadTradingConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid trading config: %v", err)
	}

	// Trade ledger: Postgres when DATABASE_URL is set, in-memory otherwise.
	var ledger domain.TradeLedger
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := db.NewPool(ctx, dbURL, db.PoolConfigFromEnv())
		if err != nil {
			log.Fatalf("Database connection failed: %v", err)
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			log.Fatalf("Database migration failed: %v", err)
		}
		ledger = repository.NewPostgresTradeLedger(pool)
		log.Println("Trade ledger: Postgres")
	} else {
		ledger = repository.NewInMemoryTradeLedger()
		log.Println("Trade ledger: in-memory (set DATABASE_URL for persistence)")
	}

	fcmClient, err := fcm.NewClient(ctx)
	if err != nil {
		log.Fatalf("FCM initialization failed: %v", err)
	}
	tokenRepo := repository.NewTokenRepository()
	notifier := usecase.NewNotificationRelay(fcmClient, tokenRepo)

	gateway := buildGateway(cfg, ledger)

	statusRepo := repository.NewInMemoryStatusRepository()
	positions := usecase.NewPositionLedger(gateway, ledger, notifier, cfg.MaxHold())
	detector := usecase.NewRegimeDetector()

	var advisor *usecase.MarketAdvisor
	if envBool("ADVISOR_ENABLED", true) {
		advisor = usecase.NewMarketAdvisor()
	}

	engine := usecase.NewTradingDecisionEngine(gateway, positions, detector, advisor, notifier, statusRepo, cfg)
	loop := usecase.NewMonitoringLoop(engine, positions, gateway, notifier, cfg)

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Run(ctx)
	}()

	statusHandler := httpdelivery.NewStatusHandler(statusRepo, ledger, positions)
	tokenHandler := httpdelivery.NewTokenHandler(tokenRepo)
	wsHandler := wsdelivery.NewHandler(statusRepo)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", statusHandler.HandleStatus)
	mux.HandleFunc("/api/positions/history", statusHandler.HandleHistory)
	mux.HandleFunc("/api/tokens/register", tokenHandler.HandleRegisterToken)
	mux.HandleFunc("/api/tokens/unregister", tokenHandler.HandleUnregisterToken)
	mux.HandleFunc("/ws", wsHandler.Handle)

	addr := ":" + envString("PORT", "8080")
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Printf("HTTP server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
			cancel()
		}
	}()

	if err := <-loopDone; err != nil {
		log.Printf("Monitoring loop exited: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
}

// setupLogging mirrors log output to stdout and a size-rotated file.
func setupLogging() {
	logPath := envString("LOG_FILE", "logs/rangebot.log")
	rotating := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    20, // megabytes
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotating))
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
}

func buildGateway(cfg domain.TradingConfig, ledger domain.TradeLedger) domain.ExchangeGateway {
	isTestnet := envBool("BINANCE_TESTNET", false)

	if envBool("PAPER_TRADING", true) {
		marketURL := binance.SpotBaseURL
		if isTestnet {
			marketURL = binance.TestnetBaseURL
		}
		balances := map[string]float64{
			cfg.QuoteAsset: envFloat("PAPER_BALANCE", 1000),
		}
		log.Printf("Exchange gateway: paper trading (%.2f %s)", balances[cfg.QuoteAsset], cfg.QuoteAsset)
		return paper.NewGateway(binance.NewClient(marketURL), ledger, balances)
	}

	apiKey := os.Getenv("BINANCE_API_KEY")
	secretKey := os.Getenv("BINANCE_SECRET_KEY")
	if apiKey == "" || secretKey == "" {
		log.Fatal("BINANCE_API_KEY and BINANCE_SECRET_KEY are required when PAPER_TRADING=false")
	}
	log.Printf("Exchange gateway: live Binance (testnet=%v)", isTestnet)
	return binance.NewGateway(apiKey, secretKey, isTestnet)
}

func loadTradingConfig() domain.TradingConfig {
	cfg := domain.DefaultTradingConfig()

	cfg.Symbol = envString("TRADING_SYMBOL", cfg.Symbol)
	cfg.QuoteAsset = envString("QUOTE_ASSET", cfg.QuoteAsset)
	cfg.OrderSize = envFloat("ORDER_SIZE", cfg.OrderSize)
	cfg.PeriodMinutes = envInt("PERIOD_MINUTES", cfg.PeriodMinutes)
	cfg.AnalysisPeriods = envInt("ANALYSIS_PERIODS", cfg.AnalysisPeriods)
	cfg.SidewaysThreshold = envFloat("SIDEWAYS_THRESHOLD", cfg.SidewaysThreshold)
	cfg.BuyDistanceFromSupport = envFloat("BUY_DISTANCE_FROM_SUPPORT", cfg.BuyDistanceFromSupport)
	cfg.SellDistanceFromResistance = envFloat("SELL_DISTANCE_FROM_RESISTANCE", cfg.SellDistanceFromResistance)
	cfg.MinProfitPercent = envFloat("MIN_PROFIT_PERCENT", cfg.MinProfitPercent)
	cfg.MaxPositionHoldHours = envInt("MAX_POSITION_HOLD_HOURS", cfg.MaxPositionHoldHours)
	if d, err := time.ParseDuration(envString("MONITOR_INTERVAL", "")); err == nil && d > 0 {
		cfg.MonitorInterval = d
	}
	if d, err := time.ParseDuration(envString("ERROR_BACKOFF", "")); err == nil && d > 0 {
		cfg.ErrorBackoff = d
	}

	return cfg
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
