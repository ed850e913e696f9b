// RiskShield - Real-time fraud scoring for retail banking transactions.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/riskshield/riskshield/internal/alerts"
	"github.com/riskshield/riskshield/internal/api"
	"github.com/riskshield/riskshield/internal/auth"
	"github.com/riskshield/riskshield/internal/bus"
	"github.com/riskshield/riskshield/internal/cache"
	"github.com/riskshield/riskshield/internal/calendar"
	"github.com/riskshield/riskshield/internal/classifier"
	"github.com/riskshield/riskshield/internal/domain"
	"github.com/riskshield/riskshield/internal/repository"
	"github.com/riskshield/riskshield/internal/rules"
	"github.com/riskshield/riskshield/internal/scoring"
	"github.com/riskshield/riskshield/internal/velocity"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// .env is optional; environment variables win
	_ = godotenv.Load()

	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("RISKSHIELD_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting riskshield",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()
	if os.Getenv("RISKSHIELD_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"model_path", cfg.Classifier.ModelPath,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Load the classifier artifact. A missing or malformed model is fatal:
	// the service never starts in a state where /api/predict cannot score.
	model, err := classifier.Load(cfg.Classifier)
	if err != nil {
		slog.Error("failed to load classifier model", "path", cfg.Classifier.ModelPath, "error", err)
		os.Exit(1)
	}
	slog.Info("classifier loaded", "version", model.Version())

	// Holiday calendar for feature derivation
	cal := calendar.NewIndia()

	// Velocity service backs the repeat-offender rule
	velocitySvc := velocity.NewService(repo)

	// Rule engine: builtin table + custom CEL rules from the database
	engine := rules.NewEngine(cfg.Scoring, velocitySvc.History())
	if err := loadCustomRules(ctx, repo, engine); err != nil {
		slog.Error("failed to load custom rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "custom_rules", engine.CustomRulesCount())

	// Scoring pipeline
	scorer := scoring.NewService(model, cal, engine, repo, busImpl, cfg.Scoring)

	// Auth service
	authSvc := auth.NewService(repo)

	// Alert worker consumes decision events
	alertWorker := alerts.NewWorker(busImpl, cfg.Scoring)
	if err := alertWorker.Start(); err != nil {
		slog.Error("failed to start alert worker", "error", err)
		os.Exit(1)
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, scorer, authSvc, repo, cacheImpl, engine, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("riskshield is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	alertWorker.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("riskshield shutdown complete")
}

// loadCustomRules loads persisted custom rules into the engine.
// Rules are configured via POST /api/rules - no hardcoded defaults.
func loadCustomRules(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	configs, err := repo.ListCustomRules(ctx)
	if err != nil {
		slog.Warn("failed to list custom rules from database", "error", err)
		return nil // Start with builtins only - custom rules can be added via API
	}

	if len(configs) > 0 {
		slog.Info("loading custom rules from database", "count", len(configs))
		return engine.LoadCustomRules(configs)
	}

	return nil
}

// applyEnvOverrides layers environment settings over the tier defaults.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("RISKSHIELD_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("RISKSHIELD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RISKSHIELD_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("RISKSHIELD_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("RISKSHIELD_POSTGRES_USER"); v != "" {
		cfg.Repository.PostgresUser = v
	}
	if v := os.Getenv("RISKSHIELD_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("RISKSHIELD_POSTGRES_DB"); v != "" {
		cfg.Repository.PostgresDB = v
	}
	if v := os.Getenv("RISKSHIELD_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("RISKSHIELD_REDIS_PASSWORD"); v != "" {
		cfg.Cache.RedisPassword = v
	}
	if v := os.Getenv("RISKSHIELD_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("RISKSHIELD_NATS_TOKEN"); v != "" {
		cfg.EventBus.NATSToken = v
	}
	if v := os.Getenv("RISKSHIELD_MODEL_PATH"); v != "" {
		cfg.Classifier.ModelPath = v
	}
	if v := os.Getenv("RISKSHIELD_RATE_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimitEnabled = limit > 0
			cfg.Server.RateLimitRequests = limit
		}
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║             🛡  RISKSHIELD                 ║")
	fmt.Println("  ║      Real-Time Fraud Scoring Engine       ║")
	fmt.Println("  ║     Every transaction, every second.      ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /api/register             - Register a user")
	fmt.Println("    POST /api/login                - Log in")
	fmt.Println("    POST /api/predict              - Score a transaction")
	fmt.Println("    POST /api/bulk-predict         - Score a batch of transactions")
	fmt.Println("    GET  /api/transactions/{email} - Transaction history")
	fmt.Println("    GET  /api/analytics            - Dashboard analytics")
	fmt.Println("    GET  /api/metrics              - Model card")
	fmt.Println("    GET  /api/rules                - List custom rules")
	fmt.Println("    POST /api/rules                - Create a custom rule")
	fmt.Println("    POST /api/rules/reload         - Hot-reload custom rules")
	fmt.Println("    GET  /api/health               - Health check")
	fmt.Println("    GET  /metrics                  - Prometheus metrics")
	fmt.Println()
}
