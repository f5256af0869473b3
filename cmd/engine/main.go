package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alejandrodnm/vanguard/config"
	"github.com/alejandrodnm/vanguard/internal/adapters/execution"
	"github.com/alejandrodnm/vanguard/internal/adapters/notify"
	"github.com/alejandrodnm/vanguard/internal/adapters/polymarket"
	"github.com/alejandrodnm/vanguard/internal/adapters/storage"
	"github.com/alejandrodnm/vanguard/internal/application/executor"
	"github.com/alejandrodnm/vanguard/internal/application/runtime"
	"github.com/alejandrodnm/vanguard/internal/application/strategy"
	"github.com/alejandrodnm/vanguard/internal/domain"
	"github.com/alejandrodnm/vanguard/internal/ops"
	"github.com/alejandrodnm/vanguard/internal/resilience"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	serve := flag.Bool("serve", false, "start the ops HTTP server")
	simulate := flag.Bool("simulate", false, "run one simulated execution and exit")
	sweep := flag.Bool("sweep", false, "simulate one trade per top candidate market and exit")
	candidates := flag.Bool("candidates", false, "print top candidate markets and exit")
	marketID := flag.String("market", "", "market id for -simulate (default: top trending)")
	tokenID := flag.String("token", "", "token id for -simulate")
	side := flag.String("side", "BUY", "trade side for -simulate: BUY|SELL")
	sizeUSD := flag.Float64("size", 0, "trade size in USD for -simulate (default: max per-trade cap)")
	intentID := flag.String("intent", "", "execution intent id for -simulate (repeat to test idempotency)")
	jsonOut := flag.Bool("json", false, "print results as JSON")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)
	logger := slog.Default()

	slog.Info("vanguard starting",
		"config", *configPath,
		"serve", *serve,
		"simulate", *simulate,
		"dsn", cfg.Storage.DSN,
	)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loader := runtime.NewLoader(store, cfg.SafetyState(), cfg.RiskCaps())
	if err := loader.Seed(ctx); err != nil {
		slog.Error("failed to seed engine state", "err", err)
		os.Exit(1)
	}

	provider := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase)
	orchestrator := executor.NewOrchestrator(
		logger, loader, store, store,
		execution.NewDryRunClient(),
		cfg.PlacementTimeout(),
	)
	simulator := executor.NewSimulator(logger, provider, loader, orchestrator)
	console := notify.NewConsole(*jsonOut)

	switch {
	case *candidates:
		if err := printCandidates(ctx, provider, loader, console); err != nil {
			slog.Error("candidates failed", "err", err)
			os.Exit(1)
		}
	case *simulate:
		result, err := simulator.Simulate(ctx, executor.SimulationParams{
			MarketID: *marketID,
			TokenID:  *tokenID,
			Side:     domain.TradeSide(*side),
			SizeUSD:  *sizeUSD,
			IntentID: *intentID,
		})
		if err != nil {
			slog.Error("simulation failed", "err", err)
			os.Exit(1)
		}
		if err := console.PrintExecution(result); err != nil {
			slog.Error("print failed", "err", err)
			os.Exit(1)
		}
	case *sweep:
		if err := runSweep(ctx, cfg, provider, loader, simulator, console); err != nil {
			slog.Error("sweep failed", "err", err)
			os.Exit(1)
		}
	case *serve:
		if err := runOpsServer(ctx, cfg, logger, store, loader, simulator); err != nil {
			slog.Error("ops server exited with error", "err", err)
			os.Exit(1)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}

	slog.Info("vanguard stopped cleanly")
}

func printCandidates(ctx context.Context, provider *polymarket.Client, loader *runtime.Loader, console *notify.Console) error {
	caps, err := loader.RiskCaps(ctx)
	if err != nil {
		return err
	}
	markets, err := provider.FetchTrendingMarkets(ctx, 20, caps.MinLiquidityUSD)
	if err != nil {
		return err
	}
	return console.PrintCandidates(strategy.TopCandidates(markets, 10))
}

// runSweep simula un trade por cada mercado candidato, espaciados por la
// cola para no agotar el rate budget del exchange.
func runSweep(
	ctx context.Context,
	cfg *config.Config,
	provider *polymarket.Client,
	loader *runtime.Loader,
	simulator *executor.Simulator,
	console *notify.Console,
) error {
	caps, err := loader.RiskCaps(ctx)
	if err != nil {
		return err
	}
	markets, err := provider.FetchTrendingMarkets(ctx, 20, caps.MinLiquidityUSD)
	if err != nil {
		return err
	}

	top := strategy.TopCandidates(markets, 5)
	batch := make([]executor.SimulationParams, 0, len(top))
	for _, cand := range top {
		batch = append(batch, executor.SimulationParams{
			MarketID: cand.Market.MarketID,
			TokenID:  cand.Market.TokenID,
		})
	}

	queue := resilience.NewRateLimitedQueue(cfg.SweepInterval())
	for _, outcome := range simulator.SimulateSweep(ctx, queue, batch) {
		if outcome.Err != nil {
			slog.Warn("sweep simulation failed",
				"market", outcome.Params.MarketID,
				"err", outcome.Err,
			)
			continue
		}
		if err := console.PrintExecution(outcome.Result); err != nil {
			return err
		}
	}
	return nil
}

func runOpsServer(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	store *storage.SQLiteStorage,
	loader *runtime.Loader,
	simulator *executor.Simulator,
) error {
	opsServer, err := ops.NewServer(logger, store, loader, simulator, cfg.Ops.Token)
	if err != nil {
		return fmt.Errorf("set VANGUARD_TOKEN or ops.token: %w", err)
	}

	addr := net.JoinHostPort(cfg.Ops.Host, strconv.Itoa(cfg.Ops.Port))
	server := &http.Server{
		Addr:         addr,
		Handler:      opsServer.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("ops server listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
