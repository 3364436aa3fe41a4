// Command sniper is a single-asset entry/exit trading agent for Polymarket
// binary prediction markets.
//
// Architecture:
//
//	main.go                — entry point: loads config, resolves the first
//	                         window, wires every component, waits for
//	                         SIGINT/SIGTERM
//	internal/market/resolve.go — polls the Gamma API to resolve a window
//	                         identifier + outcome to a tradeable asset id
//	internal/market/book.go — local top-of-book mirror fed by WS snapshots
//	                         and price-change deltas
//	internal/strategy       — pure SL > TP > Buy decision function
//	internal/position       — local share/avg-entry/realized-PnL ledger
//	internal/dedup          — TTL-based re-emission guard
//	internal/execution      — REST order placement, cancellation, L1/L2
//	                         auth, and the streaming market-data feed
//	internal/sniper         — the single cooperative tick loop binding all
//	                         of the above together
//	internal/store          — best-effort JSON snapshot persistence
//	internal/obs            — Prometheus metrics
//	internal/api            — read-only status/metrics HTTP surface
//
// How it makes money:
//
//	The agent tracks exactly one asset at a time. It buys when the best ask
//	sits inside a configured band, and sells up to order_size shares per
//	tick once best bid crosses either a stop-loss or take-profit threshold —
//	stop-loss checked first, every tick, regardless of book staleness.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"sniper/internal/api"
	"sniper/internal/config"
	"sniper/internal/dedup"
	"sniper/internal/execution"
	"sniper/internal/market"
	"sniper/internal/obs"
	"sniper/internal/position"
	"sniper/internal/quote"
	"sniper/internal/sniper"
	"sniper/internal/store"
	"sniper/internal/strategy"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("POLY_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(*cfg)

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	params, err := strategyParams(*cfg)
	if err != nil {
		logger.Error("invalid strategy parameters", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	metrics := obs.NewMetrics(registry)

	signer, err := execution.NewSigner(*cfg)
	if err != nil {
		logger.Error("failed to build signer", "error", err)
		os.Exit(1)
	}
	executor := execution.NewExecutor(*cfg, signer, params.Tick, metrics, logger)
	if !signer.HasL2Credentials() {
		if _, err := executor.DeriveAPIKey(ctx); err != nil {
			logger.Error("failed to derive API credentials", "error", err)
			os.Exit(1)
		}
	}

	resolver := market.NewResolver(*cfg, logger)
	asset, err := resolver.Resolve(ctx, cfg.Window.Identifier, cfg.Window.Outcome)
	if err != nil {
		logger.Error("failed to resolve starting window", "error", err)
		os.Exit(1)
	}

	book := market.NewBook(asset)
	dedupWindow := dedup.New(cfg.DedupeTTL())
	maxPosition, err := quote.NewSize(cfg.Strategy.MaxPosition)
	if err != nil {
		logger.Error("invalid max_position", "error", err)
		os.Exit(1)
	}
	posTracker := position.New(maxPosition)

	feed := execution.NewFeed(cfg.API.WSMarketURL, logger)
	if err := feed.Retarget(asset.String()); err != nil {
		logger.Error("failed to set initial feed subscription", "error", err)
		os.Exit(1)
	}

	var snapStore *store.Store
	if cfg.Store.DataDir != "" {
		snapStore, err = store.Open(cfg.Store.DataDir)
		if err != nil {
			logger.Error("failed to open snapshot store", "error", err)
			os.Exit(1)
		}
		defer snapStore.Close()
	}

	driver := sniper.New(*cfg, params, asset, book, posTracker, dedupWindow, executor, feed, resolver, snapStore, metrics, logger)

	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, func() any { return driver.Snapshot() }, registry, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("status server failed", "error", err)
			}
		}()
		logger.Info("status server started", "url", fmt.Sprintf("http://localhost:%d/status", cfg.Dashboard.Port))
	}

	feedErrCh := make(chan error, 1)
	go func() { feedErrCh <- feed.Run(ctx) }()

	driverErrCh := make(chan error, 1)
	go func() { driverErrCh <- driver.Run(ctx) }()

	logger.Info("sniper started",
		"window", cfg.Window.Identifier,
		"outcome", cfg.Window.Outcome,
		"asset", asset.String(),
		"dry_run", cfg.DryRun,
	)

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-feedErrCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("market feed exited unexpectedly", "error", err)
		}
	case err := <-driverErrCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("tick driver exited unexpectedly", "error", err)
		}
	}

	stop()
	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop status server", "error", err)
		}
	}
	_ = feed.Close()
}

// strategyParams parses the configured decimal strings into the quote types
// Evaluate operates on. cfg.Validate range-checks the thresholds with
// fmt.Sscanf, which accepts strings that decimal parsing rejects, so every
// threshold is still parsed with error checking here; order_size is parsed
// for the first time here. tick_size goes through quote.MustTick and panics
// if it does not parse as a decimal.
func strategyParams(cfg config.Config) (strategy.Params, error) {
	buyMin, err := quote.NewPrice(cfg.Strategy.BuyMin)
	if err != nil {
		return strategy.Params{}, fmt.Errorf("buy_min: %w", err)
	}
	buyMax, err := quote.NewPrice(cfg.Strategy.BuyMax)
	if err != nil {
		return strategy.Params{}, fmt.Errorf("buy_max: %w", err)
	}
	takeProfit, err := quote.NewPrice(cfg.Strategy.TakeProfit)
	if err != nil {
		return strategy.Params{}, fmt.Errorf("take_profit: %w", err)
	}
	stopLoss, err := quote.NewPrice(cfg.Strategy.StopLoss)
	if err != nil {
		return strategy.Params{}, fmt.Errorf("stop_loss: %w", err)
	}
	orderSize, err := quote.NewSize(cfg.Strategy.OrderSize)
	if err != nil {
		return strategy.Params{}, fmt.Errorf("order_size: %w", err)
	}

	return strategy.Params{
		BuyMin:     buyMin,
		BuyMax:     buyMax,
		TakeProfit: takeProfit,
		StopLoss:   stopLoss,
		OrderSize:  orderSize,
		Tick:       quote.MustTick(cfg.Strategy.Tick),
	}, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
