// Package main runs the holdings API with its background workers:
// the price feed, monitor pruning and the rate limiter janitor.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"btc-treasury-tracker/internal/api"
	"btc-treasury-tracker/internal/app"
	"btc-treasury-tracker/internal/config"
	"btc-treasury-tracker/internal/discovery"
	"btc-treasury-tracker/internal/holdings"
	"btc-treasury-tracker/internal/logger"
	"btc-treasury-tracker/internal/marketdata"
	"btc-treasury-tracker/internal/observability"
	"btc-treasury-tracker/internal/pricing"
	"btc-treasury-tracker/internal/ratelimit"
	"btc-treasury-tracker/internal/registry"
)

func main() {
	// Flags default to env vars
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML config file")
	addr := flag.String("addr", os.Getenv("HTTP_ADDR"), "HTTP listen address (overrides config)")
	flag.Parse()

	log := logger.GetLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Fatal("failed to configure logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server exited with error")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Log) error {
	stores, cleanup, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	monitor := observability.NewMonitor(observability.MonitorOptions{
		PerformanceCapacity: cfg.Observability.PerformanceCapacity,
		ErrorCapacity:       cfg.Observability.ErrorCapacity,
		SlowThreshold:       cfg.Observability.SlowThreshold,
	}, log)
	go monitor.Run(ctx, cfg.Observability.PruneInterval)

	reg := registry.New(stores.Entities, log)
	holdingsSvc := holdings.NewService(stores.Snapshots, stores.Holdings, log)
	priceSvc := pricing.NewService(stores.Prices, log)

	if cfg.Pricing.FeedURL != "" {
		feedCfg := pricing.DefaultFeedConfig(cfg.Pricing.FeedURL)
		feedCfg.Source = cfg.Pricing.Source
		feedCfg.MinInterval = cfg.Pricing.FeedInterval
		feed := pricing.NewWSFeed(feedCfg, priceSvc, log)
		go func() {
			if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("price feed stopped")
			}
		}()
	} else {
		log.Warn("no price feed configured; holdings requests fail until a price is recorded")
	}

	var durable ratelimit.Limiter
	if cfg.RedisConfigured() {
		client := ratelimit.NewRedisClient(cfg.RateLimit.RedisAddr, cfg.RateLimit.RedisPassword, cfg.RateLimit.RedisDB)
		defer client.Close()
		durable = ratelimit.NewRedisLimiter(client, cfg.RateLimit.Limit, cfg.RateLimit.Window, log)
	}
	limiter := ratelimit.NewTiered(
		durable,
		ratelimit.NewMemoryLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window, cfg.RateLimit.CleanupInterval),
		log,
	)

	scanner := discovery.NewScanner(
		discovery.NewIndexClient(&http.Client{Timeout: cfg.Discovery.Timeout}, cfg.Discovery.RequestsPerSecond, cfg.Discovery.Burst),
		discovery.DefaultVenues(cfg.Discovery.HKEXBaseURL),
		stores.Candidates,
		monitor,
		log,
		discovery.ScannerOptions{Lookback: cfg.Discovery.Lookback},
	)

	var refresher api.MarketDataRefresher
	if cfg.MarketData.QuoteURL != "" {
		provider := marketdata.NewHTTPProvider(cfg.MarketData.QuoteURL, cfg.MarketData.Timeout)
		refresher = marketdata.NewRefresher(provider, reg, monitor, cfg.MarketData.Concurrency, log)
	}

	server := api.NewServer(cfg.Server.Addr, cfg.Server.ShutdownTimeout, api.Deps{
		Limiter:     limiter,
		Prices:      priceSvc,
		Holdings:    holdingsSvc,
		Entities:    reg,
		Scanner:     scanner,
		Refresher:   refresher,
		Health:      observability.NewHealthChecker(stores.DB, limiter.DurablePinger(), monitor),
		Recorder:    monitor,
		AdminSecret: cfg.RequireAdminSecret,
		Log:         log,
	})
	return server.Run(ctx)
}
