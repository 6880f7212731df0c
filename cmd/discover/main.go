// Package main runs a one-shot discovery scan over tracked entities, or
// imports a holdings bulk export when -import is given.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"btc-treasury-tracker/internal/app"
	"btc-treasury-tracker/internal/config"
	"btc-treasury-tracker/internal/discovery"
	"btc-treasury-tracker/internal/holdings"
	"btc-treasury-tracker/internal/logger"
	"btc-treasury-tracker/internal/observability"
	"btc-treasury-tracker/internal/registry"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML config file")
	region := flag.String("region", "", "Only scan entities in this region")
	importPath := flag.String("import", "", "Import a holdings CSV export instead of scanning")
	flag.Parse()

	log := logger.GetLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Fatal("failed to configure logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, cleanup, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open stores")
	}

	reg := registry.New(stores.Entities, log)

	var code int
	if *importPath != "" {
		code = runImport(ctx, *importPath, reg, holdings.NewService(stores.Snapshots, stores.Holdings, log), log)
	} else {
		code = runScan(ctx, cfg, *region, reg, stores, log)
	}

	cleanup()
	stop()
	os.Exit(code)
}

func runImport(ctx context.Context, path string, reg *registry.Registry, svc *holdings.Service, log *logger.Log) int {
	f, err := os.Open(path)
	if err != nil {
		log.WithError(err).Error("failed to open import file")
		return 1
	}
	defer f.Close()

	res, err := holdings.NewImporter(reg, svc, log).Import(ctx, f)
	if err != nil {
		log.WithError(err).Error("import failed")
		return 1
	}

	fmt.Printf("Rows:             %d\n", res.Rows)
	fmt.Printf("Imported:         %d\n", res.Imported)
	fmt.Printf("Entities created: %d\n", res.EntitiesCreated)
	fmt.Printf("Rejected:         %d\n", len(res.Errors))
	for _, rowErr := range res.Errors {
		fmt.Printf("  %v\n", rowErr)
	}
	if len(res.Errors) > 0 {
		return 1
	}
	return 0
}

func runScan(ctx context.Context, cfg *config.Config, region string, reg *registry.Registry, stores *app.Stores, log *logger.Log) int {
	entities, err := reg.ListByRegion(ctx, region)
	if err != nil {
		log.WithError(err).Error("failed to list entities")
		return 1
	}
	if len(entities) == 0 {
		fmt.Println("No entities to scan")
		return 0
	}

	monitor := observability.NewMonitor(observability.MonitorOptions{
		SlowThreshold: cfg.Observability.SlowThreshold,
	}, log)
	scanner := discovery.NewScanner(
		discovery.NewIndexClient(&http.Client{Timeout: cfg.Discovery.Timeout}, cfg.Discovery.RequestsPerSecond, cfg.Discovery.Burst),
		discovery.DefaultVenues(cfg.Discovery.HKEXBaseURL),
		stores.Candidates,
		monitor,
		log,
		discovery.ScannerOptions{Lookback: cfg.Discovery.Lookback},
	)

	start := time.Now()
	batch := scanner.ScanAll(ctx, entities)
	logger.LogPerformance(log.WithComponent("discover"), "discovery.scan_all", time.Since(start), logger.Fields{
		"entities": len(batch.Results),
		"inserted": batch.Inserted,
		"failed":   batch.Failed,
	})

	fmt.Printf("Scanned %d entities: %d new candidates, %d failed\n", len(batch.Results), batch.Inserted, batch.Failed)
	for _, r := range batch.Results {
		if r.Inserted() == 0 {
			continue
		}
		fmt.Printf("  %-10s %d new\n", r.Ticker, r.Inserted())
		for _, c := range r.Candidates {
			fmt.Printf("    %s  %s\n", c.DisclosedAt.Format("2006-01-02"), c.Title)
		}
	}

	failures := batch.Errors()
	tickers := make([]string, 0, len(failures))
	for t := range failures {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	for _, t := range tickers {
		if errors.Is(failures[t], discovery.ErrUnsupportedVenue) {
			continue
		}
		fmt.Printf("  FAILED %-10s %v\n", t, failures[t])
	}

	stats := monitor.Stats()
	fmt.Printf("Average scan time: %.0fms (max %.0fms)\n", stats.AverageMs, stats.MaxMs)

	if batch.Failed > 0 {
		return 1
	}
	return 0
}
