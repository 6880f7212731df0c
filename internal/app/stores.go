// Package app wires configured storage backends for the binaries.
package app

import (
	"context"
	"fmt"

	"btc-treasury-tracker/internal/config"
	"btc-treasury-tracker/internal/logger"
	"btc-treasury-tracker/internal/storage"
	chstore "btc-treasury-tracker/internal/storage/clickhouse"
	"btc-treasury-tracker/internal/storage/memory"
	"btc-treasury-tracker/internal/storage/migrations"
	pgstore "btc-treasury-tracker/internal/storage/postgres"
)

// Stores holds every store the services need.
type Stores struct {
	Entities   storage.EntityStore
	Candidates storage.CandidateStore
	Snapshots  storage.SnapshotStore
	Holdings   storage.HoldingsView
	Prices     storage.PriceStore
	// DB answers readiness probes against the primary datastore.
	DB storage.Pinger
}

// OpenStores connects the configured backends, applies migrations, and
// returns the stores with a cleanup function closing every connection.
func OpenStores(ctx context.Context, cfg *config.Config, log *logger.Log) (*Stores, func(), error) {
	appLog := log.WithComponent("app")

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var pool *pgstore.Pool
	if cfg.Storage.Backend == config.BackendPostgres || cfg.Pricing.Backend == config.BackendPostgres {
		p, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, p.Close)
		applied, err := migrations.RunPostgresMigrations(ctx, p)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		logApplied(appLog, config.BackendPostgres, applied)
		pool = p
	}

	stores := &Stores{}
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		view := pgstore.NewHoldingsView(pool)
		stores.Entities = pgstore.NewEntityStore(pool)
		stores.Candidates = pgstore.NewCandidateStore(pool)
		stores.Snapshots = pgstore.NewSnapshotStore(pool)
		stores.Holdings = view
		stores.DB = view
	default:
		entities := memory.NewEntityStore()
		candidates := memory.NewCandidateStore()
		snapshots := memory.NewSnapshotStore()
		view := memory.NewHoldingsView(entities, snapshots, candidates)
		stores.Entities = entities
		stores.Candidates = candidates
		stores.Snapshots = snapshots
		stores.Holdings = view
		stores.DB = view
	}

	switch cfg.Pricing.Backend {
	case config.BackendPostgres:
		stores.Prices = pgstore.NewPriceStore(pool)
	case config.BackendClickhouse:
		conn, applied, err := migrations.RunClickhouseMigrations(ctx, cfg.Pricing.ClickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		logApplied(appLog, config.BackendClickhouse, applied)
		closers = append(closers, func() { _ = conn.Close() })
		stores.Prices = chstore.NewPriceStore(conn)
	default:
		stores.Prices = memory.NewPriceStore()
	}

	appLog.WithFields(logger.Fields{
		"storage": cfg.Storage.Backend,
		"pricing": cfg.Pricing.Backend,
	}).Info("stores ready")
	return stores, cleanup, nil
}

func logApplied(log *logger.Entry, backend string, applied []migrations.Migration) {
	for _, m := range applied {
		log.WithFields(logger.Fields{
			"backend": backend,
			"version": m.Version,
			"name":    m.Name,
		}).Info("migration applied")
	}
}
