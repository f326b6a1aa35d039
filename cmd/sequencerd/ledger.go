package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mind-engage/mindengage-sequencer/internal/config"
	"github.com/mind-engage/mindengage-sequencer/internal/db"
	"github.com/mind-engage/mindengage-sequencer/internal/ledger"
)

// openLedger returns the configured store and a func releasing it.
func openLedger(ctx context.Context, cfg config.Config, log *slog.Logger) (ledger.Ledger, func() error, error) {
	noop := func() error { return nil }
	switch cfg.LedgerDriver {
	case config.LedgerMemory:
		return ledger.NewMemoryStore(), noop, nil
	case config.LedgerSQLite, config.LedgerPostgres:
		dbh, err := db.Open(ctx, db.Driver(cfg.LedgerDriver), cfg.LedgerDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s ledger: %w", cfg.LedgerDriver, err)
		}
		return ledger.NewSQLStore(dbh), dbh.Close, nil
	case config.LedgerBadger:
		b, err := ledger.OpenBadger(ledger.BadgerConfig{
			Path:     cfg.BadgerDir,
			InMemory: cfg.BadgerDir == "",
			Logger:   log.With("component", "badger"),
		})
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown LEDGER_DRIVER %q", cfg.LedgerDriver)
	}
}
