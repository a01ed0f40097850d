package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cuemby/brigade/pkg/alerts"
	"github.com/cuemby/brigade/pkg/auth"
	"github.com/cuemby/brigade/pkg/config"
	"github.com/cuemby/brigade/pkg/deduction"
	"github.com/cuemby/brigade/pkg/events"
	"github.com/cuemby/brigade/pkg/ledger"
	"github.com/cuemby/brigade/pkg/metrics"
	"github.com/cuemby/brigade/pkg/orders"
	"github.com/cuemby/brigade/pkg/recipe"
	"github.com/cuemby/brigade/pkg/reconciler"
	"github.com/cuemby/brigade/pkg/storage"
	"github.com/shopspring/decimal"
)

// app holds the wired domain components shared by every command
type app struct {
	store   storage.Store
	broker  *events.Broker
	auth    *auth.Authenticator
	ledger  *ledger.Ledger
	alerts  *alerts.Router
	engine  *deduction.Engine
	machine *orders.Machine
	recipes *recipe.Catalog
}

func openStore(ctx context.Context, c *config.Config) (storage.Store, error) {
	switch c.Storage.Driver {
	case config.DriverPostgres:
		return storage.NewPostgresStore(ctx, c.Storage.Postgres.ConnString())
	default:
		if err := os.MkdirAll(c.Storage.DataDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		return storage.NewBoltStore(c.Storage.DataDir)
	}
}

func newApp(ctx context.Context, c *config.Config) (*app, error) {
	store, err := openStore(ctx, c)
	if err != nil {
		return nil, err
	}

	broker := events.NewBroker()
	broker.OnDrop(func(*events.Event) { metrics.EventsDroppedTotal.Inc() })
	broker.Start()

	router := alerts.NewRouter(store, broker)
	l := ledger.New(store, broker)
	engine := deduction.NewEngine(store, recipe.NewResolver(store), l, router)
	machine := orders.NewMachine(store, engine, router, broker, orders.Pricing{
		TaxRate: decimal.NewFromFloat(c.Pricing.TaxRate),
		TipRate: decimal.NewFromFloat(c.Pricing.TipRate),
	})

	return &app{
		store:   store,
		broker:  broker,
		auth:    auth.New(c.Auth.JWTSecret),
		ledger:  l,
		alerts:  router,
		engine:  engine,
		machine: machine,
		recipes: recipe.NewCatalog(store),
	}, nil
}

func (a *app) reconciler(c *config.Config) *reconciler.Reconciler {
	return reconciler.NewReconciler(a.store, a.machine, a.engine, reconciler.Config{
		Interval:    c.Reconciler.Interval,
		RetryAfter:  c.Reconciler.RetryAfter,
		MaxAttempts: c.Reconciler.MaxAttempts,
	})
}

func (a *app) close() {
	a.broker.Stop()
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close store: %v\n", err)
	}
}
