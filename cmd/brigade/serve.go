package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/brigade/pkg/api"
	"github.com/cuemby/brigade/pkg/health"
	"github.com/cuemby/brigade/pkg/log"
	"github.com/cuemby/brigade/pkg/metrics"
	"github.com/cuemby/brigade/pkg/realtime"
	"github.com/cuemby/brigade/pkg/relay"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, websocket gateway and background workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.WithComponent("serve")
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		metrics.SetVersion(Version)
		metrics.RegisterProbe("storage", true, a.store.Ping)

		collector := metrics.NewCollector(a.store, 15*time.Second)
		collector.Start()
		defer collector.Stop()

		rec := a.reconciler(cfg)
		if err := rec.Start(); err != nil {
			return err
		}
		defer rec.Stop()

		gateway := realtime.NewGateway(a.broker, a.auth, a.alerts, realtime.Options{
			MessagesPerSecond: cfg.Realtime.MessagesPerSecond,
			Burst:             cfg.Realtime.Burst,
			AllowedOrigins:    cfg.Server.AllowedOrigins,
		})
		server := api.NewServer(api.Services{
			Orders:    a.machine,
			Ledger:    a.ledger,
			Engine:    a.engine,
			Alerts:    a.alerts,
			Recipes:   a.recipes,
			Auth:      a.auth,
			Websocket: gateway,
		}, api.Options{AllowedOrigins: cfg.Server.AllowedOrigins})

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			return server.Start(cfg.Server.HTTPAddr)
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})

		if cfg.Server.GRPCAddr != "" {
			grpcHealth := api.NewHealthServer(5 * time.Second)
			g.Go(func() error {
				return grpcHealth.Start(gctx, cfg.Server.GRPCAddr)
			})
			g.Go(func() error {
				<-gctx.Done()
				grpcHealth.Stop()
				return nil
			})
		}

		if cfg.Broker.Enabled {
			r := relay.New(relay.Config{URL: cfg.Broker.URL, Exchange: cfg.Broker.Exchange}, a.broker)
			metrics.RegisterComponent("relay", false, false, "connecting")
			g.Go(func() error {
				return r.Run(gctx)
			})

			addr, err := health.BrokerAddress(cfg.Broker.URL)
			if err != nil {
				return err
			}
			g.Go(func() error {
				health.Watch(gctx, "rabbitmq", false, health.NewTCPChecker(addr), health.DefaultConfig())
				return nil
			})
		}

		logger.Info().
			Str("version", Version).
			Str("storage", cfg.Storage.Driver).
			Str("http_addr", cfg.Server.HTTPAddr).
			Bool("relay", cfg.Broker.Enabled).
			Msg("Brigade is running")

		err = g.Wait()
		logger.Info().Msg("Shutdown complete")
		return err
	},
}
