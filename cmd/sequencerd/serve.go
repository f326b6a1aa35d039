package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	api "github.com/mind-engage/mindengage-sequencer/internal/api/http"
	auth "github.com/mind-engage/mindengage-sequencer/internal/auth/middleware"
	"github.com/mind-engage/mindengage-sequencer/internal/config"
	"github.com/mind-engage/mindengage-sequencer/internal/engine"
	"github.com/mind-engage/mindengage-sequencer/internal/grading"
	"github.com/mind-engage/mindengage-sequencer/internal/logging"
	"github.com/mind-engage/mindengage-sequencer/internal/metrics"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	log := logging.New(logging.Config{Level: cfg.LogLevel, JSON: cfg.LogJSON, Service: "sequencerd"})

	defaults, err := config.LoadDefaults(cfg.DefaultsFile)
	if err != nil {
		return err
	}

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	l, closeLedger, err := openLedger(openCtx, cfg, log)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		if err := closeLedger(); err != nil {
			log.Error("close ledger", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	eng := engine.New(l, engine.WithLogger(log), engine.WithMetrics(metrics.New(reg)))
	authSvc := auth.NewAuthService(cfg.AuthSecret, time.Duration(cfg.TokenTTLMin)*time.Minute)
	router := api.NewRouter(api.Deps{
		Engine:         eng,
		Defaults:       defaults,
		Grader:         grading.New(),
		PreviewSamples: cfg.PreviewSamples,
	}, authSvc, api.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		RequestLog:  true,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", cfg.HTTPAddr, "ledger", cfg.LedgerDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
