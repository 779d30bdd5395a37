package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DoyleJ11/cricket-live-backend/internal/broadcast"
	"github.com/DoyleJ11/cricket-live-backend/internal/config"
	"github.com/DoyleJ11/cricket-live-backend/internal/httpapi"
	"github.com/DoyleJ11/cricket-live-backend/internal/hub"
	"github.com/DoyleJ11/cricket-live-backend/internal/identity"
	"github.com/DoyleJ11/cricket-live-backend/internal/logging"
	"github.com/DoyleJ11/cricket-live-backend/internal/match"
	"github.com/DoyleJ11/cricket-live-backend/internal/metrics"
	"github.com/DoyleJ11/cricket-live-backend/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	deps := match.Deps{
		Metrics:        rec,
		Logger:         logger,
		QueueDepth:     cfg.QueueDepth,
		PublishTimeout: cfg.PublishTimeout,
	}
	routes := httpapi.Deps{
		Verifier:         identity.NewVerifier(cfg.JWTSecret),
		Metrics:          metrics.Handler(reg),
		Logger:           logger,
		DefaultOvers:     cfg.DefaultOvers,
		SubscriberBuffer: cfg.SubscriberBuffer,
	}

	if cfg.DBDriver == config.DriverNone {
		grants := identity.NewAllowList()
		deps.Authorizer = grants
		routes.Grants = grants
		logger.Warn("no database configured, scorer grants and results are kept in memory")
	} else {
		st, err := store.Open(cfg.DBDriver, cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()
		deps.Authorizer = st
		deps.Recorder = st
		routes.Grants = st
		routes.Archive = st
	}

	broker := broadcast.NewBroker(logger)
	defer broker.Close()
	deps.Publisher = broker
	routes.Broker = broker

	// Not tied to the signal context: machines keep running until the HTTP
	// server has drained in-flight submissions.
	h := hub.NewHub(context.Background(), deps)
	routes.Hub = h

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.SetupRoutes(routes),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		// Every committed snapshot is published and saved before this returns.
		h.Shutdown()
		return err
	})
	return g.Wait()
}
