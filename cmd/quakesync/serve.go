package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/quake-sync/internal/adapter/http"
	"github.com/couchcryptid/quake-sync/internal/config"
	"github.com/couchcryptid/quake-sync/internal/dashboard"
	"github.com/couchcryptid/quake-sync/internal/observability"
	"github.com/couchcryptid/quake-sync/internal/reconcile"
)

// ServeCmd runs the poller and the HTTP server until SIGINT or SIGTERM.
type ServeCmd struct{}

func (c *ServeCmd) Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	cl := &closers{logger: logger}
	defer cl.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger, cl)
	if err != nil {
		return err
	}
	logger.Info("record store ready", "backend", cfg.StoreBackend)

	manager, err := newAuthManager(ctx, cfg, st, logger, metrics, cl)
	if err != nil {
		return err
	}
	pub, err := newPublisher(cfg, logger, cl)
	if err != nil {
		return err
	}

	hub := httpadapter.NewHub(logger, metrics)
	markers := dashboard.NewMarkerLayer(hub, clockwork.NewRealClock(), cfg.PulseInterval, metrics)
	state := dashboard.New(cfg.DisplayLocation, markers, hub, metrics)

	p := newPipeline(cfg, reconcile.New(st.collection, logger, metrics), state, pub, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Ready:       p,
		State:       state,
		Auth:        manager,
		Sync:        p,
		Hub:         hub,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start the poller.
	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		if err := p.Run(ctx, cfg.PollInterval); err != nil {
			logger.Error("poller error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-pollerDone:
	case <-shutdownCtx.Done():
		logger.Warn("poller did not stop before the shutdown timeout")
	}
	state.Close()
	hub.Close()

	logger.Info("shutdown complete")
	return nil
}
