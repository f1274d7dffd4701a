package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/quake-sync/internal/config"
	"github.com/couchcryptid/quake-sync/internal/domain"
	"github.com/couchcryptid/quake-sync/internal/observability"
	"github.com/couchcryptid/quake-sync/internal/reconcile"
)

// discardSnapshot drops the snapshot; one-shot commands have no dashboard.
type discardSnapshot struct{}

func (discardSnapshot) Replace([]domain.EncodedQuake) {}

// SyncCmd runs one ingestion pass against the configured store and exits.
type SyncCmd struct {
	Timeout time.Duration `default:"2m" help:"Abort the pass after this long."`
}

func (c *SyncCmd) Run() error {
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
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	st, err := openStores(ctx, cfg, logger, cl)
	if err != nil {
		return err
	}
	pub, err := newPublisher(cfg, logger, cl)
	if err != nil {
		return err
	}

	p := newPipeline(cfg, reconcile.New(st.collection, logger, metrics), discardSnapshot{}, pub, logger, metrics)
	result, err := p.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("sync pass: %w", err)
	}
	return writeResult(os.Stdout, result)
}

func writeResult(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
