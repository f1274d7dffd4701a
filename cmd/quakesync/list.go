package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/quake-sync/internal/config"
	"github.com/couchcryptid/quake-sync/internal/domain"
	"github.com/couchcryptid/quake-sync/internal/observability"
)

// ListCmd fetches the feed and prints the presented list. Nothing is written
// to the store.
type ListCmd struct {
	MinMag  *float64      `name:"min-mag" help:"Only list quakes with magnitude >= this value."`
	JSON    bool          `name:"json" help:"Print JSON instead of a table."`
	Timeout time.Duration `default:"30s" help:"Abort the fetch after this long."`
}

func (c *ListCmd) Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	p := newPipeline(cfg, nil, discardSnapshot{}, nil, logger, metrics)
	records, _, err := p.Load(ctx)
	if err != nil {
		return err
	}
	if c.MinMag != nil {
		records = domain.Filter(records, *c.MinMag)
	}
	list := domain.Present(records, cfg.DisplayLocation)

	if c.JSON {
		return writeResult(os.Stdout, list)
	}
	return renderList(os.Stdout, list)
}

// renderList prints the header and one aligned row per entry.
func renderList(w io.Writer, list domain.List) error {
	if _, err := fmt.Fprintln(w, list.Header); err != nil {
		return err
	}
	if len(list.Entries) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, e := range list.Entries {
		fmt.Fprintf(tw, "M %s\t%s\t%s\t%s\t%s\n", e.Magnitude, e.Place, e.LocalTime, e.Depth, e.Hex)
	}
	return tw.Flush()
}
