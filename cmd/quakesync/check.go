package main

import (
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/quake-sync/internal/domain"
)

// CheckCmd validates a saved feed document.
type CheckCmd struct {
	File   string `arg:"" type:"existingfile" help:"GeoJSON FeatureCollection to check."`
	Strict bool   `help:"Exit non-zero when any feature is malformed."`
}

// checkReport summarizes a feed document.
type checkReport struct {
	Features     int
	Valid        int
	MissingMag   int
	MissingDepth int
	Malformed    []domain.SkippedFeature
	DuplicateIDs []string
}

func (c *CheckCmd) Run() error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("read feed: %w", err)
	}
	report, err := checkFeed(data)
	if err != nil {
		return err
	}
	printReport(os.Stdout, c.File, report)
	if c.Strict && (len(report.Malformed) > 0 || len(report.DuplicateIDs) > 0) {
		return fmt.Errorf("%s: %d malformed features, %d duplicate ids",
			c.File, len(report.Malformed), len(report.DuplicateIDs))
	}
	return nil
}

func checkFeed(data []byte) (checkReport, error) {
	feed, err := domain.ParseFeed(data)
	if err != nil {
		return checkReport{}, err
	}
	report := checkReport{
		Features:  len(feed.Quakes) + len(feed.Skipped),
		Valid:     len(feed.Quakes),
		Malformed: feed.Skipped,
	}
	seen := make(map[string]bool, len(feed.Quakes))
	for _, q := range feed.Quakes {
		if seen[q.ExternalID] {
			report.DuplicateIDs = append(report.DuplicateIDs, q.ExternalID)
		}
		seen[q.ExternalID] = true
		if _, ok := q.Mag(); !ok {
			report.MissingMag++
		}
		if q.DepthKm == nil {
			report.MissingDepth++
		}
	}
	return report, nil
}

func printReport(w io.Writer, name string, r checkReport) {
	fmt.Fprintf(w, "%s: %d features, %d valid, %d malformed\n", name, r.Features, r.Valid, len(r.Malformed))
	fmt.Fprintf(w, "  missing magnitude: %d (listed, not drawn)\n", r.MissingMag)
	fmt.Fprintf(w, "  missing depth:     %d\n", r.MissingDepth)
	for _, s := range r.Malformed {
		id := s.ID
		if id == "" {
			id = "<no id>"
		}
		fmt.Fprintf(w, "  FAIL feature %d (%s): %v\n", s.Index, id, s.Err)
	}
	for _, id := range r.DuplicateIDs {
		fmt.Fprintf(w, "  FAIL duplicate id %s\n", id)
	}
}
