// Command quakesync mirrors the USGS earthquake feed into a record store and
// serves the filtered dashboard view over HTTP and WebSocket.
//
// Usage:
//
//	quakesync [serve]                 run the poller and the HTTP server
//	quakesync sync                    run one ingestion pass and exit
//	quakesync list --min-mag 2.5      print the presented list, no persistence
//	quakesync check feed.geojson      report malformed features in a feed file
package main

import (
	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// CLI is the command tree. Settings come from the environment (and .env).
type CLI struct {
	Serve ServeCmd `cmd:"" default:"1" help:"Poll the feed and serve the dashboard API (default)."`
	Sync  SyncCmd  `cmd:"" help:"Run one ingestion pass and exit."`
	List  ListCmd  `cmd:"" help:"Fetch the feed and print the presented list without persisting."`
	Check CheckCmd `cmd:"" help:"Validate a GeoJSON feed file and report malformed features."`
}

func main() {
	_ = godotenv.Load()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("quakesync"),
		kong.Description("USGS earthquake feed sync and dashboard backend."),
		kong.UsageOnError(),
	)
	kctx.FatalIfErrorf(kctx.Run())
}
