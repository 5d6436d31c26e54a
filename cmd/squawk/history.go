package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/varactor/squawk/internal/archive"
	"github.com/varactor/squawk/internal/config"
)

// runHistory queries the exchange archive: recent exchanges for a profile, or
// a full-text search across all of them.
func runHistory(args []string) int {
	fl := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fl.String("config", "config.yaml", "path to the YAML configuration file")
	profileName := fl.String("profile", "", "list recent exchanges for this profile")
	search := fl.String("search", "", "full-text search over transcriptions and responses")
	window := fl.Duration("window", 24*time.Hour, "how far back -profile looks")
	limit := fl.Int("limit", 20, "maximum results for -search (0 for all)")
	fl.Parse(args)

	if (*profileName == "") == (*search == "") {
		fmt.Fprintln(os.Stderr, "squawk: history requires exactly one of -profile or -search")
		fl.Usage()
		return 2
	}

	cfg, err := config.Load(afero.NewOsFs(), *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "squawk: %v\n", err)
		return 1
	}
	slog.SetDefault(newLogger(cfg.LogLevel))

	if cfg.Archive.DSN == "" {
		fmt.Fprintln(os.Stderr, "squawk: history requires archive.dsn in the configuration")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := archive.Open(ctx, cfg.Archive.DSN)
	if err != nil {
		slog.Error("archive init failed", "err", err)
		return 1
	}
	defer store.Close()

	var exchanges []archive.Exchange
	if *search != "" {
		exchanges, err = store.Search(ctx, *search, *limit)
	} else {
		exchanges, err = store.Recent(ctx, *profileName, *window)
	}
	if err != nil {
		slog.Error("archive query failed", "err", err)
		return 1
	}

	writeExchanges(os.Stdout, exchanges)
	return 0
}

// writeExchanges renders archived exchanges one block per exchange.
func writeExchanges(w io.Writer, exchanges []archive.Exchange) {
	if len(exchanges) == 0 {
		fmt.Fprintln(w, "no exchanges found")
		return
	}
	for _, ex := range exchanges {
		fmt.Fprintf(w, "[%s] %s/%s\n  heard: %s\n  said:  %s\n",
			ex.At.UTC().Format(time.RFC3339), ex.Profile, ex.Persona,
			ex.Transcription, ex.Response)
	}
}
