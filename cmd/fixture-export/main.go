package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/homeauto/cosmo-monitor/internal/config"
	"github.com/homeauto/cosmo-monitor/internal/hass"
	"github.com/homeauto/cosmo-monitor/internal/replay"
)

// #region main

func main() {
	outPath := flag.String("out", "", "output fixture JSON path")
	at := flag.String("now", "", "end of the exported window (RFC 3339), default now")
	description := flag.String("description", "", "fixture description")
	flag.Parse()

	if *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --out path/to/fixture.json [--now 2024-03-01T12:00:00Z] [--description text]")
		os.Exit(2)
	}

	now := time.Now().UTC().Truncate(time.Second)
	if *at != "" {
		t, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid --now: %v\n", err)
			os.Exit(2)
		}
		now = t.UTC()
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg, now, *description, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(cfg config.Config, now time.Time, description, outPath string) error {
	client := hass.NewClient(cfg.Hass.URL, cfg.Hass.Token, hass.Options{
		RateInterval: cfg.Hass.RateInterval,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if !client.Available() {
		return errors.New("HASS_TOKEN is not set")
	}

	overrides, err := config.ParseThresholds(cfg.Monitor.Thresholds)
	if err != nil {
		return err
	}
	ents := cfg.Monitor.Entities
	f := &replay.Fixture{
		Description: description,
		Now:         now,
		Config: replay.FixtureConfig{
			LookbackHours:   int(cfg.Monitor.Lookback / time.Hour),
			DebounceSeconds: int(cfg.Monitor.Debounce / time.Second),
			RefineMode:      cfg.Monitor.RefineMode,
			Thresholds:      overrides,
			TaskStatus:      ents.TaskStatus,
			Vacuum:          ents.Vacuum,
			CurrentRoom:     ents.CurrentRoom,
			CleanedArea:     ents.CleanedArea,
		},
		Entities: make(map[string][]hass.State, 4),
	}

	ctx := context.Background()
	start := now.Add(-cfg.Monitor.Lookback)
	for _, id := range []string{ents.TaskStatus, ents.Vacuum, ents.CurrentRoom, ents.CleanedArea} {
		sets, err := client.History(ctx, id, start, now)
		if err != nil {
			return fmt.Errorf("history %s: %w", id, err)
		}
		if len(sets) != 1 {
			return fmt.Errorf("history %s: expected 1 result set, got %d", id, len(sets))
		}
		for i := range sets[0] {
			sets[0][i].Attributes = nil
		}
		f.Entities[id] = sets[0]
		fmt.Printf("%-36s %4d rows\n", id, len(sets[0]))
	}

	report, err := replay.Replay(ctx, f, nil)
	if err != nil {
		return fmt.Errorf("replay exported history: %w", err)
	}
	f.Expected = replay.Expectations(report)
	if f.Description == "" {
		f.Description = fmt.Sprintf("Export of %s: session %s", now.Format(time.RFC3339), report.Session)
	}

	if err := replay.WriteFixture(outPath, f); err != nil {
		return err
	}
	fmt.Printf("Wrote fixture to %s (%d rooms, %d cleaned)\n", outPath, len(f.Expected), len(report.Cleaned()))
	return nil
}

// #endregion extract
