package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/homeauto/cosmo-monitor/internal/cosmo"
	"github.com/homeauto/cosmo-monitor/internal/logging"
	"github.com/homeauto/cosmo-monitor/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to fixture JSON")
	jsonOut := flag.Bool("json", false, "print the replayed report as JSON")
	verbose := flag.Bool("v", false, "log pipeline steps to stderr")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [--json] [-v]")
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if *verbose {
		logger = slog.New(logging.NewHandler(os.Stderr, false, slog.LevelDebug))
	}

	os.Exit(run(*fixturePath, *jsonOut, logger))
}

// #endregion main

// #region run

func run(path string, jsonOut bool, logger *slog.Logger) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	report, err := replay.Replay(context.Background(), f, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}

	cs := replay.Compare(f, report)
	if jsonOut {
		if err := printJSON(report, cs); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 2
		}
	} else {
		printReport(f, report, cs)
	}

	if replay.Summarize(cs).Divergences > 0 {
		return 1
	}
	return 0
}

// #endregion run

// #region output

func printReport(f *replay.Fixture, report *cosmo.Report, cs []replay.Comparison) {
	if f.Description != "" {
		fmt.Println(f.Description)
		fmt.Println()
	}
	if report == nil {
		fmt.Println("Transition is not a room cleaning; nothing evaluated.")
	} else {
		fmt.Printf("Session: %s\n\n", report.Session)
	}

	fmt.Printf("%-12s| %8s| %8s| %-9s| %-9s| %-21s| %s\n",
		"Room", "Area", "Required", "Expected", "Replayed", "Last clean", "Match")
	fmt.Printf("%-12s+%9s+%9s+%-10s+%-10s+%-22s+%s\n",
		"------------", "---------", "---------", "----------", "----------", "----------------------", "------")

	for _, c := range cs {
		last := "—"
		if !c.ActualLastClean.IsZero() {
			last = c.ActualLastClean.UTC().Format("2006-01-02T15:04:05Z")
		}
		match := "DIFF"
		if c.Match {
			match = "OK"
		}
		fmt.Printf("%-12s| %8.2f| %8.2f| %-9s| %-9s| %-21s| %s\n",
			c.Room, c.Amount, c.Threshold, verdict(c.Expected), verdict(c.Actual), last, match)
	}

	s := replay.Summarize(cs)
	fmt.Printf("\nSummary: %d rooms, %d match, %d diverge\n", s.Rooms, s.Matches, s.Divergences)
}

func verdict(cleaned bool) string {
	if cleaned {
		return "cleaned"
	}
	return "-"
}

func printJSON(report *cosmo.Report, cs []replay.Comparison) error {
	data, err := json.MarshalIndent(struct {
		Report      *cosmo.Report       `json:"report"`
		Comparisons []replay.Comparison `json:"comparisons"`
		Summary     replay.Summary      `json:"summary"`
	}{report, cs, replay.Summarize(cs)}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// #endregion output
