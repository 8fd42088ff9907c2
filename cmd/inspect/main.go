package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/homeauto/cosmo-monitor/internal/cosmo"
	"github.com/homeauto/cosmo-monitor/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to cosmo_monitor.db")
	last := flag.Int("last", 20, "show N most recent runs")
	runID := flag.String("run", "", "show the room decisions of one run")
	rooms := flag.Bool("rooms", false, "show the last recorded clean of every room")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/cosmo_monitor.db [--last N] [--run id] [--rooms] [--json]")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	switch {
	case *runID != "":
		err = runDetailMode(st, *runID, *jsonOut)
	case *rooms:
		err = runRoomsMode(st, *jsonOut)
	default:
		err = runListMode(st, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	RunID        string `json:"run_id"`
	Trigger      string `json:"trigger"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	SessionStart string `json:"session_start,omitempty"`
	SessionEnd   string `json:"session_end,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func runListMode(st *store.Store, last int, jsonOut bool) error {
	runs, err := st.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}

	// store returns DESC, reverse for chronological
	rows := make([]listRow, len(runs))
	for i, r := range runs {
		rows[len(runs)-1-i] = listRow{
			RunID:        r.RunID,
			Trigger:      r.Trigger,
			Status:       r.Status,
			Error:        r.Error,
			SessionStart: formatTime(r.SessionStart),
			SessionEnd:   formatTime(r.SessionEnd),
			CreatedAt:    formatTime(r.CreatedAt),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-10s  %-10s  %-7s  %-20s  %-20s  %s\n",
		"Run", "Trigger", "Status", "Session start", "Session end", "Time")
	fmt.Printf("%-10s+-%-10s+-%-7s+-%-20s+-%-20s+-%s\n",
		"----------", "----------", "-------", "--------------------", "--------------------", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-10s  %-10s  %-7s  %-20s  %-20s  %s\n",
			shortID(r.RunID), r.Trigger, r.Status, dash(r.SessionStart), dash(r.SessionEnd), r.CreatedAt)
		if r.Error != "" {
			fmt.Printf("            error: %s\n", r.Error)
		}
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type decisionRow struct {
	Room      string  `json:"room"`
	Area      float64 `json:"area"`
	Threshold float64 `json:"threshold"`
	Decision  string  `json:"decision"`
	Reason    string  `json:"reason,omitempty"`
	LastEnd   string  `json:"last_end,omitempty"`
}

type detailOutput struct {
	RunID        string        `json:"run_id"`
	Trigger      string        `json:"trigger"`
	Status       string        `json:"status"`
	Error        string        `json:"error,omitempty"`
	SessionStart string        `json:"session_start,omitempty"`
	SessionEnd   string        `json:"session_end,omitempty"`
	CreatedAt    string        `json:"created_at"`
	Decisions    []decisionRow `json:"decisions"`
}

func runDetailMode(st *store.Store, runID string, jsonOut bool) error {
	run, err := st.GetRun(runID)
	if err != nil {
		return err
	}
	entries, err := st.DecisionsForRun(runID)
	if err != nil {
		return err
	}

	out := detailOutput{
		RunID:        run.RunID,
		Trigger:      run.Trigger,
		Status:       run.Status,
		Error:        run.Error,
		SessionStart: formatTime(run.SessionStart),
		SessionEnd:   formatTime(run.SessionEnd),
		CreatedAt:    formatTime(run.CreatedAt),
		Decisions:    make([]decisionRow, len(entries)),
	}
	for i, e := range entries {
		out.Decisions[i] = decisionRow{
			Room:      e.Room,
			Area:      e.Area,
			Threshold: e.Threshold,
			Decision:  e.Decision,
			Reason:    e.Reason,
			LastEnd:   formatTime(e.LastEnd),
		}
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Run:        %s\n", out.RunID)
	fmt.Printf("Trigger:    %s\n", out.Trigger)
	fmt.Printf("Status:     %s\n", out.Status)
	if out.Error != "" {
		fmt.Printf("Error:      %s\n", out.Error)
	}
	fmt.Printf("Session:    %s .. %s\n", dash(out.SessionStart), dash(out.SessionEnd))
	fmt.Printf("Created:    %s\n", out.CreatedAt)

	if len(out.Decisions) == 0 {
		return nil
	}
	fmt.Printf("\n%-12s  %8s  %8s  %-12s  %s\n", "Room", "Area", "Required", "Decision", "Last end")
	for _, d := range out.Decisions {
		fmt.Printf("%-12s  %8.2f  %8.2f  %-12s  %s\n", d.Room, d.Area, d.Threshold, d.Decision, dash(d.LastEnd))
	}
	return nil
}

// #endregion detail-mode

// #region rooms-mode

type roomRow struct {
	Room      string  `json:"room"`
	Entity    string  `json:"entity"`
	LastClean string  `json:"last_clean"`
	Area      float64 `json:"area"`
	RunID     string  `json:"run_id"`
}

func runRoomsMode(st *store.Store, jsonOut bool) error {
	cleans, err := st.LastCleans()
	if err != nil {
		return err
	}
	rows := make([]roomRow, len(cleans))
	for i, c := range cleans {
		rows[i] = roomRow{
			Room:      c.Room,
			Entity:    cosmo.EntityName(c.Room),
			LastClean: formatTime(c.LastClean),
			Area:      c.Area,
			RunID:     c.RunID,
		}
	}

	if jsonOut {
		return printJSON(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "no room cleans recorded")
		return nil
	}

	fmt.Printf("%-12s  %-20s  %8s  %s\n", "Room", "Last clean", "Area", "Run")
	for _, r := range rows {
		fmt.Printf("%-12s  %-20s  %8.2f  %s\n", r.Room, r.LastClean, r.Area, shortID(r.RunID))
	}
	return nil
}

// #endregion rooms-mode

// #region output

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

func dash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
