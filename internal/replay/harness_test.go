package replay

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/homeauto/cosmo-monitor/internal/attribution"
	"github.com/homeauto/cosmo-monitor/internal/cosmo"
	"github.com/homeauto/cosmo-monitor/internal/hass"
	"github.com/homeauto/cosmo-monitor/internal/history"
	"github.com/homeauto/cosmo-monitor/internal/session"
)

func loadRoomClean(t *testing.T) *Fixture {
	t.Helper()
	f, err := LoadFixture(filepath.Join("testdata", "room_clean.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	return f
}

// 1. Trim mode ends the session where the vacuum started returning.
func TestReplay_TrimMode(t *testing.T) {
	f := loadRoomClean(t)
	f.Config.RefineMode = "trim"

	report, err := Replay(context.Background(), f, nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	want := time.Date(2023, 11, 27, 10, 42, 0, 0, time.UTC)
	if !report.Session.End.Equal(want) {
		t.Errorf("session end = %s, want %s", report.Session.End, want)
	}
	if s := Summarize(Compare(f, report)); s.Divergences != 0 {
		t.Errorf("expected no divergences, got %+v", s)
	}
}

// 2. A transition that does not finish a cleaning yields no report.
func TestReplay_IgnoredTransition(t *testing.T) {
	f := loadRoomClean(t)
	f.Transition = &FixtureTransition{Old: cosmo.TaskCompleted, New: cosmo.TaskRoomCleaning}

	report, err := Replay(context.Background(), f, nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if report != nil {
		t.Fatalf("expected nil report, got %+v", report)
	}
}

// 3. No transition: the fixture is evaluated unconditionally.
func TestReplay_NoTransition(t *testing.T) {
	f := loadRoomClean(t)
	f.Transition = nil

	report, err := Replay(context.Background(), f, nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if report.Trigger != cosmo.TriggerManual {
		t.Errorf("trigger = %q, want %q", report.Trigger, cosmo.TriggerManual)
	}
	if got := report.Cleaned(); len(got) != 1 || got[0] != "Kitchen" {
		t.Errorf("cleaned = %v, want [Kitchen]", got)
	}
}

// 4. Only completed states in the lookback: no session.
func TestReplay_NoSession(t *testing.T) {
	f := loadRoomClean(t)
	f.Entities["sensor.cosmo_task_status"] = []hass.State{{
		EntityID:    "sensor.cosmo_task_status",
		State:       cosmo.TaskCompleted,
		LastChanged: time.Date(2023, 11, 27, 6, 0, 0, 0, time.UTC),
		LastUpdated: time.Date(2023, 11, 27, 6, 0, 0, 0, time.UTC),
	}}

	_, err := Replay(context.Background(), f, nil)
	if !errors.Is(err, session.ErrNoSessionFound) {
		t.Fatalf("expected ErrNoSessionFound, got %v", err)
	}
}

// 5. A missing entity means the history source returned no result set.
func TestReplay_MissingEntity(t *testing.T) {
	f := loadRoomClean(t)
	delete(f.Entities, "sensor.cosmo_cleaned_area")

	_, err := Replay(context.Background(), f, nil)
	if !errors.Is(err, history.ErrHistoryUnavailable) {
		t.Fatalf("expected ErrHistoryUnavailable, got %v", err)
	}
}

func TestCompare_Divergence(t *testing.T) {
	f := &Fixture{Expected: []FixtureExpectedResult{
		{Room: "Kitchen", Cleaned: true, LastClean: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)},
		{Room: "Office", Cleaned: true},
	}}
	report := &cosmo.Report{Decisions: []attribution.Decision{
		{Category: "Kitchen", Met: true, LastEnd: time.Date(2024, 1, 1, 9, 5, 0, 0, time.UTC)},
		{Category: "Lounge", Met: false},
	}}

	cs := Compare(f, report)
	if len(cs) != 3 {
		t.Fatalf("expected 3 comparisons, got %d", len(cs))
	}
	byRoom := map[string]Comparison{}
	for _, c := range cs {
		byRoom[c.Room] = c
	}
	if byRoom["Kitchen"].Match {
		t.Error("Kitchen: last clean differs, expected divergence")
	}
	if byRoom["Office"].Match {
		t.Error("Office: missing from report, expected divergence")
	}
	if !byRoom["Lounge"].Match {
		t.Error("Lounge: not cleaned on both sides, expected match")
	}
	if cs[0].Room != "Kitchen" || cs[2].Room != "Office" {
		t.Errorf("expected rooms sorted, got %s..%s", cs[0].Room, cs[2].Room)
	}

	s := Summarize(cs)
	if s.Rooms != 3 || s.Matches != 1 || s.Divergences != 2 {
		t.Errorf("summary = %+v", s)
	}
}

func TestCompare_NilReport(t *testing.T) {
	f := &Fixture{Expected: []FixtureExpectedResult{{Room: "Kitchen", Cleaned: false}}}
	cs := Compare(f, nil)
	if len(cs) != 1 || !cs[0].Match {
		t.Errorf("expected a single match, got %+v", cs)
	}
}

func TestExpectations(t *testing.T) {
	if Expectations(nil) != nil {
		t.Error("expected nil for nil report")
	}
	end := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	got := Expectations(&cosmo.Report{Decisions: []attribution.Decision{
		{Category: "Kitchen", Met: true, LastEnd: end},
		{Category: "Office"},
	}})
	if len(got) != 2 {
		t.Fatalf("expected 2 expectations, got %d", len(got))
	}
	if !got[0].Cleaned || !got[0].LastClean.Equal(end) {
		t.Errorf("Kitchen = %+v", got[0])
	}
	if got[1].Cleaned || !got[1].LastClean.IsZero() {
		t.Errorf("Office = %+v", got[1])
	}
}
