package replay

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/homeauto/cosmo-monitor/internal/history"
)

// #region fixture-tests

// TestFixture_RoomClean loads the room_clean fixture, replays it and compares
// every room verdict against the recorded expectation. Any change to the
// filters, the session scan or the attribution shows up here.
func TestFixture_RoomClean(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "room_clean.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	report, err := Replay(context.Background(), f, nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if report == nil {
		t.Fatal("expected a report for a room cleaning transition")
	}

	wantStart := time.Date(2023, 11, 27, 10, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2023, 11, 27, 10, 41, 30, 0, time.UTC)
	if !report.Session.Start.Equal(wantStart) || !report.Session.End.Equal(wantEnd) {
		t.Errorf("session = %s, want [%s, %s]", report.Session, wantStart, wantEnd)
	}

	cs := Compare(f, report)
	if len(cs) != len(f.Expected) {
		t.Fatalf("expected %d comparisons, got %d", len(f.Expected), len(cs))
	}
	for _, c := range cs {
		if !c.Match {
			t.Errorf("%s: expected cleaned=%v last_clean=%s, got cleaned=%v last_clean=%s (%s)",
				c.Room, c.Expected, c.ExpectedLastClean, c.Actual, c.ActualLastClean, c.Reason)
		}
	}
	if len(report.Written) != 0 {
		t.Errorf("replay must not write, wrote %v", report.Written)
	}
}

// TestLoadFixture_NotFound verifies error on missing file.
func TestLoadFixture_NotFound(t *testing.T) {
	_, err := LoadFixture("testdata/nonexistent.json")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

// TestLoadFixture_Malformed verifies error on invalid JSON.
func TestLoadFixture_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not valid json}"), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	_, err := LoadFixture(path)
	if err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
}

func TestWriteFixture_RoundTrip(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "room_clean.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), "copy.json")
	if err := WriteFixture(path, f); err != nil {
		t.Fatalf("WriteFixture: %v", err)
	}
	g, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture copy: %v", err)
	}
	if !g.Now.Equal(f.Now) || len(g.Entities) != len(f.Entities) || len(g.Expected) != len(f.Expected) {
		t.Errorf("copy differs: now=%s entities=%d expected=%d", g.Now, len(g.Entities), len(g.Expected))
	}
}

func TestFixtureConfig_Defaults(t *testing.T) {
	cfg := (&FixtureConfig{}).ToMonitorConfig()
	if !cfg.DryRun {
		t.Error("fixture config must be dry-run")
	}
	if cfg.Lookback != 24*time.Hour {
		t.Errorf("lookback = %s, want 24h", cfg.Lookback)
	}
	if cfg.Thresholds["Kitchen"] != 5 {
		t.Errorf("Kitchen threshold = %v, want 5", cfg.Thresholds["Kitchen"])
	}

	cfg = (&FixtureConfig{Thresholds: map[string]float64{"Kitchen": 2}, Vacuum: "vacuum.other"}).ToMonitorConfig()
	if cfg.Thresholds["Kitchen"] != 2 {
		t.Errorf("override Kitchen threshold = %v, want 2", cfg.Thresholds["Kitchen"])
	}
	if cfg.Entities.Vacuum != "vacuum.other" || cfg.Entities.TaskStatus != "sensor.cosmo_task_status" {
		t.Errorf("entities = %+v", cfg.Entities)
	}
}

// #endregion fixture-tests

// #region memory-source-tests

func TestMemorySource_InEffectSample(t *testing.T) {
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	at := func(m int) time.Time { return base.Add(time.Duration(m) * time.Minute) }
	src := NewMemorySource(map[string][]history.Sample{
		"sensor.x": {
			{EntityID: "sensor.x", State: "c", ChangedAt: at(30), ObservedAt: at(30)},
			{EntityID: "sensor.x", State: "a", ChangedAt: at(0), ObservedAt: at(0)},
			{EntityID: "sensor.x", State: "b", ChangedAt: at(10), ObservedAt: at(10)},
			{EntityID: "sensor.x", State: "d", ChangedAt: at(50), ObservedAt: at(50)},
		},
	})

	sets, err := src.GetHistory(context.Background(), "sensor.x", at(20), at(40))
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(sets) != 1 {
		t.Fatalf("expected 1 result set, got %d", len(sets))
	}
	got := sets[0]
	if len(got) != 2 || got[0].State != "b" || got[1].State != "c" {
		t.Errorf("expected [b c], got %+v", got)
	}
}

func TestMemorySource_UnknownEntity(t *testing.T) {
	src := NewMemorySource(nil)
	sets, err := src.GetHistory(context.Background(), "sensor.missing", time.Time{}, time.Now())
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(sets) != 0 {
		t.Errorf("expected no result sets, got %d", len(sets))
	}
}

// #endregion memory-source-tests
