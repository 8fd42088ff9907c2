package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/homeauto/cosmo-monitor/internal/logging"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var base = time.Date(2023, 11, 27, 10, 0, 0, 0, time.UTC)

func TestNewStore_MissingDirectory(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "missing", "test.db"))
	if err == nil {
		s.Close()
		t.Fatal("expected an error for a database in a missing directory")
	}
	if s != nil {
		t.Errorf("expected nil store on error, got %+v", s)
	}
}

// #region run-tests

func TestSaveAndGetRun(t *testing.T) {
	s := tempDB(t)
	run := Run{
		RunID:        "run-1",
		Trigger:      "transition",
		Status:       StatusOK,
		SessionStart: base,
		SessionEnd:   base.Add(40 * time.Minute),
		CreatedAt:    base.Add(41 * time.Minute),
	}
	if err := s.SaveRun(run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := s.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Trigger != "transition" || got.Status != StatusOK || got.Error != "" {
		t.Errorf("unexpected run %+v", got)
	}
	if !got.SessionStart.Equal(run.SessionStart) || !got.SessionEnd.Equal(run.SessionEnd) {
		t.Errorf("session mismatch: %s - %s", got.SessionStart, got.SessionEnd)
	}
	if !got.CreatedAt.Equal(run.CreatedAt) {
		t.Errorf("expected created_at %s, got %s", run.CreatedAt, got.CreatedAt)
	}
}

func TestSaveRun_UpdatesOutcome(t *testing.T) {
	s := tempDB(t)
	if err := s.SaveRun(Run{RunID: "run-1", Trigger: "startup", Status: StatusOK}); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := s.SaveRun(Run{RunID: "run-1", Trigger: "startup", Status: StatusFailed, Error: "no session found"}); err != nil {
		t.Fatalf("SaveRun update: %v", err)
	}

	got, err := s.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != StatusFailed || got.Error != "no session found" {
		t.Errorf("expected failed run, got %+v", got)
	}
	if !got.SessionStart.IsZero() {
		t.Errorf("expected no session, got %s", got.SessionStart)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	s := tempDB(t)
	if _, err := s.GetRun("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	s := tempDB(t)
	for i, id := range []string{"a", "b", "c"} {
		run := Run{RunID: id, Trigger: "manual", Status: StatusOK, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.SaveRun(run); err != nil {
			t.Fatalf("SaveRun %s: %v", id, err)
		}
	}

	runs, err := s.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].RunID != "c" || runs[1].RunID != "b" {
		t.Errorf("expected newest first, got %s, %s", runs[0].RunID, runs[1].RunID)
	}
}

// #endregion run-tests

// #region room-clean-tests

func TestRecordClean_KeepsNewest(t *testing.T) {
	s := tempDB(t)
	for _, id := range []string{"run-1", "run-2", "run-3"} {
		if err := s.SaveRun(Run{RunID: id, Trigger: "transition", Status: StatusOK}); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}

	if err := s.RecordClean(RoomClean{Room: "Kitchen", LastClean: base.Add(time.Hour), Area: 5.2, RunID: "run-1"}); err != nil {
		t.Fatalf("RecordClean: %v", err)
	}
	// older clean replayed later must not win
	if err := s.RecordClean(RoomClean{Room: "Kitchen", LastClean: base, Area: 9, RunID: "run-2"}); err != nil {
		t.Fatalf("RecordClean older: %v", err)
	}
	if err := s.RecordClean(RoomClean{Room: "Bathroom", LastClean: base, Area: 3.1, RunID: "run-3"}); err != nil {
		t.Fatalf("RecordClean bathroom: %v", err)
	}

	cleans, err := s.LastCleans()
	if err != nil {
		t.Fatalf("LastCleans: %v", err)
	}
	if len(cleans) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(cleans))
	}
	if cleans[0].Room != "Bathroom" || cleans[1].Room != "Kitchen" {
		t.Errorf("expected rooms ordered by name, got %s, %s", cleans[0].Room, cleans[1].Room)
	}
	kitchen := cleans[1]
	if kitchen.RunID != "run-1" || kitchen.Area != 5.2 || !kitchen.LastClean.Equal(base.Add(time.Hour)) {
		t.Errorf("expected newest Kitchen clean kept, got %+v", kitchen)
	}

	if err := s.RecordClean(RoomClean{Room: "Kitchen", LastClean: base.Add(2 * time.Hour), Area: 6, RunID: "run-3"}); err != nil {
		t.Fatalf("RecordClean newer: %v", err)
	}
	cleans, _ = s.LastCleans()
	if cleans[1].RunID != "run-3" {
		t.Errorf("expected newer clean to replace, got %+v", cleans[1])
	}
}

func TestRecordClean_UnknownRun(t *testing.T) {
	s := tempDB(t)
	err := s.RecordClean(RoomClean{Room: "Kitchen", LastClean: base, Area: 5, RunID: "missing"})
	if err == nil {
		t.Fatal("expected foreign key error for unknown run")
	}
}

// #endregion room-clean-tests

// #region decision-tests

func TestDecisionsForRun(t *testing.T) {
	s := tempDB(t)
	if err := s.SaveRun(Run{RunID: "run-1", Trigger: "transition", Status: StatusOK}); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	entries := []logging.DecisionEntry{
		{RunID: "run-1", Room: "Office", Area: 4.9, Threshold: 5, Decision: logging.DecisionNotCleaned},
		{RunID: "run-1", Room: "Kitchen", Area: 5.2, Threshold: 5, Decision: logging.DecisionCleaned, LastEnd: base},
	}
	for _, e := range entries {
		if err := logging.LogDecision(s.DB(), e); err != nil {
			t.Fatalf("LogDecision: %v", err)
		}
	}

	got, err := s.DecisionsForRun("run-1")
	if err != nil {
		t.Fatalf("DecisionsForRun: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(got))
	}
	if got[0].Room != "Kitchen" || !got[0].LastEnd.Equal(base) {
		t.Errorf("unexpected first decision %+v", got[0])
	}
	if got[1].Room != "Office" || !got[1].LastEnd.IsZero() {
		t.Errorf("unexpected second decision %+v", got[1])
	}

	none, err := s.DecisionsForRun("other")
	if err != nil || len(none) != 0 {
		t.Errorf("expected no decisions for other run, got %v (%v)", none, err)
	}
}

func TestReads_RejectMalformedTimestamps(t *testing.T) {
	s := tempDB(t)
	db := s.DB()
	if _, err := db.Exec(`INSERT INTO runs (run_id, trigger, status, session_end, created_at)
		VALUES ('good', 'manual', 'ok', NULL, ?), ('bad-created', 'manual', 'ok', NULL, 'yesterday'),
		       ('bad-end', 'manual', 'ok', '10:42', ?)`,
		base.Format(time.RFC3339Nano), base.Format(time.RFC3339Nano)); err != nil {
		t.Fatalf("insert runs: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO room_cleans (room, last_clean, area, run_id) VALUES ('Kitchen', 'not-a-time', 6, 'good')`); err != nil {
		t.Fatalf("insert clean: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO decision_log (run_id, room, area, threshold, decision, last_end, created_at)
		VALUES ('good', 'Office', 2, 5, 'not_cleaned', NULL, '2023-13-45')`); err != nil {
		t.Fatalf("insert decision: %v", err)
	}

	if run, err := s.GetRun("good"); err != nil || !run.SessionEnd.IsZero() || !run.CreatedAt.Equal(base) {
		t.Errorf("good run: %+v, %v", run, err)
	}
	var perr *time.ParseError
	for _, id := range []string{"bad-created", "bad-end"} {
		if _, err := s.GetRun(id); !errors.As(err, &perr) {
			t.Errorf("GetRun(%s): expected a parse error, got %v", id, err)
		}
	}
	if _, err := s.ListRuns(10); !errors.As(err, &perr) {
		t.Errorf("ListRuns: expected a parse error, got %v", err)
	}
	if _, err := s.LastCleans(); !errors.As(err, &perr) {
		t.Errorf("LastCleans: expected a parse error, got %v", err)
	}
	if _, err := s.DecisionsForRun("good"); !errors.As(err, &perr) {
		t.Errorf("DecisionsForRun: expected a parse error, got %v", err)
	}
}

// #endregion decision-tests
