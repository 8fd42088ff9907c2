package history

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type fakeSource struct {
	sets       [][]Sample
	err        error
	start, end time.Time
	entity     string
}

func (f *fakeSource) GetHistory(_ context.Context, entityID string, start, end time.Time) ([][]Sample, error) {
	f.entity, f.start, f.end = entityID, start, end
	return f.sets, f.err
}

// #region loader-tests

func TestLoader_Load(t *testing.T) {
	src := &fakeSource{sets: [][]Sample{{sample("A", -time.Hour), sample("B", 5*time.Minute)}}}
	l := NewLoader(src, quietLogger())

	h, err := l.Load(context.Background(), Query{
		EntityID: "sensor.test",
		Lower:    at(0),
		Upper:    at(10 * time.Minute),
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if src.entity != "sensor.test" || !src.start.Equal(at(0)) || !src.end.Equal(at(10*time.Minute)) {
		t.Errorf("unexpected query: %s %s %s", src.entity, src.start, src.end)
	}
	assertIntervals(t, h.Intervals(), []Interval{
		iv("A", 0, 5*time.Minute),
		iv("B", 5*time.Minute, 10*time.Minute),
	})
}

func TestLoader_DefaultUpperIsNow(t *testing.T) {
	src := &fakeSource{sets: [][]Sample{{sample("A", 0)}}}
	l := NewLoader(src, quietLogger())
	l.SetClock(func() time.Time { return at(time.Hour) })

	h, err := l.Load(context.Background(), Query{EntityID: "sensor.test", Lower: at(0)})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !src.end.Equal(at(time.Hour)) {
		t.Errorf("expected source end at clock, got %s", src.end)
	}
	if !h.UpperLimit().Equal(at(time.Hour)) {
		t.Errorf("expected upper limit at clock, got %s", h.UpperLimit())
	}
}

func TestLoader_WithLogger(t *testing.T) {
	var base, scoped bytes.Buffer
	src := &fakeSource{sets: [][]Sample{{sample("A", 0)}}}
	l := NewLoader(src, slog.New(slog.NewTextHandler(&base, &slog.HandlerOptions{Level: slog.LevelDebug})))
	l.SetClock(func() time.Time { return at(time.Hour) })

	run := l.WithLogger(slog.New(slog.NewTextHandler(&scoped, &slog.HandlerOptions{Level: slog.LevelDebug})).With("run_id", "r1"))
	if _, err := run.Load(context.Background(), Query{EntityID: "sensor.test", Lower: at(0)}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if base.Len() != 0 {
		t.Errorf("expected nothing on the base logger, got %q", base.String())
	}
	for _, msg := range []string{"found states", "reconstructed history"} {
		if !strings.Contains(scoped.String(), msg) {
			t.Errorf("expected %q in scoped output %q", msg, scoped.String())
		}
	}
	if !strings.Contains(scoped.String(), "run_id=r1") {
		t.Errorf("expected run_id on every line, got %q", scoped.String())
	}
	if !src.end.Equal(at(time.Hour)) {
		t.Errorf("expected the copy to share the clock, got end %s", src.end)
	}
}

func TestLoader_EmptyResultSet(t *testing.T) {
	l := NewLoader(&fakeSource{sets: [][]Sample{{}}}, quietLogger())
	h, err := l.Load(context.Background(), Query{EntityID: "sensor.test", Lower: at(0), Upper: at(time.Minute)})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h.Len() != 0 {
		t.Errorf("expected empty history, got %d intervals", h.Len())
	}
}

func TestLoader_WrongResultSetCount(t *testing.T) {
	for _, sets := range [][][]Sample{nil, {{}, {}}} {
		l := NewLoader(&fakeSource{sets: sets}, quietLogger())
		_, err := l.Load(context.Background(), Query{EntityID: "sensor.test", Lower: at(0), Upper: at(time.Minute)})
		if !errors.Is(err, ErrHistoryUnavailable) {
			t.Errorf("%d sets: expected ErrHistoryUnavailable, got %v", len(sets), err)
		}
	}
}

func TestLoader_SourceError(t *testing.T) {
	boom := errors.New("connection refused")
	l := NewLoader(&fakeSource{err: boom}, quietLogger())
	_, err := l.Load(context.Background(), Query{EntityID: "sensor.test", Lower: at(0), Upper: at(time.Minute)})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped source error, got %v", err)
	}
}

func TestLoader_NewestFirst(t *testing.T) {
	src := &fakeSource{sets: [][]Sample{{sample("A", 0), sample("B", 5*time.Minute)}}}
	h, err := NewLoader(src, quietLogger()).Load(context.Background(), Query{
		EntityID:    "sensor.test",
		Lower:       at(0),
		Upper:       at(10 * time.Minute),
		NewestFirst: true,
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h.At(0).State != "B" {
		t.Errorf("expected newest interval first, got %v", h.Intervals())
	}
}

// #endregion loader-tests
