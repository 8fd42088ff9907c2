package replay

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/homeauto/cosmo-monitor/internal/attribution"
	"github.com/homeauto/cosmo-monitor/internal/cosmo"
)

// #region types
// Comparison is the expected and replayed verdict for one room.
type Comparison struct {
	Room              string
	Expected          bool
	Actual            bool
	ExpectedLastClean time.Time // zero when the fixture does not pin it
	ActualLastClean   time.Time
	Amount            float64
	Threshold         float64
	Reason            string
	Match             bool
}

// Summary provides aggregate stats from a comparison.
type Summary struct {
	Rooms       int
	Matches     int
	Divergences int
}
// #endregion types

// #region replay
// Replay runs a dry-run monitor over the fixture's recorded history with the
// clock fixed at f.Now. A fixture transition that is not a room cleaning
// yields a nil report.
func Replay(ctx context.Context, f *Fixture, logger *slog.Logger) (*cosmo.Report, error) {
	m := cosmo.NewMonitor(f.Config.ToMonitorConfig(), f.Source(), nil, nil, logger)
	now := f.Now.UTC()
	m.SetClock(func() time.Time { return now })

	if f.Transition != nil {
		return m.HandleTransition(ctx, f.Transition.Old, f.Transition.New)
	}
	return m.Evaluate(ctx, cosmo.TriggerManual)
}

// Compare matches replayed decisions against the fixture's expectations.
// Rooms missing on either side count as not cleaned. Results are sorted by room.
func Compare(f *Fixture, report *cosmo.Report) []Comparison {
	byRoom := make(map[string]*Comparison)
	get := func(room string) *Comparison {
		c, ok := byRoom[room]
		if !ok {
			c = &Comparison{Room: room}
			byRoom[room] = c
		}
		return c
	}

	for _, e := range f.Expected {
		c := get(e.Room)
		c.Expected = e.Cleaned
		c.ExpectedLastClean = e.LastClean
	}
	if report != nil {
		for _, d := range report.Decisions {
			c := get(d.Category)
			fill(c, d)
		}
	}

	out := make([]Comparison, 0, len(byRoom))
	for _, c := range byRoom {
		c.Match = c.Expected == c.Actual &&
			(c.ExpectedLastClean.IsZero() || c.ExpectedLastClean.Equal(c.ActualLastClean))
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Room < out[j].Room })
	return out
}

func fill(c *Comparison, d attribution.Decision) {
	c.Actual = d.Met
	c.ActualLastClean = d.LastEnd
	c.Amount = d.Amount
	c.Threshold = d.Threshold
	c.Reason = d.Reason
}

// Summarize computes aggregate stats from comparisons.
func Summarize(cs []Comparison) Summary {
	s := Summary{Rooms: len(cs)}
	for _, c := range cs {
		if c.Match {
			s.Matches++
		} else {
			s.Divergences++
		}
	}
	return s
}

// Expectations turns a report into fixture expectations, pinning the last
// clean time of every cleaned room.
func Expectations(report *cosmo.Report) []FixtureExpectedResult {
	if report == nil {
		return nil
	}
	out := make([]FixtureExpectedResult, 0, len(report.Decisions))
	for _, d := range report.Decisions {
		out = append(out, FixtureExpectedResult{Room: d.Category, Cleaned: d.Met, LastClean: d.LastEnd})
	}
	return out
}
// #endregion replay
