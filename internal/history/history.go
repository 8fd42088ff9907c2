package history

import (
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"time"
)

// #region history

// History is an immutable, gapless sequence of intervals for one entity.
// Intervals are stored oldest-first unless built with Options.NewestFirst.
type History struct {
	entityID    string
	intervals   []Interval
	lower       time.Time // requested
	upper       time.Time // requested
	newestFirst bool
	complete    bool
}

// EntityID returns the entity the history was built for.
func (h *History) EntityID() string { return h.entityID }

// Len returns the number of intervals.
func (h *History) Len() int { return len(h.intervals) }

// At returns the i-th interval in stored order.
func (h *History) At(i int) Interval { return h.intervals[i] }

// NewestFirst reports whether intervals are stored newest → oldest.
func (h *History) NewestFirst() bool { return h.newestFirst }

// Complete reports whether the samples reached back to the requested lower
// limit. An incomplete history is shorter than requested; callers should
// treat it as a data-completeness warning.
func (h *History) Complete() bool { return h.complete }

// Intervals returns a copy of the intervals in stored order.
func (h *History) Intervals() []Interval {
	out := make([]Interval, len(h.intervals))
	copy(out, h.intervals)
	return out
}

// All yields intervals in stored order.
func (h *History) All() iter.Seq[Interval] {
	return func(yield func(Interval) bool) {
		for _, iv := range h.intervals {
			if !yield(iv) {
				return
			}
		}
	}
}

// Chronological yields intervals oldest → newest regardless of stored order.
func (h *History) Chronological() iter.Seq[Interval] {
	return h.ordered(false)
}

// Backward yields intervals newest → oldest regardless of stored order.
func (h *History) Backward() iter.Seq[Interval] {
	return h.ordered(true)
}

func (h *History) ordered(newestFirst bool) iter.Seq[Interval] {
	if newestFirst == h.newestFirst {
		return h.All()
	}
	return func(yield func(Interval) bool) {
		for i := len(h.intervals) - 1; i >= 0; i-- {
			if !yield(h.intervals[i]) {
				return
			}
		}
	}
}

// #endregion history

// #region limits

// LowerLimit is the start of the oldest interval, or the requested lower
// limit when the history is empty.
func (h *History) LowerLimit() time.Time {
	if len(h.intervals) == 0 {
		return h.lower
	}
	if h.newestFirst {
		return h.intervals[len(h.intervals)-1].Start
	}
	return h.intervals[0].Start
}

// UpperLimit is the end of the newest interval, or the requested lower limit
// when the history is empty.
func (h *History) UpperLimit() time.Time {
	if len(h.intervals) == 0 {
		return h.lower
	}
	if h.newestFirst {
		return h.intervals[0].End
	}
	return h.intervals[len(h.intervals)-1].End
}

// Duration is UpperLimit - LowerLimit.
func (h *History) Duration() time.Duration {
	return h.UpperLimit().Sub(h.LowerLimit())
}

// #endregion limits

// #region lookup

// StateAt returns the interval whose [Start, End) contains t.
func (h *History) StateAt(t time.Time) (Interval, error) {
	for _, iv := range h.intervals {
		if iv.Contains(t) {
			return iv, nil
		}
	}
	return Interval{}, fmt.Errorf("%w for %s at %s", ErrNotFound, h.entityID, t.UTC().Format(time.RFC3339))
}

// #endregion lookup

// #region encoding

func (h *History) String() string {
	lines := make([]string, len(h.intervals))
	for i, iv := range h.intervals {
		lines[i] = iv.String()
	}
	return strings.Join(lines, "\n")
}

// MarshalJSON renders the history for logs and reports.
func (h *History) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EntityID   string     `json:"entity_id"`
		LowerLimit time.Time  `json:"lower_limit"`
		UpperLimit time.Time  `json:"upper_limit"`
		Complete   bool       `json:"complete"`
		Intervals  []Interval `json:"intervals"`
	}{
		EntityID:   h.entityID,
		LowerLimit: h.LowerLimit(),
		UpperLimit: h.UpperLimit(),
		Complete:   h.complete,
		Intervals:  h.Intervals(),
	})
}

// #endregion encoding
