package history

import (
	"log/slog"
	"slices"
	"sort"
	"time"
)

// #region options

// Options tunes a single reconstruction.
type Options struct {
	Policy      FilterPolicy // nil keeps every sample
	NewestFirst bool         // return intervals newest → oldest
	Logger      *slog.Logger // nil uses slog.Default()
}

// #endregion options

// #region reconstruct

// Reconstruct folds the raw samples of one entity into a History covering
// [lower, upper]. Samples are replayed newest to oldest: each kept sample
// either extends the most recent interval backwards (same state) or opens a
// new interval ending where that one starts. Replay stops as soon as the
// lower bound is covered.
//
// Unavailable samples are ordinary states unless the policy drops them.
func Reconstruct(entityID string, samples []Sample, lower, upper time.Time, opts Options) *History {
	lower, upper = lower.UTC(), upper.UTC()

	policy := opts.Policy
	if policy == nil {
		policy = NoFilter
	}
	excluder, _ := policy.(Excluder)

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	pending := normalize(samples)

	// newest → oldest while building
	var emitted []Interval
	covered := false
	dropped := 0

	for i := len(pending) - 1; i >= 0; i-- {
		curr := pending[i]

		// took effect after the window closed
		if curr.ChangedAt.After(upper) {
			continue
		}

		var next *Interval
		if n := len(emitted); n > 0 {
			last := emitted[n-1]
			next = &last
		}
		if policy.ShouldDrop(previous(pending[:i], excluder), curr, next) {
			dropped++
			continue
		}

		start := curr.ChangedAt
		if start.Before(lower) {
			start = lower
		}

		if next != nil {
			if start.After(next.Start) {
				// superseded by a sample that changed earlier but was reported later
				log.Debug("skipping superseded sample", "entity", entityID, "state", curr.State, "changed_at", curr.ChangedAt)
				continue
			}
			if next.State == curr.State {
				emitted[len(emitted)-1].Start = start
			} else {
				emitted = append(emitted, Interval{State: curr.State, Start: start, End: next.Start})
			}
		} else {
			emitted = append(emitted, Interval{State: curr.State, Start: start, End: upper})
		}

		if !emitted[len(emitted)-1].Start.After(lower) {
			covered = true
			break
		}
	}

	if len(emitted) > 0 && !covered {
		log.Warn("samples exhausted before lower limit",
			"entity", entityID,
			"lower_limit", lower,
			"covered_from", emitted[len(emitted)-1].Start,
		)
	}
	log.Debug("reconstructed history",
		"entity", entityID,
		"samples", len(samples),
		"dropped", dropped,
		"intervals", len(emitted),
	)

	if !opts.NewestFirst {
		slices.Reverse(emitted)
	}

	return &History{
		entityID:    entityID,
		intervals:   emitted,
		lower:       lower,
		upper:       upper,
		newestFirst: opts.NewestFirst,
		complete:    covered,
	}
}

// #endregion reconstruct

// #region helpers

// normalize returns a UTC copy of samples sorted oldest → newest by
// ObservedAt, with samples sharing a ChangedAt collapsed to the one observed last.
func normalize(samples []Sample) []Sample {
	sorted := make([]Sample, len(samples))
	for i, s := range samples {
		s.ChangedAt = s.ChangedAt.UTC()
		s.ObservedAt = s.ObservedAt.UTC()
		sorted[i] = s
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ObservedAt.Before(sorted[j].ObservedAt)
	})

	seen := make(map[int64]struct{}, len(sorted))
	out := make([]Sample, 0, len(sorted))
	for i := len(sorted) - 1; i >= 0; i-- {
		key := sorted[i].ChangedAt.UnixNano()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, sorted[i])
	}
	slices.Reverse(out)
	return out
}

// previous returns the newest sample in older that the policy does not exclude.
func previous(older []Sample, ex Excluder) *Sample {
	for i := len(older) - 1; i >= 0; i-- {
		if ex != nil && ex.Excludes(older[i]) {
			continue
		}
		s := older[i]
		return &s
	}
	return nil
}

// #endregion helpers
