package history

import "time"

// DefaultDebounceThreshold is how long a bracketed visit must last before it
// is treated as real rather than sensor flicker.
const DefaultDebounceThreshold = 20 * time.Second

// #region policy

// FilterPolicy vetoes a candidate sample during reconstruction.
//
// prev is the next-older sample still pending (nil when curr is the oldest),
// next is the most recently emitted interval (nil before the first emission).
// Implementations must be pure: the same inputs always give the same answer.
type FilterPolicy interface {
	ShouldDrop(prev *Sample, curr Sample, next *Interval) bool
}

// Excluder is implemented by policies that drop some samples on their own
// merit, regardless of context. Excluded samples are never offered as a
// candidate's predecessor.
type Excluder interface {
	Excludes(s Sample) bool
}

// PolicyFunc adapts a plain function to FilterPolicy.
type PolicyFunc func(prev *Sample, curr Sample, next *Interval) bool

// ShouldDrop calls f.
func (f PolicyFunc) ShouldDrop(prev *Sample, curr Sample, next *Interval) bool {
	return f(prev, curr, next)
}

// NoFilter keeps every sample.
var NoFilter FilterPolicy = PolicyFunc(func(*Sample, Sample, *Interval) bool { return false })

// #endregion policy

// #region drop-unavailable

// DropUnavailable discards samples carrying the Unavailable placeholder.
type DropUnavailable struct{}

// ShouldDrop reports whether curr is unavailable.
func (DropUnavailable) ShouldDrop(_ *Sample, curr Sample, _ *Interval) bool {
	return curr.State == Unavailable
}

// Excludes reports whether s is unavailable.
func (DropUnavailable) Excludes(s Sample) bool {
	return s.State == Unavailable
}

// #endregion drop-unavailable

// #region reset-artifact

// ResetArtifact handles counters that periodically reset to zero. The oldest
// sample of a window is dropped when it is positive and the interval after it
// is exactly zero: that reading belongs to the previous accumulation cycle.
type ResetArtifact struct{}

// ShouldDrop implements FilterPolicy.
func (ResetArtifact) ShouldDrop(prev *Sample, curr Sample, next *Interval) bool {
	if prev != nil || next == nil {
		return false
	}
	v, ok := curr.Float()
	if !ok || v <= 0 {
		return false
	}
	n, ok := next.Float()
	return ok && n == 0
}

// #endregion reset-artifact

// #region debounce

// Debounce absorbs brief flicker in categorical signals: a sample bracketed by
// the same state on both sides is dropped when it lasted less than Threshold,
// measured from the sample's last report to the start of the next interval.
type Debounce struct {
	Threshold time.Duration
}

// ShouldDrop implements FilterPolicy.
func (d Debounce) ShouldDrop(prev *Sample, curr Sample, next *Interval) bool {
	if prev == nil || next == nil {
		return false
	}
	if prev.State != next.State {
		return false
	}
	return next.Start.Sub(curr.ObservedAt) < d.Threshold
}

// #endregion debounce

// #region any-of

type anyOf []FilterPolicy

// AnyOf drops a sample when any of the given policies would. Nil entries are ignored.
func AnyOf(policies ...FilterPolicy) FilterPolicy {
	out := make(anyOf, 0, len(policies))
	for _, p := range policies {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (a anyOf) ShouldDrop(prev *Sample, curr Sample, next *Interval) bool {
	for _, p := range a {
		if p.ShouldDrop(prev, curr, next) {
			return true
		}
	}
	return false
}

func (a anyOf) Excludes(s Sample) bool {
	for _, p := range a {
		if ex, ok := p.(Excluder); ok && ex.Excludes(s) {
			return true
		}
	}
	return false
}

// #endregion any-of
