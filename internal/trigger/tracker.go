// Package trigger turns a stream of entity states into transitions and
// hands them to a single evaluation worker.
package trigger

import "sync"

// #region tracker
// Tracker remembers the last state of one entity and reports changes.
type Tracker struct {
	mu     sync.Mutex
	last   string
	seeded bool
	ignore map[string]struct{}
}

// NewTracker creates a tracker seeded with initial ("" leaves it unseeded).
// States in ignore, e.g. "unavailable", are never recorded, so a transition
// is reported across them.
func NewTracker(initial string, ignore ...string) *Tracker {
	t := &Tracker{ignore: make(map[string]struct{}, len(ignore))}
	for _, s := range ignore {
		t.ignore[s] = struct{}{}
	}
	if _, skip := t.ignore[initial]; initial != "" && !skip {
		t.last, t.seeded = initial, true
	}
	return t
}

// Observe records state and returns the previous one when it changed.
// The first observation only seeds the tracker.
func (t *Tracker) Observe(state string) (old string, changed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, skip := t.ignore[state]; skip || state == "" {
		return "", false
	}
	if !t.seeded {
		t.last, t.seeded = state, true
		return "", false
	}
	if state == t.last {
		return "", false
	}
	old, t.last = t.last, state
	return old, true
}

// Last returns the last recorded state.
func (t *Tracker) Last() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
// #endregion tracker
