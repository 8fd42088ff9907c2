package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// #region source

// SampleSource returns the raw samples recorded for an entity between start
// and end. It must return exactly one result set per requested entity.
type SampleSource interface {
	GetHistory(ctx context.Context, entityID string, start, end time.Time) ([][]Sample, error)
}

// #endregion source

// #region query

// Query describes one History to build.
type Query struct {
	EntityID    string
	Lower       time.Time
	Upper       time.Time // zero means now
	Policy      FilterPolicy
	NewestFirst bool
}

// #endregion query

// #region loader

// Loader fetches samples from a SampleSource and reconstructs them.
type Loader struct {
	src SampleSource
	log *slog.Logger
	now func() time.Time
}

// NewLoader creates a Loader. logger may be nil.
func NewLoader(src SampleSource, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{src: src, log: logger, now: time.Now}
}

// SetClock overrides the clock used when a Query has no upper limit.
func (l *Loader) SetClock(now func() time.Time) {
	l.now = now
}

// WithLogger returns a copy of l that logs to logger.
func (l *Loader) WithLogger(logger *slog.Logger) *Loader {
	c := *l
	if logger != nil {
		c.log = logger
	}
	return &c
}

// Now returns the loader's notion of the current time in UTC.
func (l *Loader) Now() time.Time {
	return l.now().UTC()
}

// Load fetches and reconstructs the history described by q.
func (l *Loader) Load(ctx context.Context, q Query) (*History, error) {
	lower := q.Lower.UTC()
	upper := q.Upper
	if upper.IsZero() {
		upper = l.Now()
	}
	upper = upper.UTC()

	sets, err := l.src.GetHistory(ctx, q.EntityID, lower, upper)
	if err != nil {
		return nil, fmt.Errorf("get history %s: %w", q.EntityID, err)
	}
	if len(sets) != 1 {
		return nil, fmt.Errorf("%w: %d result sets for %s", ErrHistoryUnavailable, len(sets), q.EntityID)
	}

	samples := sets[0]
	if len(samples) == 0 {
		l.log.Info("no states found", "entity", q.EntityID, "from", lower, "to", upper)
	} else {
		l.log.Info("found states", "entity", q.EntityID, "count", len(samples), "from", lower, "to", upper)
	}

	return Reconstruct(q.EntityID, samples, lower, upper, Options{
		Policy:      q.Policy,
		NewestFirst: q.NewestFirst,
		Logger:      l.log,
	}), nil
}

// #endregion loader
