// Package history rebuilds contiguous state intervals from the sparse,
// out-of-order samples a recorder keeps for an entity.
package history

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// #region sentinels

// Unavailable is the placeholder state reported while an entity cannot be read.
const Unavailable = "unavailable"

var (
	// ErrHistoryUnavailable means the sample source did not return exactly one
	// result set for a single-entity query.
	ErrHistoryUnavailable = errors.New("history unavailable")

	// ErrNotFound means no interval covers the requested timestamp.
	ErrNotFound = errors.New("no state found")
)

// #endregion sentinels

// #region sample

// Sample is a single raw observation of an entity's state.
type Sample struct {
	EntityID   string
	State      string
	ChangedAt  time.Time // when the value last actually changed
	ObservedAt time.Time // when the record was last reported; used for ordering only
}

// Float parses the sample's state as a number.
func (s Sample) Float() (float64, bool) {
	return parseFloat(s.State)
}

// #endregion sample

// #region interval

// Interval is a reconstructed span during which an entity held one state.
type Interval struct {
	State string    `json:"state"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Float parses the interval's state as a number.
func (iv Interval) Float() (float64, bool) {
	return parseFloat(iv.State)
}

// Contains reports whether t falls in [Start, End).
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

func (iv Interval) String() string {
	return fmt.Sprintf("%s\t%s - %s", iv.State, iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
}

// #endregion interval

// parseFloat accepts finite numbers only; "nan" and "inf" are not readings.
func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
