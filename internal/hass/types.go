// Package hass talks to the Home Assistant REST API: recorder history as a
// sample source, current states, and input_datetime writes.
package hass

import (
	"errors"
	"fmt"
	"time"

	"github.com/homeauto/cosmo-monitor/internal/history"
)

// ErrEntityNotFound is returned when Home Assistant does not know an entity.
var ErrEntityNotFound = errors.New("entity not found")

// #region types
// State is one entity state as returned by /api/states and /api/history.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

// Sample converts the state to a history sample.
func (s State) Sample() history.Sample {
	return history.Sample{
		EntityID:   s.EntityID,
		State:      s.State,
		ChangedAt:  s.LastChanged.UTC(),
		ObservedAt: s.LastUpdated.UTC(),
	}
}

// Samples converts history result sets, keeping their shape.
func Samples(sets [][]State) [][]history.Sample {
	out := make([][]history.Sample, len(sets))
	for i, set := range sets {
		out[i] = make([]history.Sample, len(set))
		for j, s := range set {
			out[i][j] = s.Sample()
		}
	}
	return out
}

// StatusError is a non-2xx response from Home Assistant.
type StatusError struct {
	Code     int
	Endpoint string
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("home assistant %s (status %d): %s", e.Endpoint, e.Code, e.Body)
}

type setDatetimeRequest struct {
	EntityID string `json:"entity_id"`
	Datetime string `json:"datetime"`
}
// #endregion types
