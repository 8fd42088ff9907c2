package store

import (
	"errors"
	"time"
)

// ErrRunNotFound is returned by GetRun for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// #region run
// Run statuses.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Run is one evaluation of the monitor pipeline.
type Run struct {
	RunID        string
	Trigger      string // "transition" | "startup" | "manual"
	Status       string
	Error        string
	SessionStart time.Time // zero when no session was found
	SessionEnd   time.Time
	CreatedAt    time.Time
}
// #endregion run

// #region room-clean
// RoomClean is the most recent qualifying clean recorded for a room.
type RoomClean struct {
	Room      string
	LastClean time.Time
	Area      float64
	RunID     string
}
// #endregion room-clean
