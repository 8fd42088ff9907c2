// Package cosmo wires the history core to one robot vacuum: its state
// vocabulary, its rooms and the pipeline that decides which rooms a
// finished run actually cleaned.
package cosmo

import (
	"maps"
	"slices"
	"strings"

	"github.com/homeauto/cosmo-monitor/internal/session"
)

// #region vacuum-state
// Vacuum entity states.
const (
	VacuumCleaning  = "cleaning"
	VacuumDocked    = "docked"
	VacuumError     = "error"
	VacuumIdle      = "idle"
	VacuumPaused    = "paused"
	VacuumReturning = "returning"
)
// #endregion vacuum-state

// #region task-status
// Task status sensor states.
const (
	TaskCleaning           = "cleaning"
	TaskCleaningPaused     = "cleaning_paused"
	TaskCompleted          = "completed"
	TaskDockingPaused      = "docking_paused"
	TaskFastMapping        = "fast_mapping"
	TaskMapCleaningPaused  = "map_cleaning_paused"
	TaskRoomCleaning       = "room_cleaning"
	TaskRoomCleaningPaused = "room_cleaning_paused"
	TaskSpotCleaning       = "spot_cleaning"
	TaskZoneCleaning       = "zone_cleaning"
)

// TaskClasses classifies task statuses for session scanning: room, zone
// and whole-map cleaning are active, the paused variants keep a session open.
func TaskClasses() session.Classes {
	return session.NewClasses(
		[]string{TaskCleaning, TaskRoomCleaning, TaskZoneCleaning},
		[]string{TaskCleaningPaused, TaskDockingPaused, TaskMapCleaningPaused, TaskRoomCleaningPaused},
	)
}
// #endregion task-status

// #region rooms
// Room is a named area of the map and the floor area (m²) that must be
// covered in one run for it to count as cleaned.
type Room struct {
	Name        string
	MinimumArea float64
}

// DefaultRooms is the built-in room table.
func DefaultRooms() []Room {
	return []Room{
		{Name: "Bathroom", MinimumArea: 3},
		{Name: "Bedroom", MinimumArea: 6},
		{Name: "En-Suite", MinimumArea: 2},
		{Name: "Hallway", MinimumArea: 7},
		{Name: "Kitchen", MinimumArea: 5},
		{Name: "Lounge", MinimumArea: 8},
		{Name: "Office", MinimumArea: 5},
	}
}

// Thresholds merges overrides onto the built-in room table.
func Thresholds(overrides map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(overrides)+7)
	for _, r := range DefaultRooms() {
		out[r.Name] = r.MinimumArea
	}
	maps.Copy(out, overrides)
	return out
}

// RoomNames returns the rooms in a threshold table, sorted.
func RoomNames(thresholds map[string]float64) []string {
	return slices.Sorted(maps.Keys(thresholds))
}

// EntityName returns the input_datetime helper holding a room's last clean,
// e.g. "En-Suite" -> "input_datetime.cosmo_last_en_suite_clean".
func EntityName(room string) string {
	slug := strings.ReplaceAll(strings.ToLower(room), "-", "_")
	slug = strings.ReplaceAll(slug, " ", "_")
	return "input_datetime.cosmo_last_" + slug + "_clean"
}
// #endregion rooms
