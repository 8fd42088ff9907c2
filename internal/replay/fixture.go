package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/homeauto/cosmo-monitor/internal/config"
	"github.com/homeauto/cosmo-monitor/internal/cosmo"
	"github.com/homeauto/cosmo-monitor/internal/hass"
	"github.com/homeauto/cosmo-monitor/internal/history"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: recorded
// Home Assistant history plus the decisions a run over it should produce.
type Fixture struct {
	Description string                  `json:"description"`
	Now         time.Time               `json:"now"`
	Config      FixtureConfig           `json:"config"`
	Transition  *FixtureTransition      `json:"transition,omitempty"`
	Entities    map[string][]hass.State `json:"entities"`
	Expected    []FixtureExpectedResult `json:"expected"`
}

// FixtureConfig mirrors cosmo.Config with JSON tags. Zero values fall back
// to cosmo.DefaultConfig.
type FixtureConfig struct {
	LookbackHours   int                `json:"lookback_hours,omitempty"`
	DebounceSeconds int                `json:"debounce_seconds,omitempty"`
	RefineMode      string             `json:"refine_mode,omitempty"`
	Thresholds      map[string]float64 `json:"thresholds,omitempty"` // overrides
	TaskStatus      string             `json:"task_status_entity,omitempty"`
	Vacuum          string             `json:"vacuum_entity,omitempty"`
	CurrentRoom     string             `json:"current_room_entity,omitempty"`
	CleanedArea     string             `json:"cleaned_area_entity,omitempty"`
}

// FixtureTransition is the task status change that triggered the run. A
// fixture without one is evaluated unconditionally.
type FixtureTransition struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// FixtureExpectedResult captures the expected verdict per room.
type FixtureExpectedResult struct {
	Room      string    `json:"room"`
	Cleaned   bool      `json:"cleaned"`
	LastClean time.Time `json:"last_clean,omitzero"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture writes f as indented JSON.
func WriteFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// ToMonitorConfig converts a FixtureConfig to a dry-run cosmo.Config.
func (fc *FixtureConfig) ToMonitorConfig() cosmo.Config {
	cfg := cosmo.DefaultConfig()
	cfg.DryRun = true
	if fc.LookbackHours > 0 {
		cfg.Lookback = time.Duration(fc.LookbackHours) * time.Hour
	}
	if fc.DebounceSeconds > 0 {
		cfg.Debounce = time.Duration(fc.DebounceSeconds) * time.Second
	}
	if fc.RefineMode != "" {
		cfg.RefineMode = fc.RefineMode
	}
	cfg.Thresholds = cosmo.Thresholds(fc.Thresholds)
	cfg.Entities = config.EntityConfig{
		TaskStatus:  or(fc.TaskStatus, cfg.Entities.TaskStatus),
		Vacuum:      or(fc.Vacuum, cfg.Entities.Vacuum),
		CurrentRoom: or(fc.CurrentRoom, cfg.Entities.CurrentRoom),
		CleanedArea: or(fc.CleanedArea, cfg.Entities.CleanedArea),
	}
	return cfg
}

// Source returns an in-memory sample source over the fixture's entities.
func (f *Fixture) Source() *MemorySource {
	rows := make(map[string][]history.Sample, len(f.Entities))
	for id, states := range f.Entities {
		samples := make([]history.Sample, len(states))
		for i, s := range states {
			if s.EntityID == "" {
				s.EntityID = id
			}
			samples[i] = s.Sample()
		}
		rows[id] = samples
	}
	return NewMemorySource(rows)
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// #endregion fixture-loader

// #region memory-source

// MemorySource serves recorded samples the way the recorder history API
// does: every sample that changed inside the window plus the one in effect
// at its start. Unknown entities yield no result set.
type MemorySource struct {
	rows map[string][]history.Sample
}

// NewMemorySource creates a source over samples keyed by entity id.
func NewMemorySource(rows map[string][]history.Sample) *MemorySource {
	sorted := make(map[string][]history.Sample, len(rows))
	for id, samples := range rows {
		s := append([]history.Sample(nil), samples...)
		sort.SliceStable(s, func(i, j int) bool { return s[i].ChangedAt.Before(s[j].ChangedAt) })
		sorted[id] = s
	}
	return &MemorySource{rows: sorted}
}

// GetHistory implements history.SampleSource.
func (m *MemorySource) GetHistory(_ context.Context, entityID string, start, end time.Time) ([][]history.Sample, error) {
	samples, ok := m.rows[entityID]
	if !ok {
		return [][]history.Sample{}, nil
	}
	var out []history.Sample
	var inEffect *history.Sample
	for i := range samples {
		s := samples[i]
		switch {
		case s.ChangedAt.Before(start):
			inEffect = &samples[i]
		case !s.ChangedAt.After(end):
			out = append(out, s)
		}
	}
	if inEffect != nil {
		out = append([]history.Sample{*inEffect}, out...)
	}
	return [][]history.Sample{out}, nil
}

// #endregion memory-source
