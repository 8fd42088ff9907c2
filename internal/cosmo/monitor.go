package cosmo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/homeauto/cosmo-monitor/internal/attribution"
	"github.com/homeauto/cosmo-monitor/internal/config"
	"github.com/homeauto/cosmo-monitor/internal/history"
	"github.com/homeauto/cosmo-monitor/internal/logging"
	"github.com/homeauto/cosmo-monitor/internal/session"
	"github.com/homeauto/cosmo-monitor/internal/store"
)

// Run triggers.
const (
	TriggerTransition = "transition"
	TriggerStartup    = "startup"
	TriggerManual     = "manual"
)

// #region collaborators
// DatetimeWriter persists a room's last-clean timestamp.
type DatetimeWriter interface {
	SetDatetime(ctx context.Context, entityID string, t time.Time) error
}

// Recorder persists runs, last-clean records and room decisions.
type Recorder interface {
	SaveRun(run store.Run) error
	RecordClean(rc store.RoomClean) error
	LogDecision(entry logging.DecisionEntry) error
}
// #endregion collaborators

// #region config
// Config tunes a Monitor.
type Config struct {
	Entities   config.EntityConfig
	Lookback   time.Duration
	Debounce   time.Duration
	RefineMode string
	Thresholds map[string]float64
	DryRun     bool
}

// DefaultConfig returns the built-in entity ids, windows and room table.
func DefaultConfig() Config {
	return Config{
		Entities: config.EntityConfig{
			TaskStatus:  "sensor.cosmo_task_status",
			Vacuum:      "vacuum.cosmo",
			CurrentRoom: "sensor.cosmo_current_room",
			CleanedArea: "sensor.cosmo_cleaned_area",
		},
		Lookback:   24 * time.Hour,
		Debounce:   history.DefaultDebounceThreshold,
		RefineMode: config.RefineConfirm,
		Thresholds: Thresholds(nil),
	}
}

// ConfigFrom builds a Monitor Config from the environment configuration.
func ConfigFrom(c config.Config) (Config, error) {
	overrides, err := config.ParseThresholds(c.Monitor.Thresholds)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Entities:   c.Monitor.Entities,
		Lookback:   c.Monitor.Lookback,
		Debounce:   c.Monitor.Debounce,
		RefineMode: c.Monitor.RefineMode,
		Thresholds: Thresholds(overrides),
		DryRun:     c.Monitor.DryRun,
	}, nil
}
// #endregion config

// #region report
// Report is the outcome of one evaluation.
type Report struct {
	RunID     string                 `json:"run_id"`
	Trigger   string                 `json:"trigger"`
	Session   session.Session        `json:"session"`
	Result    attribution.Result     `json:"result"`
	Decisions []attribution.Decision `json:"decisions"`
	Written   []string               `json:"written,omitempty"` // input_datetime entities updated
}

// Cleaned returns the rooms that met their threshold.
func (r *Report) Cleaned() []string {
	var out []string
	for _, d := range r.Decisions {
		if d.Met {
			out = append(out, d.Category)
		}
	}
	return out
}
// #endregion report

// #region monitor
// Monitor turns a finished vacuum run into per-room clean decisions.
type Monitor struct {
	cfg     Config
	loader  *history.Loader
	writer  DatetimeWriter
	rec     Recorder
	classes session.Classes
	log     *slog.Logger
	newID   func() string
}

// NewMonitor creates a Monitor. writer and rec may be nil; logger nil means slog.Default().
func NewMonitor(cfg Config, src history.SampleSource, writer DatetimeWriter, rec Recorder, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Thresholds == nil {
		cfg.Thresholds = Thresholds(nil)
	}
	return &Monitor{
		cfg:     cfg,
		loader:  history.NewLoader(src, logger),
		writer:  writer,
		rec:     rec,
		classes: TaskClasses(),
		log:     logger,
		newID:   uuid.NewString,
	}
}

// SetClock overrides the monitor's notion of now.
func (m *Monitor) SetClock(now func() time.Time) {
	m.loader.SetClock(now)
}

// HandleTransition evaluates the last run when the task status moves from a
// cleaning or paused state to completed. Any other transition is ignored and
// yields a nil report.
func (m *Monitor) HandleTransition(ctx context.Context, oldStatus, newStatus string) (*Report, error) {
	if newStatus != TaskCompleted || !(m.classes.IsActive(oldStatus) || m.classes.IsPausable(oldStatus)) {
		m.log.Info("not a room cleaning", "old", oldStatus, "new", newStatus)
		return nil, nil
	}
	return m.Evaluate(ctx, TriggerTransition)
}

// Evaluate finds the most recent cleaning session and decides which rooms it cleaned.
func (m *Monitor) Evaluate(ctx context.Context, trigger string) (*Report, error) {
	report := &Report{RunID: m.newID(), Trigger: trigger}
	log := m.log.With("run_id", report.RunID)
	loader := m.loader.WithLogger(log)

	sess, err := m.cleaningPeriod(ctx, loader, log)
	if err != nil {
		m.saveRun(log, report, err)
		return nil, fmt.Errorf("run %s: %w", report.RunID, err)
	}
	report.Session = sess
	log.Info("cleaning period", "start", sess.Start, "end", sess.End, "duration", sess.Duration())

	rooms, err := loader.Load(ctx, history.Query{
		EntityID: m.cfg.Entities.CurrentRoom,
		Lower:    sess.Start,
		Upper:    sess.End,
		Policy:   history.AnyOf(history.DropUnavailable{}, history.Debounce{Threshold: m.cfg.Debounce}),
	})
	if err != nil {
		m.saveRun(log, report, err)
		return nil, fmt.Errorf("run %s: %w", report.RunID, err)
	}
	area, err := loader.Load(ctx, history.Query{
		EntityID: m.cfg.Entities.CleanedArea,
		Lower:    sess.Start,
		Upper:    sess.End,
		Policy:   history.AnyOf(history.DropUnavailable{}, history.ResetArtifact{}),
	})
	if err != nil {
		m.saveRun(log, report, err)
		return nil, fmt.Errorf("run %s: %w", report.RunID, err)
	}

	report.Result = attribution.Aggregate(area, rooms, log)
	report.Decisions = attribution.Decide(report.Result, m.cfg.Thresholds)

	m.saveRun(log, report, nil)
	if err := m.apply(ctx, log, report); err != nil {
		m.saveRun(log, report, err)
		return report, fmt.Errorf("run %s: %w", report.RunID, err)
	}
	return report, nil
}

// CleaningPeriod scans the task status history for the latest session and
// tightens its end using the vacuum entity.
func (m *Monitor) CleaningPeriod(ctx context.Context) (session.Session, error) {
	return m.cleaningPeriod(ctx, m.loader, m.log)
}

func (m *Monitor) cleaningPeriod(ctx context.Context, loader *history.Loader, log *slog.Logger) (session.Session, error) {
	now := loader.Now()
	tasks, err := loader.Load(ctx, history.Query{
		EntityID:    m.cfg.Entities.TaskStatus,
		Lower:       now.Add(-m.cfg.Lookback),
		Upper:       now,
		Policy:      history.DropUnavailable{},
		NewestFirst: true,
	})
	if err != nil {
		return session.Session{}, err
	}

	sess, err := session.Scan(tasks, m.classes, log)
	if err != nil {
		return session.Session{}, err
	}

	vacuum, err := loader.Load(ctx, history.Query{
		EntityID:    m.cfg.Entities.Vacuum,
		Lower:       sess.Start,
		Upper:       sess.End,
		Policy:      history.DropUnavailable{},
		NewestFirst: true,
	})
	if err != nil {
		return session.Session{}, err
	}

	var refined bool
	if m.cfg.RefineMode == config.RefineTrim {
		sess, refined = session.TrimAt(sess, vacuum, VacuumReturning)
	} else {
		sess, refined = session.RefineEnd(sess, vacuum, VacuumCleaning)
	}
	if !refined {
		log.Debug("session end not refined", "mode", m.cfg.RefineMode, "end", sess.End)
	}
	return sess, nil
}
// #endregion monitor

// #region apply
// apply writes and records every decision. Write failures do not stop the
// remaining rooms; they are joined into the returned error.
func (m *Monitor) apply(ctx context.Context, log *slog.Logger, report *Report) error {
	var errs []error
	for _, d := range report.Decisions {
		if d.Met {
			log.Info("room cleaned enough", "room", d.Category, "area", d.Amount, "last_end", d.LastEnd)
			if err := m.write(ctx, d); err != nil {
				log.Error("set last clean failed", "room", d.Category, "err", err)
				errs = append(errs, err)
			} else if !m.cfg.DryRun && m.writer != nil {
				report.Written = append(report.Written, EntityName(d.Category))
			}
		} else {
			log.Info("room not cleaned enough", "room", d.Category, "area", d.Amount, "required", d.Threshold)
		}

		if m.rec == nil {
			continue
		}
		if d.Met {
			if err := m.rec.RecordClean(store.RoomClean{
				Room:      d.Category,
				LastClean: d.LastEnd,
				Area:      d.Amount,
				RunID:     report.RunID,
			}); err != nil {
				log.Error("record clean failed", "room", d.Category, "err", err)
			}
		}
		if err := m.rec.LogDecision(logging.DecisionEntry{
			RunID:     report.RunID,
			Room:      d.Category,
			Area:      d.Amount,
			Threshold: d.Threshold,
			Decision:  m.decisionValue(d),
			Reason:    d.Reason,
			LastEnd:   d.LastEnd,
		}); err != nil {
			log.Error("log decision failed", "room", d.Category, "err", err)
		}
	}
	return errors.Join(errs...)
}

func (m *Monitor) write(ctx context.Context, d attribution.Decision) error {
	if m.cfg.DryRun || m.writer == nil {
		return nil
	}
	entity := EntityName(d.Category)
	if err := m.writer.SetDatetime(ctx, entity, d.LastEnd); err != nil {
		return fmt.Errorf("set %s: %w", entity, err)
	}
	return nil
}

func (m *Monitor) decisionValue(d attribution.Decision) string {
	if d.Met {
		return logging.DecisionCleaned
	}
	if _, ok := m.cfg.Thresholds[d.Category]; !ok {
		return logging.DecisionNoThreshold
	}
	return logging.DecisionNotCleaned
}

func (m *Monitor) saveRun(log *slog.Logger, report *Report, runErr error) {
	if m.rec == nil {
		return
	}
	run := store.Run{
		RunID:        report.RunID,
		Trigger:      report.Trigger,
		Status:       store.StatusOK,
		SessionStart: report.Session.Start,
		SessionEnd:   report.Session.End,
	}
	if runErr != nil {
		run.Status = store.StatusFailed
		run.Error = runErr.Error()
	}
	if err := m.rec.SaveRun(run); err != nil {
		log.Error("save run failed", "err", err)
	}
}
// #endregion apply
