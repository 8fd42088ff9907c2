package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/homeauto/cosmo-monitor/internal/config"
	"github.com/homeauto/cosmo-monitor/internal/cosmo"
	"github.com/homeauto/cosmo-monitor/internal/hass"
	"github.com/homeauto/cosmo-monitor/internal/history"
	"github.com/homeauto/cosmo-monitor/internal/logging"
	"github.com/homeauto/cosmo-monitor/internal/probe"
	"github.com/homeauto/cosmo-monitor/internal/session"
	"github.com/homeauto/cosmo-monitor/internal/store"
	"github.com/homeauto/cosmo-monitor/internal/trigger"
)

// #region main
func main() {
	once := flag.Bool("once", false, "evaluate the most recent run and exit")
	flag.Parse()

	cfg := config.Load()
	logging.Init(cfg.Log.Format == "json", logging.ParseLevel(cfg.Log.Level))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(2)
	}
	if err := run(cfg, *once); err != nil {
		slog.Error("monitor stopped", "err", err)
		os.Exit(1)
	}
}
// #endregion main

// #region run
func run(cfg config.Config, once bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	monCfg, err := cosmo.ConfigFrom(cfg)
	if err != nil {
		return err
	}

	st, err := store.NewStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	client := hass.NewClient(cfg.Hass.URL, cfg.Hass.Token, hass.Options{
		RateInterval: cfg.Hass.RateInterval,
		Location:     loc,
	})
	if !client.Available() {
		return errors.New("HASS_TOKEN is not set")
	}

	monitor := cosmo.NewMonitor(monCfg, client, client, st, slog.Default())
	slog.Info("cosmo monitor ready",
		"hass", cfg.Hass.URL,
		"db", cfg.Store.Path,
		"refine_mode", monCfg.RefineMode,
		"dry_run", monCfg.DryRun,
	)

	// the last run may have finished while the monitor was down
	evaluate(ctx, monitor, cosmo.TriggerStartup)
	if once {
		return nil
	}

	var health *probe.Server
	if cfg.Probe.Addr != "" {
		health = probe.New(slog.Default())
		go func() {
			if err := health.ListenAndServe(cfg.Probe.Addr); err != nil {
				slog.Error("health probe failed", "err", err)
			}
		}()
		defer health.Stop()
	}

	if cfg.MQTT.Broker == "" {
		slog.Warn("MQTT_BROKER not set, no transitions will be observed")
	} else {
		listener, err := startListener(ctx, cfg, client, monitor)
		if err != nil {
			return err
		}
		defer listener.Stop()
	}
	if health != nil {
		health.SetServing(true)
	}

	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}

// startListener seeds the task status tracker from the current state and
// subscribes to its state stream.
func startListener(ctx context.Context, cfg config.Config, client *hass.Client, monitor *cosmo.Monitor) (*trigger.Listener, error) {
	entity := cfg.Monitor.Entities.TaskStatus

	initial := ""
	stateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	current, err := client.GetState(stateCtx, entity)
	cancel()
	switch {
	case err == nil:
		initial = current.State
	case errors.Is(err, hass.ErrEntityNotFound):
		return nil, fmt.Errorf("task status entity: %w", err)
	default:
		slog.Warn("could not read current task status", "entity", entity, "err", err)
	}

	tracker := trigger.NewTracker(initial, history.Unavailable)
	listener := trigger.NewListener(trigger.ListenerConfig{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Base:     cfg.MQTT.Base,
		EntityID: entity,
	}, tracker, func(ctx context.Context, oldState, newState string) {
		slog.Info("task status changed", "old", oldState, "new", newState)
		report, err := monitor.HandleTransition(ctx, oldState, newState)
		if err != nil {
			logEvaluation(err)
			return
		}
		if report != nil {
			slog.Info("evaluation finished", "run_id", report.RunID, "cleaned", report.Cleaned(), "written", report.Written)
		}
	}, slog.Default())

	if err := listener.Start(ctx); err != nil {
		return nil, err
	}
	slog.Info("listening for task status changes", "entity", entity, "topic", trigger.Topic(cfg.MQTT.Base, entity), "initial", initial)
	return listener, nil
}
// #endregion run

// #region helpers
func evaluate(ctx context.Context, monitor *cosmo.Monitor, trig string) {
	report, err := monitor.Evaluate(ctx, trig)
	if err != nil {
		logEvaluation(err)
		return
	}
	slog.Info("evaluation finished", "run_id", report.RunID, "cleaned", report.Cleaned(), "written", report.Written)
}

func logEvaluation(err error) {
	if errors.Is(err, session.ErrNoSessionFound) {
		slog.Info("no cleaning session to evaluate", "err", err)
		return
	}
	slog.Error("evaluation failed", "err", err)
}
// #endregion helpers
