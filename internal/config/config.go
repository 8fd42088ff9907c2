// Package config loads the monitor's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Refine modes for the end of a cleaning session.
const (
	RefineConfirm = "confirm" // end of the last vacuum "cleaning" interval
	RefineTrim    = "trim"    // start of the last vacuum "returning" interval
)

// Config holds all monitor configuration.
type Config struct {
	Hass    HassConfig
	Store   StoreConfig
	Log     LogConfig
	Monitor MonitorConfig
	MQTT    MQTTConfig
	Probe   ProbeConfig
}

// HassConfig holds Home Assistant connection settings.
type HassConfig struct {
	URL          string
	Token        string
	RateInterval time.Duration // minimum spacing between API calls
	Timezone     string        // zone for input_datetime values; "Local" or an IANA name
}

// StoreConfig holds SQLite settings.
type StoreConfig struct {
	Path string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string // "text" | "json"
}

// EntityConfig names the Home Assistant entities the monitor reads.
type EntityConfig struct {
	TaskStatus  string
	Vacuum      string
	CurrentRoom string
	CleanedArea string
}

// MonitorConfig holds the cleaning pipeline settings.
type MonitorConfig struct {
	Entities   EntityConfig
	Lookback   time.Duration
	Debounce   time.Duration
	RefineMode string
	Thresholds string // "Room=m2,..." overrides of the built-in table
	DryRun     bool
}

// MQTTConfig holds the state-stream subscription settings. An empty Broker
// disables the listener.
type MQTTConfig struct {
	Broker   string
	Base     string
	ClientID string
}

// ProbeConfig holds the health service settings. An empty Addr disables it.
type ProbeConfig struct {
	Addr string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		Hass: HassConfig{
			URL:          strings.TrimRight(getenv("HASS_URL", "http://homeassistant.local:8123"), "/"),
			Token:        os.Getenv("HASS_TOKEN"),
			RateInterval: time.Duration(getenvInt("HASS_RATE_INTERVAL_MS", 250)) * time.Millisecond,
			Timezone:     getenv("COSMO_TIMEZONE", "Local"),
		},
		Store: StoreConfig{
			Path: getenv("COSMO_DB", "cosmo_monitor.db"),
		},
		Log: LogConfig{
			Level:  getenv("COSMO_LOG_LEVEL", "info"),
			Format: getenv("COSMO_LOG_FORMAT", "text"),
		},
		Monitor: MonitorConfig{
			Entities: EntityConfig{
				TaskStatus:  getenv("COSMO_ENTITY_TASK_STATUS", "sensor.cosmo_task_status"),
				Vacuum:      getenv("COSMO_ENTITY_VACUUM", "vacuum.cosmo"),
				CurrentRoom: getenv("COSMO_ENTITY_ROOM", "sensor.cosmo_current_room"),
				CleanedArea: getenv("COSMO_ENTITY_AREA", "sensor.cosmo_cleaned_area"),
			},
			Lookback:   time.Duration(getenvInt("COSMO_LOOKBACK_HOURS", 24)) * time.Hour,
			Debounce:   time.Duration(getenvInt("COSMO_DEBOUNCE_SECONDS", 20)) * time.Second,
			RefineMode: getenv("COSMO_REFINE_MODE", RefineConfirm),
			Thresholds: os.Getenv("COSMO_ROOM_THRESHOLDS"),
			DryRun:     getenvBool("COSMO_DRY_RUN", false),
		},
		MQTT: MQTTConfig{
			Broker:   os.Getenv("MQTT_BROKER"),
			Base:     getenv("MQTT_STATESTREAM_BASE", "homeassistant"),
			ClientID: getenv("MQTT_CLIENT_ID", "cosmo-monitor"),
		},
		Probe: ProbeConfig{
			Addr: os.Getenv("PROBE_ADDR"),
		},
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Monitor.Lookback <= 0 {
		errs = append(errs, fmt.Errorf("COSMO_LOOKBACK_HOURS must be positive, got %s", c.Monitor.Lookback))
	}
	if c.Monitor.Debounce < 0 {
		errs = append(errs, fmt.Errorf("COSMO_DEBOUNCE_SECONDS must not be negative, got %s", c.Monitor.Debounce))
	}
	switch c.Monitor.RefineMode {
	case RefineConfirm, RefineTrim:
	default:
		errs = append(errs, fmt.Errorf("COSMO_REFINE_MODE must be %q or %q, got %q", RefineConfirm, RefineTrim, c.Monitor.RefineMode))
	}
	if _, err := ParseThresholds(c.Monitor.Thresholds); err != nil {
		errs = append(errs, fmt.Errorf("COSMO_ROOM_THRESHOLDS: %w", err))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("COSMO_TIMEZONE: %w", err))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("COSMO_LOG_FORMAT must be \"text\" or \"json\", got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Location resolves Hass.Timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Hass.Timezone == "" || c.Hass.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Hass.Timezone)
}

// ParseThresholds parses "Room=m2,Room=m2". An empty string yields an empty map.
func ParseThresholds(s string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		room, value, ok := strings.Cut(pair, "=")
		room = strings.TrimSpace(room)
		if !ok || room == "" {
			return nil, fmt.Errorf("invalid pair %q, want Room=m2", pair)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || f < 0 {
			return nil, fmt.Errorf("invalid area for %s: %q", room, value)
		}
		out[room] = f
	}
	return out, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
