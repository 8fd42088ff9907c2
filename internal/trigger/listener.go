package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler is invoked once per state change, never concurrently.
type Handler func(ctx context.Context, oldState, newState string)

// Transition is one observed state change.
type Transition struct {
	Old string
	New string
}

// #region config
// ListenerConfig describes the state-stream subscription.
type ListenerConfig struct {
	Broker   string // e.g. tcp://localhost:1883
	ClientID string
	Base     string // mqtt_statestream base topic
	EntityID string
}

// Topic returns the mqtt_statestream state topic of an entity,
// e.g. "homeassistant/sensor/cosmo_task_status/state".
func Topic(base, entityID string) string {
	domain, objectID, ok := strings.Cut(entityID, ".")
	if !ok {
		return base + "/" + entityID + "/state"
	}
	return base + "/" + domain + "/" + objectID + "/state"
}
// #endregion config

// #region listener
// Listener subscribes to an entity's state topic and feeds transitions to a
// Handler running on a single worker goroutine.
type Listener struct {
	client  mqtt.Client
	topic   string
	tracker *Tracker
	handler Handler
	events  chan Transition
	log     *slog.Logger
}

// NewListener creates a listener; Start connects it.
func NewListener(cfg ListenerConfig, tracker *Tracker, handler Handler, logger *slog.Logger) *Listener {
	l := newListener(Topic(cfg.Base, cfg.EntityID), tracker, handler, logger)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetOnConnectHandler(l.subscribe).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			l.log.Warn("mqtt connection lost", "err", err)
		})
	l.client = mqtt.NewClient(opts)
	return l
}

func newListener(topic string, tracker *Tracker, handler Handler, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		topic:   topic,
		tracker: tracker,
		handler: handler,
		events:  make(chan Transition, 16),
		log:     logger,
	}
}

// Start connects to the broker and starts the worker. The worker stops when
// ctx is done.
func (l *Listener) Start(ctx context.Context) error {
	token := l.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	go l.work(ctx)
	return nil
}

// Stop disconnects from the broker.
func (l *Listener) Stop() {
	if l.client != nil && l.client.IsConnected() {
		l.client.Disconnect(250)
	}
}

// subscribe runs on every (re)connect.
func (l *Listener) subscribe(c mqtt.Client) {
	token := c.Subscribe(l.topic, 1, l.onMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		l.log.Error("mqtt subscribe failed", "topic", l.topic, "err", err)
		return
	}
	l.log.Info("subscribed", "topic", l.topic)
}

func (l *Listener) onMessage(_ mqtt.Client, msg mqtt.Message) {
	state := strings.Trim(strings.TrimSpace(string(msg.Payload())), `"`)
	old, changed := l.tracker.Observe(state)
	if !changed {
		return
	}
	l.log.Debug("state changed", "topic", msg.Topic(), "old", old, "new", state)
	select {
	case l.events <- Transition{Old: old, New: state}:
	default:
		l.log.Warn("transition dropped, worker busy", "old", old, "new", state)
	}
}

func (l *Listener) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case tr := <-l.events:
			l.handler(ctx, tr.Old, tr.New)
		}
	}
}
// #endregion listener
