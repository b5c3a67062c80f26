package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/loop-logic-core/internal/infrastructure/config"
)

// Domain errors for the events package.
var (
	// ErrConnectionFailed is returned when the broker connection cannot be
	// established.
	ErrConnectionFailed = errors.New("events: connection failed")

	// ErrPublishFailed is returned when an event cannot be delivered.
	ErrPublishFailed = errors.New("events: publish failed")

	// ErrNotConnected is returned when publishing without a connection.
	ErrNotConnected = errors.New("events: not connected")
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on
	// disconnect, in milliseconds.
	defaultDisconnectQuiesce = 1000

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// topicPrefix roots every allocation-event topic.
	topicPrefix = "looplogic/events"
)

// Kind names an allocation event.
type Kind string

// Event kinds.
const (
	KindAssigned  Kind = "assigned"
	KindRemoved   Kind = "removed"
	KindBalanced  Kind = "balanced"
	KindCommitted Kind = "committed"
)

// Event is the payload published for one allocation change. Events are
// emitted strictly after the operation has produced its result object; the
// engine never blocks on delivery semantics beyond the publish timeout.
type Event struct {
	Kind      Kind      `json:"kind"`
	PanelID   string    `json:"panel_id,omitempty"`
	CircuitID string    `json:"circuit_id,omitempty"`
	DeviceID  string    `json:"device_id,omitempty"`
	Address   int       `json:"address,omitempty"`
	BatchID   string    `json:"batch_id,omitempty"`
	Count     int       `json:"count,omitempty"`
	At        time.Time `json:"at"`
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Publisher delivers allocation events to an MQTT broker.
//
// A nil *Publisher is a valid no-op: every method returns immediately, so
// callers never need to branch on whether the event feed is enabled.
type Publisher struct {
	client pahomqtt.Client
	qos    byte
	logger Logger
}

// Connect establishes a connection to the MQTT broker and returns a
// publisher ready for use.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//   - logger: Optional logger for delivery failures (nil allowed)
//
// Returns:
//   - *Publisher: Connected publisher
//   - error: If initial connection fails within timeout
func Connect(cfg config.MQTTConfig, logger Logger) (*Publisher, error) {
	opts := buildClientOptions(cfg)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return &Publisher{
		client: client,
		qos:    byte(cfg.QoS),
		logger: logger,
	}, nil
}

// buildClientOptions creates paho MQTT options from Loop Logic config.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetAutoReconnect(true)
	if cfg.Reconnect.MaxDelay > 0 {
		opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	}
	opts.SetCleanSession(true)

	return opts
}

// Publish delivers one event to its kind-specific topic
// (looplogic/events/<kind>). Nil publishers drop the event silently.
func (p *Publisher) Publish(ev Event) error {
	if p == nil {
		return nil
	}
	if !p.client.IsConnected() {
		return ErrNotConnected
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%w: encoding event: %w", ErrPublishFailed, err)
	}

	topic := fmt.Sprintf("%s/%s", topicPrefix, ev.Kind)
	token := p.client.Publish(topic, p.qos, false, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishAsync delivers the event and logs failures instead of returning
// them, for call sites that must not fail on feed problems.
func (p *Publisher) PublishAsync(ev Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ev); err != nil && p.logger != nil {
		p.logger.Warn("allocation event dropped", "kind", string(ev.Kind), "error", err)
	}
}

// Close disconnects from the broker, allowing pending operations to finish.
func (p *Publisher) Close() {
	if p == nil || p.client == nil {
		return
	}
	p.client.Disconnect(defaultDisconnectQuiesce)
}
