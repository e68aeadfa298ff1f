// Package publish fans control events out to an MQTT broker so other
// programs can react to shots without holding a websocket open.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ayusman/fingergun/internal/config"
	"github.com/ayusman/fingergun/internal/logger"
)

const (
	defaultConnectTimeout = 5 * time.Second
	publishTimeout        = 2 * time.Second
	disconnectQuiesceMs   = 250
)

// Topic suffixes under the configured prefix.
const (
	TopicShot  = "shot"
	TopicState = "state"
)

// ErrNotConnected is returned when publishing before Connect succeeded.
var ErrNotConnected = errors.New("mqtt not connected")

// ShotEvent is published once per accepted shoot trigger.
type ShotEvent struct {
	SessionID string    `json:"session_id,omitempty"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	FiredAt   time.Time `json:"fired_at"`
}

// StateEvent is published when the debounced gesture state or the running
// flag changes.
type StateEvent struct {
	State   string    `json:"state"`
	Armed   bool      `json:"armed"`
	Running bool      `json:"running"`
	At      time.Time `json:"at"`
}

// Stats contains publisher statistics.
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
}

// Publisher publishes control events to an MQTT broker.
type Publisher struct {
	cfg       config.MQTTConfig
	newClient func(*mqtt.ClientOptions) mqtt.Client
	client    mqtt.Client

	mu        sync.RWMutex
	published map[string]uint64 // count per topic
	errors    uint64
	connected bool
}

// NewPublisher creates a Publisher for cfg. It does not connect.
func NewPublisher(cfg config.MQTTConfig) *Publisher {
	return &Publisher{
		cfg:       cfg,
		newClient: mqtt.NewClient,
		published: make(map[string]uint64),
	}
}

// Enabled reports whether a broker is configured.
func (p *Publisher) Enabled() bool {
	return p.cfg.Broker != ""
}

// Connect establishes the connection to the broker. The client reconnects
// on its own after a later connection loss.
func (p *Publisher) Connect(ctx context.Context) error {
	if !p.Enabled() {
		return errors.New("mqtt broker not configured")
	}

	ctx = logger.WithKV(ctx, "broker", p.cfg.Broker, "client_id", p.cfg.ClientID)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(p.cfg.Broker))
	opts.SetClientID(p.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		p.setConnected(true)
		logger.InfoKV(ctx, "mqtt connection established")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		p.setConnected(false)
		logger.WarnKV(ctx, "mqtt connection lost, will auto-reconnect", "error", err)
	}

	p.client = p.newClient(opts)

	logger.InfoKV(ctx, "connecting to mqtt broker")

	timeout := p.cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	token := p.client.Connect()
	select {
	case <-token.Done():
	case <-timer.C:
		return errors.New("mqtt connection timeout")
	case <-ctx.Done():
		return fmt.Errorf("mqtt connect: %w", ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	p.setConnected(true)
	return nil
}

// PublishShot publishes ev to <prefix>/shot.
func (p *Publisher) PublishShot(ev ShotEvent) error {
	return p.publish(TopicShot, ev)
}

// PublishState publishes ev to <prefix>/state.
func (p *Publisher) PublishState(ev StateEvent) error {
	return p.publish(TopicState, ev)
}

func (p *Publisher) publish(suffix string, v any) error {
	if !p.isConnected() {
		p.countError()
		return ErrNotConnected
	}

	topic := p.topic(suffix)

	payload, err := json.Marshal(v)
	if err != nil {
		p.countError()
		return fmt.Errorf("failed to marshal %s event: %w", suffix, err)
	}

	token := p.client.Publish(topic, p.cfg.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.countError()
		return errors.New("publish timeout")
	}
	if err := token.Error(); err != nil {
		p.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	p.mu.Lock()
	p.published[topic]++
	p.mu.Unlock()

	logger.DebugKV(context.Background(), "event published", "topic", topic, "size", len(payload))

	return nil
}

// Disconnect closes the MQTT connection.
func (p *Publisher) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(disconnectQuiesceMs)
		logger.Info(context.Background(), "mqtt disconnected")
	}
	p.setConnected(false)
}

// Stats returns a copy of the publisher statistics.
func (p *Publisher) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	published := make(map[string]uint64, len(p.published))
	for k, v := range p.published {
		published[k] = v
	}

	return Stats{
		Connected: p.connected,
		Published: published,
		Errors:    p.errors,
	}
}

func (p *Publisher) topic(suffix string) string {
	prefix := strings.TrimSuffix(p.cfg.TopicPrefix, "/")
	if prefix == "" {
		return suffix
	}
	return prefix + "/" + suffix
}

func (p *Publisher) isConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func (p *Publisher) countError() {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
}

// brokerURL adds the tcp scheme to a bare host:port.
func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}
