package publish

import (
	"context"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/nvr-ai/go-ppg/controller"
	"github.com/pkg/errors"
)

// MQTTConfig configures the MQTT sink.
type MQTTConfig struct {
	// Broker is a broker URL, e.g. tcp://127.0.0.1:1883.
	Broker string `json:"broker" yaml:"broker"`
	// ClientID identifies this device to the broker.
	ClientID string `json:"client_id" yaml:"client_id"`
	// Topic receives every display.
	Topic string `json:"topic" yaml:"topic"`
	// QoS is the MQTT quality of service (0, 1 or 2).
	QoS byte `json:"qos" yaml:"qos"`
	// Retain keeps the latest display on the broker for late subscribers.
	Retain bool `json:"retain" yaml:"retain"`
}

// MQTTSink publishes displays to an MQTT broker.
type MQTTSink struct {
	cfg   MQTTConfig
	codec Codec

	// Client is exported for callers that share the connection.
	Client mqtt.Client

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
}

// NewMQTTSink creates an unconnected sink.
func NewMQTTSink(cfg MQTTConfig, codec Codec) *MQTTSink {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &MQTTSink{cfg: cfg, codec: codec}
}

// Connect establishes the broker connection with automatic reconnects.
func (s *MQTTSink) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		s.setConnected(true)
		slog.Info("publish: mqtt connection established", "broker", s.cfg.Broker, "client_id", s.cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		s.setConnected(false)
		slog.Warn("publish: mqtt connection lost, will auto-reconnect", "broker", s.cfg.Broker, "error", err)
	}

	s.Client = mqtt.NewClient(opts)
	slog.Info("publish: connecting to mqtt broker", "broker", s.cfg.Broker)

	token := s.Client.Connect()
	select {
	case <-token.Done():
	case <-time.After(5 * time.Second):
		return errors.New("mqtt connection timeout")
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "mqtt connect")
	}
	if err := token.Error(); err != nil {
		return errors.Wrap(err, "mqtt connection failed")
	}
	s.setConnected(true)
	return nil
}

func (s *MQTTSink) Name() string { return "mqtt" }

// Publish sends d to the configured topic.
func (s *MQTTSink) Publish(d controller.Display) error {
	if !s.isConnected() {
		s.countError()
		return errors.New("mqtt not connected")
	}

	payload, err := s.codec.Marshal(d)
	if err != nil {
		s.countError()
		return errors.Wrap(err, "failed to marshal display")
	}

	token := s.Client.Publish(s.cfg.Topic, s.cfg.QoS, s.cfg.Retain, payload)
	if !token.WaitTimeout(2 * time.Second) {
		s.countError()
		return errors.New("publish timeout")
	}
	if err := token.Error(); err != nil {
		s.countError()
		return errors.Wrap(err, "publish failed")
	}

	s.mu.Lock()
	s.published++
	s.mu.Unlock()
	return nil
}

// Disconnect closes the broker connection.
func (s *MQTTSink) Disconnect() {
	if s.Client != nil && s.Client.IsConnected() {
		s.Client.Disconnect(250)
		slog.Info("publish: mqtt disconnected")
	}
	s.setConnected(false)
}

// MQTTStats contains sink statistics.
type MQTTStats struct {
	Connected bool   `json:"connected"`
	Published uint64 `json:"published"`
	Errors    uint64 `json:"errors"`
}

// Stats returns sink statistics.
func (s *MQTTSink) Stats() MQTTStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return MQTTStats{Connected: s.connected, Published: s.published, Errors: s.errors}
}

func (s *MQTTSink) setConnected(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = v
}

func (s *MQTTSink) isConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *MQTTSink) countError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors++
}
