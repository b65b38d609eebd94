package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig configures the MQTT sink.
type MQTTConfig struct {
	Broker   string `json:"broker" yaml:"broker"` // e.g. tcp://localhost:1883
	Topic    string `json:"topic" yaml:"topic"`
	ClientID string `json:"client_id" yaml:"client_id"`
	QoS      byte   `json:"qos" yaml:"qos"`
}

const (
	mqttConnectTimeout = 5 * time.Second
	mqttPublishTimeout = 2 * time.Second
	mqttQuiesceMillis  = 250
)

// mqttClient is the part of mqtt.Client the sink uses.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes each event to <topic>/<kind>. State messages are retained
// so a late subscriber sees the current house at once.
type MQTT struct {
	client mqttClient
	topic  string
	qos    byte
}

// NewMQTT connects to cfg.Broker.
func NewMQTT(cfg MQTTConfig) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(mqttConnectTimeout).
		SetAutoReconnect(true)
	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("connecting to mqtt broker %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to mqtt broker %s: %w", cfg.Broker, err)
	}
	return newMQTTWithClient(c, cfg), nil
}

func newMQTTWithClient(c mqttClient, cfg MQTTConfig) *MQTT {
	return &MQTT{client: c, topic: cfg.Topic, qos: cfg.QoS}
}

// Topic returns the topic an event of kind k goes to.
func (m *MQTT) Topic(k Kind) string { return m.topic + "/" + string(k) }

// Publish implements Publisher.
func (m *MQTT) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", e.Kind, err)
	}
	token := m.client.Publish(m.Topic(e.Kind), m.qos, e.Kind == KindState, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(mqttPublishTimeout):
		return fmt.Errorf("mqtt publish to %s: timed out", m.Topic(e.Kind))
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", m.Topic(e.Kind), err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	m.client.Disconnect(mqttQuiesceMillis)
	return nil
}
