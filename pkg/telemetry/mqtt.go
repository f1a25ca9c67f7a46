// Package telemetry ships per-tick engine records to an MQTT broker so
// external tooling can watch a session live or record it for replay.
package telemetry

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/cobotix/go-gazebot/internal/log"
	"github.com/cobotix/go-gazebot/pkg/engine"
)

// Topics published by the engine.
const (
	TopicTick   = "gazebot/tick"
	TopicAction = "gazebot/action"
)

// Config for the MQTT publisher.
type Config struct {
	Broker   string
	ClientID string
}

// DefaultConfig returns publisher settings for a local broker.
func DefaultConfig() Config {
	return Config{
		Broker:   "tcp://localhost:1883",
		ClientID: "gazebot-engine",
	}
}

// MQTTPublisher implements engine.Publisher over an MQTT connection. A
// publish failure is logged and dropped; telemetry must never stall the
// control loop.
type MQTTPublisher struct {
	client mqtt.Client
}

// NewMQTTPublisher connects to the broker.
func NewMQTTPublisher(config Config) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(config.Broker).
		SetClientID(config.ClientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect mqtt broker %s: %w", config.Broker, token.Error())
	}

	log.Info("telemetry connected", "broker", config.Broker)
	return &MQTTPublisher{client: client}, nil
}

// Publish sends one tick record. Select actions additionally go to the
// action topic so consumers can subscribe to confirmations alone.
func (p *MQTTPublisher) Publish(t engine.Telemetry) {
	payload, err := json.Marshal(t)
	if err != nil {
		log.Warn("telemetry marshal failed", "error", err)
		return
	}
	p.client.Publish(TopicTick, 0, false, payload)

	if t.State.Dominant >= 0 && t.Action != "noop" {
		p.client.Publish(TopicAction, 0, false, payload)
	}
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
