// Package telemetry pushes fleet snapshots to observers outside the process:
// an MQTT broker and WebSocket clients.
package telemetry

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nasa-jpl/pdosim/fleet"
)

// Publisher is the part of an mqtt.Client used to send telemetry
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

var connectHandler mqtt.OnConnectHandler = func(client mqtt.Client) {
	log.Println("telemetry: connected to MQTT broker")
}

var connectLostHandler mqtt.ConnectionLostHandler = func(client mqtt.Client, err error) {
	log.Printf("telemetry: MQTT connection lost: %v", err)
}

// Dial connects to broker (e.g. "tcp://localhost:1883"), giving up after timeout.
// The client reconnects on its own once connected.
func Dial(broker, clientID string, timeout time.Duration) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.OnConnect = connectHandler
	opts.OnConnectionLost = connectLostHandler
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(timeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout after %v", broker, timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return client, nil
}

// MQTT publishes snapshots as JSON to one topic
type MQTT struct {
	Client Publisher
	Topic  string
	QoS    byte
}

// Publish sends one snapshot without waiting for the broker
func (m *MQTT) Publish(s fleet.Snapshot) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.Client.Publish(m.Topic, m.QoS, false, b)
	return nil
}

// Hook adapts Publish to a fleet.Runner hook
func (m *MQTT) Hook(f *fleet.Fleet, _ fleet.Report) {
	if err := m.Publish(f.Snapshot()); err != nil {
		log.Printf("telemetry: mqtt publish: %v", err)
	}
}
