package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig describes the broker alerts are published to
type MQTTConfig struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	Topic          string
	QoS            byte
	ConnectTimeout time.Duration
}

// Publisher is the subset of an MQTT client used for alerts
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Alert is the JSON document published for every notification
type Alert struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// MQTT publishes alerts to a topic so other devices in the home can react
type MQTT struct {
	pub    Publisher
	topic  string
	qos    byte
	now    func() time.Time
	closer func()
}

// NewMQTT wraps an existing publisher
func NewMQTT(pub Publisher, topic string, qos byte) *MQTT {
	return &MQTT{pub: pub, topic: topic, qos: qos, now: time.Now, closer: func() {}}
}

// DialMQTT connects to the broker, giving up after cfg.ConnectTimeout
func DialMQTT(cfg MQTTConfig) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(timeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		return nil, errors.New("timed out connecting to MQTT broker")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	m := NewMQTT(&pahoPublisher{client: client, timeout: timeout}, cfg.Topic, cfg.QoS)
	m.closer = func() { client.Disconnect(250) }
	return m, nil
}

// Notify publishes the alert as JSON
func (m *MQTT) Notify(title, message string) error {
	payload, err := json.Marshal(Alert{Title: title, Message: message, Timestamp: m.now()})
	if err != nil {
		return err
	}
	return m.pub.Publish(m.topic, m.qos, false, payload)
}

// Close disconnects from the broker
func (m *MQTT) Close() {
	m.closer()
}

type pahoPublisher struct {
	client  mqtt.Client
	timeout time.Duration
}

func (p *pahoPublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("timed out publishing to topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}
	return nil
}
