package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/OrlandoFon/Backend-TCCRolamentos/simulation"
)

// ErrPublishTimeout is returned when the broker does not acknowledge a
// message in time.
var ErrPublishTimeout = errors.New("mqtt publish timed out")

// MQTTOptions configures the broker connection.
type MQTTOptions struct {
	Broker   string // e.g. tcp://localhost:1883
	ClientID string
	Username string
	Password string
	Topic    string // prefix; events go to <Topic>/<bearing>/<type>
	QoS      byte
	Timeout  time.Duration
}

// MQTT publishes events as JSON messages.
type MQTT struct {
	client  mqtt.Client
	prefix  string
	qos     byte
	timeout time.Duration
}

// DialMQTT connects to the broker described by o.
func DialMQTT(o MQTTOptions) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	clientID := o.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("rulsim-%d", time.Now().Unix())
	}
	opts.SetClientID(clientID)
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}
	opts.SetKeepAlive(60 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout", o.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", o.Broker, err)
	}
	return NewMQTT(client, o.Topic, o.QoS, o.Timeout), nil
}

// NewMQTT wraps a connected client.
func NewMQTT(client mqtt.Client, prefix string, qos byte, timeout time.Duration) *MQTT {
	if prefix == "" {
		prefix = "bearings"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MQTT{client: client, prefix: prefix, qos: qos, timeout: timeout}
}

// Topic returns the topic ev is published on.
func (m *MQTT) Topic(ev simulation.Event) string {
	bearing := ev.Bearing
	if bearing == "" {
		bearing = "_"
	}
	return fmt.Sprintf("%s/%s/%s", m.prefix, bearing, ev.Kind)
}

// Publish implements Sink.
func (m *MQTT) Publish(ev simulation.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	token := m.client.Publish(m.Topic(ev), m.qos, false, payload)
	if !token.WaitTimeout(m.timeout) {
		return ErrPublishTimeout
	}
	return token.Error()
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	if m.client.IsConnected() {
		m.client.Disconnect(1000)
	}
	return nil
}
