// Package mirror publishes station events to an MQTT broker so other tools
// can follow a diagnostic session.
package mirror

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/sctest/station/internal/config"
	"github.com/sctest/station/internal/diag"
	"github.com/sctest/station/internal/station"
)

const publishTimeout = 5 * time.Second

var errPublishTimeout = errors.New("timeout")

// API is the subset of mqtt.Client the mirror uses.
type API interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Mirror publishes events under a topic prefix.
type Mirror struct {
	api    API
	prefix string
}

// Connect dials the broker described by cfg.
func Connect(cfg config.MQTT) (*Mirror, error) {
	opts := mqtt.NewClientOptions().AddBroker(cfg.BrokerURL).SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetOrderMatters(false)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetPingTimeout(3 * time.Second)

	client := mqtt.NewClient(opts)
	t := client.Connect()
	if ok := t.WaitTimeout(10 * time.Second); !ok {
		return nil, fmt.Errorf("mqtt connect %s: timeout", cfg.BrokerURL)
	}
	if err := t.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.BrokerURL, err)
	}
	slog.Info("result mirror connected", "broker", cfg.BrokerURL, "prefix", cfg.TopicPrefix)
	return New(client, cfg.TopicPrefix), nil
}

// New creates a Mirror over an existing client.
func New(api API, prefix string) *Mirror {
	return &Mirror{api: api, prefix: prefix}
}

type linkPayload struct {
	State string    `json:"state"`
	Peer  string    `json:"peer,omitempty"`
	At    time.Time `json:"at"`
}

type resultPayload struct {
	Test   string    `json:"test"`
	WireID string    `json:"wireId"`
	Result string    `json:"result"`
	Manual bool      `json:"manual"`
	At     time.Time `json:"at"`
}

type confirmPayload struct {
	Test   string    `json:"test"`
	WireID string    `json:"wireId"`
	At     time.Time `json:"at"`
}

type batteryPayload struct {
	Level int       `json:"level"`
	State string    `json:"state"`
	At    time.Time `json:"at"`
}

type reportPayload struct {
	Path    string    `json:"path,omitempty"`
	Entries int       `json:"entries"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// Publish sends ev on its topic. State topics (link, results, battery) are
// retained.
func (m *Mirror) Publish(ev station.Event) error {
	var (
		topic    string
		retained bool
		payload  any
	)
	switch ev.Kind {
	case station.EventLink:
		topic, retained = "link", true
		p := linkPayload{State: ev.Link.String(), At: ev.At}
		if ev.Link == diag.StateConnected {
			p.Peer = ev.Peer.Addr
		}
		payload = p
	case station.EventResult:
		topic, retained = "results/"+ev.WireID, true
		payload = resultPayload{Test: ev.Label, WireID: ev.WireID, Result: ev.Result.String(), Manual: ev.Manual, At: ev.At}
	case station.EventConfirmRequest:
		topic = "confirm"
		payload = confirmPayload{Test: ev.Label, WireID: ev.WireID, At: ev.At}
	case station.EventBattery:
		topic, retained = "battery", true
		payload = batteryPayload{Level: ev.Battery.Level, State: ev.Battery.State, At: ev.At}
	case station.EventReport:
		topic = "reports"
		p := reportPayload{Path: ev.Path, Entries: ev.Entries, At: ev.At}
		if ev.Err != nil {
			p.Error = ev.Err.Error()
		}
		payload = p
	default:
		return fmt.Errorf("mirror: unsupported event %s", ev.Kind)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mirror: encode %s: %w", ev.Kind, err)
	}
	topic = m.prefix + "/" + topic
	t := m.api.Publish(topic, 1, retained, data)
	if !t.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mirror: publish %s: %w", topic, errPublishTimeout)
	}
	if err := t.Error(); err != nil {
		return fmt.Errorf("mirror: publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *Mirror) Close() {
	m.api.Disconnect(250)
}
