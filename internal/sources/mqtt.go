// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/relabs-tech/shoulder_monitor/internal/ble"
	"github.com/relabs-tech/shoulder_monitor/internal/imu"
	"github.com/relabs-tech/shoulder_monitor/internal/monitoring"
)

// MQTTConfig describes the broker and topics of the BLE gateway bridge.
// Empty topics are not subscribed.
type MQTTConfig struct {
	Broker   string
	ClientID string

	// RawTopic carries imu.IMURaw JSON documents (complete readings).
	RawTopic string
	// AccelTopic and GyroTopic carry BLE characteristic values as forwarded
	// by the gateway.
	AccelTopic string
	GyroTopic  string
	// Base64 is set when the gateway forwards characteristic values base64
	// encoded instead of as raw bytes.
	Base64 bool
}

// MQTT receives samples from the broker. Characteristic notifications are
// stamped with their arrival time.
type MQTT struct {
	cfg       MQTTConfig
	chars     map[string]uuid.UUID
	newClient func(*mqtt.ClientOptions) mqtt.Client
	now       func() time.Time

	mu       sync.Mutex
	client   mqtt.Client
	running  bool
	onSample func(imu.RawSample)
	onFail   func(error)
}

// NewMQTT returns a stopped MQTT source.
func NewMQTT(cfg MQTTConfig) *MQTT {
	return &MQTT{
		cfg:       cfg,
		chars:     CharacteristicTopics(cfg),
		newClient: mqtt.NewClient,
		now:       time.Now,
	}
}

// CharacteristicTopics maps each configured characteristic topic to the
// GATT characteristic the gateway forwards on it.
func CharacteristicTopics(cfg MQTTConfig) map[string]uuid.UUID {
	chars := make(map[string]uuid.UUID, 2)
	if cfg.AccelTopic != "" {
		chars[cfg.AccelTopic] = ble.AccelUUID
	}
	if cfg.GyroTopic != "" {
		chars[cfg.GyroTopic] = ble.GyroUUID
	}
	return chars
}

// Start connects, subscribes and begins delivery. The gateway publishes at
// the device's own rate, so intervalMs is informational.
func (m *MQTT) Start(intervalMs int, onSample func(imu.RawSample), onFail func(error)) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("mqtt source already running")
	}
	m.onSample = onSample
	m.onFail = onFail
	m.running = true
	m.mu.Unlock()

	opts := mqtt.NewClientOptions().
		AddBroker(m.cfg.Broker).
		SetClientID(m.cfg.ClientID).
		SetAutoReconnect(false).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			m.connectionLost(err)
		})

	client := m.newClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		m.reset()
		return fmt.Errorf("%w: mqtt connect %s: %v", imu.ErrSourceUnavailable, m.cfg.Broker, token.Error())
	}

	for _, topic := range []string{m.cfg.RawTopic, m.cfg.AccelTopic, m.cfg.GyroTopic} {
		if topic == "" {
			continue
		}
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			m.handle(msg.Topic(), msg.Payload())
		})
		token.Wait()
		if token.Error() != nil {
			client.Disconnect(250)
			m.reset()
			return fmt.Errorf("%w: subscribe %s: %v", imu.ErrSourceUnavailable, topic, token.Error())
		}
	}

	m.mu.Lock()
	m.client = client
	m.mu.Unlock()
	monitoring.Logf("mqtt source: connected to %s (requested interval %d ms)", m.cfg.Broker, intervalMs)
	for topic, char := range m.chars {
		monitoring.Logf("mqtt source: %s carries service %s characteristic %s", topic, ble.ServiceUUID, char)
	}
	return nil
}

func (m *MQTT) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	m.onSample = nil
	m.onFail = nil
}

// handle decodes one message and delivers it. Malformed payloads are logged
// and dropped.
func (m *MQTT) handle(topic string, payload []byte) {
	sample, err := m.decode(topic, payload)
	if err != nil {
		monitoring.Warnf("mqtt source: dropping message on %s: %v", topic, err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || m.onSample == nil {
		return
	}
	m.onSample(sample)
}

func (m *MQTT) decode(topic string, payload []byte) (imu.RawSample, error) {
	if topic == m.cfg.RawTopic {
		var raw imu.IMURaw
		if err := json.Unmarshal(payload, &raw); err != nil {
			return imu.RawSample{}, fmt.Errorf("%w: %v", imu.ErrMalformedSample, err)
		}
		return raw.Sample(), nil
	}

	char, ok := m.chars[topic]
	if !ok {
		return imu.RawSample{}, fmt.Errorf("%w: unexpected topic", imu.ErrMalformedSample)
	}
	if m.cfg.Base64 {
		var err error
		if payload, err = ble.DecodeBase64(payload); err != nil {
			return imu.RawSample{}, err
		}
	}
	return ble.Decode(char, m.now().UnixMilli(), payload)
}

func (m *MQTT) connectionLost(err error) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	onFail := m.onFail
	m.running = false
	m.onSample = nil
	m.onFail = nil
	m.client = nil
	m.mu.Unlock()

	monitoring.Logf("mqtt source: connection lost: %v", err)
	if onFail != nil {
		onFail(fmt.Errorf("%w: mqtt connection lost: %v", imu.ErrSourceUnavailable, err))
	}
}

// Stop unsubscribes and disconnects.
func (m *MQTT) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	client := m.client
	m.running = false
	m.onSample = nil
	m.onFail = nil
	m.client = nil
	m.mu.Unlock()

	if client != nil {
		client.Disconnect(250)
	}
	return nil
}
