// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// MQTTPublisher publishes with QoS 0 on a connected client.
type MQTTPublisher struct {
	Client   mqtt.Client
	Retained bool
}

func (p MQTTPublisher) Publish(topic string, payload []byte) error {
	token := p.Client.Publish(topic, 0, p.Retained, payload)
	token.Wait()
	return token.Error()
}

// nopPublisher drops everything. Used when the broker is unreachable.
type nopPublisher struct{}

func (nopPublisher) Publish(string, []byte) error { return nil }

func publishJSON(pub Publisher, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	if err := pub.Publish(topic, payload); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func connectMQTT(component, broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	log.Printf("%s: connected to MQTT broker at %s", component, broker)
	return client, nil
}
