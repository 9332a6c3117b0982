// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/shoulder_monitor/internal/config"
	"github.com/relabs-tech/shoulder_monitor/internal/imu"
)

func formatAngle(payload []byte) (string, error) {
	var a imu.AngleSample
	if err := json.Unmarshal(payload, &a); err != nil {
		return "", err
	}
	return fmt.Sprintf("[ANGLE] t=%d  EWMA=%7.2f  COMP=%7.2f", a.Timestamp, a.Angle1, a.Angle2), nil
}

func formatStatus(payload []byte) (string, error) {
	var s Status
	if err := json.Unmarshal(payload, &s); err != nil {
		return "", err
	}
	line := fmt.Sprintf("[STATE] %s session=%s samples=%d", s.State, s.SessionID, s.Stats.Emitted)
	if s.Message != "" {
		line += " " + s.Message
	}
	if s.Error != "" {
		line += " error=" + s.Error
	}
	return line, nil
}

func formatRaw(payload []byte) (string, error) {
	var s imu.IMURaw
	if err := json.Unmarshal(payload, &s); err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"[IMU]   t=%d ax=%6d ay=%6d az=%6d  gx=%6d gy=%6d gz=%6d",
		s.TimeMs, s.Ax, s.Ay, s.Az, s.Gx, s.Gy, s.Gz,
	), nil
}

// RunConsoleMQTT prints angle samples, session status and raw IMU readings
// as they arrive. Raw readings are printed only when showRaw is set.
func RunConsoleMQTT(showRaw bool) error {
	cfg := config.Get()

	client, err := connectMQTT("console", cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}

	topics := map[string]func([]byte) (string, error){
		cfg.TopicAngle:  formatAngle,
		cfg.TopicStatus: formatStatus,
	}
	if showRaw && cfg.TopicIMURaw != "" {
		topics[cfg.TopicIMURaw] = formatRaw
	}

	for topic, format := range topics {
		if topic == "" {
			continue
		}
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			line, err := format(msg.Payload())
			if err != nil {
				log.Printf("console: %s unmarshal error: %v", msg.Topic(), err)
				return
			}
			fmt.Println(line)
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("console: subscribed to %s", topic)
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
