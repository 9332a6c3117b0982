// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"

	"github.com/relabs-tech/shoulder_monitor/internal/config"
	"github.com/relabs-tech/shoulder_monitor/internal/imu"
	"github.com/relabs-tech/shoulder_monitor/internal/sensors"
	"github.com/relabs-tech/shoulder_monitor/internal/sources"
)

// NewSource builds the sample source selected by SOURCE. The on-board IMU
// is opened here, so a missing device fails the session start.
func NewSource(cfg *config.Config) (imu.Source, error) {
	switch cfg.Source {
	case config.SourceMock:
		return sources.NewMock(), nil

	case config.SourceMQTT:
		return sources.NewMQTT(sources.MQTTConfig{
			Broker:     cfg.MQTTBroker,
			ClientID:   cfg.MQTTClientIDSource,
			RawTopic:   cfg.TopicIMURaw,
			AccelTopic: cfg.TopicBLEAccel,
			GyroTopic:  cfg.TopicBLEGyro,
			Base64:     cfg.BLEBase64,
		}), nil

	case config.SourceSerial:
		return sources.NewSerial(sources.SerialConfig{
			PortName: cfg.SerialPort,
			BaudRate: uint(cfg.SerialBaudRate),
		}), nil

	case config.SourceInternal:
		dev, err := sensors.OpenMPU9250(sensors.MPU9250Config{
			Name:       "arm",
			SPIDevice:  cfg.IMUSPIDevice,
			CSPin:      cfg.IMUCSPin,
			AccelRange: cfg.IMUAccelRange,
			GyroRange:  cfg.IMUGyroRange,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", imu.ErrSourceUnavailable, err)
		}
		return sensors.NewPoller(dev), nil
	}
	return nil, fmt.Errorf("%w: unknown source %q", imu.ErrSourceUnavailable, cfg.Source)
}
