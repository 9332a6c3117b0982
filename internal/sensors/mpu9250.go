// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/shoulder_monitor/internal/conditioner"
	"github.com/relabs-tech/shoulder_monitor/internal/imu"
)

// RawReader reads one raw accelerometer + gyroscope reading.
type RawReader interface {
	ReadRaw() (imu.IMURaw, error)
}

// MPU9250Config selects the SPI wiring and full-scale ranges of the
// on-board IMU.
type MPU9250Config struct {
	Name       string // for logging and IMURaw.Source
	SPIDevice  string // e.g. "/dev/spidev0.0"
	CSPin      string // e.g. "GPIO8"
	AccelRange byte   // 0=±2g .. 3=±16g
	GyroRange  byte   // 0=±250 .. 3=±2000 °/s
}

// MPU9250 is an initialized IMU on SPI.
type MPU9250 struct {
	name string
	dev  *mpu9250.MPU9250
	cfg  MPU9250Config
}

// OpenMPU9250 initializes the periph host, the SPI transport and the device,
// applies the configured ranges and runs the driver's bias calibration.
func OpenMPU9250(cfg MPU9250Config) (*MPU9250, error) {
	name := cfg.Name
	if name == "" {
		name = "imu"
	}
	if _, err := conditioner.ScaleForRanges(cfg.AccelRange, cfg.GyroRange); err != nil {
		return nil, fmt.Errorf("%s IMU: %w", name, err)
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%s IMU: periph host init: %w", name, err)
	}

	cs := gpioreg.ByName(cfg.CSPin)
	if cs == nil {
		return nil, fmt.Errorf("%s IMU: CS pin %q not found", name, cfg.CSPin)
	}

	tr, err := mpu9250.NewSpiTransport(cfg.SPIDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("%s IMU: SPI transport (%s): %w", name, cfg.SPIDevice, err)
	}

	dev, err := mpu9250.New(*tr)
	if err != nil {
		return nil, fmt.Errorf("%s IMU: device creation: %w", name, err)
	}
	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("%s IMU: initialization: %w", name, err)
	}

	if err := dev.SetAccelRange(cfg.AccelRange); err != nil {
		return nil, fmt.Errorf("%s IMU: set accel range: %w", name, err)
	}
	log.Printf("%s IMU: accelerometer range set to %d (±%dg)", name, cfg.AccelRange, conditioner.AccelRangeG(cfg.AccelRange))

	if err := dev.SetGyroRange(cfg.GyroRange); err != nil {
		return nil, fmt.Errorf("%s IMU: set gyro range: %w", name, err)
	}
	log.Printf("%s IMU: gyroscope range set to %d (±%d°/s)", name, cfg.GyroRange, conditioner.GyroRangeDPS(cfg.GyroRange))

	// Keep the device still while the driver measures bias.
	if err := dev.Calibrate(); err != nil {
		log.Printf("%s IMU: warning: calibration failed: %v", name, err)
	} else {
		log.Printf("%s IMU: calibration complete", name)
	}

	return &MPU9250{name: name, dev: dev, cfg: cfg}, nil
}

// Scale returns the conditioner scale matching the configured ranges.
func (m *MPU9250) Scale() conditioner.Scale {
	sc, _ := conditioner.ScaleForRanges(m.cfg.AccelRange, m.cfg.GyroRange)
	return sc
}

// ReadRaw reads accelerometer and gyroscope counts. TimeMs is left for the
// caller to stamp.
func (m *MPU9250) ReadRaw() (imu.IMURaw, error) {
	ax, err := m.dev.GetAccelerationX()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("%s IMU accel X: %w", m.name, err)
	}
	ay, err := m.dev.GetAccelerationY()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("%s IMU accel Y: %w", m.name, err)
	}
	az, err := m.dev.GetAccelerationZ()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("%s IMU accel Z: %w", m.name, err)
	}

	gx, err := m.dev.GetRotationX()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("%s IMU gyro X: %w", m.name, err)
	}
	gy, err := m.dev.GetRotationY()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("%s IMU gyro Y: %w", m.name, err)
	}
	gz, err := m.dev.GetRotationZ()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("%s IMU gyro Z: %w", m.name, err)
	}

	return imu.IMURaw{
		Source: m.name,
		Ax:     ax,
		Ay:     ay,
		Az:     az,
		Gx:     gx,
		Gy:     gy,
		Gz:     gz,
	}, nil
}
