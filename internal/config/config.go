// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/relabs-tech/shoulder_monitor/internal/conditioner"
	"github.com/relabs-tech/shoulder_monitor/internal/filter"
	"github.com/relabs-tech/shoulder_monitor/internal/fusion"
	"github.com/relabs-tech/shoulder_monitor/internal/orientation"
)

// Sample sources selectable with SOURCE.
const (
	SourceMock     = "mock"
	SourceMQTT     = "mqtt"
	SourceSerial   = "serial"
	SourceInternal = "internal"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDRecorder string
	MQTTClientIDProducer string
	MQTTClientIDSource   string
	MQTTClientIDConsole  string
	MQTTClientIDDisplay  string

	// Topics
	TopicIMURaw   string
	TopicBLEAccel string
	TopicBLEGyro  string
	TopicAngle    string
	TopicStatus   string
	BLEBase64     bool

	// Sample source: mock, mqtt, serial or internal
	Source         string
	SampleInterval int // milliseconds

	// Serial IMU bridge
	SerialPort     string
	SerialBaudRate int

	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUGyroRange byte

	// Filters
	EWMAAlpha   float64
	CompAlpha   float64
	HistorySize int

	// Calibration of the angle source. The mapping depends on how the
	// sensor is worn.
	TiltPlane     orientation.Plane
	GyroAxis      conditioner.Axis
	GyroSign      float64
	AccelLSBPerG  float64 // 0 = already in g
	GyroLSBPerDPS float64 // 0 = already in °/s (or rad/s, see GyroUnits)
	GyroUnits     string  // "dps" or "rad"

	// Web Server
	WebServerPort int

	// Export
	ExportDir string

	// Display
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used for keys the file leaves out.
func Default() *Config {
	return &Config{
		MQTTBroker:           "tcp://localhost:1883",
		MQTTClientIDRecorder: "shoulder-recorder",
		MQTTClientIDProducer: "shoulder-producer",
		MQTTClientIDSource:   "shoulder-source",
		MQTTClientIDConsole:  "shoulder-console",
		MQTTClientIDDisplay:  "shoulder-display",

		TopicIMURaw:   "shoulder/imu/raw",
		TopicBLEAccel: "shoulder/ble/accel",
		TopicBLEGyro:  "shoulder/ble/gyro",
		TopicAngle:    "shoulder/angle",
		TopicStatus:   "shoulder/status",

		Source:         SourceMock,
		SampleInterval: 10,

		SerialPort:     "/dev/ttyUSB0",
		SerialBaudRate: 115200,

		IMUSPIDevice: "/dev/spidev0.0",
		IMUCSPin:     "GPIO8",

		EWMAAlpha:   filter.DefaultEWMAAlpha,
		CompAlpha:   filter.DefaultComplementaryAlpha,
		HistorySize: fusion.DefaultHistorySize,

		TiltPlane: orientation.PlaneTilt,
		GyroAxis:  conditioner.AxisX,
		GyroSign:  1,
		GyroUnits: "dps",

		WebServerPort: 8080,
		ExportDir:     "exports",

		DisplayI2CAddr:        0x3C,
		DisplayUpdateInterval: 500,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines. Blank lines and lines starting with # are
// skipped.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}
		if err := cfg.setValue(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseInt(key, value string, min, max int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, min, max, v)
	}
	return v, nil
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_RECORDER":
		c.MQTTClientIDRecorder = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_SOURCE":
		c.MQTTClientIDSource = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_IMU_RAW":
		c.TopicIMURaw = value
	case "TOPIC_BLE_ACCEL":
		c.TopicBLEAccel = value
	case "TOPIC_BLE_GYRO":
		c.TopicBLEGyro = value
	case "TOPIC_ANGLE":
		c.TopicAngle = value
	case "TOPIC_STATUS":
		c.TopicStatus = value
	case "BLE_BASE64":
		c.BLEBase64, err = strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid BLE_BASE64 %q: %w", value, err)
		}

	// Source
	case "SOURCE":
		switch v := strings.ToLower(value); v {
		case SourceMock, SourceMQTT, SourceSerial, SourceInternal:
			c.Source = v
		default:
			return fmt.Errorf("SOURCE must be mock, mqtt, serial or internal, got %q", value)
		}
	case "SAMPLE_INTERVAL":
		c.SampleInterval, err = parseInt(key, value, 1, 60_000)

	// Serial
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		c.SerialBaudRate, err = parseInt(key, value, 1, 4_000_000)

	// IMU Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_RANGE":
		var v int
		v, err = parseInt(key, value, 0, 3)
		c.IMUAccelRange = byte(v)
	case "IMU_GYRO_RANGE":
		var v int
		v, err = parseInt(key, value, 0, 3)
		c.IMUGyroRange = byte(v)

	// Filters
	case "EWMA_ALPHA":
		c.EWMAAlpha, err = parseFloat(key, value)
	case "COMP_ALPHA":
		c.CompAlpha, err = parseFloat(key, value)
	case "HISTORY_SIZE":
		c.HistorySize, err = parseInt(key, value, 1, 1_000_000)

	// Calibration
	case "TILT_PLANE":
		c.TiltPlane, err = orientation.ParsePlane(value)
	case "GYRO_AXIS":
		c.GyroAxis, err = conditioner.ParseAxis(value)
	case "GYRO_SIGN":
		c.GyroSign, err = parseFloat(key, value)
		if err == nil && c.GyroSign != 1 && c.GyroSign != -1 {
			err = fmt.Errorf("GYRO_SIGN must be 1 or -1, got %v", c.GyroSign)
		}
	case "ACCEL_LSB_PER_G":
		c.AccelLSBPerG, err = parseFloat(key, value)
	case "GYRO_LSB_PER_DPS":
		c.GyroLSBPerDPS, err = parseFloat(key, value)
	case "GYRO_UNITS":
		switch v := strings.ToLower(value); v {
		case "dps", "rad":
			c.GyroUnits = v
		default:
			return fmt.Errorf("GYRO_UNITS must be dps or rad, got %q", value)
		}

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value, 1, 65535)

	// Export
	case "EXPORT_DIR":
		c.ExportDir = value

	// Display
	case "DISPLAY_I2C_ADDR":
		addr, perr := strconv.ParseUint(value, 0, 16)
		if perr != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, perr)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseInt(key, value, 1, 60_000)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks that required fields are set and consistent.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicAngle == "" {
		return fmt.Errorf("TOPIC_ANGLE is required")
	}
	switch c.Source {
	case SourceMQTT:
		if c.TopicIMURaw == "" && (c.TopicBLEAccel == "" || c.TopicBLEGyro == "") {
			return fmt.Errorf("SOURCE=mqtt needs TOPIC_IMU_RAW or both TOPIC_BLE_ACCEL and TOPIC_BLE_GYRO")
		}
	case SourceSerial:
		if c.SerialPort == "" {
			return fmt.Errorf("SERIAL_PORT is required for SOURCE=serial")
		}
	case SourceInternal:
		if c.IMUSPIDevice == "" || c.IMUCSPin == "" {
			return fmt.Errorf("IMU_SPI_DEVICE and IMU_CS_PIN are required for SOURCE=internal")
		}
	}
	if c.AccelLSBPerG < 0 || c.GyroLSBPerDPS < 0 {
		return fmt.Errorf("ACCEL_LSB_PER_G and GYRO_LSB_PER_DPS must not be negative")
	}
	if err := c.FusionConfig().Validate(); err != nil {
		return err
	}
	return nil
}

// Scale returns the unit scaling for the configured source. The on-board
// IMU derives it from its ranges unless explicit LSB constants are set.
func (c *Config) Scale() conditioner.Scale {
	if c.Source == SourceInternal && c.AccelLSBPerG == 0 && c.GyroLSBPerDPS == 0 {
		sc, err := conditioner.ScaleForRanges(c.IMUAccelRange, c.IMUGyroRange)
		if err == nil {
			return sc
		}
	}
	return conditioner.Scale{
		AccelLSBPerG:  c.AccelLSBPerG,
		GyroLSBPerDPS: c.GyroLSBPerDPS,
		GyroInRadians: c.GyroUnits == "rad",
	}
}

// FusionConfig derives the pipeline tuning.
func (c *Config) FusionConfig() fusion.Config {
	return fusion.Config{
		EWMAAlpha:   c.EWMAAlpha,
		CompAlpha:   c.CompAlpha,
		HistorySize: c.HistorySize,
		Scale:       c.Scale(),
		Axes: conditioner.AxisMap{
			Plane:    c.TiltPlane,
			GyroAxis: c.GyroAxis,
			GyroSign: c.GyroSign,
		},
		KeepRecording: true,
	}
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
