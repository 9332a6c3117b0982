// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/shoulder_monitor/internal/ble"
	"github.com/relabs-tech/shoulder_monitor/internal/config"
	"github.com/relabs-tech/shoulder_monitor/internal/imu"
	"github.com/relabs-tech/shoulder_monitor/internal/sensors"
	"github.com/relabs-tech/shoulder_monitor/internal/sources"
)

// Sensitivities used to express the mock motion in counts (±2g, ±250°/s).
const (
	mockAccelLSBPerG  = 16384
	mockGyroLSBPerDPS = 131
)

// producer reads an IMU and publishes each reading either as an IMURaw
// JSON document or as a pair of BLE characteristic payloads.
type producer struct {
	reader sensors.RawReader
	pub    Publisher
	cfg    *config.Config
	ble    bool
	now    func() time.Time

	seq uint64
}

// tick reads, stamps and publishes one reading.
func (p *producer) tick() (imu.IMURaw, error) {
	raw, err := p.reader.ReadRaw()
	if err != nil {
		return imu.IMURaw{}, err
	}
	p.seq++
	raw.TimeMs = p.now().UnixMilli()
	raw.Seq = p.seq

	if !p.ble {
		return raw, publishJSON(p.pub, p.cfg.TopicIMURaw, raw)
	}

	s := raw.Sample()
	accel := ble.EncodeTriple(s.Accel)
	gyro := ble.EncodeTriple(s.Gyro)
	if p.cfg.BLEBase64 {
		accel = ble.EncodeBase64(accel)
		gyro = ble.EncodeBase64(gyro)
	}
	if err := p.pub.Publish(p.cfg.TopicBLEAccel, accel); err != nil {
		return raw, fmt.Errorf("publish %s: %w", p.cfg.TopicBLEAccel, err)
	}
	if err := p.pub.Publish(p.cfg.TopicBLEGyro, gyro); err != nil {
		return raw, fmt.Errorf("publish %s: %w", p.cfg.TopicBLEGyro, err)
	}
	return raw, nil
}

// run ticks every interval until stop is closed or receives.
func (p *producer) run(name string, interval time.Duration, stop <-chan os.Signal) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logEvery := int(time.Second / interval)
	if logEvery < 1 {
		logEvery = 1
	}

	for {
		select {
		case <-stop:
			log.Printf("%s: shutting down after %d readings", name, p.seq)
			return
		case t := <-ticker.C:
			raw, err := p.tick()
			if err != nil {
				log.Printf("%s: %v", name, err)
				continue
			}
			if (p.seq-1)%uint64(logEvery) == 0 {
				log.Printf("%s %s tick: accel ax=%d ay=%d az=%d | gyro gx=%d gy=%d gz=%d",
					name, t.Format(time.RFC3339),
					raw.Ax, raw.Ay, raw.Az,
					raw.Gx, raw.Gy, raw.Gz,
				)
			}
		}
	}
}

func runProducer(name string, reader sensors.RawReader, useBLE bool) error {
	cfg := config.Get()
	if useBLE && (cfg.TopicBLEAccel == "" || cfg.TopicBLEGyro == "") {
		return fmt.Errorf("%s: BLE mode needs TOPIC_BLE_ACCEL and TOPIC_BLE_GYRO", name)
	}
	if !useBLE && cfg.TopicIMURaw == "" {
		return fmt.Errorf("%s: TOPIC_IMU_RAW is not set", name)
	}

	client, err := connectMQTT(name, cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	p := &producer{
		reader: reader,
		pub:    MQTTPublisher{Client: client},
		cfg:    cfg,
		ble:    useBLE,
		now:    time.Now,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	log.Printf("%s: publishing every %d ms (ble=%v)", name, cfg.SampleInterval, useBLE)
	p.run(name, time.Duration(cfg.SampleInterval)*time.Millisecond, sigCh)
	return nil
}

// RunIMUProducer publishes readings of the on-board MPU9250.
func RunIMUProducer(useBLE bool) error {
	cfg := config.Get()
	dev, err := sensors.OpenMPU9250(sensors.MPU9250Config{
		Name:       "arm",
		SPIDevice:  cfg.IMUSPIDevice,
		CSPin:      cfg.IMUCSPin,
		AccelRange: cfg.IMUAccelRange,
		GyroRange:  cfg.IMUGyroRange,
	})
	if err != nil {
		return err
	}
	return runProducer("imu_producer", dev, useBLE)
}

// mockReader renders the synthetic arm motion as ±2g / ±250°/s counts.
type mockReader struct {
	start time.Time
	now   func() time.Time
}

func newMockReader() *mockReader {
	return &mockReader{start: time.Now(), now: time.Now}
}

func (m *mockReader) ReadRaw() (imu.IMURaw, error) {
	t := m.now()
	s := sources.MockSample(t.UnixMilli(), t.Sub(m.start).Seconds())
	return imu.IMURaw{
		Source: "mock",
		TimeMs: s.Timestamp,
		Ax:     toCounts(s.Accel.X, mockAccelLSBPerG),
		Ay:     toCounts(s.Accel.Y, mockAccelLSBPerG),
		Az:     toCounts(s.Accel.Z, mockAccelLSBPerG),
		Gx:     toCounts(s.Gyro.X, mockGyroLSBPerDPS),
		Gy:     toCounts(s.Gyro.Y, mockGyroLSBPerDPS),
		Gz:     toCounts(s.Gyro.Z, mockGyroLSBPerDPS),
	}, nil
}

func toCounts(v, lsb float64) int16 {
	c := math.Round(v * lsb)
	switch {
	case c > math.MaxInt16:
		return math.MaxInt16
	case c < math.MinInt16:
		return math.MinInt16
	}
	return int16(c)
}

// RunMockProducer publishes the synthetic arm motion. Pair it with
// ACCEL_LSB_PER_G=16384 and GYRO_LSB_PER_DPS=131 on the recorder.
func RunMockProducer(useBLE bool) error {
	return runProducer("producer", newMockReader(), useBLE)
}
