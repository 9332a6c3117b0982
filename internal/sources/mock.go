// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sources provides the raw sample sources the pipeline can record
// from besides the on-board IMU: a synthetic arm motion, the BLE gateway
// bridge over MQTT and a serial-attached IMU.
package sources

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/shoulder_monitor/internal/imu"
)

// MockPeriod is the duration of one synthetic raise and lower cycle.
const MockPeriod = 4 * time.Second

// MockMaxAngle is the peak elevation of the synthetic arm in degrees.
const MockMaxAngle = 90.0

// Mock generates a smooth arm raise and lower in physical units (g and °/s)
// with a little deterministic noise on the accelerometer.
type Mock struct {
	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	now     func() time.Time
}

// NewMock returns a stopped mock source.
func NewMock() *Mock {
	return &Mock{now: time.Now}
}

// MockSample returns the synthetic reading at elapsed seconds into the
// motion, stamped ts.
func MockSample(ts int64, elapsed float64) imu.RawSample {
	w := 2 * math.Pi / MockPeriod.Seconds()
	angle := MockMaxAngle / 2 * (1 - math.Cos(w*elapsed))
	rate := MockMaxAngle / 2 * w * math.Sin(w*elapsed)

	rad := angle * math.Pi / 180
	noise := 0.01 * math.Sin(37*elapsed)
	return imu.NewRawSample(ts,
		imu.Vec3{X: noise, Y: math.Sin(rad), Z: math.Cos(rad) + noise},
		imu.Vec3{X: rate, Y: 0.2 * math.Sin(3*elapsed), Z: 0},
	)
}

// Start delivers one sample every intervalMs until Stop.
func (m *Mock) Start(intervalMs int, onSample func(imu.RawSample), onFail func(error)) error {
	if intervalMs <= 0 {
		return errors.New("mock source: interval must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("mock source already running")
	}
	m.running = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})

	go func(stop, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
		defer ticker.Stop()

		start := m.now()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				now := m.now()
				onSample(MockSample(now.UnixMilli(), now.Sub(start).Seconds()))
			}
		}
	}(m.stop, m.done)
	return nil
}

// Stop halts the ticker and waits for the last delivery to finish.
func (m *Mock) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	stop, done := m.stop, m.done
	m.mu.Unlock()

	close(stop)
	<-done
	return nil
}
