// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sources

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/shoulder_monitor/internal/imu"
	"github.com/relabs-tech/shoulder_monitor/internal/monitoring"
)

// SerialConfig selects the port of a serial-attached IMU bridge.
type SerialConfig struct {
	PortName string
	BaudRate uint
}

// Serial reads $PIMU sentences from a serial port.
type Serial struct {
	cfg  SerialConfig
	open func(serial.OpenOptions) (io.ReadWriteCloser, error)

	mu      sync.Mutex
	port    io.ReadWriteCloser
	running bool
	done    chan struct{}
}

// NewSerial returns a stopped serial source.
func NewSerial(cfg SerialConfig) *Serial {
	return &Serial{cfg: cfg, open: serial.Open}
}

// Start opens the port and reads lines until Stop or a read error. The
// bridge streams at its own rate, so intervalMs is informational.
func (s *Serial) Start(intervalMs int, onSample func(imu.RawSample), onFail func(error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("serial source already running")
	}

	opts := serial.OpenOptions{
		PortName:              s.cfg.PortName,
		BaudRate:              s.cfg.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := s.open(opts)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", imu.ErrSourceUnavailable, s.cfg.PortName, err)
	}
	monitoring.Logf("serial source: %s opened at %d baud (requested interval %d ms)", s.cfg.PortName, s.cfg.BaudRate, intervalMs)

	s.port = port
	s.running = true
	s.done = make(chan struct{})
	go s.readLoop(port, s.done, onSample, onFail)
	return nil
}

func (s *Serial) readLoop(port io.Reader, done chan struct{}, onSample func(imu.RawSample), onFail func(error)) {
	defer close(done)

	reader := bufio.NewReader(port)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if s.stopping() {
				return
			}
			monitoring.Logf("serial source: read error: %v", err)
			onFail(fmt.Errorf("%w: serial read: %v", imu.ErrSourceUnavailable, err))
			return
		}

		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "$") {
			continue
		}

		sample, err := ParsePIMU(line)
		if err != nil {
			monitoring.Warnf("serial source: dropping %q: %v", line, err)
			continue
		}
		if s.stopping() {
			return
		}
		onSample(sample)
	}
}

func (s *Serial) stopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.running
}

// Stop closes the port and waits for the reader to exit.
func (s *Serial) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	port, done := s.port, s.done
	s.port = nil
	s.mu.Unlock()

	err := port.Close()
	<-done
	return err
}
