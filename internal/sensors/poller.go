// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/relabs-tech/shoulder_monitor/internal/imu"
	"github.com/relabs-tech/shoulder_monitor/internal/monitoring"
)

// MaxConsecutiveReadErrors is how many failed reads in a row end a session.
// Isolated failures only drop that tick.
const MaxConsecutiveReadErrors = 10

// Poller reads a RawReader on a ticker and delivers complete samples in raw
// counts.
type Poller struct {
	reader RawReader
	now    func() time.Time

	mu      sync.Mutex
	running bool
	seq     uint64
	stop    chan struct{}
	done    chan struct{}
}

// NewPoller returns a stopped poller over r.
func NewPoller(r RawReader) *Poller {
	return &Poller{reader: r, now: time.Now}
}

// Start polls every intervalMs until Stop or too many read errors.
func (p *Poller) Start(intervalMs int, onSample func(imu.RawSample), onFail func(error)) error {
	if intervalMs <= 0 {
		return fmt.Errorf("%w: poll interval must be positive, got %d", imu.ErrSourceUnavailable, intervalMs)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("poller already running")
	}
	p.running = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.loop(time.Duration(intervalMs)*time.Millisecond, p.stop, p.done, onSample, onFail)
	return nil
}

func (p *Poller) loop(interval time.Duration, stop, done chan struct{}, onSample func(imu.RawSample), onFail func(error)) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		raw, err := p.reader.ReadRaw()
		if err != nil {
			failures++
			monitoring.Warnf("imu poller: read failed (%d in a row): %v", failures, err)
			if failures >= MaxConsecutiveReadErrors {
				onFail(fmt.Errorf("%w: %d consecutive read errors, last: %v", imu.ErrSourceUnavailable, failures, err))
				return
			}
			continue
		}
		failures = 0

		p.seq++
		raw.TimeMs = p.now().UnixMilli()
		raw.Seq = p.seq
		onSample(raw.Sample())
	}
}

// Stop halts polling and waits for an in-flight read to finish.
func (p *Poller) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stop, done := p.stop, p.done
	p.mu.Unlock()

	close(stop)
	<-done
	return nil
}
