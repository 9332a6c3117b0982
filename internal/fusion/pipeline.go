// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fusion

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/shoulder_monitor/internal/imu"
	"github.com/relabs-tech/shoulder_monitor/internal/monitoring"
	"github.com/relabs-tech/shoulder_monitor/internal/orientation"
)

// State is the pipeline lifecycle state.
type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	if s == Recording {
		return "recording"
	}
	return "idle"
}

// Pipeline drives one Session at a time from a Source.
//
// Every callback carries the generation it was registered with; callbacks
// from a stopped or replaced session are ignored.
type Pipeline struct {
	mu sync.RWMutex

	cfg     Config
	state   State
	gen     uint64
	src     imu.Source
	session *Session
	err     error
	done    chan struct{}

	id        string
	startedAt time.Time
	stoppedAt time.Time

	subs    map[int]chan imu.AngleSample
	nextSub int

	now func() time.Time
}

// NewPipeline returns an idle pipeline.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("fusion config: %w", err)
	}
	return &Pipeline{
		cfg:  cfg,
		subs: make(map[int]chan imu.AngleSample),
		now:  time.Now,
	}, nil
}

// SetConfig replaces the tuning used by the next Start.
func (p *Pipeline) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("fusion config: %w", err)
	}
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
	return nil
}

// Config returns the current tuning.
func (p *Pipeline) Config() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// Start begins a new session fed by src. A running session is stopped
// first. History and filter state start empty. If src cannot start the
// pipeline returns to Idle and the error wraps imu.ErrSourceUnavailable.
func (p *Pipeline) Start(src imu.Source, intervalMs int) error {
	if src == nil {
		return fmt.Errorf("start: %w: no source", imu.ErrSourceUnavailable)
	}

	p.mu.Lock()
	var prev imu.Source
	if p.state == Recording {
		prev = p.stopLocked()
	}
	p.gen++
	gen := p.gen
	p.session = NewSession(p.cfg)
	p.done = make(chan struct{})
	p.src = src
	p.state = Recording
	p.err = nil
	p.id = uuid.NewString()
	p.startedAt = p.now()
	p.stoppedAt = time.Time{}
	id := p.id
	p.mu.Unlock()

	if prev != nil {
		if err := prev.Stop(); err != nil {
			monitoring.Logf("fusion: stopping previous source: %v", err)
		}
	}

	err := src.Start(intervalMs,
		func(s imu.RawSample) { p.onSample(gen, s) },
		func(err error) { p.onFail(gen, err) },
	)
	if err != nil {
		if !errors.Is(err, imu.ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %w", imu.ErrSourceUnavailable, err)
		}
		p.mu.Lock()
		if p.gen == gen {
			p.stopLocked()
			p.err = err
		}
		p.mu.Unlock()
		return fmt.Errorf("start session %s: %w", id, err)
	}

	monitoring.Logf("fusion: session %s started (interval %d ms)", id, intervalMs)
	return nil
}

// Stop ends the running session. History stays readable until the next
// Start. Stopping an idle pipeline is a no-op.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if p.state != Recording {
		p.mu.Unlock()
		return nil
	}
	src := p.stopLocked()
	id := p.id
	p.mu.Unlock()

	monitoring.Logf("fusion: session %s stopped", id)
	if err := src.Stop(); err != nil {
		return fmt.Errorf("stop source: %w", err)
	}
	return nil
}

// stopLocked moves to Idle and invalidates outstanding callbacks. The caller
// stops the returned source after releasing the lock.
func (p *Pipeline) stopLocked() imu.Source {
	src := p.src
	p.state = Idle
	p.gen++
	p.src = nil
	p.stoppedAt = p.now()
	close(p.done)
	return src
}

func (p *Pipeline) onSample(gen uint64, raw imu.RawSample) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen || p.state != Recording {
		return
	}
	out, ok := p.session.Ingest(raw)
	if !ok {
		return
	}
	for _, ch := range p.subs {
		select {
		case ch <- out:
		default:
		}
	}
}

func (p *Pipeline) onFail(gen uint64, err error) {
	p.mu.Lock()
	if gen != p.gen || p.state != Recording {
		p.mu.Unlock()
		return
	}
	if !errors.Is(err, imu.ErrSourceUnavailable) {
		err = fmt.Errorf("%w: %w", imu.ErrSourceUnavailable, err)
	}
	src := p.stopLocked()
	p.err = err
	id := p.id
	p.mu.Unlock()

	monitoring.Logf("fusion: session %s ended by source failure: %v", id, err)
	// The failing source may be calling from its own delivery goroutine.
	go func() {
		if err := src.Stop(); err != nil {
			monitoring.Logf("fusion: releasing failed source: %v", err)
		}
	}()
}

// Subscribe returns a channel receiving every angle sample emitted from now
// on. Sends never block; a subscriber that falls behind by more than buf
// samples misses them.
func (p *Pipeline) Subscribe(buf int) (int, <-chan imu.AngleSample) {
	if buf <= 0 {
		buf = 1
	}
	ch := make(chan imu.AngleSample, buf)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextSub++
	p.subs[p.nextSub] = ch
	return p.nextSub, ch
}

// Unsubscribe closes and removes a subscription.
func (p *Pipeline) Unsubscribe(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch, ok := p.subs[id]; ok {
		delete(p.subs, id)
		close(ch)
	}
}

// Done returns a channel closed when the current session ends, by Stop,
// a restart or a source failure. It is nil before the first Start.
func (p *Pipeline) Done() <-chan struct{} {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.done
}

// State returns the lifecycle state.
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Err returns the error that ended the last session, if any.
func (p *Pipeline) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

// SessionID returns the id of the current or last session.
func (p *Pipeline) SessionID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.id
}

// StartedAt returns when the current or last session started.
func (p *Pipeline) StartedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.startedAt
}

// StoppedAt returns when the last session stopped, or the zero time while
// recording.
func (p *Pipeline) StoppedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stoppedAt
}

// History returns the bounded history of the current or last session.
func (p *Pipeline) History() []imu.AngleSample {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.session == nil {
		return []imu.AngleSample{}
	}
	return p.session.History()
}

// Recent returns the newest n history entries.
func (p *Pipeline) Recent(n int) []imu.AngleSample {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.session == nil {
		return []imu.AngleSample{}
	}
	return p.session.Recent(n)
}

// Stats returns the counters of the current or last session.
func (p *Pipeline) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.session == nil {
		return Stats{}
	}
	return p.session.Stats()
}

// Planes returns the latest plane angles of the current or last session.
func (p *Pipeline) Planes() orientation.PlaneAngles {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.session == nil {
		return orientation.PlaneAngles{}
	}
	return p.session.Planes()
}

// Recording returns the full log of the current or last session.
func (p *Pipeline) Recording() SessionLog {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec := SessionLog{ID: p.id, StartedAt: p.startedAt, StoppedAt: p.stoppedAt}
	if p.session != nil {
		rec.Raw = p.session.Raw()
		rec.Angles = p.session.Angles()
		rec.Planes = p.session.PlaneLog()
	}
	return rec
}
