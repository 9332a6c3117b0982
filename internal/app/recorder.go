// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/relabs-tech/shoulder_monitor/internal/config"
	"github.com/relabs-tech/shoulder_monitor/internal/export"
	"github.com/relabs-tech/shoulder_monitor/internal/fusion"
	"github.com/relabs-tech/shoulder_monitor/internal/imu"
)

// angleBuffer is how many samples the MQTT forwarder may lag behind.
const angleBuffer = 256

// Status is published on TOPIC_STATUS whenever a session starts or ends.
type Status struct {
	State      string       `json:"state"`
	SessionID  string       `json:"session_id,omitempty"`
	Message    string       `json:"message,omitempty"`
	Error      string       `json:"error,omitempty"`
	Time       time.Time    `json:"time"`
	Stats      fusion.Stats `json:"stats"`
	AnglesFile string       `json:"angles_file,omitempty"`
	RawFile    string       `json:"raw_file,omitempty"`
}

// Recorder runs recording sessions: it feeds the pipeline from the
// configured source, forwards every angle sample to MQTT and exports the
// session as CSV when it ends.
type Recorder struct {
	cfg       *config.Config
	pipeline  *fusion.Pipeline
	pub       Publisher
	newSource func(*config.Config) (imu.Source, error)
	now       func() time.Time

	// mu serializes Start and Stop.
	mu       sync.Mutex
	finished chan struct{}

	statusMu sync.RWMutex
	status   Status
}

// NewRecorder returns an idle recorder. A nil pub disables publishing.
func NewRecorder(cfg *config.Config, pub Publisher) (*Recorder, error) {
	p, err := fusion.NewPipeline(cfg.FusionConfig())
	if err != nil {
		return nil, err
	}
	if pub == nil {
		pub = nopPublisher{}
	}
	r := &Recorder{
		cfg:       cfg,
		pipeline:  p,
		pub:       pub,
		newSource: NewSource,
		now:       time.Now,
	}
	r.status = Status{State: fusion.Idle.String(), Time: r.now()}
	return r, nil
}

// Pipeline exposes the pipeline for read access and live subscriptions.
func (r *Recorder) Pipeline() *fusion.Pipeline {
	return r.pipeline
}

// Start ends any running session, waits for its export and begins a new
// one.
func (r *Recorder) Start() (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endLocked()

	src, err := r.newSource(r.cfg)
	if err != nil {
		return r.failedStart(err), err
	}

	sub, ch := r.pipeline.Subscribe(angleBuffer)
	if err := r.pipeline.Start(src, r.cfg.SampleInterval); err != nil {
		r.pipeline.Unsubscribe(sub)
		return r.failedStart(err), err
	}

	st := Status{
		State:     fusion.Recording.String(),
		SessionID: r.pipeline.SessionID(),
		Message:   fmt.Sprintf("recording from %s source", r.cfg.Source),
		Time:      r.now(),
	}
	r.setStatus(st)

	finished := make(chan struct{})
	forwarded := make(chan struct{})
	go r.forward(ch, forwarded)
	go r.watch(r.pipeline.Done(), sub, forwarded, finished)
	r.finished = finished

	log.Printf("recorder: session %s started", st.SessionID)
	return st, nil
}

// Stop ends the running session and returns the final status, including
// the export paths.
func (r *Recorder) Stop() (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.endLocked()
	return r.Status(), err
}

// endLocked stops the pipeline and waits until the session's watcher has
// exported and published.
func (r *Recorder) endLocked() error {
	if r.finished == nil {
		return nil
	}
	err := r.pipeline.Stop()
	if err != nil {
		log.Printf("recorder: stop: %v", err)
	}
	<-r.finished
	r.finished = nil
	return err
}

func (r *Recorder) failedStart(err error) Status {
	st := Status{
		State:   fusion.Idle.String(),
		Message: "session could not start",
		Error:   err.Error(),
		Time:    r.now(),
	}
	r.setStatus(st)
	log.Printf("recorder: start: %v", err)
	return st
}

// forward publishes every emitted sample until the subscription closes.
func (r *Recorder) forward(ch <-chan imu.AngleSample, forwarded chan<- struct{}) {
	defer close(forwarded)
	failing := false
	for s := range ch {
		err := publishJSON(r.pub, r.cfg.TopicAngle, s)
		switch {
		case err != nil && !failing:
			log.Printf("recorder: %v", err)
			failing = true
		case err == nil && failing:
			log.Printf("recorder: publishing to %s again", r.cfg.TopicAngle)
			failing = false
		}
	}
}

// watch waits for the session to end, however it ends, then exports it and
// announces the final status.
func (r *Recorder) watch(done <-chan struct{}, sub int, forwarded <-chan struct{}, finished chan<- struct{}) {
	defer close(finished)
	<-done
	r.pipeline.Unsubscribe(sub)
	<-forwarded

	rec := r.pipeline.Recording()
	st := Status{
		State:     fusion.Idle.String(),
		SessionID: rec.ID,
		Message:   "session stopped",
		Time:      r.now(),
		Stats:     r.pipeline.Stats(),
	}
	if err := r.pipeline.Err(); err != nil {
		st.Message = "source failed"
		st.Error = err.Error()
	}

	if r.cfg.ExportDir != "" && len(rec.Angles) > 0 {
		anglesPath, rawPath, err := export.WriteRecording(r.cfg.ExportDir, rec)
		if err != nil {
			log.Printf("recorder: export session %s: %v", rec.ID, err)
			if st.Error == "" {
				st.Error = err.Error()
			}
		} else {
			st.AnglesFile, st.RawFile = anglesPath, rawPath
			log.Printf("recorder: session %s exported to %s and %s", rec.ID, anglesPath, rawPath)
		}
	}

	r.setStatus(st)
	log.Printf("recorder: session %s ended: %s (%d samples)", rec.ID, st.Message, st.Stats.Emitted)
}

func (r *Recorder) setStatus(st Status) {
	r.statusMu.Lock()
	r.status = st
	r.statusMu.Unlock()

	if r.cfg.TopicStatus == "" {
		return
	}
	if err := publishJSON(r.pub, r.cfg.TopicStatus, st); err != nil {
		log.Printf("recorder: %v", err)
	}
}

// Status returns the last announced status with live state and counters.
func (r *Recorder) Status() Status {
	r.statusMu.RLock()
	st := r.status
	r.statusMu.RUnlock()
	st.State = r.pipeline.State().String()
	st.Stats = r.pipeline.Stats()
	return st
}
