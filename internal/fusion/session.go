// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fusion

import (
	"time"

	"github.com/relabs-tech/shoulder_monitor/internal/conditioner"
	"github.com/relabs-tech/shoulder_monitor/internal/filter"
	"github.com/relabs-tech/shoulder_monitor/internal/imu"
	"github.com/relabs-tech/shoulder_monitor/internal/orientation"
)

// Stats counts what a session has seen.
type Stats struct {
	Received    int `json:"received"`
	Emitted     int `json:"emitted"`
	Incomplete  int `json:"incomplete"`
	DTFallbacks int `json:"dt_fallbacks"`
}

// SessionLog is the complete log of one session, kept for export. Planes
// runs parallel to Raw.
type SessionLog struct {
	ID        string                    `json:"id"`
	StartedAt time.Time                 `json:"started_at"`
	StoppedAt time.Time                 `json:"stopped_at,omitempty"`
	Raw       []imu.RawSample           `json:"raw"`
	Angles    []imu.AngleSample         `json:"angles"`
	Planes    []orientation.PlaneAngles `json:"planes"`
}

// Session owns the state of one recording: both filters, the delta tracker,
// the partial-reading accumulator and the history. It is not safe for
// concurrent use; Pipeline serializes access.
type Session struct {
	cfg   Config
	ewma  *filter.EWMA
	comp  *filter.Complementary
	delta conditioner.DeltaTracker
	acc   imu.RawSample

	// plane tracks all three anatomical planes next to the filtered angle.
	plane orientation.PlaneAngles

	history *History
	raw     []imu.RawSample
	angles  []imu.AngleSample
	planes  []orientation.PlaneAngles
	stats   Stats
}

// NewSession builds fresh filter state for cfg.
func NewSession(cfg Config) *Session {
	return &Session{
		cfg:     cfg,
		ewma:    filter.NewEWMA(cfg.EWMAAlpha),
		comp:    filter.NewComplementary(cfg.CompAlpha),
		history: NewHistory(cfg.HistorySize),
	}
}

// Ingest merges raw into the accumulated reading and, once the reading is
// complete, runs one fusion step. It reports false when no angle sample was
// produced.
func (s *Session) Ingest(raw imu.RawSample) (imu.AngleSample, bool) {
	s.stats.Received++
	s.acc = s.acc.Merge(raw)
	if !s.acc.Complete() {
		s.stats.Incomplete++
		return imu.AngleSample{}, false
	}

	reading := s.acc
	scaled := s.cfg.Scale.Apply(reading)

	dt, fellBack := s.delta.Next(scaled.Timestamp)
	if fellBack {
		s.stats.DTFallbacks++
	}
	ts, _ := s.delta.Last()

	accelAngle, rate := s.cfg.Axes.Select(scaled)
	out := imu.AngleSample{
		Timestamp: ts,
		Angle1:    s.ewma.Update(accelAngle),
		Angle2:    s.comp.Update(accelAngle, rate, dt),
	}

	s.plane = orientation.ComputePlaneAngles(scaled.Accel, scaled.Gyro, s.plane.Horizontal, dt)

	s.history.Push(out)
	if s.cfg.KeepRecording {
		s.raw = append(s.raw, reading)
		s.angles = append(s.angles, out)
		s.planes = append(s.planes, s.plane)
	}
	s.stats.Emitted++
	return out, true
}

// History returns the bounded history, oldest first.
func (s *Session) History() []imu.AngleSample { return s.history.Snapshot() }

// Recent returns the newest n history entries, oldest first.
func (s *Session) Recent(n int) []imu.AngleSample { return s.history.Last(n) }

// Stats returns the session counters.
func (s *Session) Stats() Stats { return s.stats }

// Raw returns a copy of every complete reading fused this session.
func (s *Session) Raw() []imu.RawSample {
	return append([]imu.RawSample(nil), s.raw...)
}

// Planes returns the latest frontal, sagittal and cumulative horizontal
// angles.
func (s *Session) Planes() orientation.PlaneAngles { return s.plane }

// PlaneLog returns a copy of the plane angles of every fused reading.
func (s *Session) PlaneLog() []orientation.PlaneAngles {
	return append([]orientation.PlaneAngles(nil), s.planes...)
}

// Angles returns a copy of every angle sample emitted this session.
func (s *Session) Angles() []imu.AngleSample {
	return append([]imu.AngleSample(nil), s.angles...)
}
