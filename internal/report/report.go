// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package report summarizes recorded sessions.
package report

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/shoulder_monitor/internal/fusion"
	"github.com/relabs-tech/shoulder_monitor/internal/imu"
	"github.com/relabs-tech/shoulder_monitor/internal/orientation"
)

// AngleStats describes one angle series in degrees.
type AngleStats struct {
	Min           float64 `json:"min"`
	Max           float64 `json:"max"`
	Mean          float64 `json:"mean"`
	StdDev        float64 `json:"stddev"`
	RangeOfMotion float64 `json:"range_of_motion"`
}

// Summary is the report of one session.
type Summary struct {
	ID           string     `json:"id"`
	StartedAt    time.Time  `json:"started_at"`
	StoppedAt    time.Time  `json:"stopped_at,omitempty"`
	Samples      int        `json:"samples"`
	DurationSec  float64    `json:"duration_sec"`
	SampleRateHz float64    `json:"sample_rate_hz"`
	Algorithm1   AngleStats `json:"algorithm1"`
	Algorithm2   AngleStats `json:"algorithm2"`

	// Planes is nil when the session logged no plane angles.
	Planes *PlaneStats `json:"planes,omitempty"`
}

// PlaneStats describes the frontal, sagittal and cumulative horizontal
// angles of a session.
type PlaneStats struct {
	Frontal    AngleStats `json:"frontal"`
	Sagittal   AngleStats `json:"sagittal"`
	Horizontal AngleStats `json:"horizontal"`
}

// Summarize computes the report of rec. An empty recording yields zero
// statistics.
func Summarize(rec fusion.SessionLog) Summary {
	s := Summary{
		ID:        rec.ID,
		StartedAt: rec.StartedAt,
		StoppedAt: rec.StoppedAt,
		Samples:   len(rec.Angles),
	}
	if len(rec.Angles) == 0 {
		return s
	}

	first, last := rec.Angles[0].Timestamp, rec.Angles[len(rec.Angles)-1].Timestamp
	s.DurationSec = float64(last-first) / 1000
	s.SampleRateHz = SampleRate(rec.Angles)

	a1 := make([]float64, len(rec.Angles))
	a2 := make([]float64, len(rec.Angles))
	for i, a := range rec.Angles {
		a1[i] = a.Angle1
		a2[i] = a.Angle2
	}
	s.Algorithm1 = Describe(a1)
	s.Algorithm2 = Describe(a2)
	s.Planes = DescribePlanes(rec.Planes)
	return s
}

// DescribePlanes returns the statistics of each plane, or nil for an empty
// log.
func DescribePlanes(planes []orientation.PlaneAngles) *PlaneStats {
	if len(planes) == 0 {
		return nil
	}
	fr := make([]float64, len(planes))
	sa := make([]float64, len(planes))
	ho := make([]float64, len(planes))
	for i, p := range planes {
		fr[i], sa[i], ho[i] = p.Frontal, p.Sagittal, p.Horizontal
	}
	return &PlaneStats{
		Frontal:    Describe(fr),
		Sagittal:   Describe(sa),
		Horizontal: Describe(ho),
	}
}

// SampleRate returns samples per second over the span of the timestamps,
// or 0 with fewer than two samples or a zero span.
func SampleRate(samples []imu.AngleSample) float64 {
	if len(samples) < 2 {
		return 0
	}
	span := float64(samples[len(samples)-1].Timestamp-samples[0].Timestamp) / 1000
	if span <= 0 {
		return 0
	}
	return float64(len(samples)) / span
}

// Describe returns the statistics of xs. The standard deviation of a single
// value is 0.
func Describe(xs []float64) AngleStats {
	if len(xs) == 0 {
		return AngleStats{}
	}
	st := AngleStats{
		Min:  floats.Min(xs),
		Max:  floats.Max(xs),
		Mean: stat.Mean(xs, nil),
	}
	if len(xs) > 1 {
		st.StdDev = stat.StdDev(xs, nil)
	}
	st.RangeOfMotion = st.Max - st.Min
	return st
}

// AxisStats is the per-axis mean and standard deviation of a set of
// readings.
type AxisStats struct {
	Mean   imu.Vec3 `json:"mean"`
	StdDev imu.Vec3 `json:"stddev"`
}

// DescribeVectors computes per-axis statistics, used for still captures.
func DescribeVectors(vs []imu.Vec3) AxisStats {
	if len(vs) == 0 {
		return AxisStats{}
	}
	x := make([]float64, len(vs))
	y := make([]float64, len(vs))
	z := make([]float64, len(vs))
	for i, v := range vs {
		x[i], y[i], z[i] = v.X, v.Y, v.Z
	}
	ax, ay, az := Describe(x), Describe(y), Describe(z)
	return AxisStats{
		Mean:   imu.Vec3{X: ax.Mean, Y: ay.Mean, Z: az.Mean},
		StdDev: imu.Vec3{X: ax.StdDev, Y: ay.StdDev, Z: az.StdDev},
	}
}
