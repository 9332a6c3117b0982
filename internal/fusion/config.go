// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package fusion turns a stream of raw IMU samples into paired angle samples:
// one EWMA-smoothed accelerometer angle and one complementary-filter angle.
package fusion

import (
	"fmt"
	"math"

	"github.com/relabs-tech/shoulder_monitor/internal/conditioner"
	"github.com/relabs-tech/shoulder_monitor/internal/filter"
)

// DefaultHistorySize is the number of angle samples kept for live consumers.
const DefaultHistorySize = 500

// Config holds the per-session tuning of the pipeline.
type Config struct {
	EWMAAlpha   float64
	CompAlpha   float64
	HistorySize int

	Scale conditioner.Scale
	Axes  conditioner.AxisMap

	// KeepRecording keeps every raw and angle sample of the session for
	// export, in addition to the bounded history.
	KeepRecording bool
}

// DefaultConfig returns the stock tuning: alpha 0.1 and 0.98, 500 samples of
// history, identity scaling, Y/Z tilt with gyro X.
func DefaultConfig() Config {
	return Config{
		EWMAAlpha:     filter.DefaultEWMAAlpha,
		CompAlpha:     filter.DefaultComplementaryAlpha,
		HistorySize:   DefaultHistorySize,
		Scale:         conditioner.Identity,
		Axes:          conditioner.DefaultAxisMap,
		KeepRecording: true,
	}
}

// Validate checks the tuning values. Any finite EWMA alpha is accepted;
// values outside (0,1] only change the blend.
func (c Config) Validate() error {
	if math.IsNaN(c.EWMAAlpha) || math.IsInf(c.EWMAAlpha, 0) {
		return fmt.Errorf("EWMA alpha must be finite, got %v", c.EWMAAlpha)
	}
	if c.CompAlpha < 0 || c.CompAlpha > 1 {
		return fmt.Errorf("complementary alpha must be in [0,1], got %v", c.CompAlpha)
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("history size must be positive, got %d", c.HistorySize)
	}
	return nil
}
