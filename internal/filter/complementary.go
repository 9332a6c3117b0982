// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package filter

// DefaultComplementaryAlpha weights the gyro-integrated prediction for
// algorithm 2.
const DefaultComplementaryAlpha = 0.98

// Complementary blends a gyro-integrated angle with an accelerometer angle.
// The gyro term follows fast motion; the accelerometer term pulls out the
// integration drift.
type Complementary struct {
	alpha float64
	angle float64
}

// NewComplementary returns a filter whose angle estimate starts at 0.
func NewComplementary(alpha float64) *Complementary {
	return &Complementary{alpha: alpha}
}

// Update integrates gyroRateDegPerSec over dtSeconds, blends the result with
// accelAngleDeg and returns the new angle in degrees. dtSeconds must be
// positive; the caller substitutes a fallback when it is not.
func (c *Complementary) Update(accelAngleDeg, gyroRateDegPerSec, dtSeconds float64) float64 {
	predicted := c.angle + gyroRateDegPerSec*dtSeconds
	c.angle = c.alpha*predicted + (1-c.alpha)*accelAngleDeg
	return c.angle
}

// Angle returns the current estimate.
func (c *Complementary) Angle() float64 {
	return c.angle
}

// Alpha returns the gyro weight.
func (c *Complementary) Alpha() float64 {
	return c.alpha
}

// Reset puts the estimate back to 0.
func (c *Complementary) Reset() {
	c.angle = 0
}
