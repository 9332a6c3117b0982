// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package filter holds the two recursive angle filters run side by side on
// every fused sample. Neither filter is safe for concurrent use; each
// instance belongs to exactly one recording session.
package filter

// DefaultEWMAAlpha is the smoothing factor used for algorithm 1.
const DefaultEWMAAlpha = 0.1

// EWMA is an exponentially weighted moving average over a single value.
type EWMA struct {
	alpha float64
	last  float64
	set   bool
}

// NewEWMA returns a filter with smoothing factor alpha. Alpha is not
// validated; values outside (0,1] just change the blend.
func NewEWMA(alpha float64) *EWMA {
	return &EWMA{alpha: alpha}
}

// Update feeds one value and returns the filtered output. The first value
// after construction or Reset passes through unchanged.
func (e *EWMA) Update(v float64) float64 {
	if !e.set {
		e.last = v
		e.set = true
		return e.last
	}
	e.last = e.alpha*v + (1-e.alpha)*e.last
	return e.last
}

// Value returns the last output and whether there is one.
func (e *EWMA) Value() (float64, bool) {
	return e.last, e.set
}

// Alpha returns the smoothing factor.
func (e *EWMA) Alpha() float64 {
	return e.alpha
}

// Reset forgets the last output.
func (e *EWMA) Reset() {
	e.last = 0
	e.set = false
}
