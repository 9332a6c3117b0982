// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fusion

import "github.com/relabs-tech/shoulder_monitor/internal/imu"

// History is a fixed-capacity FIFO of angle samples. Once full, each Push
// evicts the oldest entry.
type History struct {
	buf   []imu.AngleSample
	start int
	n     int
}

// NewHistory returns an empty history holding at most size samples.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{buf: make([]imu.AngleSample, size)}
}

// Push appends s, evicting the oldest sample when full.
func (h *History) Push(s imu.AngleSample) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = s
		h.n++
		return
	}
	h.buf[h.start] = s
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of samples held.
func (h *History) Len() int { return h.n }

// Cap returns the bound.
func (h *History) Cap() int { return len(h.buf) }

// Snapshot returns a copy of the samples, oldest first.
func (h *History) Snapshot() []imu.AngleSample {
	return h.Last(h.n)
}

// Last returns a copy of the newest n samples, oldest first.
func (h *History) Last(n int) []imu.AngleSample {
	if n > h.n {
		n = h.n
	}
	if n <= 0 {
		return []imu.AngleSample{}
	}
	out := make([]imu.AngleSample, n)
	first := h.start + h.n - n
	for i := range out {
		out[i] = h.buf[(first+i)%len(h.buf)]
	}
	return out
}

// Reset drops every sample.
func (h *History) Reset() {
	h.start = 0
	h.n = 0
}
