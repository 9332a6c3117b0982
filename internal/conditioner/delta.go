// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package conditioner

// FallbackDT is the delta, in seconds, used for the first sample of a session
// and whenever consecutive timestamps do not move forward.
const FallbackDT = 0.01

// DeltaTracker turns consecutive millisecond timestamps into a strictly
// positive delta in seconds.
type DeltaTracker struct {
	last int64
	set  bool
}

// Next returns the delta since the previous timestamp and whether the
// fallback was substituted. A timestamp at or before the previous one does
// not move the tracker back, so the next delta is measured from the latest
// time seen.
func (d *DeltaTracker) Next(ts int64) (float64, bool) {
	if !d.set {
		d.last = ts
		d.set = true
		return FallbackDT, true
	}
	if ts <= d.last {
		return FallbackDT, true
	}
	dt := float64(ts-d.last) / 1000
	d.last = ts
	return dt, false
}

// Last returns the latest timestamp seen and whether there is one.
func (d *DeltaTracker) Last() (int64, bool) {
	return d.last, d.set
}

// Reset clears the last-seen timestamp.
func (d *DeltaTracker) Reset() {
	d.last = 0
	d.set = false
}
