// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

// Source is anything that can deliver raw samples over time: the on-board
// IMU poller, the BLE gateway bridge, the serial bridge, or a mock.
//
// Start registers the callbacks and begins delivery. onSample is called once
// per reading, never concurrently with itself. onFail is called at most once,
// when the source is lost for good; nothing is delivered after it. Stop halts
// delivery within one cycle and is safe to call more than once.
type Source interface {
	Start(intervalMs int, onSample func(RawSample), onFail func(error)) error
	Stop() error
}
