// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "errors"

var (
	// ErrMalformedSample marks a payload that is too short or cannot be decoded.
	// Such samples are dropped and logged; they never stop a session.
	ErrMalformedSample = errors.New("malformed sample")

	// ErrSourceUnavailable marks a sample source that failed to start or was
	// lost mid-session. It ends the session.
	ErrSourceUnavailable = errors.New("sample source unavailable")
)

// Vec3 is a three-axis reading.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Field is a bitmask of the values a RawSample carries.
type Field uint8

const (
	FieldTimestamp Field = 1 << iota
	FieldAccelX
	FieldAccelY
	FieldAccelZ
	FieldGyroX
	FieldGyroY
	FieldGyroZ
)

const (
	FieldAccel    = FieldAccelX | FieldAccelY | FieldAccelZ
	FieldGyro     = FieldGyroX | FieldGyroY | FieldGyroZ
	FieldComplete = FieldTimestamp | FieldAccel | FieldGyro
)

// Has reports whether all bits in want are set.
func (f Field) Has(want Field) bool {
	return f&want == want
}

// RawSample is one reading delivered by a sample source. Sources that report
// axes independently deliver partial samples; Present says which values are
// meaningful.
type RawSample struct {
	Timestamp int64  `json:"timestamp"` // ms since epoch
	Accel     Vec3   `json:"accel"`
	Gyro      Vec3   `json:"gyro"`
	Seq       uint64 `json:"seq,omitempty"`
	Present   Field  `json:"present"`
}

// NewRawSample builds a complete sample.
func NewRawSample(ts int64, accel, gyro Vec3) RawSample {
	return RawSample{Timestamp: ts, Accel: accel, Gyro: gyro, Present: FieldComplete}
}

// AccelOnly builds a partial sample carrying the accelerometer triple.
func AccelOnly(ts int64, accel Vec3) RawSample {
	return RawSample{Timestamp: ts, Accel: accel, Present: FieldTimestamp | FieldAccel}
}

// GyroOnly builds a partial sample carrying the gyroscope triple.
func GyroOnly(ts int64, gyro Vec3) RawSample {
	return RawSample{Timestamp: ts, Gyro: gyro, Present: FieldTimestamp | FieldGyro}
}

// Complete reports whether the sample has a timestamp and all six axes.
func (s RawSample) Complete() bool {
	return s.Present.Has(FieldComplete)
}

// Merge returns s updated with every value present in next. Values absent
// from next are kept.
func (s RawSample) Merge(next RawSample) RawSample {
	out := s
	if next.Present.Has(FieldTimestamp) {
		out.Timestamp = next.Timestamp
	}
	if next.Present.Has(FieldAccelX) {
		out.Accel.X = next.Accel.X
	}
	if next.Present.Has(FieldAccelY) {
		out.Accel.Y = next.Accel.Y
	}
	if next.Present.Has(FieldAccelZ) {
		out.Accel.Z = next.Accel.Z
	}
	if next.Present.Has(FieldGyroX) {
		out.Gyro.X = next.Gyro.X
	}
	if next.Present.Has(FieldGyroY) {
		out.Gyro.Y = next.Gyro.Y
	}
	if next.Present.Has(FieldGyroZ) {
		out.Gyro.Z = next.Gyro.Z
	}
	if next.Seq != 0 {
		out.Seq = next.Seq
	}
	out.Present |= next.Present
	return out
}

// AngleSample is the pipeline output for one complete reading.
type AngleSample struct {
	Timestamp int64   `json:"timestamp"`
	Angle1    float64 `json:"algorithm1Angle"` // EWMA
	Angle2    float64 `json:"algorithm2Angle"` // complementary
}
