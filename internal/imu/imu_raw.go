// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

// IMURaw is a single raw accelerometer + gyroscope reading in sensor counts,
// as published on the raw IMU MQTT topic.
type IMURaw struct {
	Source string `json:"source"` // producer name, e.g. "arm"
	TimeMs int64  `json:"time_ms"`
	Seq    uint64 `json:"seq,omitempty"`

	Ax int16 `json:"ax"` // accel
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`
}

// Sample converts the counts into a complete RawSample. Values stay in raw
// counts; scaling is the conditioner's job.
func (r IMURaw) Sample() RawSample {
	s := NewRawSample(r.TimeMs,
		Vec3{X: float64(r.Ax), Y: float64(r.Ay), Z: float64(r.Az)},
		Vec3{X: float64(r.Gx), Y: float64(r.Gy), Z: float64(r.Gz)},
	)
	s.Seq = r.Seq
	return s
}
