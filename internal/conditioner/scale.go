// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package conditioner bridges raw sample sources and the angle calculator:
// unit scaling, delta time, and axis selection.
package conditioner

import (
	"fmt"
	"math"

	"github.com/relabs-tech/shoulder_monitor/internal/imu"
)

// MPU9250 sensitivities per full-scale range selector (0..3).
var (
	accelLSBPerG  = [4]float64{16384, 8192, 4096, 2048}
	gyroLSBPerDPS = [4]float64{131, 65.5, 32.8, 16.4}
	accelRangeG   = [4]int{2, 4, 8, 16}
	gyroRangeDPS  = [4]int{250, 500, 1000, 2000}
)

// AccelLSBPerG returns counts per g for accelerometer range 0=±2g .. 3=±16g.
func AccelLSBPerG(rangeSel byte) (float64, error) {
	if int(rangeSel) >= len(accelLSBPerG) {
		return 0, fmt.Errorf("accel range must be 0-3, got %d", rangeSel)
	}
	return accelLSBPerG[rangeSel], nil
}

// GyroLSBPerDPS returns counts per °/s for gyro range 0=±250 .. 3=±2000.
func GyroLSBPerDPS(rangeSel byte) (float64, error) {
	if int(rangeSel) >= len(gyroLSBPerDPS) {
		return 0, fmt.Errorf("gyro range must be 0-3, got %d", rangeSel)
	}
	return gyroLSBPerDPS[rangeSel], nil
}

// AccelRangeG returns the full-scale accelerometer range in g.
func AccelRangeG(rangeSel byte) int {
	if int(rangeSel) >= len(accelRangeG) {
		return 0
	}
	return accelRangeG[rangeSel]
}

// GyroRangeDPS returns the full-scale gyro range in °/s.
func GyroRangeDPS(rangeSel byte) int {
	if int(rangeSel) >= len(gyroRangeDPS) {
		return 0
	}
	return gyroRangeDPS[rangeSel]
}

// Scale converts source units into g and °/s.
//
// A zero LSB constant means the axis already arrives in physical units.
// GyroInRadians marks sources reporting rad/s (phone gyroscopes); the
// complementary filter works in °/s.
type Scale struct {
	AccelLSBPerG  float64
	GyroLSBPerDPS float64
	GyroInRadians bool
}

// Identity passes samples through unchanged.
var Identity = Scale{}

// ScaleForRanges returns the MPU9250 scale for the given range selectors.
func ScaleForRanges(accelRange, gyroRange byte) (Scale, error) {
	a, err := AccelLSBPerG(accelRange)
	if err != nil {
		return Scale{}, err
	}
	g, err := GyroLSBPerDPS(gyroRange)
	if err != nil {
		return Scale{}, err
	}
	return Scale{AccelLSBPerG: a, GyroLSBPerDPS: g}, nil
}

// Apply returns s with the accelerometer in g and the gyroscope in °/s.
func (sc Scale) Apply(s imu.RawSample) imu.RawSample {
	out := s
	if sc.AccelLSBPerG != 0 {
		out.Accel = imu.Vec3{
			X: s.Accel.X / sc.AccelLSBPerG,
			Y: s.Accel.Y / sc.AccelLSBPerG,
			Z: s.Accel.Z / sc.AccelLSBPerG,
		}
	}
	if sc.GyroLSBPerDPS != 0 {
		out.Gyro = imu.Vec3{
			X: s.Gyro.X / sc.GyroLSBPerDPS,
			Y: s.Gyro.Y / sc.GyroLSBPerDPS,
			Z: s.Gyro.Z / sc.GyroLSBPerDPS,
		}
	}
	if sc.GyroInRadians {
		out.Gyro = imu.Vec3{
			X: out.Gyro.X * 180 / math.Pi,
			Y: out.Gyro.Y * 180 / math.Pi,
			Z: out.Gyro.Z * 180 / math.Pi,
		}
	}
	return out
}
