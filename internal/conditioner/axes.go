// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package conditioner

import (
	"fmt"
	"strings"

	"github.com/relabs-tech/shoulder_monitor/internal/imu"
	"github.com/relabs-tech/shoulder_monitor/internal/orientation"
)

// Axis names a gyroscope axis.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return fmt.Sprintf("axis(%d)", int(a))
}

// ParseAxis accepts "x", "y" or "z".
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x":
		return AxisX, nil
	case "y":
		return AxisY, nil
	case "z":
		return AxisZ, nil
	}
	return AxisX, fmt.Errorf("unknown axis %q (want x, y or z)", s)
}

// Component returns the axis component of v.
func (a Axis) Component(v imu.Vec3) float64 {
	switch a {
	case AxisY:
		return v.Y
	case AxisZ:
		return v.Z
	default:
		return v.X
	}
}

// AxisMap picks the accelerometer plane and the gyro axis that feed the
// filters. The right mapping depends on how the sensor sits on the arm and
// has to be calibrated per device.
type AxisMap struct {
	Plane    orientation.Plane
	GyroAxis Axis
	GyroSign float64 // +1 or -1; 0 is treated as +1
}

// DefaultAxisMap is the Y/Z tilt with gyro X.
var DefaultAxisMap = AxisMap{Plane: orientation.PlaneTilt, GyroAxis: AxisX, GyroSign: 1}

// Select returns the accelerometer angle in degrees and the matching gyro
// rate in °/s for a scaled sample.
func (m AxisMap) Select(s imu.RawSample) (accelAngleDeg, gyroRateDegPerSec float64) {
	sign := m.GyroSign
	if sign == 0 {
		sign = 1
	}
	return m.Plane.Angle(s.Accel), sign * m.GyroAxis.Component(s.Gyro)
}
