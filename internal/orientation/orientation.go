// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package orientation turns accelerometer and gyroscope readings into
// shoulder plane angles in degrees.
package orientation

import (
	"fmt"
	"math"
	"strings"

	"github.com/relabs-tech/shoulder_monitor/internal/imu"
)

const radToDeg = 180.0 / math.Pi

// Tilt returns the tilt of the Y/Z plane against gravity:
//
//	tilt = atan2(ay, az)
//
// It returns 0 when both components are 0.
func Tilt(accelY, accelZ float64) float64 {
	if accelY == 0 && accelZ == 0 {
		return 0
	}
	return math.Atan2(accelY, accelZ) * radToDeg
}

// FrontalPlane returns the abduction/adduction angle: 0° with the arm at the
// side, about 90° with the arm lifted sideways to shoulder height.
//
//	frontal = atan2(ax, sqrt(ay² + az²))
func FrontalPlane(ax, ay, az float64) float64 {
	vertical := math.Sqrt(ay*ay + az*az)
	if vertical == 0 {
		return 0
	}
	return math.Atan2(ax, vertical) * radToDeg
}

// SagittalPlane returns the flexion/extension angle, positive for a forward
// reach.
//
//	sagittal = atan2(ay, sqrt(ax² + az²))
func SagittalPlane(ax, ay, az float64) float64 {
	vertical := math.Sqrt(ax*ax + az*az)
	if vertical == 0 {
		return 0
	}
	return math.Atan2(ay, vertical) * radToDeg
}

// HorizontalPlane returns the direction of the instantaneous rotation in the
// horizontal plane from the X/Y gyro rates, in [-180, 180].
func HorizontalPlane(gx, gy float64) float64 {
	if gx == 0 && gy == 0 {
		return 0
	}
	return math.Atan2(gy, gx) * radToDeg
}

// IntegrateGyro advances a cumulative rotation angle by one gyro step.
func IntegrateGyro(prevDeg, rateDegPerSec, dtSeconds float64) float64 {
	return prevDeg + rateDegPerSec*dtSeconds
}

// PlaneAngles holds one angle per anatomical plane.
type PlaneAngles struct {
	Frontal    float64 `json:"frontal"`
	Sagittal   float64 `json:"sagittal"`
	Horizontal float64 `json:"horizontal"`
}

// ComputePlaneAngles derives frontal and sagittal angles from the
// accelerometer and advances the horizontal angle by integrating gyro Z,
// since gravity carries no information about rotation about the vertical.
func ComputePlaneAngles(accel, gyroDegPerSec imu.Vec3, prevHorizontal, dtSeconds float64) PlaneAngles {
	return PlaneAngles{
		Frontal:    FrontalPlane(accel.X, accel.Y, accel.Z),
		Sagittal:   SagittalPlane(accel.X, accel.Y, accel.Z),
		Horizontal: IntegrateGyro(prevHorizontal, gyroDegPerSec.Z, dtSeconds),
	}
}

// Plane selects which accelerometer angle defines "tilt" for the filters.
type Plane int

const (
	PlaneTilt Plane = iota
	PlaneFrontal
	PlaneSagittal
)

func (p Plane) String() string {
	switch p {
	case PlaneTilt:
		return "tilt"
	case PlaneFrontal:
		return "frontal"
	case PlaneSagittal:
		return "sagittal"
	}
	return fmt.Sprintf("plane(%d)", int(p))
}

// ParsePlane accepts "tilt", "frontal" or "sagittal".
func ParsePlane(s string) (Plane, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tilt", "":
		return PlaneTilt, nil
	case "frontal":
		return PlaneFrontal, nil
	case "sagittal":
		return PlaneSagittal, nil
	}
	return PlaneTilt, fmt.Errorf("unknown plane %q (want tilt, frontal or sagittal)", s)
}

// Angle computes the plane's accelerometer angle in degrees.
func (p Plane) Angle(accel imu.Vec3) float64 {
	switch p {
	case PlaneFrontal:
		return FrontalPlane(accel.X, accel.Y, accel.Z)
	case PlaneSagittal:
		return SagittalPlane(accel.X, accel.Y, accel.Z)
	default:
		return Tilt(accel.Y, accel.Z)
	}
}
