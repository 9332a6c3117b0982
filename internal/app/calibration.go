// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/relabs-tech/shoulder_monitor/internal/config"
	"github.com/relabs-tech/shoulder_monitor/internal/imu"
	"github.com/relabs-tech/shoulder_monitor/internal/report"
	"github.com/relabs-tech/shoulder_monitor/internal/sensors"
)

// Thresholds above which a still capture is reported as disturbed.
const (
	stillAccelStdDev = 200 // counts
	stillGyroStdDev  = 50  // counts
)

// Calibration is the result of a still capture, in sensor counts.
type Calibration struct {
	SchemaVersion int       `json:"schema_version"`
	CalibrationAt time.Time `json:"calibration_at"`
	IMU           string    `json:"imu"`
	Samples       int       `json:"samples"`
	DurationSec   float64   `json:"duration_sec"`

	GyroBias    imu.Vec3 `json:"gyro_bias"`
	GyroStdDev  imu.Vec3 `json:"gyro_stddev"`
	AccelMean   imu.Vec3 `json:"accel_mean"`
	AccelStdDev imu.Vec3 `json:"accel_stddev"`

	// AccelLSBPerG is the magnitude of the mean accelerometer vector, which
	// at rest is one g.
	AccelLSBPerG float64 `json:"accel_lsb_per_g"`
	// GravityAxis is the axis carrying most of gravity ("x", "y" or "z").
	GravityAxis string `json:"gravity_axis"`

	Notes []string `json:"notes,omitempty"`
}

// EstimateCalibration derives gyro bias and accelerometer sensitivity from
// readings taken while the device lies still.
func EstimateCalibration(raws []imu.IMURaw) (Calibration, error) {
	if len(raws) == 0 {
		return Calibration{}, errors.New("calibration: no samples")
	}

	accel := make([]imu.Vec3, len(raws))
	gyro := make([]imu.Vec3, len(raws))
	for i, r := range raws {
		s := r.Sample()
		accel[i], gyro[i] = s.Accel, s.Gyro
	}
	as := report.DescribeVectors(accel)
	gs := report.DescribeVectors(gyro)

	c := Calibration{
		SchemaVersion: 1,
		IMU:           raws[0].Source,
		Samples:       len(raws),
		DurationSec:   float64(raws[len(raws)-1].TimeMs-raws[0].TimeMs) / 1000,
		GyroBias:      gs.Mean,
		GyroStdDev:    gs.StdDev,
		AccelMean:     as.Mean,
		AccelStdDev:   as.StdDev,
		AccelLSBPerG:  math.Sqrt(as.Mean.X*as.Mean.X + as.Mean.Y*as.Mean.Y + as.Mean.Z*as.Mean.Z),
		GravityAxis:   dominantAxis(as.Mean),
	}

	if maxComponent(as.StdDev) > stillAccelStdDev {
		c.Notes = append(c.Notes, "accelerometer noisy: the device probably moved during capture")
	}
	if maxComponent(gs.StdDev) > stillGyroStdDev {
		c.Notes = append(c.Notes, "gyroscope noisy: the device probably moved during capture")
	}
	if c.AccelLSBPerG == 0 {
		c.Notes = append(c.Notes, "accelerometer reads zero: check wiring")
	}
	return c, nil
}

// ConfigLines returns the configuration entries matching the estimate.
func (c Calibration) ConfigLines() []string {
	return []string{
		fmt.Sprintf("ACCEL_LSB_PER_G=%.1f", c.AccelLSBPerG),
		fmt.Sprintf("# gyro bias (counts): x=%.2f y=%.2f z=%.2f", c.GyroBias.X, c.GyroBias.Y, c.GyroBias.Z),
		fmt.Sprintf("# gravity along %s", c.GravityAxis),
	}
}

func dominantAxis(v imu.Vec3) string {
	ax, ay, az := math.Abs(v.X), math.Abs(v.Y), math.Abs(v.Z)
	switch {
	case ax >= ay && ax >= az:
		return "x"
	case ay >= az:
		return "y"
	}
	return "z"
}

func maxComponent(v imu.Vec3) float64 {
	return math.Max(v.X, math.Max(v.Y, v.Z))
}

// CaptureStill reads n samples at interval. Isolated read errors are
// skipped; sensors.MaxConsecutiveReadErrors in a row abort the capture.
func CaptureStill(r sensors.RawReader, n int, interval time.Duration, now func() time.Time) ([]imu.IMURaw, error) {
	out := make([]imu.IMURaw, 0, n)
	failures := 0
	for len(out) < n {
		raw, err := r.ReadRaw()
		if err != nil {
			failures++
			if failures >= sensors.MaxConsecutiveReadErrors {
				return out, fmt.Errorf("capture aborted after %d read errors: %w", failures, err)
			}
			continue
		}
		failures = 0
		raw.TimeMs = now().UnixMilli()
		out = append(out, raw)
		if interval > 0 && len(out) < n {
			time.Sleep(interval)
		}
	}
	return out, nil
}

// RunCalibration captures a still reading of the on-board IMU, prints the
// estimate and stores it as JSON in outPath.
func RunCalibration(samples int, outPath string) error {
	cfg := config.Get()

	fmt.Println("=== Shoulder IMU calibration ===")
	fmt.Println("Lay the sensor flat and keep it still.")

	dev, err := sensors.OpenMPU9250(sensors.MPU9250Config{
		Name:       "arm",
		SPIDevice:  cfg.IMUSPIDevice,
		CSPin:      cfg.IMUCSPin,
		AccelRange: cfg.IMUAccelRange,
		GyroRange:  cfg.IMUGyroRange,
	})
	if err != nil {
		return err
	}

	raws, err := CaptureStill(dev, samples, time.Duration(cfg.SampleInterval)*time.Millisecond, time.Now)
	if err != nil {
		return err
	}
	c, err := EstimateCalibration(raws)
	if err != nil {
		return err
	}
	c.CalibrationAt = time.Now().UTC()

	fmt.Printf("Gyro bias (counts):   X=%.2f Y=%.2f Z=%.2f\n", c.GyroBias.X, c.GyroBias.Y, c.GyroBias.Z)
	fmt.Printf("Gyro noise (counts):  X=%.2f Y=%.2f Z=%.2f\n", c.GyroStdDev.X, c.GyroStdDev.Y, c.GyroStdDev.Z)
	fmt.Printf("Accel mean (counts):  X=%.2f Y=%.2f Z=%.2f\n", c.AccelMean.X, c.AccelMean.Y, c.AccelMean.Z)
	fmt.Printf("Accel LSB per g:      %.1f (gravity along %s)\n", c.AccelLSBPerG, c.GravityAxis)
	for _, n := range c.Notes {
		fmt.Println("Note:", n)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal calibration: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	fmt.Printf("Saved to %s\n\nSuggested configuration:\n", outPath)
	for _, l := range c.ConfigLines() {
		fmt.Println(l)
	}
	return nil
}
