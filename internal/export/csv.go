// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package export writes recorded sessions as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/relabs-tech/shoulder_monitor/internal/imu"
)

// AngleHeader is the column layout of the angle export.
func AngleHeader() []string {
	return []string{"timestamp", "algorithm1Angle", "algorithm2Angle"}
}

// RawHeader is the column layout of the raw sample export.
func RawHeader() []string {
	return []string{
		"timestamp",
		"accelerometerX", "accelerometerY", "accelerometerZ",
		"gyroscopeX", "gyroscopeY", "gyroscopeZ",
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// AngleRow renders one angle sample.
func AngleRow(s imu.AngleSample) []string {
	return []string{
		strconv.FormatInt(s.Timestamp, 10),
		formatFloat(s.Angle1),
		formatFloat(s.Angle2),
	}
}

// RawRow renders one raw sample.
func RawRow(s imu.RawSample) []string {
	return []string{
		strconv.FormatInt(s.Timestamp, 10),
		formatFloat(s.Accel.X), formatFloat(s.Accel.Y), formatFloat(s.Accel.Z),
		formatFloat(s.Gyro.X), formatFloat(s.Gyro.Y), formatFloat(s.Gyro.Z),
	}
}

// WriteAngles writes a header and one row per sample.
func WriteAngles(w io.Writer, samples []imu.AngleSample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(AngleHeader()); err != nil {
		return fmt.Errorf("csv write header: %w", err)
	}
	for _, s := range samples {
		if err := cw.Write(AngleRow(s)); err != nil {
			return fmt.Errorf("csv write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRaw writes a header and one row per sample.
func WriteRaw(w io.Writer, samples []imu.RawSample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RawHeader()); err != nil {
		return fmt.Errorf("csv write header: %w", err)
	}
	for _, s := range samples {
		if err := cw.Write(RawRow(s)); err != nil {
			return fmt.Errorf("csv write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SessionFileName builds "<prefix>_<yyyymmdd-hhmmss>_<id8>.csv".
func SessionFileName(prefix, id string, start time.Time) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s_%s_%s.csv", prefix, start.UTC().Format("20060102-150405"), id)
}
