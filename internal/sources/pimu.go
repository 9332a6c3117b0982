// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sources

import (
	"fmt"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/relabs-tech/shoulder_monitor/internal/imu"
)

// TypePIMU is the proprietary sentence type emitted by the serial IMU bridge:
//
//	$PIMU,<ms>,<ax>,<ay>,<az>,<gx>,<gy>,<gz>*CS
//
// A triple left empty marks a partial reading.
const TypePIMU = "IMU"

// PIMU is a parsed $PIMU sentence.
type PIMU struct {
	nmea.BaseSentence
	TimeMs  int64
	Accel   imu.Vec3
	Gyro    imu.Vec3
	Present imu.Field
}

func init() {
	if err := nmea.RegisterParser(TypePIMU, parsePIMU); err != nil {
		panic(err)
	}
}

func parsePIMU(s nmea.BaseSentence) (nmea.Sentence, error) {
	if len(s.Fields) != 7 {
		return nil, fmt.Errorf("nmea: PIMU has %d fields, want 7", len(s.Fields))
	}
	p := nmea.NewParser(s)
	m := PIMU{BaseSentence: s}

	if s.Fields[0] == "" {
		return nil, fmt.Errorf("nmea: PIMU missing timestamp")
	}
	m.TimeMs = p.Int64(0, "time")
	m.Present |= imu.FieldTimestamp

	if triplePresent(s.Fields[1:4]) {
		m.Accel = imu.Vec3{X: p.Float64(1, "ax"), Y: p.Float64(2, "ay"), Z: p.Float64(3, "az")}
		m.Present |= imu.FieldAccel
	}
	if triplePresent(s.Fields[4:7]) {
		m.Gyro = imu.Vec3{X: p.Float64(4, "gx"), Y: p.Float64(5, "gy"), Z: p.Float64(6, "gz")}
		m.Present |= imu.FieldGyro
	}
	return m, p.Err()
}

func triplePresent(f []string) bool {
	return f[0] != "" && f[1] != "" && f[2] != ""
}

// Sample converts the sentence into a raw sample.
func (m PIMU) Sample() imu.RawSample {
	return imu.RawSample{Timestamp: m.TimeMs, Accel: m.Accel, Gyro: m.Gyro, Present: m.Present}
}

// ParsePIMU parses one line into a raw sample. Lines that are not $PIMU
// sentences, fail the checksum or carry bad numbers wrap
// imu.ErrMalformedSample.
func ParsePIMU(line string) (imu.RawSample, error) {
	sentence, err := nmea.Parse(line)
	if err != nil {
		return imu.RawSample{}, fmt.Errorf("%w: %v", imu.ErrMalformedSample, err)
	}
	m, ok := sentence.(PIMU)
	if !ok {
		return imu.RawSample{}, fmt.Errorf("%w: unexpected sentence %s", imu.ErrMalformedSample, sentence.Prefix())
	}
	return m.Sample(), nil
}

// FormatPIMU renders s as a checksummed $PIMU line, without line ending.
// Absent triples are left empty.
func FormatPIMU(s imu.RawSample) string {
	body := fmt.Sprintf("PIMU,%d,%s,%s", s.Timestamp,
		formatTriple(s.Accel, s.Present.Has(imu.FieldAccel)),
		formatTriple(s.Gyro, s.Present.Has(imu.FieldGyro)),
	)
	return fmt.Sprintf("$%s*%02X", body, nmeaChecksum(body))
}

func formatTriple(v imu.Vec3, present bool) string {
	if !present {
		return ",,"
	}
	return fmt.Sprintf("%g,%g,%g", v.X, v.Y, v.Z)
}

func nmeaChecksum(body string) byte {
	var cs byte
	for i := 0; i < len(body); i++ {
		cs ^= body[i]
	}
	return cs
}
