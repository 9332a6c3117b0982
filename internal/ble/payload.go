// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package ble decodes the notification payloads of the wearable IMU's GATT
// service. Transport is handled elsewhere (the MQTT gateway bridge); this
// package only maps bytes to partial samples.
package ble

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/relabs-tech/shoulder_monitor/internal/imu"
)

// GATT identifiers of the wearable IMU.
var (
	ServiceUUID = uuid.MustParse("07C80000-07C8-07C8-07C8-07C807C807C8")
	AccelUUID   = uuid.MustParse("07C80001-07C8-07C8-07C8-07C807C807C8")
	GyroUUID    = uuid.MustParse("07C80004-07C8-07C8-07C8-07C807C807C8")
)

// MinPayloadLen is three little-endian int16 values. Longer payloads are
// accepted and the tail is ignored (the gyro characteristic sends 9 bytes).
const MinPayloadLen = 6

// DecodeTriple reads three signed little-endian int16 counts.
func DecodeTriple(payload []byte) (imu.Vec3, error) {
	if len(payload) < MinPayloadLen {
		return imu.Vec3{}, fmt.Errorf("%w: %d bytes, want at least %d", imu.ErrMalformedSample, len(payload), MinPayloadLen)
	}
	return imu.Vec3{
		X: float64(int16(binary.LittleEndian.Uint16(payload[0:2]))),
		Y: float64(int16(binary.LittleEndian.Uint16(payload[2:4]))),
		Z: float64(int16(binary.LittleEndian.Uint16(payload[4:6]))),
	}, nil
}

// EncodeTriple packs three counts the way the device notifies them. Values
// are rounded and clamped to the int16 range.
func EncodeTriple(v imu.Vec3) []byte {
	out := make([]byte, MinPayloadLen)
	binary.LittleEndian.PutUint16(out[0:2], uint16(clampCount(v.X)))
	binary.LittleEndian.PutUint16(out[2:4], uint16(clampCount(v.Y)))
	binary.LittleEndian.PutUint16(out[4:6], uint16(clampCount(v.Z)))
	return out
}

func clampCount(v float64) int16 {
	switch {
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16:
		return math.MinInt16
	}
	return int16(math.Round(v))
}

// DecodeAccel turns an accelerometer notification received at ts (ms) into
// a partial sample.
func DecodeAccel(ts int64, payload []byte) (imu.RawSample, error) {
	v, err := DecodeTriple(payload)
	if err != nil {
		return imu.RawSample{}, fmt.Errorf("accel: %w", err)
	}
	return imu.AccelOnly(ts, v), nil
}

// DecodeGyro turns a gyroscope notification received at ts (ms) into a
// partial sample.
func DecodeGyro(ts int64, payload []byte) (imu.RawSample, error) {
	v, err := DecodeTriple(payload)
	if err != nil {
		return imu.RawSample{}, fmt.Errorf("gyro: %w", err)
	}
	return imu.GyroOnly(ts, v), nil
}

// Decode dispatches on the characteristic UUID.
func Decode(char uuid.UUID, ts int64, payload []byte) (imu.RawSample, error) {
	switch char {
	case AccelUUID:
		return DecodeAccel(ts, payload)
	case GyroUUID:
		return DecodeGyro(ts, payload)
	}
	return imu.RawSample{}, fmt.Errorf("%w: unknown characteristic %s", imu.ErrMalformedSample, char)
}

// DecodeBase64 undoes the base64 wrapping some gateways apply to
// characteristic values.
func DecodeBase64(value []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.DecodedLen(len(value)))
	n, err := base64.StdEncoding.Decode(out, value)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", imu.ErrMalformedSample, err)
	}
	return out[:n], nil
}

// EncodeBase64 applies the gateway's base64 wrapping.
func EncodeBase64(payload []byte) []byte {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(payload)))
	base64.StdEncoding.Encode(out, payload)
	return out
}
