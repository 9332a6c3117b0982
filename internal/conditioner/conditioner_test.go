package conditioner

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/shoulder_monitor/internal/imu"
	"github.com/relabs-tech/shoulder_monitor/internal/orientation"
)

func TestSensitivityTables(t *testing.T) {
	accel := map[byte]float64{0: 16384, 1: 8192, 2: 4096, 3: 2048}
	for sel, want := range accel {
		got, err := AccelLSBPerG(sel)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	gyro := map[byte]float64{0: 131, 1: 65.5, 2: 32.8, 3: 16.4}
	for sel, want := range gyro {
		got, err := GyroLSBPerDPS(sel)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := AccelLSBPerG(4)
	assert.Error(t, err)
	_, err = GyroLSBPerDPS(9)
	assert.Error(t, err)

	assert.Equal(t, 16, AccelRangeG(3))
	assert.Equal(t, 2000, GyroRangeDPS(3))
	assert.Equal(t, 0, GyroRangeDPS(4))
}

func TestScaleApplyCounts(t *testing.T) {
	sc, err := ScaleForRanges(0, 0)
	require.NoError(t, err)

	raw := imu.NewRawSample(5,
		imu.Vec3{X: 8192, Y: -16384, Z: 16384},
		imu.Vec3{X: 131, Y: -262, Z: 0},
	)
	got := sc.Apply(raw)

	assert.Equal(t, imu.Vec3{X: 0.5, Y: -1, Z: 1}, got.Accel)
	assert.Equal(t, imu.Vec3{X: 1, Y: -2, Z: 0}, got.Gyro)
	assert.Equal(t, raw.Timestamp, got.Timestamp)
	assert.Equal(t, raw.Present, got.Present)
}

func TestScaleIdentity(t *testing.T) {
	raw := imu.NewRawSample(1, imu.Vec3{X: 0.1, Y: 0.2, Z: 0.9}, imu.Vec3{X: 3})
	assert.Equal(t, raw, Identity.Apply(raw))
}

func TestScaleRadians(t *testing.T) {
	sc := Scale{GyroInRadians: true}
	got := sc.Apply(imu.NewRawSample(1, imu.Vec3{}, imu.Vec3{X: math.Pi, Y: -math.Pi / 2}))
	assert.InDelta(t, 180, got.Gyro.X, 1e-12)
	assert.InDelta(t, -90, got.Gyro.Y, 1e-12)
}

func TestDeltaTrackerFirstSampleFallsBack(t *testing.T) {
	var d DeltaTracker
	dt, fb := d.Next(1000)
	assert.Equal(t, FallbackDT, dt)
	assert.True(t, fb)
	assert.Equal(t, 0.01, FallbackDT)
}

func TestDeltaTrackerSeconds(t *testing.T) {
	var d DeltaTracker
	d.Next(1000)
	dt, fb := d.Next(1025)
	assert.False(t, fb)
	assert.Equal(t, 0.025, dt)
}

func TestDeltaTrackerNonPositive(t *testing.T) {
	var d DeltaTracker
	d.Next(1000)

	dt, fb := d.Next(1000)
	assert.True(t, fb)
	assert.Equal(t, FallbackDT, dt)

	dt, fb = d.Next(990)
	assert.True(t, fb)
	assert.Equal(t, FallbackDT, dt)

	// Measured from the latest time seen, not the backwards step.
	dt, fb = d.Next(1010)
	assert.False(t, fb)
	assert.Equal(t, 0.01, dt)

	last, ok := d.Last()
	assert.True(t, ok)
	assert.Equal(t, int64(1010), last)
}

func TestDeltaTrackerReset(t *testing.T) {
	var d DeltaTracker
	d.Next(1000)
	d.Reset()
	_, ok := d.Last()
	assert.False(t, ok)

	dt, fb := d.Next(5000)
	assert.True(t, fb)
	assert.Equal(t, FallbackDT, dt)
}

func TestAxisMapSelect(t *testing.T) {
	s := imu.NewRawSample(1, imu.Vec3{X: 1, Y: 1, Z: 1}, imu.Vec3{X: 10, Y: 20, Z: 30})

	angle, rate := DefaultAxisMap.Select(s)
	assert.Equal(t, orientation.Tilt(1, 1), angle)
	assert.Equal(t, 10.0, rate)

	m := AxisMap{Plane: orientation.PlaneSagittal, GyroAxis: AxisY, GyroSign: -1}
	angle, rate = m.Select(s)
	assert.Equal(t, orientation.SagittalPlane(1, 1, 1), angle)
	assert.Equal(t, -20.0, rate)

	_, rate = AxisMap{GyroAxis: AxisZ}.Select(s)
	assert.Equal(t, 30.0, rate)
}

func TestParseAxis(t *testing.T) {
	a, err := ParseAxis(" Y ")
	require.NoError(t, err)
	assert.Equal(t, AxisY, a)
	assert.Equal(t, "y", a.String())

	_, err = ParseAxis("w")
	assert.Error(t, err)
}
