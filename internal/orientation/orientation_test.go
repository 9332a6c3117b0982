package orientation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/shoulder_monitor/internal/imu"
)

func TestTiltZeroGuard(t *testing.T) {
	got := Tilt(0, 0)
	assert.Equal(t, 0.0, got)
	assert.False(t, math.IsNaN(got))
}

func TestTiltKnownAngles(t *testing.T) {
	tests := []struct {
		y, z float64
		want float64
	}{
		{0, 1, 0},
		{1, 1, 45},
		{1, 0, 90},
		{-1, 1, -45},
		{0, -1, 180},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Tilt(tt.y, tt.z), 1e-12, "y=%v z=%v", tt.y, tt.z)
	}
}

func TestTiltScaleInvariant(t *testing.T) {
	pairs := [][2]float64{{1, 1}, {0.3, -0.9}, {-2, 5}, {16384, 100}}
	for _, p := range pairs {
		base := Tilt(p[0], p[1])
		for _, k := range []float64{0.001, 0.5, 2, 9.81, 16384} {
			assert.InDelta(t, base, Tilt(k*p[0], k*p[1]), 1e-9, "pair=%v k=%v", p, k)
		}
	}
}

func TestFrontalPlane(t *testing.T) {
	assert.Equal(t, 0.0, FrontalPlane(1, 0, 0))
	assert.InDelta(t, 0, FrontalPlane(0, 0, 1), 1e-12)
	assert.InDelta(t, 45, FrontalPlane(1, 0, 1), 1e-12)
	assert.InDelta(t, -45, FrontalPlane(-1, 1, 0), 1e-12)
}

func TestSagittalPlane(t *testing.T) {
	assert.Equal(t, 0.0, SagittalPlane(0, 1, 0))
	assert.InDelta(t, 45, SagittalPlane(0, 1, 1), 1e-12)
	assert.InDelta(t, -30, SagittalPlane(0, -0.5, math.Sqrt(3)/2), 1e-9)
}

func TestHorizontalPlane(t *testing.T) {
	assert.Equal(t, 0.0, HorizontalPlane(0, 0))
	assert.InDelta(t, 90, HorizontalPlane(0, 2), 1e-12)
	assert.InDelta(t, 180, HorizontalPlane(-1, 0), 1e-12)
}

func TestIntegrateGyro(t *testing.T) {
	assert.Equal(t, 10.5, IntegrateGyro(10, 50, 0.01))
	assert.Equal(t, 10.0, IntegrateGyro(10, 0, 1))
}

func TestComputePlaneAngles(t *testing.T) {
	a := ComputePlaneAngles(imu.Vec3{X: 1, Y: 0, Z: 1}, imu.Vec3{Z: 100}, 5, 0.1)
	assert.InDelta(t, 45, a.Frontal, 1e-12)
	assert.InDelta(t, 0, a.Sagittal, 1e-12)
	assert.InDelta(t, 15, a.Horizontal, 1e-12)
}

func TestParsePlane(t *testing.T) {
	for in, want := range map[string]Plane{
		"tilt":      PlaneTilt,
		"":          PlaneTilt,
		"Frontal":   PlaneFrontal,
		" sagittal": PlaneSagittal,
	} {
		got, err := ParsePlane(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParsePlane("coronal")
	assert.Error(t, err)
}

func TestPlaneAngle(t *testing.T) {
	accel := imu.Vec3{X: 1, Y: 1, Z: 1}
	assert.Equal(t, Tilt(1, 1), PlaneTilt.Angle(accel))
	assert.Equal(t, FrontalPlane(1, 1, 1), PlaneFrontal.Angle(accel))
	assert.Equal(t, SagittalPlane(1, 1, 1), PlaneSagittal.Angle(accel))
	assert.Equal(t, "sagittal", PlaneSagittal.String())
}
