package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/shoulder_monitor/internal/fusion"
	"github.com/relabs-tech/shoulder_monitor/internal/imu"
)

func TestWriteAngles(t *testing.T) {
	var buf bytes.Buffer
	err := WriteAngles(&buf, []imu.AngleSample{
		{Timestamp: 0, Angle1: 45, Angle2: 0.9},
		{Timestamp: 10, Angle1: 44.5, Angle2: -1.25},
	})
	require.NoError(t, err)
	want := "timestamp,algorithm1Angle,algorithm2Angle\n0,45,0.9\n10,44.5,-1.25\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteRaw(t *testing.T) {
	var buf bytes.Buffer
	err := WriteRaw(&buf, []imu.RawSample{
		imu.NewRawSample(7, imu.Vec3{X: 1, Y: -2, Z: 16384}, imu.Vec3{X: 0.5}),
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(RawHeader(), ","), lines[0])
	assert.Equal(t, "7,1,-2,16384,0.5,0,0", lines[1])
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAngles(&buf, nil))
	assert.Equal(t, "timestamp,algorithm1Angle,algorithm2Angle\n", buf.String())
}

func TestSessionFileName(t *testing.T) {
	start := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	assert.Equal(t, "angles_20260304-050607_0123abcd.csv",
		SessionFileName("angles", "0123abcd-ffff-4444-8888-000000000000", start))
	assert.Equal(t, "raw_20260304-050607_x.csv", SessionFileName("raw", "x", start))
}

func TestCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w, err := NewCSVWriter(path, 16, AngleHeader())
	require.NoError(t, err)
	w.WriteRow(AngleRow(imu.AngleSample{Timestamp: 1, Angle1: 2, Angle2: 3}))
	w.WriteRow(AngleRow(imu.AngleSample{Timestamp: 2, Angle1: 2.5, Angle2: 3.5}))
	assert.Equal(t, uint64(2), w.Rows())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{AngleHeader(), {"1", "2", "3"}, {"2", "2.5", "3.5"}}, records)
}

func TestWriteRecording(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	rec := fusion.SessionLog{
		ID:        "abcdef0123456789",
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Raw:       []imu.RawSample{imu.NewRawSample(0, imu.Vec3{Z: 1}, imu.Vec3{})},
		Angles:    []imu.AngleSample{{Timestamp: 0}},
	}
	anglesPath, rawPath, err := WriteRecording(dir, rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "angles_20260102-030405_abcdef01.csv"), anglesPath)
	assert.FileExists(t, rawPath)

	data, err := os.ReadFile(anglesPath)
	require.NoError(t, err)
	assert.Equal(t, "timestamp,algorithm1Angle,algorithm2Angle\n0,0,0\n", string(data))
}
