package fusion

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/shoulder_monitor/internal/conditioner"
	"github.com/relabs-tech/shoulder_monitor/internal/imu"
	"github.com/relabs-tech/shoulder_monitor/internal/orientation"
)

// fakeSource records the callbacks it is given so tests can deliver samples
// by hand, including after Stop.
type fakeSource struct {
	mu       sync.Mutex
	startErr error
	onSample func(imu.RawSample)
	onFail   func(error)
	started  int
	stopped  int
}

func (f *fakeSource) Start(intervalMs int, onSample func(imu.RawSample), onFail func(error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started++
	f.onSample = onSample
	f.onFail = onFail
	return nil
}

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return nil
}

func (f *fakeSource) deliver(samples ...imu.RawSample) {
	f.mu.Lock()
	cb := f.onSample
	f.mu.Unlock()
	for _, s := range samples {
		cb(s)
	}
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	cb := f.onFail
	f.mu.Unlock()
	cb(err)
}

func (f *fakeSource) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func flat(ts int64) imu.RawSample {
	return imu.NewRawSample(ts, imu.Vec3{Y: 1, Z: 1}, imu.Vec3{})
}

func wavy(n int) []imu.RawSample {
	out := make([]imu.RawSample, n)
	for i := range out {
		f := float64(i)
		out[i] = imu.NewRawSample(int64(i*10),
			imu.Vec3{X: 0.1, Y: 0.5 + 0.01*f, Z: 0.8 - 0.002*f},
			imu.Vec3{X: 5 - 0.1*f, Y: 1, Z: -1},
		)
	}
	return out
}

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := NewPipeline(DefaultConfig())
	require.NoError(t, err)
	return p
}

func TestEndToEndPinnedValues(t *testing.T) {
	s := NewSession(DefaultConfig())

	var got []imu.AngleSample
	for _, ts := range []int64{0, 10, 20} {
		out, ok := s.Ingest(flat(ts))
		require.True(t, ok)
		got = append(got, out)
	}

	want := []imu.AngleSample{
		{Timestamp: 0, Angle1: 45, Angle2: 0.9000000000000008},
		{Timestamp: 10, Angle1: 45, Angle2: 1.7820000000000016},
		{Timestamp: 20, Angle1: 45, Angle2: 2.6463600000000023},
	}
	assert.Equal(t, want, got)
	assert.Equal(t, Stats{Received: 3, Emitted: 3, DTFallbacks: 1}, s.Stats())
}

func TestDeterminism(t *testing.T) {
	p := newPipeline(t)
	run := func() []imu.AngleSample {
		src := &fakeSource{}
		require.NoError(t, p.Start(src, 10))
		src.deliver(wavy(200)...)
		require.NoError(t, p.Stop())
		return p.History()
	}
	first, second := run(), run()
	require.Len(t, first, 200)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("same input produced different output (-first +second):\n%s", diff)
	}
}

func TestHistoryBoundFIFO(t *testing.T) {
	for _, n := range []int{500, 501, 1234} {
		s := NewSession(DefaultConfig())
		for i := 0; i < n; i++ {
			s.Ingest(flat(int64(i)))
		}
		h := s.History()
		require.Len(t, h, 500, "n=%d", n)
		assert.Equal(t, int64(n-500), h[0].Timestamp, "n=%d", n)
		assert.Equal(t, int64(n-1), h[len(h)-1].Timestamp, "n=%d", n)
		assert.Len(t, s.Angles(), n, "recording keeps the full session")
	}
}

func TestHistoryRing(t *testing.T) {
	h := NewHistory(3)
	assert.Empty(t, h.Snapshot())
	for i := int64(1); i <= 5; i++ {
		h.Push(imu.AngleSample{Timestamp: i})
	}
	want := []imu.AngleSample{{Timestamp: 3}, {Timestamp: 4}, {Timestamp: 5}}
	assert.Equal(t, want, h.Snapshot())
	assert.Equal(t, want[1:], h.Last(2))
	assert.Equal(t, want, h.Last(10))
	assert.Empty(t, h.Last(0))
	assert.Equal(t, 3, h.Cap())

	h.Reset()
	assert.Equal(t, 0, h.Len())
	h.Push(imu.AngleSample{Timestamp: 9})
	assert.Equal(t, []imu.AngleSample{{Timestamp: 9}}, h.Snapshot())
}

func TestDeltaFallbackOnRepeatedTimestamp(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CompAlpha = 1 // pure gyro integration exposes dt directly
	s := NewSession(cfg)

	gyro := imu.Vec3{X: 100}
	for _, ts := range []int64{1000, 1000, 990, 1050} {
		s.Ingest(imu.NewRawSample(ts, imu.Vec3{Y: 1, Z: 1}, gyro))
	}
	angles := s.Angles()
	require.Len(t, angles, 4)
	// 100°/s over 0.01, 0.01, 0.01 then 0.05 s.
	assert.InDelta(t, 1, angles[0].Angle2, 1e-9)
	assert.InDelta(t, 2, angles[1].Angle2, 1e-9)
	assert.InDelta(t, 3, angles[2].Angle2, 1e-9)
	assert.InDelta(t, 8, angles[3].Angle2, 1e-9)
	assert.Equal(t, 3, s.Stats().DTFallbacks)

	for i := 1; i < len(angles); i++ {
		assert.GreaterOrEqual(t, angles[i].Timestamp, angles[i-1].Timestamp)
	}
}

func TestPartialSamplesAccumulate(t *testing.T) {
	s := NewSession(DefaultConfig())

	_, ok := s.Ingest(imu.AccelOnly(10, imu.Vec3{Y: 1, Z: 1}))
	assert.False(t, ok)
	assert.Empty(t, s.History())

	out, ok := s.Ingest(imu.GyroOnly(12, imu.Vec3{X: 3}))
	require.True(t, ok)
	assert.Equal(t, int64(12), out.Timestamp)
	assert.InDelta(t, 45, out.Angle1, 1e-12)

	// Once complete, each update fuses with the latest value of every axis.
	out, ok = s.Ingest(imu.AccelOnly(20, imu.Vec3{Y: 0, Z: 1}))
	require.True(t, ok)
	assert.Equal(t, int64(20), out.Timestamp)

	raw := s.Raw()
	require.Len(t, raw, 2)
	assert.Equal(t, imu.Vec3{X: 3}, raw[1].Gyro)
	assert.Equal(t, Stats{Received: 3, Emitted: 2, Incomplete: 1, DTFallbacks: 1}, s.Stats())
}

func TestScaleAndAxesApplied(t *testing.T) {
	cfg := DefaultConfig()
	sc, err := conditioner.ScaleForRanges(0, 0)
	require.NoError(t, err)
	cfg.Scale = sc
	cfg.Axes = conditioner.AxisMap{Plane: orientation.PlaneTilt, GyroAxis: conditioner.AxisY, GyroSign: -1}
	cfg.EWMAAlpha = 1
	cfg.CompAlpha = 1

	s := NewSession(cfg)
	out, ok := s.Ingest(imu.NewRawSample(0,
		imu.Vec3{Y: 16384, Z: 16384},
		imu.Vec3{X: 999, Y: 1310},
	))
	require.True(t, ok)
	assert.InDelta(t, 45, out.Angle1, 1e-12)
	// -10°/s for the fallback 0.01 s.
	assert.InDelta(t, -0.1, out.Angle2, 1e-12)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	loose := DefaultConfig()
	for _, a := range []float64{0, -0.5, 1.5} {
		loose.EWMAAlpha = a
		assert.NoError(t, loose.Validate(), "alpha %v", a)
	}
	loose.EWMAAlpha = math.NaN()
	assert.Error(t, loose.Validate())

	bad := DefaultConfig()
	bad.CompAlpha = 1.5
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.HistorySize = 0
	assert.Error(t, bad.Validate())

	_, err := NewPipeline(bad)
	assert.Error(t, err)
}

func TestPipelineLifecycle(t *testing.T) {
	p := newPipeline(t)
	assert.Equal(t, Idle, p.State())
	assert.Empty(t, p.History())

	src := &fakeSource{}
	require.NoError(t, p.Start(src, 10))
	assert.Equal(t, Recording, p.State())
	assert.NotEmpty(t, p.SessionID())
	assert.False(t, p.StartedAt().IsZero())
	assert.True(t, p.StoppedAt().IsZero())

	src.deliver(flat(0), flat(10), flat(20))
	assert.Len(t, p.History(), 3)
	assert.Len(t, p.Recent(2), 2)
	assert.Equal(t, 3, p.Stats().Emitted)

	require.NoError(t, p.Stop())
	assert.Equal(t, Idle, p.State())
	assert.Equal(t, 1, src.stops())
	assert.False(t, p.StoppedAt().IsZero())

	// History stays readable after stop.
	assert.Len(t, p.History(), 3)
	rec := p.Recording()
	assert.Equal(t, p.SessionID(), rec.ID)
	assert.Len(t, rec.Raw, 3)
	assert.Len(t, rec.Angles, 3)

	require.NoError(t, p.Stop(), "stopping an idle pipeline is a no-op")
	assert.Equal(t, 1, src.stops())
}

func TestLateCallbackIgnored(t *testing.T) {
	p := newPipeline(t)
	src := &fakeSource{}
	require.NoError(t, p.Start(src, 10))
	src.deliver(flat(0))
	require.NoError(t, p.Stop())

	assert.NotPanics(t, func() { src.deliver(flat(10), flat(20)) })
	assert.Len(t, p.History(), 1)
	assert.Equal(t, 1, p.Stats().Received)
}

func TestImplicitStopOnRestart(t *testing.T) {
	p := newPipeline(t)
	first := &fakeSource{}
	require.NoError(t, p.Start(first, 10))
	first.deliver(flat(0), flat(10))
	firstID := p.SessionID()

	second := &fakeSource{}
	require.NoError(t, p.Start(second, 10))
	assert.Equal(t, 1, first.stops())
	assert.NotEqual(t, firstID, p.SessionID())
	assert.Empty(t, p.History(), "restart clears history")

	// The old source keeps firing; none of it lands in the new session.
	first.deliver(flat(20), flat(30))
	second.deliver(flat(100))
	h := p.History()
	require.Len(t, h, 1)
	assert.Equal(t, int64(100), h[0].Timestamp)
	assert.Equal(t, 1, p.Stats().DTFallbacks, "fresh delta state")

	// Same source restarted: fresh filters give the same first output.
	third := &fakeSource{}
	require.NoError(t, p.Start(third, 10))
	third.deliver(flat(100))
	if diff := cmp.Diff(h, p.History(), cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("restart did not reset filters (-want +got):\n%s", diff)
	}
}

func TestStartFailure(t *testing.T) {
	p := newPipeline(t)
	src := &fakeSource{startErr: errors.New("no adapter")}

	err := p.Start(src, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, imu.ErrSourceUnavailable)
	assert.Equal(t, Idle, p.State())
	assert.ErrorIs(t, p.Err(), imu.ErrSourceUnavailable)
}

func TestSourceFailureKeepsHistory(t *testing.T) {
	p := newPipeline(t)
	src := &fakeSource{}
	require.NoError(t, p.Start(src, 10))
	src.deliver(flat(0), flat(10))

	src.fail(errors.New("link lost"))
	assert.Equal(t, Idle, p.State())
	assert.ErrorIs(t, p.Err(), imu.ErrSourceUnavailable)
	assert.Contains(t, p.Err().Error(), "link lost")
	assert.Len(t, p.History(), 2)
	assert.Eventually(t, func() bool { return src.stops() == 1 }, time.Second, 5*time.Millisecond)

	src.deliver(flat(20))
	assert.Len(t, p.History(), 2)

	// A new session clears the terminal error.
	require.NoError(t, p.Start(&fakeSource{}, 10))
	assert.NoError(t, p.Err())
}

func TestSubscribe(t *testing.T) {
	p := newPipeline(t)
	id, ch := p.Subscribe(4)

	src := &fakeSource{}
	require.NoError(t, p.Start(src, 10))
	src.deliver(imu.AccelOnly(0, imu.Vec3{Z: 1}), flat(10), flat(20))

	got := []int64{(<-ch).Timestamp, (<-ch).Timestamp}
	assert.Equal(t, []int64{10, 20}, got)

	// A full channel drops instead of blocking the pipeline.
	src.deliver(flat(30), flat(40), flat(50), flat(60), flat(70))
	assert.Len(t, ch, 4)
	assert.Len(t, p.History(), 7)

	p.Unsubscribe(id)
	for range ch {
	}
	p.Unsubscribe(id)
}

func TestConcurrentStopDuringDelivery(t *testing.T) {
	p := newPipeline(t)
	src := &fakeSource{}
	require.NoError(t, p.Start(src, 10))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			src.deliver(flat(int64(i)))
		}
	}()
	require.NoError(t, p.Stop())
	wg.Wait()

	n := p.Stats().Emitted
	assert.Len(t, p.History(), min(n, 500))
	assert.Equal(t, Idle, p.State())
}

func TestDoneClosesPerSession(t *testing.T) {
	p := newPipeline(t)
	assert.Nil(t, p.Done())

	require.NoError(t, p.Start(&fakeSource{}, 10))
	first := p.Done()
	select {
	case <-first:
		t.Fatal("done closed while recording")
	default:
	}

	require.NoError(t, p.Start(&fakeSource{}, 10))
	assert.NotEqual(t, first, p.Done())
	_, open := <-first
	assert.False(t, open, "restart ends the previous session")

	src := &fakeSource{}
	require.NoError(t, p.Start(src, 10))
	done := p.Done()
	src.fail(errors.New("gone"))
	_, open = <-done
	assert.False(t, open)
}

func TestPlaneAnglesTracked(t *testing.T) {
	p := newPipeline(t)
	assert.Equal(t, orientation.PlaneAngles{}, p.Planes())

	src := &fakeSource{}
	require.NoError(t, p.Start(src, 10))
	for _, ts := range []int64{0, 10, 20} {
		src.deliver(imu.NewRawSample(ts, imu.Vec3{Y: 1, Z: 1}, imu.Vec3{Z: 10}))
	}

	// Horizontal integrates gyro Z: 10°/s for three 10 ms steps.
	got := p.Planes()
	assert.InDelta(t, 45, got.Sagittal, 1e-9)
	assert.InDelta(t, 0, got.Frontal, 1e-9)
	assert.InDelta(t, 0.3, got.Horizontal, 1e-9)

	log := p.Recording().Planes
	require.Len(t, log, 3)
	assert.InDelta(t, 0.1, log[0].Horizontal, 1e-9)
	assert.Equal(t, got, log[2])

	// A new session starts the horizontal angle from zero.
	require.NoError(t, p.Start(&fakeSource{}, 10))
	assert.Equal(t, orientation.PlaneAngles{}, p.Planes())
}
