package app

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/shoulder_monitor/internal/config"
	"github.com/relabs-tech/shoulder_monitor/internal/imu"
	"github.com/relabs-tech/shoulder_monitor/internal/sources"
)

type fakeSource struct {
	mu       sync.Mutex
	startErr error
	onSample func(imu.RawSample)
	onFail   func(error)
	next     int64
}

func (f *fakeSource) Start(intervalMs int, onSample func(imu.RawSample), onFail func(error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.onSample, f.onFail = onSample, onFail
	return nil
}

func (f *fakeSource) Stop() error { return nil }

// emit delivers n flat readings (45° tilt, no rotation) 10 ms apart.
func (f *fakeSource) emit(n int) {
	for i := 0; i < n; i++ {
		f.mu.Lock()
		cb := f.onSample
		ts := f.next
		f.next += 10
		f.mu.Unlock()
		cb(imu.NewRawSample(ts, imu.Vec3{Y: 1, Z: 1}, imu.Vec3{}))
	}
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	cb := f.onFail
	f.mu.Unlock()
	cb(err)
}

type published struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic, append([]byte(nil), payload...)})
	return f.err
}

func (f *fakePublisher) on(topic string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]byte
	for _, m := range f.msgs {
		if m.topic == topic {
			out = append(out, m.payload)
		}
	}
	return out
}

func (f *fakePublisher) statuses(t *testing.T) []Status {
	t.Helper()
	var out []Status
	for _, p := range f.on(config.Default().TopicStatus) {
		var s Status
		require.NoError(t, json.Unmarshal(p, &s))
		out = append(out, s)
	}
	return out
}

func newTestRecorder(t *testing.T, src *fakeSource) (*Recorder, *fakePublisher) {
	t.Helper()
	cfg := config.Default()
	cfg.ExportDir = t.TempDir()
	pub := &fakePublisher{}
	rec, err := NewRecorder(cfg, pub)
	require.NoError(t, err)
	rec.newSource = func(*config.Config) (imu.Source, error) { return src, nil }
	t.Cleanup(func() { rec.Stop() })
	return rec, pub
}

func TestRecorderSessionPublishesAndExports(t *testing.T) {
	src := &fakeSource{}
	rec, pub := newTestRecorder(t, src)
	topic := config.Default().TopicAngle

	st, err := rec.Start()
	require.NoError(t, err)
	assert.Equal(t, "recording", st.State)
	assert.NotEmpty(t, st.SessionID)

	src.emit(3)
	assert.Eventually(t, func() bool { return len(pub.on(topic)) == 3 }, time.Second, 5*time.Millisecond)

	var first imu.AngleSample
	require.NoError(t, json.Unmarshal(pub.on(topic)[0], &first))
	assert.InDelta(t, 45, first.Angle1, 1e-9)
	assert.InDelta(t, 0.9, first.Angle2, 1e-9)

	final, err := rec.Stop()
	require.NoError(t, err)
	assert.Equal(t, "idle", final.State)
	assert.Equal(t, st.SessionID, final.SessionID)
	assert.Equal(t, 3, final.Stats.Emitted)
	assert.Empty(t, final.Error)
	assert.FileExists(t, final.AnglesFile)
	assert.FileExists(t, final.RawFile)

	statuses := pub.statuses(t)
	require.Len(t, statuses, 2)
	assert.Equal(t, "recording", statuses[0].State)
	assert.Equal(t, "idle", statuses[1].State)
	assert.Equal(t, final.AnglesFile, statuses[1].AnglesFile)
}

func TestRecorderSourceFailure(t *testing.T) {
	src := &fakeSource{}
	rec, pub := newTestRecorder(t, src)

	_, err := rec.Start()
	require.NoError(t, err)
	src.emit(2)
	src.fail(errors.New("link lost"))

	statusTopic := config.Default().TopicStatus
	assert.Eventually(t, func() bool { return len(pub.on(statusTopic)) == 2 }, time.Second, 5*time.Millisecond)
	st := rec.Status()
	assert.Equal(t, "idle", st.State)
	assert.Equal(t, "source failed", st.Message)
	assert.Contains(t, st.Error, "link lost")
	assert.FileExists(t, st.AnglesFile)

	// History of the failed session stays readable.
	assert.Len(t, rec.Pipeline().History(), 2)

	_, err = rec.Start()
	require.NoError(t, err)
	assert.Empty(t, rec.Pipeline().History())
}

func TestRecorderRestartExportsPreviousSession(t *testing.T) {
	src := &fakeSource{}
	rec, pub := newTestRecorder(t, src)

	first, err := rec.Start()
	require.NoError(t, err)
	src.emit(4)

	second, err := rec.Start()
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID, second.SessionID)

	statuses := pub.statuses(t)
	require.Len(t, statuses, 3)
	assert.Equal(t, first.SessionID, statuses[1].SessionID)
	assert.Equal(t, 4, statuses[1].Stats.Emitted)
	assert.FileExists(t, statuses[1].AnglesFile)
}

func TestRecorderStartFailures(t *testing.T) {
	src := &fakeSource{startErr: errors.New("port busy")}
	rec, _ := newTestRecorder(t, src)

	st, err := rec.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, imu.ErrSourceUnavailable)
	assert.Equal(t, "idle", st.State)
	assert.Contains(t, st.Error, "port busy")

	rec.newSource = func(*config.Config) (imu.Source, error) {
		return nil, errors.New("no device")
	}
	st, err = rec.Start()
	require.Error(t, err)
	assert.Contains(t, st.Error, "no device")

	st, err = rec.Stop()
	require.NoError(t, err, "stopping an idle recorder is a no-op")
	assert.Equal(t, "idle", st.State)
}

func TestRecorderPublishErrorsDoNotStopSession(t *testing.T) {
	src := &fakeSource{}
	rec, pub := newTestRecorder(t, src)
	pub.err = errors.New("broker down")

	_, err := rec.Start()
	require.NoError(t, err)
	src.emit(5)

	final, err := rec.Stop()
	require.NoError(t, err)
	assert.Equal(t, 5, final.Stats.Emitted)
	assert.Empty(t, final.Error)
}

func TestNewSource(t *testing.T) {
	cfg := config.Default()

	src, err := NewSource(cfg)
	require.NoError(t, err)
	assert.IsType(t, &sources.Mock{}, src)

	cfg.Source = config.SourceMQTT
	src, err = NewSource(cfg)
	require.NoError(t, err)
	assert.IsType(t, &sources.MQTT{}, src)

	cfg.Source = config.SourceSerial
	src, err = NewSource(cfg)
	require.NoError(t, err)
	assert.IsType(t, &sources.Serial{}, src)

	cfg.Source = "pigeon"
	_, err = NewSource(cfg)
	assert.ErrorIs(t, err, imu.ErrSourceUnavailable)
}

func TestPublishJSONWrapsErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("offline")}
	err := publishJSON(pub, "a/b", map[string]int{"x": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a/b")
	assert.Equal(t, [][]byte{[]byte(`{"x":1}`)}, pub.on("a/b"))

	assert.Error(t, publishJSON(pub, "a/b", func() {}))
}
