package audio

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	emotion "github.com/edgeimpulse/emotion-go"
)

type readStep struct {
	n    int
	err  error
	stop bool // Clear the active flag during this read.
}

// scriptedReader returns reads as scripted, filling data with the step
// index. After the script ends, it stops and returns io.EOF.
type scriptedReader struct {
	steps   []readStep
	active  *atomic.Bool
	maxRead int
	calls   int
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	if len(p) > r.maxRead {
		r.maxRead = len(p)
	}
	if r.calls >= len(r.steps) {
		r.active.Store(false)
		return 0, io.EOF
	}
	s := r.steps[r.calls]
	r.calls++
	for i := 0; i < s.n; i++ {
		p[i] = byte(r.calls)
	}
	if s.stop {
		r.active.Store(false)
	}
	return s.n, s.err
}

func TestCaptureWritesExactlyBytesRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recording.wav")
	var active atomic.Bool
	active.Store(true)
	r := &scriptedReader{
		steps: []readStep{
			{n: 4},
			{n: 0},
			{n: BufferSize},
			{n: 0},
			{n: 2, stop: true},
			{n: 100}, // Never read, flag is off.
		},
		active: &active,
	}
	buf := make([]byte, BufferSize*2)

	n, err := Capture(r, path, &active, buf, logrus.New())
	require.NoError(t, err)
	assert.Equal(t, int64(4+BufferSize+2), n)
	assert.Equal(t, 5, r.calls)
	assert.Equal(t, BufferSize, r.maxRead, "must never read more than BufferSize per iteration")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, 4+BufferSize+2)
	assert.Equal(t, []byte{1, 1, 1, 1}, data[:4])
	assert.Equal(t, byte(3), data[4])
	assert.Equal(t, []byte{5, 5}, data[len(data)-2:])
}

func TestCaptureNotActive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recording.wav")
	var active atomic.Bool
	r := &scriptedReader{steps: []readStep{{n: 10}}, active: &active}

	n, err := Capture(r, path, &active, make([]byte, BufferSize), logrus.New())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, r.calls)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, fi.Size())
}

func TestCaptureTruncatesPreviousRecording(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recording.wav")
	require.NoError(t, os.WriteFile(path, make([]byte, 1000), 0o644))

	var active atomic.Bool
	active.Store(true)
	r := &scriptedReader{steps: []readStep{{n: 6, stop: true}}, active: &active}
	_, err := Capture(r, path, &active, make([]byte, BufferSize), logrus.New())
	require.NoError(t, err)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(6), fi.Size())
}

func TestCaptureReadErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recording.wav")
	log, hook := test.NewNullLogger()

	// Device closed by stop: data returned with the error is kept, nothing logged.
	var active atomic.Bool
	active.Store(true)
	r := &scriptedReader{steps: []readStep{{n: 8}, {n: 2, err: os.ErrClosed, stop: true}}, active: &active}
	n, err := Capture(r, path, &active, make([]byte, BufferSize), log)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
	assert.Empty(t, hook.AllEntries())

	// Device failing while recording ends the recording, with a warning.
	active.Store(true)
	r = &scriptedReader{steps: []readStep{{n: 8}, {err: errors.New("device gone")}, {n: 8}}, active: &active}
	n, err = Capture(r, path, &active, make([]byte, BufferSize), log)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestCaptureFileOpenError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "recording.wav")
	var active atomic.Bool
	active.Store(true)
	r := &scriptedReader{steps: []readStep{{n: 8}}, active: &active}

	_, err := Capture(r, path, &active, make([]byte, BufferSize), logrus.New())
	assert.ErrorIs(t, err, emotion.ErrFileWrite)
	assert.Zero(t, r.calls, "no audio is captured when the file cannot be created")
}
