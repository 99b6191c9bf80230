package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	emotion "github.com/edgeimpulse/emotion-go"
	"github.com/edgeimpulse/emotion-go/audio"
	"github.com/edgeimpulse/emotion-go/present"
)

type recordingDisplay struct {
	mutex   sync.Mutex
	buttons []string
	texts   []string
	toasts  []string
}

func (d *recordingDisplay) SetButton(label string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.buttons = append(d.buttons, label)
}

func (d *recordingDisplay) ShowText(msg string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.texts = append(d.texts, msg)
}

func (d *recordingDisplay) ShowImage(img image.Image) {}

func (d *recordingDisplay) Toast(msg string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.toasts = append(d.toasts, msg)
}

func (d *recordingDisplay) Texts() []string {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return append([]string(nil), d.texts...)
}

// pipeRecorder is a capture device fed through a pipe by the test.
type pipeRecorder struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func newPipeRecorder() *pipeRecorder {
	r, w := io.Pipe()
	return &pipeRecorder{r, w}
}

func (p *pipeRecorder) Reader() io.Reader { return p.r }
func (p *pipeRecorder) Close() error      { return p.r.Close() }

type fakePermission struct {
	granted  bool
	requests int
}

func (p *fakePermission) Granted() bool              { return p.granted }
func (p *fakePermission) Request(d present.Display) { p.requests++ }

type fakeClassifier struct {
	scores emotion.Scores
	err    error
	block  chan struct{} // If not nil, Classify waits for it to close.
	calls  int
}

func (c *fakeClassifier) Classify(spectrogram []float32) (emotion.Scores, error) {
	if c.block != nil {
		<-c.block
	}
	c.calls++
	return c.scores, c.err
}

type fixture struct {
	ctrl       *Controller
	display    *recordingDisplay
	ui         *present.UI
	recorders  []*pipeRecorder
	opens      int
	openErr    error
	permission *fakePermission
	classifier *fakeClassifier
	path       string
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		display:    &recordingDisplay{},
		permission: &fakePermission{granted: true},
		classifier: &fakeClassifier{scores: emotion.Scores{0.1, 0.05, 0.05, 0.05, 0.05, 0.6, 0.05, 0.05}},
		path:       filepath.Join(t.TempDir(), "recording.wav"),
	}
	f.ui = present.NewUI(f.display)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go f.ui.Run(ctx)

	log := logrus.New()
	log.SetOutput(io.Discard)
	pipeline := &Pipeline{
		Extractor:  audio.LogSpectrogram{Height: 2, Width: 3},
		Classifier: f.classifier,
		Presenter:  present.NewPresenter(f.ui, nil, log),
	}
	open := func() (audio.Recorder, error) {
		f.opens++
		if f.openErr != nil {
			return nil, f.openErr
		}
		r := newPipeRecorder()
		f.recorders = append(f.recorders, r)
		return r, nil
	}
	f.ctrl = NewController(ctx, open, f.permission, pipeline, f.path, log)
	return f
}

// flush waits for all work posted to the UI so far.
func (f *fixture) flush() {
	done := make(chan struct{})
	f.ui.Post(func(present.Display) { close(done) })
	<-done
}

func TestSession(t *testing.T) {
	f := newFixture(t)

	f.ctrl.Toggle(f.display)
	assert.Equal(t, Recording, f.ctrl.State())
	assert.Equal(t, []string{present.StopLabel}, f.display.buttons)
	require.Len(t, f.recorders, 1)

	_, err := f.recorders[0].w.Write(make([]byte, 3200))
	require.NoError(t, err)

	f.ctrl.Toggle(f.display)
	assert.Equal(t, Idle, f.ctrl.State())
	assert.Equal(t, []string{present.StopLabel, present.StartLabel}, f.display.buttons)

	f.ctrl.Wait()
	f.flush()
	assert.Equal(t, []string{"You seem to be sad."}, f.display.Texts())

	fi, err := os.Stat(f.path)
	require.NoError(t, err)
	assert.Equal(t, int64(3200), fi.Size())
}

func TestStartWhileRecordingIsNoop(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Start(f.display)
	f.ctrl.Start(f.display)
	assert.Equal(t, 1, f.opens)
	assert.Equal(t, []string{present.StopLabel}, f.display.buttons)

	f.ctrl.Stop(f.display)
	f.ctrl.Stop(f.display)
	assert.Equal(t, []string{present.StopLabel, present.StartLabel}, f.display.buttons)
	f.ctrl.Wait()
}

func TestStartStopWithoutAudio(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Start(f.display)
	f.ctrl.Stop(f.display)
	f.ctrl.Wait()
	f.flush()

	assert.Empty(t, f.display.Texts(), "empty recording must not show a result")
	assert.Zero(t, f.classifier.calls)
}

func TestStartWithoutPermission(t *testing.T) {
	f := newFixture(t)
	f.permission.granted = false

	f.ctrl.Start(f.display)
	assert.Equal(t, Idle, f.ctrl.State())
	assert.Equal(t, 1, f.permission.requests)
	assert.Zero(t, f.opens)
	assert.Empty(t, f.display.buttons)
}

func TestStartOpenError(t *testing.T) {
	f := newFixture(t)
	f.openErr = emotion.ErrCaptureOpen

	f.ctrl.Start(f.display)
	assert.Equal(t, Idle, f.ctrl.State())
	assert.Empty(t, f.display.buttons)
	f.ctrl.Wait()
}

func TestInferenceErrorShowsNothing(t *testing.T) {
	f := newFixture(t)
	f.classifier.err = errors.New("engine failure")

	f.ctrl.Start(f.display)
	_, err := f.recorders[0].w.Write(make([]byte, 64))
	require.NoError(t, err)
	f.ctrl.Stop(f.display)
	f.ctrl.Wait()
	f.flush()

	assert.Equal(t, 1, f.classifier.calls)
	assert.Empty(t, f.display.Texts())
}

func TestStartWhileProcessingIsNoop(t *testing.T) {
	f := newFixture(t)
	f.classifier.block = make(chan struct{})

	f.ctrl.Start(f.display)
	_, err := f.recorders[0].w.Write(make([]byte, 64))
	require.NoError(t, err)
	f.ctrl.Stop(f.display)

	f.ctrl.Start(f.display)
	assert.Equal(t, Idle, f.ctrl.State())
	assert.Equal(t, 1, f.opens)
	assert.Equal(t, []string{BusyMessage}, f.display.toasts)

	close(f.classifier.block)
	f.ctrl.Wait()
	f.flush()
	assert.Equal(t, []string{"You seem to be sad."}, f.display.Texts())

	f.ctrl.Start(f.display)
	assert.Equal(t, Recording, f.ctrl.State())
	f.ctrl.Stop(f.display)
	f.ctrl.Wait()
}

// writeStale leaves an earlier session's recording at the fixture's path.
func (f *fixture) writeStale(t *testing.T) {
	require.NoError(t, os.WriteFile(f.path, make([]byte, 6400), 0o644))
}

func TestCaptureErrorShowsNothing(t *testing.T) {
	f := newFixture(t)
	f.writeStale(t)
	f.ctrl.capture = func(r io.Reader, path string, active *atomic.Bool, buf []byte, log logrus.FieldLogger) (int64, error) {
		return 0, fmt.Errorf("%w: disk full", emotion.ErrFileWrite)
	}

	f.ctrl.Start(f.display)
	f.ctrl.Stop(f.display)
	f.ctrl.Wait()
	f.flush()

	assert.Empty(t, f.display.Texts(), "earlier recording must not be shown")
	assert.Zero(t, f.classifier.calls)
}

func TestUnwritableRecordingShowsNothing(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions do not apply to root")
	}
	f := newFixture(t)
	f.writeStale(t)
	require.NoError(t, os.Chmod(f.path, 0o444))

	f.ctrl.Start(f.display)
	f.ctrl.Stop(f.display)
	f.ctrl.Wait()
	f.flush()

	assert.Empty(t, f.display.Texts(), "earlier recording must not be shown")
	assert.Zero(t, f.classifier.calls)
}

func TestPipelineWithoutModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recording.wav")
	require.NoError(t, os.WriteFile(path, make([]byte, 64), 0o644))

	p := &Pipeline{Extractor: audio.LogSpectrogram{Height: 2, Width: 3}}
	_, err := p.Process(context.Background(), "id", path, logrus.New())
	assert.ErrorIs(t, err, emotion.ErrInference)
}

type recordedUpload struct {
	id      string
	samples int
	emotion emotion.Emotion
}

type fakeUploader struct{ uploads []recordedUpload }

func (u *fakeUploader) Upload(ctx context.Context, sessionID string, w audio.Waveform, e emotion.Emotion) error {
	u.uploads = append(u.uploads, recordedUpload{sessionID, len(w.Samples), e})
	return errors.New("offline")
}

func TestPipelineUploads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recording.wav")
	require.NoError(t, os.WriteFile(path, make([]byte, 64), 0o644))

	d := &recordingDisplay{}
	ui := present.NewUI(d)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ui.Run(ctx)

	up := &fakeUploader{}
	p := &Pipeline{
		Extractor:  audio.LogSpectrogram{Height: 2, Width: 3},
		Classifier: &fakeClassifier{scores: emotion.Scores{0, 0, 0, 0, 0, 0, 0, 1}},
		Presenter:  present.NewPresenter(ui, nil, logrus.New()),
		Uploader:   up,
	}
	r, err := p.Process(ctx, "session-1", path, logrus.New())
	require.NoError(t, err, "upload failures are only logged")
	assert.Equal(t, emotion.Calm, r.Emotion)
	assert.Equal(t, []recordedUpload{{"session-1", 32, emotion.Calm}}, up.uploads)
}
