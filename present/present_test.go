package present

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	emotion "github.com/edgeimpulse/emotion-go"
)

// recordingDisplay remembers what was shown.
type recordingDisplay struct {
	mutex   sync.Mutex
	buttons []string
	texts   []string
	images  []image.Image
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

func (d *recordingDisplay) ShowImage(img image.Image) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.images = append(d.images, img)
}

func (d *recordingDisplay) Toast(msg string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.toasts = append(d.toasts, msg)
}

type mapIcons map[string]image.Image

func (m mapIcons) Lookup(label string) (image.Image, error) {
	img, ok := m[label]
	if !ok {
		return nil, errors.New("not found")
	}
	return img, nil
}

// flush waits until all work posted to ui before the call has run.
func flush(ui *UI) {
	done := make(chan struct{})
	ui.Post(func(Display) { close(done) })
	<-done
}

func startUI(t *testing.T, d Display) *UI {
	ui := NewUI(d)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go ui.Run(ctx)
	return ui
}

func TestPresentSad(t *testing.T) {
	d := &recordingDisplay{}
	ui := startUI(t, d)
	sad := image.NewGray(image.Rect(0, 0, 2, 2))
	p := NewPresenter(ui, mapIcons{"sad": sad}, logrus.New())

	r := p.Present(emotion.Scores{0.1, 0.05, 0.05, 0.05, 0.05, 0.6, 0.05, 0.05})
	assert.Equal(t, 5, r.Index)
	assert.Equal(t, emotion.Sad, r.Emotion)
	assert.Equal(t, "You seem to be sad.", r.Message)

	flush(ui)
	assert.Equal(t, []string{"You seem to be sad."}, d.texts)
	require.Len(t, d.images, 1)
	assert.Same(t, sad, d.images[0])
}

func TestPresentTie(t *testing.T) {
	d := &recordingDisplay{}
	ui := startUI(t, d)
	p := NewPresenter(ui, nil, logrus.New())

	r := p.Present(emotion.Scores{0.5, 0.9, 0.9, 0.1, 0, 0, 0, 0})
	assert.Equal(t, 1, r.Index)
	assert.Equal(t, emotion.Disgust, r.Emotion)
	flush(ui)
	assert.Equal(t, []string{"You seem to be disgust."}, d.texts)
	assert.Empty(t, d.images)
}

func TestPresentMissingIconFailsClosed(t *testing.T) {
	d := &recordingDisplay{}
	ui := startUI(t, d)
	log, hook := test.NewNullLogger()
	p := NewPresenter(ui, mapIcons{}, log)

	r := p.Present(emotion.Scores{0, 0, 0, 1, 0, 0, 0, 0})
	assert.Nil(t, r.Icon)
	flush(ui)
	assert.Equal(t, []string{"You seem to be happy."}, d.texts)
	assert.Empty(t, d.images)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestUIRunsInOrder(t *testing.T) {
	d := &recordingDisplay{}
	ui := startUI(t, d)
	for _, l := range []string{StartLabel, StopLabel, StartLabel} {
		l := l
		ui.Post(func(d Display) { d.SetButton(l) })
	}
	flush(ui)
	assert.Equal(t, []string{StartLabel, StopLabel, StartLabel}, d.buttons)
}

func writeIcon(t *testing.T, path string, c color.Color) {
	img := imaging.New(40, 20, c)
	require.NoError(t, imaging.Save(img, path))
}

func TestIcons(t *testing.T) {
	dir := t.TempDir()
	writeIcon(t, filepath.Join(dir, "happy.png"), color.White)
	writeIcon(t, filepath.Join(dir, "sad.jpg"), color.Black)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	ic, err := OpenIcons(dir, logrus.New())
	require.NoError(t, err)
	defer ic.Close()

	img, err := ic.Lookup("happy")
	require.NoError(t, err)
	assert.Equal(t, image.Pt(40, 20), img.Bounds().Size())

	_, err = ic.Lookup("sad")
	assert.NoError(t, err)
	_, err = ic.Lookup("notes")
	assert.Error(t, err)
	_, err = ic.Lookup("calm")
	assert.Error(t, err)

	writeIcon(t, filepath.Join(dir, "calm.png"), color.White)
	assert.Eventually(t, func() bool {
		_, err := ic.Lookup("calm")
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestOpenIconsMissingDir(t *testing.T) {
	_, err := OpenIcons(filepath.Join(t.TempDir(), "missing"), logrus.New())
	assert.Error(t, err)
}

func TestTerminal(t *testing.T) {
	var out bytes.Buffer
	path := filepath.Join(t.TempDir(), "emotion.png")
	term := &Terminal{Out: &out, ImagePath: path, Width: 10, Height: 10}

	term.SetButton(StopLabel)
	assert.Equal(t, StopLabel, term.Button())
	term.ShowText("You seem to be calm.")
	term.Toast("Permission granted to record audio.")
	term.ShowImage(imaging.New(40, 20, color.White))

	assert.Contains(t, out.String(), "[Stop Recording]")
	assert.Contains(t, out.String(), "You seem to be calm.\n")
	assert.Contains(t, out.String(), "* Permission granted to record audio.\n")

	img, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(10, 5), img.Bounds().Size())
}

func TestUIFlush(t *testing.T) {
	d := &recordingDisplay{}
	ui := NewUI(d)
	p := NewPresenter(ui, nil, logrus.New())
	p.Present(emotion.Scores{0, 0, 0, 0.9})
	ui.Post(func(d Display) { d.SetButton(StartLabel) })

	ui.Flush()
	assert.Equal(t, []string{"You seem to be happy."}, d.texts)
	assert.Equal(t, []string{StartLabel}, d.buttons)
	assert.Empty(t, d.images)
	ui.Flush()
}
