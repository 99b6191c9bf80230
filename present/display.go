// Package present shows classification results: a message and an icon for
// the predicted emotion, on a display owned by a single UI goroutine.
package present

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/disintegration/imaging"
)

// Button labels.
const (
	StartLabel = "Start Recording"
	StopLabel  = "Stop Recording"
)

// Display is the screen: a toggle button, a text field, an image field, and
// short notifications. A Display is only used from its UI goroutine.
type Display interface {
	SetButton(label string)
	ShowText(msg string)
	ShowImage(img image.Image)
	Toast(msg string)
}

// UI owns a Display. Other goroutines hand work to it with Post, which Run
// executes in order on the goroutine calling Run.
type UI struct {
	display Display
	work    chan func(Display)
}

// NewUI returns a UI for display. Call Run to start executing posted work.
func NewUI(display Display) *UI {
	return &UI{display, make(chan func(Display), 16)}
}

// Post queues fn to run on the UI goroutine. Post blocks while the queue is
// full.
func (u *UI) Post(fn func(Display)) {
	u.work <- fn
}

// Run executes posted work until ctx is done.
func (u *UI) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-u.work:
			fn(u.display)
		}
	}
}

// Flush executes the queued work on the calling goroutine without waiting
// for more. Only call Flush when Run is not running.
func (u *UI) Flush() {
	for {
		select {
		case fn := <-u.work:
			fn(u.display)
		default:
			return
		}
	}
}

// Terminal is a Display writing text to an io.Writer and images to a PNG
// file, scaled to fit within Width x Height pixels.
type Terminal struct {
	Out       io.Writer
	ImagePath string
	Width     int
	Height    int

	mutex  sync.Mutex
	button string
}

var _ Display = (*Terminal)(nil)

// SetButton shows the new label of the toggle button.
func (t *Terminal) SetButton(label string) {
	t.mutex.Lock()
	t.button = label
	t.mutex.Unlock()
	fmt.Fprintf(t.Out, "[%s] press enter\n", label)
}

// Button returns the current label of the toggle button.
func (t *Terminal) Button() string {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.button
}

// ShowText prints msg on its own line.
func (t *Terminal) ShowText(msg string) {
	fmt.Fprintln(t.Out, msg)
}

// ShowImage writes img to ImagePath. Failures are reported on Out.
func (t *Terminal) ShowImage(img image.Image) {
	if t.ImagePath == "" {
		return
	}
	if t.Width > 0 && t.Height > 0 {
		img = imaging.Fit(img, t.Width, t.Height, imaging.Lanczos)
	}
	if err := imaging.Save(img, t.ImagePath); err != nil {
		fmt.Fprintf(t.Out, "showing image: %v\n", err)
		return
	}
	fmt.Fprintf(t.Out, "(image: %s)\n", t.ImagePath)
}

// Toast prints msg as a bulleted notification.
func (t *Terminal) Toast(msg string) {
	fmt.Fprintf(t.Out, "* %s\n", msg)
}
