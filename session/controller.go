// Package session implements the recording session: a start/stop toggle
// that records the microphone to a file on a background goroutine, then
// runs the recording through the classification pipeline.
package session

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/edgeimpulse/emotion-go/audio"
	"github.com/edgeimpulse/emotion-go/present"
)

// State of a Controller.
type State int

const (
	Idle      State = iota // No session, the button starts one.
	Recording              // Capturing audio, the button stops.
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	}
	return "unknown"
}

// BusyMessage is shown when Start is ignored because the previous recording
// is still being processed.
const BusyMessage = "Still processing the previous recording."

// Opener opens the capture device.
type Opener func() (audio.Recorder, error)

// Controller holds the state of the recording session. There is at most one
// active session.
//
// Start, Stop and Toggle must be called from the UI goroutine, with the
// display it owns.
type Controller struct {
	ctx        context.Context
	open       Opener
	permission Permission
	pipeline   *Pipeline
	path       string
	log        logrus.FieldLogger
	capture    func(r io.Reader, path string, active *atomic.Bool, buf []byte, log logrus.FieldLogger) (int64, error)

	mutex    sync.Mutex
	state    State
	id       string
	active   *atomic.Bool   // Cleared to stop the capture loop of the current session.
	recorder audio.Recorder // Open while Recording.
	worker   chan struct{}  // Closed when the current session's worker is done. Nil while Idle.
	last     chan struct{}  // Worker of the most recent session.
}

// NewController returns an idle controller recording to path. Ctx is passed
// to the pipeline of every session.
func NewController(ctx context.Context, open Opener, permission Permission, pipeline *Pipeline, path string, log logrus.FieldLogger) *Controller {
	return &Controller{
		ctx:        ctx,
		open:       open,
		permission: permission,
		pipeline:   pipeline,
		path:       path,
		log:        log,
		capture:    audio.Capture,
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.state
}

// Toggle is the button press: start when idle, stop when recording.
func (c *Controller) Toggle(d present.Display) {
	if c.State() == Idle {
		c.Start(d)
	} else {
		c.Stop(d)
	}
}

// Start begins a session: opens the capture device and launches a worker
// that records until Stop, then processes the recording. Start does nothing
// while recording, or while the previous session is still being processed.
// Without microphone permission, Start requests it instead.
func (c *Controller) Start(d present.Display) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.state == Recording {
		return
	}
	if c.last != nil {
		select {
		case <-c.last:
		default:
			c.log.Info("still processing previous recording, not starting")
			d.Toast(BusyMessage)
			return
		}
	}
	if !c.permission.Granted() {
		c.permission.Request(d)
		return
	}

	id := uuid.NewString()
	log := c.log.WithFields(logrus.Fields{"session": id, "path": c.path})

	recorder, err := c.open()
	if err != nil {
		log.WithError(err).Error("starting recording")
		return
	}

	active := &atomic.Bool{}
	active.Store(true)
	buf := make([]byte, audio.BufferSize)
	done := make(chan struct{})

	c.state = Recording
	c.id = id
	c.active = active
	c.recorder = recorder
	c.worker = done
	c.last = done

	go c.work(id, recorder, active, buf, done, log)

	log.Info("recording")
	d.SetButton(present.StopLabel)
}

// Stop ends the session's recording. Stop does not wait for the worker,
// which processes the recording on its own. Stop does nothing when idle.
func (c *Controller) Stop(d present.Display) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.state != Recording {
		return
	}
	c.active.Store(false)
	if err := c.recorder.Close(); err != nil {
		c.log.WithError(err).WithField("session", c.id).Warn("closing capture device")
	}
	c.recorder = nil
	c.worker = nil
	c.active = nil
	c.state = Idle

	c.log.WithField("session", c.id).Info("stopped recording")
	d.SetButton(present.StartLabel)
}

// Wait blocks until the worker of the most recent session is done.
func (c *Controller) Wait() {
	c.mutex.Lock()
	last := c.last
	c.mutex.Unlock()
	if last != nil {
		<-last
	}
}

func (c *Controller) work(id string, recorder audio.Recorder, active *atomic.Bool, buf []byte, done chan struct{}, log logrus.FieldLogger) {
	defer close(done)

	n, err := c.capture(recorder.Reader(), c.path, active, buf, log)
	if err != nil {
		// The file may still hold an earlier session's recording.
		log.WithError(err).Error("capturing audio, not processing recording")
		return
	}
	log.WithField("bytes", n).Info("recording finished")

	r, err := c.pipeline.Process(c.ctx, id, c.path, log)
	if err != nil {
		log.WithError(err).Error("processing recording")
		return
	}
	log.WithField("emotion", r.Emotion).Info("processed recording")
}
