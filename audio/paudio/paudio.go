// Package paudio implements an audio recorder on the default input device
// using PortAudio, without an external recording program.
package paudio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gordonklaus/portaudio"

	emotion "github.com/edgeimpulse/emotion-go"
	"github.com/edgeimpulse/emotion-go/audio"
)

// FramesPerBuffer is the number of samples read from PortAudio at once.
const FramesPerBuffer = 1024

var errClosed = errors.New("recorder closed")

// Recorder reads from a PortAudio input stream.
type Recorder struct {
	mutex   sync.Mutex // Serializes stream reads with Close.
	stream  *portaudio.Stream
	samples []int16
	pending []byte // Bytes of the last stream read not yet returned by Read.
	buf     []byte
	closed  bool
}

// Ensure that Recorder implements the Recorder interface.
var _ audio.Recorder = (*Recorder)(nil)

// NewRecorder initializes PortAudio, and opens and starts the default input
// stream. Errors wrap emotion.ErrCaptureOpen.
// Callers must call Close to release PortAudio.
func NewRecorder() (*Recorder, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: portaudio init: %v", emotion.ErrCaptureOpen, err)
	}

	r := &Recorder{
		samples: make([]int16, FramesPerBuffer),
		buf:     make([]byte, 2*FramesPerBuffer),
	}
	stream, err := portaudio.OpenDefaultStream(audio.Channels, 0, float64(audio.SampleRate), FramesPerBuffer, r.samples)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: open default input stream: %v", emotion.ErrCaptureOpen, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: start input stream: %v", emotion.ErrCaptureOpen, err)
	}
	r.stream = stream
	return r, nil
}

// Reader returns a source of little endian 16 bit samples.
func (r *Recorder) Reader() io.Reader {
	return r
}

// Read returns recorded bytes, reading from the stream when no earlier bytes
// are pending.
func (r *Recorder) Read(p []byte) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return 0, errClosed
	}
	if len(r.pending) == 0 {
		if err := r.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
			return 0, fmt.Errorf("reading input stream: %v", err)
		}
		for i, s := range r.samples {
			binary.LittleEndian.PutUint16(r.buf[2*i:], uint16(s))
		}
		r.pending = r.buf
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// Close stops the stream and terminates PortAudio. Reads after Close fail.
func (r *Recorder) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	err := r.stream.Stop()
	r.stream.Close()
	portaudio.Terminate()
	return err
}

// ListDevices returns the PortAudio devices with input channels.
func ListDevices() ([]audio.Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %v", err)
	}
	defer portaudio.Terminate()

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %v", err)
	}
	var l []audio.Device
	for i, info := range infos {
		if info.MaxInputChannels <= 0 {
			continue
		}
		name := info.Name
		if info.HostApi != nil {
			name = fmt.Sprintf("%s (%s)", info.Name, info.HostApi.Name)
		}
		l = append(l, audio.Device{ID: fmt.Sprintf("%d", i), Name: name})
	}
	return l, nil
}
