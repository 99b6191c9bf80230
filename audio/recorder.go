// Package audio captures microphone audio to a recording, decodes recordings
// back into samples, and turns samples into spectrogram features.
package audio

import (
	"io"
)

// Fixed capture format: 16kHz, mono, 16 bit signed little endian samples.
const (
	SampleRate     = 16000
	Channels       = 1
	BitsPerSample  = 16
	bytesPerSample = BitsPerSample / 8

	// BufferSize is the maximum number of bytes read from a recorder at
	// once.
	BufferSize = SampleRate * 2
)

// Recorder is a source of audio samples, in the fixed capture format.
type Recorder interface {
	// Reader returns a source from which audio samples can be read.
	Reader() io.Reader

	// Close shuts down the recorder prevent further successful reads from
	// the audio source.
	Close() error
}

// Device is an audio capture device.
type Device struct {
	ID   string
	Name string
}
