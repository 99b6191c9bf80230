package emotion

import (
	"errors"
)

// Failures of a recording session. Concrete errors wrap one of these, test
// with errors.Is. Every one of them is terminal for the session it occurs in.
var (
	// ErrModelLoad means the model could not be started. Inference is
	// unavailable for the lifetime of the process.
	ErrModelLoad = errors.New("loading model")

	// ErrCaptureOpen means the capture device could not be opened.
	ErrCaptureOpen = errors.New("opening capture device")

	// ErrFileWrite means the recording could not be created or written.
	ErrFileWrite = errors.New("writing recording")

	// ErrDecode means the recording could not be decoded into samples.
	ErrDecode = errors.New("decoding recording")

	// ErrInference means the model failed to produce scores.
	ErrInference = errors.New("running inference")
)
