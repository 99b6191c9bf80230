package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	emotion "github.com/edgeimpulse/emotion-go"
)

// Capture reads audio from r into buf and appends exactly the bytes read to
// the file at path, which is created or truncated first. Capture keeps
// reading until active is false. At most BufferSize bytes are read per
// iteration, empty reads are skipped.
//
// A read error after active became false is the normal end of a recording:
// the recorder was closed by whoever cleared the flag. A read error while
// still active ends the recording early, and is logged.
//
// Errors creating or writing the file wrap emotion.ErrFileWrite. Whatever
// was written before the error remains in the file.
func Capture(r io.Reader, path string, active *atomic.Bool, buf []byte, log logrus.FieldLogger) (written int64, rerr error) {
	if len(buf) > BufferSize {
		buf = buf[:BufferSize]
	}
	if len(buf) == 0 {
		return 0, fmt.Errorf("%w: empty capture buffer", emotion.ErrFileWrite)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", emotion.ErrFileWrite, err)
	}
	defer func() {
		if err := f.Close(); err != nil && rerr == nil {
			rerr = fmt.Errorf("%w: closing: %v", emotion.ErrFileWrite, err)
		}
	}()

	for active.Load() {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return written, fmt.Errorf("%w: %v", emotion.ErrFileWrite, werr)
			}
			written += int64(n)
		}
		if err == nil {
			continue
		}
		if active.Load() && !errors.Is(err, io.EOF) {
			log.WithError(err).Warn("reading audio, ending recording early")
		}
		break
	}
	return written, nil
}
