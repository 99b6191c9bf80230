// Package audiocmd implements reading audio samples by executing an external
// recording command: sox, rec or arecord.
package audiocmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"

	emotion "github.com/edgeimpulse/emotion-go"
	"github.com/edgeimpulse/emotion-go/audio"
)

var errSoxInstallHint = errors.New("sox executable not found, install with: sudo apt install -y sox")

// RecorderOpts holds option for a Recorder.
type RecorderOpts struct {
	RecordProgram string // "sox", "rec", "arecord"
	DeviceID      string // As returned by ListDevices. Empty for the default microphone.
	Log           logrus.FieldLogger
}

// recorderOptsDefault has default option values for a Recorder.
var recorderOptsDefault = RecorderOpts{
	RecordProgram: "sox",
}

// Recorder is a source of audio samples.
type Recorder struct {
	audio  io.ReadCloser
	opts   RecorderOpts
	cancel context.CancelFunc
}

// Ensure that Recorder implements the Recorder interface.
var _ audio.Recorder = (*Recorder)(nil)

// ListDevices returns audio recording devices available on the system.
func ListDevices() ([]audio.Device, error) {
	var r []audio.Device

	f, err := os.Open("/proc/asound/cards")
	if err == nil {
		defer f.Close()
		r, err = parseAsoundCards(f)
		if err != nil {
			return nil, err
		}
	} else if runtime.GOOS == "darwin" {
		cmd := exec.Command("sox", "-V6", "-n", "-t", "coreaudio", "doesnotexist")
		// The command is meant to fail, we just wants its output that lists the audio devices.
		output, err := cmd.CombinedOutput()
		if err != nil && errors.Is(err, exec.ErrNotFound) {
			return nil, errSoxInstallHint
		}
		r, err = parseSoxDevices(string(output))
		if err != nil {
			return nil, err
		}
	}
	if len(r) == 0 {
		r = []audio.Device{
			{
				ID:   "",
				Name: "Default microphone",
			},
		}
	}
	return r, nil
}

var asoundRegexp = regexp.MustCompile(`^[ \t]*([0-9]*) [^\]]*\]: (.*)$`)

func parseAsoundCards(f io.Reader) ([]audio.Device, error) {
	var r []audio.Device

	b := bufio.NewScanner(f)
	for b.Scan() {
		m := asoundRegexp.FindStringSubmatch(b.Text())
		if m != nil {
			r = append(r, audio.Device{
				ID:   fmt.Sprintf("hw:%s,0", m[1]),
				Name: m[2],
			})
		}
	}
	if err := b.Err(); err != nil {
		return nil, fmt.Errorf("parsing list of sound cards: %v", err)
	}
	return r, nil
}

var soxRegexp = regexp.MustCompile(`^sox INFO coreaudio: Found Audio Device "(.*)"$`)

func parseSoxDevices(s string) ([]audio.Device, error) {
	var r []audio.Device
	seen := map[string]struct{}{}

	lines := strings.Split(s, "\n")
	for _, line := range lines {
		m := soxRegexp.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		id := m[1]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		r = append(r, audio.Device{
			ID:   id,
			Name: id,
		})
	}
	return r, nil
}

// Args returns the command line arguments for the record program in opts,
// making it write raw audio in the fixed capture format to stdout.
func Args(opts RecorderOpts) ([]string, error) {
	rate := fmt.Sprintf("%d", audio.SampleRate)
	channels := fmt.Sprintf("%d", audio.Channels)
	bits := fmt.Sprintf("%d", audio.BitsPerSample)

	var args []string
	switch opts.RecordProgram {
	case "sox":
		args = []string{"-d"}
		if opts.DeviceID != "" {
			switch runtime.GOOS {
			case "linux":
				args = []string{"-t", "alsa", opts.DeviceID}
			case "darwin":
				args = []string{"-t", "coreaudio", opts.DeviceID}
			default:
				return nil, fmt.Errorf("cannot set deviceID on this OS")
			}
		}
		args = append(args,
			"-q", // show no progress
			"-r", rate,
			"-c", channels,
			"-e", "signed-integer", // sample encoding
			"-b", bits, // precision (bits)
			"-t", "raw",
			"-",
		)
	case "rec":
		args = []string{
			"-q", // show no progress
			"-r", rate,
			"-c", channels,
			"-e", "signed-integer",
			"-b", bits, // precision (bits)
			"-t", "raw",
			"-", // pipe
		}
	case "arecord":
		args = []string{
			"-q", // show no progress
			"-r", rate,
			"-c", channels,
			"-t", "raw",
			"-f", "S16_LE",
			"-", // pipe
		}
		if opts.DeviceID != "" {
			args = append([]string{"-D", opts.DeviceID}, args...)
		}
	default:
		return nil, fmt.Errorf("unknown RecordProgram %q", opts.RecordProgram)
	}
	return args, nil
}

// NewRecorder starts a new command that records audio samples.
// Recorder implements the audio.Recorder interface.
//
// Opts and its fields can be nil or zero, in which case default values are
// used. Errors wrap emotion.ErrCaptureOpen.
func NewRecorder(opts *RecorderOpts) (recorder *Recorder, rerr error) {
	var xopts RecorderOpts
	if opts != nil {
		xopts = *opts
	}
	if xopts.RecordProgram == "" {
		xopts.RecordProgram = recorderOptsDefault.RecordProgram
	}
	if xopts.Log == nil {
		xopts.Log = logrus.StandardLogger()
	}

	r := &Recorder{opts: xopts}

	// Ensure cleanup on failure.
	defer func() {
		if rerr != nil {
			r.Close()
			rerr = fmt.Errorf("%w: %v", emotion.ErrCaptureOpen, rerr)
		}
	}()

	args, err := Args(xopts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	cmd := exec.CommandContext(ctx, xopts.RecordProgram, args...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %v", err)
	}
	r.audio = out

	xopts.Log.WithFields(logrus.Fields{
		"program": xopts.RecordProgram,
		"device":  xopts.DeviceID,
		"command": strings.Join(append([]string{xopts.RecordProgram}, args...), " "),
	}).Debugf("recording %d channels with sample rate %d", audio.Channels, audio.SampleRate)

	if err := cmd.Start(); err != nil {
		if xopts.RecordProgram == "sox" && errors.Is(err, exec.ErrNotFound) {
			return nil, errSoxInstallHint
		}
		return nil, fmt.Errorf("starting recorder: %v", err)
	}
	go cmd.Wait()

	return r, nil
}

// Reader returns a source from which audio samples can be read.
func (r *Recorder) Reader() io.Reader {
	return r.audio
}

// Close stops the command recording audio, and prevents further successful reads on the audio source.
func (r *Recorder) Close() error {
	if r.cancel != nil {
		r.cancel()
	}
	if r.audio != nil {
		r.audio.Close()
	}
	return nil
}
