package audio

import (
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV writes w as a mono 16 bit PCM WAV file.
func EncodeWAV(ws io.WriteSeeker, w Waveform) error {
	if w.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", w.SampleRate)
	}
	data := make([]int, len(w.Samples))
	for i, s := range w.Samples {
		data[i] = int(s)
	}
	enc := wav.NewEncoder(ws, w.SampleRate, BitsPerSample, Channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{SampleRate: w.SampleRate, NumChannels: Channels},
		Data:           data,
		SourceBitDepth: BitsPerSample,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("writing samples: %v", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("writing wav header: %v", err)
	}
	return nil
}

// Convert decodes the recording at src and writes it to dst as a WAV file.
// Src may be raw or already WAV.
func Convert(src, dst string) (rerr error) {
	w, err := DecodeFile(src)
	if err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil && rerr == nil {
			rerr = err
		}
	}()
	return EncodeWAV(f, w)
}
