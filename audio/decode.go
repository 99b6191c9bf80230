package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/go-audio/wav"

	emotion "github.com/edgeimpulse/emotion-go"
)

// Waveform is a decoded recording.
type Waveform struct {
	Samples    []int16
	SampleRate int
}

// DecodeFile reads the recording at path. See Decode.
func DecodeFile(path string) (Waveform, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Waveform{}, fmt.Errorf("%w: %v", emotion.ErrDecode, err)
	}
	return Decode(buf)
}

// Decode decodes a recording into samples. Recordings as written by Capture
// are raw PCM in the fixed capture format, and must hold a whole, non-zero
// number of samples. Data starting with a RIFF/WAVE header is parsed as a
// WAV file instead, which must be 16 bit mono PCM with all samples its
// header declares present. Errors wrap emotion.ErrDecode.
func Decode(data []byte) (Waveform, error) {
	if isWAV(data) {
		return decodeWAV(data)
	}
	return decodeRaw(data)
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func decodeRaw(data []byte) (Waveform, error) {
	if len(data) == 0 {
		return Waveform{}, fmt.Errorf("%w: empty recording", emotion.ErrDecode)
	}
	if len(data)%bytesPerSample != 0 {
		return Waveform{}, fmt.Errorf("%w: %d bytes is not a whole number of %d-bit samples", emotion.ErrDecode, len(data), BitsPerSample)
	}
	samples := make([]int16, len(data)/bytesPerSample)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, samples); err != nil {
		return Waveform{}, fmt.Errorf("%w: %v", emotion.ErrDecode, err)
	}
	return Waveform{samples, SampleRate}, nil
}

func decodeWAV(data []byte) (Waveform, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return Waveform{}, fmt.Errorf("%w: reading wav header: %v", emotion.ErrDecode, err)
	}
	if d.WavAudioFormat != 1 {
		return Waveform{}, fmt.Errorf("%w: unsupported wav audio format %d, need PCM", emotion.ErrDecode, d.WavAudioFormat)
	}
	if d.NumChans != Channels || d.BitDepth != BitsPerSample {
		return Waveform{}, fmt.Errorf("%w: unsupported wav format, %d channels of %d bits, need %d channel of %d bits", emotion.ErrDecode, d.NumChans, d.BitDepth, Channels, BitsPerSample)
	}
	if err := d.FwdToPCM(); err != nil {
		return Waveform{}, fmt.Errorf("%w: finding pcm data: %v", emotion.ErrDecode, err)
	}
	n := d.PCMLen()
	if n <= 0 || n%bytesPerSample != 0 {
		return Waveform{}, fmt.Errorf("%w: wav data of %d bytes is not a whole number of samples", emotion.ErrDecode, n)
	}
	expected := int(n / bytesPerSample)

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("%w: reading pcm data: %v", emotion.ErrDecode, err)
	}
	if len(buf.Data) < expected {
		return Waveform{}, fmt.Errorf("%w: read %d samples, header declares %d", emotion.ErrDecode, len(buf.Data), expected)
	}
	samples := make([]int16, expected)
	for i := range samples {
		samples[i] = int16(buf.Data[i])
	}
	return Waveform{samples, int(d.SampleRate)}, nil
}
