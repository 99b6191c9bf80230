package audio

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Normalize maps 16 bit samples to floats by dividing by 32767. No clamping
// is applied, so -32768 maps to slightly below -1.
func Normalize(samples []int16) []float32 {
	r := make([]float32, len(samples))
	for i, s := range samples {
		r[i] = float32(s) / 32767.0
	}
	return r
}

// FeatureExtractor turns normalized samples into the flat, row-major
// spectrogram a model takes as input.
type FeatureExtractor interface {
	Extract(samples []float32, sampleRate int) ([]float32, error)
}

// LogSpectrogram is a FeatureExtractor producing Height frames (rows) of
// Width log-magnitude frequency bins (columns).
//
// Each frame is a Hann-windowed real FFT of length 2*(Width-1). The frames
// are spread evenly over the clip. Clips shorter than one FFT are zero
// padded.
type LogSpectrogram struct {
	Height int
	Width  int
}

var _ FeatureExtractor = LogSpectrogram{}

const logFloor = 1e-6

// Extract returns Height*Width values.
func (s LogSpectrogram) Extract(samples []float32, sampleRate int) ([]float32, error) {
	if s.Height <= 0 || s.Width <= 0 {
		return nil, fmt.Errorf("invalid spectrogram shape %dx%d", s.Height, s.Width)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples")
	}

	nfft := 2 * (s.Width - 1)
	if nfft < 1 {
		nfft = 1
	}
	fft := fourier.NewFFT(nfft)
	window := hann(nfft)

	hop := 1
	if s.Height > 1 && len(samples) > nfft {
		hop = (len(samples) - nfft) / (s.Height - 1)
		if hop < 1 {
			hop = 1
		}
	}

	out := make([]float32, s.Height*s.Width)
	frame := make([]float64, nfft)
	coeff := make([]complex128, nfft/2+1)
	for i := 0; i < s.Height; i++ {
		off := i * hop
		for k := range frame {
			var v float64
			if off+k < len(samples) {
				v = float64(samples[off+k])
			}
			frame[k] = v * window[k]
		}
		coeff = fft.Coefficients(coeff, frame)
		row := out[i*s.Width : (i+1)*s.Width]
		for j := range row {
			row[j] = float32(math.Log(cmplx.Abs(coeff[j]) + logFloor))
		}
	}
	return out, nil
}

// hann returns a periodic Hann window of length n.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}
