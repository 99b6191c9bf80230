package session

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	emotion "github.com/edgeimpulse/emotion-go"
	"github.com/edgeimpulse/emotion-go/audio"
	"github.com/edgeimpulse/emotion-go/present"
)

// Classifier turns a flat spectrogram into emotion scores.
type Classifier interface {
	Classify(spectrogram []float32) (emotion.Scores, error)
}

var _ Classifier = (*emotion.Classifier)(nil)

// Uploader stores a classified recording elsewhere, eg for training.
type Uploader interface {
	Upload(ctx context.Context, sessionID string, w audio.Waveform, e emotion.Emotion) error
}

// Pipeline turns a finished recording into a result on the display:
// decode, normalize, extract features, classify, present. The stages run
// strictly in sequence on the calling goroutine.
type Pipeline struct {
	Extractor audio.FeatureExtractor

	// Nil if the model failed to load. Every recording then fails with
	// emotion.ErrInference.
	Classifier Classifier

	Presenter *present.Presenter

	// Optional.
	Uploader Uploader
}

// Process runs the pipeline on the recording at path. Any error aborts the
// pipeline, and nothing is presented.
func (p *Pipeline) Process(ctx context.Context, sessionID, path string, log logrus.FieldLogger) (present.Result, error) {
	w, err := audio.DecodeFile(path)
	if err != nil {
		return present.Result{}, err
	}
	log.WithField("samples", len(w.Samples)).Debug("decoded recording")

	if p.Classifier == nil {
		return present.Result{}, fmt.Errorf("%w: no model loaded", emotion.ErrInference)
	}

	samples := audio.Normalize(w.Samples)
	spectrogram, err := p.Extractor.Extract(samples, w.SampleRate)
	if err != nil {
		return present.Result{}, fmt.Errorf("%w: extracting features: %v", emotion.ErrInference, err)
	}
	scores, err := p.Classifier.Classify(spectrogram)
	if err != nil {
		return present.Result{}, err
	}

	r := p.Presenter.Present(scores)

	if p.Uploader != nil {
		if err := p.Uploader.Upload(ctx, sessionID, w, r.Emotion); err != nil {
			log.WithError(err).Warn("uploading recording")
		}
	}
	return r, nil
}
