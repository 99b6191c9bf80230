package ingest

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	emotion "github.com/edgeimpulse/emotion-go"
	"github.com/edgeimpulse/emotion-go/audio"
)

// DeviceType identifies uploads from this program.
const DeviceType = "EMOREC"

// RecordingPayload returns a payload with one "audio" sensor holding the
// raw sample values of w.
func RecordingPayload(deviceName string, w audio.Waveform) CollectPayload {
	p := CollectPayload{
		DeviceName: deviceName,
		DeviceType: DeviceType,
		IntervalMS: 1000 / float64(w.SampleRate),
		Sensors:    []Sensor{{Name: "audio", Units: "wav"}},
		Values:     make([][]float64, len(w.Samples)),
	}
	for i, s := range w.Samples {
		p.Values[i] = []float64{float64(s)}
	}
	return p
}

// RecordingUploader uploads classified recordings, labelled with the
// predicted emotion, so a person can review them before training.
type RecordingUploader struct {
	Collector  *Collector
	DeviceName string
	Category   string // "training", "testing" or "split". Default "split".
	Log        logrus.FieldLogger
}

// Upload sends the recording of a session. The sample is named after the
// session.
func (u *RecordingUploader) Upload(ctx context.Context, sessionID string, w audio.Waveform, e emotion.Emotion) error {
	category := u.Category
	if category == "" {
		category = "split"
	}
	payload := RecordingPayload(u.DeviceName, w)
	name, err := u.Collector.Upload(ctx, "emorec-"+sessionID, category, payload, &UploadOpts{Label: string(e)})
	if err != nil {
		return fmt.Errorf("uploading recording: %w", err)
	}
	if u.Log != nil {
		u.Log.WithFields(logrus.Fields{"session": sessionID, "sample": name, "label": e}).Info("uploaded recording")
	}
	return nil
}
