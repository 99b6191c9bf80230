package main

import (
	"io"

	"github.com/sirupsen/logrus"

	emotion "github.com/edgeimpulse/emotion-go"
	"github.com/edgeimpulse/emotion-go/audio"
	"github.com/edgeimpulse/emotion-go/ingest"
	"github.com/edgeimpulse/emotion-go/present"
	"github.com/edgeimpulse/emotion-go/session"
)

// terminal returns the display writing to out.
func (a *app) terminal(out io.Writer) *present.Terminal {
	return &present.Terminal{
		Out:       out,
		ImagePath: a.conf.Display.Path,
		Width:     a.conf.Display.Width,
		Height:    a.conf.Display.Height,
	}
}

// newPipeline returns the pipeline presenting on ui. Classifier may be nil.
// Callers must call the returned close function.
func (a *app) newPipeline(ui *present.UI, classifier *emotion.Classifier) (*session.Pipeline, func(), error) {
	var icons present.IconSource
	closeIcons := func() {}
	ic, err := present.OpenIcons(a.conf.Icons, a.log)
	if err != nil {
		a.log.WithError(err).WithField("icons", a.conf.Icons).Warn("no icons, showing text only")
	} else {
		icons = ic
		closeIcons = func() { ic.Close() }
	}

	p := &session.Pipeline{
		Presenter: present.NewPresenter(ui, icons, a.log),
	}
	if classifier != nil {
		shape := classifier.InputShape()
		p.Extractor = audio.LogSpectrogram{Height: shape.Height, Width: shape.Width}
		p.Classifier = classifier
	}

	if ingestConf := a.conf.Ingest; ingestConf.Enabled() {
		collector, err := ingest.NewCollector(ingestConf.APIKey, ingestConf.HMACKey, ingestConf.BaseURL)
		if err != nil {
			closeIcons()
			return nil, nil, err
		}
		p.Uploader = &ingest.RecordingUploader{
			Collector:  collector,
			DeviceName: ingestConf.DeviceName,
			Category:   ingestConf.Category,
			Log:        a.log,
		}
		a.log.WithFields(logrus.Fields{
			"url":      collector.IngestionBaseURL,
			"category": ingestConf.Category,
		}).Info("uploading classified recordings")
	}
	return p, closeIcons, nil
}
