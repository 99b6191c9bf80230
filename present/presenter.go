package present

import (
	"fmt"
	"image"

	"github.com/sirupsen/logrus"

	emotion "github.com/edgeimpulse/emotion-go"
)

// IconSource returns the image resource for a label.
type IconSource interface {
	Lookup(label string) (image.Image, error)
}

// Result is what was shown for a score vector.
type Result struct {
	Scores  emotion.Scores
	Index   int
	Emotion emotion.Emotion
	Message string
	Icon    image.Image // Nil if no icon could be found.
}

// Message returns the text shown for e.
func Message(e emotion.Emotion) string {
	return fmt.Sprintf("You seem to be %s.", e)
}

// Presenter turns scores into a message and icon on the UI.
type Presenter struct {
	ui    *UI
	icons IconSource
	log   logrus.FieldLogger
}

// NewPresenter returns a presenter showing results on ui. Icons may be nil,
// in which case only text is shown.
func NewPresenter(ui *UI, icons IconSource, log logrus.FieldLogger) *Presenter {
	return &Presenter{ui, icons, log}
}

// Present picks the highest scoring emotion and posts its message and icon
// to the UI. If the icon cannot be found, it is logged and only the text is
// updated.
func (p *Presenter) Present(scores emotion.Scores) Result {
	i := scores.Argmax()
	e := emotion.Emotions[i]
	r := Result{Scores: scores, Index: i, Emotion: e, Message: Message(e)}

	if p.icons != nil {
		img, err := p.icons.Lookup(string(e))
		if err != nil {
			p.log.WithError(err).WithField("emotion", e).Warn("looking up icon, not showing image")
		} else {
			r.Icon = img
		}
	}

	p.log.WithFields(logrus.Fields{"emotion": e, "scores": scores.String()}).Info("presenting result")
	p.ui.Post(func(d Display) {
		d.ShowText(r.Message)
		if r.Icon != nil {
			d.ShowImage(r.Icon)
		}
	})
	return r
}
