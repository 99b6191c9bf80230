package emotion

import (
	"errors"
	"fmt"
)

// Classifier feeds spectrograms to a model and reads back emotion scores.
// The classifier does not own the model, callers close it separately.
type Classifier struct {
	model  Model
	shape  InputShape
	output Tensor // [1, number of model labels]
	index  []int  // Model output position to index in Emotions.
}

// NewClassifier checks that model scores exactly the emotions in Emotions
// and has a spectrogram input shape. The model's labels may come in any
// order.
func NewClassifier(model Model) (*Classifier, error) {
	mp := model.ModelParameters()
	shape := mp.InputShape()
	if shape.Height <= 0 || shape.Width <= 0 {
		return nil, fmt.Errorf("%w: invalid input shape %dx%d", ErrModelLoad, shape.Height, shape.Width)
	}
	if len(mp.Labels) != NumEmotions {
		return nil, fmt.Errorf("%w: model has %d labels, expected %d", ErrModelLoad, len(mp.Labels), NumEmotions)
	}

	index := make([]int, len(mp.Labels))
	seen := map[int]bool{}
	for i, label := range mp.Labels {
		j := Emotion(label).Index()
		if j < 0 {
			return nil, fmt.Errorf("%w: unknown label %q", ErrModelLoad, label)
		}
		if seen[j] {
			return nil, fmt.Errorf("%w: duplicate label %q", ErrModelLoad, label)
		}
		seen[j] = true
		index[i] = j
	}

	c := &Classifier{
		model:  model,
		shape:  shape,
		output: NewTensor(1, len(mp.Labels)),
		index:  index,
	}
	return c, nil
}

// InputShape returns the spectrogram shape the model expects.
func (c *Classifier) InputShape() InputShape {
	return c.shape
}

// Classify reshapes the flat, row-major spectrogram to [1, height, width],
// runs the model on it and returns the scores. Errors wrap ErrInference.
//
// Classify reuses an internal output buffer and must not be called
// concurrently.
func (c *Classifier) Classify(spectrogram []float32) (Scores, error) {
	var scores Scores
	if len(spectrogram) != c.shape.Len() {
		return scores, fmt.Errorf("%w: spectrogram has %d values, model expects %dx%d", ErrInference, len(spectrogram), c.shape.Height, c.shape.Width)
	}
	input, err := Tensor{Data: spectrogram}.Reshape(1, c.shape.Height, c.shape.Width)
	if err != nil {
		return scores, fmt.Errorf("%w: %v", ErrInference, err)
	}

	for i := range c.output.Data {
		c.output.Data[i] = 0
	}
	if err := c.model.Infer(input, c.output); err != nil {
		if !errors.Is(err, ErrInference) {
			err = fmt.Errorf("%w: %v", ErrInference, err)
		}
		return scores, err
	}
	for i, v := range c.output.Data {
		scores[c.index[i]] = v
	}
	return scores, nil
}
