// Package emotion predicts the emotion of a speaker from a short audio clip,
// by running a pre-trained model process on a log-spectrogram of the clip.
package emotion

import (
	"fmt"
	"strings"
)

// Emotion is one of the labels the model scores.
type Emotion string

// The emotions, in the order of the model output.
const (
	Angry    Emotion = "angry"
	Disgust  Emotion = "disgust"
	Fear     Emotion = "fear"
	Happy    Emotion = "happy"
	Neutral  Emotion = "neutral"
	Sad      Emotion = "sad"
	Surprise Emotion = "surprise"
	Calm     Emotion = "calm"
)

// NumEmotions is the length of a score vector.
const NumEmotions = 8

// Emotions lists all labels, indexed positionally to match Scores.
var Emotions = [NumEmotions]Emotion{Angry, Disgust, Fear, Happy, Neutral, Sad, Surprise, Calm}

// Index returns the position of e in Emotions, or -1 if e is unknown.
func (e Emotion) Index() int {
	for i, x := range Emotions {
		if x == e {
			return i
		}
	}
	return -1
}

// Scores holds one model score per emotion, in the order of Emotions.
type Scores [NumEmotions]float32

// Argmax returns the index of the highest score. Ties resolve to the lowest
// index.
func (s Scores) Argmax() int {
	maxIndex := 0
	maxValue := s[0]
	for i := 1; i < len(s); i++ {
		if s[i] > maxValue {
			maxIndex = i
			maxValue = s[i]
		}
	}
	return maxIndex
}

// Best returns the emotion with the highest score.
func (s Scores) Best() Emotion {
	return Emotions[s.Argmax()]
}

// Map returns the scores keyed by label.
func (s Scores) Map() map[string]float64 {
	m := make(map[string]float64, len(s))
	for i, v := range s {
		m[string(Emotions[i])] = float64(v)
	}
	return m
}

// String returns the scores as label=value pairs in label order.
func (s Scores) String() string {
	kv := make([]string, len(s))
	for i, v := range s {
		kv[i] = fmt.Sprintf("%s=%.4f", Emotions[i], v)
	}
	return strings.Join(kv, " ")
}
