package emotion

import (
	"fmt"
)

// Trend is a moving average filter over scores, for following the mood
// across consecutive recordings.
type Trend struct {
	history []Scores
	index   int
	count   int // Number of valid entries in history.
	sum     [NumEmotions]float64
}

// NewTrend returns a new moving average filter with a history of given size.
func NewTrend(size int) (*Trend, error) {
	if size <= 0 {
		return nil, fmt.Errorf("size must be > 0")
	}
	return &Trend{history: make([]Scores, size)}, nil
}

// Update adds the scores of one recording, and returns the average over
// the history. Until the history is full, only the recordings seen so far
// are averaged.
func (t *Trend) Update(s Scores) Scores {
	old := t.history[t.index]
	for i := range s {
		t.sum[i] -= float64(old[i])
		t.sum[i] += float64(s[i])
	}
	t.history[t.index] = s
	t.index++
	if t.index >= len(t.history) {
		t.index = 0
	}
	if t.count < len(t.history) {
		t.count++
	}

	var r Scores
	for i, v := range t.sum {
		r[i] = float32(v / float64(t.count))
	}
	return r
}
