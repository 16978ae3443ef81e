package signal

import "math"

// rollingWindow is a fixed-capacity FIFO of float64 observations with
// running sum and sum of squares, so mean and population stddev are O(1)
// per push instead of a rescan of the window.
type rollingWindow struct {
	capacity int
	values   []float64
	head     int
	count    int
	sum      float64
	sumSq    float64
}

func newRollingWindow(capacity int) *rollingWindow {
	return &rollingWindow{
		capacity: capacity,
		values:   make([]float64, capacity),
	}
}

// push appends an observation, evicting the oldest one once full.
func (w *rollingWindow) push(v float64) {
	if w.count == w.capacity {
		evicted := w.values[w.head]
		w.sum -= evicted
		w.sumSq -= evicted * evicted
	} else {
		w.count++
	}
	w.values[w.head] = v
	w.sum += v
	w.sumSq += v * v
	w.head = (w.head + 1) % w.capacity
}

func (w *rollingWindow) full() bool {
	return w.count == w.capacity
}

func (w *rollingWindow) mean() float64 {
	if w.count == 0 {
		return 0
	}
	return w.sum / float64(w.count)
}

// stddev is the population standard deviation of the window.
func (w *rollingWindow) stddev() float64 {
	if w.count == 0 {
		return 0
	}
	mean := w.mean()
	variance := w.sumSq/float64(w.count) - mean*mean
	// running sums can drift a hair below zero on constant input
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// zScore returns how many standard deviations v lies from the window
// mean. The score is absent until the window is full; a constant window
// scores zero instead of propagating a division error.
func (w *rollingWindow) zScore(v float64) (float64, bool) {
	if !w.full() {
		return 0, false
	}
	std := w.stddev()
	if std == 0 {
		return 0, true
	}
	return (v - w.mean()) / std, true
}
