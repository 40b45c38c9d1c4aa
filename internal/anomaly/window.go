package anomaly

import (
	"math"
	"sync"
)

// Window is a fixed-capacity FIFO of the most recent observations of one
// metric. All methods are safe for concurrent use.
type Window struct {
	mu     sync.Mutex
	cap    int
	values []float64
}

// NewWindow returns an empty window holding at most capacity values.
// A non-positive capacity falls back to DefaultWindow.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindow
	}
	return &Window{cap: capacity, values: make([]float64, 0, capacity)}
}

// Push appends v, evicting the oldest value when full, and returns the
// window statistics including v. Append and statistics happen under one
// lock so concurrent pushes never observe a half-updated window.
func (w *Window) Push(v float64) Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.values) == w.cap {
		copy(w.values, w.values[1:])
		w.values = w.values[:w.cap-1]
	}
	w.values = append(w.values, v)
	return compute(w.values)
}

// Values returns a copy of the window in arrival order.
func (w *Window) Values() []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]float64(nil), w.values...)
}

func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.values)
}

// Stats are the population statistics of a window.
type Stats struct {
	N    int
	Mean float64
	Std  float64
}

func compute(values []float64) Stats {
	n := len(values)
	if n == 0 {
		return Stats{}
	}
	var sum float64
	constant := true
	for _, v := range values {
		sum += v
		constant = constant && v == values[0]
	}
	// identical observations have no spread; skip float noise from the sum
	if constant {
		return Stats{N: n, Mean: values[0]}
	}
	mean := sum / float64(n)
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return Stats{N: n, Mean: mean, Std: math.Sqrt(sq / float64(n))}
}
