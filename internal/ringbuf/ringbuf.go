// Package ringbuf provides a fixed-capacity trailing window of float64
// values. It is the per-ticker deque behind every rolling indicator: the
// window holds the last N observations and is read newest-first.
//
// A Window is not safe for concurrent use; each ticker owns its own.
package ringbuf

// Window keeps the most recent Cap() values pushed into it.
type Window struct {
	buf  []float64
	head int // index of the next write
	n    int // number of valid values (<= len(buf))
}

// New creates a window holding at most capacity values. Minimum capacity is 1.
func New(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]float64, capacity)}
}

// Push appends v, evicting the oldest value once the window is full.
func (w *Window) Push(v float64) {
	w.buf[w.head] = v
	w.head = (w.head + 1) % len(w.buf)
	if w.n < len(w.buf) {
		w.n++
	}
}

// Len returns the number of values currently held.
func (w *Window) Len() int { return w.n }

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Full reports whether the window holds Cap() values.
func (w *Window) Full() bool { return w.n == len(w.buf) }

// At returns the value offset positions back from the most recent one
// (offset 0 = most recent). It panics if offset >= Len().
func (w *Window) At(offset int) float64 {
	if offset < 0 || offset >= w.n {
		panic("ringbuf: offset out of range")
	}
	idx := w.head - 1 - offset
	if idx < 0 {
		idx += len(w.buf)
	}
	return w.buf[idx]
}

// Newest copies the n most recent values, newest first. If fewer than n
// values are held, all of them are returned.
func (w *Window) Newest(n int) []float64 {
	if n > w.n {
		n = w.n
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = w.At(i)
	}
	return out
}

// Reset empties the window.
func (w *Window) Reset() {
	w.head = 0
	w.n = 0
	for i := range w.buf {
		w.buf[i] = 0
	}
}
