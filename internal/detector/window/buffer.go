// Package window maintains the bounded per-sensor history used by the
// detector. Each sensor owns a FIFO buffer of at most W values; pushing at
// capacity evicts the oldest value.
package window

// Buffer is a bounded FIFO of float64 values backed by an array of twice
// the window size. Values are appended in place; when the array is
// exhausted the newest size-1 values move to a fresh array, so a push is
// amortized O(1). Regions of an array are never rewritten, which lets
// Window hand out the current contents without copying.
type Buffer struct {
	buf  []float64 // the window is the last min(len(buf), size) values
	size int
}

// NewBuffer creates a Buffer holding at most size values.
func NewBuffer(size int) *Buffer {
	if size < 1 {
		size = 1
	}
	return &Buffer{buf: make([]float64, 0, 2*size), size: size}
}

// Push appends v, evicting the oldest value once the buffer is full.
func (b *Buffer) Push(v float64) {
	if len(b.buf) == cap(b.buf) {
		next := make([]float64, b.size-1, 2*b.size)
		copy(next, b.buf[len(b.buf)-(b.size-1):])
		b.buf = next
	}
	b.buf = append(b.buf, v)
}

// Len returns the number of values currently held.
func (b *Buffer) Len() int {
	return min(len(b.buf), b.size)
}

// Full reports whether the buffer holds its configured size.
func (b *Buffer) Full() bool {
	return len(b.buf) >= b.size
}

// Window returns the contents oldest to newest. The slice shares storage
// with the buffer and stays valid after later pushes; callers must not
// modify it.
func (b *Buffer) Window() []float64 {
	n := len(b.buf)
	return b.buf[n-b.Len() : n : n]
}

// Values returns a copy of the contents ordered oldest to newest.
func (b *Buffer) Values() []float64 {
	w := b.Window()
	out := make([]float64, len(w))
	copy(out, w)
	return out
}
