package fleet

// History is a fixed-capacity ring of position samples.  Appending to a full
// ring overwrites the oldest sample.
type History struct {
	buf  []int32
	head int // next write position
	n    int
}

// NewHistory returns a ring holding up to size samples.  size < 1 means 1.
func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	return &History{buf: make([]int32, size)}
}

// Append adds v as the newest sample
func (h *History) Append(v int32) {
	h.buf[h.head] = v
	h.head = (h.head + 1) % len(h.buf)
	if h.n < len(h.buf) {
		h.n++
	}
}

// Len returns the number of stored samples
func (h *History) Len() int {
	return h.n
}

// Cap returns the window size
func (h *History) Cap() int {
	return len(h.buf)
}

// Values returns the stored samples, oldest first.  An empty ring returns an
// empty, non-nil slice.
func (h *History) Values() []int32 {
	out := make([]int32, h.n)
	start := (h.head - h.n + len(h.buf)) % len(h.buf)
	for i := 0; i < h.n; i++ {
		out[i] = h.buf[(start+i)%len(h.buf)]
	}
	return out
}

// Last returns the newest sample and false if the ring is empty
func (h *History) Last() (int32, bool) {
	if h.n == 0 {
		return 0, false
	}
	return h.buf[(h.head-1+len(h.buf))%len(h.buf)], true
}

// Reset empties the ring
func (h *History) Reset() {
	h.head = 0
	h.n = 0
}

// Resize changes the window, keeping the newest samples
func (h *History) Resize(size int) {
	if size < 1 {
		size = 1
	}
	vals := h.Values()
	if len(vals) > size {
		vals = vals[len(vals)-size:]
	}
	h.buf = make([]int32, size)
	h.head = 0
	h.n = 0
	for _, v := range vals {
		h.Append(v)
	}
}
