package audio

// DefaultFrameSize matches the capture buffer of the browser client.
const DefaultFrameSize = 4096

// Framer cuts a capture stream into fixed size frames, preserving order.
type Framer struct {
	size int
	buf  []float32
}

// NewFramer creates a framer. A size below 1 uses DefaultFrameSize.
func NewFramer(size int) *Framer {
	if size < 1 {
		size = DefaultFrameSize
	}
	return &Framer{size: size, buf: make([]float32, 0, size)}
}

// Write appends samples and returns every frame completed by them.
func (f *Framer) Write(samples []float32) [][]float32 {
	var frames [][]float32
	for len(samples) > 0 {
		n := f.size - len(f.buf)
		if n > len(samples) {
			n = len(samples)
		}
		f.buf = append(f.buf, samples[:n]...)
		samples = samples[n:]
		if len(f.buf) == f.size {
			frames = append(frames, f.buf)
			f.buf = make([]float32, 0, f.size)
		}
	}
	return frames
}

// Pending is the number of buffered samples not yet framed.
func (f *Framer) Pending() int { return len(f.buf) }

// Flush returns the partial frame, if any, and empties the buffer.
func (f *Framer) Flush() []float32 {
	if len(f.buf) == 0 {
		return nil
	}
	out := f.buf
	f.buf = make([]float32, 0, f.size)
	return out
}
