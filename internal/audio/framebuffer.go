package audio

import "iter"

// FrameBuffer turns a stream of arbitrarily sized sample chunks into
// frames of a fixed length. Samples that do not yet fill a frame are kept
// until the next push. A FrameBuffer is not safe for concurrent use; it
// belongs to the goroutine that receives audio.
type FrameBuffer struct {
	frameLength int
	pending     []float32
}

// NewFrameBuffer creates a buffer that emits frames of frameLength samples.
func NewFrameBuffer(frameLength int) *FrameBuffer {
	if frameLength <= 0 {
		panic("audio: frame length must be positive")
	}
	return &FrameBuffer{
		frameLength: frameLength,
		pending:     make([]float32, 0, 2*frameLength),
	}
}

// FrameLength returns the fixed frame size.
func (b *FrameBuffer) FrameLength() int { return b.frameLength }

// Buffered returns the number of samples waiting to be framed.
func (b *FrameBuffer) Buffered() int { return len(b.pending) }

// Reset drops any buffered samples.
func (b *FrameBuffer) Reset() { b.pending = b.pending[:0] }

// Push appends chunk and returns the complete frames now available, oldest
// first. The chunk is copied into the buffer before Push returns, whether
// or not the sequence is ranged over. Frames not consumed because the
// caller stopped early stay buffered and are yielded by the next Push.
// Every yielded frame is a new slice owned by the caller.
func (b *FrameBuffer) Push(chunk []float32) iter.Seq[[]float32] {
	b.pending = append(b.pending, chunk...)

	return func(yield func([]float32) bool) {
		for len(b.pending) >= b.frameLength {
			frame := make([]float32, b.frameLength)
			copy(frame, b.pending)

			n := copy(b.pending, b.pending[b.frameLength:])
			b.pending = b.pending[:n]

			if !yield(frame) {
				return
			}
		}
	}
}
