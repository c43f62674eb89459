package audio

import (
	"math/rand"
	"testing"
)

func ramp(start, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(start + i)
	}
	return out
}

func TestFrameBufferOrderAndRemainder(t *testing.T) {
	t.Parallel()

	const frameLength = 8
	tests := []struct {
		name   string
		chunks []int
	}{
		{"single exact frame", []int{8}},
		{"small chunks", []int{3, 3, 3, 3, 3}},
		{"one big chunk", []int{37}},
		{"mixed with empties", []int{0, 5, 0, 11, 1, 0, 16}},
		{"short of a frame", []int{7}},
		{"nothing", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := NewFrameBuffer(frameLength)
			var frames [][]float32
			next := 0
			for _, size := range tt.chunks {
				for f := range b.Push(ramp(next, size)) {
					frames = append(frames, f)
				}
				next += size
			}

			k, r := next/frameLength, next%frameLength
			if len(frames) != k {
				t.Fatalf("got %d frames, want %d", len(frames), k)
			}
			if b.Buffered() != r {
				t.Errorf("Buffered() = %d, want %d", b.Buffered(), r)
			}

			want := float32(0)
			for i, f := range frames {
				if len(f) != frameLength {
					t.Fatalf("frame %d has length %d", i, len(f))
				}
				for j, s := range f {
					if s != want {
						t.Fatalf("frame %d sample %d = %v, want %v", i, j, s, want)
					}
					want++
				}
			}
		})
	}
}

func TestFrameBufferRandomChunks(t *testing.T) {
	t.Parallel()

	const frameLength = 2048
	rng := rand.New(rand.NewSource(7))
	b := NewFrameBuffer(frameLength)

	total, emitted := 0, 0
	want := float32(0)
	for i := 0; i < 200; i++ {
		size := rng.Intn(1500)
		for f := range b.Push(ramp(total, size)) {
			if f[0] != want {
				t.Fatalf("frame %d starts at %v, want %v", emitted, f[0], want)
			}
			want += frameLength
			emitted++
		}
		total += size
	}

	if emitted != total/frameLength {
		t.Errorf("emitted %d frames for %d samples", emitted, total)
	}
	if b.Buffered() != total%frameLength {
		t.Errorf("Buffered() = %d, want %d", b.Buffered(), total%frameLength)
	}
}

func TestFrameBufferEarlyStopKeepsFrames(t *testing.T) {
	t.Parallel()

	b := NewFrameBuffer(4)
	for range b.Push(ramp(0, 12)) {
		break
	}
	if b.Buffered() != 8 {
		t.Fatalf("Buffered() = %d after early stop, want 8", b.Buffered())
	}

	var starts []float32
	for f := range b.Push(nil) {
		starts = append(starts, f[0])
	}
	if len(starts) != 2 || starts[0] != 4 || starts[1] != 8 {
		t.Errorf("resumed frames start at %v, want [4 8]", starts)
	}
}

func TestFrameBufferPushCopiesWithoutRanging(t *testing.T) {
	t.Parallel()

	b := NewFrameBuffer(4)
	chunk := ramp(0, 3)
	_ = b.Push(chunk)
	chunk[0] = 99

	var got []float32
	for f := range b.Push(ramp(3, 1)) {
		got = f
	}
	if got == nil || got[0] != 0 {
		t.Errorf("frame = %v, want it to start at 0", got)
	}
}

func TestFrameBufferFramesAreIndependent(t *testing.T) {
	t.Parallel()

	b := NewFrameBuffer(2)
	var frames [][]float32
	for f := range b.Push(ramp(0, 4)) {
		frames = append(frames, f)
	}
	frames[0][0] = 42
	if frames[1][0] != 2 {
		t.Errorf("frames share storage: %v", frames)
	}
}

func TestFrameBufferReset(t *testing.T) {
	t.Parallel()

	b := NewFrameBuffer(4)
	_ = b.Push(ramp(0, 3))
	b.Reset()
	if b.Buffered() != 0 {
		t.Fatalf("Buffered() = %d after Reset", b.Buffered())
	}
	if b.FrameLength() != 4 {
		t.Errorf("FrameLength() = %d", b.FrameLength())
	}
}

func TestNewFrameBufferPanicsOnBadLength(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("expected panic for zero frame length")
		}
	}()
	NewFrameBuffer(0)
}
