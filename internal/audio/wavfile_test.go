package audio

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeTestWAV(t *testing.T, data []int, sampleRate, channels int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{SampleRate: sampleRate, NumChannels: channels},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenWAVDownmixAndNormalize(t *testing.T) {
	t.Parallel()

	// two stereo frames: (16384, 0) and (-32768, -32768)
	path := writeTestWAV(t, []int{16384, 0, -32768, -32768}, 8000, 2)

	src, err := OpenWAV(path, 1, false)
	if err != nil {
		t.Fatal(err)
	}
	if src.SampleRate() != 8000 {
		t.Errorf("SampleRate() = %d, want 8000", src.SampleRate())
	}
	if src.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", src.Len())
	}

	chunks, err := src.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var got []float32
	for c := range chunks {
		got = append(got, c...)
	}
	want := []float32{0.25, -1}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestWAVSourceChunks(t *testing.T) {
	t.Parallel()

	data := make([]int, 1000)
	for i := range data {
		data[i] = i
	}
	src, err := OpenWAV(writeTestWAV(t, data, 44100, 1), 256, false)
	if err != nil {
		t.Fatal(err)
	}

	chunks, err := src.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var sizes []int
	for c := range chunks {
		sizes = append(sizes, len(c))
	}
	want := []int{256, 256, 256, 232}
	if len(sizes) != len(want) {
		t.Fatalf("chunk sizes %v, want %v", sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("chunk sizes %v, want %v", sizes, want)
			break
		}
	}

	if _, err := src.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start err = %v, want ErrAlreadyStarted", err)
	}
}

func TestWAVSourceStopsOnCancel(t *testing.T) {
	t.Parallel()

	src, err := OpenWAV(writeTestWAV(t, make([]int, 4096), 44100, 1), 64, false)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	chunks, err := src.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	<-chunks
	cancel()
	for range chunks {
		// drain until the producer notices cancellation
	}
}

func TestOpenWAVErrors(t *testing.T) {
	t.Parallel()

	if _, err := OpenWAV(filepath.Join(t.TempDir(), "missing.wav"), 0, false); !errors.Is(err, ErrInputUnavailable) {
		t.Errorf("missing file err = %v, want ErrInputUnavailable", err)
	}

	bogus := filepath.Join(t.TempDir(), "bogus.wav")
	if err := os.WriteFile(bogus, []byte("not a wav file at all"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenWAV(bogus, 0, false); !errors.Is(err, ErrInputUnavailable) {
		t.Errorf("bogus file err = %v, want ErrInputUnavailable", err)
	}
}

func TestMeasureLevel(t *testing.T) {
	t.Parallel()

	if l := MeasureLevel(nil); l.DB != -100 {
		t.Errorf("empty level = %+v", l)
	}
	l := MeasureLevel([]float32{1, -1, 1, -1})
	if math.Abs(l.RMS-1) > 1e-9 || math.Abs(l.DB) > 1e-9 {
		t.Errorf("full scale level = %+v, want RMS 1, 0 dB", l)
	}
}

func TestDownmix(t *testing.T) {
	t.Parallel()

	got := downmix([]float32{1, 3, -2, 0}, 2, 2)
	if len(got) != 2 || got[0] != 4 || got[1] != -2 {
		t.Errorf("downmix = %v, want [4 -2]", got)
	}
	mono := downmix([]float32{0.5}, 1, 4)
	if mono[0] != 2 {
		t.Errorf("mono gain = %v, want 2", mono[0])
	}
}
