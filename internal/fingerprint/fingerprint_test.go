package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"vidtrace/internal/media/ffprobe"
	"vidtrace/internal/testsupport"
)

func TestComputeExactIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mp4")
	b := filepath.Join(dir, "b.mp4")
	testsupport.WriteFile(t, a, 300*1024)
	testsupport.WriteFile(t, b, 300*1024)

	da, ok := ComputeExact(a, 0)
	if !ok || len(da) != 64 {
		t.Fatalf("ComputeExact = %q, %v", da, ok)
	}
	db, ok := ComputeExact("file://"+b, 0)
	if !ok {
		t.Fatal("expected file:// reference to resolve")
	}
	if da != db {
		t.Fatalf("identical bytes produced different digests: %s vs %s", da, db)
	}
}

func TestComputeExactWindows(t *testing.T) {
	const size = 300 * 1024
	path := filepath.Join(t.TempDir(), "clip.mp4")

	cases := []struct {
		name    string
		offset  int64
		changes bool
	}{
		{"first_window", 10, true},
		{"middle_window", size / 2, true},
		{"last_window", size - 1, true},
		{"between_windows", 80_000, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			testsupport.WriteFile(t, path, size)
			before, ok := ComputeExact(path, 0)
			if !ok {
				t.Fatal("ComputeExact failed")
			}
			testsupport.PatchByte(t, path, tc.offset, 0xEE)
			after, ok := ComputeExact(path, 0)
			if !ok {
				t.Fatal("ComputeExact failed after patch")
			}
			if changed := before != after; changed != tc.changes {
				t.Fatalf("patch at %d: changed=%v want %v", tc.offset, changed, tc.changes)
			}
		})
	}
}

func TestComputeExactEmptyFileHashesLengthOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.mp4")
	testsupport.WriteBytes(t, path, nil)

	got, ok := ComputeExact(path, 0)
	if !ok {
		t.Fatal("ComputeExact failed for empty file")
	}
	sum := sha256.Sum256(make([]byte, 8))
	if want := hex.EncodeToString(sum[:]); got != want {
		t.Fatalf("empty digest = %s, want %s", got, want)
	}
}

func TestComputeExactSmallFileUsesSingleWindow(t *testing.T) {
	data := []byte("tiny clip")
	path := filepath.Join(t.TempDir(), "tiny.mp4")
	testsupport.WriteBytes(t, path, data)

	got, ok := ComputeExact(path, 0)
	if !ok {
		t.Fatal("ComputeExact failed")
	}
	h := sha256.New()
	h.Write([]byte{0, 0, 0, 0, 0, 0, 0, byte(len(data))})
	h.Write(data)
	if want := hex.EncodeToString(h.Sum(nil)); got != want {
		t.Fatalf("digest = %s, want %s", got, want)
	}
}

func TestComputeExactMissingFile(t *testing.T) {
	if got, ok := ComputeExact(filepath.Join(t.TempDir(), "gone.mp4"), 100); ok || got != "" {
		t.Fatalf("expected failure, got %q %v", got, ok)
	}
	if _, ok := ComputeExact("content://media/1", 0); ok {
		t.Fatal("expected unsupported scheme to fail")
	}
}

func TestWindowOffsets(t *testing.T) {
	if got := windowOffsets(SampleSize); len(got) != 1 || got[0] != 0 {
		t.Fatalf("windowOffsets(64KiB) = %v", got)
	}
	got := windowOffsets(1_000_000)
	want := []int64{0, 500_000 - 32*1024, 1_000_000 - 64*1024}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("windowOffsets = %v, want %v", got, want)
		}
	}
}

func fill(img *image.RGBA, fn func(x, y int) color.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetRGBA(x, y, fn(x, y))
		}
	}
}

func TestVisualHashHalfBright(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	fill(img, func(x, _ int) color.RGBA {
		if x < 8 {
			return color.RGBA{255, 255, 255, 255}
		}
		return color.RGBA{0, 0, 0, 255}
	})
	if got := VisualHash(img); got != "0f0f0f0f0f0f0f0f" {
		t.Fatalf("VisualHash = %s", got)
	}
}

func TestVisualHashUniformSetsAllBits(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	fill(img, func(int, int) color.RGBA { return color.RGBA{90, 120, 30, 255} })
	if got := VisualHash(img); got != "ffffffffffffffff" {
		t.Fatalf("VisualHash = %s", got)
	}
}

func TestAverageHashBitOrder(t *testing.T) {
	grid := image.NewRGBA(image.Rect(0, 0, 8, 8))
	fill(grid, func(x, y int) color.RGBA {
		if x == 1 && y == 0 {
			return color.RGBA{255, 255, 255, 255}
		}
		return color.RGBA{0, 0, 0, 255}
	})
	if got := averageHash(grid); got != 1<<1 {
		t.Fatalf("averageHash = %x, want 2", got)
	}
}

func TestHammingAndSimilarity(t *testing.T) {
	d, err := Hamming("0f0f0f0f0f0f0f0f", "0f0f0f0f0f0f0f0e")
	if err != nil || d != 1 {
		t.Fatalf("Hamming = %d, %v", d, err)
	}
	if got := VisualSimilarity("ffffffffffffffff", "0000000000000000"); got != 0 {
		t.Fatalf("VisualSimilarity opposite = %v", got)
	}
	if got := VisualSimilarity("abc", "abc"); got != 1 {
		t.Fatalf("VisualSimilarity equal = %v", got)
	}
	if got := VisualSimilarity("zz", "00"); got != 0 {
		t.Fatalf("VisualSimilarity invalid = %v", got)
	}
}

func TestComputeVisualFallsBackToOneSecond(t *testing.T) {
	var offsets []time.Duration
	frame := image.NewRGBA(image.Rect(0, 0, 8, 8))
	engine := New(nil, nil, WithFrameExtractor(func(_ context.Context, _ string, at time.Duration) (image.Image, error) {
		offsets = append(offsets, at)
		if at == 0 {
			return nil, errors.New("no keyframe at 0")
		}
		return frame, nil
	}))

	got, ok := engine.ComputeVisual(context.Background(), "/v/clip.mp4")
	if !ok || got != "ffffffffffffffff" {
		t.Fatalf("ComputeVisual = %q, %v", got, ok)
	}
	if len(offsets) != 2 || offsets[1] != time.Second {
		t.Fatalf("unexpected offsets %v", offsets)
	}
}

func TestComputeVisualFailsWhenBothExtractionsFail(t *testing.T) {
	engine := New(nil, nil, WithFrameExtractor(func(context.Context, string, time.Duration) (image.Image, error) {
		panic("decoder crashed")
	}))
	if got, ok := engine.ComputeVisual(context.Background(), "/v/clip.mp4"); ok || got != "" {
		t.Fatalf("expected failure, got %q %v", got, ok)
	}
}

func TestMetadataProbe(t *testing.T) {
	engine := New(nil, nil, WithProbe(func(context.Context, string) (ffprobe.Result, error) {
		return ffprobe.Result{
			Streams: []ffprobe.Stream{{CodecType: "video", CodecName: "hevc"}},
			Format:  ffprobe.Format{Duration: "60.9", FormatName: "mov,mp4"},
		}, nil
	}))
	if got := engine.DurationMs(context.Background(), "/v/clip.mp4"); got != 60_900 {
		t.Fatalf("DurationMs = %d", got)
	}
	if got := engine.CodecInfo(context.Background(), "/v/clip.mp4"); got != "video/mp4;codecs=hevc" {
		t.Fatalf("CodecInfo = %q", got)
	}

	failing := New(nil, nil, WithProbe(func(context.Context, string) (ffprobe.Result, error) {
		return ffprobe.Result{}, errors.New("ffprobe missing")
	}))
	if md := failing.Metadata(context.Background(), "/v/clip.mp4"); md != (Metadata{}) {
		t.Fatalf("expected zero metadata, got %#v", md)
	}
}
