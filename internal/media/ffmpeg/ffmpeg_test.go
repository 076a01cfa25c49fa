package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestFrameArgsSeeksBeforeInput(t *testing.T) {
	args := FrameArgs("/v/clip.mp4", 1500*time.Millisecond)
	ss := slices.Index(args, "-ss")
	in := slices.Index(args, "-i")
	if ss < 0 || in < 0 || ss > in {
		t.Fatalf("expected -ss before -i, got %v", args)
	}
	if args[ss+1] != "1.500" || args[in+1] != "/v/clip.mp4" {
		t.Fatalf("unexpected args %v", args)
	}
	if args[len(args)-1] != "-" {
		t.Fatalf("expected stdout output, got %v", args)
	}
}

func TestExtractFrameReportsEmptyOutput(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	_, err := ExtractFrame(context.Background(), stub, "/v/clip.mp4", 0)
	if !errors.Is(err, ErrNoFrame) {
		t.Fatalf("expected ErrNoFrame, got %v", err)
	}
}

func TestExtractFrameFailsForMissingBinary(t *testing.T) {
	_, err := ExtractFrame(context.Background(), filepath.Join(t.TempDir(), "nope"), "/v/clip.mp4", 0)
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
}
