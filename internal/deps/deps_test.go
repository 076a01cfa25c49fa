package deps

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Path != present {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected blank result: %#v", results[2])
	}
}

func TestMediaToolsMarksFFmpegOptional(t *testing.T) {
	reqs := MediaTools("ffprobe", "ffmpeg")
	if len(reqs) != 2 || reqs[0].Optional || !reqs[1].Optional {
		t.Fatalf("unexpected requirements: %#v", reqs)
	}
}

func TestVersionReadsFirstLine(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "tool")
	script := []byte("#!/bin/sh\necho 'tool version 7.1'\necho 'built with gcc'\n")
	if err := os.WriteFile(bin, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	if got := Version(context.Background(), bin); got != "tool version 7.1" {
		t.Fatalf("Version = %q", got)
	}
	if got := Version(context.Background(), "clearly-not-present-binary"); got != "" {
		t.Fatalf("Version of missing binary = %q", got)
	}
}
