package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"vidtrace/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "vidtrace")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "forensics.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if !cfg.Forensics.Enabled || !cfg.Forensics.PersonEventsEnabled {
		t.Fatal("expected forensics toggles enabled by default")
	}
	if cfg.Matching.ProbableThreshold != 0.92 {
		t.Fatalf("unexpected probable threshold: %v", cfg.Matching.ProbableThreshold)
	}
	if cfg.Matching.SizeToleranceBytes != 1_500_000 || cfg.Matching.DurationToleranceMs != 2_500 {
		t.Fatalf("unexpected tolerances: %+v", cfg.Matching)
	}
	if cfg.FFprobeBinary() != "ffprobe" || cfg.FFmpegBinary() != "ffmpeg" {
		t.Fatalf("unexpected binaries: %q %q", cfg.FFprobeBinary(), cfg.FFmpegBinary())
	}
	if len(cfg.Library.Extensions) == 0 {
		t.Fatal("expected default extensions")
	}
}

func TestLoadCustomConfigFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[paths]
data_dir = "~/evidence"

[forensics]
person_events_enabled = false

[matching]
probable_threshold = 0.95

[library]
roots = ["~/camera", ""]
extensions = ["MP4", ".mov"]

[logging]
format = "JSON"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected explicit config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "evidence") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Forensics.PersonEventsEnabled {
		t.Fatal("expected person events disabled")
	}
	if !cfg.Forensics.Enabled {
		t.Fatal("expected subsystem to keep default enabled")
	}
	if cfg.Matching.ProbableThreshold != 0.95 {
		t.Fatalf("unexpected threshold: %v", cfg.Matching.ProbableThreshold)
	}
	if len(cfg.Library.Roots) != 1 || cfg.Library.Roots[0] != filepath.Join(tempHome, "camera") {
		t.Fatalf("unexpected roots: %v", cfg.Library.Roots)
	}
	if strings.Join(cfg.Library.Extensions, ",") != ".mp4,.mov" {
		t.Fatalf("unexpected extensions: %v", cfg.Library.Extensions)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", cfg.Logging.Format)
	}
}

func TestValidateRejectsLooseThreshold(t *testing.T) {
	cases := []struct {
		name      string
		threshold float64
		wantErr   bool
	}{
		{"default", 0.92, false},
		{"strict", 1.0, false},
		{"size_only", 0.45, true},
		{"half", 0.5, true},
		{"above_one", 1.2, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.DataDir = t.TempDir()
			cfg.Matching.ProbableThreshold = tc.threshold
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateRejectsUnknownLogFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown log format")
	}
}

func TestSampleConfigParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	defaults := config.Default()
	if cfg.Matching != defaults.Matching {
		t.Fatalf("sample matching section drifted from defaults: %+v vs %+v", cfg.Matching, defaults.Matching)
	}
	if cfg.Forensics != defaults.Forensics {
		t.Fatalf("sample forensics section drifted from defaults: %+v", cfg.Forensics)
	}
}
