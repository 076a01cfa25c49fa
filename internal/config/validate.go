package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateFingerprint(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateMatching() error {
	if c.Matching.SizeToleranceBytes < 0 {
		return errors.New("matching.size_tolerance_bytes must be >= 0")
	}
	if c.Matching.DurationToleranceMs < 0 {
		return errors.New("matching.duration_tolerance_ms must be >= 0")
	}
	// A threshold at or below 0.5 would let size alone link two files.
	if c.Matching.ProbableThreshold <= 0.5 || c.Matching.ProbableThreshold > 1 {
		return fmt.Errorf("matching.probable_threshold must be in (0.5, 1], got %v", c.Matching.ProbableThreshold)
	}
	return nil
}

func (c *Config) validateFingerprint() error {
	if c.Fingerprint.BackfillWorkers > 32 {
		return errors.New("fingerprint.backfill_workers must be <= 32")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
