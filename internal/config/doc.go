// Package config loads, normalizes, and validates vidtrace configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// engine and CLI need: where the forensics database lives, whether event
// collection is enabled, the relink matching thresholds, and the external
// ffprobe/ffmpeg binaries used for fingerprinting.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
