// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs the binary and decodes streams and container format. Helper
// methods on Result expose the container duration in milliseconds, the
// primary video stream, and a MIME-style codec summary used as an asset's
// codec_info.
package ffprobe
