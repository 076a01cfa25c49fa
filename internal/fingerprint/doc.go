// Package fingerprint computes content signatures for recorded video files.
//
// ComputeExact hashes the file length plus three anchored 64 KiB windows
// (start, middle, end) with SHA-256. It is a fast triage signature rather than
// proof of identity; bytes between the windows are not covered.
//
// Engine.ComputeVisual decodes one representative frame through ffmpeg and
// reduces it to a 64-bit average hash, which survives re-encoding. Engine
// also exposes the best-effort ffprobe metadata probes used when indexing.
//
// Nothing in this package returns an error for a bad file: failures collapse
// to a zero value and false so callers can keep going.
package fingerprint
