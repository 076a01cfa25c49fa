// Package identity keeps one MediaAsset per physical video file as files are
// renamed, moved, and re-encoded.
//
// Resolver processes a batch of observed files. An observation at a known uri
// refreshes that asset. Otherwise a bounded size/duration range query yields
// candidates that are scored on size ratio, duration ratio, and display-name
// equality; the best candidate is re-pointed to the new uri only when it clears
// Policy.ProbableThreshold, and every such link writes an integrity_link_log row
// in the same transaction. Anything less creates a new asset: a duplicate
// identity is recoverable, a wrong link misattributes evidence.
//
// Coordinator funnels every batch, plus the fingerprint backfill and verify
// writes, through one serial.Queue so two scans can never both decide "no
// match" for the same renamed file.
//
// Configuration dependencies:
//   - matching.size_tolerance_bytes, matching.duration_tolerance_ms
//   - matching.probable_threshold, matching.candidate_limit
//   - fingerprint.backfill_workers
package identity
