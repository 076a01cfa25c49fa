// Package preflight provides readiness checks for the filesystem paths and
// external binaries vidtrace depends on.
//
// The CLI "vidtrace status" command renders RunAll; "vidtrace index" runs it
// first and refuses to start when a required check fails. Missing optional
// tools degrade features instead: without ffmpeg, visual fingerprints stay
// null.
package preflight
