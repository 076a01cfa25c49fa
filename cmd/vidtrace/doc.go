// Package main hosts the vidtrace CLI entrypoint and command graph.
//
// Commands that use the database open an engine.Engine for the duration
// of the command, which takes the data directory lock; a second concurrent
// invocation fails fast with a lock error instead of racing the first.
// `status` reads the store directly and skips the lock. Query commands print tables
// when stdout is a terminal and indented JSON otherwise (or always, with --json).
package main
