// Package logging builds the slog loggers used by vidtrace.
//
// Two handlers are available: a single-line console handler for operators
// watching a terminal and a JSON handler for ingestion. Components obtain a
// child logger through NewComponentLogger so every line carries a component
// field, and batch operations tag their lines with a run id carried on the
// context.
package logging
