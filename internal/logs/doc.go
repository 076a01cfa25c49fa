// Package logs reads the vidtrace log file for the `vidtrace logs` command.
//
// Reads are bounded: the last N matching lines are kept in a ring, and follow
// mode polls from a byte offset so the file is never loaded whole.
package logs
