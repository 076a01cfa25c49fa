// Package engine is the composition root: it takes the process lock, opens
// the store, and wires the fingerprint engine, identity coordinator, event
// aggregator, and library scanner together for one process lifetime.
//
// Exactly one Engine may own a data directory at a time. Open fails with
// ErrLocked when another process holds <data_dir>/vidtrace.lock.
package engine
