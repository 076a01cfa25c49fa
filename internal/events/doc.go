// Package events turns a stream of motion samples into closed ai_event rows.
//
// The Aggregator holds at most one active segment. A motion start on an idle
// aggregator opens a segment for the sample's uri, creating a lightweight
// media_asset row the first time that uri is seen. Further starts on the same
// uri only raise the segment's running maxima; a start on a different uri
// closes the current segment at that sample's timeline position and opens a
// new one. Stop and Flush persist the active segment as one immutable event
// together with a sync_queue row, in a single transaction.
//
// State transitions and writes run on the aggregator's own serial.Queue, so
// callers never block on the database. Persistence is best effort: a failed
// write is logged and the segment is dropped, never retried.
package events
