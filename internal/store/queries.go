package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// MediaState filters query results on whether the owning file is still present.
type MediaState string

const (
	MediaAny       MediaState = ""
	MediaAvailable MediaState = "AVAILABLE"
	MediaMissing   MediaState = "MISSING"
)

// SortOrder selects timeline ordering.
type SortOrder string

const (
	SortNewest     SortOrder = "newest"
	SortOldest     SortOrder = "oldest"
	SortConfidence SortOrder = "confidence"
)

// ParseMediaState accepts "", "any", "available", or "missing" in any case.
func ParseMediaState(value string) (MediaState, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "", "ANY", "ALL":
		return MediaAny, nil
	case string(MediaAvailable):
		return MediaAvailable, nil
	case string(MediaMissing):
		return MediaMissing, nil
	default:
		return MediaAny, fmt.Errorf("unknown media state %q", value)
	}
}

// ParseSortOrder accepts newest, oldest, or confidence; empty means newest.
func ParseSortOrder(value string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(value))) {
	case "", SortNewest:
		return SortNewest, nil
	case SortOldest:
		return SortOldest, nil
	case SortConfidence:
		return SortConfidence, nil
	default:
		return SortNewest, fmt.Errorf("unknown sort order %q", value)
	}
}

// TimelineQuery filters the event timeline. Empty strings disable a filter.
type TimelineQuery struct {
	EventType     string
	ClassName     string
	MinConfidence float64
	SinceEpochMs  int64
	MediaState    MediaState
	Sort          SortOrder
	Limit         int
}

// TimelineEntry is an event joined with its owning identity record.
type TimelineEntry struct {
	AiEvent
	MediaURI         string     `json:"media_uri"`
	MediaDisplayName string     `json:"media_display_name"`
	LinkStatus       LinkStatus `json:"link_status"`
	MediaMissing     bool       `json:"media_missing"`
	SnapshotCount    int64      `json:"snapshot_count"`
}

// GalleryQuery filters evidentiary snapshots.
type GalleryQuery struct {
	EventType     string
	MinConfidence float64
	MediaState    MediaState
	SinceEpochMs  int64
	Limit         int
}

// GalleryEntry is a snapshot joined with its identity record and event.
type GalleryEntry struct {
	AiEventSnapshot
	MediaURI         string     `json:"media_uri"`
	MediaDisplayName string     `json:"media_display_name"`
	LinkStatus       LinkStatus `json:"link_status"`
	MediaLastSeenAt  int64      `json:"media_last_seen_at"`
	MediaMissing     bool       `json:"media_missing"`
	EventPriority    int        `json:"event_priority"`
}

// ClassCount is one row of the top-class histogram.
type ClassCount struct {
	ClassName string `json:"class_name"`
	Count     int64  `json:"count"`
}

// Stats summarizes table sizes.
type Stats struct {
	Assets      int64 `json:"assets"`
	Missing     int64 `json:"missing"`
	Events      int64 `json:"events"`
	Snapshots   int64 `json:"snapshots"`
	LinkLog     int64 `json:"link_log"`
	SyncPending int64 `json:"sync_pending"`
}

const defaultQueryLimit = 200

// mediaStateClause is the shared MISSING/AVAILABLE predicate on alias m.
const mediaStateClause = `(? = '' OR (? = 'MISSING' AND COALESCE(m.media_missing, 0) = 1) OR (? = 'AVAILABLE' AND COALESCE(m.media_missing, 0) = 0))`

// GetByMediaUID returns one identity record, or nil.
func (s *Store) GetByMediaUID(ctx context.Context, mediaUID string) (*MediaAsset, error) {
	return s.Assets().FindByMediaUID(ctx, mediaUID)
}

// Timeline returns events matching q joined with their asset.
func (s *Store) Timeline(ctx context.Context, q TimelineQuery) ([]TimelineEntry, error) {
	order := "e.detected_at_epoch_ms DESC, e.start_ms DESC"
	switch q.Sort {
	case SortOldest:
		order = "e.detected_at_epoch_ms ASC, e.start_ms ASC"
	case SortConfidence:
		order = "e.confidence DESC, e.detected_at_epoch_ms DESC"
	}
	state := string(q.MediaState)

	query := `SELECT ` + prefixColumns("e", eventColumns) + `,
            m.current_uri, m.display_name, m.link_status, m.media_missing,
            (SELECT COUNT(*) FROM ai_event_snapshot s WHERE s.event_uid = e.event_uid)
        FROM ai_event e
        JOIN media_asset m ON m.media_uid = e.media_uid
        WHERE (? = '' OR e.event_type = ?)
          AND (? = '' OR e.class_name = ?)
          AND e.confidence >= ?
          AND e.detected_at_epoch_ms >= ?
          AND ` + mediaStateClause + `
        ORDER BY ` + order + `
        LIMIT ?`

	rows, err := s.db.QueryContext(ensureContext(ctx), query,
		q.EventType, q.EventType,
		q.ClassName, q.ClassName,
		q.MinConfidence,
		q.SinceEpochMs,
		state, state, state,
		limitOr(q.Limit, defaultQueryLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}
	defer rows.Close()

	var entries []TimelineEntry
	for rows.Next() {
		var (
			entry   TimelineEntry
			name    sql.NullString
			status  sql.NullString
			missing int64
		)
		ev, err := scanEvent(rows, &entry.MediaURI, &name, &status, &missing, &entry.SnapshotCount)
		if err != nil {
			return nil, fmt.Errorf("timeline: scan: %w", err)
		}
		entry.AiEvent = *ev
		entry.MediaDisplayName = name.String
		entry.LinkStatus = LinkStatus(status.String)
		entry.MediaMissing = missing != 0
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CountSince counts events detected at or after sinceEpochMs.
func (s *Store) CountSince(ctx context.Context, sinceEpochMs int64) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(*) FROM ai_event WHERE detected_at_epoch_ms >= ?`, sinceEpochMs,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// CountByTypeSince counts events of eventType detected at or after sinceEpochMs.
func (s *Store) CountByTypeSince(ctx context.Context, eventType string, sinceEpochMs int64) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(*) FROM ai_event WHERE event_type = ? AND detected_at_epoch_ms >= ?`,
		eventType, sinceEpochMs,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events by type: %w", err)
	}
	return n, nil
}

// TopClassNames returns the most frequent class names since sinceEpochMs,
// optionally restricted to one event type.
func (s *Store) TopClassNames(ctx context.Context, sinceEpochMs int64, eventType string, limit int) ([]ClassCount, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT class_name, COUNT(*) AS n FROM ai_event
         WHERE detected_at_epoch_ms >= ?
           AND (? = '' OR event_type = ?)
           AND class_name IS NOT NULL AND class_name != ''
         GROUP BY class_name
         ORDER BY n DESC, class_name ASC
         LIMIT ?`,
		sinceEpochMs, eventType, eventType, limitOr(limit, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("top class names: %w", err)
	}
	defer rows.Close()

	var out []ClassCount
	for rows.Next() {
		var c ClassCount
		if err := rows.Scan(&c.ClassName, &c.Count); err != nil {
			return nil, fmt.Errorf("top class names: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GallerySnapshots returns snapshots matching q, newest capture first.
func (s *Store) GallerySnapshots(ctx context.Context, q GalleryQuery) ([]GalleryEntry, error) {
	state := string(q.MediaState)
	query := `SELECT ` + prefixColumns("s", snapshotColumns) + `,
            COALESCE(m.current_uri, ''), m.display_name, m.link_status,
            COALESCE(m.last_seen_at, 0), COALESCE(m.media_missing, 0), COALESCE(e.priority, 0)
        FROM ai_event_snapshot s
        LEFT JOIN media_asset m ON m.media_uid = s.media_uid
        LEFT JOIN ai_event e ON e.event_uid = s.event_uid
        WHERE (? = '' OR s.event_type = ?)
          AND s.confidence >= ?
          AND ` + mediaStateClause + `
          AND s.captured_epoch_ms >= ?
        ORDER BY s.captured_epoch_ms DESC
        LIMIT ?`

	rows, err := s.db.QueryContext(ensureContext(ctx), query,
		q.EventType, q.EventType,
		q.MinConfidence,
		state, state, state,
		q.SinceEpochMs,
		limitOr(q.Limit, defaultQueryLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("gallery: %w", err)
	}
	defer rows.Close()

	var entries []GalleryEntry
	for rows.Next() {
		var (
			entry   GalleryEntry
			name    sql.NullString
			status  sql.NullString
			missing int64
		)
		snap, err := scanSnapshot(rows, &entry.MediaURI, &name, &status, &entry.MediaLastSeenAt, &missing, &entry.EventPriority)
		if err != nil {
			return nil, fmt.Errorf("gallery: scan: %w", err)
		}
		entry.AiEventSnapshot = *snap
		entry.MediaDisplayName = name.String
		entry.LinkStatus = LinkStatus(status.String)
		entry.MediaMissing = missing != 0
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Stats returns row counts for the status view.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ensureContext(ctx), `SELECT
        (SELECT COUNT(*) FROM media_asset),
        (SELECT COUNT(*) FROM media_asset WHERE media_missing = 1),
        (SELECT COUNT(*) FROM ai_event),
        (SELECT COUNT(*) FROM ai_event_snapshot),
        (SELECT COUNT(*) FROM integrity_link_log),
        (SELECT COUNT(*) FROM sync_queue WHERE status = 'PENDING')`,
	).Scan(&st.Assets, &st.Missing, &st.Events, &st.Snapshots, &st.LinkLog, &st.SyncPending)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}
