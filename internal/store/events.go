package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const eventColumns = "event_uid, media_uid, event_type, class_name, start_ms, end_ms, confidence, bbox_norm, track_id, priority, thumbnail_ref, detected_at_epoch_ms"

// EventRepo writes ai_event rows. There is no update path.
type EventRepo struct {
	q    dbtx
	inTx bool
}

func scanEvent(row scanner, extra ...any) (*AiEvent, error) {
	var (
		ev        AiEvent
		className sql.NullString
		bbox      sql.NullString
		trackID   sql.NullInt64
		thumb     sql.NullString
	)
	dest := []any{
		&ev.EventUID,
		&ev.MediaUID,
		&ev.EventType,
		&className,
		&ev.StartMs,
		&ev.EndMs,
		&ev.Confidence,
		&bbox,
		&trackID,
		&ev.Priority,
		&thumb,
		&ev.DetectedAtEpochMs,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	ev.ClassName = className.String
	ev.BBoxNorm = bbox.String
	ev.TrackID = int64Ptr(trackID)
	ev.ThumbnailRef = thumb.String
	return &ev, nil
}

// Insert writes ev, assigning a uid and detection time when unset.
func (r *EventRepo) Insert(ctx context.Context, ev *AiEvent) error {
	if ev == nil {
		return errors.New("event is nil")
	}
	if ev.MediaUID == "" {
		return errors.New("event media uid is required")
	}
	if ev.EventUID == "" {
		ev.EventUID = uuid.NewString()
	}
	if ev.DetectedAtEpochMs == 0 {
		ev.DetectedAtEpochMs = nowUTC().UnixMilli()
	}
	_, err := exec(ctx, r.q, r.inTx,
		`INSERT INTO ai_event (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.EventUID,
		ev.MediaUID,
		ev.EventType,
		nullableString(ev.ClassName),
		ev.StartMs,
		ev.EndMs,
		ev.Confidence,
		nullableString(ev.BBoxNorm),
		nullableInt64(ev.TrackID),
		ev.Priority,
		nullableString(ev.ThumbnailRef),
		ev.DetectedAtEpochMs,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ByMedia lists the events recorded against an asset, oldest first.
func (r *EventRepo) ByMedia(ctx context.Context, mediaUID string) ([]AiEvent, error) {
	rows, err := r.q.QueryContext(ensureContext(ctx),
		`SELECT `+eventColumns+` FROM ai_event WHERE media_uid = ? ORDER BY detected_at_epoch_ms, start_ms`,
		mediaUID,
	)
	if err != nil {
		return nil, fmt.Errorf("events by media: %w", err)
	}
	defer rows.Close()

	var events []AiEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("events by media: scan: %w", err)
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}
