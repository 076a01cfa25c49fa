package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const snapshotColumns = "snapshot_uid, event_uid, media_uid, captured_epoch_ms, timeline_ms, event_type, class_name, confidence, bbox_norm, image_uri, sha256"

// SnapshotRepo reads and writes ai_event_snapshot rows.
type SnapshotRepo struct {
	q    dbtx
	inTx bool
}

func scanSnapshot(row scanner, extra ...any) (*AiEventSnapshot, error) {
	var (
		snap      AiEventSnapshot
		className sql.NullString
		bbox      sql.NullString
		imageURI  sql.NullString
		digest    sql.NullString
	)
	dest := []any{
		&snap.SnapshotUID,
		&snap.EventUID,
		&snap.MediaUID,
		&snap.CapturedEpochMs,
		&snap.TimelineMs,
		&snap.EventType,
		&className,
		&snap.Confidence,
		&bbox,
		&imageURI,
		&digest,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	snap.ClassName = className.String
	snap.BBoxNorm = bbox.String
	snap.ImageURI = imageURI.String
	snap.SHA256 = digest.String
	return &snap, nil
}

// Insert writes a snapshot; an existing row with the same uid is replaced.
func (r *SnapshotRepo) Insert(ctx context.Context, snap *AiEventSnapshot) error {
	if snap == nil {
		return errors.New("snapshot is nil")
	}
	if snap.EventUID == "" || snap.MediaUID == "" {
		return errors.New("snapshot event and media uids are required")
	}
	if snap.SnapshotUID == "" {
		snap.SnapshotUID = uuid.NewString()
	}
	if snap.CapturedEpochMs == 0 {
		snap.CapturedEpochMs = nowUTC().UnixMilli()
	}
	_, err := exec(ctx, r.q, r.inTx,
		`INSERT OR REPLACE INTO ai_event_snapshot (`+snapshotColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.SnapshotUID,
		snap.EventUID,
		snap.MediaUID,
		snap.CapturedEpochMs,
		snap.TimelineMs,
		snap.EventType,
		nullableString(snap.ClassName),
		snap.Confidence,
		nullableString(snap.BBoxNorm),
		nullableString(snap.ImageURI),
		nullableString(snap.SHA256),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// ByEvent returns up to limit snapshots of an event in timeline order.
func (r *SnapshotRepo) ByEvent(ctx context.Context, eventUID string, limit int) ([]AiEventSnapshot, error) {
	rows, err := r.q.QueryContext(ensureContext(ctx),
		`SELECT `+snapshotColumns+` FROM ai_event_snapshot WHERE event_uid = ? ORDER BY timeline_ms ASC LIMIT ?`,
		eventUID, limitOr(limit, -1),
	)
	if err != nil {
		return nil, fmt.Errorf("snapshots by event: %w", err)
	}
	defer rows.Close()

	var snaps []AiEventSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("snapshots by event: scan: %w", err)
		}
		snaps = append(snaps, *snap)
	}
	return snaps, rows.Err()
}

// BestImageURI returns the image of the highest-confidence snapshot of an
// event, newest first on ties. It returns "" when the event has none.
func (r *SnapshotRepo) BestImageURI(ctx context.Context, eventUID string) (string, error) {
	var uri sql.NullString
	err := r.q.QueryRowContext(ensureContext(ctx),
		`SELECT image_uri FROM ai_event_snapshot WHERE event_uid = ?
         ORDER BY confidence DESC, captured_epoch_ms DESC LIMIT 1`,
		eventUID,
	).Scan(&uri)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("best snapshot image: %w", err)
	}
	return uri.String, nil
}
