package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// LinkLogRepo appends to and reads the integrity_link_log audit trail.
type LinkLogRepo struct {
	q    dbtx
	inTx bool
}

// Append writes one audit row.
func (r *LinkLogRepo) Append(ctx context.Context, entry *IntegrityLinkLog) error {
	if entry == nil {
		return errors.New("link log entry is nil")
	}
	if entry.MediaUID == "" || entry.Action == "" {
		return errors.New("link log media uid and action are required")
	}
	if entry.LogUID == "" {
		entry.LogUID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = nowUTC()
	}
	_, err := exec(ctx, r.q, r.inTx,
		`INSERT INTO integrity_link_log (log_uid, media_uid, action, score, timestamp) VALUES (?, ?, ?, ?, ?)`,
		entry.LogUID, entry.MediaUID, entry.Action, entry.Score, epochMs(entry.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("append link log: %w", err)
	}
	return nil
}

// ByMedia returns the audit trail of one asset, oldest first.
func (r *LinkLogRepo) ByMedia(ctx context.Context, mediaUID string) ([]IntegrityLinkLog, error) {
	rows, err := r.q.QueryContext(ensureContext(ctx),
		`SELECT log_uid, media_uid, action, score, timestamp FROM integrity_link_log
         WHERE media_uid = ? ORDER BY timestamp, rowid`,
		mediaUID,
	)
	if err != nil {
		return nil, fmt.Errorf("link log by media: %w", err)
	}
	defer rows.Close()

	var entries []IntegrityLinkLog
	for rows.Next() {
		var (
			entry IntegrityLinkLog
			ts    int64
		)
		if err := rows.Scan(&entry.LogUID, &entry.MediaUID, &entry.Action, &entry.Score, &ts); err != nil {
			return nil, fmt.Errorf("link log by media: scan: %w", err)
		}
		entry.Timestamp = fromEpochMs(ts)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Count returns the number of audit rows.
func (r *LinkLogRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRowContext(ensureContext(ctx), `SELECT COUNT(*) FROM integrity_link_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count link log: %w", err)
	}
	return n, nil
}
