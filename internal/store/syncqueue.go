package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// SyncQueueRepo manages the outbound sync outbox. The consumer lives outside
// this process; rows are only ever enqueued and re-statused here.
type SyncQueueRepo struct {
	q    dbtx
	inTx bool
}

// Enqueue writes a PENDING outbox row.
func (r *SyncQueueRepo) Enqueue(ctx context.Context, op *SyncOp) error {
	if op == nil {
		return errors.New("sync op is nil")
	}
	if op.EntityType == "" || op.EntityID == "" || op.Operation == "" {
		return errors.New("sync op entity type, id, and operation are required")
	}
	if op.OpUID == "" {
		op.OpUID = uuid.NewString()
	}
	if op.Status == "" {
		op.Status = SyncPending
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = nowUTC()
	}
	_, err := exec(ctx, r.q, r.inTx,
		`INSERT INTO sync_queue (op_uid, entity_type, entity_id, operation, payload_json, status, retry_count, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		op.OpUID,
		op.EntityType,
		op.EntityID,
		op.Operation,
		nullableString(op.PayloadJSON),
		string(op.Status),
		op.RetryCount,
		epochMs(op.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("enqueue sync op: %w", err)
	}
	return nil
}

// EnqueueJSON marshals payload and enqueues it for entityType/entityID.
func (r *SyncQueueRepo) EnqueueJSON(ctx context.Context, entityType, entityID, operation string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sync payload: %w", err)
	}
	return r.Enqueue(ctx, &SyncOp{
		EntityType:  entityType,
		EntityID:    entityID,
		Operation:   operation,
		PayloadJSON: string(data),
	})
}

// Pending returns up to limit PENDING rows in FIFO order.
func (r *SyncQueueRepo) Pending(ctx context.Context, limit int) ([]SyncOp, error) {
	rows, err := r.q.QueryContext(ensureContext(ctx),
		`SELECT op_uid, entity_type, entity_id, operation, payload_json, status, retry_count, created_at
         FROM sync_queue WHERE status = ? ORDER BY created_at, rowid LIMIT ?`,
		string(SyncPending), limitOr(limit, -1),
	)
	if err != nil {
		return nil, fmt.Errorf("pending sync ops: %w", err)
	}
	defer rows.Close()

	var ops []SyncOp
	for rows.Next() {
		var (
			op      SyncOp
			payload sql.NullString
			status  string
			created int64
		)
		if err := rows.Scan(&op.OpUID, &op.EntityType, &op.EntityID, &op.Operation, &payload, &status, &op.RetryCount, &created); err != nil {
			return nil, fmt.Errorf("pending sync ops: scan: %w", err)
		}
		op.PayloadJSON = payload.String
		op.Status = SyncStatus(status)
		op.CreatedAt = fromEpochMs(created)
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// MarkStatus moves an outbox row to status. FAILED increments retry_count.
func (r *SyncQueueRepo) MarkStatus(ctx context.Context, opUID string, status SyncStatus) error {
	switch status {
	case SyncPending, SyncSent, SyncFailed:
	default:
		return fmt.Errorf("unknown sync status %q", status)
	}
	res, err := exec(ctx, r.q, r.inTx,
		`UPDATE sync_queue
         SET status = ?, retry_count = retry_count + CASE WHEN ? = 'FAILED' THEN 1 ELSE 0 END
         WHERE op_uid = ?`,
		string(status), string(status), opUID,
	)
	if err != nil {
		return fmt.Errorf("mark sync op: %w", err)
	}
	return requireOneRow(res, "mark sync op", opUID)
}

// CountByStatus returns the number of outbox rows per status.
func (r *SyncQueueRepo) CountByStatus(ctx context.Context) (map[SyncStatus]int64, error) {
	rows, err := r.q.QueryContext(ensureContext(ctx), `SELECT status, COUNT(*) FROM sync_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count sync ops: %w", err)
	}
	defer rows.Close()

	counts := make(map[SyncStatus]int64)
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("count sync ops: scan: %w", err)
		}
		counts[SyncStatus(status)] = n
	}
	return counts, rows.Err()
}
