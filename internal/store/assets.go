package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const assetColumns = "media_uid, current_uri, display_name, category_subtype, size_bytes, duration_ms, codec_info, exact_fingerprint, visual_fingerprint, first_seen_at, last_seen_at, link_status, media_missing"

// AssetRepo reads and writes media_asset rows.
type AssetRepo struct {
	q    dbtx
	inTx bool
}

// CandidateWindow bounds the probable-match range query. Both ranges are inclusive.
type CandidateWindow struct {
	MinSize       int64
	MaxSize       int64
	MinDurationMs int64
	MaxDurationMs int64
	Limit         int
}

func scanAsset(row scanner) (*MediaAsset, error) {
	var (
		asset       MediaAsset
		displayName sql.NullString
		subtype     sql.NullString
		codec       sql.NullString
		exact       sql.NullString
		visual      sql.NullString
		firstSeen   int64
		lastSeen    int64
		status      sql.NullString
		missing     int64
	)
	if err := row.Scan(
		&asset.MediaUID,
		&asset.CurrentURI,
		&displayName,
		&subtype,
		&asset.SizeBytes,
		&asset.DurationMs,
		&codec,
		&exact,
		&visual,
		&firstSeen,
		&lastSeen,
		&status,
		&missing,
	); err != nil {
		return nil, err
	}
	asset.DisplayName = displayName.String
	asset.CategorySubtype = subtype.String
	asset.CodecInfo = codec.String
	asset.ExactFingerprint = exact.String
	asset.VisualFingerprint = visual.String
	asset.FirstSeenAt = fromEpochMs(firstSeen)
	asset.LastSeenAt = fromEpochMs(lastSeen)
	asset.LinkStatus = LinkStatus(status.String)
	if asset.LinkStatus == "" {
		asset.LinkStatus = LinkNew
	}
	asset.MediaMissing = missing != 0
	return &asset, nil
}

func (r *AssetRepo) queryOne(ctx context.Context, op, query string, args ...any) (*MediaAsset, error) {
	asset, err := scanAsset(r.q.QueryRowContext(ensureContext(ctx), query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return asset, nil
}

func (r *AssetRepo) queryMany(ctx context.Context, op, query string, args ...any) ([]MediaAsset, error) {
	rows, err := r.q.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var assets []MediaAsset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		assets = append(assets, *asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return assets, nil
}

// FindByCurrentURI returns the asset currently located at uri, or nil.
func (r *AssetRepo) FindByCurrentURI(ctx context.Context, uri string) (*MediaAsset, error) {
	return r.queryOne(ctx, "find asset by uri",
		`SELECT `+assetColumns+` FROM media_asset WHERE current_uri = ? LIMIT 1`, uri)
}

// FindByMediaUID returns the asset with the given identity, or nil.
func (r *AssetRepo) FindByMediaUID(ctx context.Context, mediaUID string) (*MediaAsset, error) {
	return r.queryOne(ctx, "find asset by uid",
		`SELECT `+assetColumns+` FROM media_asset WHERE media_uid = ? LIMIT 1`, mediaUID)
}

// FindProbableCandidates runs the bounded size/duration range query backed by
// idx_media_asset_size_duration. Most recently seen assets come first.
func (r *AssetRepo) FindProbableCandidates(ctx context.Context, w CandidateWindow) ([]MediaAsset, error) {
	return r.queryMany(ctx, "find probable candidates",
		`SELECT `+assetColumns+` FROM media_asset
         WHERE size_bytes BETWEEN ? AND ? AND duration_ms BETWEEN ? AND ?
         ORDER BY last_seen_at DESC LIMIT ?`,
		w.MinSize, w.MaxSize, w.MinDurationMs, w.MaxDurationMs, limitOr(w.Limit, 200))
}

// FindByExactFingerprint returns assets carrying fingerprint other than excludeUID.
func (r *AssetRepo) FindByExactFingerprint(ctx context.Context, fingerprint, excludeUID string) ([]MediaAsset, error) {
	if strings.TrimSpace(fingerprint) == "" {
		return nil, nil
	}
	return r.queryMany(ctx, "find by exact fingerprint",
		`SELECT `+assetColumns+` FROM media_asset
         WHERE exact_fingerprint = ? AND media_uid != ?
         ORDER BY first_seen_at`,
		fingerprint, excludeUID)
}

// MissingFingerprints lists assets whose exact or visual fingerprint is unset.
func (r *AssetRepo) MissingFingerprints(ctx context.Context, limit int) ([]MediaAsset, error) {
	return r.queryMany(ctx, "list unfingerprinted assets",
		`SELECT `+assetColumns+` FROM media_asset
         WHERE exact_fingerprint IS NULL OR visual_fingerprint IS NULL
         ORDER BY first_seen_at LIMIT ?`,
		limitOr(limit, -1))
}

// List returns assets ordered by most recently seen.
func (r *AssetRepo) List(ctx context.Context, limit int) ([]MediaAsset, error) {
	return r.queryMany(ctx, "list assets",
		`SELECT `+assetColumns+` FROM media_asset ORDER BY last_seen_at DESC LIMIT ?`,
		limitOr(limit, -1))
}

// Insert writes a new asset, assigning a uid and timestamps when unset.
func (r *AssetRepo) Insert(ctx context.Context, asset *MediaAsset) error {
	if asset == nil {
		return errors.New("asset is nil")
	}
	if strings.TrimSpace(asset.CurrentURI) == "" {
		return errors.New("asset uri is required")
	}
	prepareAsset(asset)
	_, err := exec(ctx, r.q, r.inTx,
		`INSERT INTO media_asset (`+assetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		assetArgs(asset)...,
	)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// Ensure returns the asset at asset.CurrentURI, inserting asset when no row
// holds that uri yet. Concurrent callers for the same uri converge on one row.
func (r *AssetRepo) Ensure(ctx context.Context, asset *MediaAsset) (*MediaAsset, error) {
	if asset == nil {
		return nil, errors.New("asset is nil")
	}
	if strings.TrimSpace(asset.CurrentURI) == "" {
		return nil, errors.New("asset uri is required")
	}
	prepareAsset(asset)
	_, err := exec(ctx, r.q, r.inTx,
		`INSERT INTO media_asset (`+assetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(current_uri) DO NOTHING`,
		assetArgs(asset)...,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure asset: %w", err)
	}
	stored, err := r.FindByCurrentURI(ctx, asset.CurrentURI)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("ensure asset: no row for %q after insert", asset.CurrentURI)
	}
	return stored, nil
}

func prepareAsset(asset *MediaAsset) {
	if asset.MediaUID == "" {
		asset.MediaUID = uuid.NewString()
	}
	now := nowUTC()
	if asset.FirstSeenAt.IsZero() {
		asset.FirstSeenAt = now
	}
	if asset.LastSeenAt.IsZero() {
		asset.LastSeenAt = asset.FirstSeenAt
	}
	if asset.LinkStatus == "" {
		asset.LinkStatus = LinkNew
	}
}

func assetArgs(asset *MediaAsset) []any {
	return []any{
		asset.MediaUID,
		asset.CurrentURI,
		nullableString(asset.DisplayName),
		nullableString(asset.CategorySubtype),
		asset.SizeBytes,
		asset.DurationMs,
		nullableString(asset.CodecInfo),
		nullableString(asset.ExactFingerprint),
		nullableString(asset.VisualFingerprint),
		epochMs(asset.FirstSeenAt),
		epochMs(asset.LastSeenAt),
		string(asset.LinkStatus),
		boolToInt(asset.MediaMissing),
	}
}

// UpdateLinkAndMetadata rewrites the location, observed metadata, last-seen
// time, and link status of an existing asset. A file seen again is no longer missing.
func (r *AssetRepo) UpdateLinkAndMetadata(ctx context.Context, asset *MediaAsset) error {
	if asset == nil || asset.MediaUID == "" {
		return errors.New("asset uid is required")
	}
	if asset.LastSeenAt.IsZero() {
		asset.LastSeenAt = nowUTC()
	}
	asset.MediaMissing = false
	res, err := exec(ctx, r.q, r.inTx,
		`UPDATE media_asset
         SET current_uri = ?, display_name = ?, size_bytes = ?, duration_ms = ?,
             codec_info = ?, last_seen_at = ?, link_status = ?, media_missing = 0
         WHERE media_uid = ?`,
		asset.CurrentURI,
		nullableString(asset.DisplayName),
		asset.SizeBytes,
		asset.DurationMs,
		nullableString(asset.CodecInfo),
		epochMs(asset.LastSeenAt),
		string(asset.LinkStatus),
		asset.MediaUID,
	)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	return requireOneRow(res, "update asset", asset.MediaUID)
}

// UpdateFingerprints stores computed fingerprints. Empty values leave the column unchanged.
func (r *AssetRepo) UpdateFingerprints(ctx context.Context, mediaUID, exact, visual string) error {
	res, err := exec(ctx, r.q, r.inTx,
		`UPDATE media_asset
         SET exact_fingerprint = COALESCE(?, exact_fingerprint),
             visual_fingerprint = COALESCE(?, visual_fingerprint)
         WHERE media_uid = ?`,
		nullableString(exact), nullableString(visual), mediaUID,
	)
	if err != nil {
		return fmt.Errorf("update fingerprints: %w", err)
	}
	return requireOneRow(res, "update fingerprints", mediaUID)
}

// SetMediaMissing records whether the asset's current uri still resolves to a file.
func (r *AssetRepo) SetMediaMissing(ctx context.Context, mediaUID string, missing bool) error {
	res, err := exec(ctx, r.q, r.inTx,
		`UPDATE media_asset SET media_missing = ? WHERE media_uid = ?`,
		boolToInt(missing), mediaUID,
	)
	if err != nil {
		return fmt.Errorf("set media missing: %w", err)
	}
	return requireOneRow(res, "set media missing", mediaUID)
}

// Count returns the number of identity records.
func (r *AssetRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRowContext(ensureContext(ctx), `SELECT COUNT(*) FROM media_asset`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count assets: %w", err)
	}
	return n, nil
}

// ErrNotFound is returned by updates that matched no row.
var ErrNotFound = errors.New("not found")

func requireOneRow(res sql.Result, op, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", op, key, ErrNotFound)
	}
	return nil
}
