package identity

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"vidtrace/internal/fingerprint"
	"vidtrace/internal/logging"
	"vidtrace/internal/store"
)

// Fingerprinter computes content fingerprints for a media reference.
type Fingerprinter interface {
	ComputeExact(ref string, sizeHint int64) (string, bool)
	ComputeVisual(ctx context.Context, ref string) (string, bool)
}

// Duplicate pairs an asset with an older asset carrying the same exact fingerprint.
type Duplicate struct {
	MediaUID         string  `json:"media_uid"`
	OtherUID         string  `json:"other_uid"`
	VisualSimilarity float64 `json:"visual_similarity"`
}

// BackfillReport summarizes one backfill run.
type BackfillReport struct {
	Scanned    int         `json:"scanned"`
	Exact      int         `json:"exact"`
	Visual     int         `json:"visual"`
	Failed     int         `json:"failed"`
	Duplicates []Duplicate `json:"duplicates,omitempty"`
}

// Backfiller fills in null fingerprints. Hashing runs on a bounded worker
// pool; every write goes through the coordinator's single writer.
type Backfiller struct {
	store   *store.Store
	fp      Fingerprinter
	coord   *Coordinator
	workers int
	logger  *slog.Logger
}

// NewBackfiller constructs a Backfiller with at most workers concurrent hashes.
func NewBackfiller(st *store.Store, fp Fingerprinter, coord *Coordinator, workers int, logger *slog.Logger) *Backfiller {
	if workers <= 0 {
		workers = 1
	}
	return &Backfiller{
		store:   st,
		fp:      fp,
		coord:   coord,
		workers: workers,
		logger:  logging.NewComponentLogger(logger, "backfill"),
	}
}

// Run fingerprints up to limit assets (all when limit <= 0) and waits for
// their writes to land.
func (b *Backfiller) Run(ctx context.Context, limit int) (BackfillReport, error) {
	var report BackfillReport
	assets, err := b.store.Assets().MissingFingerprints(ctx, limit)
	if err != nil {
		return report, fmt.Errorf("list unfingerprinted assets: %w", err)
	}
	report.Scanned = len(assets)
	if len(assets) == 0 {
		return report, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i := range assets {
		asset := assets[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			exact, visual := b.compute(gctx, asset)
			if exact == "" && visual == "" {
				mu.Lock()
				report.Failed++
				mu.Unlock()
				return nil
			}
			return b.coord.Do(func(ctx context.Context) {
				dup, err := b.persist(ctx, asset, exact, visual)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					report.Failed++
					logging.WarnWithContext(b.logger, "fingerprint write failed", "backfill_write_failed",
						logging.String(logging.FieldMediaUID, asset.MediaUID),
						logging.Error(err),
					)
					return
				}
				if exact != "" {
					report.Exact++
				}
				if visual != "" {
					report.Visual++
				}
				if dup != nil {
					report.Duplicates = append(report.Duplicates, *dup)
				}
			})
		})
	}
	err = g.Wait()
	// Submitted writes still update report after an early stop.
	if drainErr := b.coord.Drain(context.WithoutCancel(ctx)); err == nil {
		err = drainErr
	}

	mu.Lock()
	defer mu.Unlock()
	report.Duplicates = slices.Clone(report.Duplicates)
	if err != nil {
		return report, err
	}
	b.logger.Info("fingerprint backfill complete",
		logging.Int("scanned", report.Scanned),
		logging.Int("exact", report.Exact),
		logging.Int("visual", report.Visual),
		logging.Int("failed", report.Failed),
		logging.Int("duplicates", len(report.Duplicates)),
	)
	return report, nil
}

// compute returns the fingerprints still missing on asset; "" means unset or failed.
func (b *Backfiller) compute(ctx context.Context, asset store.MediaAsset) (exact, visual string) {
	if asset.ExactFingerprint == "" {
		if digest, ok := b.fp.ComputeExact(asset.CurrentURI, asset.SizeBytes); ok {
			exact = digest
		}
	}
	if asset.VisualFingerprint == "" {
		if digest, ok := b.fp.ComputeVisual(ctx, asset.CurrentURI); ok {
			visual = digest
		}
	}
	return exact, visual
}

// persist stores the fingerprints and flags a newly discovered exact duplicate.
func (b *Backfiller) persist(ctx context.Context, asset store.MediaAsset, exact, visual string) (*Duplicate, error) {
	var dup *Duplicate
	err := b.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.Assets().UpdateFingerprints(ctx, asset.MediaUID, exact, visual); err != nil {
			return err
		}
		if exact == "" {
			return nil
		}
		others, err := tx.Assets().FindByExactFingerprint(ctx, exact, asset.MediaUID)
		if err != nil || len(others) == 0 {
			return err
		}
		if err := tx.LinkLog().Append(ctx, &store.IntegrityLinkLog{
			MediaUID: asset.MediaUID,
			Action:   store.ActionDuplicateExact,
			Score:    1,
		}); err != nil {
			return err
		}
		other := others[0]
		mine := visual
		if mine == "" {
			mine = asset.VisualFingerprint
		}
		dup = &Duplicate{
			MediaUID:         asset.MediaUID,
			OtherUID:         other.MediaUID,
			VisualSimilarity: fingerprint.VisualSimilarity(mine, other.VisualFingerprint),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if dup != nil {
		b.logger.Info("exact duplicate flagged for review",
			logging.String(logging.FieldMediaUID, dup.MediaUID),
			logging.String("other_uid", dup.OtherUID),
			logging.Float64("visual_similarity", dup.VisualSimilarity),
		)
	}
	return dup, nil
}
