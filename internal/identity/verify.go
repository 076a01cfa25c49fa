package identity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"vidtrace/internal/fingerprint"
	"vidtrace/internal/logging"
	"vidtrace/internal/store"
)

// VerifyReport summarizes one verify pass.
type VerifyReport struct {
	Checked  int `json:"checked"`
	Missing  int `json:"missing"`
	Restored int `json:"restored"`
	Skipped  int `json:"skipped"`
}

// Verifier flags assets whose current file no longer exists.
type Verifier struct {
	store  *store.Store
	coord  *Coordinator
	logger *slog.Logger
	stat   func(string) (os.FileInfo, error)
}

// NewVerifier constructs a Verifier writing through coord.
func NewVerifier(st *store.Store, coord *Coordinator, logger *slog.Logger) *Verifier {
	return &Verifier{
		store:  st,
		coord:  coord,
		logger: logging.NewComponentLogger(logger, "verify"),
		stat:   os.Stat,
	}
}

// Run stats every asset's current uri and updates media_missing where it changed.
// Non-file uris and stat errors other than not-exist are skipped.
func (v *Verifier) Run(ctx context.Context) (VerifyReport, error) {
	var report VerifyReport
	assets, err := v.store.Assets().List(ctx, 0)
	if err != nil {
		return report, fmt.Errorf("list assets: %w", err)
	}

	// The writer goroutine updates report concurrently with this loop.
	var mu sync.Mutex
	count := func(fn func()) {
		mu.Lock()
		fn()
		mu.Unlock()
	}
	for _, asset := range assets {
		path, err := fingerprint.PathFromURI(asset.CurrentURI)
		if err != nil {
			count(func() { report.Skipped++ })
			continue
		}
		missing := false
		if _, err := v.stat(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				v.logger.Debug("stat failed", logging.String(logging.FieldURI, asset.CurrentURI), logging.Error(err))
				count(func() { report.Skipped++ })
				continue
			}
			missing = true
		}
		count(func() { report.Checked++ })
		if missing == asset.MediaMissing {
			if missing {
				count(func() { report.Missing++ })
			}
			continue
		}

		uid := asset.MediaUID
		if err := v.coord.Do(func(ctx context.Context) {
			err := v.store.Assets().SetMediaMissing(ctx, uid, missing)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Skipped++
				logging.WarnWithContext(v.logger, "media state update failed", "verify_write_failed",
					logging.String(logging.FieldMediaUID, uid),
					logging.Error(err),
				)
			case missing:
				report.Missing++
			default:
				report.Restored++
			}
		}); err != nil {
			mu.Lock()
			defer mu.Unlock()
			return report, err
		}
	}
	drainErr := v.coord.Drain(ctx)

	mu.Lock()
	defer mu.Unlock()
	if drainErr != nil {
		return report, drainErr
	}
	v.logger.Info("verify pass complete",
		logging.Int("checked", report.Checked),
		logging.Int("missing", report.Missing),
		logging.Int("restored", report.Restored),
		logging.Int("skipped", report.Skipped),
	)
	return report, nil
}
