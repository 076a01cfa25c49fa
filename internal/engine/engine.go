package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"vidtrace/internal/config"
	"vidtrace/internal/events"
	"vidtrace/internal/fingerprint"
	"vidtrace/internal/identity"
	"vidtrace/internal/library"
	"vidtrace/internal/logging"
	"vidtrace/internal/store"
)

var (
	// ErrLocked is returned when another process owns the data directory.
	ErrLocked = errors.New("data directory locked by another vidtrace process")
	// ErrDisabled is returned by Index when forensics.enabled is false.
	ErrDisabled = errors.New("forensics disabled")
)

// Engine owns the long-lived components of one vidtrace process.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger
	runID  string

	lock       *flock.Flock
	store      *store.Store
	fp         *fingerprint.Engine
	resolver   *identity.Resolver
	coord      *identity.Coordinator
	aggregator *events.Aggregator
	scanner    *library.Scanner

	closeOnce sync.Once
	closeErr  error
}

type options struct {
	fingerprint []fingerprint.Option
}

// Option customizes Open.
type Option func(*options)

// WithFingerprintOptions passes options through to the fingerprint engine.
func WithFingerprintOptions(opts ...fingerprint.Option) Option {
	return func(o *options) { o.fingerprint = append(o.fingerprint, opts...) }
}

// Open locks the data directory and starts every component.
func Open(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine requires config")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.String(logging.FieldRunID, runID))

	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, cfg.LockPath())
	}

	st, err := store.Open(cfg)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	fp := fingerprint.New(cfg, logger, o.fingerprint...)
	resolver := identity.NewResolver(st, logger,
		identity.WithPolicy(identity.PolicyFromConfig(cfg)),
		identity.WithProber(fp),
	)
	e := &Engine{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "engine"),
		runID:      runID,
		lock:       lock,
		store:      st,
		fp:         fp,
		resolver:   resolver,
		coord:      identity.NewCoordinator(resolver, logger),
		aggregator: events.New(st, cfg.Forensics, logger),
		scanner:    library.NewScanner(cfg.Library.Extensions, logger),
	}
	e.logger.Debug("engine opened",
		logging.String("database", st.Path()),
		logging.String("lock", cfg.LockPath()),
	)
	return e, nil
}

// RunID identifies this process in logs.
func (e *Engine) RunID() string { return e.runID }

// Context returns ctx tagged with the engine's run id.
func (e *Engine) Context(ctx context.Context) context.Context {
	return logging.WithRunID(ctx, e.runID)
}

func (e *Engine) Config() *config.Config { return e.cfg }

func (e *Engine) Store() *store.Store { return e.store }

func (e *Engine) Fingerprints() *fingerprint.Engine { return e.fp }

func (e *Engine) Coordinator() *identity.Coordinator { return e.coord }

func (e *Engine) Aggregator() *events.Aggregator { return e.aggregator }

// Index scans roots (the configured roots when empty), resolves every file
// found, and waits for resolution to finish.
func (e *Engine) Index(ctx context.Context, roots []string) (identity.BatchResult, error) {
	if !e.cfg.Forensics.Enabled {
		return identity.BatchResult{}, ErrDisabled
	}
	if len(roots) == 0 {
		roots = e.cfg.Library.Roots
	}
	if len(roots) == 0 {
		return identity.BatchResult{}, errors.New("no library roots configured")
	}
	observations, err := e.scanner.Scan(ctx, roots)
	if err != nil {
		return identity.BatchResult{}, err
	}
	return e.IndexObservations(ctx, observations)
}

// IndexObservations resolves observations in batches and waits for them.
func (e *Engine) IndexObservations(ctx context.Context, observations []identity.Observation) (identity.BatchResult, error) {
	if !e.cfg.Forensics.Enabled {
		return identity.BatchResult{}, ErrDisabled
	}
	var (
		mu     sync.Mutex
		result identity.BatchResult
	)
	for _, batch := range library.Batches(observations, library.DefaultBatchSize) {
		if err := e.coord.EnqueueNotify(batch, func(r identity.BatchResult) {
			mu.Lock()
			result.Merge(r)
			mu.Unlock()
		}); err != nil {
			return result, err
		}
	}
	if err := e.coord.Drain(ctx); err != nil {
		return result, err
	}
	mu.Lock()
	defer mu.Unlock()
	e.logger.Info("index complete",
		logging.Int("observations", len(observations)),
		logging.Int("exact", result.Exact),
		logging.Int("probable", result.Probable),
		logging.Int("created", result.Created),
		logging.Int("skipped", result.Skipped),
	)
	return result, nil
}

// Backfill computes missing fingerprints for up to limit assets.
func (e *Engine) Backfill(ctx context.Context, limit int) (identity.BackfillReport, error) {
	b := identity.NewBackfiller(e.store, e.fp, e.coord, e.cfg.Fingerprint.BackfillWorkers, e.logger)
	return b.Run(ctx, limit)
}

// Verify refreshes media_missing for every asset.
func (e *Engine) Verify(ctx context.Context) (identity.VerifyReport, error) {
	return identity.NewVerifier(e.store, e.coord, e.logger).Run(ctx)
}

// Close stops the workers, closes the store, and releases the lock. Open
// segments are not flushed.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.aggregator.Close()
		e.coord.Close()
		var errs []error
		if err := e.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		if err := e.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("release lock: %w", err))
		}
		e.closeErr = errors.Join(errs...)
	})
	return e.closeErr
}
