package events

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"vidtrace/internal/config"
	"vidtrace/internal/logging"
	"vidtrace/internal/serial"
	"vidtrace/internal/store"
)

// ErrClosed is returned when samples arrive after Close.
var ErrClosed = errors.New("event aggregator closed")

// Aggregator folds motion samples into segments and persists closed segments.
type Aggregator struct {
	store  *store.Store
	queue  *serial.Queue
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	flags  config.Forensics
	active *Segment
}

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the wall clock used for detection and first-seen times.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// New starts an aggregator gated by flags.
func New(st *store.Store, flags config.Forensics, logger *slog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:  st,
		queue:  serial.New("event-aggregator", logger),
		logger: logging.NewComponentLogger(logger, "event-aggregator"),
		now:    func() time.Time { return time.Now().UTC() },
		flags:  flags,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetFlags replaces the feature toggles. Samples already queued are unaffected.
func (a *Aggregator) SetFlags(flags config.Forensics) {
	a.mu.Lock()
	a.flags = flags
	a.mu.Unlock()
}

func (a *Aggregator) enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flags.Enabled && a.flags.PersonEventsEnabled
}

// Active returns a copy of the open segment, or nil when idle.
func (a *Aggregator) Active() *Segment {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active == nil {
		return nil
	}
	seg := *a.active
	return &seg
}

// OnMotionStart records a motion sample. It is ignored while event collection
// is disabled.
func (a *Aggregator) OnMotionStart(s Sample) error {
	if !a.enabled() {
		return nil
	}
	s.URI = strings.TrimSpace(s.URI)
	if s.URI == "" {
		return errors.New("motion sample uri is empty")
	}
	return a.submit(func(ctx context.Context) { a.start(ctx, s) })
}

// OnMotionStop closes the active segment at timelineMs.
func (a *Aggregator) OnMotionStop(timelineMs int64) error {
	return a.submit(func(ctx context.Context) { a.closeActive(ctx, timelineMs, "stop") })
}

// Flush closes the active segment at timelineMs. Flushing while idle writes nothing.
func (a *Aggregator) Flush(timelineMs int64) error {
	return a.submit(func(ctx context.Context) { a.closeActive(ctx, timelineMs, "flush") })
}

// Drain waits for every previously submitted signal to be processed.
func (a *Aggregator) Drain(ctx context.Context) error {
	return a.queue.Drain(ctx)
}

// Close processes queued signals and stops the worker. An open segment is
// left unpersisted; call Flush first to keep it.
func (a *Aggregator) Close() {
	a.queue.Close()
	if seg := a.Active(); seg != nil {
		logging.WarnWithContext(a.logger, "aggregator closed with open segment", "segment_dropped",
			logging.String(logging.FieldMediaUID, seg.MediaUID),
			logging.String(logging.FieldURI, seg.URI),
			logging.String(logging.FieldImpact, "segment not persisted"),
			logging.String(logging.FieldErrorHint, "flush before shutdown"),
		)
	}
}

func (a *Aggregator) submit(fn func(ctx context.Context)) error {
	err := a.queue.Submit(func() { fn(context.Background()) })
	if errors.Is(err, serial.ErrClosed) {
		return ErrClosed
	}
	return err
}

func (a *Aggregator) start(ctx context.Context, s Sample) {
	a.mu.Lock()
	current := a.active
	if current != nil && current.URI == s.URI {
		current.observe(s)
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	if current != nil {
		// Rollover: the old segment ends where the new one begins.
		a.closeActive(ctx, max(current.StartMs, s.TimelineMs), "rollover")
	}

	mediaUID, err := a.ensureAsset(ctx, s.URI)
	if err != nil {
		logging.WarnWithContext(a.logger, "segment not opened", "ensure_asset_failed",
			logging.String(logging.FieldURI, s.URI),
			logging.Error(err),
			logging.String(logging.FieldImpact, "motion sample dropped"),
		)
		return
	}

	seg := newSegment(mediaUID, s)
	a.mu.Lock()
	a.active = seg
	a.mu.Unlock()
	a.logger.Debug("segment opened",
		logging.String(logging.FieldMediaUID, mediaUID),
		logging.String(logging.FieldURI, s.URI),
		logging.Int64("start_ms", seg.StartMs),
	)
}

// ensureAsset returns the identity at uri, creating a bare NEW asset on first sight.
func (a *Aggregator) ensureAsset(ctx context.Context, uri string) (string, error) {
	now := a.now()
	asset, err := a.store.Assets().Ensure(ctx, &store.MediaAsset{
		CurrentURI:      uri,
		DisplayName:     displayName(uri),
		CategorySubtype: "UNKNOWN/UNKNOWN",
		FirstSeenAt:     now,
		LastSeenAt:      now,
		LinkStatus:      store.LinkNew,
	})
	if err != nil {
		return "", err
	}
	return asset.MediaUID, nil
}

// closeActive persists and clears the active segment. The segment is cleared
// even when the write fails.
func (a *Aggregator) closeActive(ctx context.Context, timelineMs int64, reason string) {
	a.mu.Lock()
	seg := a.active
	a.active = nil
	a.mu.Unlock()
	if seg == nil {
		return
	}

	ev := seg.event(timelineMs, a.now().UnixMilli())
	err := a.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.Events().Insert(ctx, ev); err != nil {
			return err
		}
		return tx.SyncQueue().EnqueueJSON(ctx, store.EntityAiEvent, ev.EventUID, store.OpCreate, ev)
	})
	if err != nil {
		logging.WarnWithContext(a.logger, "event not persisted", "event_persist_failed",
			logging.String(logging.FieldMediaUID, seg.MediaUID),
			logging.String("reason", reason),
			logging.Error(err),
			logging.String(logging.FieldImpact, "segment lost"),
		)
		return
	}
	a.logger.Info("event recorded",
		logging.String("event_uid", ev.EventUID),
		logging.String(logging.FieldMediaUID, ev.MediaUID),
		logging.String(logging.FieldEventType, ev.EventType),
		logging.Int64("start_ms", ev.StartMs),
		logging.Int64("end_ms", ev.EndMs),
		logging.Float64("confidence", ev.Confidence),
		logging.Int("priority", ev.Priority),
		logging.String("reason", reason),
	)
}

func displayName(uri string) string {
	trimmed := strings.TrimRight(uri, "/")
	if i := strings.Index(trimmed, "#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	name := path.Base(trimmed)
	if name == "." || name == "/" {
		return uri
	}
	return name
}
