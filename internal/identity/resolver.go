package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"vidtrace/internal/fingerprint"
	"vidtrace/internal/logging"
	"vidtrace/internal/store"
)

// Observation is one file seen by an enumeration pass.
type Observation struct {
	URI            string `json:"uri"`
	DisplayName    string `json:"display_name"`
	SizeBytes      int64  `json:"size_bytes"`
	DurationHintMs int64  `json:"duration_hint_ms"`
	Category       string `json:"category"`
	Subtype        string `json:"subtype"`
}

// Decision is the outcome of resolving one observation.
type Decision string

const (
	DecisionExact    Decision = "exact"
	DecisionProbable Decision = "probable"
	DecisionCreated  Decision = "created"
	DecisionSkipped  Decision = "skipped"
)

// Outcome describes how one observation was resolved.
type Outcome struct {
	URI         string   `json:"uri"`
	MediaUID    string   `json:"media_uid,omitempty"`
	Decision    Decision `json:"decision"`
	PreviousURI string   `json:"previous_uri,omitempty"`
	Score       float64  `json:"score,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// BatchResult summarizes one resolution pass.
type BatchResult struct {
	Exact    int       `json:"exact"`
	Probable int       `json:"probable"`
	Created  int       `json:"created"`
	Skipped  int       `json:"skipped"`
	Outcomes []Outcome `json:"outcomes,omitempty"`
}

func (r *BatchResult) add(o Outcome) {
	switch o.Decision {
	case DecisionExact:
		r.Exact++
	case DecisionProbable:
		r.Probable++
	case DecisionCreated:
		r.Created++
	default:
		r.Skipped++
	}
	r.Outcomes = append(r.Outcomes, o)
}

// Merge folds other into r.
func (r *BatchResult) Merge(other BatchResult) {
	r.Exact += other.Exact
	r.Probable += other.Probable
	r.Created += other.Created
	r.Skipped += other.Skipped
	r.Outcomes = append(r.Outcomes, other.Outcomes...)
}

// Prober supplies container metadata for an observed file.
type Prober interface {
	Metadata(ctx context.Context, ref string) fingerprint.Metadata
}

// relinkPayload is the outbox body for a PROBABLE relink.
type relinkPayload struct {
	MediaUID    string  `json:"media_uid"`
	PreviousURI string  `json:"previous_uri"`
	CurrentURI  string  `json:"current_uri"`
	Score       float64 `json:"score"`
	LinkedAt    int64   `json:"linked_at_epoch_ms"`
}

// Resolver maps observed files to durable identities.
type Resolver struct {
	store  *store.Store
	policy Policy
	prober Prober
	logger *slog.Logger
	now    func() time.Time
	exists func(ref string) bool
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithPolicy overrides the relink policy.
func WithPolicy(p Policy) ResolverOption {
	return func(r *Resolver) { r.policy = p.normalized() }
}

// WithProber sets the metadata source. Without one, durations come only from
// observation hints and codec info stays empty.
func WithProber(p Prober) ResolverOption {
	return func(r *Resolver) { r.prober = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResolver constructs a Resolver writing to st.
func NewResolver(st *store.Store, logger *slog.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:  st,
		policy: DefaultPolicy(),
		logger: logging.NewComponentLogger(logger, "identity"),
		now:    func() time.Time { return time.Now().UTC() },
		exists: fileExists,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the active relink policy.
func (r *Resolver) Policy() Policy {
	return r.policy
}

// ResolveBatch resolves items in order. A failing item is logged and skipped;
// the rest of the batch still runs.
func (r *Resolver) ResolveBatch(ctx context.Context, batch []Observation) BatchResult {
	var result BatchResult
	for _, obs := range batch {
		outcome, err := r.resolveOne(ctx, obs)
		if err != nil {
			logging.WarnWithContext(r.logger, "observation skipped", "resolve_failed",
				logging.String(logging.FieldURI, obs.URI),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the database and file path"),
			)
			outcome = Outcome{URI: obs.URI, Decision: DecisionSkipped, Error: err.Error()}
		}
		result.add(outcome)
	}
	r.logger.Info("batch resolved",
		logging.Int("items", len(batch)),
		logging.Int("exact", result.Exact),
		logging.Int("probable", result.Probable),
		logging.Int("created", result.Created),
		logging.Int("skipped", result.Skipped),
	)
	return result
}

func (r *Resolver) resolveOne(ctx context.Context, obs Observation) (Outcome, error) {
	uri := strings.TrimSpace(obs.URI)
	if uri == "" {
		return Outcome{}, errors.New("observation uri is empty")
	}
	obs.URI = uri
	if obs.SizeBytes < 0 {
		obs.SizeBytes = 0
	}
	now := r.now()
	durationMs, codec := r.metadata(ctx, obs)

	assets := r.store.Assets()
	existing, err := assets.FindByCurrentURI(ctx, uri)
	if err != nil {
		return Outcome{}, err
	}
	if existing != nil {
		return r.refresh(ctx, existing, obs, durationMs, codec, now)
	}

	best, score, err := r.bestCandidate(ctx, obs, durationMs)
	if err != nil {
		return Outcome{}, err
	}
	if best != nil && score.Total >= r.policy.ProbableThreshold {
		return r.relink(ctx, best, obs, durationMs, codec, score, now)
	}

	asset := &store.MediaAsset{
		CurrentURI:      uri,
		DisplayName:     obs.DisplayName,
		CategorySubtype: obs.Category + "/" + obs.Subtype,
		SizeBytes:       obs.SizeBytes,
		DurationMs:      durationMs,
		CodecInfo:       codec,
		FirstSeenAt:     now,
		LastSeenAt:      now,
		LinkStatus:      store.LinkNew,
	}
	stored, err := assets.Ensure(ctx, asset)
	if err != nil {
		return Outcome{}, err
	}
	if stored.MediaUID != asset.MediaUID {
		// The uri was claimed between lookup and insert; treat it as a sighting.
		return r.refresh(ctx, stored, obs, durationMs, codec, now)
	}
	r.logger.Debug("asset created",
		logging.String(logging.FieldMediaUID, stored.MediaUID),
		logging.String(logging.FieldURI, uri),
	)
	return Outcome{URI: uri, MediaUID: stored.MediaUID, Decision: DecisionCreated}, nil
}

// metadata returns the duration (hint first, then probe) and codec for obs.
func (r *Resolver) metadata(ctx context.Context, obs Observation) (int64, string) {
	duration := obs.DurationHintMs
	if r.prober == nil {
		return max(duration, 0), ""
	}
	md := r.prober.Metadata(ctx, obs.URI)
	if duration <= 0 {
		duration = md.DurationMs
	}
	return max(duration, 0), md.CodecInfo
}

func (r *Resolver) refresh(ctx context.Context, asset *store.MediaAsset, obs Observation, durationMs int64, codec string, now time.Time) (Outcome, error) {
	if obs.DisplayName != "" {
		asset.DisplayName = obs.DisplayName
	}
	asset.SizeBytes = obs.SizeBytes
	if durationMs > 0 {
		asset.DurationMs = durationMs
	}
	if codec != "" {
		asset.CodecInfo = codec
	}
	asset.LastSeenAt = now
	if asset.LinkStatus == "" || asset.LinkStatus == store.LinkNew {
		asset.LinkStatus = store.LinkExact
	}
	if err := r.store.Assets().UpdateLinkAndMetadata(ctx, asset); err != nil {
		return Outcome{}, err
	}
	return Outcome{URI: obs.URI, MediaUID: asset.MediaUID, Decision: DecisionExact}, nil
}

// bestCandidate returns the highest scoring asset in the candidate window.
// Ties keep the most recently seen asset. When that asset's file still exists
// no candidate is returned; lower scorers are never considered in its place.
func (r *Resolver) bestCandidate(ctx context.Context, obs Observation, durationMs int64) (*store.MediaAsset, Score, error) {
	candidates, err := r.store.Assets().FindProbableCandidates(ctx, r.policy.window(obs.SizeBytes, durationMs))
	if err != nil {
		return nil, Score{}, err
	}
	var (
		best      *store.MediaAsset
		bestScore Score
	)
	for i := range candidates {
		c := &candidates[i]
		if c.CurrentURI == obs.URI {
			continue
		}
		s := r.policy.score(obs.SizeBytes, durationMs, obs.DisplayName, *c)
		if best == nil || s.Total > bestScore.Total {
			best, bestScore = c, s
		}
	}
	if best == nil {
		return nil, Score{}, nil
	}
	if r.policy.SkipLiveCandidates && r.exists(best.CurrentURI) {
		attrs := append(logging.DecisionAttrs("relink_candidate", "rejected", "source file still exists"),
			logging.String(logging.FieldMediaUID, best.MediaUID),
			logging.String(logging.FieldURI, obs.URI),
			logging.Float64("score", bestScore.Total),
		)
		r.logger.Debug("top candidate still present at its uri", logging.Args(attrs...)...)
		return nil, Score{}, nil
	}
	return best, bestScore, nil
}

func (r *Resolver) relink(ctx context.Context, asset *store.MediaAsset, obs Observation, durationMs int64, codec string, score Score, now time.Time) (Outcome, error) {
	previous := asset.CurrentURI
	asset.CurrentURI = obs.URI
	if obs.DisplayName != "" {
		asset.DisplayName = obs.DisplayName
	}
	asset.SizeBytes = obs.SizeBytes
	if durationMs > 0 {
		asset.DurationMs = durationMs
	}
	if codec != "" {
		asset.CodecInfo = codec
	}
	asset.LastSeenAt = now
	asset.LinkStatus = store.LinkProbable

	err := r.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.Assets().UpdateLinkAndMetadata(ctx, asset); err != nil {
			return err
		}
		if err := tx.LinkLog().Append(ctx, &store.IntegrityLinkLog{
			MediaUID:  asset.MediaUID,
			Action:    store.ActionLinkedProbable,
			Score:     score.Total,
			Timestamp: now,
		}); err != nil {
			return err
		}
		return tx.SyncQueue().EnqueueJSON(ctx, store.EntityMediaAsset, asset.MediaUID, store.OpRelink, relinkPayload{
			MediaUID:    asset.MediaUID,
			PreviousURI: previous,
			CurrentURI:  asset.CurrentURI,
			Score:       score.Total,
			LinkedAt:    now.UnixMilli(),
		})
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("relink %s: %w", asset.MediaUID, err)
	}

	attrs := append(logging.DecisionAttrs("relink", "probable", "score above threshold"),
		logging.String(logging.FieldMediaUID, asset.MediaUID),
		logging.String("previous_uri", previous),
		logging.String(logging.FieldURI, asset.CurrentURI),
		logging.Float64("score", score.Total),
	)
	r.logger.Info("asset relinked", logging.Args(attrs...)...)
	return Outcome{
		URI:         obs.URI,
		MediaUID:    asset.MediaUID,
		Decision:    DecisionProbable,
		PreviousURI: previous,
		Score:       score.Total,
	}, nil
}

// fileExists reports whether ref names a file that can be stat'ed. Non-file
// refs are never considered present.
func fileExists(ref string) bool {
	path, err := fingerprint.PathFromURI(ref)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}
