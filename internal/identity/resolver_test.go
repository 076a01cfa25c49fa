package identity

import (
	"context"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"

	"vidtrace/internal/fingerprint"
	"vidtrace/internal/logging"
	"vidtrace/internal/store"
	"vidtrace/internal/testsupport"
)

type stubProber struct {
	md    fingerprint.Metadata
	calls int
}

func (p *stubProber) Metadata(context.Context, string) fingerprint.Metadata {
	p.calls++
	return p.md
}

func newResolver(t *testing.T, opts ...ResolverOption) (*Resolver, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	return NewResolver(st, logging.NewNop(), opts...), st
}

func TestResolveCreatesNewAsset(t *testing.T) {
	r, st := newResolver(t, WithProber(&stubProber{md: fingerprint.Metadata{DurationMs: 9000, CodecInfo: "video/mp4;codecs=h264"}}))
	ctx := context.Background()

	res := r.ResolveBatch(ctx, []Observation{{
		URI: "/videos/front/a.mp4", DisplayName: "a.mp4", SizeBytes: 5000, Category: "CAMERA", Subtype: "FRONT",
	}})
	if res.Created != 1 || len(res.Outcomes) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	asset, err := st.Assets().FindByCurrentURI(ctx, "/videos/front/a.mp4")
	if err != nil || asset == nil {
		t.Fatalf("find asset: %v %v", asset, err)
	}
	if asset.LinkStatus != store.LinkNew || asset.CategorySubtype != "CAMERA/FRONT" {
		t.Fatalf("unexpected asset: %+v", asset)
	}
	if asset.DurationMs != 9000 || asset.CodecInfo != "video/mp4;codecs=h264" {
		t.Fatalf("metadata not probed: %+v", asset)
	}
	if asset.ExactFingerprint != "" || asset.VisualFingerprint != "" {
		t.Fatalf("fingerprints should be null: %+v", asset)
	}
}

func TestResolveDurationHintSkipsProbedDuration(t *testing.T) {
	prober := &stubProber{md: fingerprint.Metadata{DurationMs: 1, CodecInfo: "video/webm"}}
	r, st := newResolver(t, WithProber(prober))
	ctx := context.Background()

	r.ResolveBatch(ctx, []Observation{{URI: "/v/a.webm", SizeBytes: 10, DurationHintMs: 4000}})
	asset, _ := st.Assets().FindByCurrentURI(ctx, "/v/a.webm")
	if asset == nil || asset.DurationMs != 4000 || asset.CodecInfo != "video/webm" {
		t.Fatalf("unexpected asset: %+v", asset)
	}
}

func TestResolveSameURIIsIdempotent(t *testing.T) {
	r, st := newResolver(t)
	ctx := context.Background()
	obs := Observation{URI: "/v/a.mp4", DisplayName: "a.mp4", SizeBytes: 100, DurationHintMs: 1000}

	first := r.ResolveBatch(ctx, []Observation{obs})
	obs.SizeBytes = 150
	second := r.ResolveBatch(ctx, []Observation{obs})
	if first.Created != 1 || second.Exact != 1 || second.Created != 0 {
		t.Fatalf("first=%+v second=%+v", first, second)
	}
	if n, _ := st.Assets().Count(ctx); n != 1 {
		t.Fatalf("asset count = %d, want 1", n)
	}
	asset, _ := st.Assets().FindByCurrentURI(ctx, "/v/a.mp4")
	if asset.LinkStatus != store.LinkExact || asset.SizeBytes != 150 {
		t.Fatalf("asset not refreshed: %+v", asset)
	}
	if asset.MediaUID != second.Outcomes[0].MediaUID {
		t.Fatalf("identity changed: %s vs %s", asset.MediaUID, second.Outcomes[0].MediaUID)
	}
}

func TestResolveExactKeepsProbableStatus(t *testing.T) {
	r, st := newResolver(t)
	ctx := context.Background()
	asset := testsupport.InsertAsset(t, st, "/v/old/a.mp4", "a.mp4", 1000, 2000)

	r.ResolveBatch(ctx, []Observation{{URI: "/v/new/a.mp4", DisplayName: "a.mp4", SizeBytes: 1000, DurationHintMs: 2000}})
	r.ResolveBatch(ctx, []Observation{{URI: "/v/new/a.mp4", DisplayName: "a.mp4", SizeBytes: 1000, DurationHintMs: 2000}})

	got, _ := st.Assets().FindByMediaUID(ctx, asset.MediaUID)
	if got.LinkStatus != store.LinkProbable {
		t.Fatalf("status = %s, want PROBABLE", got.LinkStatus)
	}
}

func TestResolveIdenticalItemLinksProbable(t *testing.T) {
	r, st := newResolver(t)
	ctx := context.Background()
	asset := testsupport.InsertAsset(t, st, "/v/old/a.mp4", "a.mp4", 1000, 2000)

	res := r.ResolveBatch(ctx, []Observation{{URI: "/v/new/a.mp4", DisplayName: "a.mp4", SizeBytes: 1000, DurationHintMs: 2000}})
	if res.Probable != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	out := res.Outcomes[0]
	if out.MediaUID != asset.MediaUID || math.Abs(out.Score-1) > 1e-9 || out.PreviousURI != "/v/old/a.mp4" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	got, _ := st.Assets().FindByMediaUID(ctx, asset.MediaUID)
	if got.CurrentURI != "/v/new/a.mp4" || got.LinkStatus != store.LinkProbable {
		t.Fatalf("asset not relinked: %+v", got)
	}
	if n, _ := st.Assets().Count(ctx); n != 1 {
		t.Fatalf("asset count = %d, want 1", n)
	}

	ops, err := st.SyncQueue().Pending(ctx, 10)
	if err != nil || len(ops) != 1 {
		t.Fatalf("pending ops = %v, %v", ops, err)
	}
	if ops[0].EntityType != store.EntityMediaAsset || ops[0].Operation != store.OpRelink || ops[0].EntityID != asset.MediaUID {
		t.Fatalf("unexpected op: %+v", ops[0])
	}
	var payload relinkPayload
	if err := json.Unmarshal([]byte(ops[0].PayloadJSON), &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.PreviousURI != "/v/old/a.mp4" || payload.CurrentURI != "/v/new/a.mp4" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestResolveShiftedClipScenario(t *testing.T) {
	r, st := newResolver(t)
	ctx := context.Background()
	asset := testsupport.InsertAsset(t, st, "/v/2024/clip.mp4", "clip.mp4", 10_000_000, 60_000)

	res := r.ResolveBatch(ctx, []Observation{{URI: "/v/archive/clip.mp4", DisplayName: "clip.mp4", SizeBytes: 10_400_000, DurationHintMs: 60_900}})
	if res.Probable != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	logs, err := st.LinkLog().ByMedia(ctx, asset.MediaUID)
	if err != nil {
		t.Fatalf("link log: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("link log rows = %d, want 1", len(logs))
	}
	want := 0.45*(10_000_000.0/10_400_000.0) + 0.45*(60_000.0/60_900.0) + 0.10
	if logs[0].Action != store.ActionLinkedProbable || math.Abs(logs[0].Score-want) > 1e-9 {
		t.Fatalf("unexpected log row: %+v (want score %v)", logs[0], want)
	}
	if logs[0].Score < 0.92 {
		t.Fatalf("score %v below threshold", logs[0].Score)
	}
}

func TestResolveWindowExcludesDistantCandidates(t *testing.T) {
	r, st := newResolver(t)
	ctx := context.Background()
	testsupport.InsertAsset(t, st, "/v/big.mp4", "a.mp4", 1_000_000+1_500_001, 60_000)
	testsupport.InsertAsset(t, st, "/v/long.mp4", "a.mp4", 1_000_000, 60_000+2_501)

	res := r.ResolveBatch(ctx, []Observation{{URI: "/v/a.mp4", DisplayName: "a.mp4", SizeBytes: 1_000_000, DurationHintMs: 60_000}})
	if res.Created != 1 || res.Probable != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if n, _ := st.LinkLog().Count(ctx); n != 0 {
		t.Fatalf("link log rows = %d, want 0", n)
	}
}

func TestResolveBelowThresholdCreatesNew(t *testing.T) {
	r, st := newResolver(t)
	ctx := context.Background()
	// size 0.8, duration 0.96, name 0: well below 0.92.
	testsupport.InsertAsset(t, st, "/v/other.mp4", "other.mp4", 1_200_000, 60_000)

	res := r.ResolveBatch(ctx, []Observation{{URI: "/v/a.mp4", DisplayName: "a.mp4", SizeBytes: 960_000, DurationHintMs: 57_600}})
	if res.Created != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if n, _ := st.Assets().Count(ctx); n != 2 {
		t.Fatalf("asset count = %d, want 2", n)
	}
}

func TestResolvePrefersHighestScore(t *testing.T) {
	r, st := newResolver(t)
	ctx := context.Background()
	testsupport.InsertAsset(t, st, "/v/near.mp4", "x.mp4", 1_000_100, 60_000)
	exact := testsupport.InsertAsset(t, st, "/v/same.mp4", "a.mp4", 1_000_000, 60_000)

	res := r.ResolveBatch(ctx, []Observation{{URI: "/v/a.mp4", DisplayName: "a.mp4", SizeBytes: 1_000_000, DurationHintMs: 60_000}})
	if res.Probable != 1 || res.Outcomes[0].MediaUID != exact.MediaUID {
		t.Fatalf("unexpected outcome: %+v", res.Outcomes)
	}
}

func TestResolveSkipsCandidateWhoseFileStillExists(t *testing.T) {
	r, st := newResolver(t)
	ctx := context.Background()
	original := filepath.Join(t.TempDir(), "a.mp4")
	testsupport.WriteFile(t, original, 64)
	testsupport.InsertAsset(t, st, original, "a.mp4", 1000, 2000)

	res := r.ResolveBatch(ctx, []Observation{{URI: "/v/copy/a.mp4", DisplayName: "a.mp4", SizeBytes: 1000, DurationHintMs: 2000}})
	if res.Created != 1 || res.Probable != 0 {
		t.Fatalf("copy stole identity: %+v", res)
	}
}

func TestResolveLiveTopCandidateBlocksRunnerUp(t *testing.T) {
	r, st := newResolver(t)
	ctx := context.Background()
	live := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteFile(t, live, 64)
	testsupport.InsertAsset(t, st, live, "clip.mp4", 10_000_000, 60_000)
	gone := testsupport.InsertAsset(t, st, "/gone/clip.mp4", "clip.mp4", 10_300_000, 60_500)

	policy := r.Policy()
	runnerUp := policy.score(10_000_000, 60_000, "clip.mp4", *gone)
	if runnerUp.Total < policy.ProbableThreshold {
		t.Fatalf("runner-up score %.4f should clear the threshold", runnerUp.Total)
	}

	res := r.ResolveBatch(ctx, []Observation{{URI: "/new/clip.mp4", DisplayName: "clip.mp4", SizeBytes: 10_000_000, DurationHintMs: 60_000}})
	if res.Created != 1 || res.Probable != 0 {
		t.Fatalf("expected a new asset, got %+v", res.Outcomes)
	}
	after, err := st.Assets().FindByMediaUID(ctx, gone.MediaUID)
	if err != nil || after == nil {
		t.Fatalf("find runner-up: %v %v", after, err)
	}
	if after.CurrentURI != "/gone/clip.mp4" || after.LinkStatus != store.LinkNew {
		t.Fatalf("runner-up was relinked: %+v", after)
	}
	if n, _ := st.LinkLog().Count(ctx); n != 0 {
		t.Fatalf("link log rows = %d, want 0", n)
	}
}

func TestResolveIsolatesFailingItems(t *testing.T) {
	r, st := newResolver(t)
	ctx := context.Background()

	res := r.ResolveBatch(ctx, []Observation{
		{URI: "/v/a.mp4", SizeBytes: 1},
		{URI: "   "},
		{URI: "/v/b.mp4", SizeBytes: 2},
	})
	if res.Created != 2 || res.Skipped != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Outcomes[1].Decision != DecisionSkipped || res.Outcomes[1].Error == "" {
		t.Fatalf("unexpected skipped outcome: %+v", res.Outcomes[1])
	}
	if n, _ := st.Assets().Count(ctx); n != 2 {
		t.Fatalf("asset count = %d, want 2", n)
	}
}
