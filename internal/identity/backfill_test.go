package identity

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"vidtrace/internal/fingerprint"
	"vidtrace/internal/logging"
	"vidtrace/internal/store"
	"vidtrace/internal/testsupport"
)

// hashOnlyFingerprinter computes real exact digests and returns a fixed visual hash.
type hashOnlyFingerprinter struct {
	visual string

	mu     sync.Mutex
	visits int
}

func (f *hashOnlyFingerprinter) ComputeExact(ref string, sizeHint int64) (string, bool) {
	return fingerprint.ComputeExact(ref, sizeHint)
}

func (f *hashOnlyFingerprinter) ComputeVisual(context.Context, string) (string, bool) {
	f.mu.Lock()
	f.visits++
	f.mu.Unlock()
	if f.visual == "" {
		return "", false
	}
	return f.visual, true
}

func newIdentityHarness(t *testing.T) (*store.Store, *Coordinator) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	coord := NewCoordinator(NewResolver(st, logging.NewNop()), logging.NewNop())
	t.Cleanup(coord.Close)
	return st, coord
}

func TestBackfillFillsFingerprints(t *testing.T) {
	st, coord := newIdentityHarness(t)
	ctx := context.Background()
	dir := t.TempDir()

	var uids []string
	for i, name := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		path := filepath.Join(dir, name)
		testsupport.WriteFile(t, path, int64(100_000+i))
		uids = append(uids, testsupport.InsertAsset(t, st, path, name, int64(100_000+i), 1000).MediaUID)
	}
	testsupport.InsertAsset(t, st, filepath.Join(dir, "gone.mp4"), "gone.mp4", 10, 1000)

	fp := &hashOnlyFingerprinter{visual: "ffff0000ffff0000"}
	report, err := NewBackfiller(st, fp, coord, 2, logging.NewNop()).Run(ctx, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Scanned != 4 || report.Exact != 3 || report.Visual != 4 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(report.Duplicates) != 0 {
		t.Fatalf("unexpected duplicates: %+v", report.Duplicates)
	}
	for _, uid := range uids {
		asset, _ := st.Assets().FindByMediaUID(ctx, uid)
		if len(asset.ExactFingerprint) != 64 || asset.VisualFingerprint != "ffff0000ffff0000" {
			t.Fatalf("fingerprints not stored: %+v", asset)
		}
	}
}

func TestBackfillFlagsExactDuplicates(t *testing.T) {
	st, coord := newIdentityHarness(t)
	ctx := context.Background()
	dir := t.TempDir()

	first := filepath.Join(dir, "first.mp4")
	testsupport.WriteFile(t, first, 200_000)
	original := testsupport.InsertAsset(t, st, first, "first.mp4", 200_000, 1000)
	bf := NewBackfiller(st, &hashOnlyFingerprinter{visual: "00000000000000ff"}, coord, 1, logging.NewNop())
	if _, err := bf.Run(ctx, 0); err != nil {
		t.Fatalf("first run: %v", err)
	}

	second := filepath.Join(dir, "second.mp4")
	data, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	testsupport.WriteBytes(t, second, data)
	copyAsset := testsupport.InsertAsset(t, st, second, "second.mp4", 200_000, 1000)

	report, err := bf.Run(ctx, 0)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(report.Duplicates) != 1 {
		t.Fatalf("duplicates = %+v", report.Duplicates)
	}
	dup := report.Duplicates[0]
	if dup.MediaUID != copyAsset.MediaUID || dup.OtherUID != original.MediaUID || dup.VisualSimilarity != 1 {
		t.Fatalf("unexpected duplicate: %+v", dup)
	}
	logs, _ := st.LinkLog().ByMedia(ctx, copyAsset.MediaUID)
	if len(logs) != 1 || logs[0].Action != store.ActionDuplicateExact || logs[0].Score != 1 {
		t.Fatalf("unexpected link log: %+v", logs)
	}
	if n, _ := st.Assets().Count(ctx); n != 2 {
		t.Fatalf("assets merged: count = %d", n)
	}
}

func TestBackfillCountsFailures(t *testing.T) {
	st, coord := newIdentityHarness(t)
	testsupport.InsertAsset(t, st, "/nonexistent/a.mp4", "a.mp4", 10, 1000)

	report, err := NewBackfiller(st, &hashOnlyFingerprinter{}, coord, 4, logging.NewNop()).Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Scanned != 1 || report.Failed != 1 || report.Exact != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

// cancellingFingerprinter cancels the run once the first digest is computed.
type cancellingFingerprinter struct {
	hashOnlyFingerprinter
	once   sync.Once
	cancel context.CancelFunc
}

func (f *cancellingFingerprinter) ComputeExact(ref string, sizeHint int64) (string, bool) {
	f.once.Do(f.cancel)
	return f.hashOnlyFingerprinter.ComputeExact(ref, sizeHint)
}

func TestBackfillReportsSubmittedWritesWhenCancelled(t *testing.T) {
	st, coord := newIdentityHarness(t)
	dir := t.TempDir()
	for i, name := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		path := filepath.Join(dir, name)
		testsupport.WriteFile(t, path, int64(50_000+i))
		testsupport.InsertAsset(t, st, path, name, int64(50_000+i), 1000)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fp := &cancellingFingerprinter{hashOnlyFingerprinter: hashOnlyFingerprinter{visual: "00ff00ff00ff00ff"}, cancel: cancel}

	report, err := NewBackfiller(st, fp, coord, 1, logging.NewNop()).Run(ctx, 0)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if report.Exact != 1 {
		t.Fatalf("report.Exact = %d, want the one write submitted before cancel", report.Exact)
	}

	missing, err := st.Assets().MissingFingerprints(context.Background(), 0)
	if err != nil {
		t.Fatalf("missing fingerprints: %v", err)
	}
	if len(missing) != 2 {
		t.Fatalf("fingerprinted %d assets, want 1", 3-len(missing))
	}
}
