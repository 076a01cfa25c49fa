package store_test

import (
	"context"
	"testing"

	"vidtrace/internal/store"
	"vidtrace/internal/testsupport"
)

type queryFixture struct {
	st       *store.Store
	present  *store.MediaAsset
	gone     *store.MediaAsset
	personLo *store.AiEvent
	personHi *store.AiEvent
	motion   *store.AiEvent
}

func newQueryFixture(t *testing.T) queryFixture {
	t.Helper()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	f := queryFixture{st: st}
	f.present = testsupport.InsertAsset(t, st, "/rec/a.mp4", "a.mp4", 100, 1000)
	f.gone = testsupport.InsertAsset(t, st, "/rec/b.mp4", "b.mp4", 200, 2000)
	if err := st.Assets().SetMediaMissing(ctx, f.gone.MediaUID, true); err != nil {
		t.Fatalf("SetMediaMissing: %v", err)
	}

	f.personLo = &store.AiEvent{MediaUID: f.present.MediaUID, EventType: "PERSON", ClassName: "person", Confidence: 0.4, DetectedAtEpochMs: 1_000}
	f.personHi = &store.AiEvent{MediaUID: f.gone.MediaUID, EventType: "PERSON", ClassName: "person", Confidence: 0.9, DetectedAtEpochMs: 2_000}
	f.motion = &store.AiEvent{MediaUID: f.present.MediaUID, EventType: "MOTION", ClassName: "motion", Confidence: 0.6, DetectedAtEpochMs: 3_000}
	for _, ev := range []*store.AiEvent{f.personLo, f.personHi, f.motion} {
		if err := st.Events().Insert(ctx, ev); err != nil {
			t.Fatalf("insert event: %v", err)
		}
	}
	return f
}

func eventUIDs(entries []store.TimelineEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.EventUID)
	}
	return out
}

func TestTimelineFiltersAndSorts(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		query store.TimelineQuery
		want  []string
	}{
		{"newest", store.TimelineQuery{}, []string{f.motion.EventUID, f.personHi.EventUID, f.personLo.EventUID}},
		{"oldest", store.TimelineQuery{Sort: store.SortOldest}, []string{f.personLo.EventUID, f.personHi.EventUID, f.motion.EventUID}},
		{"confidence", store.TimelineQuery{Sort: store.SortConfidence}, []string{f.personHi.EventUID, f.motion.EventUID, f.personLo.EventUID}},
		{"event_type", store.TimelineQuery{EventType: "PERSON"}, []string{f.personHi.EventUID, f.personLo.EventUID}},
		{"class_name", store.TimelineQuery{ClassName: "motion"}, []string{f.motion.EventUID}},
		{"min_confidence", store.TimelineQuery{MinConfidence: 0.5}, []string{f.motion.EventUID, f.personHi.EventUID}},
		{"since", store.TimelineQuery{SinceEpochMs: 2_000}, []string{f.motion.EventUID, f.personHi.EventUID}},
		{"missing", store.TimelineQuery{MediaState: store.MediaMissing}, []string{f.personHi.EventUID}},
		{"available", store.TimelineQuery{MediaState: store.MediaAvailable}, []string{f.motion.EventUID, f.personLo.EventUID}},
		{"limit", store.TimelineQuery{Limit: 1}, []string{f.motion.EventUID}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := f.st.Timeline(ctx, tc.query)
			if err != nil {
				t.Fatalf("Timeline: %v", err)
			}
			got := eventUIDs(entries)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v want %v", got, tc.want)
				}
			}
		})
	}
}

func TestTimelineJoinsAsset(t *testing.T) {
	f := newQueryFixture(t)
	entries, err := f.st.Timeline(context.Background(), store.TimelineQuery{MediaState: store.MediaMissing})
	if err != nil || len(entries) != 1 {
		t.Fatalf("Timeline: %v %#v", err, entries)
	}
	e := entries[0]
	if e.MediaURI != "/rec/b.mp4" || e.MediaDisplayName != "b.mp4" || !e.MediaMissing || e.LinkStatus != store.LinkNew {
		t.Fatalf("unexpected join: %#v", e)
	}
}

func TestCountsAndTopClasses(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	if n, err := f.st.CountSince(ctx, 0); err != nil || n != 3 {
		t.Fatalf("CountSince(0) = %d, %v", n, err)
	}
	if n, err := f.st.CountSince(ctx, 2_500); err != nil || n != 1 {
		t.Fatalf("CountSince(2500) = %d, %v", n, err)
	}
	if n, err := f.st.CountByTypeSince(ctx, "PERSON", 0); err != nil || n != 2 {
		t.Fatalf("CountByTypeSince = %d, %v", n, err)
	}

	top, err := f.st.TopClassNames(ctx, 0, "", 5)
	if err != nil {
		t.Fatalf("TopClassNames: %v", err)
	}
	if len(top) != 2 || top[0].ClassName != "person" || top[0].Count != 2 || top[1].ClassName != "motion" {
		t.Fatalf("unexpected top classes: %#v", top)
	}
	top, err = f.st.TopClassNames(ctx, 0, "MOTION", 5)
	if err != nil || len(top) != 1 || top[0].ClassName != "motion" {
		t.Fatalf("filtered top classes: %#v %v", top, err)
	}

	stats, err := f.st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Assets != 2 || stats.Missing != 1 || stats.Events != 3 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}

func TestSnapshotsAndGallery(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	snaps := []*store.AiEventSnapshot{
		{EventUID: f.personHi.EventUID, MediaUID: f.gone.MediaUID, CapturedEpochMs: 5_000, TimelineMs: 300, EventType: "PERSON", Confidence: 0.7, ImageURI: "img-1.jpg"},
		{EventUID: f.personHi.EventUID, MediaUID: f.gone.MediaUID, CapturedEpochMs: 6_000, TimelineMs: 100, EventType: "PERSON", Confidence: 0.9, ImageURI: "img-2.jpg"},
		{EventUID: f.motion.EventUID, MediaUID: f.present.MediaUID, CapturedEpochMs: 7_000, TimelineMs: 50, EventType: "MOTION", Confidence: 0.3, ImageURI: "img-3.jpg"},
	}
	for _, s := range snaps {
		if err := f.st.Snapshots().Insert(ctx, s); err != nil {
			t.Fatalf("insert snapshot: %v", err)
		}
	}

	byEvent, err := f.st.Snapshots().ByEvent(ctx, f.personHi.EventUID, 10)
	if err != nil || len(byEvent) != 2 || byEvent[0].ImageURI != "img-2.jpg" {
		t.Fatalf("ByEvent timeline order: %#v %v", byEvent, err)
	}
	best, err := f.st.Snapshots().BestImageURI(ctx, f.personHi.EventUID)
	if err != nil || best != "img-2.jpg" {
		t.Fatalf("BestImageURI = %q, %v", best, err)
	}
	if none, err := f.st.Snapshots().BestImageURI(ctx, "nope"); err != nil || none != "" {
		t.Fatalf("BestImageURI for unknown event = %q, %v", none, err)
	}

	gallery, err := f.st.GallerySnapshots(ctx, store.GalleryQuery{})
	if err != nil || len(gallery) != 3 || gallery[0].ImageURI != "img-3.jpg" {
		t.Fatalf("gallery newest first: %#v %v", gallery, err)
	}
	gallery, err = f.st.GallerySnapshots(ctx, store.GalleryQuery{MediaState: store.MediaMissing, MinConfidence: 0.8})
	if err != nil || len(gallery) != 1 || gallery[0].ImageURI != "img-2.jpg" {
		t.Fatalf("gallery filtered: %#v %v", gallery, err)
	}
	if gallery[0].MediaURI != "/rec/b.mp4" || !gallery[0].MediaMissing {
		t.Fatalf("gallery join: %#v", gallery[0])
	}
	gallery, err = f.st.GallerySnapshots(ctx, store.GalleryQuery{EventType: "MOTION", SinceEpochMs: 6_500})
	if err != nil || len(gallery) != 1 || gallery[0].EventUID != f.motion.EventUID {
		t.Fatalf("gallery by type: %#v %v", gallery, err)
	}

	timeline, err := f.st.Timeline(ctx, store.TimelineQuery{EventType: "PERSON", MediaState: store.MediaMissing})
	if err != nil || len(timeline) != 1 || timeline[0].SnapshotCount != 2 {
		t.Fatalf("timeline snapshot count: %#v %v", timeline, err)
	}
}

func TestParseQueryEnums(t *testing.T) {
	if s, err := store.ParseMediaState("missing"); err != nil || s != store.MediaMissing {
		t.Fatalf("ParseMediaState: %v %v", s, err)
	}
	if _, err := store.ParseMediaState("gone"); err == nil {
		t.Fatal("expected error for unknown state")
	}
	if o, err := store.ParseSortOrder(""); err != nil || o != store.SortNewest {
		t.Fatalf("ParseSortOrder default: %v %v", o, err)
	}
	if _, err := store.ParseSortOrder("random"); err == nil {
		t.Fatal("expected error for unknown sort")
	}
}
