package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vidtrace/internal/engine"
	"vidtrace/internal/store"
)

// parseSince accepts "", a duration such as "36h" or "7d", or an RFC 3339
// timestamp, and returns the lower bound in epoch ms.
func parseSince(value string, now time.Time) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid --since %q", value)
		}
		return now.Add(-time.Duration(n) * 24 * time.Hour).UnixMilli(), nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("invalid --since %q", value)
		}
		return now.Add(-d).UnixMilli(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return 0, fmt.Errorf("invalid --since %q: want a duration (24h, 7d) or RFC 3339 time", value)
	}
	return t.UnixMilli(), nil
}

func newTimelineCommand(ctx *commandContext) *cobra.Command {
	var (
		eventType, className, since, state, sort string
		minConfidence                            float64
		limit                                    int
	)

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "List recorded motion events with their media",
		RunE: func(cmd *cobra.Command, args []string) error {
			sinceMs, err := parseSince(since, time.Now())
			if err != nil {
				return err
			}
			mediaState, err := store.ParseMediaState(state)
			if err != nil {
				return err
			}
			order, err := store.ParseSortOrder(sort)
			if err != nil {
				return err
			}
			q := store.TimelineQuery{
				EventType:     strings.ToUpper(strings.TrimSpace(eventType)),
				ClassName:     strings.ToLower(strings.TrimSpace(className)),
				MinConfidence: minConfidence,
				SinceEpochMs:  sinceMs,
				MediaState:    mediaState,
				Sort:          order,
				Limit:         limit,
			}
			return ctx.withEngine(func(eng *engine.Engine) error {
				entries, err := eng.Store().Timeline(cmd.Context(), q)
				if err != nil {
					return err
				}
				if ctx.wantJSON(cmd) {
					return writeJSON(cmd, entries)
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						formatEpochMs(e.DetectedAtEpochMs),
						e.EventType,
						formatFloat(e.Confidence),
						strconv.Itoa(e.Priority),
						fmt.Sprintf("%.1fs-%.1fs", float64(e.StartMs)/1000, float64(e.EndMs)/1000),
						truncate(e.MediaDisplayName, 32),
						string(e.LinkStatus),
						yesNo(e.MediaMissing),
						strconv.FormatInt(e.SnapshotCount, 10),
					})
				}
				printTable(cmd,
					[]string{"Detected", "Type", "Conf", "Pri", "Span", "Media", "Link", "Missing", "Snaps"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&eventType, "type", "", "Event type filter (PERSON, MOTION)")
	cmd.Flags().StringVar(&className, "class", "", "Class name filter")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "Minimum event confidence")
	cmd.Flags().StringVar(&since, "since", "", "Only events detected since (24h, 7d, or RFC 3339)")
	cmd.Flags().StringVar(&state, "state", "", "Media state filter (available, missing)")
	cmd.Flags().StringVar(&sort, "sort", "newest", "Sort order (newest, oldest, confidence)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows")
	return cmd
}

func newGalleryCommand(ctx *commandContext) *cobra.Command {
	var (
		eventType, since, state string
		minConfidence           float64
		limit                   int
	)

	cmd := &cobra.Command{
		Use:   "gallery",
		Short: "List evidence snapshots with their media and event priority",
		RunE: func(cmd *cobra.Command, args []string) error {
			sinceMs, err := parseSince(since, time.Now())
			if err != nil {
				return err
			}
			mediaState, err := store.ParseMediaState(state)
			if err != nil {
				return err
			}
			q := store.GalleryQuery{
				EventType:     strings.ToUpper(strings.TrimSpace(eventType)),
				MinConfidence: minConfidence,
				MediaState:    mediaState,
				SinceEpochMs:  sinceMs,
				Limit:         limit,
			}
			return ctx.withEngine(func(eng *engine.Engine) error {
				entries, err := eng.Store().GallerySnapshots(cmd.Context(), q)
				if err != nil {
					return err
				}
				if ctx.wantJSON(cmd) {
					return writeJSON(cmd, entries)
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						formatEpochMs(e.CapturedEpochMs),
						e.EventType,
						e.ClassName,
						formatFloat(e.Confidence),
						strconv.Itoa(e.EventPriority),
						truncate(e.MediaDisplayName, 28),
						truncate(e.ImageURI, 40),
					})
				}
				printTable(cmd,
					[]string{"Captured", "Type", "Class", "Conf", "Pri", "Media", "Image"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&eventType, "type", "", "Event type filter (PERSON, MOTION)")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "Minimum snapshot confidence")
	cmd.Flags().StringVar(&since, "since", "", "Only snapshots captured since (24h, 7d, or RFC 3339)")
	cmd.Flags().StringVar(&state, "state", "", "Media state filter (available, missing)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows")
	return cmd
}

type insights struct {
	SinceEpochMs int64              `json:"since_epoch_ms"`
	Total        int64              `json:"total"`
	ByType       map[string]int64   `json:"by_type"`
	TopClasses   []store.ClassCount `json:"top_classes"`
}

func newInsightsCommand(ctx *commandContext) *cobra.Command {
	var (
		since, eventType string
		limit            int
	)

	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Summarize event counts and the most frequent classes",
		RunE: func(cmd *cobra.Command, args []string) error {
			sinceMs, err := parseSince(since, time.Now())
			if err != nil {
				return err
			}
			return ctx.withEngine(func(eng *engine.Engine) error {
				st := eng.Store()
				report := insights{SinceEpochMs: sinceMs, ByType: map[string]int64{}}
				if report.Total, err = st.CountSince(cmd.Context(), sinceMs); err != nil {
					return err
				}
				for _, t := range []string{"PERSON", "MOTION"} {
					n, err := st.CountByTypeSince(cmd.Context(), t, sinceMs)
					if err != nil {
						return err
					}
					report.ByType[t] = n
				}
				filter := strings.ToUpper(strings.TrimSpace(eventType))
				if report.TopClasses, err = st.TopClassNames(cmd.Context(), sinceMs, filter, limit); err != nil {
					return err
				}
				if ctx.wantJSON(cmd) {
					return writeJSON(cmd, report)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Events since %s: %d (person %d, motion %d)\n",
					formatEpochMs(sinceMs), report.Total, report.ByType["PERSON"], report.ByType["MOTION"])
				rows := make([][]string, 0, len(report.TopClasses))
				for _, c := range report.TopClasses {
					rows = append(rows, []string{c.ClassName, strconv.FormatInt(c.Count, 10)})
				}
				printTable(cmd, []string{"Class", "Events"}, rows, []columnAlignment{alignLeft, alignRight})
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&since, "since", "7d", "Window start (24h, 7d, or RFC 3339)")
	cmd.Flags().StringVar(&eventType, "type", "", "Restrict top classes to one event type")
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of classes to list")
	return cmd
}

type assetDetail struct {
	Asset   *store.MediaAsset        `json:"asset"`
	LinkLog []store.IntegrityLinkLog `json:"link_log"`
	Events  []store.AiEvent          `json:"events"`
}

func newAssetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "asset <media-uid>",
		Short: "Show one identity record with its link history and events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid := strings.TrimSpace(args[0])
			return ctx.withEngine(func(eng *engine.Engine) error {
				st := eng.Store()
				asset, err := st.GetByMediaUID(cmd.Context(), uid)
				if err != nil {
					return err
				}
				if asset == nil {
					return fmt.Errorf("asset %s: %w", uid, store.ErrNotFound)
				}
				detail := assetDetail{Asset: asset}
				if detail.LinkLog, err = st.LinkLog().ByMedia(cmd.Context(), uid); err != nil {
					return err
				}
				if detail.Events, err = st.Events().ByMedia(cmd.Context(), uid); err != nil {
					return err
				}
				if ctx.wantJSON(cmd) {
					return writeJSON(cmd, detail)
				}
				printAsset(cmd, detail)
				return nil
			})
		},
	}
}

func printAsset(cmd *cobra.Command, d assetDetail) {
	out := cmd.OutOrStdout()
	a := d.Asset
	fields := [][2]string{
		{"Media UID", a.MediaUID},
		{"URI", a.CurrentURI},
		{"Name", a.DisplayName},
		{"Category", a.CategorySubtype},
		{"Size", strconv.FormatInt(a.SizeBytes, 10)},
		{"Duration", (time.Duration(a.DurationMs) * time.Millisecond).String()},
		{"Codec", a.CodecInfo},
		{"Exact FP", a.ExactFingerprint},
		{"Visual FP", a.VisualFingerprint},
		{"First seen", formatTime(a.FirstSeenAt)},
		{"Last seen", formatTime(a.LastSeenAt)},
		{"Link", string(a.LinkStatus)},
		{"Missing", yesNo(a.MediaMissing)},
	}
	for _, f := range fields {
		value := f[1]
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(out, "%-11s %s\n", f[0]+":", value)
	}
	if len(d.LinkLog) > 0 {
		rows := make([][]string, 0, len(d.LinkLog))
		for _, l := range d.LinkLog {
			rows = append(rows, []string{formatTime(l.Timestamp), l.Action, formatFloat(l.Score)})
		}
		fmt.Fprintln(out, renderTable([]string{"When", "Action", "Score"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight}))
	}
	if len(d.Events) > 0 {
		rows := make([][]string, 0, len(d.Events))
		for _, e := range d.Events {
			rows = append(rows, []string{formatEpochMs(e.DetectedAtEpochMs), e.EventType, formatFloat(e.Confidence), strconv.Itoa(e.Priority), e.ThumbnailRef})
		}
		fmt.Fprintln(out, renderTable([]string{"Detected", "Type", "Conf", "Pri", "Thumbnail"}, rows, nil))
	}
}
