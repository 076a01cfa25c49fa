package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vidtrace/internal/engine"
	"vidtrace/internal/fingerprint"
	"vidtrace/internal/store"
)

type fingerprintRow struct {
	URI        string `json:"uri"`
	SizeBytes  int64  `json:"size_bytes"`
	DurationMs int64  `json:"duration_ms"`
	CodecInfo  string `json:"codec_info,omitempty"`
	Exact      string `json:"exact_fingerprint,omitempty"`
	Visual     string `json:"visual_fingerprint,omitempty"`
	Error      string `json:"error,omitempty"`
}

// newFingerprintCommand hashes files without touching the database, so it
// does not take the engine lock.
func newFingerprintCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint <file>...",
		Short: "Compute exact and visual fingerprints for files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			fp := fingerprint.New(cfg, logger)

			results := make([]fingerprintRow, 0, len(args))
			for _, arg := range args {
				row := fingerprintRow{URI: arg}
				abs, err := filepath.Abs(arg)
				if err != nil {
					row.Error = err.Error()
					results = append(results, row)
					continue
				}
				row.URI = abs
				info, err := os.Stat(abs)
				if err != nil {
					row.Error = err.Error()
					results = append(results, row)
					continue
				}
				row.SizeBytes = info.Size()
				meta := fp.Metadata(cmd.Context(), abs)
				row.DurationMs = meta.DurationMs
				row.CodecInfo = meta.CodecInfo
				if exact, ok := fp.ComputeExact(abs, info.Size()); ok {
					row.Exact = exact
				}
				if visual, ok := fp.ComputeVisual(cmd.Context(), abs); ok {
					row.Visual = visual
				}
				results = append(results, row)
			}

			if ctx.wantJSON(cmd) {
				return writeJSON(cmd, results)
			}
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				exact, visual := r.Exact, r.Visual
				if r.Error != "" {
					exact, visual = "error: "+r.Error, ""
				}
				rows = append(rows, []string{
					truncate(r.URI, 40),
					strconv.FormatInt(r.SizeBytes, 10),
					strconv.FormatInt(r.DurationMs, 10),
					exact,
					visual,
				})
			}
			printTable(cmd,
				[]string{"File", "Bytes", "Duration ms", "Exact", "Visual"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			)
			return nil
		},
	}
}

func newBackfillCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Compute missing fingerprints for indexed assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *engine.Engine) error {
				report, err := eng.Backfill(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.wantJSON(cmd) {
					return writeJSON(cmd, report)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Scanned %d assets: %d exact, %d visual, %d failed\n",
					report.Scanned, report.Exact, report.Visual, report.Failed)
				if len(report.Duplicates) > 0 {
					rows := make([][]string, 0, len(report.Duplicates))
					for _, d := range report.Duplicates {
						rows = append(rows, []string{d.MediaUID, d.OtherUID, formatFloat(d.VisualSimilarity)})
					}
					printTable(cmd, []string{"Asset", "Duplicate of", "Visual"}, rows,
						[]columnAlignment{alignLeft, alignLeft, alignRight})
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 500, "Maximum assets to fingerprint")
	return cmd
}

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Flag assets whose files are missing and clear restored ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *engine.Engine) error {
				report, err := eng.Verify(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.wantJSON(cmd) {
					return writeJSON(cmd, report)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Checked %d assets: %d missing, %d restored, %d skipped\n",
					report.Checked, report.Missing, report.Restored, report.Skipped)
				return nil
			})
		},
	}
}

func newOutboxCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "List pending sync operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(eng *engine.Engine) error {
				ops, err := eng.Store().SyncQueue().Pending(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.wantJSON(cmd) {
					return writeJSON(cmd, ops)
				}
				rows := make([][]string, 0, len(ops))
				for _, op := range ops {
					rows = append(rows, []string{
						op.OpUID,
						op.EntityType,
						op.EntityID,
						op.Operation,
						strconv.Itoa(op.RetryCount),
						formatTime(op.CreatedAt),
					})
				}
				printTable(cmd,
					[]string{"Op", "Entity", "ID", "Operation", "Retries", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum rows")
	cmd.AddCommand(newOutboxMarkCommand(ctx))
	return cmd
}

func newOutboxMarkCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mark <op-uid> <sent|failed|pending>",
		Short: "Record the delivery outcome of a sync operation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := parseSyncStatus(args[1])
			if err != nil {
				return err
			}
			opUID := strings.TrimSpace(args[0])
			return ctx.withEngine(func(eng *engine.Engine) error {
				if err := eng.Store().SyncQueue().MarkStatus(cmd.Context(), opUID, status); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %s %s\n", opUID, status)
				return nil
			})
		},
	}
}

func parseSyncStatus(value string) (store.SyncStatus, error) {
	switch store.SyncStatus(strings.ToUpper(strings.TrimSpace(value))) {
	case store.SyncSent:
		return store.SyncSent, nil
	case store.SyncFailed:
		return store.SyncFailed, nil
	case store.SyncPending:
		return store.SyncPending, nil
	default:
		return "", fmt.Errorf("unknown sync status %q", value)
	}
}
