package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"vidtrace/internal/deps"
	"vidtrace/internal/preflight"
	"vidtrace/internal/store"
)

type statusReport struct {
	ConfigPath string                     `json:"config_path"`
	Database   string                     `json:"database"`
	Enabled    bool                       `json:"forensics_enabled"`
	Checks     []preflight.Result         `json:"checks"`
	Stats      store.Stats                `json:"stats"`
	Outbox     map[store.SyncStatus]int64 `json:"outbox"`
	Tools      map[string]string          `json:"tool_versions,omitempty"`
}

// newStatusCommand reads the database without taking the engine lock so it
// can run alongside an index or motion session.
func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show environment checks and database counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			report := statusReport{
				ConfigPath: ctx.configPath,
				Database:   st.Path(),
				Enabled:    cfg.Forensics.Enabled,
				Checks:     preflight.RunAll(cmd.Context(), cfg),
				Tools:      map[string]string{},
			}
			if report.Stats, err = st.Stats(cmd.Context()); err != nil {
				return err
			}
			if report.Outbox, err = st.SyncQueue().CountByStatus(cmd.Context()); err != nil {
				return err
			}
			for _, bin := range []string{cfg.FFprobeBinary(), cfg.FFmpegBinary()} {
				if v := deps.Version(cmd.Context(), bin); v != "" {
					report.Tools[bin] = v
				}
			}

			if ctx.wantJSON(cmd) {
				return writeJSON(cmd, report)
			}
			printStatus(cmd, report)
			return nil
		},
	}
}

func printStatus(cmd *cobra.Command, r statusReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config:    %s\n", r.ConfigPath)
	fmt.Fprintf(out, "Database:  %s\n", r.Database)
	fmt.Fprintf(out, "Forensics: %s\n", map[bool]string{true: "enabled", false: "disabled"}[r.Enabled])
	for bin, version := range r.Tools {
		fmt.Fprintf(out, "%-10s %s\n", bin+":", version)
	}

	checks := make([][]string, 0, len(r.Checks))
	for _, c := range r.Checks {
		state := "ok"
		switch {
		case !c.Passed && c.Optional:
			state = "warn"
		case !c.Passed:
			state = "FAIL"
		}
		checks = append(checks, []string{c.Name, state, c.Detail})
	}
	fmt.Fprintln(out, renderTable([]string{"Check", "State", "Detail"}, checks, nil))

	s := r.Stats
	counts := [][]string{
		{"Assets", strconv.FormatInt(s.Assets, 10)},
		{"Missing", strconv.FormatInt(s.Missing, 10)},
		{"Events", strconv.FormatInt(s.Events, 10)},
		{"Snapshots", strconv.FormatInt(s.Snapshots, 10)},
		{"Link log", strconv.FormatInt(s.LinkLog, 10)},
		{"Outbox pending", strconv.FormatInt(r.Outbox[store.SyncPending], 10)},
		{"Outbox sent", strconv.FormatInt(r.Outbox[store.SyncSent], 10)},
		{"Outbox failed", strconv.FormatInt(r.Outbox[store.SyncFailed], 10)},
	}
	fmt.Fprintln(out, renderTable([]string{"Table", "Rows"}, counts, []columnAlignment{alignLeft, alignRight}))
}
