package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"vidtrace/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		media  string
		runID  string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent vidtrace log lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.LogDir, "vidtrace.log")
			filter := logs.Filter{Contains: []string{media, runID}}

			chunk, err := logs.Last(path, lines, filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			emit := func(batch []string) {
				for _, line := range batch {
					fmt.Fprintln(out, line)
				}
			}
			emit(chunk.Lines)
			if !follow {
				return nil
			}

			return logs.Follow(cmd.Context(), path, chunk.Offset, filter, emit)
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&media, "media", "", "Only lines mentioning this media uid")
	cmd.Flags().StringVar(&runID, "run", "", "Only lines from this run id")
	return cmd
}
