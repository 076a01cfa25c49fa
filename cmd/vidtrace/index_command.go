package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vidtrace/internal/config"
	"vidtrace/internal/engine"
	"vidtrace/internal/identity"
	"vidtrace/internal/preflight"
)

func newIndexCommand(ctx *commandContext) *cobra.Command {
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "index [root...]",
		Short: "Scan library roots and resolve every video to an identity",
		Long: "Walks the given roots (or [library] roots from the config), then resolves each\n" +
			"file: same path refreshes the asset, a close size/duration/name match relinks\n" +
			"a moved file, anything else creates a new asset.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			roots, err := expandRoots(args)
			if err != nil {
				return err
			}
			if !skipPreflight {
				if failed := preflight.Failed(preflight.RunAll(cmd.Context(), cfg)); len(failed) > 0 {
					names := make([]string, 0, len(failed))
					for _, r := range failed {
						names = append(names, fmt.Sprintf("%s: %s", r.Name, r.Detail))
					}
					return fmt.Errorf("preflight failed (use --skip-preflight to override):\n  %s", strings.Join(names, "\n  "))
				}
			}

			return ctx.withEngine(func(eng *engine.Engine) error {
				result, err := eng.Index(cmd.Context(), roots)
				if errors.Is(err, engine.ErrDisabled) {
					return errors.New("indexing disabled: set [forensics] enabled = true")
				}
				if err != nil {
					return err
				}
				if ctx.wantJSON(cmd) {
					return writeJSON(cmd, result)
				}
				printIndexResult(cmd, result)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Index even when required tools or directories are unavailable")
	return cmd
}

func expandRoots(args []string) ([]string, error) {
	roots := make([]string, 0, len(args))
	for _, arg := range args {
		expanded, err := config.ExpandPath(strings.TrimSpace(arg))
		if err != nil {
			return nil, fmt.Errorf("resolve root %q: %w", arg, err)
		}
		roots = append(roots, expanded)
	}
	return roots, nil
}

func printIndexResult(cmd *cobra.Command, result identity.BatchResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Exact: %d  Relinked: %d  New: %d  Skipped: %d\n",
		result.Exact, result.Probable, result.Created, result.Skipped)

	var rows [][]string
	for _, o := range result.Outcomes {
		switch o.Decision {
		case identity.DecisionProbable:
			rows = append(rows, []string{"relinked", o.MediaUID, truncate(o.PreviousURI, 40), truncate(o.URI, 40), formatFloat(o.Score)})
		case identity.DecisionSkipped:
			rows = append(rows, []string{"skipped", "-", "-", truncate(o.URI, 40), o.Error})
		}
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable(
			[]string{"Decision", "Media UID", "From", "To", "Score/Error"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
		))
	}
}
