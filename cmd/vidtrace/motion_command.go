package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"vidtrace/internal/engine"
	"vidtrace/internal/events"
)

// motionSignal is one line of motion input.
type motionSignal struct {
	Op string `json:"op"`
	events.Sample
}

type motionSummary struct {
	Signals  int   `json:"signals"`
	Ignored  int   `json:"ignored"`
	Recorded int64 `json:"events_recorded"`
}

func newMotionCommand(ctx *commandContext) *cobra.Command {
	var noFlush bool

	cmd := &cobra.Command{
		Use:   "motion [file]",
		Short: "Replay motion signals (JSON lines) into the event aggregator",
		Long: "Reads one JSON object per line from file, or stdin when omitted:\n" +
			`  {"op":"start","uri":"/rec/a.mp4","timeline_ms":1200,"person_likely":true,"confidence":0.8,` + "\n" +
			`   "motion_score":0.6,"changed_area":0.1,"strong_area":0.05}` + "\n" +
			`  {"op":"stop","timeline_ms":4000}` + "\n" +
			`  {"op":"flush","timeline_ms":4000}` + "\n" +
			"An open segment is flushed at its last timeline position at end of input unless --no-flush is set.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open motion input: %w", err)
				}
				defer f.Close()
				in = f
			}

			return ctx.withEngine(func(eng *engine.Engine) error {
				before, err := eng.Store().Stats(cmd.Context())
				if err != nil {
					return err
				}
				summary, err := replayMotion(in, eng.Aggregator(), !noFlush)
				if err != nil {
					return err
				}
				if err := eng.Aggregator().Drain(cmd.Context()); err != nil {
					return err
				}
				after, err := eng.Store().Stats(cmd.Context())
				if err != nil {
					return err
				}
				summary.Recorded = after.Events - before.Events

				if ctx.wantJSON(cmd) {
					return writeJSON(cmd, summary)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signals: %d  Ignored: %d  Events recorded: %d\n",
					summary.Signals, summary.Ignored, summary.Recorded)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&noFlush, "no-flush", false, "Leave a trailing open segment unpersisted")
	return cmd
}

func replayMotion(r io.Reader, agg *events.Aggregator, flushAtEOF bool) (motionSummary, error) {
	var (
		summary motionSummary
		lastMs  int64
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var sig motionSignal
		if err := json.Unmarshal([]byte(text), &sig); err != nil {
			return summary, fmt.Errorf("line %d: %w", line, err)
		}
		summary.Signals++
		lastMs = max(lastMs, sig.TimelineMs)

		var err error
		switch strings.ToLower(strings.TrimSpace(sig.Op)) {
		case "start":
			err = agg.OnMotionStart(sig.Sample)
		case "stop":
			err = agg.OnMotionStop(sig.TimelineMs)
		case "flush":
			err = agg.Flush(sig.TimelineMs)
		default:
			summary.Ignored++
			continue
		}
		if err != nil {
			return summary, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("read motion input: %w", err)
	}
	if flushAtEOF {
		if err := agg.Flush(lastMs); err != nil {
			return summary, err
		}
	}
	return summary, nil
}
