package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/esgpanel/internal/filter"
	"github.com/dyluth/esgpanel/internal/printer"
	"github.com/dyluth/esgpanel/internal/resolver"
	"github.com/dyluth/esgpanel/internal/runs"
	"github.com/dyluth/esgpanel/internal/timespec"
	"github.com/dyluth/esgpanel/internal/watch"
	"github.com/dyluth/esgpanel/pkg/runstore"
	"github.com/spf13/cobra"
)

var (
	runsOutputFormat string
	runsSince        string
	runsUntil        string
	runsKind         string
	runsLabel        string
	runsFollow       bool
)

var runsCmd = &cobra.Command{
	Use:   "runs [RUN_ID]",
	Short: "Inspect recorded pipeline runs",
	Long: `Inspect the runs recorded in the run store in list, get or follow mode.

List Mode (no RUN_ID):
  Displays runs matching filters as a table or JSONL stream.

Get Mode (with RUN_ID):
  Displays one run as pretty-printed JSON.
  Supports short IDs (e.g., "abc123" instead of full UUID).

Follow Mode (--follow):
  Streams runs as stages record them, until interrupted.

Filters (list and follow modes):
  --since  - Show runs created after this time (duration or RFC3339)
  --until  - Show runs created before this time
  --kind   - Filter by kind (glob pattern: "panel", "reg*")
  --label  - Filter by label (glob pattern)

Examples:
  # List all runs
  esgpanel runs

  # Regression runs of the last day as JSONL
  esgpanel runs --kind=regression --since=24h --output=jsonl

  # Show one run by short ID
  esgpanel runs abc123

  # Follow new runs while another terminal runs the pipeline
  esgpanel runs --follow`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().StringVarP(&runsOutputFormat, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")
	runsCmd.Flags().StringVar(&runsSince, "since", "", "Show runs after time (duration or RFC3339)")
	runsCmd.Flags().StringVar(&runsUntil, "until", "", "Show runs before time (duration or RFC3339)")
	runsCmd.Flags().StringVar(&runsKind, "kind", "", "Filter by run kind (glob pattern)")
	runsCmd.Flags().StringVar(&runsLabel, "label", "", "Filter by run label (glob pattern)")
	runsCmd.Flags().BoolVarP(&runsFollow, "follow", "f", false, "Stream new runs until interrupted")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	isGetMode := len(args) > 0

	if isGetMode && runsFollow {
		return printer.Error("invalid flags", "--follow cannot be combined with a run ID", nil)
	}

	format, err := runs.ParseOutputFormat(runsOutputFormat)
	if err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", runsOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	url := storeURL(cfg)
	if url == "" {
		return printer.Error(
			"no run store configured",
			"Runs are only recorded when a Redis run store is configured.",
			[]string{"Set store.redis_url in esgpanel.yml", "Or pass --redis redis://localhost:6379/0"},
		)
	}
	store, err := connectStore(ctx, url, cfg.Store.Project)
	if err != nil {
		return printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", url),
			map[string]string{"Error": err.Error()},
			[]string{"Check that Redis is running and the URL is correct"},
		)
	}
	defer store.Close()

	if isGetMode {
		return getRun(ctx, store, args[0])
	}

	sinceMS, untilMS, err := timespec.ParseRange(runsSince, runsUntil)
	if err != nil {
		return printer.Error(
			"invalid time filter",
			err.Error(),
			[]string{"Use duration format like '1h30m' or RFC3339 like '2025-10-29T13:00:00Z'"},
		)
	}
	criteria := &filter.Criteria{
		SinceTimestampMs: sinceMS,
		UntilTimestampMs: untilMS,
		KindGlob:         runsKind,
		LabelGlob:        runsLabel,
	}

	if runsFollow {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		if format == runs.OutputFormatDefault {
			printer.Info("Following runs in project '%s' (Ctrl+C to stop)\n", store.Project())
		}
		return watch.Follow(ctx, store, criteria, runs.EventWriter(printer.Stdout(), format), logger)
	}

	if err := runs.ListRuns(ctx, store, format, criteria, printer.Stdout(), logger); err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	return nil
}

func getRun(ctx context.Context, store *runstore.Client, id string) error {
	err := runs.GetRun(ctx, store, id, printer.Stdout())
	switch {
	case err == nil:
		return nil
	case resolver.IsNotFoundError(err):
		return printer.Error(
			fmt.Sprintf("run with ID '%s' not found", id),
			"The specified run does not exist in the run store.",
			[]string{"List all runs:\n  esgpanel runs"},
		)
	case resolver.IsAmbiguousError(err):
		ambigErr := err.(*resolver.AmbiguousError)
		fmt.Fprintln(printer.Stderr(), resolver.FormatAmbiguousError(ambigErr))
		return fmt.Errorf("ambiguous short ID")
	}
	return fmt.Errorf("failed to get run: %w", err)
}
