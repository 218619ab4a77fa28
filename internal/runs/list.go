package runs

import (
	"context"
	"fmt"
	"io"

	"github.com/dyluth/esgpanel/internal/filter"
	"github.com/dyluth/esgpanel/pkg/runstore"
	"go.uber.org/zap"
)

// OutputFormat selects how runs are listed.
type OutputFormat string

const (
	// OutputFormatDefault is a table with truncated summaries
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL prints complete runs, one JSON object per line
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, "":
		return OutputFormatDefault, nil
	case OutputFormatJSONL:
		return OutputFormatJSONL, nil
	}
	return "", fmt.Errorf("unknown output format: %s (valid: default, jsonl)", s)
}

// ListRuns writes the project's runs that match criteria, oldest first.
// Runs whose records cannot be read are skipped with a warning.
func ListRuns(ctx context.Context, store *runstore.Client, format OutputFormat, criteria *filter.Criteria, w io.Writer, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if criteria == nil {
		criteria = &filter.Criteria{}
	}

	all, skipped, err := store.ListRuns(ctx, criteria.SinceTimestampMs, criteria.UntilTimestampMs)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	for _, id := range skipped {
		logger.Warn("Skipping unreadable run", zap.String("run_id", id))
	}

	var matched []*runstore.Run
	for _, r := range all {
		if criteria.Matches(r) {
			matched = append(matched, r)
		}
	}

	switch format {
	case OutputFormatDefault, "":
		FormatTable(w, matched, store.Project())
	case OutputFormatJSONL:
		if err := FormatJSONL(w, matched); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
	return nil
}
