package runs

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/esgpanel/pkg/runstore"
)

// FormatTable writes runs as a fixed-width table and returns the number
// of rows written.
func FormatTable(w io.Writer, runs []*runstore.Run, project string) int {
	if len(runs) == 0 {
		fmt.Fprintf(w, "No runs found for project '%s'\n", project)
		return 0
	}

	fmt.Fprintf(w, "Runs for project '%s':\n\n", project)
	fmt.Fprintf(w, "%-10s %-11s %-8s %-28s %s\n", "ID", "KIND", "AGE", "LABEL", "SUMMARY")
	fmt.Fprintf(w, "%-10s %-11s %-8s %-28s %s\n",
		"----------", "-----------", "--------", "----------------------------", "----------------------------------------")

	for _, r := range runs {
		fmt.Fprintf(w, "%-10s %-11s %-8s %-28s %s\n",
			formatID(r.ID),
			string(r.Kind),
			formatTimestamp(r.CreatedAtMs),
			formatLabel(r.Label),
			formatPayload(r.Payload),
		)
	}

	noun := "run"
	if len(runs) != 1 {
		noun = "runs"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(runs), noun)
	return len(runs)
}

// FormatJSONL writes one compact JSON object per run.
func FormatJSONL(w io.Writer, runs []*runstore.Run) error {
	for _, r := range runs {
		if err := writeJSONLine(w, r); err != nil {
			return err
		}
	}
	return nil
}

func writeJSONLine(w io.Writer, r *runstore.Run) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal run to JSON: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write JSONL output: %w", err)
	}
	return nil
}

// FormatSingleJSON writes one run as indented JSON. A JSON payload is
// embedded as an object rather than an escaped string.
func FormatSingleJSON(w io.Writer, r *runstore.Run) error {
	type view struct {
		*runstore.Run
		Payload json.RawMessage `json:"payload"`
	}
	v := view{Run: r, Payload: json.RawMessage(r.Payload)}
	if !json.Valid(v.Payload) {
		quoted, _ := json.Marshal(r.Payload)
		v.Payload = quoted
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run to JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

// FormatEvent writes one line for a run arriving on the events channel.
func FormatEvent(w io.Writer, r *runstore.Run) error {
	ts := time.UnixMilli(r.CreatedAtMs).Format("15:04:05")
	_, err := fmt.Fprintf(w, "[%s] %-10s %-11s %-28s %s\n", ts, formatID(r.ID), r.Kind, formatLabel(r.Label), formatPayload(r.Payload))
	return err
}

// EventWriter returns a function that prints followed runs in format.
func EventWriter(w io.Writer, format OutputFormat) func(*runstore.Run) error {
	if format == OutputFormatJSONL {
		return func(r *runstore.Run) error { return writeJSONLine(w, r) }
	}
	return func(r *runstore.Run) error { return FormatEvent(w, r) }
}

func formatID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatLabel(label string) string {
	if label == "" {
		return "-"
	}
	if len(label) > 28 {
		return label[:25] + "..."
	}
	return label
}

// formatPayload shows the first line of the summary, at most 40 characters.
func formatPayload(payload string) string {
	var first string
	for _, line := range strings.Split(payload, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			first = trimmed
			break
		}
	}
	if first == "" {
		return "-"
	}
	if len(first) > 40 {
		return first[:37] + "..."
	}
	return first
}

// formatTimestamp renders a Unix millisecond time relative to now.
func formatTimestamp(ms int64) string {
	if ms == 0 {
		return "-"
	}
	diff := time.Since(time.UnixMilli(ms))
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
}
