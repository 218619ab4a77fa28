package runstore

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Runs are stored as Redis hashes; the inputs list is JSON-encoded into a
// single field.

// RunToHash converts a run to hash fields.
func RunToHash(r *Run) (map[string]interface{}, error) {
	inputs := r.Inputs
	if inputs == nil {
		inputs = []string{}
	}
	inputsJSON, err := json.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal inputs: %w", err)
	}

	return map[string]interface{}{
		"id":            r.ID,
		"kind":          string(r.Kind),
		"label":         r.Label,
		"payload":       r.Payload,
		"inputs":        string(inputsJSON),
		"config_digest": r.ConfigDigest,
		"created_at_ms": r.CreatedAtMs,
	}, nil
}

// HashToRun converts hash fields back to a run.
func HashToRun(hash map[string]string) (*Run, error) {
	createdAtMs, err := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at_ms field: %w", err)
	}

	inputs := []string{}
	if raw := hash["inputs"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &inputs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal inputs: %w", err)
		}
	}

	return &Run{
		ID:           hash["id"],
		Kind:         Kind(hash["kind"]),
		Label:        hash["label"],
		Payload:      hash["payload"],
		Inputs:       inputs,
		ConfigDigest: hash["config_digest"],
		CreatedAtMs:  createdAtMs,
	}, nil
}
