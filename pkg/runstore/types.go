package runstore

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind names the pipeline stage that produced a run.
type Kind string

const (
	KindPanel      Kind = "panel"
	KindRegression Kind = "regression"
	KindComparison Kind = "comparison"
	KindDashboard  Kind = "dashboard"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindPanel, KindRegression, KindComparison, KindDashboard:
		return true
	}
	return false
}

// Run is one recorded pipeline result.
type Run struct {
	ID           string   `json:"id"`            // UUID
	Kind         Kind     `json:"kind"`          // stage that produced the run
	Label        string   `json:"label"`         // short human description
	Payload      string   `json:"payload"`       // JSON summary of the result
	Inputs       []string `json:"inputs"`        // IDs of runs this one was built from
	ConfigDigest string   `json:"config_digest"` // digest of the configuration used
	CreatedAtMs  int64    `json:"created_at_ms"` // Unix milliseconds
}

// NewRun returns a run with a fresh ID and the current time.
func NewRun(kind Kind, label, payload string) *Run {
	return &Run{
		ID:          uuid.New().String(),
		Kind:        kind,
		Label:       label,
		Payload:     payload,
		Inputs:      []string{},
		CreatedAtMs: time.Now().UnixMilli(),
	}
}

// Validate checks that the run is well formed.
func (r *Run) Validate() error {
	if _, err := uuid.Parse(r.ID); err != nil {
		return fmt.Errorf("invalid run ID: %w", err)
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("invalid kind: %q", r.Kind)
	}
	for i, in := range r.Inputs {
		if _, err := uuid.Parse(in); err != nil {
			return fmt.Errorf("invalid input run ID at index %d: %w", i, err)
		}
	}
	if r.CreatedAtMs <= 0 {
		return fmt.Errorf("created_at_ms must be positive")
	}
	return nil
}
