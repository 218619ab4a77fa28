package filter

import (
	"path/filepath"

	"github.com/dyluth/esgpanel/pkg/runstore"
)

// Criteria selects runs. All set criteria must match.
type Criteria struct {
	SinceTimestampMs int64  // Unix milliseconds, 0 = no bound
	UntilTimestampMs int64  // Unix milliseconds, 0 = no bound
	KindGlob         string // glob on the run kind, empty = any
	LabelGlob        string // glob on the run label, empty = any
}

// Matches reports whether r satisfies every criterion.
func (c *Criteria) Matches(r *runstore.Run) bool {
	if c.SinceTimestampMs > 0 && r.CreatedAtMs < c.SinceTimestampMs {
		return false
	}
	if c.UntilTimestampMs > 0 && r.CreatedAtMs > c.UntilTimestampMs {
		return false
	}
	if c.KindGlob != "" {
		if ok, err := filepath.Match(c.KindGlob, string(r.Kind)); err != nil || !ok {
			return false
		}
	}
	if c.LabelGlob != "" {
		if ok, err := filepath.Match(c.LabelGlob, r.Label); err != nil || !ok {
			return false
		}
	}
	return true
}

// HasFilters reports whether any criterion is set.
func (c *Criteria) HasFilters() bool {
	return c.SinceTimestampMs > 0 ||
		c.UntilTimestampMs > 0 ||
		c.KindGlob != "" ||
		c.LabelGlob != ""
}
