package runs

import (
	"context"
	"fmt"
	"io"

	"github.com/dyluth/esgpanel/internal/resolver"
	"github.com/dyluth/esgpanel/pkg/runstore"
)

// GetRun resolves id (full or a unique prefix) and writes the run as
// indented JSON.
func GetRun(ctx context.Context, store *runstore.Client, id string, w io.Writer) error {
	fullID, err := resolver.ResolveRunID(ctx, store, id)
	if err != nil {
		return err
	}

	r, err := store.GetRun(ctx, fullID)
	if err != nil {
		if runstore.IsNotFound(err) {
			return &resolver.NotFoundError{ShortID: id}
		}
		return fmt.Errorf("failed to fetch run: %w", err)
	}

	if err := FormatSingleJSON(w, r); err != nil {
		return fmt.Errorf("failed to format run: %w", err)
	}
	return nil
}
