package watch

import (
	"context"
	"fmt"

	"github.com/dyluth/esgpanel/internal/filter"
	"github.com/dyluth/esgpanel/pkg/runstore"
	"go.uber.org/zap"
)

// RunSubscriber is the part of the run store Follow needs.
type RunSubscriber interface {
	SubscribeRuns(ctx context.Context) (*runstore.Subscription, error)
}

// Follow streams runs created after it starts until ctx is cancelled or
// the subscription ends. Each matching run is passed to emit. Malformed
// events are logged and skipped.
func Follow(ctx context.Context, store RunSubscriber, criteria *filter.Criteria, emit func(*runstore.Run) error, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	sub, err := store.SubscribeRuns(ctx)
	if err != nil {
		return fmt.Errorf("failed to follow runs: %w", err)
	}
	defer sub.Close()

	events, errs := sub.Events(), sub.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("Skipping malformed run event", zap.Error(err))
		case r, ok := <-events:
			if !ok {
				return nil
			}
			if criteria != nil && !criteria.Matches(r) {
				continue
			}
			if err := emit(r); err != nil {
				return err
			}
		}
	}
}
