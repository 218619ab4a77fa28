package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/dyluth/esgpanel/internal/config"
	"github.com/dyluth/esgpanel/internal/pipeline"
	"github.com/dyluth/esgpanel/internal/printer"
	"github.com/dyluth/esgpanel/pkg/runstore"
	"go.uber.org/zap"
)

// loadConfig reads --config, or ./esgpanel.yml, falling back to the
// built-in defaults only when no path was given explicitly.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath
	} else if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, printer.Error(
			"configuration file not found",
			fmt.Sprintf("No file at %s", path),
			[]string{"Create one with:\n  esgpanel init", "Or omit --config to use the built-in defaults"},
		)
	}

	cfg, found, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"invalid configuration",
			err.Error(),
			map[string]string{"File": path},
			[]string{"Fix the file, or regenerate it with:\n  esgpanel init --force"},
		)
	}
	if !found {
		logger.Debug("No configuration file, using defaults", zap.String("path", path))
	}
	return cfg, nil
}

// storeURL returns the run store URL from --redis or the configuration.
func storeURL(cfg *config.Config) string {
	if redisURL != "" {
		return redisURL
	}
	return cfg.Store.RedisURL
}

// connectStore connects to the run store and verifies it is reachable.
func connectStore(ctx context.Context, url, project string) (*runstore.Client, error) {
	client, err := runstore.NewClientFromURL(url, project)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// newPipeline builds a pipeline for cfg. When a run store is configured but
// unreachable the pipeline runs without recording. The returned function
// releases the store connection.
func newPipeline(ctx context.Context, cfg *config.Config, opts ...pipeline.Option) (*pipeline.Pipeline, func()) {
	cleanup := func() {}
	if url := storeURL(cfg); url != "" {
		client, err := connectStore(ctx, url, cfg.Store.Project)
		if err != nil {
			logger.Warn("Run store unavailable", zap.String("url", url), zap.Error(err))
			printer.Warning("Run store unavailable, runs will not be recorded: %v\n", err)
		} else {
			opts = append(opts, pipeline.WithRecorder(client))
			cleanup = func() { client.Close() }
		}
	}
	return pipeline.New(cfg, logger, opts...), cleanup
}

// stageError converts a stage failure into a printed error.
func stageError(stage string, err error) error {
	return printer.Error(
		fmt.Sprintf("%s failed", stage),
		err.Error(),
		[]string{"Re-run with --verbose for details"},
	)
}
