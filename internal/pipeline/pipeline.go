// Package pipeline runs the analysis stages in order. Each stage reads the
// previous stage's file under the processed directory, so any stage can be
// re-run alone. Stages optionally record a run in the run store and export
// their tables to SQLite.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"

	"github.com/dyluth/esgpanel/internal/config"
	"github.com/dyluth/esgpanel/internal/esg"
	"github.com/dyluth/esgpanel/internal/fe"
	"github.com/dyluth/esgpanel/internal/panel"
	"github.com/dyluth/esgpanel/internal/predict"
	"github.com/dyluth/esgpanel/internal/printer"
	"github.com/dyluth/esgpanel/internal/sqlitestore"
	"github.com/dyluth/esgpanel/pkg/runstore"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Files written by the stages.
const (
	FullPanelFile     = "panel_full_unfiltered.csv"
	SelectedPanelFile = "panel_50_countries.csv"
	RegressionFile    = "panel_FE_regression.csv"
	LaTeXFile         = "fixed_effects_regression.tex"
	DashboardFile     = "dashboard.html"
)

// Recorder stores run records. *runstore.Client satisfies it.
type Recorder interface {
	CreateRun(ctx context.Context, r *runstore.Run) error
}

// Pipeline holds the configuration and the outputs of stages already run
// in this process.
type Pipeline struct {
	cfg      *config.Config
	logger   *zap.Logger
	recorder Recorder
	sqlite   string
	digest   string

	selected   panel.Panel
	dataset    *esg.Dataset
	regression *fe.Result
	comparison *predict.Comparison

	// last recorded run per kind, used as inputs of later runs
	lastRun map[runstore.Kind]string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecorder records one run per stage in r.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithSQLite exports tables to the SQLite file at path.
func WithSQLite(path string) Option {
	return func(p *Pipeline) { p.sqlite = path }
}

// New returns a pipeline for cfg. A nil logger disables logging.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		cfg:     cfg,
		logger:  logger,
		sqlite:  cfg.Outputs.SQLite,
		lastRun: make(map[runstore.Kind]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.digest = ConfigDigest(cfg)
	return p
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() *config.Config { return p.cfg }

// ConfigDigest returns a short hex digest of the YAML form of cfg.
func ConfigDigest(cfg *config.Config) string {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:12]
}

// record stores a run when a recorder is configured. Failures are logged
// and printed as warnings; they never fail the stage.
func (p *Pipeline) record(ctx context.Context, kind runstore.Kind, label string, payload map[string]any, inputs ...runstore.Kind) {
	if p.recorder == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("Failed to encode run payload", zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	r := runstore.NewRun(kind, label, string(data))
	r.ConfigDigest = p.digest
	for _, k := range inputs {
		if id, ok := p.lastRun[k]; ok {
			r.Inputs = append(r.Inputs, id)
		}
	}
	if err := p.recorder.CreateRun(ctx, r); err != nil {
		p.logger.Warn("Failed to record run", zap.String("kind", string(kind)), zap.Error(err))
		printer.Warning("Could not record %s run: %v\n", kind, err)
		return
	}
	p.lastRun[kind] = r.ID
	p.logger.Debug("Recorded run", zap.String("id", r.ID), zap.String("kind", string(kind)))
}

// LastRun returns the ID of the last run recorded for kind.
func (p *Pipeline) LastRun(kind runstore.Kind) (string, bool) {
	id, ok := p.lastRun[kind]
	return id, ok
}

func (p *Pipeline) openSQLite() (*sqlitestore.Store, error) {
	if p.sqlite == "" {
		return nil, nil
	}
	s, err := sqlitestore.Open(p.sqlite, p.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite export: %w", err)
	}
	return s, nil
}

// num maps NaN and infinities to null in JSON payloads.
func num(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
