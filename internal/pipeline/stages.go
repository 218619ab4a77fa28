package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/dyluth/esgpanel/internal/dashboard"
	"github.com/dyluth/esgpanel/internal/dataprep"
	"github.com/dyluth/esgpanel/internal/esg"
	"github.com/dyluth/esgpanel/internal/fe"
	"github.com/dyluth/esgpanel/internal/panel"
	"github.com/dyluth/esgpanel/internal/predict"
	"github.com/dyluth/esgpanel/internal/printer"
	"github.com/dyluth/esgpanel/pkg/runstore"
	"go.uber.org/zap"
)

// Prepare builds the merged long panel from the raw files and writes
// panel_full_unfiltered.csv.
func (p *Pipeline) Prepare(ctx context.Context) (panel.Panel, error) {
	printer.Step("Preparing merged panel\n")
	merged, err := dataprep.BuildMergedDataset(p.cfg, p.logger)
	if err != nil {
		return nil, err
	}
	path := p.cfg.ProcessedPath(FullPanelFile)
	if err := panel.WriteFile(path, merged); err != nil {
		return nil, err
	}
	if err := p.exportObservations(ctx, merged); err != nil {
		return nil, err
	}
	printer.Success("Wrote %s (%d rows, %d countries)\n", path, len(merged), len(merged.Countries()))

	first, last := merged.YearRange()
	p.record(ctx, runstore.KindPanel, "merged panel", map[string]any{
		"stage":         "prepare",
		"file":          path,
		"rows":          len(merged),
		"countries":     len(merged.Countries()),
		"indicators":    len(merged.Indicators()),
		"first_year":    first,
		"last_year":     last,
		"missing_share": num(merged.MissingShare()),
	})
	return merged, nil
}

// Select filters the merged panel to the configured countries and writes
// panel_50_countries.csv.
func (p *Pipeline) Select(ctx context.Context) (panel.Panel, panel.SelectionReport, error) {
	printer.Step("Selecting countries\n")
	full, err := panel.ReadFile(p.cfg.ProcessedPath(FullPanelFile))
	if err != nil {
		return nil, panel.SelectionReport{}, fmt.Errorf("failed to read merged panel (run 'esgpanel prepare' first): %w", err)
	}
	selected, report, err := panel.SelectCountries(full, p.cfg.Countries, p.logger)
	if err != nil {
		return nil, report, err
	}
	if len(report.Unmatched) > 0 {
		printer.Warning("%d configured countries not found in the panel\n", len(report.Unmatched))
	}

	path := p.cfg.ProcessedPath(SelectedPanelFile)
	if err := panel.WriteFile(path, selected); err != nil {
		return nil, report, err
	}
	if err := p.exportObservations(ctx, selected); err != nil {
		return nil, report, err
	}
	p.selected = selected
	printer.Success("Wrote %s (%d rows, %d countries)\n", path, len(selected), report.Matched)

	first, last := selected.YearRange()
	p.record(ctx, runstore.KindPanel, fmt.Sprintf("%d-country panel", report.Matched), map[string]any{
		"stage":         "select",
		"file":          path,
		"rows":          len(selected),
		"countries":     report.Matched,
		"requested":     report.Requested,
		"unmatched":     report.Unmatched,
		"first_year":    first,
		"last_year":     last,
		"missing_share": num(selected.MissingShare()),
	}, runstore.KindPanel)
	return selected, report, nil
}

// Regress builds the regression dataset from the selected panel, fits the
// two-way fixed-effects model and writes the dataset CSV and LaTeX table.
func (p *Pipeline) Regress(ctx context.Context) (*fe.Result, error) {
	printer.Step("Fitting fixed-effects regression\n")
	selected, err := p.selectedPanel()
	if err != nil {
		return nil, err
	}

	d := esg.BuildRegressionDataset(selected, p.cfg, p.logger)
	dataPath := p.cfg.ProcessedPath(RegressionFile)
	if err := d.WriteFile(dataPath); err != nil {
		return nil, err
	}
	if err := p.exportDataset(ctx, d); err != nil {
		return nil, err
	}
	p.dataset = d

	rc := p.cfg.Regression
	res, err := fe.Fit(d, fe.Spec{Dependent: rc.Dependent, Regressors: rc.Regressors}, p.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to fit fixed-effects model: %w", err)
	}
	texPath := p.cfg.ResultsPath("regression", LaTeXFile)
	if err := res.WriteLaTeXFile(texPath, rc.ShowFixedEffects); err != nil {
		return nil, err
	}
	p.regression = res
	printer.Success("Wrote %s and %s\n", dataPath, texPath)

	coefs := make([]map[string]any, 0, len(rc.Regressors)+1)
	for _, c := range res.Regressors() {
		coefs = append(coefs, map[string]any{
			"name": c.Name, "estimate": num(c.Estimate), "std_err": num(c.StdErr), "p": num(c.P),
		})
	}
	p.record(ctx, runstore.KindRegression, fmt.Sprintf("%s ~ %d regressors + FE", rc.Dependent, len(rc.Regressors)), map[string]any{
		"dependent":    rc.Dependent,
		"n":            res.N,
		"clusters":     res.Clusters,
		"periods":      res.Periods,
		"r_squared":    num(res.RSquared),
		"coefficients": coefs,
		"file":         texPath,
	}, runstore.KindPanel)
	return res, nil
}

// Predict cross-validates the configured models on the regression dataset
// and writes the comparison and importance CSVs.
func (p *Pipeline) Predict(ctx context.Context) (*predict.Comparison, error) {
	printer.Step("Comparing predictive models\n")
	d, err := p.regressionDataset()
	if err != nil {
		return nil, err
	}
	c, err := predict.Compare(ctx, d, p.cfg.Prediction, p.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to compare models: %w", err)
	}
	dir := p.cfg.ResultsPath("models")
	if err := c.WriteFiles(dir); err != nil {
		return nil, err
	}
	p.comparison = c
	printer.Success("Best model: %s (RMSE %.3f); results in %s\n", c.Best, c.Results[0].Mean.RMSE, dir)

	models := make([]map[string]any, 0, len(c.Results))
	for _, r := range c.Results {
		models = append(models, map[string]any{
			"model": r.Model, "rmse": num(r.Mean.RMSE), "mae": num(r.Mean.MAE), "r2": num(r.Mean.R2),
		})
	}
	p.record(ctx, runstore.KindComparison, "best: "+c.Best, map[string]any{
		"target":   c.Target,
		"rows":     c.Rows,
		"folds":    c.CV.Folds,
		"cv":       c.CV.Strategy,
		"best":     c.Best,
		"models":   models,
		"features": c.Features,
	}, runstore.KindPanel, runstore.KindRegression)
	return c, nil
}

// Dashboard renders results/dashboard.html. Outputs of stages not run in
// this process are recomputed from the processed files.
func (p *Pipeline) Dashboard(ctx context.Context) (string, error) {
	printer.Step("Rendering dashboard\n")
	selected, err := p.selectedPanel()
	if err != nil {
		return "", err
	}
	d, err := p.regressionDataset()
	if err != nil {
		return "", err
	}
	if p.regression == nil {
		rc := p.cfg.Regression
		res, err := fe.Fit(d, fe.Spec{Dependent: rc.Dependent, Regressors: rc.Regressors}, p.logger)
		if err != nil {
			p.logger.Warn("Regression unavailable for dashboard", zap.Error(err))
		} else {
			p.regression = res
		}
	}
	if p.comparison == nil {
		c, err := predict.Compare(ctx, d, p.cfg.Prediction, p.logger)
		if err != nil {
			p.logger.Warn("Model comparison unavailable for dashboard", zap.Error(err))
		} else {
			p.comparison = c
		}
	}

	data, err := dashboard.Build(dashboard.Inputs{
		Panel:      selected,
		Dataset:    d,
		Regression: p.regression,
		Comparison: p.comparison,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build dashboard: %w", err)
	}
	path := p.cfg.ResultsPath(DashboardFile)
	if err := dashboard.WriteFile(path, data); err != nil {
		return "", err
	}
	printer.Success("Wrote %s\n", path)

	p.record(ctx, runstore.KindDashboard, "dashboard", map[string]any{
		"file":           path,
		"has_regression": p.regression != nil,
		"has_comparison": p.comparison != nil,
	}, runstore.KindPanel, runstore.KindRegression, runstore.KindComparison)
	return path, nil
}

// Run executes every stage in order, the dashboard only when requested.
func (p *Pipeline) Run(ctx context.Context, withDashboard bool) error {
	if _, err := p.Prepare(ctx); err != nil {
		return err
	}
	if _, _, err := p.Select(ctx); err != nil {
		return err
	}
	if _, err := p.Regress(ctx); err != nil {
		return err
	}
	if _, err := p.Predict(ctx); err != nil {
		return err
	}
	if withDashboard {
		if _, err := p.Dashboard(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) selectedPanel() (panel.Panel, error) {
	if p.selected != nil {
		return p.selected, nil
	}
	selected, err := panel.ReadFile(p.cfg.ProcessedPath(SelectedPanelFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read selected panel (run 'esgpanel select' first): %w", err)
	}
	p.selected = selected
	return selected, nil
}

func (p *Pipeline) regressionDataset() (*esg.Dataset, error) {
	if p.dataset != nil {
		return p.dataset, nil
	}
	path := p.cfg.ProcessedPath(RegressionFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("regression dataset %s not found (run 'esgpanel regress' first)", path)
	}
	d, err := esg.ReadDatasetFile(path)
	if err != nil {
		return nil, err
	}
	p.dataset = d
	return d, nil
}

func (p *Pipeline) exportObservations(ctx context.Context, obs panel.Panel) error {
	s, err := p.openSQLite()
	if err != nil || s == nil {
		return err
	}
	defer s.Close()
	return s.WriteObservations(ctx, obs)
}

func (p *Pipeline) exportDataset(ctx context.Context, d *esg.Dataset) error {
	s, err := p.openSQLite()
	if err != nil || s == nil {
		return err
	}
	defer s.Close()
	return s.WriteDataset(ctx, d)
}
