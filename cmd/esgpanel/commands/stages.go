package commands

import (
	"context"

	"github.com/dyluth/esgpanel/internal/config"
	"github.com/dyluth/esgpanel/internal/panel"
	"github.com/dyluth/esgpanel/internal/pipeline"
	"github.com/dyluth/esgpanel/internal/printer"
	"github.com/dyluth/esgpanel/internal/timespec"
	"github.com/spf13/cobra"
)

var (
	stageYears     string
	stageSQLite    string
	runDashboard   bool
	selectNoReport bool
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Build the merged long panel from the raw exports",
	Long: `Read the ESG export, the economic export and the country classification
from the raw data directory, reshape them to one row per country, indicator
and year, and write panel_full_unfiltered.csv.

Examples:
  esgpanel prepare
  esgpanel prepare --years 2000-2023 --sqlite results/esgpanel.db`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd.Context(), "prepare", func(ctx context.Context, p *pipeline.Pipeline) error {
			_, err := p.Prepare(ctx)
			return err
		})
	},
}

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Filter the panel to the configured countries",
	Long: `Keep the configured countries (the 50-country study sample by default),
write panel_50_countries.csv and print the region by income group table and
the country list.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd.Context(), "select", func(ctx context.Context, p *pipeline.Pipeline) error {
			selected, _, err := p.Select(ctx)
			if err != nil || selectNoReport {
				return err
			}
			printSelectionReport(selected)
			return nil
		})
	},
}

var regressCmd = &cobra.Command{
	Use:   "regress",
	Short: "Fit the two-way fixed-effects regression",
	Long: `Build the ESG indices and the regression dataset from the selected panel,
fit GDP growth on the indices with country and year fixed effects, and
write the LaTeX table. Standard errors are clustered by country.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd.Context(), "regress", func(ctx context.Context, p *pipeline.Pipeline) error {
			res, err := p.Regress(ctx)
			if err != nil {
				return err
			}
			printer.Println()
			return res.Summary(printer.Stdout())
		})
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Compare predictive models by cross-validation",
	Long: `Cross-validate the configured models (linear, random forest, gradient
boosting) on the regression dataset, rank them by mean RMSE and write
model_comparison.csv and feature_importance.csv.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd.Context(), "predict", func(ctx context.Context, p *pipeline.Pipeline) error {
			c, err := p.Predict(ctx)
			if err != nil {
				return err
			}
			printer.Println()
			pipeline.WriteComparisonTable(printer.Stdout(), c)
			printer.Println()
			pipeline.WriteImportances(printer.Stdout(), c)
			return nil
		})
	},
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Render the static HTML results dashboard",
	Long: `Render results/dashboard.html from the selected panel and regression
dataset. The regression and model comparison are recomputed when this is
run on its own.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd.Context(), "dashboard", func(ctx context.Context, p *pipeline.Pipeline) error {
			_, err := p.Dashboard(ctx)
			return err
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage in order",
	Long: `Run prepare, select, regress and predict in order, and the dashboard when
--dashboard is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd.Context(), "run", func(ctx context.Context, p *pipeline.Pipeline) error {
			if err := p.Run(ctx, runDashboard); err != nil {
				return err
			}
			printer.Println()
			printer.Success("Pipeline complete\n")
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{prepareCmd, selectCmd, regressCmd, runCmd} {
		c.Flags().StringVar(&stageSQLite, "sqlite", "", "Also export tables to this SQLite file (overrides outputs.sqlite)")
	}
	prepareCmd.Flags().StringVar(&stageYears, "years", "", "Keep only these years, e.g. 2000-2023 (overrides years)")
	runCmd.Flags().StringVar(&stageYears, "years", "", "Keep only these years, e.g. 2000-2023 (overrides years)")
	runCmd.Flags().BoolVar(&runDashboard, "dashboard", false, "Also render the HTML dashboard")
	selectCmd.Flags().BoolVar(&selectNoReport, "quiet", false, "Do not print the summary tables")

	rootCmd.AddCommand(prepareCmd, selectCmd, regressCmd, predictCmd, dashboardCmd, runCmd)
}

// runStage loads the configuration, applies the stage flags and runs fn
// against a fresh pipeline.
func runStage(ctx context.Context, name string, fn func(context.Context, *pipeline.Pipeline) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if stageYears != "" {
		from, to, err := timespec.ParseYearRange(stageYears)
		if err != nil {
			return printer.Error("invalid --years", err.Error(), []string{"Use a range like 2000-2023, 2005- or -2015"})
		}
		cfg.Years = &config.YearWindow{From: from, To: to}
	}

	var opts []pipeline.Option
	if stageSQLite != "" {
		opts = append(opts, pipeline.WithSQLite(stageSQLite))
	}
	p, cleanup := newPipeline(ctx, cfg, opts...)
	defer cleanup()

	if err := fn(ctx, p); err != nil {
		return stageError(name, err)
	}
	return nil
}

func printSelectionReport(selected panel.Panel) {
	printer.Println()
	printer.Heading("Countries by region and income group")
	pipeline.WriteCrosstab(printer.Stdout(), panel.RegionIncomeTable(selected))
	printer.Println()
	printer.Heading("Selected countries")
	pipeline.WriteCountryMetadata(printer.Stdout(), panel.CountryMetadata(selected))
}
