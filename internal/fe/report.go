package fe

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Summary writes a fixed-width text table of the fit. Fixed-effect dummies
// are counted in the header but not listed.
func (r *Result) Summary(w io.Writer) error {
	var b strings.Builder
	rule := strings.Repeat("=", 78)

	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "%-24s %-14s %-24s %12s\n", "Dep. Variable:", r.Spec.Dependent, "R-squared:", formatStat(r.RSquared))
	fmt.Fprintf(&b, "%-24s %-14s %-24s %12s\n", "Model:", "OLS (2-way FE)", "Adj. R-squared:", formatStat(r.AdjRSquared))
	fmt.Fprintf(&b, "%-24s %-14d %-24s %12s\n", "No. Observations:", r.N, "Log-Likelihood:", formatStat(r.LogLik))
	fmt.Fprintf(&b, "%-24s %-14d %-24s %12s\n", "Countries (clusters):", r.Clusters, "AIC:", formatStat(r.AIC))
	fmt.Fprintf(&b, "%-24s %-14d %-24s %12s\n", "Years:", r.Periods, "BIC:", formatStat(r.BIC))
	fmt.Fprintf(&b, "%-24s %-14d %-24s %12s\n", "Parameters (rank):", r.Rank, "Covariance:", "cluster")
	fmt.Fprintln(&b, strings.Repeat("-", 78))
	fmt.Fprintf(&b, "%-18s %10s %10s %8s %8s %10s %10s\n", "", "coef", "std err", "z", "P>|z|", "[0.025", "0.975]")
	fmt.Fprintln(&b, strings.Repeat("-", 78))
	for _, c := range r.Regressors() {
		fmt.Fprintf(&b, "%-18s %10.4f %10.4f %8s %8s %10.4f %10.4f\n",
			truncate(c.Name, 18), c.Estimate, c.StdErr, formatStat(c.Z), formatStat(c.P), c.Lower, c.Upper)
	}
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Country and year fixed effects: %d dummies not shown.\n", len(r.Coefficients)-len(r.Regressors()))
	fmt.Fprintln(&b, "Standard errors clustered by country. Estimates are associations, not causal effects.")

	_, err := io.WriteString(w, b.String())
	return err
}

// LaTeX writes the coefficient table as a tabular environment.
func (r *Result) LaTeX(w io.Writer, showFixedEffects bool) error {
	var b strings.Builder

	b.WriteString("\\begin{center}\n")
	b.WriteString("\\begin{tabular}{lcccccc}\n")
	b.WriteString("\\hline\n")
	fmt.Fprintf(&b, "\\textbf{Dep. Variable:} & %s & & \\textbf{R-squared:} & %s & & \\\\\n",
		escapeTeX(r.Spec.Dependent), formatStat(r.RSquared))
	fmt.Fprintf(&b, "\\textbf{Model:} & OLS & & \\textbf{Adj. R-squared:} & %s & & \\\\\n", formatStat(r.AdjRSquared))
	fmt.Fprintf(&b, "\\textbf{No. Observations:} & %d & & \\textbf{Log-Likelihood:} & %s & & \\\\\n", r.N, formatStat(r.LogLik))
	fmt.Fprintf(&b, "\\textbf{Clusters:} & %d & & \\textbf{AIC:} & %s & & \\\\\n", r.Clusters, formatStat(r.AIC))
	fmt.Fprintf(&b, "\\textbf{Years:} & %d & & \\textbf{BIC:} & %s & & \\\\\n", r.Periods, formatStat(r.BIC))
	b.WriteString("\\hline\n")
	b.WriteString(" & \\textbf{coef} & \\textbf{std err} & \\textbf{z} & \\textbf{P$> |$z$|$} & \\textbf{[0.025} & \\textbf{0.975]} \\\\\n")
	b.WriteString("\\hline\n")

	rows := r.Regressors()
	if showFixedEffects {
		rows = r.Coefficients
	}
	for _, c := range rows {
		fmt.Fprintf(&b, "\\textbf{%s} & %.4f & %.4f & %s & %s & %.4f & %.4f \\\\\n",
			escapeTeX(c.Name), c.Estimate, c.StdErr, formatStat(c.Z), formatStat(c.P), c.Lower, c.Upper)
	}
	b.WriteString("\\hline\n")
	if !showFixedEffects {
		b.WriteString("\\multicolumn{7}{l}{Country and year fixed effects included.} \\\\\n")
	}
	b.WriteString("\\multicolumn{7}{l}{Standard errors clustered by country.} \\\\\n")
	b.WriteString("\\end{tabular}\n")
	b.WriteString("\\end{center}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteLaTeXFile writes the LaTeX table to path, creating parent directories.
func (r *Result) WriteLaTeXFile(path string, showFixedEffects bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := r.LaTeX(f, showFixedEffects); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

var texReplacer = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`,
	`%`, `\%`,
	`$`, `\$`,
	`#`, `\#`,
	`_`, `\_`,
	`{`, `\{`,
	`}`, `\}`,
)

func escapeTeX(s string) string {
	return texReplacer.Replace(s)
}

func formatStat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "nan"
	}
	return fmt.Sprintf("%.3f", v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "~"
}
