// Package dataprep turns the raw World Bank exports into the merged long
// panel: each wide ESG / economic file is melted to one row per
// (country, series, year), tagged with a category and a source, and joined
// with the country classification table.
package dataprep

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dyluth/esgpanel/internal/config"
	"github.com/dyluth/esgpanel/internal/panel"
	"go.uber.org/zap"
)

// Source labels for the two indicator files
const (
	SourceESG      = "ESG"
	SourceEconomic = "Economic"
)

// Category labels
const (
	CategoryEnvironmental = "Environmental"
	CategorySocial        = "Social"
	CategoryGovernance    = "Governance"
	CategoryEconomic      = "Economic"
	CategoryOther         = "Other"
)

type keywordRule struct {
	keywords []string
	category string
}

// Checked in order; the first matching rule wins.
var esgRules = []keywordRule{
	{[]string{"co2", "fossil", "renewable", "methane", "nitrous"}, CategoryEnvironmental},
	{[]string{"unemployment", "gini", "rights"}, CategorySocial},
	{[]string{"corruption", "political"}, CategoryGovernance},
	{[]string{"gdp", "expenditure"}, CategoryEconomic},
}

var economicRules = []keywordRule{
	{[]string{"gdp", "inflation", "foreign direct investment", "research", "r&d"}, CategoryEconomic},
}

func classify(rules []keywordRule, indicator string) string {
	lower := strings.ToLower(indicator)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.category
			}
		}
	}
	return CategoryOther
}

// AssignCategory tags a series from the ESG file with its pillar.
func AssignCategory(indicator string) string {
	return classify(esgRules, indicator)
}

// AssignEconomicCategory tags a series from the economic file.
func AssignEconomicCategory(indicator string) string {
	return classify(economicRules, indicator)
}

// Identifier columns of a DataBank export
const (
	colCountryName = "Country Name"
	colCountryCode = "Country Code"
	colSeriesName  = "Series Name"
)

// Melt reshapes a wide DataBank table ("2000 [YR2000]" columns) to long
// observations. Series Code is dropped and rows without a series name
// (download footers) are skipped. Values that are not numbers, such as
// "..", become NaN. Years outside window are dropped.
func Melt(t *Table, source string, categorize func(string) string, window *config.YearWindow) ([]panel.Observation, error) {
	if err := t.Require(colCountryName, colCountryCode, colSeriesName); err != nil {
		return nil, err
	}

	type yearCol struct {
		name string
		year int
	}
	var years []yearCol
	found := 0
	for _, h := range t.Header {
		if !strings.Contains(h, "[") {
			continue
		}
		found++
		if len(h) < 4 {
			return nil, fmt.Errorf("%s: malformed year column %q", t.Name, h)
		}
		y, err := strconv.Atoi(h[:4])
		if err != nil {
			return nil, fmt.Errorf("%s: malformed year column %q", t.Name, h)
		}
		if window.Contains(y) {
			years = append(years, yearCol{h, y})
		}
	}
	if found == 0 {
		return nil, fmt.Errorf("%s: no year columns found", t.Name)
	}

	var out []panel.Observation
	for _, yc := range years {
		for _, rec := range t.Records {
			indicator := t.Get(rec, colSeriesName)
			if indicator == "" {
				continue
			}
			out = append(out, panel.Observation{
				CountryName: t.Get(rec, colCountryName),
				CountryCode: t.Get(rec, colCountryCode),
				Indicator:   indicator,
				Year:        yc.year,
				Value:       panel.ParseValue(t.Get(rec, yc.name)),
				Category:    categorize(indicator),
				Source:      source,
			})
		}
	}
	return out, nil
}

// Classification holds a country's World Bank grouping.
type Classification struct {
	CountryCode string
	CountryName string
	Region      string
	IncomeGroup string
}

// PrepareClassification renames the classification columns and indexes
// the rows by country code. The lending category is not kept. When a code
// appears twice the first row wins.
func PrepareClassification(t *Table) (map[string]Classification, error) {
	if err := t.Require("Economy", "Code", "Region", "Income group"); err != nil {
		return nil, err
	}
	out := make(map[string]Classification, len(t.Records))
	for _, rec := range t.Records {
		code := t.Get(rec, "Code")
		if code == "" {
			continue
		}
		if _, dup := out[code]; dup {
			continue
		}
		out[code] = Classification{
			CountryCode: code,
			CountryName: t.Get(rec, "Economy"),
			Region:      t.Get(rec, "Region"),
			IncomeGroup: t.Get(rec, "Income group"),
		}
	}
	return out, nil
}

// MergeToPanel concatenates ESG then economic rows, sorts them by
// country code, year and category, and attaches region and income group.
// Country names come from the indicator files, not the classification.
func MergeToPanel(esg, econ []panel.Observation, class map[string]Classification) panel.Panel {
	all := make(panel.Panel, 0, len(esg)+len(econ))
	all = append(all, esg...)
	all = append(all, econ...)
	all.SortStable()

	for i := range all {
		if c, ok := class[all[i].CountryCode]; ok {
			all[i].Region = c.Region
			all[i].IncomeGroup = c.IncomeGroup
		}
	}
	return all
}

// LoadRaw reads the ESG export, the economic export and the country
// classification named in cfg.
func LoadRaw(cfg *config.Config) (esg, econ, class *Table, err error) {
	if esg, err = ReadTableFile(cfg.RawPath(cfg.Inputs.ESGFile)); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load ESG data: %w", err)
	}
	if econ, err = ReadTableFile(cfg.RawPath(cfg.Inputs.EconomicFile)); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load economic data: %w", err)
	}
	if class, err = ReadTableFile(cfg.RawPath(cfg.Inputs.ClassificationFile)); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load country classification: %w", err)
	}
	return esg, econ, class, nil
}

// BuildMergedDataset loads the three raw files named in cfg and returns the
// merged long panel covering every country in the exports.
func BuildMergedDataset(cfg *config.Config, logger *zap.Logger) (panel.Panel, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	esgTable, econTable, classTable, err := LoadRaw(cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded raw tables",
		zap.Int("esg_rows", len(esgTable.Records)),
		zap.Int("economic_rows", len(econTable.Records)),
		zap.Int("classification_rows", len(classTable.Records)))

	esgLong, err := Melt(esgTable, SourceESG, AssignCategory, cfg.Years)
	if err != nil {
		return nil, fmt.Errorf("failed to reshape ESG data: %w", err)
	}
	econLong, err := Melt(econTable, SourceEconomic, AssignEconomicCategory, cfg.Years)
	if err != nil {
		return nil, fmt.Errorf("failed to reshape economic data: %w", err)
	}
	class, err := PrepareClassification(classTable)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare country classification: %w", err)
	}

	merged := MergeToPanel(esgLong, econLong, class)

	unclassified := make(map[string]struct{})
	for _, o := range merged {
		if o.Region == "" {
			unclassified[o.CountryCode] = struct{}{}
		}
	}
	logger.Info("Merged dataset built",
		zap.Int("rows", len(merged)),
		zap.Int("countries", len(merged.Countries())),
		zap.Int("unclassified_codes", len(unclassified)))

	return merged, nil
}
