package dataprep

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dyluth/esgpanel/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"
)

const esgCSV = `Country Name,Country Code,Series Name,Series Code,2000 [YR2000],2001 [YR2001]
France,FRA,CO2 emissions (metric tons per capita),EN.ATM.CO2E.PC,6.1,..
Kenya,KEN,Gini index,SI.POV.GINI,..,42.1
World,WLD,Control of Corruption: Estimate,CC.EST,0.1,0.2
,,,,,
Data from database: World Development Indicators,,,,,
Last Updated: 12/16/2024,,,,,
`

const econCSV = `Country Name,Country Code,Series Name,Series Code,2000 [YR2000],2001 [YR2001]
France,FRA,GDP growth (annual %),NY.GDP.MKTP.KD.ZG,3.9,2.0
Kenya,KEN,"Inflation, consumer prices (annual %)",FP.CPI.TOTL.ZG,10.0,5.7
`

func writeRaw(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "esg.csv"), []byte(esgCSV), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "econ.csv"), []byte(econCSV), 0644))

	f := excelize.NewFile()
	defer f.Close()
	rows := [][]interface{}{
		{"Economy", "Code", "Region", "Income group", "Lending category"},
		{"France", "FRA", "Europe & Central Asia", "High income", ""},
		{"Kenya", "KEN", "Sub-Saharan Africa", "Lower middle income", "IDA"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(filepath.Join(dir, "class.xlsx")))
}

func TestAssignCategory(t *testing.T) {
	tests := []struct {
		indicator string
		expected  string
	}{
		{"CO2 emissions (metric tons per capita)", CategoryEnvironmental},
		{"Renewable electricity output (% of total electricity output)", CategoryEnvironmental},
		{"Nitrous oxide emissions (metric tons of CO2 equivalent per capita)", CategoryEnvironmental},
		{"Gini index", CategorySocial},
		{"Economic and Social Rights Performance Score", CategorySocial},
		{"Control of Corruption: Estimate", CategoryGovernance},
		{"Political Stability and Absence of Violence/Terrorism: Estimate", CategoryGovernance},
		{"GDP growth (annual %)", CategoryEconomic},
		{"Research and development expenditure (% of GDP)", CategoryEconomic},
		{"Population, total", CategoryOther},
		{"", CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.indicator, func(t *testing.T) {
			assert.Equal(t, tt.expected, AssignCategory(tt.indicator))
		})
	}
}

func TestAssignEconomicCategory(t *testing.T) {
	assert.Equal(t, CategoryEconomic, AssignEconomicCategory("Inflation, consumer prices (annual %)"))
	assert.Equal(t, CategoryEconomic, AssignEconomicCategory("Foreign direct investment, net inflows (% of GDP)"))
	assert.Equal(t, CategoryEconomic, AssignEconomicCategory("R&D spending"))
	assert.Equal(t, CategoryOther, AssignEconomicCategory("Gini index"))
}

func TestMelt(t *testing.T) {
	table, err := ReadCSV("esg.csv", strings.NewReader(esgCSV))
	require.NoError(t, err)

	t.Run("wide to long without footers", func(t *testing.T) {
		obs, err := Melt(table, SourceESG, AssignCategory, nil)
		require.NoError(t, err)
		require.Len(t, obs, 6)

		first := obs[0]
		assert.Equal(t, "France", first.CountryName)
		assert.Equal(t, "CO2 emissions (metric tons per capita)", first.Indicator)
		assert.Equal(t, 2000, first.Year)
		assert.Equal(t, 6.1, first.Value)
		assert.Equal(t, CategoryEnvironmental, first.Category)
		assert.Equal(t, SourceESG, first.Source)

		assert.True(t, math.IsNaN(obs[1].Value), "'..' is missing")
		assert.Equal(t, 2001, obs[3].Year)
	})

	t.Run("year window", func(t *testing.T) {
		obs, err := Melt(table, SourceESG, AssignCategory, &config.YearWindow{From: 2001})
		require.NoError(t, err)
		require.Len(t, obs, 3)
		for _, o := range obs {
			assert.Equal(t, 2001, o.Year)
		}
	})

	t.Run("no year columns", func(t *testing.T) {
		bad, err := ReadCSV("bad.csv", strings.NewReader("Country Name,Country Code,Series Name\nFrance,FRA,x\n"))
		require.NoError(t, err)
		_, err = Melt(bad, SourceESG, AssignCategory, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no year columns found")
	})
}

func TestReadCSV_DuplicateHeader(t *testing.T) {
	_, err := ReadCSV("dup.csv", strings.NewReader("a,b,a\n1,2,3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate column "a"`)
}

func TestReadTableFile_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))
	_, err := ReadTableFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestBuildMergedDataset(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir)

	cfg := config.Default()
	cfg.Paths.RawDir = dir
	cfg.Inputs = config.InputsConfig{ESGFile: "esg.csv", EconomicFile: "econ.csv", ClassificationFile: "class.xlsx"}

	merged, err := BuildMergedDataset(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, merged, 10)

	// Sorted by code, year, category
	assert.Equal(t, "FRA", merged[0].CountryCode)
	assert.Equal(t, 2000, merged[0].Year)
	assert.Equal(t, CategoryEconomic, merged[0].Category)
	assert.Equal(t, CategoryEnvironmental, merged[1].Category)
	assert.Equal(t, "WLD", merged[len(merged)-1].CountryCode)

	for _, o := range merged {
		switch o.CountryCode {
		case "FRA":
			assert.Equal(t, "Europe & Central Asia", o.Region)
			assert.Equal(t, "High income", o.IncomeGroup)
		case "KEN":
			assert.Equal(t, "Sub-Saharan Africa", o.Region)
		case "WLD":
			assert.Empty(t, o.Region, "aggregates have no classification")
		}
	}
}

func TestBuildMergedDataset_MissingFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.RawDir = t.TempDir()

	_, err := BuildMergedDataset(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load ESG data")
}

func TestPrepareClassification_FirstRowWins(t *testing.T) {
	table, err := ReadCSV("class.csv", strings.NewReader(
		"Economy,Code,Region,Income group\nFrance,FRA,Europe,High\nFrance bis,FRA,Other,Low\n,,,\n"))
	require.NoError(t, err)

	class, err := PrepareClassification(table)
	require.NoError(t, err)
	require.Len(t, class, 1)
	assert.Equal(t, "Europe", class["FRA"].Region)
}
