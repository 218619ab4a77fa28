package config

// DefaultCountries returns the 50-country sample, grouped by region.
func DefaultCountries() []string {
	return []string{
		// North America
		"United States", "Canada",

		// South Asia
		"India", "Sri Lanka", "Nepal", "Bangladesh", "Maldives", "Bhutan",

		// Middle East, North Africa, Afghanistan & Pakistan
		"Israel", "Iran, Islamic Rep.", "Egypt, Arab Rep.", "Tunisia",
		"Saudi Arabia", "Pakistan", "Algeria",

		// Latin America & Caribbean
		"Brazil", "Colombia", "Mexico", "Costa Rica", "Uruguay", "Chile",
		"Honduras", "Bolivia", "Dominican Republic", "Peru",

		// East Asia & Pacific
		"Japan", "Korea, Rep.", "Australia", "China", "Indonesia",
		"Viet Nam", "Philippines", "Cambodia",

		// Sub-Saharan Africa
		"South Africa", "Mauritius", "Nigeria", "Ghana", "Kenya",
		"Madagascar", "Rwanda", "Burkina Faso",

		// Europe & Central Asia
		"Germany", "France", "United Kingdom", "Poland", "Romania",
		"Hungary", "Georgia", "Kazakhstan", "Uzbekistan",
	}
}

// DefaultESGIndicators returns the pillar and direction of each ESG series.
func DefaultESGIndicators() []ESGIndicator {
	return []ESGIndicator{
		{Name: "CO2 emissions (metric tons per capita)", Category: "E", Direction: -1},
		{Name: "Methane emissions (metric tons of CO2 equivalent per capita)", Category: "E", Direction: -1},
		{Name: "Nitrous oxide emissions (metric tons of CO2 equivalent per capita)", Category: "E", Direction: -1},
		{Name: "Fossil fuel energy consumption (% of total)", Category: "E", Direction: -1},
		{Name: "Renewable energy consumption (% of total final energy consumption)", Category: "E", Direction: 1},
		{Name: "Renewable electricity output (% of total electricity output)", Category: "E", Direction: 1},

		{Name: "Unemployment, total (% of total labor force) (modeled ILO estimate)", Category: "S", Direction: -1},
		{Name: "Gini index", Category: "S", Direction: -1},
		{Name: "Economic and Social Rights Performance Score", Category: "S", Direction: 1},

		{Name: "Control of Corruption: Estimate", Category: "G", Direction: 1},
		{Name: "Political Stability and Absence of Violence/Terrorism: Estimate", Category: "G", Direction: 1},
	}
}

// DefaultEconIndicators returns the economic series and their dataset columns.
func DefaultEconIndicators() []EconIndicator {
	return []EconIndicator{
		{Name: "GDP growth (annual %)", Column: "gdp_growth"},
		{Name: "GDP per capita (constant 2015 US$)", Column: "gdp_per_capita"},
		{Name: "Inflation, consumer prices (annual %)", Column: "inflation"},
		{Name: "Foreign direct investment, net inflows (% of GDP)", Column: "fdi_inflows"},
		{Name: "Research and development expenditure (% of GDP)", Column: "R&D_expenditure"},
	}
}
