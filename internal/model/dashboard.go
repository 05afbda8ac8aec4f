package model

// KPIRef points a dashboard KPI at a source column.
type KPIRef struct {
	Label  string `json:"label"`
	Column string `json:"column"`
}

// ChartSpec declares one chart of a blueprint.
type ChartSpec struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	XKey  string `json:"xKey"`
	YKey  string `json:"yKey"`
}

// Blueprint is the declarative dashboard description consumed by the
// aggregator. It comes from the enrichment service or the rule-based fallback.
type Blueprint struct {
	KPIs   []KPIRef    `json:"kpis"`
	Charts []ChartSpec `json:"charts"`
}

// KPI is a rendered dashboard tile.
type KPI struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Trend string `json:"trend,omitempty"`
}

// ChartPoint is one aggregated segment of a chart.
type ChartPoint struct {
	Segment string  `json:"segment"`
	Value   float64 `json:"value"`
}

// Chart is a rendered chart with its data.
type Chart struct {
	Type  string       `json:"type"`
	Title string       `json:"title"`
	Data  []ChartPoint `json:"data"`
}

// Dashboard is chart-ready output.
type Dashboard struct {
	KPIs   []KPI   `json:"kpis"`
	Charts []Chart `json:"charts"`
}

// Insights is the narrative returned by the enrichment service.
type Insights struct {
	Summary       string   `json:"summary"`
	KeyInsights   []string `json:"key_insights"`
	SuggestedKPIs []string `json:"suggested_kpis"`
}
