package model

import "time"

// ColumnType is the inferred type of a column.
type ColumnType string

const (
	TypeNumeric     ColumnType = "numeric"
	TypeCategorical ColumnType = "categorical"
	TypeBoolean     ColumnType = "boolean"
	TypeDate        ColumnType = "date"
	TypeUnknown     ColumnType = "unknown"
)

// Skewness is a heuristic label derived from mean, median and stdDev.
// It is not a formal skewness statistic.
type Skewness string

const (
	SkewPositive Skewness = "positive"
	SkewNegative Skewness = "negative"
	SkewNormal   Skewness = "normal"
)

// NumericStats describes a numeric column.
type NumericStats struct {
	Min           float64  `json:"min"`
	Max           float64  `json:"max"`
	Mean          float64  `json:"mean"`
	Median        float64  `json:"median"`
	StdDev        float64  `json:"stdDev"`
	OutliersCount int      `json:"outliersCount"`
	Skewness      Skewness `json:"skewness"`
}

// CategoricalStats describes a categorical column.
type CategoricalStats struct {
	TopValue      string `json:"topValue"`
	TopValueCount int    `json:"topValueCount"`
}

// ColumnMetadata is the schema entry for one column, with stats attached
// once the analytics stage has run.
type ColumnMetadata struct {
	Name        string            `json:"name"`
	Type        ColumnType        `json:"type"`
	NullCount   int               `json:"nullCount"`
	UniqueCount int               `json:"uniqueCount"`
	Numeric     *NumericStats     `json:"numericStats,omitempty"`
	Categorical *CategoricalStats `json:"categoricalStats,omitempty"`
}

// Severity of a data-quality suggestion.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Suggestion is advisory data-quality metadata. It never blocks a run.
type Suggestion struct {
	Severity Severity `json:"severity"`
	Column   string   `json:"column,omitempty"`
	Message  string   `json:"message"`
}

// OperationLog is one audit entry. Entries are append-only.
type OperationLog struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason"`
	Details   string    `json:"details"`
}

// Direction of a contributor's movement between periods.
type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
)

// Contributor is one category's share of a KPI change.
type Contributor struct {
	Factor                 string    `json:"factor"`
	Dimension              string    `json:"dimension"`
	AbsoluteImpact         float64   `json:"absolute_impact"`
	ContributionPercentage float64   `json:"contribution_percentage"`
	Direction              Direction `json:"direction"`
}

// RootCauseSummary ranks the categorical drivers of a KPI's change.
type RootCauseSummary struct {
	KPIName         string        `json:"kpi_name"`
	TotalDelta      float64       `json:"total_delta"`
	TotalDeltaPct   float64       `json:"total_delta_pct"`
	TopContributors []Contributor `json:"top_contributors"`
	ConfidenceScore float64       `json:"confidence_score"`
	AnalysisMethod  string        `json:"analysis_method"`
}

// DataSummary is the pipeline's output object.
type DataSummary struct {
	RowCount         int               `json:"rowCount"`
	ColumnCount      int               `json:"columnCount"`
	DuplicateCount   int               `json:"duplicateCount"`
	QualityScore     int               `json:"qualityScore"`
	Suggestions      []Suggestion      `json:"suggestions"`
	OperationHistory []OperationLog    `json:"operationHistory"`
	Columns          []ColumnMetadata  `json:"columns"`
	SampleData       []Record          `json:"sampleData"`
	RootCause        *RootCauseSummary `json:"rootCause,omitempty"`
	Dashboard        *Dashboard        `json:"dashboard,omitempty"`
	Insights         *Insights         `json:"insights,omitempty"`
	PipelineVersion  string            `json:"pipelineVersion"`
}

// Column looks up a column by name.
func (s *DataSummary) Column(name string) (ColumnMetadata, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnMetadata{}, false
}

// CacheRecord is a memoized pipeline result.
type CacheRecord struct {
	Key       string       `json:"key"`
	Summary   *DataSummary `json:"summary"`
	Insights  *Insights    `json:"insights,omitempty"`
	Blueprint *Blueprint   `json:"blueprint,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}
