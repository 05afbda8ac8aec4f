package pipeline

import (
	"fmt"

	"go-insight-pipeline/internal/model"
)

// SampleSize is the number of rows copied into DataSummary.SampleData.
const SampleSize = 5

// Health deductions applied by the suggestion rules.
const (
	duplicatePenalty = 10
	nullPenalty      = 5
	outlierPenalty   = 3

	nullRatioLimit    = 0.10
	outlierRatioLimit = 0.05
)

// SummaryInput is everything the summary generator combines.
type SummaryInput struct {
	Dataset        model.Dataset
	Columns        []model.ColumnMetadata
	DuplicateCount int
	History        []model.OperationLog
	RootCause      *model.RootCauseSummary
}

// GenerateSummary assembles column metadata, statistics and rule-based
// data-quality suggestions. The quality score starts at 100, loses points per
// finding and is clamped to [0, 100].
func GenerateSummary(in SummaryInput) *model.DataSummary {
	rows := in.Dataset.Len()
	score := 100
	suggestions := make([]model.Suggestion, 0)

	if in.DuplicateCount > 0 {
		suggestions = append(suggestions, model.Suggestion{
			Severity: model.SeverityWarning,
			Message:  fmt.Sprintf("Removed %d duplicate rows; check the source export for repeated records.", in.DuplicateCount),
		})
		score -= duplicatePenalty
	}

	for _, c := range in.Columns {
		if float64(c.NullCount) > nullRatioLimit*float64(rows) {
			suggestions = append(suggestions, model.Suggestion{
				Severity: model.SeverityCritical,
				Column:   c.Name,
				Message:  fmt.Sprintf("Column %q is missing %d of %d values; consider running clean to fill them.", c.Name, c.NullCount, rows),
			})
			score -= nullPenalty
		}
	}

	for _, c := range in.Columns {
		if c.Type != model.TypeNumeric || c.Numeric == nil {
			continue
		}
		if float64(c.Numeric.OutliersCount) > outlierRatioLimit*float64(rows) {
			suggestions = append(suggestions, model.Suggestion{
				Severity: model.SeverityInfo,
				Column:   c.Name,
				Message:  fmt.Sprintf("Column %q has %d outliers outside 1.5x IQR.", c.Name, c.Numeric.OutliersCount),
			})
			score -= outlierPenalty
		}
	}

	history := append([]model.OperationLog(nil), in.History...)
	if history == nil {
		history = []model.OperationLog{}
	}

	return &model.DataSummary{
		RowCount:         rows,
		ColumnCount:      len(in.Dataset.Headers),
		DuplicateCount:   in.DuplicateCount,
		QualityScore:     clampScore(score),
		Suggestions:      suggestions,
		OperationHistory: history,
		Columns:          in.Columns,
		SampleData:       append([]model.Record(nil), in.Dataset.Head(SampleSize)...),
		RootCause:        in.RootCause,
		PipelineVersion:  Version,
	}
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
