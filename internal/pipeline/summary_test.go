package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-insight-pipeline/internal/model"
)

func emptyRows(n int, headers ...string) model.Dataset {
	ds := model.Dataset{Headers: headers}
	for i := 0; i < n; i++ {
		ds.Rows = append(ds.Rows, model.Record{})
	}
	return ds
}

func TestGenerateSummary_Penalties(t *testing.T) {
	ds := emptyRows(20, "a", "b")
	s := GenerateSummary(SummaryInput{
		Dataset:        ds,
		DuplicateCount: 1,
		Columns: []model.ColumnMetadata{
			{Name: "a", Type: model.TypeCategorical, NullCount: 3},
			{Name: "b", Type: model.TypeNumeric, Numeric: &model.NumericStats{OutliersCount: 2}},
		},
	})

	assert.Equal(t, 82, s.QualityScore)
	require.Len(t, s.Suggestions, 3)
	assert.Equal(t, model.SeverityWarning, s.Suggestions[0].Severity)
	assert.Equal(t, model.SeverityCritical, s.Suggestions[1].Severity)
	assert.Equal(t, "a", s.Suggestions[1].Column)
	assert.Equal(t, model.SeverityInfo, s.Suggestions[2].Severity)
	assert.Equal(t, "b", s.Suggestions[2].Column)
	assert.Equal(t, 20, s.RowCount)
	assert.Equal(t, 2, s.ColumnCount)
	assert.Equal(t, Version, s.PipelineVersion)
}

func TestGenerateSummary_ThresholdsAreStrict(t *testing.T) {
	// 2 of 20 nulls is exactly 10% and 1 of 20 outliers exactly 5%.
	s := GenerateSummary(SummaryInput{
		Dataset: emptyRows(20, "a", "b"),
		Columns: []model.ColumnMetadata{
			{Name: "a", Type: model.TypeCategorical, NullCount: 2},
			{Name: "b", Type: model.TypeNumeric, Numeric: &model.NumericStats{OutliersCount: 1}},
		},
	})
	assert.Equal(t, 100, s.QualityScore)
	assert.Empty(t, s.Suggestions)
	assert.NotNil(t, s.Suggestions)
	assert.NotNil(t, s.OperationHistory)
}

func TestGenerateSummary_ScoreClampsAtZero(t *testing.T) {
	var headers []string
	var cols []model.ColumnMetadata
	for i := 0; i < 25; i++ {
		name := fmt.Sprintf("c%d", i)
		headers = append(headers, name)
		cols = append(cols, model.ColumnMetadata{Name: name, Type: model.TypeUnknown, NullCount: 4})
	}
	s := GenerateSummary(SummaryInput{Dataset: emptyRows(4, headers...), Columns: cols, DuplicateCount: 3})
	assert.Equal(t, 0, s.QualityScore)
	assert.Len(t, s.Suggestions, 26)
}

func TestGenerateSummary_SampleAndHistory(t *testing.T) {
	ds := mustLoad(t, "n\n1\n2\n3\n4\n5\n6\n7\n")
	history := []model.OperationLog{NewOperationLog(ActionIngest, "r", "d")}
	s := GenerateSummary(SummaryInput{Dataset: ds, History: history})

	require.Len(t, s.SampleData, SampleSize)
	assert.Equal(t, ds.Rows[0]["n"], s.SampleData[0]["n"])
	require.Len(t, s.OperationHistory, 1)

	history[0].Action = "mutated"
	assert.Equal(t, ActionIngest, s.OperationHistory[0].Action)
}
