package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-insight-pipeline/internal/model"
)

func salesRows(t *testing.T, rows [][2]interface{}) model.Dataset {
	t.Helper()
	ds := model.Dataset{Headers: []string{"sales", "region"}}
	for _, r := range rows {
		rec := model.Record{"sales": model.FromAny(r[0]), "region": model.FromAny(r[1])}
		ds.Rows = append(ds.Rows, rec)
	}
	return ds
}

func analyzed(ds model.Dataset) []model.ColumnMetadata {
	return AnalyzeColumns(ds, DetectSchema(ds))
}

// Scenario C.
func TestAnalyzeRootCause_PeriodOverPeriod(t *testing.T) {
	ds := salesRows(t, [][2]interface{}{
		{10.0, "east"}, {30.0, "east"}, {20.0, "west"}, {20.0, "west"}, {20.0, "east"},
		{40.0, "east"}, {40.0, "east"}, {30.0, "west"}, {20.0, "west"}, {20.0, "east"},
	})

	rc := AnalyzeRootCause(ds, analyzed(ds))
	require.NotNil(t, rc)
	assert.Equal(t, "sales", rc.KPIName)
	assert.InDelta(t, 50.0, rc.TotalDelta, 1e-9)
	assert.InDelta(t, 50.0, rc.TotalDeltaPct, 1e-9)
	assert.Equal(t, "period_over_period_variance", rc.AnalysisMethod)
	assert.InDelta(t, 71.0, rc.ConfidenceScore, 1e-9)

	require.Len(t, rc.TopContributors, 2)
	east, west := rc.TopContributors[0], rc.TopContributors[1]
	assert.Equal(t, "east", east.Factor)
	assert.Equal(t, "region", east.Dimension)
	assert.InDelta(t, 40.0, east.AbsoluteImpact, 1e-9)
	assert.InDelta(t, 80.0, east.ContributionPercentage, 1e-9)
	assert.Equal(t, model.DirectionIncrease, east.Direction)
	assert.InDelta(t, 10.0, west.AbsoluteImpact, 1e-9)
}

func TestAnalyzeRootCause_ContributionsReconcile(t *testing.T) {
	ds := salesRows(t, [][2]interface{}{
		{5.0, "a"}, {7.0, "b"}, {nil, "c"}, {9.0, nil}, {1.0, "a"}, {3.0, "b"},
		{2.0, "a"}, {8.0, "c"}, {4.0, nil}, {6.0, "b"}, {11.0, "d"}, {0.0, "a"},
	})

	rc := AnalyzeRootCause(ds, analyzed(ds))
	require.NotNil(t, rc)

	sum := 0.0
	for _, c := range rc.TopContributors {
		sum += c.AbsoluteImpact
	}
	// Five categories including "(missing)", all within the contributor cap.
	require.Len(t, rc.TopContributors, 5)
	assert.InDelta(t, rc.TotalDelta, sum, 1e-9)

	factors := map[string]bool{}
	for _, c := range rc.TopContributors {
		factors[c.Factor] = true
	}
	assert.True(t, factors["(missing)"])
}

func TestAnalyzeRootCause_Guards(t *testing.T) {
	small := salesRows(t, [][2]interface{}{{1.0, "a"}, {2.0, "b"}})
	assert.Nil(t, AnalyzeRootCause(small, analyzed(small)))

	var rows [][2]interface{}
	for i := 0; i < 12; i++ {
		rows = append(rows, [2]interface{}{"n/a", "x"})
	}
	noKPI := salesRows(t, rows)
	assert.Nil(t, AnalyzeRootCause(noKPI, analyzed(noKPI)))
}

func TestAnalyzeRootCause_ZeroBaseline(t *testing.T) {
	var rows [][2]interface{}
	for i := 0; i < 5; i++ {
		rows = append(rows, [2]interface{}{0.0, "a"})
	}
	for i := 0; i < 5; i++ {
		rows = append(rows, [2]interface{}{2.0, "b"})
	}
	ds := salesRows(t, rows)
	rc := AnalyzeRootCause(ds, analyzed(ds))
	require.NotNil(t, rc)
	assert.Zero(t, rc.TotalDeltaPct)
	assert.InDelta(t, 10.0, rc.TotalDelta, 1e-9)
}

func TestAnalyzeRootCause_CapsContributors(t *testing.T) {
	var rows [][2]interface{}
	for i := 0; i < 20; i++ {
		rows = append(rows, [2]interface{}{float64(i), string(rune('a' + i%10))})
	}
	ds := salesRows(t, rows)
	rc := AnalyzeRootCause(ds, analyzed(ds))
	require.NotNil(t, rc)
	require.Len(t, rc.TopContributors, MaxContributors)
	for i := 1; i < len(rc.TopContributors); i++ {
		assert.GreaterOrEqual(t, abs(rc.TopContributors[i-1].AbsoluteImpact), abs(rc.TopContributors[i].AbsoluteImpact))
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
