package pipeline

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"go-insight-pipeline/internal/model"
)

const (
	// MinRootCauseRows is the smallest sample the variance decomposition runs on.
	MinRootCauseRows = 10
	// MaxContributors bounds the ranked contributor list.
	MaxContributors = 6
	// maxDimensionCardinality excludes id-like columns from the decomposition.
	maxDimensionCardinality = 50

	rootCauseMethod = "period_over_period_variance"
	missingCategory = "(missing)"
)

// AnalyzeRootCause decomposes the change of a KPI between the first and
// second half of the rows into per-category contributions.
//
// The KPI is the first numeric column. Rows are split by position, so the
// caller is responsible for ordering them meaningfully (usually by time);
// that ordering is not checked here. Returns nil when there are fewer than
// MinRootCauseRows rows or no numeric column.
func AnalyzeRootCause(ds model.Dataset, cols []model.ColumnMetadata) *model.RootCauseSummary {
	n := ds.Len()
	if n < MinRootCauseRows {
		return nil
	}

	kpi := ""
	var dims []string
	for _, c := range cols {
		switch {
		case c.Type == model.TypeNumeric && kpi == "":
			kpi = c.Name
		case c.Type == model.TypeCategorical && c.UniqueCount > 1 && c.UniqueCount < maxDimensionCardinality:
			dims = append(dims, c.Name)
		}
	}
	if kpi == "" {
		return nil
	}

	mid := n / 2
	baseline, current := ds.Rows[:mid], ds.Rows[mid:]

	baseSum := floats.Sum(kpiValues(baseline, kpi))
	curSum := floats.Sum(kpiValues(current, kpi))
	totalDelta := curSum - baseSum

	totalPct := 0.0
	if baseSum != 0 {
		totalPct = totalDelta / baseSum * 100
	}

	var contributors []model.Contributor
	for _, dim := range dims {
		contributors = append(contributors, dimensionContributors(dim, kpi, baseline, current, totalDelta)...)
	}

	sort.SliceStable(contributors, func(i, j int) bool {
		return math.Abs(contributors[i].AbsoluteImpact) > math.Abs(contributors[j].AbsoluteImpact)
	})
	if len(contributors) > MaxContributors {
		contributors = contributors[:MaxContributors]
	}

	return &model.RootCauseSummary{
		KPIName:         kpi,
		TotalDelta:      totalDelta,
		TotalDeltaPct:   totalPct,
		TopContributors: contributors,
		ConfidenceScore: math.Min(95, float64(n)/10+70),
		AnalysisMethod:  rootCauseMethod,
	}
}

// dimensionContributors returns one contributor per category of dim, in
// first-seen order. Their impacts add up to the dimension's total delta.
func dimensionContributors(dim, kpi string, baseline, current []model.Record, totalDelta float64) []model.Contributor {
	var order []string
	base := make(map[string]float64)
	cur := make(map[string]float64)

	bucket := func(rows []model.Record, into map[string]float64) {
		for _, r := range rows {
			key := missingCategory
			if v := r[dim]; !v.IsNull() {
				key = v.String()
			}
			if _, ok := base[key]; !ok {
				if _, ok := cur[key]; !ok {
					order = append(order, key)
				}
			}
			f, _ := parseNumber(r[kpi])
			into[key] += f
		}
	}
	bucket(baseline, base)
	bucket(current, cur)

	out := make([]model.Contributor, 0, len(order))
	for _, key := range order {
		delta := cur[key] - base[key]
		pct := 0.0
		if totalDelta != 0 {
			pct = delta / math.Abs(totalDelta) * 100
		}
		dir := model.DirectionIncrease
		if delta < 0 {
			dir = model.DirectionDecrease
		}
		out = append(out, model.Contributor{
			Factor:                 key,
			Dimension:              dim,
			AbsoluteImpact:         delta,
			ContributionPercentage: pct,
			Direction:              dir,
		})
	}
	return out
}

func kpiValues(rows []model.Record, kpi string) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		if f, ok := parseNumber(r[kpi]); ok {
			out = append(out, f)
		}
	}
	return out
}
