package pipeline

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"go-insight-pipeline/internal/model"
)

// skewMargin is the fraction of stdDev by which mean and median must differ
// before a column is labelled skewed.
const skewMargin = 0.1

// AnalyzeColumns attaches descriptive statistics to each column. Numeric
// columns get NumericStats; categorical, boolean and date columns get
// CategoricalStats. The input slice is not modified.
func AnalyzeColumns(ds model.Dataset, cols []model.ColumnMetadata) []model.ColumnMetadata {
	out := make([]model.ColumnMetadata, len(cols))
	for i, c := range cols {
		values := ds.Column(c.Name)
		switch c.Type {
		case model.TypeNumeric:
			c.Numeric = ComputeNumericStats(numbers(values))
		case model.TypeCategorical, model.TypeBoolean, model.TypeDate:
			c.Categorical = ComputeCategoricalStats(values)
		}
		out[i] = c
	}
	return out
}

// ComputeNumericStats returns nil for an empty input.
//
// Quartiles are taken by index on the sorted values (sorted[n/4] and
// sorted[3n/4]); outliers fall outside [Q1-1.5*IQR, Q3+1.5*IQR]. stdDev is the
// population standard deviation.
func ComputeNumericStats(values []float64) *model.NumericStats {
	n := len(values)
	if n == 0 {
		return nil
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mean, stdDev := stat.PopMeanStdDev(sorted, nil)

	var median float64
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	} else {
		median = sorted[n/2]
	}

	q1 := sorted[int(float64(n)*0.25)]
	q3 := sorted[int(float64(n)*0.75)]
	iqr := q3 - q1
	lower, upper := q1-1.5*iqr, q3+1.5*iqr

	outliers := 0
	for _, v := range sorted {
		if v < lower || v > upper {
			outliers++
		}
	}

	return &model.NumericStats{
		Min:           sorted[0],
		Max:           sorted[n-1],
		Mean:          mean,
		Median:        median,
		StdDev:        stdDev,
		OutliersCount: outliers,
		Skewness:      skewLabel(mean, median, stdDev),
	}
}

func skewLabel(mean, median, stdDev float64) model.Skewness {
	margin := skewMargin * stdDev
	switch {
	case mean > median+margin:
		return model.SkewPositive
	case mean < median-margin:
		return model.SkewNegative
	default:
		return model.SkewNormal
	}
}

// ComputeCategoricalStats returns the mode of the non-null values, or nil if
// there are none. On a tie the first value to reach the maximum count wins,
// so the result depends on row order.
func ComputeCategoricalStats(values []model.Value) *model.CategoricalStats {
	counts := make(map[string]int)
	var top string
	topCount := 0
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		key := v.String()
		counts[key]++
		if counts[key] > topCount {
			top = key
			topCount = counts[key]
		}
	}
	if topCount == 0 {
		return nil
	}
	return &model.CategoricalStats{TopValue: top, TopValueCount: topCount}
}

// numbers extracts the numeric payloads of values, skipping everything else.
func numbers(values []model.Value) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if f, ok := parseNumber(v); ok {
			out = append(out, f)
		}
	}
	return out
}
