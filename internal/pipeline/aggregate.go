package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"go-insight-pipeline/internal/model"
)

const (
	// ChartRowLimit is how many leading rows a chart aggregates.
	ChartRowLimit = 500
	// ChartGroupLimit is how many groups a chart keeps after sorting.
	ChartGroupLimit = 10

	fallbackKPIs = 3
)

// ExecuteBlueprint renders a blueprint against the dataset.
//
// Each chart groups the first ChartRowLimit rows by the stringified category
// key, sums the numeric value key, sorts groups by value descending and keeps
// the top ChartGroupLimit. Each KPI shows its column's mean with one decimal.
func ExecuteBlueprint(ds model.Dataset, cols []model.ColumnMetadata, bp model.Blueprint) *model.Dashboard {
	dash := &model.Dashboard{
		KPIs:   make([]model.KPI, 0, len(bp.KPIs)),
		Charts: make([]model.Chart, 0, len(bp.Charts)),
	}

	for _, k := range bp.KPIs {
		dash.KPIs = append(dash.KPIs, model.KPI{
			Label: k.Label,
			Value: fmt.Sprintf("%.1f", columnMean(ds, cols, k.Column)),
		})
	}

	for _, c := range bp.Charts {
		dash.Charts = append(dash.Charts, model.Chart{
			Type:  c.Type,
			Title: c.Title,
			Data:  groupAndSum(ds.Head(ChartRowLimit), c.XKey, c.YKey),
		})
	}
	return dash
}

// groupAndSum is group -> aggregate -> sort -> limit over a row slice.
// Groups keep first-seen order on equal sums.
func groupAndSum(rows []model.Record, xKey, yKey string) []model.ChartPoint {
	sums := make(map[string]float64)
	var order []string
	for _, r := range rows {
		key := r[xKey].String()
		if _, ok := sums[key]; !ok {
			order = append(order, key)
		}
		f, _ := parseNumber(r[yKey])
		sums[key] += f
	}

	points := make([]model.ChartPoint, 0, len(order))
	for _, key := range order {
		points = append(points, model.ChartPoint{Segment: key, Value: sums[key]})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Value > points[j].Value
	})
	if len(points) > ChartGroupLimit {
		points = points[:ChartGroupLimit]
	}
	return points
}

// columnMean prefers the precomputed stats and falls back to a scan when the
// column was never analyzed as numeric.
func columnMean(ds model.Dataset, cols []model.ColumnMetadata, name string) float64 {
	for _, c := range cols {
		if c.Name == name && c.Numeric != nil {
			return c.Numeric.Mean
		}
	}
	vals := numbers(ds.Column(name))
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// FallbackBlueprint is the rule-based blueprint used when no external one is
// available: the first three numeric columns become KPIs, and each of the
// first two categorical columns is charted against the first numeric column.
func FallbackBlueprint(cols []model.ColumnMetadata) model.Blueprint {
	var numeric, categorical []string
	for _, c := range cols {
		switch c.Type {
		case model.TypeNumeric:
			numeric = append(numeric, c.Name)
		case model.TypeCategorical:
			categorical = append(categorical, c.Name)
		}
	}

	bp := model.Blueprint{
		KPIs:   []model.KPIRef{},
		Charts: []model.ChartSpec{},
	}
	for i, name := range numeric {
		if i == fallbackKPIs {
			break
		}
		bp.KPIs = append(bp.KPIs, model.KPIRef{Label: "Avg " + humanize(name), Column: name})
	}

	if len(numeric) == 0 {
		return bp
	}
	for i, cat := range categorical {
		if i == 2 {
			break
		}
		bp.Charts = append(bp.Charts, model.ChartSpec{
			Type:  "bar",
			Title: fmt.Sprintf("%s by %s", humanize(numeric[0]), humanize(cat)),
			XKey:  cat,
			YKey:  numeric[0],
		})
	}
	return bp
}

func humanize(column string) string {
	s := strings.NewReplacer("_", " ", "-", " ").Replace(column)
	// Casers carry state, so each call gets its own.
	return cases.Title(language.English).String(strings.TrimSpace(s))
}
