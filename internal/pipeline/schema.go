package pipeline

import (
	"math"
	"strconv"
	"strings"
	"time"

	"go-insight-pipeline/internal/model"
)

// DetectSchema infers a type per column together with null and unique
// counts. Classification only looks at non-null values and follows a fixed
// priority: numeric, boolean, date, categorical. A column with no non-null
// values is unknown.
func DetectSchema(ds model.Dataset) []model.ColumnMetadata {
	cols := make([]model.ColumnMetadata, 0, len(ds.Headers))
	for _, h := range ds.Headers {
		cols = append(cols, detectColumn(h, ds.Column(h)))
	}
	return cols
}

func detectColumn(name string, values []model.Value) model.ColumnMetadata {
	meta := model.ColumnMetadata{Name: name}

	seen := make(map[model.Value]struct{})
	nonNull := make([]model.Value, 0, len(values))
	for _, v := range values {
		if v.IsNull() {
			meta.NullCount++
			continue
		}
		nonNull = append(nonNull, v)
		seen[v] = struct{}{}
	}
	meta.UniqueCount = len(seen)
	meta.Type = classify(nonNull)
	return meta
}

func classify(values []model.Value) model.ColumnType {
	if len(values) == 0 {
		return model.TypeUnknown
	}

	allNum, allBool, allDate := true, true, true
	for _, v := range values {
		if allNum {
			if _, ok := parseNumber(v); !ok {
				allNum = false
			}
		}
		if allBool {
			if _, ok := parseBool(v); !ok {
				allBool = false
			}
		}
		if allDate {
			if _, ok := parseDate(v); !ok {
				allDate = false
			}
		}
		if !allNum && !allBool && !allDate {
			break
		}
	}

	switch {
	case allNum:
		return model.TypeNumeric
	case allBool:
		return model.TypeBoolean
	case allDate:
		return model.TypeDate
	default:
		return model.TypeCategorical
	}
}

// ------------------- Value parsers -------------------

func parseNumber(v model.Value) (float64, bool) {
	switch v.Kind {
	case model.KindNumber:
		return v.Num, true
	case model.KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// boolWords is the boolean vocabulary; the value is the decoded truth value.
var boolWords = map[string]bool{
	"true":  true,
	"false": false,
	"1":     true,
	"0":     false,
	"yes":   true,
	"no":    false,
}

func parseBool(v model.Value) (bool, bool) {
	switch v.Kind {
	case model.KindBool:
		return v.Bool, true
	case model.KindText:
		b, ok := boolWords[strings.ToLower(strings.TrimSpace(v.Str))]
		return b, ok
	case model.KindNumber:
		switch v.Num {
		case 1:
			return true, true
		case 0:
			return false, true
		}
	}
	return false, false
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02-Jan-2006",
}

func parseDate(v model.Value) (time.Time, bool) {
	switch v.Kind {
	case model.KindDate, model.KindText:
		s := strings.TrimSpace(v.Str)
		for _, lay := range dateLayouts {
			if t, err := time.Parse(lay, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// isoDate renders a parsed date in canonical form: a plain calendar date when
// there is no clock component, RFC 3339 otherwise.
func isoDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.UTC().Format(time.RFC3339)
}
