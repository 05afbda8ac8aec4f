package pipeline

import (
	"strings"

	"github.com/zeebo/xxh3"

	"go-insight-pipeline/internal/model"
)

// Operation names recorded in the audit log.
const (
	ActionIngest      = "ingest"
	ActionDeduplicate = "deduplicate"
	ActionCastAndFill = "cast_and_fill"
	ActionClean       = "clean"
	ActionUndo        = "undo"
)

// MissingText replaces null text values during interactive cleaning.
const MissingText = "N/A"

const (
	fieldSep = '\x1f'
	kindSep  = '\x1e'
)

// ------------------- Deduplication -------------------

// Deduplicate drops every row whose canonical form has already been seen,
// keeping the first occurrence. It returns the new dataset and the number of
// rows removed.
//
// The canonical form walks the header list in order and tags each value with
// its kind, so Text "1" and Number 1 never collide. Rows are compared by a
// 128-bit xxh3 digest of that form.
func Deduplicate(ds model.Dataset) (model.Dataset, int) {
	seen := make(map[xxh3.Uint128]struct{}, len(ds.Rows))
	out := make([]model.Record, 0, len(ds.Rows))

	var b strings.Builder
	for _, rec := range ds.Rows {
		b.Reset()
		canonicalize(&b, ds.Headers, rec)
		h := xxh3.HashString128(b.String())
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, rec)
	}

	return model.Dataset{Headers: ds.Headers, Rows: out}, len(ds.Rows) - len(out)
}

func canonicalize(b *strings.Builder, headers []string, rec model.Record) {
	for _, h := range headers {
		v := rec[h]
		b.WriteByte(byte('0' + v.Kind))
		b.WriteByte(kindSep)
		b.WriteString(v.String())
		b.WriteByte(fieldSep)
	}
}

// ------------------- Cast and fill -------------------

// CastAndFill converts each value to its column's inferred type. Nulls stay
// null; values that fail to parse (which cannot happen for a column whose
// type came from DetectSchema on the same data) become null as well.
// Categorical and unknown columns are left unchanged.
func CastAndFill(ds model.Dataset, cols []model.ColumnMetadata) model.Dataset {
	types := columnTypes(cols)
	out := make([]model.Record, len(ds.Rows))
	for i, rec := range ds.Rows {
		next := make(model.Record, len(rec))
		for k, v := range rec {
			next[k] = castValue(v, types[k])
		}
		out[i] = next
	}
	return model.Dataset{Headers: ds.Headers, Rows: out}
}

func castValue(v model.Value, t model.ColumnType) model.Value {
	if v.IsNull() {
		return v
	}
	switch t {
	case model.TypeNumeric:
		if f, ok := parseNumber(v); ok {
			return model.Number(f)
		}
		return model.Null
	case model.TypeBoolean:
		b, _ := parseBool(v)
		return model.Bool(b)
	case model.TypeDate:
		if d, ok := parseDate(v); ok {
			return model.Date(isoDate(d))
		}
		return model.Null
	default:
		return v
	}
}

// ------------------- Interactive clean -------------------

// CleanInteractive is the on-demand remediation action. Numeric nulls become
// 0, boolean nulls become false, any other null becomes MissingText, and text
// values are trimmed. It is never run automatically.
func CleanInteractive(ds model.Dataset, cols []model.ColumnMetadata) model.Dataset {
	types := columnTypes(cols)
	out := make([]model.Record, len(ds.Rows))
	for i, rec := range ds.Rows {
		next := make(model.Record, len(ds.Headers))
		for _, h := range ds.Headers {
			v := rec[h]
			switch {
			case v.IsNull() && types[h] == model.TypeNumeric:
				v = model.Number(0)
			case v.IsNull() && types[h] == model.TypeBoolean:
				v = model.Bool(false)
			case v.IsNull():
				v = model.Text(MissingText)
			case v.Kind == model.KindText:
				v = model.Text(strings.TrimSpace(v.Str))
			}
			next[h] = v
		}
		out[i] = next
	}
	return model.Dataset{Headers: ds.Headers, Rows: out}
}

func columnTypes(cols []model.ColumnMetadata) map[string]model.ColumnType {
	types := make(map[string]model.ColumnType, len(cols))
	for _, c := range cols {
		types[c.Name] = c.Type
	}
	return types
}
