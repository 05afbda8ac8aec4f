package model

import (
	"encoding/json"
	"strconv"
)

// Kind tags the payload carried by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindBool
	KindText
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindText:
		return "text"
	case KindDate:
		return "date"
	default:
		return "null"
	}
}

// Value is a single cell. Dates are carried as ISO text in Str.
type Value struct {
	Kind Kind
	Num  float64
	Bool bool
	Str  string
}

// Null is the zero Value.
var Null = Value{}

func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }
func Bool(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func Text(s string) Value    { return Value{Kind: KindText, Str: s} }
func Date(iso string) Value  { return Value{Kind: KindDate, Str: iso} }

// IsNull reports whether v carries no value.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// String renders the value the way it would appear in a delimited file.
// Null renders as the empty string.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindText, KindDate:
		return v.Str
	default:
		return ""
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		return json.Marshal(v.Num)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindText, KindDate:
		return json.Marshal(v.Str)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes plain JSON scalars. Strings come back as Text; the
// distinction between Text and Date is restored by schema detection.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// FromAny converts a loosely typed scalar (as produced by encoding/json or a
// spreadsheet reader) into a Value.
func FromAny(x interface{}) Value {
	switch t := x.(type) {
	case nil:
		return Null
	case Value:
		return t
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case bool:
		return Bool(t)
	case string:
		return Text(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return Number(f)
		}
		return Text(t.String())
	default:
		return Null
	}
}

// Record maps a field name to its value. Missing fields read as Null.
type Record map[string]Value

// Dataset is an ordered, rectangular table. Datasets are treated as immutable:
// every mutating operation returns a new Dataset.
type Dataset struct {
	Headers []string `json:"headers"`
	Rows    []Record `json:"rows"`
}

// Len returns the number of rows.
func (d Dataset) Len() int { return len(d.Rows) }

// Column returns every value of one column in row order.
func (d Dataset) Column(name string) []Value {
	out := make([]Value, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = r[name]
	}
	return out
}

// Head returns up to n rows without copying them.
func (d Dataset) Head(n int) []Record {
	if n > len(d.Rows) {
		n = len(d.Rows)
	}
	return d.Rows[:n]
}

// Snapshot is one immutable version of a job's working dataset.
type Snapshot struct {
	Version        int     `json:"version"`
	Dataset        Dataset `json:"dataset"`
	DuplicateCount int     `json:"duplicateCount"` // duplicates removed up to this version
}
