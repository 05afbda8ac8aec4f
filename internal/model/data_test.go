package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_String(t *testing.T) {
	assert.Equal(t, "", Null.String())
	assert.Equal(t, "1.5", Number(1.5).String())
	assert.Equal(t, "3", Number(3).String())
	assert.Equal(t, "true", Bool(true).String())
	assert.Equal(t, "x", Text("x").String())
	assert.Equal(t, "2024-01-02", Date("2024-01-02").String())
	assert.Equal(t, "date", KindDate.String())
}

func TestValue_JSON(t *testing.T) {
	rec := Record{"n": Number(2), "b": Bool(false), "s": Text("a"), "d": Date("2024-01-02"), "z": Null}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2,"b":false,"s":"a","d":"2024-01-02","z":null}`, string(data))

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, Number(2), back["n"])
	assert.Equal(t, Bool(false), back["b"])
	// Dates decode as text until schema detection runs again.
	assert.Equal(t, Text("2024-01-02"), back["d"])
	assert.True(t, back["z"].IsNull())
}

func TestFromAny(t *testing.T) {
	assert.Equal(t, Number(4), FromAny(4))
	assert.Equal(t, Number(4), FromAny(int64(4)))
	assert.Equal(t, Number(1.5), FromAny(json.Number("1.5")))
	assert.Equal(t, Text("abc"), FromAny(json.Number("abc")))
	assert.Equal(t, Bool(true), FromAny(true))
	assert.Equal(t, Text("t"), FromAny("t"))
	assert.Equal(t, Null, FromAny(nil))
	assert.Equal(t, Null, FromAny([]int{1}))
	assert.Equal(t, Date("2024-01-02"), FromAny(Date("2024-01-02")))
}

func TestDataset_HeadAndColumn(t *testing.T) {
	ds := Dataset{
		Headers: []string{"a"},
		Rows:    []Record{{"a": Number(1)}, {}, {"a": Text("x")}},
	}
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, []Value{Number(1), Null, Text("x")}, ds.Column("a"))
	assert.Len(t, ds.Head(2), 2)
	assert.Len(t, ds.Head(10), 3)
}
