package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name   string   `json:"name"`
	Count  int      `json:"count"`
	Ratio  float64  `json:"ratio"`
	Tags   []string `json:"tags"`
	Hidden string   `json:"-"`
}

func TestEncodeDecode(t *testing.T) {
	m, err := Encode(sample{Name: "n", Count: 3, Ratio: 0.5, Tags: []string{"a"}, Hidden: "h"})
	require.NoError(t, err)

	assert.Equal(t, int64(3), m["count"])
	assert.Equal(t, 0.5, m["ratio"])
	assert.Equal(t, []any{"a"}, m["tags"])
	assert.NotContains(t, m, "Hidden")

	var out sample
	require.NoError(t, Decode(m, &out))
	assert.Equal(t, sample{Name: "n", Count: 3, Ratio: 0.5, Tags: []string{"a"}}, out)
}

func TestEvaluate_Operators(t *testing.T) {
	docs := []*Document{
		{Path: "c/1", ID: "1", Data: map[string]any{"n": int64(1), "tags": []any{"x", "y"}, "nested": map[string]any{"k": "v"}}},
		{Path: "c/2", ID: "2", Data: map[string]any{"n": 2.0, "tags": []any{"y"}}},
		{Path: "c/3", ID: "3", Data: map[string]any{"n": "3"}},
	}

	got := evaluate(Query{Collection: "c"}.Where("n", OpLess, int64(3)), docs)
	assert.Equal(t, []string{"1", "2"}, ids(got), "strings never compare with numbers")

	got = evaluate(Query{Collection: "c"}.Where("tags", OpArrayContains, "x"), docs)
	assert.Equal(t, []string{"1"}, ids(got))

	got = evaluate(Query{Collection: "c"}.Where("n", OpIn, []any{int64(2), "3"}), docs)
	assert.Equal(t, []string{"2", "3"}, ids(got))

	got = evaluate(Query{Collection: "c"}.Where("nested.k", OpEqual, "v"), docs)
	assert.Equal(t, []string{"1"}, ids(got))
}

func TestEvaluate_OrderTieBreakIsStable(t *testing.T) {
	docs := []*Document{
		{Path: "c/b", ID: "b", Data: map[string]any{"t": int64(5)}},
		{Path: "c/a", ID: "a", Data: map[string]any{"t": int64(5)}},
		{Path: "c/c", ID: "c", Data: map[string]any{"t": int64(1)}},
	}
	got := evaluate(Query{Collection: "c", OrderBy: "t", Desc: true}, docs)
	assert.Equal(t, []string{"b", "a", "c"}, ids(got))

	got = evaluate(Query{Collection: "c", OrderBy: "t"}, docs)
	assert.Equal(t, []string{"c", "a", "b"}, ids(got))
}
