package docstore

import (
	"sort"
	"strings"
)

// evaluate applies q to an unordered document set. Backends without a native
// query engine (memory, SQL) share it so that they order and filter identically.
func evaluate(q Query, docs []*Document) []*Document {
	out := make([]*Document, 0, len(docs))
	for _, d := range docs {
		if matchesAll(d.Data, q.Filters) {
			out = append(out, d)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if q.OrderBy != "" {
			c := compareValues(lookup(out[i].Data, q.OrderBy), lookup(out[j].Data, q.OrderBy))
			if c != 0 {
				if q.Desc {
					return c > 0
				}
				return c < 0
			}
		}
		if q.Desc {
			return out[i].Path > out[j].Path
		}
		return out[i].Path < out[j].Path
	})

	if q.OrderBy != "" && q.StartAfter != nil {
		start := 0
		for start < len(out) {
			c := compareValues(lookup(out[start].Data, q.OrderBy), q.StartAfter)
			if (q.Desc && c < 0) || (!q.Desc && c > 0) {
				break
			}
			start++
		}
		out = out[start:]
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func matchesAll(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !matches(lookup(data, f.Field), f) {
			return false
		}
	}
	return true
}

func matches(v any, f Filter) bool {
	want := cloneValue(f.Value)
	switch f.Op {
	case OpEqual:
		return sameRank(v, want) && compareValues(v, want) == 0
	case OpLess:
		return sameRank(v, want) && compareValues(v, want) < 0
	case OpLessEqual:
		return sameRank(v, want) && compareValues(v, want) <= 0
	case OpGreater:
		return sameRank(v, want) && compareValues(v, want) > 0
	case OpGreaterEqual:
		return sameRank(v, want) && compareValues(v, want) >= 0
	case OpArrayContains:
		arr, ok := cloneValue(v).([]any)
		if !ok {
			return false
		}
		for _, e := range arr {
			if sameRank(e, want) && compareValues(e, want) == 0 {
				return true
			}
		}
		return false
	case OpIn:
		arr, ok := want.([]any)
		if !ok {
			return false
		}
		for _, e := range arr {
			if sameRank(v, e) && compareValues(v, e) == 0 {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func lookup(data map[string]any, field string) any {
	var cur any = data
	for _, part := range strings.Split(field, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

// rank orders values of different types: null < bool < number < string < other.
func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int, int32, int64, float32, float64, uint, uint32, uint64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}

func sameRank(a, b any) bool {
	return rank(a) == rank(b)
}

func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case string:
		return strings.Compare(av, b.(string))
	case nil:
		return 0
	}
	if ra == 2 {
		af, bf := toFloat(a), toFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return 0
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
