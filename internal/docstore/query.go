package docstore

import (
	"fmt"
	"sort"
	"strings"
)

func matches(doc *Document, filters []Filter) bool {
	for _, f := range filters {
		want, err := normalize(f.Value)
		if err != nil {
			return false
		}
		if !equalValues(doc.Data[f.Field], want) {
			return false
		}
	}
	return true
}

// compareDocs orders two documents by the query's sort key, breaking ties on id.
func compareDocs(a, b *Document, q Query) int {
	c := 0
	if q.OrderBy == "" || q.OrderBy == FieldCreatedAt {
		c = a.CreateTime.Compare(b.CreateTime)
	} else {
		c = compareValues(a.Data[q.OrderBy], b.Data[q.OrderBy])
	}
	if c == 0 {
		c = strings.Compare(a.ID, b.ID)
	}
	if q.Direction == Desc {
		c = -c
	}
	return c
}

// compareValues orders JSON values: nil < bool < number < string < other.
func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case string:
		return strings.Compare(x, b.(string))
	case nil:
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	}
	return 4
}

// runQuery evaluates q against an unordered candidate set.
func runQuery(candidates []*Document, q Query) []*Document {
	out := make([]*Document, 0, len(candidates))
	for _, d := range candidates {
		if matches(d, q.Filters) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return compareDocs(out[i], out[j], q) < 0 })
	if q.StartAfter != nil {
		i := sort.Search(len(out), func(i int) bool { return compareDocs(out[i], q.StartAfter, q) > 0 })
		out = out[i:]
	}
	if q.StartAt != nil {
		i := sort.Search(len(out), func(i int) bool { return compareDocs(out[i], q.StartAt, q) >= 0 })
		out = out[i:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// fingerprint identifies a snapshot so unchanged re-evaluations are not redelivered.
func fingerprint(docs []*Document) string {
	var b strings.Builder
	for _, d := range docs {
		fmt.Fprintf(&b, "%s@%d:%d;", d.ID, d.Version, d.UpdateTime.UnixNano())
	}
	return b.String()
}
