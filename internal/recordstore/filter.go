package recordstore

import "strings"

// Predicate is a single equality condition on a record field.
type Predicate struct {
	Field string
	Value string
}

// Filter is a conjunction of equality predicates, rendered as
// field="value" && field="value" in the record service's filter syntax.
type Filter []Predicate

// Eq returns a single-predicate filter.
func Eq(field, value string) Filter {
	return Filter{{Field: field, Value: value}}
}

// And returns a new filter with an additional equality predicate.
func (f Filter) And(field, value string) Filter {
	out := make(Filter, len(f), len(f)+1)
	copy(out, f)
	return append(out, Predicate{Field: field, Value: value})
}

// String renders the filter. An empty filter renders as "".
func (f Filter) String() string {
	parts := make([]string, 0, len(f))
	for _, p := range f {
		parts = append(parts, p.Field+"="+quote(p.Value))
	}
	return strings.Join(parts, " && ")
}

func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `"` + v + `"`
}
