// Package pipeline implements the pure data-shaping stages applied to entity
// collections before display: filter, search, sort, paginate. Every stage is
// a pure function of its inputs so stages compose in any order and can be
// tested in isolation.
package pipeline

import (
	"strings"
	"time"
)

// Accessor reads a named field from a record. Entity types provide this via
// their Field method.
type Accessor[T any] func(item T, field string) any

// DateRange is an inclusive [From, To] filter bound. A zero From or To leaves
// that side unbounded.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Filters maps field names to filter values. Value semantics:
//
//	[]string  → membership test; an empty slice matches everything
//	string    → case-insensitive substring match
//	bool      → exact match
//	int, int64, float64 → exact numeric match
//	DateRange → inclusive date-range test
//
// Active keys are AND-combined.
type Filters map[string]any

// Filter returns the records matching every active filter key.
func Filter[T any](items []T, filters Filters, field Accessor[T]) []T {
	if len(filters) == 0 {
		return items
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if matchesAll(item, filters, field) {
			out = append(out, item)
		}
	}
	return out
}

func matchesAll[T any](item T, filters Filters, field Accessor[T]) bool {
	for name, want := range filters {
		if !matches(field(item, name), want) {
			return false
		}
	}
	return true
}

func matches(have any, want any) bool {
	switch w := want.(type) {
	case []string:
		if len(w) == 0 {
			return true
		}
		s := stringValue(have)
		for _, candidate := range w {
			if s == candidate {
				return true
			}
		}
		return false
	case string:
		return strings.Contains(strings.ToLower(stringValue(have)), strings.ToLower(w))
	case bool:
		b, ok := have.(bool)
		return ok && b == w
	case int:
		return numericEqual(have, float64(w))
	case int64:
		return numericEqual(have, float64(w))
	case float64:
		return numericEqual(have, w)
	case DateRange:
		t, ok := timeValue(have)
		if !ok {
			return false
		}
		if !w.From.IsZero() && t.Before(w.From) {
			return false
		}
		if !w.To.IsZero() && t.After(w.To) {
			return false
		}
		return true
	default:
		return false
	}
}

// Search returns records where term appears (case-insensitively) in at least
// one of the listed fields. An empty term passes everything through.
func Search[T any](items []T, term string, fields []string, field Accessor[T]) []T {
	term = strings.TrimSpace(term)
	if term == "" || len(fields) == 0 {
		return items
	}
	needle := strings.ToLower(term)
	out := make([]T, 0, len(items))
	for _, item := range items {
		for _, name := range fields {
			if strings.Contains(strings.ToLower(stringValue(field(item, name))), needle) {
				out = append(out, item)
				break
			}
		}
	}
	return out
}
