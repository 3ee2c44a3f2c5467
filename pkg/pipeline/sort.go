package pipeline

import (
	"fmt"
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// collator is shared by all sorts; collate.New is too expensive per call.
var collator = collate.New(language.English, collate.Loose)

// SortState tracks the active sort column and direction.
type SortState struct {
	Field      string
	Descending bool
}

// Toggle flips direction when field is already active and resets to ascending
// when a new field is selected.
func (s *SortState) Toggle(field string) {
	if s.Field == field {
		s.Descending = !s.Descending
		return
	}
	s.Field = field
	s.Descending = false
}

// Sort returns a sorted copy of items. Records with a nil (or missing) sort
// field always sort last, regardless of direction. Strings compare with
// locale-aware collation; times and numbers compare by value.
func Sort[T any](items []T, state SortState, field Accessor[T]) []T {
	if state.Field == "" {
		return items
	}
	out := make([]T, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		a := field(out[i], state.Field)
		b := field(out[j], state.Field)
		an, bn := isNil(a), isNil(b)
		if an || bn {
			// nil sorts last in both directions
			return !an && bn
		}
		less, ok := compareValues(a, b)
		if !ok {
			return false
		}
		if state.Descending {
			return !less && !equalValues(a, b)
		}
		return less
	})
	return out
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	if t, ok := timeValue(v); ok {
		return t.IsZero()
	}
	return false
}

func compareValues(a, b any) (less bool, ok bool) {
	if at, aok := timeValue(a); aok {
		if bt, bok := timeValue(b); bok {
			return at.Before(bt), true
		}
	}
	if af, aok := numericValue(a); aok {
		if bf, bok := numericValue(b); bok {
			return af < bf, true
		}
	}
	return collator.CompareString(stringValue(a), stringValue(b)) < 0, true
}

func equalValues(a, b any) bool {
	if at, aok := timeValue(a); aok {
		if bt, bok := timeValue(b); bok {
			return at.Equal(bt)
		}
	}
	if af, aok := numericValue(a); aok {
		if bf, bok := numericValue(b); bok {
			return af == bf
		}
	}
	return collator.CompareString(stringValue(a), stringValue(b)) == 0
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func numericEqual(have any, want float64) bool {
	f, ok := numericValue(have)
	return ok && f == want
}

func timeValue(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	default:
		return time.Time{}, false
	}
}
