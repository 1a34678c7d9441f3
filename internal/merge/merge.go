// Package merge provides deep clone and deep merge over map[string]any trees.
// These are the foundational data operations for machine context handling:
// context values are cloned whenever they cross the engine boundary and
// patched via Merge when actions produce partial updates.
package merge

import "time"

// Clone returns a deep copy of m. Nested map[string]any values and []any
// slices are copied recursively; all other values (including time.Time,
// which is treated as atomic) are copied by assignment.
func Clone(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return Clone(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Merge applies patch onto dst and returns the merged result. dst is not
// mutated. Nested map[string]any values merge key-by-key recursively;
// slices, scalars, and atomic values such as time.Time replace wholesale.
// A nil patch returns a clone of dst.
func Merge(dst, patch map[string]any) map[string]any {
	out := Clone(dst)
	if out == nil {
		out = make(map[string]any, len(patch))
	}
	for k, pv := range patch {
		out[k] = mergeValue(out[k], pv)
	}
	return out
}

func mergeValue(old, patch any) any {
	// time.Time is a struct of fields but semantically a scalar; never
	// merged field-by-field.
	if _, ok := patch.(time.Time); ok {
		return patch
	}
	pm, pok := patch.(map[string]any)
	om, ook := old.(map[string]any)
	if pok && ook {
		return Merge(om, pm)
	}
	return cloneValue(patch)
}

// Equal reports deep equality of two context trees. Slices compare
// element-wise, maps key-wise; scalars compare with ==.
func Equal(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !equalValue(av, bv) {
			return false
		}
	}
	return true
}

func equalValue(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		return ok && Equal(av, bv)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equalValue(av[i], bv[i]) {
				return false
			}
		}
		return true
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	default:
		return a == b
	}
}
