package reconciler

import (
	"math"
	"reflect"
)

// objectIs reports whether a and b are the same value. Maps, slices and
// funcs compare by reference; NaN equals itself.
func objectIs(a, b any) (same bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map, reflect.Func, reflect.Chan, reflect.Pointer, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Float32, reflect.Float64:
		fa, fb := va.Float(), vb.Float()
		if math.IsNaN(fa) && math.IsNaN(fb) {
			return true
		}
		return fa == fb
	}
	defer func() {
		// Structs holding maps or slices are not comparable.
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

func depsEqual(next, prev []any) bool {
	if prev == nil || next == nil || len(prev) != len(next) {
		return false
	}
	for i := range next {
		if !objectIs(next[i], prev[i]) {
			return false
		}
	}
	return true
}
