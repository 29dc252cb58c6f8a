package pool

import "reflect"

// identityKey derives a referential identity for a pooled instance. The idle
// store must never hold the same instance twice, and double-release detection
// compares identity, not equality, so elements are required to be reference
// values. The second result is false for nil references and for value kinds
// that carry no stable identity.
func identityKey(x any) (uintptr, bool) {
	v := reflect.ValueOf(x)
	if !v.IsValid() {
		return 0, false
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Chan, reflect.Func:
		if v.IsNil() {
			return 0, false
		}
		return v.Pointer(), true
	default:
		return 0, false
	}
}
