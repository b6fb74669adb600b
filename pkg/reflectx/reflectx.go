// Package reflectx contains the reflection helpers used by tool dispatch:
// identifying functions, deriving their names, and classifying parameter and
// result types without forcing callers to depend on the reflect package.
package reflectx

import (
	"reflect"
	"runtime"
	"strings"
)

// IsFunction reports whether fn is a non-nil function value.
func IsFunction(fn any) bool {
	if fn == nil {
		return false
	}
	return reflect.TypeOf(fn).Kind() == reflect.Func
}

// FunctionName derives a usable name for a function value. Named function
// types report their type name, everything else falls back to the runtime
// symbol with the package path stripped.
func FunctionName(fn any) string {
	if !IsFunction(fn) {
		return ""
	}

	val := reflect.ValueOf(fn)
	typ := val.Type()

	if typ.Name() != "" {
		return typ.String()
	}
	if rf := runtime.FuncForPC(val.Pointer()); rf != nil {
		name := rf.Name()
		if lastDot := strings.LastIndex(name, "."); lastDot >= 0 {
			name = strings.TrimSuffix(name[lastDot+1:], "-fm")
		}
		return name
	}
	return typ.String()
}

// IsRefinedType reports whether tpe is exactly the type R.
func IsRefinedType[R any](tpe reflect.Type) bool {
	return tpe == reflect.TypeFor[R]()
}

// ResultImplements reports whether the first return value of the function fn
// implements the interface R. It is how dispatch recognizes hand-off tools:
// any tool whose result is an actor transfers control instead of producing data.
func ResultImplements[R any](fn any) bool {
	if !IsFunction(fn) {
		return false
	}
	typ := reflect.TypeOf(fn)
	if typ.NumOut() == 0 {
		return false
	}
	iface := reflect.TypeFor[R]()
	if iface.Kind() != reflect.Interface {
		return false
	}
	return typ.Out(0).Implements(iface)
}
