// Package enums holds the string enums persisted in the storefront tables.
package enums

import (
	"fmt"
	"slices"
)

// values is the ordered set of accepted values for one enum.
type values[T ~string] []T

func (v values[T]) has(x T) bool {
	return slices.Contains(v, x)
}

// parse matches raw exactly; callers normalize case first when they
// accept user input.
func (v values[T]) parse(kind, raw string) (T, error) {
	if x := T(raw); v.has(x) {
		return x, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q (allowed: %v)", kind, raw, []T(v))
}
