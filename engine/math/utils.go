package math

import "golang.org/x/exp/constraints"

// Clamp limits v to [low, high].
func Clamp[T constraints.Ordered](v, low, high T) T {
	return min(max(v, low), high)
}

// AlignUp rounds size up to a multiple of alignment, which must be zero or a
// power of two. Zero leaves size unchanged.
func AlignUp[T constraints.Unsigned](size, alignment T) T {
	if alignment == 0 {
		return size
	}
	return (size + alignment - 1) &^ (alignment - 1)
}
