// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package utils

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}

// Deref returns the value p points to, or the zero value when p is nil.
func Deref[T any](p *T) T {
	if p != nil {
		return *p
	}
	var zero T
	return zero
}

// FirstNonEmpty returns the first value that is not the zero value.
func FirstNonEmpty[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}
