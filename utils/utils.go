// Package utils provides utility functions for the application.
package utils

// ToPtr returns a pointer to v, for filling optional model fields inline
func ToPtr[T any](v T) *T {
	return &v
}
