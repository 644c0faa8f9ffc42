package utils

// Ptr returns a pointer to a copy of v, used for optional fields in patches.
func Ptr[T any](v T) *T {
	return &v
}
