package core

import "unsafe"

// BytesOf reinterprets a slice of plain-old-data values as its raw bytes
// without copying. The result aliases s and must not outlive it.
func BytesOf[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

// ValueBytes is BytesOf for a single value.
func ValueBytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(unsafe.Sizeof(*v)))
}
