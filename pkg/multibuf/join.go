package multibuf

import "unsafe"

// Join copies buffers, in order, into one newly allocated buffer.
// Buffer i occupies the range starting at the summed length of buffers 0..i-1.
func Join(buffers ...[]byte) []byte {
	total := 0
	for _, b := range buffers {
		total += len(b)
	}

	out := make([]byte, total)
	offset := 0
	for _, b := range buffers {
		offset += copy(out[offset:], b)
	}
	return out
}

// Element is the set of fixed-size numeric types Bytes can view as raw bytes.
type Element interface {
	~uint8 | ~int8 | ~uint16 | ~int16 | ~uint32 | ~int32 | ~uint64 | ~int64 |
		~float32 | ~float64
}

// Bytes returns the raw bytes backing s, in the host's native byte order
// (binary.NativeEndian). The result aliases s; pass it to Pack or Join,
// which copy it, rather than keeping it around.
//
// Packed buffers do not record byte order, so a reader on a host with a
// different order sees swapped elements.
func Bytes[T Element](s []T) []byte {
	if len(s) == 0 {
		return []byte{}
	}
	var zero T
	size := len(s) * int(unsafe.Sizeof(zero))
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), size)
}
