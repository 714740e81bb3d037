package multibuf

import "bytes"

// Delimiter is the byte that terminates the length header.
const Delimiter byte = 0x00

// FindDelimiter returns the index of the first Delimiter byte in buf, or -1
// if there is none. Delimiter bytes inside the payload section are never
// reached because the header cannot contain one.
func FindDelimiter(buf []byte) int {
	return bytes.IndexByte(buf, Delimiter)
}
