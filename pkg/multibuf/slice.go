package multibuf

// Slice returns a copy of buf[start:end]. The result never shares memory
// with buf, and an empty range yields a non-nil empty buffer.
//
// A range outside buf returns a *FormatError wrapping ErrOutOfBounds.
func Slice(buf []byte, start, end int) ([]byte, error) {
	if start < 0 || end < start || end > len(buf) {
		return nil, formatErr(StageSlice, start, ErrOutOfBounds,
			"range [%d, %d) outside buffer of %d bytes", start, end, len(buf))
	}

	out := make([]byte, end-start)
	copy(out, buf[start:end])
	return out, nil
}
