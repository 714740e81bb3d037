package multibuf

// Pack combines buffers into one packed buffer: the length header followed
// by every buffer's bytes, in order.
//
// The inputs are neither modified nor retained. Packing the same buffers
// always produces the same bytes.
//
// Example:
//
//	Pack([]byte{1, 2, 3}, []byte{4, 5}) // "3,2\x00\x01\x02\x03\x04\x05"
func Pack(buffers ...[]byte) []byte {
	lengths := make([]int, len(buffers))
	for i, b := range buffers {
		lengths[i] = len(b)
	}

	parts := make([][]byte, 0, len(buffers)+1)
	parts = append(parts, EncodeHeader(lengths))
	parts = append(parts, buffers...)
	return Join(parts...)
}

// Unpack splits a packed buffer back into the buffers given to Pack, in
// the same order. Each returned buffer is a fresh copy.
//
// Errors are *FormatError values wrapping ErrMalformedHeader,
// ErrInvalidLengthToken, ErrTooManyBuffers, ErrTruncatedPayload or, in
// strict mode, ErrTrailingData.
func Unpack(buf []byte, opts ...Option) ([][]byte, error) {
	cfg := newConfig(opts)

	h, err := parseHeader(buf, cfg)
	if err != nil {
		return nil, err
	}

	out := make([][]byte, 0, len(h.Lengths))
	cursor := h.Size
	for i, n := range h.Lengths {
		// Compare against what remains so cursor+n cannot overflow.
		if remaining := len(buf) - cursor; n > remaining {
			return nil, formatErr(StageSlice, cursor, ErrTruncatedPayload,
				"buffer %d needs %d bytes, %d remain", i, n, remaining)
		}

		b, err := Slice(buf, cursor, cursor+n)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
		cursor += n
	}

	if cfg.strict && cursor != len(buf) {
		return nil, formatErr(StageSlice, cursor, ErrTrailingData,
			"%d bytes after last payload", len(buf)-cursor)
	}

	return out, nil
}
