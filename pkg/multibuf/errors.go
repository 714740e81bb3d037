package multibuf

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	// ErrMalformedHeader indicates no 0x00 delimiter terminates the header.
	ErrMalformedHeader = errors.New("multibuf: malformed header")

	// ErrInvalidLengthToken indicates a header token is not a non-negative base-10 integer.
	ErrInvalidLengthToken = errors.New("multibuf: invalid length token")

	// ErrTruncatedPayload indicates the header claims more bytes than the buffer holds.
	ErrTruncatedPayload = errors.New("multibuf: truncated payload")

	// ErrOutOfBounds indicates a slice range outside the source buffer.
	ErrOutOfBounds = errors.New("multibuf: slice out of bounds")

	// ErrTrailingData indicates bytes left over after the last payload (strict mode).
	ErrTrailingData = errors.New("multibuf: trailing data after payload")

	// ErrTooManyBuffers indicates the header lists more buffers than the configured maximum.
	ErrTooManyBuffers = errors.New("multibuf: buffer count exceeds maximum")
)

// Stage names the decoding step that failed.
type Stage string

const (
	StageScan  Stage = "header scan"
	StageParse Stage = "length parse"
	StageSlice Stage = "slice"
)

// FormatError provides detailed information about a decoding error.
type FormatError struct {
	Stage  Stage  // Step that detected the problem
	Offset int    // Byte offset in the packed buffer
	Reason string // Human-readable explanation
	Err    error  // One of the sentinel errors above
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("multibuf: %s failed at offset %d: %s", e.Stage, e.Offset, e.Reason)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func formatErr(stage Stage, offset int, sentinel error, format string, args ...any) *FormatError {
	return &FormatError{
		Stage:  stage,
		Offset: offset,
		Reason: fmt.Sprintf(format, args...),
		Err:    sentinel,
	}
}
