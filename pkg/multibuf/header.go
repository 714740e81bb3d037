package multibuf

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/epithet-ssh/multibuf/pkg/textcodec"
)

// Header is the decoded length header of a packed buffer.
type Header struct {
	Lengths []int // Payload lengths, in packing order
	Size    int   // Header bytes including the delimiter
}

// Count returns the number of buffers the header lists.
func (h Header) Count() int {
	return len(h.Lengths)
}

// PayloadSize returns the sum of all payload lengths, saturating at
// math.MaxInt. Such a header can never be satisfied by a real buffer.
func (h Header) PayloadSize() int {
	total := 0
	for _, n := range h.Lengths {
		if n > math.MaxInt-total {
			return math.MaxInt
		}
		total += n
	}
	return total
}

// Complete reports whether a packed buffer of total bytes holds every
// payload the header lists. It walks the lengths against the bytes that
// remain, as Unpack does, so huge lengths cannot overflow.
func (h Header) Complete(total int) bool {
	remaining := total - h.Size
	if remaining < 0 {
		return false
	}
	for _, n := range h.Lengths {
		if n > remaining {
			return false
		}
		remaining -= n
	}
	return true
}

// EncodeHeader renders lengths as comma-separated decimal text followed by
// the delimiter. An empty list encodes to the delimiter alone.
//
// Lengths must be non-negative; a negative length panics.
//
// Example:
//
//	EncodeHeader([]int{3, 2}) // "3,2\x00"
func EncodeHeader(lengths []int) []byte {
	text := make([]byte, 0, HeaderSize(lengths))
	for i, n := range lengths {
		if n < 0 {
			panic(fmt.Sprintf("multibuf: negative length %d at index %d", n, i))
		}
		if i > 0 {
			text = append(text, ',')
		}
		text = strconv.AppendInt(text, int64(n), 10)
	}

	header, err := textcodec.Encode(string(text))
	if err != nil {
		// Digits and commas are always ASCII.
		panic(fmt.Sprintf("multibuf: encode header: %v", err))
	}
	return append(header, Delimiter)
}

// HeaderSize returns the encoded size of the header for lengths, delimiter included.
func HeaderSize(lengths []int) int {
	size := 1
	for i, n := range lengths {
		if i > 0 {
			size++
		}
		size += digits(n)
	}
	return size
}

func digits(n int) int {
	d := 1
	for n >= 10 {
		n /= 10
		d++
	}
	return d
}

// DecodeHeader parses the lengths held in buf[:delim]. buf[delim] must be
// the delimiter, normally the index returned by FindDelimiter.
//
// Empty header text decodes to an empty list: the header of zero packed
// buffers.
func DecodeHeader(buf []byte, delim int, opts ...Option) ([]int, error) {
	return decodeHeader(buf, delim, newConfig(opts))
}

// ParseHeader locates and decodes the header of a packed buffer without
// touching the payloads.
func ParseHeader(buf []byte, opts ...Option) (Header, error) {
	return parseHeader(buf, newConfig(opts))
}

func parseHeader(buf []byte, cfg *config) (Header, error) {
	delim := FindDelimiter(buf)
	if delim < 0 {
		return Header{}, formatErr(StageScan, len(buf), ErrMalformedHeader,
			"no 0x00 delimiter in %d bytes", len(buf))
	}

	lengths, err := decodeHeader(buf, delim, cfg)
	if err != nil {
		return Header{}, err
	}

	return Header{Lengths: lengths, Size: delim + 1}, nil
}

func decodeHeader(buf []byte, delim int, cfg *config) ([]int, error) {
	if delim < 0 || delim >= len(buf) || buf[delim] != Delimiter {
		return nil, formatErr(StageScan, delim, ErrMalformedHeader,
			"no delimiter at offset %d", delim)
	}

	text, err := textcodec.Decode(buf[:delim])
	if err != nil {
		return nil, formatErr(StageParse, 0, ErrInvalidLengthToken, "%v", err)
	}

	// strings.Split("", ",") yields one empty token, not zero.
	if text == "" {
		return []int{}, nil
	}

	count := strings.Count(text, ",") + 1
	if cfg.maxBuffers > 0 && count > cfg.maxBuffers {
		return nil, formatErr(StageParse, 0, ErrTooManyBuffers,
			"header lists %d buffers, maximum is %d", count, cfg.maxBuffers)
	}

	lengths := make([]int, 0, count)
	offset := 0
	for i, tok := range strings.Split(text, ",") {
		n, err := parseLength(tok, cfg.strict)
		if err != nil {
			return nil, formatErr(StageParse, offset, ErrInvalidLengthToken,
				"token %d (%q): %v", i, tok, err)
		}
		lengths = append(lengths, n)
		offset += len(tok) + 1
	}

	return lengths, nil
}

// parseLength accepts ASCII digits only: no sign, no whitespace, no base prefix.
func parseLength(tok string, strict bool) (int, error) {
	if tok == "" {
		return 0, errors.New("empty token")
	}
	for i := 0; i < len(tok); i++ {
		if c := tok[i]; c < '0' || c > '9' {
			return 0, fmt.Errorf("expected digit, got %q", rune(c))
		}
	}
	if strict && len(tok) > 1 && tok[0] == '0' {
		return 0, errors.New("leading zero")
	}

	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, errors.New("value out of range")
	}
	return n, nil
}
