// Package textcodec converts between Go strings and single-byte-per-character
// text. It is the text collaborator used by the multibuf header codec: every
// character maps to exactly one byte, so the byte length of an encoded string
// always equals its character count.
//
// Only the ASCII range is accepted. The ISO-8859-1 table from
// golang.org/x/text does the transcoding; anything outside 0x00-0x7F is
// rejected in both directions.
package textcodec

import (
	"errors"
	"fmt"

	"golang.org/x/text/encoding/charmap"
)

// ErrNotSingleByte indicates text that cannot be represented with one byte per character.
var ErrNotSingleByte = errors.New("textcodec: text is not single-byte ASCII")

// Encode returns the single-byte encoding of s.
func Encode(s string) ([]byte, error) {
	for i, r := range s {
		if r >= 0x80 {
			return nil, fmt.Errorf("%w: rune %q at byte %d", ErrNotSingleByte, r, i)
		}
	}
	b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSingleByte, err)
	}
	return b, nil
}

// Decode returns the text held in b, one character per byte.
func Decode(b []byte) (string, error) {
	for i, c := range b {
		if c >= 0x80 {
			return "", fmt.Errorf("%w: byte 0x%02x at offset %d", ErrNotSingleByte, c, i)
		}
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotSingleByte, err)
	}
	return string(s), nil
}
