package multibuf

import (
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeHeader(t *testing.T) {
	tests := []struct {
		name    string
		lengths []int
		want    string
	}{
		{"no buffers", []int{}, "\x00"},
		{"nil list", nil, "\x00"},
		{"single empty", []int{0}, "0\x00"},
		{"two", []int{3, 2}, "3,2\x00"},
		{"multi-digit", []int{10, 0, 65536}, "10,0,65536\x00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeHeader(tt.lengths)
			assert.Equal(t, tt.want, string(got))
			assert.Equal(t, len(got), HeaderSize(tt.lengths))
		})
	}
}

func TestEncodeHeader_NegativePanics(t *testing.T) {
	assert.Panics(t, func() {
		EncodeHeader([]int{1, -1})
	})
}

func TestDecodeHeader(t *testing.T) {
	buf := []byte("3,2\x00abcde")
	lengths, err := DecodeHeader(buf, FindDelimiter(buf))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, lengths)
}

func TestDecodeHeader_EmptyTextIsEmptyList(t *testing.T) {
	lengths, err := DecodeHeader([]byte{0x00}, 0)
	require.NoError(t, err)
	require.NotNil(t, lengths)
	assert.Empty(t, lengths)
}

func TestDecodeHeader_BadDelimiterIndex(t *testing.T) {
	buf := []byte("3\x00abc")
	for _, delim := range []int{-1, 0, 5, 100} {
		_, err := DecodeHeader(buf, delim)
		assert.ErrorIs(t, err, ErrMalformedHeader, "delim %d", delim)
	}
}

func TestDecodeHeader_TokenOffset(t *testing.T) {
	buf := []byte("12,7,x9\x00")
	_, err := DecodeHeader(buf, FindDelimiter(buf))
	require.ErrorIs(t, err, ErrInvalidLengthToken)

	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, StageParse, fe.Stage)
	assert.Equal(t, 5, fe.Offset)
	assert.Contains(t, fe.Reason, `token 2 ("x9")`)
}

func TestEncodeDecodeHeader_RoundTrip(t *testing.T) {
	lengths := []int{0, 1, 9, 10, 99, 100, 123456789}
	buf := EncodeHeader(lengths)

	got, err := DecodeHeader(buf, FindDelimiter(buf), Strict())
	require.NoError(t, err)
	assert.Equal(t, lengths, got)
}

func TestParseHeader(t *testing.T) {
	packed := Pack([]byte("abc"), []byte{}, []byte("de"))

	h, err := ParseHeader(packed)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 0, 2}, h.Lengths)
	assert.Equal(t, len("3,0,2\x00"), h.Size)
	assert.Equal(t, 3, h.Count())
	assert.Equal(t, 5, h.PayloadSize())
	assert.Equal(t, len(packed), h.Size+h.PayloadSize())
}

func TestParseHeader_NoDelimiter(t *testing.T) {
	_, err := ParseHeader([]byte("123"))
	require.ErrorIs(t, err, ErrMalformedHeader)
	assert.Contains(t, err.Error(), "header scan failed at offset 3")
}

func TestFindDelimiter(t *testing.T) {
	assert.Equal(t, -1, FindDelimiter(nil))
	assert.Equal(t, -1, FindDelimiter([]byte("1,2,3")))
	assert.Equal(t, 0, FindDelimiter([]byte{0x00}))
	// First delimiter wins even when payload bytes repeat it
	assert.Equal(t, 3, FindDelimiter([]byte("1,1\x00\x00\x00")))
}

func TestHeader_PayloadSizeSaturates(t *testing.T) {
	h := Header{Lengths: []int{math.MaxInt, math.MaxInt}, Size: 10}
	assert.Equal(t, math.MaxInt, h.PayloadSize())

	h = Header{Lengths: []int{math.MaxInt - 1, 1}, Size: 10}
	assert.Equal(t, math.MaxInt, h.PayloadSize())
}

func TestHeader_Complete(t *testing.T) {
	packed := Pack([]byte("abc"), []byte("de"))
	h, err := ParseHeader(packed)
	require.NoError(t, err)

	assert.True(t, h.Complete(len(packed)))
	assert.True(t, h.Complete(len(packed)+3))
	assert.False(t, h.Complete(len(packed)-1))
	assert.False(t, h.Complete(h.Size-1))

	empty, err := ParseHeader([]byte{0x00})
	require.NoError(t, err)
	assert.True(t, empty.Complete(1))
}

func TestHeader_CompleteHugeLengths(t *testing.T) {
	huge := strconv.Itoa(math.MaxInt)
	buf := []byte(huge + "," + huge + "\x00x")

	h, err := ParseHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, h.PayloadSize())
	assert.False(t, h.Complete(len(buf)))
}
