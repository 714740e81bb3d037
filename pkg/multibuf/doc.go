// Package multibuf packs an ordered list of byte buffers into a single
// buffer and splits it back apart.
//
// The packed format is a decimal length header followed by the payloads:
//
//	<len_0>,<len_1>,...,<len_n-1><0x00><payload_0><payload_1>...<payload_n-1>
//
// The header holds only ASCII digits and commas, so the first 0x00 byte in
// a packed buffer always terminates it, even when payloads contain 0x00.
//
// # Examples
//
//	"3,2\x00" + "\x01\x02\x03" + "\x04\x05" // two buffers of 3 and 2 bytes
//	"0\x00"                                // one empty buffer
//	"\x00"                                 // no buffers at all
//
// # Basic Usage
//
// Packing:
//
//	packed := multibuf.Pack([]byte("hello"), []byte("world"))
//
// Unpacking:
//
//	bufs, err := multibuf.Unpack(packed)
//
// Unpacking with limits:
//
//	bufs, err := multibuf.Unpack(packed, multibuf.Strict(), multibuf.MaxBuffers(64))
//
// Wide-element slices are packed through an explicit byte view, in the
// host's native byte order:
//
//	samples := []int16{1, -1, 512}
//	packed := multibuf.Pack(multibuf.Bytes(samples))
//
// # Errors
//
// Every decoding failure is a *FormatError naming the stage that failed
// (header scan, length parse or slice). It unwraps to one of the sentinel
// errors, so callers can use errors.Is:
//
//	if errors.Is(err, multibuf.ErrTruncatedPayload) { ... }
//
// Packed buffers carry no version, magic number or checksum.
//
// All functions are safe for concurrent use. Outputs never alias inputs,
// except for the view returned by Bytes.
package multibuf
