// Package codec implements the canonical little-endian, SCALE-like wire
// format used on chain: fixed-width fields, a compact
// leading-ones-prefixed variable-length integer, and length-prefixed
// sequences built on top of it. Every on-chain value round-trips through
// Encoder/Decoder so that decode(encode(x)) == x and re-encoding bytes
// reproduces the original bytes.
package codec

import "errors"

// ErrShortRead is returned when the decoder runs out of bytes mid-field.
var ErrShortRead = errors.New("codec: short read")

// ErrOverflow is returned when a length-prefixed byte string declares more
// bytes than remain in the input.
var ErrOverflow = errors.New("codec: overflow")

// ErrTrailingBytes is returned by decoders that require the input to be
// fully consumed (used by conformance/round-trip tests).
var ErrTrailingBytes = errors.New("codec: trailing bytes")
