package codec

import "encoding/binary"

// Encoder accumulates the canonical byte encoding of a sequence of fields.
// It never fails: callers build up a value and take Bytes() at the end.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder, optionally pre-sizing its buffer.
func NewEncoder(sizeHint int) *Encoder {
	return &Encoder{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the accumulated encoding.
func (e *Encoder) Bytes() []byte { return e.buf }

// Byte appends a single raw byte.
func (e *Encoder) Byte(b byte) { e.buf = append(e.buf, b) }

// Raw appends a fixed-width byte sequence verbatim (hashes, keys, signatures).
func (e *Encoder) Raw(b []byte) { e.buf = append(e.buf, b...) }

// Bool encodes a boolean as a single 0/1 byte.
func (e *Encoder) Bool(v bool) {
	if v {
		e.Byte(1)
	} else {
		e.Byte(0)
	}
}

// U16 encodes a fixed-width little-endian uint16.
func (e *Encoder) U16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.Raw(b[:])
}

// U32 encodes a fixed-width little-endian uint32.
func (e *Encoder) U32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.Raw(b[:])
}

// U64 encodes a fixed-width little-endian uint64.
func (e *Encoder) U64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.Raw(b[:])
}

// VarUint encodes v using the compact leading-ones length-prefix scheme of
// the wire format: a single byte when v < 2^7, growing to a full 8-byte payload
// for v >= 2^56.
func (e *Encoder) VarUint(v uint64) {
	l := prefixLength(v)
	if l == 0 {
		e.Byte(byte(v))
		return
	}
	if l == 8 {
		e.Byte(0xFF)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v)
		e.Raw(b[:])
		return
	}
	high := byte(v >> (8 * uint(l)))
	marker := byte((0xFF << (8 - l)) & 0xFF)
	e.Byte(marker | high)
	payload := v & ((uint64(1) << (8 * uint(l))) - 1)
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], payload)
	e.Raw(b[:l])
}

// VarBytes encodes a byte slice as a VarUint length followed by the bytes.
func (e *Encoder) VarBytes(b []byte) {
	e.VarUint(uint64(len(b)))
	e.Raw(b)
}

// prefixLength returns the minimal l in {0..8} such that v fits the l-byte
// payload scheme (v <= 2^(7+7l)-1 for l<8, always true for l==8).
func prefixLength(v uint64) int {
	for l := 0; l < 8; l++ {
		if v <= (uint64(1)<<(7+7*uint(l)))-1 {
			return l
		}
	}
	return 8
}

// Sequence encodes a length-prefixed sequence of n elements, invoking enc
// once per index in order. Matches the Sequence-with-length wire shape.
func (e *Encoder) Sequence(n int, enc func(i int)) {
	e.VarUint(uint64(n))
	for i := 0; i < n; i++ {
		enc(i)
	}
}
