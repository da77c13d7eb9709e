package codec

import "encoding/binary"

// Decoder consumes a byte slice field-by-field following the encoding
// produced by Encoder. All methods return ErrShortRead if the remaining
// bytes are insufficient.
type Decoder struct {
	data []byte
	pos  int
}

// NewDecoder wraps b for sequential decoding.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{data: b}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return len(d.data) - d.pos }

// Done reports whether the input has been fully consumed (used by
// round-trip tests asserting canonical, non-padded encodings).
func (d *Decoder) Done() bool { return d.pos == len(d.data) }

func (d *Decoder) take(n int) ([]byte, error) {
	if d.Remaining() < n {
		return nil, ErrShortRead
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// Byte reads a single raw byte.
func (d *Decoder) Byte() (byte, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Raw reads n raw bytes verbatim.
func (d *Decoder) Raw(n int) ([]byte, error) {
	return d.take(n)
}

// Bool reads a single 0/1 byte as a boolean.
func (d *Decoder) Bool() (bool, error) {
	b, err := d.Byte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// U16 reads a fixed-width little-endian uint16.
func (d *Decoder) U16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// U32 reads a fixed-width little-endian uint32.
func (d *Decoder) U32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// U64 reads a fixed-width little-endian uint64.
func (d *Decoder) U64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// VarUint reads a compact leading-ones-prefixed integer (the inverse of
// Encoder.VarUint).
func (d *Decoder) VarUint() (uint64, error) {
	b0, err := d.Byte()
	if err != nil {
		return 0, err
	}
	l := leadingOnes(b0)
	if l == 0 {
		return uint64(b0), nil
	}
	if l == 8 {
		return d.U64()
	}
	high := uint64(b0) & ((uint64(1) << (7 - uint(l))) - 1)
	payload, err := d.take(l)
	if err != nil {
		return 0, err
	}
	var buf [8]byte
	copy(buf[:], payload)
	low := binary.LittleEndian.Uint64(buf[:])
	return (high << (8 * uint(l))) | low, nil
}

// VarBytes reads a VarUint length followed by that many raw bytes.
func (d *Decoder) VarBytes() ([]byte, error) {
	n, err := d.VarUint()
	if err != nil {
		return nil, err
	}
	if n > uint64(d.Remaining()) {
		return nil, ErrOverflow
	}
	return d.take(int(n))
}

// Sequence reads a VarUint count, then invokes dec once per index in order.
func (d *Decoder) Sequence(dec func(i int) error) (int, error) {
	n, err := d.VarUint()
	if err != nil {
		return 0, err
	}
	for i := 0; i < int(n); i++ {
		if err := dec(i); err != nil {
			return i, err
		}
	}
	return int(n), nil
}

// leadingOnes counts the number of leading one-bits in b, MSB first.
func leadingOnes(b byte) int {
	n := 0
	for i := 7; i >= 0; i-- {
		if b&(1<<uint(i)) == 0 {
			break
		}
		n++
	}
	return n
}
