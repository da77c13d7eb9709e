// Package state defines the mutable entities that make up a node's view of
// the chain and the state-key derivation functions used to
// Merkleize them.
package state

import (
	"encoding/binary"

	"github.com/jamchain/jamd/crypto"
	"github.com/jamchain/jamd/types"
)

// U8Key builds the simple state key for discriminator i: byte 0 = i, the
// rest zero.
func U8Key(i byte) types.StateKey {
	var k types.StateKey
	k[0] = i
	return k
}

// ServiceKey builds the service-info state key for service s under
// discriminator i (i = 0xFF for the service-info entry itself): byte 0 = i,
// then the bytes of s interleaved with zero bytes.
func ServiceKey(i byte, s types.ServiceId) types.StateKey {
	var k types.StateKey
	k[0] = i
	var sb [4]byte
	binary.LittleEndian.PutUint32(sb[:], uint32(s))
	k[1] = sb[0]
	k[2] = 0
	k[3] = sb[1]
	k[4] = 0
	k[5] = sb[2]
	k[6] = 0
	k[7] = sb[3]
	k[8] = 0
	return k
}

// AccountKey builds an account sub-key for service s, interleaving s's
// bytes with the first four bytes of sub, with the remainder of sub
// following and the whole padded to 31 bytes. sub must be at most 27
// bytes (4 interleaved + 23 trailing) for the result to use the full key
// space; longer inputs are truncated.
func AccountKey(s types.ServiceId, sub []byte) types.StateKey {
	var k types.StateKey
	var sb [4]byte
	binary.LittleEndian.PutUint32(sb[:], uint32(s))
	var subPad [4]byte
	copy(subPad[:], sub)
	k[0] = sb[0]
	k[1] = subPad[0]
	k[2] = sb[1]
	k[3] = subPad[1]
	k[4] = sb[2]
	k[5] = subPad[2]
	k[6] = sb[3]
	k[7] = subPad[3]
	if len(sub) > 4 {
		copy(k[8:], sub[4:])
	}
	return k
}

// StorageKey builds the sub-key for a raw storage lookup under rawKey.
func StorageKey(s types.ServiceId, rawKey []byte) types.StateKey {
	h := crypto.Blake2b256(rawKey)
	sub := append([]byte{0xFF, 0xFF, 0xFF, 0xFF}, h[:23]...)
	return AccountKey(s, sub)
}

// PreimageKey builds the sub-key for a stored preimage blob under its hash.
func PreimageKey(s types.ServiceId, hash types.Hash) types.StateKey {
	sub := append([]byte{0xFE, 0xFF, 0xFF, 0xFF}, hash.Bytes()[:23]...)
	return AccountKey(s, sub)
}

// LookupKey builds the sub-key for a preimage's lookup record, identified
// by its hash and declared length.
func LookupKey(s types.ServiceId, hash types.Hash, length uint32) types.StateKey {
	var lb [4]byte
	binary.LittleEndian.PutUint32(lb[:], length)
	h := crypto.Blake2b256(hash.Bytes(), lb[:])
	return AccountKey(s, h[:27])
}
