package crypto

import (
	"golang.org/x/crypto/blake2b"

	"github.com/jamchain/jamd/types"
)

// Blake2b256 calculates the unkeyed Blake2b-256 hash of the given data,
// used throughout state-key derivation (storage, preimage, and lookup
// sub-keys) and service-index generation.
func Blake2b256(data ...[]byte) []byte {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only fails for an out-of-range key length, and we
		// never pass one.
		panic(err)
	}
	for _, b := range data {
		h.Write(b)
	}
	return h.Sum(nil)
}

// Blake2b256Hash calculates Blake2b-256 and returns it as a types.Hash.
func Blake2b256Hash(data ...[]byte) types.Hash {
	return types.BytesToHash(Blake2b256(data...))
}
