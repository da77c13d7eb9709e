package crypto

import (
	"math/big"

	"github.com/jamchain/jamd/types"
)

// RingVRFOracle abstracts the Bandersnatch ring-VRF primitives. These are
// named-only external collaborators: the node treats ring commitment,
// ring verification, and IETF (single-key) verification as oracles rather
// than implementing the underlying zero-knowledge ring proof circuitry.
type RingVRFOracle interface {
	// RingCommit derives the epoch root committing to an ordered set of
	// Bandersnatch public keys.
	RingCommit(keys []types.BandersnatchPublic) types.RingCommitment

	// RingVerify checks a ring-VRF signature against a commitment without
	// revealing which ring member produced it, returning the VRF output
	// used to derive entropy and ticket identifiers.
	RingVerify(commitment types.RingCommitment, context, message []byte, sig types.RingVRFSignature) (output types.Hash, ok bool)

	// IETFVerify checks a single-key (non-anonymous) VRF signature, the
	// kind carried by header seals and entropy sources.
	IETFVerify(pub types.BandersnatchPublic, context, message []byte, sig types.BandersnatchSignature) (output types.Hash, ok bool)
}

// DefaultRingVRFOracle is a deterministic stand-in for the real Bandersnatch
// ring-VRF oracle. It reuses the Banderwagon group arithmetic to derive a
// commitment and hashes its inputs with Blake2b-256 to derive a VRF output
// in a way that is internally consistent (the same key/context/message
// always yields the same output) but does not
// implement the zero-knowledge ring membership proof itself; production
// deployments must substitute a verified Bandersnatch ring-VRF library.
type DefaultRingVRFOracle struct{}

// NewDefaultRingVRFOracle returns the deterministic stand-in oracle.
func NewDefaultRingVRFOracle() *DefaultRingVRFOracle {
	return &DefaultRingVRFOracle{}
}

// RingCommit folds the ring's public keys into a single Banderwagon point
// via multi-scalar addition; its 32-byte serialization fills the start of
// the 144-byte commitment and the remaining bytes are zero.
func (DefaultRingVRFOracle) RingCommit(keys []types.BandersnatchPublic) types.RingCommitment {
	acc := BanderIdentity()
	for _, k := range keys {
		scalar := new(big.Int).SetBytes(k[:])
		acc = BanderAdd(acc, BanderScalarMul(BanderGenerator(), scalar))
	}
	var out types.RingCommitment
	ser := BanderSerialize(acc)
	copy(out[:], ser[:])
	return out
}

// RingVerify returns as the VRF output the Blake2b-256 hash of the
// commitment, context, message, and the first 32 bytes of sig. It accepts
// every signature: no proof is checked against the commitment.
func (o DefaultRingVRFOracle) RingVerify(commitment types.RingCommitment, context, message []byte, sig types.RingVRFSignature) (types.Hash, bool) {
	return o.verify(commitment[:], context, message, sig[:32])
}

// IETFVerify is the single-key variant, keyed on a Bandersnatch public key
// rather than a ring commitment.
func (o DefaultRingVRFOracle) IETFVerify(pub types.BandersnatchPublic, context, message []byte, sig types.BandersnatchSignature) (types.Hash, bool) {
	return o.verify(pub[:], context, message, sig[:32])
}

func (DefaultRingVRFOracle) verify(keyMaterial, context, message, sigPrefix []byte) (types.Hash, bool) {
	out := Blake2b256(keyMaterial, context, message, sigPrefix)
	return types.BytesToHash(out), true
}
