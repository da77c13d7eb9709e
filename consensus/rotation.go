package consensus

import (
	"encoding/binary"

	"github.com/jamchain/jamd/crypto"
	"github.com/jamchain/jamd/types"
)

// entropySource is a deterministic byte stream derived from a 32-byte seed,
// used to drive the Fisher-Yates shuffle below. It hashes seed‖counter in
// successive Blake2b-256 blocks and serves bytes from each block in turn,
// so the same seed always yields the same permutation on every node.
type entropySource struct {
	seed    types.Hash
	counter uint32
	block   []byte
	pos     int
}

func newEntropySource(seed types.Hash) *entropySource {
	return &entropySource{seed: seed}
}

func (s *entropySource) refill() {
	var cb [4]byte
	binary.LittleEndian.PutUint32(cb[:], s.counter)
	s.counter++
	s.block = crypto.Blake2b256(s.seed.Bytes(), cb[:])
	s.pos = 0
}

// uint32Below returns a uniformly distributed value in [0, n) for n > 0,
// using rejection sampling over 4-byte draws to avoid modulo bias.
func (s *entropySource) uint32Below(n uint32) uint32 {
	if n == 0 {
		return 0
	}
	limit := (^uint32(0) / n) * n
	for {
		if s.pos+4 > len(s.block) {
			s.refill()
		}
		v := binary.LittleEndian.Uint32(s.block[s.pos : s.pos+4])
		s.pos += 4
		if v < limit {
			return v % n
		}
	}
}

// FisherYates returns a pseudo-random permutation of [0, n) derived from
// seed, using the standard in-place shuffle.
func FisherYates(n int, seed types.Hash) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	if n < 2 {
		return perm
	}
	src := newEntropySource(seed)
	for i := n - 1; i > 0; i-- {
		j := src.uint32Below(uint32(i + 1))
		perm[i], perm[int(j)] = perm[int(j)], perm[i]
	}
	return perm
}

// CoreAssignment maps each validator index to the core it is assigned to
// for rotation number n: shuffle the validator indices under η₂, assign
// the validator at shuffled position i to core
// (CORES_COUNT * shuffled_position) / VALIDATORS_COUNT, then cyclically
// rotate the resulting assignment by n mod (EPOCH_LENGTH/ROTATION_PERIOD).
func CoreAssignment(n uint32, entropy2 types.Hash) []uint16 {
	perm := FisherYates(types.ValidatorsCount, entropy2)

	base := make([]uint16, types.ValidatorsCount)
	for pos, validatorIdx := range perm {
		core := (types.CoresCount * pos) / types.ValidatorsCount
		base[validatorIdx] = uint16(core)
	}

	rotations := uint32(types.EpochLength / types.RotationPeriod)
	shift := n % rotations

	out := make([]uint16, types.ValidatorsCount)
	for v, core := range base {
		out[v] = uint16((uint32(core) + shift) % uint32(types.CoresCount))
	}
	return out
}

// RotationNumber returns floor(slot/ROTATION_PERIOD).
func RotationNumber(slot uint32) uint32 {
	return slot / types.RotationPeriod
}
