package state

import (
	"github.com/jamchain/jamd/crypto"
	"github.com/jamchain/jamd/types"
)

// EntropyPool holds the four rotating entropy accumulators η₀..η₃.
// η₀ accumulates fresh VRF output this epoch; η₁..η₃ are frozen snapshots
// from the previous three epochs.
type EntropyPool [4]types.Hash

// Rotate shifts η₃←η₂, η₂←η₁, η₁←η₀, and sets η₀ to fresh, per the Safrole
// epoch transition.
func (p *EntropyPool) Rotate(fresh types.Hash) {
	p[3] = p[2]
	p[2] = p[1]
	p[1] = p[0]
	p[0] = fresh
}

// Accumulate folds newEntropy into η₀ without rotating, used on every
// block's entropy-source VRF output: the fresh output is hashed into the
// running accumulator under a domain separator.
func (p *EntropyPool) Accumulate(newEntropy types.Hash) {
	p[0] = crypto.Blake2b256Hash(types.DomainEntropy, p[0].Bytes(), newEntropy.Bytes())
}
