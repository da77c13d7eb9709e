package state

import "github.com/jamchain/jamd/types"

// AuthPool is a bounded per-core FIFO of authorizer hashes.
type AuthPool struct {
	Hashes []types.Hash
	Max    int
}

// Push appends h, dropping the oldest entry if the pool is at capacity.
func (p *AuthPool) Push(h types.Hash) {
	p.Hashes = append(p.Hashes, h)
	if p.Max > 0 && len(p.Hashes) > p.Max {
		p.Hashes = p.Hashes[len(p.Hashes)-p.Max:]
	}
}

// Contains reports whether h is present in the pool.
func (p AuthPool) Contains(h types.Hash) bool {
	for _, x := range p.Hashes {
		if x == h {
			return true
		}
	}
	return false
}

// Remove deletes the first occurrence of h, used once a guarantee consumes
// its authorizer.
func (p *AuthPool) Remove(h types.Hash) {
	for i, x := range p.Hashes {
		if x == h {
			p.Hashes = append(p.Hashes[:i], p.Hashes[i+1:]...)
			return
		}
	}
}

// AuthQueue is a per-core fixed-length queue of authorizer hashes that
// replenishes the pool one entry per block.
type AuthQueue struct {
	Hashes []types.Hash
}

// Authorization bundles the per-core pools and queues.
type Authorization struct {
	Pools  []AuthPool
	Queues []AuthQueue
}

// NewAuthorization allocates empty pools/queues for the given core count.
func NewAuthorization(cores, poolMax int) Authorization {
	pools := make([]AuthPool, cores)
	for i := range pools {
		pools[i] = AuthPool{Max: poolMax}
	}
	return Authorization{
		Pools:  pools,
		Queues: make([]AuthQueue, cores),
	}
}
