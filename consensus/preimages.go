package consensus

import (
	"github.com/jamchain/jamd/block"
	"github.com/jamchain/jamd/crypto"
	"github.com/jamchain/jamd/state"
)

// ApplyPreimages validates and integrates the block's preimages extrinsic:
// each entry's requester must hold an awaiting-provision
// lookup record, which is then populated with this block's slot.
func ApplyPreimages(s *state.State, preimages []block.Preimage, slot uint32) error {
	for i := 1; i < len(preimages); i++ {
		a, b := preimages[i-1], preimages[i]
		if a.Requester > b.Requester {
			return ErrPreimagesNotSortedOrUnique
		}
		if a.Requester == b.Requester {
			ha := crypto.Blake2b256Hash(a.Blob)
			hb := crypto.Blake2b256Hash(b.Blob)
			if !ha.Less(hb) {
				return ErrPreimagesNotSortedOrUnique
			}
		}
	}

	for _, p := range preimages {
		acc, ok := s.Accounts[p.Requester]
		if !ok {
			return ErrRequesterNotFound
		}
		hash := crypto.Blake2b256Hash(p.Blob)
		lk := state.LookupKey(p.Requester, hash, uint32(len(p.Blob)))
		rec, ok := acc.Lookups[lk]
		if !ok || len(rec.Slots) != 0 {
			return ErrPreimageUnneeded
		}
		acc.Preimages[hash] = p.Blob
		acc.Lookups[lk] = state.LookupRecord{Length: uint32(len(p.Blob)), Slots: []uint32{slot}}
		acc.Octets += uint64(len(p.Blob))
		acc.Items++
	}
	return nil
}
