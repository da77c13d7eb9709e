package consensus

import (
	"github.com/jamchain/jamd/block"
	"github.com/jamchain/jamd/crypto"
	"github.com/jamchain/jamd/state"
	"github.com/jamchain/jamd/types"
)

// AssurancesOutput carries the reports unlocked this block, ready to feed
// the accumulation engine.
type AssurancesOutput struct {
	NewlyAvailable []state.WorkReport
}

func bitSet(bitfield []byte, core int) bool {
	byteIdx := core / 8
	bitIdx := uint(core % 8)
	if byteIdx >= len(bitfield) {
		return false
	}
	return bitfield[byteIdx]&(1<<bitIdx) != 0
}

// ApplyAssurances validates the block's assurances extrinsic, tallies
// asserters per core, unlocks any core that crosses super-majority, and
// clears cores whose timeout has elapsed.
func ApplyAssurances(s *state.State, assurances []block.Assurance, parentHash types.Hash, slot uint32, verifier *crypto.CachedEd25519Verifier) (AssurancesOutput, error) {
	var out AssurancesOutput

	for i := 1; i < len(assurances); i++ {
		if assurances[i-1].ValidatorIndex >= assurances[i].ValidatorIndex {
			return out, ErrAssurancesNotSortedOrUnique
		}
	}

	counts := make([]int, types.CoresCount)

	for _, a := range assurances {
		if a.Anchor != parentHash {
			return out, ErrBadAssuranceAnchor
		}
		if int(a.ValidatorIndex) >= types.ValidatorsCount {
			return out, ErrBadAssuranceIndex
		}
		msg := crypto.DomainMessage(types.DomainAvailable, crypto.Blake2b256(a.Bitfield))
		key := s.Validators.Current[a.ValidatorIndex].Ed25519
		if !verifier.Verify(key, msg, a.Signature) {
			return out, ErrBadAssuranceSignature
		}
		for core := 0; core < types.CoresCount; core++ {
			if !bitSet(a.Bitfield, core) {
				continue
			}
			if s.Availability[core].Empty() {
				return out, ErrAssuranceForEmptyCore
			}
			counts[core]++
		}
	}

	for core := 0; core < types.CoresCount; core++ {
		slotState := s.Availability[core]
		if slotState.Empty() {
			continue
		}
		if counts[core] >= types.ValidatorsSuperMajority {
			out.NewlyAvailable = append(out.NewlyAvailable, *slotState.Report)
			s.Availability[core] = state.AvailabilitySlot{}
			continue
		}
		if slotState.Timeout != 0 && slot > slotState.Timeout+types.MaxAgeLookupAnchor {
			s.Availability[core] = state.AvailabilitySlot{}
		}
	}

	return out, nil
}
