package state

import "github.com/jamchain/jamd/types"

// ValidatorSet is a fixed-length array of VALIDATORS_COUNT validator
// records, one of the rotating snapshots (λ, κ, ι, or γ_k).
type ValidatorSet [types.ValidatorsCount]types.ValidatorRecord

// Validators holds the three rotating snapshots: previous (λ), current
// (κ), and next (ι). The fourth, pending (γ_k), belongs to Safrole and
// lives in Safrole.Pending.
type Validators struct {
	Previous ValidatorSet
	Current  ValidatorSet
	Next     ValidatorSet
}

// ZeroOffenders returns a copy of vs with every record whose Ed25519 key is
// in offenders replaced by its zeroed form, per the Safrole epoch
// transition's "offenders zeroed out" step.
func ZeroOffenders(vs ValidatorSet, offenders map[types.Ed25519Public]struct{}) ValidatorSet {
	out := vs
	for i, v := range out {
		if _, bad := offenders[v.Ed25519]; bad {
			out[i] = v.Zeroed()
		}
	}
	return out
}
