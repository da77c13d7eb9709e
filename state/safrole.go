package state

import "github.com/jamchain/jamd/types"

// TicketBody is one entry of the ticket accumulator: an anonymous VRF
// output identifier and the attempt number that produced it.
type TicketBody struct {
	Id      types.Hash
	Attempt uint8
}

// Less orders ticket bodies by id, the accumulator's sort key.
func (t TicketBody) Less(o TicketBody) bool { return t.Id.Less(o.Id) }

// SealSource is the epoch's block-author schedule: either a saturated
// ticket-derived schedule or a fallback Bandersnatch-key schedule.
type SealSource struct {
	// Tickets holds the EPOCH_LENGTH-long outside-in permutation of the
	// saturated ticket accumulator. Used when Tickets != nil.
	Tickets []TicketBody

	// Keys holds the fallback Bandersnatch-key schedule, used when Tickets
	// is nil (accumulator did not saturate by epoch end).
	Keys []types.BandersnatchPublic
}

// Safrole holds the Safrole-specific state: pending (γ_k) validators, the
// in-progress ticket accumulator, the current epoch's seal source, and the
// ring commitment over γ_k's Bandersnatch keys (the "epoch root").
type Safrole struct {
	Pending         ValidatorSet
	TicketAccumulator []TicketBody
	Seal            SealSource
	EpochRoot       types.RingCommitment
}

// OutsideInPermutation builds the EPOCH_LENGTH-long ticket schedule from a
// saturated, id-sorted ticket accumulator: slot i gets
// ticket index 2i if i < EPOCH_LENGTH/2, else 2*(EPOCH_LENGTH-1-i)+1.
func OutsideInPermutation(sorted []TicketBody) []TicketBody {
	n := len(sorted)
	out := make([]TicketBody, n)
	half := n / 2
	for i := 0; i < n; i++ {
		var idx int
		if i < half {
			idx = 2 * i
		} else {
			idx = 2*(n-1-i) + 1
		}
		out[i] = sorted[idx]
	}
	return out
}
