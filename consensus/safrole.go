package consensus

import (
	"sort"

	"github.com/jamchain/jamd/block"
	"github.com/jamchain/jamd/crypto"
	"github.com/jamchain/jamd/state"
	"github.com/jamchain/jamd/types"
)

// bandersnatchKeysOf extracts the Bandersnatch keys of a validator set in
// index order.
func bandersnatchKeysOf(vs state.ValidatorSet) []types.BandersnatchPublic {
	out := make([]types.BandersnatchPublic, len(vs))
	for i, v := range vs {
		out[i] = v.Bandersnatch
	}
	return out
}

// sampleWithReplacement draws count indices in [0, n) from seed, used to
// stretch the VALIDATORS_COUNT-sized key set out to an EPOCH_LENGTH-long
// fallback schedule.
func sampleWithReplacement(n, count int, seed types.Hash) []int {
	src := newEntropySource(seed)
	out := make([]int, count)
	for i := range out {
		out[i] = int(src.uint32Below(uint32(n)))
	}
	return out
}

// FallbackKeySchedule builds the EPOCH_LENGTH-long fallback sealing-key
// schedule by sampling keys (with replacement) under seed.
func FallbackKeySchedule(keys []types.BandersnatchPublic, seed types.Hash) []types.BandersnatchPublic {
	idx := sampleWithReplacement(len(keys), types.EpochLength, seed)
	out := make([]types.BandersnatchPublic, len(idx))
	for i, j := range idx {
		out[i] = keys[j]
	}
	return out
}

// FinalizeSealSource chooses the next epoch's seal source: the outside-in
// ticket schedule if the accumulator saturated to EPOCH_LENGTH entries,
// else the fallback key schedule over the (now-current) validator set
// under η₂. A partially filled accumulator never yields a partial ticket
// schedule.
func FinalizeSealSource(accumulator []state.TicketBody, current state.ValidatorSet, entropy2 types.Hash) state.SealSource {
	if len(accumulator) == types.EpochLength {
		sorted := append([]state.TicketBody(nil), accumulator...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
		return state.SealSource{Tickets: state.OutsideInPermutation(sorted)}
	}
	return state.SealSource{Keys: FallbackKeySchedule(bandersnatchKeysOf(current), entropy2)}
}

// EpochTransition applies the Safrole epoch-boundary rotation: λ←κ,
// κ←γ_k, γ_k←ι with offenders zeroed, entropy rotation, seal source
// finalization, and epoch-root recomputation. freshEntropy is the new η₀
// derived from the header's entropy-source VRF output.
func EpochTransition(s *state.State, oracle crypto.RingVRFOracle, freshEntropy types.Hash) {
	s.Validators.Previous = s.Validators.Current
	s.Validators.Current = s.Safrole.Pending
	s.Safrole.Pending = state.ZeroOffenders(s.Validators.Next, s.Disputes.Offenders)

	s.Entropy.Rotate(freshEntropy)

	s.Safrole.Seal = FinalizeSealSource(s.Safrole.TicketAccumulator, s.Validators.Current, s.Entropy[2])
	s.Safrole.TicketAccumulator = nil
	s.Safrole.EpochRoot = oracle.RingCommit(bandersnatchKeysOf(s.Safrole.Pending))
}

// mergeTickets merges newly submitted tickets into the existing
// accumulator, keeping the result sorted, unique, and truncated to the
// EPOCH_LENGTH smallest ids.
func mergeTickets(existing []state.TicketBody, fresh []state.TicketBody) []state.TicketBody {
	merged := append(append([]state.TicketBody(nil), existing...), fresh...)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Less(merged[j]) })
	out := merged[:0]
	for i, t := range merged {
		if i > 0 && t.Id == merged[i-1].Id {
			continue
		}
		out = append(out, t)
	}
	if len(out) > types.EpochLength {
		out = out[:types.EpochLength]
	}
	return append([]state.TicketBody(nil), out...)
}

// SubmitTickets validates and applies the block's ticket extrinsic against
// the current epoch's ring root and η₂. s.Time must already hold the
// block's slot.
func SubmitTickets(s *state.State, tickets []block.Ticket, oracle crypto.RingVRFOracle) error {
	if len(tickets) == 0 {
		return nil
	}
	slotInEpoch := s.Time % types.EpochLength
	if slotInEpoch >= types.TicketSubmissionEnds {
		return ErrUnexpectedTicket
	}
	if len(tickets) > types.ValidatorsCount*types.TicketEntriesPerValidator {
		return ErrTooManyTickets
	}

	ids := make([]types.Hash, len(tickets))
	bodies := make([]state.TicketBody, len(tickets))
	seen := make(map[types.Hash]struct{}, len(tickets))

	for i, t := range tickets {
		if t.Attempt >= types.TicketEntriesPerValidator {
			return ErrBadTicketAttempt
		}
		msg := crypto.DomainMessage(types.DomainTicketSeal, s.Entropy[2].Bytes(), []byte{t.Attempt})
		out, ok := oracle.RingVerify(s.Safrole.EpochRoot, nil, msg, t.Proof)
		if !ok {
			return ErrBadTicketProof
		}
		if i > 0 && !ids[i-1].Less(out) {
			return ErrBadTicketOrder
		}
		if _, dup := seen[out]; dup {
			return ErrDuplicateTicket
		}
		seen[out] = struct{}{}
		ids[i] = out
		bodies[i] = state.TicketBody{Id: out, Attempt: t.Attempt}
	}

	s.Safrole.TicketAccumulator = mergeTickets(s.Safrole.TicketAccumulator, bodies)
	return nil
}

// VerifySeal checks a header's seal against the current epoch's seal
// source. In ticket mode the seal is the author's VRF signature over the
// scheduled ticket's message and its output must equal
// the scheduled ticket id; in fallback mode the scheduled Bandersnatch
// key itself must have signed the fallback message. The author's key is the
// one named by the header's author index.
func VerifySeal(s *state.State, h block.Header, authorKey types.BandersnatchPublic, oracle crypto.RingVRFOracle) (types.Hash, error) {
	slotInEpoch := h.Slot % types.EpochLength

	switch {
	case s.Safrole.Seal.Tickets != nil:
		ticket := s.Safrole.Seal.Tickets[slotInEpoch]
		msg := crypto.DomainMessage(types.DomainTicketSeal, s.Entropy[2].Bytes(), []byte{ticket.Attempt})
		out, ok := oracle.IETFVerify(authorKey, nil, msg, h.Seal)
		if !ok {
			return types.Hash{}, ErrInvalidTicketSeal
		}
		if out != ticket.Id {
			return types.Hash{}, ErrTicketNotMatch
		}
		return out, nil

	case s.Safrole.Seal.Keys != nil:
		key := s.Safrole.Seal.Keys[slotInEpoch]
		if key != authorKey {
			return types.Hash{}, ErrKeyNotMatch
		}
		msg := crypto.DomainMessage(types.DomainFallbackSeal, s.Entropy[3].Bytes())
		out, ok := oracle.IETFVerify(key, nil, msg, h.Seal)
		if !ok {
			return types.Hash{}, ErrInvalidKeySeal
		}
		return out, nil

	default:
		return types.Hash{}, ErrTicketsOrKeysNone
	}
}

// VerifyEntropySource checks the header's second VRF (the entropy-source
// signature) and returns the fresh entropy it contributes to η₀.
func VerifyEntropySource(s *state.State, h block.Header, authorKey types.BandersnatchPublic, oracle crypto.RingVRFOracle) (types.Hash, error) {
	out, ok := oracle.IETFVerify(authorKey, nil, types.DomainEntropy, h.EntropySource)
	if !ok {
		return types.Hash{}, ErrInvalidEntropySource
	}
	return out, nil
}
