package consensus

import (
	"sort"
	"testing"

	"github.com/jamchain/jamd/block"
	"github.com/jamchain/jamd/crypto"
	"github.com/jamchain/jamd/state"
	"github.com/jamchain/jamd/types"
)

func ticketBody(b byte, attempt uint8) state.TicketBody {
	var id types.Hash
	id[0] = b
	return state.TicketBody{Id: id, Attempt: attempt}
}

func TestOutsideInPermutation(t *testing.T) {
	sorted := make([]state.TicketBody, types.EpochLength)
	for i := range sorted {
		sorted[i] = ticketBody(byte(i), 0)
	}
	out := state.OutsideInPermutation(sorted)
	if len(out) != types.EpochLength {
		t.Fatalf("len = %d", len(out))
	}
	half := types.EpochLength / 2
	for i := 0; i < types.EpochLength; i++ {
		want := 2 * i
		if i >= half {
			want = 2*(types.EpochLength-1-i) + 1
		}
		if out[i].Id[0] != byte(want) {
			t.Fatalf("slot %d got ticket %d, want %d", i, out[i].Id[0], want)
		}
	}
}

func TestMergeTicketsMonotone(t *testing.T) {
	existing := []state.TicketBody{ticketBody(4, 0), ticketBody(8, 0)}
	fresh := []state.TicketBody{ticketBody(2, 1), ticketBody(4, 0), ticketBody(6, 2)}
	merged := mergeTickets(existing, fresh)

	if !sort.SliceIsSorted(merged, func(i, j int) bool { return merged[i].Less(merged[j]) }) {
		t.Fatal("merge result not sorted")
	}
	for i := 1; i < len(merged); i++ {
		if merged[i].Id == merged[i-1].Id {
			t.Fatal("merge result not unique")
		}
	}
	if len(merged) != 4 {
		t.Fatalf("len = %d, want 4", len(merged))
	}
}

func TestMergeTicketsTruncates(t *testing.T) {
	var fresh []state.TicketBody
	for i := 0; i < types.EpochLength+5; i++ {
		fresh = append(fresh, ticketBody(byte(i+1), 0))
	}
	merged := mergeTickets(nil, fresh)
	if len(merged) != types.EpochLength {
		t.Fatalf("len = %d, want %d", len(merged), types.EpochLength)
	}
	if merged[len(merged)-1].Id[0] != byte(types.EpochLength) {
		t.Fatal("truncation did not keep the smallest ids")
	}
}

func TestSubmitTicketAccepted(t *testing.T) {
	vals := makeValidators(t)
	s := testState(t, vals)
	s.Time = 3
	oracle := crypto.NewDefaultRingVRFOracle()

	err := SubmitTickets(s, []block.Ticket{{Attempt: 0}}, oracle)
	if err != nil {
		t.Fatalf("SubmitTickets: %v", err)
	}
	if len(s.Safrole.TicketAccumulator) != 1 {
		t.Fatalf("accumulator len = %d", len(s.Safrole.TicketAccumulator))
	}
	if s.Safrole.TicketAccumulator[0].Attempt != 0 {
		t.Fatal("attempt not recorded")
	}
}

func TestSubmitDuplicateTicketRejected(t *testing.T) {
	vals := makeValidators(t)
	s := testState(t, vals)
	s.Time = 3
	oracle := crypto.NewDefaultRingVRFOracle()

	// Two identical proofs yield the same VRF output.
	err := SubmitTickets(s, []block.Ticket{{Attempt: 0}, {Attempt: 0}}, oracle)
	if err != ErrDuplicateTicket && err != ErrBadTicketOrder {
		t.Fatalf("err = %v, want duplicate/order rejection", err)
	}
	if len(s.Safrole.TicketAccumulator) != 0 {
		t.Fatal("rejected extrinsic mutated the accumulator")
	}
}

func TestSubmitTicketAfterWindowRejected(t *testing.T) {
	vals := makeValidators(t)
	s := testState(t, vals)
	s.Time = types.TicketSubmissionEnds
	oracle := crypto.NewDefaultRingVRFOracle()
	if err := SubmitTickets(s, []block.Ticket{{Attempt: 0}}, oracle); err != ErrUnexpectedTicket {
		t.Fatalf("err = %v, want ErrUnexpectedTicket", err)
	}
}

func TestSubmitTicketBadAttemptRejected(t *testing.T) {
	vals := makeValidators(t)
	s := testState(t, vals)
	s.Time = 1
	oracle := crypto.NewDefaultRingVRFOracle()
	if err := SubmitTickets(s, []block.Ticket{{Attempt: types.TicketEntriesPerValidator}}, oracle); err != ErrBadTicketAttempt {
		t.Fatalf("err = %v, want ErrBadTicketAttempt", err)
	}
}

func TestEpochTransitionRotatesSnapshots(t *testing.T) {
	vals := makeValidators(t)
	s := testState(t, vals)
	oracle := crypto.NewDefaultRingVRFOracle()

	// Distinguish the snapshots before rotation.
	s.Validators.Next[0].Metadata[0] = 0xAA
	pendingBefore := s.Safrole.Pending
	currentBefore := s.Validators.Current

	var fresh types.Hash
	fresh[0] = 0xF0
	eta := s.Entropy
	EpochTransition(s, oracle, fresh)

	if s.Validators.Previous != currentBefore {
		t.Fatal("previous != old current")
	}
	if s.Validators.Current != pendingBefore {
		t.Fatal("current != old pending")
	}
	if s.Safrole.Pending[0].Metadata[0] != 0xAA {
		t.Fatal("pending != old next")
	}
	if s.Entropy[0] != fresh || s.Entropy[1] != eta[0] || s.Entropy[2] != eta[1] || s.Entropy[3] != eta[2] {
		t.Fatal("entropy rotation wrong")
	}
	if s.Safrole.TicketAccumulator != nil {
		t.Fatal("accumulator not reset")
	}
	if s.Safrole.Seal.Keys == nil {
		t.Fatal("non-saturated accumulator must fall back to a key schedule")
	}
	if len(s.Safrole.Seal.Keys) != types.EpochLength {
		t.Fatalf("fallback schedule len = %d", len(s.Safrole.Seal.Keys))
	}
}

func TestEpochTransitionZeroesOffenders(t *testing.T) {
	vals := makeValidators(t)
	s := testState(t, vals)
	oracle := crypto.NewDefaultRingVRFOracle()
	s.Disputes.Offenders[vals[2].pub] = struct{}{}

	EpochTransition(s, oracle, types.Hash{})
	if !s.Safrole.Pending[2].IsZero() {
		t.Fatal("offender record not zeroed in pending set")
	}
	if s.Safrole.Pending[3].IsZero() {
		t.Fatal("innocent record zeroed")
	}
}

func TestEpochTransitionSaturatedBuildsTicketSchedule(t *testing.T) {
	vals := makeValidators(t)
	s := testState(t, vals)
	oracle := crypto.NewDefaultRingVRFOracle()
	for i := 0; i < types.EpochLength; i++ {
		s.Safrole.TicketAccumulator = append(s.Safrole.TicketAccumulator, ticketBody(byte(i+1), 0))
	}
	EpochTransition(s, oracle, types.Hash{})
	if s.Safrole.Seal.Tickets == nil {
		t.Fatal("saturated accumulator must produce a ticket schedule")
	}
	if len(s.Safrole.Seal.Tickets) != types.EpochLength {
		t.Fatalf("schedule len = %d", len(s.Safrole.Seal.Tickets))
	}
}

func TestVerifySealFallback(t *testing.T) {
	vals := makeValidators(t)
	s := testState(t, vals)
	oracle := crypto.NewDefaultRingVRFOracle()

	author := s.Validators.Current[0].Bandersnatch
	s.Safrole.Seal.Keys = make([]types.BandersnatchPublic, types.EpochLength)
	for i := range s.Safrole.Seal.Keys {
		s.Safrole.Seal.Keys[i] = author
	}

	h := block.Header{Slot: 1}
	if _, err := VerifySeal(s, h, author, oracle); err != nil {
		t.Fatalf("fallback seal rejected: %v", err)
	}

	other := s.Validators.Current[1].Bandersnatch
	if _, err := VerifySeal(s, h, other, oracle); err != ErrKeyNotMatch {
		t.Fatalf("wrong author: err = %v, want ErrKeyNotMatch", err)
	}
}

func TestVerifySealNoScheduleFails(t *testing.T) {
	vals := makeValidators(t)
	s := testState(t, vals)
	oracle := crypto.NewDefaultRingVRFOracle()
	if _, err := VerifySeal(s, block.Header{Slot: 1}, types.BandersnatchPublic{}, oracle); err != ErrTicketsOrKeysNone {
		t.Fatalf("err = %v, want ErrTicketsOrKeysNone", err)
	}
}

func TestVerifySealTicketMode(t *testing.T) {
	vals := makeValidators(t)
	s := testState(t, vals)
	oracle := crypto.NewDefaultRingVRFOracle()

	author := s.Validators.Current[0].Bandersnatch
	var seal types.BandersnatchSignature
	seal[0] = 0x77

	// Derive the id the oracle will produce for this seal, then schedule it.
	msg := crypto.DomainMessage(types.DomainTicketSeal, s.Entropy[2].Bytes(), []byte{0})
	expected, _ := oracle.IETFVerify(author, nil, msg, seal)

	schedule := make([]state.TicketBody, types.EpochLength)
	for i := range schedule {
		schedule[i] = state.TicketBody{Id: expected, Attempt: 0}
	}
	s.Safrole.Seal.Tickets = schedule

	h := block.Header{Slot: 1, Seal: seal}
	out, err := VerifySeal(s, h, author, oracle)
	if err != nil {
		t.Fatalf("ticket seal rejected: %v", err)
	}
	if out != expected {
		t.Fatal("seal output mismatch")
	}

	// A different seal produces a different VRF output and must not match.
	h.Seal[0] = 0x78
	if _, err := VerifySeal(s, h, author, oracle); err != ErrTicketNotMatch {
		t.Fatalf("err = %v, want ErrTicketNotMatch", err)
	}
}
