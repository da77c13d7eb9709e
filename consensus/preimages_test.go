package consensus

import (
	"bytes"
	"testing"

	"github.com/jamchain/jamd/block"
	"github.com/jamchain/jamd/crypto"
	"github.com/jamchain/jamd/state"
)

// solicited returns a state with service 1 awaiting provision of blob.
func solicited(t *testing.T, blob []byte) *state.State {
	t.Helper()
	s := testState(t, makeValidators(t))
	acc := state.NewAccount()
	hash := crypto.Blake2b256Hash(blob)
	acc.Lookups[state.LookupKey(1, hash, uint32(len(blob)))] = state.LookupRecord{Length: uint32(len(blob))}
	s.Accounts[1] = acc
	return s
}

func TestPreimageProvision(t *testing.T) {
	blob := []byte("service code")
	s := solicited(t, blob)

	err := ApplyPreimages(s, []block.Preimage{{Requester: 1, Blob: blob}}, 9)
	if err != nil {
		t.Fatalf("ApplyPreimages: %v", err)
	}

	acc := s.Accounts[1]
	hash := crypto.Blake2b256Hash(blob)
	got, ok := acc.Preimages[hash]
	if !ok || !bytes.Equal(got, blob) {
		t.Fatal("blob not stored")
	}
	rec := acc.Lookups[state.LookupKey(1, hash, uint32(len(blob)))]
	if len(rec.Slots) != 1 || rec.Slots[0] != 9 {
		t.Fatalf("lookup slots = %v, want [9]", rec.Slots)
	}
}

func TestPreimageUnsolicited(t *testing.T) {
	s := testState(t, makeValidators(t))
	s.Accounts[1] = state.NewAccount()
	err := ApplyPreimages(s, []block.Preimage{{Requester: 1, Blob: []byte("x")}}, 9)
	if err != ErrPreimageUnneeded {
		t.Fatalf("err = %v, want ErrPreimageUnneeded", err)
	}
}

func TestPreimageAlreadyProvidedRejected(t *testing.T) {
	blob := []byte("x")
	s := solicited(t, blob)
	if err := ApplyPreimages(s, []block.Preimage{{Requester: 1, Blob: blob}}, 9); err != nil {
		t.Fatal(err)
	}
	if err := ApplyPreimages(s, []block.Preimage{{Requester: 1, Blob: blob}}, 10); err != ErrPreimageUnneeded {
		t.Fatalf("re-provision err = %v, want ErrPreimageUnneeded", err)
	}
}

func TestPreimageUnknownRequester(t *testing.T) {
	s := testState(t, makeValidators(t))
	err := ApplyPreimages(s, []block.Preimage{{Requester: 7, Blob: []byte("x")}}, 9)
	if err != ErrRequesterNotFound {
		t.Fatalf("err = %v, want ErrRequesterNotFound", err)
	}
}

func TestPreimagesMustBeSorted(t *testing.T) {
	s := testState(t, makeValidators(t))
	ext := []block.Preimage{
		{Requester: 2, Blob: []byte("a")},
		{Requester: 1, Blob: []byte("b")},
	}
	if err := ApplyPreimages(s, ext, 9); err != ErrPreimagesNotSortedOrUnique {
		t.Fatalf("err = %v, want ErrPreimagesNotSortedOrUnique", err)
	}
}

func TestPreimagesDuplicateRejected(t *testing.T) {
	blob := []byte("dup")
	s := solicited(t, blob)
	ext := []block.Preimage{
		{Requester: 1, Blob: blob},
		{Requester: 1, Blob: blob},
	}
	if err := ApplyPreimages(s, ext, 9); err != ErrPreimagesNotSortedOrUnique {
		t.Fatalf("err = %v, want ErrPreimagesNotSortedOrUnique", err)
	}
}
