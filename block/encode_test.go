package block

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/jamchain/jamd/codec"
	"github.com/jamchain/jamd/state"
	"github.com/jamchain/jamd/types"
)

func sampleHeader() Header {
	h := Header{
		Slot:        42,
		AuthorIndex: 3,
	}
	h.Parent[0] = 0x01
	h.ParentStateRoot[0] = 0x02
	h.ExtrinsicHash[0] = 0x03
	h.EntropySource[0] = 0x04
	h.Seal[0] = 0x05
	var off types.Ed25519Public
	off[0] = 0x06
	h.Offenders = []types.Ed25519Public{off}
	return h
}

func sampleExtrinsic() Extrinsic {
	var x Extrinsic

	var proof types.RingVRFSignature
	proof[0] = 0x10
	x.Tickets = []Ticket{{Attempt: 1, Proof: proof}}

	var target types.Hash
	target[0] = 0x20
	var key types.Ed25519Public
	key[0] = 0x21
	var sig types.Ed25519Signature
	sig[0] = 0x22
	x.Disputes.Verdicts = []Verdict{{
		Target: target,
		Age:    1,
		Judgements: []Judgement{
			{Vote: true, ValidatorIndex: 0, Signature: sig},
			{Vote: false, ValidatorIndex: 1, Signature: sig},
		},
	}}
	x.Disputes.Culprits = []Culprit{{Target: target, Key: key, Signature: sig}}
	x.Disputes.Faults = []Fault{{Target: target, Vote: true, Key: key, Signature: sig}}

	x.Preimages = []Preimage{{Requester: 7, Blob: []byte("blob")}}

	x.Assurances = []Assurance{{
		Anchor:         target,
		Bitfield:       []byte{0x01},
		ValidatorIndex: 2,
		Signature:      sig,
	}}

	r := state.WorkReport{CoreIndex: 1}
	r.Spec.Hash[0] = 0x30
	r.Spec.Length = 100
	r.Context.Anchor[0] = 0x31
	r.Context.Prerequisites = []types.Hash{target}
	r.AuthOutput = []byte{0xAA}
	r.SegmentRootLookup = []state.SegmentRootLookup{{WorkPackageHash: target, SegmentRoot: target}}
	r.Results = []state.WorkResult{{
		Service:  5,
		Gas:      123,
		Output:   []byte{0xBB, 0xCC},
		Failed:   false,
	}}
	r.AuthGasUsed = 9
	x.Guarantees = []Guarantee{{
		Report: r,
		Slot:   40,
		Signatures: []GuarantorSignature{
			{ValidatorIndex: 0, Signature: sig},
			{ValidatorIndex: 1, Signature: sig},
		},
	}}
	return x
}

func TestHeaderRoundTrip(t *testing.T) {
	h := sampleHeader()
	enc := h.Encode()
	got, err := DecodeHeader(codec.NewDecoder(enc))
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if !bytes.Equal(got.Encode(), enc) {
		t.Fatal("re-encoding decoded header diverges")
	}
	if got.Slot != 42 || got.AuthorIndex != 3 || len(got.Offenders) != 1 {
		t.Fatalf("decoded header = %+v", got)
	}
}

func TestHeaderMarksRoundTrip(t *testing.T) {
	h := sampleHeader()
	var k types.BandersnatchPublic
	k[0] = 0x50
	h.EpochMark = &EpochMark{Keys: []types.BandersnatchPublic{k, k}}
	h.EpochMark.Entropy[0] = 0x51
	h.TicketsMark = &TicketsMark{Tickets: []state.TicketBody{{Attempt: 2}}}

	got, err := DecodeHeader(codec.NewDecoder(h.Encode()))
	if err != nil {
		t.Fatal(err)
	}
	if got.EpochMark == nil || len(got.EpochMark.Keys) != 2 || got.EpochMark.Keys[0] != k {
		t.Fatal("epoch mark lost")
	}
	if got.TicketsMark == nil || got.TicketsMark.Tickets[0].Attempt != 2 {
		t.Fatal("tickets mark lost")
	}
	if !bytes.Equal(got.Encode(), h.Encode()) {
		t.Fatal("marked header encoding not canonical")
	}
}

func TestBlockRoundTrip(t *testing.T) {
	b := Block{Header: sampleHeader(), Extrinsic: sampleExtrinsic()}
	enc := b.Encode()
	got, err := DecodeBlock(enc)
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}
	if !bytes.Equal(got.Encode(), enc) {
		t.Fatal("re-encoding decoded block diverges")
	}
	if len(got.Extrinsic.Guarantees) != 1 {
		t.Fatal("guarantee lost")
	}
	r := got.Extrinsic.Guarantees[0].Report
	if r.Results[0].Gas != 123 || !bytes.Equal(r.Results[0].Output, []byte{0xBB, 0xCC}) {
		t.Fatal("work result mangled")
	}
}

func TestDecodeBlockRejectsTrailingBytes(t *testing.T) {
	b := Block{Header: sampleHeader()}
	enc := append(b.Encode(), 0x00)
	if _, err := DecodeBlock(enc); err != codec.ErrTrailingBytes {
		t.Fatalf("err = %v, want ErrTrailingBytes", err)
	}
}

func TestWorkReportRoundTrip(t *testing.T) {
	r := sampleExtrinsic().Guarantees[0].Report
	got, err := state.DecodeWorkReport(codec.NewDecoder(r.Encode()))
	if err != nil {
		t.Fatalf("DecodeWorkReport: %v", err)
	}
	if !bytes.Equal(got.Encode(), r.Encode()) {
		t.Fatal("work report re-encoding diverges")
	}
	if !reflect.DeepEqual(got.Context.Prerequisites, r.Context.Prerequisites) {
		t.Fatal("prerequisites mangled")
	}
}

func TestExtrinsicHashChangesWithContent(t *testing.T) {
	a := sampleExtrinsic()
	b := sampleExtrinsic()
	b.Preimages[0].Blob = []byte("other")
	if a.Hash() == b.Hash() {
		t.Fatal("extrinsic hash insensitive to content")
	}
	var empty Extrinsic
	if empty.Hash().IsZero() {
		t.Fatal("empty extrinsic hash should be a real hash, not zero")
	}
}

func TestHeaderHashStable(t *testing.T) {
	h := sampleHeader()
	if h.Hash() != h.Hash() {
		t.Fatal("header hash not deterministic")
	}
	h2 := sampleHeader()
	h2.Slot++
	if h.Hash() == h2.Hash() {
		t.Fatal("header hash insensitive to slot")
	}
}
