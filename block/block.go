// Package block defines the on-wire block, header, and extrinsic shapes
// consumed by the consensus and stf packages.
package block

import (
	"github.com/jamchain/jamd/state"
	"github.com/jamchain/jamd/types"
)

// EpochMark is present in the header only on an epoch transition: the new
// epoch's entropy and the Bandersnatch keys of the next validator set.
type EpochMark struct {
	Entropy      types.Hash
	TicketsEntropy types.Hash
	Keys         []types.BandersnatchPublic
}

// TicketsMark is present in the header only when the ticket accumulator
// finalizes into the outside-in sealing schedule.
type TicketsMark struct {
	Tickets []state.TicketBody
}

// Header is a block's unsigned header plus its two VRF signatures.
type Header struct {
	Parent          types.Hash
	ParentStateRoot types.Hash
	ExtrinsicHash   types.Hash
	Slot            uint32
	EpochMark       *EpochMark
	TicketsMark     *TicketsMark
	Offenders       []types.Ed25519Public
	AuthorIndex     uint16
	EntropySource   types.BandersnatchSignature
	Seal            types.BandersnatchSignature
}

// Ticket is one ticket-submission extrinsic entry.
type Ticket struct {
	Attempt uint8
	Proof   types.RingVRFSignature
}

// Judgement is one validator's vote within a Verdict.
type Judgement struct {
	Vote           bool
	ValidatorIndex uint16
	Signature      types.Ed25519Signature
}

// Verdict carries the votes cast for a single disputed report-hash.
type Verdict struct {
	Target     types.Hash
	Age        uint32
	Judgements []Judgement
}

// Culprit accuses a validator key of having guaranteed a report that was
// subsequently judged bad.
type Culprit struct {
	Target    types.Hash
	Key       types.Ed25519Public
	Signature types.Ed25519Signature
}

// Fault accuses a validator key of having voted against the eventual
// verdict for a report.
type Fault struct {
	Target    types.Hash
	Vote      bool
	Key       types.Ed25519Public
	Signature types.Ed25519Signature
}

// DisputesExtrinsic bundles the three dispute evidence kinds.
type DisputesExtrinsic struct {
	Verdicts []Verdict
	Culprits []Culprit
	Faults   []Fault
}

// Guarantee carries a work-report plus the signatures of the validators
// assigned to guarantee it.
type Guarantee struct {
	Report     state.WorkReport
	Slot       uint32
	Signatures []GuarantorSignature
}

// GuarantorSignature is one validator's signature over a guaranteed report.
type GuarantorSignature struct {
	ValidatorIndex uint16
	Signature      types.Ed25519Signature
}

// Assurance attests to a set of cores' data availability.
type Assurance struct {
	Anchor         types.Hash
	Bitfield       []byte
	ValidatorIndex uint16
	Signature      types.Ed25519Signature
}

// Preimage is a provided preimage blob attributed to a requesting service.
type Preimage struct {
	Requester types.ServiceId
	Blob      []byte
}

// Extrinsic bundles the five extrinsic classes carried by a block, encoded
// in this fixed order.
type Extrinsic struct {
	Tickets   []Ticket
	Disputes  DisputesExtrinsic
	Preimages []Preimage
	Assurances []Assurance
	Guarantees []Guarantee
}

// Block is a header plus its extrinsic.
type Block struct {
	Header    Header
	Extrinsic Extrinsic
}
