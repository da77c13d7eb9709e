package block

import (
	"github.com/jamchain/jamd/codec"
	"github.com/jamchain/jamd/crypto"
	"github.com/jamchain/jamd/state"
	"github.com/jamchain/jamd/types"
)

// Encode serializes the header in its canonical wire order:
// parent, parent_state_root, extrinsic_hash, slot, the two optional marks,
// the offenders list, author index, and the two VRF signatures.
func (h Header) Encode() []byte {
	e := codec.NewEncoder(256)
	e.Raw(h.Parent.Bytes())
	e.Raw(h.ParentStateRoot.Bytes())
	e.Raw(h.ExtrinsicHash.Bytes())
	e.U32(h.Slot)

	if h.EpochMark == nil {
		e.Byte(0)
	} else {
		e.Byte(1)
		e.Raw(h.EpochMark.Entropy.Bytes())
		e.Raw(h.EpochMark.TicketsEntropy.Bytes())
		e.Sequence(len(h.EpochMark.Keys), func(i int) { e.Raw(h.EpochMark.Keys[i][:]) })
	}

	if h.TicketsMark == nil {
		e.Byte(0)
	} else {
		e.Byte(1)
		e.Sequence(len(h.TicketsMark.Tickets), func(i int) {
			t := h.TicketsMark.Tickets[i]
			e.Raw(t.Id.Bytes())
			e.Byte(t.Attempt)
		})
	}

	e.Sequence(len(h.Offenders), func(i int) { e.Raw(h.Offenders[i][:]) })
	e.U16(h.AuthorIndex)
	e.Raw(h.EntropySource[:])
	e.Raw(h.Seal[:])
	return e.Bytes()
}

// Hash returns the Blake2b-256 hash of the canonical header encoding, the
// identity every child block names as its parent.
func (h Header) Hash() types.Hash {
	return crypto.Blake2b256Hash(h.Encode())
}

// DecodeHeader parses a canonical header encoding.
func DecodeHeader(d *codec.Decoder) (Header, error) {
	var h Header
	var err error
	if h.Parent, err = decodeHash(d); err != nil {
		return h, err
	}
	if h.ParentStateRoot, err = decodeHash(d); err != nil {
		return h, err
	}
	if h.ExtrinsicHash, err = decodeHash(d); err != nil {
		return h, err
	}
	if h.Slot, err = d.U32(); err != nil {
		return h, err
	}

	present, err := d.Bool()
	if err != nil {
		return h, err
	}
	if present {
		var m EpochMark
		if m.Entropy, err = decodeHash(d); err != nil {
			return h, err
		}
		if m.TicketsEntropy, err = decodeHash(d); err != nil {
			return h, err
		}
		if _, err = d.Sequence(func(int) error {
			b, err := d.Raw(types.BandersnatchPublicLength)
			if err != nil {
				return err
			}
			var k types.BandersnatchPublic
			copy(k[:], b)
			m.Keys = append(m.Keys, k)
			return nil
		}); err != nil {
			return h, err
		}
		h.EpochMark = &m
	}

	if present, err = d.Bool(); err != nil {
		return h, err
	}
	if present {
		var m TicketsMark
		if _, err = d.Sequence(func(int) error {
			var t state.TicketBody
			if t.Id, err = decodeHash(d); err != nil {
				return err
			}
			if t.Attempt, err = d.Byte(); err != nil {
				return err
			}
			m.Tickets = append(m.Tickets, t)
			return nil
		}); err != nil {
			return h, err
		}
		h.TicketsMark = &m
	}

	if _, err = d.Sequence(func(int) error {
		b, err := d.Raw(types.Ed25519PublicLength)
		if err != nil {
			return err
		}
		var k types.Ed25519Public
		copy(k[:], b)
		h.Offenders = append(h.Offenders, k)
		return nil
	}); err != nil {
		return h, err
	}

	if h.AuthorIndex, err = d.U16(); err != nil {
		return h, err
	}
	b, err := d.Raw(types.BandersnatchSignatureLength)
	if err != nil {
		return h, err
	}
	copy(h.EntropySource[:], b)
	if b, err = d.Raw(types.BandersnatchSignatureLength); err != nil {
		return h, err
	}
	copy(h.Seal[:], b)
	return h, nil
}

// Encode serializes the extrinsic in its canonical wire order: tickets,
// disputes, preimages, assurances, guarantees, each length-prefixed.
func (x Extrinsic) Encode() []byte {
	e := codec.NewEncoder(512)

	e.Sequence(len(x.Tickets), func(i int) {
		t := x.Tickets[i]
		e.Byte(t.Attempt)
		e.Raw(t.Proof[:])
	})

	e.Sequence(len(x.Disputes.Verdicts), func(i int) {
		v := x.Disputes.Verdicts[i]
		e.Raw(v.Target.Bytes())
		e.U32(v.Age)
		e.Sequence(len(v.Judgements), func(j int) {
			jd := v.Judgements[j]
			e.Bool(jd.Vote)
			e.U16(jd.ValidatorIndex)
			e.Raw(jd.Signature[:])
		})
	})
	e.Sequence(len(x.Disputes.Culprits), func(i int) {
		c := x.Disputes.Culprits[i]
		e.Raw(c.Target.Bytes())
		e.Raw(c.Key[:])
		e.Raw(c.Signature[:])
	})
	e.Sequence(len(x.Disputes.Faults), func(i int) {
		f := x.Disputes.Faults[i]
		e.Raw(f.Target.Bytes())
		e.Bool(f.Vote)
		e.Raw(f.Key[:])
		e.Raw(f.Signature[:])
	})

	e.Sequence(len(x.Preimages), func(i int) {
		p := x.Preimages[i]
		e.U32(uint32(p.Requester))
		e.VarBytes(p.Blob)
	})

	e.Sequence(len(x.Assurances), func(i int) {
		a := x.Assurances[i]
		e.Raw(a.Anchor.Bytes())
		e.VarBytes(a.Bitfield)
		e.U16(a.ValidatorIndex)
		e.Raw(a.Signature[:])
	})

	e.Sequence(len(x.Guarantees), func(i int) {
		g := x.Guarantees[i]
		e.VarBytes(g.Report.Encode())
		e.U32(g.Slot)
		e.Sequence(len(g.Signatures), func(j int) {
			s := g.Signatures[j]
			e.U16(s.ValidatorIndex)
			e.Raw(s.Signature[:])
		})
	})

	return e.Bytes()
}

// Hash returns the Blake2b-256 hash of the canonical extrinsic encoding,
// committed to by the header's extrinsic_hash field.
func (x Extrinsic) Hash() types.Hash {
	return crypto.Blake2b256Hash(x.Encode())
}

// Encode serializes the full block: header then extrinsic.
func (b Block) Encode() []byte {
	e := codec.NewEncoder(1024)
	e.Raw(b.Header.Encode())
	e.Raw(b.Extrinsic.Encode())
	return e.Bytes()
}

// DecodeExtrinsic parses a canonical extrinsic encoding.
func DecodeExtrinsic(d *codec.Decoder) (Extrinsic, error) {
	var x Extrinsic
	var err error

	if _, err = d.Sequence(func(int) error {
		var t Ticket
		if t.Attempt, err = d.Byte(); err != nil {
			return err
		}
		b, err := d.Raw(types.RingVRFSignatureLength)
		if err != nil {
			return err
		}
		copy(t.Proof[:], b)
		x.Tickets = append(x.Tickets, t)
		return nil
	}); err != nil {
		return x, err
	}

	if _, err = d.Sequence(func(int) error {
		var v Verdict
		if v.Target, err = decodeHash(d); err != nil {
			return err
		}
		if v.Age, err = d.U32(); err != nil {
			return err
		}
		if _, err = d.Sequence(func(int) error {
			var j Judgement
			if j.Vote, err = d.Bool(); err != nil {
				return err
			}
			if j.ValidatorIndex, err = d.U16(); err != nil {
				return err
			}
			if j.Signature, err = decodeEdSignature(d); err != nil {
				return err
			}
			v.Judgements = append(v.Judgements, j)
			return nil
		}); err != nil {
			return err
		}
		x.Disputes.Verdicts = append(x.Disputes.Verdicts, v)
		return nil
	}); err != nil {
		return x, err
	}
	if _, err = d.Sequence(func(int) error {
		var c Culprit
		if c.Target, err = decodeHash(d); err != nil {
			return err
		}
		if c.Key, err = decodeEdPublic(d); err != nil {
			return err
		}
		if c.Signature, err = decodeEdSignature(d); err != nil {
			return err
		}
		x.Disputes.Culprits = append(x.Disputes.Culprits, c)
		return nil
	}); err != nil {
		return x, err
	}
	if _, err = d.Sequence(func(int) error {
		var f Fault
		if f.Target, err = decodeHash(d); err != nil {
			return err
		}
		if f.Vote, err = d.Bool(); err != nil {
			return err
		}
		if f.Key, err = decodeEdPublic(d); err != nil {
			return err
		}
		if f.Signature, err = decodeEdSignature(d); err != nil {
			return err
		}
		x.Disputes.Faults = append(x.Disputes.Faults, f)
		return nil
	}); err != nil {
		return x, err
	}

	if _, err = d.Sequence(func(int) error {
		var p Preimage
		req, err := d.U32()
		if err != nil {
			return err
		}
		p.Requester = types.ServiceId(req)
		if p.Blob, err = d.VarBytes(); err != nil {
			return err
		}
		x.Preimages = append(x.Preimages, p)
		return nil
	}); err != nil {
		return x, err
	}

	if _, err = d.Sequence(func(int) error {
		var a Assurance
		if a.Anchor, err = decodeHash(d); err != nil {
			return err
		}
		if a.Bitfield, err = d.VarBytes(); err != nil {
			return err
		}
		if a.ValidatorIndex, err = d.U16(); err != nil {
			return err
		}
		if a.Signature, err = decodeEdSignature(d); err != nil {
			return err
		}
		x.Assurances = append(x.Assurances, a)
		return nil
	}); err != nil {
		return x, err
	}

	if _, err = d.Sequence(func(int) error {
		var g Guarantee
		reportBytes, err := d.VarBytes()
		if err != nil {
			return err
		}
		if g.Report, err = state.DecodeWorkReport(codec.NewDecoder(reportBytes)); err != nil {
			return err
		}
		if g.Slot, err = d.U32(); err != nil {
			return err
		}
		if _, err = d.Sequence(func(int) error {
			var s GuarantorSignature
			if s.ValidatorIndex, err = d.U16(); err != nil {
				return err
			}
			if s.Signature, err = decodeEdSignature(d); err != nil {
				return err
			}
			g.Signatures = append(g.Signatures, s)
			return nil
		}); err != nil {
			return err
		}
		x.Guarantees = append(x.Guarantees, g)
		return nil
	}); err != nil {
		return x, err
	}

	return x, nil
}

// DecodeBlock parses a full canonical block encoding, requiring the input
// to be fully consumed.
func DecodeBlock(b []byte) (Block, error) {
	d := codec.NewDecoder(b)
	h, err := DecodeHeader(d)
	if err != nil {
		return Block{}, err
	}
	x, err := DecodeExtrinsic(d)
	if err != nil {
		return Block{}, err
	}
	if !d.Done() {
		return Block{}, codec.ErrTrailingBytes
	}
	return Block{Header: h, Extrinsic: x}, nil
}

func decodeHash(d *codec.Decoder) (types.Hash, error) {
	b, err := d.Raw(types.HashLength)
	if err != nil {
		return types.Hash{}, err
	}
	return types.BytesToHash(b), nil
}

func decodeEdPublic(d *codec.Decoder) (types.Ed25519Public, error) {
	b, err := d.Raw(types.Ed25519PublicLength)
	if err != nil {
		return types.Ed25519Public{}, err
	}
	return types.BytesToEd25519Public(b), nil
}

func decodeEdSignature(d *codec.Decoder) (types.Ed25519Signature, error) {
	b, err := d.Raw(types.Ed25519SignatureLength)
	if err != nil {
		return types.Ed25519Signature{}, err
	}
	var s types.Ed25519Signature
	copy(s[:], b)
	return s, nil
}
