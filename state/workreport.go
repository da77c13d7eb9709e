package state

import (
	"github.com/jamchain/jamd/codec"
	"github.com/jamchain/jamd/types"
)

// PackageSpec identifies a work-package and its erasure-coded availability
// shape.
type PackageSpec struct {
	Hash         types.Hash
	Length       uint32
	ErasureRoot  types.Hash
	ExportsRoot  types.Hash
	ExportsCount uint16
}

// RefineContext carries the anchor and lookup-anchor slots a work-report
// was refined against.
type RefineContext struct {
	Anchor           types.Hash
	AnchorStateRoot  types.Hash
	AnchorBeefyRoot  types.Hash
	LookupAnchor     types.Hash
	LookupAnchorSlot uint32
	Prerequisites    []types.Hash
}

// SegmentRootLookup pairs a dependency work-package hash with the segment
// root it must resolve to.
type SegmentRootLookup struct {
	WorkPackageHash types.Hash
	SegmentRoot     types.Hash
}

// WorkResult is one service's refine output within a work-report.
type WorkResult struct {
	Service        types.ServiceId
	CodeHash       types.Hash
	PayloadHash    types.Hash
	Gas            types.Gas
	Output         []byte // successful output, or nil on failure
	Failed         bool
	AuthOutputSize int
}

// WorkReport is the on-chain record produced by off-chain refinement and
// carried by a guarantee.
type WorkReport struct {
	Spec               PackageSpec
	Context            RefineContext
	CoreIndex          uint16
	AuthorizerHash     types.Hash
	AuthOutput         []byte
	SegmentRootLookup  []SegmentRootLookup
	Results            []WorkResult
	AuthGasUsed        uint64
}

// Dependencies returns the set of work-package hashes this report cannot
// be accumulated before, drawn from its refine context's prerequisites and
// its segment-root lookups.
func (r WorkReport) Dependencies() []types.Hash {
	out := make([]types.Hash, 0, len(r.Context.Prerequisites)+len(r.SegmentRootLookup))
	out = append(out, r.Context.Prerequisites...)
	for _, l := range r.SegmentRootLookup {
		out = append(out, l.WorkPackageHash)
	}
	return out
}

// TotalGas sums the gas declared by every work-result in the report.
func (r WorkReport) TotalGas() types.Gas {
	var total types.Gas
	for _, res := range r.Results {
		total += res.Gas
	}
	return total
}

// Encode serializes the report in its canonical wire order, for
// hashing into a guarantee's signed message.
func (r WorkReport) Encode() []byte {
	e := codec.NewEncoder(0)
	e.Raw(r.Spec.Hash.Bytes())
	e.U32(r.Spec.Length)
	e.Raw(r.Spec.ErasureRoot.Bytes())
	e.Raw(r.Spec.ExportsRoot.Bytes())
	e.U16(r.Spec.ExportsCount)

	e.Raw(r.Context.Anchor.Bytes())
	e.Raw(r.Context.AnchorStateRoot.Bytes())
	e.Raw(r.Context.AnchorBeefyRoot.Bytes())
	e.Raw(r.Context.LookupAnchor.Bytes())
	e.U32(r.Context.LookupAnchorSlot)
	e.Sequence(len(r.Context.Prerequisites), func(i int) { e.Raw(r.Context.Prerequisites[i].Bytes()) })

	e.U16(r.CoreIndex)
	e.Raw(r.AuthorizerHash.Bytes())
	e.VarBytes(r.AuthOutput)

	e.Sequence(len(r.SegmentRootLookup), func(i int) {
		l := r.SegmentRootLookup[i]
		e.Raw(l.WorkPackageHash.Bytes())
		e.Raw(l.SegmentRoot.Bytes())
	})

	e.Sequence(len(r.Results), func(i int) {
		res := r.Results[i]
		e.U32(uint32(res.Service))
		e.Raw(res.CodeHash.Bytes())
		e.Raw(res.PayloadHash.Bytes())
		e.U64(uint64(res.Gas))
		e.Bool(res.Failed)
		e.VarBytes(res.Output)
		e.U32(uint32(res.AuthOutputSize))
	})

	e.U64(r.AuthGasUsed)
	return e.Bytes()
}

// DecodeWorkReport parses the canonical wire encoding produced by Encode.
func DecodeWorkReport(d *codec.Decoder) (WorkReport, error) {
	var r WorkReport
	var err error
	readHash := func() (types.Hash, error) {
		b, err := d.Raw(types.HashLength)
		if err != nil {
			return types.Hash{}, err
		}
		return types.BytesToHash(b), nil
	}

	if r.Spec.Hash, err = readHash(); err != nil {
		return r, err
	}
	if r.Spec.Length, err = d.U32(); err != nil {
		return r, err
	}
	if r.Spec.ErasureRoot, err = readHash(); err != nil {
		return r, err
	}
	if r.Spec.ExportsRoot, err = readHash(); err != nil {
		return r, err
	}
	if r.Spec.ExportsCount, err = d.U16(); err != nil {
		return r, err
	}

	if r.Context.Anchor, err = readHash(); err != nil {
		return r, err
	}
	if r.Context.AnchorStateRoot, err = readHash(); err != nil {
		return r, err
	}
	if r.Context.AnchorBeefyRoot, err = readHash(); err != nil {
		return r, err
	}
	if r.Context.LookupAnchor, err = readHash(); err != nil {
		return r, err
	}
	if r.Context.LookupAnchorSlot, err = d.U32(); err != nil {
		return r, err
	}
	if _, err = d.Sequence(func(int) error {
		h, err := readHash()
		if err != nil {
			return err
		}
		r.Context.Prerequisites = append(r.Context.Prerequisites, h)
		return nil
	}); err != nil {
		return r, err
	}

	if r.CoreIndex, err = d.U16(); err != nil {
		return r, err
	}
	if r.AuthorizerHash, err = readHash(); err != nil {
		return r, err
	}
	if r.AuthOutput, err = d.VarBytes(); err != nil {
		return r, err
	}

	if _, err = d.Sequence(func(int) error {
		var l SegmentRootLookup
		if l.WorkPackageHash, err = readHash(); err != nil {
			return err
		}
		if l.SegmentRoot, err = readHash(); err != nil {
			return err
		}
		r.SegmentRootLookup = append(r.SegmentRootLookup, l)
		return nil
	}); err != nil {
		return r, err
	}

	if _, err = d.Sequence(func(int) error {
		var res WorkResult
		svc, err := d.U32()
		if err != nil {
			return err
		}
		res.Service = types.ServiceId(svc)
		if res.CodeHash, err = readHash(); err != nil {
			return err
		}
		if res.PayloadHash, err = readHash(); err != nil {
			return err
		}
		gas, err := d.U64()
		if err != nil {
			return err
		}
		res.Gas = types.Gas(gas)
		if res.Failed, err = d.Bool(); err != nil {
			return err
		}
		if res.Output, err = d.VarBytes(); err != nil {
			return err
		}
		sz, err := d.U32()
		if err != nil {
			return err
		}
		res.AuthOutputSize = int(sz)
		r.Results = append(r.Results, res)
		return nil
	}); err != nil {
		return r, err
	}

	if r.AuthGasUsed, err = d.U64(); err != nil {
		return r, err
	}
	return r, nil
}
