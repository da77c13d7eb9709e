package state

import "github.com/jamchain/jamd/types"

// Disputes holds the three disjoint work-report hash sets plus the
// offender ledger. The disjointness invariant
// (good ∩ bad ∩ wonky = ∅) is maintained by consensus/disputes.go; this
// type only stores the sets.
type Disputes struct {
	Good      map[types.Hash]struct{}
	Bad       map[types.Hash]struct{}
	Wonky     map[types.Hash]struct{}
	Offenders map[types.Ed25519Public]struct{}
}

// NewDisputes returns an empty Disputes record set.
func NewDisputes() Disputes {
	return Disputes{
		Good:      make(map[types.Hash]struct{}),
		Bad:       make(map[types.Hash]struct{}),
		Wonky:     make(map[types.Hash]struct{}),
		Offenders: make(map[types.Ed25519Public]struct{}),
	}
}

// Classified reports whether target already appears in any of the three
// disjoint sets.
func (d Disputes) Classified(target types.Hash) bool {
	_, g := d.Good[target]
	_, b := d.Bad[target]
	_, w := d.Wonky[target]
	return g || b || w
}

// Clone returns a deep copy, used before speculatively applying a
// disputes sub-transition that might be rejected.
func (d Disputes) Clone() Disputes {
	out := NewDisputes()
	for k := range d.Good {
		out.Good[k] = struct{}{}
	}
	for k := range d.Bad {
		out.Bad[k] = struct{}{}
	}
	for k := range d.Wonky {
		out.Wonky[k] = struct{}{}
	}
	for k := range d.Offenders {
		out.Offenders[k] = struct{}{}
	}
	return out
}
