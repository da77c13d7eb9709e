package state

import "github.com/jamchain/jamd/types"

// ValidatorActivity counts one validator's per-epoch contributions.
type ValidatorActivity struct {
	BlocksAuthored    uint32
	TicketsIncluded   uint32
	PreimagesProvided uint32
	GuaranteesSigned  uint32
	AssurancesSigned  uint32
}

// CoreActivity counts one core's per-epoch activity.
type CoreActivity struct {
	GasUsed      uint64
	Imports      uint32
	Exports      uint32
	BundleSize   uint64
	Popularity   uint32
}

// ServiceActivity counts one service's per-epoch activity.
type ServiceActivity struct {
	PreimagesProvided uint32
	RefinementGas     uint64
	AccumulateGas     uint64
	OnTransferGas     uint64
}

// Snapshot is the activity counters for one epoch, indexed by validator
// index, core index, and service id respectively.
type Snapshot struct {
	Validators []ValidatorActivity
	Cores      []CoreActivity
	Services   map[types.ServiceId]ServiceActivity
}

// newSnapshot allocates a zeroed snapshot for the given validator/core
// counts.
func newSnapshot(validators, cores int) Snapshot {
	return Snapshot{
		Validators: make([]ValidatorActivity, validators),
		Cores:      make([]CoreActivity, cores),
		Services:   make(map[types.ServiceId]ServiceActivity),
	}
}

// Statistics holds the current and previous epoch's activity snapshots.
type Statistics struct {
	Curr Snapshot
	Prev Snapshot
}

// NewStatistics allocates empty current/previous snapshots.
func NewStatistics(validators, cores int) Statistics {
	return Statistics{
		Curr: newSnapshot(validators, cores),
		Prev: newSnapshot(validators, cores),
	}
}

// RotateEpoch moves curr into prev and resets curr to zero, the pure
// epoch-boundary bookkeeping step.
func (s *Statistics) RotateEpoch(validators, cores int) {
	s.Prev = s.Curr
	s.Curr = newSnapshot(validators, cores)
}

func (sn Snapshot) clone() Snapshot {
	out := Snapshot{
		Validators: append([]ValidatorActivity(nil), sn.Validators...),
		Cores:      append([]CoreActivity(nil), sn.Cores...),
		Services:   make(map[types.ServiceId]ServiceActivity, len(sn.Services)),
	}
	for id, act := range sn.Services {
		out.Services[id] = act
	}
	return out
}

// Clone returns a deep copy of both snapshots.
func (s Statistics) Clone() Statistics {
	return Statistics{Curr: s.Curr.clone(), Prev: s.Prev.clone()}
}
