package consensus

import (
	"github.com/jamchain/jamd/state"
	"github.com/jamchain/jamd/types"
)

// StatsInput bundles the per-block contributions the pure statistics
// bookkeeping sub-transition folds into the current epoch's snapshot.
// It never fails.
type StatsInput struct {
	AuthorIndex       uint16
	TicketsIncluded   map[uint16]uint32
	PreimagesByAuthor map[types.ServiceId]uint32
	GuarantorIndexes  [][]uint16
	AssurerIndexes    []uint16
	CoreGas           map[uint16]uint64
	CoreBundleSize    map[uint16]uint64
	CorePopularity    map[uint16]uint32
	ServiceRefineGas  map[types.ServiceId]uint64
	ServiceAccGas     map[types.ServiceId]uint64
	ServiceXferGas    map[types.ServiceId]uint64
}

// ApplyStatistics folds in one block's activity counters.
func ApplyStatistics(s *state.State, in StatsInput) {
	curr := &s.Stats.Curr
	if int(in.AuthorIndex) < len(curr.Validators) {
		curr.Validators[in.AuthorIndex].BlocksAuthored++
	}
	for idx, n := range in.TicketsIncluded {
		if int(idx) < len(curr.Validators) {
			curr.Validators[idx].TicketsIncluded += n
		}
	}
	for _, guarantors := range in.GuarantorIndexes {
		for _, idx := range guarantors {
			if int(idx) < len(curr.Validators) {
				curr.Validators[idx].GuaranteesSigned++
			}
		}
	}
	for _, idx := range in.AssurerIndexes {
		if int(idx) < len(curr.Validators) {
			curr.Validators[idx].AssurancesSigned++
		}
	}

	for core, gas := range in.CoreGas {
		if int(core) < len(curr.Cores) {
			curr.Cores[core].GasUsed += gas
		}
	}
	for core, size := range in.CoreBundleSize {
		if int(core) < len(curr.Cores) {
			curr.Cores[core].BundleSize += size
		}
	}
	for core, pop := range in.CorePopularity {
		if int(core) < len(curr.Cores) {
			curr.Cores[core].Popularity += pop
		}
	}

	for svc, n := range in.PreimagesByAuthor {
		act := curr.Services[svc]
		act.PreimagesProvided += n
		curr.Services[svc] = act
	}
	for svc, gas := range in.ServiceRefineGas {
		act := curr.Services[svc]
		act.RefinementGas += gas
		curr.Services[svc] = act
	}
	for svc, gas := range in.ServiceAccGas {
		act := curr.Services[svc]
		act.AccumulateGas += gas
		curr.Services[svc] = act
	}
	for svc, gas := range in.ServiceXferGas {
		act := curr.Services[svc]
		act.OnTransferGas += gas
		curr.Services[svc] = act
	}
}

// RotateStatistics moves curr into prev and resets curr, per the epoch
// boundary.
func RotateStatistics(s *state.State) {
	s.Stats.RotateEpoch(types.ValidatorsCount, types.CoresCount)
}
