package consensus

import (
	"github.com/jamchain/jamd/crypto"
	"github.com/jamchain/jamd/state"
	"github.com/jamchain/jamd/types"
)

// AdvanceTime sets the new slot and reports whether it crosses an epoch
// boundary relative to the prior slot.
func AdvanceTime(s *state.State, slot uint32) (epochChanged bool, err error) {
	if slot <= s.Time && s.Time != 0 {
		return false, ErrBadSlot
	}
	prevEpoch := s.Time / types.EpochLength
	newEpoch := slot / types.EpochLength
	s.Time = slot
	return newEpoch > prevEpoch, nil
}

// ReportedWorkPackage pairs a reported work-package hash with its segment
// tree root, recorded in recent history once a guarantee admits the report.
type ReportedWorkPackage = state.ReportedWorkPackage

// AppendHistory inserts the block's accumulation-result root as a new MMR
// leaf, merges peaks, appends the block summary (dropping the oldest on
// overflow), and records the block's reported work-packages.
func AppendHistory(s *state.State, headerHash, accumulationRoot types.Hash, reported []ReportedWorkPackage) {
	s.History.Tree.Append(accumulationRoot)

	summary := state.BlockSummary{
		HeaderHash: headerHash,
		MMRPeaks:   append([]types.Hash(nil), s.History.Tree.Peaks...),
		StateRoot:  s.Root(),
		ReportedWP: reported,
	}
	s.History.Append(summary)
}

// BeefyRoot folds a block summary's accumulation-MMR peaks into the single
// commitment a refine context anchors to. An empty range commits to the
// zero hash.
func BeefyRoot(peaks []types.Hash) types.Hash {
	buf := make([]byte, 0, len(peaks)*types.HashLength)
	empty := true
	for _, p := range peaks {
		if !p.IsZero() {
			empty = false
		}
		buf = append(buf, p.Bytes()...)
	}
	if empty {
		return types.Hash{}
	}
	return crypto.Keccak256Hash(buf)
}
