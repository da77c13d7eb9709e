package consensus

import (
	"sort"

	"github.com/jamchain/jamd/block"
	"github.com/jamchain/jamd/crypto"
	"github.com/jamchain/jamd/state"
	"github.com/jamchain/jamd/types"
)

// GuaranteesOutput is the per-report list of sorted guarantor keys.
type GuaranteesOutput struct {
	Reporters [][]types.Ed25519Public
}

// PipelineSet is the union of work-package hashes that may not be
// reported again: recent history, ready-queue dependencies, accumulated
// history, and reports currently pending availability.
func PipelineSet(s *state.State) map[types.Hash]struct{} {
	out := make(map[types.Hash]struct{})
	for _, b := range s.History.Blocks {
		for _, r := range b.ReportedWP {
			out[r.WorkPackageHash] = struct{}{}
		}
	}
	for _, slot := range s.Ready.Slots {
		for _, rec := range slot {
			out[rec.Report.Spec.Hash] = struct{}{}
			for dep := range rec.Dependencies {
				out[dep] = struct{}{}
			}
		}
	}
	for _, epoch := range s.Accumulated.Epochs {
		for _, h := range epoch {
			out[h] = struct{}{}
		}
	}
	for _, slot := range s.Availability {
		if slot.Report != nil {
			out[slot.Report.Spec.Hash] = struct{}{}
		}
	}
	return out
}

// ApplyGuarantees validates and admits the block's guarantees extrinsic,
// mutating s.Availability on success.
func ApplyGuarantees(s *state.State, guarantees []block.Guarantee, slot uint32, verifier *crypto.CachedEd25519Verifier) (GuaranteesOutput, error) {
	var out GuaranteesOutput

	if len(guarantees) > types.CoresCount {
		return out, ErrTooManyGuarantees
	}

	for i := 1; i < len(guarantees); i++ {
		if guarantees[i-1].Report.CoreIndex >= guarantees[i].Report.CoreIndex {
			return out, ErrOutOfOrderGuarantee
		}
	}

	pipeline := PipelineSet(s)
	seenThisBlock := make(map[types.Hash]struct{})
	extrinsicPackages := make(map[types.Hash]struct{}, len(guarantees))
	for _, g := range guarantees {
		extrinsicPackages[g.Report.Spec.Hash] = struct{}{}
	}

	currentRotation := RotationNumber(slot)

	for _, g := range guarantees {
		r := g.Report

		if int(r.CoreIndex) >= types.CoresCount {
			return out, ErrBadCoreIndex
		}
		if _, dup := seenThisBlock[r.Spec.Hash]; dup {
			return out, ErrDuplicatePackage
		}
		if _, dup := pipeline[r.Spec.Hash]; dup {
			return out, ErrDuplicatePackage
		}
		seenThisBlock[r.Spec.Hash] = struct{}{}

		if !s.Auth.Pools[r.CoreIndex].Contains(r.AuthorizerHash) {
			return out, ErrCoreUnauthorized
		}

		summary, ok := s.History.ContainsAnchor(r.Context.Anchor)
		if !ok {
			return out, ErrAnchorNotRecent
		}
		if summary.StateRoot != r.Context.AnchorStateRoot {
			return out, ErrBadStateRoot
		}
		if BeefyRoot(summary.MMRPeaks) != r.Context.AnchorBeefyRoot {
			return out, ErrBadBeefyMmrRoot
		}
		if r.Context.LookupAnchorSlot+types.MaxAgeLookupAnchor < slot {
			return out, ErrBadLookupAnchorSlot
		}

		if len(r.Results) == 0 || len(r.Results) > types.MaxWorkItems {
			return out, ErrBadCoreIndex
		}
		var total types.Gas
		outSize := len(r.AuthOutput)
		for _, res := range r.Results {
			acc, ok := s.Accounts[res.Service]
			if !ok {
				return out, ErrBadServiceId
			}
			if acc.CodeHash != res.CodeHash {
				return out, ErrBadCodeHash
			}
			if res.Gas < acc.AccMinGas {
				return out, ErrServiceItemGasTooLow
			}
			total += res.Gas
			outSize += len(res.Output)
		}
		if total > types.WorkReportGasLimit {
			return out, ErrWorkReportGasTooHigh
		}
		if outSize > types.MaxOutputBlobSize {
			return out, ErrWorkReportTooBig
		}

		if len(r.Context.Prerequisites)+len(r.SegmentRootLookup) > types.MaxWorkItems*4 {
			return out, ErrTooManyDependencies
		}
		for _, dep := range r.Context.Prerequisites {
			if !dependencyKnown(s, extrinsicPackages, dep) {
				return out, ErrDependencyMissing
			}
		}
		for _, l := range r.SegmentRootLookup {
			found := false
			for _, b := range s.History.Blocks {
				for _, rep := range b.ReportedWP {
					if rep.WorkPackageHash == l.WorkPackageHash {
						found = true
						if rep.SegmentTreeRoot != l.SegmentRoot {
							return out, ErrSegmentRootLookupInvalid
						}
					}
				}
			}
			if !found {
				if _, inExtrinsic := extrinsicPackages[l.WorkPackageHash]; !inExtrinsic {
					return out, ErrDependencyMissing
				}
			}
		}

		if g.Slot > slot {
			return out, ErrFutureReportSlot
		}
		guaranteeRotation := RotationNumber(g.Slot)
		var assignment []uint16
		switch {
		case guaranteeRotation == currentRotation:
			assignment = CoreAssignment(currentRotation, s.Entropy[2])
		case guaranteeRotation+1 == currentRotation:
			assignment = CoreAssignment(currentRotation-1, s.Entropy[2])
		default:
			return out, ErrReportEpochBeforeLast
		}

		for i := 1; i < len(g.Signatures); i++ {
			if g.Signatures[i-1].ValidatorIndex >= g.Signatures[i].ValidatorIndex {
				return out, ErrNotSortedOrUniqueGuarantors
			}
		}
		if len(g.Signatures) < 2 || len(g.Signatures) > 3 {
			return out, ErrInsufficientGuarantees
		}

		msg := crypto.DomainMessage(types.DomainGuarantee, crypto.Blake2b256(r.Encode()))
		reporters := make([]types.Ed25519Public, 0, len(g.Signatures))
		for _, sig := range g.Signatures {
			if int(sig.ValidatorIndex) >= len(assignment) {
				return out, ErrBadValidatorIndex
			}
			if assignment[sig.ValidatorIndex] != r.CoreIndex {
				return out, ErrWrongAssignment
			}
			key := s.Validators.Current[sig.ValidatorIndex].Ed25519
			if !verifier.Verify(key, msg, sig.Signature) {
				return out, ErrBadSignature
			}
			reporters = append(reporters, key)
		}
		sort.Slice(reporters, func(i, j int) bool { return lessKey(reporters[i], reporters[j]) })

		if !s.Availability[r.CoreIndex].Empty() {
			return out, ErrCoreEngaged
		}
		rc := r
		s.Availability[r.CoreIndex] = state.AvailabilitySlot{Report: &rc, Timeout: slot}
		s.Auth.Pools[r.CoreIndex].Remove(r.AuthorizerHash)
		out.Reporters = append(out.Reporters, reporters)
	}

	return out, nil
}

// ReplenishAuthPools moves one authorizer from each core's fixed queue into
// its pool, cycling through the queue by slot.
func ReplenishAuthPools(s *state.State, slot uint32) {
	for core := range s.Auth.Pools {
		q := s.Auth.Queues[core]
		if len(q.Hashes) == 0 {
			continue
		}
		s.Auth.Pools[core].Push(q.Hashes[int(slot)%len(q.Hashes)])
	}
}

func dependencyKnown(s *state.State, extrinsicPackages map[types.Hash]struct{}, dep types.Hash) bool {
	if _, ok := extrinsicPackages[dep]; ok {
		return true
	}
	for _, b := range s.History.Blocks {
		for _, rep := range b.ReportedWP {
			if rep.WorkPackageHash == dep {
				return true
			}
		}
	}
	return false
}
