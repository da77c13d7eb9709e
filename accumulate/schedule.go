package accumulate

import (
	"github.com/jamchain/jamd/state"
	"github.com/jamchain/jamd/types"
)

// Schedule builds the block's accumulatable sequence from the newly
// available reports: reports with no prerequisites and no segment-root
// lookups run immediately; the rest are
// queued against the slot's ready-queue entry, and the whole queue is then
// drained topologically with already-accumulated and immediate package
// hashes counted as satisfied dependencies.
//
// The ready queue is mutated in place: the current slot's entry is
// replaced (expiring anything queued a full epoch ago), and every emitted
// record is removed from its slot.
func Schedule(s *state.State, newlyAvailable []state.WorkReport, slot uint32) []state.WorkReport {
	satisfied := make(map[types.Hash]struct{})
	for _, epoch := range s.Accumulated.Epochs {
		for _, h := range epoch {
			satisfied[h] = struct{}{}
		}
	}

	var immediate []state.WorkReport
	var queued []state.ReadyRecord
	for _, r := range newlyAvailable {
		deps := r.Dependencies()
		if len(deps) == 0 {
			immediate = append(immediate, r)
			satisfied[r.Spec.Hash] = struct{}{}
			continue
		}
		depSet := make(map[types.Hash]struct{}, len(deps))
		for _, d := range deps {
			if _, ok := satisfied[d]; ok {
				continue
			}
			depSet[d] = struct{}{}
		}
		queued = append(queued, state.ReadyRecord{Report: r, Dependencies: depSet})
	}

	idx := int(slot) % len(s.Ready.Slots)
	s.Ready.Slots[idx] = queued

	// Drain the queue oldest slot first, current slot last, repeating until
	// a pass emits nothing.
	emitted := immediate
	for {
		var newly []types.Hash
		for off := 1; off <= len(s.Ready.Slots); off++ {
			si := (idx + off) % len(s.Ready.Slots)
			var keep []state.ReadyRecord
			for _, rec := range s.Ready.Slots[si] {
				for d := range rec.Dependencies {
					if _, ok := satisfied[d]; ok {
						delete(rec.Dependencies, d)
					}
				}
				if len(rec.Dependencies) == 0 {
					emitted = append(emitted, rec.Report)
					newly = append(newly, rec.Report.Spec.Hash)
					continue
				}
				keep = append(keep, rec)
			}
			s.Ready.Slots[si] = keep
		}
		if len(newly) == 0 {
			return emitted
		}
		for _, h := range newly {
			satisfied[h] = struct{}{}
		}
	}
}

// Requeue pushes reports that were scheduled but not executed (the gas
// budget ran out first) back onto the slot's ready-queue entry with empty
// dependency sets, so a later block drains them first.
func Requeue(s *state.State, reports []state.WorkReport, slot uint32) {
	if len(reports) == 0 {
		return
	}
	idx := int(slot) % len(s.Ready.Slots)
	for _, r := range reports {
		s.Ready.Slots[idx] = append(s.Ready.Slots[idx], state.ReadyRecord{
			Report:       r,
			Dependencies: make(map[types.Hash]struct{}),
		})
	}
}
