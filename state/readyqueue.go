package state

import "github.com/jamchain/jamd/types"

// ReadyRecord is a queued work-report plus the set of work-package hashes
// it still depends on).
type ReadyRecord struct {
	Report       WorkReport
	Dependencies map[types.Hash]struct{}
}

// ReadyQueue is the EPOCH_LENGTH-slot circular buffer of queued reports,
// indexed by τ mod EPOCH_LENGTH.
type ReadyQueue struct {
	Slots [][]ReadyRecord
}

// NewReadyQueue allocates an empty queue of the given length.
func NewReadyQueue(epochLength int) ReadyQueue {
	return ReadyQueue{Slots: make([][]ReadyRecord, epochLength)}
}

// Q performs the queue's topological extraction: records
// whose dependency set is empty are emitted in order, and each emitted
// report's hash is removed from the remaining records' dependency sets,
// repeating until no further record can be emitted.
func Q(records []ReadyRecord) ([]WorkReport, []ReadyRecord) {
	remaining := make([]ReadyRecord, len(records))
	copy(remaining, records)

	var emitted []WorkReport
	for {
		var next []ReadyRecord
		var newlyEmitted []types.Hash
		for _, r := range remaining {
			if len(r.Dependencies) == 0 {
				emitted = append(emitted, r.Report)
				newlyEmitted = append(newlyEmitted, r.Report.Spec.Hash)
				continue
			}
			next = append(next, r)
		}
		if len(newlyEmitted) == 0 {
			remaining = next
			break
		}
		for i := range next {
			for _, h := range newlyEmitted {
				delete(next[i].Dependencies, h)
			}
		}
		remaining = next
	}
	return emitted, remaining
}

// AccumulatedHistory is the EPOCH_LENGTH-deep deque of sorted accumulated
// work-package hash lists.
type AccumulatedHistory struct {
	Epochs [][]types.Hash
	Max    int
}

// NewAccumulatedHistory returns an empty history of the given depth.
func NewAccumulatedHistory(max int) AccumulatedHistory {
	return AccumulatedHistory{Max: max}
}

// Push appends one block's accumulated hash list, dropping the oldest
// entry once the deque is full.
func (h *AccumulatedHistory) Push(hashes []types.Hash) {
	h.Epochs = append(h.Epochs, hashes)
	if h.Max > 0 && len(h.Epochs) > h.Max {
		h.Epochs = h.Epochs[len(h.Epochs)-h.Max:]
	}
}

// Contains reports whether hash appears in any recorded epoch.
func (h AccumulatedHistory) Contains(hash types.Hash) bool {
	for _, epoch := range h.Epochs {
		for _, x := range epoch {
			if x == hash {
				return true
			}
		}
	}
	return false
}
