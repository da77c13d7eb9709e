package state

import (
	"github.com/jamchain/jamd/crypto"
	"github.com/jamchain/jamd/types"
)

// MMR is an append-only Merkle Mountain Range accumulator over accumulation
// roots. Peaks[i] is the root of a perfect binary subtree of 2^i leaves, or
// the zero hash if no such peak exists at that height.
type MMR struct {
	Peaks []types.Hash
}

// Append adds leaf to the range, merging peaks right-to-left whenever two
// peaks of the same height collide.
func (m *MMR) Append(leaf types.Hash) {
	carry := leaf
	for i := 0; i < len(m.Peaks); i++ {
		if m.Peaks[i].IsZero() {
			m.Peaks[i] = carry
			return
		}
		carry = crypto.Keccak256Hash(m.Peaks[i].Bytes(), carry.Bytes())
		m.Peaks[i] = types.Hash{}
	}
	m.Peaks = append(m.Peaks, carry)
}

// BlockSummary is one entry of the recent-history deque: a block's header
// hash, the MMR peaks as of that block, its state root, and the reported
// work-packages in that block.
type BlockSummary struct {
	HeaderHash  types.Hash
	MMRPeaks    []types.Hash
	StateRoot   types.Hash
	ReportedWP  []ReportedWorkPackage
}

// ReportedWorkPackage pairs a work-package hash with its segment-tree root.
type ReportedWorkPackage struct {
	WorkPackageHash types.Hash
	SegmentTreeRoot types.Hash
}

// RecentHistory is the bounded deque of recent block summaries plus the
// running MMR over accumulation roots.
type RecentHistory struct {
	Blocks []BlockSummary
	Tree   MMR
	Max    int
}

// NewRecentHistory returns an empty history bounded to max entries.
func NewRecentHistory(max int) RecentHistory {
	return RecentHistory{Max: max}
}

// Append records a new block summary, dropping the oldest if the deque is
// full.
func (h *RecentHistory) Append(b BlockSummary) {
	h.Blocks = append(h.Blocks, b)
	if h.Max > 0 && len(h.Blocks) > h.Max {
		h.Blocks = h.Blocks[len(h.Blocks)-h.Max:]
	}
}

// Latest returns the most recently appended summary, or the zero value if
// the history is empty.
func (h RecentHistory) Latest() (BlockSummary, bool) {
	if len(h.Blocks) == 0 {
		return BlockSummary{}, false
	}
	return h.Blocks[len(h.Blocks)-1], true
}

// ContainsAnchor reports whether anchor matches some recorded header hash,
// used by the guarantees sub-transition's anchor-recency check.
func (h RecentHistory) ContainsAnchor(anchor types.Hash) (BlockSummary, bool) {
	for _, b := range h.Blocks {
		if b.HeaderHash == anchor {
			return b, true
		}
	}
	return BlockSummary{}, false
}
