package stf

import (
	"sort"

	"github.com/jamchain/jamd/accumulate"
	"github.com/jamchain/jamd/block"
	"github.com/jamchain/jamd/consensus"
	"github.com/jamchain/jamd/crypto"
	"github.com/jamchain/jamd/log"
	"github.com/jamchain/jamd/state"
	"github.com/jamchain/jamd/types"
)

// Importer applies candidate blocks to a pre-state. It carries the
// collaborators a block import needs: the ring-VRF oracle, a cached
// Ed25519 verifier shared across imports, and the service-code resolver
// used by accumulation.
type Importer struct {
	oracle   crypto.RingVRFOracle
	verifier *crypto.CachedEd25519Verifier
	code     accumulate.CodeProvider
	logger   *log.Logger
}

// NewImporter builds an Importer. A nil oracle falls back to the
// deterministic stand-in; a nil code provider resolves every code hash to
// a stored preimage of that hash in any service account.
func NewImporter(oracle crypto.RingVRFOracle, verifier *crypto.CachedEd25519Verifier, code accumulate.CodeProvider) *Importer {
	if oracle == nil {
		oracle = crypto.NewDefaultRingVRFOracle()
	}
	if verifier == nil {
		verifier = crypto.NewCachedEd25519Verifier(nil)
	}
	return &Importer{
		oracle:   oracle,
		verifier: verifier,
		code:     code,
		logger:   log.Default().Module("stf"),
	}
}

// codeFor resolves a code hash against the service accounts' stored
// preimages, the default when the embedder supplies no CodeProvider.
func codeFor(accounts state.ServiceAccounts) accumulate.CodeProvider {
	return func(codeHash types.Hash) ([]byte, bool) {
		for _, acc := range accounts {
			if blob, ok := acc.Preimages[codeHash]; ok {
				return blob, true
			}
		}
		return nil, false
	}
}

// Apply runs the full state transition: header checks, then
// time, safrole, disputes, guarantees, assurances, preimages, accumulation,
// statistics, and recent history, in that fixed order, against a clone
// of pre. On any typed error the returned state is pre, unchanged.
// parentHash is the hash of the header pre was produced by (zero at
// genesis).
func (im *Importer) Apply(pre state.State, b block.Block, parentHash types.Hash) (state.State, error) {
	h := b.Header

	if h.Parent != parentHash {
		return pre, stageErr(StageHeader, consensus.ErrBadParent)
	}
	if h.ParentStateRoot != pre.Root() {
		return pre, stageErr(StageHeader, consensus.ErrBadParentStateRoot)
	}
	if h.ExtrinsicHash != b.Extrinsic.Hash() {
		return pre, stageErr(StageHeader, consensus.ErrBadExtrinsicHash)
	}

	post := pre.Clone()

	epochChanged, err := consensus.AdvanceTime(&post, h.Slot)
	if err != nil {
		return pre, stageErr(StageTime, err)
	}
	if epochChanged {
		consensus.RotateStatistics(&post)
	}

	// The author is drawn from the validator set current as of this block's
	// epoch: the pending set becomes current on an epoch boundary.
	authorSet := post.Validators.Current
	if epochChanged {
		authorSet = post.Safrole.Pending
	}
	if int(h.AuthorIndex) >= len(authorSet) {
		return pre, stageErr(StageHeader, consensus.ErrBadAuthor)
	}
	authorKey := authorSet[h.AuthorIndex].Bandersnatch

	entropyOut, err := consensus.VerifyEntropySource(&post, h, authorKey, im.oracle)
	if err != nil {
		return pre, stageErr(StageSafrole, err)
	}
	if epochChanged {
		consensus.EpochTransition(&post, im.oracle, entropyOut)
	} else {
		post.Entropy.Accumulate(entropyOut)
	}

	if _, err := consensus.VerifySeal(&post, h, authorKey, im.oracle); err != nil {
		return pre, stageErr(StageSafrole, err)
	}

	if err := consensus.SubmitTickets(&post, b.Extrinsic.Tickets, im.oracle); err != nil {
		return pre, stageErr(StageSafrole, err)
	}

	epoch := h.Slot / types.EpochLength
	disputesOut, err := consensus.ApplyDisputes(&post, b.Extrinsic.Disputes, epoch, im.verifier)
	if err != nil {
		return pre, stageErr(StageDisputes, err)
	}
	if !offendersMatch(h.Offenders, disputesOut.NewOffenders) {
		return pre, stageErr(StageHeader, consensus.ErrBadOffendersMark)
	}

	if _, err := consensus.ApplyGuarantees(&post, b.Extrinsic.Guarantees, h.Slot, im.verifier); err != nil {
		return pre, stageErr(StageGuarantees, err)
	}

	assurancesOut, err := consensus.ApplyAssurances(&post, b.Extrinsic.Assurances, parentHash, h.Slot, im.verifier)
	if err != nil {
		return pre, stageErr(StageAssurances, err)
	}

	if err := consensus.ApplyPreimages(&post, b.Extrinsic.Preimages, h.Slot); err != nil {
		return pre, stageErr(StagePreimages, err)
	}

	code := im.code
	if code == nil {
		code = codeFor(post.Accounts)
	}
	scheduled := accumulate.Schedule(&post, assurancesOut.NewlyAvailable, h.Slot)
	outcome, err := accumulate.Run(&post, scheduled, h.Slot, code)
	if err != nil {
		return pre, stageErr(StageAccumulate, err)
	}

	accumulated := make([]types.Hash, 0, len(outcome.Executed))
	for _, r := range outcome.Executed {
		accumulated = append(accumulated, r.Spec.Hash)
	}
	sort.Slice(accumulated, func(i, j int) bool { return accumulated[i].Less(accumulated[j]) })
	post.Accumulated.Push(accumulated)

	consensus.ReplenishAuthPools(&post, h.Slot)

	im.applyStatistics(&post, b, outcome)

	reported := make([]state.ReportedWorkPackage, 0, len(b.Extrinsic.Guarantees))
	for _, g := range b.Extrinsic.Guarantees {
		reported = append(reported, state.ReportedWorkPackage{
			WorkPackageHash: g.Report.Spec.Hash,
			SegmentTreeRoot: g.Report.Spec.ExportsRoot,
		})
	}
	consensus.AppendHistory(&post, h.Hash(), outcome.Root, reported)

	im.logger.Debug("block applied", "slot", h.Slot, "reports", len(b.Extrinsic.Guarantees), "accumulated", len(outcome.Executed))
	return post, nil
}

// applyStatistics folds the block's activity into the current epoch's
// counters.
func (im *Importer) applyStatistics(post *state.State, b block.Block, outcome accumulate.Outcome) {
	in := consensus.StatsInput{
		AuthorIndex:       b.Header.AuthorIndex,
		TicketsIncluded:   map[uint16]uint32{b.Header.AuthorIndex: uint32(len(b.Extrinsic.Tickets))},
		PreimagesByAuthor: make(map[types.ServiceId]uint32),
		CoreGas:           make(map[uint16]uint64),
		CoreBundleSize:    make(map[uint16]uint64),
		CorePopularity:    make(map[uint16]uint32),
		ServiceAccGas:     make(map[types.ServiceId]uint64),
		ServiceXferGas:    make(map[types.ServiceId]uint64),
	}
	if len(b.Extrinsic.Tickets) == 0 {
		in.TicketsIncluded = nil
	}
	for _, p := range b.Extrinsic.Preimages {
		in.PreimagesByAuthor[p.Requester]++
	}
	for _, g := range b.Extrinsic.Guarantees {
		var idxs []uint16
		for _, sig := range g.Signatures {
			idxs = append(idxs, sig.ValidatorIndex)
		}
		in.GuarantorIndexes = append(in.GuarantorIndexes, idxs)
		in.CoreGas[g.Report.CoreIndex] += uint64(g.Report.TotalGas())
		in.CoreBundleSize[g.Report.CoreIndex] += uint64(g.Report.Spec.Length)
	}
	for _, a := range b.Extrinsic.Assurances {
		in.AssurerIndexes = append(in.AssurerIndexes, a.ValidatorIndex)
		for core := 0; core < types.CoresCount; core++ {
			byteIdx := core / 8
			if byteIdx < len(a.Bitfield) && a.Bitfield[byteIdx]&(1<<uint(core%8)) != 0 {
				in.CorePopularity[uint16(core)]++
			}
		}
	}
	for svc, gas := range outcome.AccGas {
		in.ServiceAccGas[svc] = uint64(gas)
	}
	for svc, gas := range outcome.XferGas {
		in.ServiceXferGas[svc] = uint64(gas)
	}
	consensus.ApplyStatistics(post, in)
}

// offendersMatch compares the header's offenders mark against the dispute
// output; both are sorted by key.
func offendersMatch(mark, fresh []types.Ed25519Public) bool {
	if len(mark) != len(fresh) {
		return false
	}
	for i := range mark {
		if mark[i] != fresh[i] {
			return false
		}
	}
	return true
}
