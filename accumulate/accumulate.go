// Package accumulate implements the post-report service execution stage:
// gas-budgeted scheduling of newly available and queued
// work-reports, a two-phase parallel-then-serial executor isolating each
// service's state behind a clone, deferred-transfer settlement, on-transfer
// invocation, and the balanced binary Merkle accumulation root that folds
// into recent history.
package accumulate

import (
	"errors"
	"sort"
	"sync"

	"github.com/jamchain/jamd/codec"
	"github.com/jamchain/jamd/crypto"
	"github.com/jamchain/jamd/hostcall"
	"github.com/jamchain/jamd/pvm"
	"github.com/jamchain/jamd/state"
	"github.com/jamchain/jamd/types"
)

// ErrServiceConflict rejects the whole block when one accumulation creates
// a service id another removes within the same phase.
var ErrServiceConflict = errors.New("accumulate: service created and removed in one phase")

// CodeProvider resolves a service's current code hash to its executable
// program bytes.
type CodeProvider func(codeHash types.Hash) ([]byte, bool)

// Result is one service's accumulation output: the hash it yielded (nil if
// the run never yielded or was discarded) and the side effects it queued.
type Result struct {
	Service  types.ServiceId
	Yield    *types.Hash
	Deferred []hostcall.Deferred
	Provided []hostcall.Provided
	Logs     []hostcall.LogEntry
	Ejected  map[types.ServiceId]bool
	GasUsed  types.Gas
	Ok       bool
}

// ServiceHashPair is one entry of the block's recent-acc-outputs list.
type ServiceHashPair struct {
	Service types.ServiceId
	Hash    types.Hash
}

// Outcome is the full result of one block's accumulation.
type Outcome struct {
	Results  []Result
	Outputs  []ServiceHashPair
	Root     types.Hash
	Executed []state.WorkReport
	AccGas   map[types.ServiceId]types.Gas
	XferGas  map[types.ServiceId]types.Gas
}

// GasBudget computes the total gas available to one block's accumulation:
// the greater of the protocol-wide allocation and the
// sum of every core's report gas limit plus every always-accumulate
// service's reserved gas.
func GasBudget(priv state.Privileges) types.Gas {
	reserved := types.Gas(0)
	for _, g := range priv.AlwaysAcc {
		reserved += g
	}
	floor := types.Gas(types.CoresCount)*types.WorkReportGasLimit + reserved
	if types.Gas(types.TotalGasAllocated) > floor {
		return types.Gas(types.TotalGasAllocated)
	}
	return floor
}

// workItem is one service's accumulation input: the work-results destined
// for it across every selected report, in report order.
type workItem struct {
	service types.ServiceId
	results []state.WorkResult
	gas     types.Gas
}

// Select splits reports into the longest prefix whose cumulative declared
// gas fits within budget and the remainder.
func Select(reports []state.WorkReport, budget types.Gas) (admitted []state.WorkReport, rest []state.WorkReport) {
	var used types.Gas
	for i, r := range reports {
		g := r.TotalGas()
		if used+g > budget {
			rest = append(rest, reports[i:]...)
			break
		}
		used += g
		admitted = append(admitted, r)
	}
	return admitted, rest
}

// groupByService folds always-accumulate services and every admitted
// report's work-results into one work item per destination service, in
// ascending service-id order.
func groupByService(reports []state.WorkReport, alwaysAcc map[types.ServiceId]types.Gas) []workItem {
	items := make(map[types.ServiceId]*workItem)
	for svc, gas := range alwaysAcc {
		if gas <= 0 {
			continue
		}
		items[svc] = &workItem{service: svc, gas: gas}
	}
	for _, r := range reports {
		for _, res := range r.Results {
			if res.Failed {
				continue
			}
			it, ok := items[res.Service]
			if !ok {
				it = &workItem{service: res.Service}
				items[res.Service] = it
			}
			it.results = append(it.results, res)
			it.gas += res.Gas
		}
	}
	order := make([]types.ServiceId, 0, len(items))
	for svc := range items {
		order = append(order, svc)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	out := make([]workItem, 0, len(order))
	for _, svc := range order {
		out = append(out, *items[svc])
	}
	return out
}

// privSlices bundles the privileged state slices one accumulation run may
// mutate beyond the account map.
type privSlices struct {
	priv   state.Privileges
	next   state.ValidatorSet
	queues []state.AuthQueue
}

func cloneAuthQueues(qs []state.AuthQueue) []state.AuthQueue {
	out := make([]state.AuthQueue, len(qs))
	for i, q := range qs {
		out[i] = state.AuthQueue{Hashes: append([]types.Hash(nil), q.Hashes...)}
	}
	return out
}

// runService executes one service's accumulate entrypoint against isolated
// clones of the account set and privileged slices. On panic or out-of-gas
// the context unwinds to its last checkpoint, or the whole run is
// discarded (scratch == nil) if none was taken.
func runService(it workItem, accounts state.ServiceAccounts, base privSlices, entropy types.Hash, slot uint32, code CodeProvider) (state.ServiceAccounts, privSlices, Result) {
	scratch := accounts.Clone()
	slices := privSlices{
		priv:   base.priv.Clone(),
		next:   base.next,
		queues: cloneAuthQueues(base.queues),
	}
	res := Result{Service: it.service}

	acc, ok := scratch[it.service]
	if !ok {
		return nil, slices, res
	}

	program, ok := code(acc.CodeHash)
	if !ok {
		acc.LastAcc = slot
		res.Ok = true
		return scratch, slices, res
	}

	ctx := hostcall.NewContext(it.service, scratch, &slices.priv, entropy, slot, 0).
		WithPrivilegedSlices(&slices.next, slices.queues)
	prog := pvm.Decode(program)
	mem := pvm.NewMemory()
	mem.MapRange(0, types.PageSize, true, true)
	m := pvm.NewMachine(prog, mem, int64(it.gas))

	exit := m.Run(hostcall.Dispatch(ctx))
	if m.Gas < 0 {
		res.GasUsed = it.gas
	} else {
		res.GasUsed = it.gas - types.Gas(m.Gas)
	}

	if exit.Reason != pvm.ExitHalt && !ctx.Rollback() {
		res.Ok = false
		return nil, slices, res
	}
	slices.queues = ctx.AuthQueues

	res.Ok = true
	res.Yield = ctx.YieldHash
	res.Deferred = ctx.Deferred
	res.Provided = ctx.Provided
	res.Logs = ctx.Logs
	res.Ejected = ctx.Ejected
	if surviving, ok := ctx.Accounts[it.service]; ok {
		surviving.LastAcc = slot
	}
	return ctx.Accounts, slices, res
}

// Run executes the two-phase outer accumulation loop over the block's
// accumulatable reports: a gas-bounded prefix runs as a
// parallel phase of isolated per-service executions, results merge
// deterministically, and the tail recurses against the residual gas limit
// with always-accumulate services dropped. Deferred transfers then settle
// and each destination's on_transfer entrypoint runs.
func Run(s *state.State, reports []state.WorkReport, slot uint32, code CodeProvider) (Outcome, error) {
	out := Outcome{
		AccGas:  make(map[types.ServiceId]types.Gas),
		XferGas: make(map[types.ServiceId]types.Gas),
	}
	budget := GasBudget(s.Privileges)
	remaining := reports
	var allDeferred []hostcall.Deferred
	first := true

	for {
		admitted, rest := Select(remaining, budget)
		var always map[types.ServiceId]types.Gas
		if first {
			always = s.Privileges.AlwaysAcc
		}
		items := groupByService(admitted, always)
		if len(items) == 0 {
			if len(admitted) == 0 {
				Requeue(s, remaining, slot)
				break
			}
			// All-failed results still consume their reports.
			out.Executed = append(out.Executed, admitted...)
			remaining = rest
			first = false
			if len(remaining) == 0 {
				break
			}
			continue
		}

		phaseResults, deferred, err := runPhase(s, items, slot, code)
		if err != nil {
			return Outcome{}, err
		}
		out.Results = append(out.Results, phaseResults...)
		allDeferred = append(allDeferred, deferred...)
		out.Executed = append(out.Executed, admitted...)

		for _, r := range phaseResults {
			out.AccGas[r.Service] += r.GasUsed
			budget -= r.GasUsed
		}
		remaining = rest
		first = false
		if len(remaining) == 0 {
			break
		}
		if budget <= 0 {
			Requeue(s, remaining, slot)
			break
		}
	}

	settleTransfers(s, allDeferred)
	runOnTransfers(s, allDeferred, slot, code, out.XferGas)

	for _, r := range out.Results {
		if r.Yield == nil {
			continue
		}
		out.Outputs = append(out.Outputs, ServiceHashPair{Service: r.Service, Hash: *r.Yield})
	}
	sort.Slice(out.Outputs, func(i, j int) bool { return out.Outputs[i].Service < out.Outputs[j].Service })
	out.Root = AccumulationRoot(out.Outputs)
	return out, nil
}

// runPhase executes one parallel phase: every work item runs against an
// identical pre-image of the state, then the isolated clones merge back in
// ascending service-id order. A derived-service-id collision between two
// runs sends the losers through a serial re-run against the merged state;
// a service id both created and ejected within the phase rejects the block.
func runPhase(s *state.State, items []workItem, slot uint32, code CodeProvider) ([]Result, []hostcall.Deferred, error) {
	base := privSlices{priv: s.Privileges, next: s.Validators.Next, queues: s.Auth.Queues}
	basePriv := s.Privileges.Clone()

	type phaseOut struct {
		item    workItem
		scratch state.ServiceAccounts
		slices  privSlices
		result  Result
		newIDs  []types.ServiceId
	}
	outs := make([]phaseOut, len(items))
	var wg sync.WaitGroup
	for i, it := range items {
		wg.Add(1)
		go func(i int, it workItem) {
			defer wg.Done()
			scratch, slices, res := runService(it, s.Accounts, base, s.Entropy[0], slot, code)
			var newIDs []types.ServiceId
			for id := range scratch {
				if _, existed := s.Accounts[id]; !existed {
					newIDs = append(newIDs, id)
				}
			}
			outs[i] = phaseOut{item: it, scratch: scratch, slices: slices, result: res, newIDs: newIDs}
		}(i, it)
	}
	wg.Wait()

	claimedNew := make(map[types.ServiceId]int)
	removed := make(map[types.ServiceId]struct{})
	for _, o := range outs {
		for _, id := range o.newIDs {
			claimedNew[id]++
		}
		for id := range o.result.Ejected {
			removed[id] = struct{}{}
		}
	}
	for id := range claimedNew {
		if _, gone := removed[id]; gone {
			return nil, nil, ErrServiceConflict
		}
	}

	var results []Result
	var deferred []hostcall.Deferred
	var rerun []workItem

	for _, o := range outs {
		if o.scratch == nil {
			results = append(results, o.result)
			continue
		}
		conflicted := false
		for _, id := range o.newIDs {
			if claimedNew[id] > 1 {
				conflicted = true
			}
		}
		if conflicted {
			rerun = append(rerun, o.item)
			continue
		}
		mergeInto(s, o.scratch, o.item.service, o.result.Ejected)
		adoptPrivileged(s, basePriv, o.item.service, o.slices)
		integrateProvided(s, o.result.Provided, slot)
		results = append(results, o.result)
		deferred = append(deferred, o.result.Deferred...)
	}

	// Serial re-run for derived-id losers, one at a time against the merged
	// state so fresh ids are assigned against a consistent view.
	for _, it := range rerun {
		serialBase := privSlices{priv: s.Privileges, next: s.Validators.Next, queues: s.Auth.Queues}
		scratch, slices, res := runService(it, s.Accounts, serialBase, s.Entropy[0], slot, code)
		if scratch != nil {
			mergeInto(s, scratch, it.service, res.Ejected)
			adoptPrivileged(s, basePriv, it.service, slices)
			integrateProvided(s, res.Provided, slot)
			deferred = append(deferred, res.Deferred...)
		}
		results = append(results, res)
	}

	return results, deferred, nil
}

// adoptPrivileged folds one run's privileged-slice mutations back into the
// live state, power by power: only the manager's run (or anyone's at
// genesis while the manager is unset) carries privilege changes, only the
// designate service's run carries a new validator set, and each assign
// service's run carries its own cores' queues. Powers are judged against
// the phase's entry privileges so a mid-phase bless cannot grant itself
// more in the same phase.
func adoptPrivileged(s *state.State, basePriv state.Privileges, svc types.ServiceId, slices privSlices) {
	if basePriv.Manager == 0 || basePriv.Manager == svc {
		s.Privileges = slices.priv
	}
	if basePriv.Designate == svc {
		s.Validators.Next = slices.next
	}
	for core, owner := range basePriv.Assign {
		if owner == svc && core < len(slices.queues) && core < len(s.Auth.Queues) {
			s.Auth.Queues[core] = slices.queues[core]
		}
	}
}

// mergeInto folds one service's isolated clone back into the live state:
// its own account, any newly derived services it created, and any service
// it ejected.
func mergeInto(s *state.State, scratch state.ServiceAccounts, owner types.ServiceId, ejected map[types.ServiceId]bool) {
	if acc, ok := scratch[owner]; ok {
		s.Accounts[owner] = acc
	} else {
		delete(s.Accounts, owner)
	}
	for id, acc := range scratch {
		if _, existed := s.Accounts[id]; !existed {
			s.Accounts[id] = acc
		}
	}
	for id := range ejected {
		delete(s.Accounts, id)
	}
}

// integrateProvided applies the preimages queued by provide host calls,
// skipping any whose target no longer exists or whose lookup record is
// absent or already provisioned.
func integrateProvided(s *state.State, provided []hostcall.Provided, slot uint32) {
	for _, p := range provided {
		acc, ok := s.Accounts[p.Service]
		if !ok {
			continue
		}
		hash := crypto.Blake2b256Hash(p.Blob)
		key := state.LookupKey(p.Service, hash, uint32(len(p.Blob)))
		rec, ok := acc.Lookups[key]
		if !ok || len(rec.Slots) != 0 {
			continue
		}
		acc.Preimages[hash] = p.Blob
		acc.Lookups[key] = state.LookupRecord{Length: rec.Length, Slots: []uint32{slot}}
		acc.Octets += uint64(len(p.Blob))
		acc.Items++
	}
}

// settleTransfers applies every surviving deferred transfer's credit side;
// the debit side was already applied against the sender's isolated balance
// during its own run.
func settleTransfers(s *state.State, transfers []hostcall.Deferred) {
	for _, t := range transfers {
		dest, ok := s.Accounts[t.Dest]
		if !ok {
			continue
		}
		dest.Balance.AddUint64(dest.Balance, t.Amount)
	}
}

// runOnTransfers invokes on_transfer for every destination service with
// incoming transfers, sorted by (source, original order), each against the
// now-merged state.
func runOnTransfers(s *state.State, transfers []hostcall.Deferred, slot uint32, code CodeProvider, xferGas map[types.ServiceId]types.Gas) {
	byDest := make(map[types.ServiceId][]hostcall.Deferred)
	var order []types.ServiceId
	for _, t := range transfers {
		if _, ok := s.Accounts[t.Dest]; !ok {
			continue
		}
		if _, seen := byDest[t.Dest]; !seen {
			order = append(order, t.Dest)
		}
		byDest[t.Dest] = append(byDest[t.Dest], t)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	for _, dest := range order {
		selected := byDest[dest]
		sort.SliceStable(selected, func(i, j int) bool { return selected[i].Source < selected[j].Source })

		acc := s.Accounts[dest]
		program, ok := code(acc.CodeHash)
		if !ok {
			continue
		}
		var gas types.Gas
		for _, t := range selected {
			gas += t.Gas
		}

		scratch := s.Accounts.Clone()
		privClone := s.Privileges.Clone()
		ctx := hostcall.NewContext(dest, scratch, &privClone, s.Entropy[0], slot, 0)
		prog := pvm.Decode(program)
		mem := pvm.NewMemory()
		mem.MapRange(0, types.PageSize, true, true)
		m := pvm.NewMachine(prog, mem, int64(gas))

		exit := m.Run(hostcall.Dispatch(ctx))
		if m.Gas < 0 {
			xferGas[dest] += gas
		} else {
			xferGas[dest] += gas - types.Gas(m.Gas)
		}
		if exit.Reason != pvm.ExitHalt && !ctx.Rollback() {
			continue
		}
		mergeInto(s, ctx.Accounts, dest, ctx.Ejected)
		integrateProvided(s, ctx.Provided, slot)
	}
}

// AccumulationRoot builds the balanced binary Merkle root over the
// (service_id, hash) output pairs, sorted by service id, hashing each leaf
// as keccak256(encode(service_id) || hash).
func AccumulationRoot(outputs []ServiceHashPair) types.Hash {
	if len(outputs) == 0 {
		return types.Hash{}
	}
	leaves := make([]types.Hash, len(outputs))
	for i, p := range outputs {
		e := codec.NewEncoder(4)
		e.U32(uint32(p.Service))
		leaves[i] = crypto.Keccak256Hash(e.Bytes(), p.Hash.Bytes())
	}
	return merkleize(leaves)
}

// merkleize folds leaves pairwise (duplicating the final leaf on an odd
// layer) until a single root remains.
func merkleize(leaves []types.Hash) types.Hash {
	layer := leaves
	for len(layer) > 1 {
		var next []types.Hash
		for i := 0; i < len(layer); i += 2 {
			if i+1 < len(layer) {
				next = append(next, crypto.Keccak256Hash(layer[i].Bytes(), layer[i+1].Bytes()))
			} else {
				next = append(next, crypto.Keccak256Hash(layer[i].Bytes(), layer[i].Bytes()))
			}
		}
		layer = next
	}
	return layer[0]
}
