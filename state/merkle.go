package state

import (
	"sort"

	"github.com/jamchain/jamd/codec"
	"github.com/jamchain/jamd/trie"
	"github.com/jamchain/jamd/types"
)

// Discriminators for the simple top-level state keys, which occupy
// key[0] in 1..=16 with the remaining bytes zero.
const (
	discTime         = 1
	discEntropy      = 2
	discValidators   = 3
	discSafrole      = 4
	discDisputes     = 5
	discAvailability = 6
	discAuth         = 7
	discHistory      = 8
	discReady        = 9
	discAccumulated  = 10
	discPrivileges   = 11
	discStatistics   = 12

	discServiceInfo = 0xFF
)

// ToKV flattens s into its serialized (31-byte key, bytes) pairs, ready for
// Merkleization.
func (s State) ToKV() map[types.StateKey][]byte {
	kv := make(map[types.StateKey][]byte)

	kv[U8Key(discTime)] = func() []byte {
		e := codec.NewEncoder(4)
		e.U32(s.Time)
		return e.Bytes()
	}()

	kv[U8Key(discEntropy)] = func() []byte {
		e := codec.NewEncoder(128)
		for _, h := range s.Entropy {
			e.Raw(h.Bytes())
		}
		return e.Bytes()
	}()

	kv[U8Key(discValidators)] = func() []byte {
		e := codec.NewEncoder(0)
		for _, v := range s.Validators.Previous {
			e.Raw(v.Encode())
		}
		for _, v := range s.Validators.Current {
			e.Raw(v.Encode())
		}
		for _, v := range s.Validators.Next {
			e.Raw(v.Encode())
		}
		return e.Bytes()
	}()

	kv[U8Key(discSafrole)] = encodeSafrole(s.Safrole)
	kv[U8Key(discDisputes)] = encodeDisputes(s.Disputes)
	kv[U8Key(discAvailability)] = encodeAvailability(s.Availability)
	kv[U8Key(discAuth)] = encodeAuthorization(s.Auth)
	kv[U8Key(discHistory)] = encodeHistory(s.History)
	kv[U8Key(discReady)] = encodeReady(s.Ready)
	kv[U8Key(discAccumulated)] = encodeAccumulated(s.Accumulated)
	kv[U8Key(discPrivileges)] = encodePrivileges(s.Privileges)
	kv[U8Key(discStatistics)] = encodeStatistics(s.Stats)

	// Per-service info and storage entries.
	ids := make([]types.ServiceId, 0, len(s.Accounts))
	for id := range s.Accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		acc := s.Accounts[id]
		kv[ServiceKey(discServiceInfo, id)] = encodeAccountInfo(acc)
		for k, v := range acc.Storage {
			kv[k] = v
		}
		for k, rec := range acc.Lookups {
			e := codec.NewEncoder(0)
			e.U32(rec.Length)
			e.Sequence(len(rec.Slots), func(i int) { e.U32(rec.Slots[i]) })
			kv[k] = e.Bytes()
		}
		for hash, blob := range acc.Preimages {
			kv[PreimageKey(id, hash)] = blob
		}
	}

	return kv
}

func encodeAccountInfo(a *Account) []byte {
	e := codec.NewEncoder(0)
	e.Raw(a.CodeHash.Bytes())
	balBytes := a.Balance.Bytes()
	e.VarBytes(balBytes)
	e.U64(uint64(a.AccMinGas))
	e.U64(uint64(a.XferMinGas))
	e.U32(a.Items)
	e.U64(a.Octets)
	e.U32(a.CreatedAt)
	e.U32(a.LastAcc)
	e.U32(uint32(a.ParentService))
	e.U64(a.GratisStorageOffset)
	return e.Bytes()
}

func encodeSafrole(sf Safrole) []byte {
	e := codec.NewEncoder(0)
	for _, v := range sf.Pending {
		e.Raw(v.Encode())
	}
	e.Raw(sf.EpochRoot[:])
	if sf.Seal.Tickets != nil {
		e.Byte(0)
		e.Sequence(len(sf.Seal.Tickets), func(i int) {
			e.Raw(sf.Seal.Tickets[i].Id.Bytes())
			e.Byte(sf.Seal.Tickets[i].Attempt)
		})
	} else {
		e.Byte(1)
		e.Sequence(len(sf.Seal.Keys), func(i int) { e.Raw(sf.Seal.Keys[i][:]) })
	}
	e.Sequence(len(sf.TicketAccumulator), func(i int) {
		e.Raw(sf.TicketAccumulator[i].Id.Bytes())
		e.Byte(sf.TicketAccumulator[i].Attempt)
	})
	return e.Bytes()
}

func sortedHashes(set map[types.Hash]struct{}) []types.Hash {
	out := make([]types.Hash, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func encodeDisputes(d Disputes) []byte {
	e := codec.NewEncoder(0)
	for _, set := range []map[types.Hash]struct{}{d.Good, d.Bad, d.Wonky} {
		hashes := sortedHashes(set)
		e.Sequence(len(hashes), func(i int) { e.Raw(hashes[i].Bytes()) })
	}
	offenders := make([]types.Ed25519Public, 0, len(d.Offenders))
	for k := range d.Offenders {
		offenders = append(offenders, k)
	}
	sort.Slice(offenders, func(i, j int) bool {
		for b := range offenders[i] {
			if offenders[i][b] != offenders[j][b] {
				return offenders[i][b] < offenders[j][b]
			}
		}
		return false
	})
	e.Sequence(len(offenders), func(i int) { e.Raw(offenders[i][:]) })
	return e.Bytes()
}

func encodeAvailability(a Availability) []byte {
	e := codec.NewEncoder(0)
	e.Sequence(len(a), func(i int) {
		if a[i].Empty() {
			e.Byte(0)
			return
		}
		e.Byte(1)
		e.VarBytes(a[i].Report.Encode())
		e.U32(a[i].Timeout)
	})
	return e.Bytes()
}

func encodeAuthorization(a Authorization) []byte {
	e := codec.NewEncoder(0)
	e.Sequence(len(a.Pools), func(i int) {
		p := a.Pools[i]
		e.Sequence(len(p.Hashes), func(j int) { e.Raw(p.Hashes[j].Bytes()) })
	})
	e.Sequence(len(a.Queues), func(i int) {
		q := a.Queues[i]
		e.Sequence(len(q.Hashes), func(j int) { e.Raw(q.Hashes[j].Bytes()) })
	})
	return e.Bytes()
}

func encodeHistory(h RecentHistory) []byte {
	e := codec.NewEncoder(0)
	e.Sequence(len(h.Blocks), func(i int) {
		b := h.Blocks[i]
		e.Raw(b.HeaderHash.Bytes())
		e.Sequence(len(b.MMRPeaks), func(j int) { e.Raw(b.MMRPeaks[j].Bytes()) })
		e.Raw(b.StateRoot.Bytes())
		e.Sequence(len(b.ReportedWP), func(j int) {
			e.Raw(b.ReportedWP[j].WorkPackageHash.Bytes())
			e.Raw(b.ReportedWP[j].SegmentTreeRoot.Bytes())
		})
	})
	e.Sequence(len(h.Tree.Peaks), func(i int) { e.Raw(h.Tree.Peaks[i].Bytes()) })
	return e.Bytes()
}

func encodeReady(r ReadyQueue) []byte {
	e := codec.NewEncoder(0)
	e.Sequence(len(r.Slots), func(i int) {
		slot := r.Slots[i]
		e.Sequence(len(slot), func(j int) {
			e.VarBytes(slot[j].Report.Encode())
			deps := sortedHashes(slot[j].Dependencies)
			e.Sequence(len(deps), func(k int) { e.Raw(deps[k].Bytes()) })
		})
	})
	return e.Bytes()
}

func encodeAccumulated(a AccumulatedHistory) []byte {
	e := codec.NewEncoder(0)
	e.Sequence(len(a.Epochs), func(i int) {
		epoch := a.Epochs[i]
		e.Sequence(len(epoch), func(j int) { e.Raw(epoch[j].Bytes()) })
	})
	return e.Bytes()
}

func encodePrivileges(p Privileges) []byte {
	e := codec.NewEncoder(0)
	e.U32(uint32(p.Manager))
	for _, a := range p.Assign {
		e.U32(uint32(a))
	}
	e.U32(uint32(p.Designate))
	ids := make([]types.ServiceId, 0, len(p.AlwaysAcc))
	for id := range p.AlwaysAcc {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	e.Sequence(len(ids), func(i int) {
		e.U32(uint32(ids[i]))
		e.U64(uint64(p.AlwaysAcc[ids[i]]))
	})
	return e.Bytes()
}

func encodeSnapshot(e *codec.Encoder, sn Snapshot) {
	for _, v := range sn.Validators {
		e.U32(v.BlocksAuthored)
		e.U32(v.TicketsIncluded)
		e.U32(v.PreimagesProvided)
		e.U32(v.GuaranteesSigned)
		e.U32(v.AssurancesSigned)
	}
	for _, c := range sn.Cores {
		e.U64(c.GasUsed)
		e.U32(c.Imports)
		e.U32(c.Exports)
		e.U64(c.BundleSize)
		e.U32(c.Popularity)
	}
	ids := make([]types.ServiceId, 0, len(sn.Services))
	for id := range sn.Services {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	e.Sequence(len(ids), func(i int) {
		act := sn.Services[ids[i]]
		e.U32(uint32(ids[i]))
		e.U32(act.PreimagesProvided)
		e.U64(act.RefinementGas)
		e.U64(act.AccumulateGas)
		e.U64(act.OnTransferGas)
	})
}

func encodeStatistics(st Statistics) []byte {
	e := codec.NewEncoder(0)
	encodeSnapshot(e, st.Curr)
	encodeSnapshot(e, st.Prev)
	return e.Bytes()
}

// Root computes the Merkle state root over s's flattened key-value pairs
// (binary Patricia trie, Keccak-256, empty root all-zero).
func (s State) Root() types.Hash {
	t := trie.New()
	for k, v := range s.ToKV() {
		t.Put(k, v)
	}
	return t.Root()
}
